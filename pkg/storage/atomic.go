package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// tempPrefix 写入中的临时文件前缀，List 与 Purge 会跳过它们
const tempPrefix = ".tmp-"

// WriteFileAtomic 先写入同目录下的临时文件再重命名
// 任何一步失败都不会留下目标文件
func WriteFileAtomic(path string, reader io.Reader) (int64, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return 0, fmt.Errorf("failed to create directory: %v", err)
	}

	tmp, err := os.CreateTemp(dir, tempPrefix+"*")
	if err != nil {
		return 0, fmt.Errorf("failed to create temp file: %v", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	size, err := io.Copy(tmp, reader)
	if err != nil {
		return 0, fmt.Errorf("failed to write file: %v", err)
	}
	if err := tmp.Sync(); err != nil {
		return 0, fmt.Errorf("failed to sync file: %v", err)
	}
	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("failed to close file: %v", err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		return 0, fmt.Errorf("failed to set file mode: %v", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return 0, fmt.Errorf("failed to commit file: %v", err)
	}
	committed = true
	return size, nil
}

func isTempFile(name string) bool {
	return strings.HasPrefix(filepath.Base(name), tempPrefix)
}
