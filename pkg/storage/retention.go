package storage

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// RetentionPolicy 暂存与产物文件的保留策略
type RetentionPolicy struct {
	MaxAge   time.Duration // 超过该时长的文件被删除
	Schedule string        // cron表达式，支持 "@every 1h" 等描述符
}

// Janitor 按计划清理过期文件
type Janitor struct {
	policy  RetentionPolicy
	stores  map[string]Storage
	logger  *logrus.Logger
	cron    *cron.Cron
	onPurge func(store string, removed int)
}

// JanitorOption 清理器选项
type JanitorOption func(*Janitor)

// WithJanitorLogger 设置日志记录器
func WithJanitorLogger(logger *logrus.Logger) JanitorOption {
	return func(j *Janitor) {
		j.logger = logger
	}
}

// WithPurgeHook 每个存储清理完成后回调
func WithPurgeHook(fn func(store string, removed int)) JanitorOption {
	return func(j *Janitor) {
		j.onPurge = fn
	}
}

// NewJanitor 创建清理器，stores 以名称区分，如 uploads、outputs
func NewJanitor(policy RetentionPolicy, stores map[string]Storage, opts ...JanitorOption) (*Janitor, error) {
	if policy.MaxAge <= 0 {
		return nil, fmt.Errorf("retention max age must be positive, got %s", policy.MaxAge)
	}
	if policy.Schedule == "" {
		return nil, fmt.Errorf("retention schedule is required")
	}

	j := &Janitor{
		policy: policy,
		stores: stores,
		logger: logrus.StandardLogger(),
		cron:   cron.New(),
	}
	for _, opt := range opts {
		opt(j)
	}

	if _, err := j.cron.AddFunc(policy.Schedule, func() { j.RunOnce() }); err != nil {
		return nil, fmt.Errorf("invalid retention schedule %q: %v", policy.Schedule, err)
	}
	return j, nil
}

// Start 启动定时任务
func (j *Janitor) Start() {
	j.cron.Start()
	j.logger.WithFields(logrus.Fields{
		"schedule": j.policy.Schedule,
		"max_age":  j.policy.MaxAge.String(),
		"stores":   len(j.stores),
	}).Info("Retention janitor started")
}

// Stop 停止定时任务并等待正在执行的清理结束
func (j *Janitor) Stop(ctx context.Context) error {
	done := j.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunOnce 立即清理一次所有存储，返回各存储删除的文件数
func (j *Janitor) RunOnce() map[string]int {
	names := make([]string, 0, len(j.stores))
	for name := range j.stores {
		names = append(names, name)
	}
	sort.Strings(names)

	result := make(map[string]int, len(names))
	for _, name := range names {
		removed, err := j.stores[name].Purge(j.policy.MaxAge)
		result[name] = removed
		if err != nil {
			j.logger.WithFields(logrus.Fields{
				"store": name,
				"error": err,
			}).Error("Failed to purge expired files")
		}
		if removed > 0 {
			j.logger.WithFields(logrus.Fields{
				"store":   name,
				"removed": removed,
			}).Info("Purged expired files")
		}
		if j.onPurge != nil {
			j.onPurge(name, removed)
		}
	}
	return result
}
