package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Config 应用程序配置结构体
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Retention RetentionConfig `mapstructure:"retention"`
	Chunker   ChunkerConfig   `mapstructure:"chunker"`
	Embed     EmbedConfig     `mapstructure:"embed"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Host          string        `mapstructure:"host"`                                          // 服务器主机
	Port          int           `mapstructure:"port" validate:"min=1,max=65535"`               // 服务器端口
	Mode          string        `mapstructure:"mode" validate:"oneof=debug release test"`      // gin运行模式
	ReadTimeout   time.Duration `mapstructure:"read_timeout"`                                  // 读超时
	WriteTimeout  time.Duration `mapstructure:"write_timeout"`                                 // 写超时
	MaxUploadSize int64         `mapstructure:"max_upload_size" validate:"gt=0"`               // 上传文件大小上限（字节）
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `mapstructure:"level" validate:"oneof=debug info warn error"` // 日志级别
	Format     string `mapstructure:"format" validate:"oneof=json text"`           // 输出格式
	File       string `mapstructure:"file"`                                         // 日志文件，为空时只输出到stdout
	MaxSizeMB  int    `mapstructure:"max_size_mb" validate:"gte=0"`                 // 单个日志文件大小上限
	MaxBackups int    `mapstructure:"max_backups" validate:"gte=0"`                 // 保留的旧日志数量
	MaxAgeDays int    `mapstructure:"max_age_days" validate:"gte=0"`                // 旧日志保留天数
}

// StorageConfig 存储配置
type StorageConfig struct {
	Type      string `mapstructure:"type" validate:"oneof=local minio"` // 产物存储类型：local 或 minio
	UploadDir string `mapstructure:"upload_dir" validate:"required"`    // 上传文件暂存目录
	OutputDir string `mapstructure:"output_dir" validate:"required"`    // 本地产物目录
	Bucket    string `mapstructure:"bucket"`                            // MinIO桶名称
	Endpoint  string `mapstructure:"endpoint"`                          // MinIO端点
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"` // 是否使用SSL
}

// RetentionConfig 暂存文件与产物的保留策略
type RetentionConfig struct {
	Enabled  bool          `mapstructure:"enabled"`                   // 是否定期清理
	MaxAge   time.Duration `mapstructure:"max_age" validate:"gte=0"`  // 超过该时长的文件被删除
	Schedule string        `mapstructure:"schedule"`                  // cron表达式
}

// ChunkerConfig 切分配置
type ChunkerConfig struct {
	Strategy                   string         `mapstructure:"strategy" validate:"oneof=fixed recursive semantic"`
	LengthUnit                 string         `mapstructure:"length_unit" validate:"oneof=chars tokens"`
	Encoding                   string         `mapstructure:"encoding"`
	AddStartIndex              bool           `mapstructure:"add_start_index"`
	FallbackOnEmbeddingFailure bool           `mapstructure:"fallback_on_embedding_failure"`
	Fixed                      WindowConfig   `mapstructure:"fixed"`
	Recursive                  WindowConfig   `mapstructure:"recursive"`
	Semantic                   SemanticConfig `mapstructure:"semantic"`
}

// WindowConfig 固定/递归切分参数
type WindowConfig struct {
	ChunkSize    int      `mapstructure:"chunk_size" validate:"gt=0"`
	ChunkOverlap int      `mapstructure:"chunk_overlap" validate:"gte=0,ltfield=ChunkSize"`
	Separators   []string `mapstructure:"separators"`
}

// SemanticConfig 语义切分参数
type SemanticConfig struct {
	MinChunkSize              int     `mapstructure:"min_chunk_size" validate:"gte=0"`
	MaxChunkSize              int     `mapstructure:"max_chunk_size" validate:"gt=0,gtefield=MinChunkSize"`
	BreakpointThresholdType   string  `mapstructure:"breakpoint_threshold_type" validate:"oneof=percentile percent stdev standard_deviation"`
	BreakpointThresholdAmount float64 `mapstructure:"breakpoint_threshold_amount" validate:"gte=0"`
	BufferSize                int     `mapstructure:"buffer_size" validate:"gte=0"`
}

// EmbedConfig 向量嵌入模型配置
type EmbedConfig struct {
	Provider    string        `mapstructure:"provider" validate:"oneof=openai ollama tongyi fake"` // 提供方
	Model       string        `mapstructure:"model"`                                               // 模型名称
	APIKey      string        `mapstructure:"api_key"`                                             // API密钥（如果需要）
	Endpoint    string        `mapstructure:"endpoint"`                                            // API端点
	BatchSize   int           `mapstructure:"batch_size" validate:"gt=0"`                          // 单次请求文本数
	Dimensions  int           `mapstructure:"dimensions" validate:"gte=0"`                         // 向量维度
	Timeout     time.Duration `mapstructure:"timeout"`                                             // 请求超时
	MaxRetries  int           `mapstructure:"max_retries" validate:"gte=0"`                        // 最大重试次数
	Concurrency int           `mapstructure:"concurrency" validate:"gt=0"`                         // 并发批次数
}

// CacheConfig 向量缓存配置
type CacheConfig struct {
	Enable   bool   `mapstructure:"enable"`                                 // 是否启用缓存
	Type     string `mapstructure:"type" validate:"oneof=memory redis lru"` // 缓存类型
	Address  string `mapstructure:"address"`                                // Redis地址
	Password string `mapstructure:"password"`                               // Redis密码
	DB       int    `mapstructure:"db"`                                     // Redis数据库
	TTL      int    `mapstructure:"ttl" validate:"gte=0"`                   // 缓存TTL（秒）
	Size     int    `mapstructure:"size" validate:"gte=0"`                  // LRU容量
}

// PipelineConfig 流水线行为
type PipelineConfig struct {
	RejectEmpty bool `mapstructure:"reject_empty"` // 规范化后无内容时报错而不是输出空产物
}

// Load 从文件和环境变量加载配置
func Load(configPath string) (*Config, error) {
	return LoadWithViper(viper.New(), configPath)
}

// LoadWithViper 使用外部viper实例加载配置，便于绑定命令行参数
func LoadWithViper(v *viper.Viper, configPath string) (*Config, error) {
	// .env 不存在时忽略
	_ = godotenv.Load()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			if _, statErr := os.Stat(configPath); os.IsNotExist(statErr) {
				logrus.WithField("path", configPath).Warn("Config file not found, using defaults")
			} else {
				return nil, fmt.Errorf("failed to read config file: %v", err)
			}
		} else {
			logrus.WithField("path", v.ConfigFileUsed()).Info("Using config file")
		}
	}

	// 支持环境变量覆盖，如 CHUNKER_STRATEGY、EMBED_API_KEY
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %v", err)
	}

	processEnvironmentVariables(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate 按结构体标签校验配置
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// processEnvironmentVariables 展开 ${VAR} 形式的敏感配置
func processEnvironmentVariables(cfg *Config) {
	for _, field := range []*string{
		&cfg.Embed.APIKey,
		&cfg.Cache.Password,
		&cfg.Storage.AccessKey,
		&cfg.Storage.SecretKey,
	} {
		*field = expandEnv(*field)
	}
}

func expandEnv(value string) string {
	if strings.HasPrefix(value, "${") && strings.HasSuffix(value, "}") {
		if envVal := os.Getenv(value[2 : len(value)-1]); envVal != "" {
			return envVal
		}
	}
	return value
}

// setDefaults 设置配置的默认值
func setDefaults(v *viper.Viper) {
	// 服务器默认配置
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.read_timeout", "60s")
	v.SetDefault("server.write_timeout", "300s")
	v.SetDefault("server.max_upload_size", 64<<20)

	// 日志默认配置
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age_days", 30)

	// 存储默认配置
	v.SetDefault("storage.type", "local")
	v.SetDefault("storage.upload_dir", "./uploads")
	v.SetDefault("storage.output_dir", "./outputs")
	v.SetDefault("storage.bucket", "ingest-outputs")
	v.SetDefault("storage.use_ssl", false)

	// 保留策略默认配置
	v.SetDefault("retention.enabled", false)
	v.SetDefault("retention.max_age", "24h")
	v.SetDefault("retention.schedule", "@every 1h")

	// 切分默认配置
	v.SetDefault("chunker.strategy", "recursive")
	v.SetDefault("chunker.length_unit", "chars")
	v.SetDefault("chunker.encoding", "cl100k_base")
	v.SetDefault("chunker.add_start_index", false)
	v.SetDefault("chunker.fallback_on_embedding_failure", false)
	v.SetDefault("chunker.fixed.chunk_size", 800)
	v.SetDefault("chunker.fixed.chunk_overlap", 100)
	v.SetDefault("chunker.recursive.chunk_size", 900)
	v.SetDefault("chunker.recursive.chunk_overlap", 150)
	v.SetDefault("chunker.recursive.separators", []string{"paragraph", "line", "sentence", "word", "char"})
	v.SetDefault("chunker.semantic.min_chunk_size", 200)
	v.SetDefault("chunker.semantic.max_chunk_size", 800)
	v.SetDefault("chunker.semantic.breakpoint_threshold_type", "percent")
	v.SetDefault("chunker.semantic.breakpoint_threshold_amount", 0)
	v.SetDefault("chunker.semantic.buffer_size", 1)

	// Embedding默认配置
	v.SetDefault("embed.provider", "openai")
	v.SetDefault("embed.api_key", "${OPENAI_API_KEY}")
	v.SetDefault("embed.batch_size", 16)
	v.SetDefault("embed.timeout", "30s")
	v.SetDefault("embed.max_retries", 3)
	v.SetDefault("embed.concurrency", 4)

	// 缓存默认配置
	v.SetDefault("cache.enable", false)
	v.SetDefault("cache.type", "memory")
	v.SetDefault("cache.address", "localhost:6379")
	v.SetDefault("cache.ttl", 86400) // 1天
	v.SetDefault("cache.size", 10000)

	v.SetDefault("pipeline.reject_empty", false)
}
