package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/fyerfyer/doc-ingest/config"
	"github.com/fyerfyer/doc-ingest/internal/cache"
	"github.com/fyerfyer/doc-ingest/internal/embedding"
	"github.com/fyerfyer/doc-ingest/internal/metrics"
	"github.com/fyerfyer/doc-ingest/internal/pipeline"
	"github.com/fyerfyer/doc-ingest/pkg/storage"
)

// loadConfig 读取 --config 指定的配置文件，命令行参数已绑定到 v
func loadConfig(cmd *cobra.Command, v *viper.Viper) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	return config.LoadWithViper(v, path)
}

// setupLogger 设置日志系统
func setupLogger(cfg config.LogConfig) *logrus.Logger {
	logger := logrus.New()

	if cfg.Format == "text" {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})
	}

	var out io.Writer = os.Stdout
	if cfg.File != "" {
		out = io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   true,
		})
	}
	logger.SetOutput(out)

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	// 根据环境变量设置日志级别
	if os.Getenv("DEBUG") == "true" {
		level = logrus.DebugLevel
	}
	logger.SetLevel(level)

	return logger
}

// setupCache 设置向量缓存
func setupCache(cfg config.CacheConfig) (cache.Cache, error) {
	cacheConfig := cache.DefaultConfig()
	cacheConfig.Type = cfg.Type
	cacheConfig.DefaultTTL = time.Duration(cfg.TTL) * time.Second
	if cfg.Size > 0 {
		cacheConfig.Size = cfg.Size
	}
	if cfg.Type == "redis" {
		cacheConfig.RedisAddr = cfg.Address
		cacheConfig.RedisPassword = cfg.Password
		cacheConfig.RedisDB = cfg.DB
	}
	return cache.NewCache(cacheConfig)
}

// setupEmbedding 设置语义切分使用的嵌入客户端
// 返回的客户端按提供方上限分批并发，启用缓存时先查缓存
func setupEmbedding(cfg *config.Config, logger *logrus.Logger) (embedding.Client, error) {
	client, err := embedding.NewClient(cfg.Embed.Provider,
		embedding.WithAPIKey(cfg.Embed.APIKey),
		embedding.WithBaseURL(cfg.Embed.Endpoint),
		embedding.WithModel(cfg.Embed.Model),
		embedding.WithTimeout(cfg.Embed.Timeout),
		embedding.WithMaxRetries(cfg.Embed.MaxRetries),
		embedding.WithDimensions(cfg.Embed.Dimensions),
		embedding.WithBatchSize(cfg.Embed.BatchSize),
		embedding.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}

	var wrapped embedding.Client = embedding.NewBatchProcessor(client, cfg.Embed.BatchSize, cfg.Embed.Concurrency)
	if cfg.Cache.Enable {
		c, err := setupCache(cfg.Cache)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize cache: %w", err)
		}
		wrapped = embedding.NewCachedClient(wrapped, c, time.Duration(cfg.Cache.TTL)*time.Second, logger)
	}

	logger.WithFields(logrus.Fields{
		"provider": cfg.Embed.Provider,
		"model":    wrapped.Name(),
		"cache":    cfg.Cache.Enable,
	}).Info("Embedding client initialized")
	return wrapped, nil
}

// setupPipeline 创建流水线
// 嵌入客户端初始化失败时仍可使用 fixed 与 recursive 策略
func setupPipeline(cfg *config.Config, logger *logrus.Logger, m *metrics.Metrics) (*pipeline.Pipeline, string) {
	opts := []pipeline.Option{
		pipeline.WithLogger(logger),
		pipeline.WithMetrics(m),
		pipeline.WithRejectEmpty(cfg.Pipeline.RejectEmpty),
		pipeline.WithFallbackOnEmbeddingFailure(cfg.Chunker.FallbackOnEmbeddingFailure),
	}

	embedderName := ""
	client, err := setupEmbedding(cfg, logger)
	if err != nil {
		logger.WithFields(logrus.Fields{
			"provider": cfg.Embed.Provider,
			"error":    err,
		}).Warn("Embedding client unavailable, semantic strategy disabled")
	} else {
		opts = append(opts, pipeline.WithEmbedder(client))
		embedderName = client.Name()
	}

	return pipeline.New(opts...), embedderName
}

// setupStorage 创建暂存区与产物存储
func setupStorage(cfg config.StorageConfig) (*storage.LocalStorage, storage.Storage, error) {
	uploads, err := storage.NewLocalStorage(storage.LocalConfig{Path: cfg.UploadDir})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize upload storage: %w", err)
	}

	if cfg.Type == "minio" {
		outputs, err := storage.NewMinioStorage(storage.MinioConfig{
			Endpoint:  cfg.Endpoint,
			AccessKey: cfg.AccessKey,
			SecretKey: cfg.SecretKey,
			UseSSL:    cfg.UseSSL,
			Bucket:    cfg.Bucket,
			Prefix:    "outputs",
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize minio storage: %w", err)
		}
		return uploads, outputs, nil
	}

	outputs, err := storage.NewLocalStorage(storage.LocalConfig{Path: cfg.OutputDir})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize output storage: %w", err)
	}
	return uploads, outputs, nil
}

// chunkingFlags 切分相关的命令行参数
func chunkingFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("strategy", "", "Chunking strategy (fixed/recursive/semantic)")
	f.String("length-unit", "", "Length unit (chars/tokens)")
	f.Int("chunk-size", 0, "Chunk size for fixed and recursive strategies")
	f.Int("chunk-overlap", 0, "Chunk overlap for fixed and recursive strategies")
	f.Int("min-chunk-size", 0, "Minimum chunk size for the semantic strategy")
	f.Int("max-chunk-size", 0, "Maximum chunk size for the semantic strategy")
	f.String("threshold-type", "", "Breakpoint threshold type (percentile/percent/stdev)")
	f.Float64("threshold-amount", 0, "Breakpoint threshold amount, 0 uses the type default")
	f.Int("buffer-size", 0, "Sentence window radius for the semantic strategy")
	f.Bool("add-start-index", false, "Record each chunk's start offset in its metadata")
}

// overridesFromFlags 只取显式设置的参数
func overridesFromFlags(cmd *cobra.Command) pipeline.Overrides {
	f := cmd.Flags()
	var o pipeline.Overrides

	o.LengthUnit, _ = f.GetString("length-unit")
	o.ThresholdType, _ = f.GetString("threshold-type")

	intFlag := func(name string) *int {
		if !f.Changed(name) {
			return nil
		}
		v, _ := f.GetInt(name)
		return &v
	}
	o.ChunkSize = intFlag("chunk-size")
	o.ChunkOverlap = intFlag("chunk-overlap")
	o.MinChunkSize = intFlag("min-chunk-size")
	o.MaxChunkSize = intFlag("max-chunk-size")
	o.BufferSize = intFlag("buffer-size")

	if f.Changed("threshold-amount") {
		v, _ := f.GetFloat64("threshold-amount")
		o.ThresholdAmount = &v
	}
	if f.Changed("add-start-index") {
		v, _ := f.GetBool("add-start-index")
		o.AddStartIndex = &v
	}
	return o
}

// strategyFromFlags --strategy 未设置时返回空串，使用配置中的默认策略
func strategyFromFlags(cmd *cobra.Command) string {
	s, _ := cmd.Flags().GetString("strategy")
	return s
}
