package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/fyerfyer/doc-ingest/api"
	"github.com/fyerfyer/doc-ingest/api/handler"
	"github.com/fyerfyer/doc-ingest/api/middleware"
	"github.com/fyerfyer/doc-ingest/config"
	"github.com/fyerfyer/doc-ingest/internal/metrics"
	"github.com/fyerfyer/doc-ingest/pkg/storage"
)

func serveCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP ingestion service",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, v)
			if err != nil {
				return err
			}
			return runServer(cfg)
		},
	}

	cmd.Flags().Int("port", 0, "Server port")
	cmd.Flags().String("mode", "", "Run mode (debug/release/test)")
	_ = v.BindPFlag("server.port", cmd.Flags().Lookup("port"))
	_ = v.BindPFlag("server.mode", cmd.Flags().Lookup("mode"))
	return cmd
}

func runServer(cfg *config.Config) error {
	gin.SetMode(cfg.Server.Mode)

	logger := setupLogger(cfg.Log)
	middleware.SetLogger(logger)
	logger.Info("Starting document ingestion service...")

	m := metrics.New()

	uploads, outputs, err := setupStorage(cfg.Storage)
	if err != nil {
		return err
	}

	p, embedderName := setupPipeline(cfg, logger, m)

	// 暂存文件与产物的保留策略
	var janitor *storage.Janitor
	if cfg.Retention.Enabled {
		janitor, err = storage.NewJanitor(
			storage.RetentionPolicy{MaxAge: cfg.Retention.MaxAge, Schedule: cfg.Retention.Schedule},
			map[string]storage.Storage{"uploads": uploads, "outputs": outputs},
			storage.WithJanitorLogger(logger),
			storage.WithPurgeHook(m.ObservePurge),
		)
		if err != nil {
			return err
		}
		janitor.Start()
	} else {
		logger.Warn("Retention disabled, staged uploads and artifacts are kept until removed manually")
	}

	r := api.SetupRouter(
		handler.NewIngestHandler(p, uploads, outputs, cfg.Chunker, cfg.Server.MaxUploadSize),
		handler.NewHealthHandler(embedderName),
		m,
	)
	r.MaxMultipartMemory = cfg.Server.MaxUploadSize

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// 优雅关闭
	errCh := make(chan error, 1)
	go func() {
		logger.WithField("addr", srv.Addr).Info("Server is running")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// 等待终止信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		return fmt.Errorf("failed to start server: %w", err)
	}
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if janitor != nil {
		if err := janitor.Stop(ctx); err != nil {
			logger.WithField("error", err).Warn("Retention janitor did not stop in time")
		}
	}
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("Server exited")
	return nil
}

