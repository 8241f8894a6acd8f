package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/fyerfyer/doc-ingest/internal/pipeline"
)

func ingestCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest <file>",
		Short: "Chunk a local document into a JSONL file",
		Long: "Runs extraction, normalization and chunking on one local file. " +
			"The artifact is written atomically to --output, or to stdout with --output -.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, v)
			if err != nil {
				return err
			}

			logger := setupLogger(cfg.Log)
			// stdout 用于输出产物时日志改写到 stderr
			output, _ := cmd.Flags().GetString("output")
			if output == "-" {
				logger.SetOutput(os.Stderr)
			}

			chunkCfg, err := pipeline.ChunkerSettings(cfg.Chunker, strategyFromFlags(cmd), overridesFromFlags(cmd))
			if err != nil {
				return err
			}

			p, _ := setupPipeline(cfg, logger, nil)
			req := pipeline.Request{Path: args[0], Config: chunkCfg}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if output == "-" {
				result, err := p.Process(ctx, req)
				if err != nil {
					return err
				}
				data, err := pipeline.Marshal(result.Records)
				if err != nil {
					return err
				}
				_, err = os.Stdout.Write(data)
				return err
			}

			if output == "" {
				output = filepath.Join(cfg.Storage.OutputDir, filepath.Base(args[0])+".jsonl")
			}
			result, err := p.WriteFile(ctx, req, output)
			if err != nil {
				return err
			}

			logger.WithFields(logrus.Fields{
				"output":   output,
				"chunks":   len(result.Records),
				"strategy": result.Strategy,
			}).Info("Artifact written")
			return nil
		},
	}

	cmd.Flags().StringP("output", "o", "", "Output path, defaults to <output_dir>/<file>.jsonl")
	cmd.Flags().Bool("reject-empty", false, "Fail when the document has no text after normalization")
	_ = v.BindPFlag("pipeline.reject_empty", cmd.Flags().Lookup("reject-empty"))
	cmd.Flags().Bool("fallback", false, "Re-split with the recursive strategy when embedding fails")
	_ = v.BindPFlag("chunker.fallback_on_embedding_failure", cmd.Flags().Lookup("fallback"))
	chunkingFlags(cmd)
	return cmd
}
