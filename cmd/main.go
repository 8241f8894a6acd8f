package main

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func main() {
	v := viper.New()

	rootCmd := &cobra.Command{
		Use:           "doc-ingest",
		Short:         "Document ingestion and chunking service",
		Long:          "Extracts text from pdf, docx, txt, csv, xls and xlsx files, normalizes it and splits it into JSONL chunk records.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// 全局参数
	rootCmd.PersistentFlags().String("config", "", "Path to the config file")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug/info/warn/error)")
	_ = v.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))

	rootCmd.AddCommand(serveCmd(v))
	rootCmd.AddCommand(ingestCmd(v))

	if err := rootCmd.Execute(); err != nil {
		logrus.Error(err)
		os.Exit(1)
	}
}
