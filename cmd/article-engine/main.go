// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the article-engine CLI.
package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/pdiddy/article-engine/internal/secrets"
	"github.com/pdiddy/article-engine/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

var (
	// appConfig is the merged configuration: defaults, config file,
	// environment, then flags.
	appConfig = types.DefaultConfig()

	logger = zap.NewNop()
)

// rootCmd is the base command for the article-engine CLI.
var rootCmd = &cobra.Command{
	Use:   "article-engine",
	Short: "Generate house-style business articles with a local or hosted LLM",
	Long: `article-engine turns a short content request into a reviewed article.
A researcher, writer, reviewer, and rewriter run as stages of one pipeline;
drafts are scored against a rubric and rewritten until they clear the
acceptance threshold or the round budget runs out.

Style is conditioned on an exemplar corpus managed with "corpus", and
every run is recorded in a local history database ("history").`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfgFile, _ := cmd.Flags().GetString("config")
		if err := configure(viper.GetViper(), cfgFile); err != nil {
			return err
		}
		cfg, err := decodeConfig(viper.GetViper())
		if err != nil {
			return err
		}

		verbose, _ := cmd.Flags().GetBool("verbose")
		l, err := newLogger(cfg.LogLevel, verbose)
		if err != nil {
			return err
		}
		logger = l
		if used := viper.ConfigFileUsed(); used != "" {
			logger.Debug("using config file", zap.String("path", used))
		}

		secretsDir, _ := cmd.Flags().GetString("secrets-dir")
		s, err := secrets.Load(secretsDir, logger)
		if err != nil {
			return err
		}
		if len(s) > 0 {
			logger.Debug("loaded secrets", zap.Strings("keys", s.Keys()))
		}
		applySecrets(&cfg, s)
		appConfig = cfg
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file (default: ./article-engine.yaml or ~/.config/article-engine/article-engine.yaml)")
	rootCmd.PersistentFlags().String("secrets-dir", ".secrets", "directory of secret files (openai-api-key, anthropic-api-key, ollama-base-url)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "human-readable debug logging")
	rootCmd.PersistentFlags().String("backend", "", "generation backend: ollama, openai, claude")
	rootCmd.PersistentFlags().String("model", "", "generation model identifier")

	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("generation.backend", rootCmd.PersistentFlags().Lookup("backend"))
	viper.BindPFlag("generation.model", rootCmd.PersistentFlags().Lookup("model"))
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
