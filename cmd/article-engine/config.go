// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/article-engine/internal/corpus"
	"github.com/pdiddy/article-engine/internal/generation"
	"github.com/pdiddy/article-engine/internal/history"
	"github.com/pdiddy/article-engine/internal/secrets"
	"github.com/pdiddy/article-engine/pkg/types"
)

const (
	configName = "article-engine"
	envPrefix  = "ARTICLE_ENGINE"
)

// configure points v at the config file and environment and registers every
// key of types.DefaultConfig so that environment overrides reach Unmarshal.
// A missing config file is not an error.
func configure(v *viper.Viper, cfgFile string) error {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName(configName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", configName))
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := registerDefaults(v, types.DefaultConfig()); err != nil {
		return err
	}
	// APIKey is not serialised, so it is not among the defaults.
	if err := v.BindEnv("generation.api_key"); err != nil {
		return fmt.Errorf("binding api key: %w", err)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("reading config: %w", err)
	}
	return nil
}

func registerDefaults(v *viper.Viper, cfg types.Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling default config: %w", err)
	}
	var tree map[string]any
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return fmt.Errorf("decoding default config: %w", err)
	}
	setDefaults(v, "", tree)
	return nil
}

func setDefaults(v *viper.Viper, prefix string, tree map[string]any) {
	for k, val := range tree {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if sub, ok := val.(map[string]any); ok {
			setDefaults(v, key, sub)
			continue
		}
		v.SetDefault(key, val)
	}
}

// decodeConfig merges v's settings over types.DefaultConfig.
func decodeConfig(v *viper.Viper) (types.Config, error) {
	cfg := types.DefaultConfig()
	if err := v.Unmarshal(&cfg); err != nil {
		return types.Config{}, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Pipeline.Validate(); err != nil {
		return types.Config{}, fmt.Errorf("pipeline config: %w", err)
	}
	return cfg, nil
}

// applySecrets fills backend credentials the config left empty.
func applySecrets(cfg *types.Config, s secrets.Secrets) {
	g := &cfg.Generation
	switch g.Backend {
	case types.BackendOpenAI:
		g.APIKey = s.Lookup(secrets.OpenAIAPIKey, g.APIKey)
	case types.BackendClaude:
		g.APIKey = s.Lookup(secrets.AnthropicAPIKey, g.APIKey)
	case types.BackendOllama, "":
		g.BaseURL = s.Lookup(secrets.OllamaBaseURL, g.BaseURL)
	}
}

// newLogger builds a JSON production logger at level, or a console
// development logger when verbose is set.
func newLogger(level string, verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopmentConfig().Build()
	}
	cfg := zap.NewProductionConfig()
	if level != "" {
		lvl, err := zap.ParseAtomicLevel(level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", level, err)
		}
		cfg.Level = lvl
	}
	return cfg.Build()
}

func newClient(cfg types.GenerationConfig) (*generation.Client, error) {
	backend, err := generation.NewBackend(cfg, nil)
	if err != nil {
		return nil, err
	}
	return generation.NewClient(backend,
		generation.WithMaxRetries(cfg.MaxRetries),
		generation.WithBackoff(cfg.BackoffBase),
		generation.WithLogger(logger),
	), nil
}

// openCorpus opens the exemplar store and loads it into a manager. With seed
// set, an empty corpus receives the built-in exemplars.
func openCorpus(ctx context.Context, cfg types.CorpusConfig, seed bool) (*corpus.Manager, *corpus.Store, error) {
	store, err := corpus.OpenStore(cfg.DBPath)
	if err != nil {
		return nil, nil, err
	}
	m := corpus.NewManager(
		corpus.WithStore(store),
		corpus.WithLogger(logger),
		corpus.WithMaxFeatures(cfg.MaxFeatures),
	)
	if err := m.Load(ctx); err != nil {
		store.Close()
		return nil, nil, err
	}
	if seed && m.Size() == 0 {
		docs, err := corpus.SeedDocuments()
		if err != nil {
			store.Close()
			return nil, nil, err
		}
		summary, err := m.Ingest(ctx, docs)
		if err != nil {
			store.Close()
			return nil, nil, fmt.Errorf("seeding corpus: %w", err)
		}
		logger.Info("seeded empty corpus", zap.Int("exemplars", summary.Added))
	}
	return m, store, nil
}

func openHistory() (*history.Store, error) {
	return history.Open(appConfig.HistoryDBPath)
}
