// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/viper"

	"github.com/pdiddy/ontoguide/internal/extract"
	"github.com/pdiddy/ontoguide/internal/ontology"
	"github.com/pdiddy/ontoguide/internal/questions"
	"github.com/pdiddy/ontoguide/internal/secrets"
	"github.com/pdiddy/ontoguide/pkg/types"
)

const (
	defaultModel     = "openai/gpt-4o-mini"
	defaultUserAgent = "ontoguide/0.1"
	defaultTimeout   = 30 * time.Second
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("oracle.backend", string(types.BackendOpenRouter))
	v.SetDefault("oracle.model", defaultModel)
	v.SetDefault("oracle.max_retries", 3)
	v.SetDefault("oracle.max_tokens", 1024)
	v.SetDefault("ontology.path", "ontology.yaml")
	v.SetDefault("analysis.mode", string(types.TraversalCombined))
	v.SetDefault("analysis.max_depth", ontology.NoDepthLimit)
	v.SetDefault("questions.timeout", defaultTimeout)
	v.SetDefault("questions.user_agent", defaultUserAgent)
	v.SetDefault("questions.max_retries", 5)
	v.SetDefault("questions.cache_size", 32)
	v.SetDefault("store.results_dir", "results")
	v.SetDefault("store.max_results", 20)
	v.SetDefault("log.level", "info")
}

// loadConfig assembles the pipeline settings from v. The oracle API key
// comes from oracle.api_key, then .secrets/, then the environment.
func loadConfig(v *viper.Viper) (types.Config, error) {
	cfg := types.Config{
		Oracle: types.OracleConfig{
			Backend:           types.OracleBackend(v.GetString("oracle.backend")),
			Model:             v.GetString("oracle.model"),
			BaseURL:           v.GetString("oracle.base_url"),
			MaxRetries:        v.GetInt("oracle.max_retries"),
			MaxTokens:         v.GetInt("oracle.max_tokens"),
			RequestsPerSecond: v.GetFloat64("oracle.requests_per_second"),
			KeepHistory:       v.GetBool("oracle.keep_history"),
		},
		Ontology: types.OntologyConfig{
			Path:      v.GetString("ontology.path"),
			RootClass: v.GetString("ontology.root_class"),
			Prefixes:  v.GetStringSlice("ontology.prefixes"),
		},
		Analysis: types.AnalysisConfig{
			RootCategories: v.GetStringSlice("analysis.root_categories"),
			Mode:           types.TraversalMode(v.GetString("analysis.mode")),
			MaxDepth:       v.GetInt("analysis.max_depth"),
		},
		Questions: types.QuestionsConfig{
			HTTPConfig: types.HTTPConfig{
				Timeout:    v.GetDuration("questions.timeout"),
				UserAgent:  v.GetString("questions.user_agent"),
				MaxRetries: v.GetInt("questions.max_retries"),
			},
			CacheSize: v.GetInt("questions.cache_size"),
			BaseDir:   v.GetString("questions.base_dir"),
		},
		Store: storeConfig(v),
		Log:   logConfig(v),
	}

	switch cfg.Analysis.Mode {
	case types.TraversalCombined, types.TraversalSubclassOnly:
	default:
		return cfg, errors.Newf("unsupported traversal mode %q: use combined or subclass", cfg.Analysis.Mode)
	}
	cfg.Oracle.APIKey = secrets.Resolve(loadedSecrets, secrets.KeyFor(cfg.Oracle.Backend), v.GetString("oracle.api_key"))
	return cfg, nil
}

func storeConfig(v *viper.Viper) types.StoreConfig {
	return types.StoreConfig{
		ResultsDir: v.GetString("store.results_dir"),
		MaxResults: v.GetInt("store.max_results"),
	}
}

func logConfig(v *viper.Viper) types.LogConfig {
	return types.LogConfig{
		Level:      v.GetString("log.level"),
		JSON:       v.GetBool("log.json"),
		File:       v.GetString("log.file"),
		MaxSizeMB:  v.GetInt("log.max_size_mb"),
		MaxBackups: v.GetInt("log.max_backups"),
	}
}

// loadOntology reads the configured ontology and applies the root class
// and prefix overrides.
func loadOntology(cfg types.OntologyConfig) (*ontology.Ontology, error) {
	onto, err := ontology.Load(cfg.Path)
	if err != nil {
		return nil, err
	}
	if cfg.RootClass != "" {
		onto.Root = cfg.RootClass
	}
	onto.Prefixes = append(onto.Prefixes, cfg.Prefixes...)
	return onto, nil
}

// newAnalyzer wires the ontology, question store, and analysis settings.
func newAnalyzer(cfg types.Config) (*extract.Analyzer, error) {
	onto, err := loadOntology(cfg.Ontology)
	if err != nil {
		return nil, err
	}
	qs, err := questions.NewStore(cfg.Questions, logger)
	if err != nil {
		return nil, err
	}
	return extract.NewAnalyzer(onto, qs, cfg.Analysis, logger), nil
}
