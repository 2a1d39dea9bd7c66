// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// HTTPConfig holds shared HTTP settings used when question configurations
// are fetched from a remote location.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "ontoguide/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent"`

	// MaxRetries is the number of retries on HTTP 429 (default 5).
	MaxRetries int `json:"max_retries" yaml:"max_retries"`
}

// OracleBackend identifies the service that answers extraction questions.
type OracleBackend string

const (
	BackendOpenRouter OracleBackend = "openrouter"
	BackendClaude     OracleBackend = "claude"
)

// OracleConfig holds settings for the question-answering oracle.
type OracleConfig struct {
	// Backend selects the oracle service: openrouter or claude.
	Backend OracleBackend `json:"backend" yaml:"backend"`

	// Model is the default model identifier. A question may override it
	// with its preferred model.
	Model string `json:"model" yaml:"model"`

	// BaseURL overrides the API endpoint (OpenAI-compatible backends only).
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"`

	// APIKey is the authentication key for the oracle API.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// MaxRetries is the number of retry attempts for failed calls (default 3).
	MaxRetries int `json:"max_retries" yaml:"max_retries"`

	// MaxTokens caps the answer length (Claude only, default 1024).
	MaxTokens int `json:"max_tokens" yaml:"max_tokens"`

	// RequestsPerSecond limits the oracle call rate. Zero disables limiting.
	RequestsPerSecond float64 `json:"requests_per_second" yaml:"requests_per_second"`

	// KeepHistory sends previous questions and answers with each new question.
	KeepHistory bool `json:"keep_history" yaml:"keep_history"`
}

// OntologyConfig holds settings for loading the category graph.
type OntologyConfig struct {
	// Path is the ontology YAML file.
	Path string `json:"path" yaml:"path"`

	// RootClass overrides the ontology's declared root class, the type given
	// to the document subject.
	RootClass string `json:"root_class,omitempty" yaml:"root_class,omitempty"`

	// Prefixes are namespace prefixes stripped from names in expressions
	// (e.g. "onto.").
	Prefixes []string `json:"prefixes,omitempty" yaml:"prefixes,omitempty"`
}

// TraversalMode selects which edges the category DFS follows.
type TraversalMode string

const (
	TraversalSubclassOnly TraversalMode = "subclass"
	TraversalCombined     TraversalMode = "combined"
)

// AnalysisConfig holds settings for the document analysis stage.
type AnalysisConfig struct {
	// RootCategories are the categories analyzed for every document.
	RootCategories []string `json:"root_categories" yaml:"root_categories"`

	// Mode selects the traversal edges (default combined).
	Mode TraversalMode `json:"mode" yaml:"mode"`

	// MaxDepth limits the traversal depth. Negative means unlimited.
	MaxDepth int `json:"max_depth" yaml:"max_depth"`
}

// QuestionsConfig holds settings for the question configuration store.
type QuestionsConfig struct {
	HTTPConfig `yaml:",inline"`

	// CacheSize is the number of question documents kept in memory (default 32).
	CacheSize int `json:"cache_size" yaml:"cache_size"`

	// BaseDir resolves relative file references.
	BaseDir string `json:"base_dir,omitempty" yaml:"base_dir,omitempty"`
}

// StoreConfig holds settings for the results store.
type StoreConfig struct {
	// ResultsDir is the base directory for results (contains batches/, index/, export/).
	ResultsDir string `json:"results_dir" yaml:"results_dir"`

	// MaxResults is the default maximum number of search results (default 20).
	MaxResults int `json:"max_results" yaml:"max_results"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	// Level is the minimum level: debug, info, warn, error (default info).
	Level string `json:"level" yaml:"level"`

	// JSON selects structured JSON output instead of console output.
	JSON bool `json:"json" yaml:"json"`

	// File, when set, also writes logs to a rotating file.
	File string `json:"file,omitempty" yaml:"file,omitempty"`

	// MaxSizeMB is the size at which the log file rotates (default 10).
	MaxSizeMB int `json:"max_size_mb" yaml:"max_size_mb"`

	// MaxBackups is the number of rotated files kept (default 3).
	MaxBackups int `json:"max_backups" yaml:"max_backups"`
}

// Config groups all settings for the ontoguide pipeline.
type Config struct {
	Oracle    OracleConfig    `json:"oracle" yaml:"oracle"`
	Ontology  OntologyConfig  `json:"ontology" yaml:"ontology"`
	Analysis  AnalysisConfig  `json:"analysis" yaml:"analysis"`
	Questions QuestionsConfig `json:"questions" yaml:"questions"`
	Store     StoreConfig     `json:"store" yaml:"store"`
	Log       LogConfig       `json:"log" yaml:"log"`
}
