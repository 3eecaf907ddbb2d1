package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

//go:generate go run ../../cmd/schema/main.go schema.json

// Config holds the application configuration
type Config struct {
	Database struct {
		DSN             string `yaml:"dsn" json:"dsn" jsonschema:"default=file:digest.db?cache=shared&mode=rwc,description=Run ledger connection string"`
		MaxOpenConns    int    `yaml:"max_open_conns" json:"max_open_conns" jsonschema:"default=10,description=Maximum number of open connections"`
		MaxIdleConns    int    `yaml:"max_idle_conns" json:"max_idle_conns" jsonschema:"default=5,description=Maximum number of idle connections"`
		ConnMaxLifetime int    `yaml:"conn_max_lifetime" json:"conn_max_lifetime" jsonschema:"default=3600,description=Connection maximum lifetime in seconds"`
	} `yaml:"database" json:"database" jsonschema:"description=Run ledger database configuration"`

	LLM LLMConfig `yaml:"llm" json:"llm" jsonschema:"description=Model backend configuration"`

	Scoring ScoringConfig `yaml:"scoring" json:"scoring" jsonschema:"description=Scorer configuration"`

	Exploder ExploderConfig `yaml:"exploder" json:"exploder" jsonschema:"description=Listicle exploder configuration"`

	Dedup DedupConfig `yaml:"dedup" json:"dedup" jsonschema:"description=Dedup index configuration"`

	Feedback FeedbackConfig `yaml:"feedback" json:"feedback" jsonschema:"description=Feedback processor configuration"`
}

// LLMConfig holds model backend configuration
type LLMConfig struct {
	Backend     string        `yaml:"backend" json:"backend" jsonschema:"default=local,enum=local,enum=hosted,description=Model backend selection"`
	Endpoint    string        `yaml:"endpoint" json:"endpoint" jsonschema:"description=OpenAI-compatible API endpoint (defaults to http://localhost:1234/v1 for local)"`
	APIKey      string        `yaml:"api_key" json:"api_key" jsonschema:"description=API key (can use environment variable)"`
	Model       string        `yaml:"model" json:"model" jsonschema:"description=Model name (auto-detected for local backend when empty)"`
	Temperature float64       `yaml:"temperature" json:"temperature" jsonschema:"default=0.2,description=Temperature for response generation"`
	MaxTokens   int           `yaml:"max_tokens" json:"max_tokens" jsonschema:"default=512,description=Maximum tokens in response"`
	Timeout     time.Duration `yaml:"timeout" json:"timeout" jsonschema:"default=60s,description=Request timeout"`
	MaxWorkers  int           `yaml:"max_workers" json:"max_workers" jsonschema:"description=Concurrent scoring workers (defaults to 1 for local and 4 for hosted)"`
	UseJSONMode bool          `yaml:"use_json_mode" json:"use_json_mode" jsonschema:"default=true,description=Use JSON response format (disabled automatically when unsupported)"`
}

// ScoringConfig holds scorer-specific settings
type ScoringConfig struct {
	MaxTextChars     int `yaml:"max_text_chars" json:"max_text_chars" jsonschema:"default=3000,description=Article text budget per prompt in characters"`
	MaxRetries       int `yaml:"max_retries" json:"max_retries" jsonschema:"default=2,description=Parse-failure retries per item"`
	FeedbackExamples int `yaml:"feedback_examples" json:"feedback_examples" jsonschema:"default=10,description=Number of override examples to inject into the prompt"`
}

// ExploderConfig holds listicle exploder settings
type ExploderConfig struct {
	Enabled      bool `yaml:"enabled" json:"enabled" jsonschema:"default=false,description=Enable listicle explosion"`
	MaxTextChars int  `yaml:"max_text_chars" json:"max_text_chars" jsonschema:"default=6000,description=Article text budget for extraction in characters"`
	MaxTokens    int  `yaml:"max_tokens" json:"max_tokens" jsonschema:"default=2048,description=Maximum tokens in extraction response"`
}

// DedupConfig holds dedup index settings
type DedupConfig struct {
	Threshold   int           `yaml:"threshold" json:"threshold" jsonschema:"default=80,minimum=0,maximum=100,description=Minimum fuzzy match score"`
	CacheFile   string        `yaml:"cache_file" json:"cache_file" jsonschema:"default=.dedup_cache.json,description=Index cache file path"`
	CacheMaxAge time.Duration `yaml:"cache_max_age" json:"cache_max_age" jsonschema:"default=24h,description=Maximum cache age before rebuild"`
}

// FeedbackConfig holds feedback processor settings
type FeedbackConfig struct {
	ScanLimit       int `yaml:"scan_limit" json:"scan_limit" jsonschema:"default=200,description=How many recent feedback records to scan"`
	PatternMinCount int `yaml:"pattern_min_count" json:"pattern_min_count" jsonschema:"default=4,description=Minimum overrides of one kind to flag a pattern"`
}

// Load reads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // file path comes from CLI flag
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	// expand environment variables
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// set defaults for database
	if cfg.Database.DSN == "" {
		cfg.Database.DSN = "file:digest.db?cache=shared&mode=rwc&_txlock=immediate"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 10
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 3600
	}

	// set defaults for the model backend
	if cfg.LLM.Backend == "" {
		cfg.LLM.Backend = "local"
	}
	if cfg.LLM.Temperature == 0 {
		cfg.LLM.Temperature = 0.2
	}
	if cfg.LLM.MaxTokens == 0 {
		cfg.LLM.MaxTokens = 512
	}
	if cfg.LLM.Timeout == 0 {
		cfg.LLM.Timeout = 60 * time.Second
	}

	// set defaults for scoring
	if cfg.Scoring.MaxTextChars == 0 {
		cfg.Scoring.MaxTextChars = 3000
	}
	if cfg.Scoring.MaxRetries == 0 {
		cfg.Scoring.MaxRetries = 2
	}
	if cfg.Scoring.FeedbackExamples == 0 {
		cfg.Scoring.FeedbackExamples = 10
	}

	// set defaults for the exploder
	if cfg.Exploder.MaxTextChars == 0 {
		cfg.Exploder.MaxTextChars = 6000
	}
	if cfg.Exploder.MaxTokens == 0 {
		cfg.Exploder.MaxTokens = 2048
	}

	// set defaults for dedup
	if cfg.Dedup.Threshold == 0 {
		cfg.Dedup.Threshold = 80
	}
	if cfg.Dedup.CacheFile == "" {
		cfg.Dedup.CacheFile = ".dedup_cache.json"
	}
	if cfg.Dedup.CacheMaxAge == 0 {
		cfg.Dedup.CacheMaxAge = 24 * time.Hour
	}

	// set defaults for feedback
	if cfg.Feedback.ScanLimit == 0 {
		cfg.Feedback.ScanLimit = 200
	}
	if cfg.Feedback.PatternMinCount == 0 {
		cfg.Feedback.PatternMinCount = 4
	}

	// validate configuration
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	// verify against embedded schema
	if err := VerifyAgainstEmbeddedSchema(&cfg); err != nil {
		// log warning but don't fail - schema validation is supplementary
		fmt.Printf("warning: schema validation failed: %v\n", err)
	}

	return &cfg, nil
}

// validate checks configuration for correctness
func validate(cfg *Config) error {
	if cfg.LLM.Backend != "local" && cfg.LLM.Backend != "hosted" {
		return fmt.Errorf("llm.backend must be local or hosted, got %q", cfg.LLM.Backend)
	}
	if cfg.LLM.Backend == "hosted" && cfg.LLM.APIKey == "" {
		return fmt.Errorf("llm.api_key is required for the hosted backend")
	}
	if cfg.LLM.Backend == "hosted" && cfg.LLM.Model == "" {
		return fmt.Errorf("llm.model is required for the hosted backend")
	}
	if cfg.LLM.Temperature < 0 || cfg.LLM.Temperature > 2 {
		return fmt.Errorf("llm.temperature must be between 0 and 2")
	}
	if cfg.LLM.MaxWorkers < 0 {
		return fmt.Errorf("llm.max_workers must be non-negative")
	}

	if cfg.Scoring.MaxTextChars < 100 {
		return fmt.Errorf("scoring.max_text_chars must be at least 100")
	}
	if cfg.Scoring.MaxRetries < 0 {
		return fmt.Errorf("scoring.max_retries must be non-negative")
	}

	if cfg.Dedup.Threshold < 0 || cfg.Dedup.Threshold > 100 {
		return fmt.Errorf("dedup.threshold must be between 0 and 100")
	}

	if cfg.Feedback.PatternMinCount < 1 {
		return fmt.Errorf("feedback.pattern_min_count must be at least 1")
	}

	return nil
}

// GetLLMConfig returns model backend configuration
func (c *Config) GetLLMConfig() LLMConfig {
	return c.LLM
}

// GetDedupConfig returns dedup index configuration
func (c *Config) GetDedupConfig() DedupConfig {
	return c.Dedup
}
