package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Veraticus/the-insight-must-flow/internal/analytics"
	"github.com/Veraticus/the-insight-must-flow/internal/llm"
)

// EnvPrefix is the prefix viper uses for environment overrides, e.g.
// INSIGHT_DATABASE_PATH.
const EnvPrefix = "INSIGHT"

// Analytics holds the active-user and segment thresholds.
type Analytics struct {
	Strategy        analytics.Strategy
	MinTransactions int
	MaxUsers        int
	SegmentMaxUsers int
	CacheStats      bool
}

// Config is the resolved application configuration.
type Config struct {
	LLM          llm.Config
	Embedding    llm.EmbeddingConfig
	Ethics       llm.EthicsConfig
	DatabasePath string
	PromptsFile  string
	ReportsDir   string
	Analytics    Analytics
	InputRate    float64 // USD per input token
	OutputRate   float64 // USD per output token
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("database.path", "~/.local/share/insight/insight.db")

	v.SetDefault("llm.provider", "anthropic")
	v.SetDefault("llm.temperature", 0.0)
	v.SetDefault("llm.max_tokens", 1024)
	v.SetDefault("llm.max_retries", 3)
	v.SetDefault("llm.retry_delay", time.Second)
	v.SetDefault("llm.rate_limit", 50) // requests per minute
	v.SetDefault("llm.timeout", 60*time.Second)
	v.SetDefault("llm.input_rate", 0.000015)
	v.SetDefault("llm.output_rate", 0.000075)

	v.SetDefault("embedding.provider", "huggingface")
	v.SetDefault("embedding.cache_ttl", time.Hour)
	v.SetDefault("ethics.cache_ttl", time.Hour)
	v.SetDefault("ethics.timeout", 30*time.Second)

	v.SetDefault("reports.dir", "reports")

	v.SetDefault("analytics.min_transactions", 3)
	v.SetDefault("analytics.max_users", 1000)
	v.SetDefault("analytics.segment_max_users", 50)
	v.SetDefault("analytics.segment_strategy", string(analytics.StrategyLatest))
	v.SetDefault("analytics.cache_stats", true)
}

// Load resolves the configuration from v. Keys left empty fall back to the
// provider's conventional environment variable.
func Load(v *viper.Viper) (*Config, error) {
	strategy, err := analytics.ParseStrategy(v.GetString("analytics.segment_strategy"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		DatabasePath: ExpandPath(v.GetString("database.path")),
		PromptsFile:  ExpandPath(v.GetString("prompts.file")),
		ReportsDir:   ExpandPath(v.GetString("reports.dir")),
		InputRate:    v.GetFloat64("llm.input_rate"),
		OutputRate:   v.GetFloat64("llm.output_rate"),
		LLM: llm.Config{
			Provider:    strings.ToLower(v.GetString("llm.provider")),
			APIKey:      v.GetString("llm.api_key"),
			Model:       v.GetString("llm.model"),
			BaseURL:     v.GetString("llm.base_url"),
			Temperature: v.GetFloat64("llm.temperature"),
			MaxTokens:   v.GetInt("llm.max_tokens"),
			MaxRetries:  v.GetInt("llm.max_retries"),
			RetryDelay:  v.GetDuration("llm.retry_delay"),
			RateLimit:   v.GetInt("llm.rate_limit"),
			Timeout:     v.GetDuration("llm.timeout"),
		},
		Embedding: llm.EmbeddingConfig{
			Provider: strings.ToLower(v.GetString("embedding.provider")),
			APIKey:   v.GetString("embedding.api_key"),
			Model:    v.GetString("embedding.model"),
			BaseURL:  v.GetString("embedding.base_url"),
			CacheTTL: v.GetDuration("embedding.cache_ttl"),
		},
		Ethics: llm.EthicsConfig{
			APIKey:   v.GetString("ethics.api_key"),
			Model:    v.GetString("ethics.model"),
			BaseURL:  v.GetString("ethics.base_url"),
			CacheTTL: v.GetDuration("ethics.cache_ttl"),
			Timeout:  v.GetDuration("ethics.timeout"),
		},
		Analytics: Analytics{
			Strategy:        strategy,
			MinTransactions: v.GetInt("analytics.min_transactions"),
			MaxUsers:        v.GetInt("analytics.max_users"),
			SegmentMaxUsers: v.GetInt("analytics.segment_max_users"),
			CacheStats:      v.GetBool("analytics.cache_stats"),
		},
	}

	if cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = providerKey(cfg.LLM.Provider)
	}
	if cfg.Embedding.APIKey == "" {
		cfg.Embedding.APIKey = providerKey(cfg.Embedding.Provider)
	}
	if cfg.Ethics.APIKey == "" {
		cfg.Ethics.APIKey = os.Getenv("HF_TOKEN")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail later in a confusing way.
// API keys are not required here; commands that call a provider check them.
func (c *Config) Validate() error {
	if c.DatabasePath == "" {
		return fmt.Errorf("database.path must be set")
	}
	if c.LLM.Timeout < 0 {
		return fmt.Errorf("llm.timeout must not be negative")
	}
	if c.InputRate < 0 || c.OutputRate < 0 {
		return fmt.Errorf("llm token rates must not be negative")
	}
	if c.Analytics.MinTransactions < 0 || c.Analytics.MaxUsers < 0 || c.Analytics.SegmentMaxUsers < 0 {
		return fmt.Errorf("analytics thresholds must not be negative")
	}
	return nil
}

func providerKey(provider string) string {
	switch provider {
	case "anthropic":
		return os.Getenv("ANTHROPIC_API_KEY")
	case "openai":
		return os.Getenv("OPENAI_API_KEY")
	case "huggingface", "hf":
		return os.Getenv("HF_TOKEN")
	default:
		return ""
	}
}
