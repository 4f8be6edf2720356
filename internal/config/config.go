package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	LLM          LLMConfig       `yaml:"llm" mapstructure:"llm"`
	Gemini       GeminiConfig    `yaml:"gemini" mapstructure:"gemini"`
	Anthropic    AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Retry        RetryConfig     `yaml:"retry" mapstructure:"retry"`
	Batch        BatchConfig     `yaml:"batch" mapstructure:"batch"`
	Store        StoreConfig     `yaml:"store" mapstructure:"store"`
	Log          LogConfig       `yaml:"log" mapstructure:"log"`
	EntregasFile string          `yaml:"entregas_file" mapstructure:"entregas_file"`
}

// LLMConfig selects the completion provider and its sampling settings.
type LLMConfig struct {
	Provider          string  `yaml:"provider" mapstructure:"provider"`
	Temperature       float64 `yaml:"temperature" mapstructure:"temperature"`
	MaxOutputTokens   int     `yaml:"max_output_tokens" mapstructure:"max_output_tokens"`
	TopP              float64 `yaml:"top_p" mapstructure:"top_p"`
	TopK              int     `yaml:"top_k" mapstructure:"top_k"`
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
}

// GeminiConfig configures the Gemini API client.
type GeminiConfig struct {
	Key   string `yaml:"key" mapstructure:"key"`
	Model string `yaml:"model" mapstructure:"model"`
}

// AnthropicConfig configures the Anthropic API client.
type AnthropicConfig struct {
	Key   string `yaml:"key" mapstructure:"key"`
	Model string `yaml:"model" mapstructure:"model"`
}

// RetryConfig configures retries of model calls.
type RetryConfig struct {
	MaxAttempts      int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int     `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int     `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	Multiplier       float64 `yaml:"multiplier" mapstructure:"multiplier"`
	JitterFraction   float64 `yaml:"jitter_fraction" mapstructure:"jitter_fraction"`
}

// BatchConfig configures batch processing.
type BatchConfig struct {
	MaxConcurrentProjects int `yaml:"max_concurrent_projects" mapstructure:"max_concurrent_projects"`
}

// StoreConfig configures the run history database.
type StoreConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Model returns the model name of the configured provider.
func (c *Config) Model() string {
	if c.LLM.Provider == "anthropic" {
		return c.Anthropic.Model
	}
	return c.Gemini.Model
}

// Validate checks the settings the analysis run depends on.
func (c *Config) Validate() error {
	switch c.LLM.Provider {
	case "gemini", "anthropic":
	default:
		return eris.Errorf("config: unknown llm.provider %q", c.LLM.Provider)
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 1.9 {
		return eris.Errorf("config: llm.temperature %.2f out of range [0, 1.9]", c.LLM.Temperature)
	}
	if c.LLM.MaxOutputTokens <= 0 {
		return eris.New("config: llm.max_output_tokens must be positive")
	}
	if c.Batch.MaxConcurrentProjects < 1 {
		return eris.New("config: batch.max_concurrent_projects must be at least 1")
	}
	return nil
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("ENTREGA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Provider SDKs document their own variables; accept them as fallbacks.
	if err := v.BindEnv("gemini.key", "ENTREGA_GEMINI_KEY", "GEMINI_API_KEY"); err != nil {
		return nil, eris.Wrap(err, "config: bind gemini key")
	}
	if err := v.BindEnv("anthropic.key", "ENTREGA_ANTHROPIC_KEY", "ANTHROPIC_API_KEY"); err != nil {
		return nil, eris.Wrap(err, "config: bind anthropic key")
	}

	// Defaults
	v.SetDefault("llm.provider", "gemini")
	v.SetDefault("llm.temperature", 0.1)
	v.SetDefault("llm.max_output_tokens", 8192)
	v.SetDefault("llm.top_p", 0.95)
	v.SetDefault("llm.top_k", 40)
	v.SetDefault("llm.requests_per_second", 1.0)
	v.SetDefault("gemini.key", "")
	v.SetDefault("gemini.model", "gemini-2.5-flash-lite")
	v.SetDefault("anthropic.key", "")
	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.initial_backoff_ms", 2000)
	v.SetDefault("retry.max_backoff_ms", 30000)
	v.SetDefault("retry.multiplier", 2.0)
	v.SetDefault("retry.jitter_fraction", 0.25)
	v.SetDefault("batch.max_concurrent_projects", 1)
	v.SetDefault("store.path", "entrega-runs.db")
	v.SetDefault("entregas_file", "entregas.yaml")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger builds the zap logger described by cfg and installs it as the
// global logger.
func InitLogger(cfg LogConfig) (*zap.Logger, error) {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return nil, eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return logger, nil
}
