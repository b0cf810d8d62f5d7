package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	HubSpot   HubSpotConfig   `yaml:"hubspot" mapstructure:"hubspot"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Deals     DealsConfig     `yaml:"deals" mapstructure:"deals"`
	Owners    OwnersConfig    `yaml:"owners" mapstructure:"owners"`
	Enrich    EnrichConfig    `yaml:"enrich" mapstructure:"enrich"`
	Stage     StageConfig     `yaml:"stage" mapstructure:"stage"`
	Classify  ClassifyConfig  `yaml:"classify" mapstructure:"classify"`
	Export    ExportConfig    `yaml:"export" mapstructure:"export"`
	Extract   ExtractConfig   `yaml:"extract" mapstructure:"extract"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Auth      AuthConfig      `yaml:"auth" mapstructure:"auth"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// HubSpotConfig holds CRM API credentials and client tuning.
type HubSpotConfig struct {
	APIKey           string  `yaml:"api_key" mapstructure:"api_key"`
	BaseURL          string  `yaml:"base_url" mapstructure:"base_url"`
	RateLimitRPS     float64 `yaml:"rate_limit_rps" mapstructure:"rate_limit_rps"`
	MaxAttempts      int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int     `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int     `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	Backoff          string  `yaml:"backoff" mapstructure:"backoff"`
	TimeoutSecs      int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// Timeout returns the per-request HTTP timeout.
func (c HubSpotConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key         string  `yaml:"key" mapstructure:"key"`
	BaseURL     string  `yaml:"base_url" mapstructure:"base_url"`
	Model       string  `yaml:"model" mapstructure:"model"`
	MaxTokens   int64   `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature float64 `yaml:"temperature" mapstructure:"temperature"`
}

// DealsConfig configures deal enumeration.
type DealsConfig struct {
	Pipeline              string   `yaml:"pipeline" mapstructure:"pipeline"`
	PageSize              int      `yaml:"page_size" mapstructure:"page_size"`
	DefaultLookbackMonths int      `yaml:"default_lookback_months" mapstructure:"default_lookback_months"`
	Properties            []string `yaml:"properties" mapstructure:"properties"`
}

// OwnersConfig configures owner resolution.
type OwnersConfig struct {
	Properties  []string `yaml:"properties" mapstructure:"properties"`
	Concurrency int      `yaml:"concurrency" mapstructure:"concurrency"`
}

// EnrichConfig configures per-deal enrichment.
type EnrichConfig struct {
	BatchSize      int    `yaml:"batch_size" mapstructure:"batch_size"`
	BatchDelayMs   int    `yaml:"batch_delay_ms" mapstructure:"batch_delay_ms"`
	EngagementType string `yaml:"engagement_type" mapstructure:"engagement_type"`
	Scheduling     string `yaml:"scheduling" mapstructure:"scheduling"`
}

// BatchDelay returns the pause between enrichment batches.
func (c EnrichConfig) BatchDelay() time.Duration {
	return time.Duration(c.BatchDelayMs) * time.Millisecond
}

// StageConfig configures stage history resolution.
type StageConfig struct {
	PipelineID       string `yaml:"pipeline_id" mapstructure:"pipeline_id"`
	UnknownLabel     string `yaml:"unknown_label" mapstructure:"unknown_label"`
	PlaceholderLabel string `yaml:"placeholder_label" mapstructure:"placeholder_label"`
	BatchSize        int    `yaml:"batch_size" mapstructure:"batch_size"`
	BatchDelayMs     int    `yaml:"batch_delay_ms" mapstructure:"batch_delay_ms"`
}

// BatchDelay returns the pause between stage history batches.
func (c StageConfig) BatchDelay() time.Duration {
	return time.Duration(c.BatchDelayMs) * time.Millisecond
}

// ClassifyConfig configures the classification batch flow.
type ClassifyConfig struct {
	PromptPath       string `yaml:"prompt_path" mapstructure:"prompt_path"`
	PollIntervalSecs int    `yaml:"poll_interval_secs" mapstructure:"poll_interval_secs"`
	MaxPollAttempts  int    `yaml:"max_poll_attempts" mapstructure:"max_poll_attempts"`
	MalformedLines   string `yaml:"malformed_lines" mapstructure:"malformed_lines"`
	CompletionWindow string `yaml:"completion_window" mapstructure:"completion_window"`
}

// PollInterval returns the wait between batch status checks.
func (c ClassifyConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSecs) * time.Second
}

// PollBudget is the longest a caller waits on a batch before TimeoutError.
func (c ClassifyConfig) PollBudget() time.Duration {
	return c.PollInterval() * time.Duration(c.MaxPollAttempts)
}

// ExportConfig configures the CSV export.
type ExportConfig struct {
	ExcludeColumns []string `yaml:"exclude_columns" mapstructure:"exclude_columns"`
	OutputDir      string   `yaml:"output_dir" mapstructure:"output_dir"`
}

// ExtractConfig configures attachment text extraction.
type ExtractConfig struct {
	PdfToTextPath string `yaml:"pdftotext_path" mapstructure:"pdftotext_path"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port            int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins  []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	RequestTimeoutS int      `yaml:"request_timeout_secs" mapstructure:"request_timeout_secs"`
}

// AuthConfig holds the shared secret checked by the password endpoint.
type AuthConfig struct {
	Password string `yaml:"password" mapstructure:"password"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// legacyEnv maps config keys to the environment names used by earlier
// deployments.
var legacyEnv = map[string][]string{
	"hubspot.api_key": {"DEALS_HUBSPOT_API_KEY", "HUBSPOT_API_KEY"},
	"anthropic.key":   {"DEALS_ANTHROPIC_KEY", "ANTHROPIC_API_KEY", "OPEN_AI_KEY"},
	"auth.password":   {"DEALS_AUTH_PASSWORD", "APP_PASSWORD"},
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("DEALS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, names := range legacyEnv {
		if err := v.BindEnv(append([]string{key}, names...)...); err != nil {
			return nil, eris.Wrapf(err, "config: bind env %s", key)
		}
	}

	// Defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.request_timeout_secs", 900)
	v.SetDefault("hubspot.base_url", "https://api.hubapi.com")
	v.SetDefault("hubspot.rate_limit_rps", 10)
	v.SetDefault("hubspot.max_attempts", 3)
	v.SetDefault("hubspot.initial_backoff_ms", 1000)
	v.SetDefault("hubspot.max_backoff_ms", 30000)
	v.SetDefault("hubspot.backoff", "exponential")
	v.SetDefault("hubspot.timeout_secs", 30)
	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.max_tokens", 2500)
	v.SetDefault("anthropic.temperature", 0.5)
	v.SetDefault("deals.pipeline", "default")
	v.SetDefault("deals.page_size", 100)
	v.SetDefault("deals.default_lookback_months", 3)
	v.SetDefault("owners.properties", []string{"hubspot_owner_id", "team_member_1"})
	v.SetDefault("owners.concurrency", 4)
	v.SetDefault("enrich.batch_size", 4)
	v.SetDefault("enrich.batch_delay_ms", 1200)
	v.SetDefault("enrich.engagement_type", "EMAIL")
	v.SetDefault("enrich.scheduling", "batched")
	v.SetDefault("stage.pipeline_id", "default")
	v.SetDefault("stage.unknown_label", "drop")
	v.SetDefault("stage.placeholder_label", "Unknown Stage")
	v.SetDefault("stage.batch_size", 10)
	v.SetDefault("stage.batch_delay_ms", 1000)
	v.SetDefault("classify.prompt_path", "data/gpt_prompt.txt")
	v.SetDefault("classify.poll_interval_secs", 2)
	v.SetDefault("classify.max_poll_attempts", 300)
	v.SetDefault("classify.malformed_lines", "skip")
	v.SetDefault("classify.completion_window", "24h")
	v.SetDefault("export.output_dir", ".")
	v.SetDefault("extract.pdftotext_path", "pdftotext")

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

// Validate checks the settings a command mode needs. Modes: deals,
// export, recommend, serve. All problems are reported together.
func (c *Config) Validate(mode string) error {
	var errs []string

	if c.HubSpot.APIKey == "" {
		errs = append(errs, "hubspot.api_key is required (HUBSPOT_API_KEY)")
	}
	switch c.Enrich.Scheduling {
	case "batched", "pooled":
	default:
		errs = append(errs, fmt.Sprintf("enrich.scheduling must be batched or pooled, got %q", c.Enrich.Scheduling))
	}
	switch c.Stage.UnknownLabel {
	case "drop", "placeholder":
	default:
		errs = append(errs, fmt.Sprintf("stage.unknown_label must be drop or placeholder, got %q", c.Stage.UnknownLabel))
	}

	switch mode {
	case "recommend", "serve":
		if c.Anthropic.Key == "" {
			errs = append(errs, "anthropic.key is required (ANTHROPIC_API_KEY)")
		}
		switch c.Classify.MalformedLines {
		case "skip", "abort":
		default:
			errs = append(errs, fmt.Sprintf("classify.malformed_lines must be skip or abort, got %q", c.Classify.MalformedLines))
		}
	}
	if mode == "serve" {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server.port must be between 1 and 65535, got %d", c.Server.Port))
		}
		timeout := time.Duration(c.Server.RequestTimeoutS) * time.Second
		if timeout > 0 && c.Classify.PollBudget() >= timeout {
			errs = append(errs, fmt.Sprintf("classify poll budget %s must be shorter than server.request_timeout_secs (%s)",
				c.Classify.PollBudget(), timeout))
		}
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
