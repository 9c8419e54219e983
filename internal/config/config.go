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
	Store         StoreConfig         `yaml:"store" mapstructure:"store"`
	Log           LogConfig           `yaml:"log" mapstructure:"log"`
	Server        ServerConfig        `yaml:"server" mapstructure:"server"`
	Registry      APIConfig           `yaml:"registry" mapstructure:"registry"`
	Search        APIConfig           `yaml:"search" mapstructure:"search"`
	Apollo        APIConfig           `yaml:"apollo" mapstructure:"apollo"`
	Hunter        APIConfig           `yaml:"hunter" mapstructure:"hunter"`
	GitHub        APIConfig           `yaml:"github" mapstructure:"github"`
	Resend        APIConfig           `yaml:"resend" mapstructure:"resend"`
	Website       APIConfig           `yaml:"website" mapstructure:"website"`
	Anthropic     AnthropicConfig     `yaml:"anthropic" mapstructure:"anthropic"`
	Discovery     DiscoveryConfig     `yaml:"discovery" mapstructure:"discovery"`
	Enrichment    EnrichmentConfig    `yaml:"enrichment" mapstructure:"enrichment"`
	Qualification QualificationConfig `yaml:"qualification" mapstructure:"qualification"`
	Matching      MatchingConfig      `yaml:"matching" mapstructure:"matching"`
	Outreach      OutreachConfig      `yaml:"outreach" mapstructure:"outreach"`
	Schedule      ScheduleConfig      `yaml:"schedule" mapstructure:"schedule"`
	Cleanup       CleanupConfig       `yaml:"cleanup" mapstructure:"cleanup"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// ServerConfig configures the ops API.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// APIConfig holds the base URL and inter-call spacing for one external API.
// Keys are per user and live in the store, not here.
type APIConfig struct {
	BaseURL   string `yaml:"base_url" mapstructure:"base_url"`
	PacingMs  int    `yaml:"pacing_ms" mapstructure:"pacing_ms"`
	TimeoutMs int    `yaml:"timeout_ms" mapstructure:"timeout_ms"`
}

// Pacing returns the minimum delay between calls.
func (a APIConfig) Pacing() time.Duration {
	return time.Duration(a.PacingMs) * time.Millisecond
}

// Timeout returns the HTTP client timeout, defaulting to 30s.
func (a APIConfig) Timeout() time.Duration {
	if a.TimeoutMs <= 0 {
		return 30 * time.Second
	}
	return time.Duration(a.TimeoutMs) * time.Millisecond
}

// AnthropicConfig configures the optional outreach opener.
type AnthropicConfig struct {
	Model     string `yaml:"model" mapstructure:"model"`
	MaxTokens int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// DiscoveryConfig configures registry discovery.
type DiscoveryConfig struct {
	LookbackDays      int                 `yaml:"lookback_days" mapstructure:"lookback_days"`
	BatchLookbackDays int                 `yaml:"batch_lookback_days" mapstructure:"batch_lookback_days"`
	OnDemandLimit     int                 `yaml:"on_demand_limit" mapstructure:"on_demand_limit"`
	BatchLimit        int                 `yaml:"batch_limit" mapstructure:"batch_limit"`
	Codes             []string            `yaml:"codes" mapstructure:"codes"`
	BatchProfiles     map[string][]string `yaml:"batch_profiles" mapstructure:"batch_profiles"`
}

// EnrichmentConfig configures profile and company enrichment.
type EnrichmentConfig struct {
	CompanyLimit int    `yaml:"company_limit" mapstructure:"company_limit"`
	ListsFile    string `yaml:"lists_file" mapstructure:"lists_file"`
	CodeHost     bool   `yaml:"code_host" mapstructure:"code_host"`
}

// QualificationConfig selects the qualification policy.
type QualificationConfig struct {
	Policy string `yaml:"policy" mapstructure:"policy"`
}

// MatchingConfig configures the investor matcher.
type MatchingConfig struct {
	Threshold   int `yaml:"threshold" mapstructure:"threshold"`
	RecencyDays int `yaml:"recency_days" mapstructure:"recency_days"`
}

// OutreachConfig configures queueing and dispatch.
type OutreachConfig struct {
	SpacingMinutes int `yaml:"spacing_minutes" mapstructure:"spacing_minutes"`
	MaxAttempts    int `yaml:"max_attempts" mapstructure:"max_attempts"`
	DispatchLimit  int `yaml:"dispatch_limit" mapstructure:"dispatch_limit"`
}

// ScheduleConfig holds trigger intervals.
type ScheduleConfig struct {
	Discovery        time.Duration `yaml:"discovery" mapstructure:"discovery"`
	Enrichment       time.Duration `yaml:"enrichment" mapstructure:"enrichment"`
	Qualification    time.Duration `yaml:"qualification" mapstructure:"qualification"`
	OutreachQueue    time.Duration `yaml:"outreach_queue" mapstructure:"outreach_queue"`
	OutreachDispatch time.Duration `yaml:"outreach_dispatch" mapstructure:"outreach_dispatch"`
	Matching         time.Duration `yaml:"matching" mapstructure:"matching"`
	InvestorSync     time.Duration `yaml:"investor_sync" mapstructure:"investor_sync"`
	Cleanup          time.Duration `yaml:"cleanup" mapstructure:"cleanup"`
}

// CleanupConfig configures the daily cleanup job.
type CleanupConfig struct {
	StaleJobHours    int `yaml:"stale_job_hours" mapstructure:"stale_job_hours"`
	JobRetentionDays int `yaml:"job_retention_days" mapstructure:"job_retention_days"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("DEALFLOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "dealflow.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})

	v.SetDefault("registry.base_url", "https://api.company-information.service.gov.uk")
	v.SetDefault("registry.pacing_ms", 500)
	v.SetDefault("search.base_url", "https://api.exa.ai")
	v.SetDefault("search.pacing_ms", 1000)
	v.SetDefault("apollo.base_url", "https://api.apollo.io")
	v.SetDefault("apollo.pacing_ms", 1500)
	v.SetDefault("hunter.base_url", "https://api.hunter.io")
	v.SetDefault("hunter.pacing_ms", 2500)
	v.SetDefault("github.base_url", "https://api.github.com/")
	v.SetDefault("github.pacing_ms", 6000)
	v.SetDefault("resend.base_url", "https://api.resend.com")
	v.SetDefault("resend.pacing_ms", 2000)
	v.SetDefault("website.pacing_ms", 500)
	v.SetDefault("website.timeout_ms", 15000)
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 200)

	v.SetDefault("discovery.lookback_days", 30)
	v.SetDefault("discovery.batch_lookback_days", 90)
	v.SetDefault("discovery.on_demand_limit", 50)
	v.SetDefault("discovery.batch_limit", 5)
	v.SetDefault("enrichment.company_limit", 10)
	v.SetDefault("enrichment.code_host", true)
	v.SetDefault("qualification.policy", "background")
	v.SetDefault("matching.threshold", 60)
	v.SetDefault("matching.recency_days", 30)
	v.SetDefault("outreach.spacing_minutes", 30)
	v.SetDefault("outreach.max_attempts", 4)
	v.SetDefault("outreach.dispatch_limit", 20)

	v.SetDefault("schedule.discovery", 6*time.Hour)
	v.SetDefault("schedule.enrichment", 2*time.Hour)
	v.SetDefault("schedule.qualification", 3*time.Hour)
	v.SetDefault("schedule.outreach_queue", 4*time.Hour)
	v.SetDefault("schedule.outreach_dispatch", 30*time.Minute)
	v.SetDefault("schedule.matching", 6*time.Hour)
	v.SetDefault("schedule.investor_sync", 7*24*time.Hour)
	v.SetDefault("schedule.cleanup", 24*time.Hour)
	v.SetDefault("cleanup.stale_job_hours", 6)
	v.SetDefault("cleanup.job_retention_days", 30)

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

// Validate checks the settings a command mode needs. Modes are "store"
// (any command touching the database), "pipeline" and "serve".
func (c *Config) Validate(mode string) error {
	var errs []string
	switch mode {
	case "store":
		errs = c.validateStore(errs)
	case "pipeline":
		errs = c.validateStore(errs)
		errs = c.validatePipeline(errs)
	case "serve":
		errs = c.validateStore(errs)
		errs = c.validatePipeline(errs)
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}
	if len(errs) > 0 {
		return eris.New("config: " + strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) validateStore(errs []string) []string {
	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Sprintf("store.driver must be sqlite or postgres, got %q", c.Store.Driver))
	}
	if c.Store.DatabaseURL == "" {
		errs = append(errs, "store.database_url is required")
	}
	return errs
}

func (c *Config) validatePipeline(errs []string) []string {
	switch c.Qualification.Policy {
	case "background", "manual":
	default:
		errs = append(errs, fmt.Sprintf("qualification.policy must be background or manual, got %q", c.Qualification.Policy))
	}
	if c.Matching.Threshold < 0 || c.Matching.Threshold > 100 {
		errs = append(errs, "matching.threshold must be between 0 and 100")
	}
	if c.Outreach.MaxAttempts < 1 {
		errs = append(errs, "outreach.max_attempts must be >= 1")
	}
	if c.Outreach.SpacingMinutes < 0 {
		errs = append(errs, "outreach.spacing_minutes must be >= 0")
	}
	return errs
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
