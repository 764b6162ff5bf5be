package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration. It is read once at run
// start and treated as immutable for the duration of a run.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Places    PlacesConfig    `yaml:"places" mapstructure:"places"`
	Apollo    ApolloConfig    `yaml:"apollo" mapstructure:"apollo"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Instantly InstantlyConfig `yaml:"instantly" mapstructure:"instantly"`
	Sourcing  SourcingConfig  `yaml:"sourcing" mapstructure:"sourcing"`
	Scoring   ScoringConfig   `yaml:"scoring" mapstructure:"scoring"`
	Outreach  OutreachConfig  `yaml:"outreach" mapstructure:"outreach"`
	Sender    SenderProfile   `yaml:"sender" mapstructure:"sender"`
	Lock      LockConfig      `yaml:"lock" mapstructure:"lock"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the lead store backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// PlacesConfig holds the discovery provider settings.
type PlacesConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// ApolloConfig holds the enrichment provider settings.
type ApolloConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// AnthropicConfig holds the copy-generation provider settings.
type AnthropicConfig struct {
	Key   string `yaml:"key" mapstructure:"key"`
	Model string `yaml:"model" mapstructure:"model"`
}

// InstantlyConfig holds the outreach campaign provider settings.
type InstantlyConfig struct {
	Key          string `yaml:"key" mapstructure:"key"`
	BaseURL      string `yaml:"base_url" mapstructure:"base_url"`
	CampaignName string `yaml:"campaign_name" mapstructure:"campaign_name"`
}

// City is one target location for discovery.
type City struct {
	Name    string `yaml:"name" mapstructure:"name"`
	Country string `yaml:"country" mapstructure:"country"`
}

// SourcingConfig configures the daily discovery pass.
type SourcingConfig struct {
	Cities           []City   `yaml:"cities" mapstructure:"cities"`
	Queries          []string `yaml:"queries" mapstructure:"queries"`
	QueriesPerCity   int      `yaml:"queries_per_city" mapstructure:"queries_per_city"`
	PerLocationLimit int      `yaml:"per_location_limit" mapstructure:"per_location_limit"`
	CallBudget       int      `yaml:"call_budget" mapstructure:"call_budget"`
	DailyTarget      int      `yaml:"daily_target" mapstructure:"daily_target"`
	ExcludeKeywords  []string `yaml:"exclude_keywords" mapstructure:"exclude_keywords"`
	DelayMillis      int      `yaml:"delay_millis" mapstructure:"delay_millis"`
}

// ScoringConfig configures the lead scorer.
type ScoringConfig struct {
	TargetIndustries   []string `yaml:"target_industries" mapstructure:"target_industries"`
	CompetitorKeywords []string `yaml:"competitor_keywords" mapstructure:"competitor_keywords"`
}

// OutreachConfig configures personalization and campaign enqueueing.
type OutreachConfig struct {
	DailyCap      int    `yaml:"daily_cap" mapstructure:"daily_cap"`
	SendDelayMs   int    `yaml:"send_delay_ms" mapstructure:"send_delay_ms"`
	TemplatesPath string `yaml:"templates_path" mapstructure:"templates_path"`
}

// SenderProfile describes the sender for personalization prompts.
type SenderProfile struct {
	Name             string `yaml:"name" mapstructure:"name"`
	Bio              string `yaml:"bio" mapstructure:"bio"`
	ValueProposition string `yaml:"value_proposition" mapstructure:"value_proposition"`
}

// LockConfig configures the cross-pass run lock.
type LockConfig struct {
	Path         string `yaml:"path" mapstructure:"path"`
	StaleMinutes int    `yaml:"stale_minutes" mapstructure:"stale_minutes"`
}

// ServerConfig configures the dashboard server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Validate checks that the configuration required for the given mode is
// present. Modes: "run" (daily pass), "reconcile", "serve", "export".
func (c *Config) Validate(mode string) error {
	var missing []string

	requireStore := func() {
		if c.Store.DatabaseURL == "" {
			missing = append(missing, "store.database_url is required")
		}
		if c.Store.Driver != "sqlite" && c.Store.Driver != "postgres" {
			missing = append(missing, "store.driver must be sqlite or postgres")
		}
	}

	switch mode {
	case "run":
		requireStore()
		if c.Places.Key == "" {
			missing = append(missing, "places.key is required")
		}
		if c.Apollo.Key == "" {
			missing = append(missing, "apollo.key is required")
		}
		if c.Anthropic.Key == "" {
			missing = append(missing, "anthropic.key is required")
		}
		if c.Instantly.Key == "" {
			missing = append(missing, "instantly.key is required")
		}
		if len(c.Sourcing.Cities) == 0 {
			missing = append(missing, "sourcing.cities is required")
		}
		if len(c.Sourcing.Queries) == 0 {
			missing = append(missing, "sourcing.queries is required")
		}
	case "reconcile":
		requireStore()
		if c.Instantly.Key == "" {
			missing = append(missing, "instantly.key is required")
		}
	case "serve":
		requireStore()
		if c.Server.Port <= 0 {
			missing = append(missing, "server.port must be > 0")
		}
	case "export", "status":
		requireStore()
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(missing) > 0 {
		return eris.Errorf("config: %s", strings.Join(missing, "; "))
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
	v.SetEnvPrefix("LEADFLOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "leadflow.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("places.base_url", "https://places.googleapis.com/v1")
	v.SetDefault("apollo.base_url", "https://api.apollo.io/v1")
	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("instantly.base_url", "https://api.instantly.ai/api/v2")
	v.SetDefault("instantly.campaign_name", "Agency Outreach")
	v.SetDefault("sourcing.queries_per_city", 3)
	v.SetDefault("sourcing.per_location_limit", 5)
	v.SetDefault("sourcing.call_budget", 60)
	v.SetDefault("sourcing.daily_target", 20)
	v.SetDefault("sourcing.delay_millis", 500)
	v.SetDefault("scoring.target_industries", []string{
		"marketing", "advertising", "media", "communications", "pr", "creative", "digital",
	})
	v.SetDefault("scoring.competitor_keywords", []string{
		"hubspot", "salesforce", "marketo", "pardot", "outreach.io",
	})
	v.SetDefault("outreach.daily_cap", 10)
	v.SetDefault("outreach.send_delay_ms", 1000)
	v.SetDefault("outreach.templates_path", "email_templates.yaml")
	v.SetDefault("lock.path", "leadflow.lock")
	v.SetDefault("lock.stale_minutes", 120)

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
