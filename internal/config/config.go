package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"drift-health-alerts/internal/engine"
	"drift-health-alerts/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Logging    logging.Config   `mapstructure:"logging"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Scheduler  SchedulerConfig  `mapstructure:"scheduler"`
	Aggregator AggregatorConfig `mapstructure:"aggregator"`
	Engine     engine.Config    `mapstructure:"engine"`
	Alerting   AlertingConfig   `mapstructure:"alerting"`
	Export     ExportConfig     `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsPath  string        `mapstructure:"migrations_path"`
}

// SchedulerConfig governs evaluation cadence.
type SchedulerConfig struct {
	Interval     time.Duration `mapstructure:"interval"`
	AlignToCycle bool          `mapstructure:"align_to_cycle"`
	StartupDelay time.Duration `mapstructure:"startup_delay"`
}

// AggregatorConfig covers metrics API access.
type AggregatorConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	APIToken       string        `mapstructure:"api_token"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	UserAgent      string        `mapstructure:"user_agent"`
	CurrentWindow  time.Duration `mapstructure:"current_window"`
}

// AlertingConfig defines alert routing.
type AlertingConfig struct {
	Enabled         bool           `mapstructure:"enabled"`
	Channels        []string       `mapstructure:"channels"`
	DetailsBasePath string         `mapstructure:"details_base_path"`
	Telegram        TelegramConfig `mapstructure:"telegram"`
}

// TelegramConfig 描述 Telegram 告警参数。
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	APIBase  string `mapstructure:"api_base"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("DRIFTWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "driftwatch")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("scheduler.interval", "1h")
	v.SetDefault("scheduler.align_to_cycle", true)
	v.SetDefault("scheduler.startup_delay", "0s")

	v.SetDefault("aggregator.request_timeout", "10s")
	v.SetDefault("aggregator.user_agent", "driftwatch/1.0")
	v.SetDefault("aggregator.current_window", "336h")

	def := engine.DefaultConfig()
	v.SetDefault("engine.review_drop_high", def.ReviewDropHigh)
	v.SetDefault("engine.review_drop_low", def.ReviewDropLow)
	v.SetDefault("engine.sentiment_drop_high", def.SentimentDropHigh)
	v.SetDefault("engine.sentiment_drop_low", def.SentimentDropLow)
	v.SetDefault("engine.engagement_drop_high", def.EngagementDropHigh)
	v.SetDefault("engine.engagement_drop_low", def.EngagementDropLow)
	v.SetDefault("engine.revenue_drop_high", def.RevenueDropHigh)
	v.SetDefault("engine.revenue_drop_low", def.RevenueDropLow)
	v.SetDefault("engine.refund_rise_high", def.RefundRiseHigh)
	v.SetDefault("engine.refund_rise_low", def.RefundRiseLow)
	v.SetDefault("engine.direction_band", def.DirectionBand)
	v.SetDefault("engine.warmup_min_gross_cents", def.WarmupMinGrossCents)

	v.SetDefault("alerting.enabled", false)
	v.SetDefault("alerting.channels", []string{"telegram"})
	v.SetDefault("alerting.details_base_path", "/dashboard/businesses")
	v.SetDefault("alerting.telegram.enabled", false)
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")

	v.SetDefault("export.max_data_points", 100000)

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.migrations_path", "migrations")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}
	if c.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler.interval must be greater than zero")
	}
	if c.Aggregator.CurrentWindow <= 0 {
		return fmt.Errorf("aggregator.current_window must be greater than zero")
	}
	if c.Engine.ReviewDropHigh <= c.Engine.ReviewDropLow {
		return fmt.Errorf("engine.review_drop_high must exceed engine.review_drop_low")
	}
	if c.Engine.RevenueDropHigh <= c.Engine.RevenueDropLow {
		return fmt.Errorf("engine.revenue_drop_high must exceed engine.revenue_drop_low")
	}
	if c.Engine.RefundRiseHigh <= c.Engine.RefundRiseLow {
		return fmt.Errorf("engine.refund_rise_high must exceed engine.refund_rise_low")
	}
	if c.Alerting.Telegram.Enabled {
		if c.Alerting.Telegram.BotToken == "" {
			return fmt.Errorf("alerting.telegram.bot_token 必须配置")
		}
		if c.Alerting.Telegram.ChatID == "" {
			return fmt.Errorf("alerting.telegram.chat_id 必须配置")
		}
	}
	return nil
}

// ResolveMaxPoints returns either the CLI override or config default.
func (c *Config) ResolveMaxPoints(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxDataPoints
}
