package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"torn-alert-watcher/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logging   logging.Config  `mapstructure:"logging"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Storage   StorageConfig   `mapstructure:"storage"`
	API       APIConfig       `mapstructure:"api"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Alerts    AlertsConfig    `mapstructure:"alerts"`
	Market    MarketConfig    `mapstructure:"market"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Subjects  []SubjectConfig `mapstructure:"subjects"`
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
}

// StorageConfig tunes the document store fallback and write debouncing.
type StorageConfig struct {
	Dir      string        `mapstructure:"dir"`
	Debounce time.Duration `mapstructure:"debounce"`
}

// APIConfig covers game API access.
type APIConfig struct {
	BaseURL           string        `mapstructure:"base_url"`
	StockFeedURL      string        `mapstructure:"stock_feed_url"`
	RequestTimeout    time.Duration `mapstructure:"request_timeout"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute"`
	UserAgent         string        `mapstructure:"user_agent"`
}

// SchedulerConfig governs poll cadences and fetch backoff.
type SchedulerConfig struct {
	FastInterval   time.Duration `mapstructure:"fast_interval"`
	MediumInterval time.Duration `mapstructure:"medium_interval"`
	SlowInterval   time.Duration `mapstructure:"slow_interval"`
	BackoffBase    time.Duration `mapstructure:"backoff_base"`
	BackoffMax     time.Duration `mapstructure:"backoff_max"`
}

// AlertsConfig defines notification limits and alert thresholds.
type AlertsConfig struct {
	MaxPerWindow  int           `mapstructure:"max_per_window"`
	Window        time.Duration `mapstructure:"window"`
	CashThreshold float64       `mapstructure:"cash_threshold"`
}

// MarketConfig tunes the watched-item restock monitor.
type MarketConfig struct {
	ArmWindow         time.Duration `mapstructure:"arm_window"`
	LowStockThreshold int64         `mapstructure:"low_stock_threshold"`
	LowStockThrottle  time.Duration `mapstructure:"low_stock_throttle"`
	TradeWindow       time.Duration `mapstructure:"trade_window"`
}

// TelegramConfig routes notifications to a Telegram chat.
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	APIBase  string `mapstructure:"api_base"`
}

// SubjectConfig seeds the subject directory from the config file.
type SubjectConfig struct {
	ID     string `mapstructure:"id"`
	Name   string `mapstructure:"name"`
	APIKey string `mapstructure:"api_key"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("TORNWATCHER")
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
	v.SetDefault("app.name", "tornwatcher")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("storage.dir", "data")
	v.SetDefault("storage.debounce", "5s")

	v.SetDefault("api.base_url", "https://api.torn.com")
	v.SetDefault("api.stock_feed_url", "https://yata.yt/api/v1")
	v.SetDefault("api.request_timeout", "10s")
	v.SetDefault("api.requests_per_minute", 60)
	v.SetDefault("api.user_agent", "tornwatcher/1.0")

	v.SetDefault("scheduler.fast_interval", "60s")
	v.SetDefault("scheduler.medium_interval", "5m")
	v.SetDefault("scheduler.slow_interval", "10m")
	v.SetDefault("scheduler.backoff_base", "30s")
	v.SetDefault("scheduler.backoff_max", "5m")

	v.SetDefault("alerts.max_per_window", 3)
	v.SetDefault("alerts.window", "10m")
	v.SetDefault("alerts.cash_threshold", 0)

	v.SetDefault("market.arm_window", "180s")
	v.SetDefault("market.low_stock_threshold", 50)
	v.SetDefault("market.low_stock_throttle", "5m")
	v.SetDefault("market.trade_window", "5m")

	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.api_base", "https://api.telegram.org")

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
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
	if c.Scheduler.FastInterval <= 0 || c.Scheduler.MediumInterval <= 0 || c.Scheduler.SlowInterval <= 0 {
		return fmt.Errorf("scheduler intervals must be greater than zero")
	}
	if c.Scheduler.BackoffBase <= 0 || c.Scheduler.BackoffMax < c.Scheduler.BackoffBase {
		return fmt.Errorf("scheduler backoff must satisfy 0 < base <= max")
	}
	if c.Alerts.MaxPerWindow <= 0 {
		return fmt.Errorf("alerts.max_per_window must be greater than zero")
	}
	if c.Alerts.Window <= 0 {
		return fmt.Errorf("alerts.window must be greater than zero")
	}
	if c.Market.LowStockThreshold <= 0 {
		return fmt.Errorf("market.low_stock_threshold must be greater than zero")
	}
	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
		}
		if c.Telegram.ChatID == "" {
			return fmt.Errorf("telegram.chat_id is required when telegram is enabled")
		}
	}
	for _, subject := range c.Subjects {
		if subject.ID == "" || subject.APIKey == "" {
			return fmt.Errorf("subjects entries require both id and api_key")
		}
	}
	return nil
}
