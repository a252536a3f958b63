package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
)

type Config struct {
	Env         string `env:"ENV" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	SourcesFile string `env:"SOURCES_FILE"`

	Server   ServerConfig   `envPrefix:"SERVER_"`
	Browser  BrowserConfig  `envPrefix:"BROWSER_"`
	Search   SearchConfig   `envPrefix:"SEARCH_"`
	Cache    CacheConfig    `envPrefix:"CACHE_"`
	Database DatabaseConfig `envPrefix:"DATABASE_"`
	Watch    WatchConfig    `envPrefix:"WATCH_"`
}

type ServerConfig struct {
	Host           string   `env:"HOST" envDefault:"0.0.0.0"`
	Port           string   `env:"PORT" envDefault:"5000" validate:"required,numeric"`
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`
	// RateLimit is requests per second per client; zero disables limiting.
	// Health checks and task polling are not limited.
	RateLimit       float64       `env:"RATE_LIMIT" envDefault:"5" validate:"gte=0"`
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"180s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"20s"`
}

type BrowserConfig struct {
	Provider          string        `env:"PROVIDER" envDefault:"rod" validate:"oneof=rod static"`
	Bin               string        `env:"BIN"`
	Headless          bool          `env:"HEADLESS" envDefault:"true"`
	UserAgent         string        `env:"USER_AGENT" envDefault:"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"`
	NavigationTimeout time.Duration `env:"NAVIGATION_TIMEOUT" envDefault:"30s"`
	SettleMin         time.Duration `env:"SETTLE_MIN" envDefault:"3s"`
	SettleMax         time.Duration `env:"SETTLE_MAX" envDefault:"5s" validate:"gtefield=SettleMin"`
	ViewportWidth     int           `env:"VIEWPORT_WIDTH" envDefault:"1920"`
	ViewportHeight    int           `env:"VIEWPORT_HEIGHT" envDefault:"1080"`
	// StaticRate paces the static provider, in requests per second
	StaticRate float64 `env:"STATIC_RATE" envDefault:"1" validate:"gte=0"`
}

type SearchConfig struct {
	Timeout         time.Duration `env:"TIMEOUT" envDefault:"150s"`
	TeardownTimeout time.Duration `env:"TEARDOWN_TIMEOUT" envDefault:"10s"`
	BreakerFailures uint32        `env:"BREAKER_FAILURES" envDefault:"3"`
	BreakerCooldown time.Duration `env:"BREAKER_COOLDOWN" envDefault:"5m"`
	Workers         int           `env:"WORKERS" envDefault:"2" validate:"gte=1"`
	TaskRetention   time.Duration `env:"TASK_RETENTION" envDefault:"1h"`
	CleanupInterval time.Duration `env:"CLEANUP_INTERVAL" envDefault:"10m"`
}

type CacheConfig struct {
	Type       string        `env:"TYPE" envDefault:"memory" validate:"oneof=memory redis none"`
	RedisURL   string        `env:"REDIS_URL" validate:"required_if=Type redis"`
	TTL        time.Duration `env:"TTL" envDefault:"15m"`
	MaxEntries int           `env:"MAX_ENTRIES" envDefault:"500"`
}

type DatabaseConfig struct {
	// URL enables search history when set
	URL             string        `env:"URL"`
	MaxOpenConns    int           `env:"MAX_OPEN_CONNS" envDefault:"10"`
	MaxIdleConns    int           `env:"MAX_IDLE_CONNS" envDefault:"5"`
	ConnMaxLifetime time.Duration `env:"CONN_MAX_LIFETIME" envDefault:"30m"`
	// RetentionDays bounds search history; zero keeps everything
	RetentionDays int `env:"RETENTION_DAYS" envDefault:"30" validate:"gte=0"`
}

type WatchConfig struct {
	Schedule string   `env:"SCHEDULE"`
	Queries  []string `env:"QUERIES" envSeparator:","`
}

// Load reads the configuration from the process environment
func Load() (*Config, error) {
	return parse(env.Options{})
}

// LoadFrom reads the configuration from the given variables only
func LoadFrom(vars map[string]string) (*Config, error) {
	return parse(env.Options{Environment: vars})
}

func parse(opts env.Options) (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}
	if len(c.Watch.Queries) > 0 && c.Watch.Schedule == "" {
		return fmt.Errorf("WATCH_SCHEDULE is required when WATCH_QUERIES is set")
	}
	return nil
}

// Addr is the listen address of the HTTP server
func (c *Config) Addr() string {
	return c.Server.Host + ":" + c.Server.Port
}

// HistoryEnabled reports whether searches are persisted
func (c *Config) HistoryEnabled() bool {
	return c.Database.URL != ""
}
