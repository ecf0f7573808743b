package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config captures runtime configuration for the offer service.
type Config struct {
	Port               string        `yaml:"port"`
	RedisURL           string        `yaml:"redis_url"`
	DatabaseURL        string        `yaml:"database_url"`
	BearerToken        string        `yaml:"bearer_token"`
	CacheTTL           time.Duration `yaml:"cache_ttl"`
	SourceTimeout      time.Duration `yaml:"source_timeout"`
	RunTimeout         time.Duration `yaml:"run_timeout"`
	JournalRetention   time.Duration `yaml:"journal_retention"`
	SupplierAURL       string        `yaml:"supplier_a_url"`
	SupplierBURL       string        `yaml:"supplier_b_url"`
	SupplierLatency    time.Duration `yaml:"supplier_latency"`
	KafkaBrokers       []string      `yaml:"kafka_brokers"`
	KafkaTopic         string        `yaml:"kafka_topic"`
	LogLevel           string        `yaml:"log_level"`
	RateLimitPerMinute int           `yaml:"rate_limit_per_minute"`
	MigrationsDir      string        `yaml:"migrations_dir"`
}

const (
	defaultPort          = "8080"
	defaultCacheTTL      = time.Hour
	defaultSourceTimeout = 3 * time.Second
	defaultRunTimeout    = time.Minute
	defaultRetention     = 24 * time.Hour
	defaultKafkaTopic    = "hotel-offers.refreshed"
	defaultLogLevel      = "info"
	defaultRateLimit     = 60
	defaultMigrations    = "migrations"
)

// Default returns a Config holding every default value.
func Default() *Config {
	return &Config{
		Port:               defaultPort,
		CacheTTL:           defaultCacheTTL,
		SourceTimeout:      defaultSourceTimeout,
		RunTimeout:         defaultRunTimeout,
		JournalRetention:   defaultRetention,
		KafkaTopic:         defaultKafkaTopic,
		LogLevel:           defaultLogLevel,
		RateLimitPerMinute: defaultRateLimit,
		MigrationsDir:      defaultMigrations,
	}
}

// Load builds the configuration from defaults, then the YAML file named by
// CONFIG_PATH if set, then environment variables. The result is validated.
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.loadEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects missing required keys and non-positive durations.
func (c *Config) Validate() error {
	var errs []error
	if c.RedisURL == "" {
		errs = append(errs, errors.New("REDIS_URL is required"))
	}
	if c.BearerToken == "" {
		errs = append(errs, errors.New("BEARER_TOKEN is required"))
	}
	if c.CacheTTL <= 0 {
		errs = append(errs, fmt.Errorf("CACHE_TTL must be positive, got %s", c.CacheTTL))
	}
	if c.SourceTimeout <= 0 {
		errs = append(errs, fmt.Errorf("SOURCE_TIMEOUT must be positive, got %s", c.SourceTimeout))
	}
	if c.RunTimeout <= 0 {
		errs = append(errs, fmt.Errorf("RUN_TIMEOUT must be positive, got %s", c.RunTimeout))
	}
	if c.JournalRetention <= 0 {
		errs = append(errs, fmt.Errorf("JOURNAL_RETENTION must be positive, got %s", c.JournalRetention))
	}
	if c.SupplierLatency < 0 {
		errs = append(errs, fmt.Errorf("SUPPLIER_LATENCY must not be negative, got %s", c.SupplierLatency))
	}
	if c.RateLimitPerMinute <= 0 {
		errs = append(errs, fmt.Errorf("RATE_LIMIT_PER_MINUTE must be positive, got %d", c.RateLimitPerMinute))
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// ParseLevel maps debug, info, warn and error to slog levels.
func ParseLevel(s string) (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q: %w", s, err)
	}
	return lvl, nil
}

func (c *Config) loadFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) loadEnv() error {
	setString(&c.Port, "PORT")
	setString(&c.RedisURL, "REDIS_URL")
	setString(&c.DatabaseURL, "DATABASE_URL")
	setString(&c.BearerToken, "BEARER_TOKEN")
	setString(&c.SupplierAURL, "SUPPLIER_A_URL")
	setString(&c.SupplierBURL, "SUPPLIER_B_URL")
	setString(&c.KafkaTopic, "KAFKA_TOPIC")
	setString(&c.LogLevel, "LOG_LEVEL")
	setString(&c.MigrationsDir, "MIGRATIONS_DIR")

	if v, ok := os.LookupEnv("KAFKA_BROKERS"); ok {
		c.KafkaBrokers = splitList(v)
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"CACHE_TTL", &c.CacheTTL},
		{"SOURCE_TIMEOUT", &c.SourceTimeout},
		{"RUN_TIMEOUT", &c.RunTimeout},
		{"JOURNAL_RETENTION", &c.JournalRetention},
		{"SUPPLIER_LATENCY", &c.SupplierLatency},
	}
	for _, d := range durations {
		v, ok := os.LookupEnv(d.key)
		if !ok || v == "" {
			continue
		}
		parsed, err := parseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", d.key, err)
		}
		*d.dst = parsed
	}

	if v, ok := os.LookupEnv("RATE_LIMIT_PER_MINUTE"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid RATE_LIMIT_PER_MINUTE: %w", err)
		}
		c.RateLimitPerMinute = n
	}

	return nil
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

// parseDuration accepts Go duration strings and bare integers, read as seconds.
func parseDuration(v string) (time.Duration, error) {
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	return time.ParseDuration(v)
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
