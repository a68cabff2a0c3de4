package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "ghostspeak.yaml"

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// YAML file is optional; missing file is not an error.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigFile)
}

// LoadFrom returns a Config loaded from the given YAML path using the
// hierarchy: defaults < YAML < ENV. The YAML file is optional.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	loadEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is validated by caller
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// loadEnv overlays environment variables onto cfg.
// Only non-empty env values override the current config.
func loadEnv(cfg *Config) {
	setString(&cfg.Server.Port, "GHOSTSPEAK_PORT")
	setString(&cfg.Server.CORSOrigin, "GHOSTSPEAK_CORS_ORIGIN")
	setString(&cfg.Postgres.DSN, "DATABASE_URL")
	setInt32(&cfg.Postgres.MaxConns, "GHOSTSPEAK_PG_MAX_CONNS")
	setInt32(&cfg.Postgres.MinConns, "GHOSTSPEAK_PG_MIN_CONNS")
	setDuration(&cfg.Postgres.MaxConnLifetime, "GHOSTSPEAK_PG_MAX_CONN_LIFETIME")
	setDuration(&cfg.Postgres.MaxConnIdleTime, "GHOSTSPEAK_PG_MAX_CONN_IDLE_TIME")
	setDuration(&cfg.Postgres.HealthCheck, "GHOSTSPEAK_PG_HEALTH_CHECK")
	setString(&cfg.NATS.URL, "NATS_URL")
	setString(&cfg.Logging.Level, "GHOSTSPEAK_LOG_LEVEL")
	setString(&cfg.Logging.Format, "GHOSTSPEAK_LOG_FORMAT")
	setString(&cfg.Logging.Service, "GHOSTSPEAK_LOG_SERVICE")
	setString(&cfg.Auth.AdminKey, "GHOSTSPEAK_ADMIN_KEY")
	setString(&cfg.Auth.ArbitratorKey, "GHOSTSPEAK_ARBITRATOR_KEY")
	setString(&cfg.Auth.FeedKey, "GHOSTSPEAK_FEED_KEY")
	setInt(&cfg.Rate.Limit, "GHOSTSPEAK_RATE_LIMIT")
	setDuration(&cfg.Rate.Window, "GHOSTSPEAK_RATE_WINDOW")
	setDuration(&cfg.Rate.CleanupInterval, "GHOSTSPEAK_RATE_CLEANUP_INTERVAL")
	setInt64(&cfg.Cache.MaxSizeMB, "GHOSTSPEAK_CACHE_SIZE_MB")
	setDuration(&cfg.Cache.TTL, "GHOSTSPEAK_CACHE_TTL")
	setString(&cfg.Otel.Endpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")
	setString(&cfg.MCP.Addr, "GHOSTSPEAK_MCP_ADDR")
	setString(&cfg.MCP.APIKey, "GHOSTSPEAK_MCP_KEY")
	setUint64(&cfg.Staking.MinStake, "GHOSTSPEAK_STAKING_MIN_STAKE")
	setDuration(&cfg.Staking.MinLockDuration, "GHOSTSPEAK_STAKING_MIN_LOCK")
	setString(&cfg.Staking.Treasury, "GHOSTSPEAK_STAKING_TREASURY")
	setUint64(&cfg.Reputation.ReferenceUnit, "GHOSTSPEAK_REPUTATION_REFERENCE_UNIT")
}

// validate checks that required fields are set.
func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return errors.New("server.port is required")
	}
	if cfg.Postgres.DSN == "" {
		return errors.New("postgres.dsn is required")
	}
	if cfg.NATS.URL == "" {
		return errors.New("nats.url is required")
	}
	if cfg.Postgres.MaxConns < 1 {
		return errors.New("postgres.max_conns must be >= 1")
	}
	if cfg.Rate.Limit < 1 {
		return errors.New("rate.limit must be >= 1")
	}
	if cfg.Rate.Window <= 0 {
		return errors.New("rate.window must be positive")
	}
	if cfg.Reputation.Ceiling <= cfg.Reputation.Floor {
		return errors.New("reputation.ceiling must exceed reputation.floor")
	}
	if cfg.Reputation.Midpoint < cfg.Reputation.Floor || cfg.Reputation.Midpoint > cfg.Reputation.Ceiling {
		return errors.New("reputation.midpoint must lie within [floor, ceiling]")
	}
	if err := cfg.Staking.Validate(); err != nil {
		return fmt.Errorf("staking config: %w", err)
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt32(dst *int32, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 32); err == nil {
			*dst = int32(n)
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setUint64(dst *uint64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
