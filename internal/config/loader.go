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
const DefaultConfigFile = "codeatlas.yaml"

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
	setString(&cfg.Server.Port, "CODEATLAS_PORT")
	setString(&cfg.Server.CORSOrigin, "CODEATLAS_CORS_ORIGIN")

	setString(&cfg.Postgres.DSN, "DATABASE_URL")
	setInt32(&cfg.Postgres.MaxConns, "CODEATLAS_PG_MAX_CONNS")
	setInt32(&cfg.Postgres.MinConns, "CODEATLAS_PG_MIN_CONNS")
	setDuration(&cfg.Postgres.MaxConnLifetime, "CODEATLAS_PG_MAX_CONN_LIFETIME")
	setDuration(&cfg.Postgres.MaxConnIdleTime, "CODEATLAS_PG_MAX_CONN_IDLE_TIME")
	setDuration(&cfg.Postgres.HealthCheck, "CODEATLAS_PG_HEALTH_CHECK")

	setString(&cfg.NATS.URL, "NATS_URL")

	setString(&cfg.LiteLLM.URL, "LITELLM_URL")
	setString(&cfg.LiteLLM.MasterKey, "LITELLM_MASTER_KEY")
	setDuration(&cfg.LiteLLM.Timeout, "CODEATLAS_LITELLM_TIMEOUT")

	setString(&cfg.GitHub.Token, "GITHUB_TOKEN")
	setDuration(&cfg.GitHub.Timeout, "CODEATLAS_GITHUB_TIMEOUT")

	// Analysis
	setString(&cfg.Analysis.ClassifyModel, "CODEATLAS_CLASSIFY_MODEL")
	setString(&cfg.Analysis.GenerateModel, "CODEATLAS_GENERATE_MODEL")
	setInt(&cfg.Analysis.ClassifyMaxTokens, "CODEATLAS_CLASSIFY_MAX_TOKENS")
	setInt(&cfg.Analysis.GenerateMaxTokens, "CODEATLAS_GENERATE_MAX_TOKENS")
	setInt(&cfg.Analysis.MaxOutlineFiles, "CODEATLAS_MAX_OUTLINE_FILES")
	setInt(&cfg.Analysis.MaxKeyFiles, "CODEATLAS_MAX_KEY_FILES")
	setInt(&cfg.Analysis.KeyFileMaxBytes, "CODEATLAS_KEY_FILE_MAX_BYTES")
	setInt(&cfg.Analysis.MaxPageFiles, "CODEATLAS_MAX_PAGE_FILES")
	setInt(&cfg.Analysis.PageFileMaxBytes, "CODEATLAS_PAGE_FILE_MAX_BYTES")
	setInt(&cfg.Analysis.PageFileMaxLines, "CODEATLAS_PAGE_FILE_MAX_LINES")
	setInt(&cfg.Analysis.WikiWorkers, "CODEATLAS_WIKI_WORKERS")

	// Cache
	setBool(&cfg.Cache.Enabled, "CODEATLAS_CACHE_ENABLED")
	setInt64(&cfg.Cache.MaxSizeMB, "CODEATLAS_CACHE_MAX_SIZE_MB")
	setDuration(&cfg.Cache.TTL, "CODEATLAS_CACHE_TTL")

	// MCP
	setBool(&cfg.MCP.Enabled, "CODEATLAS_MCP_ENABLED")
	setString(&cfg.MCP.Addr, "CODEATLAS_MCP_ADDR")

	// Telemetry
	setBool(&cfg.Telemetry.Enabled, "CODEATLAS_TELEMETRY_ENABLED")
	setString(&cfg.Telemetry.Endpoint, "CODEATLAS_TELEMETRY_ENDPOINT")

	setString(&cfg.Logging.Level, "CODEATLAS_LOG_LEVEL")
	setString(&cfg.Logging.Service, "CODEATLAS_LOG_SERVICE")
	setBool(&cfg.Logging.Async, "CODEATLAS_LOG_ASYNC")

	setInt(&cfg.Breaker.MaxFailures, "CODEATLAS_BREAKER_MAX_FAILURES")
	setDuration(&cfg.Breaker.Timeout, "CODEATLAS_BREAKER_TIMEOUT")

	setFloat(&cfg.Rate.RequestsPerSecond, "CODEATLAS_RATE_RPS")
	setInt(&cfg.Rate.Burst, "CODEATLAS_RATE_BURST")

	setInt64(&cfg.Limits.MaxRequestBodySize, "CODEATLAS_MAX_BODY_SIZE")
	setInt(&cfg.Limits.MaxInputLen, "CODEATLAS_MAX_INPUT_LEN")
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
	if cfg.Breaker.MaxFailures < 1 {
		return errors.New("breaker.max_failures must be >= 1")
	}
	if cfg.Analysis.MaxOutlineFiles < 1 {
		return errors.New("analysis.max_outline_files must be >= 1")
	}
	if cfg.Analysis.MaxKeyFiles < 1 {
		return errors.New("analysis.max_key_files must be >= 1")
	}
	if cfg.Analysis.MaxPageFiles < 1 {
		return errors.New("analysis.max_page_files must be >= 1")
	}
	if cfg.Analysis.WikiWorkers < 1 {
		return errors.New("analysis.wiki_workers must be >= 1")
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

func setFloat(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
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
