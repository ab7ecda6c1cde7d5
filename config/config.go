// Package config loads and validates the service configuration from the
// environment.
package config

import (
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/avasseur/ipd-api/guyot"
)

// Config holds all application configuration.
type Config struct {
	Port              string
	Address           string
	Env               string
	LogLevel          string
	LogRetentionWeeks int
	MaxLogFileSize    int64 // bytes
	MaxRequestBody    int64 // bytes
	MaxHeaderSize     int64 // bytes

	ExportDir           string
	ExportRetentionDays int

	// Engine tuning. Everything else in guyot.Config keeps its default;
	// these are the knobs operators actually retune per endpoint class.
	ReconSeed           uint64
	PlaceholderInitialN int
	SmoothWarnMAE       float64
	SmoothFailMAE       float64
	ErraticWarnMAE      float64
	ErraticFailMAE      float64
	ErraticEndpoints    []string
}

// Load loads and validates configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:                getEnvWithDefault("PORT", "8000"),
		Address:             getEnvWithDefault("ADDRESS", "127.0.0.1"),
		Env:                 getEnvWithDefault("ENV", "dev"),
		LogLevel:            getEnvWithDefault("LOG_LEVEL", "info"),
		LogRetentionWeeks:   getIntEnvWithDefault("LOG_RETENTION_WEEKS", 4),
		MaxLogFileSize:      getInt64EnvWithDefault("MAX_LOG_FILE_SIZE", 104857600), // 100MB
		MaxRequestBody:      getInt64EnvWithDefault("MAX_REQUEST_BODY", 10485760),   // 10MB, digitized curves are big
		MaxHeaderSize:       getInt64EnvWithDefault("MAX_HEADER_SIZE", 1048576),     // 1MB
		ExportDir:           getEnvWithDefault("EXPORT_DIR", "exports"),
		ExportRetentionDays: getIntEnvWithDefault("EXPORT_RETENTION_DAYS", 30),
		ReconSeed:           uint64(getInt64EnvWithDefault("RECON_SEED", 42)),
		PlaceholderInitialN: getIntEnvWithDefault("RECON_PLACEHOLDER_N", 100),
		SmoothWarnMAE:       getFloatEnvWithDefault("RECON_SMOOTH_WARN_MAE", 0.05),
		SmoothFailMAE:       getFloatEnvWithDefault("RECON_SMOOTH_FAIL_MAE", 0.15),
		ErraticWarnMAE:      getFloatEnvWithDefault("RECON_ERRATIC_WARN_MAE", 0.10),
		ErraticFailMAE:      getFloatEnvWithDefault("RECON_ERRATIC_FAIL_MAE", 0.30),
		ErraticEndpoints:    splitList(getEnvWithDefault("RECON_ERRATIC_ENDPOINTS", "PFS")),
	}

	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// EngineConfig maps the environment-tunable knobs onto the engine defaults.
func (c *Config) EngineConfig() guyot.Config {
	engine := guyot.DefaultConfig()
	engine.Seed = c.ReconSeed
	engine.PlaceholderInitialN = c.PlaceholderInitialN
	engine.SmoothWarnMAE = c.SmoothWarnMAE
	engine.SmoothFailMAE = c.SmoothFailMAE
	engine.ErraticWarnMAE = c.ErraticWarnMAE
	engine.ErraticFailMAE = c.ErraticFailMAE
	engine.ErraticEndpoints = c.ErraticEndpoints
	return engine
}

// SlogLevel translates the configured log level to slog.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func validateConfig(cfg *Config) error {
	if err := validatePort(cfg.Port); err != nil {
		return fmt.Errorf("invalid PORT: %w", err)
	}
	if err := validateAddress(cfg.Address); err != nil {
		return fmt.Errorf("invalid ADDRESS: %w", err)
	}
	if err := validateEnv(cfg.Env); err != nil {
		return fmt.Errorf("invalid ENV: %w", err)
	}
	if err := validateLogLevel(cfg.LogLevel); err != nil {
		return fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}
	if cfg.LogRetentionWeeks <= 0 || cfg.LogRetentionWeeks > 52 {
		return fmt.Errorf("invalid LOG_RETENTION_WEEKS: must be between 1 and 52, got %d", cfg.LogRetentionWeeks)
	}
	if cfg.MaxLogFileSize < 1024*1024 || cfg.MaxLogFileSize > 1024*1024*1024 {
		return fmt.Errorf("invalid MAX_LOG_FILE_SIZE: must be between 1MB and 1GB, got %d", cfg.MaxLogFileSize)
	}
	if cfg.MaxRequestBody <= 0 || cfg.MaxRequestBody > 100*1024*1024 {
		return fmt.Errorf("invalid MAX_REQUEST_BODY: must be between 1 byte and 100MB, got %d", cfg.MaxRequestBody)
	}
	if cfg.MaxHeaderSize <= 0 || cfg.MaxHeaderSize > 10*1024*1024 {
		return fmt.Errorf("invalid MAX_HEADER_SIZE: must be between 1 byte and 10MB, got %d", cfg.MaxHeaderSize)
	}
	if strings.TrimSpace(cfg.ExportDir) == "" {
		return fmt.Errorf("invalid EXPORT_DIR: cannot be empty")
	}
	if cfg.ExportRetentionDays <= 0 || cfg.ExportRetentionDays > 365 {
		return fmt.Errorf("invalid EXPORT_RETENTION_DAYS: must be between 1 and 365, got %d", cfg.ExportRetentionDays)
	}
	if err := validateThresholds(cfg); err != nil {
		return err
	}
	if cfg.PlaceholderInitialN < 1 || cfg.PlaceholderInitialN > 100000 {
		return fmt.Errorf("invalid RECON_PLACEHOLDER_N: must be between 1 and 100000, got %d", cfg.PlaceholderInitialN)
	}
	return nil
}

func validateThresholds(cfg *Config) error {
	pairs := []struct {
		name       string
		warn, fail float64
	}{
		{"RECON_SMOOTH", cfg.SmoothWarnMAE, cfg.SmoothFailMAE},
		{"RECON_ERRATIC", cfg.ErraticWarnMAE, cfg.ErraticFailMAE},
	}
	for _, p := range pairs {
		if p.warn <= 0 || p.warn >= 1 {
			return fmt.Errorf("invalid %s_WARN_MAE: must be in (0,1), got %g", p.name, p.warn)
		}
		if p.fail <= 0 || p.fail >= 1 {
			return fmt.Errorf("invalid %s_FAIL_MAE: must be in (0,1), got %g", p.name, p.fail)
		}
		if p.warn >= p.fail {
			return fmt.Errorf("invalid %s thresholds: warning %g must be below failure %g", p.name, p.warn, p.fail)
		}
	}
	return nil
}

func validatePort(port string) error {
	if port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	portNum, err := strconv.Atoi(port)
	if err != nil {
		return fmt.Errorf("PORT must be a valid number: %w", err)
	}
	if portNum < 1 || portNum > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535")
	}
	if portNum < 1024 {
		return fmt.Errorf("PORT %d is privileged (less than 1024), use ports 1024-65535", portNum)
	}
	return nil
}

func validateAddress(address string) error {
	if address == "" {
		return fmt.Errorf("ADDRESS cannot be empty")
	}
	if address == "127.0.0.1" || address == "::1" || address == "localhost" {
		return nil
	}
	ip := net.ParseIP(address)
	if ip == nil {
		return fmt.Errorf("ADDRESS must be a valid IP address or 'localhost', got: %s", address)
	}
	if !ip.IsLoopback() && !ip.IsPrivate() {
		return fmt.Errorf("ADDRESS %s is a public IP, use private network ranges", address)
	}
	return nil
}

func validateEnv(env string) error {
	validEnvs := []string{"dev", "staging", "prod", "test"}
	env = strings.ToLower(env)
	for _, valid := range validEnvs {
		if env == valid {
			return nil
		}
	}
	return fmt.Errorf("ENV must be one of: %v, got: %s", validEnvs, env)
}

func validateLogLevel(level string) error {
	validLevels := []string{"debug", "info", "warn", "error"}
	level = strings.ToLower(level)
	for _, valid := range validLevels {
		if level == valid {
			return nil
		}
	}
	return fmt.Errorf("LOG_LEVEL must be one of: %v, got: %s", validLevels, level)
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnvWithDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getInt64EnvWithDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getFloatEnvWithDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
