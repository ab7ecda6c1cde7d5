package config

import (
	"log/slog"
	"os"
	"strings"
	"testing"
)

var managedVars = []string{
	"PORT", "ADDRESS", "ENV", "LOG_LEVEL", "LOG_RETENTION_WEEKS",
	"MAX_LOG_FILE_SIZE", "MAX_REQUEST_BODY", "MAX_HEADER_SIZE",
	"EXPORT_DIR", "EXPORT_RETENTION_DAYS", "RECON_SEED", "RECON_PLACEHOLDER_N",
	"RECON_SMOOTH_WARN_MAE", "RECON_SMOOTH_FAIL_MAE",
	"RECON_ERRATIC_WARN_MAE", "RECON_ERRATIC_FAIL_MAE", "RECON_ERRATIC_ENDPOINTS",
}

func cleanupEnv() {
	for _, key := range managedVars {
		_ = os.Unsetenv(key)
	}
}

func TestLoadWithDefaults(t *testing.T) {
	cleanupEnv()
	defer cleanupEnv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if cfg.Port != "8000" {
		t.Errorf("Expected default port 8000, got %s", cfg.Port)
	}
	if cfg.Address != "127.0.0.1" {
		t.Errorf("Expected default address 127.0.0.1, got %s", cfg.Address)
	}
	if cfg.ExportDir != "exports" {
		t.Errorf("Expected default export dir exports, got %s", cfg.ExportDir)
	}
	if cfg.ExportRetentionDays != 30 {
		t.Errorf("Expected default export retention 30 days, got %d", cfg.ExportRetentionDays)
	}
	if cfg.ReconSeed != 42 {
		t.Errorf("Expected default seed 42, got %d", cfg.ReconSeed)
	}
	if len(cfg.ErraticEndpoints) != 1 || cfg.ErraticEndpoints[0] != "PFS" {
		t.Errorf("Expected default erratic endpoints [PFS], got %v", cfg.ErraticEndpoints)
	}
}

func TestLoadValidConfig(t *testing.T) {
	cleanupEnv()
	defer cleanupEnv()

	_ = os.Setenv("PORT", "9100")
	_ = os.Setenv("LOG_LEVEL", "debug")
	_ = os.Setenv("RECON_SEED", "7")
	_ = os.Setenv("RECON_ERRATIC_ENDPOINTS", "PFS, TTP")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if cfg.Port != "9100" {
		t.Errorf("Expected port 9100, got %s", cfg.Port)
	}
	if cfg.SlogLevel() != slog.LevelDebug {
		t.Errorf("Expected debug level, got %v", cfg.SlogLevel())
	}
	if cfg.ReconSeed != 7 {
		t.Errorf("Expected seed 7, got %d", cfg.ReconSeed)
	}
	if len(cfg.ErraticEndpoints) != 2 || cfg.ErraticEndpoints[1] != "TTP" {
		t.Errorf("Expected erratic endpoints [PFS TTP], got %v", cfg.ErraticEndpoints)
	}
}

func TestInvalidPort(t *testing.T) {
	testCases := []struct {
		port     string
		expected string
	}{
		{"abc", "PORT must be a valid number"},
		{"0", "PORT must be between 1 and 65535"},
		{"65536", "PORT must be between 1 and 65535"},
		{"80", "PORT 80 is privileged"},
	}

	for _, tc := range testCases {
		cleanupEnv()
		_ = os.Setenv("PORT", tc.port)

		_, err := Load()
		if err == nil {
			t.Errorf("Expected error for port %q, got none", tc.port)
			continue
		}
		if !strings.Contains(err.Error(), tc.expected) {
			t.Errorf("Expected error containing %q, got %v", tc.expected, err)
		}
	}
	cleanupEnv()
}

func TestInvalidAddress(t *testing.T) {
	cleanupEnv()
	defer cleanupEnv()

	_ = os.Setenv("ADDRESS", "8.8.8.8")
	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "public IP") {
		t.Errorf("Expected public IP rejection, got %v", err)
	}

	_ = os.Setenv("ADDRESS", "not-an-ip")
	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "valid IP") {
		t.Errorf("Expected invalid IP rejection, got %v", err)
	}
}

func TestInvalidThresholds(t *testing.T) {
	testCases := []struct {
		name string
		key  string
		val  string
	}{
		{"warn above fail", "RECON_SMOOTH_WARN_MAE", "0.2"},
		{"fail out of range", "RECON_ERRATIC_FAIL_MAE", "1.5"},
		{"warn non-positive", "RECON_ERRATIC_WARN_MAE", "0"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cleanupEnv()
			defer cleanupEnv()

			_ = os.Setenv(tc.key, tc.val)
			if _, err := Load(); err == nil {
				t.Errorf("Expected threshold validation error for %s=%s", tc.key, tc.val)
			}
		})
	}
}

func TestEngineConfigBridging(t *testing.T) {
	cleanupEnv()
	defer cleanupEnv()

	_ = os.Setenv("RECON_SEED", "99")
	_ = os.Setenv("RECON_PLACEHOLDER_N", "250")
	_ = os.Setenv("RECON_SMOOTH_WARN_MAE", "0.04")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	engine := cfg.EngineConfig()
	if engine.Seed != 99 {
		t.Errorf("Expected engine seed 99, got %d", engine.Seed)
	}
	if engine.PlaceholderInitialN != 250 {
		t.Errorf("Expected placeholder 250, got %d", engine.PlaceholderInitialN)
	}
	if engine.SmoothWarnMAE != 0.04 {
		t.Errorf("Expected smooth warning 0.04, got %v", engine.SmoothWarnMAE)
	}
	// Untouched knobs keep their engine defaults
	if engine.AtRiskSlack != 1.2 {
		t.Errorf("Expected default at-risk slack 1.2, got %v", engine.AtRiskSlack)
	}
}

func TestInvalidEnvAndLogLevel(t *testing.T) {
	cleanupEnv()
	defer cleanupEnv()

	_ = os.Setenv("ENV", "production")
	if _, err := Load(); err == nil {
		t.Error("Expected error for unknown ENV value")
	}
	cleanupEnv()

	_ = os.Setenv("LOG_LEVEL", "verbose")
	if _, err := Load(); err == nil {
		t.Error("Expected error for unknown LOG_LEVEL value")
	}
}
