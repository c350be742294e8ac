package config

import (
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("TELEGRAM_BOT_TOKEN", "123456:test-token")
	t.Setenv("MONGODB_URI", "mongodb://localhost:27017")
}

func clearOptional(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		"MONGODB_DATABASE", "USERS_COLLECTION", "HOST_CACHE_FILE",
		"DEFAULT_NOTIFICATION_INTERVAL", "PROBE_TIMEOUT", "FETCH_TIMEOUT",
		"OPERATION_COOLDOWN", "MAX_PRODUCTS_PER_USER",
	} {
		t.Setenv(name, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)
	clearOptional(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.TelegramToken != "123456:test-token" {
		t.Errorf("TelegramToken = %q", cfg.TelegramToken)
	}
	if cfg.MongoDatabase != "huligan-sport" {
		t.Errorf("MongoDatabase = %q, want huligan-sport", cfg.MongoDatabase)
	}
	if cfg.UsersCollection != "users" {
		t.Errorf("UsersCollection = %q, want users", cfg.UsersCollection)
	}
	if cfg.HostCacheFile != "host_cache.json" {
		t.Errorf("HostCacheFile = %q", cfg.HostCacheFile)
	}
	if cfg.DefaultInterval != "*/5 * * * *" {
		t.Errorf("DefaultInterval = %q", cfg.DefaultInterval)
	}
	if cfg.ProbeTimeout != 5*time.Second {
		t.Errorf("ProbeTimeout = %v", cfg.ProbeTimeout)
	}
	if cfg.FetchTimeout != 15*time.Second {
		t.Errorf("FetchTimeout = %v", cfg.FetchTimeout)
	}
	if cfg.OperationCooldown != 3*time.Second {
		t.Errorf("OperationCooldown = %v", cfg.OperationCooldown)
	}
	if cfg.MaxProductsPerUser != 50 {
		t.Errorf("MaxProductsPerUser = %d, want 50", cfg.MaxProductsPerUser)
	}
}

func TestLoad_MissingToken(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "")
	t.Setenv("MONGODB_URI", "mongodb://localhost:27017")

	if _, err := Load(); err == nil {
		t.Fatal("expected error when TELEGRAM_BOT_TOKEN is unset")
	}
}

func TestLoad_MissingMongoURI(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "123456:test-token")
	t.Setenv("MONGODB_URI", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected error when MONGODB_URI is unset")
	}
}

func TestLoad_Overrides(t *testing.T) {
	setRequired(t)
	clearOptional(t)
	t.Setenv("MONGODB_DATABASE", "staging")
	t.Setenv("DEFAULT_NOTIFICATION_INTERVAL", "0 */2 * * *")
	t.Setenv("PROBE_TIMEOUT", "2s")
	t.Setenv("MAX_PRODUCTS_PER_USER", "10")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.MongoDatabase != "staging" {
		t.Errorf("MongoDatabase = %q", cfg.MongoDatabase)
	}
	if cfg.DefaultInterval != "0 */2 * * *" {
		t.Errorf("DefaultInterval = %q", cfg.DefaultInterval)
	}
	if cfg.ProbeTimeout != 2*time.Second {
		t.Errorf("ProbeTimeout = %v", cfg.ProbeTimeout)
	}
	if cfg.MaxProductsPerUser != 10 {
		t.Errorf("MaxProductsPerUser = %d", cfg.MaxProductsPerUser)
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"bad cron expression", "DEFAULT_NOTIFICATION_INTERVAL", "every 5 minutes"},
		{"bad duration", "FETCH_TIMEOUT", "fifteen"},
		{"non-numeric cap", "MAX_PRODUCTS_PER_USER", "lots"},
		{"zero cap", "MAX_PRODUCTS_PER_USER", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequired(t)
			clearOptional(t)
			t.Setenv(tt.key, tt.value)

			if _, err := Load(); err == nil {
				t.Errorf("expected error for %s=%q", tt.key, tt.value)
			}
		})
	}
}
