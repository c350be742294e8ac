package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

type Config struct {
	TelegramToken      string
	MongoURI           string
	MongoDatabase      string
	UsersCollection    string
	HostCacheFile      string
	DefaultInterval    string
	ProbeTimeout       time.Duration
	FetchTimeout       time.Duration
	MaxProductsPerUser int
	OperationCooldown  time.Duration
}

func Load() (*Config, error) {
	// Missing .env is fine; real deployments set the environment directly.
	_ = godotenv.Load()

	token := os.Getenv("TELEGRAM_BOT_TOKEN")
	if token == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN environment variable is required but not set")
	}

	mongoURI := os.Getenv("MONGODB_URI")
	if mongoURI == "" {
		return nil, fmt.Errorf("MONGODB_URI environment variable is required but not set")
	}

	database := os.Getenv("MONGODB_DATABASE")
	if database == "" {
		database = "huligan-sport"
	}

	usersCollection := os.Getenv("USERS_COLLECTION")
	if usersCollection == "" {
		usersCollection = "users"
	}

	hostCacheFile := os.Getenv("HOST_CACHE_FILE")
	if hostCacheFile == "" {
		hostCacheFile = "host_cache.json"
	}

	defaultInterval := os.Getenv("DEFAULT_NOTIFICATION_INTERVAL")
	if defaultInterval == "" {
		defaultInterval = "*/5 * * * *"
		slog.Info("Defaulting notification interval", "interval", defaultInterval)
	}
	if _, err := cron.ParseStandard(defaultInterval); err != nil {
		return nil, fmt.Errorf("invalid DEFAULT_NOTIFICATION_INTERVAL %q: %w", defaultInterval, err)
	}

	probeTimeout, err := durationEnv("PROBE_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, err
	}
	fetchTimeout, err := durationEnv("FETCH_TIMEOUT", 15*time.Second)
	if err != nil {
		return nil, err
	}
	cooldown, err := durationEnv("OPERATION_COOLDOWN", 3*time.Second)
	if err != nil {
		return nil, err
	}

	maxProducts := 50
	if v := os.Getenv("MAX_PRODUCTS_PER_USER"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			return nil, fmt.Errorf("invalid MAX_PRODUCTS_PER_USER %q", v)
		}
		maxProducts = parsed
	}

	return &Config{
		TelegramToken:      token,
		MongoURI:           mongoURI,
		MongoDatabase:      database,
		UsersCollection:    usersCollection,
		HostCacheFile:      hostCacheFile,
		DefaultInterval:    defaultInterval,
		ProbeTimeout:       probeTimeout,
		FetchTimeout:       fetchTimeout,
		MaxProductsPerUser: maxProducts,
		OperationCooldown:  cooldown,
	}, nil
}

func durationEnv(name string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(name)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", name, v, err)
	}
	return d, nil
}
