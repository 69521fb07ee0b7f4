package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerAddr string
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	RedisAddr  string

	// Media library layout
	DownloadRoot    string
	TransferCommand string

	// Wishlist sweep
	SweepInterval  time.Duration
	SweepItemDelay time.Duration

	// Catalog mirror refresh
	CatalogSyncInterval time.Duration

	// Outbound notifications (disabled when empty)
	NotifyWebhookURL string
}

func Load() *Config {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	return &Config{
		ServerAddr:       getEnvOrDefault("SERVER_ADDR", ":8080"),
		DBHost:           getEnvOrDefault("DB_HOST", "localhost"),
		DBPort:           getEnvOrDefault("DB_PORT", "5432"),
		DBUser:           getEnvOrDefault("DB_USER", "streamvault"),
		DBPassword:       getEnvOrDefault("DB_PASSWORD", "streamvault_dev_password"),
		DBName:           getEnvOrDefault("DB_NAME", "streamvault"),
		RedisAddr:        getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
		DownloadRoot:     getEnvOrDefault("DOWNLOAD_ROOT", "/data/media"),
		TransferCommand:  getEnvOrDefault("TRANSFER_COMMAND", "transfer"),
		SweepInterval:    getEnvDuration("WISHLIST_SWEEP_INTERVAL", 6*time.Hour),
		SweepItemDelay:   getEnvDuration("WISHLIST_ITEM_DELAY", 500*time.Millisecond),

		CatalogSyncInterval: getEnvDuration("CATALOG_SYNC_INTERVAL", 24*time.Hour),
		NotifyWebhookURL: os.Getenv("NOTIFY_WEBHOOK_URL"),
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil && d > 0 {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
