package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port                    string
	DatabaseURL             string
	NotifierProvider        string
	NotifyTimeout           time.Duration
	AlertGrace              time.Duration
	AlertSweepInterval      time.Duration
	AlertSweepBatchSize     int
	RateLimitPerMinute      int
	RateLimitBurst          int
	BusinessRateLimitPerMin int
	BusinessRateLimitBurst  int
}

func Load() Config {
	_ = godotenv.Load()

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	return Config{
		Port:                    port,
		DatabaseURL:             os.Getenv("DB_DSN"),
		NotifierProvider:        os.Getenv("NOTIFIER_PROVIDER"),
		NotifyTimeout:           readDurationSeconds("NOTIFY_TIMEOUT_SECONDS", 5),
		AlertGrace:              readDurationSeconds("ALERT_GRACE_SECONDS", 300),
		AlertSweepInterval:      readDurationSeconds("ALERT_SCAN_INTERVAL_SECONDS", 30),
		AlertSweepBatchSize:     readInt("ALERT_SWEEP_BATCH_SIZE", 100),
		RateLimitPerMinute:      readInt("RATE_LIMIT_PER_MIN", 120),
		RateLimitBurst:          readInt("RATE_LIMIT_BURST", 30),
		BusinessRateLimitPerMin: readInt("BUSINESS_RATE_LIMIT_PER_MIN", 600),
		BusinessRateLimitBurst:  readInt("BUSINESS_RATE_LIMIT_BURST", 120),
	}
}

func readDurationSeconds(key string, fallback int) time.Duration {
	value := readInt(key, fallback)
	if value <= 0 {
		return 0
	}
	return time.Duration(value) * time.Second
}

func readInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
