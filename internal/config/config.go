package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	DatabaseURL string

	// PhoneLoginSecret gates the trusted phone-only login route. Empty
	// keeps the route closed.
	PhoneLoginSecret string

	RateLimitPerMinute      int
	RateLimitBurst          int
	PhoneRateLimitPerMinute int
	PhoneRateLimitBurst     int

	OTPProvider     string
	OTPTemplate     string
	OTPBatchSize    int
	OTPMaxAttempts  int
	OTPPollInterval time.Duration
}

func Load() Config {
	_ = godotenv.Load()

	port := os.Getenv("AUTH_PORT")
	if port == "" {
		port = "8081"
	}

	return Config{
		Port:             port,
		DatabaseURL:      os.Getenv("DB_DSN"),
		PhoneLoginSecret: os.Getenv("AUTH_PHONE_LOGIN_SECRET"),

		RateLimitPerMinute:      readInt("AUTH_RATE_LIMIT_PER_MIN", 120),
		RateLimitBurst:          readInt("AUTH_RATE_LIMIT_BURST", 30),
		PhoneRateLimitPerMinute: readInt("AUTH_PHONE_RATE_LIMIT_PER_MIN", 10),
		PhoneRateLimitBurst:     readInt("AUTH_PHONE_RATE_LIMIT_BURST", 5),

		OTPProvider:     os.Getenv("OTP_PROVIDER"),
		OTPTemplate:     os.Getenv("OTP_TEMPLATE"),
		OTPBatchSize:    readInt("OTP_BATCH_SIZE", 50),
		OTPMaxAttempts:  readInt("OTP_MAX_ATTEMPTS", 3),
		OTPPollInterval: readDuration("OTP_POLL_INTERVAL", 5*time.Second),
	}
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

func readDuration(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return value
}
