package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cast"
)

// Mode selects whether the emergency flow dials for real or only simulates.
type Mode string

const (
	ModeRelease Mode = "release"
	ModeTest    Mode = "test"
)

// ParseMode maps APP_MODE values onto a Mode. Anything that is not an
// explicit release value stays in test mode.
func ParseMode(s string) Mode {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "release", "production", "prod":
		return ModeRelease
	default:
		return ModeTest
	}
}

type Config struct {
	// Server
	Port string
	Mode Mode

	// Database
	DatabaseURL string
	RedisURL    string

	// Auth
	JWTSecret      string
	AccessTokenTTL time.Duration

	// Twilio
	TwilioAccountSID  string
	TwilioAuthToken   string
	TwilioPhoneNumber string

	// Firebase
	FCMCredentialsPath string

	// Mapbox
	MapboxToken string

	// Logging
	LogLevel string
	LogFile  string

	// Emergency
	EmergencyNumber   string
	TimeZone          *time.Location
	CapabilityTimeout time.Duration

	// Limits
	ShareRateLimit      int
	ShareRateWindow     time.Duration
	SignInRateLimit     int
	SignInRateWindow    time.Duration
	FakeCallAnswerDelay time.Duration
}

func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	loc, err := time.LoadLocation(getEnv("TIMEZONE", "Local"))
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE: %w", err)
	}

	cfg := &Config{
		Port:                getEnv("PORT", "8080"),
		Mode:                ParseMode(getEnv("APP_MODE", "test")),
		DatabaseURL:         getEnv("DATABASE_URL", ""),
		RedisURL:            getEnv("REDIS_URL", "redis://localhost:6379"),
		JWTSecret:           getEnv("JWT_SECRET", ""),
		AccessTokenTTL:      time.Duration(getEnvInt("ACCESS_TOKEN_TTL_HOURS", 24*7)) * time.Hour,
		TwilioAccountSID:    getEnv("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:     getEnv("TWILIO_AUTH_TOKEN", ""),
		TwilioPhoneNumber:   getEnv("TWILIO_PHONE_NUMBER", ""),
		FCMCredentialsPath:  getEnv("FCM_CREDENTIALS_PATH", ""),
		MapboxToken:         getEnv("MAPBOX_TOKEN", ""),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		LogFile:             getEnv("LOG_FILE", ""),
		EmergencyNumber:     getEnv("EMERGENCY_NUMBER", "911"), // US/Canada
		TimeZone:            loc,
		CapabilityTimeout:   time.Duration(getEnvInt("CAPABILITY_TIMEOUT_SECONDS", 0)) * time.Second,
		ShareRateLimit:      getEnvInt("SHARE_RATE_LIMIT", 5),
		ShareRateWindow:     time.Duration(getEnvInt("SHARE_RATE_WINDOW_SECONDS", 60)) * time.Second,
		SignInRateLimit:     getEnvInt("SIGNIN_RATE_LIMIT", 10),
		SignInRateWindow:    time.Duration(getEnvInt("SIGNIN_RATE_WINDOW_SECONDS", 300)) * time.Second,
		FakeCallAnswerDelay: time.Duration(getEnvInt("FAKE_CALL_ANSWER_DELAY_MS", 500)) * time.Millisecond,
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.EmergencyNumber == "" {
		return fmt.Errorf("EMERGENCY_NUMBER must not be empty")
	}
	if c.CapabilityTimeout < 0 {
		return fmt.Errorf("CAPABILITY_TIMEOUT_SECONDS must not be negative")
	}
	return nil
}

// TwilioConfigured reports whether SMS and voice can be used at all.
func (c *Config) TwilioConfigured() bool {
	return c.TwilioAccountSID != "" && c.TwilioAuthToken != "" && c.TwilioPhoneNumber != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := cast.ToIntE(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}
