// Package config reads process configuration from the environment.
//
// A .env file in the working directory is loaded first when present;
// variables already set in the real environment win over it.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds everything main needs to wire the server.
type Config struct {
	Port int

	DBDriver    string // "sqlite" or "postgres"
	DBPath      string // sqlite file, ":memory:" allowed
	DatabaseURL string // postgres DSN

	JWTSecret    string
	TokenTTL     time.Duration
	CookieSecure bool // set the Secure flag on the session cookie (HTTPS only)

	// CatalogSource and StorySource are a file path, an s3://bucket/key URL,
	// or empty for the embedded defaults.
	CatalogSource string
	StorySource   string
	S3Region      string
	S3Endpoint    string
	S3AccessKey   string
	S3SecretKey   string

	// SES is disabled when SESFromEmail is empty.
	SESRegion    string
	SESFromEmail string
	SESFromName  string

	DayLocation      *time.Location
	MaxMailsPerLogin int
	MilestonePolicy  string // "exact" or "catchup"
	MailSweepEvery   time.Duration

	LogFormat string // "text" or "json"
	LogLevel  slog.Level
}

// Load reads .env (if any) and the environment, applying defaults.
func Load() (*Config, error) {
	// A missing .env is the normal case in production.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config: load .env: %w", err)
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a lookup function. Tests pass a map-backed
// lookup instead of mutating the process environment.
func FromEnv(getenv func(string) string) (*Config, error) {
	get := func(key, def string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return def
	}

	cfg := &Config{
		DBDriver:        strings.ToLower(get("DB_DRIVER", "sqlite")),
		DBPath:          get("DB_PATH", "data/starlit.db"),
		DatabaseURL:     get("DATABASE_URL", ""),
		JWTSecret:       get("JWT_SECRET", ""),
		CatalogSource:   get("CATALOG_SOURCE", ""),
		StorySource:     get("STORY_SOURCE", ""),
		S3Region:        get("S3_REGION", "us-east-1"),
		S3Endpoint:      get("S3_ENDPOINT", ""),
		S3AccessKey:     get("S3_ACCESS_KEY_ID", ""),
		S3SecretKey:     get("S3_SECRET_ACCESS_KEY", ""),
		SESRegion:       get("SES_REGION", "us-east-1"),
		SESFromEmail:    get("SES_FROM_EMAIL", ""),
		SESFromName:     get("SES_FROM_NAME", "Starlit Journals"),
		MilestonePolicy: strings.ToLower(get("MILESTONE_POLICY", "exact")),
		LogFormat:       strings.ToLower(get("LOG_FORMAT", "text")),
	}

	var err error
	if cfg.Port, err = strconv.Atoi(get("PORT", "8080")); err != nil || cfg.Port <= 0 {
		return nil, fmt.Errorf("config: invalid PORT %q", getenv("PORT"))
	}

	if cfg.MaxMailsPerLogin, err = strconv.Atoi(get("MAX_MAILS_PER_LOGIN", "3")); err != nil || cfg.MaxMailsPerLogin < 0 {
		return nil, fmt.Errorf("config: invalid MAX_MAILS_PER_LOGIN %q", getenv("MAX_MAILS_PER_LOGIN"))
	}

	if cfg.TokenTTL, err = time.ParseDuration(get("TOKEN_TTL", "168h")); err != nil || cfg.TokenTTL <= 0 {
		return nil, fmt.Errorf("config: invalid TOKEN_TTL %q", getenv("TOKEN_TTL"))
	}

	if cfg.MailSweepEvery, err = time.ParseDuration(get("MAIL_SWEEP_INTERVAL", "24h")); err != nil || cfg.MailSweepEvery <= 0 {
		return nil, fmt.Errorf("config: invalid MAIL_SWEEP_INTERVAL %q", getenv("MAIL_SWEEP_INTERVAL"))
	}

	if cfg.CookieSecure, err = strconv.ParseBool(get("COOKIE_SECURE", "false")); err != nil {
		return nil, fmt.Errorf("config: invalid COOKIE_SECURE %q", getenv("COOKIE_SECURE"))
	}

	if cfg.DayLocation, err = time.LoadLocation(get("DAY_TIMEZONE", "UTC")); err != nil {
		return nil, fmt.Errorf("config: invalid DAY_TIMEZONE: %w", err)
	}

	if err := cfg.LogLevel.UnmarshalText([]byte(get("LOG_LEVEL", "info"))); err != nil {
		return nil, fmt.Errorf("config: invalid LOG_LEVEL: %w", err)
	}

	switch cfg.DBDriver {
	case "sqlite":
	case "postgres":
		if cfg.DatabaseURL == "" {
			return nil, errors.New("config: DATABASE_URL is required when DB_DRIVER=postgres")
		}
	default:
		return nil, fmt.Errorf("config: unknown DB_DRIVER %q", cfg.DBDriver)
	}

	switch cfg.MilestonePolicy {
	case "exact", "catchup":
	default:
		return nil, fmt.Errorf("config: unknown MILESTONE_POLICY %q", cfg.MilestonePolicy)
	}

	switch cfg.LogFormat {
	case "text", "json":
	default:
		return nil, fmt.Errorf("config: unknown LOG_FORMAT %q", cfg.LogFormat)
	}

	return cfg, nil
}
