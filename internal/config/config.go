// Package config loads service configuration from the environment. All
// variables carry the TASKHIVE_ prefix; an optional .env file in the
// working directory is read first for local development.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"taskhive.org/internal/authz"
)

// Config is the explicit configuration of the service. There are no
// ambient singletons; main loads it once and passes pieces down.
type Config struct {
	HTTPAddr    string
	PostgresDSN string

	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	TokenIssuer   string

	AuditPageSize int

	MemberVisibility authz.MemberVisibility
	MemberDelete     authz.MemberDelete

	RateLimitPerSecond float64
	RateLimitBurst     int
	MaxBodyBytes       int64
}

// Load reads configuration from the environment, failing fast on missing
// or malformed values so the process never starts half-configured.
func Load() (Config, error) {
	// Missing .env is the normal case outside local development.
	_ = godotenv.Load()

	cfg := Config{
		HTTPAddr:           envString("TASKHIVE_HTTP_ADDR", ":8080"),
		PostgresDSN:        os.Getenv("TASKHIVE_PG_DSN"),
		AccessSecret:       []byte(os.Getenv("TASKHIVE_JWT_ACCESS_SECRET")),
		RefreshSecret:      []byte(os.Getenv("TASKHIVE_JWT_REFRESH_SECRET")),
		TokenIssuer:        envString("TASKHIVE_JWT_ISSUER", "taskhive"),
		RateLimitPerSecond: 50,
		RateLimitBurst:     100,
		MaxBodyBytes:       1 << 20,
	}

	if cfg.PostgresDSN == "" {
		return Config{}, fmt.Errorf("config: TASKHIVE_PG_DSN is required")
	}
	if len(cfg.AccessSecret) == 0 || len(cfg.RefreshSecret) == 0 {
		return Config{}, fmt.Errorf("config: TASKHIVE_JWT_ACCESS_SECRET and TASKHIVE_JWT_REFRESH_SECRET are required")
	}

	var err error
	if cfg.AccessTTL, err = envDuration("TASKHIVE_JWT_ACCESS_TTL", 15*time.Minute); err != nil {
		return Config{}, err
	}
	if cfg.RefreshTTL, err = envDuration("TASKHIVE_JWT_REFRESH_TTL", 7*24*time.Hour); err != nil {
		return Config{}, err
	}
	if cfg.AuditPageSize, err = envInt("TASKHIVE_AUDIT_PAGE_SIZE", 100); err != nil {
		return Config{}, err
	}
	if v := os.Getenv("TASKHIVE_RATE_LIMIT_PER_SECOND"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f <= 0 {
			return Config{}, fmt.Errorf("config: invalid TASKHIVE_RATE_LIMIT_PER_SECOND %q", v)
		}
		cfg.RateLimitPerSecond = f
	}
	if cfg.RateLimitBurst, err = envInt("TASKHIVE_RATE_LIMIT_BURST", cfg.RateLimitBurst); err != nil {
		return Config{}, err
	}
	if v := os.Getenv("TASKHIVE_MAX_BODY_BYTES"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n <= 0 {
			return Config{}, fmt.Errorf("config: invalid TASKHIVE_MAX_BODY_BYTES %q", v)
		}
		cfg.MaxBodyBytes = n
	}

	if cfg.MemberVisibility, err = authz.ParseMemberVisibility(os.Getenv("TASKHIVE_MEMBER_VISIBILITY")); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if cfg.MemberDelete, err = authz.ParseMemberDelete(os.Getenv("TASKHIVE_MEMBER_DELETE")); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// Policy assembles the authorization policy from the loaded variants.
func (c Config) Policy() authz.Policy {
	return authz.Policy{
		MemberVisibility: c.MemberVisibility,
		MemberDelete:     c.MemberDelete,
	}
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("config: invalid %s %q", key, v)
	}
	return d, nil
}

func envInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("config: invalid %s %q", key, v)
	}
	return n, nil
}
