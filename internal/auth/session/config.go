package session

import (
	"os"
	"strconv"
	"time"
)

// Config defines runtime configuration for the session subsystem.
type Config struct {
	// Issuer is the value set in the "iss" claim of access tokens.
	Issuer string

	// AccessTokenTTL is the lifetime of self-contained access tokens.
	AccessTokenTTL time.Duration

	// RefreshTokenTTL is the lifetime of refresh records.
	RefreshTokenTTL time.Duration

	// RefreshSecretBytes is the entropy of raw refresh secrets.
	RefreshSecretBytes int

	// SweepInterval controls the background expiry sweep.
	SweepInterval time.Duration

	// JWTSigningKey signs HS256 access tokens. Required.
	JWTSigningKey string

	// RefreshHashKey keys the HMAC used to fingerprint refresh secrets.
	// Empty falls back to plain SHA-256 (dev only).
	RefreshHashKey string
}

// DefaultConfig returns defaults suitable for development.
func DefaultConfig() Config {
	return Config{
		Issuer:             "photoshare",
		AccessTokenTTL:     15 * time.Minute,
		RefreshTokenTTL:    7 * 24 * time.Hour,
		RefreshSecretBytes: 32,
		SweepInterval:      time.Hour,
	}
}

// LoadConfigFromEnv loads session configuration from environment
// variables.
//
// Required:
//   - PHOTOSHARE_JWT_SECRET (min 32 bytes)
//
// Optional:
//   - PHOTOSHARE_AUTH_ISSUER
//   - PHOTOSHARE_AUTH_ACCESS_TTL
//   - PHOTOSHARE_AUTH_REFRESH_TTL
//   - PHOTOSHARE_AUTH_REFRESH_SECRET_BYTES
//   - PHOTOSHARE_AUTH_SWEEP_INTERVAL
//   - PHOTOSHARE_REFRESH_HASH_KEY
//
// Returns ErrConfig if configuration is invalid.
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	if v := os.Getenv("PHOTOSHARE_AUTH_ISSUER"); v != "" {
		cfg.Issuer = v
	}

	if v := os.Getenv("PHOTOSHARE_AUTH_ACCESS_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, ErrConfig
		}
		cfg.AccessTokenTTL = d
	}

	if v := os.Getenv("PHOTOSHARE_AUTH_REFRESH_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, ErrConfig
		}
		cfg.RefreshTokenTTL = d
	}

	if v := os.Getenv("PHOTOSHARE_AUTH_REFRESH_SECRET_BYTES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 32 || n > 64 {
			return Config{}, ErrConfig
		}
		cfg.RefreshSecretBytes = n
	}

	if v := os.Getenv("PHOTOSHARE_AUTH_SWEEP_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, ErrConfig
		}
		cfg.SweepInterval = d
	}

	cfg.JWTSigningKey = os.Getenv("PHOTOSHARE_JWT_SECRET")
	if len(cfg.JWTSigningKey) < 32 {
		return Config{}, ErrConfig
	}

	cfg.RefreshHashKey = os.Getenv("PHOTOSHARE_REFRESH_HASH_KEY")

	// Access tokens must be short-lived relative to refresh records.
	if cfg.AccessTokenTTL >= cfg.RefreshTokenTTL {
		return Config{}, ErrConfig
	}

	return cfg, nil
}
