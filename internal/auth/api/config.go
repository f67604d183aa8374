package authapi

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config controls auth API transport behavior.
type Config struct {
	// CookieName is the refresh-secret cookie. HTTP-only, SameSite=Lax,
	// scoped to CookiePath so the secret only travels to auth endpoints.
	CookieName   string
	CookiePath   string
	CookieDomain string
	CookieSecure bool

	MaxBodyBytes int64

	// Login throttling: a per-IP sliding window plus a per-login-name
	// progressive lockout. A zero threshold disables that check.
	LoginIPMax    int
	LoginIPWindow time.Duration

	LockoutShortThreshold  int
	LockoutShortDuration   time.Duration
	LockoutLongThreshold   int
	LockoutLongDuration    time.Duration
	LockoutSevereThreshold int
	LockoutSevereDuration  time.Duration
}

// LoadConfigFromEnv loads auth API config from environment variables
// with safe defaults.
func LoadConfigFromEnv() Config {
	cfg := Config{
		CookieName:   envString("PHOTOSHARE_AUTH_COOKIE_NAME", "refresh_token"),
		CookiePath:   envString("PHOTOSHARE_AUTH_COOKIE_PATH", "/auth"),
		CookieDomain: envString("PHOTOSHARE_AUTH_COOKIE_DOMAIN", ""),
		CookieSecure: envBool("PHOTOSHARE_AUTH_COOKIE_SECURE", false),
		MaxBodyBytes: envInt64("PHOTOSHARE_AUTH_MAX_BODY_BYTES", 1<<20), // 1 MiB

		LoginIPMax:    envInt("PHOTOSHARE_LOGIN_IP_MAX", 20),
		LoginIPWindow: envDuration("PHOTOSHARE_LOGIN_IP_WINDOW", 15*time.Minute),

		LockoutShortThreshold:  envInt("PHOTOSHARE_LOCKOUT_SHORT_THRESHOLD", 5),
		LockoutShortDuration:   envDuration("PHOTOSHARE_LOCKOUT_SHORT_DURATION", 5*time.Minute),
		LockoutLongThreshold:   envInt("PHOTOSHARE_LOCKOUT_LONG_THRESHOLD", 10),
		LockoutLongDuration:    envDuration("PHOTOSHARE_LOCKOUT_LONG_DURATION", 30*time.Minute),
		LockoutSevereThreshold: envInt("PHOTOSHARE_LOCKOUT_SEVERE_THRESHOLD", 20),
		LockoutSevereDuration:  envDuration("PHOTOSHARE_LOCKOUT_SEVERE_DURATION", 2*time.Hour),
	}

	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 1 << 20
	}
	return cfg
}

func envString(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}

func envDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		return def
	}
	return d
}

func envInt64(key string, def int64) int64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
