package app

import "time"

// Config contains all runtime configuration loaded from environment variables.
type Config struct {
	HTTPAddr  string
	LogLevel  string
	LogFormat string

	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int

	DatabaseURL string
	DBMaxConns  int32
	DBMinConns  int32

	// If true, /readyz returns 503 unless the database is configured
	// and reachable.
	ReadinessRequireDB bool

	CORSAllowedOrigins   []string
	CORSAllowCredentials bool
	CORSMaxAgeSeconds    int

	// If true, PHOTOSHARE_REFRESH_HASH_KEY MUST be set (>= 32 bytes) so
	// stored refresh-secret fingerprints are HMAC-based, not plain SHA.
	RequireRefreshHMAC bool
}

// LoadConfig loads Config from environment variables with defaults.
func LoadConfig() Config {
	return Config{
		HTTPAddr:  EnvString("PHOTOSHARE_HTTP_ADDR", "0.0.0.0:8080"),
		LogLevel:  EnvString("PHOTOSHARE_LOG_LEVEL", "info"),
		LogFormat: EnvString("PHOTOSHARE_LOG_FORMAT", "json"),

		ReadHeaderTimeout: EnvDuration("PHOTOSHARE_HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
		ReadTimeout:       EnvDuration("PHOTOSHARE_HTTP_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:      EnvDuration("PHOTOSHARE_HTTP_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:       EnvDuration("PHOTOSHARE_HTTP_IDLE_TIMEOUT", 60*time.Second),

		MaxHeaderBytes: EnvInt("PHOTOSHARE_HTTP_MAX_HEADER_BYTES", 1<<20),

		DatabaseURL: EnvString("PHOTOSHARE_DATABASE_URL", ""),
		DBMaxConns:  EnvInt32("PHOTOSHARE_DB_MAX_CONNS", 10),
		DBMinConns:  EnvInt32("PHOTOSHARE_DB_MIN_CONNS", 0),

		ReadinessRequireDB: EnvBool("PHOTOSHARE_READINESS_REQUIRE_DB", false),

		CORSAllowedOrigins:   EnvStrings("PHOTOSHARE_CORS_ALLOWED_ORIGINS", nil),
		CORSAllowCredentials: EnvBool("PHOTOSHARE_CORS_ALLOW_CREDENTIALS", true),
		CORSMaxAgeSeconds:    EnvInt("PHOTOSHARE_CORS_MAX_AGE_SECONDS", 600),

		RequireRefreshHMAC: EnvBool("PHOTOSHARE_REQUIRE_REFRESH_HMAC", false),
	}
}
