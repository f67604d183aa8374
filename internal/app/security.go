package app

import (
	"errors"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
)

// ValidateSecurityConfig enforces the startup security policy.
// Fail-fast is intentional: falling back to unkeyed refresh-secret
// hashing in production must be an explicit operator choice.
func ValidateSecurityConfig(cfg Config) error {
	if !cfg.RequireRefreshHMAC {
		return nil
	}

	// Measured in bytes, not runes; the key is used as raw bytes.
	key := os.Getenv("PHOTOSHARE_REFRESH_HASH_KEY")
	switch {
	case strings.TrimSpace(key) == "":
		return errors.New("security policy: PHOTOSHARE_REQUIRE_REFRESH_HMAC=true but PHOTOSHARE_REFRESH_HASH_KEY is missing")
	case len(key) < 32:
		return errors.New("security policy: PHOTOSHARE_REQUIRE_REFRESH_HMAC=true but PHOTOSHARE_REFRESH_HASH_KEY is too short (min 32 bytes)")
	}
	return nil
}

// WithSecurityHeaders sets the baseline response headers on every route.
func WithSecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")
		next.ServeHTTP(w, r)
	})
}

// WithCORS enforces the allowed-origin list. The refresh cookie only
// travels cross-origin when credentials are allowed, so browser clients
// need their exact origin listed here.
func WithCORS(next http.Handler, cfg Config, log *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := strings.TrimSpace(r.Header.Get("Origin"))
		if origin == "" || len(cfg.CORSAllowedOrigins) == 0 {
			next.ServeHTTP(w, r)
			return
		}

		if !originAllowed(origin, cfg.CORSAllowedOrigins) {
			log.Warn("cors.denied", "origin", origin, "path", r.URL.Path)
			http.Error(w, "origin not allowed", http.StatusForbidden)
			return
		}

		h := w.Header()
		h.Set("Access-Control-Allow-Origin", origin)
		h.Add("Vary", "Origin")
		if cfg.CORSAllowCredentials {
			h.Set("Access-Control-Allow-Credentials", "true")
		}

		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
			if reqHeaders := r.Header.Get("Access-Control-Request-Headers"); reqHeaders != "" {
				h.Set("Access-Control-Allow-Headers", reqHeaders)
			}
			if cfg.CORSMaxAgeSeconds > 0 {
				h.Set("Access-Control-Max-Age", strconv.Itoa(cfg.CORSMaxAgeSeconds))
			}
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// originAllowed matches exact origins plus a trailing ":*" port
// wildcard for local development ("http://127.0.0.1:*").
func originAllowed(origin string, allowed []string) bool {
	for _, a := range allowed {
		if a == origin {
			return true
		}
		if base, ok := strings.CutSuffix(a, ":*"); ok {
			if rest, ok := strings.CutPrefix(origin, base+":"); ok && rest != "" {
				if _, err := strconv.Atoi(rest); err == nil {
					return true
				}
			}
		}
	}
	return false
}
