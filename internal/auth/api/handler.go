// Package authapi exposes the session subsystem over HTTP and provides
// the request-time auth guard consumed by the rest of the application.
package authapi

import (
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"photoshare/internal/auth/session"
	"photoshare/internal/identity"
)

// Handler wires the auth endpoints to the session service.
type Handler struct {
	log      *slog.Logger
	cfg      Config
	sessions *session.Service
	users    identity.Store
	guard    *Guard
	limits   *loginLimiter
}

// NewHandler constructs the auth HTTP handler.
func NewHandler(log *slog.Logger, cfg Config, sessions *session.Service, users identity.Store, guard *Guard) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{
		log:      log,
		cfg:      cfg,
		sessions: sessions,
		users:    users,
		guard:    guard,
		limits:   newLoginLimiter(cfg),
	}
}

// Guard returns the request-time verifier for other route groups.
func (h *Handler) Guard() *Guard { return h.guard }

// Register wires auth routes onto the provided mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /auth/login", h.handleLogin)
	mux.HandleFunc("POST /auth/refresh", h.handleRefresh)
	mux.HandleFunc("POST /auth/logout", h.handleLogout)
	mux.Handle("GET /auth/me", h.guard.RequireAuth(http.HandlerFunc(h.handleMe)))
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := readJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		sendError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	device := deviceFrom(r)
	if blocked, retry := h.limits.Check(device.IP, req.LoginName); blocked {
		loginsTotal.WithLabelValues("rate_limited").Inc()
		writeRateLimited(w, retry)
		return
	}

	issued, user, err := h.sessions.Login(r.Context(), req.LoginName, req.Password, device)
	if err != nil {
		if errors.Is(err, session.ErrInvalidCredentials) {
			h.limits.RecordFailure(device.IP, req.LoginName)
			loginsTotal.WithLabelValues("invalid_credentials").Inc()
			sendError(w, http.StatusUnauthorized, "invalid_credentials", "invalid credentials")
			return
		}
		loginsTotal.WithLabelValues("error").Inc()
		h.log.Error("auth.login.fail", "err", err)
		sendError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	h.limits.Clear(req.LoginName)
	loginsTotal.WithLabelValues("ok").Inc()
	h.setRefreshCookie(w, issued.RefreshSecret, issued.RefreshExpiresAt)
	sendJSON(w, http.StatusOK, sessionResponse{
		AccessToken:     issued.AccessToken,
		AccessExpiresAt: issued.AccessExpiresAt,
		User:            user,
	})
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	secret, ok := h.refreshSecretFromCookie(r)
	if !ok {
		sendError(w, http.StatusUnauthorized, CodeUnauthorized, "not authenticated")
		return
	}

	issued, user, err := h.sessions.Renew(r.Context(), secret, deviceFrom(r))
	if err != nil {
		if errors.Is(err, session.ErrSessionExpired) {
			renewalsTotal.WithLabelValues("expired").Inc()
			h.clearRefreshCookie(w)
			sendError(w, http.StatusUnauthorized, "session_expired", "session expired")
			return
		}
		renewalsTotal.WithLabelValues("error").Inc()
		h.log.Error("auth.refresh.fail", "err", err)
		sendError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	renewalsTotal.WithLabelValues("ok").Inc()
	h.setRefreshCookie(w, issued.RefreshSecret, issued.RefreshExpiresAt)
	sendJSON(w, http.StatusOK, sessionResponse{
		AccessToken:     issued.AccessToken,
		AccessExpiresAt: issued.AccessExpiresAt,
		User:            user,
	})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	// The cookie is cleared unconditionally: even when revocation fails
	// or no session matched, the client must not keep the secret.
	h.clearRefreshCookie(w)

	if secret, ok := h.refreshSecretFromCookie(r); ok {
		if err := h.sessions.Logout(r.Context(), secret); err != nil {
			h.log.Error("auth.logout.fail", "err", err)
			sendError(w, http.StatusInternalServerError, "server_error", "internal error")
			return
		}
	}

	logoutsTotal.Inc()
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	claims, _ := ClaimsFromContext(r.Context())

	user, err := h.users.GetByID(r.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			sendError(w, http.StatusUnauthorized, CodeUnauthorized, "user not found")
			return
		}
		h.log.Error("auth.me.fail", "err", err)
		sendError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	sendJSON(w, http.StatusOK, meResponse{User: user})
}

func deviceFrom(r *http.Request) session.Device {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return session.Device{
		UserAgent: strings.TrimSpace(r.UserAgent()),
		IP:        host,
	}
}
