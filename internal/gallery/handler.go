package gallery

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	authapi "photoshare/internal/auth/api"
	"photoshare/internal/identity"
)

const maxCommentLength = 2000

// Handler serves the user and photo listing routes. Every route goes
// through the auth guard; deletion additionally requires the admin role.
type Handler struct {
	log    *slog.Logger
	users  identity.Store
	photos PhotoStore
	guard  *authapi.Guard
}

func NewHandler(log *slog.Logger, users identity.Store, photos PhotoStore, guard *authapi.Guard) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{log: log, users: users, photos: photos, guard: guard}
}

// Register wires gallery routes onto the provided mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.Handle("GET /users", h.guard.RequireAuth(http.HandlerFunc(h.handleListUsers)))
	mux.Handle("GET /users/{id}", h.guard.RequireAuth(http.HandlerFunc(h.handleGetUser)))
	mux.Handle("GET /users/{id}/photos", h.guard.RequireAuth(http.HandlerFunc(h.handleListPhotos)))
	mux.Handle("DELETE /photos/{id}", h.guard.RequireAdmin(http.HandlerFunc(h.handleDeletePhoto)))
	mux.Handle("GET /photos/{id}/comments", h.guard.RequireAuth(http.HandlerFunc(h.handleListComments)))
	mux.Handle("POST /photos/{id}/comments", h.guard.RequireAuth(http.HandlerFunc(h.handleAddComment)))
}

func (h *Handler) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List(r.Context())
	if err != nil {
		h.log.Error("gallery.users.list.fail", "err", err)
		respondError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}
	if users == nil {
		users = []identity.User{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"users": users})
}

func (h *Handler) handleGetUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			respondError(w, http.StatusNotFound, "not_found", "user not found")
			return
		}
		h.log.Error("gallery.users.get.fail", "err", err)
		respondError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"user": user})
}

func (h *Handler) handleListPhotos(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("id")

	if _, err := h.users.GetByID(r.Context(), userID); err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			respondError(w, http.StatusNotFound, "not_found", "user not found")
			return
		}
		h.log.Error("gallery.photos.list.fail", "err", err)
		respondError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	photos, err := h.photos.ListByUser(r.Context(), userID)
	if err != nil {
		h.log.Error("gallery.photos.list.fail", "err", err)
		respondError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}
	if photos == nil {
		photos = []Photo{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"photos": photos})
}

func (h *Handler) handleDeletePhoto(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if err := h.photos.Delete(r.Context(), id); err != nil {
		if errors.Is(err, ErrNotFound) {
			respondError(w, http.StatusNotFound, "not_found", "photo not found")
			return
		}
		h.log.Error("gallery.photos.delete.fail", "err", err)
		respondError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	claims, _ := authapi.ClaimsFromContext(r.Context())
	h.log.Info("gallery.photos.delete", "photo_id", id, "by", claims.UserID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleListComments(w http.ResponseWriter, r *http.Request) {
	comments, err := h.photos.ListComments(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			respondError(w, http.StatusNotFound, "not_found", "photo not found")
			return
		}
		h.log.Error("gallery.comments.list.fail", "err", err)
		respondError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}
	if comments == nil {
		comments = []Comment{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"comments": comments})
}

func (h *Handler) handleAddComment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 16<<10)).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	text := strings.TrimSpace(req.Text)
	if text == "" || len(text) > maxCommentLength {
		respondError(w, http.StatusBadRequest, "invalid_comment", "comment text must be 1-2000 characters")
		return
	}

	claims, _ := authapi.ClaimsFromContext(r.Context())
	c := Comment{
		ID:        ulid.Make().String(),
		PhotoID:   r.PathValue("id"),
		UserID:    claims.UserID,
		Text:      text,
		CreatedAt: time.Now().UTC(),
	}

	if err := h.photos.AddComment(r.Context(), c); err != nil {
		if errors.Is(err, ErrNotFound) {
			respondError(w, http.StatusNotFound, "not_found", "photo not found")
			return
		}
		h.log.Error("gallery.comments.add.fail", "err", err)
		respondError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	respondJSON(w, http.StatusCreated, map[string]any{"comment": c})
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, msg string) {
	respondJSON(w, status, map[string]any{
		"error": map[string]string{"code": code, "message": msg},
	})
}
