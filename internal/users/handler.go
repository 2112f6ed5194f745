package users

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/gatehouse-api/gatehouse/internal/auth"
	"github.com/gatehouse-api/gatehouse/internal/platform/httpx"
)

// Handler manages user administration endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	guard   func(http.Handler) http.Handler
}

// NewHandler builds a Handler instance. guard is the access token middleware
// protecting all routes.
func NewHandler(logger *slog.Logger, service *Service, guard func(http.Handler) http.Handler) *Handler {
	return &Handler{logger: logger, service: service, guard: guard}
}

// MountRoutes registers user administration routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.guard)
		r.Get("/", h.listUsers)
		r.Get("/{id}", h.getUser)
		r.Delete("/{id}", h.deleteUser)
	})
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFromContext(r.Context())
	if claims == nil {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing token claims")
		return
	}
	list, err := h.service.ListUsers(r.Context(), claims.UserID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, list)
}

func (h *Handler) getUser(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFromContext(r.Context())
	if claims == nil {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing token claims")
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid user id")
		return
	}
	user, err := h.service.GetUser(r.Context(), claims.UserID, id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, user)
}

func (h *Handler) deleteUser(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFromContext(r.Context())
	if claims == nil {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing token claims")
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid user id")
		return
	}
	if err := h.service.DeleteUser(r.Context(), claims.UserID, id); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrForbidden):
		httpx.Problem(w, http.StatusForbidden, "Forbidden", ErrForbidden.Error())
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", ErrNotFound.Error())
	default:
		h.logger.Error("users operation failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
