package auth

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/gatehouse-api/gatehouse/internal/platform/httpx"
)

// Handler wires JSON HTTP endpoints for authentication flows.
type Handler struct {
	logger     *slog.Logger
	service    *Service
	codec      *Codec
	revocation RevocationStore
	validator  *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, codec *Codec, revocation RevocationStore) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:     logger,
		service:    service,
		codec:      codec,
		revocation: revocation,
		validator:  validator.New(),
	}
}

// MountRoutes registers auth routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/register", h.handleRegister)
	r.Post("/login", h.handleLogin)
	r.Post("/refresh", h.handleRefresh)
	r.Get("/verify-email/{key}", h.handleVerifyEmail)
	r.Post("/send-verification", h.handleSendVerification)
	r.Post("/forgot-password", h.handleForgotPassword)
	r.Post("/reset-password/{key}", h.handleResetPassword)

	r.Group(func(r chi.Router) {
		r.Use(RequireAccessToken(h.codec, h.revocation, h.logger))
		r.Post("/login/token", h.handleLoginWithToken)
		r.Post("/logout", h.handleLogout)
	})
}

type registerRequest struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=8"`
	FirstName string `json:"firstName" validate:"required"`
	LastName  string `json:"lastName" validate:"required"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !h.decode(w, r, &req) {
		return
	}
	user, err := h.service.Register(r.Context(), req.Email, req.Password, req.FirstName, req.LastName)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, user)
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !h.decode(w, r, &req) {
		return
	}
	session, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, session)
}

func (h *Handler) handleLoginWithToken(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())
	if claims == nil {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing token claims")
		return
	}
	session, err := h.service.LoginWithToken(r.Context(), claims.UserID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, session)
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !h.decode(w, r, &req) {
		return
	}
	session, err := h.service.RefreshAccessToken(r.Context(), req.RefreshToken)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, session)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())
	if claims == nil {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing token claims")
		return
	}
	if err := h.service.Logout(r.Context(), claims.UserID, BearerTokenFromContext(r.Context())); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if err := h.service.VerifyEmail(r.Context(), key); err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"message": "email verified"})
}

type emailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

func (h *Handler) handleSendVerification(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.service.SendVerificationEmail(r.Context(), req.Email); err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"message": "verification email sent"})
}

func (h *Handler) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.service.ForgotPassword(r.Context(), req.Email); err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"message": "password reset email sent"})
}

type resetPasswordRequest struct {
	Password string `json:"password" validate:"required,min=8"`
}

func (h *Handler) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	var req resetPasswordRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.service.ResetPassword(r.Context(), key, req.Password); err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"message": "password reset"})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := httpx.DecodeJSON(r, target); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return false
	}
	if err := h.validator.Struct(target); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", fieldErrs[0].Error())
		} else {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "")
		}
		return false
	}
	return true
}

// respondError maps domain error kinds to transport status codes. Internal
// details never cross this boundary; they are logged and replaced with a
// generic message.
func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrEmailTaken):
		httpx.Problem(w, http.StatusConflict, "Conflict", ErrEmailTaken.Error())
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", ErrNotFound.Error())
	case errors.Is(err, ErrAlreadyVerified):
		httpx.Problem(w, http.StatusBadRequest, "Already Verified", ErrAlreadyVerified.Error())
	case errors.Is(err, ErrKeyExpired):
		httpx.Problem(w, http.StatusBadRequest, "Expired", ErrKeyExpired.Error())
	case errors.Is(err, ErrInvalidCredentials),
		errors.Is(err, ErrTokenExpired),
		errors.Is(err, ErrTokenSignature),
		errors.Is(err, ErrTokenMalformed):
		respondAuthError(w, err)
	default:
		h.logger.Error("auth operation failed", slog.String("path", r.URL.Path), slog.Any("error", err))
		httpx.Problem(w, http.StatusUnprocessableEntity, "Unprocessable", "operation could not be completed")
	}
}

func respondAuthError(w http.ResponseWriter, err error) {
	detail := ErrInvalidCredentials.Error()
	switch {
	case errors.Is(err, ErrTokenExpired):
		detail = ErrTokenExpired.Error()
	case errors.Is(err, ErrTokenSignature):
		detail = ErrTokenSignature.Error()
	case errors.Is(err, ErrTokenMalformed):
		detail = ErrTokenMalformed.Error()
	}
	httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", detail)
}
