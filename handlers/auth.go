package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/camden-git/photogallery/apperrors"
	"github.com/camden-git/photogallery/auth"
)

const maxLoginBodyBytes = 64 << 10

type AuthHandler struct {
	Gate   *auth.Gate
	Logger *slog.Logger
}

func NewAuthHandler(gate *auth.Gate, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{Gate: gate, Logger: logger}
}

type LoginForm struct {
	Password string `validate:"required"`
}

type successResponse struct {
	Success bool `json:"success"`
}

// Login accepts the password as a url-encoded or multipart form field and sets the session cookie.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxLoginBodyBytes)

	form := LoginForm{Password: r.PostFormValue("password")}
	if err := validate.Struct(form); err != nil {
		writeError(w, h.Logger, apperrors.Validation("password is required", err))
		return
	}

	token, expiresAt, err := h.Gate.Login(form.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			h.Logger.Warn("failed admin login", "remote_addr", r.RemoteAddr)
			writeError(w, h.Logger, apperrors.Unauthorized("Invalid password", err))
			return
		}
		writeError(w, h.Logger, err)
		return
	}

	http.SetCookie(w, h.Gate.SessionCookie(token, expiresAt))
	writeJSON(w, http.StatusOK, successResponse{Success: true})
}

// Logout clears the session cookie. Issued tokens stay valid until they expire.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, h.Gate.ClearedCookie())
	writeJSON(w, http.StatusOK, successResponse{Success: true})
}
