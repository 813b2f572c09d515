package auth

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/clinicops/visitdesk/internal/apperr"
	"github.com/clinicops/visitdesk/internal/users"
	"github.com/clinicops/visitdesk/pkg/logging"
)

const tokenCookie = "token"

// Handler handles HTTP requests for authentication
type Handler struct {
	svc      *Service
	secure   bool
	tokenTTL time.Duration
	logger   *logging.Logger
}

// NewHandler creates a new auth handler. secure controls the cookie flag.
func NewHandler(svc *Service, secure bool, tokenTTL time.Duration, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{svc: svc, secure: secure, tokenTTL: tokenTTL, logger: logger}
}

type authResponse struct {
	users.PublicUser
	Token string `json:"token"`
}

// Register handles POST /auth/register
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apperr.WriteJSON(w, apperr.New(apperr.KindValidation, "invalid request body"))
		return
	}

	user, token, err := h.svc.Register(r.Context(), req)
	if err != nil {
		h.logger.Error("registration failed", "error", err)
		apperr.WriteJSON(w, err)
		return
	}

	h.setTokenCookie(w, token)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(authResponse{PublicUser: user.Public(), Token: token})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login handles POST /auth/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apperr.WriteJSON(w, apperr.New(apperr.KindValidation, "invalid request body"))
		return
	}

	user, token, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		apperr.WriteJSON(w, err)
		return
	}

	h.setTokenCookie(w, token)
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(authResponse{PublicUser: user.Public(), Token: token})
}

// Logout handles POST /auth/logout by expiring the token cookie.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     tokenCookie,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteStrictMode,
		Expires:  time.Unix(0, 0),
	})
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"message": "logged out"})
}

// Me handles GET /auth/me for the authenticated caller.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		apperr.WriteJSON(w, apperr.New(apperr.KindUnauthorized, "not authenticated"))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(user.Public())
}

func (h *Handler) setTokenCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     tokenCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   int(h.tokenTTL / time.Second),
	})
}

// TokenFromRequest extracts the bearer token from the Authorization header
// or the token cookie.
func TokenFromRequest(r *http.Request) (string, bool) {
	if auth := r.Header.Get("Authorization"); len(auth) > 7 && auth[:7] == "Bearer " {
		return auth[7:], true
	}
	if cookie, err := r.Cookie(tokenCookie); err == nil && cookie.Value != "" {
		return cookie.Value, true
	}
	return "", false
}
