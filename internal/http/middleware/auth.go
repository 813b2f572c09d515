package middleware

import (
	"net/http"

	"github.com/clinicops/visitdesk/internal/apperr"
	"github.com/clinicops/visitdesk/internal/auth"
	"github.com/clinicops/visitdesk/internal/users"
)

// Authenticate resolves the request token to a user and stores it in context.
func Authenticate(svc *auth.Service, repo users.Repository) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := auth.TokenFromRequest(r)
			if !ok {
				apperr.WriteJSON(w, apperr.New(apperr.KindUnauthorized, "not authorized, no token provided"))
				return
			}
			userID, err := svc.VerifyToken(token)
			if err != nil {
				apperr.WriteJSON(w, err)
				return
			}
			user, err := repo.GetByID(r.Context(), userID)
			if err != nil {
				apperr.WriteJSON(w, apperr.New(apperr.KindUnauthorized, "user not found"))
				return
			}
			next.ServeHTTP(w, r.WithContext(auth.WithUser(r.Context(), user)))
		})
	}
}

// RequireRole rejects authenticated callers whose role is outside the
// permitted set.
func RequireRole(roles ...users.Role) func(http.Handler) http.Handler {
	allowed := make(map[users.Role]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := auth.UserFromContext(r.Context())
			if !ok {
				apperr.WriteJSON(w, apperr.New(apperr.KindUnauthorized, "not authenticated"))
				return
			}
			if _, ok := allowed[user.Role]; !ok {
				apperr.WriteJSON(w, apperr.Newf(apperr.KindForbidden, "role %s is not allowed to perform this action", user.Role))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
