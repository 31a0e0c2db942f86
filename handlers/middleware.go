package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/haniwon/clinic-server/auth"
	"github.com/haniwon/clinic-server/logging"
)

type contextKey string

const claimsContextKey contextKey = "staff_claims"

// ClaimsFromContext returns the authenticated staff claims, if any.
func ClaimsFromContext(ctx context.Context) (*auth.Claims, bool) {
	claims, ok := ctx.Value(claimsContextKey).(*auth.Claims)
	return claims, ok
}

// Authenticate verifies the Bearer token and stores the claims in the
// request context. Requests without a valid token are rejected.
func (h *Handler) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			h.RespondWithError(w, http.StatusUnauthorized, "Missing or malformed Authorization header")
			return
		}

		claims, err := h.sessions.VerifyToken(token)
		if err != nil {
			h.RespondWithError(w, http.StatusUnauthorized, "Invalid or expired session")
			return
		}

		ctx := context.WithValue(r.Context(), claimsContextKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequirePermission gates an endpoint on one field of the account's
// permission matrix. The account is re-read so a permission change or a
// deactivation takes effect before the token expires.
func (h *Handler) RequirePermission(allowed func(auth.Permissions) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFromContext(r.Context())
			if !ok {
				h.RespondWithError(w, http.StatusUnauthorized, "Not authenticated")
				return
			}

			account, err := h.db.GetStaffAccount(r.Context(), claims.AccountID)
			if err != nil {
				h.RespondWithError(w, http.StatusUnauthorized, "Account not found")
				return
			}
			if !account.IsActive {
				h.RespondWithError(w, http.StatusForbidden, "Account is deactivated")
				return
			}

			if !allowed(account.Permissions) {
				logging.Warn("Permission denied",
					"username", claims.Username,
					"path", r.URL.Path,
					"method", r.Method,
				)
				h.RespondWithError(w, http.StatusForbidden, "Insufficient permissions")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdmin gates an endpoint on the admin role.
func (h *Handler) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFromContext(r.Context())
		if !ok {
			h.RespondWithError(w, http.StatusUnauthorized, "Not authenticated")
			return
		}
		if auth.ParseRole(claims.Role) != auth.RoleAdmin {
			h.RespondWithError(w, http.StatusForbidden, "Admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
