package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/viajejapon/planner/internal/api/models"
	"github.com/viajejapon/planner/internal/auth"
)

// TokenValidator resolves a bearer token to a user id.
type TokenValidator interface {
	ValidateAccessToken(token string) (string, error)
}

type userIDKey struct{}

// Auth requires a valid bearer token and stores the caller's user id in the
// request context.
func Auth(tokens TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				writeUnauthorized(w, r, "missing authorization header")
				return
			}

			const bearerPrefix = "Bearer "
			if len(header) < len(bearerPrefix) || !strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
				writeUnauthorized(w, r, "invalid authorization header format")
				return
			}

			token := strings.TrimSpace(header[len(bearerPrefix):])
			if token == "" {
				writeUnauthorized(w, r, "missing bearer token")
				return
			}

			userID, err := tokens.ValidateAccessToken(token)
			if err != nil {
				switch {
				case errors.Is(err, auth.ErrAccessTokenExpired):
					writeUnauthorized(w, r, "access token has expired")
				case errors.Is(err, auth.ErrInvalidAccessToken):
					writeUnauthorized(w, r, "invalid access token")
				default:
					writeUnauthorized(w, r, "authentication failed")
				}
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
		})
	}
}

// WithUserID returns ctx carrying userID.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey{}, userID)
}

// GetUserID returns the authenticated user id, or "".
func GetUserID(ctx context.Context) string {
	if id, ok := ctx.Value(userIDKey{}).(string); ok {
		return id
	}
	return ""
}

// writeUnauthorized lives here because the response package imports this one.
func writeUnauthorized(w http.ResponseWriter, r *http.Request, detail string) {
	problem := models.NewUnauthorized(GetRequestID(r.Context()), detail)
	problem.Instance = r.URL.Path
	problem.Write(w)
}

// RequireUsers allows only the listed user ids through. It must run after
// Auth. An empty list allows every authenticated user.
func RequireUsers(userIDs []string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(userIDs))
	for _, id := range userIDs {
		allowed[id] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(allowed) > 0 {
				if _, ok := allowed[GetUserID(r.Context())]; !ok {
					problem := models.NewForbidden(GetRequestID(r.Context()), "admin access required")
					problem.Instance = r.URL.Path
					problem.Write(w)
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
