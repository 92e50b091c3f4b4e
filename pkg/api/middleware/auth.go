// Package middleware provides HTTP middleware for the Vox API:
// bearer-token authentication with purpose enforcement and
// federation envelope verification.
package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/cmorg789/vox/pkg/api/respond"
	"github.com/cmorg789/vox/pkg/auth"
)

type contextKey string

const identityContextKey contextKey = "identity"

// Identity retrieves the authenticated identity from the request
// context. Returns nil outside of an authenticated route.
func Identity(ctx context.Context) *auth.Identity {
	id, ok := ctx.Value(identityContextKey).(*auth.Identity)
	if !ok {
		return nil
	}
	return id
}

// WithIdentity returns a context carrying the identity; exported for
// handler tests.
func WithIdentity(ctx context.Context, id *auth.Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, id)
}

// BearerToken extracts the token from an Authorization: Bearer header.
func BearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	if h == "" {
		return "", false
	}
	parts := strings.SplitN(h, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	return parts[1], true
}

// Auth enforces bearer authentication for the given token purposes.
// A token with the wrong purpose prefix (an mfa_ ticket at an ordinary
// endpoint, say) is rejected exactly like a bad token, without leaking
// which check failed.
func Auth(svc *auth.Service, accepted ...auth.Purpose) func(http.Handler) http.Handler {
	if len(accepted) == 0 {
		accepted = []auth.Purpose{auth.PurposeSession}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := BearerToken(r)
			if !ok {
				respond.Unauthorized(w, "MISSING_TOKEN", "authorization required")
				return
			}

			id, err := svc.Authenticate(r.Context(), raw, accepted...)
			if err != nil {
				switch {
				case errors.Is(err, auth.ErrUserInactive):
					respond.Unauthorized(w, "ACCOUNT_DISABLED", "account is deactivated")
				case errors.Is(err, auth.ErrWrongPurpose),
					errors.Is(err, auth.ErrMalformedToken),
					errors.Is(err, auth.ErrInvalidToken):
					respond.Unauthorized(w, "INVALID_TOKEN", "invalid or expired token")
				default:
					respond.Internal(w, "authentication failed")
				}
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}
