package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/cmorg789/vox/internal/logger"
	"github.com/cmorg789/vox/pkg/api/respond"
	"github.com/cmorg789/vox/pkg/federation"
)

const originContextKey contextKey = "federation_origin"

// Origin returns the verified federation origin domain, or "" outside
// a federation route.
func Origin(ctx context.Context) string {
	origin, _ := ctx.Value(originContextKey).(string)
	return origin
}

// FederationVerify authenticates the S2S envelope on every federation
// endpoint. Signature and header failures all surface as
// FED_AUTH_FAILED; policy rejections get their own codes so a blocked
// peer can tell the difference from a broken key.
func FederationVerify(verifier *federation.Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin, _, err := verifier.VerifyRequest(r)
			if err != nil {
				switch {
				case errors.Is(err, federation.ErrBlocked):
					respond.Forbidden(w, "FED_BLOCKED", "origin is blocked")
				case errors.Is(err, federation.ErrPolicyDenied):
					respond.Forbidden(w, "FED_POLICY_DENIED", "origin is not admitted by policy")
				default:
					logger.Debug("federation verification failed",
						logger.ClientIP(r.RemoteAddr), logger.Err(err))
					respond.Unauthorized(w, "FED_AUTH_FAILED", "request verification failed")
				}
				return
			}

			ctx := context.WithValue(r.Context(), originContextKey, origin)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
