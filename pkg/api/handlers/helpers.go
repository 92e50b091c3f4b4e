// Package handlers implements the REST endpoints of the Vox API.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/cmorg789/vox/pkg/api/middleware"
	"github.com/cmorg789/vox/pkg/api/respond"
	"github.com/cmorg789/vox/pkg/auth"
	"github.com/cmorg789/vox/pkg/permissions"
)

// decodeJSON decodes the request body into v, writing the validation
// envelope on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		respond.BadRequest(w, "INVALID_BODY", "request body is not valid JSON")
		return false
	}
	return true
}

// pathID parses a numeric chi URL parameter, writing a 400 on failure.
func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		respond.BadRequest(w, "INVALID_ID", "malformed "+name)
		return 0, false
	}
	return id, true
}

// pathIDQuiet is pathID without the error envelope, for routes where
// the parameter may legitimately be absent.
func pathIDQuiet(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, name), 10, 64)
}

// identity returns the authenticated identity, writing a 401 when the
// middleware did not run. The latter indicates a routing bug, not a
// client error, but the envelope is the same.
func identity(w http.ResponseWriter, r *http.Request) (*auth.Identity, bool) {
	id := middleware.Identity(r.Context())
	if id == nil {
		respond.Unauthorized(w, "MISSING_TOKEN", "authorization required")
		return nil, false
	}
	return id, true
}

// permissionChecker gates handlers on resolved permission bits.
type permissionChecker struct {
	resolver *permissions.Resolver
}

// require resolves the user's server-wide permissions and demands the
// given bits. Writes the error envelope and returns false on failure.
func (p *permissionChecker) require(w http.ResponseWriter, r *http.Request, userID int64, bits permissions.Bits) bool {
	resolved, err := p.resolver.Resolve(r.Context(), userID)
	if err != nil {
		respond.Internal(w, "permission resolution failed")
		return false
	}
	if !permissions.Has(resolved, bits) {
		respond.Forbidden(w, "MISSING_PERMISSION", "you lack the required permission")
		return false
	}
	return true
}

// requireInSpace is require scoped to a feed or room.
func (p *permissionChecker) requireInSpace(w http.ResponseWriter, r *http.Request, userID int64, spaceType permissions.SpaceType, spaceID int64, bits permissions.Bits) bool {
	resolved, err := p.resolver.ResolveInSpace(r.Context(), userID, spaceType, spaceID)
	if err != nil {
		respond.Internal(w, "permission resolution failed")
		return false
	}
	if !permissions.Has(resolved, bits) {
		respond.Forbidden(w, "MISSING_PERMISSION", "you lack the required permission")
		return false
	}
	return true
}
