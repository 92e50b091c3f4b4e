package handlers

import (
	"errors"
	"net/http"

	"github.com/cmorg789/vox/pkg/api/respond"
	"github.com/cmorg789/vox/pkg/events"
	"github.com/cmorg789/vox/pkg/gateway"
	"github.com/cmorg789/vox/pkg/models"
	"github.com/cmorg789/vox/pkg/permissions"
	"github.com/cmorg789/vox/pkg/snowflake"
	"github.com/cmorg789/vox/pkg/store"
)

// RoleHandler implements role CRUD, membership, and per-space
// permission overrides. Everything here is gated on ManageRoles.
type RoleHandler struct {
	store      store.Store
	dispatcher gateway.Dispatcher
	ids        *snowflake.Generator
	perms      *permissionChecker
}

// NewRoleHandler creates the role handler.
func NewRoleHandler(st store.Store, d gateway.Dispatcher, ids *snowflake.Generator, resolver *permissions.Resolver) *RoleHandler {
	return &RoleHandler{store: st, dispatcher: d, ids: ids, perms: &permissionChecker{resolver: resolver}}
}

type roleRequest struct {
	Name        string `json:"name"`
	Color       int    `json:"color"`
	Position    int    `json:"position"`
	Permissions int64  `json:"permissions,string"`
}

// CreateRole creates a role. Position 0 is reserved for @everyone.
func (h *RoleHandler) CreateRole(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	if !h.perms.require(w, r, id.User.ID, permissions.ManageRoles) {
		return
	}

	var req roleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Name == "" {
		respond.BadRequest(w, "INVALID_ROLE", "role name is required")
		return
	}
	if req.Position <= 0 {
		respond.BadRequest(w, "INVALID_ROLE", "position must be above the base role")
		return
	}

	role := &models.Role{
		ID:          h.ids.Next(),
		Name:        req.Name,
		Color:       req.Color,
		Position:    req.Position,
		Permissions: req.Permissions,
	}
	if err := h.store.CreateRole(r.Context(), role); err != nil {
		respond.Internal(w, "failed to create role")
		return
	}

	_ = h.dispatcher.Dispatch(r.Context(), events.RoleCreate(events.RoleCreateData{
		RoleID:      role.ID,
		Name:        role.Name,
		Permissions: uint64(role.Permissions),
		Position:    role.Position,
	}))
	respond.WriteJSON(w, http.StatusCreated, role)
}

// ListRoles returns every role, base role included.
func (h *RoleHandler) ListRoles(w http.ResponseWriter, r *http.Request) {
	if _, ok := identity(w, r); !ok {
		return
	}
	roles, err := h.store.ListRoles(r.Context())
	if err != nil {
		respond.Internal(w, "failed to list roles")
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]any{"roles": roles})
}

// UpdateRole patches a role's fields and dispatches the changed set.
func (h *RoleHandler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	if !h.perms.require(w, r, id.User.ID, permissions.ManageRoles) {
		return
	}
	roleID, ok := pathID(w, r, "roleID")
	if !ok {
		return
	}

	role, err := h.store.GetRole(r.Context(), roleID)
	if err != nil {
		respond.NotFound(w, "ROLE_NOT_FOUND", "role does not exist")
		return
	}

	var req struct {
		Name        *string `json:"name"`
		Color       *int    `json:"color"`
		Position    *int    `json:"position"`
		Permissions *int64  `json:"permissions,string"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	changed := map[string]any{}
	if req.Name != nil {
		role.Name = *req.Name
		changed["name"] = role.Name
	}
	if req.Color != nil {
		role.Color = *req.Color
		changed["color"] = role.Color
	}
	if req.Position != nil {
		if role.IsEveryone() || *req.Position <= 0 {
			respond.BadRequest(w, "INVALID_ROLE", "cannot reposition the base role")
			return
		}
		role.Position = *req.Position
		changed["position"] = role.Position
	}
	if req.Permissions != nil {
		role.Permissions = *req.Permissions
		changed["permissions"] = uint64(role.Permissions)
	}
	if len(changed) == 0 {
		respond.WriteJSON(w, http.StatusOK, role)
		return
	}

	if err := h.store.UpdateRole(r.Context(), role); err != nil {
		respond.Internal(w, "failed to update role")
		return
	}
	_ = h.dispatcher.Dispatch(r.Context(), events.RoleUpdate(role.ID, changed))
	respond.WriteJSON(w, http.StatusOK, role)
}

// DeleteRole removes a role. The base role cannot be deleted.
func (h *RoleHandler) DeleteRole(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	if !h.perms.require(w, r, id.User.ID, permissions.ManageRoles) {
		return
	}
	roleID, ok := pathID(w, r, "roleID")
	if !ok {
		return
	}

	role, err := h.store.GetRole(r.Context(), roleID)
	if err != nil {
		respond.NotFound(w, "ROLE_NOT_FOUND", "role does not exist")
		return
	}
	if role.IsEveryone() {
		respond.BadRequest(w, "INVALID_ROLE", "the base role cannot be deleted")
		return
	}

	if err := h.store.DeleteRole(r.Context(), roleID); err != nil {
		respond.Internal(w, "failed to delete role")
		return
	}
	_ = h.dispatcher.Dispatch(r.Context(), events.RoleDelete(roleID))
	w.WriteHeader(http.StatusNoContent)
}

// AssignRole adds a member to a role. Idempotent.
func (h *RoleHandler) AssignRole(w http.ResponseWriter, r *http.Request) {
	h.membership(w, r, true)
}

// RevokeRole removes a member from a role. Idempotent.
func (h *RoleHandler) RevokeRole(w http.ResponseWriter, r *http.Request) {
	h.membership(w, r, false)
}

func (h *RoleHandler) membership(w http.ResponseWriter, r *http.Request, assign bool) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	if !h.perms.require(w, r, id.User.ID, permissions.ManageRoles) {
		return
	}
	roleID, ok := pathID(w, r, "roleID")
	if !ok {
		return
	}
	userID, ok := pathID(w, r, "userID")
	if !ok {
		return
	}

	if _, err := h.store.GetRole(r.Context(), roleID); err != nil {
		respond.NotFound(w, "ROLE_NOT_FOUND", "role does not exist")
		return
	}

	var err error
	var evt events.Event
	if assign {
		err = h.store.AssignRole(r.Context(), roleID, userID)
		evt = events.RoleAssign(roleID, userID)
	} else {
		err = h.store.RevokeRole(r.Context(), roleID, userID)
		evt = events.RoleRevoke(roleID, userID)
	}
	if err != nil {
		if errors.Is(err, models.ErrUserNotFound) {
			respond.NotFound(w, "USER_NOT_FOUND", "user does not exist")
			return
		}
		respond.Internal(w, "failed to update role membership")
		return
	}

	_ = h.dispatcher.Dispatch(r.Context(), evt)
	w.WriteHeader(http.StatusNoContent)
}

type overrideRequest struct {
	TargetType string `json:"target_type"`
	TargetID   int64  `json:"target_id,string"`
	Allow      int64  `json:"allow,string"`
	Deny       int64  `json:"deny,string"`
}

func (o *overrideRequest) validate() error {
	if o.TargetType != permissions.TargetRole && o.TargetType != permissions.TargetUser {
		return errors.New("target_type must be role or user")
	}
	if o.Allow&o.Deny != 0 {
		return errors.New("a bit cannot be both allowed and denied")
	}
	return nil
}

// SetOverride creates or replaces a permission override on a feed or
// room. The pair (target, space) is unique, so repeated calls overwrite.
func (h *RoleHandler) SetOverride(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	spaceType, spaceID, ok := h.spaceFromPath(w, r)
	if !ok {
		return
	}
	if !h.perms.requireInSpace(w, r, id.User.ID, permissions.SpaceType(spaceType), spaceID, permissions.ManageRoles) {
		return
	}

	var req overrideRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := req.validate(); err != nil {
		respond.BadRequest(w, "INVALID_OVERRIDE", err.Error())
		return
	}

	override := &models.PermissionOverride{
		ID:         h.ids.Next(),
		SpaceType:  spaceType,
		SpaceID:    spaceID,
		TargetType: req.TargetType,
		TargetID:   req.TargetID,
		Allow:      req.Allow,
		Deny:       req.Deny,
	}
	if err := h.store.SetPermissionOverride(r.Context(), override); err != nil {
		respond.Internal(w, "failed to set override")
		return
	}

	_ = h.dispatcher.Dispatch(r.Context(), events.PermissionOverrideUpdate(events.OverrideData{
		SpaceType:  spaceType,
		SpaceID:    spaceID,
		TargetType: req.TargetType,
		TargetID:   req.TargetID,
		Allow:      uint64(req.Allow),
		Deny:       uint64(req.Deny),
	}))
	respond.WriteJSON(w, http.StatusOK, override)
}

// DeleteOverride removes an override. Idempotent.
func (h *RoleHandler) DeleteOverride(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	spaceType, spaceID, ok := h.spaceFromPath(w, r)
	if !ok {
		return
	}
	if !h.perms.requireInSpace(w, r, id.User.ID, permissions.SpaceType(spaceType), spaceID, permissions.ManageRoles) {
		return
	}

	var req struct {
		TargetType string `json:"target_type"`
		TargetID   int64  `json:"target_id,string"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.store.DeletePermissionOverride(r.Context(), spaceType, spaceID, req.TargetType, req.TargetID); err != nil {
		respond.Internal(w, "failed to delete override")
		return
	}

	_ = h.dispatcher.Dispatch(r.Context(), events.PermissionOverrideDelete(events.OverrideData{
		SpaceType:  spaceType,
		SpaceID:    spaceID,
		TargetType: req.TargetType,
		TargetID:   req.TargetID,
	}))
	w.WriteHeader(http.StatusNoContent)
}

// spaceFromPath extracts the feed or room the override route is mounted
// under.
func (h *RoleHandler) spaceFromPath(w http.ResponseWriter, r *http.Request) (string, int64, bool) {
	if feedID, err := pathIDQuiet(r, "feedID"); err == nil {
		return string(permissions.SpaceFeed), feedID, true
	}
	roomID, ok := pathID(w, r, "roomID")
	if !ok {
		return "", 0, false
	}
	return string(permissions.SpaceRoom), roomID, true
}
