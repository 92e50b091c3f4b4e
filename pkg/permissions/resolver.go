package permissions

import (
	"context"
)

// SpaceType identifies the kind of space an override is scoped to.
type SpaceType string

const (
	SpaceFeed SpaceType = "feed"
	SpaceRoom SpaceType = "room"
)

// Override target kinds.
const (
	TargetRole = "role"
	TargetUser = "user"
)

// Role is the subset of role state the resolver reads.
type Role struct {
	ID          int64
	Position    int
	Permissions Bits
}

// Override is a space-scoped allow/deny pair applied to a role or a user.
type Override struct {
	TargetType string
	TargetID   int64
	Allow      Bits
	Deny       Bits
}

// Source provides the role and override data the resolver needs.
// Implementations are expected to hit the database once per method call.
type Source interface {
	// EveryoneRole returns the @everyone role (position 0), or nil when
	// the server has none.
	EveryoneRole(ctx context.Context) (*Role, error)

	// UserRoles returns every role the user is explicitly a member of,
	// regardless of position.
	UserRoles(ctx context.Context, userID int64) ([]Role, error)

	// MemberRoles returns explicit role memberships for a batch of users.
	// Users with no memberships map to an empty slice.
	MemberRoles(ctx context.Context, userIDs []int64) (map[int64][]Role, error)

	// SpaceOverrides returns all overrides scoped to the given space.
	SpaceOverrides(ctx context.Context, spaceType SpaceType, spaceID int64) ([]Override, error)
}

// Resolver computes effective permissions from roles and overrides.
type Resolver struct {
	src Source
}

// NewResolver returns a Resolver backed by the given source.
func NewResolver(src Source) *Resolver {
	return &Resolver{src: src}
}

// Resolve computes a user's server-wide permissions with no space scoping.
// A user holding no roles resolves to the @everyone permissions, or 0 when
// that role is absent.
func (r *Resolver) Resolve(ctx context.Context, userID int64) (Bits, error) {
	everyone, err := r.src.EveryoneRole(ctx)
	if err != nil {
		return 0, err
	}
	roles, err := r.src.UserRoles(ctx, userID)
	if err != nil {
		return 0, err
	}
	return combine(everyone, roles, nil, userID), nil
}

// ResolveInSpace computes a user's permissions scoped to a feed or room,
// applying that space's overrides.
func (r *Resolver) ResolveInSpace(ctx context.Context, userID int64, spaceType SpaceType, spaceID int64) (Bits, error) {
	everyone, err := r.src.EveryoneRole(ctx)
	if err != nil {
		return 0, err
	}
	roles, err := r.src.UserRoles(ctx, userID)
	if err != nil {
		return 0, err
	}
	overrides, err := r.src.SpaceOverrides(ctx, spaceType, spaceID)
	if err != nil {
		return 0, err
	}
	return combine(everyone, roles, overrides, userID), nil
}

// ResolveAll computes permissions for a batch of users with a single
// override fetch. Used by fan-out paths that filter recipients by
// visibility.
func (r *Resolver) ResolveAll(ctx context.Context, userIDs []int64, spaceType SpaceType, spaceID int64) (map[int64]Bits, error) {
	everyone, err := r.src.EveryoneRole(ctx)
	if err != nil {
		return nil, err
	}
	memberRoles, err := r.src.MemberRoles(ctx, userIDs)
	if err != nil {
		return nil, err
	}
	overrides, err := r.src.SpaceOverrides(ctx, spaceType, spaceID)
	if err != nil {
		return nil, err
	}

	results := make(map[int64]Bits, len(userIDs))
	for _, uid := range userIDs {
		results[uid] = combine(everyone, memberRoles[uid], overrides, uid)
	}
	return results, nil
}

// combine applies the resolution algorithm: union of role bitfields, admin
// short-circuit, then three strictly-ordered override passes (@everyone
// override, union of the user's role overrides, user-specific override),
// then an admin re-check.
func combine(everyone *Role, userRoles []Role, overrides []Override, userID int64) Bits {
	var base Bits
	var everyoneID int64 = -1
	if everyone != nil {
		base = everyone.Permissions
		everyoneID = everyone.ID
	}

	roleIDs := make(map[int64]bool, len(userRoles))
	for _, role := range userRoles {
		roleIDs[role.ID] = true
		if role.Position != 0 {
			base |= role.Permissions
		}
	}

	if base&Administrator != 0 {
		return All
	}

	if len(overrides) > 0 {
		// Pass 1: @everyone role override.
		for _, o := range overrides {
			if o.TargetType == TargetRole && o.TargetID == everyoneID {
				base = (base &^ o.Deny) | o.Allow
			}
		}

		// Pass 2: union of the user's role overrides, applied as one.
		var roleAllow, roleDeny Bits
		for _, o := range overrides {
			if o.TargetType == TargetRole && roleIDs[o.TargetID] {
				roleAllow |= o.Allow
				roleDeny |= o.Deny
			}
		}
		base = (base &^ roleDeny) | roleAllow

		// Pass 3: user-specific override.
		for _, o := range overrides {
			if o.TargetType == TargetUser && o.TargetID == userID {
				base = (base &^ o.Deny) | o.Allow
			}
		}
	}

	if base&Administrator != 0 {
		return All
	}
	return base
}
