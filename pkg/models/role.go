package models

// Role is a named permission set. Position 0 is reserved for the
// @everyone role every member implicitly holds; higher positions rank
// higher in the UI.
type Role struct {
	ID          int64  `gorm:"primaryKey" json:"id"`
	Name        string `gorm:"not null;size:255" json:"name"`
	Color       int    `json:"color"`
	Position    int    `gorm:"not null" json:"position"`
	Permissions int64  `gorm:"not null" json:"permissions,string"`
}

// TableName returns the table name for Role.
func (Role) TableName() string {
	return "roles"
}

// IsEveryone reports whether this is the implicit base role.
func (r *Role) IsEveryone() bool {
	return r.Position == 0
}

// RoleMember is the role membership junction row.
type RoleMember struct {
	RoleID int64 `gorm:"primaryKey" json:"role_id"`
	UserID int64 `gorm:"primaryKey;index" json:"user_id"`
}

// TableName returns the table name for RoleMember.
func (RoleMember) TableName() string {
	return "role_members"
}

// PermissionOverride narrows or widens channel permissions for a role
// or a single user within one feed or room.
type PermissionOverride struct {
	ID         int64  `gorm:"primaryKey" json:"id"`
	SpaceType  string `gorm:"not null;size:10;index:ix_perm_override_space;uniqueIndex:uq_perm_override" json:"space_type"`
	SpaceID    int64  `gorm:"not null;index:ix_perm_override_space;uniqueIndex:uq_perm_override" json:"space_id"`
	TargetType string `gorm:"not null;size:10;uniqueIndex:uq_perm_override" json:"target_type"`
	TargetID   int64  `gorm:"not null;uniqueIndex:uq_perm_override" json:"target_id"`
	Allow      int64  `gorm:"not null" json:"allow,string"`
	Deny       int64  `gorm:"not null" json:"deny,string"`
}

// TableName returns the table name for PermissionOverride.
func (PermissionOverride) TableName() string {
	return "permission_overrides"
}
