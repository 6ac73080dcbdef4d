package models

import "time"

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleSuperAdmin UserRole = "super_admin"
	RoleManagement UserRole = "management"
	RoleManager    UserRole = "manager"
	RoleLead       UserRole = "lead"
	RoleEmployee   UserRole = "employee"
)

// AllRoles lists every role known to the system.
var AllRoles = []UserRole{RoleSuperAdmin, RoleManagement, RoleManager, RoleLead, RoleEmployee}

// Valid reports whether r is one of AllRoles.
func (r UserRole) Valid() bool {
	for _, known := range AllRoles {
		if r == known {
			return true
		}
	}
	return false
}

// User represents an application user stored in the users table.
type User struct {
	ID           string     `db:"id" json:"id"`
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	FullName     string     `db:"full_name" json:"full_name"`
	Role         UserRole   `db:"role" json:"role"`
	Active       bool       `db:"active" json:"active"`
	LastLogin    *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// Info returns the public projection of u.
func (u *User) Info() UserInfo {
	return UserInfo{ID: u.ID, Email: u.Email, FullName: u.FullName, Role: u.Role}
}

// UserFilter constrains user listing. Roles restricts to the given set;
// IncludeID additionally admits one user regardless of role.
type UserFilter struct {
	Roles     []UserRole
	IncludeID string
	Active    *bool
	Search    string
	Page      int
	PageSize  int
}
