package authz

import "github.com/Siva2k2k/ES-TM-sub003/internal/models"

// The allow-lists below are deliberately independent of roleHierarchy:
// lead manages employees but may not approve, and management may approve
// but is barred from editing.

// CanApprove reports whether role may approve another user's timesheet.
func CanApprove(role models.UserRole) bool {
	switch role {
	case models.RoleManager, models.RoleManagement, models.RoleSuperAdmin:
		return true
	}
	return false
}

// IsManagementLevel reports whether role holds management authority.
func IsManagementLevel(role models.UserRole) bool {
	switch role {
	case models.RoleManagement, models.RoleSuperAdmin:
		return true
	}
	return false
}

// IsManagerLevel reports whether role holds manager authority or above.
func IsManagerLevel(role models.UserRole) bool {
	switch role {
	case models.RoleManager, models.RoleManagement, models.RoleSuperAdmin:
		return true
	}
	return false
}

// RequireManagementRole allows management and super_admin.
func RequireManagementRole(actor *Actor) error {
	if actor == nil {
		return Denied(ReasonAuthenticationNeeded)
	}
	if !IsManagementLevel(actor.Role) {
		return Denied(ReasonManagementRequired)
	}
	return nil
}

// RequireManagerRole allows manager, management and super_admin.
func RequireManagerRole(actor *Actor) error {
	if actor == nil {
		return Denied(ReasonAuthenticationNeeded)
	}
	if !IsManagerLevel(actor.Role) {
		return Denied(ReasonManagerRequired)
	}
	return nil
}

// RequireSuperAdmin allows super_admin only.
func RequireSuperAdmin(actor *Actor) error {
	if actor == nil {
		return Denied(ReasonAuthenticationNeeded)
	}
	if actor.Role != models.RoleSuperAdmin {
		return Denied(ReasonSuperAdminRequired)
	}
	return nil
}
