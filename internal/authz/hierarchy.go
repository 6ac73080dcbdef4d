// Package authz decides who may act on whose timesheets.
//
// Everything here is a pure function of the actor, the target and static
// role tables, so it is safe to call from any number of goroutines.
package authz

import "github.com/Siva2k2k/ES-TM-sub003/internal/models"

// roleHierarchy lists, per role, exactly the roles it may manage. Rows are
// written out by hand; changing one row does not propagate to the others.
var roleHierarchy = map[models.UserRole][]models.UserRole{
	models.RoleSuperAdmin: {models.RoleSuperAdmin, models.RoleManagement, models.RoleManager, models.RoleLead, models.RoleEmployee},
	models.RoleManagement: {models.RoleManager, models.RoleLead, models.RoleEmployee},
	models.RoleManager:    {models.RoleLead, models.RoleEmployee},
	models.RoleLead:       {models.RoleEmployee},
	models.RoleEmployee:   {},
}

// CanManage reports whether actorRole may manage users holding targetRole.
// Unknown actor roles manage nothing.
func CanManage(actorRole, targetRole models.UserRole) bool {
	for _, role := range roleHierarchy[actorRole] {
		if role == targetRole {
			return true
		}
	}
	return false
}

// ManagedRoles returns a copy of the roles actorRole may manage.
func ManagedRoles(actorRole models.UserRole) []models.UserRole {
	managed := roleHierarchy[actorRole]
	out := make([]models.UserRole, len(managed))
	copy(out, managed)
	return out
}
