package authz

import (
	"github.com/Siva2k2k/ES-TM-sub003/internal/models"
	appErrors "github.com/Siva2k2k/ES-TM-sub003/pkg/errors"
)

// Operation is an action an actor attempts on another user's timesheets.
type Operation string

const (
	OperationView    Operation = "view"
	OperationEdit    Operation = "edit"
	OperationApprove Operation = "approve"
	OperationCreate  Operation = "create"
)

// Denial reasons surfaced to callers verbatim.
const (
	ReasonViewOwnOnly          = "You can only view your own timesheets"
	ReasonManagementNoEdit     = "Management cannot edit timesheets directly"
	ReasonInsufficientEdit     = "Insufficient permissions to edit timesheets"
	ReasonApproveManagersOnly  = "Only managers and above can approve timesheets"
	ReasonManagementNoCreate   = "Management cannot create timesheets directly"
	ReasonInvalidOperation     = "Invalid operation"
	ReasonManagementRequired   = "Management level permissions required"
	ReasonManagerRequired      = "Manager level permissions required"
	ReasonSuperAdminRequired   = "Super admin permissions required"
	ReasonAuthenticationNeeded = "User not authenticated"
)

// Denied builds an AuthorizationDenied error carrying reason.
func Denied(reason string) error {
	return appErrors.Clone(appErrors.ErrAuthorizationDenied, reason)
}

// Authorize decides whether actor may perform op on targetUserID's
// timesheets. It returns nil when allowed and an AuthorizationDenied error
// otherwise. Acting on one's own data is always allowed.
func Authorize(actor *Actor, targetUserID string, op Operation) error {
	if actor == nil {
		return Denied(ReasonAuthenticationNeeded)
	}
	if actor.ID == targetUserID {
		return nil
	}

	switch op {
	case OperationView:
		if !CanManage(actor.Role, models.RoleEmployee) {
			return Denied(ReasonViewOwnOnly)
		}
	case OperationEdit:
		if actor.Role == models.RoleManagement {
			return Denied(ReasonManagementNoEdit)
		}
		if !CanManage(actor.Role, models.RoleEmployee) {
			return Denied(ReasonInsufficientEdit)
		}
	case OperationApprove:
		if !CanApprove(actor.Role) {
			return Denied(ReasonApproveManagersOnly)
		}
	case OperationCreate:
		if actor.Role == models.RoleManagement {
			return Denied(ReasonManagementNoCreate)
		}
	default:
		return Denied(ReasonInvalidOperation)
	}
	return nil
}
