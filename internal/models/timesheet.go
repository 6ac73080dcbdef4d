package models

import "time"

// TimesheetStatus captures the weekly timesheet lifecycle.
type TimesheetStatus string

const (
	TimesheetStatusDraft              TimesheetStatus = "draft"
	TimesheetStatusSubmitted          TimesheetStatus = "submitted"
	TimesheetStatusManagerApproved    TimesheetStatus = "manager_approved"
	TimesheetStatusManagerRejected    TimesheetStatus = "manager_rejected"
	TimesheetStatusManagementPending  TimesheetStatus = "management_pending"
	TimesheetStatusManagementRejected TimesheetStatus = "management_rejected"
	TimesheetStatusFrozen             TimesheetStatus = "frozen"
	TimesheetStatusBilled             TimesheetStatus = "billed"
)

// Editable reports whether hours may still be changed by the owner or a lead.
func (s TimesheetStatus) Editable() bool {
	switch s {
	case TimesheetStatusDraft, TimesheetStatusManagerRejected, TimesheetStatusManagementRejected:
		return true
	}
	return false
}

// AwaitingManagement reports whether every project passed manager review and
// management may now decide, freeze or reject.
func (s TimesheetStatus) AwaitingManagement() bool {
	return s == TimesheetStatusManagerApproved || s == TimesheetStatusManagementPending
}

// Terminal reports whether no further approval work is expected.
func (s TimesheetStatus) Terminal() bool {
	return s == TimesheetStatusFrozen || s == TimesheetStatusBilled
}

// Timesheet is one user's week of logged hours.
type Timesheet struct {
	ID            string          `db:"id" json:"id"`
	UserID        string          `db:"user_id" json:"user_id"`
	WeekStartDate time.Time       `db:"week_start_date" json:"week_start_date"`
	Status        TimesheetStatus `db:"status" json:"status"`
	TotalHours    float64         `db:"total_hours" json:"total_hours"`
	SubmittedAt   *time.Time      `db:"submitted_at" json:"submitted_at,omitempty"`
	DeletedAt     *time.Time      `db:"deleted_at" json:"deleted_at,omitempty"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at" json:"updated_at"`
}

// TimesheetFilter constrains listing queries. Deleted rows are always excluded.
type TimesheetFilter struct {
	UserID string
	Status []TimesheetStatus
	Limit  int
	Offset int
}

// ManagementStatus is a per-project approval state. The manager and
// management stages both use it.
type ManagementStatus string

const (
	ManagementStatusPending  ManagementStatus = "pending"
	ManagementStatusApproved ManagementStatus = "approved"
	ManagementStatusRejected ManagementStatus = "rejected"
)

// TimesheetProjectApproval tracks manager and management sign-off for one
// project charged on a timesheet. Once the parent is frozen every child must
// be management-approved with an approval time and no rejection reason.
type TimesheetProjectApproval struct {
	ID                        string           `db:"id" json:"id"`
	TimesheetID               string           `db:"timesheet_id" json:"timesheet_id"`
	ProjectID                 string           `db:"project_id" json:"project_id"`
	ManagerStatus             ManagementStatus `db:"manager_status" json:"manager_status"`
	ManagerApprovedAt         *time.Time       `db:"manager_approved_at" json:"manager_approved_at,omitempty"`
	ManagerRejectionReason    *string          `db:"manager_rejection_reason" json:"manager_rejection_reason,omitempty"`
	ManagementStatus          ManagementStatus `db:"management_status" json:"management_status"`
	ManagementApprovedAt      *time.Time       `db:"management_approved_at" json:"management_approved_at,omitempty"`
	ManagementRejectionReason *string          `db:"management_rejection_reason" json:"management_rejection_reason,omitempty"`
	WorkedHours               float64          `db:"worked_hours" json:"worked_hours"`
	CreatedAt                 time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt                 time.Time        `db:"updated_at" json:"updated_at"`
}

// Settled reports whether the record already satisfies the frozen-parent invariant.
func (a TimesheetProjectApproval) Settled() bool {
	return a.ManagementStatus == ManagementStatusApproved &&
		a.ManagementApprovedAt != nil &&
		a.ManagementRejectionReason == nil
}

// ProjectHours is the per-project breakdown supplied on submission; one
// approval record is kept per entry.
type ProjectHours struct {
	ProjectID   string  `json:"project_id" validate:"required"`
	WorkedHours float64 `json:"worked_hours" validate:"gte=0,lte=168"`
}
