package models

import "time"

// ReconcileMode distinguishes the scheduled frozen-timesheet sweep from
// the targeted id-list repair.
type ReconcileMode string

const (
	ReconcileModeFrozen   ReconcileMode = "frozen"
	ReconcileModeTargeted ReconcileMode = "targeted"
)

// ReconcileReport summarises one reconciliation pass.
type ReconcileReport struct {
	Mode             ReconcileMode `json:"mode"`
	DryRun           bool          `json:"dry_run"`
	FrozenTimesheets int           `json:"frozen_timesheets"`
	Matched          int           `json:"matched"`
	Modified         int64         `json:"modified"`
	ApprovalIDs      []string      `json:"approval_ids"`
	RanAt            time.Time     `json:"ran_at"`
}

// DriftedApproval is an approval row whose frozen parent says it should be
// approved but is not.
type DriftedApproval struct {
	ApprovalID                string           `db:"approval_id" json:"approval_id"`
	TimesheetID               string           `db:"timesheet_id" json:"timesheet_id"`
	ProjectID                 string           `db:"project_id" json:"project_id"`
	UserID                    string           `db:"user_id" json:"user_id"`
	WeekStartDate             time.Time        `db:"week_start_date" json:"week_start_date"`
	ManagementStatus          ManagementStatus `db:"management_status" json:"management_status"`
	ManagementRejectionReason *string          `db:"management_rejection_reason" json:"management_rejection_reason,omitempty"`
}
