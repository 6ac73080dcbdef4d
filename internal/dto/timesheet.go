package dto

import "github.com/Siva2k2k/ES-TM-sub003/internal/models"

// CreateTimesheetRequest opens a draft week. UserID defaults to the caller.
type CreateTimesheetRequest struct {
	UserID        string  `json:"user_id"`
	WeekStartDate string  `json:"week_start_date" validate:"required,datetime=2006-01-02"`
	TotalHours    float64 `json:"total_hours" validate:"gte=0,lte=168"`
}

// UpdateTimesheetRequest changes the logged hours on an editable week.
type UpdateTimesheetRequest struct {
	TotalHours float64 `json:"total_hours" validate:"gte=0,lte=168"`
}

// SubmitTimesheetRequest carries the per-project split sent for approval.
type SubmitTimesheetRequest struct {
	Projects []models.ProjectHours `json:"projects" validate:"required,min=1,dive"`
}

// RejectProjectRequest explains a manager or management rejection.
type RejectProjectRequest struct {
	Reason string `json:"reason" validate:"required,min=3,max=500"`
}

// TimesheetQuery captures list filters from the query string.
type TimesheetQuery struct {
	UserID string   `form:"user_id"`
	Status []string `form:"status"`
	Limit  int      `form:"limit"`
	Offset int      `form:"offset"`
}

// TimesheetDetail is a timesheet together with its project approvals.
type TimesheetDetail struct {
	models.Timesheet
	ProjectApprovals []models.TimesheetProjectApproval `json:"project_approvals"`
}

// FreezeResult reports the approvals settled while freezing.
type FreezeResult struct {
	Timesheet        *models.Timesheet `json:"timesheet"`
	ApprovalsSettled int64             `json:"approvals_settled"`
}

// ReviewResult reports a manager-stage decision and where it left the
// timesheet. AllApproved is true when the decision completed manager review.
type ReviewResult struct {
	Approval        *models.TimesheetProjectApproval `json:"approval"`
	TimesheetStatus models.TimesheetStatus           `json:"timesheet_status"`
	AllApproved     bool                             `json:"all_approved"`
}
