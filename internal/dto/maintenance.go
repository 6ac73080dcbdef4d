package dto

import "github.com/Siva2k2k/ES-TM-sub003/internal/models"

// ReconcileRequest triggers the frozen-timesheet sweep.
type ReconcileRequest struct {
	DryRun bool `json:"dry_run"`
}

// ReconcileByIDsRequest lists approvals verified out-of-band.
type ReconcileByIDsRequest struct {
	ApprovalIDs []string `json:"approval_ids" validate:"required,min=1,max=1000"`
	DryRun      bool     `json:"dry_run"`
}

// DriftResponse wraps the drift preview.
type DriftResponse struct {
	Count int                      `json:"count"`
	Items []models.DriftedApproval `json:"items"`
}
