package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/Siva2k2k/ES-TM-sub003/internal/models"
	"github.com/Siva2k2k/ES-TM-sub003/pkg/database"
)

const approvalColumns = `id, timesheet_id, project_id, manager_status, manager_approved_at, manager_rejection_reason, management_status, management_approved_at, management_rejection_reason, worked_hours, created_at, updated_at`

// ApprovalRepository owns per-project approvals and the review decisions
// that move their parent timesheet.
type ApprovalRepository struct {
	db *sqlx.DB
}

// NewApprovalRepository creates a new instance of ApprovalRepository.
func NewApprovalRepository(db *sqlx.DB) *ApprovalRepository {
	return &ApprovalRepository{db: db}
}

// ListByTimesheet returns every approval attached to a timesheet.
func (r *ApprovalRepository) ListByTimesheet(ctx context.Context, timesheetID string) ([]models.TimesheetProjectApproval, error) {
	query := `SELECT ` + approvalColumns + ` FROM timesheet_project_approvals WHERE timesheet_id = $1 ORDER BY project_id`
	var approvals []models.TimesheetProjectApproval
	if err := r.db.SelectContext(ctx, &approvals, query, timesheetID); err != nil {
		return nil, fmt.Errorf("list approvals by timesheet: %w", err)
	}
	return approvals, nil
}

// GetForProject returns the approval for one project on a timesheet.
func (r *ApprovalRepository) GetForProject(ctx context.Context, timesheetID, projectID string) (*models.TimesheetProjectApproval, error) {
	query := `SELECT ` + approvalColumns + ` FROM timesheet_project_approvals WHERE timesheet_id = $1 AND project_id = $2 LIMIT 1`
	var approval models.TimesheetProjectApproval
	if err := getOne(ctx, r.db, &approval, "get project approval", query, timesheetID, projectID); err != nil {
		return nil, err
	}
	return &approval, nil
}

// lockTimesheet row-locks a live timesheet for the rest of tx, provided it
// is still in one of the allowed statuses. A missing row or a status that
// moved on (a lost race) is reported as sql.ErrNoRows.
func lockTimesheet(ctx context.Context, tx *sqlx.Tx, id string, allowed ...models.TimesheetStatus) error {
	var status string
	return getOne(ctx, tx, &status, "lock timesheet",
		`SELECT status FROM timesheets WHERE id = $1 AND deleted_at IS NULL AND status = ANY($2) FOR UPDATE`,
		id, pq.Array(toStrings(allowed)))
}

// ManagerApprove records the manager-stage approval of one project and
// promotes the timesheet to manager_approved once no project is left
// unapproved. complete reports whether that promotion happened.
func (r *ApprovalRepository) ManagerApprove(ctx context.Context, timesheetID, approvalID string, at time.Time) (complete bool, err error) {
	err = database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if err := lockTimesheet(ctx, tx, timesheetID, models.TimesheetStatusSubmitted); err != nil {
			return err
		}
		const approveQuery = `UPDATE timesheet_project_approvals
SET manager_status = 'approved', manager_approved_at = $3, manager_rejection_reason = NULL, updated_at = $3
WHERE id = $2 AND timesheet_id = $1`
		if err := execExpectRow(ctx, tx, "manager approve project", approveQuery, timesheetID, approvalID, at); err != nil {
			return err
		}
		const promoteQuery = `UPDATE timesheets SET status = 'manager_approved', updated_at = $2
WHERE id = $1 AND NOT EXISTS (SELECT 1 FROM timesheet_project_approvals WHERE timesheet_id = $1 AND manager_status <> 'approved')`
		n, err := execCount(ctx, tx, "promote timesheet", promoteQuery, timesheetID, at)
		complete = n == 1
		return err
	})
	return complete, err
}

// ManagerReject rejects one project at the manager stage, reopens review of
// every other project and hands the timesheet back as manager_rejected.
func (r *ApprovalRepository) ManagerReject(ctx context.Context, timesheetID, approvalID, reason string, at time.Time) error {
	return database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if err := lockTimesheet(ctx, tx, timesheetID, models.TimesheetStatusSubmitted, models.TimesheetStatusManagerApproved); err != nil {
			return err
		}
		const rejectQuery = `UPDATE timesheet_project_approvals
SET manager_status = 'rejected', manager_approved_at = NULL, manager_rejection_reason = $3, updated_at = $4
WHERE id = $2 AND timesheet_id = $1`
		if err := execExpectRow(ctx, tx, "manager reject project", rejectQuery, timesheetID, approvalID, reason, at); err != nil {
			return err
		}
		const resetQuery = `UPDATE timesheet_project_approvals
SET manager_status = 'pending', manager_approved_at = NULL, manager_rejection_reason = NULL, updated_at = $3
WHERE timesheet_id = $1 AND id <> $2`
		if _, err := execCount(ctx, tx, "reset project reviews", resetQuery, timesheetID, approvalID, at); err != nil {
			return err
		}
		return execExpectRow(ctx, tx, "return timesheet to owner",
			`UPDATE timesheets SET status = 'manager_rejected', updated_at = $2 WHERE id = $1`, timesheetID, at)
	})
}

// ManagementApprove records management approval of one project. The first
// decision moves the timesheet from manager_approved to management_pending.
func (r *ApprovalRepository) ManagementApprove(ctx context.Context, timesheetID, approvalID string, at time.Time) error {
	return database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if err := lockTimesheet(ctx, tx, timesheetID, models.TimesheetStatusManagerApproved, models.TimesheetStatusManagementPending); err != nil {
			return err
		}
		const approveQuery = `UPDATE timesheet_project_approvals
SET management_status = 'approved', management_approved_at = $3, management_rejection_reason = NULL, updated_at = $3
WHERE id = $2 AND timesheet_id = $1`
		if err := execExpectRow(ctx, tx, "approve project", approveQuery, timesheetID, approvalID, at); err != nil {
			return err
		}
		_, err := execCount(ctx, tx, "mark management pending",
			`UPDATE timesheets SET status = 'management_pending', updated_at = $2 WHERE id = $1 AND status = 'manager_approved'`, timesheetID, at)
		return err
	})
}

// ManagementReject records a management rejection with its reason and
// returns the timesheet to its owner as management_rejected.
func (r *ApprovalRepository) ManagementReject(ctx context.Context, timesheetID, approvalID, reason string, at time.Time) error {
	return database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if err := lockTimesheet(ctx, tx, timesheetID, models.TimesheetStatusManagerApproved, models.TimesheetStatusManagementPending); err != nil {
			return err
		}
		const rejectQuery = `UPDATE timesheet_project_approvals
SET management_status = 'rejected', management_approved_at = NULL, management_rejection_reason = $3, updated_at = $4
WHERE id = $2 AND timesheet_id = $1`
		if err := execExpectRow(ctx, tx, "reject project", rejectQuery, timesheetID, approvalID, reason, at); err != nil {
			return err
		}
		return execExpectRow(ctx, tx, "return timesheet to owner",
			`UPDATE timesheets SET status = 'management_rejected', updated_at = $2 WHERE id = $1`, timesheetID, at)
	})
}

// FindDrifted returns approvals under the given timesheets that are not yet approved.
func (r *ApprovalRepository) FindDrifted(ctx context.Context, timesheetIDs []string) ([]models.TimesheetProjectApproval, error) {
	if len(timesheetIDs) == 0 {
		return nil, nil
	}
	query := `SELECT ` + approvalColumns + ` FROM timesheet_project_approvals WHERE timesheet_id = ANY($1) AND management_status <> 'approved'`
	var approvals []models.TimesheetProjectApproval
	if err := r.db.SelectContext(ctx, &approvals, query, pq.Array(timesheetIDs)); err != nil {
		return nil, fmt.Errorf("find drifted approvals: %w", err)
	}
	return approvals, nil
}

// ApproveDrifted settles every non-approved record under the given
// timesheets in a single statement and returns the rows changed.
func (r *ApprovalRepository) ApproveDrifted(ctx context.Context, timesheetIDs []string, at time.Time) (int64, error) {
	if len(timesheetIDs) == 0 {
		return 0, nil
	}
	const query = `UPDATE timesheet_project_approvals
SET management_status = 'approved', management_approved_at = $2, management_rejection_reason = NULL, updated_at = $2
WHERE timesheet_id = ANY($1) AND management_status <> 'approved'`
	return execCount(ctx, r.db, "approve drifted approvals", query, pq.Array(timesheetIDs), at)
}

// CountByIDs returns how many of the ids exist.
func (r *ApprovalRepository) CountByIDs(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	const query = `SELECT COUNT(*) FROM timesheet_project_approvals WHERE id = ANY($1)`
	var count int
	if err := r.db.GetContext(ctx, &count, query, pq.Array(ids)); err != nil {
		return 0, fmt.Errorf("count approvals by id: %w", err)
	}
	return count, nil
}

// ApproveByIDs forces the listed records to approved regardless of their
// current state. Ids that do not exist are ignored.
func (r *ApprovalRepository) ApproveByIDs(ctx context.Context, ids []string, at time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	const query = `UPDATE timesheet_project_approvals
SET management_status = 'approved', management_approved_at = $2, management_rejection_reason = NULL, updated_at = $2
WHERE id = ANY($1)`
	return execCount(ctx, r.db, "approve approvals by id", query, pq.Array(ids), at)
}

// ListDrift joins drifted approvals with their frozen parents for review
// and export. Soft-deleted parents are excluded.
func (r *ApprovalRepository) ListDrift(ctx context.Context) ([]models.DriftedApproval, error) {
	const query = `SELECT a.id AS approval_id, a.timesheet_id, a.project_id, t.user_id, t.week_start_date, a.management_status, a.management_rejection_reason
FROM timesheet_project_approvals a
JOIN timesheets t ON t.id = a.timesheet_id
WHERE t.status = 'frozen' AND t.deleted_at IS NULL AND a.management_status <> 'approved'
ORDER BY t.week_start_date, a.id`
	var drift []models.DriftedApproval
	if err := r.db.SelectContext(ctx, &drift, query); err != nil {
		return nil, fmt.Errorf("list approval drift: %w", err)
	}
	return drift, nil
}
