package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/Siva2k2k/ES-TM-sub003/internal/models"
	"github.com/Siva2k2k/ES-TM-sub003/pkg/database"
)

const timesheetColumns = `id, user_id, week_start_date, status, total_hours, submitted_at, deleted_at, created_at, updated_at`

// TimesheetRepository provides database access for weekly timesheets.
type TimesheetRepository struct {
	db *sqlx.DB
}

// NewTimesheetRepository creates a new instance of TimesheetRepository.
func NewTimesheetRepository(db *sqlx.DB) *TimesheetRepository {
	return &TimesheetRepository{db: db}
}

// Create inserts a draft timesheet.
func (r *TimesheetRepository) Create(ctx context.Context, ts *models.Timesheet) error {
	if ts.ID == "" {
		ts.ID = uuid.NewString()
	}
	if ts.Status == "" {
		ts.Status = models.TimesheetStatusDraft
	}
	const query = `INSERT INTO timesheets (id, user_id, week_start_date, status, total_hours, submitted_at, deleted_at, created_at, updated_at)
VALUES (:id, :user_id, :week_start_date, :status, :total_hours, :submitted_at, :deleted_at, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, ts); err != nil {
		return fmt.Errorf("create timesheet: %w", err)
	}
	return nil
}

// ExistsForWeek reports whether the user already has a live timesheet for the week.
func (r *TimesheetRepository) ExistsForWeek(ctx context.Context, userID string, weekStart time.Time) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM timesheets WHERE user_id = $1 AND week_start_date = $2 AND deleted_at IS NULL)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, userID, weekStart); err != nil {
		return false, fmt.Errorf("check timesheet week: %w", err)
	}
	return exists, nil
}

// GetByID returns a live (not soft-deleted) timesheet.
func (r *TimesheetRepository) GetByID(ctx context.Context, id string) (*models.Timesheet, error) {
	var ts models.Timesheet
	if err := getOne(ctx, r.db, &ts, "get timesheet", `SELECT `+timesheetColumns+` FROM timesheets WHERE id = $1 AND deleted_at IS NULL`, id); err != nil {
		return nil, err
	}
	return &ts, nil
}

// List returns live timesheets matching the filter, newest week first.
func (r *TimesheetRepository) List(ctx context.Context, filter models.TimesheetFilter) ([]models.Timesheet, error) {
	var where whereClause
	where.add("deleted_at IS NULL")
	if filter.UserID != "" {
		where.add("user_id = ?", filter.UserID)
	}
	if len(filter.Status) > 0 {
		where.add("status = ANY(?)", pq.Array(toStrings(filter.Status)))
	}

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf("SELECT %s FROM timesheets WHERE %s ORDER BY week_start_date DESC LIMIT %d OFFSET %d",
		timesheetColumns, where.String(), limit, offset)

	var timesheets []models.Timesheet
	if err := r.db.SelectContext(ctx, &timesheets, query, where.args...); err != nil {
		return nil, fmt.Errorf("list timesheets: %w", err)
	}
	return timesheets, nil
}

// UpdateHours changes total hours on an editable timesheet. It returns
// sql.ErrNoRows when the row is missing or no longer editable.
func (r *TimesheetRepository) UpdateHours(ctx context.Context, id string, hours float64, at time.Time) error {
	const query = `UPDATE timesheets SET total_hours = $2, updated_at = $3
WHERE id = $1 AND deleted_at IS NULL AND status IN ('draft', 'manager_rejected', 'management_rejected')`
	return execExpectRow(ctx, r.db, "update timesheet hours", query, id, hours, at)
}

// SoftDelete marks a draft timesheet deleted.
func (r *TimesheetRepository) SoftDelete(ctx context.Context, id string, at time.Time) error {
	const query = `UPDATE timesheets SET deleted_at = $2, updated_at = $2 WHERE id = $1 AND deleted_at IS NULL AND status = 'draft'`
	return execExpectRow(ctx, r.db, "delete timesheet", query, id, at)
}

// Bill moves a frozen timesheet to billed.
func (r *TimesheetRepository) Bill(ctx context.Context, id string, at time.Time) error {
	const query = `UPDATE timesheets SET status = 'billed', updated_at = $2 WHERE id = $1 AND deleted_at IS NULL AND status = 'frozen'`
	return execExpectRow(ctx, r.db, "bill timesheet", query, id, at)
}

// Submit moves an editable timesheet to submitted and reopens one pending
// approval per listed project in one transaction. Approvals for projects no
// longer listed are removed so their hours cannot be approved later.
func (r *TimesheetRepository) Submit(ctx context.Context, id string, projects []models.ProjectHours, at time.Time) error {
	var total float64
	projectIDs := make([]string, len(projects))
	for i, p := range projects {
		total += p.WorkedHours
		projectIDs[i] = p.ProjectID
	}

	return database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		const updateQuery = `UPDATE timesheets SET status = 'submitted', submitted_at = $2, total_hours = $3, updated_at = $2
WHERE id = $1 AND deleted_at IS NULL AND status IN ('draft', 'manager_rejected', 'management_rejected')`
		if err := execExpectRow(ctx, tx, "submit timesheet", updateQuery, id, at, total); err != nil {
			return err
		}

		const pruneQuery = `DELETE FROM timesheet_project_approvals WHERE timesheet_id = $1 AND NOT (project_id = ANY($2))`
		if _, err := execCount(ctx, tx, "prune dropped projects", pruneQuery, id, pq.Array(projectIDs)); err != nil {
			return err
		}

		const upsertQuery = `INSERT INTO timesheet_project_approvals
	(id, timesheet_id, project_id, manager_status, management_status, worked_hours, created_at, updated_at)
VALUES ($1, $2, $3, 'pending', 'pending', $4, $5, $5)
ON CONFLICT (timesheet_id, project_id) DO UPDATE SET
	manager_status = 'pending', manager_approved_at = NULL, manager_rejection_reason = NULL,
	management_status = 'pending', management_approved_at = NULL, management_rejection_reason = NULL,
	worked_hours = EXCLUDED.worked_hours, updated_at = EXCLUDED.updated_at`
		for _, p := range projects {
			if _, err := tx.ExecContext(ctx, upsertQuery, uuid.NewString(), id, p.ProjectID, p.WorkedHours, at); err != nil {
				return fmt.Errorf("open project approval: %w", err)
			}
		}
		return nil
	})
}

// Freeze moves a timesheet that passed manager review to frozen and settles
// every child approval in the same transaction. It returns the number of approvals changed.
func (r *TimesheetRepository) Freeze(ctx context.Context, id string, at time.Time) (int64, error) {
	var updated int64
	err := database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		const freezeQuery = `UPDATE timesheets SET status = 'frozen', updated_at = $2
WHERE id = $1 AND deleted_at IS NULL AND status IN ('manager_approved', 'management_pending')`
		if err := execExpectRow(ctx, tx, "freeze timesheet", freezeQuery, id, at); err != nil {
			return err
		}

		const settleQuery = `UPDATE timesheet_project_approvals
SET management_status = 'approved', management_approved_at = $2, management_rejection_reason = NULL, updated_at = $2
WHERE timesheet_id = $1 AND management_status <> 'approved'`
		var err error
		updated, err = execCount(ctx, tx, "settle approvals on freeze", settleQuery, id, at)
		return err
	})
	if err != nil {
		return 0, err
	}
	return updated, nil
}

// FindFrozenIDs returns ids of live timesheets in frozen status.
func (r *TimesheetRepository) FindFrozenIDs(ctx context.Context) ([]string, error) {
	const query = `SELECT id FROM timesheets WHERE status = 'frozen' AND deleted_at IS NULL`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query); err != nil {
		return nil, fmt.Errorf("find frozen timesheets: %w", err)
	}
	return ids, nil
}
