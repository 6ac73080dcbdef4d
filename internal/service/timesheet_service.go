package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/Siva2k2k/ES-TM-sub003/internal/authz"
	"github.com/Siva2k2k/ES-TM-sub003/internal/dto"
	"github.com/Siva2k2k/ES-TM-sub003/internal/models"
	appErrors "github.com/Siva2k2k/ES-TM-sub003/pkg/errors"
)

type timesheetStore interface {
	Create(ctx context.Context, ts *models.Timesheet) error
	ExistsForWeek(ctx context.Context, userID string, weekStart time.Time) (bool, error)
	GetByID(ctx context.Context, id string) (*models.Timesheet, error)
	List(ctx context.Context, filter models.TimesheetFilter) ([]models.Timesheet, error)
	UpdateHours(ctx context.Context, id string, hours float64, at time.Time) error
	SoftDelete(ctx context.Context, id string, at time.Time) error
	Submit(ctx context.Context, id string, projects []models.ProjectHours, at time.Time) error
	Freeze(ctx context.Context, id string, at time.Time) (int64, error)
	Bill(ctx context.Context, id string, at time.Time) error
}

// Each decision runs in one transaction that re-checks the parent status
// under a row lock and reports a lost race as sql.ErrNoRows.
type projectApprovalStore interface {
	ListByTimesheet(ctx context.Context, timesheetID string) ([]models.TimesheetProjectApproval, error)
	GetForProject(ctx context.Context, timesheetID, projectID string) (*models.TimesheetProjectApproval, error)
	ManagerApprove(ctx context.Context, timesheetID, approvalID string, at time.Time) (bool, error)
	ManagerReject(ctx context.Context, timesheetID, approvalID, reason string, at time.Time) error
	ManagementApprove(ctx context.Context, timesheetID, approvalID string, at time.Time) error
	ManagementReject(ctx context.Context, timesheetID, approvalID, reason string, at time.Time) error
}

// TimesheetService applies timesheet use cases after consulting the authorizer.
type TimesheetService struct {
	timesheets timesheetStore
	approvals  projectApprovalStore
	audit      auditWriter
	validator  *validator.Validate
	clock      Clock
	logger     *zap.Logger
}

// NewTimesheetService constructs a TimesheetService.
func NewTimesheetService(timesheets timesheetStore, approvals projectApprovalStore, audit auditWriter, validate *validator.Validate, clock Clock, logger *zap.Logger) *TimesheetService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TimesheetService{
		timesheets: timesheets,
		approvals:  approvals,
		audit:      audit,
		validator:  validate,
		clock:      clockOrSystem(clock),
		logger:     logger,
	}
}

// List returns the timesheets of query.UserID, defaulting to the actor.
func (s *TimesheetService) List(ctx context.Context, actor *authz.Actor, query dto.TimesheetQuery) ([]models.Timesheet, error) {
	target := query.UserID
	if target == "" && actor != nil {
		target = actor.ID
	}
	if err := authz.Authorize(actor, target, authz.OperationView); err != nil {
		return nil, err
	}

	filter := models.TimesheetFilter{UserID: target, Limit: query.Limit, Offset: query.Offset}
	for _, raw := range query.Status {
		filter.Status = append(filter.Status, models.TimesheetStatus(raw))
	}

	items, err := s.timesheets.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list timesheets")
	}
	if items == nil {
		items = []models.Timesheet{}
	}
	return items, nil
}

// Get returns one timesheet with its project approvals.
func (s *TimesheetService) Get(ctx context.Context, actor *authz.Actor, id string) (*dto.TimesheetDetail, error) {
	ts, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authz.Authorize(actor, ts.UserID, authz.OperationView); err != nil {
		return nil, err
	}

	approvals, err := s.approvals.ListByTimesheet(ctx, ts.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load project approvals")
	}
	if approvals == nil {
		approvals = []models.TimesheetProjectApproval{}
	}
	return &dto.TimesheetDetail{Timesheet: *ts, ProjectApprovals: approvals}, nil
}

// Create opens a draft timesheet for a week. The week must start on a Monday.
func (s *TimesheetService) Create(ctx context.Context, actor *authz.Actor, req dto.CreateTimesheetRequest) (*models.Timesheet, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid timesheet payload")
	}
	target := req.UserID
	if target == "" && actor != nil {
		target = actor.ID
	}
	if err := authz.Authorize(actor, target, authz.OperationCreate); err != nil {
		return nil, err
	}

	week, err := time.Parse("2006-01-02", req.WeekStartDate)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "week_start_date must be YYYY-MM-DD")
	}
	if week.Weekday() != time.Monday {
		return nil, appErrors.Clone(appErrors.ErrValidation, "week_start_date must be a Monday")
	}

	exists, err := s.timesheets.ExistsForWeek(ctx, target, week)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing timesheet")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "a timesheet already exists for this week")
	}

	now := s.clock.Now()
	ts := &models.Timesheet{
		UserID:        target,
		WeekStartDate: week,
		Status:        models.TimesheetStatusDraft,
		TotalHours:    req.TotalHours,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.timesheets.Create(ctx, ts); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create timesheet")
	}
	s.record(ctx, actor, models.AuditActionTimesheetCreate, ts.ID, ts)
	return ts, nil
}

// Update changes total hours while the timesheet is still editable.
func (s *TimesheetService) Update(ctx context.Context, actor *authz.Actor, id string, req dto.UpdateTimesheetRequest) (*models.Timesheet, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid timesheet payload")
	}
	ts, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authz.Authorize(actor, ts.UserID, authz.OperationEdit); err != nil {
		return nil, err
	}
	if !ts.Status.Editable() {
		return nil, invalidTransition(ts.Status, "edited")
	}

	now := s.clock.Now()
	if err := s.timesheets.UpdateHours(ctx, ts.ID, req.TotalHours, now); err != nil {
		return nil, s.mapWriteErr(err, ts.Status, "edited")
	}
	ts.TotalHours = req.TotalHours
	ts.UpdatedAt = now
	s.record(ctx, actor, models.AuditActionTimesheetUpdate, ts.ID, req)
	return ts, nil
}

// Delete soft-deletes a draft.
func (s *TimesheetService) Delete(ctx context.Context, actor *authz.Actor, id string) error {
	ts, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if err := authz.Authorize(actor, ts.UserID, authz.OperationEdit); err != nil {
		return err
	}
	if ts.Status != models.TimesheetStatusDraft {
		return invalidTransition(ts.Status, "deleted")
	}
	if err := s.timesheets.SoftDelete(ctx, ts.ID, s.clock.Now()); err != nil {
		return s.mapWriteErr(err, ts.Status, "deleted")
	}
	s.record(ctx, actor, models.AuditActionTimesheetDelete, ts.ID, nil)
	return nil
}

// Submit sends an editable timesheet for approval with its project split.
func (s *TimesheetService) Submit(ctx context.Context, actor *authz.Actor, id string, req dto.SubmitTimesheetRequest) (*models.Timesheet, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid submission payload")
	}
	if hasDuplicateProject(req.Projects) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "each project may appear only once")
	}
	ts, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authz.Authorize(actor, ts.UserID, authz.OperationEdit); err != nil {
		return nil, err
	}
	if !ts.Status.Editable() {
		return nil, invalidTransition(ts.Status, "submitted")
	}

	now := s.clock.Now()
	if err := s.timesheets.Submit(ctx, ts.ID, req.Projects, now); err != nil {
		return nil, s.mapWriteErr(err, ts.Status, "submitted")
	}
	ts.Status = models.TimesheetStatusSubmitted
	ts.SubmittedAt = &now
	ts.UpdatedAt = now
	ts.TotalHours = 0
	for _, p := range req.Projects {
		ts.TotalHours += p.WorkedHours
	}
	s.record(ctx, actor, models.AuditActionTimesheetSubmit, ts.ID, req)
	return ts, nil
}

// ReviewProject records the manager-stage approval of one project. The
// timesheet becomes manager_approved once every project is approved.
func (s *TimesheetService) ReviewProject(ctx context.Context, actor *authz.Actor, id, projectID string) (*dto.ReviewResult, error) {
	ts, approval, err := s.loadForDecision(ctx, actor, id, projectID, nil, models.TimesheetStatusSubmitted)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	complete, err := s.approvals.ManagerApprove(ctx, ts.ID, approval.ID, now)
	if err != nil {
		return nil, s.mapWriteErr(err, ts.Status, "reviewed")
	}
	approval.ManagerStatus = models.ManagementStatusApproved
	approval.ManagerApprovedAt = &now
	approval.ManagerRejectionReason = nil
	approval.UpdatedAt = now

	result := &dto.ReviewResult{Approval: approval, TimesheetStatus: ts.Status, AllApproved: complete}
	if complete {
		result.TimesheetStatus = models.TimesheetStatusManagerApproved
	}
	s.record(ctx, actor, models.AuditActionProjectReview, approval.ID, result)
	return result, nil
}

// RejectReview rejects one project at the manager stage. Every other project
// goes back to pending and the owner gets the timesheet as manager_rejected.
func (s *TimesheetService) RejectReview(ctx context.Context, actor *authz.Actor, id, projectID string, req dto.RejectProjectRequest) (*dto.ReviewResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "a rejection reason is required")
	}
	ts, approval, err := s.loadForDecision(ctx, actor, id, projectID, nil, models.TimesheetStatusSubmitted, models.TimesheetStatusManagerApproved)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	if err := s.approvals.ManagerReject(ctx, ts.ID, approval.ID, req.Reason, now); err != nil {
		return nil, s.mapWriteErr(err, ts.Status, "rejected")
	}
	reason := req.Reason
	approval.ManagerStatus = models.ManagementStatusRejected
	approval.ManagerApprovedAt = nil
	approval.ManagerRejectionReason = &reason
	approval.UpdatedAt = now

	result := &dto.ReviewResult{Approval: approval, TimesheetStatus: models.TimesheetStatusManagerRejected}
	s.record(ctx, actor, models.AuditActionProjectReviewReject, approval.ID, result)
	return result, nil
}

// ApproveProject records management approval of one project on a timesheet
// that has passed manager review.
func (s *TimesheetService) ApproveProject(ctx context.Context, actor *authz.Actor, id, projectID string) (*models.TimesheetProjectApproval, error) {
	ts, approval, err := s.loadForDecision(ctx, actor, id, projectID, authz.RequireManagementRole, models.TimesheetStatusManagerApproved, models.TimesheetStatusManagementPending)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	if err := s.approvals.ManagementApprove(ctx, ts.ID, approval.ID, now); err != nil {
		return nil, s.mapWriteErr(err, ts.Status, "approved")
	}
	approval.ManagementStatus = models.ManagementStatusApproved
	approval.ManagementApprovedAt = &now
	approval.ManagementRejectionReason = nil
	approval.UpdatedAt = now
	s.record(ctx, actor, models.AuditActionProjectApprove, approval.ID, approval)
	return approval, nil
}

// RejectProject records a management rejection and returns the timesheet to
// its owner as management_rejected. Both writes share one transaction.
func (s *TimesheetService) RejectProject(ctx context.Context, actor *authz.Actor, id, projectID string, req dto.RejectProjectRequest) (*models.TimesheetProjectApproval, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "a rejection reason is required")
	}
	ts, approval, err := s.loadForDecision(ctx, actor, id, projectID, authz.RequireManagementRole, models.TimesheetStatusManagerApproved, models.TimesheetStatusManagementPending)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	if err := s.approvals.ManagementReject(ctx, ts.ID, approval.ID, req.Reason, now); err != nil {
		return nil, s.mapWriteErr(err, ts.Status, "rejected")
	}
	reason := req.Reason
	approval.ManagementStatus = models.ManagementStatusRejected
	approval.ManagementApprovedAt = nil
	approval.ManagementRejectionReason = &reason
	approval.UpdatedAt = now
	s.record(ctx, actor, models.AuditActionProjectReject, approval.ID, approval)
	return approval, nil
}

// Freeze locks a reviewed timesheet for billing and settles all of its
// approvals in the same transaction.
func (s *TimesheetService) Freeze(ctx context.Context, actor *authz.Actor, id string) (*dto.FreezeResult, error) {
	if err := authz.RequireManagementRole(actor); err != nil {
		return nil, err
	}
	ts, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ts.Status.AwaitingManagement() {
		return nil, invalidTransition(ts.Status, "frozen")
	}

	now := s.clock.Now()
	settled, err := s.timesheets.Freeze(ctx, ts.ID, now)
	if err != nil {
		return nil, s.mapWriteErr(err, ts.Status, "frozen")
	}
	ts.Status = models.TimesheetStatusFrozen
	ts.UpdatedAt = now
	s.logger.Info("timesheet frozen", zap.String("timesheet_id", ts.ID), zap.Int64("approvals_settled", settled))
	s.record(ctx, actor, models.AuditActionTimesheetFreeze, ts.ID, map[string]interface{}{"approvals_settled": settled})
	return &dto.FreezeResult{Timesheet: ts, ApprovalsSettled: settled}, nil
}

// Bill marks a frozen timesheet as billed.
func (s *TimesheetService) Bill(ctx context.Context, actor *authz.Actor, id string) (*models.Timesheet, error) {
	if err := authz.RequireManagementRole(actor); err != nil {
		return nil, err
	}
	ts, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if ts.Status != models.TimesheetStatusFrozen {
		return nil, invalidTransition(ts.Status, "billed")
	}

	now := s.clock.Now()
	if err := s.timesheets.Bill(ctx, ts.ID, now); err != nil {
		return nil, s.mapWriteErr(err, ts.Status, "billed")
	}
	ts.Status = models.TimesheetStatusBilled
	ts.UpdatedAt = now
	s.record(ctx, actor, models.AuditActionTimesheetBill, ts.ID, nil)
	return ts, nil
}

// loadForDecision authorises an approve-type call on one project; stage is
// an extra role check for the management stage. Nobody decides on their own
// timesheet, even though Authorize admits the owner.
func (s *TimesheetService) loadForDecision(ctx context.Context, actor *authz.Actor, id, projectID string, stage func(*authz.Actor) error, allowed ...models.TimesheetStatus) (*models.Timesheet, *models.TimesheetProjectApproval, error) {
	ts, err := s.load(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if err := authz.Authorize(actor, ts.UserID, authz.OperationApprove); err != nil {
		return nil, nil, err
	}
	if stage != nil {
		if err := stage(actor); err != nil {
			return nil, nil, err
		}
	}
	if actor.ID == ts.UserID {
		return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "you cannot approve or reject your own timesheet")
	}
	if !statusIn(ts.Status, allowed) {
		return nil, nil, invalidTransition(ts.Status, "decided")
	}

	approval, err := s.approvals.GetForProject(ctx, ts.ID, projectID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "project is not part of this timesheet")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load project approval")
	}
	return ts, approval, nil
}

func statusIn(status models.TimesheetStatus, allowed []models.TimesheetStatus) bool {
	for _, a := range allowed {
		if status == a {
			return true
		}
	}
	return false
}

func (s *TimesheetService) load(ctx context.Context, id string) (*models.Timesheet, error) {
	ts, err := s.timesheets.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "timesheet not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timesheet")
	}
	return ts, nil
}

// mapWriteErr treats a zero-row update as a lost race on the status guard.
func (s *TimesheetService) mapWriteErr(err error, status models.TimesheetStatus, verb string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return invalidTransition(status, verb)
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update timesheet")
}

func (s *TimesheetService) record(ctx context.Context, actor *authz.Actor, action, resourceID string, values interface{}) {
	if s.audit == nil {
		return
	}
	entry := &models.AuditLog{
		Action:     action,
		Resource:   "timesheets",
		ResourceID: &resourceID,
		CreatedAt:  s.clock.Now(),
	}
	if actor != nil {
		actorID := actor.ID
		entry.UserID = &actorID
	}
	if values != nil {
		if payload, err := json.Marshal(values); err == nil {
			entry.NewValues = payload
		}
	}
	if err := s.audit.CreateAuditLog(ctx, entry); err != nil {
		s.logger.Warn("failed to record timesheet audit log", zap.String("action", action), zap.Error(err))
	}
}

func invalidTransition(status models.TimesheetStatus, verb string) error {
	return appErrors.Clone(appErrors.ErrInvalidTransition, "a "+string(status)+" timesheet cannot be "+verb)
}

func hasDuplicateProject(projects []models.ProjectHours) bool {
	seen := make(map[string]struct{}, len(projects))
	for _, p := range projects {
		if _, ok := seen[p.ProjectID]; ok {
			return true
		}
		seen[p.ProjectID] = struct{}{}
	}
	return false
}
