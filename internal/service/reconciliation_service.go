package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Siva2k2k/ES-TM-sub003/internal/models"
	appErrors "github.com/Siva2k2k/ES-TM-sub003/pkg/errors"
	"github.com/Siva2k2k/ES-TM-sub003/pkg/export"
)

type reconcileTimesheetReader interface {
	FindFrozenIDs(ctx context.Context) ([]string, error)
}

type reconcileApprovalStore interface {
	FindDrifted(ctx context.Context, timesheetIDs []string) ([]models.TimesheetProjectApproval, error)
	ApproveDrifted(ctx context.Context, timesheetIDs []string, at time.Time) (int64, error)
	CountByIDs(ctx context.Context, ids []string) (int, error)
	ApproveByIDs(ctx context.Context, ids []string, at time.Time) (int64, error)
	ListDrift(ctx context.Context) ([]models.DriftedApproval, error)
}

type reconcileLocker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (string, error)
	Release(ctx context.Context, key, token string) error
}

type auditWriter interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type reconcileMetrics interface {
	ObserveReconcile(mode models.ReconcileMode, result string, modified int64, duration time.Duration)
	SetDriftRecords(count int)
}

// ReconcileOptions carries the caller context of a reconciliation run.
// ActorID is empty for scheduled and CLI runs.
type ReconcileOptions struct {
	DryRun    bool
	ActorID   string
	IP        string
	UserAgent string
}

// ReconciliationConfig tunes the cross-process lease around a run.
type ReconciliationConfig struct {
	LockKey string
	LockTTL time.Duration
}

// DriftExport is a rendered drift report ready to be served as a download.
type DriftExport struct {
	Filename    string
	ContentType string
	Body        []byte
}

// ReconciliationService restores the frozen-timesheet approval invariant:
// every approval under a frozen, live timesheet is approved with an
// approval time and no rejection reason.
type ReconciliationService struct {
	timesheets reconcileTimesheetReader
	approvals  reconcileApprovalStore
	locker     reconcileLocker
	audit      auditWriter
	metrics    reconcileMetrics
	clock      Clock
	logger     *zap.Logger
	config     ReconciliationConfig
}

// NewReconciliationService wires the reconciliation dependencies. locker,
// audit and metrics are optional.
func NewReconciliationService(
	timesheets reconcileTimesheetReader,
	approvals reconcileApprovalStore,
	locker reconcileLocker,
	audit auditWriter,
	metrics reconcileMetrics,
	clock Clock,
	logger *zap.Logger,
	config ReconciliationConfig,
) *ReconciliationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.LockKey == "" {
		config.LockKey = "locks:approval-reconcile"
	}
	if config.LockTTL <= 0 {
		config.LockTTL = 5 * time.Minute
	}
	return &ReconciliationService{
		timesheets: timesheets,
		approvals:  approvals,
		locker:     locker,
		audit:      audit,
		metrics:    metrics,
		clock:      clockOrSystem(clock),
		logger:     logger,
		config:     config,
	}
}

// Reconcile approves every non-approved record under frozen, live
// timesheets with one bulk update. Finding nothing to fix is a successful
// empty report. Persistence errors are returned as-is for the caller to retry.
func (s *ReconciliationService) Reconcile(ctx context.Context, opts ReconcileOptions) (*models.ReconcileReport, error) {
	return s.run(ctx, models.ReconcileModeFrozen, opts, func(report *models.ReconcileReport) error {
		timesheetIDs, err := s.timesheets.FindFrozenIDs(ctx)
		if err != nil {
			return err
		}
		report.FrozenTimesheets = len(timesheetIDs)
		if len(timesheetIDs) == 0 {
			return nil
		}

		drifted, err := s.approvals.FindDrifted(ctx, timesheetIDs)
		if err != nil {
			return err
		}
		report.Matched = len(drifted)
		for _, approval := range drifted {
			report.ApprovalIDs = append(report.ApprovalIDs, approval.ID)
			s.logger.Debug("drifted approval",
				zap.String("approval_id", approval.ID),
				zap.String("timesheet_id", approval.TimesheetID),
				zap.String("project_id", approval.ProjectID),
				zap.String("management_status", string(approval.ManagementStatus)),
			)
		}
		if len(drifted) == 0 || opts.DryRun {
			return nil
		}

		modified, err := s.approvals.ApproveDrifted(ctx, timesheetIDs, report.RanAt)
		if err != nil {
			return err
		}
		report.Modified = modified
		return nil
	})
}

// ReconcileByIDs forces the listed approvals to approved without checking
// their parent or current status. Callers must vet the ids beforehand.
func (s *ReconciliationService) ReconcileByIDs(ctx context.Context, ids []string, opts ReconcileOptions) (*models.ReconcileReport, error) {
	ids = normalizeIDs(ids)
	if len(ids) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "at least one approval id is required")
	}

	return s.run(ctx, models.ReconcileModeTargeted, opts, func(report *models.ReconcileReport) error {
		report.ApprovalIDs = ids
		matched, err := s.approvals.CountByIDs(ctx, ids)
		if err != nil {
			return err
		}
		report.Matched = matched
		if matched == 0 || opts.DryRun {
			return nil
		}

		modified, err := s.approvals.ApproveByIDs(ctx, ids, report.RanAt)
		if err != nil {
			return err
		}
		report.Modified = modified
		return nil
	})
}

func (s *ReconciliationService) run(ctx context.Context, mode models.ReconcileMode, opts ReconcileOptions, body func(*models.ReconcileReport) error) (*models.ReconcileReport, error) {
	started := time.Now()
	report := &models.ReconcileReport{
		Mode:        mode,
		DryRun:      opts.DryRun,
		ApprovalIDs: []string{},
		RanAt:       s.clock.Now(),
	}
	logger := s.logger.With(zap.String("mode", string(mode)), zap.Bool("dry_run", opts.DryRun))

	if !opts.DryRun {
		release, err := s.acquire(ctx)
		if err != nil {
			if errors.Is(err, appErrors.ErrReconcileInProgress) {
				s.observe(mode, ReconcileResultContention, 0, started)
				logger.Info("approval reconciliation skipped, another run holds the lock")
				return nil, err
			}
			s.observe(mode, ReconcileResultFailure, 0, started)
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to acquire reconciliation lock")
		}
		defer release()
	}

	if err := body(report); err != nil {
		s.observe(mode, ReconcileResultFailure, 0, started)
		logger.Error("approval reconciliation failed", zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "approval reconciliation failed")
	}

	result := ReconcileResultSuccess
	if opts.DryRun {
		result = ReconcileResultDryRun
	}
	s.observe(mode, result, report.Modified, started)

	logger.Info("approval reconciliation finished",
		zap.Int("frozen_timesheets", report.FrozenTimesheets),
		zap.Int("matched", report.Matched),
		zap.Int64("modified", report.Modified),
	)

	if !opts.DryRun && (mode == models.ReconcileModeTargeted || report.Modified > 0) {
		s.record(ctx, mode, opts, report)
	}
	return report, nil
}

func (s *ReconciliationService) acquire(ctx context.Context) (func(), error) {
	if s.locker == nil {
		return func() {}, nil
	}
	token, err := s.locker.Acquire(ctx, s.config.LockKey, s.config.LockTTL)
	if err != nil {
		return nil, err
	}
	return func() {
		// released on a fresh context so a cancelled request still frees the lease
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.locker.Release(releaseCtx, s.config.LockKey, token); err != nil {
			s.logger.Warn("failed to release reconciliation lock", zap.Error(err))
		}
	}, nil
}

func (s *ReconciliationService) observe(mode models.ReconcileMode, result string, modified int64, started time.Time) {
	if s.metrics == nil {
		return
	}
	s.metrics.ObserveReconcile(mode, result, modified, time.Since(started))
}

func (s *ReconciliationService) record(ctx context.Context, mode models.ReconcileMode, opts ReconcileOptions, report *models.ReconcileReport) {
	if s.audit == nil {
		return
	}
	payload, err := json.Marshal(report)
	if err != nil {
		s.logger.Warn("failed to encode reconciliation audit payload", zap.Error(err))
		return
	}

	action := models.AuditActionApprovalReconcile
	if mode == models.ReconcileModeTargeted {
		action = models.AuditActionApprovalReconcileIDs
	}
	entry := &models.AuditLog{
		Action:    action,
		Resource:  "timesheet_project_approvals",
		NewValues: payload,
		IPAddress: opts.IP,
		UserAgent: opts.UserAgent,
		CreatedAt: report.RanAt,
	}
	if opts.ActorID != "" {
		actorID := opts.ActorID
		entry.UserID = &actorID
	}
	if err := s.audit.CreateAuditLog(ctx, entry); err != nil {
		s.logger.Warn("failed to record reconciliation audit log", zap.Error(err))
	}
}

// Preview lists drifted approvals without changing anything.
func (s *ReconciliationService) Preview(ctx context.Context) ([]models.DriftedApproval, error) {
	drift, err := s.approvals.ListDrift(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load approval drift")
	}
	if drift == nil {
		drift = []models.DriftedApproval{}
	}
	if s.metrics != nil {
		s.metrics.SetDriftRecords(len(drift))
	}
	return drift, nil
}

// ExportDrift renders the preview as csv or pdf.
func (s *ReconciliationService) ExportDrift(ctx context.Context, format string) (*DriftExport, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = "csv"
	}
	renderer, ok := export.ForFormat(format)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}

	drift, err := s.Preview(ctx)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	data := driftDataset(drift)
	data.Title = "Approval drift " + now.Format("2006-01-02")
	body, err := renderer.Render(data)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render drift export")
	}
	return &DriftExport{
		Filename:    fmt.Sprintf("approval-drift-%s.%s", now.Format("20060102"), renderer.Extension()),
		ContentType: renderer.ContentType(),
		Body:        body,
	}, nil
}

var driftHeaders = []string{"approval_id", "timesheet_id", "project_id", "user_id", "week_start_date", "management_status", "rejection_reason"}

func driftDataset(drift []models.DriftedApproval) export.Dataset {
	rows := make([][]string, 0, len(drift))
	for _, d := range drift {
		reason := ""
		if d.ManagementRejectionReason != nil {
			reason = *d.ManagementRejectionReason
		}
		rows = append(rows, []string{
			d.ApprovalID,
			d.TimesheetID,
			d.ProjectID,
			d.UserID,
			d.WeekStartDate.Format("2006-01-02"),
			string(d.ManagementStatus),
			reason,
		})
	}
	return export.Dataset{Headers: driftHeaders, Rows: rows}
}

// normalizeIDs trims blanks and drops duplicates, keeping first-seen order.
func normalizeIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
