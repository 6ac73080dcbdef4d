package service

import (
	"context"
	"encoding/csv"
	"errors"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Siva2k2k/ES-TM-sub003/internal/models"
	appErrors "github.com/Siva2k2k/ES-TM-sub003/pkg/errors"
)

var reconcileNow = time.Date(2024, 3, 18, 6, 0, 0, 0, time.UTC)

// approvalStoreFake keeps timesheets and approvals in memory and applies the
// same predicates as the SQL repositories.
type approvalStoreFake struct {
	timesheets map[string]*models.Timesheet
	approvals  map[string]*models.TimesheetProjectApproval

	findFrozenErr error
	approveErr    error
	approveCalls  int
}

func newApprovalStoreFake() *approvalStoreFake {
	return &approvalStoreFake{
		timesheets: map[string]*models.Timesheet{},
		approvals:  map[string]*models.TimesheetProjectApproval{},
	}
}

func (f *approvalStoreFake) addTimesheet(id string, status models.TimesheetStatus, deleted bool) {
	ts := &models.Timesheet{ID: id, UserID: "u-" + id, Status: status, WeekStartDate: reconcileNow.AddDate(0, 0, -14)}
	if deleted {
		at := reconcileNow.AddDate(0, 0, -1)
		ts.DeletedAt = &at
	}
	f.timesheets[id] = ts
}

func (f *approvalStoreFake) addApproval(id, timesheetID string, status models.ManagementStatus, reason string) {
	a := &models.TimesheetProjectApproval{ID: id, TimesheetID: timesheetID, ProjectID: "p-" + id, ManagementStatus: status}
	if reason != "" {
		a.ManagementRejectionReason = &reason
	}
	f.approvals[id] = a
}

func (f *approvalStoreFake) FindFrozenIDs(ctx context.Context) ([]string, error) {
	if f.findFrozenErr != nil {
		return nil, f.findFrozenErr
	}
	var ids []string
	for id, ts := range f.timesheets {
		if ts.Status == models.TimesheetStatusFrozen && ts.DeletedAt == nil {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (f *approvalStoreFake) FindDrifted(ctx context.Context, timesheetIDs []string) ([]models.TimesheetProjectApproval, error) {
	var out []models.TimesheetProjectApproval
	for _, a := range f.sortedApprovals() {
		if contains(timesheetIDs, a.TimesheetID) && a.ManagementStatus != models.ManagementStatusApproved {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (f *approvalStoreFake) ApproveDrifted(ctx context.Context, timesheetIDs []string, at time.Time) (int64, error) {
	f.approveCalls++
	if f.approveErr != nil {
		return 0, f.approveErr
	}
	var n int64
	for _, a := range f.approvals {
		if contains(timesheetIDs, a.TimesheetID) && a.ManagementStatus != models.ManagementStatusApproved {
			f.settle(a, at)
			n++
		}
	}
	return n, nil
}

func (f *approvalStoreFake) CountByIDs(ctx context.Context, ids []string) (int, error) {
	n := 0
	for _, id := range ids {
		if _, ok := f.approvals[id]; ok {
			n++
		}
	}
	return n, nil
}

func (f *approvalStoreFake) ApproveByIDs(ctx context.Context, ids []string, at time.Time) (int64, error) {
	f.approveCalls++
	var n int64
	for _, id := range ids {
		if a, ok := f.approvals[id]; ok {
			f.settle(a, at)
			n++
		}
	}
	return n, nil
}

func (f *approvalStoreFake) ListDrift(ctx context.Context) ([]models.DriftedApproval, error) {
	var out []models.DriftedApproval
	for _, a := range f.sortedApprovals() {
		ts := f.timesheets[a.TimesheetID]
		if ts == nil || ts.Status != models.TimesheetStatusFrozen || ts.DeletedAt != nil || a.ManagementStatus == models.ManagementStatusApproved {
			continue
		}
		out = append(out, models.DriftedApproval{
			ApprovalID:                a.ID,
			TimesheetID:               a.TimesheetID,
			ProjectID:                 a.ProjectID,
			UserID:                    ts.UserID,
			WeekStartDate:             ts.WeekStartDate,
			ManagementStatus:          a.ManagementStatus,
			ManagementRejectionReason: a.ManagementRejectionReason,
		})
	}
	return out, nil
}

func (f *approvalStoreFake) settle(a *models.TimesheetProjectApproval, at time.Time) {
	approvedAt := at
	a.ManagementStatus = models.ManagementStatusApproved
	a.ManagementApprovedAt = &approvedAt
	a.ManagementRejectionReason = nil
}

func (f *approvalStoreFake) sortedApprovals() []*models.TimesheetProjectApproval {
	out := make([]*models.TimesheetProjectApproval, 0, len(f.approvals))
	for _, a := range f.approvals {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

type lockerFake struct {
	held        bool
	acquireErr  error
	acquired    int
	released    int
	lastTTL     time.Duration
	lastLockKey string
}

func (l *lockerFake) Acquire(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if l.acquireErr != nil {
		return "", l.acquireErr
	}
	if l.held {
		return "", appErrors.ErrReconcileInProgress
	}
	l.held = true
	l.acquired++
	l.lastTTL = ttl
	l.lastLockKey = key
	return "token", nil
}

func (l *lockerFake) Release(ctx context.Context, key, token string) error {
	l.held = false
	l.released++
	return nil
}

type auditFake struct {
	logs []*models.AuditLog
}

func (a *auditFake) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	a.logs = append(a.logs, log)
	return nil
}

type metricsFake struct {
	runs     map[string]int
	modified int64
	drift    int
}

func (m *metricsFake) ObserveReconcile(mode models.ReconcileMode, result string, modified int64, duration time.Duration) {
	if m.runs == nil {
		m.runs = map[string]int{}
	}
	m.runs[string(mode)+"/"+result]++
	m.modified += modified
}

func (m *metricsFake) SetDriftRecords(count int) { m.drift = count }

type reconcileFixture struct {
	store   *approvalStoreFake
	locker  *lockerFake
	audit   *auditFake
	metrics *metricsFake
	svc     *ReconciliationService
}

func newReconcileFixture() *reconcileFixture {
	f := &reconcileFixture{
		store:   newApprovalStoreFake(),
		locker:  &lockerFake{},
		audit:   &auditFake{},
		metrics: &metricsFake{},
	}
	f.svc = NewReconciliationService(f.store, f.store, f.locker, f.audit, f.metrics, FixedClock{At: reconcileNow}, zap.NewNop(), ReconciliationConfig{LockKey: "locks:test", LockTTL: time.Minute})
	return f
}

func TestReconcileSettlesFrozenChildren(t *testing.T) {
	f := newReconcileFixture()
	f.store.addTimesheet("T1", models.TimesheetStatusFrozen, false)
	f.store.addApproval("A1", "T1", models.ManagementStatusPending, "")

	report, err := f.svc.Reconcile(context.Background(), ReconcileOptions{})
	require.NoError(t, err)

	a1 := f.store.approvals["A1"]
	assert.Equal(t, models.ManagementStatusApproved, a1.ManagementStatus)
	require.NotNil(t, a1.ManagementApprovedAt)
	assert.Equal(t, reconcileNow, *a1.ManagementApprovedAt)
	assert.Nil(t, a1.ManagementRejectionReason)
	assert.True(t, a1.Settled())

	assert.Equal(t, 1, report.FrozenTimesheets)
	assert.Equal(t, 1, report.Matched)
	assert.EqualValues(t, 1, report.Modified)
	assert.Equal(t, []string{"A1"}, report.ApprovalIDs)
	assert.Equal(t, reconcileNow, report.RanAt)
}

func TestReconcileLeavesNonFrozenAlone(t *testing.T) {
	f := newReconcileFixture()
	f.store.addTimesheet("T2", models.TimesheetStatusDraft, false)
	f.store.addApproval("A2", "T2", models.ManagementStatusPending, "")
	f.store.addTimesheet("T3", models.TimesheetStatusFrozen, true)
	f.store.addApproval("A3", "T3", models.ManagementStatusRejected, "wrong code")

	report, err := f.svc.Reconcile(context.Background(), ReconcileOptions{})
	require.NoError(t, err)

	assert.Equal(t, models.ManagementStatusPending, f.store.approvals["A2"].ManagementStatus)
	assert.Nil(t, f.store.approvals["A2"].ManagementApprovedAt)
	assert.Equal(t, models.ManagementStatusRejected, f.store.approvals["A3"].ManagementStatus)
	assert.Equal(t, 0, report.FrozenTimesheets)
	assert.EqualValues(t, 0, report.Modified)
	assert.Equal(t, 0, f.store.approveCalls)
}

func TestReconcileClearsRejectionAndSkipsApproved(t *testing.T) {
	f := newReconcileFixture()
	f.store.addTimesheet("T1", models.TimesheetStatusFrozen, false)
	f.store.addApproval("A1", "T1", models.ManagementStatusRejected, "over budget")
	f.store.addApproval("A2", "T1", models.ManagementStatusApproved, "")
	earlier := reconcileNow.AddDate(0, 0, -3)
	f.store.approvals["A2"].ManagementApprovedAt = &earlier

	report, err := f.svc.Reconcile(context.Background(), ReconcileOptions{})
	require.NoError(t, err)

	assert.Equal(t, 1, report.Matched)
	assert.Nil(t, f.store.approvals["A1"].ManagementRejectionReason)
	assert.Equal(t, earlier, *f.store.approvals["A2"].ManagementApprovedAt)
}

func TestReconcileIsIdempotent(t *testing.T) {
	f := newReconcileFixture()
	f.store.addTimesheet("T1", models.TimesheetStatusFrozen, false)
	f.store.addApproval("A1", "T1", models.ManagementStatusPending, "")
	f.store.addApproval("A2", "T1", models.ManagementStatusRejected, "late")

	first, err := f.svc.Reconcile(context.Background(), ReconcileOptions{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, first.Modified)

	second, err := f.svc.Reconcile(context.Background(), ReconcileOptions{})
	require.NoError(t, err)
	assert.Equal(t, 0, second.Matched)
	assert.EqualValues(t, 0, second.Modified)
	assert.Empty(t, second.ApprovalIDs)
	assert.Equal(t, 1, f.store.approveCalls)
	assert.Len(t, f.audit.logs, 1)
	assert.Equal(t, 2, f.metrics.runs["frozen/success"])
}

func TestReconcileNoFrozenTimesheets(t *testing.T) {
	f := newReconcileFixture()

	report, err := f.svc.Reconcile(context.Background(), ReconcileOptions{})
	require.NoError(t, err)
	assert.Equal(t, 0, report.FrozenTimesheets)
	assert.NotNil(t, report.ApprovalIDs)
	assert.Equal(t, 1, f.locker.acquired)
	assert.Equal(t, 1, f.locker.released)
}

func TestReconcileDryRunDoesNotWrite(t *testing.T) {
	f := newReconcileFixture()
	f.store.addTimesheet("T1", models.TimesheetStatusFrozen, false)
	f.store.addApproval("A1", "T1", models.ManagementStatusPending, "")

	report, err := f.svc.Reconcile(context.Background(), ReconcileOptions{DryRun: true})
	require.NoError(t, err)
	assert.True(t, report.DryRun)
	assert.Equal(t, 1, report.Matched)
	assert.EqualValues(t, 0, report.Modified)
	assert.Equal(t, models.ManagementStatusPending, f.store.approvals["A1"].ManagementStatus)
	assert.Equal(t, 0, f.locker.acquired)
	assert.Empty(t, f.audit.logs)
}

func TestReconcilePropagatesPersistenceFailure(t *testing.T) {
	f := newReconcileFixture()
	f.store.addTimesheet("T1", models.TimesheetStatusFrozen, false)
	f.store.addApproval("A1", "T1", models.ManagementStatusPending, "")
	f.store.approveErr = errors.New("connection reset")

	_, err := f.svc.Reconcile(context.Background(), ReconcileOptions{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInternal.Code, appErrors.FromError(err).Code)
	assert.Equal(t, 1, f.store.approveCalls)
	assert.Equal(t, 1, f.metrics.runs["frozen/failure"])
	assert.Equal(t, 1, f.locker.released)
	assert.False(t, f.store.approvals["A1"].Settled())
}

func TestReconcileLockHeld(t *testing.T) {
	f := newReconcileFixture()
	f.locker.held = true

	_, err := f.svc.Reconcile(context.Background(), ReconcileOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrReconcileInProgress)
	assert.Equal(t, 1, f.metrics.runs["frozen/lock_contention"])
}

func TestReconcileLockUsesConfig(t *testing.T) {
	f := newReconcileFixture()

	_, err := f.svc.Reconcile(context.Background(), ReconcileOptions{})
	require.NoError(t, err)
	assert.Equal(t, "locks:test", f.locker.lastLockKey)
	assert.Equal(t, time.Minute, f.locker.lastTTL)
}

func TestReconcileWithoutOptionalDependencies(t *testing.T) {
	store := newApprovalStoreFake()
	store.addTimesheet("T1", models.TimesheetStatusFrozen, false)
	store.addApproval("A1", "T1", models.ManagementStatusPending, "")
	svc := NewReconciliationService(store, store, nil, nil, nil, nil, nil, ReconciliationConfig{})

	report, err := svc.Reconcile(context.Background(), ReconcileOptions{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, report.Modified)
}

func TestReconcileByIDsIgnoresParentState(t *testing.T) {
	f := newReconcileFixture()
	f.store.addTimesheet("T2", models.TimesheetStatusDraft, false)
	f.store.addApproval("A2", "T2", models.ManagementStatusRejected, "typo")
	f.store.addApproval("A3", "T2", models.ManagementStatusPending, "")

	report, err := f.svc.ReconcileByIDs(context.Background(), []string{" A2 ", "A2", "", "missing"}, ReconcileOptions{ActorID: "admin-1"})
	require.NoError(t, err)

	assert.Equal(t, models.ReconcileModeTargeted, report.Mode)
	assert.Equal(t, []string{"A2", "missing"}, report.ApprovalIDs)
	assert.Equal(t, 1, report.Matched)
	assert.EqualValues(t, 1, report.Modified)
	assert.True(t, f.store.approvals["A2"].Settled())
	assert.Equal(t, models.ManagementStatusPending, f.store.approvals["A3"].ManagementStatus)

	require.Len(t, f.audit.logs, 1)
	entry := f.audit.logs[0]
	assert.Equal(t, models.AuditActionApprovalReconcileIDs, entry.Action)
	require.NotNil(t, entry.UserID)
	assert.Equal(t, "admin-1", *entry.UserID)
	assert.Contains(t, string(entry.NewValues), `"A2"`)
}

func TestReconcileByIDsRequiresIDs(t *testing.T) {
	f := newReconcileFixture()

	_, err := f.svc.ReconcileByIDs(context.Background(), []string{" ", ""}, ReconcileOptions{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Equal(t, 0, f.locker.acquired)
}

func TestReconcileByIDsUnknownIDsStillAudited(t *testing.T) {
	f := newReconcileFixture()

	report, err := f.svc.ReconcileByIDs(context.Background(), []string{"nope"}, ReconcileOptions{})
	require.NoError(t, err)
	assert.Equal(t, 0, report.Matched)
	assert.Equal(t, 0, f.store.approveCalls)
	require.Len(t, f.audit.logs, 1)
	assert.Nil(t, f.audit.logs[0].UserID)
}

func TestPreviewAndExportDrift(t *testing.T) {
	f := newReconcileFixture()
	f.store.addTimesheet("T1", models.TimesheetStatusFrozen, false)
	f.store.addApproval("A1", "T1", models.ManagementStatusRejected, "over budget")
	f.store.addTimesheet("T2", models.TimesheetStatusSubmitted, false)
	f.store.addApproval("A2", "T2", models.ManagementStatusPending, "")

	drift, err := f.svc.Preview(context.Background())
	require.NoError(t, err)
	require.Len(t, drift, 1)
	assert.Equal(t, "A1", drift[0].ApprovalID)
	assert.Equal(t, 1, f.metrics.drift)

	out, err := f.svc.ExportDrift(context.Background(), "CSV")
	require.NoError(t, err)
	assert.Equal(t, "text/csv", out.ContentType)
	assert.Equal(t, "approval-drift-20240318.csv", out.Filename)

	records, err := csv.NewReader(strings.NewReader(string(out.Body))).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, driftHeaders, records[0])
	assert.Equal(t, "over budget", records[1][6])

	pdf, err := f.svc.ExportDrift(context.Background(), "pdf")
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", pdf.ContentType)
	assert.True(t, strings.HasPrefix(string(pdf.Body), "%PDF"))

	_, err = f.svc.ExportDrift(context.Background(), "xlsx")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestNormalizeIDs(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, normalizeIDs([]string{"a", " b", "a", "", "b "}))
	assert.Empty(t, normalizeIDs(nil))
}
