package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/Siva2k2k/ES-TM-sub003/internal/dto"
	"github.com/Siva2k2k/ES-TM-sub003/internal/models"
	"github.com/Siva2k2k/ES-TM-sub003/internal/service"
	appErrors "github.com/Siva2k2k/ES-TM-sub003/pkg/errors"
	"github.com/Siva2k2k/ES-TM-sub003/pkg/response"
)

type reconciliationService interface {
	Reconcile(ctx context.Context, opts service.ReconcileOptions) (*models.ReconcileReport, error)
	ReconcileByIDs(ctx context.Context, ids []string, opts service.ReconcileOptions) (*models.ReconcileReport, error)
	Preview(ctx context.Context) ([]models.DriftedApproval, error)
	ExportDrift(ctx context.Context, format string) (*service.DriftExport, error)
}

// MaintenanceHandler exposes the approval reconciliation endpoints.
type MaintenanceHandler struct {
	service  reconciliationService
	validate *validator.Validate
}

// NewMaintenanceHandler constructs the handler.
func NewMaintenanceHandler(svc reconciliationService, validate *validator.Validate) *MaintenanceHandler {
	if validate == nil {
		validate = validator.New()
	}
	return &MaintenanceHandler{service: svc, validate: validate}
}

// Drift godoc
// @Summary Preview approval drift
// @Description Lists approvals under frozen timesheets that are not approved
// @Tags Maintenance
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /admin/approvals/drift [get]
func (h *MaintenanceHandler) Drift(c *gin.Context) {
	items, err := h.service.Preview(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, dto.DriftResponse{Count: len(items), Items: items}, nil)
}

// ExportDrift godoc
// @Summary Export approval drift
// @Tags Maintenance
// @Produce text/csv
// @Produce application/pdf
// @Security BearerAuth
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Router /admin/approvals/drift/export [get]
func (h *MaintenanceHandler) ExportDrift(c *gin.Context) {
	file, err := h.service.ExportDrift(c.Request.Context(), c.DefaultQuery("format", "csv"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Attachment(c, file.Filename, file.ContentType, file.Body)
}

// Reconcile godoc
// @Summary Reconcile frozen timesheet approvals
// @Description Marks every unapproved project approval under a frozen timesheet as approved
// @Tags Maintenance
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.ReconcileRequest false "Options"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /admin/approvals/reconcile [post]
func (h *MaintenanceHandler) Reconcile(c *gin.Context) {
	actor, err := requireActor(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	// An empty body runs a live sweep.
	var req dto.ReconcileRequest
	if c.Request.Body != nil && c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid reconcile payload"))
			return
		}
	}

	report, err := h.service.Reconcile(c.Request.Context(), service.ReconcileOptions{
		DryRun:    req.DryRun,
		ActorID:   actor.ID,
		IP:        c.ClientIP(),
		UserAgent: c.GetHeader("User-Agent"),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, report, nil)
}

// ReconcileByIDs godoc
// @Summary Approve listed project approvals
// @Description Force-approves approvals verified out-of-band, regardless of parent status
// @Tags Maintenance
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.ReconcileByIDsRequest true "Approval ids"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /admin/approvals/reconcile/ids [post]
func (h *MaintenanceHandler) ReconcileByIDs(c *gin.Context) {
	actor, err := requireActor(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	var req dto.ReconcileByIDsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid reconcile payload"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid reconcile payload"))
		return
	}

	report, err := h.service.ReconcileByIDs(c.Request.Context(), req.ApprovalIDs, service.ReconcileOptions{
		DryRun:    req.DryRun,
		ActorID:   actor.ID,
		IP:        c.ClientIP(),
		UserAgent: c.GetHeader("User-Agent"),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, report, nil)
}
