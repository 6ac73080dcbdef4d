package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Siva2k2k/ES-TM-sub003/internal/authz"
	"github.com/Siva2k2k/ES-TM-sub003/internal/dto"
	"github.com/Siva2k2k/ES-TM-sub003/internal/models"
	appErrors "github.com/Siva2k2k/ES-TM-sub003/pkg/errors"
	"github.com/Siva2k2k/ES-TM-sub003/pkg/response"
)

type timesheetService interface {
	List(ctx context.Context, actor *authz.Actor, query dto.TimesheetQuery) ([]models.Timesheet, error)
	Get(ctx context.Context, actor *authz.Actor, id string) (*dto.TimesheetDetail, error)
	Create(ctx context.Context, actor *authz.Actor, req dto.CreateTimesheetRequest) (*models.Timesheet, error)
	Update(ctx context.Context, actor *authz.Actor, id string, req dto.UpdateTimesheetRequest) (*models.Timesheet, error)
	Delete(ctx context.Context, actor *authz.Actor, id string) error
	Submit(ctx context.Context, actor *authz.Actor, id string, req dto.SubmitTimesheetRequest) (*models.Timesheet, error)
	ReviewProject(ctx context.Context, actor *authz.Actor, id, projectID string) (*dto.ReviewResult, error)
	RejectReview(ctx context.Context, actor *authz.Actor, id, projectID string, req dto.RejectProjectRequest) (*dto.ReviewResult, error)
	ApproveProject(ctx context.Context, actor *authz.Actor, id, projectID string) (*models.TimesheetProjectApproval, error)
	RejectProject(ctx context.Context, actor *authz.Actor, id, projectID string, req dto.RejectProjectRequest) (*models.TimesheetProjectApproval, error)
	Freeze(ctx context.Context, actor *authz.Actor, id string) (*dto.FreezeResult, error)
	Bill(ctx context.Context, actor *authz.Actor, id string) (*models.Timesheet, error)
}

// TimesheetHandler exposes weekly timesheet endpoints.
type TimesheetHandler struct {
	service timesheetService
}

// NewTimesheetHandler constructs the handler.
func NewTimesheetHandler(svc timesheetService) *TimesheetHandler {
	return &TimesheetHandler{service: svc}
}

// List godoc
// @Summary List timesheets
// @Description Lists timesheets the caller may view. Defaults to the caller's own weeks.
// @Tags Timesheets
// @Produce json
// @Security BearerAuth
// @Param user_id query string false "Owner filter"
// @Param status query []string false "Status filter" collectionFormat(multi)
// @Param limit query int false "Limit"
// @Param offset query int false "Offset"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /timesheets [get]
func (h *TimesheetHandler) List(c *gin.Context) {
	actor, err := requireActor(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	var query dto.TimesheetQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}

	items, err := h.service.List(c.Request.Context(), actor, query)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, items, nil, map[string]interface{}{"count": len(items)})
}

// Get godoc
// @Summary Get timesheet
// @Tags Timesheets
// @Produce json
// @Security BearerAuth
// @Param id path string true "Timesheet ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /timesheets/{id} [get]
func (h *TimesheetHandler) Get(c *gin.Context) {
	actor, err := requireActor(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	detail, err := h.service.Get(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, detail, nil)
}

// Create godoc
// @Summary Create timesheet
// @Description Opens a draft week for the caller or for a managed user
// @Tags Timesheets
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.CreateTimesheetRequest true "Timesheet payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /timesheets [post]
func (h *TimesheetHandler) Create(c *gin.Context) {
	actor, err := requireActor(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	var req dto.CreateTimesheetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid timesheet payload"))
		return
	}

	ts, err := h.service.Create(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, ts)
}

// Update godoc
// @Summary Update timesheet hours
// @Tags Timesheets
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Timesheet ID"
// @Param payload body dto.UpdateTimesheetRequest true "Hours payload"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /timesheets/{id} [put]
func (h *TimesheetHandler) Update(c *gin.Context) {
	actor, err := requireActor(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	var req dto.UpdateTimesheetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid timesheet payload"))
		return
	}

	ts, err := h.service.Update(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, ts, nil)
}

// Delete godoc
// @Summary Delete draft timesheet
// @Tags Timesheets
// @Security BearerAuth
// @Param id path string true "Timesheet ID"
// @Success 204
// @Failure 409 {object} response.Envelope
// @Router /timesheets/{id} [delete]
func (h *TimesheetHandler) Delete(c *gin.Context) {
	actor, err := requireActor(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	if err := h.service.Delete(c.Request.Context(), actor, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}

// Submit godoc
// @Summary Submit timesheet
// @Description Submits the week with its per-project split for approval
// @Tags Timesheets
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Timesheet ID"
// @Param payload body dto.SubmitTimesheetRequest true "Project split"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /timesheets/{id}/submit [post]
func (h *TimesheetHandler) Submit(c *gin.Context) {
	actor, err := requireActor(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	var req dto.SubmitTimesheetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid submit payload"))
		return
	}

	ts, err := h.service.Submit(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, ts, nil)
}

// ReviewProject godoc
// @Summary Manager approval of project hours
// @Description Approves one project at the manager stage. The timesheet moves to manager_approved once every project is approved.
// @Tags Timesheets
// @Produce json
// @Security BearerAuth
// @Param id path string true "Timesheet ID"
// @Param projectId path string true "Project ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /timesheets/{id}/projects/{projectId}/manager-approve [post]
func (h *TimesheetHandler) ReviewProject(c *gin.Context) {
	actor, err := requireActor(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	result, err := h.service.ReviewProject(c.Request.Context(), actor, c.Param("id"), c.Param("projectId"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, result, nil)
}

// RejectReview godoc
// @Summary Manager rejection of project hours
// @Tags Timesheets
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Timesheet ID"
// @Param projectId path string true "Project ID"
// @Param payload body dto.RejectProjectRequest true "Rejection reason"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /timesheets/{id}/projects/{projectId}/manager-reject [post]
func (h *TimesheetHandler) RejectReview(c *gin.Context) {
	actor, err := requireActor(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	var req dto.RejectProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid rejection payload"))
		return
	}

	result, err := h.service.RejectReview(c.Request.Context(), actor, c.Param("id"), c.Param("projectId"), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, result, nil)
}

// ApproveProject godoc
// @Summary Approve project hours
// @Tags Timesheets
// @Produce json
// @Security BearerAuth
// @Param id path string true "Timesheet ID"
// @Param projectId path string true "Project ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /timesheets/{id}/projects/{projectId}/approve [post]
func (h *TimesheetHandler) ApproveProject(c *gin.Context) {
	actor, err := requireActor(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	approval, err := h.service.ApproveProject(c.Request.Context(), actor, c.Param("id"), c.Param("projectId"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, approval, nil)
}

// RejectProject godoc
// @Summary Reject project hours
// @Tags Timesheets
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Timesheet ID"
// @Param projectId path string true "Project ID"
// @Param payload body dto.RejectProjectRequest true "Rejection reason"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /timesheets/{id}/projects/{projectId}/reject [post]
func (h *TimesheetHandler) RejectProject(c *gin.Context) {
	actor, err := requireActor(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	var req dto.RejectProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid rejection payload"))
		return
	}

	approval, err := h.service.RejectProject(c.Request.Context(), actor, c.Param("id"), c.Param("projectId"), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, approval, nil)
}

// Freeze godoc
// @Summary Freeze timesheet
// @Description Freezes a timesheet and settles its project approvals
// @Tags Timesheets
// @Produce json
// @Security BearerAuth
// @Param id path string true "Timesheet ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /timesheets/{id}/freeze [post]
func (h *TimesheetHandler) Freeze(c *gin.Context) {
	actor, err := requireActor(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	result, err := h.service.Freeze(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, result, nil)
}

// Bill godoc
// @Summary Mark timesheet billed
// @Tags Timesheets
// @Produce json
// @Security BearerAuth
// @Param id path string true "Timesheet ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /timesheets/{id}/bill [post]
func (h *TimesheetHandler) Bill(c *gin.Context) {
	actor, err := requireActor(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	ts, err := h.service.Bill(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, ts, nil)
}
