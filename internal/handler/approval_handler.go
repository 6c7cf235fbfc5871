package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/matrischol-api/internal/dto"
	"github.com/noah-isme/matrischol-api/internal/models"
	"github.com/noah-isme/matrischol-api/pkg/response"
)

type approvalService interface {
	SubmitInstitution(ctx context.Context, actor models.Actor, req dto.SubmitInstitutionRequest) (*models.InstitutionRequest, error)
	SubmitCourses(ctx context.Context, actor models.Actor, req dto.SubmitCourseRequest) (*models.CourseRequest, error)
	ListInstitutionRequests(ctx context.Context, actor models.Actor, filter models.ApprovalFilter) ([]models.InstitutionRequest, *models.Pagination, error)
	ListCourseRequests(ctx context.Context, actor models.Actor, filter models.ApprovalFilter) ([]models.CourseRequest, *models.Pagination, error)
	GetInstitutionRequest(ctx context.Context, actor models.Actor, id string) (*models.InstitutionRequest, error)
	GetCourseRequest(ctx context.Context, actor models.Actor, id string) (*models.CourseRequest, error)
	ReviewInstitution(ctx context.Context, actor models.Actor, id string, req dto.ReviewApprovalRequest) (*models.InstitutionRequest, error)
	ReviewCourses(ctx context.Context, actor models.Actor, id string, req dto.ReviewApprovalRequest) (*models.CourseRequest, error)
}

// ApprovalHandler serves institution and course approval requests.
type ApprovalHandler struct {
	service approvalService
}

// NewApprovalHandler constructs the handler.
func NewApprovalHandler(svc approvalService) *ApprovalHandler {
	return &ApprovalHandler{service: svc}
}

func approvalFilter(c *gin.Context) models.ApprovalFilter {
	filter := models.ApprovalFilter{Status: models.ApprovalStatus(strings.ToLower(c.Query("status")))}
	filter.Page, filter.PageSize = pageParams(c)
	return filter
}

// SubmitInstitution godoc
// @Summary Request a new institution
// @Tags Approvals
// @Accept json
// @Produce json
// @Param payload body dto.SubmitInstitutionRequest true "Institution draft"
// @Success 201 {object} response.Envelope
// @Router /institution-requests [post]
func (h *ApprovalHandler) SubmitInstitution(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	var req dto.SubmitInstitutionRequest
	if !bindJSON(c, &req, "invalid institution request") {
		return
	}
	created, err := h.service.SubmitInstitution(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, created)
}

// ListInstitutionRequests godoc
// @Summary List institution requests
// @Description Admins see every request; others see their own.
// @Tags Approvals
// @Produce json
// @Param status query string false "pending, approved, rejected or needs_info"
// @Success 200 {object} response.Envelope
// @Router /institution-requests [get]
func (h *ApprovalHandler) ListInstitutionRequests(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	items, pagination, err := h.service.ListInstitutionRequests(c.Request.Context(), actor, approvalFilter(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// GetInstitutionRequest godoc
// @Summary Get institution request
// @Tags Approvals
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Router /institution-requests/{id} [get]
func (h *ApprovalHandler) GetInstitutionRequest(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	item, err := h.service.GetInstitutionRequest(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// ReviewInstitution godoc
// @Summary Approve, reject or ask for more information
// @Tags Approvals
// @Accept json
// @Produce json
// @Param id path string true "Request ID"
// @Param payload body dto.ReviewApprovalRequest true "Decision"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /institution-requests/{id}/review [post]
func (h *ApprovalHandler) ReviewInstitution(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	var req dto.ReviewApprovalRequest
	if !bindJSON(c, &req, "invalid review payload") {
		return
	}
	item, err := h.service.ReviewInstitution(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// SubmitCourses godoc
// @Summary Request bulk course creation
// @Tags Approvals
// @Accept json
// @Produce json
// @Param payload body dto.SubmitCourseRequest true "Course request"
// @Success 201 {object} response.Envelope
// @Router /course-requests [post]
func (h *ApprovalHandler) SubmitCourses(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	var req dto.SubmitCourseRequest
	if !bindJSON(c, &req, "invalid course request") {
		return
	}
	created, err := h.service.SubmitCourses(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, created)
}

// ListCourseRequests godoc
// @Summary List course requests
// @Tags Approvals
// @Produce json
// @Param status query string false "Status filter"
// @Success 200 {object} response.Envelope
// @Router /course-requests [get]
func (h *ApprovalHandler) ListCourseRequests(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	items, pagination, err := h.service.ListCourseRequests(c.Request.Context(), actor, approvalFilter(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// GetCourseRequest godoc
// @Summary Get course request
// @Tags Approvals
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Router /course-requests/{id} [get]
func (h *ApprovalHandler) GetCourseRequest(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	item, err := h.service.GetCourseRequest(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// ReviewCourses godoc
// @Summary Review a course request
// @Description Approval provisions the courses in the same transaction.
// @Tags Approvals
// @Accept json
// @Produce json
// @Param id path string true "Request ID"
// @Param payload body dto.ReviewApprovalRequest true "Decision"
// @Success 200 {object} response.Envelope
// @Router /course-requests/{id}/review [post]
func (h *ApprovalHandler) ReviewCourses(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	var req dto.ReviewApprovalRequest
	if !bindJSON(c, &req, "invalid review payload") {
		return
	}
	item, err := h.service.ReviewCourses(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}
