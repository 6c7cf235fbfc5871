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

type enrollmentService interface {
	Create(ctx context.Context, actor models.Actor, req dto.CreateEnrollmentRequest) (*dto.EnrollmentRequestOutcome, error)
	Review(ctx context.Context, actor models.Actor, id string, req dto.ReviewEnrollmentRequest) (*models.EnrollmentRequest, error)
	Expire(ctx context.Context) (int, error)
	List(ctx context.Context, actor models.Actor, filter models.EnrollmentRequestFilter) ([]models.EnrollmentRequest, *models.Pagination, error)
	Get(ctx context.Context, actor models.Actor, id string) (*dto.EnrollmentRequestDetail, error)
	Certificate(ctx context.Context, actor models.Actor, enrollmentID string) ([]byte, error)
}

// EnrollmentHandler exposes the enrollment request workflow.
type EnrollmentHandler struct {
	enrollments enrollmentService
}

// NewEnrollmentHandler constructs EnrollmentHandler.
func NewEnrollmentHandler(enrollments enrollmentService) *EnrollmentHandler {
	return &EnrollmentHandler{enrollments: enrollments}
}

// Create godoc
// @Summary Request enrollment
// @Description Eligibility failures are answered with status "rejected" and a message, not an HTTP error.
// @Tags Enrollment Requests
// @Accept json
// @Produce json
// @Param payload body dto.CreateEnrollmentRequest true "Request"
// @Success 201 {object} response.Envelope
// @Success 200 {object} response.Envelope
// @Router /enrollment-requests [post]
func (h *EnrollmentHandler) Create(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	var req dto.CreateEnrollmentRequest
	if !bindJSON(c, &req, "invalid enrollment payload") {
		return
	}
	outcome, err := h.enrollments.Create(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	if outcome.Status == dto.OutcomeRejected {
		response.JSON(c, http.StatusOK, outcome, nil)
		return
	}
	response.Created(c, outcome)
}

// List godoc
// @Summary List enrollment requests visible to the caller
// @Tags Enrollment Requests
// @Produce json
// @Param status query string false "pending, accepted, rejected or needs_docs"
// @Param institution_id query string false "Institution"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /enrollment-requests [get]
func (h *EnrollmentHandler) List(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	filter := models.EnrollmentRequestFilter{
		InstitutionID: c.Query("institution_id"),
		Status:        models.RequestStatus(strings.ToLower(c.Query("status"))),
	}
	filter.Page, filter.PageSize = pageParams(c)

	items, pagination, err := h.enrollments.List(c.Request.Context(), actor, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Get godoc
// @Summary Enrollment request with its documents
// @Tags Enrollment Requests
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /enrollment-requests/{id} [get]
func (h *EnrollmentHandler) Get(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	detail, err := h.enrollments.Get(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// Review godoc
// @Summary Act on an enrollment request
// @Tags Enrollment Requests
// @Accept json
// @Produce json
// @Param id path string true "Request ID"
// @Param payload body dto.ReviewEnrollmentRequest true "accept, reject, hold or request_docs"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /enrollment-requests/{id}/actions [post]
func (h *EnrollmentHandler) Review(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	var req dto.ReviewEnrollmentRequest
	if !bindJSON(c, &req, "invalid review payload") {
		return
	}
	updated, err := h.enrollments.Review(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, updated, nil)
}

// Expire godoc
// @Summary Reject overdue pending requests
// @Tags Enrollment Requests
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /enrollment-requests/expire [post]
func (h *EnrollmentHandler) Expire(c *gin.Context) {
	n, err := h.enrollments.Expire(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.SweepResult{Expired: n}, nil)
}

// Certificate godoc
// @Summary Enrollment certificate
// @Tags Enrollments
// @Produce application/pdf
// @Param id path string true "Enrollment ID"
// @Success 200 {file} binary
// @Failure 403 {object} response.Envelope
// @Router /enrollments/{id}/certificate [get]
func (h *EnrollmentHandler) Certificate(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	pdf, err := h.enrollments.Certificate(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, "certificado-matricula-"+c.Param("id")+".pdf", "application/pdf", pdf)
}
