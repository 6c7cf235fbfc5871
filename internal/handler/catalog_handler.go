package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/matrischol-api/internal/dto"
	"github.com/noah-isme/matrischol-api/internal/models"
	"github.com/noah-isme/matrischol-api/internal/service"
	appErrors "github.com/noah-isme/matrischol-api/pkg/errors"
	"github.com/noah-isme/matrischol-api/pkg/response"
)

type catalogService interface {
	SearchInstitutions(ctx context.Context, filter models.InstitutionFilter) ([]models.Institution, *models.Pagination, bool, error)
	GetInstitution(ctx context.Context, id string) (*models.Institution, error)
	CreateInstitution(ctx context.Context, actor models.Actor, req dto.CreateInstitutionRequest) (*models.Institution, error)
	UpdateInstitution(ctx context.Context, actor models.Actor, id string, req dto.UpdateInstitutionRequest) (*models.Institution, error)
	SetDuplicateSlots(ctx context.Context, actor models.Actor, id string, allow bool) (*models.Institution, error)
	ListCourses(ctx context.Context, institutionID string) ([]models.Course, bool, error)
	CreateCourse(ctx context.Context, actor models.Actor, institutionID string, req dto.CreateCourseRequest) (*models.Course, error)
	UpdateSeats(ctx context.Context, actor models.Actor, courseID string, req dto.UpdateSeatsRequest) (*models.Course, error)
	Provision(ctx context.Context, actor models.Actor, institutionID string, cfg models.ProvisionConfig) (models.ProvisionResult, error)
	ClearCourses(ctx context.Context, actor models.Actor, institutionID string, confirm bool) (int, error)
	ExportRoster(ctx context.Context, actor models.Actor, institutionID string, format service.ExportFormat) (*service.RenderedFile, error)
}

// CatalogHandler serves institutions and their courses.
type CatalogHandler struct {
	service catalogService
}

// NewCatalogHandler constructs the handler.
func NewCatalogHandler(svc catalogService) *CatalogHandler {
	return &CatalogHandler{service: svc}
}

// SearchInstitutions godoc
// @Summary Search institutions
// @Tags Institutions
// @Produce json
// @Param q query string false "Name, DANE code or municipality"
// @Param municipality query string false "Municipality"
// @Param admin_id query string false "Administering staff profile"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /institutions [get]
func (h *CatalogHandler) SearchInstitutions(c *gin.Context) {
	filter := models.InstitutionFilter{
		Search:       strings.TrimSpace(c.Query("q")),
		Municipality: strings.TrimSpace(c.Query("municipality")),
		AdminID:      c.Query("admin_id"),
	}
	filter.Page, filter.PageSize = pageParams(c)

	items, pagination, hit, err := h.service.SearchInstitutions(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination, cacheMeta(c, hit))
}

// GetInstitution godoc
// @Summary Get institution
// @Tags Institutions
// @Produce json
// @Param id path string true "Institution ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /institutions/{id} [get]
func (h *CatalogHandler) GetInstitution(c *gin.Context) {
	inst, err := h.service.GetInstitution(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, inst, nil)
}

// CreateInstitution godoc
// @Summary Create institution directly
// @Tags Institutions
// @Accept json
// @Produce json
// @Param payload body dto.CreateInstitutionRequest true "Institution"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /institutions [post]
func (h *CatalogHandler) CreateInstitution(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	var req dto.CreateInstitutionRequest
	if !bindJSON(c, &req, "invalid institution payload") {
		return
	}
	inst, err := h.service.CreateInstitution(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, inst)
}

// UpdateInstitution godoc
// @Summary Update institution
// @Tags Institutions
// @Accept json
// @Produce json
// @Param id path string true "Institution ID"
// @Param payload body dto.UpdateInstitutionRequest true "Changes"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /institutions/{id} [put]
func (h *CatalogHandler) UpdateInstitution(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	var req dto.UpdateInstitutionRequest
	if !bindJSON(c, &req, "invalid institution payload") {
		return
	}
	inst, err := h.service.UpdateInstitution(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, inst, nil)
}

// SetDuplicateSlots godoc
// @Summary Allow or forbid repeated subjects in one course timetable
// @Tags Institutions
// @Accept json
// @Produce json
// @Param id path string true "Institution ID"
// @Param payload body dto.DuplicateSlotsRequest true "Flag"
// @Success 200 {object} response.Envelope
// @Router /institutions/{id}/duplicate-slots [post]
func (h *CatalogHandler) SetDuplicateSlots(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	var req dto.DuplicateSlotsRequest
	if !bindJSON(c, &req, "invalid payload") {
		return
	}
	inst, err := h.service.SetDuplicateSlots(c.Request.Context(), actor, c.Param("id"), req.Allow)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, inst, nil)
}

// ListCourses godoc
// @Summary List courses of an institution
// @Tags Courses
// @Produce json
// @Param id path string true "Institution ID"
// @Success 200 {object} response.Envelope
// @Router /institutions/{id}/courses [get]
func (h *CatalogHandler) ListCourses(c *gin.Context) {
	courses, hit, err := h.service.ListCourses(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, courses, nil, cacheMeta(c, hit))
}

// CreateCourse godoc
// @Summary Add a course
// @Tags Courses
// @Accept json
// @Produce json
// @Param id path string true "Institution ID"
// @Param payload body dto.CreateCourseRequest true "Course"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /institutions/{id}/courses [post]
func (h *CatalogHandler) CreateCourse(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	var req dto.CreateCourseRequest
	if !bindJSON(c, &req, "invalid course payload") {
		return
	}
	course, err := h.service.CreateCourse(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, course)
}

// Provision godoc
// @Summary Bulk-create courses
// @Description Idempotent: existing grade labels are skipped.
// @Tags Courses
// @Accept json
// @Produce json
// @Param id path string true "Institution ID"
// @Param payload body models.ProvisionConfig true "Provisioning options"
// @Success 200 {object} response.Envelope
// @Router /institutions/{id}/courses/provision [post]
func (h *CatalogHandler) Provision(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	var cfg models.ProvisionConfig
	if !bindJSON(c, &cfg, "invalid provisioning payload") {
		return
	}
	result, err := h.service.Provision(c.Request.Context(), actor, c.Param("id"), cfg)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// ClearCourses godoc
// @Summary Delete every course of an institution
// @Tags Courses
// @Produce json
// @Param id path string true "Institution ID"
// @Param confirm query bool true "Must be true"
// @Success 200 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /institutions/{id}/courses [delete]
func (h *CatalogHandler) ClearCourses(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	confirm, _ := strconv.ParseBool(c.Query("confirm"))
	deleted, err := h.service.ClearCourses(c.Request.Context(), actor, c.Param("id"), confirm)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"deleted": deleted}, nil)
}

// ExportCourses godoc
// @Summary Export the course roster
// @Tags Courses
// @Produce text/csv
// @Produce application/pdf
// @Param id path string true "Institution ID"
// @Param format query string false "csv or pdf"
// @Success 200 {file} binary
// @Router /institutions/{id}/courses/export [get]
func (h *CatalogHandler) ExportCourses(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	format := service.ExportFormat(strings.ToLower(c.DefaultQuery("format", string(service.ExportCSV))))
	if format != service.ExportCSV && format != service.ExportPDF {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf"))
		return
	}
	file, err := h.service.ExportRoster(c.Request.Context(), actor, c.Param("id"), format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Content)
}

// UpdateSeats godoc
// @Summary Reset the available seats of a course
// @Tags Courses
// @Accept json
// @Produce json
// @Param id path string true "Course ID"
// @Param payload body dto.UpdateSeatsRequest true "Seats"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/seats [put]
func (h *CatalogHandler) UpdateSeats(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	var req dto.UpdateSeatsRequest
	if !bindJSON(c, &req, "invalid seats payload") {
		return
	}
	course, err := h.service.UpdateSeats(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, course, nil)
}
