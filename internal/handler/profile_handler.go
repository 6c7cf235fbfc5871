package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/matrischol-api/internal/dto"
	"github.com/noah-isme/matrischol-api/internal/models"
	"github.com/noah-isme/matrischol-api/pkg/response"
)

type profileService interface {
	GetGuardian(ctx context.Context, actor models.Actor) (*models.GuardianProfile, error)
	UpdateGuardian(ctx context.Context, actor models.Actor, req dto.UpdateGuardianRequest) (*models.GuardianProfile, error)
	ListStudents(ctx context.Context, actor models.Actor) ([]models.Student, error)
	CreateStudent(ctx context.Context, actor models.Actor, req dto.CreateStudentRequest) (*models.Student, error)
	GetStudent(ctx context.Context, actor models.Actor, id string) (*models.Student, error)
	UploadPhoto(ctx context.Context, actor models.Actor, id string, data []byte) (*models.Student, error)
}

// ProfileHandler serves the guardian profile and the guardian's students.
type ProfileHandler struct {
	service      profileService
	maxPhotoSize int64
}

// NewProfileHandler constructs the handler. maxPhotoSize caps photo uploads.
func NewProfileHandler(svc profileService, maxPhotoSize int64) *ProfileHandler {
	if maxPhotoSize <= 0 {
		maxPhotoSize = 5 << 20
	}
	return &ProfileHandler{service: svc, maxPhotoSize: maxPhotoSize}
}

// GetGuardian godoc
// @Summary Current guardian profile
// @Tags Guardians
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /guardians/me [get]
func (h *ProfileHandler) GetGuardian(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	profile, err := h.service.GetGuardian(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, profile, nil)
}

// UpdateGuardian godoc
// @Summary Update current guardian profile
// @Description A changed address is geocoded on a best-effort basis.
// @Tags Guardians
// @Accept json
// @Produce json
// @Param payload body dto.UpdateGuardianRequest true "Profile changes"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /guardians/me [put]
func (h *ProfileHandler) UpdateGuardian(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	var req dto.UpdateGuardianRequest
	if !bindJSON(c, &req, "invalid guardian payload") {
		return
	}
	profile, err := h.service.UpdateGuardian(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, profile, nil)
}

// ListStudents godoc
// @Summary List the caller's students
// @Tags Students
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /students [get]
func (h *ProfileHandler) ListStudents(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	students, err := h.service.ListStudents(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, students, nil)
}

// CreateStudent godoc
// @Summary Register a student
// @Tags Students
// @Accept json
// @Produce json
// @Param payload body dto.CreateStudentRequest true "Student"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /students [post]
func (h *ProfileHandler) CreateStudent(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	var req dto.CreateStudentRequest
	if !bindJSON(c, &req, "invalid student payload") {
		return
	}
	student, err := h.service.CreateStudent(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, student)
}

// GetStudent godoc
// @Summary Get a student
// @Tags Students
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /students/{id} [get]
func (h *ProfileHandler) GetStudent(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	student, err := h.service.GetStudent(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, student, nil)
}

// UploadPhoto godoc
// @Summary Replace the student photo
// @Description The image is resized and re-encoded as JPEG.
// @Tags Students
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Student ID"
// @Param file formData file true "Photo"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /students/{id}/photo [put]
func (h *ProfileHandler) UploadPhoto(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	data, _, ok := readUpload(c, "file", h.maxPhotoSize)
	if !ok {
		return
	}
	student, err := h.service.UploadPhoto(c.Request.Context(), actor, c.Param("id"), data)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, student, nil)
}
