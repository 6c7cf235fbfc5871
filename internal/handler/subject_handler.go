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

type subjectService interface {
	List(ctx context.Context, search string) ([]models.Subject, error)
	Create(ctx context.Context, req dto.CreateSubjectRequest) (*dto.SubjectResponse, error)
}

// SubjectHandler handles subject endpoints.
type SubjectHandler struct {
	service subjectService
}

// NewSubjectHandler constructs a subject handler.
func NewSubjectHandler(svc subjectService) *SubjectHandler {
	return &SubjectHandler{service: svc}
}

// List godoc
// @Summary List subjects
// @Tags Subjects
// @Produce json
// @Param search query string false "Search keyword"
// @Success 200 {object} response.Envelope
// @Router /subjects [get]
func (h *SubjectHandler) List(c *gin.Context) {
	subjects, err := h.service.List(c.Request.Context(), strings.TrimSpace(c.Query("search")))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, subjects, nil)
}

// Create godoc
// @Summary Create subject
// @Description Names are unique case-insensitively; an existing subject is returned with reused=true.
// @Tags Subjects
// @Accept json
// @Produce json
// @Param payload body dto.CreateSubjectRequest true "Subject"
// @Success 201 {object} response.Envelope
// @Success 200 {object} response.Envelope
// @Router /subjects [post]
func (h *SubjectHandler) Create(c *gin.Context) {
	var req dto.CreateSubjectRequest
	if !bindJSON(c, &req, "invalid subject payload") {
		return
	}
	subject, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	if subject.Reused {
		response.JSON(c, http.StatusOK, subject, nil)
		return
	}
	response.Created(c, subject)
}
