package handler

import (
	"context"
	"net/http"
	"os"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/matrischol-api/internal/dto"
	"github.com/noah-isme/matrischol-api/internal/models"
	appErrors "github.com/noah-isme/matrischol-api/pkg/errors"
	"github.com/noah-isme/matrischol-api/pkg/response"
)

type documentService interface {
	List(ctx context.Context, actor models.Actor, studentID string) ([]models.DocumentBundle, error)
	Status(ctx context.Context, actor models.Actor, studentID string) (*models.DocumentStatus, error)
	Upload(ctx context.Context, actor models.Actor, studentID string, upload dto.DocumentUpload) (*models.DocumentBundle, error)
	Placeholder(ctx context.Context, actor models.Actor, studentID string, req dto.DocumentPlaceholderRequest) (*models.DocumentBundle, error)
	Link(ctx context.Context, actor models.Actor, bundleID string, req dto.DocumentLinkRequest) (*models.DocumentLink, error)
	Open(token string) (*os.File, string, error)
}

// DocumentHandler exposes the student document bundles.
type DocumentHandler struct {
	service     documentService
	maxFileSize int64
}

// NewDocumentHandler constructs the handler.
func NewDocumentHandler(svc documentService, maxFileSize int64) *DocumentHandler {
	if maxFileSize <= 0 {
		maxFileSize = 5 << 20
	}
	return &DocumentHandler{service: svc, maxFileSize: maxFileSize}
}

// List godoc
// @Summary List a student's document bundles
// @Tags Documents
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/documents [get]
func (h *DocumentHandler) List(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	bundles, err := h.service.List(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, bundles, nil)
}

// Status godoc
// @Summary Missing mandatory documents
// @Tags Documents
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/documents/status [get]
func (h *DocumentHandler) Status(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	status, err := h.service.Status(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, status, nil)
}

// Save godoc
// @Summary Fill a document slot
// @Description Multipart requests upload a file into the slot; JSON requests record a placeholder value.
// @Tags Documents
// @Accept multipart/form-data
// @Accept json
// @Produce json
// @Param id path string true "Student ID"
// @Param slot formData string false "Document slot"
// @Param file formData file false "Document file"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /students/{id}/documents [post]
func (h *DocumentHandler) Save(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	var (
		bundle *models.DocumentBundle
		err    error
	)
	if c.ContentType() == "multipart/form-data" {
		data, header, ok := readUpload(c, "file", h.maxFileSize)
		if !ok {
			return
		}
		bundle, err = h.service.Upload(c.Request.Context(), actor, c.Param("id"), dto.DocumentUpload{
			Slot:        c.PostForm("slot"),
			Filename:    header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Size:        header.Size,
			Content:     data,
		})
	} else {
		var req dto.DocumentPlaceholderRequest
		if !bindJSON(c, &req, "invalid document payload") {
			return
		}
		bundle, err = h.service.Placeholder(c.Request.Context(), actor, c.Param("id"), req)
	}
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, bundle, nil)
}

// Link godoc
// @Summary Signed download link
// @Tags Documents
// @Accept json
// @Produce json
// @Param id path string true "Bundle ID"
// @Param payload body dto.DocumentLinkRequest true "Slot"
// @Success 200 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /documents/{id}/link [post]
func (h *DocumentHandler) Link(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	var req dto.DocumentLinkRequest
	if !bindJSON(c, &req, "invalid link payload") {
		return
	}
	link, err := h.service.Link(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, link, nil)
}

// Download godoc
// @Summary Download a document through a signed token
// @Tags Documents
// @Produce octet-stream
// @Param token query string true "Signed token"
// @Success 200 {file} binary
// @Failure 403 {object} response.Envelope
// @Router /documents/download [get]
func (h *DocumentHandler) Download(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}
	file, name, err := h.service.Open(token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to stat document"))
		return
	}
	contentType := "application/octet-stream"
	if detected, err := mimetype.DetectReader(file); err == nil {
		contentType = detected.String()
	}
	if _, err := file.Seek(0, 0); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read document"))
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	c.DataFromReader(http.StatusOK, info.Size(), contentType, file, nil)
}
