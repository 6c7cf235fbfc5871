package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/matrischol-api/internal/models"
	appErrors "github.com/noah-isme/matrischol-api/pkg/errors"
	"github.com/noah-isme/matrischol-api/pkg/response"
)

type auditService interface {
	List(ctx context.Context, filter models.AuditFilter) ([]models.AdminActionLog, *models.Pagination, error)
	ExportCSV(ctx context.Context, filter models.AuditFilter) ([]byte, error)
}

// AuditHandler exposes the admin action log.
type AuditHandler struct {
	service auditService
}

// NewAuditHandler constructs the handler.
func NewAuditHandler(svc auditService) *AuditHandler {
	return &AuditHandler{service: svc}
}

func auditFilter(c *gin.Context) (models.AuditFilter, error) {
	filter := models.AuditFilter{
		UserID:    c.Query("user_id"),
		Action:    models.AuditAction(c.Query("action")),
		ModelName: c.Query("model"),
	}
	filter.Page, filter.PageSize = pageParams(c)
	for key, dest := range map[string]**time.Time{"from": &filter.From, "to": &filter.To} {
		raw := c.Query(key)
		if raw == "" {
			continue
		}
		t, err := parseDateParam(raw)
		if err != nil {
			return filter, appErrors.Clone(appErrors.ErrValidation, key+" must be a date (2006-01-02) or RFC3339 timestamp")
		}
		*dest = &t
	}
	return filter, nil
}

func parseDateParam(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	return time.Parse("2006-01-02", raw)
}

// List godoc
// @Summary List audit entries
// @Tags Audit
// @Produce json
// @Param user_id query string false "Actor"
// @Param action query string false "Action"
// @Param model query string false "Model name"
// @Param from query string false "From date"
// @Param to query string false "To date"
// @Success 200 {object} response.Envelope
// @Router /audit-logs [get]
func (h *AuditHandler) List(c *gin.Context) {
	filter, err := auditFilter(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	items, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Export godoc
// @Summary Export audit entries as CSV
// @Tags Audit
// @Produce text/csv
// @Success 200 {file} binary
// @Router /audit-logs/export [get]
func (h *AuditHandler) Export(c *gin.Context) {
	filter, err := auditFilter(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	payload, err := h.service.ExportCSV(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, "audit-"+time.Now().UTC().Format("20060102")+".csv", "text/csv", payload)
}
