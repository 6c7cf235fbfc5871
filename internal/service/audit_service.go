package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/matrischol-api/internal/models"
	appErrors "github.com/noah-isme/matrischol-api/pkg/errors"
	"github.com/noah-isme/matrischol-api/pkg/export"
)

type auditRepository interface {
	List(ctx context.Context, filter models.AuditFilter) ([]models.AdminActionLog, int, error)
	ListAll(ctx context.Context, filter models.AuditFilter) ([]models.AdminActionLog, error)
}

// AuditService reads and exports the admin action log.
type AuditService struct {
	repo   auditRepository
	csv    *export.CSVExporter
	logger *zap.Logger
}

// NewAuditService constructs the service.
func NewAuditService(repo auditRepository, logger *zap.Logger) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditService{repo: repo, csv: export.NewCSVExporter(), logger: logger}
}

// List returns a page of audit entries.
func (s *AuditService) List(ctx context.Context, filter models.AuditFilter) ([]models.AdminActionLog, *models.Pagination, error) {
	filter.Page, filter.PageSize = models.NormalizePage(filter.Page, filter.PageSize)
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list audit logs")
	}
	return items, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// ExportCSV renders every entry matching the filter.
func (s *AuditService) ExportCSV(ctx context.Context, filter models.AuditFilter) ([]byte, error) {
	items, err := s.repo.ListAll(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to export audit logs")
	}
	data := export.Dataset{Headers: []string{"created_at", "user_id", "action", "model", "object", "ip", "details"}}
	for _, item := range items {
		userID := ""
		if item.UserID != nil {
			userID = *item.UserID
		}
		data.Append(item.CreatedAt.UTC().Format(time.RFC3339), userID, string(item.Action), item.ModelName, item.ObjectRepr, item.IPAddress, string(item.Details))
	}
	out, err := s.csv.Render(data)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render audit export")
	}
	return out, nil
}

// newAuditEntry builds an audit row for actor. details is marshalled to JSON when non-nil.
func newAuditEntry(actor models.Actor, action models.AuditAction, model, repr string, details interface{}) models.AdminActionLog {
	entry := models.AdminActionLog{
		Action:     action,
		ModelName:  model,
		ObjectRepr: truncateRunes(strings.TrimSpace(repr), models.ObjectReprLimit),
		IPAddress:  actor.IP,
		CreatedAt:  time.Now().UTC(),
	}
	if actor.UserID != "" {
		id := actor.UserID
		entry.UserID = &id
	}
	if details != nil {
		if raw, err := json.Marshal(details); err == nil {
			entry.Details = raw
		}
	}
	return entry
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
