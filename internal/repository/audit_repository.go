package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/matrischol-api/internal/models"
)

const auditColumns = `id, user_id, action, model_name, object_repr, COALESCE(details, '{}'::jsonb) AS details, ip_address, created_at`

// AuditRepository persists the admin action log. Rows are never updated.
type AuditRepository struct {
	db *sqlx.DB
}

// NewAuditRepository constructs the repository.
func NewAuditRepository(db *sqlx.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Create appends an entry.
func (r *AuditRepository) Create(ctx context.Context, entry *models.AdminActionLog) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	var details interface{}
	if len(entry.Details) > 0 {
		details = string(entry.Details)
	}
	const query = `INSERT INTO admin_action_logs (id, user_id, action, model_name, object_repr, details, ip_address, created_at)
VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7, $8)`
	if _, err := r.db.ExecContext(ctx, query, entry.ID, entry.UserID, entry.Action, entry.ModelName, entry.ObjectRepr, details, entry.IPAddress, entry.CreatedAt); err != nil {
		return fmt.Errorf("create audit log: %w", err)
	}
	return nil
}

func auditWhere(filter models.AuditFilter) (string, []interface{}) {
	base := `FROM admin_action_logs`
	var conditions []string
	var args []interface{}
	if filter.UserID != "" {
		conditions = append(conditions, fmt.Sprintf("user_id = $%d", len(args)+1))
		args = append(args, filter.UserID)
	}
	if filter.Action != "" {
		conditions = append(conditions, fmt.Sprintf("action = $%d", len(args)+1))
		args = append(args, filter.Action)
	}
	if filter.ModelName != "" {
		conditions = append(conditions, fmt.Sprintf("model_name = $%d", len(args)+1))
		args = append(args, filter.ModelName)
	}
	if filter.From != nil {
		conditions = append(conditions, fmt.Sprintf("created_at >= $%d", len(args)+1))
		args = append(args, *filter.From)
	}
	if filter.To != nil {
		conditions = append(conditions, fmt.Sprintf("created_at <= $%d", len(args)+1))
		args = append(args, *filter.To)
	}
	if len(conditions) > 0 {
		base += " WHERE " + strings.Join(conditions, " AND ")
	}
	return base, args
}

// List returns a page of entries, newest first, with the total count.
func (r *AuditRepository) List(ctx context.Context, filter models.AuditFilter) ([]models.AdminActionLog, int, error) {
	base, args := auditWhere(filter)
	page, size := models.NormalizePage(filter.Page, filter.PageSize)
	query := fmt.Sprintf("SELECT %s %s ORDER BY created_at DESC LIMIT %d OFFSET %d", auditColumns, base, size, (page-1)*size)

	var items []models.AdminActionLog
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list audit logs: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+base, args...); err != nil {
		return nil, 0, fmt.Errorf("count audit logs: %w", err)
	}
	return items, total, nil
}

// ListAll returns every entry matching the filter for export.
func (r *AuditRepository) ListAll(ctx context.Context, filter models.AuditFilter) ([]models.AdminActionLog, error) {
	base, args := auditWhere(filter)
	var items []models.AdminActionLog
	if err := r.db.SelectContext(ctx, &items, "SELECT "+auditColumns+" "+base+" ORDER BY created_at DESC", args...); err != nil {
		return nil, fmt.Errorf("export audit logs: %w", err)
	}
	return items, nil
}
