package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/matrischol-api/internal/models"
)

// EmailLogRepository records outbound email attempts.
type EmailLogRepository struct {
	db *sqlx.DB
}

// NewEmailLogRepository constructs the repository.
func NewEmailLogRepository(db *sqlx.DB) *EmailLogRepository {
	return &EmailLogRepository{db: db}
}

// Create inserts an email log row.
func (r *EmailLogRepository) Create(ctx context.Context, entry *models.EmailLog) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	entry.CreatedAt = time.Now().UTC()
	const query = `INSERT INTO email_logs (id, recipient, subject, summary, success, error, type, user_id, created_at)
VALUES (:id, :recipient, :subject, :summary, :success, :error, :type, :user_id, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("create email log: %w", err)
	}
	return nil
}
