package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/matrischol-api/internal/models"
)

const notificationColumns = `id, recipient_user_id, title, message, read, enrollment_request_id, institution_request_id, course_request_id, created_at`

// NotificationRepository persists in-app notifications.
type NotificationRepository struct {
	db *sqlx.DB
}

// NewNotificationRepository constructs the repository.
func NewNotificationRepository(db *sqlx.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Create inserts a notification.
func (r *NotificationRepository) Create(ctx context.Context, n *models.Notification) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	n.CreatedAt = time.Now().UTC()
	const query = `INSERT INTO notifications (id, recipient_user_id, title, message, read, enrollment_request_id, institution_request_id, course_request_id, created_at)
VALUES (:id, :recipient_user_id, :title, :message, :read, :enrollment_request_id, :institution_request_id, :course_request_id, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, n); err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	return nil
}

// List returns a user's notifications, newest first, with the total count.
func (r *NotificationRepository) List(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, int, error) {
	base := `FROM notifications WHERE recipient_user_id = $1`
	if filter.UnreadOnly {
		base += ` AND read = FALSE`
	}
	page, size := models.NormalizePage(filter.Page, filter.PageSize)
	query := fmt.Sprintf("SELECT %s %s ORDER BY created_at DESC LIMIT %d OFFSET %d", notificationColumns, base, size, (page-1)*size)

	var items []models.Notification
	if err := r.db.SelectContext(ctx, &items, query, filter.RecipientUserID); err != nil {
		return nil, 0, fmt.Errorf("list notifications: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+base, filter.RecipientUserID); err != nil {
		return nil, 0, fmt.Errorf("count notifications: %w", err)
	}
	return items, total, nil
}

// MarkRead marks one of the user's notifications as read.
func (r *NotificationRepository) MarkRead(ctx context.Context, id, userID string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE notifications SET read = TRUE WHERE id = $1 AND recipient_user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// MarkAllRead marks every unread notification of the user as read.
func (r *NotificationRepository) MarkAllRead(ctx context.Context, userID string) (int, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE notifications SET read = TRUE WHERE recipient_user_id = $1 AND read = FALSE`, userID)
	if err != nil {
		return 0, fmt.Errorf("mark notifications read: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("mark notifications read rows: %w", err)
	}
	return int(n), nil
}
