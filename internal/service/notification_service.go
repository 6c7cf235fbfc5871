package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/noah-isme/matrischol-api/internal/models"
	appErrors "github.com/noah-isme/matrischol-api/pkg/errors"
)

type notificationRepository interface {
	List(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, int, error)
	MarkRead(ctx context.Context, id, userID string) error
	MarkAllRead(ctx context.Context, userID string) (int, error)
}

// NotificationService exposes a user's in-app inbox.
type NotificationService struct {
	repo   notificationRepository
	logger *zap.Logger
}

// NewNotificationService constructs the service.
func NewNotificationService(repo notificationRepository, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{repo: repo, logger: logger}
}

// List returns the caller's notifications.
func (s *NotificationService) List(ctx context.Context, userID string, unreadOnly bool, page, size int) ([]models.Notification, *models.Pagination, error) {
	page, size = models.NormalizePage(page, size)
	items, total, err := s.repo.List(ctx, models.NotificationFilter{RecipientUserID: userID, UnreadOnly: unreadOnly, Page: page, PageSize: size})
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list notifications")
	}
	return items, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// MarkRead marks one of the caller's notifications as read.
func (s *NotificationService) MarkRead(ctx context.Context, userID, id string) error {
	if err := s.repo.MarkRead(ctx, id, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "notification not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update notification")
	}
	return nil
}

// MarkAllRead marks the caller's inbox as read and returns how many changed.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID string) (int, error) {
	n, err := s.repo.MarkAllRead(ctx, userID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update notifications")
	}
	return n, nil
}
