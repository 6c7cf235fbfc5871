package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/matrischol-api/internal/models"
	"github.com/noah-isme/matrischol-api/pkg/response"
)

type notificationService interface {
	List(ctx context.Context, userID string, unreadOnly bool, page, size int) ([]models.Notification, *models.Pagination, error)
	MarkRead(ctx context.Context, userID, id string) error
	MarkAllRead(ctx context.Context, userID string) (int, error)
}

// NotificationHandler serves the caller's in-app notifications.
type NotificationHandler struct {
	service notificationService
}

// NewNotificationHandler constructs the handler.
func NewNotificationHandler(svc notificationService) *NotificationHandler {
	return &NotificationHandler{service: svc}
}

// List godoc
// @Summary List notifications
// @Tags Notifications
// @Produce json
// @Param unread query bool false "Only unread"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /notifications [get]
func (h *NotificationHandler) List(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	unread, _ := strconv.ParseBool(c.Query("unread"))
	page, size := pageParams(c)
	items, pagination, err := h.service.List(c.Request.Context(), actor.UserID, unread, page, size)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// MarkRead godoc
// @Summary Mark one notification read
// @Tags Notifications
// @Param id path string true "Notification ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /notifications/{id}/read [post]
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	if err := h.service.MarkRead(c.Request.Context(), actor.UserID, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// MarkAllRead godoc
// @Summary Mark every notification read
// @Tags Notifications
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /notifications/read-all [post]
func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	n, err := h.service.MarkAllRead(c.Request.Context(), actor.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"updated": n}, nil)
}
