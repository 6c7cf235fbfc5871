package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/matrischol-api/internal/dto"
	"github.com/noah-isme/matrischol-api/internal/models"
	"github.com/noah-isme/matrischol-api/pkg/response"
)

type scheduleService interface {
	ListByCourse(ctx context.Context, courseID string) ([]models.ScheduleSlotDetail, error)
	Create(ctx context.Context, actor models.Actor, courseID string, req dto.CreateScheduleSlotRequest) (*models.ScheduleSlot, error)
	Delete(ctx context.Context, actor models.Actor, id string) error
}

// ScheduleHandler manages course timetables.
type ScheduleHandler struct {
	service scheduleService
}

// NewScheduleHandler constructs a schedule handler.
func NewScheduleHandler(svc scheduleService) *ScheduleHandler {
	return &ScheduleHandler{service: svc}
}

// List godoc
// @Summary Course timetable
// @Tags Schedules
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/schedule [get]
func (h *ScheduleHandler) List(c *gin.Context) {
	slots, err := h.service.ListByCourse(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, slots, nil)
}

// Create godoc
// @Summary Add a timetable slot
// @Tags Schedules
// @Accept json
// @Produce json
// @Param id path string true "Course ID"
// @Param payload body dto.CreateScheduleSlotRequest true "Slot"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /courses/{id}/schedule [post]
func (h *ScheduleHandler) Create(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	var req dto.CreateScheduleSlotRequest
	if !bindJSON(c, &req, "invalid schedule payload") {
		return
	}
	slot, err := h.service.Create(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, slot)
}

// Delete godoc
// @Summary Remove a timetable slot
// @Tags Schedules
// @Param id path string true "Slot ID"
// @Success 204
// @Router /schedule-slots/{id} [delete]
func (h *ScheduleHandler) Delete(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), actor, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
