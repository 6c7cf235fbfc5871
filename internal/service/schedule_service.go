package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/matrischol-api/internal/dto"
	"github.com/noah-isme/matrischol-api/internal/models"
	appErrors "github.com/noah-isme/matrischol-api/pkg/errors"
)

type scheduleRepository interface {
	FindByID(ctx context.Context, id string) (*models.ScheduleSlot, error)
	ListByCourse(ctx context.Context, courseID string) ([]models.ScheduleSlotDetail, error)
	ExistsDuplicate(ctx context.Context, slot models.ScheduleSlot) (bool, error)
	Create(ctx context.Context, slot *models.ScheduleSlot) error
	Delete(ctx context.Context, id string) error
}

type teacherFinder interface {
	FindTeacher(ctx context.Context, id string) (*models.Teacher, error)
}

// ScheduleService manages course timetables.
type ScheduleService struct {
	repo         scheduleRepository
	courses      courseFinder
	institutions institutionAuthority
	subjects     subjectRepository
	teachers     teacherFinder
	validator    *validator.Validate
	logger       *zap.Logger
}

// NewScheduleService constructs the service.
func NewScheduleService(repo scheduleRepository, courses courseFinder, institutions institutionAuthority, subjects subjectRepository, teachers teacherFinder, validate *validator.Validate, logger *zap.Logger) *ScheduleService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScheduleService{
		repo:         repo,
		courses:      courses,
		institutions: institutions,
		subjects:     subjects,
		teachers:     teachers,
		validator:    validate,
		logger:       logger,
	}
}

// ListByCourse returns the timetable of a course ordered by day and start time.
func (s *ScheduleService) ListByCourse(ctx context.Context, courseID string) ([]models.ScheduleSlotDetail, error) {
	if _, err := s.loadCourse(ctx, courseID); err != nil {
		return nil, err
	}
	slots, err := s.repo.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list schedule")
	}
	return slots, nil
}

// Create adds a slot. The same subject at the same day and start time is refused unless the
// institution allows duplicate subject slots.
func (s *ScheduleService) Create(ctx context.Context, actor models.Actor, courseID string, req dto.CreateScheduleSlotRequest) (*models.ScheduleSlot, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid schedule payload")
	}
	course, err := s.loadCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	inst, err := s.authorize(ctx, actor, course.InstitutionID)
	if err != nil {
		return nil, err
	}

	slot := models.ScheduleSlot{
		CourseID:  courseID,
		SubjectID: req.SubjectID,
		TeacherID: req.TeacherID,
		Day:       models.Weekday(req.Day),
		StartsAt:  trimmed(req.StartsAt),
		EndsAt:    trimmed(req.EndsAt),
		Room:      trimmed(req.Room),
	}
	if !slot.Day.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "day must be between 0 (Monday) and 4 (Friday)")
	}
	// HH:MM strings compare in chronological order
	if slot.StartsAt != nil && slot.EndsAt != nil && *slot.EndsAt <= *slot.StartsAt {
		return nil, appErrors.Clone(appErrors.ErrValidation, "ends_at must be after starts_at")
	}

	if _, err := s.subjects.FindByID(ctx, slot.SubjectID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrInvalidReference, "subject not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject")
	}
	if slot.TeacherID != nil && *slot.TeacherID != "" {
		teacher, err := s.teachers.FindTeacher(ctx, *slot.TeacherID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrInvalidReference, "teacher not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher")
		}
		if teacher.InstitutionID != course.InstitutionID {
			return nil, appErrors.Clone(appErrors.ErrInvalidReference, "teacher belongs to another institution")
		}
	} else {
		slot.TeacherID = nil
	}

	if !inst.AllowDuplicateSubjectSlots {
		dup, err := s.repo.ExistsDuplicate(ctx, slot)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check schedule conflicts")
		}
		if dup {
			return nil, appErrors.WithDetails(appErrors.ErrConflict, map[string]interface{}{
				"course_id":  courseID,
				"subject_id": slot.SubjectID,
				"day":        int(slot.Day),
				"message":    fmt.Sprintf("course %s already has this subject at that time", course.GradeLabel),
			})
		}
	}

	if err := s.repo.Create(ctx, &slot); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create schedule slot")
	}
	return &slot, nil
}

// Delete removes a slot from a course the actor administers.
func (s *ScheduleService) Delete(ctx context.Context, actor models.Actor, id string) error {
	slot, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "schedule slot not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedule slot")
	}
	course, err := s.loadCourse(ctx, slot.CourseID)
	if err != nil {
		return err
	}
	if _, err := s.authorize(ctx, actor, course.InstitutionID); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "schedule slot not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete schedule slot")
	}
	return nil
}

func (s *ScheduleService) loadCourse(ctx context.Context, id string) (*models.Course, error) {
	course, err := s.courses.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	return course, nil
}

func (s *ScheduleService) authorize(ctx context.Context, actor models.Actor, institutionID string) (*models.Institution, error) {
	inst, err := s.institutions.FindByID(ctx, institutionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load institution")
	}
	if actor.IsAdmin() {
		return inst, nil
	}
	ok, err := s.institutions.IsAdministeredBy(ctx, institutionID, actor.UserID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check institution administrator")
	}
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "caller does not administer this institution")
	}
	return inst, nil
}

func trimmed(v *string) *string {
	if v == nil {
		return nil
	}
	t := strings.TrimSpace(*v)
	if t == "" {
		return nil
	}
	return &t
}
