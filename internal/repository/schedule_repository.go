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

// ScheduleRepository persists course timetable slots.
type ScheduleRepository struct {
	db *sqlx.DB
}

// NewScheduleRepository constructs the repository.
func NewScheduleRepository(db *sqlx.DB) *ScheduleRepository {
	return &ScheduleRepository{db: db}
}

// FindByID returns a slot by id.
func (r *ScheduleRepository) FindByID(ctx context.Context, id string) (*models.ScheduleSlot, error) {
	const query = `SELECT id, course_id, subject_id, teacher_id, day, starts_at, ends_at, room, created_at FROM schedule_slots WHERE id = $1`
	var slot models.ScheduleSlot
	if err := r.db.GetContext(ctx, &slot, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find schedule slot: %w", err)
	}
	return &slot, nil
}

// ListByCourse returns the timetable of a course ordered by day and start time.
func (r *ScheduleRepository) ListByCourse(ctx context.Context, courseID string) ([]models.ScheduleSlotDetail, error) {
	const query = `SELECT ss.id, ss.course_id, ss.subject_id, ss.teacher_id, ss.day, ss.starts_at, ss.ends_at, ss.room, ss.created_at,
       sub.name AS subject_name
FROM schedule_slots ss
JOIN subjects sub ON sub.id = ss.subject_id
WHERE ss.course_id = $1
ORDER BY ss.day, ss.starts_at NULLS LAST`
	var slots []models.ScheduleSlotDetail
	if err := r.db.SelectContext(ctx, &slots, query, courseID); err != nil {
		return nil, fmt.Errorf("list schedule slots: %w", err)
	}
	return slots, nil
}

// ExistsDuplicate reports whether the course already has the subject at the same day and start time.
func (r *ScheduleRepository) ExistsDuplicate(ctx context.Context, slot models.ScheduleSlot) (bool, error) {
	const query = `SELECT 1 FROM schedule_slots
WHERE course_id = $1 AND day = $2 AND subject_id = $3 AND starts_at IS NOT DISTINCT FROM $4 LIMIT 1`
	var one int
	if err := r.db.GetContext(ctx, &one, query, slot.CourseID, slot.Day, slot.SubjectID, slot.StartsAt); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check duplicate slot: %w", err)
	}
	return true, nil
}

// Create inserts a slot.
func (r *ScheduleRepository) Create(ctx context.Context, slot *models.ScheduleSlot) error {
	if slot.ID == "" {
		slot.ID = uuid.NewString()
	}
	slot.CreatedAt = time.Now().UTC()
	const query = `INSERT INTO schedule_slots (id, course_id, subject_id, teacher_id, day, starts_at, ends_at, room, created_at)
VALUES (:id, :course_id, :subject_id, :teacher_id, :day, :starts_at, :ends_at, :room, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, slot); err != nil {
		return fmt.Errorf("create schedule slot: %w", err)
	}
	return nil
}

// Delete removes a slot.
func (r *ScheduleRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM schedule_slots WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete schedule slot: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
