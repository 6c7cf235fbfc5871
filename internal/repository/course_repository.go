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

const courseColumns = `id, institution_id, grade_label, enrolled_count, available_seats, created_at, updated_at`

// CourseRepository persists courses and their seat counters.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository constructs the repository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

// FindByID returns a course by id.
func (r *CourseRepository) FindByID(ctx context.Context, id string) (*models.Course, error) {
	query := `SELECT ` + courseColumns + ` FROM courses WHERE id = $1`
	var c models.Course
	if err := r.db.GetContext(ctx, &c, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find course: %w", err)
	}
	return &c, nil
}

// ListByInstitution returns every course of an institution ordered by label.
func (r *CourseRepository) ListByInstitution(ctx context.Context, institutionID string) ([]models.Course, error) {
	query := `SELECT ` + courseColumns + ` FROM courses WHERE institution_id = $1 ORDER BY grade_label`
	var courses []models.Course
	if err := r.db.SelectContext(ctx, &courses, query, institutionID); err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}
	return courses, nil
}

// Create inserts a single course. An existing (institution, label) pair yields ErrDuplicate.
func (r *CourseRepository) Create(ctx context.Context, c *models.Course) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	c.CreatedAt, c.UpdatedAt = now, now
	const query = `INSERT INTO courses (id, institution_id, grade_label, enrolled_count, available_seats, created_at, updated_at)
VALUES (:id, :institution_id, :grade_label, :enrolled_count, :available_seats, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, c); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("create course: %w", ErrDuplicate)
		}
		return fmt.Errorf("create course: %w", err)
	}
	return nil
}

// UpdateSeats resets the available seat counter.
func (r *CourseRepository) UpdateSeats(ctx context.Context, id string, seats int) error {
	const query = `UPDATE courses SET available_seats = $2, updated_at = $3 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, seats, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update course seats: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Provision creates one course per label, skipping labels the institution already has.
func (r *CourseRepository) Provision(ctx context.Context, institutionID string, labels []string, seats int) (result models.ProvisionResult, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return result, fmt.Errorf("begin provision courses: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if result, err = provisionCourses(ctx, tx, institutionID, labels, seats); err != nil {
		return result, err
	}
	if err = tx.Commit(); err != nil {
		return result, fmt.Errorf("commit provision courses: %w", err)
	}
	return result, nil
}

func provisionCourses(ctx context.Context, tx *sqlx.Tx, institutionID string, labels []string, seats int) (models.ProvisionResult, error) {
	const query = `INSERT INTO courses (id, institution_id, grade_label, enrolled_count, available_seats, created_at, updated_at)
VALUES ($1, $2, $3, 0, $4, $5, $5) ON CONFLICT (institution_id, grade_label) DO NOTHING`
	var result models.ProvisionResult
	now := time.Now().UTC()
	for _, label := range labels {
		res, err := tx.ExecContext(ctx, query, uuid.NewString(), institutionID, label, seats, now)
		if err != nil {
			return result, fmt.Errorf("provision course %s: %w", label, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return result, fmt.Errorf("provision course %s rows: %w", label, err)
		}
		if n == 0 {
			result.Skipped++
		} else {
			result.Created++
		}
	}
	return result, nil
}

// DeleteByInstitution removes every course of the institution and returns how many were deleted.
func (r *CourseRepository) DeleteByInstitution(ctx context.Context, institutionID string) (int, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM courses WHERE institution_id = $1`, institutionID)
	if err != nil {
		return 0, fmt.Errorf("clear courses: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("clear courses rows: %w", err)
	}
	return int(n), nil
}

// Roster lists every course of the institution with its active students.
func (r *CourseRepository) Roster(ctx context.Context, institutionID string) ([]models.RosterRow, error) {
	const query = `SELECT c.grade_label AS course_label, c.available_seats,
       NULLIF(TRIM(s.first_name || ' ' || s.last_name), '') AS student_name, s.document_number, e.registered_at
FROM courses c
LEFT JOIN enrollments e ON e.course_id = c.id AND e.status = $2
LEFT JOIN students s ON s.id = e.student_id
WHERE c.institution_id = $1
ORDER BY c.grade_label, s.last_name, s.first_name`
	var rows []models.RosterRow
	if err := r.db.SelectContext(ctx, &rows, query, institutionID, models.EnrollmentStatusActive); err != nil {
		return nil, fmt.Errorf("course roster: %w", err)
	}
	return rows, nil
}
