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

const studentColumns = `id, user_id, guardian_id, first_name, last_name, document_type, document_number, birth_date, phone, photo_path, created_at, updated_at`

// StudentRepository handles persistence of students.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs the repository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// FindByID returns a student by id.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.Student, error) {
	query := `SELECT ` + studentColumns + ` FROM students WHERE id = $1`
	var s models.Student
	if err := r.db.GetContext(ctx, &s, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find student: %w", err)
	}
	return &s, nil
}

// ListByGuardian returns every student owned by the guardian.
func (r *StudentRepository) ListByGuardian(ctx context.Context, guardianID string) ([]models.Student, error) {
	query := `SELECT ` + studentColumns + ` FROM students WHERE guardian_id = $1 ORDER BY first_name, last_name`
	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, guardianID); err != nil {
		return nil, fmt.Errorf("list guardian students: %w", err)
	}
	return students, nil
}

// Create persists a new student.
func (r *StudentRepository) Create(ctx context.Context, s *models.Student) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	s.CreatedAt, s.UpdatedAt = now, now
	const query = `INSERT INTO students (id, user_id, guardian_id, first_name, last_name, document_type, document_number, birth_date, phone, photo_path, created_at, updated_at)
VALUES (:id, :user_id, :guardian_id, :first_name, :last_name, :document_type, :document_number, :birth_date, :phone, :photo_path, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, s); err != nil {
		return fmt.Errorf("create student: %w", err)
	}
	return nil
}

// UpdatePhoto stores the normalized photo path.
func (r *StudentRepository) UpdatePhoto(ctx context.Context, id, path string) error {
	const query = `UPDATE students SET photo_path = $2, updated_at = $3 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, path, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update student photo: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
