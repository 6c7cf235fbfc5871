package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/matrischol-api/internal/models"
)

// SubjectRepository persists the global subject pool.
type SubjectRepository struct {
	db *sqlx.DB
}

// NewSubjectRepository constructs the repository.
func NewSubjectRepository(db *sqlx.DB) *SubjectRepository {
	return &SubjectRepository{db: db}
}

// FindByID returns a subject by id.
func (r *SubjectRepository) FindByID(ctx context.Context, id string) (*models.Subject, error) {
	const query = `SELECT id, name, created_at FROM subjects WHERE id = $1`
	var s models.Subject
	if err := r.db.GetContext(ctx, &s, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find subject: %w", err)
	}
	return &s, nil
}

// FindByName looks a subject up case-insensitively.
func (r *SubjectRepository) FindByName(ctx context.Context, name string) (*models.Subject, error) {
	const query = `SELECT id, name, created_at FROM subjects WHERE LOWER(name) = LOWER($1)`
	var s models.Subject
	if err := r.db.GetContext(ctx, &s, query, strings.TrimSpace(name)); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find subject by name: %w", err)
	}
	return &s, nil
}

// List returns subjects optionally filtered by a name fragment.
func (r *SubjectRepository) List(ctx context.Context, search string) ([]models.Subject, error) {
	query := `SELECT id, name, created_at FROM subjects`
	var args []interface{}
	if search != "" {
		query += ` WHERE LOWER(name) LIKE $1`
		args = append(args, "%"+strings.ToLower(search)+"%")
	}
	query += ` ORDER BY name`
	var subjects []models.Subject
	if err := r.db.SelectContext(ctx, &subjects, query, args...); err != nil {
		return nil, fmt.Errorf("list subjects: %w", err)
	}
	return subjects, nil
}

// Create inserts a subject. A case-insensitive name clash yields ErrDuplicate.
func (r *SubjectRepository) Create(ctx context.Context, s *models.Subject) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	s.CreatedAt = time.Now().UTC()
	const query = `INSERT INTO subjects (id, name, created_at) VALUES (:id, :name, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, s); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("create subject: %w", ErrDuplicate)
		}
		return fmt.Errorf("create subject: %w", err)
	}
	return nil
}
