package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/matrischol-api/internal/models"
)

// StaffRepository reads institution administrator and teacher profiles.
type StaffRepository struct {
	db *sqlx.DB
}

// NewStaffRepository constructs the repository.
func NewStaffRepository(db *sqlx.DB) *StaffRepository {
	return &StaffRepository{db: db}
}

// FindByUserID returns the staff profile owned by a user.
func (r *StaffRepository) FindByUserID(ctx context.Context, userID string) (*models.Staff, error) {
	const query = `SELECT id, user_id, position, created_at FROM staff WHERE user_id = $1`
	var s models.Staff
	if err := r.db.GetContext(ctx, &s, query, userID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find staff by user: %w", err)
	}
	return &s, nil
}

// FindByID returns a staff profile by id.
func (r *StaffRepository) FindByID(ctx context.Context, id string) (*models.Staff, error) {
	const query = `SELECT id, user_id, position, created_at FROM staff WHERE id = $1`
	var s models.Staff
	if err := r.db.GetContext(ctx, &s, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find staff: %w", err)
	}
	return &s, nil
}

// FindTeacher returns a teacher profile by id.
func (r *StaffRepository) FindTeacher(ctx context.Context, id string) (*models.Teacher, error) {
	const query = `SELECT id, user_id, institution_id, specialty, created_at FROM teachers WHERE id = $1`
	var t models.Teacher
	if err := r.db.GetContext(ctx, &t, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find teacher: %w", err)
	}
	return &t, nil
}
