package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/matrischol-api/internal/models"
)

const guardianColumns = `g.id, g.user_id, g.document_number, g.phone, g.address, g.latitude, g.longitude, g.location_accuracy, g.created_at, g.updated_at`

// GuardianRepository persists guardian profiles.
type GuardianRepository struct {
	db *sqlx.DB
}

// NewGuardianRepository constructs the repository.
func NewGuardianRepository(db *sqlx.DB) *GuardianRepository {
	return &GuardianRepository{db: db}
}

// FindByID returns a guardian by id.
func (r *GuardianRepository) FindByID(ctx context.Context, id string) (*models.Guardian, error) {
	query := `SELECT ` + guardianColumns + ` FROM guardians g WHERE g.id = $1`
	var g models.Guardian
	if err := r.db.GetContext(ctx, &g, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find guardian: %w", err)
	}
	return &g, nil
}

// FindByUserID returns the guardian profile owned by a user.
func (r *GuardianRepository) FindByUserID(ctx context.Context, userID string) (*models.Guardian, error) {
	query := `SELECT ` + guardianColumns + ` FROM guardians g WHERE g.user_id = $1`
	var g models.Guardian
	if err := r.db.GetContext(ctx, &g, query, userID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find guardian by user: %w", err)
	}
	return &g, nil
}

// FindProfileByUserID joins the guardian with its user identity.
func (r *GuardianRepository) FindProfileByUserID(ctx context.Context, userID string) (*models.GuardianProfile, error) {
	query := `SELECT ` + guardianColumns + `, u.email, u.first_name, u.last_name
FROM guardians g JOIN users u ON u.id = g.user_id WHERE g.user_id = $1`
	var p models.GuardianProfile
	if err := r.db.GetContext(ctx, &p, query, userID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find guardian profile: %w", err)
	}
	return &p, nil
}

// Update stores contact, address and coordinates.
func (r *GuardianRepository) Update(ctx context.Context, g *models.Guardian) error {
	g.UpdatedAt = time.Now().UTC()
	const query = `UPDATE guardians SET document_number = :document_number, phone = :phone, address = :address,
latitude = :latitude, longitude = :longitude, location_accuracy = :location_accuracy, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, g); err != nil {
		return fmt.Errorf("update guardian: %w", err)
	}
	return nil
}
