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

const documentColumns = `id, student_id, enrollment_id, civil_registry, guardian_id, student_id_doc, vaccination_card, address_proof,
student_photo, visa_permit, medical_certificate, school_certificate, created_at, updated_at`

// DocumentRepository persists document bundles.
type DocumentRepository struct {
	db *sqlx.DB
}

// NewDocumentRepository constructs the repository.
func NewDocumentRepository(db *sqlx.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

// FindByID returns a bundle by id.
func (r *DocumentRepository) FindByID(ctx context.Context, id string) (*models.DocumentBundle, error) {
	query := `SELECT ` + documentColumns + ` FROM document_bundles WHERE id = $1`
	var b models.DocumentBundle
	if err := r.db.GetContext(ctx, &b, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find document bundle: %w", err)
	}
	return &b, nil
}

// ListForStudent unions the bundles attached to the student and to the student's most recent enrollment.
func (r *DocumentRepository) ListForStudent(ctx context.Context, studentID string) ([]models.DocumentBundle, error) {
	query := `SELECT ` + documentColumns + ` FROM document_bundles
WHERE student_id = $1
   OR enrollment_id = (SELECT id FROM enrollments WHERE student_id = $1 ORDER BY registered_at DESC LIMIT 1)
ORDER BY created_at`
	var bundles []models.DocumentBundle
	if err := r.db.SelectContext(ctx, &bundles, query, studentID); err != nil {
		return nil, fmt.Errorf("list student documents: %w", err)
	}
	return bundles, nil
}

// SetSlot writes value into the slot of the student's own bundle, creating the bundle when absent.
func (r *DocumentRepository) SetSlot(ctx context.Context, studentID string, slot models.DocumentSlot, value string) (bundle *models.DocumentBundle, err error) {
	if _, ok := models.ParseDocumentSlot(string(slot)); !ok {
		return nil, fmt.Errorf("unknown document slot %q", slot)
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin set document slot: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	var id string
	err = tx.GetContext(ctx, &id, `SELECT id FROM document_bundles WHERE student_id = $1 ORDER BY created_at DESC LIMIT 1 FOR UPDATE`, studentID)
	switch {
	case err == sql.ErrNoRows:
		id = uuid.NewString()
		if _, err = tx.ExecContext(ctx, `INSERT INTO document_bundles (id, student_id, created_at, updated_at) VALUES ($1, $2, $3, $3)`, id, studentID, now); err != nil {
			return nil, fmt.Errorf("create document bundle: %w", err)
		}
	case err != nil:
		return nil, fmt.Errorf("lock document bundle: %w", err)
	}

	// slot was validated above, so the column name is one of a fixed set
	update := fmt.Sprintf(`UPDATE document_bundles SET %s = $2, updated_at = $3 WHERE id = $1`, slot.Column())
	if _, err = tx.ExecContext(ctx, update, id, value, now); err != nil {
		return nil, fmt.Errorf("set document slot: %w", err)
	}

	var b models.DocumentBundle
	if err = tx.GetContext(ctx, &b, `SELECT `+documentColumns+` FROM document_bundles WHERE id = $1`, id); err != nil {
		return nil, fmt.Errorf("reload document bundle: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit document slot: %w", err)
	}
	return &b, nil
}
