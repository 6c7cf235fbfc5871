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

const institutionColumns = `i.id, i.name, i.type, i.dane_code, i.department, i.municipality, i.address, i.phone, i.email, i.admin_id, i.allow_duplicate_subject_slots, i.created_at, i.updated_at`

const insertInstitutionQuery = `INSERT INTO institutions (id, name, type, dane_code, department, municipality, address, phone, email, admin_id, allow_duplicate_subject_slots, created_at, updated_at)
VALUES (:id, :name, :type, :dane_code, :department, :municipality, :address, :phone, :email, :admin_id, :allow_duplicate_subject_slots, :created_at, :updated_at)`

// InstitutionRepository persists institutions.
type InstitutionRepository struct {
	db *sqlx.DB
}

// NewInstitutionRepository constructs the repository.
func NewInstitutionRepository(db *sqlx.DB) *InstitutionRepository {
	return &InstitutionRepository{db: db}
}

func prepareInstitution(inst *models.Institution) {
	if inst.ID == "" {
		inst.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	inst.CreatedAt, inst.UpdatedAt = now, now
}

// Create inserts an institution.
func (r *InstitutionRepository) Create(ctx context.Context, inst *models.Institution) error {
	prepareInstitution(inst)
	if _, err := r.db.NamedExecContext(ctx, insertInstitutionQuery, inst); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("create institution: %w", ErrDuplicate)
		}
		return fmt.Errorf("create institution: %w", err)
	}
	return nil
}

// FindByID returns an institution by id.
func (r *InstitutionRepository) FindByID(ctx context.Context, id string) (*models.Institution, error) {
	query := `SELECT ` + institutionColumns + ` FROM institutions i WHERE i.id = $1`
	var inst models.Institution
	if err := r.db.GetContext(ctx, &inst, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find institution: %w", err)
	}
	return &inst, nil
}

// IsAdministeredBy reports whether the user owns the staff profile administering the institution.
func (r *InstitutionRepository) IsAdministeredBy(ctx context.Context, institutionID, userID string) (bool, error) {
	const query = `SELECT 1 FROM institutions i JOIN staff s ON s.id = i.admin_id WHERE i.id = $1 AND s.user_id = $2`
	var one int
	if err := r.db.GetContext(ctx, &one, query, institutionID, userID); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check institution admin: %w", err)
	}
	return true, nil
}

// List searches institutions by name or municipality.
func (r *InstitutionRepository) List(ctx context.Context, filter models.InstitutionFilter) ([]models.Institution, int, error) {
	base := `FROM institutions i`
	var conditions []string
	var args []interface{}

	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(i.name) LIKE $%d OR i.dane_code = $%d)", len(args)+1, len(args)+2))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%", filter.Search)
	}
	if filter.Municipality != "" {
		conditions = append(conditions, fmt.Sprintf("LOWER(i.municipality) = $%d", len(args)+1))
		args = append(args, strings.ToLower(filter.Municipality))
	}
	if filter.AdminID != "" {
		conditions = append(conditions, fmt.Sprintf("i.admin_id = $%d", len(args)+1))
		args = append(args, filter.AdminID)
	}
	if len(conditions) > 0 {
		base += " WHERE " + strings.Join(conditions, " AND ")
	}

	page, size := models.NormalizePage(filter.Page, filter.PageSize)
	query := fmt.Sprintf("SELECT %s %s ORDER BY i.name ASC LIMIT %d OFFSET %d", institutionColumns, base, size, (page-1)*size)

	var items []models.Institution
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list institutions: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+base, args...); err != nil {
		return nil, 0, fmt.Errorf("count institutions: %w", err)
	}
	return items, total, nil
}

// Update stores editable institution fields.
func (r *InstitutionRepository) Update(ctx context.Context, inst *models.Institution) error {
	inst.UpdatedAt = time.Now().UTC()
	const query = `UPDATE institutions SET name = :name, type = :type, department = :department, municipality = :municipality,
address = :address, phone = :phone, email = :email, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, inst); err != nil {
		return fmt.Errorf("update institution: %w", err)
	}
	return nil
}

// SetDuplicateSlots toggles whether duplicate subject slots are allowed.
func (r *InstitutionRepository) SetDuplicateSlots(ctx context.Context, id string, allow bool) error {
	const query = `UPDATE institutions SET allow_duplicate_subject_slots = $2, updated_at = $3 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, allow, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("toggle duplicate slots: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
