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

const institutionRequestColumns = `id, name, type, dane_code, department, municipality, address, phone, email, admin_id, institution_id,
submitted_by, status, reviewed_by, reviewer_comments, created_at, updated_at`

// InstitutionRequestRepository persists institution-creation requests.
type InstitutionRequestRepository struct {
	db *sqlx.DB
}

// NewInstitutionRequestRepository constructs the repository.
func NewInstitutionRequestRepository(db *sqlx.DB) *InstitutionRequestRepository {
	return &InstitutionRequestRepository{db: db}
}

// Create inserts a request.
func (r *InstitutionRequestRepository) Create(ctx context.Context, req *models.InstitutionRequest) error {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	req.CreatedAt, req.UpdatedAt = now, now
	const query = `INSERT INTO institution_requests (id, name, type, dane_code, department, municipality, address, phone, email, admin_id,
institution_id, submitted_by, status, reviewed_by, reviewer_comments, created_at, updated_at)
VALUES (:id, :name, :type, :dane_code, :department, :municipality, :address, :phone, :email, :admin_id,
:institution_id, :submitted_by, :status, :reviewed_by, :reviewer_comments, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, req); err != nil {
		return fmt.Errorf("create institution request: %w", err)
	}
	return nil
}

// FindByID returns a request by id.
func (r *InstitutionRequestRepository) FindByID(ctx context.Context, id string) (*models.InstitutionRequest, error) {
	query := `SELECT ` + institutionRequestColumns + ` FROM institution_requests WHERE id = $1`
	var req models.InstitutionRequest
	if err := r.db.GetContext(ctx, &req, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find institution request: %w", err)
	}
	return &req, nil
}

// List returns requests matching the filter, newest first.
func (r *InstitutionRequestRepository) List(ctx context.Context, filter models.ApprovalFilter) ([]models.InstitutionRequest, int, error) {
	base, args := approvalWhere("institution_requests", filter)
	page, size := models.NormalizePage(filter.Page, filter.PageSize)
	query := fmt.Sprintf("SELECT %s %s ORDER BY created_at DESC LIMIT %d OFFSET %d", institutionRequestColumns, base, size, (page-1)*size)

	var items []models.InstitutionRequest
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list institution requests: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+base, args...); err != nil {
		return nil, 0, fmt.Errorf("count institution requests: %w", err)
	}
	return items, total, nil
}

// Review records a reject or request_info decision on a pending request.
func (r *InstitutionRequestRepository) Review(ctx context.Context, id string, status models.ApprovalStatus, comments, reviewerID string) (*models.InstitutionRequest, error) {
	query := `UPDATE institution_requests SET status = $2, reviewer_comments = $3, reviewed_by = $4, updated_at = $5
WHERE id = $1 AND status = 'pending' RETURNING ` + institutionRequestColumns
	var req models.InstitutionRequest
	err := r.db.GetContext(ctx, &req, query, id, status, comments, reviewerID, time.Now().UTC())
	if err == nil {
		return &req, nil
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("review institution request: %w", err)
	}
	if _, findErr := r.FindByID(ctx, id); findErr != nil {
		return nil, findErr
	}
	return nil, ErrNotPending
}

// Approve materializes the institution and marks the request approved in one transaction.
func (r *InstitutionRequestRepository) Approve(ctx context.Context, id, comments, reviewerID string) (req *models.InstitutionRequest, inst *models.Institution, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("begin approve institution request: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var locked models.InstitutionRequest
	if err = tx.GetContext(ctx, &locked, `SELECT `+institutionRequestColumns+` FROM institution_requests WHERE id = $1 FOR UPDATE`, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil, err
		}
		return nil, nil, fmt.Errorf("lock institution request: %w", err)
	}
	if locked.Status != models.ApprovalPending {
		err = ErrNotPending
		return nil, nil, err
	}

	institution := locked.ToInstitution()
	prepareInstitution(&institution)
	if _, err = tx.NamedExecContext(ctx, insertInstitutionQuery, institution); err != nil {
		if isUniqueViolation(err) {
			err = ErrDuplicate
			return nil, nil, err
		}
		return nil, nil, fmt.Errorf("materialize institution: %w", err)
	}

	query := `UPDATE institution_requests SET status = $2, institution_id = $3, reviewer_comments = $4, reviewed_by = $5, updated_at = $6
WHERE id = $1 RETURNING ` + institutionRequestColumns
	var approved models.InstitutionRequest
	if err = tx.GetContext(ctx, &approved, query, id, models.ApprovalApproved, institution.ID, comments, reviewerID, time.Now().UTC()); err != nil {
		return nil, nil, fmt.Errorf("approve institution request: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("commit institution approval: %w", err)
	}
	return &approved, &institution, nil
}

// FindContext loads the read model used to announce a review to the submitter.
func (r *InstitutionRequestRepository) FindContext(ctx context.Context, id string) (*models.ApprovalContext, error) {
	const query = `SELECT r.id AS request_id, r.status, r.name AS subject,
       u.id AS submitter_user_id, TRIM(u.first_name || ' ' || u.last_name) AS submitter_name, u.email AS submitter_email,
       r.reviewer_comments
FROM institution_requests r
JOIN users u ON u.id = r.submitted_by
WHERE r.id = $1`
	var ac models.ApprovalContext
	if err := r.db.GetContext(ctx, &ac, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("load institution request context: %w", err)
	}
	return &ac, nil
}

// approvalWhere builds the FROM/WHERE clause shared by approval request listings.
func approvalWhere(table string, filter models.ApprovalFilter) (string, []interface{}) {
	base := "FROM " + table
	var conditions []string
	var args []interface{}
	if filter.SubmittedBy != "" {
		conditions = append(conditions, fmt.Sprintf("submitted_by = $%d", len(args)+1))
		args = append(args, filter.SubmittedBy)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if len(conditions) > 0 {
		base += " WHERE " + strings.Join(conditions, " AND ")
	}
	return base, args
}
