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

const courseRequestColumns = `id, institution_id, mode, sections, seats_per_course, start_grade, end_grade, submitted_by, status,
reviewed_by, reviewer_comments, created_count, skipped_count, created_at, updated_at`

// CourseRequestRepository persists course bulk-creation requests.
type CourseRequestRepository struct {
	db *sqlx.DB
}

// NewCourseRequestRepository constructs the repository.
func NewCourseRequestRepository(db *sqlx.DB) *CourseRequestRepository {
	return &CourseRequestRepository{db: db}
}

// Create inserts a request.
func (r *CourseRequestRepository) Create(ctx context.Context, req *models.CourseRequest) error {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	req.CreatedAt, req.UpdatedAt = now, now
	const query = `INSERT INTO course_requests (id, institution_id, mode, sections, seats_per_course, start_grade, end_grade, submitted_by,
status, reviewed_by, reviewer_comments, created_count, skipped_count, created_at, updated_at)
VALUES (:id, :institution_id, :mode, :sections, :seats_per_course, :start_grade, :end_grade, :submitted_by,
:status, :reviewed_by, :reviewer_comments, :created_count, :skipped_count, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, req); err != nil {
		return fmt.Errorf("create course request: %w", err)
	}
	return nil
}

// FindByID returns a request by id.
func (r *CourseRequestRepository) FindByID(ctx context.Context, id string) (*models.CourseRequest, error) {
	query := `SELECT ` + courseRequestColumns + ` FROM course_requests WHERE id = $1`
	var req models.CourseRequest
	if err := r.db.GetContext(ctx, &req, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find course request: %w", err)
	}
	return &req, nil
}

// List returns requests matching the filter, newest first.
func (r *CourseRequestRepository) List(ctx context.Context, filter models.ApprovalFilter) ([]models.CourseRequest, int, error) {
	base, args := approvalWhere("course_requests", filter)
	page, size := models.NormalizePage(filter.Page, filter.PageSize)
	query := fmt.Sprintf("SELECT %s %s ORDER BY created_at DESC LIMIT %d OFFSET %d", courseRequestColumns, base, size, (page-1)*size)

	var items []models.CourseRequest
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list course requests: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+base, args...); err != nil {
		return nil, 0, fmt.Errorf("count course requests: %w", err)
	}
	return items, total, nil
}

// Review records a reject or request_info decision on a pending request.
func (r *CourseRequestRepository) Review(ctx context.Context, id string, status models.ApprovalStatus, comments, reviewerID string) (*models.CourseRequest, error) {
	query := `UPDATE course_requests SET status = $2, reviewer_comments = $3, reviewed_by = $4, updated_at = $5
WHERE id = $1 AND status = 'pending' RETURNING ` + courseRequestColumns
	var req models.CourseRequest
	err := r.db.GetContext(ctx, &req, query, id, status, comments, reviewerID, time.Now().UTC())
	if err == nil {
		return &req, nil
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("review course request: %w", err)
	}
	if _, findErr := r.FindByID(ctx, id); findErr != nil {
		return nil, findErr
	}
	return nil, ErrNotPending
}

// Approve provisions the requested courses and records the counts in one transaction.
func (r *CourseRequestRepository) Approve(ctx context.Context, id, comments, reviewerID string) (req *models.CourseRequest, result models.ProvisionResult, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, result, fmt.Errorf("begin approve course request: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var locked models.CourseRequest
	if err = tx.GetContext(ctx, &locked, `SELECT `+courseRequestColumns+` FROM course_requests WHERE id = $1 FOR UPDATE`, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, result, err
		}
		return nil, result, fmt.Errorf("lock course request: %w", err)
	}
	if locked.Status != models.ApprovalPending {
		err = ErrNotPending
		return nil, result, err
	}

	cfg := locked.ProvisionConfig()
	labels, err := cfg.Labels()
	if err != nil {
		return nil, result, fmt.Errorf("resolve course labels: %w", err)
	}
	if result, err = provisionCourses(ctx, tx, locked.InstitutionID, labels, cfg.Seats()); err != nil {
		return nil, result, err
	}

	query := `UPDATE course_requests SET status = $2, reviewer_comments = $3, reviewed_by = $4, created_count = $5, skipped_count = $6, updated_at = $7
WHERE id = $1 RETURNING ` + courseRequestColumns
	var approved models.CourseRequest
	if err = tx.GetContext(ctx, &approved, query, id, models.ApprovalApproved, comments, reviewerID, result.Created, result.Skipped, time.Now().UTC()); err != nil {
		return nil, result, fmt.Errorf("approve course request: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, result, fmt.Errorf("commit course approval: %w", err)
	}
	return &approved, result, nil
}

// FindContext loads the read model used to announce a review to the submitter.
func (r *CourseRequestRepository) FindContext(ctx context.Context, id string) (*models.ApprovalContext, error) {
	const query = `SELECT r.id AS request_id, r.status, i.name || ' (' || r.mode || ')' AS subject,
       u.id AS submitter_user_id, TRIM(u.first_name || ' ' || u.last_name) AS submitter_name, u.email AS submitter_email,
       r.reviewer_comments
FROM course_requests r
JOIN users u ON u.id = r.submitted_by
JOIN institutions i ON i.id = r.institution_id
WHERE r.id = $1`
	var ac models.ApprovalContext
	if err := r.db.GetContext(ctx, &ac, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("load course request context: %w", err)
	}
	return &ac, nil
}
