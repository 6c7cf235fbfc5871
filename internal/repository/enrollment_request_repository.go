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

const enrollmentRequestColumns = `r.id, r.guardian_id, r.student_id, r.institution_id, r.course_id, r.requested_grade, r.status,
r.observation, r.reviewed_by, r.created_at, r.updated_at, r.expires_at`

// appendObservationSQL appends $n to the observation column, newline separated.
func appendObservationSQL(param int) string {
	return fmt.Sprintf(`CASE WHEN $%[1]d = '' THEN observation WHEN observation = '' THEN $%[1]d ELSE observation || E'\n' || $%[1]d END`, param)
}

// noSeatsObservation keeps the reviewer's note after the automatic no-seats reason.
func noSeatsObservation(note string) string {
	if note = strings.TrimSpace(note); note != "" {
		return models.ObservationNoSeats + "\n" + note
	}
	return models.ObservationNoSeats
}

// CourseChooser picks one course among the candidates that still have seats.
type CourseChooser func(candidates []models.Course) models.Course

// AcceptParams describes an accept review.
type AcceptParams struct {
	RequestID  string
	ReviewerID string
	CourseID   string
	Note       string
	Choose     CourseChooser
}

// AcceptOutcome reports what the accept transaction did. NoSeats means the request was rejected instead.
type AcceptOutcome struct {
	Request    *models.EnrollmentRequest
	Enrollment *models.Enrollment
	Course     *models.Course
	NoSeats    bool
}

// EnrollmentRequestRepository persists enrollment requests and runs the accept transaction.
type EnrollmentRequestRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRequestRepository constructs the repository.
func NewEnrollmentRequestRepository(db *sqlx.DB) *EnrollmentRequestRepository {
	return &EnrollmentRequestRepository{db: db}
}

// Create inserts a request. The partial unique index on pending requests surfaces as ErrDuplicate.
func (r *EnrollmentRequestRepository) Create(ctx context.Context, req *models.EnrollmentRequest) error {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	req.CreatedAt, req.UpdatedAt = now, now
	const query = `INSERT INTO enrollment_requests (id, guardian_id, student_id, institution_id, course_id, requested_grade, status,
observation, reviewed_by, created_at, updated_at, expires_at)
VALUES (:id, :guardian_id, :student_id, :institution_id, :course_id, :requested_grade, :status,
:observation, :reviewed_by, :created_at, :updated_at, :expires_at)`
	if _, err := r.db.NamedExecContext(ctx, query, req); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("create enrollment request: %w", err)
	}
	return nil
}

// HasPending reports whether a pending request already exists for the pair.
func (r *EnrollmentRequestRepository) HasPending(ctx context.Context, studentID, institutionID string) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM enrollment_requests WHERE student_id = $1 AND institution_id = $2 AND status = 'pending')`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, studentID, institutionID); err != nil {
		return false, fmt.Errorf("check pending enrollment request: %w", err)
	}
	return exists, nil
}

// FindByID returns a request by id.
func (r *EnrollmentRequestRepository) FindByID(ctx context.Context, id string) (*models.EnrollmentRequest, error) {
	query := `SELECT ` + enrollmentRequestColumns + ` FROM enrollment_requests r WHERE r.id = $1`
	var req models.EnrollmentRequest
	if err := r.db.GetContext(ctx, &req, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find enrollment request: %w", err)
	}
	return &req, nil
}

// List returns requests matching the filter, newest first, with the total count.
func (r *EnrollmentRequestRepository) List(ctx context.Context, filter models.EnrollmentRequestFilter) ([]models.EnrollmentRequest, int, error) {
	base := `FROM enrollment_requests r`
	var conditions []string
	var args []interface{}

	if filter.AdminUserID != "" {
		base += ` JOIN institutions i ON i.id = r.institution_id JOIN staff st ON st.id = i.admin_id`
		conditions = append(conditions, fmt.Sprintf("st.user_id = $%d", len(args)+1))
		args = append(args, filter.AdminUserID)
	}
	if filter.GuardianID != "" {
		conditions = append(conditions, fmt.Sprintf("r.guardian_id = $%d", len(args)+1))
		args = append(args, filter.GuardianID)
	}
	if filter.InstitutionID != "" {
		conditions = append(conditions, fmt.Sprintf("r.institution_id = $%d", len(args)+1))
		args = append(args, filter.InstitutionID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("r.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if len(conditions) > 0 {
		base += " WHERE " + strings.Join(conditions, " AND ")
	}

	page, size := models.NormalizePage(filter.Page, filter.PageSize)
	query := fmt.Sprintf("SELECT %s %s ORDER BY r.created_at DESC LIMIT %d OFFSET %d", enrollmentRequestColumns, base, size, (page-1)*size)

	var items []models.EnrollmentRequest
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list enrollment requests: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+base, args...); err != nil {
		return nil, 0, fmt.Errorf("count enrollment requests: %w", err)
	}
	return items, total, nil
}

// Transition moves a pending request to status, appending note to its observation.
// Passing RequestStatusPending keeps the request open and only records the note.
func (r *EnrollmentRequestRepository) Transition(ctx context.Context, id string, status models.RequestStatus, note, reviewerID string) (*models.EnrollmentRequest, error) {
	query := `UPDATE enrollment_requests SET status = $2, observation = ` + appendObservationSQL(3) + `,
reviewed_by = COALESCE(NULLIF($4, ''), reviewed_by), updated_at = $5
WHERE id = $1 AND status = 'pending'
RETURNING id, guardian_id, student_id, institution_id, course_id, requested_grade, status, observation, reviewed_by, created_at, updated_at, expires_at`
	var req models.EnrollmentRequest
	err := r.db.GetContext(ctx, &req, query, id, status, note, reviewerID, time.Now().UTC())
	if err == nil {
		return &req, nil
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("transition enrollment request: %w", err)
	}
	if _, findErr := r.FindByID(ctx, id); findErr != nil {
		return nil, findErr
	}
	return nil, ErrNotPending
}

// Accept assigns a course, consumes one seat, and creates the enrollment in a single transaction.
// When no course has a seat the request is rejected in the same transaction.
func (r *EnrollmentRequestRepository) Accept(ctx context.Context, params AcceptParams) (outcome AcceptOutcome, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return outcome, fmt.Errorf("begin accept enrollment request: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var req models.EnrollmentRequest
	lockQuery := `SELECT ` + enrollmentRequestColumns + ` FROM enrollment_requests r WHERE r.id = $1 FOR UPDATE`
	if err = tx.GetContext(ctx, &req, lockQuery, params.RequestID); err != nil {
		if err == sql.ErrNoRows {
			return outcome, err
		}
		return outcome, fmt.Errorf("lock enrollment request: %w", err)
	}
	if !req.IsPending() {
		err = ErrNotPending
		return outcome, err
	}

	now := time.Now().UTC()
	course, err := r.pickCourse(ctx, tx, req, params)
	if err != nil {
		return outcome, err
	}
	if course != nil {
		res, execErr := tx.ExecContext(ctx, `UPDATE courses SET available_seats = available_seats - 1, enrolled_count = enrolled_count + 1, updated_at = $2
WHERE id = $1 AND available_seats > 0`, course.ID, now)
		if execErr != nil {
			err = fmt.Errorf("consume course seat: %w", execErr)
			return outcome, err
		}
		n, rowsErr := res.RowsAffected()
		if rowsErr != nil {
			err = fmt.Errorf("consume course seat rows: %w", rowsErr)
			return outcome, err
		}
		if n == 0 {
			course = nil
		}
	}

	if course == nil {
		rejectQuery := `UPDATE enrollment_requests SET status = $2, observation = ` + appendObservationSQL(3) + `,
reviewed_by = NULLIF($4, ''), updated_at = $5 WHERE id = $1
RETURNING id, guardian_id, student_id, institution_id, course_id, requested_grade, status, observation, reviewed_by, created_at, updated_at, expires_at`
		if err = tx.GetContext(ctx, &req, rejectQuery, req.ID, models.RequestStatusRejected, noSeatsObservation(params.Note), params.ReviewerID, now); err != nil {
			err = fmt.Errorf("reject enrollment request without seats: %w", err)
			return outcome, err
		}
		if err = tx.Commit(); err != nil {
			return outcome, fmt.Errorf("commit enrollment rejection: %w", err)
		}
		return AcceptOutcome{Request: &req, NoSeats: true}, nil
	}
	course.AvailableSeats--
	course.EnrolledCount++

	courseID := course.ID
	enrollment := models.Enrollment{
		ID:             uuid.NewString(),
		StudentID:      req.StudentID,
		InstitutionID:  req.InstitutionID,
		CourseID:       &courseID,
		RequestedGrade: req.RequestedGrade,
		Status:         models.EnrollmentStatusActive,
		Observation:    strings.TrimSpace(params.Note),
		RegisteredAt:   now,
	}
	const insertEnrollment = `INSERT INTO enrollments (id, student_id, institution_id, course_id, requested_grade, status, observation, registered_at)
VALUES (:id, :student_id, :institution_id, :course_id, :requested_grade, :status, :observation, :registered_at)`
	if _, err = tx.NamedExecContext(ctx, insertEnrollment, enrollment); err != nil {
		err = fmt.Errorf("create enrollment: %w", err)
		return outcome, err
	}

	acceptQuery := `UPDATE enrollment_requests SET status = $2, course_id = $3, observation = ` + appendObservationSQL(4) + `,
reviewed_by = NULLIF($5, ''), updated_at = $6 WHERE id = $1
RETURNING id, guardian_id, student_id, institution_id, course_id, requested_grade, status, observation, reviewed_by, created_at, updated_at, expires_at`
	if err = tx.GetContext(ctx, &req, acceptQuery, req.ID, models.RequestStatusAccepted, courseID, params.Note, params.ReviewerID, now); err != nil {
		err = fmt.Errorf("accept enrollment request: %w", err)
		return outcome, err
	}

	if err = tx.Commit(); err != nil {
		return outcome, fmt.Errorf("commit enrollment acceptance: %w", err)
	}
	return AcceptOutcome{Request: &req, Enrollment: &enrollment, Course: course}, nil
}

// pickCourse locks the candidate courses and returns the chosen one, or nil when none has a seat.
func (r *EnrollmentRequestRepository) pickCourse(ctx context.Context, tx *sqlx.Tx, req models.EnrollmentRequest, params AcceptParams) (*models.Course, error) {
	explicit := params.CourseID
	if explicit == "" && req.CourseID != nil {
		explicit = *req.CourseID
	}

	if explicit != "" {
		query := `SELECT ` + courseColumns + ` FROM courses WHERE id = $1 AND institution_id = $2 FOR UPDATE`
		var course models.Course
		if err := tx.GetContext(ctx, &course, query, explicit, req.InstitutionID); err != nil {
			if err == sql.ErrNoRows {
				return nil, err
			}
			return nil, fmt.Errorf("lock course: %w", err)
		}
		if course.AvailableSeats <= 0 {
			return nil, nil
		}
		return &course, nil
	}

	query := `SELECT ` + courseColumns + ` FROM courses WHERE institution_id = $1 AND available_seats > 0`
	args := []interface{}{req.InstitutionID}
	if req.RequestedGrade != nil {
		query += ` AND grade_label LIKE $2`
		args = append(args, models.GradePrefix(*req.RequestedGrade)+"%")
	}
	query += ` ORDER BY grade_label FOR UPDATE`

	var candidates []models.Course
	if err := tx.SelectContext(ctx, &candidates, query, args...); err != nil {
		return nil, fmt.Errorf("list candidate courses: %w", err)
	}
	if len(candidates) == 0 {
		return nil, nil
	}
	chosen := candidates[0]
	if params.Choose != nil {
		chosen = params.Choose(candidates)
	}
	return &chosen, nil
}

// ExpireOverdue rejects every pending request whose deadline has passed and returns their ids.
func (r *EnrollmentRequestRepository) ExpireOverdue(ctx context.Context, now time.Time) ([]string, error) {
	query := `UPDATE enrollment_requests SET status = 'rejected', observation = ` + appendObservationSQL(2) + `, updated_at = $1
WHERE status = 'pending' AND expires_at <= $1
RETURNING id`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, now.UTC(), models.ObservationExpired); err != nil {
		return nil, fmt.Errorf("expire enrollment requests: %w", err)
	}
	return ids, nil
}

// FindContext loads the flat read model used to address notifications about a request.
func (r *EnrollmentRequestRepository) FindContext(ctx context.Context, id string) (*models.EnrollmentRequestContext, error) {
	const query = `SELECT r.id AS request_id, r.status, r.observation, r.created_at, r.expires_at, r.requested_grade,
       gu.id AS guardian_user_id, TRIM(gu.first_name || ' ' || gu.last_name) AS guardian_name, gu.email AS guardian_email,
       TRIM(s.first_name || ' ' || s.last_name) AS student_name, s.document_number AS student_document,
       i.id AS institution_id, i.name AS institution_name,
       au.id AS admin_user_id, TRIM(au.first_name || ' ' || au.last_name) AS admin_name, au.email AS admin_email,
       c.grade_label AS course_label
FROM enrollment_requests r
JOIN guardians g ON g.id = r.guardian_id
JOIN users gu ON gu.id = g.user_id
JOIN students s ON s.id = r.student_id
JOIN institutions i ON i.id = r.institution_id
JOIN staff st ON st.id = i.admin_id
JOIN users au ON au.id = st.user_id
LEFT JOIN courses c ON c.id = r.course_id
WHERE r.id = $1`
	var rc models.EnrollmentRequestContext
	if err := r.db.GetContext(ctx, &rc, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("load enrollment request context: %w", err)
	}
	return &rc, nil
}
