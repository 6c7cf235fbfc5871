package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/matrischol-api/internal/dto"
	"github.com/noah-isme/matrischol-api/internal/models"
	"github.com/noah-isme/matrischol-api/internal/repository"
	appErrors "github.com/noah-isme/matrischol-api/pkg/errors"
	"github.com/noah-isme/matrischol-api/pkg/export"
	"github.com/noah-isme/matrischol-api/pkg/mailer"
	"github.com/noah-isme/matrischol-api/pkg/sanitize"
)

const defaultRequestTTL = 24 * time.Hour

type enrollmentRequestStore interface {
	Create(ctx context.Context, req *models.EnrollmentRequest) error
	HasPending(ctx context.Context, studentID, institutionID string) (bool, error)
	FindByID(ctx context.Context, id string) (*models.EnrollmentRequest, error)
	List(ctx context.Context, filter models.EnrollmentRequestFilter) ([]models.EnrollmentRequest, int, error)
	Transition(ctx context.Context, id string, status models.RequestStatus, note, reviewerID string) (*models.EnrollmentRequest, error)
	Accept(ctx context.Context, params repository.AcceptParams) (repository.AcceptOutcome, error)
	ExpireOverdue(ctx context.Context, now time.Time) ([]string, error)
	FindContext(ctx context.Context, id string) (*models.EnrollmentRequestContext, error)
}

type enrollmentReader interface {
	FindCurrentByStudent(ctx context.Context, studentID string) (*models.Enrollment, error)
	Certificate(ctx context.Context, enrollmentID string) (*models.EnrollmentCertificate, error)
}

type documentLister interface {
	ListForStudent(ctx context.Context, studentID string) ([]models.DocumentBundle, error)
}

type courseFinder interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
}

type institutionAuthority interface {
	FindByID(ctx context.Context, id string) (*models.Institution, error)
	IsAdministeredBy(ctx context.Context, institutionID, userID string) (bool, error)
}

// EnrollmentDeps groups the stores the enrollment workflow reads and writes.
type EnrollmentDeps struct {
	Requests     enrollmentRequestStore
	Enrollments  enrollmentReader
	Documents    documentLister
	Courses      courseFinder
	Institutions institutionAuthority
	Students     studentRepository
	Guardians    guardianRepository
}

// EnrollmentService runs the enrollment request workflow: eligibility, review transitions,
// seat allocation and expiry.
type EnrollmentService struct {
	deps      EnrollmentDeps
	effects   effectDispatcher
	catalog   catalogInvalidator
	metrics   *MetricsService
	pdf       *export.PDFExporter
	validator *validator.Validate
	logger    *zap.Logger
	ttl       time.Duration
	now       func() time.Time
	choose    repository.CourseChooser
}

// NewEnrollmentService constructs the workflow service. A non-positive ttl falls back to 24h.
func NewEnrollmentService(deps EnrollmentDeps, effects effectDispatcher, metrics *MetricsService, ttl time.Duration, validate *validator.Validate, logger *zap.Logger) *EnrollmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if ttl <= 0 {
		ttl = defaultRequestTTL
	}
	return &EnrollmentService{
		deps:      deps,
		effects:   effects,
		metrics:   metrics,
		pdf:       export.NewPDFExporter(),
		validator: validate,
		logger:    logger,
		ttl:       ttl,
		now:       time.Now,
		choose:    randomCourse,
	}
}

// WithCatalogCache invalidates cached course lists after seats change.
func (s *EnrollmentService) WithCatalogCache(c catalogInvalidator) *EnrollmentService {
	s.catalog = c
	return s
}

func randomCourse(candidates []models.Course) models.Course {
	return candidates[rand.Intn(len(candidates))]
}

// Create files an enrollment request for one of the caller's students.
func (s *EnrollmentService) Create(ctx context.Context, actor models.Actor, req dto.CreateEnrollmentRequest) (*dto.EnrollmentRequestOutcome, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment request payload")
	}

	guardian, err := s.deps.Guardians.FindByUserID(ctx, actor.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "caller has no guardian profile")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load guardian profile")
	}
	student, err := s.deps.Students.FindByID(ctx, req.StudentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrInvalidReference, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if student.GuardianID != guardian.ID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "student does not belong to the caller")
	}
	if _, err := s.deps.Institutions.FindByID(ctx, req.InstitutionID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrInvalidReference, "institution not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load institution")
	}

	var course *models.Course
	if req.CourseID != nil && *req.CourseID != "" {
		course, err = s.deps.Courses.FindByID(ctx, *req.CourseID)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
		}
		if course == nil || course.InstitutionID != req.InstitutionID {
			return nil, appErrors.Clone(appErrors.ErrInvalidReference, "course does not belong to the institution")
		}
	}

	now := s.now().UTC()
	request := &models.EnrollmentRequest{
		GuardianID:     guardian.ID,
		StudentID:      student.ID,
		InstitutionID:  req.InstitutionID,
		RequestedGrade: req.RequestedGrade,
		Status:         models.RequestStatusPending,
		ExpiresAt:      now.Add(s.ttl),
	}
	if course != nil {
		request.CourseID = &course.ID
	}

	current, err := s.deps.Enrollments.FindCurrentByStudent(ctx, student.ID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load current enrollment")
	}
	if observation := enrollmentConflict(current, req.InstitutionID); observation != "" {
		request.Status = models.RequestStatusRejected
		request.Observation = observation
		if err := s.deps.Requests.Create(ctx, request); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record enrollment request")
		}
		s.metrics.RecordRequestCreated(request.Status)
		return &dto.EnrollmentRequestOutcome{Status: dto.OutcomeRejected, RequestID: request.ID, Message: observation}, nil
	}

	bundles, err := s.deps.Documents.ListForStudent(ctx, student.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load documents")
	}
	if missing := MissingDocuments(bundles, *student, *guardian); len(missing) > 0 {
		return nil, appErrors.WithDetails(appErrors.ErrMissingDocuments, map[string]interface{}{"missing_documents": slotNames(missing)})
	}

	if course != nil && course.AvailableSeats <= 0 {
		return nil, appErrors.Clone(appErrors.ErrNoSeatsAvailable, fmt.Sprintf("course %s has no seats available", course.GradeLabel))
	}

	pending, err := s.deps.Requests.HasPending(ctx, student.ID, req.InstitutionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check pending requests")
	}
	if pending {
		return nil, appErrors.Clone(appErrors.ErrDuplicateRequest, "")
	}

	if err := s.deps.Requests.Create(ctx, request); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrDuplicateRequest, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create enrollment request")
	}
	s.metrics.RecordRequestCreated(request.Status)
	s.announceCreated(ctx, request.ID)

	expires := request.ExpiresAt
	return &dto.EnrollmentRequestOutcome{Status: dto.OutcomeOK, RequestID: request.ID, ExpiresAt: &expires}, nil
}

// Review applies an administrator action to a pending request.
func (s *EnrollmentService) Review(ctx context.Context, actor models.Actor, id string, req dto.ReviewEnrollmentRequest) (*models.EnrollmentRequest, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid review payload")
	}
	action, ok := models.ParseEnrollmentAction(req.Action)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown action %q", req.Action))
	}

	request, err := s.loadRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeReview(ctx, actor, request.InstitutionID); err != nil {
		return nil, err
	}
	if !request.IsPending() {
		s.metrics.RecordTransition(action, "not_pending")
		return nil, appErrors.Clone(appErrors.ErrRequestNotPending, "")
	}

	note := sanitize.Text(req.Comments, 2000)
	var updated *models.EnrollmentRequest
	outcome := "ok"

	switch action {
	case models.ActionAccept:
		if err := s.requireDocuments(ctx, request); err != nil {
			return nil, err
		}
		result, err := s.deps.Requests.Accept(ctx, repository.AcceptParams{
			RequestID:  request.ID,
			ReviewerID: actor.UserID,
			Note:       note,
			Choose:     s.choose,
		})
		if err != nil {
			return nil, s.transitionError(action, err)
		}
		updated = result.Request
		if result.NoSeats {
			outcome = "no_seats"
		} else if s.catalog != nil {
			s.catalog.InvalidateCourses(ctx, request.InstitutionID)
		}
	case models.ActionReject:
		updated, err = s.deps.Requests.Transition(ctx, request.ID, models.RequestStatusRejected, note, actor.UserID)
	case models.ActionHold:
		updated, err = s.deps.Requests.Transition(ctx, request.ID, models.RequestStatusPending, note, actor.UserID)
	case models.ActionRequestDocs:
		updated, err = s.deps.Requests.Transition(ctx, request.ID, models.RequestStatusNeedsDocs, note, actor.UserID)
	}
	if err != nil {
		return nil, s.transitionError(action, err)
	}

	s.metrics.RecordTransition(action, outcome)
	s.announceReview(ctx, actor, action, updated)
	return updated, nil
}

// Expire rejects every overdue pending request and notifies the guardians. Running it
// twice transitions each request once.
func (s *EnrollmentService) Expire(ctx context.Context) (int, error) {
	ids, err := s.deps.Requests.ExpireOverdue(ctx, s.now())
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to expire enrollment requests")
	}
	s.metrics.RecordExpired(len(ids))
	for _, id := range ids {
		rc, err := s.deps.Requests.FindContext(ctx, id)
		if err != nil {
			s.logger.Warn("failed to load expired request context", zap.String("request_id", id), zap.Error(err))
			continue
		}
		s.dispatch(ctx, s.statusEffects(rc, "")...)
	}
	if len(ids) > 0 {
		s.logger.Info("expired enrollment requests", zap.Int("count", len(ids)))
	}
	return len(ids), nil
}

// List returns the requests the actor may see: a guardian's own, the requests of the
// institutions a staff member administers, or any for an admin.
func (s *EnrollmentService) List(ctx context.Context, actor models.Actor, filter models.EnrollmentRequestFilter) ([]models.EnrollmentRequest, *models.Pagination, error) {
	switch actor.Role {
	case models.RoleAdmin:
	case models.RoleGuardian:
		guardian, err := s.deps.Guardians.FindByUserID(ctx, actor.UserID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "caller has no guardian profile")
			}
			return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load guardian profile")
		}
		filter.GuardianID = guardian.ID
	case models.RoleStaff:
		filter.AdminUserID = actor.UserID
	default:
		return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "")
	}

	filter.Page, filter.PageSize = models.NormalizePage(filter.Page, filter.PageSize)
	items, total, err := s.deps.Requests.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollment requests")
	}
	return items, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// Get returns a request with the documents used to judge it.
func (s *EnrollmentService) Get(ctx context.Context, actor models.Actor, id string) (*dto.EnrollmentRequestDetail, error) {
	request, err := s.loadRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.Role == models.RoleGuardian {
		guardian, err := s.deps.Guardians.FindByUserID(ctx, actor.UserID)
		if err != nil || guardian.ID != request.GuardianID {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "request does not belong to the caller")
		}
	} else if err := s.authorizeReview(ctx, actor, request.InstitutionID); err != nil {
		return nil, err
	}

	student, guardian, err := s.studentAndGuardian(ctx, request.StudentID)
	if err != nil {
		return nil, err
	}
	bundles, err := s.deps.Documents.ListForStudent(ctx, request.StudentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load documents")
	}
	missing := MissingDocuments(bundles, *student, *guardian)
	if bundles == nil {
		bundles = []models.DocumentBundle{}
	}
	return &dto.EnrollmentRequestDetail{
		Request:   *request,
		Documents: bundles,
		Status:    models.DocumentStatus{StudentID: student.ID, Complete: len(missing) == 0, Missing: missing},
	}, nil
}

// Certificate renders the enrollment certificate PDF. The guardian, the institution's
// administrator and the global admin may download it.
func (s *EnrollmentService) Certificate(ctx context.Context, actor models.Actor, enrollmentID string) ([]byte, error) {
	cert, err := s.deps.Enrollments.Certificate(ctx, enrollmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "active enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	if !actor.IsAdmin() && actor.UserID != cert.GuardianUserID && actor.UserID != cert.AdminUserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "")
	}

	doc := export.Certificate{
		Number:          certificateNumber(cert.EnrollmentID, cert.RegisteredAt),
		StudentName:     cert.StudentName,
		StudentDocument: cert.StudentDocument,
		InstitutionName: cert.InstitutionName,
		DaneCode:        cert.DaneCode,
		Municipality:    cert.Municipality,
		RegisteredAt:    cert.RegisteredAt,
	}
	if cert.CourseLabel != nil {
		doc.CourseLabel = *cert.CourseLabel
	}
	out, err := s.pdf.RenderCertificate(doc)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render certificate")
	}
	return out, nil
}

func certificateNumber(id string, registered time.Time) string {
	short := id
	if len(short) > 8 {
		short = short[:8]
	}
	return fmt.Sprintf("%d-%s", registered.Year(), short)
}

func (s *EnrollmentService) loadRequest(ctx context.Context, id string) (*models.EnrollmentRequest, error) {
	request, err := s.deps.Requests.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment request")
	}
	return request, nil
}

func (s *EnrollmentService) authorizeReview(ctx context.Context, actor models.Actor, institutionID string) error {
	if actor.IsAdmin() {
		return nil
	}
	if actor.Role != models.RoleStaff {
		return appErrors.Clone(appErrors.ErrForbidden, "")
	}
	ok, err := s.deps.Institutions.IsAdministeredBy(ctx, institutionID, actor.UserID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check institution administrator")
	}
	if !ok {
		return appErrors.Clone(appErrors.ErrForbidden, "caller does not administer this institution")
	}
	return nil
}

func (s *EnrollmentService) studentAndGuardian(ctx context.Context, studentID string) (*models.Student, *models.Guardian, error) {
	student, err := s.deps.Students.FindByID(ctx, studentID)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	guardian, err := s.deps.Guardians.FindByID(ctx, student.GuardianID)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load guardian")
	}
	return student, guardian, nil
}

func (s *EnrollmentService) requireDocuments(ctx context.Context, request *models.EnrollmentRequest) error {
	student, guardian, err := s.studentAndGuardian(ctx, request.StudentID)
	if err != nil {
		return err
	}
	bundles, err := s.deps.Documents.ListForStudent(ctx, request.StudentID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load documents")
	}
	if missing := MissingDocuments(bundles, *student, *guardian); len(missing) > 0 {
		return appErrors.WithDetails(appErrors.ErrMissingDocuments, map[string]interface{}{"missing_documents": slotNames(missing)})
	}
	return nil
}

func (s *EnrollmentService) transitionError(action models.ReviewAction, err error) error {
	switch {
	case errors.Is(err, repository.ErrNotPending):
		s.metrics.RecordTransition(action, "not_pending")
		return appErrors.Clone(appErrors.ErrRequestNotPending, "")
	case errors.Is(err, sql.ErrNoRows):
		return appErrors.Clone(appErrors.ErrInvalidReference, "request or course no longer exists")
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update enrollment request")
}

func (s *EnrollmentService) announceCreated(ctx context.Context, id string) {
	rc, err := s.deps.Requests.FindContext(ctx, id)
	if err != nil {
		s.logger.Warn("failed to load request context", zap.String("request_id", id), zap.Error(err))
		return
	}
	data := s.templateData(rc)
	requestID := rc.RequestID

	effects := []Effect{
		NotifyEffect(models.Notification{
			RecipientUserID:     rc.GuardianUserID,
			Title:               "Solicitud de matrícula recibida",
			Message:             fmt.Sprintf("La solicitud de %s en %s fue recibida.", rc.StudentName, rc.InstitutionName),
			EnrollmentRequestID: &requestID,
		}),
		EmailEffect(mailer.TemplateEnrollmentReceived, rc.GuardianName, rc.GuardianEmail, rc.GuardianUserID, data),
	}
	if rc.AdminUserID != "" {
		effects = append(effects,
			NotifyEffect(models.Notification{
				RecipientUserID:     rc.AdminUserID,
				Title:               "Nueva solicitud de matrícula",
				Message:             fmt.Sprintf("%s solicitó matrícula para %s.", rc.GuardianName, rc.StudentName),
				EnrollmentRequestID: &requestID,
			}),
			EmailEffect(mailer.TemplateEnrollmentNew, rc.AdminName, rc.AdminEmail, rc.AdminUserID, data),
		)
	}
	s.dispatch(ctx, effects...)
}

func (s *EnrollmentService) announceReview(ctx context.Context, actor models.Actor, action models.ReviewAction, request *models.EnrollmentRequest) {
	rc, err := s.deps.Requests.FindContext(ctx, request.ID)
	if err != nil {
		s.logger.Warn("failed to load request context", zap.String("request_id", request.ID), zap.Error(err))
		return
	}
	effects := s.statusEffects(rc, action)
	effects = append(effects, AuditEffect(newAuditEntry(actor, auditActionFor(action), "enrollment_request",
		fmt.Sprintf("%s -> %s", rc.StudentName, rc.InstitutionName),
		map[string]interface{}{"id": request.ID, "action": action, "status": request.Status})))
	s.dispatch(ctx, effects...)
}

// statusEffects tells the guardian about the request's current status. A hold keeps the
// request pending, so the guardian is told it is under additional review instead.
func (s *EnrollmentService) statusEffects(rc *models.EnrollmentRequestContext, action models.ReviewAction) []Effect {
	requestID := rc.RequestID
	data := s.templateData(rc)
	var message string
	if action == models.ActionHold {
		message = fmt.Sprintf("La solicitud de %s en %s está en revisión adicional.", rc.StudentName, rc.InstitutionName)
		data["Status"] = statusUnderReview
	} else {
		message = fmt.Sprintf("La solicitud de %s en %s cambió a %s.", rc.StudentName, rc.InstitutionName, rc.Status)
	}
	if rc.CourseLabel != nil {
		message += " Curso asignado: " + *rc.CourseLabel + "."
	}
	return []Effect{
		NotifyEffect(models.Notification{
			RecipientUserID:     rc.GuardianUserID,
			Title:               "Actualización de solicitud de matrícula",
			Message:             message,
			EnrollmentRequestID: &requestID,
		}),
		EmailEffect(mailer.TemplateEnrollmentStatus, rc.GuardianName, rc.GuardianEmail, rc.GuardianUserID, data),
	}
}

const statusUnderReview = "en revisión adicional"

func (s *EnrollmentService) templateData(rc *models.EnrollmentRequestContext) map[string]interface{} {
	data := map[string]interface{}{
		"RequestID":       rc.RequestID,
		"GuardianName":    rc.GuardianName,
		"StudentName":     rc.StudentName,
		"InstitutionName": rc.InstitutionName,
		"AdminName":       rc.AdminName,
		"Status":          string(rc.Status),
		"Observation":     rc.Observation,
		"ExpiresAt":       rc.ExpiresAt.UTC().Format("2006-01-02 15:04 MST"),
		"CourseLabel":     "",
		"Grade":           "",
	}
	if rc.CourseLabel != nil {
		data["CourseLabel"] = *rc.CourseLabel
	}
	if rc.RequestedGrade != nil {
		data["Grade"] = fmt.Sprint(*rc.RequestedGrade)
	}
	return data
}

func (s *EnrollmentService) dispatch(ctx context.Context, effects ...Effect) {
	if s.effects != nil {
		s.effects.Dispatch(ctx, effects...)
	}
}

func auditActionFor(action models.ReviewAction) models.AuditAction {
	switch action {
	case models.ActionAccept, models.ActionApprove:
		return models.AuditActionApprove
	case models.ActionReject:
		return models.AuditActionReject
	case models.ActionHold, models.ActionRequestDocs, models.ActionRequestInfo:
		return models.AuditActionRequestInfo
	}
	return models.AuditActionOther
}
