package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/matrischol-api/internal/dto"
	"github.com/noah-isme/matrischol-api/internal/models"
	"github.com/noah-isme/matrischol-api/internal/repository"
	appErrors "github.com/noah-isme/matrischol-api/pkg/errors"
	"github.com/noah-isme/matrischol-api/pkg/mailer"
	"github.com/noah-isme/matrischol-api/pkg/sanitize"
)

type institutionRequestStore interface {
	Create(ctx context.Context, req *models.InstitutionRequest) error
	FindByID(ctx context.Context, id string) (*models.InstitutionRequest, error)
	List(ctx context.Context, filter models.ApprovalFilter) ([]models.InstitutionRequest, int, error)
	Review(ctx context.Context, id string, status models.ApprovalStatus, comments, reviewerID string) (*models.InstitutionRequest, error)
	Approve(ctx context.Context, id, comments, reviewerID string) (*models.InstitutionRequest, *models.Institution, error)
	FindContext(ctx context.Context, id string) (*models.ApprovalContext, error)
}

type courseRequestStore interface {
	Create(ctx context.Context, req *models.CourseRequest) error
	FindByID(ctx context.Context, id string) (*models.CourseRequest, error)
	List(ctx context.Context, filter models.ApprovalFilter) ([]models.CourseRequest, int, error)
	Review(ctx context.Context, id string, status models.ApprovalStatus, comments, reviewerID string) (*models.CourseRequest, error)
	Approve(ctx context.Context, id, comments, reviewerID string) (*models.CourseRequest, models.ProvisionResult, error)
	FindContext(ctx context.Context, id string) (*models.ApprovalContext, error)
}

type adminDirectory interface {
	ListActiveByRole(ctx context.Context, role models.UserRole) ([]models.User, error)
}

type staffDirectory interface {
	FindByUserID(ctx context.Context, userID string) (*models.Staff, error)
}

const (
	kindInstitution = "institución"
	kindCourses     = "cursos"
)

// ApprovalService runs the institution and course-creation request workflows.
type ApprovalService struct {
	institutions institutionRequestStore
	courses      courseRequestStore
	authority    institutionAuthority
	admins       adminDirectory
	staff        staffDirectory
	effects      effectDispatcher
	catalog      catalogInvalidator
	metrics      *MetricsService
	validator    *validator.Validate
	logger       *zap.Logger
}

// ApprovalDeps groups the stores used by ApprovalService.
type ApprovalDeps struct {
	Institutions institutionRequestStore
	Courses      courseRequestStore
	Authority    institutionAuthority
	Admins       adminDirectory
	Staff        staffDirectory
	Catalog      catalogInvalidator
}

// NewApprovalService constructs the service.
func NewApprovalService(deps ApprovalDeps, effects effectDispatcher, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *ApprovalService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &ApprovalService{
		institutions: deps.Institutions,
		courses:      deps.Courses,
		authority:    deps.Authority,
		admins:       deps.Admins,
		staff:        deps.Staff,
		catalog:      deps.Catalog,
		effects:      effects,
		metrics:      metrics,
		validator:    validate,
		logger:       logger,
	}
}

// SubmitInstitution files an institution-creation request. The submitter's staff profile
// becomes the administrator unless another one is named.
func (s *ApprovalService) SubmitInstitution(ctx context.Context, actor models.Actor, req dto.SubmitInstitutionRequest) (*models.InstitutionRequest, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid institution request payload")
	}

	request := &models.InstitutionRequest{
		Name:         sanitize.Text(req.Name, 200),
		Type:         sanitize.Text(req.Type, 60),
		DaneCode:     strings.TrimSpace(req.DaneCode),
		Department:   sanitize.Text(req.Department, 120),
		Municipality: sanitize.Text(req.Municipality, 120),
		Address:      sanitize.Text(req.Address, 255),
		Phone:        strings.TrimSpace(req.Phone),
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		AdminID:      req.AdminID,
		SubmittedBy:  actor.UserID,
		Status:       models.ApprovalPending,
	}
	if request.AdminID == nil || *request.AdminID == "" {
		request.AdminID = nil
		staff, err := s.staff.FindByUserID(ctx, actor.UserID)
		switch {
		case err == nil:
			request.AdminID = &staff.ID
		case !errors.Is(err, sql.ErrNoRows):
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load staff profile")
		}
	}

	if err := s.institutions.Create(ctx, request); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create institution request")
	}

	s.announceSubmission(ctx, actor, kindInstitution, request.Name, func(n *models.Notification) { n.InstitutionRequestID = &request.ID })
	s.dispatch(ctx, AuditEffect(newAuditEntry(actor, models.AuditActionCreate, "institution_request", request.Name, map[string]interface{}{"id": request.ID})))
	return request, nil
}

// SubmitCourses files a course bulk-creation request for an institution the caller administers.
func (s *ApprovalService) SubmitCourses(ctx context.Context, actor models.Actor, req dto.SubmitCourseRequest) (*models.CourseRequest, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course request payload")
	}
	inst, err := s.authority.FindByID(ctx, req.InstitutionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrInvalidReference, "institution not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load institution")
	}
	if !actor.IsAdmin() {
		ok, err := s.authority.IsAdministeredBy(ctx, inst.ID, actor.UserID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check institution administrator")
		}
		if !ok {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "caller does not administer this institution")
		}
	}

	request := &models.CourseRequest{
		InstitutionID:  inst.ID,
		Mode:           req.Mode,
		Sections:       req.Sections,
		SeatsPerCourse: req.SeatsPerCourse,
		StartGrade:     req.StartGrade,
		EndGrade:       req.EndGrade,
		SubmittedBy:    actor.UserID,
		Status:         models.ApprovalPending,
	}
	if request.Sections <= 0 {
		request.Sections = models.DefaultSections
	}
	if request.SeatsPerCourse <= 0 {
		request.SeatsPerCourse = models.DefaultSeatsPerCourse
	}
	if request.Mode == models.CourseModeCustom && request.StartGrade != nil && request.EndGrade != nil {
		if _, _, err := request.ProvisionConfig().GradeRange(); err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
		}
	}

	if err := s.courses.Create(ctx, request); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create course request")
	}

	subject := fmt.Sprintf("%s (%s)", inst.Name, request.Mode)
	s.announceSubmission(ctx, actor, kindCourses, subject, func(n *models.Notification) { n.CourseRequestID = &request.ID })
	s.dispatch(ctx, AuditEffect(newAuditEntry(actor, models.AuditActionCreate, "course_request", subject, map[string]interface{}{"id": request.ID})))
	return request, nil
}

// ListInstitutionRequests returns every request for admins and the caller's own otherwise.
func (s *ApprovalService) ListInstitutionRequests(ctx context.Context, actor models.Actor, filter models.ApprovalFilter) ([]models.InstitutionRequest, *models.Pagination, error) {
	filter = scopeApprovalFilter(actor, filter)
	items, total, err := s.institutions.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list institution requests")
	}
	return items, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// ListCourseRequests returns every request for admins and the caller's own otherwise.
func (s *ApprovalService) ListCourseRequests(ctx context.Context, actor models.Actor, filter models.ApprovalFilter) ([]models.CourseRequest, *models.Pagination, error) {
	filter = scopeApprovalFilter(actor, filter)
	items, total, err := s.courses.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list course requests")
	}
	return items, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

func scopeApprovalFilter(actor models.Actor, filter models.ApprovalFilter) models.ApprovalFilter {
	if !actor.IsAdmin() {
		filter.SubmittedBy = actor.UserID
	}
	filter.Page, filter.PageSize = models.NormalizePage(filter.Page, filter.PageSize)
	return filter
}

// GetInstitutionRequest returns one request visible to the actor.
func (s *ApprovalService) GetInstitutionRequest(ctx context.Context, actor models.Actor, id string) (*models.InstitutionRequest, error) {
	req, err := s.institutions.FindByID(ctx, id)
	if err != nil {
		return nil, approvalLoadError(err)
	}
	if !actor.IsAdmin() && req.SubmittedBy != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "")
	}
	return req, nil
}

// GetCourseRequest returns one request visible to the actor.
func (s *ApprovalService) GetCourseRequest(ctx context.Context, actor models.Actor, id string) (*models.CourseRequest, error) {
	req, err := s.courses.FindByID(ctx, id)
	if err != nil {
		return nil, approvalLoadError(err)
	}
	if !actor.IsAdmin() && req.SubmittedBy != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "")
	}
	return req, nil
}

func approvalLoadError(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, "request not found")
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load request")
}

// ReviewInstitution approves, rejects or asks for more information. Approval materializes
// the institution in the same transaction.
func (s *ApprovalService) ReviewInstitution(ctx context.Context, actor models.Actor, id string, req dto.ReviewApprovalRequest) (*models.InstitutionRequest, error) {
	action, status, comments, err := s.parseReview(actor, req)
	if err != nil {
		return nil, err
	}
	current, err := s.institutions.FindByID(ctx, id)
	if err != nil {
		return nil, approvalLoadError(err)
	}
	if current.Status != models.ApprovalPending {
		s.metrics.RecordTransition(action, "not_pending")
		return nil, appErrors.Clone(appErrors.ErrRequestNotPending, "")
	}

	var updated *models.InstitutionRequest
	if action == models.ActionApprove {
		if missing := current.MissingFields(); len(missing) > 0 {
			return nil, appErrors.WithDetails(appErrors.ErrValidation, map[string]interface{}{"missing_fields": missing})
		}
		updated, _, err = s.institutions.Approve(ctx, id, comments, actor.UserID)
	} else {
		updated, err = s.institutions.Review(ctx, id, status, comments, actor.UserID)
	}
	if err != nil {
		return nil, s.reviewError(action, err)
	}

	if action == models.ActionApprove && s.catalog != nil {
		s.catalog.InvalidateInstitutions(ctx)
	}
	s.metrics.RecordTransition(action, "ok")
	s.announceReview(ctx, actor, action, kindInstitution, "institution_request", updated.ID, s.institutions.FindContext,
		func(n *models.Notification) { n.InstitutionRequestID = &updated.ID })
	return updated, nil
}

// ReviewCourses approves, rejects or asks for more information. Approval provisions the
// courses and records created and skipped counts on the request.
func (s *ApprovalService) ReviewCourses(ctx context.Context, actor models.Actor, id string, req dto.ReviewApprovalRequest) (*models.CourseRequest, error) {
	action, status, comments, err := s.parseReview(actor, req)
	if err != nil {
		return nil, err
	}
	current, err := s.courses.FindByID(ctx, id)
	if err != nil {
		return nil, approvalLoadError(err)
	}
	if current.Status != models.ApprovalPending {
		s.metrics.RecordTransition(action, "not_pending")
		return nil, appErrors.Clone(appErrors.ErrRequestNotPending, "")
	}

	var updated *models.CourseRequest
	if action == models.ActionApprove {
		if missing := current.MissingFields(); len(missing) > 0 {
			return nil, appErrors.WithDetails(appErrors.ErrValidation, map[string]interface{}{"missing_fields": missing})
		}
		if _, err := current.ProvisionConfig().Labels(); err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
		}
		var result models.ProvisionResult
		updated, result, err = s.courses.Approve(ctx, id, comments, actor.UserID)
		if err == nil {
			s.metrics.RecordProvision(result)
			if s.catalog != nil {
				s.catalog.InvalidateCourses(ctx, current.InstitutionID)
			}
		}
	} else {
		updated, err = s.courses.Review(ctx, id, status, comments, actor.UserID)
	}
	if err != nil {
		return nil, s.reviewError(action, err)
	}

	s.metrics.RecordTransition(action, "ok")
	s.announceReview(ctx, actor, action, kindCourses, "course_request", updated.ID, s.courses.FindContext,
		func(n *models.Notification) { n.CourseRequestID = &updated.ID })
	return updated, nil
}

func (s *ApprovalService) parseReview(actor models.Actor, req dto.ReviewApprovalRequest) (models.ReviewAction, models.ApprovalStatus, string, error) {
	if !actor.IsAdmin() {
		return "", "", "", appErrors.Clone(appErrors.ErrForbidden, "only the administrator reviews these requests")
	}
	if err := s.validator.Struct(req); err != nil {
		return "", "", "", appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid review payload")
	}
	action, status, ok := models.ParseApprovalAction(req.Action)
	if !ok {
		return "", "", "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown action %q", req.Action))
	}
	return action, status, sanitize.Text(req.Comments, 2000), nil
}

func (s *ApprovalService) reviewError(action models.ReviewAction, err error) error {
	switch {
	case errors.Is(err, repository.ErrNotPending):
		s.metrics.RecordTransition(action, "not_pending")
		return appErrors.Clone(appErrors.ErrRequestNotPending, "")
	case errors.Is(err, repository.ErrDuplicate):
		return appErrors.Clone(appErrors.ErrConflict, "an institution with this DANE code already exists")
	case errors.Is(err, sql.ErrNoRows):
		return appErrors.Clone(appErrors.ErrNotFound, "request not found")
	}
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to review request")
}

// announceSubmission tells every active administrator about a new request.
func (s *ApprovalService) announceSubmission(ctx context.Context, actor models.Actor, kind, subject string, link func(*models.Notification)) {
	admins, err := s.admins.ListActiveByRole(ctx, models.RoleAdmin)
	if err != nil {
		s.logger.Warn("failed to list administrators", zap.Error(err))
		return
	}
	submitter := actor.Name
	if submitter == "" {
		submitter = actor.Email
	}

	effects := make([]Effect, 0, len(admins)*2)
	for _, admin := range admins {
		n := models.Notification{
			RecipientUserID: admin.ID,
			Title:           "Nueva solicitud de " + kind,
			Message:         fmt.Sprintf("%s envió una solicitud de %s: %s.", submitter, kind, subject),
		}
		link(&n)
		effects = append(effects,
			NotifyEffect(n),
			EmailEffect(mailer.TemplateApprovalNew, admin.FullName(), admin.Email, admin.ID, map[string]interface{}{
				"Kind":          kind,
				"RecipientName": admin.FullName(),
				"SubmitterName": submitter,
				"Subject":       subject,
			}),
		)
	}
	s.dispatch(ctx, effects...)
}

// announceReview tells the submitter about the decision and records the audit entry.
func (s *ApprovalService) announceReview(ctx context.Context, actor models.Actor, action models.ReviewAction, kind, model, id string,
	load func(context.Context, string) (*models.ApprovalContext, error), link func(*models.Notification)) {
	ac, err := load(ctx, id)
	if err != nil {
		s.logger.Warn("failed to load approval context", zap.String("request_id", id), zap.Error(err))
		return
	}
	n := models.Notification{
		RecipientUserID: ac.SubmitterUserID,
		Title:           "Solicitud de " + kind + " revisada",
		Message:         fmt.Sprintf("Tu solicitud de %s (%s) quedó en estado %s.", kind, ac.Subject, ac.Status),
	}
	link(&n)
	s.dispatch(ctx,
		NotifyEffect(n),
		EmailEffect(mailer.TemplateApprovalStatus, ac.SubmitterName, ac.SubmitterEmail, ac.SubmitterUserID, map[string]interface{}{
			"Kind":          kind,
			"SubmitterName": ac.SubmitterName,
			"Subject":       ac.Subject,
			"Status":        string(ac.Status),
			"Comments":      ac.Comments,
		}),
		AuditEffect(newAuditEntry(actor, auditActionFor(action), model, ac.Subject, map[string]interface{}{"id": id, "status": ac.Status})),
	)
}

func (s *ApprovalService) dispatch(ctx context.Context, effects ...Effect) {
	if s.effects != nil && len(effects) > 0 {
		s.effects.Dispatch(ctx, effects...)
	}
}
