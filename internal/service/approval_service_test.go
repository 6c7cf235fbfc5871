package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/matrischol-api/internal/dto"
	"github.com/noah-isme/matrischol-api/internal/models"
	"github.com/noah-isme/matrischol-api/internal/repository"
	appErrors "github.com/noah-isme/matrischol-api/pkg/errors"
	"github.com/noah-isme/matrischol-api/pkg/mailer"
)

type stubInstitutionRequests struct {
	items      map[string]*models.InstitutionRequest
	approveErr error
	lastFilter models.ApprovalFilter
}

func (s *stubInstitutionRequests) Create(ctx context.Context, req *models.InstitutionRequest) error {
	req.ID = "ir-new"
	s.items[req.ID] = req
	return nil
}

func (s *stubInstitutionRequests) FindByID(ctx context.Context, id string) (*models.InstitutionRequest, error) {
	if r, ok := s.items[id]; ok {
		cp := *r
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (s *stubInstitutionRequests) List(ctx context.Context, filter models.ApprovalFilter) ([]models.InstitutionRequest, int, error) {
	s.lastFilter = filter
	return nil, 0, nil
}

func (s *stubInstitutionRequests) Review(ctx context.Context, id string, status models.ApprovalStatus, comments, reviewerID string) (*models.InstitutionRequest, error) {
	r := s.items[id]
	r.Status = status
	r.ReviewerComments = comments
	return r, nil
}

func (s *stubInstitutionRequests) Approve(ctx context.Context, id, comments, reviewerID string) (*models.InstitutionRequest, *models.Institution, error) {
	if s.approveErr != nil {
		return nil, nil, s.approveErr
	}
	r := s.items[id]
	r.Status = models.ApprovalApproved
	instID := "inst-new"
	r.InstitutionID = &instID
	inst := r.ToInstitution()
	inst.ID = instID
	return r, &inst, nil
}

func (s *stubInstitutionRequests) FindContext(ctx context.Context, id string) (*models.ApprovalContext, error) {
	r := s.items[id]
	return &models.ApprovalContext{
		RequestID:       id,
		Status:          r.Status,
		Subject:         r.Name,
		SubmitterUserID: r.SubmittedBy,
		SubmitterName:   "Sandra Rojas",
		SubmitterEmail:  "sandra@example.com",
		Comments:        r.ReviewerComments,
	}, nil
}

type stubCourseRequests struct {
	items  map[string]*models.CourseRequest
	result models.ProvisionResult
}

func (s *stubCourseRequests) Create(ctx context.Context, req *models.CourseRequest) error {
	req.ID = "cr-new"
	s.items[req.ID] = req
	return nil
}

func (s *stubCourseRequests) FindByID(ctx context.Context, id string) (*models.CourseRequest, error) {
	if r, ok := s.items[id]; ok {
		cp := *r
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (s *stubCourseRequests) List(ctx context.Context, filter models.ApprovalFilter) ([]models.CourseRequest, int, error) {
	return nil, 0, nil
}

func (s *stubCourseRequests) Review(ctx context.Context, id string, status models.ApprovalStatus, comments, reviewerID string) (*models.CourseRequest, error) {
	r := s.items[id]
	r.Status = status
	return r, nil
}

func (s *stubCourseRequests) Approve(ctx context.Context, id, comments, reviewerID string) (*models.CourseRequest, models.ProvisionResult, error) {
	r := s.items[id]
	r.Status = models.ApprovalApproved
	r.CreatedCount, r.SkippedCount = s.result.Created, s.result.Skipped
	return r, s.result, nil
}

func (s *stubCourseRequests) FindContext(ctx context.Context, id string) (*models.ApprovalContext, error) {
	r := s.items[id]
	return &models.ApprovalContext{RequestID: id, Status: r.Status, Subject: "Colegio", SubmitterUserID: r.SubmittedBy, SubmitterEmail: "sandra@example.com"}, nil
}

type stubAdminDirectory struct{ admins []models.User }

func (s *stubAdminDirectory) ListActiveByRole(ctx context.Context, role models.UserRole) ([]models.User, error) {
	return s.admins, nil
}

type stubStaffDirectory struct{ staff map[string]*models.Staff }

func (s *stubStaffDirectory) FindByUserID(ctx context.Context, userID string) (*models.Staff, error) {
	if st, ok := s.staff[userID]; ok {
		return st, nil
	}
	return nil, sql.ErrNoRows
}

type recordingInvalidator struct {
	institutions int
	courses      []string
}

func (r *recordingInvalidator) InvalidateInstitutions(ctx context.Context) { r.institutions++ }
func (r *recordingInvalidator) InvalidateCourses(ctx context.Context, institutionID string) {
	r.courses = append(r.courses, institutionID)
}

type approvalFixture struct {
	svc          *ApprovalService
	institutions *stubInstitutionRequests
	courses      *stubCourseRequests
	catalog      *recordingInvalidator
	metrics      *MetricsService
	effects      *recordingDispatcher
}

func newApprovalFixture() *approvalFixture {
	f := &approvalFixture{
		institutions: &stubInstitutionRequests{items: map[string]*models.InstitutionRequest{}},
		courses:      &stubCourseRequests{items: map[string]*models.CourseRequest{}},
		catalog:      &recordingInvalidator{},
		metrics:      NewMetricsService(),
		effects:      &recordingDispatcher{},
	}
	deps := ApprovalDeps{
		Institutions: f.institutions,
		Courses:      f.courses,
		Authority:    &stubInstitutionAuthority{admins: map[string]string{"inst-1": "staff-user"}},
		Admins: &stubAdminDirectory{admins: []models.User{
			{ID: "admin-1", Email: "admin@example.com", FirstName: "Ana", Role: models.RoleAdmin},
			{ID: "admin-2", Email: "root@example.com", FirstName: "Raul", Role: models.RoleAdmin},
		}},
		Staff:   &stubStaffDirectory{staff: map[string]*models.Staff{"staff-user": {ID: "staff-1", UserID: "staff-user"}}},
		Catalog: f.catalog,
	}
	f.svc = NewApprovalService(deps, f.effects, f.metrics, nil, zap.NewNop())
	return f
}

func completeInstitutionRequest() *models.InstitutionRequest {
	admin := "staff-1"
	return &models.InstitutionRequest{
		ID:           "ir-1",
		Name:         "Colegio Central",
		Type:         "publico",
		DaneCode:     "111001",
		Department:   "Cundinamarca",
		Municipality: "Bogota",
		Address:      "Calle 1 # 2-3",
		Email:        "central@example.com",
		AdminID:      &admin,
		SubmittedBy:  "staff-user",
		Status:       models.ApprovalPending,
	}
}

var approvalAdmin = models.Actor{UserID: "admin-1", Role: models.RoleAdmin}

func TestSubmitInstitutionDefaultsAdminAndNotifiesAdmins(t *testing.T) {
	f := newApprovalFixture()
	req, err := f.svc.SubmitInstitution(context.Background(), models.Actor{UserID: "staff-user", Role: models.RoleStaff, Name: "Sandra"},
		dto.SubmitInstitutionRequest{Name: " Colegio <b>Central</b> ", Email: "Central@Example.com"})
	require.NoError(t, err)

	require.NotNil(t, req.AdminID)
	assert.Equal(t, "staff-1", *req.AdminID)
	assert.Equal(t, "Colegio Central", req.Name)
	assert.Equal(t, "central@example.com", req.Email)
	assert.Equal(t, models.ApprovalPending, req.Status)

	assert.Len(t, f.effects.ofKind(EffectNotification), 2)
	emails := f.effects.ofKind(EffectEmail)
	require.Len(t, emails, 2)
	assert.Equal(t, mailer.TemplateApprovalNew, emails[0].Email.Template)
	assert.Equal(t, "Sandra", emails[0].Email.Data["SubmitterName"])
	assert.Len(t, f.effects.ofKind(EffectAudit), 1)
}

func TestReviewInstitutionRequiresAdmin(t *testing.T) {
	f := newApprovalFixture()
	f.institutions.items["ir-1"] = completeInstitutionRequest()

	_, err := f.svc.ReviewInstitution(context.Background(), staffActor, "ir-1", dto.ReviewApprovalRequest{Action: "approve"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestReviewInstitutionApproveReportsMissingFields(t *testing.T) {
	f := newApprovalFixture()
	incomplete := completeInstitutionRequest()
	incomplete.DaneCode = ""
	incomplete.AdminID = nil
	f.institutions.items["ir-1"] = incomplete

	_, err := f.svc.ReviewInstitution(context.Background(), approvalAdmin, "ir-1", dto.ReviewApprovalRequest{Action: "approve"})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Equal(t, []string{"dane_code", "admin_id"}, appErr.Details["missing_fields"])
	assert.Equal(t, 0, f.catalog.institutions)
}

func TestReviewInstitutionApprove(t *testing.T) {
	f := newApprovalFixture()
	f.institutions.items["ir-1"] = completeInstitutionRequest()

	updated, err := f.svc.ReviewInstitution(context.Background(), approvalAdmin, "ir-1", dto.ReviewApprovalRequest{Action: "approve", Comments: "ok"})
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalApproved, updated.Status)
	require.NotNil(t, updated.InstitutionID)
	assert.Equal(t, 1, f.catalog.institutions)

	emails := f.effects.ofKind(EffectEmail)
	require.Len(t, emails, 1)
	assert.Equal(t, mailer.TemplateApprovalStatus, emails[0].Email.Template)
	assert.Equal(t, "sandra@example.com", emails[0].Email.To.Address)
	audits := f.effects.ofKind(EffectAudit)
	require.Len(t, audits, 1)
	assert.Equal(t, models.AuditActionApprove, audits[0].Audit.Action)
}

func TestReviewInstitutionDuplicateDane(t *testing.T) {
	f := newApprovalFixture()
	f.institutions.items["ir-1"] = completeInstitutionRequest()
	f.institutions.approveErr = repository.ErrDuplicate

	_, err := f.svc.ReviewInstitution(context.Background(), approvalAdmin, "ir-1", dto.ReviewApprovalRequest{Action: "approve"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestReviewInstitutionNotPending(t *testing.T) {
	f := newApprovalFixture()
	done := completeInstitutionRequest()
	done.Status = models.ApprovalRejected
	f.institutions.items["ir-1"] = done

	_, err := f.svc.ReviewInstitution(context.Background(), approvalAdmin, "ir-1", dto.ReviewApprovalRequest{Action: "reject"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrRequestNotPending.Code, appErrors.FromError(err).Code)
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.transitions.WithLabelValues(string(models.ActionReject), "not_pending")))
}

func TestReviewInstitutionRequestInfo(t *testing.T) {
	f := newApprovalFixture()
	f.institutions.items["ir-1"] = completeInstitutionRequest()

	updated, err := f.svc.ReviewInstitution(context.Background(), approvalAdmin, "ir-1", dto.ReviewApprovalRequest{Action: "request_info", Comments: "falta <script>x</script>telefono"})
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalNeedsInfo, updated.Status)
	assert.NotContains(t, updated.ReviewerComments, "<script>")
	assert.Equal(t, 0, f.catalog.institutions)
}

func TestSubmitCoursesRequiresInstitutionAdmin(t *testing.T) {
	f := newApprovalFixture()
	_, err := f.svc.SubmitCourses(context.Background(), models.Actor{UserID: "someone", Role: models.RoleStaff},
		dto.SubmitCourseRequest{InstitutionID: "inst-1", Mode: models.CourseModePrimary})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	_, err = f.svc.SubmitCourses(context.Background(), staffActor, dto.SubmitCourseRequest{InstitutionID: "missing", Mode: models.CourseModePrimary})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidReference.Code, appErrors.FromError(err).Code)
}

func TestSubmitCoursesAppliesDefaults(t *testing.T) {
	f := newApprovalFixture()
	req, err := f.svc.SubmitCourses(context.Background(), staffActor, dto.SubmitCourseRequest{InstitutionID: "inst-1", Mode: models.CourseModeSecondary})
	require.NoError(t, err)
	assert.Equal(t, models.DefaultSections, req.Sections)
	assert.Equal(t, models.DefaultSeatsPerCourse, req.SeatsPerCourse)
}

func TestSubmitCoursesRejectsInvertedRange(t *testing.T) {
	f := newApprovalFixture()
	start, end := 9, 3
	_, err := f.svc.SubmitCourses(context.Background(), staffActor, dto.SubmitCourseRequest{
		InstitutionID: "inst-1", Mode: models.CourseModeCustom, StartGrade: &start, EndGrade: &end,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestReviewCoursesApproveProvisions(t *testing.T) {
	f := newApprovalFixture()
	f.courses.items["cr-1"] = &models.CourseRequest{ID: "cr-1", InstitutionID: "inst-1", Mode: models.CourseModePrimary, Sections: 3, SubmittedBy: "staff-user", Status: models.ApprovalPending}
	f.courses.result = models.ProvisionResult{Created: 12, Skipped: 3}

	updated, err := f.svc.ReviewCourses(context.Background(), approvalAdmin, "cr-1", dto.ReviewApprovalRequest{Action: "approve"})
	require.NoError(t, err)
	assert.Equal(t, 12, updated.CreatedCount)
	assert.Equal(t, 3, updated.SkippedCount)
	assert.Equal(t, []string{"inst-1"}, f.catalog.courses)
	assert.Len(t, f.effects.ofKind(EffectEmail), 1)
}

func TestReviewCoursesApproveMissingRange(t *testing.T) {
	f := newApprovalFixture()
	f.courses.items["cr-1"] = &models.CourseRequest{ID: "cr-1", InstitutionID: "inst-1", Mode: models.CourseModeCustom, SubmittedBy: "staff-user", Status: models.ApprovalPending}

	_, err := f.svc.ReviewCourses(context.Background(), approvalAdmin, "cr-1", dto.ReviewApprovalRequest{Action: "approve"})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Equal(t, []string{"start_grade", "end_grade"}, appErr.Details["missing_fields"])
	assert.Empty(t, f.catalog.courses)
}

func TestApprovalListAndGetScopeToSubmitter(t *testing.T) {
	f := newApprovalFixture()
	f.institutions.items["ir-1"] = completeInstitutionRequest()

	_, _, err := f.svc.ListInstitutionRequests(context.Background(), models.Actor{UserID: "someone", Role: models.RoleStaff}, models.ApprovalFilter{})
	require.NoError(t, err)
	assert.Equal(t, "someone", f.institutions.lastFilter.SubmittedBy)

	_, _, err = f.svc.ListInstitutionRequests(context.Background(), approvalAdmin, models.ApprovalFilter{})
	require.NoError(t, err)
	assert.Empty(t, f.institutions.lastFilter.SubmittedBy)

	_, err = f.svc.GetInstitutionRequest(context.Background(), models.Actor{UserID: "someone", Role: models.RoleStaff}, "ir-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	got, err := f.svc.GetInstitutionRequest(context.Background(), staffActor, "ir-1")
	require.NoError(t, err)
	assert.Equal(t, "Colegio Central", got.Name)
}
