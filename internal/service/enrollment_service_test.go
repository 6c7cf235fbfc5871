package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/matrischol-api/internal/dto"
	"github.com/noah-isme/matrischol-api/internal/models"
	"github.com/noah-isme/matrischol-api/internal/repository"
	appErrors "github.com/noah-isme/matrischol-api/pkg/errors"
)

type stubRequestStore struct {
	requests     map[string]*models.EnrollmentRequest
	created      []models.EnrollmentRequest
	pending      bool
	createErr    error
	acceptCalls  int
	acceptResult repository.AcceptOutcome
	acceptErr    error
	expired      []string
	transitions  []models.RequestStatus
	lastFilter   models.EnrollmentRequestFilter
}

func (s *stubRequestStore) Create(ctx context.Context, req *models.EnrollmentRequest) error {
	if s.createErr != nil {
		return s.createErr
	}
	req.ID = "req-new"
	s.created = append(s.created, *req)
	if s.requests == nil {
		s.requests = map[string]*models.EnrollmentRequest{}
	}
	copy := *req
	s.requests[req.ID] = &copy
	return nil
}

func (s *stubRequestStore) HasPending(ctx context.Context, studentID, institutionID string) (bool, error) {
	return s.pending, nil
}

func (s *stubRequestStore) FindByID(ctx context.Context, id string) (*models.EnrollmentRequest, error) {
	if req, ok := s.requests[id]; ok {
		copy := *req
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (s *stubRequestStore) List(ctx context.Context, filter models.EnrollmentRequestFilter) ([]models.EnrollmentRequest, int, error) {
	s.lastFilter = filter
	return []models.EnrollmentRequest{}, 0, nil
}

func (s *stubRequestStore) Transition(ctx context.Context, id string, status models.RequestStatus, note, reviewerID string) (*models.EnrollmentRequest, error) {
	req, ok := s.requests[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	if req.Status != models.RequestStatusPending {
		return nil, repository.ErrNotPending
	}
	s.transitions = append(s.transitions, status)
	req.Status = status
	req.Observation = models.AppendObservation(req.Observation, note)
	copy := *req
	return &copy, nil
}

func (s *stubRequestStore) Accept(ctx context.Context, params repository.AcceptParams) (repository.AcceptOutcome, error) {
	s.acceptCalls++
	if s.acceptErr != nil {
		return repository.AcceptOutcome{}, s.acceptErr
	}
	return s.acceptResult, nil
}

func (s *stubRequestStore) ExpireOverdue(ctx context.Context, now time.Time) ([]string, error) {
	ids := s.expired
	s.expired = nil
	return ids, nil
}

func (s *stubRequestStore) FindContext(ctx context.Context, id string) (*models.EnrollmentRequestContext, error) {
	return &models.EnrollmentRequestContext{
		RequestID:       id,
		Status:          models.RequestStatusPending,
		GuardianUserID:  "guardian-user",
		GuardianName:    "Gloria",
		GuardianEmail:   "gloria@example.com",
		StudentName:     "Sara",
		InstitutionName: "IE Central",
		AdminUserID:     "staff-user",
		AdminName:       "Sandra",
		AdminEmail:      "sandra@example.com",
	}, nil
}

type stubEnrollmentReader struct {
	current *models.Enrollment
	cert    *models.EnrollmentCertificate
}

func (s *stubEnrollmentReader) FindCurrentByStudent(ctx context.Context, studentID string) (*models.Enrollment, error) {
	if s.current == nil {
		return nil, sql.ErrNoRows
	}
	return s.current, nil
}

func (s *stubEnrollmentReader) Certificate(ctx context.Context, enrollmentID string) (*models.EnrollmentCertificate, error) {
	if s.cert == nil {
		return nil, sql.ErrNoRows
	}
	return s.cert, nil
}

type stubDocumentLister struct {
	bundles []models.DocumentBundle
}

func (s *stubDocumentLister) ListForStudent(ctx context.Context, studentID string) ([]models.DocumentBundle, error) {
	return s.bundles, nil
}

type stubCourseFinder struct {
	courses map[string]*models.Course
}

func (s *stubCourseFinder) FindByID(ctx context.Context, id string) (*models.Course, error) {
	if c, ok := s.courses[id]; ok {
		return c, nil
	}
	return nil, sql.ErrNoRows
}

type stubInstitutionAuthority struct {
	admins map[string]string
}

func (s *stubInstitutionAuthority) FindByID(ctx context.Context, id string) (*models.Institution, error) {
	if _, ok := s.admins[id]; ok {
		return &models.Institution{ID: id}, nil
	}
	return nil, sql.ErrNoRows
}

func (s *stubInstitutionAuthority) IsAdministeredBy(ctx context.Context, institutionID, userID string) (bool, error) {
	return s.admins[institutionID] == userID, nil
}

type stubGuardianRepo struct {
	guardians map[string]*models.Guardian
	updated   *models.Guardian
}

func (s *stubGuardianRepo) FindByID(ctx context.Context, id string) (*models.Guardian, error) {
	for _, g := range s.guardians {
		if g.ID == id {
			copy := *g
			return &copy, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *stubGuardianRepo) FindByUserID(ctx context.Context, userID string) (*models.Guardian, error) {
	if g, ok := s.guardians[userID]; ok {
		copy := *g
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (s *stubGuardianRepo) FindProfileByUserID(ctx context.Context, userID string) (*models.GuardianProfile, error) {
	g, err := s.FindByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if s.updated != nil {
		g = s.updated
	}
	return &models.GuardianProfile{Guardian: *g}, nil
}

func (s *stubGuardianRepo) Update(ctx context.Context, g *models.Guardian) error {
	copy := *g
	s.updated = &copy
	return nil
}

type stubStudentRepo struct {
	students map[string]*models.Student
	photo    string
}

func (s *stubStudentRepo) FindByID(ctx context.Context, id string) (*models.Student, error) {
	if st, ok := s.students[id]; ok {
		copy := *st
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (s *stubStudentRepo) ListByGuardian(ctx context.Context, guardianID string) ([]models.Student, error) {
	var out []models.Student
	for _, st := range s.students {
		if st.GuardianID == guardianID {
			out = append(out, *st)
		}
	}
	return out, nil
}

func (s *stubStudentRepo) Create(ctx context.Context, st *models.Student) error {
	st.ID = "student-new"
	s.students[st.ID] = st
	return nil
}

func (s *stubStudentRepo) UpdatePhoto(ctx context.Context, id, path string) error {
	s.photo = path
	return nil
}

func completeBundle() models.DocumentBundle {
	b := models.DocumentBundle{}
	for _, slot := range models.RequiredSlots {
		b.Set(slot, "students/s1/"+string(slot)+".pdf")
	}
	return b
}

type enrollmentFixture struct {
	svc       *EnrollmentService
	requests  *stubRequestStore
	enrolled  *stubEnrollmentReader
	documents *stubDocumentLister
	courses   *stubCourseFinder
	effects   *recordingDispatcher
}

func newEnrollmentFixture() *enrollmentFixture {
	f := &enrollmentFixture{
		requests:  &stubRequestStore{requests: map[string]*models.EnrollmentRequest{}},
		enrolled:  &stubEnrollmentReader{},
		documents: &stubDocumentLister{bundles: []models.DocumentBundle{completeBundle()}},
		courses: &stubCourseFinder{courses: map[string]*models.Course{
			"course-1": {ID: "course-1", InstitutionID: "inst-1", GradeLabel: "6-01", AvailableSeats: 1},
			"course-0": {ID: "course-0", InstitutionID: "inst-1", GradeLabel: "6-02", AvailableSeats: 0},
			"course-x": {ID: "course-x", InstitutionID: "inst-2", GradeLabel: "1-01", AvailableSeats: 5},
		}},
		effects: &recordingDispatcher{},
	}
	deps := EnrollmentDeps{
		Requests:     f.requests,
		Enrollments:  f.enrolled,
		Documents:    f.documents,
		Courses:      f.courses,
		Institutions: &stubInstitutionAuthority{admins: map[string]string{"inst-1": "staff-user", "inst-2": "other-staff"}},
		Students: &stubStudentRepo{students: map[string]*models.Student{
			"s1": {ID: "s1", GuardianID: "g1", FirstName: "Sara"},
			"s2": {ID: "s2", GuardianID: "g2", FirstName: "Otro"},
		}},
		Guardians: &stubGuardianRepo{guardians: map[string]*models.Guardian{
			"guardian-user": {ID: "g1", UserID: "guardian-user"},
			"other-user":    {ID: "g2", UserID: "other-user"},
		}},
	}
	f.svc = NewEnrollmentService(deps, f.effects, NewMetricsService(), 0, nil, zap.NewNop())
	f.svc.now = func() time.Time { return time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC) }
	return f
}

var (
	guardianActor = models.Actor{UserID: "guardian-user", Role: models.RoleGuardian}
	staffActor    = models.Actor{UserID: "staff-user", Role: models.RoleStaff}
)

func courseRef(id string) *string { return &id }

func TestEnrollmentCreateSuccess(t *testing.T) {
	f := newEnrollmentFixture()
	out, err := f.svc.Create(context.Background(), guardianActor, dto.CreateEnrollmentRequest{StudentID: "s1", InstitutionID: "inst-1", CourseID: courseRef("course-1")})
	require.NoError(t, err)

	assert.Equal(t, dto.OutcomeOK, out.Status)
	assert.Equal(t, "req-new", out.RequestID)
	require.NotNil(t, out.ExpiresAt)
	assert.Equal(t, time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC), *out.ExpiresAt)
	require.Len(t, f.requests.created, 1)
	assert.Equal(t, models.RequestStatusPending, f.requests.created[0].Status)

	assert.Len(t, f.effects.ofKind(EffectNotification), 2)
	emails := f.effects.ofKind(EffectEmail)
	require.Len(t, emails, 2)
	assert.Equal(t, "gloria@example.com", emails[0].Email.To.Address)
	assert.Equal(t, "sandra@example.com", emails[1].Email.To.Address)
}

func TestEnrollmentCreateNotOwner(t *testing.T) {
	f := newEnrollmentFixture()
	_, err := f.svc.Create(context.Background(), guardianActor, dto.CreateEnrollmentRequest{StudentID: "s2", InstitutionID: "inst-1"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
	assert.Empty(t, f.requests.created)
}

func TestEnrollmentCreateCourseFromOtherInstitution(t *testing.T) {
	f := newEnrollmentFixture()
	_, err := f.svc.Create(context.Background(), guardianActor, dto.CreateEnrollmentRequest{StudentID: "s1", InstitutionID: "inst-1", CourseID: courseRef("course-x")})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidReference.Code, appErrors.FromError(err).Code)
}

func TestEnrollmentCreateAlreadyEnrolledHere(t *testing.T) {
	f := newEnrollmentFixture()
	f.enrolled.current = &models.Enrollment{InstitutionID: "inst-1", Status: models.EnrollmentStatusActive}
	// documents are irrelevant once an enrollment exists
	f.documents.bundles = nil

	out, err := f.svc.Create(context.Background(), guardianActor, dto.CreateEnrollmentRequest{StudentID: "s1", InstitutionID: "inst-1"})
	require.NoError(t, err)
	assert.Equal(t, dto.OutcomeRejected, out.Status)
	assert.Equal(t, models.ObservationAlreadyEnrolledHere, out.Message)
	require.Len(t, f.requests.created, 1)
	assert.Equal(t, models.RequestStatusRejected, f.requests.created[0].Status)
}

func TestEnrollmentCreateEnrolledElsewhere(t *testing.T) {
	f := newEnrollmentFixture()
	f.enrolled.current = &models.Enrollment{InstitutionID: "inst-2", Status: models.EnrollmentStatusActive}

	out, err := f.svc.Create(context.Background(), guardianActor, dto.CreateEnrollmentRequest{StudentID: "s1", InstitutionID: "inst-1"})
	require.NoError(t, err)
	assert.Equal(t, dto.OutcomeRejected, out.Status)
	assert.Contains(t, out.Message, "transfer")
}

func TestEnrollmentCreateMissingDocuments(t *testing.T) {
	f := newEnrollmentFixture()
	f.documents.bundles = nil

	_, err := f.svc.Create(context.Background(), guardianActor, dto.CreateEnrollmentRequest{StudentID: "s1", InstitutionID: "inst-1"})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrMissingDocuments.Code, appErr.Code)
	assert.Len(t, appErr.Details["missing_documents"], 8)
	assert.Empty(t, f.requests.created)
}

func TestEnrollmentCreateNoSeats(t *testing.T) {
	f := newEnrollmentFixture()
	_, err := f.svc.Create(context.Background(), guardianActor, dto.CreateEnrollmentRequest{StudentID: "s1", InstitutionID: "inst-1", CourseID: courseRef("course-0")})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNoSeatsAvailable.Code, appErrors.FromError(err).Code)
}

func TestEnrollmentCreateDuplicate(t *testing.T) {
	f := newEnrollmentFixture()
	f.requests.pending = true
	_, err := f.svc.Create(context.Background(), guardianActor, dto.CreateEnrollmentRequest{StudentID: "s1", InstitutionID: "inst-1"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrDuplicateRequest.Code, appErrors.FromError(err).Code)

	f.requests.pending = false
	f.requests.createErr = repository.ErrDuplicate
	_, err = f.svc.Create(context.Background(), guardianActor, dto.CreateEnrollmentRequest{StudentID: "s1", InstitutionID: "inst-1"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrDuplicateRequest.Code, appErrors.FromError(err).Code)
}

func pendingRequest(f *enrollmentFixture) {
	f.requests.requests["req-1"] = &models.EnrollmentRequest{
		ID: "req-1", GuardianID: "g1", StudentID: "s1", InstitutionID: "inst-1", Status: models.RequestStatusPending,
	}
}

func TestEnrollmentReviewAccept(t *testing.T) {
	f := newEnrollmentFixture()
	pendingRequest(f)
	course := "course-1"
	f.requests.acceptResult = repository.AcceptOutcome{
		Request: &models.EnrollmentRequest{ID: "req-1", Status: models.RequestStatusAccepted, CourseID: &course},
		Course:  &models.Course{ID: course, AvailableSeats: 0},
	}

	updated, err := f.svc.Review(context.Background(), staffActor, "req-1", dto.ReviewEnrollmentRequest{Action: "approve", Comments: "<b>bienvenida</b>"})
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusAccepted, updated.Status)
	assert.Equal(t, 1, f.requests.acceptCalls)

	audits := f.effects.ofKind(EffectAudit)
	require.Len(t, audits, 1)
	assert.Equal(t, models.AuditActionApprove, audits[0].Audit.Action)
	assert.Len(t, f.effects.ofKind(EffectEmail), 1)
}

func TestEnrollmentReviewAcceptRequiresDocuments(t *testing.T) {
	f := newEnrollmentFixture()
	pendingRequest(f)
	f.documents.bundles = nil

	_, err := f.svc.Review(context.Background(), staffActor, "req-1", dto.ReviewEnrollmentRequest{Action: "accept"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrMissingDocuments.Code, appErrors.FromError(err).Code)
	assert.Zero(t, f.requests.acceptCalls)
}

func TestEnrollmentReviewAcceptRaceLosesCleanly(t *testing.T) {
	f := newEnrollmentFixture()
	pendingRequest(f)
	f.requests.acceptErr = repository.ErrNotPending

	_, err := f.svc.Review(context.Background(), staffActor, "req-1", dto.ReviewEnrollmentRequest{Action: "accept"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrRequestNotPending.Code, appErrors.FromError(err).Code)
	assert.Empty(t, f.effects.ofKind(EffectAudit))
}

func TestEnrollmentReviewNotPending(t *testing.T) {
	f := newEnrollmentFixture()
	f.requests.requests["req-1"] = &models.EnrollmentRequest{ID: "req-1", InstitutionID: "inst-1", Status: models.RequestStatusAccepted}

	_, err := f.svc.Review(context.Background(), staffActor, "req-1", dto.ReviewEnrollmentRequest{Action: "accept"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrRequestNotPending.Code, appErrors.FromError(err).Code)
	assert.Zero(t, f.requests.acceptCalls)
}

func TestEnrollmentReviewHoldAndReject(t *testing.T) {
	f := newEnrollmentFixture()
	pendingRequest(f)

	held, err := f.svc.Review(context.Background(), staffActor, "req-1", dto.ReviewEnrollmentRequest{Action: "request_info", Comments: "falta firma"})
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusPending, held.Status)
	assert.Equal(t, "falta firma", held.Observation)

	rejected, err := f.svc.Review(context.Background(), staffActor, "req-1", dto.ReviewEnrollmentRequest{Action: "reject", Comments: "sin cupo"})
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusRejected, rejected.Status)
	assert.Equal(t, "falta firma\nsin cupo", rejected.Observation)
	assert.Equal(t, []models.RequestStatus{models.RequestStatusPending, models.RequestStatusRejected}, f.requests.transitions)
}

func TestEnrollmentHoldTellsGuardianUnderAdditionalReview(t *testing.T) {
	f := newEnrollmentFixture()
	pendingRequest(f)

	_, err := f.svc.Review(context.Background(), staffActor, "req-1", dto.ReviewEnrollmentRequest{Action: "hold"})
	require.NoError(t, err)

	notes := f.effects.ofKind(EffectNotification)
	require.Len(t, notes, 1)
	assert.Equal(t, "guardian-user", notes[0].Notification.RecipientUserID)
	assert.Contains(t, notes[0].Notification.Message, "revisión adicional")
	assert.NotContains(t, notes[0].Notification.Message, "pending")

	emails := f.effects.ofKind(EffectEmail)
	require.Len(t, emails, 1)
	assert.Equal(t, statusUnderReview, emails[0].Email.Data["Status"])
}

func TestEnrollmentRejectReportsNewStatus(t *testing.T) {
	f := newEnrollmentFixture()
	pendingRequest(f)

	_, err := f.svc.Review(context.Background(), staffActor, "req-1", dto.ReviewEnrollmentRequest{Action: "reject"})
	require.NoError(t, err)

	notes := f.effects.ofKind(EffectNotification)
	require.Len(t, notes, 1)
	assert.Contains(t, notes[0].Notification.Message, "cambió a")
}

func TestEnrollmentReviewRequiresInstitutionAdmin(t *testing.T) {
	f := newEnrollmentFixture()
	pendingRequest(f)

	outsider := models.Actor{UserID: "other-staff", Role: models.RoleStaff}
	_, err := f.svc.Review(context.Background(), outsider, "req-1", dto.ReviewEnrollmentRequest{Action: "reject"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	_, err = f.svc.Review(context.Background(), guardianActor, "req-1", dto.ReviewEnrollmentRequest{Action: "reject"})
	require.Error(t, err)
	assert.Empty(t, f.requests.transitions)
}

func TestEnrollmentReviewUnknownAction(t *testing.T) {
	f := newEnrollmentFixture()
	pendingRequest(f)
	_, err := f.svc.Review(context.Background(), staffActor, "req-1", dto.ReviewEnrollmentRequest{Action: "maybe"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestEnrollmentExpireIsIdempotent(t *testing.T) {
	f := newEnrollmentFixture()
	f.requests.expired = []string{"req-1", "req-2"}

	n, err := f.svc.Expire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Len(t, f.effects.ofKind(EffectEmail), 2)

	n, err = f.svc.Expire(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestEnrollmentListScopesByRole(t *testing.T) {
	f := newEnrollmentFixture()

	_, _, err := f.svc.List(context.Background(), guardianActor, models.EnrollmentRequestFilter{AdminUserID: "sneaky"})
	require.NoError(t, err)
	assert.Equal(t, "g1", f.requests.lastFilter.GuardianID)

	_, page, err := f.svc.List(context.Background(), staffActor, models.EnrollmentRequestFilter{Status: models.RequestStatusPending})
	require.NoError(t, err)
	assert.Equal(t, "staff-user", f.requests.lastFilter.AdminUserID)
	assert.Equal(t, models.RequestStatusPending, f.requests.lastFilter.Status)
	assert.Equal(t, 20, page.PageSize)
}

func TestEnrollmentGetIncludesDocumentStatus(t *testing.T) {
	f := newEnrollmentFixture()
	pendingRequest(f)

	detail, err := f.svc.Get(context.Background(), guardianActor, "req-1")
	require.NoError(t, err)
	assert.True(t, detail.Status.Complete)
	assert.Len(t, detail.Documents, 1)

	_, err = f.svc.Get(context.Background(), models.Actor{UserID: "other-user", Role: models.RoleGuardian}, "req-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestEnrollmentCertificate(t *testing.T) {
	f := newEnrollmentFixture()
	label := "6-01"
	f.enrolled.cert = &models.EnrollmentCertificate{
		EnrollmentID:    "0f1e2d3c-aaaa-bbbb-cccc-000000000000",
		StudentName:     "Sara Gómez",
		StudentDocument: "1020",
		InstitutionName: "IE Central",
		CourseLabel:     &label,
		GuardianUserID:  "guardian-user",
		AdminUserID:     "staff-user",
		RegisteredAt:    time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
	}

	pdf, err := f.svc.Certificate(context.Background(), guardianActor, "enr-1")
	require.NoError(t, err)
	assert.Equal(t, "%PDF", string(pdf[:4]))

	_, err = f.svc.Certificate(context.Background(), models.Actor{UserID: "stranger", Role: models.RoleGuardian}, "enr-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	assert.Equal(t, "2026-0f1e2d3c", certificateNumber(f.enrolled.cert.EnrollmentID, f.enrolled.cert.RegisteredAt))
}
