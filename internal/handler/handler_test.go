package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/matrischol-api/internal/dto"
	"github.com/noah-isme/matrischol-api/internal/middleware"
	"github.com/noah-isme/matrischol-api/internal/models"
	"github.com/noah-isme/matrischol-api/internal/service"
	appErrors "github.com/noah-isme/matrischol-api/pkg/errors"
)

var (
	adminActor    = models.Actor{UserID: "admin", Role: models.RoleAdmin}
	guardianActor = models.Actor{UserID: "guardian", Role: models.RoleGuardian}
)

func newTestContext(method, target string, body []byte, actor *models.Actor) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(method, target, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	if actor != nil {
		c.Set(middleware.ContextActorKey, *actor)
	}
	return c, w
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

type enrollmentServiceStub struct {
	outcome   *dto.EnrollmentRequestOutcome
	createErr error
	reviewErr error
	expired   int
	lastActor models.Actor
}

func (s *enrollmentServiceStub) Create(ctx context.Context, actor models.Actor, req dto.CreateEnrollmentRequest) (*dto.EnrollmentRequestOutcome, error) {
	s.lastActor = actor
	if s.createErr != nil {
		return nil, s.createErr
	}
	return s.outcome, nil
}

func (s *enrollmentServiceStub) Review(ctx context.Context, actor models.Actor, id string, req dto.ReviewEnrollmentRequest) (*models.EnrollmentRequest, error) {
	if s.reviewErr != nil {
		return nil, s.reviewErr
	}
	return &models.EnrollmentRequest{ID: id}, nil
}

func (s *enrollmentServiceStub) Expire(ctx context.Context) (int, error) {
	return s.expired, nil
}

func (s *enrollmentServiceStub) List(ctx context.Context, actor models.Actor, filter models.EnrollmentRequestFilter) ([]models.EnrollmentRequest, *models.Pagination, error) {
	return []models.EnrollmentRequest{}, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize}, nil
}

func (s *enrollmentServiceStub) Get(ctx context.Context, actor models.Actor, id string) (*dto.EnrollmentRequestDetail, error) {
	return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment request not found")
}

func (s *enrollmentServiceStub) Certificate(ctx context.Context, actor models.Actor, enrollmentID string) ([]byte, error) {
	return []byte("%PDF-1.4"), nil
}

func TestEnrollmentCreateStatusFollowsOutcome(t *testing.T) {
	stub := &enrollmentServiceStub{outcome: &dto.EnrollmentRequestOutcome{Status: dto.OutcomeOK, RequestID: "r1"}}
	h := NewEnrollmentHandler(stub)
	body, _ := json.Marshal(dto.CreateEnrollmentRequest{StudentID: "s1", InstitutionID: "i1"})

	c, w := newTestContext(http.MethodPost, "/enrollment-requests", body, &guardianActor)
	h.Create(c)
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "guardian", stub.lastActor.UserID)

	stub.outcome = &dto.EnrollmentRequestOutcome{Status: dto.OutcomeRejected, Message: "no seats"}
	c, w = newTestContext(http.MethodPost, "/enrollment-requests", body, &guardianActor)
	h.Create(c)
	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeEnvelope(t, w)["data"].(map[string]interface{})
	assert.Equal(t, "rejected", data["status"])
	assert.NotContains(t, decodeEnvelope(t, w), "status")
}

func TestEnrollmentCreateFailureCarriesErrorStatus(t *testing.T) {
	missing := appErrors.WithDetails(appErrors.Clone(appErrors.ErrMissingDocuments, ""), map[string]interface{}{
		"missing_documents": []string{"birth_certificate"},
	})
	h := NewEnrollmentHandler(&enrollmentServiceStub{createErr: missing})
	body, _ := json.Marshal(dto.CreateEnrollmentRequest{StudentID: "s1", InstitutionID: "i1"})

	c, w := newTestContext(http.MethodPost, "/enrollment-requests", body, &guardianActor)
	h.Create(c)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	envelope := decodeEnvelope(t, w)
	assert.Equal(t, "error", envelope["status"])
	assert.Nil(t, envelope["data"])
	errBody := envelope["error"].(map[string]interface{})
	assert.Equal(t, "MISSING_DOCUMENTS", errBody["code"])
	details := errBody["details"].(map[string]interface{})
	assert.Equal(t, []interface{}{"birth_certificate"}, details["missing_documents"])
}

func TestEnrollmentCreateRequiresActor(t *testing.T) {
	h := NewEnrollmentHandler(&enrollmentServiceStub{})
	c, w := newTestContext(http.MethodPost, "/enrollment-requests", []byte(`{}`), nil)
	h.Create(c)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestEnrollmentReviewSurfacesConflict(t *testing.T) {
	h := NewEnrollmentHandler(&enrollmentServiceStub{reviewErr: appErrors.Clone(appErrors.ErrRequestNotPending, "")})
	c, w := newTestContext(http.MethodPost, "/enrollment-requests/r1/actions", []byte(`{"action":"accept"}`), &adminActor)
	c.Params = gin.Params{{Key: "id", Value: "r1"}}
	h.Review(c)
	assert.Equal(t, appErrors.ErrRequestNotPending.Status, w.Code)
}

func TestEnrollmentListPagination(t *testing.T) {
	h := NewEnrollmentHandler(&enrollmentServiceStub{})
	c, w := newTestContext(http.MethodGet, "/enrollment-requests?page=3&page_size=5&status=PENDING", nil, &adminActor)
	h.List(c)
	require.Equal(t, http.StatusOK, w.Code)
	pagination := decodeEnvelope(t, w)["pagination"].(map[string]interface{})
	assert.EqualValues(t, 3, pagination["page"])
	assert.EqualValues(t, 5, pagination["page_size"])
}

func TestEnrollmentCertificateAttachment(t *testing.T) {
	h := NewEnrollmentHandler(&enrollmentServiceStub{})
	c, w := newTestContext(http.MethodGet, "/enrollments/e1/certificate", nil, &guardianActor)
	c.Params = gin.Params{{Key: "id", Value: "e1"}}
	h.Certificate(c)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "certificado-matricula-e1.pdf")
}

type catalogServiceStub struct {
	hit         bool
	lastConfirm bool
	lastFilter  models.InstitutionFilter
}

func (s *catalogServiceStub) SearchInstitutions(ctx context.Context, filter models.InstitutionFilter) ([]models.Institution, *models.Pagination, bool, error) {
	s.lastFilter = filter
	return []models.Institution{{ID: "i1", Name: "Colegio"}}, &models.Pagination{Page: 1, PageSize: 20, TotalCount: 1}, s.hit, nil
}

func (s *catalogServiceStub) GetInstitution(ctx context.Context, id string) (*models.Institution, error) {
	return &models.Institution{ID: id}, nil
}

func (s *catalogServiceStub) CreateInstitution(ctx context.Context, actor models.Actor, req dto.CreateInstitutionRequest) (*models.Institution, error) {
	return &models.Institution{ID: "new"}, nil
}

func (s *catalogServiceStub) UpdateInstitution(ctx context.Context, actor models.Actor, id string, req dto.UpdateInstitutionRequest) (*models.Institution, error) {
	return &models.Institution{ID: id}, nil
}

func (s *catalogServiceStub) SetDuplicateSlots(ctx context.Context, actor models.Actor, id string, allow bool) (*models.Institution, error) {
	return &models.Institution{ID: id, AllowDuplicateSubjectSlots: allow}, nil
}

func (s *catalogServiceStub) ListCourses(ctx context.Context, institutionID string) ([]models.Course, bool, error) {
	return []models.Course{}, s.hit, nil
}

func (s *catalogServiceStub) CreateCourse(ctx context.Context, actor models.Actor, institutionID string, req dto.CreateCourseRequest) (*models.Course, error) {
	return &models.Course{ID: "c1"}, nil
}

func (s *catalogServiceStub) UpdateSeats(ctx context.Context, actor models.Actor, courseID string, req dto.UpdateSeatsRequest) (*models.Course, error) {
	return &models.Course{ID: courseID, AvailableSeats: req.AvailableSeats}, nil
}

func (s *catalogServiceStub) Provision(ctx context.Context, actor models.Actor, institutionID string, cfg models.ProvisionConfig) (models.ProvisionResult, error) {
	return models.ProvisionResult{Created: 5}, nil
}

func (s *catalogServiceStub) ClearCourses(ctx context.Context, actor models.Actor, institutionID string, confirm bool) (int, error) {
	s.lastConfirm = confirm
	if !confirm {
		return 0, appErrors.Clone(appErrors.ErrPreconditionFailed, "confirmation required")
	}
	return 4, nil
}

func (s *catalogServiceStub) ExportRoster(ctx context.Context, actor models.Actor, institutionID string, format service.ExportFormat) (*service.RenderedFile, error) {
	return &service.RenderedFile{Filename: "cursos-colegio." + string(format), ContentType: "text/csv", Content: []byte("Curso\n")}, nil
}

func TestCatalogSearchReportsCacheHit(t *testing.T) {
	stub := &catalogServiceStub{hit: true}
	h := NewCatalogHandler(stub)
	c, w := newTestContext(http.MethodGet, "/institutions?q=+Colegio+&municipality=Cali", nil, nil)
	h.SearchInstitutions(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Colegio", stub.lastFilter.Search)
	assert.Equal(t, "Cali", stub.lastFilter.Municipality)
	meta := decodeEnvelope(t, w)["meta"].(map[string]interface{})
	assert.Equal(t, true, meta["cache_hit"])
}

func TestCatalogClearCoursesNeedsConfirm(t *testing.T) {
	stub := &catalogServiceStub{}
	h := NewCatalogHandler(stub)

	c, w := newTestContext(http.MethodDelete, "/institutions/i1/courses", nil, &adminActor)
	c.Params = gin.Params{{Key: "id", Value: "i1"}}
	h.ClearCourses(c)
	assert.Equal(t, http.StatusPreconditionFailed, w.Code)

	c, w = newTestContext(http.MethodDelete, "/institutions/i1/courses?confirm=true", nil, &adminActor)
	c.Params = gin.Params{{Key: "id", Value: "i1"}}
	h.ClearCourses(c)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, stub.lastConfirm)
}

func TestCatalogExportValidatesFormat(t *testing.T) {
	h := NewCatalogHandler(&catalogServiceStub{})

	c, w := newTestContext(http.MethodGet, "/institutions/i1/courses/export?format=xlsx", nil, &adminActor)
	h.ExportCourses(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	c, w = newTestContext(http.MethodGet, "/institutions/i1/courses/export", nil, &adminActor)
	h.ExportCourses(c)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "cursos-colegio.csv")
}

type subjectServiceStub struct {
	reused bool
}

func (s *subjectServiceStub) List(ctx context.Context, search string) ([]models.Subject, error) {
	return []models.Subject{}, nil
}

func (s *subjectServiceStub) Create(ctx context.Context, req dto.CreateSubjectRequest) (*dto.SubjectResponse, error) {
	return &dto.SubjectResponse{ID: "sub", Name: req.Name, Reused: s.reused}, nil
}

func TestSubjectCreateReuseReturnsOK(t *testing.T) {
	body := []byte(`{"name":"Matemáticas"}`)

	c, w := newTestContext(http.MethodPost, "/subjects", body, &adminActor)
	NewSubjectHandler(&subjectServiceStub{}).Create(c)
	assert.Equal(t, http.StatusCreated, w.Code)

	c, w = newTestContext(http.MethodPost, "/subjects", body, &adminActor)
	NewSubjectHandler(&subjectServiceStub{reused: true}).Create(c)
	assert.Equal(t, http.StatusOK, w.Code)
}

type documentServiceStub struct {
	upload      dto.DocumentUpload
	placeholder dto.DocumentPlaceholderRequest
}

func (s *documentServiceStub) List(ctx context.Context, actor models.Actor, studentID string) ([]models.DocumentBundle, error) {
	return nil, nil
}

func (s *documentServiceStub) Status(ctx context.Context, actor models.Actor, studentID string) (*models.DocumentStatus, error) {
	return &models.DocumentStatus{StudentID: studentID}, nil
}

func (s *documentServiceStub) Upload(ctx context.Context, actor models.Actor, studentID string, upload dto.DocumentUpload) (*models.DocumentBundle, error) {
	s.upload = upload
	return &models.DocumentBundle{ID: "b1", StudentID: &studentID}, nil
}

func (s *documentServiceStub) Placeholder(ctx context.Context, actor models.Actor, studentID string, req dto.DocumentPlaceholderRequest) (*models.DocumentBundle, error) {
	s.placeholder = req
	return &models.DocumentBundle{ID: "b1", StudentID: &studentID}, nil
}

func (s *documentServiceStub) Link(ctx context.Context, actor models.Actor, bundleID string, req dto.DocumentLinkRequest) (*models.DocumentLink, error) {
	return &models.DocumentLink{Token: "t"}, nil
}

func (s *documentServiceStub) Open(token string) (*os.File, string, error) {
	return nil, "", appErrors.Clone(appErrors.ErrForbidden, "invalid download link")
}

func TestDocumentSaveMultipartUpload(t *testing.T) {
	stub := &documentServiceStub{}
	h := NewDocumentHandler(stub, 1<<20)

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	require.NoError(t, form.WriteField("slot", "civil_registry"))
	part, err := form.CreateFormFile("file", "registro.pdf")
	require.NoError(t, err)
	_, _ = part.Write([]byte("%PDF-1.4 body"))
	require.NoError(t, form.Close())

	c, w := newTestContext(http.MethodPost, "/students/s1/documents", buf.Bytes(), &guardianActor)
	c.Request.Header.Set("Content-Type", form.FormDataContentType())
	c.Params = gin.Params{{Key: "id", Value: "s1"}}
	h.Save(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "civil_registry", stub.upload.Slot)
	assert.Equal(t, "registro.pdf", stub.upload.Filename)
	assert.Equal(t, []byte("%PDF-1.4 body"), stub.upload.Content)
}

func TestDocumentSaveJSONPlaceholder(t *testing.T) {
	stub := &documentServiceStub{}
	h := NewDocumentHandler(stub, 0)
	c, w := newTestContext(http.MethodPost, "/students/s1/documents", []byte(`{"slot":"vaccination_card","value":"en papel"}`), &guardianActor)
	c.Params = gin.Params{{Key: "id", Value: "s1"}}
	h.Save(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "vaccination_card", stub.placeholder.Slot)
	assert.Empty(t, stub.upload.Slot)
}

func TestDocumentDownloadRequiresToken(t *testing.T) {
	h := NewDocumentHandler(&documentServiceStub{}, 0)

	c, w := newTestContext(http.MethodGet, "/documents/download", nil, nil)
	h.Download(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	c, w = newTestContext(http.MethodGet, "/documents/download?token=bogus", nil, nil)
	h.Download(c)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestAuditFilterRejectsBadDates(t *testing.T) {
	c, _ := newTestContext(http.MethodGet, "/audit-logs?from=yesterday", nil, &adminActor)
	_, err := auditFilter(c)
	require.Error(t, err)

	c, _ = newTestContext(http.MethodGet, "/audit-logs?from=2026-01-02&to=2026-02-01T10:00:00Z&action=export", nil, &adminActor)
	filter, err := auditFilter(c)
	require.NoError(t, err)
	require.NotNil(t, filter.From)
	require.NotNil(t, filter.To)
	assert.Equal(t, 2, filter.From.Day())
	assert.Equal(t, models.AuditActionExport, filter.Action)
}

func TestMeListsCapabilities(t *testing.T) {
	h := NewAuthHandler(nil)
	c, w := newTestContext(http.MethodGet, "/me", nil, &guardianActor)
	h.Me(c)
	require.Equal(t, http.StatusOK, w.Code)

	data := decodeEnvelope(t, w)["data"].(map[string]interface{})
	assert.Contains(t, data["capabilities"], string(models.CapSubmitEnrollmentRequests))
	assert.NotContains(t, data["capabilities"], string(models.CapViewAuditLog))
}
