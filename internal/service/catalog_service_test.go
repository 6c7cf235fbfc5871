package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"path"
	"strings"
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

type memoryCache struct {
	values  map[string][]byte
	deleted []string
}

func newMemoryCache() *memoryCache { return &memoryCache{values: map[string][]byte{}} }

func (m *memoryCache) Get(ctx context.Context, key string, dest interface{}) error {
	raw, ok := m.values[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memoryCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.values[key] = raw
	return nil
}

func (m *memoryCache) DeleteByPattern(ctx context.Context, pattern string) error {
	m.deleted = append(m.deleted, pattern)
	for key := range m.values {
		if ok, _ := path.Match(pattern, key); ok {
			delete(m.values, key)
		}
	}
	return nil
}

type stubInstitutionStore struct {
	items     map[string]*models.Institution
	admins    map[string]string
	listCalls int
	createErr error
}

func (s *stubInstitutionStore) Create(ctx context.Context, inst *models.Institution) error {
	if s.createErr != nil {
		return s.createErr
	}
	inst.ID = "inst-new"
	s.items[inst.ID] = inst
	return nil
}

func (s *stubInstitutionStore) FindByID(ctx context.Context, id string) (*models.Institution, error) {
	if inst, ok := s.items[id]; ok {
		cp := *inst
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (s *stubInstitutionStore) IsAdministeredBy(ctx context.Context, institutionID, userID string) (bool, error) {
	return s.admins[institutionID] == userID, nil
}

func (s *stubInstitutionStore) List(ctx context.Context, filter models.InstitutionFilter) ([]models.Institution, int, error) {
	s.listCalls++
	var out []models.Institution
	for _, inst := range s.items {
		if strings.Contains(strings.ToLower(inst.Name), strings.ToLower(filter.Search)) {
			out = append(out, *inst)
		}
	}
	return out, len(out), nil
}

func (s *stubInstitutionStore) Update(ctx context.Context, inst *models.Institution) error {
	s.items[inst.ID] = inst
	return nil
}

func (s *stubInstitutionStore) SetDuplicateSlots(ctx context.Context, id string, allow bool) error {
	s.items[id].AllowDuplicateSubjectSlots = allow
	return nil
}

type stubCourseStore struct {
	courses     map[string]*models.Course
	listCalls   int
	provisioned [][]string
	roster      []models.RosterRow
}

func (s *stubCourseStore) FindByID(ctx context.Context, id string) (*models.Course, error) {
	if c, ok := s.courses[id]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (s *stubCourseStore) ListByInstitution(ctx context.Context, institutionID string) ([]models.Course, error) {
	s.listCalls++
	var out []models.Course
	for _, c := range s.courses {
		if c.InstitutionID == institutionID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (s *stubCourseStore) Create(ctx context.Context, c *models.Course) error {
	for _, existing := range s.courses {
		if existing.InstitutionID == c.InstitutionID && existing.GradeLabel == c.GradeLabel {
			return repository.ErrDuplicate
		}
	}
	c.ID = "course-" + c.GradeLabel
	s.courses[c.ID] = c
	return nil
}

func (s *stubCourseStore) UpdateSeats(ctx context.Context, id string, seats int) error {
	s.courses[id].AvailableSeats = seats
	return nil
}

func (s *stubCourseStore) Provision(ctx context.Context, institutionID string, labels []string, seats int) (models.ProvisionResult, error) {
	s.provisioned = append(s.provisioned, labels)
	var result models.ProvisionResult
	for _, label := range labels {
		if err := s.Create(ctx, &models.Course{InstitutionID: institutionID, GradeLabel: label, AvailableSeats: seats}); err != nil {
			result.Skipped++
			continue
		}
		result.Created++
	}
	return result, nil
}

func (s *stubCourseStore) DeleteByInstitution(ctx context.Context, institutionID string) (int, error) {
	n := 0
	for id, c := range s.courses {
		if c.InstitutionID == institutionID {
			delete(s.courses, id)
			n++
		}
	}
	return n, nil
}

func (s *stubCourseStore) Roster(ctx context.Context, institutionID string) ([]models.RosterRow, error) {
	return s.roster, nil
}

type catalogFixture struct {
	svc          *CatalogService
	institutions *stubInstitutionStore
	courses      *stubCourseStore
	cache        *memoryCache
	effects      *recordingDispatcher
}

func newCatalogFixture() *catalogFixture {
	f := &catalogFixture{
		institutions: &stubInstitutionStore{
			items: map[string]*models.Institution{
				"inst-1": {ID: "inst-1", Name: "Colegio Central", Municipality: "Bogota"},
				"inst-2": {ID: "inst-2", Name: "Liceo Norte", Municipality: "Tunja"},
			},
			admins: map[string]string{"inst-1": "staff-user"},
		},
		courses: &stubCourseStore{courses: map[string]*models.Course{
			"c1": {ID: "c1", InstitutionID: "inst-1", GradeLabel: "1-01", AvailableSeats: 30},
		}},
		cache:   newMemoryCache(),
		effects: &recordingDispatcher{},
	}
	metrics := NewMetricsService()
	cache := NewCacheService(f.cache, metrics, time.Minute, zap.NewNop(), true)
	f.svc = NewCatalogService(f.institutions, f.courses, cache, CatalogConfig{}, f.effects, metrics, nil, zap.NewNop())
	return f
}

func TestSearchInstitutionsUsesCache(t *testing.T) {
	f := newCatalogFixture()
	filter := models.InstitutionFilter{Search: "central"}

	items, page, hit, err := f.svc.SearchInstitutions(context.Background(), filter)
	require.NoError(t, err)
	assert.False(t, hit)
	require.Len(t, items, 1)
	assert.Equal(t, 1, page.TotalCount)

	items, _, hit, err = f.svc.SearchInstitutions(context.Background(), filter)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, "Colegio Central", items[0].Name)
	assert.Equal(t, 1, f.institutions.listCalls)
}

func TestUpdateInstitutionRequiresAdministrator(t *testing.T) {
	f := newCatalogFixture()
	name := "Colegio <i>Nuevo</i>"

	_, err := f.svc.UpdateInstitution(context.Background(), models.Actor{UserID: "intruder", Role: models.RoleStaff}, "inst-1", dto.UpdateInstitutionRequest{Name: &name})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	_, _, _, err = f.svc.SearchInstitutions(context.Background(), models.InstitutionFilter{})
	require.NoError(t, err)

	updated, err := f.svc.UpdateInstitution(context.Background(), staffActor, "inst-1", dto.UpdateInstitutionRequest{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Colegio Nuevo", updated.Name)
	assert.Empty(t, f.cache.values)
	assert.Len(t, f.effects.ofKind(EffectAudit), 1)
}

func TestCreateInstitutionAdminOnly(t *testing.T) {
	f := newCatalogFixture()
	req := dto.CreateInstitutionRequest{
		Name: "Nueva", Type: "publico", DaneCode: "123", Department: "Boyaca", Municipality: "Tunja", Address: "Cra 1", AdminID: "staff-1",
	}
	_, err := f.svc.CreateInstitution(context.Background(), staffActor, req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	f.institutions.createErr = repository.ErrDuplicate
	_, err = f.svc.CreateInstitution(context.Background(), approvalAdmin, req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestListCoursesCachesPerInstitution(t *testing.T) {
	f := newCatalogFixture()
	courses, hit, err := f.svc.ListCourses(context.Background(), "inst-1")
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Len(t, courses, 1)

	_, hit, err = f.svc.ListCourses(context.Background(), "inst-1")
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 1, f.courses.listCalls)

	_, err = f.svc.CreateCourse(context.Background(), staffActor, "inst-1", dto.CreateCourseRequest{GradeLabel: "1-02", Seats: 25})
	require.NoError(t, err)
	assert.Contains(t, f.cache.deleted, courseListKey("inst-1"))

	courses, hit, err = f.svc.ListCourses(context.Background(), "inst-1")
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Len(t, courses, 2)
}

func TestCreateCourseDuplicateLabel(t *testing.T) {
	f := newCatalogFixture()
	_, err := f.svc.CreateCourse(context.Background(), staffActor, "inst-1", dto.CreateCourseRequest{GradeLabel: "1-01", Seats: 10})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestProvisionIsIdempotent(t *testing.T) {
	f := newCatalogFixture()
	f.courses.courses = map[string]*models.Course{}
	cfg := models.ProvisionConfig{Mode: models.CourseModePrimary, Sections: 3}

	first, err := f.svc.Provision(context.Background(), staffActor, "inst-1", cfg)
	require.NoError(t, err)
	assert.Equal(t, models.ProvisionResult{Created: 15, Skipped: 0}, first)
	assert.Equal(t, "1-01", f.courses.provisioned[0][0])
	assert.Equal(t, "5-03", f.courses.provisioned[0][14])

	second, err := f.svc.Provision(context.Background(), staffActor, "inst-1", cfg)
	require.NoError(t, err)
	assert.Equal(t, models.ProvisionResult{Created: 0, Skipped: 15}, second)
}

func TestProvisionRejectsBadCustomRange(t *testing.T) {
	f := newCatalogFixture()
	start, end := 7, 2
	_, err := f.svc.Provision(context.Background(), staffActor, "inst-1", models.ProvisionConfig{Mode: models.CourseModeCustom, StartGrade: &start, EndGrade: &end})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestClearCoursesRequiresConfirmation(t *testing.T) {
	f := newCatalogFixture()
	_, err := f.svc.ClearCourses(context.Background(), staffActor, "inst-1", false)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
	assert.Len(t, f.courses.courses, 1)

	deleted, err := f.svc.ClearCourses(context.Background(), staffActor, "inst-1", true)
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)
	assert.Empty(t, f.courses.courses)
}

func TestUpdateSeatsResetsCounter(t *testing.T) {
	f := newCatalogFixture()
	course, err := f.svc.UpdateSeats(context.Background(), staffActor, "c1", dto.UpdateSeatsRequest{AvailableSeats: 40})
	require.NoError(t, err)
	assert.Equal(t, 40, course.AvailableSeats)

	_, err = f.svc.UpdateSeats(context.Background(), staffActor, "missing", dto.UpdateSeatsRequest{AvailableSeats: 1})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestExportRoster(t *testing.T) {
	f := newCatalogFixture()
	name, doc := "Sara Perez", "1001"
	registered := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	f.courses.roster = []models.RosterRow{
		{CourseLabel: "1-01", AvailableSeats: 29, StudentName: &name, DocumentNumber: &doc, RegisteredAt: &registered},
		{CourseLabel: "1-02", AvailableSeats: 30},
	}

	csvFile, err := f.svc.ExportRoster(context.Background(), staffActor, "inst-1", ExportCSV)
	require.NoError(t, err)
	assert.Equal(t, "cursos-colegio-central.csv", csvFile.Filename)
	body := string(csvFile.Content)
	assert.Contains(t, body, "Curso,Cupos disponibles,Estudiante,Documento,Matriculado")
	assert.Contains(t, body, "1-01,29,Sara Perez,1001,2026-02-01")

	pdfFile, err := f.svc.ExportRoster(context.Background(), staffActor, "inst-1", ExportPDF)
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", pdfFile.ContentType)
	assert.True(t, strings.HasPrefix(string(pdfFile.Content), "%PDF"))

	_, err = f.svc.ExportRoster(context.Background(), staffActor, "inst-1", "xls")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
