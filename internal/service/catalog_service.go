package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/matrischol-api/internal/dto"
	"github.com/noah-isme/matrischol-api/internal/models"
	"github.com/noah-isme/matrischol-api/internal/repository"
	appErrors "github.com/noah-isme/matrischol-api/pkg/errors"
	"github.com/noah-isme/matrischol-api/pkg/export"
	"github.com/noah-isme/matrischol-api/pkg/sanitize"
)

type institutionStore interface {
	Create(ctx context.Context, inst *models.Institution) error
	FindByID(ctx context.Context, id string) (*models.Institution, error)
	IsAdministeredBy(ctx context.Context, institutionID, userID string) (bool, error)
	List(ctx context.Context, filter models.InstitutionFilter) ([]models.Institution, int, error)
	Update(ctx context.Context, inst *models.Institution) error
	SetDuplicateSlots(ctx context.Context, id string, allow bool) error
}

type courseStore interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
	ListByInstitution(ctx context.Context, institutionID string) ([]models.Course, error)
	Create(ctx context.Context, c *models.Course) error
	UpdateSeats(ctx context.Context, id string, seats int) error
	Provision(ctx context.Context, institutionID string, labels []string, seats int) (models.ProvisionResult, error)
	DeleteByInstitution(ctx context.Context, institutionID string) (int, error)
	Roster(ctx context.Context, institutionID string) ([]models.RosterRow, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ExportFormat selects the roster rendering.
type ExportFormat string

const (
	ExportCSV ExportFormat = "csv"
	ExportPDF ExportFormat = "pdf"
)

// RenderedFile is a generated download.
type RenderedFile struct {
	Filename    string
	ContentType string
	Content     []byte
}

type institutionPage struct {
	Items []models.Institution `json:"items"`
	Total int                  `json:"total"`
}

// CatalogService manages institutions and their courses.
type CatalogService struct {
	institutions institutionStore
	courses      courseStore
	cache        *CacheService
	cacheTTL     time.Duration
	effects      effectDispatcher
	metrics      *MetricsService
	csv          csvRenderer
	pdf          pdfRenderer
	validator    *validator.Validate
	logger       *zap.Logger
}

// CatalogConfig tunes catalog caching.
type CatalogConfig struct {
	CacheTTL time.Duration
}

// NewCatalogService constructs the service. cache may be nil.
func NewCatalogService(institutions institutionStore, courses courseStore, cache *CacheService, cfg CatalogConfig, effects effectDispatcher, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *CatalogService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &CatalogService{
		institutions: institutions,
		courses:      courses,
		cache:        cache,
		cacheTTL:     cfg.CacheTTL,
		effects:      effects,
		metrics:      metrics,
		csv:          export.NewCSVExporter(),
		pdf:          export.NewPDFExporter(),
		validator:    validate,
		logger:       logger,
	}
}

// SearchInstitutions lists institutions by name, DANE code or municipality. Results are cached.
func (s *CatalogService) SearchInstitutions(ctx context.Context, filter models.InstitutionFilter) ([]models.Institution, *models.Pagination, bool, error) {
	filter.Search = strings.TrimSpace(filter.Search)
	filter.Page, filter.PageSize = models.NormalizePage(filter.Page, filter.PageSize)
	pagination := &models.Pagination{Page: filter.Page, PageSize: filter.PageSize}

	key := institutionSearchKey(filter)
	var cached institutionPage
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		pagination.TotalCount = cached.Total
		return cached.Items, pagination, true, nil
	}

	items, total, err := s.institutions.List(ctx, filter)
	if err != nil {
		return nil, nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list institutions")
	}
	if items == nil {
		items = []models.Institution{}
	}
	_ = s.cache.Set(ctx, key, institutionPage{Items: items, Total: total}, s.cacheTTL)
	pagination.TotalCount = total
	return items, pagination, false, nil
}

// GetInstitution returns one institution.
func (s *CatalogService) GetInstitution(ctx context.Context, id string) (*models.Institution, error) {
	inst, err := s.institutions.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "institution not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load institution")
	}
	return inst, nil
}

// CreateInstitution lets the global administrator register an institution directly.
func (s *CatalogService) CreateInstitution(ctx context.Context, actor models.Actor, req dto.CreateInstitutionRequest) (*models.Institution, error) {
	if !actor.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid institution payload")
	}
	inst := &models.Institution{
		Name:         sanitize.Text(req.Name, 200),
		Type:         sanitize.Text(req.Type, 60),
		DaneCode:     strings.TrimSpace(req.DaneCode),
		Department:   sanitize.Text(req.Department, 120),
		Municipality: sanitize.Text(req.Municipality, 120),
		Address:      sanitize.Text(req.Address, 255),
		Phone:        strings.TrimSpace(req.Phone),
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		AdminID:      req.AdminID,
	}
	if err := s.institutions.Create(ctx, inst); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "an institution with this DANE code already exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create institution")
	}
	s.cache.InvalidateInstitutions(ctx)
	s.dispatch(ctx, AuditEffect(newAuditEntry(actor, models.AuditActionCreate, "institution", inst.Name, map[string]interface{}{"id": inst.ID})))
	return inst, nil
}

// UpdateInstitution edits contact and location fields. Only the administrator of the institution
// or the global administrator may edit it.
func (s *CatalogService) UpdateInstitution(ctx context.Context, actor models.Actor, id string, req dto.UpdateInstitutionRequest) (*models.Institution, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid institution payload")
	}
	inst, err := s.authorizedInstitution(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	assign := func(dst *string, src *string, limit int) {
		if src != nil {
			*dst = sanitize.Text(*src, limit)
		}
	}
	assign(&inst.Name, req.Name, 200)
	assign(&inst.Type, req.Type, 60)
	assign(&inst.Department, req.Department, 120)
	assign(&inst.Municipality, req.Municipality, 120)
	assign(&inst.Address, req.Address, 255)
	if req.Phone != nil {
		inst.Phone = strings.TrimSpace(*req.Phone)
	}
	if req.Email != nil {
		inst.Email = strings.ToLower(strings.TrimSpace(*req.Email))
	}

	if err := s.institutions.Update(ctx, inst); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update institution")
	}
	s.cache.InvalidateInstitutions(ctx)
	s.dispatch(ctx, AuditEffect(newAuditEntry(actor, models.AuditActionUpdate, "institution", inst.Name, map[string]interface{}{"id": inst.ID})))
	return inst, nil
}

// SetDuplicateSlots toggles whether the institution accepts repeated subject slots.
func (s *CatalogService) SetDuplicateSlots(ctx context.Context, actor models.Actor, id string, allow bool) (*models.Institution, error) {
	inst, err := s.authorizedInstitution(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if err := s.institutions.SetDuplicateSlots(ctx, id, allow); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update institution")
	}
	inst.AllowDuplicateSubjectSlots = allow
	s.cache.InvalidateInstitutions(ctx)
	return inst, nil
}

// ListCourses returns the courses of an institution. Results are cached.
func (s *CatalogService) ListCourses(ctx context.Context, institutionID string) ([]models.Course, bool, error) {
	key := courseListKey(institutionID)
	var cached []models.Course
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return cached, true, nil
	}
	if _, err := s.GetInstitution(ctx, institutionID); err != nil {
		return nil, false, err
	}
	courses, err := s.courses.ListByInstitution(ctx, institutionID)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list courses")
	}
	if courses == nil {
		courses = []models.Course{}
	}
	_ = s.cache.Set(ctx, key, courses, s.cacheTTL)
	return courses, false, nil
}

// CreateCourse adds one course to an institution.
func (s *CatalogService) CreateCourse(ctx context.Context, actor models.Actor, institutionID string, req dto.CreateCourseRequest) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}
	if _, err := s.authorizedInstitution(ctx, actor, institutionID); err != nil {
		return nil, err
	}
	course := &models.Course{
		InstitutionID:  institutionID,
		GradeLabel:     strings.TrimSpace(req.GradeLabel),
		AvailableSeats: req.Seats,
	}
	if err := s.courses.Create(ctx, course); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("course %s already exists", course.GradeLabel))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create course")
	}
	s.cache.InvalidateCourses(ctx, institutionID)
	s.dispatch(ctx, AuditEffect(newAuditEntry(actor, models.AuditActionCreate, "course", course.GradeLabel, map[string]interface{}{"id": course.ID, "institution_id": institutionID})))
	return course, nil
}

// UpdateSeats resets the seat counter of a course.
func (s *CatalogService) UpdateSeats(ctx context.Context, actor models.Actor, courseID string, req dto.UpdateSeatsRequest) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid seats payload")
	}
	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	if _, err := s.authorizedInstitution(ctx, actor, course.InstitutionID); err != nil {
		return nil, err
	}
	if err := s.courses.UpdateSeats(ctx, courseID, req.AvailableSeats); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update seats")
	}
	before := course.AvailableSeats
	course.AvailableSeats = req.AvailableSeats
	s.cache.InvalidateCourses(ctx, course.InstitutionID)
	s.dispatch(ctx, AuditEffect(newAuditEntry(actor, models.AuditActionUpdate, "course", course.GradeLabel,
		map[string]interface{}{"id": course.ID, "before": before, "after": course.AvailableSeats})))
	return course, nil
}

// Provision bulk-creates grade x section courses. Existing labels are skipped, so reruns are harmless.
func (s *CatalogService) Provision(ctx context.Context, actor models.Actor, institutionID string, cfg models.ProvisionConfig) (models.ProvisionResult, error) {
	if err := s.validator.Struct(cfg); err != nil {
		return models.ProvisionResult{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid provisioning payload")
	}
	if _, err := s.authorizedInstitution(ctx, actor, institutionID); err != nil {
		return models.ProvisionResult{}, err
	}
	labels, err := cfg.Labels()
	if err != nil {
		return models.ProvisionResult{}, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	result, err := s.courses.Provision(ctx, institutionID, labels, cfg.Seats())
	if err != nil {
		return models.ProvisionResult{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to provision courses")
	}
	s.metrics.RecordProvision(result)
	s.cache.InvalidateCourses(ctx, institutionID)
	s.dispatch(ctx, AuditEffect(newAuditEntry(actor, models.AuditActionCreate, "course", fmt.Sprintf("%s x%d", cfg.Mode, len(labels)),
		map[string]interface{}{"institution_id": institutionID, "created": result.Created, "skipped": result.Skipped})))
	return result, nil
}

// ClearCourses deletes every course of the institution. confirm must be true.
func (s *CatalogService) ClearCourses(ctx context.Context, actor models.Actor, institutionID string, confirm bool) (int, error) {
	if !confirm {
		return 0, appErrors.Clone(appErrors.ErrPreconditionFailed, "clearing courses requires confirm=true")
	}
	inst, err := s.authorizedInstitution(ctx, actor, institutionID)
	if err != nil {
		return 0, err
	}
	deleted, err := s.courses.DeleteByInstitution(ctx, institutionID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to clear courses")
	}
	s.cache.InvalidateCourses(ctx, institutionID)
	s.logger.Info("courses cleared", zap.String("institution_id", institutionID), zap.Int("deleted", deleted))
	s.dispatch(ctx, AuditEffect(newAuditEntry(actor, models.AuditActionDelete, "course", inst.Name, map[string]interface{}{"institution_id": institutionID, "deleted": deleted})))
	return deleted, nil
}

// ExportRoster renders the institution's courses and enrolled students as CSV or PDF.
func (s *CatalogService) ExportRoster(ctx context.Context, actor models.Actor, institutionID string, format ExportFormat) (*RenderedFile, error) {
	inst, err := s.authorizedInstitution(ctx, actor, institutionID)
	if err != nil {
		return nil, err
	}
	rows, err := s.courses.Roster(ctx, institutionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load roster")
	}

	dataset := rosterDataset(rows)
	base := fmt.Sprintf("cursos-%s", sanitizeFilename(inst.Name))
	switch format {
	case ExportCSV, "":
		payload, err := s.csv.Render(dataset)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render roster")
		}
		return &RenderedFile{Filename: base + ".csv", ContentType: "text/csv", Content: payload}, nil
	case ExportPDF:
		payload, err := s.pdf.Render(dataset, "Cursos - "+inst.Name)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render roster")
		}
		return &RenderedFile{Filename: base + ".pdf", ContentType: "application/pdf", Content: payload}, nil
	}
	return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported format %q", format))
}

func rosterDataset(rows []models.RosterRow) export.Dataset {
	dataset := export.Dataset{Headers: []string{"Curso", "Cupos disponibles", "Estudiante", "Documento", "Matriculado"}}
	for _, row := range rows {
		dataset.Append(
			row.CourseLabel,
			fmt.Sprintf("%d", row.AvailableSeats),
			deref(row.StudentName),
			deref(row.DocumentNumber),
			formatDate(row.RegisteredAt),
		)
	}
	return dataset
}

func deref(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}

func formatDate(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}

func sanitizeFilename(raw string) string {
	raw = strings.ToLower(strings.TrimSpace(raw))
	var b strings.Builder
	for _, r := range raw {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '_':
			b.WriteRune('-')
		}
	}
	if b.Len() == 0 {
		return "institucion"
	}
	return b.String()
}

// authorizedInstitution loads the institution and requires the actor to administer it.
func (s *CatalogService) authorizedInstitution(ctx context.Context, actor models.Actor, id string) (*models.Institution, error) {
	inst, err := s.GetInstitution(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.IsAdmin() {
		return inst, nil
	}
	ok, err := s.institutions.IsAdministeredBy(ctx, id, actor.UserID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check institution administrator")
	}
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "caller does not administer this institution")
	}
	return inst, nil
}

func (s *CatalogService) dispatch(ctx context.Context, effects ...Effect) {
	if s.effects != nil && len(effects) > 0 {
		s.effects.Dispatch(ctx, effects...)
	}
}
