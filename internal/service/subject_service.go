package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/matrischol-api/internal/dto"
	"github.com/noah-isme/matrischol-api/internal/models"
	"github.com/noah-isme/matrischol-api/internal/repository"
	appErrors "github.com/noah-isme/matrischol-api/pkg/errors"
	"github.com/noah-isme/matrischol-api/pkg/sanitize"
)

type subjectRepository interface {
	FindByID(ctx context.Context, id string) (*models.Subject, error)
	FindByName(ctx context.Context, name string) (*models.Subject, error)
	List(ctx context.Context, search string) ([]models.Subject, error)
	Create(ctx context.Context, s *models.Subject) error
}

// SubjectService manages the global subject pool.
type SubjectService struct {
	repo      subjectRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSubjectService creates a new subject service.
func NewSubjectService(repo subjectRepository, validate *validator.Validate, logger *zap.Logger) *SubjectService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SubjectService{repo: repo, validator: validate, logger: logger}
}

// List returns subjects whose name contains search.
func (s *SubjectService) List(ctx context.Context, search string) ([]models.Subject, error) {
	subjects, err := s.repo.List(ctx, sanitize.Text(search, 120))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list subjects")
	}
	return subjects, nil
}

// Create adds a subject, or returns the existing one when the name is already in the pool.
func (s *SubjectService) Create(ctx context.Context, req dto.CreateSubjectRequest) (*dto.SubjectResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid subject payload")
	}
	name := sanitize.Text(req.Name, 120)
	if name == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "name is required")
	}

	if existing, err := s.lookup(ctx, name); err != nil || existing != nil {
		return existing, err
	}

	subject := &models.Subject{Name: name}
	if err := s.repo.Create(ctx, subject); err != nil {
		// lost a race with a concurrent insert of the same name
		if errors.Is(err, repository.ErrDuplicate) {
			if existing, lookupErr := s.lookup(ctx, name); lookupErr == nil && existing != nil {
				return existing, nil
			}
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create subject")
	}
	return &dto.SubjectResponse{ID: subject.ID, Name: subject.Name}, nil
}

func (s *SubjectService) lookup(ctx context.Context, name string) (*dto.SubjectResponse, error) {
	existing, err := s.repo.FindByName(ctx, name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to look up subject")
	}
	return &dto.SubjectResponse{ID: existing.ID, Name: existing.Name, Reused: true}, nil
}
