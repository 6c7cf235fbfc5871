package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/matrischol-api/internal/dto"
	"github.com/noah-isme/matrischol-api/internal/models"
	appErrors "github.com/noah-isme/matrischol-api/pkg/errors"
	"github.com/noah-isme/matrischol-api/pkg/geocode"
)

type addressGeocoder interface {
	Search(ctx context.Context, address string) (geocode.Result, error)
}

type guardianRepository interface {
	FindByID(ctx context.Context, id string) (*models.Guardian, error)
	FindByUserID(ctx context.Context, userID string) (*models.Guardian, error)
	FindProfileByUserID(ctx context.Context, userID string) (*models.GuardianProfile, error)
	Update(ctx context.Context, g *models.Guardian) error
}

type studentRepository interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
	ListByGuardian(ctx context.Context, guardianID string) ([]models.Student, error)
	Create(ctx context.Context, s *models.Student) error
	UpdatePhoto(ctx context.Context, id, path string) error
}

type photoNormalizer interface {
	Normalize(data []byte) ([]byte, error)
}

type fileStore interface {
	Save(relPath string, data []byte) (string, error)
	Delete(relPath string) error
}

// locate geocodes address, returning a non-OK result on any failure.
func locate(ctx context.Context, g addressGeocoder, address string, logger *zap.Logger) geocode.Result {
	if g == nil || strings.TrimSpace(address) == "" {
		return geocode.Result{}
	}
	res, err := g.Search(ctx, address)
	if err != nil {
		logger.Warn("address lookup failed", zap.Error(err))
		return geocode.Result{}
	}
	return res
}

// applyLocation copies coordinates onto the guardian when the lookup succeeded.
func applyLocation(g *models.Guardian, res geocode.Result) {
	if !res.OK {
		return
	}
	lat, lon, importance := res.Lat, res.Lon, res.Importance
	g.Latitude = &lat
	g.Longitude = &lon
	g.LocationAccuracy = &importance
}

// ProfileService manages guardian profiles and the students they own.
type ProfileService struct {
	guardians guardianRepository
	students  studentRepository
	geocoder  addressGeocoder
	photos    photoNormalizer
	files     fileStore
	validator *validator.Validate
	logger    *zap.Logger
}

// NewProfileService constructs a ProfileService. geocoder may be nil.
func NewProfileService(guardians guardianRepository, students studentRepository, geocoder addressGeocoder, photos photoNormalizer, files fileStore, validate *validator.Validate, logger *zap.Logger) *ProfileService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &ProfileService{
		guardians: guardians,
		students:  students,
		geocoder:  geocoder,
		photos:    photos,
		files:     files,
		validator: validate,
		logger:    logger,
	}
}

// GetGuardian returns the caller's guardian profile.
func (s *ProfileService) GetGuardian(ctx context.Context, actor models.Actor) (*models.GuardianProfile, error) {
	profile, err := s.guardians.FindProfileByUserID(ctx, actor.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "guardian profile not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load guardian profile")
	}
	return profile, nil
}

// UpdateGuardian edits the caller's guardian profile. A changed address without explicit
// coordinates is geocoded; a failed lookup keeps the previous coordinates.
func (s *ProfileService) UpdateGuardian(ctx context.Context, actor models.Actor, req dto.UpdateGuardianRequest) (*models.GuardianProfile, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid guardian payload")
	}
	guardian, err := s.guardianFor(ctx, actor)
	if err != nil {
		return nil, err
	}

	if req.DocumentNumber != nil {
		guardian.DocumentNumber = strings.TrimSpace(*req.DocumentNumber)
	}
	if req.Phone != nil {
		guardian.Phone = strings.TrimSpace(*req.Phone)
	}

	explicitCoords := req.Latitude != nil && req.Longitude != nil
	if explicitCoords {
		guardian.Latitude = req.Latitude
		guardian.Longitude = req.Longitude
		guardian.LocationAccuracy = req.Accuracy
	}
	if req.Address != nil {
		address := strings.TrimSpace(*req.Address)
		changed := !guardian.HasAddress() || *guardian.Address != address
		if address == "" {
			guardian.Address = nil
		} else {
			guardian.Address = &address
		}
		if changed && address != "" && !explicitCoords {
			applyLocation(guardian, locate(ctx, s.geocoder, address, s.logger))
		}
	}

	if err := s.guardians.Update(ctx, guardian); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update guardian profile")
	}
	return s.GetGuardian(ctx, actor)
}

// ListStudents returns the caller's students.
func (s *ProfileService) ListStudents(ctx context.Context, actor models.Actor) ([]models.Student, error) {
	guardian, err := s.guardianFor(ctx, actor)
	if err != nil {
		return nil, err
	}
	students, err := s.students.ListByGuardian(ctx, guardian.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	return students, nil
}

// CreateStudent registers a student owned by the caller.
func (s *ProfileService) CreateStudent(ctx context.Context, actor models.Actor, req dto.CreateStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}
	guardian, err := s.guardianFor(ctx, actor)
	if err != nil {
		return nil, err
	}

	student := &models.Student{
		GuardianID:     guardian.ID,
		FirstName:      strings.TrimSpace(req.FirstName),
		LastName:       strings.TrimSpace(req.LastName),
		DocumentType:   strings.ToUpper(strings.TrimSpace(req.DocumentType)),
		DocumentNumber: strings.TrimSpace(req.DocumentNumber),
		Phone:          strings.TrimSpace(req.Phone),
	}
	if req.BirthDate != "" {
		birth, err := time.Parse("2006-01-02", req.BirthDate)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "birth_date must be YYYY-MM-DD")
		}
		student.BirthDate = &birth
	}

	if err := s.students.Create(ctx, student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create student")
	}
	return student, nil
}

// GetStudent returns a student the actor may see.
func (s *ProfileService) GetStudent(ctx context.Context, actor models.Actor, id string) (*models.Student, error) {
	student, _, err := s.OwnedStudent(ctx, actor, id)
	return student, err
}

// OwnedStudent loads the student and its guardian, enforcing that a guardian caller owns it.
// Admin and staff callers may read any student.
func (s *ProfileService) OwnedStudent(ctx context.Context, actor models.Actor, id string) (*models.Student, *models.Guardian, error) {
	student, err := s.students.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	guardian, err := s.guardians.FindByID(ctx, student.GuardianID)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load guardian")
	}
	if actor.Role == models.RoleGuardian && guardian.UserID != actor.UserID {
		return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "student does not belong to the caller")
	}
	return student, guardian, nil
}

// UploadPhoto normalizes and stores a student photo, replacing the previous one.
func (s *ProfileService) UploadPhoto(ctx context.Context, actor models.Actor, id string, data []byte) (*models.Student, error) {
	student, _, err := s.OwnedStudent(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if s.photos == nil || s.files == nil {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "photo storage is not configured")
	}

	normalized, err := s.photos.Normalize(data)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "photo is not a valid image")
	}
	path, err := s.files.Save(fmt.Sprintf("students/%s/photo-%s.jpg", student.ID, uuid.NewString()), normalized)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store photo")
	}
	if err := s.students.UpdatePhoto(ctx, student.ID, path); err != nil {
		_ = s.files.Delete(path)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update student photo")
	}

	if student.HasPhoto() {
		if err := s.files.Delete(*student.PhotoPath); err != nil {
			s.logger.Warn("failed to remove previous photo", zap.String("student_id", student.ID), zap.Error(err))
		}
	}
	student.PhotoPath = &path
	return student, nil
}

func (s *ProfileService) guardianFor(ctx context.Context, actor models.Actor) (*models.Guardian, error) {
	guardian, err := s.guardians.FindByUserID(ctx, actor.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "caller has no guardian profile")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load guardian profile")
	}
	return guardian, nil
}
