package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/matrischol-api/internal/dto"
	"github.com/noah-isme/matrischol-api/internal/models"
	"github.com/noah-isme/matrischol-api/internal/repository"
	appErrors "github.com/noah-isme/matrischol-api/pkg/errors"
)

type userRepository interface {
	List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, user *models.User, profile repository.AccountProfile) error
	Update(ctx context.Context, user *models.User) error
	Delete(ctx context.Context, id string) error
	UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error
}

// UserService handles user management workflows.
type UserService struct {
	repo      userRepository
	validator *validator.Validate
	logger    *zap.Logger
	effects   effectDispatcher
}

// NewUserService creates an instance of UserService.
func NewUserService(repo userRepository, validate *validator.Validate, logger *zap.Logger, effects effectDispatcher) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &UserService{repo: repo, validator: validate, logger: logger, effects: effects}
}

// List returns paginated users and pagination metadata.
func (s *UserService) List(ctx context.Context, filter models.UserFilter) ([]models.User, *models.Pagination, error) {
	users, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list users")
	}

	page, pageSize := models.NormalizePage(filter.Page, filter.PageSize)
	return users, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// Get returns a user by ID.
func (s *UserService) Get(ctx context.Context, id string) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	return user, nil
}

// Create adds a new user of any role together with the matching profile record.
func (s *UserService) Create(ctx context.Context, actor models.Actor, req dto.CreateUserRequest) (*models.User, error) {
	req.Email = normalizeEmail(req.Email)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid create user payload")
	}
	role, err := models.ParseRole(req.Role)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}

	if _, err := s.repo.FindByEmail(ctx, req.Email); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "email already exists")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check email uniqueness")
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	user := &models.User{
		Email:          req.Email,
		PasswordHash:   string(passwordHash),
		FirstName:      strings.TrimSpace(req.FirstName),
		LastName:       strings.TrimSpace(req.LastName),
		DocumentNumber: strings.TrimSpace(req.DocumentNumber),
		Phone:          strings.TrimSpace(req.Phone),
		Role:           role,
		Active:         true,
	}

	var profile repository.AccountProfile
	switch role {
	case models.RoleGuardian:
		profile.Guardian = &models.Guardian{DocumentNumber: user.DocumentNumber, Phone: user.Phone}
	case models.RoleStaff:
		profile.Staff = &models.Staff{Position: strings.TrimSpace(req.Position)}
	case models.RoleTeacher:
		if req.InstitutionID == "" {
			return nil, appErrors.WithDetails(appErrors.ErrValidation, map[string]interface{}{"missing_fields": []string{"institution_id"}})
		}
		profile.Teacher = &models.Teacher{InstitutionID: req.InstitutionID, Specialty: strings.TrimSpace(req.Specialty)}
	}

	if err := s.repo.Create(ctx, user, profile); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "email already exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create user")
	}

	s.dispatch(ctx, AuditEffect(newAuditEntry(actor, models.AuditActionCreate, "user", user.Email,
		map[string]interface{}{"id": user.ID, "role": user.Role})))

	return user, nil
}

// EnsureAdmin creates the bootstrap administrator, or turns an existing account with the same
// email into an active ADMIN with the given password and names. It reports whether a new
// account was created.
func (s *UserService) EnsureAdmin(ctx context.Context, req dto.EnsureAdminRequest) (bool, error) {
	req.Email = normalizeEmail(req.Email)
	if err := s.validator.Struct(req); err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid admin account")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	existing, err := s.repo.FindByEmail(ctx, req.Email)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to look up admin")
	}

	if existing == nil {
		user := &models.User{
			Email:        req.Email,
			PasswordHash: string(hash),
			FirstName:    strings.TrimSpace(req.FirstName),
			LastName:     strings.TrimSpace(req.LastName),
			Role:         models.RoleAdmin,
			Active:       true,
		}
		if err := s.repo.Create(ctx, user, repository.AccountProfile{}); err != nil {
			return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create admin")
		}
		s.dispatch(ctx, AuditEffect(newAuditEntry(models.Actor{UserID: user.ID, Role: models.RoleAdmin}, models.AuditActionCreate, "user", user.Email,
			map[string]interface{}{"id": user.ID, "role": user.Role, "source": "ensure-admin"})))
		return true, nil
	}

	before := map[string]interface{}{"role": existing.Role, "active": existing.Active}
	existing.Role = models.RoleAdmin
	existing.Active = true
	if name := strings.TrimSpace(req.FirstName); name != "" {
		existing.FirstName = name
	}
	if name := strings.TrimSpace(req.LastName); name != "" {
		existing.LastName = name
	}
	if err := s.repo.Update(ctx, existing); err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update admin")
	}
	if err := s.repo.UpdatePassword(ctx, existing.ID, string(hash), time.Now().UTC()); err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update admin password")
	}
	s.dispatch(ctx, AuditEffect(newAuditEntry(models.Actor{UserID: existing.ID, Role: models.RoleAdmin}, models.AuditActionUpdate, "user", existing.Email,
		map[string]interface{}{"before": before, "source": "ensure-admin"})))
	return false, nil
}

// Update modifies profile fields, role or the active flag. An admin cannot demote or deactivate themselves.
func (s *UserService) Update(ctx context.Context, actor models.Actor, id string, req dto.UpdateUserRequest) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid update payload")
	}

	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	before := map[string]interface{}{"role": user.Role, "active": user.Active}

	if req.Role != nil {
		role, err := models.ParseRole(*req.Role)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
		}
		if user.ID == actor.UserID && role != user.Role {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "administrators cannot change their own role")
		}
		user.Role = role
	}
	if req.Active != nil {
		if user.ID == actor.UserID && !*req.Active {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "administrators cannot deactivate themselves")
		}
		user.Active = *req.Active
	}
	if req.FirstName != nil {
		user.FirstName = strings.TrimSpace(*req.FirstName)
	}
	if req.LastName != nil {
		user.LastName = strings.TrimSpace(*req.LastName)
	}
	if req.Phone != nil {
		user.Phone = strings.TrimSpace(*req.Phone)
	}

	if err := s.repo.Update(ctx, user); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update user")
	}

	s.dispatch(ctx, AuditEffect(newAuditEntry(actor, models.AuditActionUpdate, "user", user.Email, map[string]interface{}{
		"before": before,
		"after":  map[string]interface{}{"role": user.Role, "active": user.Active},
	})))

	return user, nil
}

// Delete performs a soft delete (inactive) on a user.
func (s *UserService) Delete(ctx context.Context, actor models.Actor, id string) error {
	if id == actor.UserID {
		return appErrors.Clone(appErrors.ErrForbidden, "administrators cannot deactivate themselves")
	}
	user, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete user")
	}

	s.dispatch(ctx, AuditEffect(newAuditEntry(actor, models.AuditActionDelete, "user", user.Email, map[string]interface{}{"id": user.ID})))
	return nil
}

func (s *UserService) dispatch(ctx context.Context, effects ...Effect) {
	if s.effects != nil {
		s.effects.Dispatch(ctx, effects...)
	}
}
