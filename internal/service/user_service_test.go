package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/matrischol-api/internal/dto"
	"github.com/noah-isme/matrischol-api/internal/models"
	"github.com/noah-isme/matrischol-api/internal/repository"
	appErrors "github.com/noah-isme/matrischol-api/pkg/errors"
)

type mockUserRepo struct {
	users          map[string]*models.User
	profiles       map[string]repository.AccountProfile
	listUsers      []models.User
	listCount      int
	listErr        error
	findByIDErr    error
	findByEmailErr error
	createErr      error
}

func (m *mockUserRepo) List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	if m.listErr != nil {
		return nil, 0, m.listErr
	}
	if m.listUsers != nil {
		return m.listUsers, m.listCount, nil
	}
	var users []models.User
	for _, u := range m.users {
		users = append(users, *u)
	}
	return users, len(users), nil
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if m.findByIDErr != nil {
		return nil, m.findByIDErr
	}
	if user, ok := m.users[id]; ok {
		copy := *user
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.findByEmailErr != nil {
		return nil, m.findByEmailErr
	}
	for _, u := range m.users {
		if u.Email == email {
			copy := *u
			return &copy, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) Create(ctx context.Context, user *models.User, profile repository.AccountProfile) error {
	if m.createErr != nil {
		return m.createErr
	}
	if m.users == nil {
		m.users = make(map[string]*models.User)
	}
	if m.profiles == nil {
		m.profiles = make(map[string]repository.AccountProfile)
	}
	user.ID = "new-user"
	copy := *user
	m.users[user.ID] = &copy
	m.profiles[user.ID] = profile
	return nil
}

func (m *mockUserRepo) Update(ctx context.Context, user *models.User) error {
	copy := *user
	m.users[user.ID] = &copy
	return nil
}

func (m *mockUserRepo) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	user, ok := m.users[id]
	if !ok {
		return sql.ErrNoRows
	}
	user.PasswordHash = passwordHash
	return nil
}

func (m *mockUserRepo) Delete(ctx context.Context, id string) error {
	if user, ok := m.users[id]; ok {
		user.Active = false
		return nil
	}
	return sql.ErrNoRows
}

var adminActor = models.Actor{UserID: "admin-1", Role: models.RoleAdmin, Email: "admin@example.com", IP: "10.0.0.1"}

func TestUserServiceList(t *testing.T) {
	repo := &mockUserRepo{listUsers: []models.User{{ID: "1", Email: "a@example.com"}}, listCount: 1}
	svc := NewUserService(repo, validator.New(), zap.NewNop(), nil)
	users, pagination, err := svc.List(context.Background(), models.UserFilter{Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.Len(t, users, 1)
	assert.Equal(t, 1, pagination.TotalCount)
	assert.Equal(t, 10, pagination.PageSize)
}

func TestUserServiceCreateTeacher(t *testing.T) {
	repo := &mockUserRepo{}
	effects := &recordingDispatcher{}
	svc := NewUserService(repo, validator.New(), zap.NewNop(), effects)

	user, err := svc.Create(context.Background(), adminActor, dto.CreateUserRequest{
		Email:         " Teacher@Example.com ",
		Password:      "secret123",
		FirstName:     "Ana",
		Role:          "maestro",
		InstitutionID: "inst-1",
		Specialty:     "Math",
	})
	require.NoError(t, err)
	assert.Equal(t, "teacher@example.com", user.Email)
	assert.Equal(t, models.RoleTeacher, user.Role)
	require.NotNil(t, repo.profiles["new-user"].Teacher)
	assert.Equal(t, "inst-1", repo.profiles["new-user"].Teacher.InstitutionID)

	audits := effects.ofKind(EffectAudit)
	require.Len(t, audits, 1)
	assert.Equal(t, models.AuditActionCreate, audits[0].Audit.Action)
	assert.Equal(t, "10.0.0.1", audits[0].Audit.IPAddress)
}

func TestUserServiceCreateTeacherNeedsInstitution(t *testing.T) {
	svc := NewUserService(&mockUserRepo{}, validator.New(), zap.NewNop(), nil)
	_, err := svc.Create(context.Background(), adminActor, dto.CreateUserRequest{
		Email: "t@example.com", Password: "secret123", FirstName: "T", Role: "TEACHER",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestUserServiceCreateRejectsUnknownRole(t *testing.T) {
	svc := NewUserService(&mockUserRepo{}, validator.New(), zap.NewNop(), nil)
	_, err := svc.Create(context.Background(), adminActor, dto.CreateUserRequest{
		Email: "x@example.com", Password: "secret123", FirstName: "X", Role: "janitor",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestUserServiceCreateDuplicate(t *testing.T) {
	repo := &mockUserRepo{createErr: repository.ErrDuplicate}
	svc := NewUserService(repo, validator.New(), zap.NewNop(), nil)
	_, err := svc.Create(context.Background(), adminActor, dto.CreateUserRequest{
		Email: "g@example.com", Password: "secret123", FirstName: "G", Role: "guardian",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestUserServiceUpdate(t *testing.T) {
	repo := &mockUserRepo{users: map[string]*models.User{"1": {ID: "1", Email: "a@example.com", FirstName: "Old", Role: models.RoleTeacher, Active: true}}}
	effects := &recordingDispatcher{}
	svc := NewUserService(repo, validator.New(), zap.NewNop(), effects)
	active := false
	role := "staff"
	name := "New"
	user, err := svc.Update(context.Background(), adminActor, "1", dto.UpdateUserRequest{FirstName: &name, Role: &role, Active: &active})
	require.NoError(t, err)
	assert.Equal(t, models.RoleStaff, user.Role)
	assert.False(t, user.Active)
	assert.Equal(t, "New", repo.users["1"].FirstName)
	assert.Len(t, effects.ofKind(EffectAudit), 1)
}

func TestUserServiceUpdateSelfDemotionForbidden(t *testing.T) {
	repo := &mockUserRepo{users: map[string]*models.User{"admin-1": {ID: "admin-1", Role: models.RoleAdmin, Active: true}}}
	svc := NewUserService(repo, validator.New(), zap.NewNop(), nil)

	role := "guardian"
	_, err := svc.Update(context.Background(), adminActor, "admin-1", dto.UpdateUserRequest{Role: &role})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	active := false
	_, err = svc.Update(context.Background(), adminActor, "admin-1", dto.UpdateUserRequest{Active: &active})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestUserServiceDelete(t *testing.T) {
	repo := &mockUserRepo{users: map[string]*models.User{"1": {ID: "1", Email: "a@example.com", Role: models.RoleTeacher, Active: true}}}
	effects := &recordingDispatcher{}
	svc := NewUserService(repo, validator.New(), zap.NewNop(), effects)
	err := svc.Delete(context.Background(), adminActor, "1")
	require.NoError(t, err)
	assert.False(t, repo.users["1"].Active)
	assert.Len(t, effects.ofKind(EffectAudit), 1)
}

func TestUserServiceDeleteSelfForbidden(t *testing.T) {
	svc := NewUserService(&mockUserRepo{}, validator.New(), zap.NewNop(), nil)
	err := svc.Delete(context.Background(), adminActor, "admin-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestUserServiceCreateNormalizesEmailBeforeLookup(t *testing.T) {
	repo := &mockUserRepo{users: map[string]*models.User{"1": {ID: "1", Email: "taken@example.com", Role: models.RoleGuardian, Active: true}}}
	svc := NewUserService(repo, validator.New(), zap.NewNop(), nil)

	_, err := svc.Create(context.Background(), adminActor, dto.CreateUserRequest{
		Email: "  Taken@Example.com ", Password: "secret123", FirstName: "T", Role: "guardian",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestUserServiceEnsureAdminCreates(t *testing.T) {
	repo := &mockUserRepo{}
	effects := &recordingDispatcher{}
	svc := NewUserService(repo, validator.New(), zap.NewNop(), effects)

	created, err := svc.EnsureAdmin(context.Background(), dto.EnsureAdminRequest{
		Email: " Root@Matrischol.local", Password: "changeme123", FirstName: "Admin", LastName: "User",
	})
	require.NoError(t, err)
	assert.True(t, created)

	user := repo.users["new-user"]
	require.NotNil(t, user)
	assert.Equal(t, "root@matrischol.local", user.Email)
	assert.Equal(t, models.RoleAdmin, user.Role)
	assert.True(t, user.Active)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("changeme123")))
	assert.Len(t, effects.ofKind(EffectAudit), 1)
}

func TestUserServiceEnsureAdminPromotesExisting(t *testing.T) {
	repo := &mockUserRepo{users: map[string]*models.User{
		"7": {ID: "7", Email: "root@matrischol.local", FirstName: "Old", Role: models.RoleGuardian, Active: false, PasswordHash: "stale"},
	}}
	svc := NewUserService(repo, validator.New(), zap.NewNop(), nil)

	created, err := svc.EnsureAdmin(context.Background(), dto.EnsureAdminRequest{
		Email: "root@matrischol.local", Password: "changeme123", FirstName: "Admin",
	})
	require.NoError(t, err)
	assert.False(t, created)

	user := repo.users["7"]
	assert.Equal(t, models.RoleAdmin, user.Role)
	assert.True(t, user.Active)
	assert.Equal(t, "Admin", user.FirstName)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("changeme123")))
	assert.Len(t, repo.users, 1)
}

func TestUserServiceEnsureAdminRequiresCredentials(t *testing.T) {
	svc := NewUserService(&mockUserRepo{}, validator.New(), zap.NewNop(), nil)
	_, err := svc.EnsureAdmin(context.Background(), dto.EnsureAdminRequest{Email: "root@matrischol.local", Password: "short"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
