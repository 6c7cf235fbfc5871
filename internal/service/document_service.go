package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/matrischol-api/internal/dto"
	"github.com/noah-isme/matrischol-api/internal/models"
	appErrors "github.com/noah-isme/matrischol-api/pkg/errors"
	"github.com/noah-isme/matrischol-api/pkg/sanitize"
	"github.com/noah-isme/matrischol-api/pkg/storage"
)

type documentStore interface {
	FindByID(ctx context.Context, id string) (*models.DocumentBundle, error)
	ListForStudent(ctx context.Context, studentID string) ([]models.DocumentBundle, error)
	SetSlot(ctx context.Context, studentID string, slot models.DocumentSlot, value string) (*models.DocumentBundle, error)
}

type documentFiles interface {
	Save(relPath string, data []byte) (string, error)
	Open(relPath string) (*os.File, error)
	Exists(relPath string) bool
	Delete(relPath string) error
}

type studentOwnership interface {
	OwnedStudent(ctx context.Context, actor models.Actor, id string) (*models.Student, *models.Guardian, error)
}

type downloadSigner interface {
	Generate(documentID, relPath string) (string, time.Time, error)
	Parse(token string) (documentID, relPath string, err error)
}

// DocumentConfig bounds uploads and shapes download links.
type DocumentConfig struct {
	APIPrefix    string
	MaxFileBytes int64
	AllowedMIMEs []string
}

// DocumentService manages the per-student document bundles.
type DocumentService struct {
	documents documentStore
	students  studentOwnership
	files     documentFiles
	photos    photoNormalizer
	signer    downloadSigner
	cfg       DocumentConfig
	validator *validator.Validate
	logger    *zap.Logger
}

// NewDocumentService constructs the service.
func NewDocumentService(documents documentStore, students studentOwnership, files documentFiles, photos photoNormalizer, signer downloadSigner, cfg DocumentConfig, validate *validator.Validate, logger *zap.Logger) *DocumentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if cfg.MaxFileBytes <= 0 {
		cfg.MaxFileBytes = 5 << 20
	}
	if len(cfg.AllowedMIMEs) == 0 {
		cfg.AllowedMIMEs = []string{"application/pdf", "image/jpeg", "image/png"}
	}
	return &DocumentService{
		documents: documents,
		students:  students,
		files:     files,
		photos:    photos,
		signer:    signer,
		cfg:       cfg,
		validator: validate,
		logger:    logger,
	}
}

// List returns the bundles attached to a student and to the student's latest enrollment.
func (s *DocumentService) List(ctx context.Context, actor models.Actor, studentID string) ([]models.DocumentBundle, error) {
	if _, _, err := s.students.OwnedStudent(ctx, actor, studentID); err != nil {
		return nil, err
	}
	bundles, err := s.documents.ListForStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list documents")
	}
	if bundles == nil {
		bundles = []models.DocumentBundle{}
	}
	return bundles, nil
}

// Status reports which mandatory slots are still empty for the student.
func (s *DocumentService) Status(ctx context.Context, actor models.Actor, studentID string) (*models.DocumentStatus, error) {
	student, guardian, err := s.students.OwnedStudent(ctx, actor, studentID)
	if err != nil {
		return nil, err
	}
	bundles, err := s.documents.ListForStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list documents")
	}
	missing := MissingDocuments(bundles, *student, *guardian)
	if missing == nil {
		missing = []models.DocumentSlot{}
	}
	return &models.DocumentStatus{StudentID: studentID, Complete: len(missing) == 0, Missing: missing}, nil
}

// Upload stores a file in a slot of the student's bundle. Images uploaded as the student photo
// are normalized before storage.
func (s *DocumentService) Upload(ctx context.Context, actor models.Actor, studentID string, upload dto.DocumentUpload) (*models.DocumentBundle, error) {
	slot, ok := models.ParseDocumentSlot(upload.Slot)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown document slot %q", upload.Slot))
	}
	if err := s.requireWriter(ctx, actor, studentID); err != nil {
		return nil, err
	}
	if len(upload.Content) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "file is empty")
	}
	if int64(len(upload.Content)) > s.cfg.MaxFileBytes || upload.Size > s.cfg.MaxFileBytes {
		return nil, appErrors.WithDetails(appErrors.ErrValidation, map[string]interface{}{"max_bytes": s.cfg.MaxFileBytes})
	}

	detected := mimetype.Detect(upload.Content)
	if !s.allowed(detected) {
		return nil, appErrors.WithDetails(appErrors.ErrValidation, map[string]interface{}{"content_type": detected.String()})
	}

	content, filename := upload.Content, upload.Filename
	if slot == models.SlotStudentPhoto && strings.HasPrefix(detected.String(), "image/") && s.photos != nil {
		normalized, err := s.photos.Normalize(content)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "photo is not a valid image")
		}
		content = normalized
		filename = strings.TrimSuffix(path.Base(filename), path.Ext(filename)) + ".jpg"
	} else if path.Ext(filename) == "" {
		filename += detected.Extension()
	}

	relPath, err := s.files.Save(storage.DocumentPath(studentID, string(slot), filename), content)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store document")
	}
	bundle, err := s.documents.SetSlot(ctx, studentID, slot, relPath)
	if err != nil {
		if delErr := s.files.Delete(relPath); delErr != nil {
			s.logger.Warn("failed to remove orphaned upload", zap.String("path", relPath), zap.Error(delErr))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record document")
	}
	return bundle, nil
}

// Placeholder records a free-text value in a slot, for documents delivered on paper.
func (s *DocumentService) Placeholder(ctx context.Context, actor models.Actor, studentID string, req dto.DocumentPlaceholderRequest) (*models.DocumentBundle, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid document payload")
	}
	slot, ok := models.ParseDocumentSlot(req.Slot)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown document slot %q", req.Slot))
	}
	if err := s.requireWriter(ctx, actor, studentID); err != nil {
		return nil, err
	}
	value := sanitize.Text(req.Value, 255)
	if value == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "value is empty")
	}
	bundle, err := s.documents.SetSlot(ctx, studentID, slot, value)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record document")
	}
	return bundle, nil
}

// Link issues a signed, expiring download link for a stored file of a bundle.
func (s *DocumentService) Link(ctx context.Context, actor models.Actor, bundleID string, req dto.DocumentLinkRequest) (*models.DocumentLink, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid link payload")
	}
	slot, ok := models.ParseDocumentSlot(req.Slot)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown document slot %q", req.Slot))
	}
	bundle, err := s.documents.FindByID(ctx, bundleID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "document bundle not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load document bundle")
	}
	switch {
	case bundle.StudentID != nil:
		if _, _, err := s.students.OwnedStudent(ctx, actor, *bundle.StudentID); err != nil {
			return nil, err
		}
	case !actor.IsAdmin():
		// enrollment-only bundles have no guardian-facing owner
		return nil, appErrors.Clone(appErrors.ErrForbidden, "")
	}

	relPath := bundle.Value(slot)
	if relPath == "" || !s.files.Exists(relPath) {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "slot has no stored file")
	}
	token, expiresAt, err := s.signer.Generate(bundle.ID, relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download link")
	}
	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}
	return &models.DocumentLink{
		Token:     token,
		URL:       fmt.Sprintf("%s/documents/download?token=%s", prefix, token),
		ExpiresAt: expiresAt,
	}, nil
}

// Open resolves a signed token into the stored file. The caller closes the file.
func (s *DocumentService) Open(token string) (*os.File, string, error) {
	_, relPath, err := s.signer.Parse(token)
	if err != nil {
		if errors.Is(err, storage.ErrTokenExpired) {
			return nil, "", appErrors.Clone(appErrors.ErrForbidden, "download link expired")
		}
		return nil, "", appErrors.Clone(appErrors.ErrForbidden, "invalid download link")
	}
	f, err := s.files.Open(relPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, "", appErrors.Clone(appErrors.ErrNotFound, "document not found")
		}
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open document")
	}
	return f, path.Base(relPath), nil
}

// requireWriter allows the owning guardian and the global administrator to change a bundle.
func (s *DocumentService) requireWriter(ctx context.Context, actor models.Actor, studentID string) error {
	if actor.Role != models.RoleGuardian && !actor.IsAdmin() {
		return appErrors.Clone(appErrors.ErrForbidden, "only the guardian may change documents")
	}
	_, _, err := s.students.OwnedStudent(ctx, actor, studentID)
	return err
}

func (s *DocumentService) allowed(detected *mimetype.MIME) bool {
	for _, allowed := range s.cfg.AllowedMIMEs {
		if detected.Is(strings.TrimSpace(allowed)) {
			return true
		}
	}
	return false
}
