package service

import (
	"bytes"
	"context"
	"database/sql"
	"image"
	"image/color"
	"image/png"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/matrischol-api/internal/dto"
	"github.com/noah-isme/matrischol-api/internal/models"
	appErrors "github.com/noah-isme/matrischol-api/pkg/errors"
	"github.com/noah-isme/matrischol-api/pkg/storage"
)

type memoryDocuments struct {
	bundles map[string]*models.DocumentBundle
}

func (m *memoryDocuments) FindByID(ctx context.Context, id string) (*models.DocumentBundle, error) {
	if b, ok := m.bundles[id]; ok {
		return b, nil
	}
	return nil, sql.ErrNoRows
}

func (m *memoryDocuments) ListForStudent(ctx context.Context, studentID string) ([]models.DocumentBundle, error) {
	var out []models.DocumentBundle
	for _, b := range m.bundles {
		if b.StudentID != nil && *b.StudentID == studentID {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (m *memoryDocuments) SetSlot(ctx context.Context, studentID string, slot models.DocumentSlot, value string) (*models.DocumentBundle, error) {
	for _, b := range m.bundles {
		if b.StudentID != nil && *b.StudentID == studentID {
			b.Set(slot, value)
			return b, nil
		}
	}
	id := "bundle-" + studentID
	b := &models.DocumentBundle{ID: id, StudentID: &studentID}
	b.Set(slot, value)
	m.bundles[id] = b
	return b, nil
}

type stubOwnership struct {
	students  map[string]*models.Student
	guardians map[string]*models.Guardian
}

func (s *stubOwnership) OwnedStudent(ctx context.Context, actor models.Actor, id string) (*models.Student, *models.Guardian, error) {
	student, ok := s.students[id]
	if !ok {
		return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
	}
	guardian := s.guardians[student.GuardianID]
	if actor.Role == models.RoleGuardian && guardian.UserID != actor.UserID {
		return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "")
	}
	return student, guardian, nil
}

type documentFixture struct {
	svc       *DocumentService
	documents *memoryDocuments
	files     *storage.LocalStorage
}

func newDocumentFixture(t *testing.T) *documentFixture {
	files, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	f := &documentFixture{documents: &memoryDocuments{bundles: map[string]*models.DocumentBundle{}}, files: files}
	owners := &stubOwnership{
		students:  map[string]*models.Student{"s1": {ID: "s1", GuardianID: "g1"}},
		guardians: map[string]*models.Guardian{"g1": {ID: "g1", UserID: "guardian-user"}},
	}
	f.svc = NewDocumentService(f.documents, owners, files, storage.NewPhotoNormalizer(64),
		storage.NewSignedURLSigner("secret", time.Minute),
		DocumentConfig{APIPrefix: "/api/v1", MaxFileBytes: 1 << 20, AllowedMIMEs: []string{"application/pdf", "image/png", "image/jpeg"}},
		nil, zap.NewNop())
	return f
}

var samplePDF = []byte("%PDF-1.4\n1 0 obj\n<<>>\nendobj\ntrailer\n<<>>\n%%EOF\n")

func samplePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestDocumentUploadStoresFileAndSlot(t *testing.T) {
	f := newDocumentFixture(t)
	bundle, err := f.svc.Upload(context.Background(), guardianActor, "s1", dto.DocumentUpload{
		Slot: "civil_registry", Filename: "registro.pdf", Content: samplePDF, Size: int64(len(samplePDF)),
	})
	require.NoError(t, err)

	stored := bundle.Value(models.SlotCivilRegistry)
	assert.Contains(t, stored, "students/s1/civil_registry-")
	assert.True(t, f.files.Exists(stored))
}

func TestDocumentUploadRejectsDisallowedContent(t *testing.T) {
	f := newDocumentFixture(t)
	_, err := f.svc.Upload(context.Background(), guardianActor, "s1", dto.DocumentUpload{
		Slot: "civil_registry", Filename: "virus.pdf", Content: []byte("MZ\x90\x00 not a pdf at all"),
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Empty(t, f.documents.bundles)
}

func TestDocumentUploadRejectsOversizedFile(t *testing.T) {
	f := newDocumentFixture(t)
	big := append(append([]byte{}, samplePDF...), make([]byte, 2<<20)...)
	_, err := f.svc.Upload(context.Background(), guardianActor, "s1", dto.DocumentUpload{Slot: "civil_registry", Filename: "a.pdf", Content: big})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestDocumentUploadNormalizesStudentPhoto(t *testing.T) {
	f := newDocumentFixture(t)
	bundle, err := f.svc.Upload(context.Background(), guardianActor, "s1", dto.DocumentUpload{
		Slot: "student_photo", Filename: "foto.png", Content: samplePNG(t, 300, 200),
	})
	require.NoError(t, err)

	stored := bundle.Value(models.SlotStudentPhoto)
	assert.Contains(t, stored, ".jpg")
	file, err := f.files.Open(stored)
	require.NoError(t, err)
	defer file.Close()
	cfg, format, err := image.DecodeConfig(file)
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, 64, cfg.Width)
}

func TestDocumentWritesRequireOwningGuardian(t *testing.T) {
	f := newDocumentFixture(t)
	_, err := f.svc.Placeholder(context.Background(), models.Actor{UserID: "other", Role: models.RoleGuardian}, "s1",
		dto.DocumentPlaceholderRequest{Slot: "vaccination_card", Value: "entregado en papel"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	_, err = f.svc.Placeholder(context.Background(), staffActor, "s1", dto.DocumentPlaceholderRequest{Slot: "vaccination_card", Value: "x"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestDocumentPlaceholderAndStatus(t *testing.T) {
	f := newDocumentFixture(t)
	_, err := f.svc.Placeholder(context.Background(), guardianActor, "s1",
		dto.DocumentPlaceholderRequest{Slot: "vaccination_card", Value: "<b>entregado</b> en papel"})
	require.NoError(t, err)

	status, err := f.svc.Status(context.Background(), guardianActor, "s1")
	require.NoError(t, err)
	assert.False(t, status.Complete)
	assert.NotContains(t, status.Missing, models.SlotVaccinationCard)
	assert.Contains(t, status.Missing, models.SlotCivilRegistry)
	assert.Equal(t, "entregado en papel", f.documents.bundles["bundle-s1"].Value(models.SlotVaccinationCard))

	_, err = f.svc.Placeholder(context.Background(), guardianActor, "s1", dto.DocumentPlaceholderRequest{Slot: "passport", Value: "x"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestDocumentLinkAndDownload(t *testing.T) {
	f := newDocumentFixture(t)
	bundle, err := f.svc.Upload(context.Background(), guardianActor, "s1", dto.DocumentUpload{Slot: "school_certificate", Filename: "cert.pdf", Content: samplePDF})
	require.NoError(t, err)

	link, err := f.svc.Link(context.Background(), guardianActor, bundle.ID, dto.DocumentLinkRequest{Slot: "school_certificate"})
	require.NoError(t, err)
	assert.Contains(t, link.URL, "/api/v1/documents/download?token=")

	file, name, err := f.svc.Open(link.Token)
	require.NoError(t, err)
	defer file.Close()
	body, err := io.ReadAll(file)
	require.NoError(t, err)
	assert.Equal(t, samplePDF, body)
	assert.Contains(t, name, "school_certificate-")

	_, _, err = f.svc.Open(link.Token + "x")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestDocumentLinkRefusesPlaceholders(t *testing.T) {
	f := newDocumentFixture(t)
	bundle, err := f.svc.Placeholder(context.Background(), guardianActor, "s1", dto.DocumentPlaceholderRequest{Slot: "guardian_id", Value: "fotocopia"})
	require.NoError(t, err)

	_, err = f.svc.Link(context.Background(), guardianActor, bundle.ID, dto.DocumentLinkRequest{Slot: "guardian_id"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
}
