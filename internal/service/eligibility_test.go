package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/matrischol-api/internal/models"
)

func ptrString(s string) *string { return &s }

func TestMissingDocumentsEmptyBundle(t *testing.T) {
	missing := MissingDocuments(nil, models.Student{}, models.Guardian{})
	assert.Equal(t, models.RequiredSlots, missing)
	assert.NotContains(t, missing, models.SlotVisaPermit)
}

func TestMissingDocumentsFallbacks(t *testing.T) {
	student := models.Student{PhotoPath: ptrString("students/s1/photo.jpg")}
	guardian := models.Guardian{Address: ptrString("Calle 10 # 5-20")}

	missing := MissingDocuments(nil, student, guardian)
	assert.Len(t, missing, 6)
	assert.NotContains(t, missing, models.SlotStudentPhoto)
	assert.NotContains(t, missing, models.SlotAddressProof)
}

func TestMissingDocumentsUnionAcrossBundles(t *testing.T) {
	first := models.DocumentBundle{}
	second := models.DocumentBundle{}
	for i, slot := range models.RequiredSlots {
		if i%2 == 0 {
			first.Set(slot, "file-"+string(slot))
		} else {
			second.Set(slot, "placeholder")
		}
	}
	second.Set(models.SlotCivilRegistry, "   ")

	missing := MissingDocuments([]models.DocumentBundle{first, second}, models.Student{}, models.Guardian{})
	assert.Empty(t, missing)
}

func TestMissingDocumentsBlankValuesDoNotCount(t *testing.T) {
	bundle := models.DocumentBundle{}
	for _, slot := range models.RequiredSlots {
		bundle.Set(slot, "x")
	}
	bundle.Set(models.SlotVaccinationCard, "  ")

	missing := MissingDocuments([]models.DocumentBundle{bundle}, models.Student{}, models.Guardian{})
	assert.Equal(t, []models.DocumentSlot{models.SlotVaccinationCard}, missing)
}

func TestEnrollmentConflict(t *testing.T) {
	assert.Empty(t, enrollmentConflict(nil, "inst-1"))
	assert.Empty(t, enrollmentConflict(&models.Enrollment{InstitutionID: "inst-1", Status: models.EnrollmentStatusWithdrawn}, "inst-1"))
	assert.Equal(t, models.ObservationAlreadyEnrolledHere,
		enrollmentConflict(&models.Enrollment{InstitutionID: "inst-1", Status: models.EnrollmentStatusActive}, "inst-1"))
	assert.Equal(t, models.ObservationEnrolledElsewhere,
		enrollmentConflict(&models.Enrollment{InstitutionID: "inst-2", Status: models.EnrollmentStatusActive}, "inst-1"))
}
