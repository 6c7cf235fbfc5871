package service

import (
	"github.com/noah-isme/matrischol-api/internal/models"
)

// MissingDocuments returns, in reporting order, the mandatory slots that no bundle fills.
// The student's photo satisfies the photo slot and the guardian's address satisfies the
// address proof slot.
func MissingDocuments(bundles []models.DocumentBundle, student models.Student, guardian models.Guardian) []models.DocumentSlot {
	missing := make([]models.DocumentSlot, 0, len(models.RequiredSlots))
	for _, slot := range models.RequiredSlots {
		if slotFilled(bundles, slot) {
			continue
		}
		if slot == models.SlotStudentPhoto && student.HasPhoto() {
			continue
		}
		if slot == models.SlotAddressProof && guardian.HasAddress() {
			continue
		}
		missing = append(missing, slot)
	}
	return missing
}

func slotFilled(bundles []models.DocumentBundle, slot models.DocumentSlot) bool {
	for _, b := range bundles {
		if b.Value(slot) != "" {
			return true
		}
	}
	return false
}

// enrollmentConflict reports the observation for a student that already holds a current
// enrollment, or "" when the student is free to apply.
func enrollmentConflict(current *models.Enrollment, institutionID string) string {
	if current == nil || current.Status != models.EnrollmentStatusActive {
		return ""
	}
	if current.InstitutionID == institutionID {
		return models.ObservationAlreadyEnrolledHere
	}
	return models.ObservationEnrolledElsewhere
}

func slotNames(slots []models.DocumentSlot) []string {
	out := make([]string, len(slots))
	for i, s := range slots {
		out[i] = string(s)
	}
	return out
}
