package models

import (
	"strings"
	"time"
)

// DocumentSlot names one entry of a document bundle.
type DocumentSlot string

const (
	SlotCivilRegistry      DocumentSlot = "civil_registry"
	SlotGuardianID         DocumentSlot = "guardian_id"
	SlotStudentID          DocumentSlot = "student_id"
	SlotVaccinationCard    DocumentSlot = "vaccination_card"
	SlotAddressProof       DocumentSlot = "address_proof"
	SlotStudentPhoto       DocumentSlot = "student_photo"
	SlotVisaPermit         DocumentSlot = "visa_permit"
	SlotMedicalCertificate DocumentSlot = "medical_certificate"
	SlotSchoolCertificate  DocumentSlot = "school_certificate"
)

// RequiredSlots lists the mandatory slots in reporting order. The visa permit is optional.
var RequiredSlots = []DocumentSlot{
	SlotCivilRegistry,
	SlotGuardianID,
	SlotStudentID,
	SlotVaccinationCard,
	SlotAddressProof,
	SlotStudentPhoto,
	SlotMedicalCertificate,
	SlotSchoolCertificate,
}

// ParseDocumentSlot validates a slot name coming from a client.
func ParseDocumentSlot(raw string) (DocumentSlot, bool) {
	slot := DocumentSlot(strings.ToLower(strings.TrimSpace(raw)))
	switch slot {
	case SlotCivilRegistry, SlotGuardianID, SlotStudentID, SlotVaccinationCard, SlotAddressProof,
		SlotStudentPhoto, SlotVisaPermit, SlotMedicalCertificate, SlotSchoolCertificate:
		return slot, true
	}
	return "", false
}

// Column returns the document_bundles column backing the slot.
func (s DocumentSlot) Column() string {
	if s == SlotStudentID {
		return "student_id_doc"
	}
	return string(s)
}

// DocumentBundle is a set of slots attached to a student and/or an enrollment.
// Each slot holds a storage path or a free-text placeholder.
type DocumentBundle struct {
	ID                 string    `db:"id" json:"id"`
	StudentID          *string   `db:"student_id" json:"student_id,omitempty"`
	EnrollmentID       *string   `db:"enrollment_id" json:"enrollment_id,omitempty"`
	CivilRegistry      *string   `db:"civil_registry" json:"civil_registry,omitempty"`
	GuardianIDDoc      *string   `db:"guardian_id" json:"guardian_id,omitempty"`
	StudentIDDoc       *string   `db:"student_id_doc" json:"student_id_doc,omitempty"`
	VaccinationCard    *string   `db:"vaccination_card" json:"vaccination_card,omitempty"`
	AddressProof       *string   `db:"address_proof" json:"address_proof,omitempty"`
	StudentPhoto       *string   `db:"student_photo" json:"student_photo,omitempty"`
	VisaPermit         *string   `db:"visa_permit" json:"visa_permit,omitempty"`
	MedicalCertificate *string   `db:"medical_certificate" json:"medical_certificate,omitempty"`
	SchoolCertificate  *string   `db:"school_certificate" json:"school_certificate,omitempty"`
	CreatedAt          time.Time `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time `db:"updated_at" json:"updated_at"`
}

func (b *DocumentBundle) field(slot DocumentSlot) **string {
	switch slot {
	case SlotCivilRegistry:
		return &b.CivilRegistry
	case SlotGuardianID:
		return &b.GuardianIDDoc
	case SlotStudentID:
		return &b.StudentIDDoc
	case SlotVaccinationCard:
		return &b.VaccinationCard
	case SlotAddressProof:
		return &b.AddressProof
	case SlotStudentPhoto:
		return &b.StudentPhoto
	case SlotVisaPermit:
		return &b.VisaPermit
	case SlotMedicalCertificate:
		return &b.MedicalCertificate
	case SlotSchoolCertificate:
		return &b.SchoolCertificate
	}
	return nil
}

// Value returns the trimmed slot value or "" when empty.
func (b DocumentBundle) Value(slot DocumentSlot) string {
	ptr := b.field(slot)
	if ptr == nil || *ptr == nil {
		return ""
	}
	return strings.TrimSpace(**ptr)
}

// Set stores value in the slot. Unknown slots are ignored.
func (b *DocumentBundle) Set(slot DocumentSlot, value string) {
	if ptr := b.field(slot); ptr != nil {
		v := value
		*ptr = &v
	}
}

// DocumentStatus is the completeness report for a student.
type DocumentStatus struct {
	StudentID string         `json:"student_id"`
	Complete  bool           `json:"complete"`
	Missing   []DocumentSlot `json:"missing"`
}

// DocumentLink is a signed, expiring download link.
type DocumentLink struct {
	Token     string    `json:"token"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}
