package documents

import (
	"time"

	"github.com/google/uuid"
)

// Type classifies a document record.
type Type string

const (
	TypeLabResult    Type = "lab-result"
	TypeImaging      Type = "imaging"
	TypeReport       Type = "report"
	TypePrescription Type = "prescription"
	TypeConsent      Type = "consent"
	TypeOther        Type = "other"
)

var validTypes = map[Type]bool{
	TypeLabResult: true, TypeImaging: true, TypeReport: true,
	TypePrescription: true, TypeConsent: true, TypeOther: true,
}

// Valid reports whether t is a known document type.
func (t Type) Valid() bool { return validTypes[t] }

// Lifecycle reports whether documents of this type carry a signing and
// expiration lifecycle. Lab results and imaging are terminal artifacts and
// never expire.
func (t Type) Lifecycle() bool {
	return t == TypeReport || t == TypePrescription || t == TypeConsent
}

// Metadata carries provenance for a document record.
type Metadata struct {
	TemplateID  string `json:"template_id,omitempty"`
	DoctorID    string `json:"doctor_id,omitempty"`
	UploadedBy  string `json:"uploaded_by,omitempty"`
	CustomNotes string `json:"custom_notes,omitempty"`
}

// DocumentRecord is one row in the document registry. PatientID is the
// clinic's patient identifier (CIP). Status is never stored; it is derived
// from the persisted fields at read time.
type DocumentRecord struct {
	ID         uuid.UUID  `json:"id"`
	PatientID  string     `json:"patient_id"`
	Name       string     `json:"name"`
	Type       Type       `json:"type"`
	StorageRef string     `json:"storage_ref,omitempty"`
	IsSigned   bool       `json:"is_signed"`
	SignedAt   *time.Time `json:"signed_at,omitempty"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	Metadata   Metadata   `json:"metadata"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Status is the derived signing state of a record.
type Status string

const (
	StatusPendingSignature Status = "pending_signature"
	StatusSigned           Status = "signed"
	StatusExpired          Status = "expired"
)

// Status derives the record's state at the given instant. Expiration wins
// over the signature flag: a signed document past its expiry is expired.
func (d *DocumentRecord) Status(now time.Time) Status {
	if d.ExpiresAt != nil && now.After(*d.ExpiresAt) {
		return StatusExpired
	}
	if d.IsSigned {
		return StatusSigned
	}
	return StatusPendingSignature
}
