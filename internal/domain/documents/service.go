package documents

import (
	"context"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
)

// LifecycleValidity is how long a lifecycle document remains valid, counted
// from its signing date, or from creation when unsigned.
const LifecycleValidity = 365 * 24 * time.Hour

// Service enforces registry invariants on top of the repository.
type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Register validates and persists a new document record, deriving expiresAt
// for lifecycle types. Non-lifecycle types never carry an expiry date.
// Registration always creates a new row; it never mutates an existing one.
func (s *Service) Register(ctx context.Context, rec *DocumentRecord) error {
	err := validation.ValidateStruct(rec,
		validation.Field(&rec.PatientID, validation.Required),
		validation.Field(&rec.Name, validation.Required),
		validation.Field(&rec.Type, validation.Required),
	)
	if err != nil {
		return &ValidationError{Msg: "invalid document record", Err: err}
	}
	if !rec.Type.Valid() {
		return invalidf("invalid document type %q", rec.Type)
	}
	if rec.IsSigned && rec.SignedAt == nil {
		return invalidf("signed document requires a signing timestamp")
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.now().UTC()
	}

	if rec.Type.Lifecycle() {
		base := rec.CreatedAt
		if rec.SignedAt != nil {
			base = *rec.SignedAt
		}
		expires := base.Add(LifecycleValidity)
		rec.ExpiresAt = &expires
	} else {
		rec.ExpiresAt = nil
	}

	return s.repo.Create(ctx, rec)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*DocumentRecord, error) {
	return s.repo.GetByID(ctx, id)
}

// ReplaceArtifact swaps in a signed artifact for an existing record.
func (s *Service) ReplaceArtifact(ctx context.Context, id uuid.UUID, storageRef string, signedAt time.Time) error {
	if storageRef == "" {
		return invalidf("storage reference is required")
	}
	return s.repo.ReplaceArtifact(ctx, id, storageRef, signedAt)
}

func (s *Service) ListByPatient(ctx context.Context, patientID string, f Filter, limit, offset int) ([]*DocumentRecord, int, error) {
	if patientID == "" {
		return nil, 0, invalidf("patient id is required")
	}
	return s.repo.ListByPatient(ctx, patientID, f, limit, offset)
}
