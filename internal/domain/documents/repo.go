package documents

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Tab selects one of the patient document views.
type Tab string

const (
	// TabGenerated shows lifecycle-typed documents (reports, prescriptions,
	// consents).
	TabGenerated Tab = "generated"
	// TabContributed shows terminal documents (lab results, imaging, other).
	TabContributed Tab = "contributed"
	// TabPending shows lifecycle documents that are unsigned or expired.
	TabPending Tab = "pending"
)

// Filter narrows a patient document listing. Text matches name and type.
type Filter struct {
	Text string
	Tab  Tab
}

// Repository persists document records. Records are never deleted by this
// subsystem; superseded artifacts are replaced in place or regenerated as
// new rows.
type Repository interface {
	Create(ctx context.Context, rec *DocumentRecord) error
	GetByID(ctx context.Context, id uuid.UUID) (*DocumentRecord, error)
	// ReplaceArtifact swaps in an externally signed artifact: it sets
	// storageRef, flips isSigned and stamps signedAt, touching nothing else.
	ReplaceArtifact(ctx context.Context, id uuid.UUID, storageRef string, signedAt time.Time) error
	ListByPatient(ctx context.Context, patientID string, f Filter, limit, offset int) ([]*DocumentRecord, int, error)
}
