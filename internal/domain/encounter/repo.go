package encounter

import (
	"context"

	"github.com/google/uuid"
)

// Filter narrows the open-encounter queue.
type Filter struct {
	// Status is a logical status; any accepted spelling matches.
	Status string
	// Query free-text matches patient name and purpose of visit.
	Query string
}

// FieldUpdate is the partial write applied by the finalize step. Nil fields
// are left untouched.
type FieldUpdate struct {
	Status         *string
	FinalDiagnosis *string
	Medication     *string
	LabFindings    *string
	LabTests       *string
}

type Repository interface {
	// Create inserts the encounter. A second open encounter for the same
	// patient violates the store's partial unique index and surfaces as
	// errs.Conflict; the check and the insert are one atomic write.
	Create(ctx context.Context, enc *Encounter) error
	GetByID(ctx context.Context, id uuid.UUID) (*Encounter, error)
	Update(ctx context.Context, enc *Encounter) error
	UpdateFields(ctx context.Context, id uuid.UUID, upd FieldUpdate) error
	ListOpen(ctx context.Context, f Filter, limit, offset int) ([]*Encounter, int, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Encounter, int, error)
	ListAll(ctx context.Context) ([]*Encounter, error)
}
