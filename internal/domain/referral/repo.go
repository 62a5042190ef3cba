package referral

import (
	"context"

	"github.com/google/uuid"
)

// Filter narrows the referral list.
type Filter struct {
	Status string
	Query  string
	Unseen bool
}

type Repository interface {
	Create(ctx context.Context, r *Referral) error
	// CreateIfAbsent inserts r in a single statement unless any referral
	// with the same normalized name snapshot already exists, in which case
	// it returns errs.Conflict and writes nothing. The existence check and
	// the insert happen in one round trip so concurrent submissions cannot
	// both pass the check.
	CreateIfAbsent(ctx context.Context, r *Referral, normalizedFirst, normalizedLast string) error
	GetByID(ctx context.Context, id uuid.UUID) (*Referral, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	MarkSeen(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, f Filter, limit, offset int) ([]*Referral, int, error)
}
