package registry

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	// FindByName returns all patients whose normalized first and last
	// names equal the given normalized values, oldest first.
	FindByName(ctx context.Context, normalizedFirst, normalizedLast string) ([]*Patient, error)
	List(ctx context.Context, limit, offset int) ([]*Patient, int, error)
}
