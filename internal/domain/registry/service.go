package registry

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/rhuis/rhuis/internal/platform/errs"
)

type Service struct {
	repo     Repository
	resolver *Resolver
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, resolver: NewResolver(repo)}
}

// Resolver exposes the identity resolver for other workflow components.
func (s *Service) Resolver() *Resolver {
	return s.resolver
}

func (s *Service) RegisterPatient(ctx context.Context, p *Patient) error {
	details := map[string]string{}
	if NormalizeName(p.FirstName) == "" {
		details["first_name"] = "must not be empty"
	}
	if NormalizeName(p.LastName) == "" {
		details["last_name"] = "must not be empty"
	}
	if len(details) > 0 {
		return errs.Validation("patient is incomplete", details)
	}
	if p.Origin == "" {
		p.Origin = OriginClinic
	}
	if p.Origin != OriginClinic && p.Origin != OriginCommunity {
		return errs.Validation("patient is incomplete", map[string]string{
			"origin": fmt.Sprintf("must be %q or %q", OriginClinic, OriginCommunity),
		})
	}
	return s.repo.Create(ctx, p)
}

func (s *Service) GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListPatients(ctx context.Context, limit, offset int) ([]*Patient, int, error) {
	return s.repo.List(ctx, limit, offset)
}
