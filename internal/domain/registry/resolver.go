package registry

import (
	"context"
	"fmt"
	"time"

	"github.com/rhuis/rhuis/internal/platform/errs"
	"github.com/rhuis/rhuis/internal/platform/metrics"
)

// Resolver matches a referral's or walk-in's name and birth-date snapshot
// against the registry. It is strictly read-only: a miss is a decision
// point for the caller (offer registration), never an implicit create.
type Resolver struct {
	repo Repository
}

func NewResolver(repo Repository) *Resolver {
	return &Resolver{repo: repo}
}

// Resolve returns the best-matching patient for the snapshot.
//
// Names are normalized and must match exactly. If both the snapshot and a
// candidate carry a birth date, the dates must match at day precision; a
// missing date on either side is a wildcard. Among remaining candidates,
// clinic-originated records win over community-originated ones; within a
// tie the oldest registration wins.
func (r *Resolver) Resolve(ctx context.Context, firstName, lastName string, birthDate *time.Time) (*Patient, error) {
	first := NormalizeName(firstName)
	last := NormalizeName(lastName)
	if first == "" || last == "" {
		details := map[string]string{}
		if first == "" {
			details["first_name"] = "must not be empty"
		}
		if last == "" {
			details["last_name"] = "must not be empty"
		}
		return nil, errs.Validation("patient identity is incomplete", details)
	}

	candidates, err := r.repo.FindByName(ctx, first, last)
	if err != nil {
		return nil, fmt.Errorf("find patient by name: %w", err)
	}

	var best *Patient
	for _, p := range candidates {
		if !SameBirthDate(birthDate, p.BirthDate) {
			continue
		}
		if best == nil || preferred(p, best) {
			best = p
		}
	}

	if best == nil {
		metrics.RecordIdentityResolution("not_found")
		return nil, errs.NotFound("patient", fmt.Sprintf("%s %s", firstName, lastName))
	}
	metrics.RecordIdentityResolution("found")
	return best, nil
}

// preferred reports whether a should replace b as the best match.
func preferred(a, b *Patient) bool {
	if a.Origin != b.Origin {
		return a.Origin == OriginClinic
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID.String() < b.ID.String()
}
