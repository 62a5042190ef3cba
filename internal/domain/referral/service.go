package referral

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/rhuis/rhuis/internal/domain/encounter"
	"github.com/rhuis/rhuis/internal/domain/registry"
	"github.com/rhuis/rhuis/internal/platform/errs"
	"github.com/rhuis/rhuis/internal/platform/events"
	"github.com/rhuis/rhuis/internal/platform/metrics"
)

type Service struct {
	repo Repository
	bus  *events.Bus
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// SetEventBus attaches the optional workflow event bus.
func (s *Service) SetEventBus(bus *events.Bus) {
	s.bus = bus
}

// CreateInput carries a new referral. Force acknowledges a duplicate
// warning and creates a second row anyway.
type CreateInput struct {
	Referral
	Force bool `json:"force,omitempty"`
}

// CreateReferral validates and inserts a referral. When any referral
// already exists for the same name snapshot, creation is blocked with
// errs.Conflict so the caller explicitly chooses between updating the
// existing referral and proceeding with a new one.
func (s *Service) CreateReferral(ctx context.Context, in CreateInput) (*Referral, error) {
	ref := in.Referral

	details := map[string]string{}
	if registry.NormalizeName(ref.FirstName) == "" {
		details["first_name"] = "must not be empty"
	}
	if registry.NormalizeName(ref.LastName) == "" {
		details["last_name"] = "must not be empty"
	}
	if ref.Facility == "" {
		details["facility"] = "destination facility is required"
	}
	if len(ref.Reasons) == 0 && ref.OtherReason == nil {
		details["reasons"] = "at least one referral reason is required"
	}
	for _, reason := range ref.Reasons {
		if !ValidReasons[reason] {
			details["reasons"] = fmt.Sprintf("unknown reason %q", reason)
		}
	}
	if len(details) > 0 {
		return nil, errs.Validation("referral is incomplete", details)
	}

	if ref.Status == "" {
		ref.Status = encounter.StatusPending
	}
	canonical, ok := encounter.CanonicalStatus(ref.Status)
	if !ok {
		return nil, errs.Validation("referral is incomplete", map[string]string{
			"status": fmt.Sprintf("unrecognized value %q", ref.Status),
		})
	}
	ref.Status = canonical

	if !in.Force {
		// The existence check and the insert are one conditional statement
		// in the store, so two simultaneous submissions for the same person
		// cannot both slip past the guard.
		err := s.repo.CreateIfAbsent(ctx, &ref,
			registry.NormalizeName(ref.FirstName), registry.NormalizeName(ref.LastName))
		if errors.Is(err, errs.ErrConflict) {
			metrics.RecordReferralBlocked()
			return nil, errs.Conflict(fmt.Sprintf(
				"a referral for %s %s already exists; update it or resubmit with force",
				ref.FirstName, ref.LastName))
		}
		if err != nil {
			return nil, err
		}
		return &ref, nil
	}

	if err := s.repo.Create(ctx, &ref); err != nil {
		return nil, err
	}
	return &ref, nil
}

func (s *Service) GetReferral(ctx context.Context, id uuid.UUID) (*Referral, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListReferrals(ctx context.Context, f Filter, limit, offset int) ([]*Referral, int, error) {
	if f.Status != "" {
		canonical, ok := encounter.CanonicalStatus(f.Status)
		if !ok {
			return nil, 0, errs.Validation("unknown status filter", map[string]string{
				"status": fmt.Sprintf("unrecognized value %q", f.Status),
			})
		}
		f.Status = canonical
	}
	return s.repo.List(ctx, f, limit, offset)
}

// UpdateStatus moves a referral to another status. Legacy alias spellings
// are accepted and stored canonically.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	canonical, ok := encounter.CanonicalStatus(status)
	if !ok {
		return errs.Validation("invalid referral status", map[string]string{
			"status": fmt.Sprintf("unrecognized value %q", status),
		})
	}
	if err := s.repo.UpdateStatus(ctx, id, canonical); err != nil {
		return err
	}
	if s.bus != nil {
		s.bus.Publish(events.NewEvent(events.ReferralStatusChanged, map[string]string{
			"referral_id": id.String(),
			"status":      canonical,
		}))
	}
	return nil
}

func (s *Service) MarkSeen(ctx context.Context, id uuid.UUID) error {
	return s.repo.MarkSeen(ctx, id)
}
