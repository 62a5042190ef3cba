package referral

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/rhuis/rhuis/internal/domain/encounter"
	"github.com/rhuis/rhuis/internal/domain/registry"
	"github.com/rhuis/rhuis/internal/platform/errs"
	"github.com/rhuis/rhuis/internal/platform/events"
)

type mockRepo struct {
	referrals map[uuid.UUID]*Referral
	ops       []string
}

func newMockRepo() *mockRepo {
	return &mockRepo{referrals: map[uuid.UUID]*Referral{}}
}

func (m *mockRepo) Create(_ context.Context, r *Referral) error {
	m.ops = append(m.ops, "create")
	m.insert(r)
	return nil
}

func (m *mockRepo) insert(r *Referral) {
	r.ID = uuid.New()
	r.CreatedAt = time.Now()
	r.UpdatedAt = r.CreatedAt
	cp := *r
	m.referrals[r.ID] = &cp
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Referral, error) {
	r, ok := m.referrals[id]
	if !ok {
		return nil, errs.NotFound("referral", id.String())
	}
	cp := *r
	return &cp, nil
}

func (m *mockRepo) CreateIfAbsent(_ context.Context, r *Referral, first, last string) error {
	m.ops = append(m.ops, "create_if_absent")
	for _, existing := range m.referrals {
		if registry.NormalizeName(existing.FirstName) == first &&
			registry.NormalizeName(existing.LastName) == last {
			return errs.Conflict("a referral for this person already exists")
		}
	}
	m.insert(r)
	return nil
}

func (m *mockRepo) UpdateStatus(_ context.Context, id uuid.UUID, status string) error {
	r, ok := m.referrals[id]
	if !ok {
		return errs.NotFound("referral", id.String())
	}
	r.Status = status
	r.UpdatedAt = time.Now()
	return nil
}

func (m *mockRepo) MarkSeen(_ context.Context, id uuid.UUID) error {
	r, ok := m.referrals[id]
	if !ok {
		return errs.NotFound("referral", id.String())
	}
	r.Seen = true
	return nil
}

func (m *mockRepo) List(_ context.Context, f Filter, limit, offset int) ([]*Referral, int, error) {
	var out []*Referral
	for _, r := range m.referrals {
		if f.Status != "" {
			// The store matches every alias spelling of the filter, so the
			// mock compares canonical forms the same way.
			stored, _ := encounter.CanonicalStatus(r.Status)
			if stored != f.Status {
				continue
			}
		}
		if f.Unseen && r.Seen {
			continue
		}
		cp := *r
		out = append(out, &cp)
	}
	return out, len(out), nil
}

func validInput() CreateInput {
	return CreateInput{Referral: Referral{
		FirstName: "Maria",
		LastName:  "Santos",
		Facility:  "Provincial Hospital",
		Reasons:   []string{"laboratory"},
	}}
}

func TestCreateReferral(t *testing.T) {
	svc := NewService(newMockRepo())

	ref, err := svc.CreateReferral(context.Background(), validInput())
	if err != nil {
		t.Fatalf("CreateReferral: %v", err)
	}
	if ref.Status != encounter.StatusPending {
		t.Errorf("default status = %q, want %q", ref.Status, encounter.StatusPending)
	}
	if ref.ID == uuid.Nil {
		t.Error("expected an assigned id")
	}
}

func TestCreateReferralValidation(t *testing.T) {
	svc := NewService(newMockRepo())

	_, err := svc.CreateReferral(context.Background(), CreateInput{Referral: Referral{
		FirstName: "   ",
		Reasons:   []string{"teleportation"},
	}})
	if !errors.Is(err, errs.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	var appErr *errs.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected AppError, got %T", err)
	}
	for _, field := range []string{"first_name", "last_name", "facility", "reasons"} {
		if _, ok := appErr.Details[field]; !ok {
			t.Errorf("missing detail for %q", field)
		}
	}
}

func TestCreateReferralDuplicateBlocked(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)
	ctx := context.Background()

	if _, err := svc.CreateReferral(ctx, validInput()); err != nil {
		t.Fatalf("first referral: %v", err)
	}

	// Same person, different whitespace and case in the snapshot.
	in := validInput()
	in.FirstName = "  MARIA "
	in.LastName = "santos"
	_, err := svc.CreateReferral(ctx, in)
	if !errors.Is(err, errs.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if len(repo.referrals) != 1 {
		t.Fatalf("duplicate created a row, have %d", len(repo.referrals))
	}

	// Explicit acknowledgement proceeds.
	in.Force = true
	if _, err := svc.CreateReferral(ctx, in); err != nil {
		t.Fatalf("forced referral: %v", err)
	}
	if len(repo.referrals) != 2 {
		t.Fatalf("forced create missing, have %d rows", len(repo.referrals))
	}
}

func TestCreateReferralGuardIsSingleWrite(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)
	ctx := context.Background()

	if _, err := svc.CreateReferral(ctx, validInput()); err != nil {
		t.Fatalf("first referral: %v", err)
	}
	if _, err := svc.CreateReferral(ctx, validInput()); !errors.Is(err, errs.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}

	// The guard must be the conditional insert itself: no separate
	// existence read, and no plain insert until Force acknowledges.
	for _, op := range repo.ops {
		if op != "create_if_absent" {
			t.Fatalf("unexpected repo operation %q", op)
		}
	}
	if len(repo.ops) != 2 {
		t.Fatalf("expected 2 conditional inserts, got %v", repo.ops)
	}

	in := validInput()
	in.Force = true
	if _, err := svc.CreateReferral(ctx, in); err != nil {
		t.Fatalf("forced referral: %v", err)
	}
	if repo.ops[len(repo.ops)-1] != "create" {
		t.Fatalf("forced submission must use the unconditional insert, got %v", repo.ops)
	}
}

func TestCreateReferralLegacyStatusAlias(t *testing.T) {
	svc := NewService(newMockRepo())

	in := validInput()
	in.Status = "In Progress"
	ref, err := svc.CreateReferral(context.Background(), in)
	if err != nil {
		t.Fatalf("CreateReferral: %v", err)
	}
	if ref.Status != encounter.StatusInLaboratory {
		t.Errorf("status = %q, want %q", ref.Status, encounter.StatusInLaboratory)
	}
}

func TestUpdateStatusPublishesEvent(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)
	bus := events.NewBus()
	svc.SetEventBus(bus)
	ctx := context.Background()

	var got []events.Event
	bus.Subscribe(events.ReferralStatusChanged, func(e events.Event) {
		got = append(got, e)
	})

	ref, err := svc.CreateReferral(ctx, validInput())
	if err != nil {
		t.Fatalf("CreateReferral: %v", err)
	}

	if err := svc.UpdateStatus(ctx, ref.ID, "completed"); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	stored, _ := repo.GetByID(ctx, ref.ID)
	if stored.Status != encounter.StatusComplete {
		t.Errorf("stored status = %q, want %q", stored.Status, encounter.StatusComplete)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 event, got %d", len(got))
	}
	data := got[0].Data.(map[string]string)
	if data["status"] != encounter.StatusComplete {
		t.Errorf("event status = %q", data["status"])
	}
}

func TestUpdateStatusRejectsUnknown(t *testing.T) {
	svc := NewService(newMockRepo())
	err := svc.UpdateStatus(context.Background(), uuid.New(), "Archived")
	if !errors.Is(err, errs.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestMarkSeen(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)
	ctx := context.Background()

	ref, err := svc.CreateReferral(ctx, validInput())
	if err != nil {
		t.Fatalf("CreateReferral: %v", err)
	}
	if err := svc.MarkSeen(ctx, ref.ID); err != nil {
		t.Fatalf("MarkSeen: %v", err)
	}
	stored, _ := repo.GetByID(ctx, ref.ID)
	if !stored.Seen {
		t.Error("referral not marked seen")
	}
}

func TestListReferralsCanonicalizesFilter(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)
	ctx := context.Background()

	ref, _ := svc.CreateReferral(ctx, validInput())
	if err := svc.UpdateStatus(ctx, ref.ID, encounter.StatusComplete); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}

	refs, total, err := svc.ListReferrals(ctx, Filter{Status: "completed"}, 20, 0)
	if err != nil {
		t.Fatalf("ListReferrals: %v", err)
	}
	if total != 1 || len(refs) != 1 {
		t.Fatalf("got %d referrals, want 1", len(refs))
	}

	if _, _, err := svc.ListReferrals(ctx, Filter{Status: "bogus"}, 20, 0); !errors.Is(err, errs.ErrValidation) {
		t.Fatalf("expected validation error for bogus filter, got %v", err)
	}
}

func TestListReferralsMatchesLegacySpellings(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)
	ctx := context.Background()

	// A pre-migration row stored with the legacy spelling.
	legacy := &Referral{
		ID:        uuid.New(),
		FirstName: "Jose",
		LastName:  "Rizal",
		Facility:  "Provincial Hospital",
		Status:    "Completed",
	}
	repo.referrals[legacy.ID] = legacy

	refs, total, err := svc.ListReferrals(ctx, Filter{Status: "Complete"}, 20, 0)
	if err != nil {
		t.Fatalf("ListReferrals: %v", err)
	}
	if total != 1 || len(refs) != 1 {
		t.Fatalf("legacy row not matched, got %d referrals", len(refs))
	}
	if refs[0].ID != legacy.ID {
		t.Errorf("unexpected referral %s", refs[0].ID)
	}
}
