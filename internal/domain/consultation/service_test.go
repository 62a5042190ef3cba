package consultation

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/rhuis/rhuis/internal/domain/encounter"
	"github.com/rhuis/rhuis/internal/platform/aidx"
	"github.com/rhuis/rhuis/internal/platform/errs"
	"github.com/rhuis/rhuis/internal/platform/events"
)

type mockRepo struct {
	approvals []*ApprovedDiagnosis
	decisions []*Decision
}

func (m *mockRepo) NextRevision(_ context.Context, recordID uuid.UUID) (int, error) {
	max := 0
	for _, a := range m.approvals {
		if a.TreatmentRecordID == recordID && a.Revision > max {
			max = a.Revision
		}
	}
	return max + 1, nil
}

func (m *mockRepo) CreateApprovals(_ context.Context, approvals []*ApprovedDiagnosis) error {
	for _, a := range approvals {
		a.ID = uuid.New()
		a.CreatedAt = time.Now()
		cp := *a
		m.approvals = append(m.approvals, &cp)
	}
	return nil
}

func (m *mockRepo) GetApprovals(_ context.Context, recordID uuid.UUID) ([]*ApprovedDiagnosis, error) {
	max := 0
	for _, a := range m.approvals {
		if a.TreatmentRecordID == recordID && a.Revision > max {
			max = a.Revision
		}
	}
	var out []*ApprovedDiagnosis
	for _, a := range m.approvals {
		if a.TreatmentRecordID == recordID && a.Revision == max {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockRepo) GetApprovalHistory(_ context.Context, recordID uuid.UUID) ([]*ApprovedDiagnosis, error) {
	var out []*ApprovedDiagnosis
	for _, a := range m.approvals {
		if a.TreatmentRecordID == recordID {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Revision > out[j].Revision })
	return out, nil
}

func (m *mockRepo) CreateDecision(_ context.Context, d *Decision) error {
	d.ID = uuid.New()
	d.CreatedAt = time.Now()
	cp := *d
	m.decisions = append(m.decisions, &cp)
	return nil
}

func (m *mockRepo) LatestDecision(_ context.Context, recordID uuid.UUID) (*Decision, error) {
	for i := len(m.decisions) - 1; i >= 0; i-- {
		if m.decisions[i].TreatmentRecordID == recordID {
			cp := *m.decisions[i]
			return &cp, nil
		}
	}
	return nil, errs.NotFound("consultation decision", recordID.String())
}

type mockEncounters struct {
	encounters map[uuid.UUID]*encounter.Encounter
}

func newMockEncounters() *mockEncounters {
	return &mockEncounters{encounters: map[uuid.UUID]*encounter.Encounter{}}
}

func (m *mockEncounters) GetByID(_ context.Context, id uuid.UUID) (*encounter.Encounter, error) {
	enc, ok := m.encounters[id]
	if !ok {
		return nil, errs.NotFound("treatment record", id.String())
	}
	cp := *enc
	return &cp, nil
}

func (m *mockEncounters) UpdateFields(_ context.Context, id uuid.UUID, upd encounter.FieldUpdate) error {
	enc, ok := m.encounters[id]
	if !ok {
		return errs.NotFound("treatment record", id.String())
	}
	if upd.Status != nil {
		enc.Status = *upd.Status
	}
	if upd.FinalDiagnosis != nil {
		enc.FinalDiagnosis = upd.FinalDiagnosis
	}
	if upd.Medication != nil {
		enc.Medication = upd.Medication
	}
	if upd.LabFindings != nil {
		enc.LabFindings = upd.LabFindings
	}
	if upd.LabTests != nil {
		enc.LabTests = upd.LabTests
	}
	return nil
}

func (m *mockEncounters) ListByPatient(_ context.Context, patientID uuid.UUID, limit, offset int) ([]*encounter.Encounter, int, error) {
	var out []*encounter.Encounter
	for _, enc := range m.encounters {
		if enc.PatientID != nil && *enc.PatientID == patientID {
			cp := *enc
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].VisitDate().After(out[j].VisitDate()) })
	return out, len(out), nil
}

func (m *mockEncounters) add(status string) uuid.UUID {
	id := uuid.New()
	m.encounters[id] = &encounter.Encounter{
		ID:          id,
		PatientName: "Maria Santos",
		Status:      status,
		Suggestions: []aidx.Suggestion{
			{Name: "Influenza", Probability: 0.42},
			{Name: "Common Cold", Probability: 0.31},
			{Name: "Acute Bronchitis", Probability: 0.12},
		},
	}
	return id
}

func newTestService() (*Service, *mockRepo, *mockEncounters) {
	repo := &mockRepo{}
	encs := newMockEncounters()
	return NewService(repo, encs, nil), repo, encs
}

func completeInput() SaveInput {
	return SaveInput{
		Approvals: []ApprovalInput{
			{DiagnosisText: "Influenza", DiagnosisType: TypeAIApproved, IsPrimary: true},
			{DiagnosisText: "Common Cold", DiagnosisType: TypeAIApproved},
		},
		Medication:  "Oseltamivir 75mg BID x5d",
		LabFindings: "CBC unremarkable",
	}
}

func TestFinalize(t *testing.T) {
	svc, repo, encs := newTestService()
	ctx := context.Background()
	id := encs.add(encounter.StatusPending)

	dec, err := svc.Finalize(ctx, id, nil, completeInput())
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if dec.IsDraft {
		t.Error("finalize produced a draft decision")
	}
	if dec.Status != encounter.StatusComplete {
		t.Errorf("decision status = %q, want %q", dec.Status, encounter.StatusComplete)
	}

	if len(repo.approvals) != 2 {
		t.Fatalf("got %d approval rows, want 2", len(repo.approvals))
	}
	for _, a := range repo.approvals {
		if a.DiagnosisType != TypeAIApproved {
			t.Errorf("approval type = %q", a.DiagnosisType)
		}
		if a.Revision != 1 {
			t.Errorf("approval revision = %d, want 1", a.Revision)
		}
	}

	enc, _ := encs.GetByID(ctx, id)
	if enc.Status != encounter.StatusComplete {
		t.Errorf("record status = %q, want %q", enc.Status, encounter.StatusComplete)
	}
	if enc.FinalDiagnosis == nil || *enc.FinalDiagnosis != "Influenza (+1 more)" {
		t.Errorf("record diagnosis = %v, want primary with remainder count", enc.FinalDiagnosis)
	}
	if enc.Medication == nil || *enc.Medication != "Oseltamivir 75mg BID x5d" {
		t.Errorf("record medication = %v", enc.Medication)
	}
}

func TestFinalizeIncomplete(t *testing.T) {
	svc, repo, encs := newTestService()
	ctx := context.Background()
	id := encs.add(encounter.StatusPending)

	_, err := svc.Finalize(ctx, id, nil, SaveInput{LabFindings: "CBC unremarkable"})
	if !errors.Is(err, errs.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	var appErr *errs.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected AppError, got %T", err)
	}
	for _, field := range []string{"diagnosis", "medication_treatment"} {
		if _, ok := appErr.Details[field]; !ok {
			t.Errorf("missing violation for %q", field)
		}
	}

	// Nothing may be written on a gate failure.
	if len(repo.approvals) != 0 || len(repo.decisions) != 0 {
		t.Errorf("gate failure wrote rows: %d approvals, %d decisions",
			len(repo.approvals), len(repo.decisions))
	}
	enc, _ := encs.GetByID(ctx, id)
	if enc.Status != encounter.StatusPending {
		t.Errorf("record status changed to %q", enc.Status)
	}
}

func TestFinalizeAlreadyComplete(t *testing.T) {
	svc, _, encs := newTestService()
	id := encs.add(encounter.StatusComplete)

	_, err := svc.Finalize(context.Background(), id, nil, completeInput())
	if !errors.Is(err, errs.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestFinalizePublishesEvent(t *testing.T) {
	svc, _, encs := newTestService()
	bus := events.NewBus()
	svc.SetEventBus(bus)
	id := encs.add(encounter.StatusPending)

	var got []events.Event
	bus.Subscribe(events.ConsultationFinalized, func(e events.Event) {
		got = append(got, e)
	})

	if _, err := svc.Finalize(context.Background(), id, nil, completeInput()); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 event, got %d", len(got))
	}
	data := got[0].Data.(map[string]string)
	if data["treatment_record_id"] != id.String() {
		t.Errorf("event record id = %q", data["treatment_record_id"])
	}
}

func TestSaveDraftBypassesGate(t *testing.T) {
	svc, repo, encs := newTestService()
	ctx := context.Background()
	id := encs.add(encounter.StatusPending)

	// No diagnosis, no lab findings, a status mid-pipeline. All fine for
	// a checkpoint.
	dec, err := svc.SaveDraft(ctx, id, nil, SaveInput{
		Status:     "In Progress",
		Medication: "pending lab results",
	})
	if err != nil {
		t.Fatalf("SaveDraft: %v", err)
	}
	if !dec.IsDraft {
		t.Error("draft save produced a non-draft decision")
	}
	if dec.Status != encounter.StatusInLaboratory {
		t.Errorf("draft status = %q, want legacy alias folded to %q", dec.Status, encounter.StatusInLaboratory)
	}
	if len(repo.decisions) != 1 {
		t.Fatalf("got %d decisions, want 1", len(repo.decisions))
	}

	// Drafts never touch the treatment record itself.
	enc, _ := encs.GetByID(ctx, id)
	if enc.Status != encounter.StatusPending {
		t.Errorf("draft changed record status to %q", enc.Status)
	}
}

func TestDecisionCarriesApprovalRevision(t *testing.T) {
	svc, repo, encs := newTestService()
	ctx := context.Background()
	id := encs.add(encounter.StatusPending)

	// First draft writes approval batch 1; its decision is stamped with it.
	draft, err := svc.SaveDraft(ctx, id, nil, SaveInput{
		Approvals: []ApprovalInput{{DiagnosisText: "Influenza", DiagnosisType: TypeAIApproved}},
	})
	if err != nil {
		t.Fatalf("SaveDraft: %v", err)
	}
	if draft.Revision != 1 {
		t.Errorf("draft revision = %d, want 1", draft.Revision)
	}

	// A text-only checkpoint pairs with the batch still in effect.
	draft, err = svc.SaveDraft(ctx, id, nil, SaveInput{Medication: "rest and fluids"})
	if err != nil {
		t.Fatalf("SaveDraft: %v", err)
	}
	if draft.Revision != 1 {
		t.Errorf("text-only draft revision = %d, want 1", draft.Revision)
	}

	dec, err := svc.Finalize(ctx, id, nil, completeInput())
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if dec.Revision != 2 {
		t.Errorf("final revision = %d, want 2", dec.Revision)
	}
	for _, stored := range repo.decisions {
		if stored.Revision == 0 {
			t.Errorf("decision %s persisted with revision 0", stored.ID)
		}
	}
}

func TestApprovalRevisionsSupersede(t *testing.T) {
	svc, repo, encs := newTestService()
	ctx := context.Background()
	id := encs.add(encounter.StatusPending)

	_, err := svc.SaveDraft(ctx, id, nil, SaveInput{
		Approvals: []ApprovalInput{{DiagnosisText: "Influenza", DiagnosisType: TypeAIApproved}},
	})
	if err != nil {
		t.Fatalf("first draft: %v", err)
	}

	// The doctor changes their mind; a new batch supersedes the old one.
	_, err = svc.SaveDraft(ctx, id, nil, SaveInput{
		Approvals: []ApprovalInput{
			{DiagnosisText: "Pneumonia", DiagnosisType: TypeFinal, IsPrimary: true},
		},
	})
	if err != nil {
		t.Fatalf("second draft: %v", err)
	}

	current, err := repo.GetApprovals(ctx, id)
	if err != nil {
		t.Fatalf("GetApprovals: %v", err)
	}
	if len(current) != 1 || current[0].DiagnosisText != "Pneumonia" {
		t.Fatalf("current batch = %+v, want only the Pneumonia row", current)
	}
	if current[0].Revision != 2 {
		t.Errorf("current revision = %d, want 2", current[0].Revision)
	}

	history, _ := repo.GetApprovalHistory(ctx, id)
	if len(history) != 2 {
		t.Errorf("history has %d rows, want both revisions", len(history))
	}
}

func TestLoadWorksheet(t *testing.T) {
	svc, _, encs := newTestService()
	ctx := context.Background()
	id := encs.add(encounter.StatusPending)

	if _, err := svc.SaveDraft(ctx, id, nil, SaveInput{
		Approvals:  []ApprovalInput{{DiagnosisText: "Influenza", DiagnosisType: TypeAIApproved, IsPrimary: true}},
		Medication: "paracetamol PRN",
	}); err != nil {
		t.Fatalf("SaveDraft: %v", err)
	}

	ws, err := svc.LoadWorksheet(ctx, id)
	if err != nil {
		t.Fatalf("LoadWorksheet: %v", err)
	}
	if len(ws.Suggestions) != 3 {
		t.Fatalf("got %d suggestions, want 3", len(ws.Suggestions))
	}
	if ws.Suggestions[0].Display != "Influenza (42.0%)" {
		t.Errorf("display = %q", ws.Suggestions[0].Display)
	}
	if ws.Suggestions[0].Explanation == "" {
		t.Error("expected an explanation for a known diagnosis")
	}
	if len(ws.Approved) != 1 || ws.Approved[0].DiagnosisText != "Influenza" {
		t.Errorf("approved = %+v", ws.Approved)
	}
	if ws.Decision == nil || !ws.Decision.IsDraft {
		t.Errorf("expected the draft decision for pre-fill, got %+v", ws.Decision)
	}
}

func TestLoadWorksheetPriorVisits(t *testing.T) {
	svc, _, encs := newTestService()
	ctx := context.Background()
	patientID := uuid.New()

	earlier := uuid.New()
	encs.encounters[earlier] = &encounter.Encounter{
		ID:          earlier,
		PatientID:   &patientID,
		PatientName: "Maria Santos",
		Status:      encounter.StatusComplete,
		CreatedAt:   time.Now().Add(-48 * time.Hour),
	}
	current := uuid.New()
	encs.encounters[current] = &encounter.Encounter{
		ID:          current,
		PatientID:   &patientID,
		PatientName: "Maria Santos",
		Status:      encounter.StatusPending,
		CreatedAt:   time.Now(),
	}

	ws, err := svc.LoadWorksheet(ctx, current)
	if err != nil {
		t.Fatalf("LoadWorksheet: %v", err)
	}
	if len(ws.PriorVisits) != 1 || ws.PriorVisits[0].ID != earlier {
		t.Errorf("prior visits = %+v, want only the earlier record", ws.PriorVisits)
	}
}

func TestSaveDraftRejectsSecondFinal(t *testing.T) {
	svc, _, encs := newTestService()
	id := encs.add(encounter.StatusPending)

	_, err := svc.SaveDraft(context.Background(), id, nil, SaveInput{
		Approvals: []ApprovalInput{
			{DiagnosisText: "Pneumonia", DiagnosisType: TypeFinal},
			{DiagnosisText: "Tuberculosis", DiagnosisType: TypeFinal},
		},
	})
	if !errors.Is(err, errs.ErrValidation) {
		t.Fatalf("expected validation error for two final diagnoses, got %v", err)
	}
}

func TestLoadWorksheetNoHistory(t *testing.T) {
	svc, _, encs := newTestService()
	id := encs.add(encounter.StatusPending)

	ws, err := svc.LoadWorksheet(context.Background(), id)
	if err != nil {
		t.Fatalf("LoadWorksheet: %v", err)
	}
	if ws.Decision != nil {
		t.Errorf("expected no decision, got %+v", ws.Decision)
	}
}

func TestJoinMedicationTreatment(t *testing.T) {
	cases := []struct {
		medication, plan string
		want             string
	}{
		{"amoxicillin 500mg TID", "review in 7 days", "amoxicillin 500mg TID\n\nreview in 7 days"},
		{"amoxicillin 500mg TID", "", "amoxicillin 500mg TID"},
		{"", "review in 7 days", "review in 7 days"},
	}
	for _, tc := range cases {
		got := joinMedicationTreatment(tc.medication, tc.plan)
		if got == nil || *got != tc.want {
			t.Errorf("joinMedicationTreatment(%q, %q) = %v, want %q", tc.medication, tc.plan, got, tc.want)
		}
	}
	if got := joinMedicationTreatment(" ", ""); got != nil {
		t.Errorf("blank inputs should yield nil, got %q", *got)
	}
}

func TestExplain(t *testing.T) {
	if Explain("  INFLUENZA ") == "" {
		t.Error("lookup should fold case and whitespace")
	}
	if Explain("unheard-of syndrome") != "" {
		t.Error("unknown names should return empty")
	}
}
