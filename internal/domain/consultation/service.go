package consultation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rhuis/rhuis/internal/domain/encounter"
	"github.com/rhuis/rhuis/internal/platform/aidx"
	"github.com/rhuis/rhuis/internal/platform/db"
	"github.com/rhuis/rhuis/internal/platform/errs"
	"github.com/rhuis/rhuis/internal/platform/events"
	"github.com/rhuis/rhuis/internal/platform/metrics"
)

// EncounterStore is the slice of the treatment-record store the workflow
// needs: reading the record under consultation and writing back the
// denormalized outcome fields.
type EncounterStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*encounter.Encounter, error)
	UpdateFields(ctx context.Context, id uuid.UUID, upd encounter.FieldUpdate) error
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*encounter.Encounter, int, error)
}

// Service runs the doctor-facing consultation workflow: loading the
// worksheet, checkpointing drafts, and finalizing a treatment record.
type Service struct {
	repo       Repository
	encounters EncounterStore
	pool       *pgxpool.Pool
	bus        *events.Bus
}

// priorVisitLimit caps how much history the worksheet carries.
const priorVisitLimit = 10

func NewService(repo Repository, encounters EncounterStore, pool *pgxpool.Pool) *Service {
	return &Service{repo: repo, encounters: encounters, pool: pool}
}

// SetEventBus attaches the optional workflow event bus.
func (s *Service) SetEventBus(bus *events.Bus) {
	s.bus = bus
}

// ApprovalInput is one diagnosis the doctor accepts, either a model
// suggestion (ai_approved) or typed in directly (final).
type ApprovalInput struct {
	DiagnosisText string `json:"diagnosis_text"`
	DiagnosisType string `json:"diagnosis_type"`
	IsPrimary     bool   `json:"is_primary"`
}

// SaveInput is one consultation save, draft or final.
type SaveInput struct {
	Approvals     []ApprovalInput `json:"approvals"`
	Status        string          `json:"status"`
	Medication    string          `json:"medication"`
	TreatmentPlan string          `json:"treatment_plan"`
	LabFindings   string          `json:"lab_findings"`
	LabTests      string          `json:"lab_tests"`
}

// LoadWorksheet assembles the doctor's pre-fill view: the record's model
// suggestions with display lines and explanations, the current approval
// batch, and the most recent decision (draft or otherwise).
func (s *Service) LoadWorksheet(ctx context.Context, recordID uuid.UUID) (*Worksheet, error) {
	enc, err := s.encounters.GetByID(ctx, recordID)
	if err != nil {
		return nil, err
	}

	ws := &Worksheet{
		TreatmentRecordID: enc.ID,
		PatientName:       enc.PatientName,
		Status:            enc.Status,
	}
	for _, sg := range enc.Suggestions {
		ws.Suggestions = append(ws.Suggestions, SuggestionView{
			Name:        sg.Name,
			Probability: sg.Probability,
			Display:     aidx.FormatSuggestion(sg),
			Explanation: Explain(sg.Name),
		})
	}

	approved, err := s.repo.GetApprovals(ctx, recordID)
	if err != nil {
		return nil, err
	}
	for _, a := range approved {
		ws.Approved = append(ws.Approved, *a)
	}

	dec, err := s.repo.LatestDecision(ctx, recordID)
	if err == nil {
		ws.Decision = dec
	} else if !errors.Is(err, errs.ErrNotFound) {
		return nil, err
	}

	if enc.PatientID != nil {
		prior, _, err := s.encounters.ListByPatient(ctx, *enc.PatientID, priorVisitLimit, 0)
		if err != nil {
			return nil, err
		}
		for _, visit := range prior {
			if visit.ID != enc.ID {
				ws.PriorVisits = append(ws.PriorVisits, visit)
			}
		}
	}
	return ws, nil
}

// ApprovalHistory returns every approval batch ever recorded for the
// treatment record, newest revision first.
func (s *Service) ApprovalHistory(ctx context.Context, recordID uuid.UUID) ([]*ApprovedDiagnosis, error) {
	if _, err := s.encounters.GetByID(ctx, recordID); err != nil {
		return nil, err
	}
	return s.repo.GetApprovalHistory(ctx, recordID)
}

// SaveDraft checkpoints the doctor's work in progress. Any subset of
// fields, at any status, is accepted; the completeness gate applies only
// at finalize.
func (s *Service) SaveDraft(ctx context.Context, recordID uuid.UUID, doctorID *uuid.UUID, in SaveInput) (*Decision, error) {
	enc, err := s.encounters.GetByID(ctx, recordID)
	if err != nil {
		return nil, err
	}

	status := enc.Status
	if in.Status != "" {
		canonical, ok := encounter.CanonicalStatus(in.Status)
		if !ok {
			return nil, errs.Validation("invalid consultation status", map[string]string{
				"status": "unrecognized value",
			})
		}
		status = canonical
	}

	if countFinals(in.Approvals) > 1 {
		return nil, errs.Validation("invalid approval batch", map[string]string{
			"diagnosis_type": "at most one final diagnosis per save",
		})
	}

	var dec *Decision
	err = db.WithTx(ctx, s.pool, func(ctx context.Context) error {
		var rev int
		if len(in.Approvals) > 0 {
			approvals, err := s.recordApprovals(ctx, recordID, doctorID, in.Approvals)
			if err != nil {
				return err
			}
			rev = approvals[0].Revision
		} else {
			// No new batch: the decision pairs with whatever approval
			// revision is current, zero when none exists yet.
			next, err := s.repo.NextRevision(ctx, recordID)
			if err != nil {
				return err
			}
			rev = next - 1
		}
		dec = newDecision(recordID, doctorID, status, in, rev, true)
		return s.repo.CreateDecision(ctx, dec)
	})
	if err != nil {
		return nil, err
	}
	metrics.RecordConsultationDraft()
	return dec, nil
}

// Finalize closes the consultation. The completeness gate requires at
// least one approved or typed diagnosis, a medication/treatment text, and
// a lab-findings impression; every violation is reported together and
// nothing is written on failure. On success the approval batch, the
// non-draft decision, and the treatment record's denormalized fields are
// committed as one transaction.
func (s *Service) Finalize(ctx context.Context, recordID uuid.UUID, doctorID *uuid.UUID, in SaveInput) (*Decision, error) {
	enc, err := s.encounters.GetByID(ctx, recordID)
	if err != nil {
		return nil, err
	}
	if encounter.IsComplete(enc.Status) {
		return nil, errs.Conflict("treatment record is already complete")
	}

	details := map[string]string{}
	if len(in.Approvals) == 0 {
		details["diagnosis"] = "at least one approved or final diagnosis is required"
	}
	for _, a := range in.Approvals {
		if strings.TrimSpace(a.DiagnosisText) == "" {
			details["diagnosis"] = "diagnosis text must not be empty"
		}
		if a.DiagnosisType != TypeAIApproved && a.DiagnosisType != TypeFinal {
			details["diagnosis_type"] = "must be ai_approved or final"
		}
	}
	if countFinals(in.Approvals) > 1 {
		details["diagnosis_type"] = "at most one final diagnosis per save"
	}
	if strings.TrimSpace(in.Medication) == "" && strings.TrimSpace(in.TreatmentPlan) == "" {
		details["medication_treatment"] = "medication or treatment plan is required"
	}
	if strings.TrimSpace(in.LabFindings) == "" {
		details["lab_findings_impression"] = "lab findings impression is required"
	}
	if len(details) > 0 {
		return nil, errs.Validation("consultation is incomplete", details)
	}

	var dec *Decision
	err = db.WithTx(ctx, s.pool, func(ctx context.Context) error {
		approvals, err := s.recordApprovals(ctx, recordID, doctorID, in.Approvals)
		if err != nil {
			return err
		}

		dec = newDecision(recordID, doctorID, encounter.StatusComplete, in, approvals[0].Revision, false)
		if err := s.repo.CreateDecision(ctx, dec); err != nil {
			return err
		}

		status := encounter.StatusComplete
		diagnosis := summarizeDiagnoses(approvals)
		return s.encounters.UpdateFields(ctx, recordID, encounter.FieldUpdate{
			Status:         &status,
			FinalDiagnosis: &diagnosis,
			Medication:     dec.MedicationTreatment,
			LabFindings:    dec.LabFindingsImpression,
			LabTests:       dec.LabTests,
		})
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordConsultationFinalized()
	if s.bus != nil {
		s.bus.Publish(events.NewEvent(events.ConsultationFinalized, map[string]string{
			"treatment_record_id": recordID.String(),
		}))
	}
	return dec, nil
}

// recordApprovals writes a fresh approval batch under the next revision.
// Earlier batches are kept for the audit trail and superseded by revision,
// never updated in place.
func (s *Service) recordApprovals(ctx context.Context, recordID uuid.UUID, doctorID *uuid.UUID, in []ApprovalInput) ([]*ApprovedDiagnosis, error) {
	rev, err := s.repo.NextRevision(ctx, recordID)
	if err != nil {
		return nil, err
	}
	approvals := make([]*ApprovedDiagnosis, 0, len(in))
	for _, a := range in {
		approvals = append(approvals, &ApprovedDiagnosis{
			TreatmentRecordID: recordID,
			DiagnosisText:     strings.TrimSpace(a.DiagnosisText),
			DiagnosisType:     a.DiagnosisType,
			IsPrimary:         a.IsPrimary,
			ApprovedBy:        doctorID,
			Revision:          rev,
		})
	}
	if err := s.repo.CreateApprovals(ctx, approvals); err != nil {
		return nil, err
	}
	return approvals, nil
}

// newDecision builds a decision row tied to the approval revision it was
// saved alongside.
func newDecision(recordID uuid.UUID, doctorID *uuid.UUID, status string, in SaveInput, rev int, draft bool) *Decision {
	return &Decision{
		TreatmentRecordID:     recordID,
		DoctorID:              doctorID,
		Status:                status,
		MedicationTreatment:   joinMedicationTreatment(in.Medication, in.TreatmentPlan),
		LabFindingsImpression: optional(in.LabFindings),
		LabTests:              optional(in.LabTests),
		IsDraft:               draft,
		Revision:              rev,
	}
}

// joinMedicationTreatment combines the medication and treatment-plan texts
// with a blank-line separator, the format the record history expects.
func joinMedicationTreatment(medication, plan string) *string {
	medication = strings.TrimSpace(medication)
	plan = strings.TrimSpace(plan)
	switch {
	case medication == "" && plan == "":
		return nil
	case medication == "":
		return &plan
	case plan == "":
		return &medication
	}
	joined := medication + "\n\n" + plan
	return &joined
}

// summarizeDiagnoses picks the primary diagnosis, or the first one, for
// the treatment record's denormalized diagnosis column.
func summarizeDiagnoses(approvals []*ApprovedDiagnosis) string {
	if len(approvals) == 0 {
		return ""
	}
	text := approvals[0].DiagnosisText
	for _, a := range approvals {
		if a.IsPrimary {
			text = a.DiagnosisText
			break
		}
	}
	if len(approvals) > 1 {
		return fmt.Sprintf("%s (+%d more)", text, len(approvals)-1)
	}
	return text
}

func countFinals(approvals []ApprovalInput) int {
	n := 0
	for _, a := range approvals {
		if a.DiagnosisType == TypeFinal {
			n++
		}
	}
	return n
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
