package consultation

import (
	"time"

	"github.com/google/uuid"

	"github.com/rhuis/rhuis/internal/domain/encounter"
)

// Diagnosis provenance. An ai_approved row is a model suggestion the doctor
// accepted; a final row is a diagnosis the doctor typed in.
const (
	TypeAIApproved = "ai_approved"
	TypeFinal      = "final"
)

// ApprovedDiagnosis is one doctor-approved diagnosis attached to a
// treatment record. Rows from earlier save passes keep their revision and
// stay in the audit trail; only the highest revision is current.
type ApprovedDiagnosis struct {
	ID                uuid.UUID  `db:"id" json:"id"`
	TreatmentRecordID uuid.UUID  `db:"treatment_record_id" json:"treatment_record_id"`
	DiagnosisText     string     `db:"diagnosis_text" json:"diagnosis_text"`
	DiagnosisType     string     `db:"diagnosis_type" json:"diagnosis_type"`
	IsPrimary         bool       `db:"is_primary" json:"is_primary"`
	ApprovedBy        *uuid.UUID `db:"approved_by" json:"approved_by,omitempty"`
	Revision          int        `db:"revision" json:"revision"`
	CreatedAt         time.Time  `db:"created_at" json:"created_at"`
}

// Decision is the doctor's consultation outcome for a treatment record.
// Draft decisions are work in progress and bypass the completeness gate;
// a non-draft decision exists only once the record is finalized.
type Decision struct {
	ID                    uuid.UUID  `db:"id" json:"id"`
	TreatmentRecordID     uuid.UUID  `db:"treatment_record_id" json:"treatment_record_id"`
	DoctorID              *uuid.UUID `db:"doctor_id" json:"doctor_id,omitempty"`
	Status                string     `db:"status" json:"status"`
	MedicationTreatment   *string    `db:"medication_treatment" json:"medication_treatment,omitempty"`
	LabFindingsImpression *string    `db:"lab_findings_impression" json:"lab_findings_impression,omitempty"`
	LabTests              *string    `db:"lab_tests" json:"lab_tests,omitempty"`
	IsDraft               bool       `db:"is_draft" json:"is_draft"`
	Revision              int        `db:"revision" json:"revision"`
	CreatedAt             time.Time  `db:"created_at" json:"created_at"`
}

// Worksheet is the doctor's working view of a consultation: the treatment
// record's suggestions, whatever was approved and decided so far, and the
// patient's recent prior visits.
type Worksheet struct {
	TreatmentRecordID uuid.UUID              `json:"treatment_record_id"`
	PatientName       string                 `json:"patient_name"`
	Status            string                 `json:"status"`
	Suggestions       []SuggestionView       `json:"suggestions"`
	Approved          []ApprovedDiagnosis    `json:"approved"`
	Decision          *Decision              `json:"decision,omitempty"`
	PriorVisits       []*encounter.Encounter `json:"prior_visits,omitempty"`
}

// SuggestionView pairs a model suggestion with its display line and, when
// available, a plain-language explanation for the doctor.
type SuggestionView struct {
	Name        string  `json:"name"`
	Probability float64 `json:"probability"`
	Display     string  `json:"display"`
	Explanation string  `json:"explanation,omitempty"`
}
