package encounter

import (
	"time"

	"github.com/google/uuid"

	"github.com/rhuis/rhuis/internal/platform/aidx"
)

// Encounter maps to the treatment_record table: one patient visit with
// vitals, AI diagnosis suggestions, and the doctor's decisions denormalized
// onto it after finalize. PatientID stays nil until identity is resolved
// and is fixed afterwards; PatientName is a decoupled snapshot.
type Encounter struct {
	ID               uuid.UUID         `db:"id" json:"id"`
	PatientID        *uuid.UUID        `db:"patient_id" json:"patient_id,omitempty"`
	PatientName      string            `db:"patient_name" json:"patient_name"`
	ReferralID       *uuid.UUID        `db:"referral_id" json:"referral_id,omitempty"`
	VisitType        string            `db:"visit_type" json:"visit_type"`
	PurposeOfVisit   string            `db:"purpose_of_visit" json:"purpose_of_visit"`
	ConsultationDate *time.Time        `db:"consultation_date" json:"consultation_date,omitempty"`
	BloodPressure    *string           `db:"blood_pressure" json:"blood_pressure,omitempty"`
	TemperatureC     *float64          `db:"temperature_c" json:"temperature_c,omitempty"`
	HeightCm         *float64          `db:"height_cm" json:"height_cm,omitempty"`
	WeightKg         *float64          `db:"weight_kg" json:"weight_kg,omitempty"`
	HeartRateBPM     *int              `db:"heart_rate_bpm" json:"heart_rate_bpm,omitempty"`
	RespRateCPM      *int              `db:"resp_rate_cpm" json:"resp_rate_cpm,omitempty"`
	Suggestions      []aidx.Suggestion `db:"suggestions" json:"suggestions,omitempty"`
	FinalDiagnosis   *string           `db:"diagnosis" json:"diagnosis,omitempty"`
	Medication       *string           `db:"medication" json:"medication,omitempty"`
	LabFindings      *string           `db:"lab_findings" json:"lab_findings,omitempty"`
	LabTests         *string           `db:"lab_tests" json:"lab_tests,omitempty"`
	Status           string            `db:"status" json:"status"`
	DataType         string            `db:"data_type" json:"data_type"`
	BHWID            *uuid.UUID        `db:"bhw_id" json:"bhw_id,omitempty"`
	CreatedAt        time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time         `db:"updated_at" json:"updated_at"`
}

// DiagnosisLines renders the stored AI suggestions as the legacy
// diagnosis_1..3 display strings, e.g. "Influenza (42.0%)".
func (e *Encounter) DiagnosisLines() []string {
	lines := make([]string, 0, len(e.Suggestions))
	for _, s := range e.Suggestions {
		lines = append(lines, aidx.FormatSuggestion(s))
	}
	return lines
}

// VisitDate is the date used for history ordering: the consultation date
// when recorded, otherwise the record's creation time.
func (e *Encounter) VisitDate() time.Time {
	if e.ConsultationDate != nil {
		return *e.ConsultationDate
	}
	return e.CreatedAt
}
