package encounter

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rhuis/rhuis/internal/domain/registry"
	"github.com/rhuis/rhuis/internal/platform/aidx"
	"github.com/rhuis/rhuis/internal/platform/errs"
	"github.com/rhuis/rhuis/internal/platform/events"
	"github.com/rhuis/rhuis/internal/platform/metrics"
)

// PatientResolver matches a name snapshot against the patient registry.
type PatientResolver interface {
	Resolve(ctx context.Context, firstName, lastName string, birthDate *time.Time) (*registry.Patient, error)
}

// Suggester asks the external model for ranked diagnosis candidates.
type Suggester interface {
	Suggest(ctx context.Context, req aidx.Request) ([]aidx.Suggestion, error)
}

type Service struct {
	repo      Repository
	resolver  PatientResolver
	suggester Suggester
	bus       *events.Bus
}

func NewService(repo Repository, resolver PatientResolver) *Service {
	return &Service{repo: repo, resolver: resolver}
}

// SetSuggester attaches the optional AI diagnosis adapter.
func (s *Service) SetSuggester(sg Suggester) {
	s.suggester = sg
}

// SetEventBus attaches the optional workflow event bus.
func (s *Service) SetEventBus(bus *events.Bus) {
	s.bus = bus
}

// CreateInput carries everything needed to open a treatment record.
type CreateInput struct {
	PatientID        *uuid.UUID        `json:"patient_id,omitempty"`
	FirstName        string            `json:"first_name"`
	LastName         string            `json:"last_name"`
	BirthDate        *time.Time        `json:"birth_date,omitempty"`
	ReferralID       *uuid.UUID        `json:"referral_id,omitempty"`
	VisitType        string            `json:"visit_type"`
	PurposeOfVisit   string            `json:"purpose_of_visit"`
	ConsultationDate *time.Time        `json:"consultation_date,omitempty"`
	BloodPressure    *string           `json:"blood_pressure,omitempty"`
	TemperatureC     *float64          `json:"temperature_c,omitempty"`
	HeightCm         *float64          `json:"height_cm,omitempty"`
	WeightKg         *float64          `json:"weight_kg,omitempty"`
	HeartRateBPM     *int              `json:"heart_rate_bpm,omitempty"`
	RespRateCPM      *int              `json:"resp_rate_cpm,omitempty"`
	Suggestions      []aidx.Suggestion `json:"suggestions,omitempty"`
	DataType         string            `json:"data_type"`
	BHWID            *uuid.UUID        `json:"bhw_id,omitempty"`
}

// CreateEncounter opens a treatment record with status Pending. When no
// patient id is supplied the identity is resolved through the registry;
// a miss propagates as errs.NotFound so the caller can offer registration.
// A patient with an open record is rejected with errs.Conflict by the
// store's conditional insert.
func (s *Service) CreateEncounter(ctx context.Context, in CreateInput) (*Encounter, error) {
	enc := &Encounter{
		PatientID:        in.PatientID,
		PatientName:      strings.TrimSpace(in.FirstName + " " + in.LastName),
		ReferralID:       in.ReferralID,
		VisitType:        in.VisitType,
		PurposeOfVisit:   in.PurposeOfVisit,
		ConsultationDate: in.ConsultationDate,
		BloodPressure:    in.BloodPressure,
		TemperatureC:     in.TemperatureC,
		HeightCm:         in.HeightCm,
		WeightKg:         in.WeightKg,
		HeartRateBPM:     in.HeartRateBPM,
		RespRateCPM:      in.RespRateCPM,
		Suggestions:      topSuggestions(in.Suggestions),
		Status:           StatusPending,
		DataType:         in.DataType,
		BHWID:            in.BHWID,
	}
	if enc.DataType == "" {
		enc.DataType = registry.OriginClinic
	}

	if enc.PatientID == nil {
		if strings.TrimSpace(in.FirstName) == "" && strings.TrimSpace(in.LastName) == "" {
			return nil, errs.Validation("patient identity is required", map[string]string{
				"patient_id": "supply a patient id or a first and last name",
			})
		}
		patient, err := s.resolver.Resolve(ctx, in.FirstName, in.LastName, in.BirthDate)
		if err != nil {
			return nil, fmt.Errorf("resolve patient identity: %w", err)
		}
		enc.PatientID = &patient.ID
		enc.PatientName = strings.TrimSpace(patient.FirstName + " " + patient.LastName)
	}

	if err := s.repo.Create(ctx, enc); err != nil {
		return nil, err
	}

	metrics.RecordEncounterCreated(enc.DataType)
	if s.bus != nil {
		s.bus.Publish(events.NewEvent(events.EncounterCreated, enc.ID))
	}
	return enc, nil
}

func (s *Service) GetEncounter(ctx context.Context, id uuid.UUID) (*Encounter, error) {
	return s.repo.GetByID(ctx, id)
}

// ListOpenEncounters returns the pending-consultations queue, newest first.
func (s *Service) ListOpenEncounters(ctx context.Context, f Filter, limit, offset int) ([]*Encounter, int, error) {
	return s.repo.ListOpen(ctx, f, limit, offset)
}

// ListByPatient returns all of a patient's encounters, newest first.
func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Encounter, int, error) {
	return s.repo.ListByPatient(ctx, patientID, limit, offset)
}

// SuggestDiagnoses asks the AI adapter for a differential based on the
// encounter's complaint and vitals, stores the structured candidates on the
// record, and returns the updated encounter.
func (s *Service) SuggestDiagnoses(ctx context.Context, id uuid.UUID) (*Encounter, error) {
	if s.suggester == nil {
		return nil, errs.Validation("diagnosis suggestions unavailable", map[string]string{
			"suggester": "no diagnosis service configured",
		})
	}

	enc, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	req := aidx.Request{
		Complaint:    enc.PurposeOfVisit,
		TemperatureC: enc.TemperatureC,
		WeightKg:     enc.WeightKg,
		HeartRateBPM: enc.HeartRateBPM,
		RespRateCPM:  enc.RespRateCPM,
	}
	if enc.BloodPressure != nil {
		req.SystolicBP, req.DiastolicBP = parseBloodPressure(*enc.BloodPressure)
	}

	suggestions, err := s.suggester.Suggest(ctx, req)
	if err != nil {
		metrics.RecordAISuggestion("error")
		return nil, err
	}
	metrics.RecordAISuggestion("ok")

	enc.Suggestions = topSuggestions(suggestions)
	if err := s.repo.Update(ctx, enc); err != nil {
		return nil, err
	}
	return enc, nil
}

// topSuggestions keeps at most the three highest-ranked candidates, the
// slots the record carries.
func topSuggestions(s []aidx.Suggestion) []aidx.Suggestion {
	if len(s) > 3 {
		return s[:3]
	}
	return s
}

// parseBloodPressure splits a "120/80" reading. Either side may be missing.
func parseBloodPressure(bp string) (systolic, diastolic *int) {
	parts := strings.SplitN(strings.TrimSpace(bp), "/", 2)
	if v, err := strconv.Atoi(strings.TrimSpace(parts[0])); err == nil {
		systolic = &v
	}
	if len(parts) == 2 {
		if v, err := strconv.Atoi(strings.TrimSpace(parts[1])); err == nil {
			diastolic = &v
		}
	}
	return systolic, diastolic
}
