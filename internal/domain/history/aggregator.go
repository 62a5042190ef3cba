// Package history rolls completed treatment records up into per-patient
// visit summaries for the records-review screen.
package history

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rhuis/rhuis/internal/domain/consultation"
	"github.com/rhuis/rhuis/internal/domain/encounter"
	"github.com/rhuis/rhuis/internal/domain/registry"
	"github.com/rhuis/rhuis/internal/platform/errs"
)

// Sort orders for the summary sequence.
const (
	SortMostRecent   = "recent"
	SortOldest       = "oldest"
	SortAlphabetical = "name"
)

// Summary is one patient's rolled-up visit history.
type Summary struct {
	PatientID        *uuid.UUID `json:"patient_id,omitempty"`
	PatientName      string     `json:"patient_name"`
	VisitCount       int        `json:"visit_count"`
	LatestVisit      time.Time  `json:"latest_visit"`
	LatestRecordID   uuid.UUID  `json:"latest_record_id"`
	DiagnosisSummary string     `json:"diagnosis_summary"`
}

// EncounterSource is the slice of the treatment-record store the
// aggregator reads from.
type EncounterSource interface {
	ListAll(ctx context.Context) ([]*encounter.Encounter, error)
}

// ApprovalSource supplies the current approval batch for a record, used to
// derive the diagnosis summary of each patient's latest visit.
type ApprovalSource interface {
	GetApprovals(ctx context.Context, recordID uuid.UUID) ([]*consultation.ApprovedDiagnosis, error)
}

type Aggregator struct {
	encounters EncounterSource
	approvals  ApprovalSource
}

func NewAggregator(encounters EncounterSource, approvals ApprovalSource) *Aggregator {
	return &Aggregator{encounters: encounters, approvals: approvals}
}

// group is one patient's encounters before summarization.
type group struct {
	patientID *uuid.UUID
	name      string
	visits    []*encounter.Encounter
	latest    *encounter.Encounter
}

// Build groups every treatment record by patient and returns a restartable
// cursor over the summaries in the requested order. Records are grouped by
// patient id; records that never got linked to the registry fall back to
// their normalized name snapshot as the grouping key.
func (a *Aggregator) Build(ctx context.Context, order string) (*Cursor, error) {
	switch order {
	case "", SortMostRecent, SortOldest, SortAlphabetical:
	default:
		return nil, errs.Validation("unknown sort order", map[string]string{
			"sort": fmt.Sprintf("unrecognized value %q", order),
		})
	}

	encounters, err := a.encounters.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	groups := map[string]*group{}
	var keys []string
	for _, enc := range encounters {
		key := groupKey(enc)
		g, ok := groups[key]
		if !ok {
			g = &group{patientID: enc.PatientID, name: enc.PatientName}
			groups[key] = g
			keys = append(keys, key)
		}
		g.visits = append(g.visits, enc)
		if g.latest == nil || enc.VisitDate().After(g.latest.VisitDate()) {
			g.latest = enc
		}
	}

	ordered := make([]*group, 0, len(keys))
	for _, key := range keys {
		ordered = append(ordered, groups[key])
	}
	sortGroups(ordered, order)

	return &Cursor{aggregator: a, groups: ordered}, nil
}

func groupKey(enc *encounter.Encounter) string {
	if enc.PatientID != nil {
		return "id:" + enc.PatientID.String()
	}
	return "name:" + registry.NormalizeName(enc.PatientName)
}

func sortGroups(groups []*group, order string) {
	switch order {
	case SortOldest:
		sort.SliceStable(groups, func(i, j int) bool {
			return groups[i].latest.VisitDate().Before(groups[j].latest.VisitDate())
		})
	case SortAlphabetical:
		sort.SliceStable(groups, func(i, j int) bool {
			return strings.ToLower(groups[i].name) < strings.ToLower(groups[j].name)
		})
	default:
		sort.SliceStable(groups, func(i, j int) bool {
			return groups[i].latest.VisitDate().After(groups[j].latest.VisitDate())
		})
	}
}

// Cursor walks the summaries one patient at a time. Each summary is
// materialized on first visit, so the approval lookups happen only for the
// rows the caller actually consumes; Reset replays from the start without
// refetching.
type Cursor struct {
	aggregator *Aggregator
	groups     []*group
	built      []*Summary
	pos        int
}

// Next returns the next summary, or ok=false when the sequence is done.
func (c *Cursor) Next(ctx context.Context) (*Summary, bool, error) {
	if c.pos >= len(c.groups) {
		return nil, false, nil
	}
	if c.pos < len(c.built) {
		s := c.built[c.pos]
		c.pos++
		return s, true, nil
	}

	g := c.groups[c.pos]
	diagnosis, err := c.aggregator.diagnosisSummary(ctx, g.latest)
	if err != nil {
		return nil, false, err
	}
	s := &Summary{
		PatientID:        g.patientID,
		PatientName:      g.name,
		VisitCount:       len(g.visits),
		LatestVisit:      g.latest.VisitDate(),
		LatestRecordID:   g.latest.ID,
		DiagnosisSummary: diagnosis,
	}
	c.built = append(c.built, s)
	c.pos++
	return s, true, nil
}

// Reset rewinds the cursor to the first summary.
func (c *Cursor) Reset() {
	c.pos = 0
}

// Len reports how many patients the cursor covers.
func (c *Cursor) Len() int {
	return len(c.groups)
}

// All drains the cursor from its current position.
func (c *Cursor) All(ctx context.Context) ([]*Summary, error) {
	var out []*Summary
	for {
		s, ok, err := c.Next(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			return out, nil
		}
		out = append(out, s)
	}
}

// diagnosisSummary condenses the latest visit's approved diagnoses into one
// line: the primary diagnosis when one is marked, otherwise the first, with
// a remainder count. Records finalized without the approval workflow fall
// back to their denormalized diagnosis column.
func (a *Aggregator) diagnosisSummary(ctx context.Context, latest *encounter.Encounter) (string, error) {
	approvals, err := a.approvals.GetApprovals(ctx, latest.ID)
	if err != nil {
		return "", err
	}
	if len(approvals) == 0 {
		if latest.FinalDiagnosis != nil {
			return *latest.FinalDiagnosis, nil
		}
		return "", nil
	}

	text := approvals[0].DiagnosisText
	for _, appr := range approvals {
		if appr.IsPrimary {
			text = appr.DiagnosisText
			break
		}
	}
	if len(approvals) > 1 {
		return fmt.Sprintf("%s (+%d more)", text, len(approvals)-1), nil
	}
	return text, nil
}
