package registry

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Patient origin tags. Clinic-originated records are preferred when an
// identity match is ambiguous.
const (
	OriginClinic    = "clinic"
	OriginCommunity = "community"
)

// Patient maps to the patient table. The registry is the source of truth
// for identity; referrals and treatment records carry decoupled name
// snapshots, never foreign keys into their own copies.
type Patient struct {
	ID        uuid.UUID  `db:"id" json:"id"`
	FirstName string     `db:"first_name" json:"first_name"`
	LastName  string     `db:"last_name" json:"last_name"`
	BirthDate *time.Time `db:"birth_date" json:"birth_date,omitempty"`
	Address   *string    `db:"address" json:"address,omitempty"`
	Origin    string     `db:"origin" json:"origin"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
}

// NormalizeName trims, collapses inner whitespace and case-folds a name
// part. Matching is hard equality on this form; no fuzzy matching, so
// distinct patients are never silently merged.
func NormalizeName(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// SameBirthDate compares two birth dates at day precision. A missing date
// on either side acts as a wildcard.
func SameBirthDate(a, b *time.Time) bool {
	if a == nil || b == nil {
		return true
	}
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
