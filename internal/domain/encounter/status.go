package encounter

import "strings"

// Canonical status vocabulary, preserved exactly for compatibility with
// legacy rows. Referrals and treatment records share it.
const (
	StatusPending      = "Pending"
	StatusInLaboratory = "In Laboratory"
	StatusComplete     = "Complete"
)

// statusAliases folds legacy spellings and case-insensitive duplicates onto
// the three logical states.
var statusAliases = map[string]string{
	"pending":       StatusPending,
	"in laboratory": StatusInLaboratory,
	"in progress":   StatusInLaboratory,
	"complete":      StatusComplete,
	"completed":     StatusComplete,
}

// CanonicalStatus maps any accepted spelling onto its canonical status.
// The second return value is false for unknown values.
func CanonicalStatus(s string) (string, bool) {
	canonical, ok := statusAliases[strings.ToLower(strings.TrimSpace(s))]
	return canonical, ok
}

// IsComplete reports whether s denotes the Complete logical state under any
// accepted spelling.
func IsComplete(s string) bool {
	canonical, ok := CanonicalStatus(s)
	return ok && canonical == StatusComplete
}

// IsOpen reports whether s denotes a non-Complete state. Unknown values are
// treated as open so malformed rows stay visible in the queue.
func IsOpen(s string) bool {
	return !IsComplete(s)
}

// Spellings returns every stored spelling of a canonical status, lowered.
// Status filters must compare against all of them so legacy rows keep
// matching.
func Spellings(canonical string) []string {
	var out []string
	for alias, c := range statusAliases {
		if c == canonical {
			out = append(out, alias)
		}
	}
	return out
}
