package referral

import (
	"time"

	"github.com/google/uuid"
)

// Referral reasons selectable by a BHW. Anything else goes into the
// free-text OtherReason field.
var ValidReasons = map[string]bool{
	"consultation": true,
	"laboratory":   true,
	"treatment":    true,
	"follow-up":    true,
	"maternal":     true,
	"immunization": true,
	"other":        true,
}

// Referral maps to the referral table. The patient fields are a decoupled
// snapshot taken at referral time, not a foreign key into the registry.
// Once a referral is accepted into a treatment record, only Status and
// Seen may change.
type Referral struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	FirstName   string     `db:"first_name" json:"first_name"`
	LastName    string     `db:"last_name" json:"last_name"`
	BirthDate   *time.Time `db:"birth_date" json:"birth_date,omitempty"`
	Address     *string    `db:"address" json:"address,omitempty"`
	Facility    string     `db:"facility" json:"facility"`
	Reasons     []string   `db:"reasons" json:"reasons"`
	OtherReason *string    `db:"other_reason" json:"other_reason,omitempty"`
	Status      string     `db:"status" json:"status"`
	Seen        bool       `db:"seen" json:"seen"`
	BHWID       *uuid.UUID `db:"bhw_id" json:"bhw_id,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}
