package linktracker

import (
	"time"

	"github.com/google/uuid"
)

// DateLayout is the calendar-date format used for link expiration.
const DateLayout = "2006-01-02"

// Link is the persisted record tracking one masked link: its target mapping,
// validity, password gate, expiration, and visit count.
type Link struct {
	ID         uuid.UUID
	MaskedLink string // full public URL (<base>/l/<token>), unique, immutable
	Target     string
	Valid      bool   // transitions true -> false only, never back
	Password   string // empty means no password gate
	Expiration string // YYYY-MM-DD, empty means never expires
	Visited    int64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// ExpiredAt reports whether now's calendar date is strictly after the
// record's expiration date. The link keeps working for the whole expiration
// day; an empty or unparseable expiration never expires.
func (l Link) ExpiredAt(now time.Time) bool {
	if l.Expiration == "" {
		return false
	}
	exp, err := time.Parse(DateLayout, l.Expiration)
	if err != nil {
		return false
	}
	day := now.UTC().Truncate(24 * time.Hour)
	return day.After(exp)
}

// LinkUpdate is a partial update applied by Repository.UpdateByID.
// Nil fields are left unchanged. Validity and the visit counter have their
// own transition rules and are the only fields the core ever mutates.
type LinkUpdate struct {
	Valid      *bool
	Target     *string
	Password   *string
	Expiration *string
}
