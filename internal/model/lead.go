// Package model defines the lead domain entities shared across the pipeline.
package model

import "time"

// SequenceSteps is the number of emails in the multi-touch outreach cadence.
const SequenceSteps = 4

// Status is a lead's position in the outreach lifecycle.
type Status string

const (
	StatusNew       Status = "New"
	StatusQueued    Status = "Queued"
	StatusContacted Status = "Contacted"
	StatusReplied   Status = "Replied"
	StatusMeeting   Status = "Meeting"
	StatusWon       Status = "Won"
	StatusLost      Status = "Lost"
)

// statusRank orders statuses for monotonicity checks. Meeting, Won and Lost
// are manually-issued outcomes that sit past Replied; automated passes may
// never move a lead to a lower rank.
var statusRank = map[Status]int{
	StatusNew:       0,
	StatusQueued:    1,
	StatusContacted: 2,
	StatusReplied:   3,
	StatusMeeting:   4,
	StatusWon:       5,
	StatusLost:      5,
}

// Valid reports whether s is a known lifecycle status.
func (s Status) Valid() bool {
	_, ok := statusRank[s]
	return ok
}

// CanTransition reports whether moving a lead from cur to next respects the
// monotonic lifecycle. Same-state writes are allowed so reconcile passes stay
// idempotent; backward moves are not.
func CanTransition(cur, next Status) bool {
	cr, ok := statusRank[cur]
	if !ok {
		return false
	}
	nr, ok := statusRank[next]
	if !ok {
		return false
	}
	if cur == next {
		return true
	}
	return nr > cr
}

// Lead is the system of record entity for a prospective customer.
type Lead struct {
	ID            string `json:"id" db:"id"`
	Company       string `json:"company" db:"company"`
	ContactName   string `json:"contact_name,omitempty" db:"contact_name"`
	Title         string `json:"title,omitempty" db:"title"`
	Email         string `json:"email,omitempty" db:"email"`
	EmailVerified bool   `json:"email_verified" db:"email_verified"`
	Phone         string `json:"phone,omitempty" db:"phone"`
	Website       string `json:"website,omitempty" db:"website"`
	Industry      string `json:"industry,omitempty" db:"industry"`
	EmployeeCount int    `json:"employee_count,omitempty" db:"employee_count"`
	City          string `json:"city,omitempty" db:"city"`
	Country       string `json:"country,omitempty" db:"country"`
	LinkedIn      string `json:"linkedin,omitempty" db:"linkedin"`
	Source        string `json:"source,omitempty" db:"source"`
	Notes         string `json:"notes,omitempty" db:"notes"`

	// Fingerprint is the normalized (company, city) identity key used for
	// deduplication when no email is known.
	Fingerprint string `json:"fingerprint" db:"fingerprint"`

	LeadScore int    `json:"lead_score" db:"lead_score"`
	Status    Status `json:"status" db:"status"`

	// ExternalID is the campaign provider's identifier for this lead, set
	// when the lead is enqueued.
	ExternalID string `json:"external_id,omitempty" db:"external_id"`

	DateAdded   time.Time           `json:"date_added" db:"date_added"`
	LastContact *time.Time          `json:"last_contact,omitempty" db:"last_contact"`
	EmailSent   [SequenceSteps]bool `json:"email_sent" db:"-"`
	Opens       int                 `json:"opens" db:"opens"`
	Clicks      int                 `json:"clicks" db:"clicks"`
	Response    string              `json:"response,omitempty" db:"response"`
}

// SentCount returns the number of cadence steps already sent.
func (l Lead) SentCount() int {
	n := 0
	for _, sent := range l.EmailSent {
		if !sent {
			break
		}
		n++
	}
	return n
}

// StepsValid reports whether the sent flags form a prefix: step k may be
// true only if every step before it is true.
func StepsValid(steps [SequenceSteps]bool) bool {
	seenFalse := false
	for _, sent := range steps {
		if seenFalse && sent {
			return false
		}
		if !sent {
			seenFalse = true
		}
	}
	return true
}

// CanAdvanceSteps reports whether next is a prefix-valid, monotonic
// extension of cur: flags are only ever set, never cleared.
func CanAdvanceSteps(cur, next [SequenceSteps]bool) bool {
	if !StepsValid(next) {
		return false
	}
	for i := range cur {
		if cur[i] && !next[i] {
			return false
		}
	}
	return true
}

// StepsFromCount returns the prefix flags for n sent emails, clamped to the
// cadence length.
func StepsFromCount(n int) [SequenceSteps]bool {
	var steps [SequenceSteps]bool
	for i := 0; i < n && i < SequenceSteps; i++ {
		steps[i] = true
	}
	return steps
}
