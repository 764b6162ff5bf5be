// Package store persists leads and run records behind a driver-agnostic
// interface with SQLite and Postgres implementations.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/outboundlabs/leadflow/internal/model"
)

var (
	// ErrDuplicateLead is returned when an insert collides with an existing
	// lead's fingerprint or email.
	ErrDuplicateLead = eris.New("store: duplicate lead")

	// ErrNotFound is returned when no lead or run matches the lookup.
	ErrNotFound = eris.New("store: not found")

	// ErrInvalidTransition is returned when an update would move a lead
	// backward in the lifecycle or clear a sent-step flag.
	ErrInvalidTransition = eris.New("store: invalid transition")
)

// IdentityPair carries the dedup identity of one stored lead.
type IdentityPair struct {
	Fingerprint string
	Email       string
}

// LeadUpdate is a partial update. Nil fields are left unchanged.
type LeadUpdate struct {
	ContactName   *string
	Title         *string
	Email         *string
	EmailVerified *bool
	Phone         *string
	Website       *string
	Industry      *string
	EmployeeCount *int
	LinkedIn      *string
	Notes         *string
	LeadScore     *int
	Status        *model.Status
	ExternalID    *string
	LastContact   *time.Time
	EmailSent     *[model.SequenceSteps]bool
	Opens         *int
	Clicks        *int
	Response      *string
}

// Store defines the persistence interface for the lead pipeline.
type Store interface {
	// Leads
	InsertLead(ctx context.Context, lead *model.Lead) error
	GetLead(ctx context.Context, id string) (*model.Lead, error)
	FindLeadByEmail(ctx context.Context, email string) (*model.Lead, error)
	FindLeadByExternalID(ctx context.Context, externalID string) (*model.Lead, error)
	// ListLeadsByStatus returns leads in a status, oldest first. A limit of
	// zero or less returns every matching lead.
	ListLeadsByStatus(ctx context.Context, status model.Status, limit int) ([]model.Lead, error)
	ListLeads(ctx context.Context) ([]model.Lead, error)
	UpdateLead(ctx context.Context, id string, upd LeadUpdate) (*model.Lead, error)
	IdentityPairs(ctx context.Context) ([]IdentityPair, error)

	// Runs
	CreateRun(ctx context.Context, kind model.RunKind) (*model.Run, error)
	CompleteRun(ctx context.Context, runID string, status model.RunStatus, summary *model.RunSummary) error
	ListRuns(ctx context.Context, limit int) ([]model.Run, error)

	// Aggregates
	Stats(ctx context.Context) (*model.Stats, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// applyUpdate validates upd against the lead's current state and merges it in
// place. Lifecycle and sent-step rules are enforced here so both drivers
// share one gatekeeper.
func applyUpdate(l *model.Lead, upd LeadUpdate) error {
	if upd.Status != nil && !model.CanTransition(l.Status, *upd.Status) {
		return eris.Wrapf(ErrInvalidTransition, "status %s -> %s", l.Status, *upd.Status)
	}
	if upd.EmailSent != nil && !model.CanAdvanceSteps(l.EmailSent, *upd.EmailSent) {
		return eris.Wrapf(ErrInvalidTransition, "sent steps %v -> %v", l.EmailSent, *upd.EmailSent)
	}

	if upd.ContactName != nil {
		l.ContactName = *upd.ContactName
	}
	if upd.Title != nil {
		l.Title = *upd.Title
	}
	if upd.Email != nil {
		l.Email = *upd.Email
	}
	if upd.EmailVerified != nil {
		l.EmailVerified = *upd.EmailVerified
	}
	if upd.Phone != nil {
		l.Phone = *upd.Phone
	}
	if upd.Website != nil {
		l.Website = *upd.Website
	}
	if upd.Industry != nil {
		l.Industry = *upd.Industry
	}
	if upd.EmployeeCount != nil {
		l.EmployeeCount = *upd.EmployeeCount
	}
	if upd.LinkedIn != nil {
		l.LinkedIn = *upd.LinkedIn
	}
	if upd.Notes != nil {
		l.Notes = *upd.Notes
	}
	if upd.LeadScore != nil {
		l.LeadScore = *upd.LeadScore
	}
	if upd.Status != nil {
		l.Status = *upd.Status
	}
	if upd.ExternalID != nil {
		l.ExternalID = *upd.ExternalID
	}
	if upd.LastContact != nil {
		l.LastContact = upd.LastContact
	}
	if upd.EmailSent != nil {
		l.EmailSent = *upd.EmailSent
	}
	if upd.Opens != nil {
		l.Opens = *upd.Opens
	}
	if upd.Clicks != nil {
		l.Clicks = *upd.Clicks
	}
	if upd.Response != nil {
		l.Response = *upd.Response
	}
	return nil
}
