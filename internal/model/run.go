package model

import "time"

// RunKind identifies which schedulable pass produced a run record.
type RunKind string

const (
	RunKindDaily     RunKind = "daily"
	RunKindReconcile RunKind = "reconcile"
)

// RunStatus tracks a pass's lifecycle in the runs table.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// ErrorCounts tallies per-item failures by taxonomy kind for a run summary.
type ErrorCounts struct {
	ProviderUnavailable int `json:"provider_unavailable,omitempty"`
	GenerationFailed    int `json:"generation_failed,omitempty"`
	CampaignRejected    int `json:"campaign_rejected,omitempty"`
	DuplicateLead       int `json:"duplicate_lead,omitempty"`
	InvalidTransition   int `json:"invalid_transition,omitempty"`
	NotFound            int `json:"not_found,omitempty"`
	Other               int `json:"other,omitempty"`
}

// Total returns the sum of all error counts.
func (e ErrorCounts) Total() int {
	return e.ProviderUnavailable + e.GenerationFailed + e.CampaignRejected +
		e.DuplicateLead + e.InvalidTransition + e.NotFound + e.Other
}

// RunSummary is the user-visible outcome of a single pass.
type RunSummary struct {
	Discovered   int         `json:"discovered"`
	Deduped      int         `json:"deduped"`
	Enriched     int         `json:"enriched"`
	EnrichMisses int         `json:"enrich_misses"`
	Stored       int         `json:"stored"`
	Personalized int         `json:"personalized"`
	Enqueued     int         `json:"enqueued"`
	Synced       int         `json:"synced"`
	RepliesFound int         `json:"replies_found"`
	Unmatched    int         `json:"unmatched"`
	Errors       ErrorCounts `json:"errors"`
}

// Run is a persisted record of one pass invocation.
type Run struct {
	ID          string      `json:"id" db:"id"`
	Kind        RunKind     `json:"kind" db:"kind"`
	Status      RunStatus   `json:"status" db:"status"`
	Summary     *RunSummary `json:"summary,omitempty" db:"summary"`
	StartedAt   time.Time   `json:"started_at" db:"started_at"`
	CompletedAt *time.Time  `json:"completed_at,omitempty" db:"completed_at"`
}

// Stats aggregates the store for the status command and dashboard.
type Stats struct {
	TotalLeads int            `json:"total_leads"`
	ByStatus   map[Status]int `json:"by_status"`
}
