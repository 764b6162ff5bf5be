// Package enrich resolves a discovered company against Apollo to find the
// firmographic profile and the best decision-maker contact.
package enrich

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/outboundlabs/leadflow/internal/resilience"
	"github.com/outboundlabs/leadflow/pkg/apollo"
)

// seniorities queried, most senior first. The index doubles as the
// contact-pick priority.
var seniorities = []string{"owner", "founder", "c_suite", "vp"}

// Result is the outcome of one enrichment attempt. Miss means the provider
// had no record of the company, which is a valid outcome rather than an
// error: the lead proceeds with discovery data only.
type Result struct {
	Org     *apollo.Organization
	Contact *apollo.Person
	Miss    bool
}

// EmailVerified reports whether the contact's email passed provider
// verification.
func (r *Result) EmailVerified() bool {
	return r.Contact != nil && r.Contact.EmailStatus == "verified"
}

// Notes flattens the org's description and keywords into the lead's notes so
// downstream scoring stays a function of persisted lead data.
func (r *Result) Notes() string {
	if r.Org == nil {
		return ""
	}
	parts := []string{}
	if r.Org.ShortDescription != "" {
		parts = append(parts, r.Org.ShortDescription)
	}
	if len(r.Org.Keywords) > 0 {
		parts = append(parts, "Keywords: "+strings.Join(r.Org.Keywords, ", "))
	}
	return strings.Join(parts, " | ")
}

// Enricher looks up companies and contacts via Apollo.
type Enricher struct {
	client apollo.Client
}

// New creates an Enricher.
func New(client apollo.Client) *Enricher {
	return &Enricher{client: client}
}

// Enrich finds the company and its most senior reachable contact.
func (e *Enricher) Enrich(ctx context.Context, company, website string) (*Result, error) {
	log := zap.L().Named("enrich")

	org, err := e.client.SearchOrganization(ctx, company, Domain(website))
	if err != nil {
		return nil, classify(err)
	}
	if org == nil {
		log.Debug("no organization match", zap.String("company", company))
		return &Result{Miss: true}, nil
	}

	people, err := e.client.SearchPeople(ctx, org.ID, seniorities)
	if err != nil {
		return nil, classify(err)
	}

	contact := pickContact(people)
	if contact != nil && contact.Email == "" {
		matched, err := e.client.MatchPerson(ctx, contact.ID)
		if err != nil {
			return nil, classify(err)
		}
		if matched != nil {
			contact = matched
		}
	}

	return &Result{Org: org, Contact: contact}, nil
}

// pickContact returns the person with the most senior role, preserving
// provider order within a seniority tier.
func pickContact(people []apollo.Person) *apollo.Person {
	var best *apollo.Person
	bestRank := len(seniorities)

	for i := range people {
		rank := seniorityRank(people[i].Seniority)
		if rank < bestRank {
			best = &people[i]
			bestRank = rank
		}
	}
	return best
}

func seniorityRank(s string) int {
	for i, known := range seniorities {
		if s == known {
			return i
		}
	}
	return len(seniorities)
}

// Domain extracts the bare hostname from a website URL for org matching.
func Domain(website string) string {
	if website == "" {
		return ""
	}
	d := website
	if i := strings.Index(d, "://"); i >= 0 {
		d = d[i+3:]
	}
	if i := strings.IndexAny(d, "/?#"); i >= 0 {
		d = d[:i]
	}
	d = strings.ToLower(d)
	return strings.TrimPrefix(d, "www.")
}

func classify(err error) error {
	var se *apollo.StatusError
	if errors.As(err, &se) && resilience.IsTransientHTTPStatus(se.StatusCode) {
		return resilience.Unavailable("apollo", err)
	}
	if resilience.IsTransient(err) {
		return resilience.Unavailable("apollo", err)
	}
	return err
}
