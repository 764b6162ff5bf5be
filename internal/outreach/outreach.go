// Package outreach enqueues leads into the campaign provider and pulls
// engagement back for reconciliation.
package outreach

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/outboundlabs/leadflow/internal/model"
	"github.com/outboundlabs/leadflow/internal/resilience"
	"github.com/outboundlabs/leadflow/pkg/instantly"
)

// ErrCampaignRejected is returned when the provider refuses a lead for a
// non-transient reason. The lead is not retried automatically.
var ErrCampaignRejected = eris.New("outreach: campaign rejected")

// Config controls campaign resolution and send cadence.
type Config struct {
	CampaignName string
	SendDelay    time.Duration
}

// Outreach talks to the campaign provider.
type Outreach struct {
	client  instantly.Client
	cfg     Config
	limiter *rate.Limiter
}

// New creates an Outreach.
func New(client instantly.Client, cfg Config) *Outreach {
	delay := cfg.SendDelay
	if delay <= 0 {
		delay = time.Second
	}
	return &Outreach{
		client:  client,
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Every(delay), 1),
	}
}

// ResolveCampaign finds the configured campaign by name, creating it with
// the given sequences when absent. Returns the campaign ID.
func (o *Outreach) ResolveCampaign(ctx context.Context, sequences []instantly.Sequence) (string, error) {
	campaigns, err := o.client.ListCampaigns(ctx)
	if err != nil {
		return "", classify(err)
	}

	for _, c := range campaigns {
		if c.Name == o.cfg.CampaignName {
			return c.ID, nil
		}
	}

	zap.L().Info("campaign not found, creating",
		zap.String("name", o.cfg.CampaignName))
	created, err := o.client.CreateCampaign(ctx, o.cfg.CampaignName, sequences)
	if err != nil {
		return "", classify(err)
	}
	return created.ID, nil
}

// Enqueue adds one lead to the campaign with its personalization variables
// and returns the provider's lead ID.
func (o *Outreach) Enqueue(ctx context.Context, campaignID string, lead model.Lead, vars map[string]string) (string, error) {
	if err := o.limiter.Wait(ctx); err != nil {
		return "", err
	}

	first, last := splitName(lead.ContactName)
	added, err := o.client.AddLead(ctx, instantly.AddLeadRequest{
		Campaign:        campaignID,
		Email:           lead.Email,
		FirstName:       first,
		LastName:        last,
		CompanyName:     lead.Company,
		Website:         lead.Website,
		CustomVariables: vars,
	})
	if err != nil {
		var apiErr *instantly.APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode >= http.StatusBadRequest &&
			apiErr.StatusCode < http.StatusInternalServerError &&
			!resilience.IsTransientHTTPStatus(apiErr.StatusCode) {
			return "", eris.Wrapf(ErrCampaignRejected, "%s: status %d", lead.Email, apiErr.StatusCode)
		}
		return "", classify(err)
	}
	return added.ID, nil
}

// EngagementRecord is one lead's provider-side state, normalized for
// reconciliation.
type EngagementRecord struct {
	ExternalLeadID string
	Email          string
	Opens          int
	Clicks         int
	SentSteps      [model.SequenceSteps]bool
	Replied        bool
	ReplyText      string
	Status         string
	LastContact    *time.Time
}

// leadStatusLabels maps the provider's numeric lead status codes.
var leadStatusLabels = map[int]string{
	1:  "active",
	2:  "paused",
	3:  "completed",
	-1: "bounced",
	-2: "unsubscribed",
	-3: "skipped",
}

// FetchEngagement pulls every lead in the campaign with its counters, and
// reply bodies when any lead has replied.
func (o *Outreach) FetchEngagement(ctx context.Context, campaignID string) ([]EngagementRecord, error) {
	leads, err := o.client.ListLeads(ctx, campaignID)
	if err != nil {
		return nil, classify(err)
	}

	anyReplies := false
	records := make([]EngagementRecord, 0, len(leads))
	for _, l := range leads {
		status := leadStatusLabels[l.Status]
		if status == "" {
			status = "unknown"
		}
		records = append(records, EngagementRecord{
			ExternalLeadID: l.ID,
			Email:          l.Email,
			Opens:          l.EmailOpenCount,
			Clicks:         l.EmailClickCount,
			SentSteps:      model.StepsFromCount(l.EmailSentCount),
			Replied:        l.EmailReplyCount > 0,
			Status:         status,
			LastContact:    l.LastContactedAt,
		})
		if l.EmailReplyCount > 0 {
			anyReplies = true
		}
	}

	if anyReplies {
		if err := o.attachReplies(ctx, campaignID, records); err != nil {
			// Reply bodies are best effort; counters are already in hand.
			zap.L().Warn("fetch replies failed", zap.Error(err))
		}
	}

	return records, nil
}

func (o *Outreach) attachReplies(ctx context.Context, campaignID string, records []EngagementRecord) error {
	replies, err := o.client.ListReplies(ctx, campaignID)
	if err != nil {
		return classify(err)
	}

	// Keep the newest reply per lead so a follow-up reply surfaces on the
	// next reconcile instead of the already-recorded first one.
	type reply struct {
		body string
		at   *time.Time
	}
	byEmail := make(map[string]reply, len(replies))
	for _, r := range replies {
		email := strings.ToLower(r.LeadEmail)
		cur, ok := byEmail[email]
		if ok && !replyNewer(r.CreatedAt, cur.at) {
			continue
		}
		byEmail[email] = reply{body: strings.TrimSpace(r.BodyText), at: r.CreatedAt}
	}

	for i := range records {
		if records[i].Replied {
			records[i].ReplyText = byEmail[strings.ToLower(records[i].Email)].body
		}
	}
	return nil
}

// replyNewer reports whether a is strictly newer than b. An untimestamped
// reply never displaces a kept one.
func replyNewer(a, b *time.Time) bool {
	if a == nil {
		return false
	}
	if b == nil {
		return true
	}
	return a.After(*b)
}

func splitName(full string) (first, last string) {
	full = strings.TrimSpace(full)
	if full == "" {
		return "", ""
	}
	parts := strings.SplitN(full, " ", 2)
	if len(parts) == 1 {
		return parts[0], ""
	}
	return parts[0], parts[1]
}

func classify(err error) error {
	var apiErr *instantly.APIError
	if errors.As(err, &apiErr) && resilience.IsTransientHTTPStatus(apiErr.StatusCode) {
		return resilience.Unavailable("instantly", err)
	}
	if resilience.IsTransient(err) {
		return resilience.Unavailable("instantly", err)
	}
	return err
}
