// Package instantly is a thin client for the Instantly v2 campaign API.
package instantly

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
)

const defaultBaseURL = "https://api.instantly.ai/api/v2"

// Client performs Instantly API operations.
type Client interface {
	ListCampaigns(ctx context.Context) ([]Campaign, error)
	CreateCampaign(ctx context.Context, name string, sequences []Sequence) (*Campaign, error)
	AddLead(ctx context.Context, req AddLeadRequest) (*Lead, error)
	ListLeads(ctx context.Context, campaignID string) ([]Lead, error)
	ListReplies(ctx context.Context, campaignID string) ([]Email, error)
}

// Campaign is an Instantly campaign.
type Campaign struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Status int    `json:"status"`
}

// SequenceVariant is one copy variant of a sequence step.
type SequenceVariant struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// SequenceStep is one email in a campaign sequence with its delay in days
// from the previous step.
type SequenceStep struct {
	Type     string            `json:"type"`
	Delay    int               `json:"delay"`
	Variants []SequenceVariant `json:"variants"`
}

// Sequence is an ordered list of steps for a campaign.
type Sequence struct {
	Steps []SequenceStep `json:"steps"`
}

// AddLeadRequest enqueues one lead into a campaign.
type AddLeadRequest struct {
	Campaign        string            `json:"campaign"`
	Email           string            `json:"email"`
	FirstName       string            `json:"first_name,omitempty"`
	LastName        string            `json:"last_name,omitempty"`
	CompanyName     string            `json:"company_name,omitempty"`
	Website         string            `json:"website,omitempty"`
	CustomVariables map[string]string `json:"custom_variables,omitempty"`
}

// Lead is an Instantly lead with its engagement counters.
type Lead struct {
	ID              string     `json:"id"`
	Campaign        string     `json:"campaign"`
	Email           string     `json:"email"`
	Status          int        `json:"status"`
	EmailOpenCount  int        `json:"email_open_count"`
	EmailClickCount int        `json:"email_click_count"`
	EmailReplyCount int        `json:"email_reply_count"`
	EmailSentCount  int        `json:"email_sent_count"`
	LastContactedAt *time.Time `json:"timestamp_last_contact"`
}

// Email is a message from the unified inbox, used to pull reply bodies.
type Email struct {
	ID        string     `json:"id"`
	LeadEmail string     `json:"lead"`
	Subject   string     `json:"subject"`
	BodyText  string     `json:"body_text"`
	CreatedAt *time.Time `json:"timestamp_created"`
}

// APIError is returned for non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("instantly: unexpected status %d: %s", e.StatusCode, e.Body)
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewClient creates an Instantly API client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type listResponse[T any] struct {
	Items             []T    `json:"items"`
	NextStartingAfter string `json:"next_starting_after"`
}

func (c *httpClient) ListCampaigns(ctx context.Context) ([]Campaign, error) {
	var resp listResponse[Campaign]
	if err := c.do(ctx, http.MethodGet, "/campaigns", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

type createCampaignRequest struct {
	Name      string     `json:"name"`
	Sequences []Sequence `json:"sequences,omitempty"`
}

func (c *httpClient) CreateCampaign(ctx context.Context, name string, sequences []Sequence) (*Campaign, error) {
	var campaign Campaign
	err := c.do(ctx, http.MethodPost, "/campaigns", createCampaignRequest{
		Name:      name,
		Sequences: sequences,
	}, &campaign)
	if err != nil {
		return nil, err
	}
	return &campaign, nil
}

func (c *httpClient) AddLead(ctx context.Context, req AddLeadRequest) (*Lead, error) {
	var lead Lead
	if err := c.do(ctx, http.MethodPost, "/leads", req, &lead); err != nil {
		return nil, err
	}
	return &lead, nil
}

type listLeadsRequest struct {
	Campaign      string `json:"campaign"`
	Limit         int    `json:"limit"`
	StartingAfter string `json:"starting_after,omitempty"`
}

func (c *httpClient) ListLeads(ctx context.Context, campaignID string) ([]Lead, error) {
	var leads []Lead
	cursor := ""
	for {
		var resp listResponse[Lead]
		err := c.do(ctx, http.MethodPost, "/leads/list", listLeadsRequest{
			Campaign:      campaignID,
			Limit:         100,
			StartingAfter: cursor,
		}, &resp)
		if err != nil {
			return nil, err
		}
		leads = append(leads, resp.Items...)
		if resp.NextStartingAfter == "" || len(resp.Items) == 0 {
			return leads, nil
		}
		cursor = resp.NextStartingAfter
	}
}

func (c *httpClient) ListReplies(ctx context.Context, campaignID string) ([]Email, error) {
	var emails []Email
	cursor := ""
	for {
		q := url.Values{}
		q.Set("campaign_id", campaignID)
		q.Set("email_type", "received")
		q.Set("limit", "100")
		if cursor != "" {
			q.Set("starting_after", cursor)
		}

		var resp listResponse[Email]
		if err := c.do(ctx, http.MethodGet, "/emails?"+q.Encode(), nil, &resp); err != nil {
			return nil, err
		}
		emails = append(emails, resp.Items...)
		if resp.NextStartingAfter == "" || len(resp.Items) == 0 {
			return emails, nil
		}
		cursor = resp.NextStartingAfter
	}
}

func (c *httpClient) do(ctx context.Context, method, path string, reqBody, out any) error {
	var body io.Reader
	if reqBody != nil {
		b, err := json.Marshal(reqBody)
		if err != nil {
			return eris.Wrap(err, "instantly: marshal request")
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return eris.Wrap(err, "instantly: create request")
	}

	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrap(err, "instantly: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return eris.Wrap(err, "instantly: read response")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return eris.Wrap(err, "instantly: unmarshal response")
	}
	return nil
}
