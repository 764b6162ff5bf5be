// Package apollo is a thin client for the Apollo.io B2B enrichment API.
package apollo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
)

const defaultBaseURL = "https://api.apollo.io/v1"

// Client performs Apollo API operations.
type Client interface {
	SearchOrganization(ctx context.Context, name, domain string) (*Organization, error)
	SearchPeople(ctx context.Context, orgID string, seniorities []string) ([]Person, error)
	MatchPerson(ctx context.Context, personID string) (*Person, error)
}

// Organization is a company record from Apollo.
type Organization struct {
	ID                    string   `json:"id"`
	Name                  string   `json:"name"`
	WebsiteURL            string   `json:"website_url"`
	Industry              string   `json:"industry"`
	EstimatedNumEmployees int      `json:"estimated_num_employees"`
	LinkedInURL           string   `json:"linkedin_url"`
	City                  string   `json:"city"`
	Country               string   `json:"country"`
	ShortDescription      string   `json:"short_description"`
	Keywords              []string `json:"keywords"`
}

// Person is a contact record from Apollo.
type Person struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Title       string `json:"title"`
	Seniority   string `json:"seniority"`
	Email       string `json:"email"`
	EmailStatus string `json:"email_status"`
	LinkedInURL string `json:"linkedin_url"`
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("apollo: unexpected status %d: %s", e.StatusCode, e.Body)
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

// NewClient creates an Apollo API client.
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

type orgSearchRequest struct {
	QOrganizationName    string `json:"q_organization_name,omitempty"`
	QOrganizationDomains string `json:"q_organization_domains,omitempty"`
	PerPage              int    `json:"per_page"`
}

type orgSearchResponse struct {
	Organizations []Organization `json:"organizations"`
}

func (c *httpClient) SearchOrganization(ctx context.Context, name, domain string) (*Organization, error) {
	var resp orgSearchResponse
	err := c.post(ctx, "/mixed_companies/search", orgSearchRequest{
		QOrganizationName:    name,
		QOrganizationDomains: domain,
		PerPage:              1,
	}, &resp)
	if err != nil {
		return nil, err
	}
	if len(resp.Organizations) == 0 {
		return nil, nil
	}
	return &resp.Organizations[0], nil
}

type peopleSearchRequest struct {
	OrganizationIDs   []string `json:"organization_ids"`
	PersonSeniorities []string `json:"person_seniorities,omitempty"`
	PerPage           int      `json:"per_page"`
}

type peopleSearchResponse struct {
	People []Person `json:"people"`
}

func (c *httpClient) SearchPeople(ctx context.Context, orgID string, seniorities []string) ([]Person, error) {
	var resp peopleSearchResponse
	err := c.post(ctx, "/mixed_people/search", peopleSearchRequest{
		OrganizationIDs:   []string{orgID},
		PersonSeniorities: seniorities,
		PerPage:           10,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.People, nil
}

type personMatchRequest struct {
	ID                   string `json:"id"`
	RevealPersonalEmails bool   `json:"reveal_personal_emails"`
}

type personMatchResponse struct {
	Person *Person `json:"person"`
}

func (c *httpClient) MatchPerson(ctx context.Context, personID string) (*Person, error) {
	var resp personMatchResponse
	err := c.post(ctx, "/people/match", personMatchRequest{
		ID:                   personID,
		RevealPersonalEmails: true,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.Person, nil
}

func (c *httpClient) post(ctx context.Context, path string, reqBody, out any) error {
	body, err := json.Marshal(reqBody)
	if err != nil {
		return eris.Wrap(err, "apollo: marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return eris.Wrap(err, "apollo: create request")
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Api-Key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrap(err, "apollo: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return eris.Wrap(err, "apollo: read response")
	}

	if resp.StatusCode != http.StatusOK {
		return &StatusError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return eris.Wrap(err, "apollo: unmarshal response")
	}
	return nil
}
