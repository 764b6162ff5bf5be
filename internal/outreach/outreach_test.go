package outreach

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/outboundlabs/leadflow/internal/model"
	"github.com/outboundlabs/leadflow/internal/resilience"
	"github.com/outboundlabs/leadflow/pkg/instantly"
)

// fakeInstantly serves canned responses and records calls.
type fakeInstantly struct {
	campaigns  []instantly.Campaign
	created    *instantly.Campaign
	createdSeq []instantly.Sequence
	addLeadErr error
	addedLead  *instantly.AddLeadRequest
	leads      []instantly.Lead
	replies    []instantly.Email
	listErr    error
}

func (f *fakeInstantly) ListCampaigns(_ context.Context) ([]instantly.Campaign, error) {
	return f.campaigns, f.listErr
}

func (f *fakeInstantly) CreateCampaign(_ context.Context, name string, sequences []instantly.Sequence) (*instantly.Campaign, error) {
	f.createdSeq = sequences
	f.created = &instantly.Campaign{ID: "c-new", Name: name}
	return f.created, nil
}

func (f *fakeInstantly) AddLead(_ context.Context, req instantly.AddLeadRequest) (*instantly.Lead, error) {
	f.addedLead = &req
	if f.addLeadErr != nil {
		return nil, f.addLeadErr
	}
	return &instantly.Lead{ID: "lead-1", Campaign: req.Campaign, Email: req.Email}, nil
}

func (f *fakeInstantly) ListLeads(_ context.Context, _ string) ([]instantly.Lead, error) {
	return f.leads, f.listErr
}

func (f *fakeInstantly) ListReplies(_ context.Context, _ string) ([]instantly.Email, error) {
	return f.replies, nil
}

func newTestOutreach(f *fakeInstantly) *Outreach {
	return New(f, Config{CampaignName: "Agency Outreach", SendDelay: time.Microsecond})
}

func TestResolveCampaign_FindsExisting(t *testing.T) {
	fake := &fakeInstantly{campaigns: []instantly.Campaign{
		{ID: "c-other", Name: "Other"},
		{ID: "c-1", Name: "Agency Outreach"},
	}}
	o := newTestOutreach(fake)

	id, err := o.ResolveCampaign(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "c-1", id)
	assert.Nil(t, fake.created)
}

func TestResolveCampaign_CreatesWhenMissing(t *testing.T) {
	fake := &fakeInstantly{}
	o := newTestOutreach(fake)

	seq := []instantly.Sequence{{Steps: []instantly.SequenceStep{{Type: "email"}}}}
	id, err := o.ResolveCampaign(context.Background(), seq)
	require.NoError(t, err)
	assert.Equal(t, "c-new", id)
	assert.Equal(t, seq, fake.createdSeq)
}

func TestEnqueue_SendsVariablesAndSplitsName(t *testing.T) {
	fake := &fakeInstantly{}
	o := newTestOutreach(fake)

	lead := model.Lead{
		Company:     "Acme Creative",
		ContactName: "Jordan Q Vega",
		Email:       "jordan@acme.com",
		Website:     "https://acme.com",
	}
	id, err := o.Enqueue(context.Background(), "c-1", lead, map[string]string{
		"personalized_opener": "hi there",
	})
	require.NoError(t, err)
	assert.Equal(t, "lead-1", id)

	require.NotNil(t, fake.addedLead)
	assert.Equal(t, "Jordan", fake.addedLead.FirstName)
	assert.Equal(t, "Q Vega", fake.addedLead.LastName)
	assert.Equal(t, "hi there", fake.addedLead.CustomVariables["personalized_opener"])
}

func TestEnqueue_4xxIsCampaignRejected(t *testing.T) {
	fake := &fakeInstantly{addLeadErr: &instantly.APIError{StatusCode: 400, Body: "bad lead"}}
	o := newTestOutreach(fake)

	_, err := o.Enqueue(context.Background(), "c-1", model.Lead{Email: "x@y.com"}, nil)
	assert.True(t, errors.Is(err, ErrCampaignRejected))
}

func TestEnqueue_5xxIsProviderUnavailable(t *testing.T) {
	fake := &fakeInstantly{addLeadErr: &instantly.APIError{StatusCode: 503, Body: "down"}}
	o := newTestOutreach(fake)

	_, err := o.Enqueue(context.Background(), "c-1", model.Lead{Email: "x@y.com"}, nil)
	assert.True(t, resilience.IsProviderUnavailable(err))
	assert.False(t, errors.Is(err, ErrCampaignRejected))
}

func TestFetchEngagement_NormalizesRecords(t *testing.T) {
	fake := &fakeInstantly{
		leads: []instantly.Lead{
			{ID: "l-1", Email: "a@x.com", Status: 1, EmailOpenCount: 3, EmailClickCount: 1, EmailSentCount: 2},
			{ID: "l-2", Email: "b@x.com", Status: 3, EmailReplyCount: 1, EmailSentCount: 4},
			{ID: "l-3", Email: "c@x.com", Status: 99},
		},
		replies: []instantly.Email{
			{LeadEmail: "B@x.com", BodyText: "  Sounds interesting, tell me more.  "},
		},
	}
	o := newTestOutreach(fake)

	records, err := o.FetchEngagement(context.Background(), "c-1")
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, "active", records[0].Status)
	assert.Equal(t, [model.SequenceSteps]bool{true, true}, records[0].SentSteps)
	assert.False(t, records[0].Replied)

	assert.True(t, records[1].Replied)
	assert.Equal(t, "Sounds interesting, tell me more.", records[1].ReplyText)
	assert.Equal(t, [model.SequenceSteps]bool{true, true, true, true}, records[1].SentSteps)
	assert.Equal(t, "completed", records[1].Status)

	assert.Equal(t, "unknown", records[2].Status)
}

func TestFetchEngagement_PrefersNewestReply(t *testing.T) {
	older := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	newer := older.Add(48 * time.Hour)

	fake := &fakeInstantly{
		leads: []instantly.Lead{
			{ID: "l-1", Email: "a@x.com", Status: 1, EmailReplyCount: 2, EmailSentCount: 2},
		},
		replies: []instantly.Email{
			{LeadEmail: "a@x.com", BodyText: "Let's talk next quarter.", CreatedAt: &newer},
			{LeadEmail: "a@x.com", BodyText: "Sounds interesting.", CreatedAt: &older},
			{LeadEmail: "a@x.com", BodyText: "No timestamp, ignore me."},
		},
	}
	o := newTestOutreach(fake)

	records, err := o.FetchEngagement(context.Background(), "c-1")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Let's talk next quarter.", records[0].ReplyText)
}

func TestSplitName(t *testing.T) {
	tests := []struct {
		in          string
		first, last string
	}{
		{"Jordan Vega", "Jordan", "Vega"},
		{"Cher", "Cher", ""},
		{"  Anna Maria Silva ", "Anna", "Maria Silva"},
		{"", "", ""},
	}
	for _, tt := range tests {
		first, last := splitName(tt.in)
		assert.Equal(t, tt.first, first, tt.in)
		assert.Equal(t, tt.last, last, tt.in)
	}
}
