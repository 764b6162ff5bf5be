package personalize

import (
	"context"
	"errors"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/outboundlabs/leadflow/internal/model"
	"github.com/outboundlabs/leadflow/internal/resilience"
	"github.com/outboundlabs/leadflow/pkg/anthropic"
)

// fakeClaude returns a canned response or error.
type fakeClaude struct {
	text   string
	err    error
	lastIn anthropic.MessageRequest
}

func (f *fakeClaude) CreateMessage(_ context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	f.lastIn = req
	if f.err != nil {
		return nil, f.err
	}
	return &anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: f.text}},
	}, nil
}

const goodJSON = `{
	"personalized_opener": "Saw your rebrand work for local breweries.",
	"specific_pain_point": "Agencies your size often lose retainers to slow lead flow.",
	"industry_specific_insight": "Creative shops in Austin are consolidating fast.",
	"suggested_subject": "quick one about Acme's pipeline"
}`

var testLead = model.Lead{
	Company:     "Acme Creative",
	ContactName: "Jordan Vega",
	Title:       "Founder",
	Industry:    "marketing",
	City:        "Austin",
	Country:     "US",
}

func newTestPersonalizer(f *fakeClaude) *Personalizer {
	return New(f, "claude-sonnet-4-5-20250929", Sender{
		Name:             "Riley",
		ValueProposition: "We fill agency pipelines",
	})
}

func TestGenerate_ParsesCleanJSON(t *testing.T) {
	fake := &fakeClaude{text: goodJSON}
	p := newTestPersonalizer(fake)

	c, err := p.Generate(context.Background(), testLead)
	require.NoError(t, err)
	assert.Equal(t, "quick one about Acme's pipeline", c.SuggestedSubject)
	assert.Contains(t, fake.lastIn.Messages[0].Content, "Acme Creative")
	assert.Contains(t, fake.lastIn.Messages[0].Content, "Jordan Vega")
}

func TestGenerate_StripsCodeFences(t *testing.T) {
	fake := &fakeClaude{text: "```json\n" + goodJSON + "\n```"}
	p := newTestPersonalizer(fake)

	c, err := p.Generate(context.Background(), testLead)
	require.NoError(t, err)
	assert.NotEmpty(t, c.PersonalizedOpener)
}

func TestGenerate_UnparseableOutputFails(t *testing.T) {
	fake := &fakeClaude{text: "I'd be happy to help! Here are some ideas..."}
	p := newTestPersonalizer(fake)

	_, err := p.Generate(context.Background(), testLead)
	assert.True(t, errors.Is(err, ErrGenerationFailed))
}

func TestGenerate_IncompleteOutputFails(t *testing.T) {
	fake := &fakeClaude{text: `{"personalized_opener": "hi", "suggested_subject": "hello"}`}
	p := newTestPersonalizer(fake)

	_, err := p.Generate(context.Background(), testLead)
	assert.True(t, errors.Is(err, ErrGenerationFailed))
}

func TestGenerate_TransientErrorIsProviderUnavailable(t *testing.T) {
	fake := &fakeClaude{err: syscall.ECONNRESET}
	p := newTestPersonalizer(fake)

	_, err := p.Generate(context.Background(), testLead)
	require.Error(t, err)
	assert.True(t, resilience.IsProviderUnavailable(err))
	assert.False(t, errors.Is(err, ErrGenerationFailed))
}

func TestCopy_Variables(t *testing.T) {
	c := &Copy{
		PersonalizedOpener:      "a",
		SpecificPainPoint:       "b",
		IndustrySpecificInsight: "c",
		SuggestedSubject:        "d",
	}
	vars := c.Variables()
	assert.Equal(t, "a", vars["personalized_opener"])
	assert.Equal(t, "d", vars["suggested_subject"])
	assert.Len(t, vars, 4)
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bare object", `{"a": 1}`, `{"a": 1}`},
		{"fenced", "```json\n{\"a\": 1}\n```", `{"a": 1}`},
		{"fence no language", "```\n{\"a\": 1}\n```", `{"a": 1}`},
		{"prose around object", `Sure! {"a": 1} Hope that helps.`, `{"a": 1}`},
		{"leading whitespace", "\n\n  {\"a\": 1}", `{"a": 1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractJSON(tt.in))
		})
	}
}
