// Package personalize generates per-lead email copy with Claude. Output is
// strict JSON; a lead whose copy cannot be parsed is skipped rather than
// sent generic filler.
package personalize

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/outboundlabs/leadflow/internal/model"
	"github.com/outboundlabs/leadflow/internal/resilience"
	"github.com/outboundlabs/leadflow/pkg/anthropic"
)

// ErrGenerationFailed is returned when the model's output is not usable
// copy. The lead stays in its current state and is retried on a later run.
var ErrGenerationFailed = eris.New("personalize: generation failed")

// Sender describes who the emails come from.
type Sender struct {
	Name             string
	Bio              string
	ValueProposition string
}

// Copy is the personalized content enqueued with a lead. Field names match
// the campaign template variables.
type Copy struct {
	PersonalizedOpener      string `json:"personalized_opener"`
	SpecificPainPoint       string `json:"specific_pain_point"`
	IndustrySpecificInsight string `json:"industry_specific_insight"`
	SuggestedSubject        string `json:"suggested_subject"`
}

// Variables returns the copy as campaign custom variables.
func (c *Copy) Variables() map[string]string {
	return map[string]string{
		"personalized_opener":       c.PersonalizedOpener,
		"specific_pain_point":       c.SpecificPainPoint,
		"industry_specific_insight": c.IndustrySpecificInsight,
		"suggested_subject":         c.SuggestedSubject,
	}
}

// Personalizer generates copy for one lead at a time.
type Personalizer struct {
	client anthropic.Client
	model  string
	sender Sender
}

// New creates a Personalizer.
func New(client anthropic.Client, modelID string, sender Sender) *Personalizer {
	return &Personalizer{client: client, model: modelID, sender: sender}
}

const systemPrompt = `You write short, specific cold-email copy for a B2B agency outreach tool.
Respond with a single JSON object and nothing else. The object must have
exactly these string keys: "personalized_opener", "specific_pain_point",
"industry_specific_insight", "suggested_subject". No markdown, no
explanations.`

// Generate produces copy for the lead. Unparseable or incomplete output
// returns ErrGenerationFailed; there is no fallback copy.
func (p *Personalizer) Generate(ctx context.Context, lead model.Lead) (*Copy, error) {
	resp, err := p.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     p.model,
		MaxTokens: 1024,
		System:    systemPrompt,
		Messages: []anthropic.Message{
			{Role: "user", Content: p.prompt(lead)},
		},
	})
	if err != nil {
		if resilience.IsTransient(err) {
			return nil, resilience.Unavailable("anthropic", err)
		}
		return nil, eris.Wrap(err, "personalize: create message")
	}

	resp.Usage.LogCost(p.model, "personalize")

	raw := ExtractJSON(resp.Text())
	var c Copy
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		zap.L().Warn("unparseable copy",
			zap.String("company", lead.Company),
			zap.Error(err))
		return nil, eris.Wrapf(ErrGenerationFailed, "parse output for %s", lead.Company)
	}

	if c.PersonalizedOpener == "" || c.SpecificPainPoint == "" ||
		c.IndustrySpecificInsight == "" || c.SuggestedSubject == "" {
		return nil, eris.Wrapf(ErrGenerationFailed, "incomplete output for %s", lead.Company)
	}

	return &c, nil
}

func (p *Personalizer) prompt(lead model.Lead) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Sender: %s\n", p.sender.Name)
	if p.sender.Bio != "" {
		fmt.Fprintf(&b, "Sender bio: %s\n", p.sender.Bio)
	}
	if p.sender.ValueProposition != "" {
		fmt.Fprintf(&b, "Value proposition: %s\n", p.sender.ValueProposition)
	}

	b.WriteString("\nLead:\n")
	fmt.Fprintf(&b, "Company: %s\n", lead.Company)
	if lead.ContactName != "" {
		fmt.Fprintf(&b, "Contact: %s (%s)\n", lead.ContactName, lead.Title)
	}
	if lead.Industry != "" {
		fmt.Fprintf(&b, "Industry: %s\n", lead.Industry)
	}
	if lead.EmployeeCount > 0 {
		fmt.Fprintf(&b, "Employees: %d\n", lead.EmployeeCount)
	}
	if lead.City != "" {
		fmt.Fprintf(&b, "Location: %s, %s\n", lead.City, lead.Country)
	}
	if lead.Website != "" {
		fmt.Fprintf(&b, "Website: %s\n", lead.Website)
	}
	if lead.Notes != "" {
		fmt.Fprintf(&b, "Notes: %s\n", lead.Notes)
	}

	b.WriteString("\nWrite the four JSON fields for this lead.")
	return b.String()
}

// ExtractJSON strips markdown code fences and surrounding prose, returning
// the first JSON object in s.
func ExtractJSON(s string) string {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "```") {
		if i := strings.Index(s, "\n"); i >= 0 {
			s = s[i+1:]
		}
		if i := strings.LastIndex(s, "```"); i >= 0 {
			s = s[:i]
		}
		s = strings.TrimSpace(s)
	}

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start >= 0 && end > start {
		return s[start : end+1]
	}
	return s
}
