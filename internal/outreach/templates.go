package outreach

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/outboundlabs/leadflow/internal/model"
	"github.com/outboundlabs/leadflow/pkg/instantly"
)

// TemplateStep is one email template in the cadence file. Subject and body
// may use provider placeholders like {{company_name}} and the
// personalization variables attached to each lead.
type TemplateStep struct {
	Subject   string `yaml:"subject"`
	Body      string `yaml:"body"`
	DelayDays int    `yaml:"delay_days"`
}

type templateFile struct {
	Steps []TemplateStep `yaml:"steps"`
}

// LoadTemplates reads the cadence file and converts it into the provider's
// sequence shape. The file must define exactly one step per cadence slot.
func LoadTemplates(path string) ([]instantly.Sequence, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "outreach: read templates %s", path)
	}

	var tf templateFile
	if err := yaml.Unmarshal(data, &tf); err != nil {
		return nil, eris.Wrapf(err, "outreach: parse templates %s", path)
	}

	if len(tf.Steps) != model.SequenceSteps {
		return nil, eris.Errorf("outreach: templates %s define %d steps, want %d",
			path, len(tf.Steps), model.SequenceSteps)
	}

	steps := make([]instantly.SequenceStep, len(tf.Steps))
	for i, s := range tf.Steps {
		if s.Subject == "" || s.Body == "" {
			return nil, eris.Errorf("outreach: template step %d missing subject or body", i+1)
		}
		steps[i] = instantly.SequenceStep{
			Type:  "email",
			Delay: s.DelayDays,
			Variants: []instantly.SequenceVariant{
				{Subject: s.Subject, Body: s.Body},
			},
		}
	}

	return []instantly.Sequence{{Steps: steps}}, nil
}
