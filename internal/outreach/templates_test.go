package outreach

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validTemplates = `
steps:
  - subject: "quick one about {{company_name}}"
    body: "{{personalized_opener}}\n\n{{specific_pain_point}}"
    delay_days: 0
  - subject: "following up"
    body: "{{industry_specific_insight}}"
    delay_days: 3
  - subject: "one more idea"
    body: "Still thinking about {{company_name}}."
    delay_days: 4
  - subject: "closing the loop"
    body: "Last note from me."
    delay_days: 5
`

func writeTemplates(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "email_templates.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadTemplates_Valid(t *testing.T) {
	sequences, err := LoadTemplates(writeTemplates(t, validTemplates))
	require.NoError(t, err)
	require.Len(t, sequences, 1)
	require.Len(t, sequences[0].Steps, 4)

	first := sequences[0].Steps[0]
	assert.Equal(t, "email", first.Type)
	assert.Equal(t, 0, first.Delay)
	require.Len(t, first.Variants, 1)
	assert.Contains(t, first.Variants[0].Subject, "{{company_name}}")

	assert.Equal(t, 3, sequences[0].Steps[1].Delay)
}

func TestLoadTemplates_WrongStepCount(t *testing.T) {
	_, err := LoadTemplates(writeTemplates(t, `
steps:
  - subject: "only one"
    body: "too short"
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 steps, want 4")
}

func TestLoadTemplates_MissingBody(t *testing.T) {
	_, err := LoadTemplates(writeTemplates(t, `
steps:
  - subject: "a"
    body: "x"
  - subject: "b"
    body: "x"
  - subject: "c"
  - subject: "d"
    body: "x"
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "step 3")
}

func TestLoadTemplates_FileMissing(t *testing.T) {
	_, err := LoadTemplates(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
