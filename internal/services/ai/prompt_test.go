package ai

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tcthien/ada-wacg-compliance-sub004/internal/models"
)

func TestBuildPrompt(t *testing.T) {
	criteria := []Criterion{
		{ID: "1.1.1", Name: "Non-text Content", Level: models.WCAGLevelA},
		{ID: "2.4.2", Name: "Page Titled", Level: models.WCAGLevelA},
	}
	prompt := BuildPrompt("scn_1", "https://example.com", "<html></html>", criteria)

	assert.Contains(t, prompt, "scn_1")
	assert.Contains(t, prompt, "https://example.com")
	assert.Contains(t, prompt, "1.1.1 Non-text Content (Level A)")
	assert.Contains(t, prompt, "2.4.2 Page Titled (Level A)")
	assert.Contains(t, prompt, "<html></html>")
}

func TestBuildPrompt_HTMLTruncated(t *testing.T) {
	huge := strings.Repeat("x", maxPromptHTMLBytes*2)
	prompt := BuildPrompt("scn_1", "https://example.com", huge, nil)
	assert.Less(t, len(prompt), maxPromptHTMLBytes+5000)
}

func TestParseOutput(t *testing.T) {
	output := `{"scanId": "scn_1", "verifications": [
		{"criterion_id": "1.1.1", "status": "fail", "explanation": "missing alt", "priority": 8},
		{"criterion_id": "2.4.2", "status": "pass"}
	]}`

	verifications, err := ParseOutput(output, "scn_1")
	require.NoError(t, err)
	require.Len(t, verifications, 2)
	assert.Equal(t, "1.1.1", verifications[0].CriterionID)
	assert.Equal(t, "fail", verifications[0].Status)
	assert.Equal(t, 8, verifications[0].Priority)
}

func TestParseOutput_CodeFences(t *testing.T) {
	output := "```json\n{\"scanId\": \"scn_1\", \"verifications\": [{\"criterion_id\": \"1.1.1\", \"status\": \"pass\"}]}\n```"
	verifications, err := ParseOutput(output, "scn_1")
	require.NoError(t, err)
	assert.Len(t, verifications, 1)
}

func TestParseOutput_SurroundingProse(t *testing.T) {
	output := `Here is the result:
{"scanId": "scn_1", "verifications": [{"criterion_id": "1.1.1", "status": "needs_review"}]}
Hope that helps!`
	verifications, err := ParseOutput(output, "scn_1")
	require.NoError(t, err)
	assert.Len(t, verifications, 1)
}

func TestParseOutput_Invalid(t *testing.T) {
	cases := []struct {
		name   string
		output string
	}{
		{"no json", "I could not analyze this page."},
		{"malformed json", `{"scanId": "scn_1", "verifications": [`},
		{"wrong scan id", `{"scanId": "scn_other", "verifications": [{"criterion_id": "1.1.1", "status": "pass"}]}`},
		{"empty verifications", `{"scanId": "scn_1", "verifications": []}`},
		{"unknown status", `{"scanId": "scn_1", "verifications": [{"criterion_id": "1.1.1", "status": "maybe"}]}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseOutput(tc.output, "scn_1")
			require.Error(t, err)
			assert.Equal(t, models.ErrCodeInvalidOutput, models.CodeOf(err))
		})
	}
}

func TestParseOutput_PriorityClamped(t *testing.T) {
	output := `{"scanId": "scn_1", "verifications": [
		{"criterion_id": "1.1.1", "status": "fail", "priority": 99},
		{"criterion_id": "1.3.1", "status": "fail", "priority": -5}
	]}`
	verifications, err := ParseOutput(output, "scn_1")
	require.NoError(t, err)
	assert.Equal(t, 10, verifications[0].Priority)
	assert.Equal(t, 0, verifications[1].Priority)
}
