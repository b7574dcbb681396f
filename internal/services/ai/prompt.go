package ai

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tcthien/ada-wacg-compliance-sub004/internal/models"
)

// maxPromptHTMLBytes bounds the page content embedded in a prompt so a
// large page cannot blow the model's context window.
const maxPromptHTMLBytes = 100_000

// promptOutput is the JSON envelope the model is instructed to return.
// The echoed scan id guards against cross-talk between prompts.
type promptOutput struct {
	ScanID        string                   `json:"scanId"`
	Verifications []*models.AIVerification `json:"verifications"`
}

// BuildPrompt renders the verification prompt for one criteria mini-batch.
func BuildPrompt(scanID, url, htmlContent string, criteria []Criterion) string {
	if len(htmlContent) > maxPromptHTMLBytes {
		htmlContent = htmlContent[:maxPromptHTMLBytes]
	}

	var sb strings.Builder
	sb.WriteString("You are an accessibility auditor. Evaluate the HTML document below against the listed WCAG 2.1 success criteria.\n\n")
	sb.WriteString("Criteria to evaluate:\n")
	for _, c := range criteria {
		fmt.Fprintf(&sb, "- %s %s (Level %s)\n", c.ID, c.Name, c.Level)
	}

	fmt.Fprintf(&sb, "\nPage URL: %s\nScan ID: %s\n\n", url, scanID)
	sb.WriteString("Respond with ONLY a JSON object, no prose and no code fences, in this shape:\n")
	sb.WriteString(`{"scanId": "<echo the scan id above>", "verifications": [{"criterion_id": "1.1.1", "status": "pass|fail|needs_review", "explanation": "...", "fix_suggestion": "...", "priority": 1, "target_selector": "..."}]}`)
	sb.WriteString("\n\nRules:\n")
	sb.WriteString("- Emit exactly one verification per listed criterion.\n")
	sb.WriteString("- Use status \"needs_review\" when the HTML alone cannot decide (e.g. contrast, captions).\n")
	sb.WriteString("- priority ranges 1 (cosmetic) to 10 (blocks assistive technology); only set it for failures.\n")
	sb.WriteString("- target_selector is a CSS selector for the offending element when one exists.\n\n")
	sb.WriteString("HTML document:\n")
	sb.WriteString(htmlContent)
	return sb.String()
}

// ParseOutput validates and decodes one inference response. A scan id
// mismatch or malformed JSON classifies as INVALID_OUTPUT so the caller
// retries the mini-batch.
func ParseOutput(output, expectScanID string) ([]*models.AIVerification, error) {
	trimmed := stripCodeFences(strings.TrimSpace(output))

	// Models occasionally wrap the object in prose; take the outermost braces.
	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start < 0 || end <= start {
		return nil, models.NewAppError(models.ErrCodeInvalidOutput, "inference output contains no JSON object")
	}

	var parsed promptOutput
	if err := json.Unmarshal([]byte(trimmed[start:end+1]), &parsed); err != nil {
		return nil, models.WrapError(models.ErrCodeInvalidOutput, "inference output is not valid JSON", err)
	}
	if parsed.ScanID != expectScanID {
		return nil, models.NewAppError(models.ErrCodeInvalidOutput, "inference output echoed a different scan id").
			WithDetail("expected", expectScanID).
			WithDetail("got", parsed.ScanID)
	}
	if len(parsed.Verifications) == 0 {
		return nil, models.NewAppError(models.ErrCodeInvalidOutput, "inference output contains no verifications")
	}

	for _, v := range parsed.Verifications {
		switch v.Status {
		case "pass", "fail", "needs_review":
		default:
			return nil, models.NewAppError(models.ErrCodeInvalidOutput, "inference output has an unknown verification status").
				WithDetail("status", v.Status)
		}
		if v.Priority < 0 {
			v.Priority = 0
		}
		if v.Priority > 10 {
			v.Priority = 10
		}
	}
	return parsed.Verifications, nil
}

func stripCodeFences(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
