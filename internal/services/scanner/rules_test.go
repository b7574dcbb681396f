package scanner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/tcthien/ada-wacg-compliance-sub004/internal/models"
)

func newTestEngine(t *testing.T) *RuleEngine {
	t.Helper()
	return NewRuleEngine(arbor.NewLogger())
}

func issuesByRule(result *models.ScanResult) map[string][]*models.Issue {
	out := make(map[string][]*models.Issue)
	for _, issue := range result.Issues {
		out[issue.RuleID] = append(out[issue.RuleID], issue)
	}
	return out
}

const cleanPage = `<!DOCTYPE html>
<html lang="en">
<head>
  <title>Clean page</title>
  <meta name="viewport" content="width=device-width, initial-scale=1">
</head>
<body>
  <h1>Welcome</h1>
  <h2>Section</h2>
  <img src="logo.png" alt="Company logo">
  <a href="/about">About us</a>
  <button>Submit</button>
  <form>
    <label for="email">Email</label>
    <input type="text" id="email">
  </form>
  <iframe src="/embed" title="Promo video"></iframe>
</body>
</html>`

func TestAnalyze_CleanPagePassesEveryRule(t *testing.T) {
	engine := newTestEngine(t)

	result, err := engine.Analyze(cleanPage, nil)
	require.NoError(t, err)

	assert.Empty(t, result.Issues)
	assert.Zero(t, result.TotalIssues)
	assert.Equal(t, len(builtinRules()), result.PassedChecks)
}

func TestAnalyze_FlagsCommonViolations(t *testing.T) {
	engine := newTestEngine(t)

	html := `<!DOCTYPE html>
<html>
<head></head>
<body>
  <img src="hero.png">
  <a href="/pricing"></a>
  <button></button>
  <input type="text">
</body>
</html>`

	result, err := engine.Analyze(html, nil)
	require.NoError(t, err)
	byRule := issuesByRule(result)

	assert.Len(t, byRule["image-alt"], 1)
	assert.Len(t, byRule["html-has-lang"], 1)
	assert.Len(t, byRule["document-title"], 1)
	assert.Len(t, byRule["link-name"], 1)
	assert.Len(t, byRule["button-name"], 1)
	assert.Len(t, byRule["label"], 1)

	// Every issue carries the rule's metadata.
	for _, issue := range result.Issues {
		assert.NotEmpty(t, issue.Impact)
		assert.NotEmpty(t, issue.WCAGCriteria)
		assert.NotEmpty(t, issue.Description)
		assert.NotEmpty(t, issue.HelpURL)
	}
}

func TestAnalyze_ImageAltEdgeCases(t *testing.T) {
	engine := newTestEngine(t)

	html := `<html lang="en"><head><title>t</title></head><body>
		<img src="a.png" alt="">
		<img src="b.png" aria-hidden="true">
		<img src="c.png">
	</body></html>`

	result, err := engine.Analyze(html, nil)
	require.NoError(t, err)

	byRule := issuesByRule(result)
	require.Len(t, byRule["image-alt"], 1, "empty alt and aria-hidden images are exempt")
	assert.Contains(t, byRule["image-alt"][0].HTMLSnippet, "c.png")
}

func TestAnalyze_LinkNameFromContainedImage(t *testing.T) {
	engine := newTestEngine(t)

	html := `<html lang="en"><head><title>t</title></head><body>
		<a href="/home"><img src="logo.png" alt="Home"></a>
		<a href="/labelled" aria-label="Contact page"></a>
	</body></html>`

	result, err := engine.Analyze(html, nil)
	require.NoError(t, err)
	assert.Empty(t, issuesByRule(result)["link-name"])
}

func TestAnalyze_LabelAssociations(t *testing.T) {
	engine := newTestEngine(t)

	html := `<html lang="en"><head><title>t</title></head><body><form>
		<label for="a">A</label><input type="text" id="a">
		<input type="text" aria-label="B">
		<label>C <input type="text"></label>
		<input type="hidden" name="csrf">
		<input type="submit" value="Go">
		<input type="text" name="orphan">
	</form></body></html>`

	result, err := engine.Analyze(html, nil)
	require.NoError(t, err)

	byRule := issuesByRule(result)
	require.Len(t, byRule["label"], 1, "only the unlabelled text input is flagged")
}

func TestAnalyze_HeadingOrder(t *testing.T) {
	engine := newTestEngine(t)

	html := `<html lang="en"><head><title>t</title></head><body>
		<h1>Top</h1>
		<h3>Skipped</h3>
		<h4>Fine</h4>
		<h2>Back up is fine</h2>
	</body></html>`

	result, err := engine.Analyze(html, nil)
	require.NoError(t, err)

	byRule := issuesByRule(result)
	require.Len(t, byRule["heading-order"], 1)
	assert.Contains(t, byRule["heading-order"][0].HTMLSnippet, "Skipped")
}

func TestAnalyze_DuplicateIDs(t *testing.T) {
	engine := newTestEngine(t)

	html := `<html lang="en"><head><title>t</title></head><body>
		<div id="main"></div>
		<span id="main"></span>
		<p id="unique"></p>
	</body></html>`

	result, err := engine.Analyze(html, nil)
	require.NoError(t, err)

	byRule := issuesByRule(result)
	require.Len(t, byRule["duplicate-id"], 1)
	assert.Equal(t, "#main", byRule["duplicate-id"][0].CSSSelector)
}

func TestAnalyze_MetaViewport(t *testing.T) {
	engine := newTestEngine(t)

	html := `<html lang="en"><head><title>t</title>
		<meta name="viewport" content="width=device-width, user-scalable=no">
	</head><body></body></html>`

	result, err := engine.Analyze(html, nil)
	require.NoError(t, err)
	assert.Len(t, issuesByRule(result)["meta-viewport"], 1)
}

func TestAnalyze_RecountAggregatesByImpact(t *testing.T) {
	engine := newTestEngine(t)

	// image-alt is critical, html-has-lang and document-title are serious,
	// duplicate-id is moderate.
	html := `<html><head></head><body>
		<img src="x.png">
		<div id="d"></div><div id="d"></div>
	</body></html>`

	result, err := engine.Analyze(html, nil)
	require.NoError(t, err)

	assert.Equal(t, len(result.Issues), result.TotalIssues)
	assert.Equal(t, 1, result.CriticalCount)
	assert.Equal(t, 2, result.SeriousCount)
	assert.Equal(t, 1, result.ModerateCount)
	assert.Zero(t, result.MinorCount)
}
