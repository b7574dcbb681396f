package scanner

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"

	"github.com/tcthien/ada-wacg-compliance-sub004/internal/interfaces"
	"github.com/tcthien/ada-wacg-compliance-sub004/internal/models"
)

const maxSnippetLength = 300

// Rule is one automated accessibility check over the rendered document.
type Rule struct {
	ID           string
	Impact       models.IssueImpact
	WCAGCriteria []string
	Description  string
	HelpText     string
	HelpURL      string
	Check        func(doc *goquery.Document, ax []interfaces.AXNode) []*models.Issue
}

// RuleEngine runs the automated rule set against a rendered page.
type RuleEngine struct {
	rules  []Rule
	logger arbor.ILogger
}

// NewRuleEngine creates the engine with the built-in rule set.
func NewRuleEngine(logger arbor.ILogger) *RuleEngine {
	return &RuleEngine{
		rules:  builtinRules(),
		logger: logger,
	}
}

// Analyze evaluates every rule and returns the aggregated result. A rule
// that finds no matching elements counts as inapplicable; a rule whose
// elements all pass counts as passed.
func (e *RuleEngine) Analyze(html string, ax []interfaces.AXNode) (*models.ScanResult, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML for analysis: %w", err)
	}

	result := &models.ScanResult{Issues: []*models.Issue{}}
	for _, rule := range e.rules {
		issues := rule.Check(doc, ax)
		if len(issues) == 0 {
			result.PassedChecks++
			continue
		}
		for _, issue := range issues {
			issue.RuleID = rule.ID
			issue.Impact = rule.Impact
			issue.WCAGCriteria = rule.WCAGCriteria
			issue.Description = rule.Description
			issue.HelpText = rule.HelpText
			issue.HelpURL = rule.HelpURL
			result.Issues = append(result.Issues, issue)
		}
	}
	result.Recount()

	e.logger.Debug().
		Int("total_issues", result.TotalIssues).
		Int("passed_checks", result.PassedChecks).
		Msg("Rule analysis complete")
	return result, nil
}

func builtinRules() []Rule {
	return []Rule{
		{
			ID:           "image-alt",
			Impact:       models.ImpactCritical,
			WCAGCriteria: []string{"1.1.1"},
			Description:  "Images must have alternate text",
			HelpText:     "Add an alt attribute describing the image, or alt=\"\" for decorative images.",
			HelpURL:      "https://www.w3.org/WAI/WCAG21/Understanding/non-text-content.html",
			Check: func(doc *goquery.Document, _ []interfaces.AXNode) []*models.Issue {
				var issues []*models.Issue
				doc.Find("img").Each(func(i int, s *goquery.Selection) {
					if _, exists := s.Attr("alt"); !exists {
						if _, hidden := s.Attr("aria-hidden"); hidden {
							return
						}
						issues = append(issues, issueFor(s))
					}
				})
				return issues
			},
		},
		{
			ID:           "html-has-lang",
			Impact:       models.ImpactSerious,
			WCAGCriteria: []string{"3.1.1"},
			Description:  "The html element must have a lang attribute",
			HelpText:     "Set lang on the html element so assistive technology can select the correct voice.",
			HelpURL:      "https://www.w3.org/WAI/WCAG21/Understanding/language-of-page.html",
			Check: func(doc *goquery.Document, _ []interfaces.AXNode) []*models.Issue {
				html := doc.Find("html").First()
				if lang, exists := html.Attr("lang"); !exists || strings.TrimSpace(lang) == "" {
					return []*models.Issue{issueFor(html)}
				}
				return nil
			},
		},
		{
			ID:           "document-title",
			Impact:       models.ImpactSerious,
			WCAGCriteria: []string{"2.4.2"},
			Description:  "Documents must have a non-empty title",
			HelpText:     "Provide a title element that describes the page topic or purpose.",
			HelpURL:      "https://www.w3.org/WAI/WCAG21/Understanding/page-titled.html",
			Check: func(doc *goquery.Document, _ []interfaces.AXNode) []*models.Issue {
				title := doc.Find("head title").First()
				if title.Length() == 0 || strings.TrimSpace(title.Text()) == "" {
					return []*models.Issue{{CSSSelector: "head"}}
				}
				return nil
			},
		},
		{
			ID:           "link-name",
			Impact:       models.ImpactSerious,
			WCAGCriteria: []string{"2.4.4", "4.1.2"},
			Description:  "Links must have discernible text",
			HelpText:     "Give every link visible text, an aria-label, or an image with alt text.",
			HelpURL:      "https://www.w3.org/WAI/WCAG21/Understanding/link-purpose-in-context.html",
			Check: func(doc *goquery.Document, _ []interfaces.AXNode) []*models.Issue {
				var issues []*models.Issue
				doc.Find("a[href]").Each(func(i int, s *goquery.Selection) {
					if accessibleName(s) == "" {
						issues = append(issues, issueFor(s))
					}
				})
				return issues
			},
		},
		{
			ID:           "button-name",
			Impact:       models.ImpactCritical,
			WCAGCriteria: []string{"4.1.2"},
			Description:  "Buttons must have discernible text",
			HelpText:     "Give every button visible text, an aria-label, or a labelled image.",
			HelpURL:      "https://www.w3.org/WAI/WCAG21/Understanding/name-role-value.html",
			Check: func(doc *goquery.Document, _ []interfaces.AXNode) []*models.Issue {
				var issues []*models.Issue
				doc.Find("button, [role=\"button\"]").Each(func(i int, s *goquery.Selection) {
					if accessibleName(s) == "" {
						if v, ok := s.Attr("value"); ok && strings.TrimSpace(v) != "" {
							return
						}
						issues = append(issues, issueFor(s))
					}
				})
				return issues
			},
		},
		{
			ID:           "label",
			Impact:       models.ImpactCritical,
			WCAGCriteria: []string{"1.3.1", "3.3.2"},
			Description:  "Form inputs must have labels",
			HelpText:     "Associate a label element with the input, or use aria-label or aria-labelledby.",
			HelpURL:      "https://www.w3.org/WAI/WCAG21/Understanding/labels-or-instructions.html",
			Check: func(doc *goquery.Document, _ []interfaces.AXNode) []*models.Issue {
				labelled := make(map[string]bool)
				doc.Find("label[for]").Each(func(i int, s *goquery.Selection) {
					if forID, ok := s.Attr("for"); ok {
						labelled[forID] = true
					}
				})
				var issues []*models.Issue
				doc.Find("input, select, textarea").Each(func(i int, s *goquery.Selection) {
					inputType, _ := s.Attr("type")
					switch strings.ToLower(inputType) {
					case "hidden", "submit", "button", "reset", "image":
						return
					}
					if id, ok := s.Attr("id"); ok && labelled[id] {
						return
					}
					if hasARIALabel(s) {
						return
					}
					if s.ParentsFiltered("label").Length() > 0 {
						return
					}
					if _, ok := s.Attr("title"); ok {
						return
					}
					issues = append(issues, issueFor(s))
				})
				return issues
			},
		},
		{
			ID:           "heading-order",
			Impact:       models.ImpactModerate,
			WCAGCriteria: []string{"1.3.1"},
			Description:  "Heading levels should only increase by one",
			HelpText:     "Do not skip heading levels; structure headings hierarchically.",
			HelpURL:      "https://www.w3.org/WAI/WCAG21/Understanding/info-and-relationships.html",
			Check: func(doc *goquery.Document, _ []interfaces.AXNode) []*models.Issue {
				var issues []*models.Issue
				previous := 0
				doc.Find("h1, h2, h3, h4, h5, h6").Each(func(i int, s *goquery.Selection) {
					level, err := strconv.Atoi(strings.TrimPrefix(goquery.NodeName(s), "h"))
					if err != nil {
						return
					}
					if previous > 0 && level > previous+1 {
						issues = append(issues, issueFor(s))
					}
					previous = level
				})
				return issues
			},
		},
		{
			ID:           "empty-heading",
			Impact:       models.ImpactMinor,
			WCAGCriteria: []string{"1.3.1", "2.4.6"},
			Description:  "Headings should not be empty",
			HelpText:     "Remove empty heading elements or give them descriptive text.",
			HelpURL:      "https://www.w3.org/WAI/WCAG21/Understanding/headings-and-labels.html",
			Check: func(doc *goquery.Document, _ []interfaces.AXNode) []*models.Issue {
				var issues []*models.Issue
				doc.Find("h1, h2, h3, h4, h5, h6").Each(func(i int, s *goquery.Selection) {
					if strings.TrimSpace(s.Text()) == "" && !hasARIALabel(s) && s.Find("img[alt]").Length() == 0 {
						issues = append(issues, issueFor(s))
					}
				})
				return issues
			},
		},
		{
			ID:           "frame-title",
			Impact:       models.ImpactSerious,
			WCAGCriteria: []string{"4.1.2"},
			Description:  "Frames must have a title attribute",
			HelpText:     "Add a title attribute to every iframe describing its content.",
			HelpURL:      "https://www.w3.org/WAI/WCAG21/Understanding/name-role-value.html",
			Check: func(doc *goquery.Document, _ []interfaces.AXNode) []*models.Issue {
				var issues []*models.Issue
				doc.Find("iframe, frame").Each(func(i int, s *goquery.Selection) {
					if title, ok := s.Attr("title"); !ok || strings.TrimSpace(title) == "" {
						if hasARIALabel(s) {
							return
						}
						issues = append(issues, issueFor(s))
					}
				})
				return issues
			},
		},
		{
			ID:           "duplicate-id",
			Impact:       models.ImpactModerate,
			WCAGCriteria: []string{"4.1.1"},
			Description:  "id attribute values must be unique",
			HelpText:     "Ensure each id value appears only once in the document.",
			HelpURL:      "https://www.w3.org/WAI/WCAG21/Understanding/parsing.html",
			Check: func(doc *goquery.Document, _ []interfaces.AXNode) []*models.Issue {
				counts := make(map[string]int)
				doc.Find("[id]").Each(func(i int, s *goquery.Selection) {
					if id, ok := s.Attr("id"); ok && id != "" {
						counts[id]++
					}
				})
				var issues []*models.Issue
				for id, n := range counts {
					if n > 1 {
						issues = append(issues, &models.Issue{
							CSSSelector: "#" + id,
							HTMLSnippet: fmt.Sprintf("id=%q used %d times", id, n),
						})
					}
				}
				return issues
			},
		},
		{
			ID:           "meta-viewport",
			Impact:       models.ImpactCritical,
			WCAGCriteria: []string{"1.4.4"},
			Description:  "Zooming and scaling must not be disabled",
			HelpText:     "Remove user-scalable=no and maximum-scale restrictions from the viewport meta tag.",
			HelpURL:      "https://www.w3.org/WAI/WCAG21/Understanding/resize-text.html",
			Check: func(doc *goquery.Document, _ []interfaces.AXNode) []*models.Issue {
				var issues []*models.Issue
				doc.Find("meta[name=\"viewport\"]").Each(func(i int, s *goquery.Selection) {
					content, _ := s.Attr("content")
					normalized := strings.ReplaceAll(strings.ToLower(content), " ", "")
					if strings.Contains(normalized, "user-scalable=no") || strings.Contains(normalized, "maximum-scale=1") {
						issues = append(issues, issueFor(s))
					}
				})
				return issues
			},
		},
	}
}

// accessibleName approximates the computed accessible name from text
// content, ARIA attributes and contained image alt text.
func accessibleName(s *goquery.Selection) string {
	if text := strings.TrimSpace(s.Text()); text != "" {
		return text
	}
	if label, ok := s.Attr("aria-label"); ok && strings.TrimSpace(label) != "" {
		return strings.TrimSpace(label)
	}
	if _, ok := s.Attr("aria-labelledby"); ok {
		return "labelledby"
	}
	name := ""
	s.Find("img[alt]").EachWithBreak(func(i int, img *goquery.Selection) bool {
		alt, _ := img.Attr("alt")
		if strings.TrimSpace(alt) != "" {
			name = strings.TrimSpace(alt)
			return false
		}
		return true
	})
	if name != "" {
		return name
	}
	if title, ok := s.Attr("title"); ok && strings.TrimSpace(title) != "" {
		return strings.TrimSpace(title)
	}
	return ""
}

func hasARIALabel(s *goquery.Selection) bool {
	if label, ok := s.Attr("aria-label"); ok && strings.TrimSpace(label) != "" {
		return true
	}
	if labelledBy, ok := s.Attr("aria-labelledby"); ok && strings.TrimSpace(labelledBy) != "" {
		return true
	}
	return false
}

// issueFor captures the element's selector and a bounded HTML snippet.
func issueFor(s *goquery.Selection) *models.Issue {
	snippet, err := goquery.OuterHtml(s)
	if err != nil {
		snippet = ""
	}
	snippet = strings.TrimSpace(snippet)
	if len(snippet) > maxSnippetLength {
		snippet = snippet[:maxSnippetLength]
	}
	return &models.Issue{
		CSSSelector: cssPath(s),
		HTMLSnippet: snippet,
	}
}

// cssPath builds a short selector for the element: id when present,
// otherwise tag plus classes with an index fallback.
func cssPath(s *goquery.Selection) string {
	if id, ok := s.Attr("id"); ok && id != "" {
		return "#" + id
	}
	name := goquery.NodeName(s)
	if class, ok := s.Attr("class"); ok && strings.TrimSpace(class) != "" {
		classes := strings.Fields(class)
		return name + "." + strings.Join(classes, ".")
	}
	index := s.Index()
	if index > 0 {
		return fmt.Sprintf("%s:nth-child(%d)", name, index+1)
	}
	return name
}
