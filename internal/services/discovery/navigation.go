package discovery

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"
)

// landmarkSelectors are checked in priority order. Ties between selectors
// resolve by first occurrence in this list.
var landmarkSelectors = []string{
	"nav",
	`[role="navigation"]`,
	"header nav",
	".nav",
	".menu",
	"footer nav",
}

// NavigationLink is one same-domain link lifted from a landmark region.
type NavigationLink struct {
	URL  string `json:"url"`
	Text string `json:"text,omitempty"`
}

// NavigationExtractor pulls in-domain links from the landmark regions of a
// fetched homepage.
type NavigationExtractor struct {
	logger arbor.ILogger
}

// NewNavigationExtractor creates a new navigation extractor.
func NewNavigationExtractor(logger arbor.ILogger) *NavigationExtractor {
	return &NavigationExtractor{logger: logger}
}

// Extract parses the homepage HTML and returns deduplicated same-domain
// links in landmark priority order.
func (ne *NavigationExtractor) Extract(html, homepageURL string) ([]NavigationLink, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML for navigation extraction: %w", err)
	}

	base, err := url.Parse(homepageURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse homepage URL %s: %w", homepageURL, err)
	}

	var links []NavigationLink
	seen := make(map[string]bool)

	for _, selector := range landmarkSelectors {
		selection := doc.Find(selector)
		if selector == "nav" {
			// Footer navigation is its own, lowest-priority tier; keep those
			// elements out of the generic nav tier so ordering holds.
			selection = selection.Not("footer nav")
		}
		selection.Find("a[href]").Each(func(i int, s *goquery.Selection) {
			href, exists := s.Attr("href")
			href = strings.TrimSpace(href)
			if !exists || href == "" || strings.HasPrefix(href, "#") {
				return
			}
			if strings.HasPrefix(strings.ToLower(href), "javascript:") ||
				strings.HasPrefix(strings.ToLower(href), "mailto:") ||
				strings.HasPrefix(strings.ToLower(href), "tel:") {
				return
			}

			resolved, err := base.Parse(href)
			if err != nil {
				ne.logger.Debug().Err(err).Str("href", href).Msg("Failed to resolve navigation link")
				return
			}
			resolved.Fragment = ""

			absolute := resolved.String()
			if !IsSameDomain(absolute, homepageURL) {
				return
			}

			canonical := Canonicalize(absolute)
			if seen[canonical] {
				return
			}
			seen[canonical] = true

			links = append(links, NavigationLink{
				URL:  canonical,
				Text: collapseWhitespace(s.Text()),
			})
		})
	}

	ne.logger.Debug().
		Str("homepage", homepageURL).
		Int("links_found", len(links)).
		Msg("Navigation links extracted")

	return links, nil
}

// collapseWhitespace trims the text and folds internal runs of whitespace
// into single spaces.
func collapseWhitespace(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
