package discovery

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// RobotsRules is the parsed robots.txt policy for one user-agent.
type RobotsRules struct {
	DisallowedPaths   []string `json:"disallowed_paths"`
	CrawlDelaySeconds float64  `json:"crawl_delay_seconds,omitempty"`
	SitemapURLs       []string `json:"sitemap_urls"`
}

type robotsGroup struct {
	agents     []string
	disallowed []string
	crawlDelay float64
	hasDelay   bool
}

// ParseRobots parses robots.txt content and resolves the effective rules
// for the given user-agent. Agent-specific groups override the wildcard
// group entirely; Sitemap directives are global. Directive names are
// case-insensitive and "#" starts a comment.
func ParseRobots(text, userAgent string) *RobotsRules {
	rules := &RobotsRules{
		DisallowedPaths: []string{},
		SitemapURLs:     []string{},
	}

	var groups []*robotsGroup
	var current *robotsGroup
	lastWasAgent := false

	for _, rawLine := range strings.Split(text, "\n") {
		line := rawLine
		if idx := strings.Index(line, "#"); idx >= 0 {
			line = line[:idx]
		}
		line = strings.TrimSpace(line)
		if line == "" {
			// Blank lines end the current group's agent run.
			lastWasAgent = false
			continue
		}

		colon := strings.Index(line, ":")
		if colon < 0 {
			continue
		}
		directive := strings.ToLower(strings.TrimSpace(line[:colon]))
		value := strings.TrimSpace(line[colon+1:])

		switch directive {
		case "user-agent":
			if current == nil || !lastWasAgent {
				current = &robotsGroup{}
				groups = append(groups, current)
			}
			current.agents = append(current.agents, strings.ToLower(value))
			lastWasAgent = true
		case "disallow":
			if current != nil {
				current.disallowed = append(current.disallowed, value)
			}
			lastWasAgent = false
		case "crawl-delay":
			if current != nil {
				if delay, err := strconv.ParseFloat(value, 64); err == nil && delay >= 0 {
					current.crawlDelay = delay
					current.hasDelay = true
				}
			}
			lastWasAgent = false
		case "sitemap":
			if u, err := url.Parse(value); err == nil && u.IsAbs() && u.Host != "" {
				rules.SitemapURLs = append(rules.SitemapURLs, value)
			}
			lastWasAgent = false
		default:
			lastWasAgent = false
		}
	}

	agentLower := strings.ToLower(userAgent)
	var wildcard, specific *robotsGroup
	for _, g := range groups {
		for _, a := range g.agents {
			if a == "*" && wildcard == nil {
				wildcard = g
			}
			if a != "*" && specific == nil && strings.Contains(agentLower, a) {
				specific = g
			}
		}
	}

	effective := wildcard
	if specific != nil {
		effective = specific
	}
	if effective != nil {
		seen := make(map[string]bool)
		for _, p := range effective.disallowed {
			if seen[p] {
				continue
			}
			seen[p] = true
			rules.DisallowedPaths = append(rules.DisallowedPaths, p)
		}
		if effective.hasDelay {
			rules.CrawlDelaySeconds = effective.crawlDelay
		}
	}

	return rules
}

// IsAllowed reports whether the path is permitted under the rules. A
// disallow entry matches by literal prefix, with "*" matching any
// character sequence. Empty and bare "/" entries are ignored.
func (r *RobotsRules) IsAllowed(path string) bool {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	for _, rule := range r.DisallowedPaths {
		rule = strings.TrimSpace(rule)
		if rule == "" || rule == "/" {
			continue
		}
		if matchRobotsPattern(path, rule) {
			return false
		}
	}
	return true
}

// matchRobotsPattern matches path against a disallow pattern anchored at
// the start, where "*" spans any sequence.
func matchRobotsPattern(path, pattern string) bool {
	segments := strings.Split(pattern, "*")
	if len(segments) == 1 {
		return strings.HasPrefix(path, pattern)
	}
	if !strings.HasPrefix(path, segments[0]) {
		return false
	}
	rest := path[len(segments[0]):]
	for _, seg := range segments[1:] {
		if seg == "" {
			continue
		}
		idx := strings.Index(rest, seg)
		if idx < 0 {
			return false
		}
		rest = rest[idx+len(seg):]
	}
	return true
}

// Serialize renders the rules back to robots.txt form for diagnostics.
func (r *RobotsRules) Serialize() string {
	var b strings.Builder
	b.WriteString("User-agent: *\n")
	for _, p := range r.DisallowedPaths {
		b.WriteString("Disallow: " + p + "\n")
	}
	if r.CrawlDelaySeconds > 0 {
		b.WriteString(fmt.Sprintf("Crawl-delay: %g\n", r.CrawlDelaySeconds))
	}
	for _, s := range r.SitemapURLs {
		b.WriteString("Sitemap: " + s + "\n")
	}
	return b.String()
}
