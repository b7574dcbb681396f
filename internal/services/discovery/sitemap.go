package discovery

import (
	"context"
	"encoding/xml"
	"strconv"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/tcthien/ada-wacg-compliance-sub004/internal/interfaces"
)

// SitemapEntry is one URL drawn from a urlset, with its optional metadata.
type SitemapEntry struct {
	URL        string  `json:"url"`
	LastMod    string  `json:"lastmod,omitempty"`
	ChangeFreq string  `json:"changefreq,omitempty"`
	Priority   float64 `json:"priority,omitempty"`
}

type sitemapURL struct {
	Loc        string `xml:"loc"`
	LastMod    string `xml:"lastmod"`
	ChangeFreq string `xml:"changefreq"`
	Priority   string `xml:"priority"`
}

type urlSet struct {
	XMLName xml.Name     `xml:"urlset"`
	URLs    []sitemapURL `xml:"url"`
}

type sitemapRef struct {
	Loc string `xml:"loc"`
}

type sitemapIndex struct {
	XMLName  xml.Name     `xml:"sitemapindex"`
	Sitemaps []sitemapRef `xml:"sitemap"`
}

// SitemapResolver expands sitemap documents and sitemap indexes into page
// entries. Child sitemaps are fetched only when same-domain as the
// homepage, recursion is capped, and per-fetch and total-URL ceilings stop
// resolution without error.
type SitemapResolver struct {
	fetcher      interfaces.Fetcher
	logger       arbor.ILogger
	maxDepth     int
	maxURLs      int
	maxBodySize  int64
	fetchTimeout time.Duration
}

// NewSitemapResolver creates a resolver with the given fetch bounds.
func NewSitemapResolver(fetcher interfaces.Fetcher, logger arbor.ILogger, maxDepth, maxURLs int, maxBodySize int64, fetchTimeout time.Duration) *SitemapResolver {
	if maxDepth <= 0 {
		maxDepth = 3
	}
	if maxURLs <= 0 {
		maxURLs = 50000
	}
	if maxBodySize <= 0 {
		maxBodySize = 5 * 1024 * 1024
	}
	return &SitemapResolver{
		fetcher:      fetcher,
		logger:       logger,
		maxDepth:     maxDepth,
		maxURLs:      maxURLs,
		maxBodySize:  maxBodySize,
		fetchTimeout: fetchTimeout,
	}
}

// Resolve parses the sitemap XML rooted at depth and returns same-domain
// entries. Index children outside the homepage domain are never fetched.
func (r *SitemapResolver) Resolve(ctx context.Context, xmlContent []byte, homepage string, depth int) []SitemapEntry {
	var entries []SitemapEntry
	r.resolveInto(ctx, xmlContent, homepage, depth, &entries)
	return entries
}

func (r *SitemapResolver) resolveInto(ctx context.Context, xmlContent []byte, homepage string, depth int, entries *[]SitemapEntry) {
	if depth >= r.maxDepth {
		r.logger.Warn().Str("homepage", homepage).Int("depth", depth).Msg("Sitemap recursion depth exceeded, stopping")
		return
	}
	if int64(len(xmlContent)) > r.maxBodySize {
		r.logger.Warn().Str("homepage", homepage).Int("size", len(xmlContent)).Msg("Sitemap document exceeds size ceiling, skipping")
		return
	}

	var set urlSet
	if err := xml.Unmarshal(xmlContent, &set); err == nil && len(set.URLs) > 0 {
		r.appendURLSet(&set, homepage, entries)
		return
	}

	var index sitemapIndex
	if err := xml.Unmarshal(xmlContent, &index); err == nil && len(index.Sitemaps) > 0 {
		for _, child := range index.Sitemaps {
			if ctx.Err() != nil {
				return
			}
			if len(*entries) >= r.maxURLs {
				return
			}
			loc := strings.TrimSpace(child.Loc)
			if loc == "" {
				continue
			}
			// Same-domain guard keeps index entries from redirecting the
			// fetcher to arbitrary hosts.
			if !IsSameDomain(loc, homepage) {
				r.logger.Warn().Str("sitemap_url", loc).Str("homepage", homepage).Msg("Cross-domain sitemap reference skipped")
				continue
			}
			result, err := r.fetcher.Fetch(ctx, loc, r.fetchTimeout)
			if err != nil {
				r.logger.Warn().Err(err).Str("sitemap_url", loc).Msg("Child sitemap fetch failed")
				continue
			}
			if result.StatusCode < 200 || result.StatusCode >= 300 {
				r.logger.Warn().Str("sitemap_url", loc).Int("status", result.StatusCode).Msg("Child sitemap returned non-success status")
				continue
			}
			r.resolveInto(ctx, result.Body, homepage, depth+1, entries)
		}
	}
}

func (r *SitemapResolver) appendURLSet(set *urlSet, homepage string, entries *[]SitemapEntry) {
	for _, u := range set.URLs {
		if len(*entries) >= r.maxURLs {
			return
		}
		loc := strings.TrimSpace(u.Loc)
		if loc == "" {
			continue
		}
		if !IsSameDomain(loc, homepage) {
			continue
		}
		*entries = append(*entries, SitemapEntry{
			URL:        Canonicalize(loc),
			LastMod:    strings.TrimSpace(u.LastMod),
			ChangeFreq: strings.TrimSpace(u.ChangeFreq),
			Priority:   parsePriority(u.Priority),
		})
	}
}

// parsePriority accepts both numeric and string-typed priority values and
// clamps the result to [0,1]. Unparseable input yields 0.
func parsePriority(raw string) float64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}
	p, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0
	}
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}
