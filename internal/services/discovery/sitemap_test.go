package discovery

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
)

const testHomepage = "https://example.com"

func newTestResolver(fetcher *stubFetcher, maxDepth, maxURLs int) *SitemapResolver {
	return NewSitemapResolver(fetcher, arbor.NewLogger(), maxDepth, maxURLs, 5*1024*1024, time.Second)
}

func TestResolve_URLSet(t *testing.T) {
	xml := `<?xml version="1.0" encoding="UTF-8"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <url><loc>https://example.com/</loc><lastmod>2024-01-01</lastmod><priority>0.8</priority></url>
  <url><loc>https://example.com/about</loc><changefreq>monthly</changefreq></url>
  <url><loc>https://other.com/external</loc></url>
  <url><loc></loc></url>
</urlset>`

	resolver := newTestResolver(newStubFetcher(), 3, 100)
	entries := resolver.Resolve(context.Background(), []byte(xml), testHomepage, 0)

	require.Len(t, entries, 2)
	assert.Equal(t, "https://example.com/", entries[0].URL)
	assert.Equal(t, "2024-01-01", entries[0].LastMod)
	assert.Equal(t, 0.8, entries[0].Priority)
	assert.Equal(t, "https://example.com/about", entries[1].URL)
	assert.Equal(t, "monthly", entries[1].ChangeFreq)
}

func TestResolve_SitemapIndex(t *testing.T) {
	fetcher := newStubFetcher()
	fetcher.addXML("https://example.com/pages.xml", `<urlset>
  <url><loc>https://example.com/a</loc></url>
  <url><loc>https://example.com/b</loc></url>
</urlset>`)

	index := `<sitemapindex>
  <sitemap><loc>https://example.com/pages.xml</loc></sitemap>
  <sitemap><loc>https://evil.com/steal.xml</loc></sitemap>
</sitemapindex>`

	resolver := newTestResolver(fetcher, 3, 100)
	entries := resolver.Resolve(context.Background(), []byte(index), testHomepage, 0)

	require.Len(t, entries, 2)
	assert.Equal(t, "https://example.com/a", entries[0].URL)
	assert.False(t, fetcher.fetched("https://evil.com/steal.xml"), "cross-domain child must never be fetched")
}

func TestResolve_DepthCap(t *testing.T) {
	fetcher := newStubFetcher()
	// Each index points at itself; without the cap this recurses forever.
	selfIndex := `<sitemapindex><sitemap><loc>https://example.com/index.xml</loc></sitemap></sitemapindex>`
	fetcher.addXML("https://example.com/index.xml", selfIndex)

	resolver := newTestResolver(fetcher, 3, 100)
	entries := resolver.Resolve(context.Background(), []byte(selfIndex), testHomepage, 0)
	assert.Empty(t, entries)
}

func TestResolve_URLCeiling(t *testing.T) {
	xml := `<urlset>
  <url><loc>https://example.com/1</loc></url>
  <url><loc>https://example.com/2</loc></url>
  <url><loc>https://example.com/3</loc></url>
</urlset>`

	resolver := newTestResolver(newStubFetcher(), 3, 2)
	entries := resolver.Resolve(context.Background(), []byte(xml), testHomepage, 0)
	assert.Len(t, entries, 2)
}

func TestResolve_MalformedXML(t *testing.T) {
	resolver := newTestResolver(newStubFetcher(), 3, 100)
	entries := resolver.Resolve(context.Background(), []byte("this is not xml <<<"), testHomepage, 0)
	assert.Empty(t, entries)
}

func TestParsePriority(t *testing.T) {
	cases := map[string]float64{
		"":     0,
		"0.5":  0.5,
		"1":    1,
		"1.7":  1,
		"-3":   0,
		"abc":  0,
		" 0.3": 0.3,
	}
	for in, want := range cases {
		assert.Equal(t, want, parsePriority(in), "input %q", in)
	}
}
