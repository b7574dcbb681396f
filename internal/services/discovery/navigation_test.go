package discovery

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
)

func TestExtract_LandmarkPriority(t *testing.T) {
	html := `<html><body>
<nav><a href="/first">First</a></nav>
<div role="navigation"><a href="/second">Second</a></div>
<footer><nav><a href="/first">Duplicate of first</a><a href="/third">Third</a></nav></footer>
</body></html>`

	extractor := NewNavigationExtractor(arbor.NewLogger())
	links, err := extractor.Extract(html, "https://example.com")
	require.NoError(t, err)

	require.Len(t, links, 3)
	assert.Equal(t, "https://example.com/first", links[0].URL)
	assert.Equal(t, "First", links[0].Text)
	assert.Equal(t, "https://example.com/second", links[1].URL)
	assert.Equal(t, "https://example.com/third", links[2].URL)
}

func TestExtract_FooterNavRanksLast(t *testing.T) {
	// A footer nav precedes the menu in document order but must still be
	// credited to the lowest tier.
	html := `<html><body>
<footer><nav><a href="/footer-link">Footer</a></nav></footer>
<div class="menu"><a href="/menu-link">Menu</a></div>
</body></html>`

	extractor := NewNavigationExtractor(arbor.NewLogger())
	links, err := extractor.Extract(html, "https://example.com")
	require.NoError(t, err)

	require.Len(t, links, 2)
	assert.Equal(t, "https://example.com/menu-link", links[0].URL)
	assert.Equal(t, "https://example.com/footer-link", links[1].URL)
}

func TestExtract_SkipsNonPageSchemes(t *testing.T) {
	html := `<nav>
<a href="#section">Anchor</a>
<a href="javascript:void(0)">JS</a>
<a href="mailto:team@example.com">Mail</a>
<a href="tel:+1234567890">Phone</a>
<a href="/real">Real</a>
</nav>`

	extractor := NewNavigationExtractor(arbor.NewLogger())
	links, err := extractor.Extract(html, "https://example.com")
	require.NoError(t, err)

	require.Len(t, links, 1)
	assert.Equal(t, "https://example.com/real", links[0].URL)
}

func TestExtract_SameDomainOnly(t *testing.T) {
	html := `<nav>
<a href="https://example.com/internal">Internal</a>
<a href="https://www.example.com/www-internal">WWW internal</a>
<a href="https://partner.com/external">External</a>
</nav>`

	extractor := NewNavigationExtractor(arbor.NewLogger())
	links, err := extractor.Extract(html, "https://example.com")
	require.NoError(t, err)

	require.Len(t, links, 2)
	assert.Equal(t, "https://example.com/internal", links[0].URL)
	assert.Equal(t, "https://example.com/www-internal", links[1].URL)
}

func TestExtract_FragmentsStrippedBeforeDedup(t *testing.T) {
	html := `<nav>
<a href="/page#a">Page A</a>
<a href="/page#b">Page B</a>
</nav>`

	extractor := NewNavigationExtractor(arbor.NewLogger())
	links, err := extractor.Extract(html, "https://example.com")
	require.NoError(t, err)

	require.Len(t, links, 1)
	assert.Equal(t, "https://example.com/page", links[0].URL)
}

func TestExtract_TextCollapsed(t *testing.T) {
	html := "<nav><a href=\"/docs\">\n  Product \t  Docs  \n</a></nav>"

	extractor := NewNavigationExtractor(arbor.NewLogger())
	links, err := extractor.Extract(html, "https://example.com")
	require.NoError(t, err)

	require.Len(t, links, 1)
	assert.Equal(t, "Product Docs", links[0].Text)
}

func TestExtract_NoLandmarks(t *testing.T) {
	html := `<body><div><a href="/buried">Buried in content</a></div></body>`

	extractor := NewNavigationExtractor(arbor.NewLogger())
	links, err := extractor.Extract(html, "https://example.com")
	require.NoError(t, err)
	assert.Empty(t, links)
}
