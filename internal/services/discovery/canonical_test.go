package discovery

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tcthien/ada-wacg-compliance-sub004/internal/models"
)

func TestCanonicalize(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"lowercase host", "http://Example.COM/page", "http://example.com/page"},
		{"strip www", "https://www.example.com/about", "https://example.com/about"},
		{"drop fragment", "https://example.com/page#section", "https://example.com/page"},
		{"trim trailing slash", "https://example.com/page/", "https://example.com/page"},
		{"keep root slash", "https://example.com/", "https://example.com/"},
		{"preserve query", "https://example.com/search?q=a&b=c", "https://example.com/search?q=a&b=c"},
		{"whitespace trimmed", "  https://example.com/page  ", "https://example.com/page"},
		{"path case preserved", "https://example.com/About", "https://example.com/About"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Canonicalize(tc.in))
		})
	}
}

func TestCanonicalize_Idempotent(t *testing.T) {
	inputs := []string{
		"http://WWW.Example.com/a/b/#frag",
		"https://example.com/",
		"https://example.com/page/?q=1",
	}
	for _, in := range inputs {
		once := Canonicalize(in)
		assert.Equal(t, once, Canonicalize(once), "canonicalizing twice must not change %q", in)
	}
}

func TestIsSameDomain(t *testing.T) {
	assert.True(t, IsSameDomain("https://example.com/a", "https://www.example.com/b"))
	assert.True(t, IsSameDomain("http://EXAMPLE.com", "https://example.com"))
	assert.False(t, IsSameDomain("https://example.com", "https://other.com"))
	assert.False(t, IsSameDomain("https://sub.example.com", "https://example.com"))
	assert.False(t, IsSameDomain("not a url", "https://example.com"))
}

func TestIsPrivateAddress(t *testing.T) {
	private := []string{"127.0.0.1", "10.0.0.5", "192.168.1.1", "172.16.0.1", "169.254.1.1", "::1"}
	for _, host := range private {
		assert.True(t, IsPrivateAddress(host), host)
	}
	public := []string{"8.8.8.8", "93.184.216.34", "example.com", "localhost"}
	for _, host := range public {
		assert.False(t, IsPrivateAddress(host), host)
	}
}

func TestValidate_ErrorCodes(t *testing.T) {
	homepage := "https://example.com"

	cases := []struct {
		name string
		url  string
		code models.ErrorCode
	}{
		{"unparseable", "://bad", models.ErrCodeInvalidURL},
		{"relative", "/just/a/path", models.ErrCodeInvalidURL},
		{"ftp scheme", "ftp://example.com/file", models.ErrCodeUnsupportedScheme},
		{"javascript scheme", "javascript://example.com/x", models.ErrCodeUnsupportedScheme},
		{"loopback", "http://127.0.0.1/admin", models.ErrCodePrivateAddress},
		{"cross domain", "https://other.com/page", models.ErrCodeDomainMismatch},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := Validate(tc.url, homepage)
			require.Error(t, err)
			assert.Equal(t, tc.code, models.CodeOf(err))
		})
	}

	assert.NoError(t, Validate("https://www.example.com/page", homepage))
}

func TestDeduplicate(t *testing.T) {
	in := []string{
		"https://example.com/a",
		"https://www.example.com/a",
		"https://example.com/a/",
		"https://example.com/b#frag",
		"https://example.com/b",
	}
	out := Deduplicate(in)
	assert.Equal(t, []string{"https://example.com/a", "https://example.com/b"}, out)
}
