package discovery

import (
	"net"
	"net/url"
	"strings"

	"github.com/tcthien/ada-wacg-compliance-sub004/internal/models"
)

// Canonicalize normalizes a URL for identity comparison: lowercase host,
// leading "www." stripped, fragment removed, trailing "/" stripped unless
// the path is exactly "/". The query is preserved. Unparseable input is
// returned unchanged so callers can surface the original string in errors.
func Canonicalize(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Host == "" {
		return rawURL
	}

	host := strings.ToLower(u.Host)
	host = strings.TrimPrefix(host, "www.")
	u.Host = host

	u.Fragment = ""

	if u.Path != "/" && strings.HasSuffix(u.Path, "/") {
		u.Path = strings.TrimSuffix(u.Path, "/")
	}

	return u.String()
}

// IsSameDomain reports whether two URLs share a host after canonical host
// normalization. Parse failure on either side yields false.
func IsSameDomain(a, b string) bool {
	hostA := canonicalHost(a)
	hostB := canonicalHost(b)
	if hostA == "" || hostB == "" {
		return false
	}
	return hostA == hostB
}

func canonicalHost(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Hostname() == "" {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	return strings.TrimPrefix(host, "www.")
}

// IsPrivateAddress reports whether the host is a literal IP in a private,
// loopback or link-local range. Hostnames that are not literal IPs return
// false; DNS resolution is out of scope here.
func IsPrivateAddress(host string) bool {
	ip := net.ParseIP(strings.TrimSpace(strings.ToLower(host)))
	if ip == nil {
		return false
	}
	return ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast()
}

// Validate checks a candidate URL against the homepage before any fetch.
// Order matters: parse, scheme, private address, then domain match.
func Validate(rawURL, homepage string) error {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Host == "" {
		return models.NewAppError(models.ErrCodeInvalidURL, "URL is not parseable: "+rawURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return models.NewAppError(models.ErrCodeUnsupportedScheme, "unsupported scheme: "+u.Scheme)
	}
	if IsPrivateAddress(u.Hostname()) {
		return models.NewAppError(models.ErrCodePrivateAddress, "private address rejected: "+u.Hostname())
	}
	if !IsSameDomain(rawURL, homepage) {
		return models.NewAppError(models.ErrCodeDomainMismatch, "URL outside homepage domain: "+rawURL)
	}
	return nil
}

// Deduplicate canonicalizes the input and drops later duplicates, keeping
// first-occurrence order.
func Deduplicate(urls []string) []string {
	seen := make(map[string]bool, len(urls))
	out := make([]string, 0, len(urls))
	for _, raw := range urls {
		c := Canonicalize(raw)
		if seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}
