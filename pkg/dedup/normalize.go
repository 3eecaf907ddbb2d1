package dedup

import (
	"net/url"
	"strings"
)

// NormalizeURL reduces a URL to a comparable form: scheme, "www." prefix,
// trailing slashes, query parameters and fragments are all stripped.
// "https://www.github.com/foo/bar?ref=abc" becomes "github.com/foo/bar".
// Returns an empty string for unparseable input or input with no host.
func NormalizeURL(raw string) string {
	if raw == "" {
		return ""
	}

	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}

	host := strings.ToLower(u.Hostname())
	host = strings.TrimPrefix(host, "www.")
	if host == "" {
		return ""
	}

	path := strings.TrimRight(u.Path, "/")
	return host + path
}
