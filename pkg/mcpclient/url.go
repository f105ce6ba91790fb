package mcpclient

import (
	"net/url"
	"strings"
)

// NormalizeHTTPBase turns ws://, wss:// or bare host strings into an
// HTTP(S) base URL without path, query or trailing slash.
func NormalizeHTTPBase(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	if !strings.Contains(raw, "://") {
		host, _, _ := strings.Cut(raw, "/")
		return "http://" + host
	}

	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}

	scheme := strings.ToLower(u.Scheme)
	switch scheme {
	case "ws":
		scheme = "http"
	case "wss":
		scheme = "https"
	case "http", "https":
	default:
		scheme = "http"
	}

	return scheme + "://" + u.Host
}

func hasScheme(raw string, schemes ...string) bool {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return false
	}
	for _, s := range schemes {
		if strings.EqualFold(u.Scheme, s) {
			return true
		}
	}
	return false
}
