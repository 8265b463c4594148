package util

import (
	"net/url"
	"strings"
)

// IsRedirectSafe reports whether redirectURL may be handed back to a browser.
// Allowed forms are same-site relative paths and absolute http(s) URLs whose
// host matches baseURL. An empty value is safe; callers fall back to their
// default destination.
func IsRedirectSafe(redirectURL, baseURL string) bool {
	if redirectURL == "" {
		return true
	}

	// CR/LF would allow response-header injection.
	if strings.ContainsAny(redirectURL, "\r\n") {
		return false
	}

	if strings.HasPrefix(redirectURL, "/") {
		// "//host" is protocol-relative and "/\host" is the backslash
		// variant some browsers normalize to it.
		return !strings.HasPrefix(redirectURL, "//") && !strings.Contains(redirectURL, "\\")
	}

	parsed, err := url.Parse(redirectURL)
	if err != nil {
		return false
	}
	if parsed.Scheme != "" && parsed.Scheme != "http" && parsed.Scheme != "https" {
		return false
	}
	if parsed.Host == "" {
		return true
	}

	base, err := url.Parse(baseURL)
	if err != nil {
		return false
	}
	return parsed.Host == base.Host
}
