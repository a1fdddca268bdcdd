package browser

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/net/idna"
)

var errEmptyURL = errors.New("url is empty")

// NormalizeURL turns what a model or a user typed into an absolute URL the
// browser can open. A missing scheme defaults to https and international
// host names are converted to their ASCII form.
func NormalizeURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", errEmptyURL
	}
	if raw == "about:blank" {
		return raw, nil
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + strings.TrimPrefix(raw, "//")
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid url %q: %w", raw, err)
	}
	switch u.Scheme {
	case "http", "https", "file":
	default:
		return "", fmt.Errorf("unsupported url scheme %q", u.Scheme)
	}
	if u.Scheme != "file" {
		host := u.Hostname()
		if host == "" {
			return "", fmt.Errorf("url %q has no host", raw)
		}
		if !strings.Contains(host, ":") {
			ascii, err := idna.Lookup.ToASCII(host)
			if err != nil {
				return "", fmt.Errorf("invalid host %q: %w", host, err)
			}
			if port := u.Port(); port != "" {
				u.Host = ascii + ":" + port
			} else {
				u.Host = ascii
			}
		}
	}
	return u.String(), nil
}
