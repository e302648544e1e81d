package scraper

import (
	"fmt"
	"net/url"
	"strings"
)

// Domain extracts the registrable host from a URL, stripping any leading
// "www." so that health records key on the bare domain.
func Domain(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return rawURL
	}
	host := strings.ToLower(u.Hostname())
	return strings.TrimPrefix(host, "www.")
}

// ResolveURL joins a possibly-relative href against the page it appeared
// on, per standard URL-join semantics.
func ResolveURL(base, href string) (string, error) {
	b, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", fmt.Errorf("parse href: %w", err)
	}
	resolved := b.ResolveReference(ref)
	resolved.Fragment = ""
	return resolved.String(), nil
}
