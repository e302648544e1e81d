package scraper

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDomain(t *testing.T) {
	t.Parallel()
	cases := []struct {
		rawURL string
		want   string
	}{
		{"https://www.example.org/jobs", "example.org"},
		{"https://example.org/jobs", "example.org"},
		{"http://WWW.Example.ORG", "example.org"},
		{"https://sub.example.org/a/b", "sub.example.org"},
		{"https://example.org:8443/jobs", "example.org"},
		{"not a url", "not a url"},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, Domain(tc.rawURL), "Domain(%q)", tc.rawURL)
	}
}

func TestResolveURL(t *testing.T) {
	t.Parallel()
	cases := []struct {
		base string
		href string
		want string
	}{
		{"https://example.org/jobs/", "apply/now", "https://example.org/jobs/apply/now"},
		{"https://example.org/jobs/listing", "/apply", "https://example.org/apply"},
		{"https://example.org/jobs", "https://other.example.com/x", "https://other.example.com/x"},
		{"https://example.org/jobs", "  /apply  ", "https://example.org/apply"},
		{"https://example.org/jobs", "/apply#details", "https://example.org/apply"},
	}
	for _, tc := range cases {
		got, err := ResolveURL(tc.base, tc.href)
		require.NoError(t, err)
		require.Equal(t, tc.want, got, "ResolveURL(%q, %q)", tc.base, tc.href)
	}
}

func TestResolveURLRejectsBadInput(t *testing.T) {
	t.Parallel()
	_, err := ResolveURL("https://example.org", "http://bad:port:port")
	require.Error(t, err)
}
