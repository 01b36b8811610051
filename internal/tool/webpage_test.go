package tool

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"polyagent/internal/config"
)

type fakeFetcher struct {
	html string
	err  error
	urls []string
}

func (f *fakeFetcher) FetchHTML(ctx context.Context, rawURL string) (string, error) {
	f.urls = append(f.urls, rawURL)
	return f.html, f.err
}

func (f *fakeFetcher) Close() error { return nil }

func TestWebPageToolExtractsArticle(t *testing.T) {
	body := strings.Repeat("Go is an open source programming language that makes it simple to build secure, scalable systems. ", 20)
	fetcher := &fakeFetcher{html: `<html><head><title>Why Go</title></head><body><article><h1>Why Go</h1><p>` + body + `</p></article></body></html>`}
	wp := NewWebPageTool(config.BrowserConfig{MaxChars: 120})
	wp.fetcher = fetcher

	out, err := wp.Execute(context.Background(), Args{"url": "https://go.dev/solutions"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "Why Go\n\n"), out)
	assert.Contains(t, out, "open source programming language")
	assert.True(t, strings.HasSuffix(out, "(content truncated)"))
	assert.Equal(t, []string{"https://go.dev/solutions"}, fetcher.urls)
}

func TestWebPageToolFetchFailure(t *testing.T) {
	wp := NewWebPageTool(config.BrowserConfig{})
	wp.fetcher = &fakeFetcher{err: errors.New("navigation timeout")}

	out, err := wp.Execute(context.Background(), Args{"url": "https://example.com"})
	require.NoError(t, err)
	assert.Contains(t, out, "navigation timeout")
}

func TestWebPageDomainValidation(t *testing.T) {
	tests := []struct {
		name           string
		allowedDomains []string
		deniedDomains  []string
		url            string
		expectError    bool
	}{
		{name: "no restrictions", url: "https://example.com"},
		{name: "denied domain", deniedDomains: []string{"evil.com"}, url: "https://evil.com/path", expectError: true},
		{name: "denied subdomain", deniedDomains: []string{"evil.com"}, url: "https://sub.evil.com", expectError: true},
		{name: "allowed domain", allowedDomains: []string{"example.com"}, url: "https://www.example.com"},
		{name: "not in allowed list", allowedDomains: []string{"example.com"}, url: "https://other.com", expectError: true},
		{name: "file scheme", url: "file:///etc/passwd", expectError: true},
		{name: "loopback", url: "http://127.0.0.1:8080", expectError: true},
		{name: "private network", url: "http://192.168.1.10", expectError: true},
		{name: "localhost", url: "http://localhost/admin", expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wp := NewWebPageTool(config.BrowserConfig{
				AllowedDomains: tt.allowedDomains,
				DeniedDomains:  tt.deniedDomains,
			})
			_, err := wp.validateURL(tt.url)
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
