package tool

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	readability "github.com/go-shiori/go-readability"

	"polyagent/internal/config"
)

// pageFetcher renders a page and returns its outer HTML.
type pageFetcher interface {
	FetchHTML(ctx context.Context, rawURL string) (string, error)
	Close() error
}

// WebPageTool renders a page in a headless browser and extracts its readable text.
type WebPageTool struct {
	cfg     config.BrowserConfig
	fetcher pageFetcher
}

// NewWebPageTool creates the read_webpage tool backed by rod.
func NewWebPageTool(cfg config.BrowserConfig) *WebPageTool {
	if cfg.TimeoutSecs <= 0 {
		cfg.TimeoutSecs = 30
	}
	if cfg.MaxChars <= 0 {
		cfg.MaxChars = 20000
	}
	return &WebPageTool{cfg: cfg, fetcher: &rodFetcher{headless: cfg.Headless}}
}

func (t *WebPageTool) Name() string { return "read_webpage" }
func (t *WebPageTool) Description() string {
	return "Open a web page and return its title and main readable text."
}

func (t *WebPageTool) Parameters() []Parameter {
	return []Parameter{{Name: "url", Type: "string", Description: "Absolute http(s) URL of the page"}}
}

func (t *WebPageTool) Execute(ctx context.Context, args Args) (string, error) {
	rawURL, err := args.String("url")
	if err != nil {
		return "", err
	}
	u, err := t.validateURL(rawURL)
	if err != nil {
		return "Error: " + err.Error(), nil
	}

	ctx, cancel := context.WithTimeout(ctx, time.Duration(t.cfg.TimeoutSecs)*time.Second)
	defer cancel()

	html, err := t.fetcher.FetchHTML(ctx, u.String())
	if err != nil {
		return "Error: failed to load page: " + err.Error(), nil
	}

	article, err := readability.FromReader(strings.NewReader(html), u)
	if err != nil {
		return "Error: failed to extract content: " + err.Error(), nil
	}

	content := strings.TrimSpace(article.TextContent)
	if len(content) > t.cfg.MaxChars {
		content = content[:t.cfg.MaxChars] + "\n... (content truncated)"
	}
	title := strings.TrimSpace(article.Title)
	if title == "" {
		return content, nil
	}
	return title + "\n\n" + content, nil
}

// Close shuts down the browser if one was launched.
func (t *WebPageTool) Close() error {
	return t.fetcher.Close()
}

// validateURL checks the URL scheme, private IPs, and domain allow/deny lists.
func (t *WebPageTool) validateURL(rawURL string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}

	switch u.Scheme {
	case "http", "https":
	default:
		return nil, fmt.Errorf("only http/https schemes are allowed, got: %s", u.Scheme)
	}

	host := u.Hostname()
	if isPrivateHost(host) {
		return nil, fmt.Errorf("access to private/loopback addresses is denied: %s", host)
	}

	domain := strings.ToLower(host)
	for _, d := range t.cfg.DeniedDomains {
		if domainMatches(domain, d) {
			return nil, fmt.Errorf("domain %s is denied", domain)
		}
	}
	if len(t.cfg.AllowedDomains) > 0 {
		for _, d := range t.cfg.AllowedDomains {
			if domainMatches(domain, d) {
				return u, nil
			}
		}
		return nil, fmt.Errorf("domain %s is not in allowed list", domain)
	}
	return u, nil
}

func domainMatches(domain, pattern string) bool {
	p := strings.ToLower(pattern)
	return domain == p || strings.HasSuffix(domain, "."+p)
}

// isPrivateHost returns true for loopback, private, and link-local addresses.
func isPrivateHost(host string) bool {
	lower := strings.ToLower(host)
	if lower == "localhost" || lower == "ip6-localhost" || lower == "ip6-loopback" {
		return true
	}

	ip := net.ParseIP(host)
	if ip == nil {
		// Hostnames are not resolved here; domain lists are the control for those.
		return false
	}
	return ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() || ip.IsUnspecified()
}

// rodFetcher launches one browser lazily and opens a fresh page per fetch.
type rodFetcher struct {
	headless bool
	mu       sync.Mutex
	browser  *rod.Browser
}

func (f *rodFetcher) ensureBrowser() (*rod.Browser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.browser != nil {
		return f.browser, nil
	}

	controlURL, err := launcher.New().Headless(f.headless).Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}
	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}
	f.browser = browser
	return browser, nil
}

func (f *rodFetcher) FetchHTML(ctx context.Context, rawURL string) (string, error) {
	browser, err := f.ensureBrowser()
	if err != nil {
		return "", err
	}

	page, err := browser.Context(ctx).Page(proto.TargetCreateTarget{URL: rawURL})
	if err != nil {
		return "", fmt.Errorf("open page: %w", err)
	}
	defer page.Close()

	if err := page.WaitLoad(); err != nil {
		return "", fmt.Errorf("page load: %w", err)
	}
	return page.HTML()
}

func (f *rodFetcher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.browser == nil {
		return nil
	}
	err := f.browser.Close()
	f.browser = nil
	return err
}
