package tool

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	xhtml "golang.org/x/net/html"
)

const (
	duckDuckGoEndpoint    = "https://html.duckduckgo.com/html/"
	maxSearchResponseSize = 1 << 20
	maxSearchResults      = 8
)

// WebSearchTool provides web search capability using DuckDuckGo HTML.
type WebSearchTool struct {
	endpoint string
	client   *http.Client
}

func NewWebSearchTool(timeout time.Duration) *WebSearchTool {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &WebSearchTool{
		endpoint: duckDuckGoEndpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

func (t *WebSearchTool) Name() string { return "web_search" }
func (t *WebSearchTool) Description() string {
	return "Search the web for information. Returns search results with titles, URLs and snippets."
}

func (t *WebSearchTool) Parameters() []Parameter {
	return []Parameter{{Name: "query", Type: "string", Description: "The search query"}}
}

// SearchResult describes a single search hit.
type SearchResult struct {
	Title   string
	URL     string
	Snippet string
}

func (t *WebSearchTool) Execute(ctx context.Context, args Args) (string, error) {
	query, err := args.String("query")
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(query) == "" {
		return "", &ArgumentError{Name: "query", Reason: "empty"}
	}

	results, err := t.search(ctx, query)
	if err != nil {
		return "Error: " + err.Error(), nil
	}
	if len(results) == 0 {
		return "No results found for: " + query, nil
	}

	var sb strings.Builder
	for i, r := range results {
		if i == maxSearchResults {
			break
		}
		fmt.Fprintf(&sb, "%d. %s\n   %s\n", i+1, r.Title, r.URL)
		if r.Snippet != "" {
			fmt.Fprintf(&sb, "   %s\n", r.Snippet)
		}
	}
	return strings.TrimRight(sb.String(), "\n"), nil
}

func (t *WebSearchTool) search(ctx context.Context, query string) ([]SearchResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.endpoint+"?q="+url.QueryEscape(query), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("search failed with status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxSearchResponseSize))
	if err != nil {
		return nil, fmt.Errorf("read search response: %w", err)
	}

	doc, err := xhtml.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse search HTML: %w", err)
	}
	return extractResults(doc), nil
}

func extractResults(doc *xhtml.Node) []SearchResult {
	var results []SearchResult
	seen := make(map[string]bool)
	var walk func(*xhtml.Node)
	walk = func(n *xhtml.Node) {
		if n.Type == xhtml.ElementNode && n.Data == "div" && hasClass(n, "result") {
			if r, ok := buildResult(n); ok && !seen[r.URL] {
				seen[r.URL] = true
				results = append(results, r)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return results
}

func buildResult(node *xhtml.Node) (SearchResult, bool) {
	var r SearchResult
	var inspect func(*xhtml.Node)
	inspect = func(n *xhtml.Node) {
		if n.Type == xhtml.ElementNode {
			if r.URL == "" && n.Data == "a" && hasClass(n, "result__a") {
				r.URL = resultURL(attr(n, "href"))
				r.Title = text(n)
			}
			if r.Snippet == "" && hasClass(n, "result__snippet") {
				r.Snippet = text(n)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			inspect(c)
		}
	}
	inspect(node)
	return r, r.URL != "" && r.Title != ""
}

// resultURL unwraps DuckDuckGo redirect links (//duckduckgo.com/l/?uddg=<target>).
func resultURL(href string) string {
	u, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return ""
	}
	if target := u.Query().Get("uddg"); target != "" {
		if u, err = url.Parse(target); err != nil {
			return ""
		}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	return u.String()
}

func hasClass(n *xhtml.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

func attr(n *xhtml.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func text(n *xhtml.Node) string {
	var b strings.Builder
	var collect func(*xhtml.Node)
	collect = func(n *xhtml.Node) {
		if n.Type == xhtml.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			collect(c)
		}
	}
	collect(n)
	return strings.Join(strings.Fields(b.String()), " ")
}
