package blog

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"polyagent/internal/security"
)

const maxSlugLen = 60

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// Exporter writes finished posts as Markdown files into one directory.
type Exporter struct {
	dir string
	now func() time.Time
}

// NewExporter validates dir as a workspace, creating it if needed.
func NewExporter(dir string) (*Exporter, error) {
	if err := security.ValidateWorkspace(dir); err != nil {
		return nil, fmt.Errorf("blog output dir: %w", err)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	return &Exporter{dir: abs, now: time.Now}, nil
}

// Dir returns the absolute output directory.
func (e *Exporter) Dir() string { return e.dir }

// Export writes post to <dir>/<timestamp>-<slug>.md and returns the path.
func (e *Exporter) Export(query, post string) (string, error) {
	name := e.now().UTC().Format("20060102-150405") + "-" + Slug(query) + ".md"
	path, err := security.ResolveInside(e.dir, name)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, []byte(post), 0644); err != nil {
		return "", fmt.Errorf("write post: %w", err)
	}
	return path, nil
}

// Slug turns a query into a file-name fragment.
func Slug(s string) string {
	slug := strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(s), "-"), "-")
	if len(slug) > maxSlugLen {
		slug = strings.TrimRight(slug[:maxSlugLen], "-")
	}
	if slug == "" {
		return "post"
	}
	return slug
}
