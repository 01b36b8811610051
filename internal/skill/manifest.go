package skill

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"regexp"

	"polyagent/internal/tool"
)

const (
	manifestFile    = "manifest.json"
	maxManifestSize = 64 * 1024
)

var skillName = regexp.MustCompile(`^[a-z][a-z0-9_]{0,47}$`)

var paramTypes = map[string]bool{"string": true, "number": true, "integer": true, "boolean": true}

// Manifest is the manifest.json of a skill directory.
type Manifest struct {
	Name        string           `json:"name"`
	Version     string           `json:"version"`
	Description string           `json:"description"`
	Author      string           `json:"author,omitempty"`
	Parameters  []tool.Parameter `json:"parameters,omitempty"`
	Command     string           `json:"command"`
	TimeoutSecs int              `json:"timeout_secs,omitempty"`
}

// Validate checks the fields a skill needs to be offered to the model as a tool.
func (m *Manifest) Validate() error {
	if m.Name == "" || m.Command == "" {
		return fmt.Errorf("manifest missing required fields (name, command)")
	}
	if !skillName.MatchString(m.Name) {
		return fmt.Errorf("skill name %q must be lower snake case", m.Name)
	}
	seen := make(map[string]bool, len(m.Parameters))
	for _, p := range m.Parameters {
		if p.Name == "" {
			return fmt.Errorf("parameter without a name")
		}
		if seen[p.Name] {
			return fmt.Errorf("duplicate parameter %q", p.Name)
		}
		seen[p.Name] = true
		if p.Type != "" && !paramTypes[p.Type] {
			return fmt.Errorf("parameter %q has unsupported type %q", p.Name, p.Type)
		}
	}
	if m.TimeoutSecs < 0 {
		return fmt.Errorf("timeout_secs must not be negative")
	}
	return nil
}

// SkillInfo summarises an installed skill. Err is set when its manifest is unusable.
type SkillInfo struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	Description string `json:"description"`
	Author      string `json:"author"`
	Dir         string `json:"dir"`
	Enabled     bool   `json:"enabled"`
	Err         string `json:"error,omitempty"`
}

func parseManifest(path string) (*Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxManifestSize))
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("invalid manifest: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}
