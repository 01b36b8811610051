package skill

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"

	"polyagent/internal/tool"
)

// Loader discovers skills: one directory per skill under skillsDir, each holding a
// manifest.json and whatever the command needs.
type Loader struct {
	skillsDir      string
	defaultTimeout int
	sandbox        bool
}

func NewLoader(skillsDir string, defaultTimeout int, sandbox bool) *Loader {
	if defaultTimeout <= 0 {
		defaultTimeout = 60
	}
	return &Loader{
		skillsDir:      skillsDir,
		defaultTimeout: defaultTimeout,
		sandbox:        sandbox,
	}
}

type installed struct {
	key      string // directory name, matched against enabled_skills
	dir      string
	manifest *Manifest
	err      error
}

// scan reads every skill directory in name order. A missing skillsDir is empty.
func (l *Loader) scan() ([]installed, error) {
	if l.skillsDir == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(l.skillsDir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read skills dir: %w", err)
	}

	var found []installed
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dir := filepath.Join(l.skillsDir, entry.Name())
		m, err := parseManifest(filepath.Join(dir, manifestFile))
		found = append(found, installed{key: entry.Name(), dir: dir, manifest: m, err: err})
	}
	sort.Slice(found, func(i, j int) bool { return found[i].key < found[j].key })
	return found, nil
}

func enabledFilter(names []string) func(string) bool {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return func(key string) bool { return len(set) == 0 || set[key] }
}

// LoadAll returns a tool for each valid, enabled skill. An empty enabledSkills
// enables everything. Broken manifests are logged and skipped.
func (l *Loader) LoadAll(enabledSkills []string) ([]tool.Tool, error) {
	found, err := l.scan()
	if err != nil {
		return nil, err
	}
	enabled := enabledFilter(enabledSkills)

	var tools []tool.Tool
	for _, s := range found {
		if !enabled(s.key) {
			continue
		}
		if s.err != nil {
			log.Printf("[skill] skipping %s: %v", s.key, s.err)
			continue
		}
		tools = append(tools, NewSkillTool(*s.manifest, s.dir, l.defaultTimeout, l.sandbox))
	}
	return tools, nil
}

// Register loads the enabled skills into r and returns how many were added.
func (l *Loader) Register(r *tool.Registry, enabledSkills []string) (int, error) {
	tools, err := l.LoadAll(enabledSkills)
	if err != nil {
		return 0, err
	}
	for _, t := range tools {
		r.Register(t)
	}
	return len(tools), nil
}

// ListInstalled describes every skill directory, including ones that fail to load.
func (l *Loader) ListInstalled(enabledSkills []string) []SkillInfo {
	found, err := l.scan()
	if err != nil {
		log.Printf("[skill] %v", err)
		return nil
	}
	enabled := enabledFilter(enabledSkills)

	skills := make([]SkillInfo, 0, len(found))
	for _, s := range found {
		info := SkillInfo{Name: s.key, Dir: s.dir, Enabled: enabled(s.key)}
		if s.err != nil {
			info.Err = s.err.Error()
			info.Enabled = false
		} else {
			info.Name = s.manifest.Name
			info.Version = s.manifest.Version
			info.Description = s.manifest.Description
			info.Author = s.manifest.Author
		}
		skills = append(skills, info)
	}
	return skills
}
