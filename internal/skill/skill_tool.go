package skill

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"polyagent/internal/security"
	"polyagent/internal/tool"
)

const (
	maxOutputBytes      = 10000
	defaultSkillTimeout = 60 * time.Second
)

// SkillTool runs a skill's command as a tool. The call arguments arrive on stdin
// as one JSON object; stdout is the result and stderr explains a failure.
type SkillTool struct {
	manifest Manifest
	dir      string
	timeout  time.Duration
	sandbox  bool
}

// NewSkillTool uses the manifest timeout, then defaultTimeout, then one minute.
func NewSkillTool(manifest Manifest, dir string, defaultTimeout int, sandbox bool) *SkillTool {
	st := &SkillTool{manifest: manifest, dir: dir, sandbox: sandbox, timeout: defaultSkillTimeout}
	for _, secs := range []int{manifest.TimeoutSecs, defaultTimeout} {
		if secs > 0 {
			st.timeout = time.Duration(secs) * time.Second
			break
		}
	}
	return st
}

func (s *SkillTool) Name() string { return "skill_" + s.manifest.Name }

func (s *SkillTool) Description() string {
	return fmt.Sprintf("[Skill] %s (v%s): %s", s.manifest.Name, s.manifest.Version, s.manifest.Description)
}

func (s *SkillTool) Parameters() []tool.Parameter { return s.manifest.Parameters }

func (s *SkillTool) Execute(ctx context.Context, args tool.Args) (string, error) {
	argv := splitCommand(s.manifest.Command)
	if len(argv) == 0 {
		return "", errors.New("skill command is empty")
	}
	if s.sandbox {
		if err := validateSkillCommand(s.manifest.Command, s.dir); err != nil {
			return "", fmt.Errorf("sandbox violation: %w", err)
		}
	}

	if args == nil {
		args = tool.Args{}
	}
	stdin, err := json.Marshal(args)
	if err != nil {
		return "", fmt.Errorf("encode arguments: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	stdout := &cappedBuffer{limit: maxOutputBytes}
	stderr := &cappedBuffer{limit: maxOutputBytes}
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = s.dir
	cmd.Env = s.environ()
	cmd.Stdin = bytes.NewReader(stdin)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	// Grandchildren holding the pipes open must not outlive the timeout by much.
	cmd.WaitDelay = 2 * time.Second

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("skill %s timed out after %s", s.manifest.Name, s.timeout)
		}
		reason := strings.TrimSpace(stderr.String())
		if reason == "" {
			reason = err.Error()
		}
		return "", fmt.Errorf("skill %s failed: %s", s.manifest.Name, reason)
	}
	return stdout.String(), nil
}

// environ passes the lookup path and locale through, plus the skill's own
// location. Secrets in the parent environment stay behind.
func (s *SkillTool) environ() []string {
	env := []string{
		"POLYAGENT_SKILL=" + s.manifest.Name,
		"POLYAGENT_SKILL_DIR=" + s.dir,
	}
	for _, key := range []string{"PATH", "HOME", "LANG", "TMPDIR"} {
		if v, ok := os.LookupEnv(key); ok {
			env = append(env, key+"="+v)
		}
	}
	return env
}

// cappedBuffer keeps the first limit bytes written and drops the rest.
type cappedBuffer struct {
	buf       bytes.Buffer
	limit     int
	truncated bool
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	room := b.limit - b.buf.Len()
	if room < len(p) {
		b.truncated = true
		if room > 0 {
			b.buf.Write(p[:room])
		}
		return len(p), nil
	}
	return b.buf.Write(p)
}

func (b *cappedBuffer) String() string {
	if b.truncated {
		return b.buf.String() + "\n... (output truncated)"
	}
	return b.buf.String()
}

// validateSkillCommand allows a program found on PATH or a relative path inside
// dir. Arguments that look like paths must stay inside dir too.
func validateSkillCommand(command, dir string) error {
	argv := splitCommand(command)
	if len(argv) == 0 {
		return errors.New("empty command")
	}

	program := argv[0]
	switch {
	case filepath.IsAbs(program):
		return fmt.Errorf("absolute paths not allowed in skill command: %s", program)
	case strings.ContainsRune(program, filepath.Separator) || strings.Contains(program, ".."):
		if !security.IsPathSafe(filepath.Join(dir, program), dir) {
			return fmt.Errorf("path traversal not allowed in skill command: %s", program)
		}
	}

	for _, arg := range argv[1:] {
		if !filepath.IsAbs(arg) && !strings.HasPrefix(arg, "..") {
			continue
		}
		target := arg
		if !filepath.IsAbs(target) {
			target = filepath.Join(dir, target)
		}
		if !security.IsPathSafe(target, dir) {
			return fmt.Errorf("argument escapes skill directory: %s", arg)
		}
	}
	return nil
}

// splitCommand splits on spaces outside single or double quotes.
func splitCommand(command string) []string {
	var (
		argv  []string
		word  strings.Builder
		quote rune
		open  bool
	)
	flush := func() {
		if open {
			argv = append(argv, word.String())
			word.Reset()
			open = false
		}
	}
	for _, r := range command {
		switch {
		case quote != 0 && r == quote:
			quote = 0
		case quote == 0 && (r == '"' || r == '\''):
			quote, open = r, true
		case quote == 0 && (r == ' ' || r == '\t'):
			flush()
		default:
			word.WriteRune(r)
			open = true
		}
	}
	flush()
	return argv
}
