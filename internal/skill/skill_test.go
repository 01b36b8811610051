package skill

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"polyagent/internal/tool"
)

func writeManifest(t *testing.T, dir string, m Manifest) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0755))
	data, err := json.Marshal(m)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "manifest.json"), data, 0644))
}

func TestManifestParsing(t *testing.T) {
	dir := t.TempDir()
	valid := `{
		"name": "test_skill",
		"version": "1.0.0",
		"description": "A test skill",
		"parameters": [{"name": "input", "type": "string", "description": "text to process"}],
		"command": "echo hello"
	}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "manifest.json"), []byte(valid), 0644))

	m, err := parseManifest(filepath.Join(dir, "manifest.json"))
	require.NoError(t, err)
	assert.Equal(t, "test_skill", m.Name)
	assert.Equal(t, "1.0.0", m.Version)
	assert.Equal(t, []tool.Parameter{{Name: "input", Type: "string", Description: "text to process"}}, m.Parameters)

	badDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(badDir, "manifest.json"), []byte("{invalid"), 0644))
	_, err = parseManifest(filepath.Join(badDir, "manifest.json"))
	assert.Error(t, err)

	emptyDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(emptyDir, "manifest.json"), []byte(`{"name":"","command":""}`), 0644))
	_, err = parseManifest(filepath.Join(emptyDir, "manifest.json"))
	assert.Error(t, err)
}

func TestManifestValidate(t *testing.T) {
	tests := []struct {
		name    string
		m       Manifest
		wantErr string
	}{
		{name: "ok", m: Manifest{Name: "lookup_ip", Command: "./run.sh", Parameters: []tool.Parameter{{Name: "ip", Type: "string"}}}},
		{name: "upper case", m: Manifest{Name: "LookupIP", Command: "x"}, wantErr: "lower snake case"},
		{name: "spaces", m: Manifest{Name: "lookup ip", Command: "x"}, wantErr: "lower snake case"},
		{name: "bad type", m: Manifest{Name: "a", Command: "x", Parameters: []tool.Parameter{{Name: "n", Type: "date"}}}, wantErr: "unsupported type"},
		{name: "duplicate param", m: Manifest{Name: "a", Command: "x", Parameters: []tool.Parameter{{Name: "n"}, {Name: "n"}}}, wantErr: "duplicate parameter"},
		{name: "negative timeout", m: Manifest{Name: "a", Command: "x", TimeoutSecs: -1}, wantErr: "timeout_secs"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.m.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestSkillToolPassesArgsOnStdin(t *testing.T) {
	st := NewSkillTool(Manifest{
		Name:        "echo_test",
		Version:     "1.0.0",
		Description: "Echoes input back",
		Command:     "cat",
		Parameters:  []tool.Parameter{{Name: "message", Type: "string", Description: "text"}},
	}, t.TempDir(), 10, true)

	assert.Equal(t, "skill_echo_test", st.Name())
	assert.Contains(t, st.Description(), "Echoes input back")

	out, err := st.Execute(context.Background(), tool.Args{"message": "hello world"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"message":"hello world"}`, out)
}

func TestSkillToolFailure(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "fail.sh"), []byte("#!/bin/sh\necho 'bad input' >&2\nexit 3\n"), 0755))
	st := NewSkillTool(Manifest{Name: "fails", Command: "sh fail.sh"}, dir, 10, true)

	_, err := st.Execute(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad input")
}

func TestSkillToolTimeout(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "slow.sh"), []byte("#!/bin/sh\nsleep 60\n"), 0755))

	st := NewSkillTool(Manifest{
		Name:        "slow_skill",
		Version:     "1.0.0",
		Command:     "sh slow.sh",
		TimeoutSecs: 1,
	}, dir, 1, false)

	start := time.Now()
	_, err := st.Execute(context.Background(), tool.Args{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out")
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestValidateSkillCommand(t *testing.T) {
	dir := "/skills/demo"
	tests := []struct {
		cmd     string
		wantErr bool
	}{
		{"python3 main.py", false},
		{"./run.sh --fast", false},
		{"bin/tool", false},
		{"/bin/sh -c 'rm -rf /'", true},
		{"../other/run.sh", true},
		{"cat ../../etc/passwd", true},
		{"cat /etc/passwd", true},
		{"", true},
	}
	for _, tt := range tests {
		err := validateSkillCommand(tt.cmd, dir)
		if tt.wantErr {
			assert.Error(t, err, tt.cmd)
		} else {
			assert.NoError(t, err, tt.cmd)
		}
	}
}

func TestSplitCommand(t *testing.T) {
	assert.Equal(t, []string{"sh", "-c", "echo 'hi there'"}, splitCommand(`sh -c "echo 'hi there'"`))
	assert.Equal(t, []string{"a", "b"}, splitCommand("  a   b "))
}

func TestLoaderRegister(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"skill_a", "skill_b"} {
		writeManifest(t, filepath.Join(dir, name), Manifest{Name: name, Version: "1.0.0", Command: "echo ok"})
	}
	writeManifest(t, filepath.Join(dir, "broken"), Manifest{Name: "broken"})

	loader := NewLoader(dir, 30, false)

	tools, err := loader.LoadAll(nil)
	require.NoError(t, err)
	assert.Len(t, tools, 2)

	r := tool.NewRegistry()
	n, err := loader.Register(r, []string{"skill_a"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"skill_skill_a"}, r.Names())

	out, err := r.Invoke(context.Background(), "skill_skill_a", nil)
	require.NoError(t, err)
	assert.Equal(t, "ok\n", out)
}

func TestLoaderMissingDir(t *testing.T) {
	tools, err := NewLoader(filepath.Join(t.TempDir(), "nope"), 30, true).LoadAll(nil)
	require.NoError(t, err)
	assert.Empty(t, tools)
}

func TestLoaderListInstalled(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, filepath.Join(dir, "test_skill"), Manifest{
		Name:        "test_skill",
		Version:     "2.0.0",
		Description: "Test",
		Author:      "tester",
		Command:     "echo hi",
	})

	writeManifest(t, filepath.Join(dir, "zz_broken"), Manifest{Name: "Broken Skill", Command: "x"})

	skills := NewLoader(dir, 30, false).ListInstalled([]string{"other"})
	require.Len(t, skills, 2)
	assert.Equal(t, "test_skill", skills[0].Name)
	assert.Equal(t, "2.0.0", skills[0].Version)
	assert.False(t, skills[0].Enabled)
	assert.Empty(t, skills[0].Err)

	assert.Equal(t, "zz_broken", skills[1].Name)
	assert.Contains(t, skills[1].Err, "lower snake case")

	skills = NewLoader(dir, 30, false).ListInstalled(nil)
	assert.True(t, skills[0].Enabled)
	assert.False(t, skills[1].Enabled)
}

func TestSkillToolEnvironment(t *testing.T) {
	t.Setenv("POLYAGENT_API_KEY", "sk-secret")
	dir := t.TempDir()
	st := NewSkillTool(Manifest{Name: "env_dump", Command: "env"}, dir, 10, true)

	out, err := st.Execute(context.Background(), nil)
	require.NoError(t, err)
	assert.Contains(t, out, "POLYAGENT_SKILL=env_dump")
	assert.Contains(t, out, "POLYAGENT_SKILL_DIR="+dir)
	assert.NotContains(t, out, "sk-secret")
}

func TestCappedBuffer(t *testing.T) {
	b := &cappedBuffer{limit: 4}
	n, err := b.Write([]byte("abcdef"))
	require.NoError(t, err)
	assert.Equal(t, 6, n)
	_, _ = b.Write([]byte("gh"))
	assert.Equal(t, "abcd\n... (output truncated)", b.String())

	small := &cappedBuffer{limit: 10}
	_, _ = small.Write([]byte("ok"))
	assert.Equal(t, "ok", small.String())
}
