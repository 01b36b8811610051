package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"polyagent/internal/llm"
	"polyagent/internal/tool"
)

// scriptedLLM returns its replies in order and records every conversation it was sent.
type scriptedLLM struct {
	mu      sync.Mutex
	replies []string
	errs    map[int]error
	calls   [][]llm.Message
	systems []string
}

func script(replies ...string) *scriptedLLM {
	return &scriptedLLM{replies: replies}
}

func (s *scriptedLLM) Complete(ctx context.Context, system string, conv []llm.Message) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := len(s.calls)
	s.calls = append(s.calls, append([]llm.Message(nil), conv...))
	s.systems = append(s.systems, system)
	if err := s.errs[i]; err != nil {
		return "", err
	}
	if i >= len(s.replies) {
		// Repeat the last reply so "always" scripts need only one entry.
		return s.replies[len(s.replies)-1], nil
	}
	return s.replies[i], nil
}

func (s *scriptedLLM) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

// recordingTool counts invocations and returns a fixed output.
type recordingTool struct {
	name  string
	out   string
	err   error
	calls []tool.Args
}

func (r *recordingTool) Name() string                { return r.name }
func (r *recordingTool) Description() string         { return "records calls to " + r.name }
func (r *recordingTool) Parameters() []tool.Parameter { return nil }
func (r *recordingTool) Execute(ctx context.Context, args tool.Args) (string, error) {
	r.calls = append(r.calls, args)
	if r.err != nil {
		return "", r.err
	}
	return r.out, nil
}

func registryWith(tools ...tool.Tool) *tool.Registry {
	r := tool.NewRegistry()
	for _, t := range tools {
		r.Register(t)
	}
	return r
}

func action(tools ...string) string {
	calls := ""
	for i, name := range tools {
		if i > 0 {
			calls += ","
		}
		calls += fmt.Sprintf(`{"tool": %q, "args": {"n": %d}}`, name, i)
	}
	return `{"requires_tools": true, "thought": "need a tool", "tool_calls": [` + calls + `]}`
}

var errBoom = errors.New("boom")
