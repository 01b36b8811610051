package agent

import (
	"context"
	"log"
	"time"

	"polyagent/internal/eventbus"
	"polyagent/internal/llm"
	"polyagent/internal/reply"
	"polyagent/internal/security"
	"polyagent/internal/tool"
)

// DefaultMaxRounds bounds the planning loop when no limit is configured.
const DefaultMaxRounds = 10

// ToolAgentConfig selects the loop's behaviour at construction time.
type ToolAgentConfig struct {
	// MaxRounds caps planning rounds; zero means DefaultMaxRounds.
	MaxRounds int
	// SingleShot returns the first tool result as the answer instead of re-planning.
	SingleShot bool
}

// ToolAgent runs the plan-act-replan loop: ask the model for a decision, run the first
// requested tool, feed its result back, and repeat until the model answers.
type ToolAgent struct {
	llm   Completer
	tools *tool.Registry
	bus   *eventbus.Bus
	cfg   ToolAgentConfig
}

// NewToolAgent creates a tool-use agent. The registry is read-only from here on and may
// be shared between agents.
func NewToolAgent(c Completer, tools *tool.Registry, bus *eventbus.Bus, cfg ToolAgentConfig) *ToolAgent {
	if cfg.MaxRounds <= 0 {
		cfg.MaxRounds = DefaultMaxRounds
	}
	return &ToolAgent{llm: c, tools: tools, bus: bus, cfg: cfg}
}

func (a *ToolAgent) Name() string { return "ToolAgent" }

// SystemPrompt returns the preamble sent with every round.
func (a *ToolAgent) SystemPrompt() string {
	return toolAgentPrompt(a.tools.Describe())
}

// Execute runs the loop and renders any failure as text.
func (a *ToolAgent) Execute(ctx context.Context, query string) string {
	defer LogElapsed(a.Name(), time.Now())

	answer, err := a.Run(ctx, query)
	if err != nil {
		log.Printf("[agent] %s failed: %v", a.Name(), err)
		a.bus.Publish(ctx, eventbus.TopicError, err)
		return ErrorAnswer(err)
	}
	return answer
}

// Run is Execute without the error rendering.
func (a *ToolAgent) Run(ctx context.Context, query string) (string, error) {
	system := a.SystemPrompt()
	conv := []llm.Message{{Role: llm.RoleUser, Content: query}}

	log.Printf("[agent] %s: calling LLM to identify which tool to use", a.Name())
	for round := 1; ; round++ {
		if round > a.cfg.MaxRounds {
			return "", &RoundLimitError{Max: a.cfg.MaxRounds}
		}
		if err := ctx.Err(); err != nil {
			return "", err
		}

		// PLANNING
		raw, err := a.llm.Complete(ctx, system, conv)
		if err != nil {
			return "", err
		}
		d, err := reply.Parse[Decision](raw)
		if err != nil {
			return "", err
		}
		if d.Thought != "" {
			log.Printf("[agent] round %d thought: %s", round, d.Thought)
		}
		a.bus.Publish(ctx, eventbus.TopicAgentThink, eventbus.AgentThink{
			Agent: a.Name(), Round: round, Thought: d.Thought, Plan: d.Plan,
		})

		switch {
		case d.Terminal():
			if d.DirectResponse == nil {
				return "", ErrMissingAnswer
			}
			return *d.DirectResponse, nil
		case !d.Action():
			return "", ErrIllFormedDecision
		}

		// ACTING: only the first call of a round is executed.
		if n := len(d.ToolCalls); n > 1 {
			log.Printf("[agent] round %d listed %d tool calls, running only %s", round, n, d.ToolCalls[0].Tool)
		}
		result, err := a.invoke(ctx, round, d.ToolCalls[0])
		if err != nil {
			return "", err
		}
		if a.cfg.SingleShot {
			return result, nil
		}

		if d.Thought != "" {
			conv = append(conv, llm.Message{Role: llm.RoleAssistant, Content: d.Thought})
		}
		conv = append(conv, llm.Message{Role: llm.RoleTool, Content: result})
	}
}

func (a *ToolAgent) invoke(ctx context.Context, round int, call ToolCall) (string, error) {
	log.Printf("[agent] invoking tool %s with args %v", call.Tool, call.Args)
	a.bus.Publish(ctx, eventbus.TopicToolCall, eventbus.ToolCall{
		Agent: a.Name(), Round: round, Tool: call.Tool, Args: call.Args,
	})

	// The model only ever sees placeholders; tools get the real values and their
	// output is masked again before it joins the conversation.
	pii := sanitizerFrom(ctx)
	args := call.Args
	if pii != nil {
		args = restoreArgs(pii, call.Args)
	}

	start := time.Now()
	result, err := a.tools.Invoke(ctx, call.Tool, args)
	if pii != nil {
		result = pii.Sanitize(result)
	}
	a.bus.Publish(ctx, eventbus.TopicToolResult, eventbus.ToolResult{
		Agent: a.Name(), Tool: call.Tool, Output: result, Err: err, Duration: time.Since(start),
	})
	if err != nil {
		return "", err
	}
	log.Printf("[agent] tool %s responded: %s", call.Tool, truncate(result, 200))
	return result, nil
}

// restoreArgs returns a copy of args with placeholders in string values, including
// strings nested in lists and objects, replaced by the original text.
func restoreArgs(pii *security.Sanitizer, args tool.Args) tool.Args {
	if len(args) == 0 {
		return args
	}
	out := make(tool.Args, len(args))
	for k, v := range args {
		out[k] = restoreValue(pii, v)
	}
	return out
}

func restoreValue(pii *security.Sanitizer, v any) any {
	switch t := v.(type) {
	case string:
		return pii.Restore(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = restoreValue(pii, e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = restoreValue(pii, e)
		}
		return out
	default:
		return v
	}
}
