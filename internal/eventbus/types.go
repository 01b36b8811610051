package eventbus

import (
	"context"
	"time"
)

// Topic represents an event topic.
type Topic string

const (
	TopicAgentSelected Topic = "agent_selected"
	TopicAgentThink    Topic = "agent_think"
	TopicToolCall      Topic = "tool_call"
	TopicToolResult    Topic = "tool_result"
	TopicLLMRequest    Topic = "llm_request"
	TopicLLMResponse   Topic = "llm_response"
	TopicClarification Topic = "clarification"
	TopicRunFinished   Topic = "run_finished"
	TopicError         Topic = "error"
)

// Event is a message passed through the event bus.
type Event struct {
	Topic     Topic
	RunID     string
	Payload   any
	Timestamp time.Time
}

// Handler processes an event.
type Handler func(Event)

// AgentSelected is published by the planner once it has routed a query.
type AgentSelected struct {
	Agent   string
	Thought string
}

// AgentThink carries the diagnostic part of one planning round.
type AgentThink struct {
	Agent   string
	Round   int
	Thought string
	Plan    []string
}

// ToolCall is published before a tool is invoked.
type ToolCall struct {
	Agent string
	Round int
	Tool  string
	Args  map[string]any
}

// ToolResult is published after a tool returns.
type ToolResult struct {
	Agent    string
	Tool     string
	Output   string
	Err      error
	Duration time.Duration
}

// LLMRequest is published before each gateway call.
type LLMRequest struct {
	Provider string
	Messages int
}

// LLMResponse is published after each gateway call, successful or not.
type LLMResponse struct {
	Provider     string
	InputTokens  int
	OutputTokens int
	Duration     time.Duration
	Err          error
}

// Clarification is published when an agent asks the user a question.
type Clarification struct {
	Agent    string
	Question string
	Answer   string
}

// RunFinished closes a run started by a channel or the CLI.
type RunFinished struct {
	Channel  string
	ChatID   string
	Agent    string
	Query    string
	Answer   string
	Failed   bool
	Duration time.Duration
}

type runIDKey struct{}

// WithRunID attaches a run identifier to ctx so published events can be correlated.
func WithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runIDKey{}, id)
}

// RunIDFrom returns the run identifier stored in ctx, or "".
func RunIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(runIDKey{}).(string)
	return id
}
