package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"polyagent/internal/eventbus"
	"polyagent/internal/llm"
	"polyagent/internal/reply"
	"polyagent/internal/tool"
)

func TestToolAgentDirectAnswerInOneRound(t *testing.T) {
	model := script(`{"requires_tools": false, "direct_response": "Japan uses the yen."}`)
	a := NewToolAgent(model, registryWith(), nil, ToolAgentConfig{})

	assert.Equal(t, "Japan uses the yen.", a.Execute(context.Background(), "What currency does Japan use?"))
	assert.Equal(t, 1, model.callCount())
}

func TestToolAgentDirectResponseWinsOverRequiresTools(t *testing.T) {
	model := script(`{"requires_tools": true, "direct_response": "done", "tool_calls": [{"tool": "x", "args": {}}]}`)
	x := &recordingTool{name: "x", out: "unused"}
	a := NewToolAgent(model, registryWith(x), nil, ToolAgentConfig{})

	assert.Equal(t, "done", a.Execute(context.Background(), "q"))
	assert.Empty(t, x.calls)
}

func TestToolAgentChainedModeReplansOnce(t *testing.T) {
	model := script(action("lookup"), `{"requires_tools": false, "direct_response": "final"}`)
	lookup := &recordingTool{name: "lookup", out: "42"}
	a := NewToolAgent(model, registryWith(lookup), nil, ToolAgentConfig{})

	assert.Equal(t, "final", a.Execute(context.Background(), "q"))
	assert.Equal(t, 2, model.callCount())
	require.Len(t, lookup.calls, 1)

	second := model.calls[1]
	require.Len(t, second, 3)
	assert.Equal(t, llm.Message{Role: llm.RoleUser, Content: "q"}, second[0])
	assert.Equal(t, llm.Message{Role: llm.RoleAssistant, Content: "need a tool"}, second[1])
	assert.Equal(t, llm.Message{Role: llm.RoleTool, Content: "42"}, second[2])
}

func TestToolAgentOnlyFirstToolCallRuns(t *testing.T) {
	model := script(action("first", "second", "third"), `{"requires_tools": false, "direct_response": "ok"}`)
	first := &recordingTool{name: "first", out: "1"}
	second := &recordingTool{name: "second", out: "2"}
	third := &recordingTool{name: "third", out: "3"}
	a := NewToolAgent(model, registryWith(first, second, third), nil, ToolAgentConfig{})

	assert.Equal(t, "ok", a.Execute(context.Background(), "q"))
	assert.Len(t, first.calls, 1)
	assert.Empty(t, second.calls)
	assert.Empty(t, third.calls)
}

func TestToolAgentSingleShotReturnsRawToolResult(t *testing.T) {
	model := script(action("lookup", "other"), `{"direct_response": "never"}`)
	lookup := &recordingTool{name: "lookup", out: "raw result"}
	other := &recordingTool{name: "other", out: "x"}
	a := NewToolAgent(model, registryWith(lookup, other), nil, ToolAgentConfig{SingleShot: true})

	assert.Equal(t, "raw result", a.Execute(context.Background(), "q"))
	assert.Equal(t, 1, model.callCount())
	assert.Empty(t, other.calls)
}

func TestToolAgentUnknownTool(t *testing.T) {
	model := script(action("teleport"))
	a := NewToolAgent(model, registryWith(&recordingTool{name: "lookup"}), nil, ToolAgentConfig{})

	_, err := a.Run(context.Background(), "q")
	var ute *tool.UnknownToolError
	require.ErrorAs(t, err, &ute)
	assert.Equal(t, []string{"lookup"}, ute.Registered)

	out := a.Execute(context.Background(), "q")
	assert.Contains(t, out, "Error executing plan:")
	assert.Contains(t, out, "lookup")
}

func TestToolAgentMalformedReply(t *testing.T) {
	model := script("not json")
	a := NewToolAgent(model, registryWith(), nil, ToolAgentConfig{})

	_, err := a.Run(context.Background(), "q")
	var mr *reply.MalformedReplyError
	require.ErrorAs(t, err, &mr)
	assert.Equal(t, "not json", mr.Raw)

	assert.Contains(t, a.Execute(context.Background(), "q"), "Error executing plan:")
}

func TestToolAgentRoundLimit(t *testing.T) {
	model := script(action("tick"))
	tick := &recordingTool{name: "tick", out: "tock"}
	a := NewToolAgent(model, registryWith(tick), nil, ToolAgentConfig{MaxRounds: 3})

	_, err := a.Run(context.Background(), "q")
	var rl *RoundLimitError
	require.ErrorAs(t, err, &rl)
	assert.Equal(t, 3, rl.Max)
	assert.Equal(t, 3, model.callCount())
	assert.Len(t, tick.calls, 3)

	assert.Contains(t, a.Execute(context.Background(), "q"), "Error executing plan:")
}

func TestToolAgentToolErrorAbortsLoop(t *testing.T) {
	model := script(action("fails"), `{"direct_response": "unreachable"}`)
	fails := &recordingTool{name: "fails", err: errBoom}
	a := NewToolAgent(model, registryWith(fails), nil, ToolAgentConfig{})

	_, err := a.Run(context.Background(), "q")
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, 1, model.callCount())
}

func TestToolAgentTransportError(t *testing.T) {
	model := script(`{}`)
	model.errs = map[int]error{0: &llm.TransportError{Provider: "ollama", Err: errBoom}}
	a := NewToolAgent(model, registryWith(), nil, ToolAgentConfig{})

	out := a.Execute(context.Background(), "q")
	assert.Equal(t, "Error executing plan: transport error (ollama): boom", out)
}

func TestToolAgentDecisionShapes(t *testing.T) {
	tests := []struct {
		name    string
		reply   string
		wantErr error
	}{
		{name: "terminal without answer", reply: `{"requires_tools": false}`, wantErr: ErrMissingAnswer},
		{name: "requires tools without calls", reply: `{"requires_tools": true}`, wantErr: ErrIllFormedDecision},
		{name: "empty object", reply: `{}`, wantErr: ErrIllFormedDecision},
		{name: "empty tool calls", reply: `{"requires_tools": true, "tool_calls": []}`, wantErr: ErrIllFormedDecision},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewToolAgent(script(tt.reply), registryWith(), nil, ToolAgentConfig{})
			_, err := a.Run(context.Background(), "q")
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestToolAgentCurrencyConversionEndToEnd(t *testing.T) {
	model := script(
		`{"requires_tools": true, "tool_calls": [{"tool": "convert_currency", "args": {"amount": 100, "from_currency": "USD", "to_currency": "EUR"}}]}`,
		`{"requires_tools": false, "direct_response": "100 USD is approximately 92.00 EUR"}`,
	)
	convert := &recordingTool{name: "convert_currency", out: "92.00 EUR"}
	bus := eventbus.New()
	var topics []eventbus.Topic
	bus.SubscribeAll(func(e eventbus.Event) { topics = append(topics, e.Topic) },
		eventbus.TopicAgentThink, eventbus.TopicToolCall, eventbus.TopicToolResult)
	a := NewToolAgent(model, registryWith(convert), bus, ToolAgentConfig{})

	out := a.Execute(context.Background(), "Convert 100 USD to EUR")

	assert.Equal(t, "100 USD is approximately 92.00 EUR", out)
	require.Len(t, convert.calls, 1)
	assert.Equal(t, tool.Args{"amount": float64(100), "from_currency": "USD", "to_currency": "EUR"}, convert.calls[0])
	// No thought in round one, so only the tool result is appended.
	assert.Equal(t, []llm.Message{
		{Role: llm.RoleUser, Content: "Convert 100 USD to EUR"},
		{Role: llm.RoleTool, Content: "92.00 EUR"},
	}, model.calls[1])
	assert.Equal(t, []eventbus.Topic{
		eventbus.TopicAgentThink, eventbus.TopicToolCall, eventbus.TopicToolResult, eventbus.TopicAgentThink,
	}, topics)
}

func TestToolAgentSystemPromptIsStable(t *testing.T) {
	build := func() *ToolAgent {
		return NewToolAgent(script(`{}`), registryWith(
			&recordingTool{name: "b"}, tool.NewLocationTool(""), &recordingTool{name: "a"},
		), nil, ToolAgentConfig{})
	}
	p1, p2 := build().SystemPrompt(), build().SystemPrompt()
	assert.Equal(t, p1, p2)
	assert.Contains(t, p1, `"name": "get_current_location"`)

	model := script(`{"direct_response": "x"}`, `{"direct_response": "y"}`)
	a := NewToolAgent(model, build().tools, nil, ToolAgentConfig{})
	a.Execute(context.Background(), "one")
	a.Execute(context.Background(), "two")
	assert.Equal(t, model.systems[0], model.systems[1])
}

func TestToolAgentHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	model := script(`{"direct_response": "x"}`)
	a := NewToolAgent(model, registryWith(), nil, ToolAgentConfig{})

	_, err := a.Run(ctx, "q")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, model.callCount())
}
