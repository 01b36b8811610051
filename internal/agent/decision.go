package agent

import "polyagent/internal/tool"

// ToolCall is one requested tool invocation.
type ToolCall struct {
	Tool string    `json:"tool"`
	Args tool.Args `json:"args"`
}

// Decision is the structured reply of one planning round.
type Decision struct {
	RequiresTools  *bool      `json:"requires_tools"`
	DirectResponse *string    `json:"direct_response"`
	ToolCalls      []ToolCall `json:"tool_calls"`
	Thought        string     `json:"thought,omitempty"`
	Plan           []string   `json:"plan,omitempty"`
}

// Terminal reports whether d ends the loop. A present direct_response is terminal
// regardless of requires_tools; an absent requires_tools counts as true.
func (d Decision) Terminal() bool {
	return d.DirectResponse != nil || (d.RequiresTools != nil && !*d.RequiresTools)
}

// Action reports whether d asks for at least one tool call.
func (d Decision) Action() bool {
	return len(d.ToolCalls) > 0
}
