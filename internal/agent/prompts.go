package agent

import (
	"encoding/json"
	"strings"

	"polyagent/internal/tool"
)

// PromptSpec is the JSON document embedded in a system preamble. Maps are marshalled
// with sorted keys, so identical input yields byte-identical prompts.
type PromptSpec struct {
	Role              string            `json:"role"`
	Capabilities      []string          `json:"capabilities"`
	Instructions      []string          `json:"instructions"`
	Tools             []tool.Descriptor `json:"tools,omitempty"`
	Agents            []AgentInfo       `json:"agents,omitempty"`
	Structure         any               `json:"blog_structure,omitempty"`
	WritingGuidelines map[string]any    `json:"writing_guidelines,omitempty"`
	QualityChecklist  []string          `json:"quality_checklist,omitempty"`
	ResponseFormat    ResponseFormat    `json:"response_format"`
}

// AgentInfo describes a routable agent to the planner.
type AgentInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ResponseFormat documents the JSON object the model must answer with.
type ResponseFormat struct {
	Type     string           `json:"type"`
	Schema   map[string]Field `json:"schema"`
	Examples []any            `json:"examples,omitempty"`
}

// Field documents one reply field.
type Field struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	Items       any    `json:"items,omitempty"`
	Optional    bool   `json:"optional,omitempty"`
}

// Example pairs a user query with the expected reply.
type Example struct {
	User      string `json:"user"`
	Assistant string `json:"assistant,omitempty"`
	Tool      string `json:"tool,omitempty"`
	Response  any    `json:"response"`
}

// RenderPrompt places the indented spec between intro and outro.
func RenderPrompt(intro string, spec PromptSpec, outro string) string {
	doc, err := json.MarshalIndent(spec, "", "  ")
	if err != nil {
		// Only plain data goes into a PromptSpec.
		panic("agent: marshal prompt spec: " + err.Error())
	}
	var sb strings.Builder
	sb.WriteString(intro)
	sb.WriteString("\nConfiguration, instructions, and available tools are provided in JSON format below:\n\n")
	sb.Write(doc)
	sb.WriteString("\n\nAlways respond with a JSON object following the response_format schema above.")
	if outro != "" {
		sb.WriteString("\n")
		sb.WriteString(outro)
	}
	return sb.String()
}

// Shared optional fields of every reply schema.
var (
	ThoughtField = Field{Type: "string", Description: "reasoning about how to solve the task if any", Optional: true}
	PlanField    = Field{Type: "array", Items: map[string]string{"type": "string"}, Description: "steps to solve the task if any", Optional: true}
)

func toolAgentPrompt(tools []tool.Descriptor) string {
	spec := PromptSpec{
		Role: "AI Assistant",
		Capabilities: []string{
			"If provided tool response, uses it to respond directly to the original user question.",
			"Using provided tools to help users when necessary",
			"Responding directly without tools for questions that don't require tool usage",
			"Planning efficient tool usage sequences",
		},
		Instructions: []string{
			"When you receive a tool response, use it to format an answer to the original user question, without using tools.",
			"Use tools only when they are necessary for the task",
			"If a query can be answered directly, respond with a simple message instead of using tools",
			"When tools are needed, plan their usage efficiently to minimize tool calls",
		},
		Tools: tools,
		ResponseFormat: ResponseFormat{
			Type: "json",
			Schema: map[string]Field{
				"requires_tools":  {Type: "boolean", Description: "whether tools are needed for this query"},
				"thought":         {Type: "string", Description: "reasoning about how to solve the task (when tools are needed)", Optional: true},
				"plan":            {Type: "array", Items: map[string]string{"type": "string"}, Description: "steps to solve the task (when tools are needed)", Optional: true},
				"direct_response": {Type: "string", Description: "final response if no tools are needed", Optional: true},
				"tool_calls": {
					Type: "array",
					Items: map[string]any{
						"type": "object",
						"properties": map[string]any{
							"tool": map[string]string{"type": "string", "description": "name of the tool"},
							"args": map[string]string{"type": "object", "description": "parameters for the tool"},
						},
					},
					Description: "tools to call in sequence (when tools are needed)",
					Optional:    true,
				},
			},
			Examples: []any{
				Example{
					User: "Convert 100 USD to EUR",
					Response: map[string]any{
						"requires_tools": true,
						"thought":        "I need to use the currency conversion tool to convert USD to EUR",
						"plan":           []string{"Use convert_currency tool to convert 100 USD to EUR", "Return the conversion result"},
						"tool_calls": []map[string]any{{
							"tool": "convert_currency",
							"args": map[string]any{"amount": 100, "from_currency": "USD", "to_currency": "EUR"},
						}},
					},
				},
				Example{
					User:      "What's the current weather of New Delhi?",
					Assistant: "I have determined that the city of New Delhi is located in IN. Now I need the current_weather tool for New Delhi, IN.",
					Tool:      `{"City":"New Delhi","Temperature (°C)":18.2,"Weather":"haze","Humidity (%)":63,"Wind Speed (m/s)":2.1}`,
					Response: map[string]any{
						"requires_tools":  false,
						"direct_response": "The current weather in New Delhi is haze with a temperature of 18.2°C, humidity at 63%, and wind speed at 2.1 m/s.",
					},
				},
				Example{
					User: "What currency does Japan use?",
					Response: map[string]any{
						"requires_tools":  false,
						"direct_response": "Japan uses the Japanese Yen (JPY) as its official currency.",
					},
				},
			},
		},
	}
	return RenderPrompt(
		"You are an AI assistant that helps users by providing direct response or using tools when necessary.\n"+
			"When you receive a tool call response, use the output to format an answer to the original user question and return it as a direct response.",
		spec,
		"Remember to use tools only when they are absolutely needed to get more information about the user question.",
	)
}

func genericAgentPrompt() string {
	spec := PromptSpec{
		Role:         "AI Assistant",
		Capabilities: []string{"Responding directly to the question asked by the user"},
		Instructions: []string{"If a query can be answered directly, respond with a detailed message"},
		ResponseFormat: ResponseFormat{
			Type: "json",
			Schema: map[string]Field{
				"direct_response": {Type: "string", Description: "response for the question asked", Optional: true},
				"thought":         ThoughtField,
				"plan":            PlanField,
			},
			Examples: []any{
				Example{
					User: "What currency does Japan use?",
					Response: map[string]any{
						"direct_response": "Japan uses the Japanese Yen (JPY) as its official currency.",
						"thought":         "I need to answer directly and no further action is needed",
					},
				},
			},
		},
	}
	return RenderPrompt("You are an AI assistant that helps users by providing direct answers.", spec, "")
}

func interactiveAgentPrompt() string {
	spec := PromptSpec{
		Role: "Interactive AI Assistant",
		Capabilities: []string{
			"Responding directly to the question asked by the user",
			"Asking for clarification only when the query is ambiguous or incomplete",
		},
		Instructions: []string{
			"If a query can be answered directly, respond with a detailed message without requesting clarification.",
			"If the query is unclear or more information is required, set 'clarification_needed' to true and provide a 'clarification_question'.",
		},
		ResponseFormat: ResponseFormat{
			Type: "json",
			Schema: map[string]Field{
				"direct_response":        {Type: "string", Description: "response for the question asked", Optional: true},
				"clarification_needed":   {Type: "boolean", Description: "whether additional information is needed from the user", Optional: true},
				"clarification_question": {Type: "string", Description: "specific question to ask the user for more details", Optional: true},
				"thought":                ThoughtField,
				"plan":                   PlanField,
			},
			Examples: []any{
				Example{
					User: "What is the capital?",
					Response: map[string]any{
						"clarification_needed":   true,
						"clarification_question": "Could you specify which country you are referring to?",
						"thought":                "The query is incomplete and lacks context about the country.",
					},
				},
				Example{
					User: "What is the capital of France?",
					Response: map[string]any{
						"clarification_needed": false,
						"direct_response":      "The capital of France is Paris.",
					},
				},
			},
		},
	}
	return RenderPrompt("You are an AI assistant that helps users by providing direct answers or asking for clarification ONLY when needed.", spec, "")
}

func plannerAgentPrompt(agents []AgentInfo) string {
	spec := PromptSpec{
		Role: "Planner Agent",
		Capabilities: []string{
			"Analyze user queries and determine the appropriate agent or sequence of agents to fulfill the query.",
			"Delegate tasks to specialized agents.",
			"Plan and coordinate multi-step processes when needed, ensuring agents are called in the correct sequence.",
		},
		Instructions: []string{
			"Interpret the user's query and decide whether to delegate it to a specific agent or handle it using a sequence of agents.",
			"For blog-related queries, invoke the blog agent (BlogAgent) with the sequence BlogPlannerAgent, BlogMainBodySectionAgent, BlogIntroConclusionAgent.",
			"For queries requiring tools, forward the query to the tools agent (ToolAgent).",
			"For general or conversational queries, forward the query to the generic agent (GenericAgent).",
			"For questions if enough information is not provided and a clarification is needed, forward the query to the interactive agent (InteractiveAgent).",
			"Always provide a JSON response that specifies the selected agent(s) and any required arguments.",
		},
		Agents: agents,
		ResponseFormat: ResponseFormat{
			Type: "json",
			Schema: map[string]Field{
				"requires_agents": {Type: "boolean", Description: "Whether agents are needed to fulfill the query."},
				"selected_agents": {
					Type: "array",
					Items: map[string]any{
						"type": "object",
						"properties": map[string]any{
							"agent":          map[string]string{"type": "string", "description": "Name of the agent to invoke."},
							"sequence":       map[string]any{"type": "boolean", "description": "Indicates if the agent is part of a sequence.", "optional": true},
							"sequence_order": map[string]any{"type": "array", "description": "Ordered sub agents as {\"stage\": name}.", "optional": true},
							"arguments":      map[string]any{"type": "object", "description": "Arguments or parameters required by the agent.", "optional": true},
						},
					},
					Description: "List of agents to call, optionally with sequences and arguments.",
				},
				"thought": {Type: "string", Description: "Reasoning about the selection of agents.", Optional: true},
			},
			Examples: []any{
				Example{
					User: "Write a blog on the benefits of AI.",
					Response: map[string]any{
						"requires_agents": true,
						"thought":         "This query requires a blog to be written, so the blog agents will be invoked in sequence.",
						"selected_agents": []map[string]any{{
							"agent":    "BlogAgent",
							"sequence": true,
							"sequence_order": []map[string]string{
								{"stage": "BlogPlannerAgent"},
								{"stage": "BlogMainBodySectionAgent"},
								{"stage": "BlogIntroConclusionAgent"},
							},
						}},
					},
				},
				Example{
					User: "What is 100 USD in EUR?",
					Response: map[string]any{
						"requires_agents": true,
						"thought":         "This query requires currency conversion, so the tools agent will be invoked.",
						"selected_agents": []map[string]any{{"agent": "ToolAgent", "arguments": map[string]any{"task": "convert_currency"}}},
					},
				},
				Example{
					User: "What is AI?",
					Response: map[string]any{
						"requires_agents": true,
						"selected_agents": []map[string]any{{"agent": "GenericAgent"}},
					},
				},
				Example{
					User: "What is the capital?",
					Response: map[string]any{
						"requires_agents": true,
						"thought":         "This query requires further clarification from the user so will be delegated to InteractiveAgent.",
						"selected_agents": []map[string]any{{"agent": "InteractiveAgent"}},
					},
				},
			},
		},
	}
	return RenderPrompt(
		"You are a planner agent responsible for analyzing user queries and delegating tasks to the appropriate agents.\n"+
			"Your goal is to ensure the user's query is fulfilled efficiently by selecting the correct agent or sequence of agents.",
		spec, "")
}
