package blog

import "polyagent/internal/agent"

var (
	headingField = agent.Field{Type: "string", Description: "The section heading formatted using ##"}
	bodyField    = agent.Field{Type: "string", Description: "Detailed content of the section, formatted according to guidelines"}
)

func writingGuidelines(format ...string) map[string]any {
	return map[string]any{
		"style_requirements": []string{
			"Use technical and precise language.",
			"Employ active voice.",
			"Avoid all marketing or promotional language.",
		},
		"format":    format,
		"grounding": []string{"Do not make assumption."},
	}
}

func plannerPrompt() string {
	section := func(name, desc, typ string) map[string]string {
		return map[string]string{"Name": name, "Description": desc, "Content": "Leave blank for now", "Type": typ}
	}
	mainBody := "It must include at least one relevant code snippet, be 150-200 words, and avoid overlapping with other sections."
	spec := agent.PromptSpec{
		Role: "Blog Planning AI",
		Capabilities: []string{
			"Organizing user-provided notes into a blog outline",
			"Following a strict three-part blog structure with clear instructions",
			"Ensuring non-overlapping, concise, and well-structured sections",
			"Including specific details such as code snippets and clear calls to action",
		},
		Instructions: []string{
			"Reflect carefully on the user-provided scope notes and instructions.",
			"Organize these into sections strictly following the blog structure.",
			"Provide detailed descriptions for each section, ensuring clarity and scope without overlap.",
			"Leave 'content' blank for now, focusing on the planning stage.",
		},
		Structure: map[string]any{
			TypeIntroduction: section(TypeIntroduction,
				"This section must start with ### Key Links, include user-provided links, provide a brief overview of the problem statement, and briefly introduce the solution or main topic. It must not exceed 100 words.",
				TypeIntroduction),
			TypeMainBody: []map[string]string{
				section("Section 1 - Topic Name", "This section should cover a distinct aspect of the main topic. "+mainBody, TypeMainBody),
				section("Section 2 - Topic Name", "This section should cover another distinct aspect of the main topic. "+mainBody, TypeMainBody),
				section("Section 3 - Topic Name", "This optional section can cover a third distinct aspect of the main topic. "+mainBody, TypeMainBody),
			},
			TypeConclusion: section(TypeConclusion,
				"This section must provide a brief summary of key points, include ### Key Links, and end with a clear call to action. It must not exceed 150 words.",
				TypeConclusion),
		},
		ResponseFormat: agent.ResponseFormat{
			Type: "json",
			Schema: map[string]agent.Field{
				"thought": agent.ThoughtField,
				"plan":    agent.PlanField,
				"sections": {
					Type: "array",
					Items: map[string]agent.Field{
						"name":        {Type: "string", Description: "Section name"},
						"description": {Type: "string", Description: "Detailed description of the section's scope, topics to cover, word count, and whether it includes code examples"},
						"content":     {Type: "string", Description: "Content of the section", Optional: true},
						"type":        {Type: "string", Description: "Whether this section is an Introduction, Main Body, or Conclusion"},
					},
					Description: "Ordered outline of the blog",
				},
			},
			Examples: []any{
				agent.Example{
					User: "Write me a blog about advent of agents",
					Response: map[string]any{
						"thought": "Write a blog about advent of agents",
						"sections": []Section{
							{Name: "Introduction", Description: "Start with ### Key Links and provide an overview of the problem and solution (max 100 words).", Type: TypeIntroduction},
							{Name: "Section 1 - Overview of X", Description: "Discuss the background and basics of X with one code snippet, 150-200 words.", Type: TypeMainBody},
							{Name: "Conclusion", Description: "Summarize the blog, include ### Key Links, and provide a call to action (max 150 words).", Type: TypeConclusion},
						},
					},
				},
			},
		},
	}
	return agent.RenderPrompt(
		"You are a Blog Planning AI that helps users create a concise outline for their blog posts.\n"+
			"Strictly follow the blog structure and instructions provided.",
		spec,
		"Ensure that the outline strictly adheres to the provided blog structure.")
}

func introPrompt() string {
	spec := agent.PromptSpec{
		Role: "Introduction Writer AI",
		Capabilities: []string{
			"Writing the opening section of a technical blog post from its outline entry",
		},
		Instructions: []string{
			"Use the section name and description as your primary focus.",
			"Start with ### Key Links when the description asks for it.",
			"Keep within the word count given in the description.",
		},
		WritingGuidelines: writingGuidelines("## for section heading", "- for bullet points as needed"),
		QualityChecklist:  []string{"Meets word count as specified in the section description."},
		ResponseFormat: agent.ResponseFormat{
			Type: "json",
			Schema: map[string]agent.Field{
				"thought":         agent.ThoughtField,
				"section_heading": headingField,
				"section_body":    bodyField,
			},
		},
	}
	return agent.RenderPrompt("You are an Introduction Writer AI tasked with opening a technical blog post.", spec, "")
}

func mainBodyPrompt() string {
	spec := agent.PromptSpec{
		Role: "Section Writer AI",
		Capabilities: []string{
			"Crafting detailed blog sections based on specific descriptions",
			"Adhering to strict formatting and writing guidelines",
		},
		Instructions: []string{
			"Use the section name and description as your primary focus.",
			"Write precisely and avoid any introductory or marketing language.",
		},
		WritingGuidelines: writingGuidelines("## for section heading", "``` for code blocks", "** for emphasis when necessary", "- for bullet points as needed"),
		QualityChecklist: []string{
			"Meets word count as specified in the section description.",
			"Includes at least one clear code example if required in the section description.",
		},
		ResponseFormat: agent.ResponseFormat{
			Type: "json",
			Schema: map[string]agent.Field{
				"thought":         agent.ThoughtField,
				"section_heading": headingField,
				"section_body":    bodyField,
				"code_example":    {Type: "string", Description: "Code block content, enclosed in triple backticks", Optional: true},
			},
			Examples: []any{
				Part{
					Heading: "## Understanding X in Technical Detail",
					Body:    "X is a critical aspect of Y because:\n- It simplifies processes by [explanation].\n- It improves performance by [specific details].",
					Code:    "```python\n# Example code for implementing X\nprint('Hello, X!')\n```",
				},
			},
		},
	}
	return agent.RenderPrompt("You are a Section Writer AI tasked with crafting a precise and technically accurate section of a blog post.", spec, "")
}

func conclusionPrompt() string {
	spec := agent.PromptSpec{
		Role: "Conclusion Writer AI",
		Capabilities: []string{
			"Summarizing a finished blog draft into a closing section",
		},
		Instructions: []string{
			"Read the draft provided by the user and summarize its key points.",
			"Include ### Key Links and end with a clear call to action.",
			"Do not exceed 150 words.",
		},
		WritingGuidelines: writingGuidelines("## for section heading", "- for bullet points as needed"),
		ResponseFormat: agent.ResponseFormat{
			Type: "json",
			Schema: map[string]agent.Field{
				"thought":         agent.ThoughtField,
				"section_heading": headingField,
				"section_body":    bodyField,
			},
		},
	}
	return agent.RenderPrompt("You are a Conclusion Writer AI tasked with closing a technical blog post.", spec, "")
}
