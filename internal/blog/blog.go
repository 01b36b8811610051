// Package blog writes a technical blog post through a fixed chain of model calls:
// an outline, an introduction, one call per main-body section, and a conclusion.
package blog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"
	"unicode/utf8"

	"polyagent/internal/agent"
	"polyagent/internal/eventbus"
)

// Section types produced by the outline step.
const (
	TypeIntroduction = "Introduction"
	TypeMainBody     = "Main Body"
	TypeConclusion   = "Conclusion"
)

// ErrNoIntroduction is returned when the outline has no Introduction section.
var ErrNoIntroduction = errors.New("blog outline has no Introduction section")

// Section is one entry of the outline.
type Section struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Content     string `json:"content,omitempty"`
	Type        string `json:"type"`
}

type outline struct {
	Thought  string    `json:"thought"`
	Sections []Section `json:"sections"`
}

// Part is one written section.
type Part struct {
	Heading string `json:"section_heading"`
	Body    string `json:"section_body"`
	Code    string `json:"code_example,omitempty"`
	Thought string `json:"thought,omitempty"`
}

// Agent runs the blog chain. It satisfies agent.Agent.
type Agent struct {
	llm      agent.Completer
	bus      *eventbus.Bus
	exporter *Exporter
}

// NewAgent creates a blog agent. exporter may be nil, in which case posts are only returned.
func NewAgent(c agent.Completer, bus *eventbus.Bus, exporter *Exporter) *Agent {
	return &Agent{llm: c, bus: bus, exporter: exporter}
}

func (a *Agent) Name() string { return "BlogAgent" }

func (a *Agent) Execute(ctx context.Context, query string) string {
	defer agent.LogElapsed(a.Name(), time.Now())

	post, err := a.Write(ctx, query)
	if err != nil {
		log.Printf("[blog] %s failed: %v", a.Name(), err)
		a.bus.Publish(ctx, eventbus.TopicError, err)
		return agent.ErrorAnswer(err)
	}

	if a.exporter != nil {
		path, err := a.exporter.Export(query, post)
		if err != nil {
			log.Printf("[blog] export failed: %v", err)
		} else {
			log.Printf("[blog] saved post to %s", path)
		}
	}
	return post
}

// Write runs the four steps and returns the assembled post.
func (a *Agent) Write(ctx context.Context, query string) (string, error) {
	log.Printf("[blog] %s: calling series of agents to generate blog for %q", a.Name(), truncate(query, 80))

	o, err := ask[outline](ctx, a, "outline", plannerPrompt(), query, 1)
	if err != nil {
		return "", err
	}
	if o.Thought != "" {
		log.Printf("[blog] outline thought: %s", o.Thought)
	}

	var intro *Section
	for i := range o.Sections {
		if o.Sections[i].Type == TypeIntroduction {
			intro = &o.Sections[i]
			break
		}
	}
	if intro == nil {
		return "", ErrNoIntroduction
	}

	var sb strings.Builder
	part, err := a.writePart(ctx, "introduction", introPrompt(), mustJSON(intro), 2)
	if err != nil {
		return "", err
	}
	writeBlock(&sb, part.Heading, part.Body)

	round := 3
	for _, s := range o.Sections {
		if s.Type != TypeMainBody {
			continue
		}
		part, err := a.writePart(ctx, "main body", mainBodyPrompt(), mustJSON(s), round)
		if err != nil {
			return "", fmt.Errorf("section %q: %w", s.Name, err)
		}
		writeBlock(&sb, part.Heading, part.Body)
		if part.Code != "" {
			sb.WriteString(part.Code)
			sb.WriteString("\n\n")
		}
		round++
	}

	part, err = a.writePart(ctx, "conclusion", conclusionPrompt(), mustJSON(sb.String()), round)
	if err != nil {
		return "", err
	}
	writeBlock(&sb, part.Heading, part.Body)

	return sb.String(), nil
}

// ask runs one step of the chain: a single user message under its own preamble.
func ask[T any](ctx context.Context, a *Agent, name, system, input string, round int) (T, error) {
	log.Printf("[blog] calling LLM to generate %s...", name)
	out, err := agent.AskJSON[T](ctx, a.llm, system, input)
	if err != nil {
		return out, fmt.Errorf("%s: %w", name, err)
	}
	a.bus.Publish(ctx, eventbus.TopicAgentThink, eventbus.AgentThink{Agent: a.Name(), Round: round, Thought: name})
	return out, nil
}

func (a *Agent) writePart(ctx context.Context, name, system, input string, round int) (Part, error) {
	p, err := ask[Part](ctx, a, name, system, input, round)
	if err != nil {
		return Part{}, err
	}
	if p.Heading == "" && p.Body == "" {
		return Part{}, fmt.Errorf("%s: reply has neither section_heading nor section_body", name)
	}
	if p.Thought != "" {
		log.Printf("[blog] %s thought: %s", name, p.Thought)
	}
	return p, nil
}

func writeBlock(sb *strings.Builder, heading, body string) {
	sb.WriteString(heading)
	sb.WriteString("\n\n")
	sb.WriteString(body)
	sb.WriteString("\n\n")
}

func mustJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		panic("blog: marshal step input: " + err.Error())
	}
	return string(data)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
