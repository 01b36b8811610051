package agent

import (
	"context"
	"log"
	"time"

	"polyagent/internal/eventbus"
)

const (
	defaultClarificationQuestion = "Could you provide more details?"
	unableToProcess              = "Unable to process the query."
	// DefaultMaxClarifications bounds how often one query may bounce back to the user.
	DefaultMaxClarifications = 3
)

// Clarifier asks the user a question and returns the answer.
type Clarifier interface {
	Clarify(ctx context.Context, question string) (string, error)
}

// ClarifierFunc adapts a function to Clarifier.
type ClarifierFunc func(ctx context.Context, question string) (string, error)

func (f ClarifierFunc) Clarify(ctx context.Context, question string) (string, error) {
	return f(ctx, question)
}

type clarifierKey struct{}

// WithClarifier attaches the clarifier for the current conversation to ctx.
func WithClarifier(ctx context.Context, c Clarifier) context.Context {
	return context.WithValue(ctx, clarifierKey{}, c)
}

// ClarifierFrom returns the clarifier attached to ctx, if any.
func ClarifierFrom(ctx context.Context) (Clarifier, bool) {
	c, ok := ctx.Value(clarifierKey{}).(Clarifier)
	return c, ok && c != nil
}

type interactiveReply struct {
	DirectResponse        *string  `json:"direct_response"`
	ClarificationNeeded   bool     `json:"clarification_needed"`
	ClarificationQuestion string   `json:"clarification_question"`
	Thought               string   `json:"thought"`
	Plan                  []string `json:"plan"`
}

// InteractiveAgent answers directly or asks the user a clarifying question first.
type InteractiveAgent struct {
	llm      Completer
	bus      *eventbus.Bus
	fallback Clarifier
	max      int
	system   string
}

// NewInteractiveAgent creates an interactive agent. The clarifier attached to the request
// context wins over fallback; maxClarifications < 0 means the default.
func NewInteractiveAgent(c Completer, bus *eventbus.Bus, fallback Clarifier, maxClarifications int) *InteractiveAgent {
	if maxClarifications < 0 {
		maxClarifications = DefaultMaxClarifications
	}
	return &InteractiveAgent{
		llm:      c,
		bus:      bus,
		fallback: fallback,
		max:      maxClarifications,
		system:   interactiveAgentPrompt(),
	}
}

func (a *InteractiveAgent) Name() string { return "InteractiveAgent" }

func (a *InteractiveAgent) Execute(ctx context.Context, query string) string {
	defer LogElapsed(a.Name(), time.Now())

	answer, err := a.run(ctx, query)
	if err != nil {
		log.Printf("[agent] %s failed: %v", a.Name(), err)
		a.bus.Publish(ctx, eventbus.TopicError, err)
		return ErrorAnswer(err)
	}
	return answer
}

func (a *InteractiveAgent) run(ctx context.Context, query string) (string, error) {
	for asked := 0; ; asked++ {
		log.Printf("[agent] %s: calling LLM to answer user question", a.Name())
		r, err := AskJSON[interactiveReply](ctx, a.llm, a.system, query)
		if err != nil {
			return "", err
		}
		a.bus.Publish(ctx, eventbus.TopicAgentThink, eventbus.AgentThink{
			Agent: a.Name(), Round: asked + 1, Thought: r.Thought, Plan: r.Plan,
		})

		if !r.ClarificationNeeded {
			if r.DirectResponse != nil {
				return *r.DirectResponse, nil
			}
			return unableToProcess, nil
		}

		if asked >= a.max {
			return "", &ClarificationLimitError{Max: a.max}
		}
		question := r.ClarificationQuestion
		if question == "" {
			question = defaultClarificationQuestion
		}
		clarifier, ok := ClarifierFrom(ctx)
		if !ok {
			clarifier = a.fallback
		}
		if clarifier == nil {
			return "", ErrNoClarifier
		}

		log.Printf("[agent] need more information: %s", question)
		answer, err := clarifier.Clarify(ctx, question)
		if err != nil {
			return "", err
		}
		a.bus.Publish(ctx, eventbus.TopicClarification, eventbus.Clarification{
			Agent: a.Name(), Question: question, Answer: answer,
		})
		query = query + ". Response from user: " + answer
	}
}
