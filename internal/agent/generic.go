package agent

import (
	"context"
	"log"
	"time"

	"polyagent/internal/eventbus"
)

// GenericAgent answers directly with a single model call.
type GenericAgent struct {
	llm    Completer
	bus    *eventbus.Bus
	system string
}

func NewGenericAgent(c Completer, bus *eventbus.Bus) *GenericAgent {
	return &GenericAgent{llm: c, bus: bus, system: genericAgentPrompt()}
}

func (a *GenericAgent) Name() string { return "GenericAgent" }

func (a *GenericAgent) Execute(ctx context.Context, query string) string {
	defer LogElapsed(a.Name(), time.Now())

	log.Printf("[agent] %s: calling LLM to answer user question", a.Name())
	d, err := AskJSON[Decision](ctx, a.llm, a.system, query)
	if err == nil && d.DirectResponse == nil {
		err = ErrMissingAnswer
	}
	if err != nil {
		log.Printf("[agent] %s failed: %v", a.Name(), err)
		a.bus.Publish(ctx, eventbus.TopicError, err)
		return ErrorAnswer(err)
	}
	a.bus.Publish(ctx, eventbus.TopicAgentThink, eventbus.AgentThink{Agent: a.Name(), Round: 1, Thought: d.Thought, Plan: d.Plan})
	return *d.DirectResponse
}
