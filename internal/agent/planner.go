package agent

import (
	"context"
	"fmt"
	"log"
	"time"

	"polyagent/internal/eventbus"
)

const noAgentSelected = "Unable to determine an agent for the query."

// Stage names one step of a sequenced agent.
type Stage struct {
	Stage string `json:"stage"`
}

// Selection is one agent chosen by the planner.
type Selection struct {
	Agent         string         `json:"agent"`
	Sequence      bool           `json:"sequence"`
	SequenceOrder []Stage        `json:"sequence_order"`
	Arguments     map[string]any `json:"arguments"`
}

type plannerReply struct {
	RequiresAgents bool        `json:"requires_agents"`
	SelectedAgents []Selection `json:"selected_agents"`
	Thought        string      `json:"thought"`
}

// PlannerAgent routes a query to one agent built by the Factory.
type PlannerAgent struct {
	llm     Completer
	factory *Factory
	bus     *eventbus.Bus
	agents  []AgentInfo
}

// NewPlannerAgent creates a planner that offers agents to the model and builds the
// chosen one through factory.
func NewPlannerAgent(c Completer, factory *Factory, bus *eventbus.Bus, agents []AgentInfo) *PlannerAgent {
	return &PlannerAgent{llm: c, factory: factory, bus: bus, agents: agents}
}

func (a *PlannerAgent) Name() string { return "PlannerAgent" }

// SystemPrompt returns the planner's preamble.
func (a *PlannerAgent) SystemPrompt() string {
	return plannerAgentPrompt(a.agents)
}

func (a *PlannerAgent) Execute(ctx context.Context, query string) string {
	defer LogElapsed(a.Name(), time.Now())

	answer, err := a.run(ctx, query)
	if err != nil {
		log.Printf("[agent] %s failed: %v", a.Name(), err)
		a.bus.Publish(ctx, eventbus.TopicError, err)
		return ErrorAnswer(err)
	}
	return answer
}

func (a *PlannerAgent) run(ctx context.Context, query string) (string, error) {
	log.Printf("[agent] %s: calling LLM to identify which agent to use", a.Name())
	r, err := AskJSON[plannerReply](ctx, a.llm, a.SystemPrompt(), query)
	if err != nil {
		return "", err
	}
	if r.Thought != "" {
		log.Printf("[agent] plan of action: %s", r.Thought)
	}
	if !r.RequiresAgents || len(r.SelectedAgents) == 0 || r.SelectedAgents[0].Agent == "" {
		return noAgentSelected, nil
	}

	sel := r.SelectedAgents[0]
	next, err := a.factory.New(sel.Agent)
	if err != nil {
		return "", err
	}
	if next.Name() == a.Name() {
		return "", fmt.Errorf("%w: selected %q", ErrSelfDispatch, sel.Agent)
	}
	if sel.Sequence && len(sel.SequenceOrder) > 0 {
		log.Printf("[agent] %s runs as a sequence of %d stages", next.Name(), len(sel.SequenceOrder))
	}
	a.bus.Publish(ctx, eventbus.TopicAgentSelected, eventbus.AgentSelected{Agent: next.Name(), Thought: r.Thought})

	log.Printf("[agent] invoking agent %s", next.Name())
	return next.Execute(ctx, query), nil
}
