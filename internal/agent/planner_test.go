package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"polyagent/internal/eventbus"
)

type echoAgent struct {
	name    string
	queries []string
}

func (e *echoAgent) Name() string { return e.name }
func (e *echoAgent) Execute(ctx context.Context, query string) string {
	e.queries = append(e.queries, query)
	return e.name + " handled " + query
}

func plannerFixture(reply string) (*PlannerAgent, *echoAgent, *eventbus.Bus) {
	target := &echoAgent{name: "ToolAgent"}
	f := NewFactory()
	f.Register("ToolAgent", func() Agent { return target })
	f.Register("GenericAgent", func() Agent { return &echoAgent{name: "GenericAgent"} })
	f.Alias("ToolsAgent", "ToolAgent")
	bus := eventbus.New()
	return NewPlannerAgent(script(reply), f, bus, []AgentInfo{{Name: "ToolAgent", Description: "uses tools"}}), target, bus
}

func TestPlannerDispatchesToSelectedAgent(t *testing.T) {
	p, target, bus := plannerFixture(`{"requires_agents": true, "thought": "needs tools", "selected_agents": [{"agent": "ToolAgent"}, {"agent": "GenericAgent"}]}`)
	var selected []eventbus.AgentSelected
	bus.Subscribe(eventbus.TopicAgentSelected, func(e eventbus.Event) {
		selected = append(selected, e.Payload.(eventbus.AgentSelected))
	})

	out := p.Execute(context.Background(), "Convert 5 USD to EUR")

	assert.Equal(t, "ToolAgent handled Convert 5 USD to EUR", out)
	assert.Equal(t, []string{"Convert 5 USD to EUR"}, target.queries)
	require.Len(t, selected, 1)
	assert.Equal(t, eventbus.AgentSelected{Agent: "ToolAgent", Thought: "needs tools"}, selected[0])
}

func TestPlannerResolvesAlias(t *testing.T) {
	p, target, _ := plannerFixture(`{"requires_agents": true, "selected_agents": [{"agent": "ToolsAgent"}]}`)
	p.Execute(context.Background(), "q")
	assert.Len(t, target.queries, 1)
}

func TestPlannerNoSelection(t *testing.T) {
	for _, reply := range []string{
		`{"requires_agents": false}`,
		`{"requires_agents": true, "selected_agents": []}`,
		`{"requires_agents": true, "selected_agents": [{"agent": ""}]}`,
	} {
		p, target, _ := plannerFixture(reply)
		assert.Equal(t, "Unable to determine an agent for the query.", p.Execute(context.Background(), "q"), reply)
		assert.Empty(t, target.queries)
	}
}

func TestPlannerUnknownAgent(t *testing.T) {
	p, _, _ := plannerFixture(`{"requires_agents": true, "selected_agents": [{"agent": "TimeTravelAgent"}]}`)

	out := p.Execute(context.Background(), "q")
	assert.True(t, IsErrorAnswer(out))
	assert.Contains(t, out, "TimeTravelAgent")
	assert.Contains(t, out, "GenericAgent, ToolAgent")
}

func TestPlannerRefusesToSelectItself(t *testing.T) {
	for _, name := range []string{"PlannerAgent", "Planner"} {
		model := script(`{"requires_agents": true, "selected_agents": [{"agent": "` + name + `"}]}`)
		f := NewFactory()
		p := NewPlannerAgent(model, f, nil, nil)
		f.Register("PlannerAgent", func() Agent { return NewPlannerAgent(model, f, nil, nil) })
		f.Alias("Planner", "PlannerAgent")

		out := p.Execute(context.Background(), "q")
		assert.True(t, IsErrorAnswer(out), name)
		assert.Contains(t, out, ErrSelfDispatch.Error())
		assert.Equal(t, 1, model.callCount(), "no nested planner runs")
	}
}

func TestPlannerPromptListsAgents(t *testing.T) {
	p, _, _ := plannerFixture(`{}`)
	assert.Contains(t, p.SystemPrompt(), `"name": "ToolAgent"`)
	assert.Equal(t, p.SystemPrompt(), p.SystemPrompt())
}

func TestFactory(t *testing.T) {
	f := NewFactory()
	f.Register("B", func() Agent { return &echoAgent{name: "B"} })
	f.Register("A", func() Agent { return &echoAgent{name: "A"} })
	f.Alias("Alpha", "A")

	assert.Equal(t, []string{"A", "B"}, f.Names())

	a, err := f.New("Alpha")
	require.NoError(t, err)
	assert.Equal(t, "A", a.Name())

	first, _ := f.New("B")
	second, _ := f.New("B")
	assert.NotSame(t, first, second)

	_, err = f.New("C")
	var ue *UnknownAgentError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, []string{"A", "B"}, ue.Known)
}
