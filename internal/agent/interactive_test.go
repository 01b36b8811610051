package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"polyagent/internal/eventbus"
)

type recordingClarifier struct {
	answers   []string
	questions []string
}

func (c *recordingClarifier) Clarify(ctx context.Context, question string) (string, error) {
	c.questions = append(c.questions, question)
	answer := c.answers[0]
	if len(c.answers) > 1 {
		c.answers = c.answers[1:]
	}
	return answer, nil
}

func TestInteractiveAgentAnswersDirectly(t *testing.T) {
	model := script(`{"clarification_needed": false, "direct_response": "Paris"}`)
	a := NewInteractiveAgent(model, nil, nil, -1)

	assert.Equal(t, "Paris", a.Execute(context.Background(), "Capital of France?"))
	assert.Equal(t, 1, model.callCount())
}

func TestInteractiveAgentWithoutAnswer(t *testing.T) {
	a := NewInteractiveAgent(script(`{"clarification_needed": false}`), nil, nil, -1)
	assert.Equal(t, "Unable to process the query.", a.Execute(context.Background(), "q"))
}

func TestInteractiveAgentAsksThenAnswers(t *testing.T) {
	model := script(
		`{"clarification_needed": true, "clarification_question": "Which city?"}`,
		`{"clarification_needed": false, "direct_response": "Sunny in Oslo"}`,
	)
	clarifier := &recordingClarifier{answers: []string{"Oslo"}}
	bus := eventbus.New()
	var got []eventbus.Clarification
	bus.Subscribe(eventbus.TopicClarification, func(e eventbus.Event) {
		got = append(got, e.Payload.(eventbus.Clarification))
	})
	a := NewInteractiveAgent(model, bus, nil, -1)

	ctx := WithClarifier(context.Background(), clarifier)
	assert.Equal(t, "Sunny in Oslo", a.Execute(ctx, "What's the weather?"))

	assert.Equal(t, []string{"Which city?"}, clarifier.questions)
	require.Len(t, model.calls, 2)
	assert.Equal(t, "What's the weather?. Response from user: Oslo", model.calls[1][0].Content)
	require.Len(t, got, 1)
	assert.Equal(t, "Oslo", got[0].Answer)
}

func TestInteractiveAgentDefaultQuestion(t *testing.T) {
	model := script(
		`{"clarification_needed": true}`,
		`{"clarification_needed": false, "direct_response": "ok"}`,
	)
	clarifier := &recordingClarifier{answers: []string{"more"}}
	a := NewInteractiveAgent(model, nil, clarifier, -1)

	assert.Equal(t, "ok", a.Execute(context.Background(), "q"))
	assert.Equal(t, []string{"Could you provide more details?"}, clarifier.questions)
}

func TestInteractiveAgentContextClarifierWins(t *testing.T) {
	model := script(
		`{"clarification_needed": true, "clarification_question": "?"}`,
		`{"clarification_needed": false, "direct_response": "ok"}`,
	)
	fallback := &recordingClarifier{answers: []string{"fallback"}}
	fromCtx := &recordingClarifier{answers: []string{"ctx"}}
	a := NewInteractiveAgent(model, nil, fallback, -1)

	a.Execute(WithClarifier(context.Background(), fromCtx), "q")
	assert.Len(t, fromCtx.questions, 1)
	assert.Empty(t, fallback.questions)
}

func TestInteractiveAgentClarificationLimit(t *testing.T) {
	model := script(`{"clarification_needed": true, "clarification_question": "again?"}`)
	clarifier := &recordingClarifier{answers: []string{"still vague"}}
	a := NewInteractiveAgent(model, nil, clarifier, 2)

	_, err := a.run(context.Background(), "q")
	var cl *ClarificationLimitError
	require.ErrorAs(t, err, &cl)
	assert.Equal(t, 2, cl.Max)
	assert.Len(t, clarifier.questions, 2)
	assert.Equal(t, 3, model.callCount())
}

func TestInteractiveAgentWithoutClarifier(t *testing.T) {
	a := NewInteractiveAgent(script(`{"clarification_needed": true}`), nil, nil, -1)

	_, err := a.run(context.Background(), "q")
	assert.ErrorIs(t, err, ErrNoClarifier)
	assert.True(t, IsErrorAnswer(a.Execute(context.Background(), "q")))
}

func TestInteractiveAgentClarifierFunc(t *testing.T) {
	model := script(
		`{"clarification_needed": true, "clarification_question": "Amount?"}`,
		`{"clarification_needed": false, "direct_response": "done"}`,
	)
	var asked string
	fn := ClarifierFunc(func(ctx context.Context, q string) (string, error) {
		asked = q
		return "", errBoom
	})
	a := NewInteractiveAgent(model, nil, fn, -1)

	out := a.Execute(context.Background(), "q")
	assert.Equal(t, "Amount?", asked)
	assert.Equal(t, "Error executing plan: boom", out)
}
