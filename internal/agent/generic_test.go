package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenericAgent(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  string
	}{
		{name: "answer", reply: `{"direct_response": "Hello!"}`, want: "Hello!"},
		{name: "empty answer is still an answer", reply: `{"direct_response": ""}`, want: ""},
		{name: "missing answer", reply: `{"thought": "hmm"}`, want: "Error executing plan: terminal decision has no direct_response"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model := script(tt.reply)
			a := NewGenericAgent(model, nil)
			assert.Equal(t, tt.want, a.Execute(context.Background(), "hi"))
			assert.Equal(t, 1, model.callCount())
		})
	}
}

func TestGenericAgentMalformedReply(t *testing.T) {
	a := NewGenericAgent(script("```json\n{}```"), nil)
	assert.True(t, IsErrorAnswer(a.Execute(context.Background(), "hi")))
}
