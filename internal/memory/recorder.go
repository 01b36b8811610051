package memory

import (
	"context"
	"encoding/json"
	"log"

	"polyagent/internal/eventbus"
)

// recordedTopics are the topics copied into run_events.
var recordedTopics = []eventbus.Topic{
	eventbus.TopicAgentSelected,
	eventbus.TopicAgentThink,
	eventbus.TopicToolCall,
	eventbus.TopicToolResult,
	eventbus.TopicLLMResponse,
	eventbus.TopicClarification,
	eventbus.TopicError,
}

// Record subscribes j to bus: events of a run go to run_events and run_finished
// closes the run in runs. Events published outside a run are ignored.
func Record(bus *eventbus.Bus, j Journal) {
	bus.SubscribeAll(func(e eventbus.Event) {
		if e.RunID == "" {
			return
		}
		ev := RunEvent{RunID: e.RunID, Topic: string(e.Topic), Payload: encodePayload(e.Payload), CreatedAt: e.Timestamp}
		if err := j.AppendEvent(context.Background(), ev); err != nil {
			log.Printf("[memory] failed to record %s for run %s: %v", e.Topic, e.RunID, err)
		}
	}, recordedTopics...)

	bus.Subscribe(eventbus.TopicRunFinished, func(e eventbus.Event) {
		rf, ok := e.Payload.(eventbus.RunFinished)
		if !ok || e.RunID == "" {
			return
		}
		run := Run{
			ID:        e.RunID,
			Channel:   rf.Channel,
			ChatID:    rf.ChatID,
			Agent:     rf.Agent,
			Query:     rf.Query,
			Answer:    rf.Answer,
			Failed:    rf.Failed,
			Elapsed:   rf.Duration,
			CreatedAt: e.Timestamp.Add(-rf.Duration),
		}
		if err := j.SaveRun(context.Background(), run); err != nil {
			log.Printf("[memory] failed to save run %s: %v", e.RunID, err)
		}
	})
}

func errText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// encodePayload renders a payload as JSON. Errors are flattened to their message.
func encodePayload(p any) string {
	switch v := p.(type) {
	case error:
		p = map[string]string{"error": v.Error()}
	case eventbus.ToolResult:
		p = map[string]any{
			"agent": v.Agent, "tool": v.Tool, "output": v.Output,
			"error": errText(v.Err), "duration_ms": v.Duration.Milliseconds(),
		}
	case eventbus.LLMResponse:
		p = map[string]any{
			"provider": v.Provider, "input_tokens": v.InputTokens, "output_tokens": v.OutputTokens,
			"error": errText(v.Err), "duration_ms": v.Duration.Milliseconds(),
		}
	}
	data, err := json.Marshal(p)
	if err != nil {
		return `{"error":"unencodable payload"}`
	}
	return string(data)
}
