package llm

import (
	"context"
	"errors"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const (
	anthropicDefaultModel     = "claude-sonnet-4-5-20250514"
	anthropicDefaultMaxTokens = 4096
)

// AnthropicProvider talks to the Messages API.
type AnthropicProvider struct {
	client anthropic.Client
	model  string
}

type AnthropicConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

func NewAnthropicProvider(cfg AnthropicConfig) *AnthropicProvider {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey), option.WithMaxRetries(0)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	p := &AnthropicProvider{client: anthropic.NewClient(opts...), model: cfg.Model}
	if p.model == "" {
		p.model = anthropicDefaultModel
	}
	return p
}

func (p *AnthropicProvider) Name() string         { return "anthropic" }
func (p *AnthropicProvider) DefaultModel() string { return p.model }

func (p *AnthropicProvider) Chat(ctx context.Context, req *ChatRequest) (*LLMResponse, error) {
	msg, err := p.client.Messages.New(ctx, p.params(req))
	if err != nil {
		return nil, anthropicError(err)
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if tb, ok := block.AsAny().(anthropic.TextBlock); ok {
			text.WriteString(tb.Text)
		}
	}
	return &LLMResponse{
		Content:    text.String(),
		StopReason: string(msg.StopReason),
		Usage:      Usage{InputTokens: int(msg.Usage.InputTokens), OutputTokens: int(msg.Usage.OutputTokens)},
	}, nil
}

func (p *AnthropicProvider) StreamChat(ctx context.Context, req *ChatRequest) (<-chan StreamEvent, error) {
	stream := p.client.Messages.NewStreaming(ctx, p.params(req))
	events := make(chan StreamEvent, 64)

	go func() {
		defer close(events)
		defer stream.Close()
		// Input tokens arrive with message_start, output tokens with message_delta.
		var usage Usage
		for stream.Next() {
			switch e := stream.Current().AsAny().(type) {
			case anthropic.MessageStartEvent:
				usage.InputTokens = int(e.Message.Usage.InputTokens)
			case anthropic.ContentBlockDeltaEvent:
				if delta, ok := e.Delta.AsAny().(anthropic.TextDelta); ok && delta.Text != "" {
					events <- StreamEvent{ContentDelta: delta.Text}
				}
			case anthropic.MessageDeltaEvent:
				usage.OutputTokens = int(e.Usage.OutputTokens)
			case anthropic.MessageStopEvent:
				final := usage
				events <- StreamEvent{Done: true, Usage: &final}
			}
		}
		if err := stream.Err(); err != nil {
			events <- StreamEvent{Error: anthropicError(err), Done: true}
		}
	}()
	return events, nil
}

func (p *AnthropicProvider) params(req *ChatRequest) anthropic.MessageNewParams {
	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(p.model),
		MaxTokens:   anthropicDefaultMaxTokens,
		Messages:    anthropicMessages(req.Messages),
		Temperature: anthropic.Float(req.Temperature),
	}
	if req.Model != "" {
		params.Model = anthropic.Model(req.Model)
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = int64(req.MaxTokens)
	}
	if system := anthropicSystem(req); system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	return params
}

// anthropicSystem folds the request prompt and any inline system turns into the
// single top-level system prompt the API accepts.
func anthropicSystem(req *ChatRequest) string {
	parts := make([]string, 0, 2)
	if req.SystemPrompt != "" {
		parts = append(parts, req.SystemPrompt)
	}
	for _, m := range req.Messages {
		if m.Role == RoleSystem && m.Content != "" {
			parts = append(parts, m.Content)
		}
	}
	return strings.Join(parts, "\n\n")
}

// anthropicMessages converts the history, merging consecutive turns of the same
// role into one message with several text blocks.
func anthropicMessages(history []Message) []anthropic.MessageParam {
	var out []anthropic.MessageParam
	for _, m := range history {
		role := anthropic.MessageParamRoleUser
		text := m.Content
		switch m.Role {
		case RoleSystem:
			continue
		case RoleAssistant:
			role = anthropic.MessageParamRoleAssistant
		case RoleTool:
			text = toolResultPrefix + text
		}

		block := anthropic.NewTextBlock(text)
		if n := len(out); n > 0 && out[n-1].Role == role {
			out[n-1].Content = append(out[n-1].Content, block)
			continue
		}
		out = append(out, anthropic.MessageParam{Role: role, Content: []anthropic.ContentBlockParamUnion{block}})
	}
	return out
}

func anthropicError(err error) *LLMError {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return apiError("anthropic", apiErr.StatusCode, err)
	}
	return classifyError(err)
}
