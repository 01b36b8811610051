package llm

import (
	"context"
	"errors"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

const openAIDefaultModel = "gpt-4o-mini"

// OpenAIProvider talks to the Chat Completions API. BaseURL points it at any
// compatible server (LM Studio, vLLM, OpenRouter).
type OpenAIProvider struct {
	client openai.Client
	model  string
}

type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

func NewOpenAIProvider(cfg OpenAIConfig) *OpenAIProvider {
	// Retries are left to the gateway's fallback chain.
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey), option.WithMaxRetries(0)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	p := &OpenAIProvider{client: openai.NewClient(opts...), model: cfg.Model}
	if p.model == "" {
		p.model = openAIDefaultModel
	}
	return p
}

func (p *OpenAIProvider) Name() string         { return "openai" }
func (p *OpenAIProvider) DefaultModel() string { return p.model }

func (p *OpenAIProvider) Chat(ctx context.Context, req *ChatRequest) (*LLMResponse, error) {
	completion, err := p.client.Chat.Completions.New(ctx, p.params(req, false))
	if err != nil {
		return nil, openAIError(err)
	}

	out := &LLMResponse{Usage: openAIUsage(completion.Usage)}
	if len(completion.Choices) > 0 {
		first := completion.Choices[0]
		out.Content = first.Message.Content
		out.StopReason = string(first.FinishReason)
	}
	return out, nil
}

func (p *OpenAIProvider) StreamChat(ctx context.Context, req *ChatRequest) (<-chan StreamEvent, error) {
	stream := p.client.Chat.Completions.NewStreaming(ctx, p.params(req, true))
	events := make(chan StreamEvent, 64)

	go func() {
		defer close(events)
		defer stream.Close()
		for stream.Next() {
			chunk := stream.Current()
			var ev StreamEvent
			for _, c := range chunk.Choices {
				ev.ContentDelta += c.Delta.Content
				ev.Done = ev.Done || c.FinishReason != ""
			}
			// With include_usage the final chunk has no choices and carries the totals.
			if chunk.Usage.TotalTokens > 0 {
				u := openAIUsage(chunk.Usage)
				ev.Usage = &u
			}
			events <- ev
		}
		if err := stream.Err(); err != nil {
			events <- StreamEvent{Error: openAIError(err), Done: true}
		}
	}()
	return events, nil
}

func (p *OpenAIProvider) params(req *ChatRequest, streaming bool) openai.ChatCompletionNewParams {
	params := openai.ChatCompletionNewParams{
		Model:       p.model,
		Messages:    openAIMessages(req),
		Temperature: openai.Float(req.Temperature),
	}
	if req.Model != "" {
		params.Model = req.Model
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}
	if req.JSONMode {
		params.ResponseFormat.OfJSONObject = &shared.ResponseFormatJSONObjectParam{}
	}
	if streaming {
		params.StreamOptions = openai.ChatCompletionStreamOptionsParam{IncludeUsage: openai.Bool(true)}
	}
	return params
}

// openAIMessages flattens the request into the wire history. Tool results were
// produced from JSON plans rather than native tool_calls, so they have no
// tool_call_id and travel as prefixed user turns.
func openAIMessages(req *ChatRequest) []openai.ChatCompletionMessageParamUnion {
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages)+1)
	if req.SystemPrompt != "" {
		msgs = append(msgs, openai.SystemMessage(req.SystemPrompt))
	}
	for _, m := range req.Messages {
		var wire openai.ChatCompletionMessageParamUnion
		switch m.Role {
		case RoleSystem:
			wire = openai.SystemMessage(m.Content)
		case RoleAssistant:
			wire = openai.AssistantMessage(m.Content)
		case RoleTool:
			wire = openai.UserMessage(toolResultPrefix + m.Content)
		default:
			wire = openai.UserMessage(m.Content)
		}
		msgs = append(msgs, wire)
	}
	return msgs
}

func openAIUsage(u openai.CompletionUsage) Usage {
	return Usage{InputTokens: int(u.PromptTokens), OutputTokens: int(u.CompletionTokens)}
}

func openAIError(err error) *LLMError {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiError("openai", apiErr.StatusCode, err)
	}
	return classifyError(err)
}
