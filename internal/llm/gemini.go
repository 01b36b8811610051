package llm

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"

	"google.golang.org/genai"
)

// GeminiClient is the subset of the genai SDK the provider needs. It lets tests
// substitute a scripted client.
type GeminiClient interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
	GenerateContentStream(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) iter.Seq2[*genai.GenerateContentResponse, error]
}

type sdkGeminiClient struct {
	client *genai.Client
}

func (c *sdkGeminiClient) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	return c.client.Models.GenerateContent(ctx, model, contents, config)
}

func (c *sdkGeminiClient) GenerateContentStream(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) iter.Seq2[*genai.GenerateContentResponse, error] {
	return c.client.Models.GenerateContentStream(ctx, model, contents, config)
}

// GeminiProvider implements Provider on the Gemini API.
type GeminiProvider struct {
	client       GeminiClient
	defaultModel string
}

// GeminiConfig holds configuration for the Gemini provider.
type GeminiConfig struct {
	APIKey string
	Model  string
}

// NewGeminiProvider creates a Gemini provider backed by the genai SDK.
func NewGeminiProvider(ctx context.Context, cfg GeminiConfig) (*GeminiProvider, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return NewGeminiProviderWithClient(&sdkGeminiClient{client: client}, cfg.Model), nil
}

// NewGeminiProviderWithClient wraps an existing client.
func NewGeminiProviderWithClient(client GeminiClient, model string) *GeminiProvider {
	if model == "" {
		model = "gemini-2.5-flash"
	}
	return &GeminiProvider{client: client, defaultModel: model}
}

func (p *GeminiProvider) Name() string         { return "gemini" }
func (p *GeminiProvider) DefaultModel() string { return p.defaultModel }

func (p *GeminiProvider) Chat(ctx context.Context, req *ChatRequest) (*LLMResponse, error) {
	model, contents, config := p.buildRequest(req)

	resp, err := p.client.GenerateContent(ctx, model, contents, config)
	if err != nil {
		return nil, classifyGeminiError(err)
	}
	if len(resp.Candidates) == 0 {
		return nil, &LLMError{Type: ErrorInvalidInput, Message: "no candidates in gemini response"}
	}
	if resp.Candidates[0].FinishReason == genai.FinishReasonSafety {
		return nil, &LLMError{Type: ErrorInvalidInput, Message: "content blocked by safety filters"}
	}

	result := &LLMResponse{
		Content:    resp.Text(),
		StopReason: string(resp.Candidates[0].FinishReason),
	}
	if resp.UsageMetadata != nil {
		result.Usage = Usage{
			InputTokens:  int(resp.UsageMetadata.PromptTokenCount),
			OutputTokens: int(resp.UsageMetadata.CandidatesTokenCount),
		}
	}
	return result, nil
}

func (p *GeminiProvider) StreamChat(ctx context.Context, req *ChatRequest) (<-chan StreamEvent, error) {
	model, contents, config := p.buildRequest(req)
	seq := p.client.GenerateContentStream(ctx, model, contents, config)

	ch := make(chan StreamEvent, 64)
	go func() {
		defer close(ch)
		for resp, err := range seq {
			if err != nil {
				ch <- StreamEvent{Error: classifyGeminiError(err), Done: true}
				return
			}
			evt := StreamEvent{ContentDelta: resp.Text()}
			if len(resp.Candidates) > 0 && resp.Candidates[0].FinishReason != "" {
				evt.Done = true
			}
			if resp.UsageMetadata != nil && evt.Done {
				evt.Usage = &Usage{
					InputTokens:  int(resp.UsageMetadata.PromptTokenCount),
					OutputTokens: int(resp.UsageMetadata.CandidatesTokenCount),
				}
			}
			ch <- evt
		}
	}()
	return ch, nil
}

func (p *GeminiProvider) buildRequest(req *ChatRequest) (string, []*genai.Content, *genai.GenerateContentConfig) {
	model := req.Model
	if model == "" {
		model = p.defaultModel
	}

	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(req.Temperature)),
	}
	if req.MaxTokens > 0 {
		config.MaxOutputTokens = int32(req.MaxTokens)
	}
	if req.JSONMode {
		config.ResponseMIMEType = "application/json"
	}

	var system []string
	if req.SystemPrompt != "" {
		system = append(system, req.SystemPrompt)
	}

	contents := make([]*genai.Content, 0, len(req.Messages))
	for _, m := range req.Messages {
		switch m.Role {
		case RoleSystem:
			system = append(system, m.Content)
		case RoleUser:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		case RoleAssistant:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		case RoleTool:
			contents = append(contents, genai.NewContentFromText(toolResultPrefix+m.Content, genai.RoleUser))
		}
	}
	if len(system) > 0 {
		config.SystemInstruction = genai.NewContentFromText(strings.Join(system, "\n\n"), genai.RoleUser)
	}
	return model, contents, config
}

func classifyGeminiError(err error) *LLMError {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		llmErr := &LLMError{Err: err, Message: "gemini api error"}
		switch {
		case apiErr.Code == 401 || apiErr.Code == 403:
			llmErr.Type = ErrorAuth
		case apiErr.Code == 429:
			llmErr.Type = ErrorRateLimit
		case apiErr.Code == 400:
			llmErr.Type = ErrorInvalidInput
		case apiErr.Code >= 500:
			llmErr.Type = ErrorServerError
		default:
			llmErr.Type = ErrorUnknown
		}
		return llmErr
	}
	return classifyError(err)
}
