package llm

import (
	"context"
	"iter"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

type fakeGeminiClient struct {
	resp     *genai.GenerateContentResponse
	err      error
	chunks   []*genai.GenerateContentResponse
	model    string
	contents []*genai.Content
	config   *genai.GenerateContentConfig
}

func (f *fakeGeminiClient) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.model, f.contents, f.config = model, contents, config
	return f.resp, f.err
}

func (f *fakeGeminiClient) GenerateContentStream(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) iter.Seq2[*genai.GenerateContentResponse, error] {
	f.model, f.contents, f.config = model, contents, config
	return func(yield func(*genai.GenerateContentResponse, error) bool) {
		for _, c := range f.chunks {
			if !yield(c, nil) {
				return
			}
		}
	}
}

func textResponse(text string, finish genai.FinishReason) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content:      genai.NewContentFromText(text, genai.RoleModel),
			FinishReason: finish,
		}},
		UsageMetadata: &genai.GenerateContentResponseUsageMetadata{PromptTokenCount: 5, CandidatesTokenCount: 2},
	}
}

func TestGeminiChat(t *testing.T) {
	fake := &fakeGeminiClient{resp: textResponse(`{"direct_response":"ok"}`, genai.FinishReasonStop)}
	p := NewGeminiProviderWithClient(fake, "gemini-test")

	resp, err := p.Chat(context.Background(), &ChatRequest{
		SystemPrompt: "sys",
		Messages: []Message{
			{Role: RoleUser, Content: "q"},
			{Role: RoleAssistant, Content: "a"},
			{Role: RoleTool, Content: "r"},
		},
		Temperature: 0.5,
		JSONMode:    true,
	})

	require.NoError(t, err)
	assert.Equal(t, `{"direct_response":"ok"}`, resp.Content)
	assert.Equal(t, 5, resp.Usage.InputTokens)
	assert.Equal(t, "gemini-test", fake.model)
	assert.Equal(t, "application/json", fake.config.ResponseMIMEType)
	assert.Equal(t, float32(0.5), *fake.config.Temperature)
	require.Len(t, fake.contents, 3)
	assert.Equal(t, string(genai.RoleModel), fake.contents[1].Role)
	assert.Equal(t, "Tool response: r", fake.contents[2].Parts[0].Text)
	assert.Equal(t, "sys", fake.config.SystemInstruction.Parts[0].Text)
}

func TestGeminiSafetyBlock(t *testing.T) {
	fake := &fakeGeminiClient{resp: textResponse("", genai.FinishReasonSafety)}
	_, err := NewGeminiProviderWithClient(fake, "").Chat(context.Background(), &ChatRequest{})

	var llmErr *LLMError
	require.ErrorAs(t, err, &llmErr)
	assert.Equal(t, ErrorInvalidInput, llmErr.Type)
}

func TestGeminiStream(t *testing.T) {
	fake := &fakeGeminiClient{chunks: []*genai.GenerateContentResponse{
		textResponse(`{"a":`, ""),
		textResponse(` 2}`, genai.FinishReasonStop),
	}}
	gw := NewGateway(NewGeminiProviderWithClient(fake, ""), GatewayOptions{Stream: true})

	out, err := gw.Complete(context.Background(), "", []Message{{Role: RoleUser, Content: "x"}})

	require.NoError(t, err)
	assert.Equal(t, `{"a": 2}`, out)
}
