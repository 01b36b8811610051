package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultOllamaURL   = "http://localhost:11434"
	ollamaChatEndpoint = "/api/chat"
	maxErrorBodyBytes  = 4096
)

// OllamaProvider talks to the native Ollama chat endpoint.
type OllamaProvider struct {
	baseURL      string
	defaultModel string
	httpClient   *http.Client
}

// OllamaConfig holds configuration for the Ollama provider.
type OllamaConfig struct {
	BaseURL string
	Model   string
	// HTTPClient overrides the default client; timeouts are applied per call through ctx.
	HTTPClient *http.Client
}

// NewOllamaProvider creates a new Ollama provider.
func NewOllamaProvider(cfg OllamaConfig) *OllamaProvider {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultOllamaURL
	}
	model := cfg.Model
	if model == "" {
		model = "qwen2.5:32b"
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	return &OllamaProvider{
		baseURL:      baseURL,
		defaultModel: model,
		httpClient:   client,
	}
}

func (p *OllamaProvider) Name() string         { return "ollama" }
func (p *OllamaProvider) DefaultModel() string { return p.defaultModel }

// ollamaRequest is the /api/chat body. Temperature is sent both top-level and in options
// since older servers only honoured the former.
type ollamaRequest struct {
	Model       string         `json:"model"`
	Messages    []Message      `json:"messages"`
	Temperature float64        `json:"temperature"`
	Stream      bool           `json:"stream"`
	Format      string         `json:"format,omitempty"`
	Options     map[string]any `json:"options,omitempty"`
}

type ollamaResponse struct {
	Model           string  `json:"model"`
	Message         Message `json:"message"`
	Done            bool    `json:"done"`
	DoneReason      string  `json:"done_reason"`
	PromptEvalCount int     `json:"prompt_eval_count"`
	EvalCount       int     `json:"eval_count"`
	Error           string  `json:"error,omitempty"`
}

func (p *OllamaProvider) Chat(ctx context.Context, req *ChatRequest) (*LLMResponse, error) {
	resp, err := p.post(ctx, req, false)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out ollamaResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, &LLMError{Type: ErrorServerError, Message: "decode ollama response", Err: err}
	}
	if out.Error != "" {
		return nil, &LLMError{Type: ErrorServerError, Message: "ollama error: " + out.Error}
	}

	return &LLMResponse{
		Content:    out.Message.Content,
		StopReason: out.DoneReason,
		Usage: Usage{
			InputTokens:  out.PromptEvalCount,
			OutputTokens: out.EvalCount,
		},
	}, nil
}

func (p *OllamaProvider) StreamChat(ctx context.Context, req *ChatRequest) (<-chan StreamEvent, error) {
	resp, err := p.post(ctx, req, true)
	if err != nil {
		return nil, err
	}

	ch := make(chan StreamEvent, 64)
	go func() {
		defer close(ch)
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
		for scanner.Scan() {
			line := bytes.TrimSpace(scanner.Bytes())
			if len(line) == 0 {
				continue
			}
			var chunk ollamaResponse
			if err := json.Unmarshal(line, &chunk); err != nil {
				ch <- StreamEvent{Error: &LLMError{Type: ErrorServerError, Message: "decode ollama stream chunk", Err: err}, Done: true}
				return
			}
			if chunk.Error != "" {
				ch <- StreamEvent{Error: &LLMError{Type: ErrorServerError, Message: "ollama error: " + chunk.Error}, Done: true}
				return
			}
			evt := StreamEvent{ContentDelta: chunk.Message.Content, Done: chunk.Done}
			if chunk.Done {
				evt.Usage = &Usage{InputTokens: chunk.PromptEvalCount, OutputTokens: chunk.EvalCount}
			}
			ch <- evt
			if chunk.Done {
				return
			}
		}
		if err := scanner.Err(); err != nil {
			ch <- StreamEvent{Error: classifyError(err), Done: true}
			return
		}
		// EOF without a done chunk: the server went away mid-reply.
		ch <- StreamEvent{Error: &LLMError{Type: ErrorNetwork, Message: "ollama stream ended before the final chunk"}, Done: true}
	}()

	return ch, nil
}

func (p *OllamaProvider) post(ctx context.Context, req *ChatRequest, stream bool) (*http.Response, error) {
	model := req.Model
	if model == "" {
		model = p.defaultModel
	}

	body := ollamaRequest{
		Model:       model,
		Messages:    p.convertMessages(req),
		Temperature: req.Temperature,
		Stream:      stream,
		Options:     map[string]any{"temperature": req.Temperature},
	}
	if req.MaxTokens > 0 {
		body.Options["num_predict"] = req.MaxTokens
	}
	if req.JSONMode {
		body.Format = "json"
	}

	data, err := json.Marshal(body)
	if err != nil {
		return nil, &LLMError{Type: ErrorInvalidInput, Message: "encode ollama request", Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+ollamaChatEndpoint, bytes.NewReader(data))
	if err != nil {
		return nil, &LLMError{Type: ErrorInvalidInput, Message: "build ollama request", Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, classifyError(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return nil, statusError(resp.StatusCode, strings.TrimSpace(string(snippet)), time.Since(start))
	}
	return resp, nil
}

// convertMessages places the system prompt at index 0 of the outbound conversation.
func (p *OllamaProvider) convertMessages(req *ChatRequest) []Message {
	msgs := make([]Message, 0, len(req.Messages)+1)
	if req.SystemPrompt != "" {
		msgs = append(msgs, Message{Role: RoleSystem, Content: req.SystemPrompt})
	}
	return append(msgs, req.Messages...)
}

func statusError(code int, body string, elapsed time.Duration) *LLMError {
	return &LLMError{
		Type:    statusType(code),
		Message: fmt.Sprintf("unexpected status %d after %s: %s", code, elapsed.Round(time.Millisecond), body),
	}
}
