package llm

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"polyagent/internal/eventbus"
)

// TransportError reports a failed model call: the network call failed, the endpoint
// answered with a non-success status, or the stream broke mid-way.
type TransportError struct {
	Provider string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error (%s): %v", e.Provider, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// GatewayOptions configures every call made through a Gateway.
type GatewayOptions struct {
	Model       string
	Temperature float64
	Stream      bool
	MaxTokens   int
	Timeout     time.Duration
	// JSONMode asks the backend to constrain output to a JSON object.
	JSONMode bool
	Bus      *eventbus.Bus
}

// Gateway sends one conversation to a provider and returns the text of the single completion.
// It never retries and never caches.
type Gateway struct {
	provider Provider
	opts     GatewayOptions
}

// NewGateway wraps a provider.
func NewGateway(p Provider, opts GatewayOptions) *Gateway {
	return &Gateway{provider: p, opts: opts}
}

// Provider returns the underlying provider.
func (g *Gateway) Provider() Provider { return g.provider }

// SetBus attaches an event bus for llm_request / llm_response events.
func (g *Gateway) SetBus(bus *eventbus.Bus) { g.opts.Bus = bus }

// Complete sends system followed by conv and returns the reply text. When streaming is
// enabled every fragment is accumulated before returning.
func (g *Gateway) Complete(ctx context.Context, system string, conv []Message) (string, error) {
	if g.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.opts.Timeout)
		defer cancel()
	}

	req := &ChatRequest{
		Messages:     conv,
		MaxTokens:    g.opts.MaxTokens,
		Temperature:  g.opts.Temperature,
		SystemPrompt: system,
		JSONMode:     g.opts.JSONMode,
	}
	// With a fallback chain each provider keeps its own configured model.
	if _, chained := g.provider.(*FallbackProvider); !chained {
		req.Model = g.opts.Model
	}

	g.opts.Bus.Publish(ctx, eventbus.TopicLLMRequest, eventbus.LLMRequest{
		Provider: g.provider.Name(),
		Messages: len(conv) + 1,
	})

	start := time.Now()
	var (
		content string
		usage   Usage
		err     error
	)
	if g.opts.Stream {
		content, usage, err = g.stream(ctx, req)
	} else {
		var resp *LLMResponse
		resp, err = g.provider.Chat(ctx, req)
		if err == nil {
			content, usage = resp.Content, resp.Usage
		}
	}
	elapsed := time.Since(start)

	g.opts.Bus.Publish(ctx, eventbus.TopicLLMResponse, eventbus.LLMResponse{
		Provider:     g.provider.Name(),
		InputTokens:  usage.InputTokens,
		OutputTokens: usage.OutputTokens,
		Duration:     elapsed,
		Err:          err,
	})

	if err != nil {
		log.Printf("[llm] %s call failed after %s: %v", g.provider.Name(), elapsed.Round(time.Millisecond), err)
		return "", &TransportError{Provider: g.provider.Name(), Err: err}
	}
	return content, nil
}

func (g *Gateway) stream(ctx context.Context, req *ChatRequest) (string, Usage, error) {
	ch, err := g.provider.StreamChat(ctx, req)
	if err != nil {
		return "", Usage{}, err
	}

	var (
		sb    strings.Builder
		usage Usage
	)
	for evt := range ch {
		if evt.Error != nil {
			// Drain so the producer goroutine can exit.
			for range ch {
			}
			return "", Usage{}, evt.Error
		}
		sb.WriteString(evt.ContentDelta)
		if evt.Usage != nil {
			if evt.Usage.InputTokens > 0 {
				usage.InputTokens = evt.Usage.InputTokens
			}
			if evt.Usage.OutputTokens > 0 {
				usage.OutputTokens = evt.Usage.OutputTokens
			}
		}
	}
	if err := ctx.Err(); err != nil {
		return "", Usage{}, err
	}
	return sb.String(), usage, nil
}
