package llm

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
)

// FallbackProvider tries providers in order and moves to the next one when a call
// fails for a reason another backend might not share.
type FallbackProvider struct {
	providers []Provider
}

// NewFallbackProvider chains providers; the first one is the primary.
func NewFallbackProvider(providers ...Provider) *FallbackProvider {
	return &FallbackProvider{providers: providers}
}

func (f *FallbackProvider) Name() string {
	if len(f.providers) == 0 {
		return "fallback"
	}
	names := make([]string, len(f.providers))
	for i, p := range f.providers {
		names[i] = p.Name()
	}
	return strings.Join(names, "+")
}

func (f *FallbackProvider) DefaultModel() string {
	if len(f.providers) == 0 {
		return ""
	}
	return f.providers[0].DefaultModel()
}

func (f *FallbackProvider) Chat(ctx context.Context, req *ChatRequest) (*LLMResponse, error) {
	return try(ctx, f.providers, func(p Provider) (*LLMResponse, error) {
		return p.Chat(ctx, req)
	})
}

func (f *FallbackProvider) StreamChat(ctx context.Context, req *ChatRequest) (<-chan StreamEvent, error) {
	return try(ctx, f.providers, func(p Provider) (<-chan StreamEvent, error) {
		return p.StreamChat(ctx, req)
	})
}

// try calls fn on each provider until one succeeds. When every provider fails the
// errors are joined, primary first.
func try[T any](ctx context.Context, providers []Provider, fn func(Provider) (T, error)) (T, error) {
	var (
		zero T
		errs []error
	)
	if len(providers) == 0 {
		return zero, errors.New("no providers configured")
	}
	for i, p := range providers {
		out, err := fn(p)
		if err == nil {
			if i > 0 {
				log.Printf("[llm] served by fallback %s", p.Name())
			}
			return out, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
		if !shouldFallBack(ctx, err) {
			break
		}
		if i < len(providers)-1 {
			log.Printf("[llm] provider %s failed: %v, trying next", p.Name(), err)
		}
	}
	if len(errs) == 1 {
		return zero, errors.Unwrap(errs[0])
	}
	return zero, errors.Join(errs...)
}

// shouldFallBack reports whether another provider could succeed where this one failed.
// A cancelled caller or a rejected request would fail the same way everywhere.
func shouldFallBack(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	var llmErr *LLMError
	if errors.As(err, &llmErr) && llmErr.Type == ErrorInvalidInput {
		return false
	}
	return true
}
