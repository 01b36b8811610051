package agent

import (
	"context"
	"log"
	"time"
	"unicode/utf8"

	"polyagent/internal/llm"
	"polyagent/internal/reply"
	"polyagent/internal/security"
)

// Agent answers a query. Execute always returns text: either an answer or a
// failure rendered by ErrorAnswer.
type Agent interface {
	Name() string
	Execute(ctx context.Context, query string) string
}

// Completer sends one conversation with a system preamble and returns the raw reply.
// *llm.Gateway implements it.
type Completer interface {
	Complete(ctx context.Context, system string, conv []llm.Message) (string, error)
}

// AskJSON sends query as a single user message and decodes the JSON reply into T.
func AskJSON[T any](ctx context.Context, c Completer, system, query string) (T, error) {
	raw, err := c.Complete(ctx, system, []llm.Message{{Role: llm.RoleUser, Content: query}})
	if err != nil {
		var zero T
		return zero, err
	}
	return reply.Parse[T](raw)
}

// LogElapsed logs how long an agent's Execute took. Use as defer LogElapsed(name, time.Now()).
func LogElapsed(name string, start time.Time) {
	log.Printf("[agent] execution time for %s.Execute: %.6f seconds", name, time.Since(start).Seconds())
}

type piiKey struct{}

// WithSanitizer attaches the run's PII sanitizer to ctx so tools receive the
// original values behind placeholders.
func WithSanitizer(ctx context.Context, s *security.Sanitizer) context.Context {
	return context.WithValue(ctx, piiKey{}, s)
}

func sanitizerFrom(ctx context.Context) *security.Sanitizer {
	s, _ := ctx.Value(piiKey{}).(*security.Sanitizer)
	return s
}

// truncate cuts s to at most maxLen bytes on a rune boundary.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
