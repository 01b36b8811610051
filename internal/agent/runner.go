package agent

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"polyagent/internal/channel"
	"polyagent/internal/config"
	"polyagent/internal/eventbus"
	"polyagent/internal/security"
)

// DefaultClarifyTimeout bounds how long a channel run waits for the user's answer.
const DefaultClarifyTimeout = 5 * time.Minute

// ErrClarificationTimeout is returned when the user does not answer a clarifying question in time.
var ErrClarificationTimeout = errors.New("no answer to the clarifying question")

// RunOptions describe where a query came from.
type RunOptions struct {
	Channel   string
	ChatID    string
	Clarifier Clarifier
}

// Result is the outcome of one run.
type Result struct {
	RunID  string
	Agent  string
	Answer string
	Failed bool
}

// Runner gives every query a run id, builds the requested agent, and routes channel
// messages, including the answers to clarifying questions.
type Runner struct {
	factory        *Factory
	defaultAgent   string
	bus            *eventbus.Bus
	sanitizer      *security.Sanitizer
	chanMgr        *channel.Manager
	clarifyTimeout time.Duration

	mu      sync.Mutex
	pending map[string]chan string
	wg      sync.WaitGroup
}

// NewRunner creates a runner. sanitizer and chanMgr may be nil.
func NewRunner(factory *Factory, defaultAgent string, bus *eventbus.Bus, sanitizer *security.Sanitizer, chanMgr *channel.Manager) *Runner {
	if sanitizer == nil {
		sanitizer = security.NewSanitizer(config.PIIFilterConfig{})
	}
	if chanMgr == nil {
		chanMgr = channel.NewManager()
	}
	return &Runner{
		factory:        factory,
		defaultAgent:   defaultAgent,
		bus:            bus,
		sanitizer:      sanitizer,
		chanMgr:        chanMgr,
		clarifyTimeout: DefaultClarifyTimeout,
		pending:        make(map[string]chan string),
	}
}

// Ask answers query with the named agent, or the default agent when name is empty.
// The error is non-nil only when the agent does not exist; failures during the run
// are reported in the answer text.
func (r *Runner) Ask(ctx context.Context, name, query string, opts RunOptions) (Result, error) {
	if name == "" {
		name = r.defaultAgent
	}
	a, err := r.factory.New(name)
	if err != nil {
		return Result{}, err
	}

	start := time.Now()
	res := Result{RunID: uuid.NewString(), Agent: a.Name()}
	ctx = eventbus.WithRunID(ctx, res.RunID)

	// PII is replaced before anything reaches a provider and put back into the answer.
	pii := r.sanitizer.Fork()
	ctx = WithSanitizer(ctx, pii)
	if opts.Clarifier != nil {
		ctx = WithClarifier(ctx, sanitizingClarifier(opts.Clarifier, pii))
	}

	log.Printf("[agent] run %s: %s handling %q", res.RunID, a.Name(), truncate(query, 100))
	res.Answer = pii.Restore(a.Execute(ctx, pii.Sanitize(query)))
	res.Failed = IsErrorAnswer(res.Answer)

	r.bus.Publish(ctx, eventbus.TopicRunFinished, eventbus.RunFinished{
		Channel:  opts.Channel,
		ChatID:   opts.ChatID,
		Agent:    a.Name(),
		Query:    query,
		Answer:   res.Answer,
		Failed:   res.Failed,
		Duration: time.Since(start),
	})
	return res, nil
}

func sanitizingClarifier(c Clarifier, pii *security.Sanitizer) Clarifier {
	return ClarifierFunc(func(ctx context.Context, question string) (string, error) {
		answer, err := c.Clarify(ctx, pii.Restore(question))
		if err != nil {
			return "", err
		}
		return pii.Sanitize(answer), nil
	})
}

// Start begins serving inbound messages from every registered channel.
func (r *Runner) Start(ctx context.Context) {
	r.chanMgr.Listen(func(msg channel.InboundMessage) {
		r.handleMessage(ctx, msg)
	})
	log.Printf("[agent] listening on %v", r.chanMgr.Names())
}

// Wait blocks until every in-flight channel run has finished.
func (r *Runner) Wait() { r.wg.Wait() }

// handleMessage hands msg to a run waiting for a clarification from the same chat,
// or starts a new run.
func (r *Runner) handleMessage(ctx context.Context, msg channel.InboundMessage) {
	key := msg.Conversation()

	r.mu.Lock()
	wait, ok := r.pending[key]
	if ok {
		delete(r.pending, key)
	}
	r.mu.Unlock()
	if ok {
		wait <- msg.Text
		return
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.serve(ctx, msg)
	}()
}

func (r *Runner) serve(ctx context.Context, msg channel.InboundMessage) {
	log.Printf("[agent] processing message from %s (%s): %s", msg.SenderName, msg.ChannelName, truncate(msg.Text, 100))

	res, err := r.Ask(ctx, "", msg.Text, RunOptions{
		Channel:   msg.ChannelName,
		ChatID:    msg.ChatID,
		Clarifier: r.channelClarifier(msg),
	})
	answer := res.Answer
	if err != nil {
		log.Printf("[agent] error processing message: %v", err)
		answer = "Sorry, I encountered an error processing your message. Please try again."
		r.bus.Publish(ctx, eventbus.TopicError, err)
	}

	reply := channel.OutboundMessage{ChatID: msg.ChatID, Text: answer, ReplyTo: msg.MessageID}
	if err := r.chanMgr.Send(ctx, msg.ChannelName, reply); err != nil {
		log.Printf("[agent] error sending response: %v", err)
	}
}

// channelClarifier asks in the chat and takes the next message from it as the answer.
func (r *Runner) channelClarifier(origin channel.InboundMessage) Clarifier {
	key := origin.Conversation()
	return ClarifierFunc(func(ctx context.Context, question string) (string, error) {
		wait := make(chan string, 1)
		r.mu.Lock()
		r.pending[key] = wait
		r.mu.Unlock()
		defer func() {
			r.mu.Lock()
			if r.pending[key] == wait {
				delete(r.pending, key)
			}
			r.mu.Unlock()
		}()

		q := channel.OutboundMessage{ChatID: origin.ChatID, Text: question, Kind: channel.KindClarification}
		if err := r.chanMgr.Send(ctx, origin.ChannelName, q); err != nil {
			return "", err
		}

		timer := time.NewTimer(r.clarifyTimeout)
		defer timer.Stop()
		select {
		case answer := <-wait:
			return answer, nil
		case <-timer.C:
			return "", ErrClarificationTimeout
		case <-ctx.Done():
			return "", ctx.Err()
		}
	})
}
