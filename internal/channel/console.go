package channel

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	consoleChat   = "console"
	consolePrompt = "> "
)

// ConsoleChannel reads one query per line from in and writes replies to out.
// Done is closed when in is exhausted.
type ConsoleChannel struct {
	mu      sync.Mutex
	in      io.Reader
	out     io.Writer
	handler Handler
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
	seq     int
}

func NewConsoleChannel() *ConsoleChannel {
	return NewConsoleChannelWith(os.Stdin, os.Stdout)
}

// NewConsoleChannelWith binds the console to explicit streams.
func NewConsoleChannelWith(in io.Reader, out io.Writer) *ConsoleChannel {
	return &ConsoleChannel{in: in, out: out, done: make(chan struct{})}
}

func (c *ConsoleChannel) Name() string { return consoleChat }

func (c *ConsoleChannel) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return nil
	}

	ctx, c.cancel = context.WithCancel(ctx)
	c.running = true
	go c.readLoop(ctx)
	return nil
}

func (c *ConsoleChannel) Stop(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
	}
	c.running = false
	return nil
}

// Send prints an answer, or a question marked with "?" that the next line answers.
func (c *ConsoleChannel) Send(_ context.Context, msg OutboundMessage) error {
	label := "[polyagent]"
	if msg.Kind == KindClarification {
		label = "[polyagent?]"
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := fmt.Fprintf(c.out, "\n%s: %s\n\n%s", label, msg.Text, consolePrompt)
	return err
}

func (c *ConsoleChannel) OnMessage(handler Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handler = handler
}

func (c *ConsoleChannel) IsRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Done is closed when the input reaches EOF.
func (c *ConsoleChannel) Done() <-chan struct{} { return c.done }

func (c *ConsoleChannel) prompt() {
	c.mu.Lock()
	fmt.Fprint(c.out, consolePrompt)
	c.mu.Unlock()
}

func (c *ConsoleChannel) readLoop(ctx context.Context) {
	defer close(c.done)

	c.prompt()
	scanner := bufio.NewScanner(c.in)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			c.prompt()
			continue
		}

		c.mu.Lock()
		handler := c.handler
		c.seq++
		id := strconv.Itoa(c.seq)
		c.mu.Unlock()

		if handler != nil {
			handler(InboundMessage{
				ChannelName: consoleChat,
				SenderID:    "local",
				SenderName:  "User",
				ChatID:      consoleChat,
				MessageID:   id,
				Text:        text,
				Timestamp:   time.Now(),
			})
		}
	}
}
