package channel

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	tele "gopkg.in/telebot.v3"

	"polyagent/internal/security"
)

const (
	// Telegram rejects messages over 4096 characters.
	telegramChunk = 4000
	telegramGreet = "Hi! Ask me anything: currency, weather, countries, web lookups or a blog post."
)

// TelegramChannel receives queries from a Telegram bot over long polling.
// Only users in AllowedIDs are served when the list is non-empty.
type TelegramChannel struct {
	mu      sync.Mutex
	token   string
	poll    time.Duration
	auth    *security.Authorizer
	bot     *tele.Bot
	handler Handler
	stop    context.CancelFunc
}

// TelegramConfig holds Telegram-specific configuration.
type TelegramConfig struct {
	Token      string
	AllowedIDs []int64
	// PollTimeout defaults to 10s.
	PollTimeout time.Duration
}

func NewTelegramChannel(cfg TelegramConfig) *TelegramChannel {
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 10 * time.Second
	}
	return &TelegramChannel{
		token: cfg.Token,
		poll:  cfg.PollTimeout,
		auth:  security.NewAuthorizer(cfg.AllowedIDs),
	}
}

func (t *TelegramChannel) Name() string { return "telegram" }

func (t *TelegramChannel) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stop != nil {
		return nil
	}

	bot, err := tele.NewBot(tele.Settings{
		Token:  t.token,
		Poller: &tele.LongPoller{Timeout: t.poll},
		OnError: func(err error, c tele.Context) {
			log.Printf("[telegram] handler error: %v", err)
		},
	})
	if err != nil {
		return fmt.Errorf("telegram bot init: %w", err)
	}

	bot.Handle("/start", func(c tele.Context) error {
		if !t.auth.IsAllowed(c.Sender().ID) {
			return nil
		}
		return c.Send(telegramGreet)
	})
	bot.Handle(tele.OnText, t.onText)

	ctx, cancel := context.WithCancel(ctx)
	t.bot = bot
	t.stop = cancel

	go bot.Start()
	go func() {
		<-ctx.Done()
		bot.Stop()
	}()

	log.Printf("[telegram] polling as @%s", bot.Me.Username)
	return nil
}

func (t *TelegramChannel) onText(c tele.Context) error {
	sender := c.Sender()
	if !t.auth.IsAllowed(sender.ID) {
		log.Printf("[telegram] ignoring unauthorized user %d (%s)", sender.ID, sender.Username)
		return nil
	}

	t.mu.Lock()
	handler := t.handler
	t.mu.Unlock()
	if handler == nil {
		return nil
	}

	// The typing indicator is cosmetic; a failure is not worth surfacing.
	_ = c.Notify(tele.Typing)

	handler(InboundMessage{
		ChannelName: t.Name(),
		SenderID:    strconv.FormatInt(sender.ID, 10),
		SenderName:  strings.TrimSpace(sender.FirstName + " " + sender.LastName),
		ChatID:      strconv.FormatInt(c.Chat().ID, 10),
		MessageID:   strconv.Itoa(c.Message().ID),
		Text:        c.Text(),
		Timestamp:   c.Message().Time(),
	})
	return nil
}

func (t *TelegramChannel) Stop(_ context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stop != nil {
		t.stop()
		t.stop = nil
	}
	return nil
}

// Send replies in the chat. Long text is split; a clarification asks Telegram for a
// forced reply so the user's answer lands in the same thread.
func (t *TelegramChannel) Send(_ context.Context, msg OutboundMessage) error {
	t.mu.Lock()
	bot := t.bot
	t.mu.Unlock()
	if bot == nil {
		return fmt.Errorf("telegram bot not started")
	}

	chatID, err := strconv.ParseInt(msg.ChatID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid chat ID %q: %w", msg.ChatID, err)
	}

	chunks := splitMessage(msg.Text, telegramChunk)
	for i, chunk := range chunks {
		opts := sendOptions(msg, i == 0, i == len(chunks)-1)
		if _, err := bot.Send(&tele.Chat{ID: chatID}, chunk, opts); err != nil {
			return fmt.Errorf("telegram send: %w", err)
		}
	}
	return nil
}

func sendOptions(msg OutboundMessage, first, last bool) *tele.SendOptions {
	opts := &tele.SendOptions{DisableWebPagePreview: true}
	if first && msg.ReplyTo != "" {
		if id, err := strconv.Atoi(msg.ReplyTo); err == nil {
			opts.ReplyTo = &tele.Message{ID: id}
		}
	}
	if last && msg.Kind == KindClarification {
		opts.ReplyMarkup = &tele.ReplyMarkup{ForceReply: true}
	}
	return opts
}

// splitMessage cuts text into pieces of at most size bytes without splitting a UTF-8 sequence.
func splitMessage(text string, size int) []string {
	var chunks []string
	for len(text) > size {
		cut := size
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		if cut == 0 {
			cut = size
		}
		chunks = append(chunks, text[:cut])
		text = text[cut:]
	}
	if text != "" {
		chunks = append(chunks, text)
	}
	return chunks
}

func (t *TelegramChannel) OnMessage(handler Handler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handler = handler
}

func (t *TelegramChannel) IsRunning() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stop != nil
}
