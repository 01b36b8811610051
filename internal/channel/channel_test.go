package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChannel struct {
	name     string
	startErr error
	running  bool
	log      *[]string
	handler  Handler
	sent     []OutboundMessage
}

func (f *fakeChannel) Name() string { return f.name }
func (f *fakeChannel) Start(context.Context) error {
	if f.startErr != nil {
		return f.startErr
	}
	f.running = true
	*f.log = append(*f.log, "start "+f.name)
	return nil
}
func (f *fakeChannel) Stop(context.Context) error {
	f.running = false
	*f.log = append(*f.log, "stop "+f.name)
	return nil
}
func (f *fakeChannel) Send(_ context.Context, msg OutboundMessage) error {
	f.sent = append(f.sent, msg)
	return nil
}
func (f *fakeChannel) OnMessage(h Handler) { f.handler = h }
func (f *fakeChannel) IsRunning() bool     { return f.running }

func TestManagerOrder(t *testing.T) {
	var log []string
	m := NewManager()
	m.Register(&fakeChannel{name: "console", log: &log})
	m.Register(&fakeChannel{name: "telegram", log: &log})

	require.NoError(t, m.StartAll(context.Background()))
	m.StopAll(context.Background())

	assert.Equal(t, []string{"start console", "start telegram", "stop telegram", "stop console"}, log)
	assert.Equal(t, []string{"console", "telegram"}, m.Names())
	assert.Equal(t, map[string]bool{"console": false, "telegram": false}, m.List())
}

func TestManagerRollsBackOnStartFailure(t *testing.T) {
	var log []string
	m := NewManager()
	m.Register(&fakeChannel{name: "console", log: &log})
	m.Register(&fakeChannel{name: "http", log: &log, startErr: errors.New("port in use")})

	err := m.StartAll(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "start http")
	assert.Equal(t, []string{"start console", "stop console"}, log)
}

func TestManagerReplaceKeepsPosition(t *testing.T) {
	var log []string
	m := NewManager()
	m.Register(&fakeChannel{name: "console", log: &log})
	m.Register(&fakeChannel{name: "http", log: &log})
	replacement := &fakeChannel{name: "console", log: &log}
	m.Register(replacement)

	assert.Equal(t, []string{"console", "http"}, m.Names())
	ch, ok := m.Get("console")
	require.True(t, ok)
	assert.Same(t, replacement, ch)
}

func TestManagerListenAndSend(t *testing.T) {
	var log []string
	tg := &fakeChannel{name: "telegram", log: &log}
	m := NewManager()
	m.Register(tg)

	var got []InboundMessage
	m.Listen(func(msg InboundMessage) { got = append(got, msg) })
	tg.handler(InboundMessage{ChatID: "42", Text: "hi"})

	require.Len(t, got, 1)
	assert.Equal(t, "telegram", got[0].ChannelName)
	assert.Equal(t, "telegram:42", got[0].Conversation())

	require.NoError(t, m.Send(context.Background(), "telegram", OutboundMessage{ChatID: "42", Text: "hello"}))
	assert.Equal(t, []OutboundMessage{{ChatID: "42", Text: "hello"}}, tg.sent)
	assert.Error(t, m.Send(context.Background(), "fax", OutboundMessage{}))
}

// syncBuffer guards a bytes.Buffer shared with the read loop.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestConsoleChannel(t *testing.T) {
	out := &syncBuffer{}
	c := NewConsoleChannelWith(strings.NewReader("hello\n\nsecond line\n"), out)

	var mu sync.Mutex
	var got []InboundMessage
	c.OnMessage(func(m InboundMessage) {
		mu.Lock()
		got = append(got, m)
		mu.Unlock()
	})
	require.NoError(t, c.Start(context.Background()))

	select {
	case <-c.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("console did not finish reading")
	}

	mu.Lock()
	require.Len(t, got, 2)
	assert.Equal(t, "hello", got[0].Text)
	assert.Equal(t, "console", got[1].ChatID)
	mu.Unlock()

	require.NoError(t, c.Send(context.Background(), OutboundMessage{ChatID: "console", Text: "hi"}))
	assert.Contains(t, out.String(), "[polyagent]: hi")
	assert.NotEqual(t, got[0].MessageID, got[1].MessageID)

	require.NoError(t, c.Send(context.Background(), OutboundMessage{Text: "Which city?", Kind: KindClarification}))
	assert.Contains(t, out.String(), "[polyagent?]: Which city?")
}

func TestTelegramSendOptions(t *testing.T) {
	opts := sendOptions(OutboundMessage{ReplyTo: "17", Kind: KindClarification}, true, true)
	require.NotNil(t, opts.ReplyTo)
	assert.Equal(t, 17, opts.ReplyTo.ID)
	require.NotNil(t, opts.ReplyMarkup)
	assert.True(t, opts.ReplyMarkup.ForceReply)

	opts = sendOptions(OutboundMessage{ReplyTo: "17", Kind: KindClarification}, false, false)
	assert.Nil(t, opts.ReplyTo)
	assert.Nil(t, opts.ReplyMarkup)

	opts = sendOptions(OutboundMessage{ReplyTo: "not-a-number"}, true, true)
	assert.Nil(t, opts.ReplyTo)
	assert.Nil(t, opts.ReplyMarkup)
}

func TestSplitMessage(t *testing.T) {
	assert.Equal(t, []string{"abc", "def", "g"}, splitMessage("abcdefg", 3))
	assert.Nil(t, splitMessage("", 3))

	// "é" is two bytes and must not be cut in half.
	chunks := splitMessage("aéé", 2)
	assert.Equal(t, "aéé", strings.Join(chunks, ""))
	for _, c := range chunks {
		assert.True(t, utf8.ValidString(c), c)
	}
}

func TestHTTPAsk(t *testing.T) {
	var gotAgent, gotQuery string
	h := NewHTTPChannel(HTTPConfig{}, func(ctx context.Context, agentName, query string) (AskResponse, error) {
		if agentName == "Nope" {
			return AskResponse{}, errors.New(`unknown agent "Nope"`)
		}
		gotAgent, gotQuery = agentName, query
		return AskResponse{RunID: "r1", Agent: "ToolAgent", Answer: "92.00 EUR"}, nil
	})

	do := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/v1/ask", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		h.Handler().ServeHTTP(rec, req)
		return rec
	}

	rec := do(`{"query": " Convert 100 USD to EUR ", "agent": "ToolAgent"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp AskResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, AskResponse{RunID: "r1", Agent: "ToolAgent", Answer: "92.00 EUR"}, resp)
	assert.Equal(t, "ToolAgent", gotAgent)
	assert.Equal(t, "Convert 100 USD to EUR", gotQuery)

	assert.Equal(t, http.StatusBadRequest, do(`{"query": ""}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(`{not json`).Code)

	rec = do(`{"query": "x", "agent": "Nope"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "unknown agent")
}

func TestHTTPHealthAndMetrics(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { io.WriteString(w, "metric 1\n") })
	h := NewHTTPChannel(HTTPConfig{Metrics: metrics}, nil)

	rec := httptest.NewRecorder()
	h.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, "ok", rec.Body.String())

	rec = httptest.NewRecorder()
	h.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, "metric 1\n", rec.Body.String())

	assert.ErrorIs(t, h.Send(context.Background(), OutboundMessage{}), ErrInlineOnly)
}

func TestHTTPStartStop(t *testing.T) {
	h := NewHTTPChannel(HTTPConfig{Addr: "127.0.0.1:0"}, nil)
	require.NoError(t, h.Start(context.Background()))
	assert.True(t, h.IsRunning())

	var resp *http.Response
	var err error
	for i := 0; i < 50; i++ {
		resp, err = http.Get("http://" + h.Addr().String() + "/healthz")
		if err == nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, h.Stop(context.Background()))
	assert.False(t, h.IsRunning())
}
