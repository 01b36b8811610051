package channel

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// ErrInlineOnly is returned by HTTPChannel.Send: answers go back on the request itself.
var ErrInlineOnly = errors.New("http channel answers inline and cannot push messages")

// AskRequest is the body of POST /v1/ask.
type AskRequest struct {
	Query string `json:"query"`
	Agent string `json:"agent,omitempty"`
}

// AskResponse is the reply of POST /v1/ask.
type AskResponse struct {
	RunID  string `json:"run_id"`
	Agent  string `json:"agent"`
	Answer string `json:"answer"`
	Failed bool   `json:"failed"`
}

// AskFunc answers one query with the named agent ("" selects the default).
// A returned error means the request itself was invalid.
type AskFunc func(ctx context.Context, agentName, query string) (AskResponse, error)

// HTTPConfig holds HTTP-specific configuration.
type HTTPConfig struct {
	Addr string
	// Metrics, when set, is served on GET /metrics.
	Metrics http.Handler
}

// HTTPChannel exposes agents over a small JSON API.
type HTTPChannel struct {
	mu      sync.Mutex
	cfg     HTTPConfig
	ask     AskFunc
	echo    *echo.Echo
	addr    net.Addr
	running bool
}

// NewHTTPChannel creates the HTTP channel. Requests are answered by ask.
func NewHTTPChannel(cfg HTTPConfig, ask AskFunc) *HTTPChannel {
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:8080"
	}
	h := &HTTPChannel{cfg: cfg, ask: ask}
	h.echo = h.routes()
	return h
}

func (h *HTTPChannel) routes() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit("1M"))

	logger := log.New(log.Writer(), "[http] ", log.LstdFlags)
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		var he *echo.HTTPError
		if errors.As(err, &he) {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		logger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, map[string]string{"error": msg})
		}
	}

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	if h.cfg.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(h.cfg.Metrics))
	}
	e.POST("/v1/ask", h.handleAsk)
	return e
}

func (h *HTTPChannel) handleAsk(c echo.Context) error {
	var req AskRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid JSON body")
	}
	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query is required")
	}

	resp, err := h.ask(c.Request().Context(), req.Agent, req.Query)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, resp)
}

// Handler returns the router, for tests and embedding.
func (h *HTTPChannel) Handler() http.Handler { return h.echo }

func (h *HTTPChannel) Name() string { return "http" }

func (h *HTTPChannel) Start(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.running {
		return nil
	}

	ln, err := net.Listen("tcp", h.cfg.Addr)
	if err != nil {
		return fmt.Errorf("http listen: %w", err)
	}
	h.echo.Listener = ln
	h.addr = ln.Addr()
	h.running = true

	go func() {
		if err := h.echo.Start(""); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("[http] server error: %v", err)
		}
	}()
	go func() {
		<-ctx.Done()
		_ = h.Stop(context.Background())
	}()

	log.Printf("[http] listening on %s", h.addr)
	return nil
}

func (h *HTTPChannel) Stop(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.running {
		return nil
	}
	h.running = false
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return h.echo.Shutdown(ctx)
}

// Addr returns the bound address once started.
func (h *HTTPChannel) Addr() net.Addr {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.addr
}

func (h *HTTPChannel) Send(context.Context, OutboundMessage) error { return ErrInlineOnly }

// OnMessage is a no-op: requests are routed to the AskFunc given at construction.
func (h *HTTPChannel) OnMessage(Handler) {}

func (h *HTTPChannel) IsRunning() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.running
}
