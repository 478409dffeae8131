// Package webhook exposes the Meta WhatsApp webhook over HTTP: the GET
// verification handshake and the POST message intake that feeds the agent.
package webhook

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog/log"

	contractx "github.com/smate-ai/smate-agent/agent/contract"
)

type Config struct {
	ListenAddr  string        `envconfig:"LISTEN_ADDR" split_words:"true" default:":8080"`
	VerifyToken string        `envconfig:"VERIFY_TOKEN" split_words:"true" required:"true"`
	DedupeTTL   time.Duration `envconfig:"DEDUPE_TTL" split_words:"true" default:"10m"`
}

// Responder produces the assistant reply for one inbound message.
type Responder interface {
	HandleMessage(ctx context.Context, correspondentID, text string) (string, error)
}

// Sender delivers outbound text back to the correspondent.
type Sender interface {
	SendText(ctx context.Context, to, body string) (string, error)
}

type Handler struct {
	cfg    Config
	agent  Responder
	sender Sender

	mu        sync.Mutex
	seen      map[string]time.Time
	lastSweep time.Time
	now       func() time.Time
}

func NewHandler(cfg Config, agent Responder, sender Sender) *Handler {
	if cfg.DedupeTTL <= 0 {
		cfg.DedupeTTL = 10 * time.Minute
	}
	return &Handler{
		cfg:    cfg,
		agent:  agent,
		sender: sender,
		seen:   make(map[string]time.Time),
		now:    time.Now,
	}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/webhook", h.Verify)
	e.POST("/webhook", h.Receive)
}

// NewServer builds the echo instance with the routes and middleware wired.
func NewServer(h *Handler) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	h.RegisterRoutes(e)
	return e
}

// Verify answers the subscription handshake Meta performs when the webhook
// URL is registered. The challenge is echoed back verbatim on a token match.
func (h *Handler) Verify(c echo.Context) error {
	mode := c.QueryParam("hub.mode")
	token := c.QueryParam("hub.verify_token")
	challenge := c.QueryParam("hub.challenge")

	if mode == "subscribe" && token == h.cfg.VerifyToken {
		return c.String(http.StatusOK, challenge)
	}
	return c.NoContent(http.StatusForbidden)
}

// Inbound envelope, trimmed to the fields the agent consumes.
type notification struct {
	Entry []struct {
		Changes []struct {
			Value struct {
				Messages []inboundMessage `json:"messages"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

type inboundMessage struct {
	ID   string `json:"id"`
	From string `json:"from"`
	Type string `json:"type"`
	Text struct {
		Body string `json:"body"`
	} `json:"text"`
}

// Receive ingests a webhook delivery. Meta retries on non-2xx, so the
// handler acknowledges every well-formed envelope even when processing a
// message inside it fails.
func (h *Handler) Receive(c echo.Context) error {
	var n notification
	if err := c.Bind(&n); err != nil {
		return c.NoContent(http.StatusBadRequest)
	}

	ctx := c.Request().Context()
	for _, entry := range n.Entry {
		for _, change := range entry.Changes {
			for _, msg := range change.Value.Messages {
				h.process(ctx, msg)
			}
		}
	}
	return c.NoContent(http.StatusOK)
}

func (h *Handler) process(ctx context.Context, msg inboundMessage) {
	if msg.Type != "text" || strings.TrimSpace(msg.Text.Body) == "" {
		return
	}
	// Meta redelivers on slow acks; a message id is handled once per TTL.
	if !h.firstDelivery(msg.ID) {
		log.Debug().Str("message_id", msg.ID).Msg("duplicate delivery dropped")
		return
	}

	reply, err := h.agent.HandleMessage(ctx, msg.From, msg.Text.Body)
	if err != nil {
		if errors.Is(err, contractx.ErrRateLimited) {
			log.Debug().Str("from", msg.From).Msg("inbound message rate limited")
			return
		}
		log.Error().Err(err).Str("from", msg.From).Msg("handle inbound message")
		return
	}
	if reply == "" {
		return
	}

	if _, err := h.sender.SendText(ctx, msg.From, reply); err != nil {
		log.Error().Err(err).Str("to", msg.From).Msg("send reply")
	}
}

func (h *Handler) firstDelivery(id string) bool {
	if id == "" {
		return true
	}
	now := h.now()

	h.mu.Lock()
	defer h.mu.Unlock()

	if now.Sub(h.lastSweep) >= h.cfg.DedupeTTL {
		for k, t := range h.seen {
			if now.Sub(t) >= h.cfg.DedupeTTL {
				delete(h.seen, k)
			}
		}
		h.lastSweep = now
	}

	if _, ok := h.seen[id]; ok {
		return false
	}
	h.seen[id] = now
	return true
}
