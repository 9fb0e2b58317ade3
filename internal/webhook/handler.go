package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"geoattend/internal/conversation"
	"geoattend/internal/metrics"
)

const maxBodyBytes = 1 << 20

// Engine consumes inbound messages.
type Engine interface {
	Handle(ctx context.Context, in conversation.Inbound) []conversation.Reply
}

// Replier delivers replies for an inbound event.
type Replier interface {
	Reply(ctx context.Context, replyToken string, replies []conversation.Reply) error
}

type payload struct {
	Destination string  `json:"destination"`
	Events      []event `json:"events"`
}

type event struct {
	Type           string `json:"type"`
	WebhookEventID string `json:"webhookEventId"`
	ReplyToken     string `json:"replyToken"`
	Source         struct {
		Type   string `json:"type"`
		UserID string `json:"userId"`
	} `json:"source"`
	Message *struct {
		ID        string  `json:"id"`
		Type      string  `json:"type"`
		Text      string  `json:"text"`
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	} `json:"message"`
}

// Handler receives chat platform webhooks.
type Handler struct {
	secret  []byte
	engine  Engine
	replier Replier
	dedup   Deduper
	metrics *metrics.Metrics
	log     *slog.Logger
}

// NewHandler builds a webhook handler. dedup, m and log may be nil.
func NewHandler(secret string, engine Engine, replier Replier, dedup Deduper, m *metrics.Metrics, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{
		secret:  []byte(secret),
		engine:  engine,
		replier: replier,
		dedup:   dedup,
		metrics: m,
		log:     log.With("component", "webhook"),
	}
}

// Register mounts the webhook route.
func (h *Handler) Register(r gin.IRoutes) {
	r.POST("/webhook", h.Receive)
}

// Receive verifies, decodes and dispatches one webhook delivery.
func (h *Handler) Receive(c *gin.Context) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.log.Warn("rejected oversized webhook", "limit", tooLarge.Limit)
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "payload too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "read body failed"})
		return
	}
	if err := Verify(h.secret, body, c.GetHeader(SignatureHeader)); err != nil {
		h.log.Warn("rejected webhook", "error", err)
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	var p payload
	if err := json.Unmarshal(body, &p); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	// the platform may drop the connection once it has our 200; finish the work anyway
	ctx := context.WithoutCancel(c.Request.Context())
	for _, evt := range p.Events {
		h.dispatch(ctx, evt)
	}
	c.String(http.StatusOK, "OK")
}

func (h *Handler) dispatch(ctx context.Context, evt event) {
	in, ok := toInbound(evt)
	if !ok {
		h.metrics.IncWebhookEvent("ignored")
		return
	}
	if h.dedup != nil && evt.WebhookEventID != "" {
		seen, err := h.dedup.Seen(ctx, evt.WebhookEventID)
		if err != nil {
			h.log.Warn("dedup check failed", "error", err)
		} else if seen {
			h.metrics.IncWebhookEvent("duplicate")
			return
		}
	}
	h.metrics.IncWebhookEvent(evt.Message.Type)

	replies := h.engine.Handle(ctx, in)
	if len(replies) == 0 || h.replier == nil {
		return
	}
	if err := h.replier.Reply(ctx, evt.ReplyToken, replies); err != nil {
		h.log.Error("reply failed", "participant", in.Participant, "error", err)
	}
}

func toInbound(evt event) (conversation.Inbound, bool) {
	if evt.Type != "message" || evt.Message == nil || evt.Source.UserID == "" {
		return conversation.Inbound{}, false
	}
	switch evt.Message.Type {
	case "text":
		return conversation.TextMessage(evt.Source.UserID, evt.Message.Text), true
	case "location":
		return conversation.LocationMessage(evt.Source.UserID, evt.Message.Latitude, evt.Message.Longitude), true
	default:
		return conversation.Inbound{}, false
	}
}
