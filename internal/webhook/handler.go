package webhook

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"membersync/internal/telemetry"
)

// maxBodyBytes bounds webhook request bodies. WorkOS payloads are small;
// anything larger is not a legitimate delivery.
const maxBodyBytes = 1 << 20

// Handler is the HTTP entry point for webhook deliveries:
// verify -> decode -> dedupe -> dispatch -> ack.
type Handler struct {
	verifier   *Verifier
	dispatcher *Dispatcher
	seen       SeenStore
	metrics    *telemetry.Metrics
	emitter    telemetry.EventEmitter
	logger     *zap.Logger
}

// NewHandler returns the webhook HTTP handler. metrics and emitter may be nil.
func NewHandler(verifier *Verifier, dispatcher *Dispatcher, seen SeenStore, metrics *telemetry.Metrics, emitter telemetry.EventEmitter, logger *zap.Logger) *Handler {
	return &Handler{
		verifier:   verifier,
		dispatcher: dispatcher,
		seen:       seen,
		metrics:    metrics,
		emitter:    emitter,
		logger:     logger,
	}
}

// Handle processes one delivery. The body is buffered in full before any
// parsing: verification needs the exact raw bytes, and a re-serialized body
// would break the HMAC on key order or whitespace.
func (h *Handler) Handle(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}

	if err := h.verifier.Verify(body, c.GetHeader(SignatureHeader)); err != nil {
		h.logger.Warn("webhook rejected", zap.Error(err))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "signature verification failed"})
		return
	}

	ev, err := Decode(body)
	if err != nil {
		h.logger.Warn("webhook body unparseable", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed event"})
		return
	}

	if h.seen != nil && h.seen.Seen(ev.ID) {
		h.logger.Debug("duplicate delivery acknowledged", zap.String("id", ev.ID), zap.String("event", ev.Type))
		h.metrics.RecordEvent(c.Request.Context(), ev.Type, "duplicate")
		c.JSON(http.StatusOK, gin.H{"ok": true})
		return
	}

	outcome, err := h.dispatcher.Dispatch(c.Request.Context(), ev)
	if err != nil {
		if errors.Is(err, ErrBadPayload) {
			h.logger.Warn("webhook payload malformed", zap.String("event", ev.Type), zap.Error(err))
			h.metrics.RecordEvent(c.Request.Context(), ev.Type, "malformed")
			c.JSON(http.StatusBadRequest, gin.H{"error": "malformed event payload"})
			return
		}
		// Store or IdP failure: 500 tells the sender to redeliver; handlers
		// are idempotent so the retry is safe.
		h.logger.Error("webhook processing failed", zap.String("event", ev.Type), zap.String("id", ev.ID), zap.Error(err))
		h.metrics.RecordEvent(c.Request.Context(), ev.Type, "failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "processing failed"})
		return
	}

	if h.seen != nil {
		h.seen.MarkSeen(ev.ID)
	}
	h.metrics.RecordEvent(c.Request.Context(), ev.Type, string(outcome))
	telemetry.EmitAsync(h.emitter, h.logger, &telemetry.SyncEvent{
		ID:        uuid.New().String(),
		EventID:   ev.ID,
		EventType: ev.Type,
		Outcome:   string(outcome),
		At:        time.Now().UTC(),
	})

	c.JSON(http.StatusOK, gin.H{"ok": true})
}
