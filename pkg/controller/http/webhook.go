package http

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/m-mizutani/alertsync/pkg/domain/types"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
)

// maxPayloadSize is the largest delivery GitHub sends (25MB)
const maxPayloadSize = 25 << 20

// EventProcessor handles a verified webhook delivery
type EventProcessor interface {
	ProcessEvent(ctx context.Context, eventType, deliveryID string, body []byte) error
}

// WebhookHandler handles GitHub webhooks
type WebhookHandler struct {
	secret    string
	processor EventProcessor
}

// NewWebhookHandler creates a new WebhookHandler
func NewWebhookHandler(secret string, processor EventProcessor) *WebhookHandler {
	return &WebhookHandler{
		secret:    secret,
		processor: processor,
	}
}

// Handle processes webhook requests
func (h *WebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := ctxlog.From(ctx)

	// Read payload
	body, err := io.ReadAll(io.LimitReader(r.Body, maxPayloadSize))
	if err != nil {
		logger.Error("Failed to read request body", "error", err)
		writeError(w, goerr.Wrap(err, "failed to read request body"), http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	// Verify signature
	signature := r.Header.Get("X-Hub-Signature-256")
	if !h.verifySignature(body, signature) {
		logger.Warn("Invalid webhook signature")
		writeError(w, goerr.New("invalid signature"), http.StatusUnauthorized)
		return
	}

	eventType := r.Header.Get("X-GitHub-Event")
	deliveryID := r.Header.Get("X-GitHub-Delivery")
	if eventType == "" {
		writeError(w, goerr.New("missing X-GitHub-Event header"), http.StatusBadRequest)
		return
	}

	if err := h.processor.ProcessEvent(ctx, eventType, deliveryID, body); err != nil {
		status := http.StatusInternalServerError
		if goerr.HasTag(err, types.ErrTagInvalidPayload) || goerr.HasTag(err, types.ErrTagInvalidConfig) {
			status = http.StatusBadRequest
		}
		logger.Error("Failed to process webhook event", "error", err, "delivery_id", deliveryID)
		writeError(w, err, status)
		return
	}

	// Success response
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(map[string]string{
		"status": "success",
	}); err != nil {
		logger.Error("Failed to encode success response", "error", err)
	}
}

// verifySignature verifies the webhook signature
func (h *WebhookHandler) verifySignature(payload []byte, signature string) bool {
	if signature == "" || h.secret == "" {
		return false
	}

	signature = strings.TrimPrefix(signature, "sha256=")

	mac := hmac.New(sha256.New, []byte(h.secret))
	mac.Write(payload)
	expectedMAC := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(signature), []byte(expectedMAC))
}
