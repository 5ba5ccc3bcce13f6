package model

import "time"

// WebhookEventType represents the type of webhook event received
type WebhookEventType string

const (
	EventTypeRepositoryDispatch WebhookEventType = "repository_dispatch"
	EventTypePing               WebhookEventType = "ping"
	EventTypeUnknown            WebhookEventType = "unknown"
)

// DispatchActionSecurityCheck is the repository_dispatch action that triggers a run
const DispatchActionSecurityCheck = "security-check"

// WebhookEvent represents a webhook event received from GitHub
type WebhookEvent struct {
	ID         string           // Retrieved from X-GitHub-Delivery header
	Type       WebhookEventType // Retrieved from X-GitHub-Event header
	Action     string           // Event action (e.g., security-check)
	Repository string           // Repository full name
	Sender     string           // Sender username
	ReceivedAt time.Time        // Time when the event was received
	RawPayload []byte           // Raw JSON payload
}

// TriggersReconciliation reports whether the event requests a reconciliation run
func (e *WebhookEvent) TriggersReconciliation() bool {
	return e.Type == EventTypeRepositoryDispatch && e.Action == DispatchActionSecurityCheck
}

// IsSupportedEvent checks if the event is supported
func (e *WebhookEvent) IsSupportedEvent() bool {
	switch e.Type {
	case EventTypePing:
		return true
	case EventTypeRepositoryDispatch:
		return e.TriggersReconciliation()
	default:
		return false
	}
}
