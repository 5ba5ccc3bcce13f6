package github

import (
	"context"
	"time"

	"github.com/google/go-github/v75/github"
	"github.com/m-mizutani/alertsync/pkg/domain/interfaces"
	"github.com/m-mizutani/alertsync/pkg/domain/model"
	"github.com/m-mizutani/alertsync/pkg/domain/types"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
)

// EventProcessor converts GitHub webhook deliveries into WebhookEvents
type EventProcessor struct {
	webhookUC interfaces.WebhookUseCase
	now       func() time.Time
}

// NewEventProcessor creates a new GitHub event processor
func NewEventProcessor(webhookUC interfaces.WebhookUseCase) *EventProcessor {
	return &EventProcessor{
		webhookUC: webhookUC,
		now:       time.Now,
	}
}

// ProcessEvent decodes a verified delivery and hands it to the webhook use case. A
// payload that does not decode is returned tagged types.ErrTagInvalidPayload.
func (p *EventProcessor) ProcessEvent(ctx context.Context, eventType, deliveryID string, body []byte) error {
	event, err := p.toWebhookEvent(ctx, eventType, deliveryID, body)
	if err != nil {
		return err
	}

	return p.webhookUC.ProcessEvent(ctx, event)
}

func (p *EventProcessor) toWebhookEvent(ctx context.Context, eventType, deliveryID string, body []byte) (*model.WebhookEvent, error) {
	event := &model.WebhookEvent{
		ID:         deliveryID,
		Type:       model.WebhookEventType(eventType),
		ReceivedAt: p.now(),
		RawPayload: body,
	}

	switch event.Type {
	case model.EventTypeRepositoryDispatch, model.EventTypePing:
	default:
		// decoding is skipped for events that are never acted on
		ctxlog.From(ctx).Debug("Ignoring payload of unsupported event", "event_type", eventType)
		event.Type = model.EventTypeUnknown
		return event, nil
	}

	payload, err := github.ParseWebHook(eventType, body)
	if err != nil {
		return nil, goerr.Wrap(err, "invalid webhook payload",
			goerr.V("event_type", eventType),
			goerr.V("delivery_id", deliveryID),
			goerr.T(types.ErrTagInvalidPayload),
		)
	}

	switch e := payload.(type) {
	case *github.RepositoryDispatchEvent:
		event.Action = e.GetAction()
		event.Repository = e.GetRepo().GetFullName()
		event.Sender = e.GetSender().GetLogin()
	case *github.PingEvent:
		ctxlog.From(ctx).Info("Received ping", "zen", e.GetZen(), "hook_id", e.GetHookID())
	}

	return event, nil
}
