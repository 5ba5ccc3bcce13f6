package usecase

import (
	"context"

	"github.com/m-mizutani/alertsync/pkg/domain/interfaces"
	"github.com/m-mizutani/alertsync/pkg/domain/model"
	"github.com/m-mizutani/alertsync/pkg/domain/types"
	"github.com/m-mizutani/alertsync/pkg/utils/async"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
)

// DispatchFunc runs handler outside of the request lifecycle
type DispatchFunc func(ctx context.Context, handler func(ctx context.Context) error)

type webhookUseCase struct {
	reconciler interfaces.ReconcileUseCase
	dispatch   DispatchFunc
	targets    map[string]bool
}

// WebhookOption configures the webhook use case
type WebhookOption func(*webhookUseCase)

// WithDispatcher replaces async.Dispatch, mainly for tests
func WithDispatcher(fn DispatchFunc) WebhookOption {
	return func(uc *webhookUseCase) {
		uc.dispatch = fn
	}
}

// WithTargets restricts triggered runs to repos. Dispatches naming any other repository
// are rejected.
func WithTargets(repos []model.Repository) WebhookOption {
	return func(uc *webhookUseCase) {
		uc.targets = make(map[string]bool, len(repos))
		for _, repo := range repos {
			uc.targets[repo.FullName()] = true
		}
	}
}

// NewWebhook creates a new instance of WebhookUseCase
func NewWebhook(reconciler interfaces.ReconcileUseCase, opts ...WebhookOption) *webhookUseCase {
	uc := &webhookUseCase{
		reconciler: reconciler,
		dispatch:   async.Dispatch,
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// ProcessEvent schedules a reconciliation run for security-check dispatch events. Other
// events are only logged.
func (uc *webhookUseCase) ProcessEvent(ctx context.Context, event *model.WebhookEvent) error {
	logger := ctxlog.From(ctx)

	logger.Info("Processing webhook event",
		"id", event.ID,
		"type", event.Type,
		"action", event.Action,
		"repository", event.Repository,
		"sender", event.Sender,
		"supported", event.IsSupportedEvent(),
	)

	if !event.IsSupportedEvent() {
		logger.Warn("Unsupported event received",
			"type", event.Type,
			"action", event.Action,
		)
		return nil
	}

	if !event.TriggersReconciliation() {
		return nil
	}

	target, err := model.ParseRepository(event.Repository)
	if err != nil {
		return goerr.Wrap(err, "invalid repository in dispatch event", goerr.V("delivery_id", event.ID))
	}
	if uc.targets != nil && !uc.targets[target.FullName()] {
		return goerr.New("repository is not a configured target",
			goerr.V("repository", target.FullName()),
			goerr.V("delivery_id", event.ID),
			goerr.T(types.ErrTagInvalidPayload),
		)
	}

	uc.dispatch(ctx, func(ctx context.Context) error {
		ctx = ctxlog.With(ctx, ctxlog.From(ctx).With("delivery_id", event.ID))
		if _, err := uc.reconciler.Reconcile(ctx, target); err != nil {
			return goerr.Wrap(err, "reconciliation triggered by webhook failed",
				goerr.V("delivery_id", event.ID),
				goerr.V("target", target.FullName()),
			)
		}
		return nil
	})

	logger.Info("Reconciliation scheduled", "target", target.FullName(), "delivery_id", event.ID)
	return nil
}
