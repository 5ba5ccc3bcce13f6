package interfaces

import (
	"context"

	"github.com/m-mizutani/alertsync/pkg/domain/model"
)

// WebhookUseCase defines the interface for webhook event processing
type WebhookUseCase interface {
	// ProcessEvent processes a webhook event
	ProcessEvent(ctx context.Context, event *model.WebhookEvent) error
}

// ReconcileUseCase reconciles the alerts of one repository with the tracking tickets
type ReconcileUseCase interface {
	// Reconcile runs the closure pass and the ingestion pass for target
	Reconcile(ctx context.Context, target model.Repository) (*model.RunReport, error)
}

// StatisticsUseCase maintains the statistics ticket
type StatisticsUseCase interface {
	// UpdateStatistics writes the row of target into the statistics ticket
	UpdateStatistics(ctx context.Context, target model.Repository, npmPackage string) (*model.RepoStatistics, error)
}
