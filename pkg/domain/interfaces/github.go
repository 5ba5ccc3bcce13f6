package interfaces

import (
	"context"

	"github.com/m-mizutani/alertsync/pkg/domain/model"
)

// DependabotAlertSource reads dependency vulnerability alerts
type DependabotAlertSource interface {
	// ListOpenDependabotAlerts returns all open alerts of repo
	ListOpenDependabotAlerts(ctx context.Context, repo model.Repository) ([]*model.Finding, error)

	// GetDependabotAlertState returns the current state of one alert. A deleted alert is
	// returned as an error tagged types.ErrTagAlertNotFound.
	GetDependabotAlertState(ctx context.Context, repo model.Repository, number int) (string, error)
}

// CodeScanningAlertSource reads static analysis alerts
type CodeScanningAlertSource interface {
	// ListOpenCodeScanningAlerts returns all open alerts of repo. "No analysis found" and
	// "Advanced Security not enabled" are returned tagged types.ErrTagSourceUnavailable.
	ListOpenCodeScanningAlerts(ctx context.Context, repo model.Repository) ([]*model.Finding, error)
}

// AlertSource combines both scanners
type AlertSource interface {
	DependabotAlertSource
	CodeScanningAlertSource
}

// TicketStore manages tickets in the tracking repository
type TicketStore interface {
	// ListOpenTickets returns open tickets. An empty label lists every open ticket.
	ListOpenTickets(ctx context.Context, repo model.Repository, label string) ([]*model.Ticket, error)

	// CreateTicket creates a ticket
	CreateTicket(ctx context.Context, repo model.Repository, ticket *model.NewTicket) (*model.Ticket, error)

	// UpdateTicket applies a partial update to a ticket
	UpdateTicket(ctx context.Context, repo model.Repository, number int, update *model.TicketUpdate) (*model.Ticket, error)
}

// GitHubClient defines operations for interacting with GitHub API
type GitHubClient interface {
	AlertSource
	TicketStore
}
