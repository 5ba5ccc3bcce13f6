package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/m-mizutani/alertsync/pkg/domain/interfaces"
	"github.com/m-mizutani/alertsync/pkg/domain/model"
	"github.com/m-mizutani/alertsync/pkg/domain/types"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
)

// DefaultStatisticsTitlePrefix is the title prefix of the statistics ticket
const DefaultStatisticsTitlePrefix = "Repositories statistic"

const statisticsTableHeader = "|Package name|Downloads|Issues|alerts|\n|--------|--------|--------|--------|\n"

// Statistics maintains one table row per repository in the statistics ticket
type Statistics struct {
	alerts       interfaces.DependabotAlertSource
	tickets      interfaces.TicketStore
	downloads    interfaces.DownloadCounter
	trackingRepo model.Repository

	titlePrefix string
	now         func() time.Time
}

// StatisticsOption configures Statistics
type StatisticsOption func(*Statistics)

// WithTitlePrefix replaces DefaultStatisticsTitlePrefix
func WithTitlePrefix(prefix string) StatisticsOption {
	return func(s *Statistics) {
		s.titlePrefix = prefix
	}
}

// WithStatisticsClock replaces the clock used for the ticket title date
func WithStatisticsClock(fn func() time.Time) StatisticsOption {
	return func(s *Statistics) {
		s.now = fn
	}
}

// NewStatistics creates the statistics use case
func NewStatistics(alerts interfaces.DependabotAlertSource, tickets interfaces.TicketStore, downloads interfaces.DownloadCounter, trackingRepo model.Repository, opts ...StatisticsOption) *Statistics {
	s := &Statistics{
		alerts:       alerts,
		tickets:      tickets,
		downloads:    downloads,
		trackingRepo: trackingRepo,
		titlePrefix:  DefaultStatisticsTitlePrefix,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ interfaces.StatisticsUseCase = (*Statistics)(nil)

// UpdateStatistics collects the numbers of target and writes its row. npmPackage defaults
// to the repository name.
func (s *Statistics) UpdateStatistics(ctx context.Context, target model.Repository, npmPackage string) (*model.RepoStatistics, error) {
	logger := ctxlog.From(ctx).With("target", target.FullName())

	if npmPackage == "" {
		npmPackage = target.Name
	}

	alerts, err := s.alerts.ListOpenDependabotAlerts(ctx, target)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to count dependabot alerts", goerr.V("repo", target.FullName()))
	}

	openTickets, err := s.tickets.ListOpenTickets(ctx, s.trackingRepo, "")
	if err != nil {
		return nil, goerr.Wrap(err, "failed to count open issues", goerr.V("tracking_repo", s.trackingRepo.FullName()))
	}

	downloads, err := s.downloads.MonthlyDownloads(ctx, npmPackage)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get download count", goerr.V("package", npmPackage))
	}

	stats := &model.RepoStatistics{
		Repo:       target.Name,
		Downloads:  downloads,
		OpenIssues: len(openTickets),
		OpenAlerts: len(alerts),
	}

	var statTicket *model.Ticket
	for _, t := range openTickets {
		if strings.Contains(t.Title, s.titlePrefix) {
			statTicket = t
			break
		}
	}

	if statTicket == nil {
		title := fmt.Sprintf("%s on %s", s.titlePrefix, s.now().Format("02.01.2006"))
		created, err := s.tickets.CreateTicket(ctx, s.trackingRepo, &model.NewTicket{
			Title: title,
			Body:  statisticsTableHeader + StatisticsRow(stats) + "\n",
		})
		if err != nil {
			return nil, goerr.Wrap(err, "failed to create statistics ticket",
				goerr.V("title", title),
				goerr.T(types.ErrTagMutationFailure),
			)
		}
		logger.Info("Created statistics ticket", "number", created.Number)
		return stats, nil
	}

	body := UpsertStatisticsRow(statTicket.Body, stats)
	if body == statTicket.Body {
		logger.Debug("Statistics row unchanged", "number", statTicket.Number)
		return stats, nil
	}

	if _, err := s.tickets.UpdateTicket(ctx, s.trackingRepo, statTicket.Number, &model.TicketUpdate{Body: &body}); err != nil {
		return nil, goerr.Wrap(err, "failed to update statistics ticket",
			goerr.V("number", statTicket.Number),
			goerr.T(types.ErrTagMutationFailure),
		)
	}
	logger.Info("Updated statistics ticket", "number", statTicket.Number)

	return stats, nil
}

// StatisticsRow renders one table row without the trailing newline
func StatisticsRow(s *model.RepoStatistics) string {
	return fmt.Sprintf("|%s|%d|%d|%d|", s.Repo, s.Downloads, s.OpenIssues, s.OpenAlerts)
}

// UpsertStatisticsRow replaces the row of s.Repo in place, or appends it when the table
// has no such row. Other rows are kept as is.
func UpsertStatisticsRow(body string, s *model.RepoStatistics) string {
	prefix := "|" + s.Repo + "|"
	lines := strings.Split(body, "\n")
	for i, line := range lines {
		if strings.HasPrefix(strings.TrimRight(line, "\r"), prefix) {
			lines[i] = StatisticsRow(s)
			return strings.Join(lines, "\n")
		}
	}

	if body != "" && !strings.HasSuffix(body, "\n") {
		body += "\n"
	}
	return body + StatisticsRow(s) + "\n"
}
