package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/alertsync/pkg/domain/interfaces"
	"github.com/m-mizutani/alertsync/pkg/domain/model"
	"github.com/m-mizutani/alertsync/pkg/domain/tracking"
	"github.com/m-mizutani/alertsync/pkg/domain/types"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
)

const (
	reasonAlreadyListed    = "repository already listed"
	reasonAdvisoryMismatch = "advisory identifiers differ from tracking ticket"
)

// Reconciler syncs the open alerts of one repository into tracking tickets
type Reconciler struct {
	alerts       interfaces.AlertSource
	tickets      interfaces.TicketStore
	trackingRepo model.Repository

	locker    interfaces.RunLocker
	lockRetry time.Duration
	archiver  interfaces.ReportArchiver
	notifier  interfaces.Notifier

	newRunID func() string
	now      func() time.Time
}

// ReconcileOption configures a Reconciler
type ReconcileOption func(*Reconciler)

// WithRunLocker serializes runs sharing the tracking repository
func WithRunLocker(locker interfaces.RunLocker) ReconcileOption {
	return func(r *Reconciler) {
		r.locker = locker
	}
}

// WithLockRetry makes a run wait for a held lock, retrying every interval until ctx is
// done. Without it a held lock fails the run at once.
func WithLockRetry(interval time.Duration) ReconcileOption {
	return func(r *Reconciler) {
		r.lockRetry = interval
	}
}

// WithReportArchiver stores each successful run report
func WithReportArchiver(archiver interfaces.ReportArchiver) ReconcileOption {
	return func(r *Reconciler) {
		r.archiver = archiver
	}
}

// WithNotifier announces runs that changed tickets
func WithNotifier(notifier interfaces.Notifier) ReconcileOption {
	return func(r *Reconciler) {
		r.notifier = notifier
	}
}

// WithRunIDGenerator replaces the run ID generator
func WithRunIDGenerator(fn func() string) ReconcileOption {
	return func(r *Reconciler) {
		r.newRunID = fn
	}
}

// WithClock replaces the clock
func WithClock(fn func() time.Time) ReconcileOption {
	return func(r *Reconciler) {
		r.now = fn
	}
}

// NewReconciler creates a Reconciler writing tickets into trackingRepo
func NewReconciler(alerts interfaces.AlertSource, tickets interfaces.TicketStore, trackingRepo model.Repository, opts ...ReconcileOption) *Reconciler {
	r := &Reconciler{
		alerts:       alerts,
		tickets:      tickets,
		trackingRepo: trackingRepo,
		locker:       NewMemoryLocker(),
		newRunID:     uuid.NewString,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

var _ interfaces.ReconcileUseCase = (*Reconciler)(nil)

// Reconcile runs the closure pass and then the ingestion pass for target. A mutation
// failure aborts the run; mutations applied before it are kept.
func (r *Reconciler) Reconcile(ctx context.Context, target model.Repository) (*model.RunReport, error) {
	runID := r.newRunID()
	logger := ctxlog.From(ctx).With(
		"run_id", runID,
		"target", target.FullName(),
		"tracking_repo", r.trackingRepo.FullName(),
	)
	ctx = ctxlog.With(ctx, logger)

	report := &model.RunReport{
		RunID:        runID,
		Target:       target.FullName(),
		TrackingRepo: r.trackingRepo.FullName(),
		StartedAt:    r.now(),
		Actions:      []model.Action{},
	}

	release, err := r.acquireLock(ctx, runID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to acquire run lock", goerr.V("tracking_repo", r.trackingRepo.FullName()))
	}

	runErr := r.run(ctx, target, report)

	if err := release(ctx); err != nil {
		logger.Warn("Failed to release run lock", "error", err)
	}

	if runErr != nil {
		logger.Error("Reconciliation aborted",
			"error", runErr,
			"applied_actions", len(report.Actions),
		)
		return nil, runErr
	}

	report.FinishedAt = r.now()
	logger.Info("Reconciliation completed",
		"created", report.Count(model.ActionCreated),
		"appended", report.Count(model.ActionAppended),
		"resolved", report.Count(model.ActionResolved),
		"closed", report.Count(model.ActionClosed),
		"skipped", report.Count(model.ActionSkipped),
	)

	r.publish(ctx, report)

	return report, nil
}

func (r *Reconciler) run(ctx context.Context, target model.Repository, report *model.RunReport) error {
	logger := ctxlog.From(ctx)

	dependabotFindings, err := r.alerts.ListOpenDependabotAlerts(ctx, target)
	if err != nil {
		return goerr.Wrap(err, "failed to fetch dependabot alerts", goerr.V("repo", target.FullName()))
	}

	codeScanningFindings, err := r.alerts.ListOpenCodeScanningAlerts(ctx, target)
	if err != nil {
		if !goerr.HasTag(err, types.ErrTagSourceUnavailable) {
			return goerr.Wrap(err, "failed to fetch code scanning alerts", goerr.V("repo", target.FullName()))
		}
		logger.Info("Code scanning is not available, no findings from it", "reason", err.Error())
		codeScanningFindings = nil
	}

	logger.Debug("Fetched alerts",
		"dependabot", len(dependabotFindings),
		"code_scanning", len(codeScanningFindings),
	)

	tickets, err := r.tickets.ListOpenTickets(ctx, r.trackingRepo, types.LabelSecurity)
	if err != nil {
		return goerr.Wrap(err, "failed to list tracking tickets", goerr.V("tracking_repo", r.trackingRepo.FullName()))
	}
	idx := tracking.BuildIndex(ctx, tickets)

	for _, rec := range idx.Records() {
		if rec.Kind != model.FindingKindDependabot {
			continue
		}
		if err := r.closeResolved(ctx, target, idx, rec, report); err != nil {
			return err
		}
	}

	for _, findings := range [][]*model.Finding{dependabotFindings, codeScanningFindings} {
		for _, f := range findings {
			if err := r.ingest(ctx, idx, f, report); err != nil {
				return err
			}
		}
	}

	return nil
}

// closeResolved checks the unresolved entries of target in rec and closes the ticket once
// every entry is resolved.
func (r *Reconciler) closeResolved(ctx context.Context, target model.Repository, idx *tracking.Index, rec *model.TrackingRecord, report *model.RunReport) error {
	key := rec.IdentityKey()
	body := rec.Body
	changed := false

	for _, entry := range rec.Entries {
		if entry.Resolved || entry.Repo != target.FullName() || entry.Kind != model.FindingKindDependabot {
			continue
		}

		resolved, err := r.isAlertResolved(ctx, target, entry.AlertNumber)
		if err != nil {
			return err
		}
		if !resolved {
			continue
		}

		if updated, ok := tracking.MarkEntryResolved(body, entry.Repo); ok {
			body = updated
			changed = true
		}
		entry.Resolved = true
		report.Actions = append(report.Actions, model.Action{
			Type:         model.ActionResolved,
			Key:          key,
			Repo:         entry.Repo,
			TicketNumber: rec.TicketNumber,
		})
	}

	if rec.AllResolved() {
		closed := model.TicketStateClosed
		update := &model.TicketUpdate{State: &closed}
		if changed {
			update.Body = &body
		}
		if _, err := r.tickets.UpdateTicket(ctx, r.trackingRepo, rec.TicketNumber, update); err != nil {
			return goerr.Wrap(err, "failed to close tracking ticket",
				goerr.V("key", key),
				goerr.V("number", rec.TicketNumber),
				goerr.T(types.ErrTagMutationFailure),
			)
		}

		idx.Delete(key)
		report.Actions = append(report.Actions, model.Action{
			Type:         model.ActionClosed,
			Key:          key,
			TicketNumber: rec.TicketNumber,
		})
		ctxlog.From(ctx).Info("Closed tracking ticket", "number", rec.TicketNumber, "key", key)
		return nil
	}

	if changed {
		if _, err := r.tickets.UpdateTicket(ctx, r.trackingRepo, rec.TicketNumber, &model.TicketUpdate{Body: &body}); err != nil {
			return goerr.Wrap(err, "failed to update tracking ticket",
				goerr.V("key", key),
				goerr.V("number", rec.TicketNumber),
				goerr.T(types.ErrTagMutationFailure),
			)
		}
		rec.Body = body
	}

	return nil
}

func (r *Reconciler) isAlertResolved(ctx context.Context, repo model.Repository, number int) (bool, error) {
	state, err := r.alerts.GetDependabotAlertState(ctx, repo, number)
	if err != nil {
		if goerr.HasTag(err, types.ErrTagAlertNotFound) {
			ctxlog.From(ctx).Info("Alert no longer exists, counted as resolved", "repo", repo.FullName(), "number", number)
			return true, nil
		}
		return false, goerr.Wrap(err, "failed to re-query dependabot alert",
			goerr.V("repo", repo.FullName()),
			goerr.V("number", number),
		)
	}

	return state != model.AlertStateOpen, nil
}

// ingest creates a ticket for f, appends its repository to the existing ticket, or does
// nothing.
func (r *Reconciler) ingest(ctx context.Context, idx *tracking.Index, f *model.Finding, report *model.RunReport) error {
	key := f.IdentityKey()
	repo := f.Repo.FullName()

	rec := idx.Lookup(key)
	if rec == nil {
		return r.createTicket(ctx, idx, f, report)
	}

	if !rec.MatchesAdvisory(f) {
		report.Actions = append(report.Actions, model.Action{
			Type:         model.ActionSkipped,
			Key:          key,
			Repo:         repo,
			TicketNumber: rec.TicketNumber,
			Reason:       reasonAdvisoryMismatch,
		})
		return nil
	}

	if rec.Entry(repo) != nil {
		report.Actions = append(report.Actions, model.Action{
			Type:         model.ActionSkipped,
			Key:          key,
			Repo:         repo,
			TicketNumber: rec.TicketNumber,
			Reason:       reasonAlreadyListed,
		})
		return nil
	}

	body, err := tracking.AppendEntry(rec.Body, repo, f.URL)
	if err != nil {
		return goerr.Wrap(err, "failed to append repository to tracking ticket",
			goerr.V("key", key),
			goerr.V("number", rec.TicketNumber),
		)
	}

	if _, err := r.tickets.UpdateTicket(ctx, r.trackingRepo, rec.TicketNumber, &model.TicketUpdate{Body: &body}); err != nil {
		return goerr.Wrap(err, "failed to update tracking ticket",
			goerr.V("key", key),
			goerr.V("number", rec.TicketNumber),
			goerr.T(types.ErrTagMutationFailure),
		)
	}

	rec.Body = body
	rec.Entries = append(rec.Entries, &model.TrackingEntry{
		Repo:        repo,
		URL:         f.URL,
		Kind:        f.Kind,
		AlertNumber: f.Number,
	})
	report.Actions = append(report.Actions, model.Action{
		Type:         model.ActionAppended,
		Key:          key,
		Repo:         repo,
		TicketNumber: rec.TicketNumber,
	})
	ctxlog.From(ctx).Info("Appended repository to tracking ticket", "number", rec.TicketNumber, "key", key)

	return nil
}

func (r *Reconciler) createTicket(ctx context.Context, idx *tracking.Index, f *model.Finding, report *model.RunReport) error {
	key := f.IdentityKey()

	ticket, err := r.tickets.CreateTicket(ctx, r.trackingRepo, &model.NewTicket{
		Title:  tracking.Title(f),
		Body:   tracking.RenderBody(f),
		Labels: ticketLabels(f),
	})
	if err != nil {
		return goerr.Wrap(err, "failed to create tracking ticket",
			goerr.V("key", key),
			goerr.V("repo", f.Repo.FullName()),
			goerr.T(types.ErrTagMutationFailure),
		)
	}

	idx.Put(tracking.RecordFromFinding(ticket.Number, f))
	report.Actions = append(report.Actions, model.Action{
		Type:         model.ActionCreated,
		Key:          key,
		Repo:         f.Repo.FullName(),
		TicketNumber: ticket.Number,
	})
	ctxlog.From(ctx).Info("Created tracking ticket", "number", ticket.Number, "key", key)

	return nil
}

func ticketLabels(f *model.Finding) []string {
	if f.Kind == model.FindingKindCodeScanning {
		return []string{types.LabelCodeScanning, types.LabelSecurity}
	}

	labels := []string{types.LabelDependabot, types.LabelSecurity}
	if f.Scope != "" {
		labels = append(labels, f.Scope)
	}
	return labels
}

// publish hands the report to the configured sinks. Tickets are already written at this
// point, so sink failures are only logged.
func (r *Reconciler) publish(ctx context.Context, report *model.RunReport) {
	logger := ctxlog.From(ctx)

	if r.archiver != nil {
		if err := r.archiver.Archive(ctx, report); err != nil {
			logger.Warn("Failed to archive run report", "error", err)
		}
	}

	if r.notifier != nil && report.HasMutation() {
		if err := r.notifier.Notify(ctx, report); err != nil {
			logger.Warn("Failed to send run notification", "error", err)
		}
	}
}

func (r *Reconciler) acquireLock(ctx context.Context, owner string) (interfaces.ReleaseFunc, error) {
	key := r.trackingRepo.FullName()

	for {
		release, err := r.locker.Acquire(ctx, key, owner)
		if err == nil {
			return release, nil
		}
		if r.lockRetry <= 0 || !goerr.HasTag(err, types.ErrTagLocked) {
			return nil, err
		}

		ctxlog.From(ctx).Info("Run lock is held by another run, waiting", "retry_in", r.lockRetry)
		select {
		case <-ctx.Done():
			return nil, goerr.Wrap(err, "gave up waiting for run lock", goerr.V("cause", ctx.Err()))
		case <-time.After(r.lockRetry):
		}
	}
}
