package cli

import (
	"context"
	"os"

	"github.com/m-mizutani/alertsync/pkg/cli/config"
	"github.com/m-mizutani/alertsync/pkg/domain/model"
	"github.com/m-mizutani/alertsync/pkg/usecase"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

// reconcilerConfig groups the flags needed to build a Reconciler
type reconcilerConfig struct {
	github    config.GitHub
	targets   config.Targets
	firestore config.Firestore
	storage   config.Storage
	slack     config.Slack
}

func (c *reconcilerConfig) Flags() []cli.Flag {
	var flags []cli.Flag
	flags = append(flags, c.github.Flags()...)
	flags = append(flags, c.targets.Flags()...)
	flags = append(flags, c.firestore.Flags()...)
	flags = append(flags, c.storage.Flags()...)
	flags = append(flags, c.slack.Flags()...)
	return flags
}

// newReconciler builds a Reconciler. The returned closer releases cloud clients.
func (c *reconcilerConfig) newReconciler(ctx context.Context, extra ...usecase.ReconcileOption) (*usecase.Reconciler, func(), error) {
	trackingRepo, err := c.targets.TrackingRepository()
	if err != nil {
		return nil, nil, err
	}

	client, err := c.github.NewClient()
	if err != nil {
		return nil, nil, goerr.Wrap(err, "failed to create GitHub client")
	}

	opts := append([]usecase.ReconcileOption{}, extra...)

	locker, closeLocker, err := c.firestore.NewLocker(ctx)
	if err != nil {
		return nil, nil, err
	}
	if locker != nil {
		opts = append(opts, usecase.WithRunLocker(locker))
	}

	archiver, closeArchiver, err := c.storage.NewArchiver(ctx)
	if err != nil {
		closeLocker()
		return nil, nil, err
	}
	if archiver != nil {
		opts = append(opts, usecase.WithReportArchiver(archiver))
	}

	if notifier := c.slack.NewNotifier(); notifier != nil {
		opts = append(opts, usecase.WithNotifier(notifier))
	}

	ctxlog.From(ctx).Debug("Reconciler configured",
		"tracking_repo", trackingRepo.FullName(),
		"github", c.github,
		"lock", locker != nil,
		"archive", archiver != nil,
	)

	closer := func() {
		closeArchiver()
		closeLocker()
	}
	return usecase.NewReconciler(client, client, trackingRepo, opts...), closer, nil
}

func cmdCheck() *cli.Command {
	var cfg reconcilerConfig

	return &cli.Command{
		Name:    "check",
		Aliases: []string{"c"},
		Usage:   "Reconcile security alerts of target repositories with tracking issues",
		Flags:   cfg.Flags(),
		Action: func(ctx context.Context, c *cli.Command) error {
			targets, err := cfg.targets.Load()
			if err != nil {
				return err
			}

			reconciler, closer, err := cfg.newReconciler(ctx)
			if err != nil {
				return err
			}
			defer closer()

			reports := make([]*model.RunReport, 0, len(targets))
			for _, target := range targets {
				report, err := reconciler.Reconcile(ctx, target.Repo)
				if err != nil {
					printReports(os.Stdout, reports)
					return goerr.Wrap(err, "reconciliation failed", goerr.V("target", target.Repo.FullName()))
				}
				reports = append(reports, report)
			}

			printReports(os.Stdout, reports)
			return nil
		},
	}
}
