package cli

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/m-mizutani/alertsync/pkg/cli/config"
	controller "github.com/m-mizutani/alertsync/pkg/controller/http"
	"github.com/m-mizutani/alertsync/pkg/domain/model"
	"github.com/m-mizutani/alertsync/pkg/usecase"
	"github.com/m-mizutani/alertsync/pkg/utils/async"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func cmdServe() *cli.Command {
	var (
		serverCfg     config.Server
		reconcilerCfg reconcilerConfig
	)

	flags := append(serverCfg.Flags(), reconcilerCfg.Flags()...)

	return &cli.Command{
		Name:    "serve",
		Aliases: []string{"s"},
		Usage:   "Start HTTP server receiving GitHub webhooks",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			logger := ctxlog.From(ctx)

			logger.Info("Starting alertsync server",
				slog.String("addr", serverCfg.Addr),
			)

			targets, err := reconcilerCfg.targets.Load()
			if err != nil {
				return err
			}
			repos := make([]model.Repository, 0, len(targets))
			for _, target := range targets {
				repos = append(repos, target.Repo)
			}

			reconciler, closer, err := reconcilerCfg.newReconciler(ctx,
				usecase.WithLockRetry(serverCfg.LockRetryInterval),
			)
			if err != nil {
				return err
			}
			defer closer()

			dispatcher := async.New(async.WithTimeout(serverCfg.RunTimeout))
			webhookUC := usecase.NewWebhook(reconciler,
				usecase.WithDispatcher(dispatcher.Dispatch),
				usecase.WithTargets(repos),
			)

			server, err := controller.NewServer(
				ctx,
				webhookUC,
				controller.WithAddr(serverCfg.Addr),
				controller.WithWebhookSecret(serverCfg.WebhookSecret),
			)
			if err != nil {
				return goerr.Wrap(err, "failed to create HTTP server")
			}

			go func() {
				logger.Info("HTTP server starting", slog.String("addr", serverCfg.Addr))
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					logger.Error("HTTP server error", slog.Any("error", err))
				}
			}()

			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

			select {
			case <-ctx.Done():
				logger.Info("Context cancelled, shutting down...")
			case sig := <-sigChan:
				logger.Info("Signal received, shutting down...", slog.Any("signal", sig))
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), serverCfg.ShutdownTimeout)
			defer cancel()

			if err := server.Shutdown(shutdownCtx); err != nil {
				return goerr.Wrap(err, "failed to shutdown server gracefully")
			}

			// Reconciliations started by webhooks keep running after the listener stops
			if err := dispatcher.Wait(shutdownCtx); err != nil {
				return goerr.Wrap(err, "running reconciliations did not finish before shutdown timeout")
			}

			logger.Info("Server shutdown complete")
			return nil
		},
	}
}
