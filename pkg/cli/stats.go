package cli

import (
	"context"
	"os"

	"github.com/m-mizutani/alertsync/pkg/cli/config"
	"github.com/m-mizutani/alertsync/pkg/infra/npm"
	"github.com/m-mizutani/alertsync/pkg/usecase"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func cmdStats() *cli.Command {
	var (
		githubCfg  config.GitHub
		targetsCfg config.Targets
		statsCfg   config.Statistics
	)

	flags := append(githubCfg.Flags(), targetsCfg.Flags()...)
	flags = append(flags, statsCfg.Flags()...)

	return &cli.Command{
		Name:  "stats",
		Usage: "Update the download and alert statistics issue",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			trackingRepo, err := targetsCfg.TrackingRepository()
			if err != nil {
				return err
			}
			targets, err := targetsCfg.Load()
			if err != nil {
				return err
			}

			client, err := githubCfg.NewClient()
			if err != nil {
				return goerr.Wrap(err, "failed to create GitHub client")
			}

			uc := usecase.NewStatistics(client, client, npm.New(npm.WithBaseURL(statsCfg.NPMAPIURL)), trackingRepo,
				usecase.WithTitlePrefix(statsCfg.TitlePrefix),
			)

			for _, target := range targets {
				stats, err := uc.UpdateStatistics(ctx, target.Repo, target.NPMPackage)
				if err != nil {
					return goerr.Wrap(err, "failed to update statistics", goerr.V("target", target.Repo.FullName()))
				}
				printStatistics(os.Stdout, stats)
			}

			return nil
		},
	}
}
