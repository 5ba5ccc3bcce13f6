package config

import (
	"github.com/m-mizutani/alertsync/pkg/usecase"
	"github.com/urfave/cli/v3"
)

// Statistics holds configuration of the statistics ticket
type Statistics struct {
	TitlePrefix string
	NPMAPIURL   string
}

// Flags returns CLI flags for statistics configuration
func (c *Statistics) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "stats-title-prefix",
			Usage:       "Title prefix of the statistics issue",
			Value:       usecase.DefaultStatisticsTitlePrefix,
			Destination: &c.TitlePrefix,
			Sources:     cli.EnvVars("ALERTSYNC_STATS_TITLE_PREFIX"),
		},
		&cli.StringFlag{
			Name:        "npm-api-url",
			Usage:       "npm registry API base URL",
			Value:       "https://api.npmjs.org",
			Destination: &c.NPMAPIURL,
			Sources:     cli.EnvVars("ALERTSYNC_NPM_API_URL"),
		},
	}
}
