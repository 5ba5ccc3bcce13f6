package config

import (
	"github.com/m-mizutani/alertsync/pkg/domain/interfaces"
	"github.com/m-mizutani/alertsync/pkg/infra/slack"
	"github.com/urfave/cli/v3"
)

// Slack holds the run notification configuration
type Slack struct {
	WebhookURL string `masq:"secret"`
	GitHubURL  string
}

// Flags returns CLI flags for Slack configuration
func (c *Slack) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "slack-webhook-url",
			Usage:       "Slack incoming webhook URL for run summaries",
			Destination: &c.WebhookURL,
			Sources:     cli.EnvVars("ALERTSYNC_SLACK_WEBHOOK_URL"),
		},
		&cli.StringFlag{
			Name:        "github-web-url",
			Usage:       "GitHub web URL used in ticket links",
			Value:       "https://github.com",
			Destination: &c.GitHubURL,
			Sources:     cli.EnvVars("ALERTSYNC_GITHUB_WEB_URL"),
		},
	}
}

// NewNotifier returns the Slack notifier, or nil when no webhook URL is configured
func (c *Slack) NewNotifier() interfaces.Notifier {
	if c.WebhookURL == "" {
		return nil
	}
	return slack.New(c.WebhookURL, slack.WithWebURL(c.GitHubURL))
}
