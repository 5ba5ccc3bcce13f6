package config

import (
	"time"

	"github.com/urfave/cli/v3"
)

// Server holds server configuration
type Server struct {
	Addr            string
	WebhookSecret   string `masq:"secret"`
	RunTimeout        time.Duration
	LockRetryInterval time.Duration
	ShutdownTimeout   time.Duration
}

// Flags returns CLI flags for server configuration
func (c *Server) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "addr",
			Usage:       "Server address",
			Value:       "localhost:8080",
			Destination: &c.Addr,
			Sources:     cli.EnvVars("ALERTSYNC_ADDR"),
		},
		&cli.StringFlag{
			Name:        "github-webhook-secret",
			Usage:       "GitHub webhook secret",
			Required:    true,
			Destination: &c.WebhookSecret,
			Sources:     cli.EnvVars("ALERTSYNC_GITHUB_WEBHOOK_SECRET"),
		},
		&cli.DurationFlag{
			Name:        "run-timeout",
			Usage:       "Deadline of one reconciliation run triggered by a webhook",
			Value:       10 * time.Minute,
			Destination: &c.RunTimeout,
			Sources:     cli.EnvVars("ALERTSYNC_RUN_TIMEOUT"),
		},
		&cli.DurationFlag{
			Name:        "lock-retry-interval",
			Usage:       "How often a triggered run retries a run lock held by another run, until run-timeout",
			Value:       5 * time.Second,
			Destination: &c.LockRetryInterval,
			Sources:     cli.EnvVars("ALERTSYNC_LOCK_RETRY_INTERVAL"),
		},
		&cli.DurationFlag{
			Name:        "shutdown-timeout",
			Usage:       "How long to wait for running reconciliations on shutdown",
			Value:       time.Minute,
			Destination: &c.ShutdownTimeout,
			Sources:     cli.EnvVars("ALERTSYNC_SHUTDOWN_TIMEOUT"),
		},
	}
}
