package config

import (
	"context"

	"github.com/m-mizutani/alertsync/pkg/domain/interfaces"
	"github.com/m-mizutani/alertsync/pkg/domain/types"
	"github.com/m-mizutani/alertsync/pkg/infra/storage"
	"github.com/urfave/cli/v3"
	"google.golang.org/api/option"
)

// Storage holds the run report archive configuration
type Storage struct {
	Bucket string
	Prefix string
}

// Flags returns CLI flags for Cloud Storage configuration
func (c *Storage) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "report-bucket",
			Usage:       "Cloud Storage bucket for run reports. Reports are not archived when unset",
			Destination: &c.Bucket,
			Sources:     cli.EnvVars("ALERTSYNC_REPORT_BUCKET"),
		},
		&cli.StringFlag{
			Name:        "report-prefix",
			Usage:       "Object name prefix of run reports",
			Value:       "reports",
			Destination: &c.Prefix,
			Sources:     cli.EnvVars("ALERTSYNC_REPORT_PREFIX"),
		},
	}
}

// NewArchiver returns the report archiver, or nil when no bucket is configured. The
// returned closer is never nil.
func (c *Storage) NewArchiver(ctx context.Context) (interfaces.ReportArchiver, func(), error) {
	if c.Bucket == "" {
		return nil, func() {}, nil
	}

	archiver, err := storage.New(ctx, c.Bucket, c.Prefix, option.WithUserAgent("alertsync/"+types.Version))
	if err != nil {
		return nil, func() {}, err
	}

	return archiver, func() { _ = archiver.Close() }, nil
}
