package config

import (
	"context"
	"time"

	"github.com/m-mizutani/alertsync/pkg/domain/interfaces"
	"github.com/m-mizutani/alertsync/pkg/domain/types"
	"github.com/m-mizutani/alertsync/pkg/infra/firestore"
	"github.com/urfave/cli/v3"
	"google.golang.org/api/option"
)

// Firestore holds the run lock configuration
type Firestore struct {
	ProjectID  string
	DatabaseID string
	LockTTL    time.Duration
}

// Flags returns CLI flags for Firestore configuration
func (c *Firestore) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "firestore-project-id",
			Usage:       "Google Cloud project of the Firestore run lock. Runs are not serialized when unset",
			Destination: &c.ProjectID,
			Sources:     cli.EnvVars("ALERTSYNC_FIRESTORE_PROJECT_ID"),
		},
		&cli.StringFlag{
			Name:        "firestore-database-id",
			Usage:       "Firestore database ID",
			Value:       "(default)",
			Destination: &c.DatabaseID,
			Sources:     cli.EnvVars("ALERTSYNC_FIRESTORE_DATABASE_ID"),
		},
		&cli.DurationFlag{
			Name:        "lock-ttl",
			Usage:       "Lifetime of a run lock that was never released",
			Value:       firestore.DefaultTTL,
			Destination: &c.LockTTL,
			Sources:     cli.EnvVars("ALERTSYNC_LOCK_TTL"),
		},
	}
}

// NewLocker returns the Firestore run lock, or nil when no project is configured. The
// returned closer is never nil.
func (c *Firestore) NewLocker(ctx context.Context) (interfaces.RunLocker, func(), error) {
	if c.ProjectID == "" {
		return nil, func() {}, nil
	}

	locker, err := firestore.New(ctx, c.ProjectID,
		firestore.WithDatabaseID(c.DatabaseID),
		firestore.WithTTL(c.LockTTL),
		firestore.WithClientOptions(option.WithUserAgent("alertsync/"+types.Version)),
	)
	if err != nil {
		return nil, func() {}, err
	}

	return locker, func() { _ = locker.Close() }, nil
}
