package interfaces

import (
	"context"

	"github.com/m-mizutani/alertsync/pkg/domain/model"
)

// ReleaseFunc releases a lock acquired by RunLocker
type ReleaseFunc func(ctx context.Context) error

// RunLocker serializes reconciliation runs that share a tracking repository
type RunLocker interface {
	// Acquire takes the lock for key. It fails with an error tagged types.ErrTagLocked
	// when another run holds it.
	Acquire(ctx context.Context, key, owner string) (ReleaseFunc, error)
}

// ReportArchiver stores run reports
type ReportArchiver interface {
	Archive(ctx context.Context, report *model.RunReport) error
}

// Notifier announces run results
type Notifier interface {
	Notify(ctx context.Context, report *model.RunReport) error
}

// DownloadCounter returns the monthly download count of a package
type DownloadCounter interface {
	MonthlyDownloads(ctx context.Context, pkg string) (int64, error)
}
