package storage

import (
	"context"
	"encoding/json"
	"path"

	"cloud.google.com/go/storage"
	"github.com/m-mizutani/alertsync/pkg/domain/interfaces"
	"github.com/m-mizutani/alertsync/pkg/domain/model"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/api/option"
)

const reportTimeLayout = "20060102T150405Z"

// Archiver writes run reports as JSON objects into a GCS bucket
type Archiver struct {
	client *storage.Client
	bucket string
	prefix string
}

// New creates an Archiver. prefix may be empty.
func New(ctx context.Context, bucket, prefix string, opts ...option.ClientOption) (*Archiver, error) {
	if bucket == "" {
		return nil, goerr.New("bucket name is required")
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create storage client", goerr.V("bucket", bucket))
	}

	return &Archiver{client: client, bucket: bucket, prefix: prefix}, nil
}

// Close closes the storage client
func (x *Archiver) Close() error {
	return x.client.Close()
}

var _ interfaces.ReportArchiver = (*Archiver)(nil)

// Archive stores report under ObjectPath
func (x *Archiver) Archive(ctx context.Context, report *model.RunReport) error {
	raw, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return goerr.Wrap(err, "failed to marshal run report", goerr.V("run_id", report.RunID))
	}

	objPath, err := ObjectPath(x.prefix, report)
	if err != nil {
		return err
	}

	w := x.client.Bucket(x.bucket).Object(objPath).NewWriter(ctx)
	w.ContentType = "application/json"

	if _, err := w.Write(raw); err != nil {
		_ = w.Close()
		return goerr.Wrap(err, "failed to write run report", goerr.V("bucket", x.bucket), goerr.V("path", objPath))
	}
	if err := w.Close(); err != nil {
		return goerr.Wrap(err, "failed to upload run report", goerr.V("bucket", x.bucket), goerr.V("path", objPath))
	}

	ctxlog.From(ctx).Info("Archived run report", "bucket", x.bucket, "path", objPath)
	return nil
}

// ObjectPath returns the object name of report:
// <prefix>/<tracking owner>/<tracking repo>/<target owner>/<target repo>/<started_at>_<run_id>.json
func ObjectPath(prefix string, report *model.RunReport) (string, error) {
	tracking, err := model.ParseRepository(report.TrackingRepo)
	if err != nil {
		return "", goerr.Wrap(err, "invalid tracking repository in report")
	}
	target, err := model.ParseRepository(report.Target)
	if err != nil {
		return "", goerr.Wrap(err, "invalid target repository in report")
	}

	name := report.StartedAt.UTC().Format(reportTimeLayout) + "_" + report.RunID + ".json"
	return path.Join(prefix, tracking.Owner, tracking.Name, target.Owner, target.Name, name), nil
}
