package slack

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/m-mizutani/alertsync/pkg/domain/interfaces"
	"github.com/m-mizutani/alertsync/pkg/domain/model"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/slack-go/slack"
)

const defaultWebURL = "https://github.com"

// Notifier posts run summaries to a Slack incoming webhook
type Notifier struct {
	webhookURL string
	webURL     string
	httpClient *http.Client
}

// Option configures the Notifier
type Option func(*Notifier)

// WithWebURL sets the GitHub web URL used for ticket links, e.g. for GitHub Enterprise Server
func WithWebURL(u string) Option {
	return func(n *Notifier) {
		n.webURL = strings.TrimSuffix(u, "/")
	}
}

// WithHTTPClient replaces http.DefaultClient
func WithHTTPClient(c *http.Client) Option {
	return func(n *Notifier) {
		n.httpClient = c
	}
}

// New creates a Notifier
func New(webhookURL string, opts ...Option) *Notifier {
	n := &Notifier{
		webhookURL: webhookURL,
		webURL:     defaultWebURL,
		httpClient: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

var _ interfaces.Notifier = (*Notifier)(nil)

// Notify posts the summary of report
func (x *Notifier) Notify(ctx context.Context, report *model.RunReport) error {
	msg := &slack.WebhookMessage{
		Text: x.Render(report),
	}

	if err := slack.PostWebhookCustomHTTPContext(ctx, x.webhookURL, x.httpClient, msg); err != nil {
		return goerr.Wrap(err, "failed to post slack message", goerr.V("run_id", report.RunID))
	}

	ctxlog.From(ctx).Debug("Posted run summary to slack", "run_id", report.RunID)
	return nil
}

// Render builds the message text of report. Skipped actions are counted but not listed.
func (x *Notifier) Render(report *model.RunReport) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "*Security alerts synced* `%s` → `%s` (run `%s`)\n",
		report.Target, report.TrackingRepo, report.RunID)
	fmt.Fprintf(&sb, "created: %d, appended: %d, resolved: %d, closed: %d, unchanged: %d\n",
		report.Count(model.ActionCreated),
		report.Count(model.ActionAppended),
		report.Count(model.ActionResolved),
		report.Count(model.ActionClosed),
		report.Count(model.ActionSkipped),
	)

	for _, action := range report.Actions {
		if action.Type == model.ActionSkipped {
			continue
		}
		link := fmt.Sprintf("<%s/%s/issues/%d|#%d>", x.webURL, report.TrackingRepo, action.TicketNumber, action.TicketNumber)
		fmt.Fprintf(&sb, "• %s %s %s\n", action.Type, link, action.Key)
	}

	return strings.TrimSuffix(sb.String(), "\n")
}
