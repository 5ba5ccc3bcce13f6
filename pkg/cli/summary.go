package cli

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/m-mizutani/alertsync/pkg/domain/model"
)

var (
	colorTarget  = color.New(color.Bold)
	colorCreated = color.New(color.FgGreen)
	colorChanged = color.New(color.FgYellow)
	colorClosed  = color.New(color.FgCyan)
	colorSkipped = color.New(color.Faint)
)

func printReports(w io.Writer, reports []*model.RunReport) {
	for _, report := range reports {
		printReport(w, report)
	}
}

func printReport(w io.Writer, report *model.RunReport) {
	colorTarget.Fprintf(w, "%s", report.Target)
	fmt.Fprintf(w, " -> %s (run %s)\n", report.TrackingRepo, report.RunID)

	colorCreated.Fprintf(w, "  created:  %d\n", report.Count(model.ActionCreated))
	colorChanged.Fprintf(w, "  appended: %d\n", report.Count(model.ActionAppended))
	colorChanged.Fprintf(w, "  resolved: %d\n", report.Count(model.ActionResolved))
	colorClosed.Fprintf(w, "  closed:   %d\n", report.Count(model.ActionClosed))
	colorSkipped.Fprintf(w, "  skipped:  %d\n", report.Count(model.ActionSkipped))

	for _, a := range report.Actions {
		if a.Type == model.ActionSkipped {
			continue
		}
		fmt.Fprintf(w, "    %-8s #%d %s\n", a.Type, a.TicketNumber, a.Key)
	}
}

func printStatistics(w io.Writer, stats *model.RepoStatistics) {
	colorTarget.Fprintf(w, "%s", stats.Repo)
	fmt.Fprintf(w, ": downloads=%d issues=%d alerts=%d\n", stats.Downloads, stats.OpenIssues, stats.OpenAlerts)
}
