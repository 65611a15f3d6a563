package cli

import (
	"fmt"
	"strings"

	"github.com/Veraticus/finwiz/internal/budget"
	"github.com/Veraticus/finwiz/internal/model"
	"github.com/Veraticus/finwiz/internal/syncer"
)

// RenderSyncResult summarizes a sync run.
func RenderSyncResult(result *syncer.Result) string {
	if result == nil {
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Pages:          %d\n", result.Pages)
	fmt.Fprintf(&b, "Transactions:   %d\n", result.Added)
	fmt.Fprintf(&b, "  created:      %d\n", result.Created)
	fmt.Fprintf(&b, "  updated:      %d\n", result.Updated)
	fmt.Fprintf(&b, "  removed:      %d\n", result.Removed)
	fmt.Fprintf(&b, "  skipped:      %s\n", countStyle(result.Skipped, WarningStyle.Render))
	fmt.Fprintf(&b, "  failed:       %s\n", countStyle(result.Failed, ErrorStyle.Render))
	fmt.Fprintf(&b, "Notifications:  %d\n", result.Notifications)
	b.WriteString(SubtleStyle.Render("run " + result.RunID))

	return RenderBox(MoneyIcon+" Sync complete", b.String())
}

func countStyle(n int, render func(...string) string) string {
	s := fmt.Sprintf("%d", n)
	if n == 0 {
		return s
	}
	return render(s)
}

// RenderProjection shows the per-bucket outcome of a projection run.
func RenderProjection(report *budget.Report) string {
	if report == nil {
		return ""
	}

	title := "Budget projection"
	if report.Preview {
		title += " (preview)"
	}

	var b strings.Builder
	b.WriteString(FormatTitle(ChartIcon, title))
	b.WriteString("\n")
	fmt.Fprintf(&b, "Window %s to %s, income %s (need %s, want %s)\n\n",
		report.WindowStart.Format("Jan 2, 2006"),
		report.WindowEnd.Format("Jan 2, 2006"),
		FormatMoney(report.Income),
		FormatMoney(report.IdealNeed),
		FormatMoney(report.IdealWant))

	if len(report.Lines) == 0 {
		b.WriteString(FormatInfo("No buckets had spending in the window."))
		return b.String()
	}

	headers := []string{"Bucket", "Type", "Avg spend", "Limit", "Limitation", "Max limit"}
	if report.Preview {
		headers = append(headers, "Change %")
	}

	rows := make([][]string, 0, len(report.Lines))
	for _, line := range report.Lines {
		row := []string{
			line.CategoryName,
			string(line.Type),
			FormatMoney(line.Average),
			FormatMoney(line.Limit),
			FormatMoney(line.Limitation),
			FormatMoney(line.MaxLimit),
		}
		if report.Preview {
			row = append(row, line.PercentChange)
		}
		rows = append(rows, row)
	}

	b.WriteString(RenderTable(headers, rows))
	return b.String()
}

// RenderNotifications lists notifications newest first.
func RenderNotifications(notifications []model.Notification) string {
	if len(notifications) == 0 {
		return FormatInfo("No notifications.")
	}

	rows := make([][]string, 0, len(notifications))
	for _, n := range notifications {
		status := "new"
		if n.Read {
			status = SubtleStyle.Render("read")
		}
		rows = append(rows, []string{
			n.CreatedAt.Local().Format("Jan 2 15:04"),
			status,
			n.Title,
			n.Message,
			SubtleStyle.Render(n.ID),
		})
	}

	return FormatTitle(BellIcon, "Notifications") + "\n" +
		RenderTable([]string{"When", "Status", "Title", "Message", "ID"}, rows)
}
