package main

import (
	"fmt"
	"io"
	"slices"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/kavia-common/collaborative-task-board-139157-139166/domain"
)

func printBoards(w io.Writer, boards []domain.Board, activeID string) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "\tID\tNAME\tCREATED")
	for _, b := range boards {
		mark := ""
		if b.ID == activeID {
			mark = "*"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", mark, b.ID, b.Name, formatTime(b.CreatedAt))
	}
	tw.Flush()
}

// printColumns prints the known columns in order, then any task group whose
// status is not a known column.
func printColumns(w io.Writer, columns domain.Columns, grouped map[domain.Status][]domain.Task) {
	for _, col := range columns {
		printColumn(w, col.Title, grouped[col.ID])
	}
	var unknown []domain.Status
	for status, tasks := range grouped {
		if !columns.Contains(status) && len(tasks) > 0 {
			unknown = append(unknown, status)
		}
	}
	slices.Sort(unknown)
	for _, status := range unknown {
		printColumn(w, string(status)+" (unknown column)", grouped[status])
	}
}

func printColumn(w io.Writer, title string, tasks []domain.Task) {
	fmt.Fprintf(w, "== %s (%d)\n", title, len(tasks))
	for _, t := range tasks {
		line := fmt.Sprintf("  [%d] %s  %s  (%s)", t.Position, t.ID, t.Title, t.Priority)
		if t.Assignee != "" {
			line += "  @" + t.Assignee
		}
		fmt.Fprintln(w, line)
	}
}

func printTask(w io.Writer, t domain.Task) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "id\t%s\n", t.ID)
	fmt.Fprintf(tw, "title\t%s\n", t.Title)
	fmt.Fprintf(tw, "description\t%s\n", strings.ReplaceAll(t.Description, "\n", " "))
	fmt.Fprintf(tw, "status\t%s\n", t.Status)
	fmt.Fprintf(tw, "priority\t%s\n", t.Priority)
	fmt.Fprintf(tw, "position\t%d\n", t.Position)
	if t.Assignee != "" {
		fmt.Fprintf(tw, "assignee\t%s\n", t.Assignee)
	}
	fmt.Fprintf(tw, "updated\t%s\n", formatTime(t.UpdatedAt))
	tw.Flush()
}

func printActivity(w io.Writer, entries []domain.ActivityEntry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "no activity")
		return
	}
	for _, e := range entries {
		fmt.Fprintf(w, "%s  %s\n", formatTime(e.CreatedAt), e.Message)
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}
