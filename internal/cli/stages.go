package cli

import (
	"fmt"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/aristath/stagetrack/internal/stages"
)

func newStagesCmd(a *app) *cobra.Command {
	var at string

	cmd := &cobra.Command{
		Use:   "stages <project-id>",
		Short: "Show a project's stage pipeline and countdowns",
		Long: `Show every execution stage of a project with its countdown.

A stage's countdown starts when the previous stage's last task is completed.
Use --at to evaluate the pipeline at another point in time.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			now := a.now()
			if at != "" {
				t, err := time.Parse(time.RFC3339, at)
				if err != nil {
					return fmt.Errorf("invalid --at time %q: %w", at, err)
				}
				now = t
			}
			return a.showStages(cmd, args[0], now)
		},
	}
	cmd.Flags().StringVar(&at, "at", "", "reference time (RFC3339, default now)")

	return cmd
}

func (a *app) showStages(cmd *cobra.Command, projectID string, now time.Time) error {
	ctx := cmd.Context()
	store, err := a.openStore(ctx)
	if err != nil {
		return err
	}

	project, err := store.GetProject(ctx, projectID)
	if err != nil {
		return err
	}
	tasks, err := store.ListProjectTasks(ctx, projectID)
	if err != nil {
		return fmt.Errorf("failed to load tasks: %w", err)
	}

	statuses := a.catalog.ProjectStages(tasks, now)
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "%s\n\n", project.Name)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STAGE\tRANGE\tTASKS\tSTATUS\tDAYS LEFT\tSTARTED\tCOMPLETED")
	for _, st := range statuses {
		fmt.Fprintf(w, "%s\t%d-%d\t%d/%d\t%s\t%s\t%s\t%s\n",
			st.Stage.Name,
			st.Stage.Min, st.Stage.Max,
			completedCount(st.Tasks), len(st.Tasks),
			countdownLabel(st.Countdown),
			daysLeft(st.Countdown),
			relative(st.Countdown.StartedAt, now),
			relative(st.CompletedAt, now),
		)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	sum := stages.Summarize(statuses)
	fmt.Fprintln(out)
	switch {
	case sum.AllCompleted:
		summaryf(out, 0, true, "All %d stages completed.", sum.Total)
	case sum.Current != nil:
		summaryf(out, sum.Overdue, false, "Current stage: %s (%d/%d completed, %d overdue)", sum.Current.Stage.Name, sum.Completed, sum.Total, sum.Overdue)
	default:
		summaryf(out, sum.Overdue, false, "No active stage (%d/%d completed, %d overdue)", sum.Completed, sum.Total, sum.Overdue)
	}

	if unmapped := a.catalog.Unmapped(tasks); len(unmapped) > 0 {
		first, last := a.catalog.Span()
		errOut := cmd.ErrOrStderr()
		for _, t := range unmapped {
			warnf(errOut, "task %q (%s) has sequence %d outside stage range [%d,%d]; ignored", t.Name, t.ID, t.Sequence, first, last)
		}
	}

	return nil
}

// countdownLabel is the human-readable countdown status.
func countdownLabel(c stages.Countdown) string {
	switch c.Status {
	case stages.CountdownNoTimeline:
		return "no timeline"
	case stages.CountdownNotStarted:
		return "not started"
	case stages.CountdownInProgress:
		return "in progress"
	case stages.CountdownOverdue:
		return "OVERDUE"
	default:
		return string(c.Status)
	}
}

func daysLeft(c stages.Countdown) string {
	if c.DaysLeft == nil {
		return "-"
	}
	return strconv.Itoa(*c.DaysLeft)
}

func completedCount(tasks []stages.Task) int {
	n := 0
	for _, t := range tasks {
		if t.Status == stages.TaskCompleted {
			n++
		}
	}
	return n
}

func relative(t *time.Time, now time.Time) string {
	if t == nil {
		return "-"
	}
	return humanize.RelTime(*t, now, "ago", "from now")
}

func formatTimestamp(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}
