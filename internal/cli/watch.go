package cli

import (
	"cmp"
	"context"
	"fmt"
	"io"
	"log"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/aristath/stagetrack/internal/events"
	"github.com/aristath/stagetrack/internal/monitor"
	"github.com/aristath/stagetrack/internal/stages"
)

func newWatchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Print stage transitions as they happen",
		Long: `Print where every project stands, then one line per stage that unlocks,
runs overdue, or completes, until interrupted. Use this instead of the
dashboard when stdout is not a terminal.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runWatch(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
}

// runWatch follows stage events until ctx is done.
func (a *app) runWatch(ctx context.Context, out, errOut io.Writer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	store, err := a.openStore(ctx)
	if err != nil {
		return err
	}

	bus := events.NewEventBus()
	defer bus.Close()

	sub := bus.Subscribe(events.TopicStage, 256)
	defer bus.Unsubscribe(sub)

	mon := monitor.New(a.monitorConfig(), store, bus)
	if err := mon.Refresh(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		warnf(errOut, "initial refresh incomplete: %v", err)
	}
	printSnapshots(out, mon.Snapshots())

	monDone := make(chan error, 1)
	go func() {
		monDone <- mon.Run(ctx)
	}()

	if a.cfg.Monitor.WatchEnabled() {
		dbPath, err := a.cfg.DatabasePath()
		if err != nil {
			cancel()
			<-monDone
			return err
		}
		watcher, err := monitor.WatchStore(ctx, dbPath, monitor.DefaultWatchDelay, mon.Trigger)
		if err != nil {
			log.Printf("WARNING: database watch disabled: %v", err)
		} else {
			defer func() {
				watcher.Stop()
				watcher.Wait()
			}()
		}
	}

	for {
		select {
		case <-ctx.Done():
			<-monDone
			return nil
		case ev, ok := <-sub:
			if !ok {
				cancel()
				<-monDone
				return nil
			}
			name := ev.ProjectID()
			if snap, ok := mon.Snapshot(ev.ProjectID()); ok {
				name = snap.Project.Name
			}
			printStageEvent(out, name, ev)
		}
	}
}

// printSnapshots writes one line per project, ordered by name.
func printSnapshots(w io.Writer, snaps []*monitor.Snapshot) {
	if len(snaps) == 0 {
		fmt.Fprintln(w, "No projects.")
		return
	}

	slices.SortFunc(snaps, func(a, b *monitor.Snapshot) int {
		return cmp.Or(cmp.Compare(a.Project.Name, b.Project.Name), cmp.Compare(a.Project.ID, b.Project.ID))
	})

	for _, snap := range snaps {
		sum := stages.Summarize(snap.Stages)
		switch {
		case sum.AllCompleted:
			summaryf(w, 0, true, "%s: all %d stages completed", snap.Project.Name, sum.Total)
		case sum.Current != nil:
			c := sum.Current.Countdown
			line := fmt.Sprintf("%s: %s %s", snap.Project.Name, sum.Current.Stage.Name, countdownLabel(c))
			if c.DaysLeft != nil {
				line += fmt.Sprintf(" (%s days left)", daysLeft(c))
			}
			summaryf(w, sum.Overdue, false, "%s", line)
		default:
			summaryf(w, sum.Overdue, false, "%s: no active stage", snap.Project.Name)
		}
	}
}

func printStageEvent(w io.Writer, project string, ev events.Event) {
	switch e := ev.(type) {
	case events.StageUnlockedEvent:
		fmt.Fprintf(w, "%s %s: %s unlocked, %d days left\n", watchStamp(e.Timestamp), project, e.StageName, e.DaysLeft)
	case events.StageOverdueEvent:
		overdueColor.Fprintf(w, "%s %s: %s is overdue\n", watchStamp(e.Timestamp), project, e.StageName)
	case events.StageCompletedEvent:
		late := ""
		if e.WasOverdue {
			late = " (late)"
		}
		doneColor.Fprintf(w, "%s %s: %s completed%s\n", watchStamp(e.Timestamp), project, e.StageName, late)
	}
}

func watchStamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
