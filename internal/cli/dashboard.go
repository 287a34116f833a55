package cli

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/aristath/stagetrack/internal/events"
	"github.com/aristath/stagetrack/internal/monitor"
	"github.com/aristath/stagetrack/internal/tui"
)

func newDashboardCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Open the live stage dashboard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runDashboard(cmd)
		},
	}
}

// monitorConfig maps file configuration onto the monitor.
func (a *app) monitorConfig() monitor.Config {
	mc := a.cfg.Monitor
	return monitor.Config{
		Interval:    time.Duration(mc.RefreshInterval),
		Concurrency: mc.Concurrency,
		Retry: monitor.RetryConfig{
			InitialInterval: time.Duration(mc.Retry.InitialInterval),
			MaxInterval:     time.Duration(mc.Retry.MaxInterval),
			MaxElapsedTime:  time.Duration(mc.Retry.MaxElapsedTime),
		},
		Catalog: a.catalog,
		Clock:   a.now,
	}
}

// runDashboard starts the monitor and the TUI and runs until the TUI exits
// or the command context is cancelled.
func (a *app) runDashboard(cmd *cobra.Command) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	store, err := a.openStore(ctx)
	if err != nil {
		return err
	}

	dbPath, err := a.cfg.DatabasePath()
	if err != nil {
		return err
	}

	// The alt screen owns the terminal; monitor warnings go to a file next to the database
	logFile, err := tea.LogToFile(filepath.Join(filepath.Dir(dbPath), "stagetrack.log"), "")
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}
	defer func() {
		log.SetOutput(os.Stderr)
		logFile.Close()
	}()

	bus := events.NewEventBus()
	defer bus.Close()

	// Subscribe before the monitor publishes its first refresh
	model := tui.New(bus, a.cfg, a.globalPath, a.projectPath)

	mon := monitor.New(a.monitorConfig(), store, bus)
	monDone := make(chan error, 1)
	go func() {
		monDone <- mon.Run(ctx)
	}()

	if a.cfg.Monitor.WatchEnabled() {
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

	p := tea.NewProgram(model, tea.WithAltScreen())

	errChan := make(chan error, 1)
	go func() {
		_, err := p.Run()
		errChan <- err
	}()

	select {
	case err := <-errChan:
		// Normal TUI exit (user pressed 'q')
		cancel()
		<-monDone
		if err != nil {
			return fmt.Errorf("dashboard: %w", err)
		}

	case <-ctx.Done():
		log.Println("Shutdown signal received, cleaning up...")
		p.Quit()

		// Wait for TUI to exit with timeout
		select {
		case err := <-errChan:
			if err != nil {
				log.Printf("TUI exit error: %v", err)
			}
		case <-time.After(10 * time.Second):
			log.Println("Shutdown timeout exceeded, forcing exit")
		}
		<-monDone
	}

	return nil
}
