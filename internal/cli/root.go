package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/aristath/stagetrack/internal/config"
	"github.com/aristath/stagetrack/internal/persistence"
	"github.com/aristath/stagetrack/internal/stages"
)

// app holds state shared by all commands of one invocation.
type app struct {
	configPath string // Project config override (--config)
	dbPath     string // Database override (--db)
	noColor    bool

	globalPath  string
	projectPath string
	cfg         *config.Config
	catalog     *stages.Catalog
	store       persistence.Store

	now func() time.Time
}

func newApp() *app {
	return &app{now: time.Now}
}

// newRootCmd builds the stagetrack command tree around a.
func newRootCmd(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "stagetrack",
		Short: "Execution stage tracker for interior design projects",
		Long: `stagetrack follows each project through its execution stages, counting down
the days allotted to every stage once the one before it is complete.

Run without a command to open the dashboard.`,
		Version:       "0.1.0",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if a.noColor {
				color.NoColor = true
			}
			return a.loadConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runDashboard(cmd)
		},
	}

	rootCmd.PersistentFlags().StringVar(&a.configPath, "config", "", "project config file (default .stagetrack/config.json)")
	rootCmd.PersistentFlags().StringVar(&a.dbPath, "db", "", "task database (overrides database.path)")
	rootCmd.PersistentFlags().BoolVar(&a.noColor, "no-color", false, "disable color output")

	rootCmd.AddCommand(
		newDashboardCmd(a),
		newProjectCmd(a),
		newTaskCmd(a),
		newStagesCmd(a),
		newCatalogCmd(a),
		newWatchCmd(a),
	)

	return rootCmd
}

// Execute runs the command line. The task store is closed on return.
func Execute(ctx context.Context, args []string) error {
	a := newApp()
	defer a.close()

	rootCmd := newRootCmd(a)
	rootCmd.SetArgs(args)
	return rootCmd.ExecuteContext(ctx)
}

// loadConfig reads the layered configuration and builds the stage catalog.
func (a *app) loadConfig() error {
	globalPath, projectPath, err := config.DefaultPaths()
	if err != nil {
		return err
	}
	if a.configPath != "" {
		projectPath = a.configPath
	}
	a.globalPath, a.projectPath = globalPath, projectPath

	cfg, err := config.Load(globalPath, projectPath)
	if err != nil {
		return err
	}
	if a.dbPath != "" {
		cfg.Database.Path = a.dbPath
	}

	catalog, err := cfg.Catalog()
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.catalog = catalog
	return nil
}

// openStore opens the task store on first use.
func (a *app) openStore(ctx context.Context) (persistence.Store, error) {
	if a.store != nil {
		return a.store, nil
	}

	path, err := a.cfg.DatabasePath()
	if err != nil {
		return nil, err
	}
	store, err := persistence.NewSQLiteStore(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("opening task store: %w", err)
	}
	a.store = store
	return store, nil
}

func (a *app) close() error {
	if a.store == nil {
		return nil
	}
	err := a.store.Close()
	a.store = nil
	return err
}
