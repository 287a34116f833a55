package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/aristath/stagetrack/internal/persistence"
	"github.com/aristath/stagetrack/internal/stages"
)

func newProjectCmd(a *app) *cobra.Command {
	projectCmd := &cobra.Command{
		Use:   "project",
		Short: "Manage projects",
	}

	var client string
	addCmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Create a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}

			project := &persistence.Project{
				ID:        uuid.NewString(),
				Name:      args[0],
				Client:    client,
				CreatedAt: a.now(),
			}
			if err := store.SaveProject(cmd.Context(), project); err != nil {
				return fmt.Errorf("failed to create project: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), project.ID)
			return nil
		},
	}
	addCmd.Flags().StringVar(&client, "client", "", "client name")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List projects with their current stage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.listProjects(cmd)
		},
	}

	deleteCmd := &cobra.Command{
		Use:   "delete <project-id>",
		Short: "Delete a project and its tasks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			if err := store.DeleteProject(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("failed to delete project: %w", err)
			}
			return nil
		},
	}

	projectCmd.AddCommand(addCmd, listCmd, deleteCmd)
	return projectCmd
}

func (a *app) listProjects(cmd *cobra.Command) error {
	ctx := cmd.Context()
	store, err := a.openStore(ctx)
	if err != nil {
		return err
	}

	projects, err := store.ListProjects(ctx)
	if err != nil {
		return fmt.Errorf("failed to list projects: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(projects) == 0 {
		fmt.Fprintln(out, "No projects.")
		return nil
	}

	now := a.now()
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tCLIENT\tSTAGE\tSTATUS\tDONE\tCREATED")

	for _, p := range projects {
		tasks, err := store.ListProjectTasks(ctx, p.ID)
		if err != nil {
			return fmt.Errorf("failed to load tasks for %s: %w", p.ID, err)
		}
		sum := stages.Summarize(a.catalog.ProjectStages(tasks, now))

		stage, status := "-", "idle"
		switch {
		case sum.AllCompleted:
			status = string(stages.CountdownCompleted)
		case sum.Current != nil:
			stage = sum.Current.Stage.Name
			status = countdownLabel(sum.Current.Countdown)
		}

		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d/%d\t%s\n",
			p.ID,
			p.Name,
			dash(p.Client),
			stage,
			status,
			sum.Completed, sum.Total,
			humanize.RelTime(p.CreatedAt, now, "ago", "from now"),
		)
	}

	return w.Flush()
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
