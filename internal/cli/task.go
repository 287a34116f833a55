package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/aristath/stagetrack/internal/stages"
)

func newTaskCmd(a *app) *cobra.Command {
	taskCmd := &cobra.Command{
		Use:   "task",
		Short: "Manage project tasks",
	}

	var (
		sequence int
		status   string
	)
	addCmd := &cobra.Command{
		Use:   "add <project-id> <name>",
		Short: "Add a task at a sequence position",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st := stages.TaskStatus(status)
			if !st.Valid() {
				return fmt.Errorf("invalid status %q (want pending, in_progress or completed)", status)
			}

			store, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			if _, err := store.GetProject(ctx, args[0]); err != nil {
				return err
			}

			now := a.now()
			task := &stages.Task{
				ID:        uuid.NewString(),
				ProjectID: args[0],
				Name:      args[1],
				Status:    st,
				Sequence:  sequence,
				UpdatedAt: now,
			}
			if st == stages.TaskCompleted {
				task.CompletedAt = &now
			}
			if err := store.SaveTask(ctx, task); err != nil {
				return fmt.Errorf("failed to add task: %w", err)
			}

			if _, ok := a.catalog.Resolve(sequence); !ok {
				first, last := a.catalog.Span()
				warnf(cmd.ErrOrStderr(), "sequence %d is outside every stage range [%d,%d]; the task will not count toward any stage", sequence, first, last)
			}

			fmt.Fprintln(cmd.OutOrStdout(), task.ID)
			return nil
		},
	}
	addCmd.Flags().IntVar(&sequence, "seq", 0, "sequence position of the task (required)")
	addCmd.Flags().StringVar(&status, "status", string(stages.TaskPending), "initial status")
	_ = addCmd.MarkFlagRequired("seq")

	statusCmd := &cobra.Command{
		Use:   "status <task-id> <status>",
		Short: "Set a task's status (pending, in_progress, completed)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st := stages.TaskStatus(args[1])
			if !st.Valid() {
				return fmt.Errorf("invalid status %q (want pending, in_progress or completed)", args[1])
			}

			store, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			if err := store.UpdateTaskStatus(ctx, args[0], st, a.now()); err != nil {
				return fmt.Errorf("failed to update task: %w", err)
			}
			return nil
		},
	}

	listCmd := &cobra.Command{
		Use:   "list <project-id>",
		Short: "List a project's tasks in sequence order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.listTasks(cmd, args[0])
		},
	}

	taskCmd.AddCommand(addCmd, statusCmd, listCmd)
	return taskCmd
}

func (a *app) listTasks(cmd *cobra.Command, projectID string) error {
	ctx := cmd.Context()
	store, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if _, err := store.GetProject(ctx, projectID); err != nil {
		return err
	}

	tasks, err := store.ListProjectTasks(ctx, projectID)
	if err != nil {
		return fmt.Errorf("failed to list tasks: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(tasks) == 0 {
		fmt.Fprintln(out, "No tasks.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SEQ\tSTAGE\tNAME\tSTATUS\tCOMPLETED\tID")
	for _, t := range tasks {
		stage := "(unmapped)"
		if def, ok := a.catalog.Resolve(t.Sequence); ok {
			stage = def.ID
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
			t.Sequence,
			stage,
			t.Name,
			t.Status,
			formatTimestamp(t.CompletedAt),
			t.ID,
		)
	}
	return w.Flush()
}
