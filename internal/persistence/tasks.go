package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/aristath/stagetrack/internal/stages"
)

// SaveTask saves or updates a task. A zero UpdatedAt is set to now.
func (s *SQLiteStore) SaveTask(ctx context.Context, task *stages.Task) error {
	if !task.Status.Valid() {
		return fmt.Errorf("task %s: invalid status %q", task.ID, task.Status)
	}
	if task.UpdatedAt.IsZero() {
		task.UpdatedAt = time.Now().UTC()
	}

	var completedAt sql.NullString
	if task.CompletedAt != nil {
		completedAt = sql.NullString{String: formatTime(*task.CompletedAt), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tasks (id, project_id, name, status, sequence, completed_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			project_id = excluded.project_id,
			name = excluded.name,
			status = excluded.status,
			sequence = excluded.sequence,
			completed_at = excluded.completed_at,
			updated_at = excluded.updated_at
	`, task.ID, task.ProjectID, task.Name, string(task.Status), task.Sequence, completedAt, formatTime(task.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to upsert task: %w", err)
	}

	return nil
}

// GetTask retrieves a task by ID.
func (s *SQLiteStore) GetTask(ctx context.Context, taskID string) (*stages.Task, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, project_id, name, status, sequence, completed_at, updated_at
		FROM tasks
		WHERE id = ?
	`, taskID)

	task, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("task %s: %w", taskID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query task: %w", err)
	}
	return &task, nil
}

// ListProjectTasks returns a project's tasks ordered by sequence position.
func (s *SQLiteStore) ListProjectTasks(ctx context.Context, projectID string) ([]stages.Task, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, project_id, name, status, sequence, completed_at, updated_at
		FROM tasks
		WHERE project_id = ?
		ORDER BY sequence, id
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer rows.Close()

	var tasks []stages.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, task)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tasks: %w", err)
	}

	return tasks, nil
}

// UpdateTaskStatus changes a task's status as of the given time.
// Moving a task to completed records at as its completion time; a task that is
// already completed keeps its original one. Any other status clears it.
func (s *SQLiteStore) UpdateTaskStatus(ctx context.Context, taskID string, status stages.TaskStatus, at time.Time) error {
	if !status.Valid() {
		return fmt.Errorf("task %s: invalid status %q", taskID, status)
	}

	stamp := formatTime(at)
	res, err := s.db.ExecContext(ctx, `
		UPDATE tasks
		SET completed_at = CASE
				WHEN ? != 'completed' THEN NULL
				WHEN status = 'completed' AND completed_at IS NOT NULL THEN completed_at
				ELSE ?
			END,
			status = ?,
			updated_at = ?
		WHERE id = ?
	`, string(status), stamp, string(status), stamp, taskID)
	if err != nil {
		return fmt.Errorf("failed to update task status: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("task %s: %w", taskID, ErrNotFound)
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (stages.Task, error) {
	var (
		task        stages.Task
		status      string
		completedAt sql.NullString
		updatedAt   string
	)

	if err := row.Scan(&task.ID, &task.ProjectID, &task.Name, &status, &task.Sequence, &completedAt, &updatedAt); err != nil {
		return stages.Task{}, err
	}

	task.Status = stages.ParseTaskStatus(status)

	if completedAt.Valid && completedAt.String != "" {
		ts, err := parseTime(completedAt.String)
		if err != nil {
			return stages.Task{}, fmt.Errorf("task %s completed_at: %w", task.ID, err)
		}
		task.CompletedAt = &ts
	}

	ts, err := parseTime(updatedAt)
	if err != nil {
		return stages.Task{}, fmt.Errorf("task %s updated_at: %w", task.ID, err)
	}
	task.UpdatedAt = ts

	return task, nil
}
