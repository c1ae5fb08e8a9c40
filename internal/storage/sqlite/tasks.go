package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/region23/servicedesk/internal/storage"
	"github.com/region23/servicedesk/internal/storage/models"
	apperrors "github.com/region23/servicedesk/pkg/errors"
	"github.com/region23/servicedesk/pkg/metrics"
)

const taskColumns = `id, title, notes, due_date, list_name, recurrence_type, recurrence_original_id,
	is_important, is_completed, completed_at, created_by_user_id, created_at, updated_at`

// CreateTask создает новую задачу
func (s *SQLiteStorage) CreateTask(ctx context.Context, t *models.Task) (err error) {
	defer func() { metrics.RecordDatabaseOperation("insert", "tasks", metrics.Status(err)) }()

	query := `INSERT INTO tasks (title, notes, due_date, list_name, recurrence_type, recurrence_original_id,
			  is_important, is_completed, completed_at, created_by_user_id, created_at, updated_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	result, err := s.db.ExecContext(ctx, query,
		t.Title, t.Notes, formatTimePtr(t.DueDate), t.ListName, string(t.Recurrence),
		nullInt64(t.RecurrenceOriginalID), t.IsImportant, t.IsCompleted, formatTimePtr(t.CompletedAt),
		nullInt64(t.CreatedByUserID), formatTime(t.CreatedAt), formatTime(t.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get task ID: %w", err)
	}

	t.ID = id
	return nil
}

// GetTask получает задачу по ID
func (s *SQLiteStorage) GetTask(ctx context.Context, id int64) (*models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = ?`

	t, err := scanTask(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.ErrTaskNotFound.WithContext(map[string]interface{}{"task_id": id})
		}
		return nil, fmt.Errorf("failed to get task: %w", err)
	}

	return t, nil
}

// ListTasks получает задачи: важные и с ближайшим сроком первыми
func (s *SQLiteStorage) ListTasks(ctx context.Context, filter storage.TaskFilter) ([]*models.Task, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter.ListName != "" {
		where = append(where, "list_name = ?")
		args = append(args, filter.ListName)
	}
	if filter.Completed != nil {
		where = append(where, "is_completed = ?")
		args = append(args, *filter.Completed)
	}

	query := `SELECT ` + taskColumns + ` FROM tasks`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY is_completed, is_important DESC, due_date IS NULL, due_date, created_at DESC, id DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*models.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, t)
	}

	return tasks, rows.Err()
}

// UpdateTask сохраняет все изменяемые поля задачи
func (s *SQLiteStorage) UpdateTask(ctx context.Context, t *models.Task) (err error) {
	defer func() { metrics.RecordDatabaseOperation("update", "tasks", metrics.Status(err)) }()

	query := `UPDATE tasks SET title = ?, notes = ?, due_date = ?, list_name = ?, recurrence_type = ?,
			  is_important = ?, is_completed = ?, completed_at = ?, updated_at = ?
			  WHERE id = ?`

	result, err := s.db.ExecContext(ctx, query,
		t.Title, t.Notes, formatTimePtr(t.DueDate), t.ListName, string(t.Recurrence),
		t.IsImportant, t.IsCompleted, formatTimePtr(t.CompletedAt), formatTime(t.UpdatedAt), t.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}

	if rowsAffected == 0 {
		return apperrors.ErrTaskNotFound.WithContext(map[string]interface{}{"task_id": t.ID})
	}

	return nil
}

// DeleteTask удаляет задачу
func (s *SQLiteStorage) DeleteTask(ctx context.Context, id int64) error {
	n, err := s.DeleteTasks(ctx, []int64{id})
	if err != nil {
		return err
	}
	if n == 0 {
		return apperrors.ErrTaskNotFound.WithContext(map[string]interface{}{"task_id": id})
	}
	return nil
}

// DeleteTasks удаляет несколько задач и возвращает число удаленных
func (s *SQLiteStorage) DeleteTasks(ctx context.Context, ids []int64) (n int, err error) {
	if len(ids) == 0 {
		return 0, nil
	}
	defer func() { metrics.RecordDatabaseOperation("delete", "tasks", metrics.Status(err)) }()

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	result, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete tasks: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}

	return int(rowsAffected), nil
}

// ListNames возвращает названия списков задач в алфавитном порядке
func (s *SQLiteStorage) ListNames(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT list_name FROM tasks WHERE list_name != '' ORDER BY list_name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list task lists: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan list name: %w", err)
		}
		names = append(names, name)
	}

	return names, rows.Err()
}

func scanTask(row scanner) (*models.Task, error) {
	var (
		t                       models.Task
		recurrence, created, up string
		due, completedAt        sql.NullString
		originalID, createdBy   sql.NullInt64
	)

	err := row.Scan(
		&t.ID, &t.Title, &t.Notes, &due, &t.ListName, &recurrence, &originalID,
		&t.IsImportant, &t.IsCompleted, &completedAt, &createdBy, &created, &up,
	)
	if err != nil {
		return nil, err
	}

	t.Recurrence = models.RecurrenceType(recurrence)
	t.RecurrenceOriginalID = int64Ptr(originalID)
	t.CreatedByUserID = int64Ptr(createdBy)

	if t.DueDate, err = parseTimePtr(due); err != nil {
		return nil, err
	}
	if t.CompletedAt, err = parseTimePtr(completedAt); err != nil {
		return nil, err
	}
	if t.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	if t.UpdatedAt, err = parseTime(up); err != nil {
		return nil, err
	}

	return &t, nil
}
