package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/region23/servicedesk/internal/storage/models"
	"github.com/region23/servicedesk/internal/timer"
	apperrors "github.com/region23/servicedesk/pkg/errors"
	"github.com/region23/servicedesk/pkg/metrics"
)

const timerColumns = `id, label, timer_type, start_datetime, target_datetime, is_paused,
	paused_duration, last_pause_start, created_by_user_id, created_at, updated_at`

// CreateTimer создает новый таймер
func (s *SQLiteStorage) CreateTimer(ctx context.Context, t *models.Timer) (err error) {
	defer func() { metrics.RecordDatabaseOperation("insert", "timers", metrics.Status(err)) }()

	query := `INSERT INTO timers (label, timer_type, start_datetime, target_datetime, is_paused,
			  paused_duration, last_pause_start, created_by_user_id, created_at, updated_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	result, err := s.db.ExecContext(ctx, query,
		t.Label, string(t.Mode), formatTime(t.Start), formatTimePtr(t.Target), t.Paused,
		t.PausedSeconds, formatTimePtr(t.PauseStart), nullInt64(t.CreatedByUserID),
		formatTime(t.CreatedAt), formatTime(t.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create timer: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get timer ID: %w", err)
	}

	t.ID = id
	return nil
}

// GetTimer получает таймер по ID
func (s *SQLiteStorage) GetTimer(ctx context.Context, id int64) (*models.Timer, error) {
	query := `SELECT ` + timerColumns + ` FROM timers WHERE id = ?`

	t, err := scanTimer(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.ErrTimerNotFound.WithContext(map[string]interface{}{"timer_id": id})
		}
		return nil, fmt.Errorf("failed to get timer: %w", err)
	}

	return t, nil
}

// ListTimers получает все таймеры, новые первыми
func (s *SQLiteStorage) ListTimers(ctx context.Context) ([]*models.Timer, error) {
	query := `SELECT ` + timerColumns + ` FROM timers ORDER BY created_at DESC, id DESC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list timers: %w", err)
	}
	defer rows.Close()

	var timers []*models.Timer
	for rows.Next() {
		t, err := scanTimer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan timer: %w", err)
		}
		timers = append(timers, t)
	}

	return timers, rows.Err()
}

// UpdateTimer сохраняет все изменяемые поля таймера
func (s *SQLiteStorage) UpdateTimer(ctx context.Context, t *models.Timer) (err error) {
	defer func() { metrics.RecordDatabaseOperation("update", "timers", metrics.Status(err)) }()

	query := `UPDATE timers SET label = ?, timer_type = ?, start_datetime = ?, target_datetime = ?,
			  is_paused = ?, paused_duration = ?, last_pause_start = ?, updated_at = ?
			  WHERE id = ?`

	result, err := s.db.ExecContext(ctx, query,
		t.Label, string(t.Mode), formatTime(t.Start), formatTimePtr(t.Target), t.Paused,
		t.PausedSeconds, formatTimePtr(t.PauseStart), formatTime(t.UpdatedAt), t.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update timer: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}

	if rowsAffected == 0 {
		return apperrors.ErrTimerNotFound.WithContext(map[string]interface{}{"timer_id": t.ID})
	}

	return nil
}

// DeleteTimer удаляет таймер
func (s *SQLiteStorage) DeleteTimer(ctx context.Context, id int64) (err error) {
	defer func() { metrics.RecordDatabaseOperation("delete", "timers", metrics.Status(err)) }()

	result, err := s.db.ExecContext(ctx, `DELETE FROM timers WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete timer: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}

	if rowsAffected == 0 {
		return apperrors.ErrTimerNotFound.WithContext(map[string]interface{}{"timer_id": id})
	}

	return nil
}

// CountTimers возвращает количество таймеров
func (s *SQLiteStorage) CountTimers(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM timers`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count timers: %w", err)
	}
	return count, nil
}

func scanTimer(row scanner) (*models.Timer, error) {
	var (
		t                         models.Timer
		mode, start, created, upd string
		target, pauseStart        sql.NullString
		createdBy                 sql.NullInt64
	)

	err := row.Scan(
		&t.ID, &t.Label, &mode, &start, &target, &t.Paused,
		&t.PausedSeconds, &pauseStart, &createdBy, &created, &upd,
	)
	if err != nil {
		return nil, err
	}

	t.Mode = timer.Mode(mode)
	t.CreatedByUserID = int64Ptr(createdBy)

	if t.Start, err = parseTime(start); err != nil {
		return nil, err
	}
	if t.Target, err = parseTimePtr(target); err != nil {
		return nil, err
	}
	if t.PauseStart, err = parseTimePtr(pauseStart); err != nil {
		return nil, err
	}
	if t.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	if t.UpdatedAt, err = parseTime(upd); err != nil {
		return nil, err
	}

	return &t, nil
}
