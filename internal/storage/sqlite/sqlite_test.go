package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/region23/servicedesk/internal/storage"
	"github.com/region23/servicedesk/internal/storage/models"
	"github.com/region23/servicedesk/internal/timer"
	apperrors "github.com/region23/servicedesk/pkg/errors"
)

var now = time.Date(2024, 5, 20, 9, 30, 15, 250_000_000, time.UTC)

func newTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()

	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("Failed to create test storage: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	return s
}

func newTimer(label string, mode timer.Mode, createdAt time.Time) *models.Timer {
	t := &models.Timer{
		Snapshot: timer.Snapshot{
			Mode:  mode,
			Start: createdAt,
		},
		Label:     label,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
	if mode == timer.ModeRemaining {
		target := createdAt.Add(48 * time.Hour)
		t.Target = &target
	}
	return t
}

func TestTimers_CreateAndGet(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	userID := int64(777)
	tm := newTimer("Заправка картриджей", timer.ModeRemaining, now)
	tm.CreatedByUserID = &userID

	if err := s.CreateTimer(ctx, tm); err != nil {
		t.Fatalf("Failed to create timer: %v", err)
	}
	if tm.ID == 0 {
		t.Fatal("Expected timer ID to be set")
	}

	got, err := s.GetTimer(ctx, tm.ID)
	if err != nil {
		t.Fatalf("Failed to get timer: %v", err)
	}

	if got.Label != tm.Label || got.Mode != timer.ModeRemaining {
		t.Errorf("Unexpected timer: %+v", got)
	}
	if !got.Start.Equal(tm.Start) {
		t.Errorf("Start = %v, want %v", got.Start, tm.Start)
	}
	if got.Target == nil || !got.Target.Equal(*tm.Target) {
		t.Errorf("Target = %v, want %v", got.Target, tm.Target)
	}
	if got.Paused || got.PauseStart != nil || got.PausedSeconds != 0 {
		t.Errorf("New timer must not be paused: %+v", got.Snapshot)
	}
	if got.CreatedByUserID == nil || *got.CreatedByUserID != userID {
		t.Errorf("CreatedByUserID = %v, want %d", got.CreatedByUserID, userID)
	}
}

func TestTimers_GetMissing(t *testing.T) {
	s := newTestStorage(t)

	_, err := s.GetTimer(context.Background(), 42)
	if !errors.Is(err, apperrors.ErrTimerNotFound) {
		t.Fatalf("Expected ErrTimerNotFound, got %v", err)
	}
}

func TestTimers_ListNewestFirst(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	for i, label := range []string{"первый", "второй", "третий"} {
		tm := newTimer(label, timer.ModeElapsed, now.Add(time.Duration(i)*time.Minute))
		if err := s.CreateTimer(ctx, tm); err != nil {
			t.Fatalf("Failed to create timer: %v", err)
		}
	}

	timers, err := s.ListTimers(ctx)
	if err != nil {
		t.Fatalf("Failed to list timers: %v", err)
	}
	if len(timers) != 3 {
		t.Fatalf("Expected 3 timers, got %d", len(timers))
	}

	want := []string{"третий", "второй", "первый"}
	for i, tm := range timers {
		if tm.Label != want[i] {
			t.Errorf("timers[%d] = %q, want %q", i, tm.Label, want[i])
		}
	}

	count, err := s.CountTimers(ctx)
	if err != nil || count != 3 {
		t.Errorf("CountTimers() = %d, %v; want 3", count, err)
	}
}

func TestTimers_UpdatePauseState(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	tm := newTimer("ремонт", timer.ModeElapsed, now)
	if err := s.CreateTimer(ctx, tm); err != nil {
		t.Fatal(err)
	}

	pausedAt := now.Add(10 * time.Minute)
	if err := tm.Pause(pausedAt); err != nil {
		t.Fatal(err)
	}
	tm.UpdatedAt = pausedAt
	if err := s.UpdateTimer(ctx, tm); err != nil {
		t.Fatalf("Failed to update timer: %v", err)
	}

	got, err := s.GetTimer(ctx, tm.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Paused || got.PauseStart == nil || !got.PauseStart.Equal(pausedAt) {
		t.Errorf("Pause state not persisted: %+v", got.Snapshot)
	}

	if err := got.Resume(pausedAt.Add(90 * time.Second)); err != nil {
		t.Fatal(err)
	}
	if err := s.UpdateTimer(ctx, got); err != nil {
		t.Fatal(err)
	}

	got, err = s.GetTimer(ctx, tm.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Paused || got.PauseStart != nil || got.PausedSeconds != 90 {
		t.Errorf("Resume state not persisted: %+v", got.Snapshot)
	}
}

func TestTimers_DeleteAndUpdateMissing(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	tm := newTimer("удалить", timer.ModeElapsed, now)
	if err := s.CreateTimer(ctx, tm); err != nil {
		t.Fatal(err)
	}

	if err := s.DeleteTimer(ctx, tm.ID); err != nil {
		t.Fatalf("Failed to delete timer: %v", err)
	}
	if err := s.DeleteTimer(ctx, tm.ID); !errors.Is(err, apperrors.ErrTimerNotFound) {
		t.Errorf("Second delete: expected ErrTimerNotFound, got %v", err)
	}
	if err := s.UpdateTimer(ctx, tm); !errors.Is(err, apperrors.ErrTimerNotFound) {
		t.Errorf("Update after delete: expected ErrTimerNotFound, got %v", err)
	}
}

func TestTasks_CRUDAndFilters(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	due := now.Add(24 * time.Hour)
	tasks := []*models.Task{
		{Title: "Купить тонер", ListName: "Закупки", DueDate: &due, CreatedAt: now, UpdatedAt: now},
		{Title: "Позвонить клиенту", ListName: "Звонки", IsImportant: true, CreatedAt: now, UpdatedAt: now},
		{Title: "Отчет", Recurrence: models.RecurrenceWeekly, CreatedAt: now, UpdatedAt: now},
	}
	for _, task := range tasks {
		if err := s.CreateTask(ctx, task); err != nil {
			t.Fatalf("Failed to create task: %v", err)
		}
	}

	got, err := s.GetTask(ctx, tasks[0].ID)
	if err != nil {
		t.Fatalf("Failed to get task: %v", err)
	}
	if got.Title != "Купить тонер" || got.DueDate == nil || !got.DueDate.Equal(due) {
		t.Errorf("Unexpected task: %+v", got)
	}

	all, err := s.ListTasks(ctx, storage.TaskFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Fatalf("Expected 3 tasks, got %d", len(all))
	}
	if all[0].Title != "Позвонить клиенту" {
		t.Errorf("Important task should come first, got %q", all[0].Title)
	}

	inList, err := s.ListTasks(ctx, storage.TaskFilter{ListName: "Закупки"})
	if err != nil {
		t.Fatal(err)
	}
	if len(inList) != 1 || inList[0].ID != tasks[0].ID {
		t.Errorf("List filter returned %d tasks", len(inList))
	}

	completedAt := now.Add(time.Hour)
	got.IsCompleted = true
	got.CompletedAt = &completedAt
	if err := s.UpdateTask(ctx, got); err != nil {
		t.Fatalf("Failed to update task: %v", err)
	}

	done := true
	completed, err := s.ListTasks(ctx, storage.TaskFilter{Completed: &done})
	if err != nil {
		t.Fatal(err)
	}
	if len(completed) != 1 || completed[0].CompletedAt == nil {
		t.Errorf("Expected one completed task, got %d", len(completed))
	}

	names, err := s.ListNames(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 2 || names[0] != "Закупки" || names[1] != "Звонки" {
		t.Errorf("ListNames() = %v", names)
	}
}

func TestTasks_BulkDelete(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	var ids []int64
	for _, title := range []string{"a", "b", "c"} {
		task := &models.Task{Title: title, CreatedAt: now, UpdatedAt: now}
		if err := s.CreateTask(ctx, task); err != nil {
			t.Fatal(err)
		}
		ids = append(ids, task.ID)
	}

	n, err := s.DeleteTasks(ctx, []int64{ids[0], ids[2], 999})
	if err != nil {
		t.Fatalf("Failed to delete tasks: %v", err)
	}
	if n != 2 {
		t.Errorf("Deleted %d tasks, want 2", n)
	}

	if err := s.DeleteTask(ctx, ids[0]); !errors.Is(err, apperrors.ErrTaskNotFound) {
		t.Errorf("Expected ErrTaskNotFound, got %v", err)
	}
	if _, err := s.GetTask(ctx, ids[1]); err != nil {
		t.Errorf("Remaining task should exist: %v", err)
	}
}

func TestTimeLayoutSortsLexically(t *testing.T) {
	a := formatTime(now)
	b := formatTime(now.Add(500 * time.Millisecond))
	c := formatTime(now.Add(time.Second))
	if !(a < b && b < c) {
		t.Errorf("Formatted times do not sort: %q %q %q", a, b, c)
	}

	parsed, err := parseTime(b)
	if err != nil || !parsed.Equal(now.Add(500*time.Millisecond)) {
		t.Errorf("parseTime(%q) = %v, %v", b, parsed, err)
	}
}
