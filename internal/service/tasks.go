package service

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/region23/servicedesk/internal/storage"
	"github.com/region23/servicedesk/internal/storage/models"
	"github.com/region23/servicedesk/internal/validation"
	"github.com/region23/servicedesk/pkg/errors"
	"github.com/region23/servicedesk/pkg/logger"
	"github.com/region23/servicedesk/pkg/metrics"
)

// CreateTaskParams параметры создания задачи
type CreateTaskParams struct {
	Title       string
	Notes       string
	DueDate     *time.Time
	ListName    string
	Recurrence  models.RecurrenceType
	IsImportant bool
	UserID      *int64
}

// UpdateTaskParams изменяемые поля задачи; nil означает "не менять".
// ClearDueDate снимает срок, Recurrence с пустым значением отключает повторение.
type UpdateTaskParams struct {
	Title        *string
	Notes        *string
	DueDate      *time.Time
	ClearDueDate bool
	ListName     *string
	Recurrence   *models.RecurrenceType
	IsImportant  *bool
}

// TaskService управляет списками дел
type TaskService struct {
	repo   storage.TaskRepository
	clock  clockwork.Clock
	logger *logger.Logger
}

// NewTaskService создает сервис задач
func NewTaskService(repo storage.TaskRepository, clock clockwork.Clock, log *logger.Logger) *TaskService {
	return &TaskService{
		repo:   repo,
		clock:  clock,
		logger: log,
	}
}

// Create создает задачу
func (s *TaskService) Create(ctx context.Context, p CreateTaskParams) (*models.Task, error) {
	title, err := validation.ValidateTitle(p.Title)
	if err != nil {
		return nil, err
	}
	notes, err := validation.ValidateNotes(p.Notes)
	if err != nil {
		return nil, err
	}
	if !p.Recurrence.Valid() {
		return nil, errors.ErrInvalidRecurrence
	}

	now := s.clock.Now()
	task := &models.Task{
		Title:           title,
		Notes:           notes,
		DueDate:         p.DueDate,
		ListName:        p.ListName,
		Recurrence:      p.Recurrence,
		IsImportant:     p.IsImportant,
		CreatedByUserID: p.UserID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.repo.CreateTask(ctx, task); err != nil {
		metrics.RecordTaskAction("create", "error")
		return nil, errors.ErrDatabase.WithError(err)
	}

	metrics.RecordTaskAction("create", "success")
	s.logger.Info("Task created", logger.Int64("task_id", task.ID), logger.String("list", task.ListName))
	return task, nil
}

// Get получает задачу по ID
func (s *TaskService) Get(ctx context.Context, id int64) (*models.Task, error) {
	return s.repo.GetTask(ctx, id)
}

// List возвращает задачи по фильтру
func (s *TaskService) List(ctx context.Context, filter storage.TaskFilter) ([]*models.Task, error) {
	return s.repo.ListTasks(ctx, filter)
}

// Lists возвращает названия всех списков
func (s *TaskService) Lists(ctx context.Context) ([]string, error) {
	return s.repo.ListNames(ctx)
}

// Today возвращает невыполненные задачи со сроком на сегодня
func (s *TaskService) Today(ctx context.Context) ([]*models.Task, error) {
	start, end := s.dayBounds()
	return s.pending(ctx, func(t *models.Task) bool {
		return t.DueDate != nil && !t.DueDate.Before(start) && t.DueDate.Before(end)
	})
}

// Overdue возвращает невыполненные задачи со сроком раньше сегодняшнего дня
func (s *TaskService) Overdue(ctx context.Context) ([]*models.Task, error) {
	start, _ := s.dayBounds()
	return s.pending(ctx, func(t *models.Task) bool {
		return t.DueDate != nil && t.DueDate.Before(start)
	})
}

// Update изменяет задачу
func (s *TaskService) Update(ctx context.Context, id int64, p UpdateTaskParams) (*models.Task, error) {
	task, err := s.repo.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}

	if p.Title != nil {
		if task.Title, err = validation.ValidateTitle(*p.Title); err != nil {
			return nil, err
		}
	}
	if p.Notes != nil {
		if task.Notes, err = validation.ValidateNotes(*p.Notes); err != nil {
			return nil, err
		}
	}
	if p.ClearDueDate {
		task.DueDate = nil
	} else if p.DueDate != nil {
		due := *p.DueDate
		task.DueDate = &due
	}
	if p.ListName != nil {
		task.ListName = *p.ListName
	}
	if p.Recurrence != nil {
		if !p.Recurrence.Valid() {
			return nil, errors.ErrInvalidRecurrence
		}
		task.Recurrence = *p.Recurrence
	}
	if p.IsImportant != nil {
		task.IsImportant = *p.IsImportant
	}

	task.UpdatedAt = s.clock.Now()
	if err := s.repo.UpdateTask(ctx, task); err != nil {
		metrics.RecordTaskAction("update", "error")
		return nil, err
	}

	metrics.RecordTaskAction("update", "success")
	return task, nil
}

// Delete удаляет задачу
func (s *TaskService) Delete(ctx context.Context, id int64) error {
	err := s.repo.DeleteTask(ctx, id)
	metrics.RecordTaskAction("delete", metrics.Status(err))
	if err == nil {
		s.logger.Info("Task deleted", logger.Int64("task_id", id))
	}
	return err
}

// Complete отмечает задачу выполненной. Повторное выполнение ничего не меняет.
// Для повторяющейся задачи создается следующая, она возвращается вторым значением.
func (s *TaskService) Complete(ctx context.Context, id int64) (*models.Task, *models.Task, error) {
	task, err := s.repo.GetTask(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if task.IsCompleted {
		return task, nil, nil
	}

	now := s.clock.Now()
	task.IsCompleted = true
	task.CompletedAt = &now
	task.UpdatedAt = now

	if err := s.repo.UpdateTask(ctx, task); err != nil {
		metrics.RecordTaskAction("complete", "error")
		return nil, nil, err
	}
	metrics.RecordTaskAction("complete", "success")

	next, err := s.spawnNext(ctx, task, now)
	if err != nil {
		s.logger.Error("Failed to create next occurrence",
			logger.Int64("task_id", task.ID),
			logger.Error(err),
		)
		return task, nil, err
	}

	return task, next, nil
}

// Uncomplete возвращает задачу в работу
func (s *TaskService) Uncomplete(ctx context.Context, id int64) (*models.Task, error) {
	task, err := s.repo.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	if !task.IsCompleted {
		return task, nil
	}

	task.IsCompleted = false
	task.CompletedAt = nil
	task.UpdatedAt = s.clock.Now()

	if err := s.repo.UpdateTask(ctx, task); err != nil {
		metrics.RecordTaskAction("uncomplete", "error")
		return nil, err
	}

	metrics.RecordTaskAction("uncomplete", "success")
	return task, nil
}

// BulkDelete удаляет выбранные задачи
func (s *TaskService) BulkDelete(ctx context.Context, ids []int64) (int, error) {
	n, err := s.repo.DeleteTasks(ctx, ids)
	metrics.RecordTaskAction("bulk_delete", metrics.Status(err))
	if err != nil {
		return 0, err
	}

	s.logger.Info("Tasks deleted", logger.Int("requested", len(ids)), logger.Int("deleted", n))
	return n, nil
}

// BulkComplete выполняет выбранные задачи и возвращает число отмеченных
func (s *TaskService) BulkComplete(ctx context.Context, ids []int64) (int, error) {
	done := 0
	for _, id := range ids {
		task, _, err := s.Complete(ctx, id)
		if errors.Is(err, errors.ErrTaskNotFound) {
			continue
		}
		if err != nil {
			return done, err
		}
		if task.IsCompleted {
			done++
		}
	}
	return done, nil
}

// BulkSetDueDate меняет срок у выбранных задач; nil снимает срок
func (s *TaskService) BulkSetDueDate(ctx context.Context, ids []int64, due *time.Time) (int, error) {
	p := UpdateTaskParams{DueDate: due, ClearDueDate: due == nil}
	return s.bulkUpdate(ctx, ids, p)
}

// BulkSetRecurrence меняет правило повторения у выбранных задач
func (s *TaskService) BulkSetRecurrence(ctx context.Context, ids []int64, r models.RecurrenceType) (int, error) {
	if !r.Valid() {
		return 0, errors.ErrInvalidRecurrence
	}
	return s.bulkUpdate(ctx, ids, UpdateTaskParams{Recurrence: &r})
}

func (s *TaskService) bulkUpdate(ctx context.Context, ids []int64, p UpdateTaskParams) (int, error) {
	updated := 0
	for _, id := range ids {
		_, err := s.Update(ctx, id, p)
		if errors.Is(err, errors.ErrTaskNotFound) {
			continue
		}
		if err != nil {
			return updated, err
		}
		updated++
	}
	return updated, nil
}

func (s *TaskService) spawnNext(ctx context.Context, task *models.Task, now time.Time) (*models.Task, error) {
	due, ok := NextDueDate(task.Recurrence, task.DueDate, now)
	if !ok {
		return nil, nil
	}

	originalID := task.ID
	if task.RecurrenceOriginalID != nil {
		originalID = *task.RecurrenceOriginalID
	}

	next := &models.Task{
		Title:                task.Title,
		Notes:                task.Notes,
		DueDate:              &due,
		ListName:             task.ListName,
		Recurrence:           task.Recurrence,
		RecurrenceOriginalID: &originalID,
		IsImportant:          task.IsImportant,
		CreatedByUserID:      task.CreatedByUserID,
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	if err := s.repo.CreateTask(ctx, next); err != nil {
		return nil, err
	}

	s.logger.Info("Next occurrence created",
		logger.Int64("task_id", next.ID),
		logger.Int64("original_id", originalID),
		logger.String("recurrence", string(next.Recurrence)),
	)
	return next, nil
}

func (s *TaskService) pending(ctx context.Context, keep func(*models.Task) bool) ([]*models.Task, error) {
	open := false
	tasks, err := s.repo.ListTasks(ctx, storage.TaskFilter{Completed: &open})
	if err != nil {
		return nil, err
	}

	var result []*models.Task
	for _, t := range tasks {
		if keep(t) {
			result = append(result, t)
		}
	}
	return result, nil
}

func (s *TaskService) dayBounds() (time.Time, time.Time) {
	now := s.clock.Now()
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return start, start.AddDate(0, 0, 1)
}
