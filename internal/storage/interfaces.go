package storage

import (
	"context"

	"github.com/region23/servicedesk/internal/storage/models"
)

// TimerRepository определяет интерфейс для работы с таймерами
type TimerRepository interface {
	CreateTimer(ctx context.Context, t *models.Timer) error
	GetTimer(ctx context.Context, id int64) (*models.Timer, error)
	// ListTimers возвращает таймеры от новых к старым
	ListTimers(ctx context.Context) ([]*models.Timer, error)
	UpdateTimer(ctx context.Context, t *models.Timer) error
	DeleteTimer(ctx context.Context, id int64) error
	CountTimers(ctx context.Context) (int, error)
}

// TaskFilter ограничивает выборку задач
type TaskFilter struct {
	ListName  string
	Completed *bool
}

// TaskRepository определяет интерфейс для работы с задачами
type TaskRepository interface {
	CreateTask(ctx context.Context, t *models.Task) error
	GetTask(ctx context.Context, id int64) (*models.Task, error)
	ListTasks(ctx context.Context, filter TaskFilter) ([]*models.Task, error)
	UpdateTask(ctx context.Context, t *models.Task) error
	DeleteTask(ctx context.Context, id int64) error
	DeleteTasks(ctx context.Context, ids []int64) (int, error)
	ListNames(ctx context.Context) ([]string, error)
}

// Storage объединяет все репозитории в единый интерфейс
type Storage interface {
	TimerRepository
	TaskRepository
	Close() error
	Ping(ctx context.Context) error
}
