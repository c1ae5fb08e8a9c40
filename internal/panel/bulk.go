package panel

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/region23/servicedesk/internal/storage/models"
	"github.com/region23/servicedesk/internal/validation"
	"github.com/region23/servicedesk/pkg/errors"
)

// Поля формы массовых действий
const (
	FieldAction     = "action"
	FieldDueDate    = "due_date"
	FieldRecurrence = "recurrence_type"
)

// BulkAction массовое действие над задачами
type BulkAction string

const (
	BulkDelete        BulkAction = "delete"
	BulkComplete      BulkAction = "complete"
	BulkSetDueDate    BulkAction = "set_due_date"
	BulkSetRecurrence BulkAction = "set_recurrence"
)

// BulkRequest разобранная форма массового действия
type BulkRequest struct {
	Action     BulkAction
	IDs        []int64
	DueDate    *time.Time
	Recurrence models.RecurrenceType
}

// BulkService выполняет массовые действия
type BulkService interface {
	BulkDelete(ctx context.Context, ids []int64) (int, error)
	BulkComplete(ctx context.Context, ids []int64) (int, error)
	BulkSetDueDate(ctx context.Context, ids []int64, due *time.Time) (int, error)
	BulkSetRecurrence(ctx context.Context, ids []int64, r models.RecurrenceType) (int, error)
}

// ParseBulkForm разбирает форму массового действия. Даты без времени
// трактуются в локации loc.
func ParseBulkForm(form url.Values, loc *time.Location) (*BulkRequest, error) {
	req := &BulkRequest{Action: BulkAction(strings.TrimSpace(form.Get(FieldAction)))}

	switch req.Action {
	case BulkDelete, BulkComplete, BulkSetDueDate, BulkSetRecurrence:
	default:
		return nil, errors.ErrInvalidBulkAction
	}

	ids, err := validation.ValidateTaskIDs(form[FieldTaskIDs])
	if err != nil {
		return nil, err
	}
	req.IDs = ids

	switch req.Action {
	case BulkSetDueDate:
		req.DueDate, err = validation.ValidateDueDate(form.Get(FieldDueDate), loc)
		if err != nil {
			return nil, err
		}
	case BulkSetRecurrence:
		req.Recurrence, err = validation.ValidateRecurrence(form.Get(FieldRecurrence))
		if err != nil {
			return nil, err
		}
	}

	return req, nil
}

// Apply выполняет разобранное действие и возвращает число затронутых задач
func Apply(ctx context.Context, svc BulkService, req *BulkRequest) (int, error) {
	switch req.Action {
	case BulkDelete:
		return svc.BulkDelete(ctx, req.IDs)
	case BulkComplete:
		return svc.BulkComplete(ctx, req.IDs)
	case BulkSetDueDate:
		return svc.BulkSetDueDate(ctx, req.IDs, req.DueDate)
	case BulkSetRecurrence:
		return svc.BulkSetRecurrence(ctx, req.IDs, req.Recurrence)
	}
	return 0, errors.ErrInvalidBulkAction
}
