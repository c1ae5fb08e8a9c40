package panel

import (
	"context"
	"net/url"
	"strconv"
	"time"

	"github.com/region23/servicedesk/internal/api"
	"github.com/region23/servicedesk/pkg/errors"
)

// DateLayout формат даты в поле срока
const DateLayout = "2006-01-02"

// TaskSource загружает задачу для панели
type TaskSource interface {
	Get(ctx context.Context, id int64) (*api.Task, error)
}

// DetailForm поля боковой панели редактирования задачи
type DetailForm struct {
	ID             int64
	Title          string
	Notes          string
	DueDate        string
	RecurrenceType string
	ListName       string
	Visible        bool
}

// Fill заполняет форму из записи и только после этого делает панель видимой.
// Срок обрезается до календарной даты в локации loc.
func (f *DetailForm) Fill(t *api.Task, loc *time.Location) error {
	if t == nil || t.ID <= 0 {
		f.Hide()
		return errors.ErrInvalidTaskID
	}
	if loc == nil {
		loc = time.Local
	}

	next := DetailForm{
		ID:             t.ID,
		Title:          t.Title,
		Notes:          t.Notes,
		RecurrenceType: t.RecurrenceType,
		ListName:       t.ListName,
	}
	if t.DueDate != nil && !t.DueDate.IsZero() {
		next.DueDate = LocalDate(t.DueDate.Time, loc)
	}

	*f = next
	f.Visible = true
	return nil
}

// Load загружает задачу и заполняет форму. При ошибке панель скрыта.
func (f *DetailForm) Load(ctx context.Context, src TaskSource, id int64, loc *time.Location) error {
	t, err := src.Get(ctx, id)
	if err != nil {
		f.Hide()
		return err
	}
	return f.Fill(t, loc)
}

// Hide скрывает панель и очищает поля
func (f *DetailForm) Hide() {
	*f = DetailForm{}
}

// Values возвращает поля формы для отправки
func (f *DetailForm) Values() url.Values {
	v := url.Values{}
	v.Set("id", strconv.FormatInt(f.ID, 10))
	v.Set("title", f.Title)
	v.Set("notes", f.Notes)
	v.Set(FieldDueDate, f.DueDate)
	v.Set(FieldRecurrence, f.RecurrenceType)
	v.Set("list_name", f.ListName)
	return v
}

// LocalDate форматирует календарную дату момента t в локации loc
func LocalDate(t time.Time, loc *time.Location) string {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Format(DateLayout)
}
