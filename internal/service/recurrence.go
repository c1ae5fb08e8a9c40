package service

import (
	"time"

	"github.com/region23/servicedesk/internal/storage/models"
)

// NextDueDate вычисляет срок следующего повторения задачи.
// Для DAILY, WEEKDAYS и WEEKLY отсчет идет от дня выполнения, срок ставится на полночь.
// MONTHLY и YEARLY сдвигают исходный срок, сохраняя часы и минуты; без срока берется день выполнения.
// ok=false, если задача не повторяется.
func NextDueDate(r models.RecurrenceType, due *time.Time, completedAt time.Time) (time.Time, bool) {
	loc := completedAt.Location()
	today := time.Date(completedAt.Year(), completedAt.Month(), completedAt.Day(), 0, 0, 0, 0, loc)

	switch r {
	case models.RecurrenceDaily:
		return today.AddDate(0, 0, 1), true

	case models.RecurrenceWeekdays:
		next := today.AddDate(0, 0, 1)
		for next.Weekday() == time.Saturday || next.Weekday() == time.Sunday {
			next = next.AddDate(0, 0, 1)
		}
		return next, true

	case models.RecurrenceWeekly:
		return today.AddDate(0, 0, 7), true

	case models.RecurrenceMonthly:
		if due != nil {
			d := due.In(loc)
			return shiftMonths(d, 1, d.Hour(), d.Minute()), true
		}
		return shiftMonths(today, 1, 0, 0), true

	case models.RecurrenceYearly:
		if due != nil {
			d := due.In(loc)
			return shiftMonths(d, 12, d.Hour(), d.Minute()), true
		}
		return shiftMonths(today, 12, 0, 0), true
	}

	return time.Time{}, false
}

// shiftMonths сдвигает дату на n месяцев, прижимая день к концу месяца
func shiftMonths(t time.Time, n, hour, min int) time.Time {
	year, month := t.Year(), int(t.Month())-1+n
	year += month / 12
	month = month%12 + 1

	day := t.Day()
	if last := daysIn(year, time.Month(month), t.Location()); day > last {
		day = last
	}

	return time.Date(year, time.Month(month), day, hour, min, 0, 0, t.Location())
}

func daysIn(year int, month time.Month, loc *time.Location) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
}
