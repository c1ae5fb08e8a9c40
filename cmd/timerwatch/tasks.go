package main

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/region23/servicedesk/internal/panel"
)

// noListName имя группы задач без списка
const noListName = "Без списка"

// taskBoard список незавершенных задач с массовым выбором и панелью деталей
type taskBoard struct {
	source    *panel.HTTPSource
	selection *panel.Selection
	detail    panel.DetailForm
	loc       *time.Location
	out       io.Writer

	groupOf map[int64]string
	titles  map[int64]string
}

func newTaskBoard(source *panel.HTTPSource, loc *time.Location, out io.Writer) *taskBoard {
	return &taskBoard{
		source:    source,
		selection: panel.NewSelection(),
		loc:       loc,
		out:       out,
		groupOf:   make(map[int64]string),
		titles:    make(map[int64]string),
	}
}

// Reload перечитывает задачи и заново строит группы; отметки сбрасываются
func (b *taskBoard) Reload(ctx context.Context) error {
	tasks, err := b.source.Pending(ctx)
	if err != nil {
		return err
	}

	byGroup := make(map[string][]int64)
	var order []string
	b.groupOf = make(map[int64]string, len(tasks))
	b.titles = make(map[int64]string, len(tasks))
	for _, t := range tasks {
		name := t.ListName
		if name == "" {
			name = noListName
		}
		if _, ok := byGroup[name]; !ok {
			order = append(order, name)
		}
		byGroup[name] = append(byGroup[name], t.ID)
		b.groupOf[t.ID] = name
		b.titles[t.ID] = t.Title
	}

	b.selection = panel.NewSelection()
	for _, name := range order {
		b.selection.AddGroup(name, byGroup[name]...)
	}
	b.detail.Hide()
	b.Print()
	return nil
}

// Print выводит задачи по группам с отметками выбора
func (b *taskBoard) Print() {
	selected := make(map[int64]bool)
	for _, id := range b.selection.Selected() {
		selected[id] = true
	}

	ids := make(map[string][]int64)
	var order []string
	for id, name := range b.groupOf {
		if _, ok := ids[name]; !ok {
			order = append(order, name)
		}
		ids[name] = append(ids[name], id)
	}
	slices.Sort(order)

	for _, name := range order {
		all := " "
		if b.selection.AllSelected(name) {
			all = "x"
		}
		fmt.Fprintf(b.out, "[%s] %s\n", all, name)
		group := ids[name]
		slices.Sort(group)
		for _, id := range group {
			mark := " "
			if selected[id] {
				mark = "x"
			}
			fmt.Fprintf(b.out, "  [%s] #%d %s\n", mark, id, b.titles[id])
		}
	}
	fmt.Fprintf(b.out, "выбрано: %d\n", b.selection.Count())
}

// Toggle переключает отметку задачи
func (b *taskBoard) Toggle(id int64) error {
	name, ok := b.groupOf[id]
	if !ok {
		return fmt.Errorf("задача #%d не в списке", id)
	}
	checked := false
	for _, sel := range b.selection.Selected() {
		if sel == id {
			checked = true
			break
		}
	}
	b.selection.Toggle(name, id, !checked)
	b.Print()
	return nil
}

// ToggleGroup переключает флажок "выбрать все" группы
func (b *taskBoard) ToggleGroup(name string) {
	b.selection.SelectAll(name, !b.selection.AllSelected(name))
	b.Print()
}

// Show загружает задачу в панель деталей
func (b *taskBoard) Show(ctx context.Context, id int64) error {
	if err := b.detail.Load(ctx, b.source, id, b.loc); err != nil {
		return err
	}
	f := b.detail
	fmt.Fprintf(b.out, "#%d %s\n", f.ID, f.Title)
	if f.Notes != "" {
		fmt.Fprintf(b.out, "  %s\n", f.Notes)
	}
	if f.DueDate != "" {
		fmt.Fprintf(b.out, "  срок: %s\n", f.DueDate)
	}
	if f.RecurrenceType != "" {
		fmt.Fprintf(b.out, "  повтор: %s\n", f.RecurrenceType)
	}
	if f.ListName != "" {
		fmt.Fprintf(b.out, "  список: %s\n", f.ListName)
	}
	return nil
}

var bulkCommands = map[string]panel.BulkAction{
	"complete": panel.BulkComplete,
	"delete":   panel.BulkDelete,
	"due":      panel.BulkSetDueDate,
	"recur":    panel.BulkSetRecurrence,
}

// Bulk отправляет массовое действие над отмеченными задачами
func (b *taskBoard) Bulk(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("действие: complete|delete|due ДАТА|recur ТИП")
	}
	action, ok := bulkCommands[args[0]]
	if !ok {
		return fmt.Errorf("неизвестное действие %q", args[0])
	}

	extra := url.Values{}
	switch action {
	case panel.BulkSetDueDate:
		if len(args) > 1 {
			extra.Set(panel.FieldDueDate, args[1])
		}
	case panel.BulkSetRecurrence:
		if len(args) > 1 {
			extra.Set(panel.FieldRecurrence, strings.ToUpper(args[1]))
		}
	}

	n, err := b.source.SubmitBulk(ctx, b.selection.Form(action, extra))
	if err != nil {
		return err
	}
	fmt.Fprintf(b.out, "обработано задач: %d\n", n)
	return b.Reload(ctx)
}

// executeTask выполняет команду над задачами; false, если команда не про задачи
func executeTask(ctx context.Context, fields []string, board *taskBoard) (bool, error) {
	switch fields[0] {
	case "t":
		return true, board.Reload(ctx)
	case "s", "i":
		if len(fields) != 2 {
			return true, fmt.Errorf("нужен ID задачи")
		}
		id, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil || id <= 0 {
			return true, fmt.Errorf("некорректный ID задачи")
		}
		if fields[0] == "s" {
			return true, board.Toggle(id)
		}
		return true, board.Show(ctx, id)
	case "g":
		if len(fields) < 2 {
			return true, fmt.Errorf("нужно имя группы")
		}
		board.ToggleGroup(strings.Join(fields[1:], " "))
		return true, nil
	case "b":
		return true, board.Bulk(ctx, fields[1:])
	}
	return false, nil
}
