// Package panel реализует массовый выбор задач и заполнение боковой панели
// редактирования.
package panel

import (
	"net/url"
	"strconv"
	"sync"
)

// FieldTaskIDs имя скрытого поля формы массовых действий
const FieldTaskIDs = "task_ids"

// HiddenField скрытое поле формы
type HiddenField struct {
	Name  string
	Value string
}

// Group независимая группа строк со своим флажком "выбрать все"
type Group struct {
	name    string
	items   []int64
	checked map[int64]bool
}

// Name возвращает имя группы
func (g *Group) Name() string {
	return g.name
}

// Selection считает отмеченные строки во всех группах
type Selection struct {
	mu     sync.Mutex
	groups []*Group
	byName map[string]*Group
}

// NewSelection создает пустой выбор
func NewSelection() *Selection {
	return &Selection{byName: make(map[string]*Group)}
}

// AddGroup регистрирует группу строк. Повторная регистрация заменяет строки
// группы и сбрасывает отметки.
func (s *Selection) AddGroup(name string, ids ...int64) *Group {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.byName[name]
	if !ok {
		g = &Group{name: name}
		s.groups = append(s.groups, g)
		s.byName[name] = g
	}
	g.items = append(g.items[:0:0], ids...)
	g.checked = make(map[int64]bool, len(ids))
	return g
}

// Toggle отмечает или снимает отметку строки. false, если строки нет в группе.
func (s *Selection) Toggle(group string, id int64, checked bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.byName[group]
	if !ok || !g.has(id) {
		return false
	}
	if checked {
		g.checked[id] = true
	} else {
		delete(g.checked, id)
	}
	return true
}

// SelectAll отмечает или снимает все строки группы
func (s *Selection) SelectAll(group string, checked bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.byName[group]
	if !ok {
		return
	}
	g.checked = make(map[int64]bool, len(g.items))
	if checked {
		for _, id := range g.items {
			g.checked[id] = true
		}
	}
}

// AllSelected состояние флажка "выбрать все" группы
func (s *Selection) AllSelected(group string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.byName[group]
	if !ok || len(g.items) == 0 {
		return false
	}
	return len(g.checked) == len(g.items)
}

// Count возвращает число отмеченных строк во всех группах. Строка, которая
// встречается в нескольких группах, считается один раз.
func (s *Selection) Count() int {
	return len(s.Selected())
}

// Selected возвращает отмеченные id в порядке групп и строк
func (s *Selection) Selected() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[int64]bool)
	var out []int64
	for _, g := range s.groups {
		for _, id := range g.items {
			if g.checked[id] && !seen[id] {
				seen[id] = true
				out = append(out, id)
			}
		}
	}
	return out
}

// Clear снимает все отметки
func (s *Selection) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, g := range s.groups {
		g.checked = make(map[int64]bool)
	}
}

// HiddenFields строит скрытые поля формы массовых действий
func (s *Selection) HiddenFields() []HiddenField {
	ids := s.Selected()
	fields := make([]HiddenField, 0, len(ids))
	for _, id := range ids {
		fields = append(fields, HiddenField{Name: FieldTaskIDs, Value: strconv.FormatInt(id, 10)})
	}
	return fields
}

// Form собирает тело формы массового действия
func (s *Selection) Form(action BulkAction, extra url.Values) url.Values {
	form := url.Values{}
	for k, v := range extra {
		form[k] = append([]string(nil), v...)
	}
	form.Set(FieldAction, string(action))
	for _, f := range s.HiddenFields() {
		form.Add(f.Name, f.Value)
	}
	return form
}

func (g *Group) has(id int64) bool {
	for _, v := range g.items {
		if v == id {
			return true
		}
	}
	return false
}
