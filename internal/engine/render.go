package engine

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/region23/servicedesk/internal/timer"
)

const clearScreen = "\033[H\033[2J"

// TextRenderer собирает табло таймеров и выводит его целиком на Flush
type TextRenderer struct {
	w     io.Writer
	clear bool

	mu    sync.Mutex
	lines map[int64]string
	dirty bool
}

var (
	_ Renderer = (*TextRenderer)(nil)
	_ Flusher  = (*TextRenderer)(nil)
)

// NewTextRenderer создает табло. clear очищает экран перед каждым выводом.
func NewTextRenderer(w io.Writer, clear bool) *TextRenderer {
	return &TextRenderer{
		w:     w,
		clear: clear,
		lines: make(map[int64]string),
	}
}

// FormatLine строит строку табло для записи
func FormatLine(rec Record, d timer.Display) string {
	var b strings.Builder
	fmt.Fprintf(&b, "#%d", rec.ID)
	if rec.Label != "" {
		fmt.Fprintf(&b, " %s", rec.Label)
	}
	fmt.Fprintf(&b, " | %s: %s", rec.Mode.Label(), d)
	if rec.Paused {
		b.WriteString(" [пауза]")
	}
	if d.Urgent {
		b.WriteString(" [срочно]")
	}
	return b.String()
}

// Render запоминает строку записи
func (r *TextRenderer) Render(rec Record, d timer.Display) {
	line := FormatLine(rec, d)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.lines[rec.ID] != line {
		r.lines[rec.ID] = line
		r.dirty = true
	}
}

// Remove убирает строку записи
func (r *TextRenderer) Remove(id int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.lines[id]; ok {
		delete(r.lines, id)
		r.dirty = true
	}
}

// Flush выводит табло, если оно изменилось
func (r *TextRenderer) Flush() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.dirty {
		return
	}
	r.dirty = false

	ids := make([]int64, 0, len(r.lines))
	for id := range r.lines {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var b strings.Builder
	if r.clear {
		b.WriteString(clearScreen)
	}
	if len(ids) == 0 {
		b.WriteString("Нет активных таймеров\n")
	}
	for _, id := range ids {
		b.WriteString(r.lines[id])
		b.WriteByte('\n')
	}
	io.WriteString(r.w, b.String())
}

// Lines возвращает текущие строки табло по возрастанию id
func (r *TextRenderer) Lines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]int64, 0, len(r.lines))
	for id := range r.lines {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, r.lines[id])
	}
	return out
}
