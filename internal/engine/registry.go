// Package engine отображает живые таймеры: хранит записи, пересчитывает их раз в
// секунду и согласует управляющие действия с сервером.
package engine

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/region23/servicedesk/internal/timer"
	"github.com/region23/servicedesk/pkg/logger"
)

// DefaultTickInterval период пересчета
const DefaultTickInterval = time.Second

// Record живая запись таймера
type Record struct {
	timer.Snapshot
	Label string
}

// Renderer выводит записи. Вызовы сериализуются реестром.
type Renderer interface {
	Render(rec Record, d timer.Display)
	Remove(id int64)
}

// Flusher вызывается после того, как за тик отрисованы все записи
type Flusher interface {
	Flush()
}

// Registry владеет набором записей и циклом пересчета
type Registry struct {
	clock    clockwork.Clock
	interval time.Duration
	renderer Renderer
	logger   *logger.Logger

	mu      sync.Mutex
	records map[int64]*Record
	order   []int64
	cancel  context.CancelFunc
	done    chan struct{}

	renderMu sync.Mutex
}

// NewRegistry создает пустой реестр
func NewRegistry(clock clockwork.Clock, renderer Renderer, log *logger.Logger) *Registry {
	return &Registry{
		clock:    clock,
		interval: DefaultTickInterval,
		renderer: renderer,
		logger:   log,
		records:  make(map[int64]*Record),
	}
}

// SetInterval меняет период пересчета. Действует со следующего StartTicking.
func (r *Registry) SetInterval(d time.Duration) {
	if d <= 0 {
		return
	}
	r.mu.Lock()
	r.interval = d
	r.mu.Unlock()
}

// Initialize заменяет набор записей. Некорректные снимки пропускаются.
// Возвращает число принятых записей.
func (r *Registry) Initialize(records []Record) int {
	r.mu.Lock()
	removed := r.order
	r.records = make(map[int64]*Record, len(records))
	r.order = r.order[:0:0]

	for i := range records {
		rec := records[i]
		if err := rec.Validate(); err != nil {
			r.logger.Warn("Skipping malformed timer", logger.Int64("timer_id", rec.ID), logger.Error(err))
			continue
		}
		if _, dup := r.records[rec.ID]; dup {
			r.logger.Warn("Skipping duplicate timer", logger.Int64("timer_id", rec.ID))
			continue
		}
		r.records[rec.ID] = &rec
		r.order = append(r.order, rec.ID)
	}
	accepted := len(r.order)
	kept := make(map[int64]bool, accepted)
	for _, id := range r.order {
		kept[id] = true
	}
	r.mu.Unlock()

	r.renderMu.Lock()
	for _, id := range removed {
		if !kept[id] {
			r.renderer.Remove(id)
		}
	}
	r.renderMu.Unlock()

	if accepted == 0 {
		r.StopTicking()
	}
	r.Tick()

	return accepted
}

// StartTicking запускает пересчет, если есть записи и цикл еще не запущен
func (r *Registry) StartTicking() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.records) == 0 || r.cancel != nil {
		return false
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	ticker := r.clock.NewTicker(r.interval)
	r.cancel = cancel
	r.done = done

	go r.loop(ctx, ticker, done)
	return true
}

// StopTicking останавливает пересчет и дожидается завершения цикла.
// Нельзя вызывать из Renderer.
func (r *Registry) StopTicking() {
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.cancel, r.done = nil, nil
	r.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Ticking сообщает, запущен ли цикл пересчета
func (r *Registry) Ticking() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cancel != nil
}

func (r *Registry) loop(ctx context.Context, ticker clockwork.Ticker, done chan struct{}) {
	defer close(done)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			if ctx.Err() != nil {
				return
			}
			r.Tick()
		}
	}
}

// Tick пересчитывает и отрисовывает все записи
func (r *Registry) Tick() {
	records := r.Records()
	now := r.clock.Now()

	r.renderMu.Lock()
	defer r.renderMu.Unlock()

	for _, rec := range records {
		r.renderLocked(rec, now)
	}
	if f, ok := r.renderer.(Flusher); ok {
		f.Flush()
	}
}

// Render пересчитывает одну запись
func (r *Registry) Render(id int64) {
	rec, ok := r.Get(id)
	if !ok {
		return
	}
	now := r.clock.Now()

	r.renderMu.Lock()
	defer r.renderMu.Unlock()
	r.renderLocked(rec, now)
	if f, ok := r.renderer.(Flusher); ok {
		f.Flush()
	}
}

func (r *Registry) renderLocked(rec Record, now time.Time) {
	d, ok := timer.Compute(rec.Snapshot, now)
	if !ok {
		return
	}
	r.renderer.Render(rec, d)
}

// Records возвращает копии записей в порядке добавления
func (r *Registry) Records() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Record, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, *r.records[id])
	}
	return out
}

// Get возвращает копию записи
func (r *Registry) Get(id int64) (Record, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[id]
	if !ok {
		return Record{}, false
	}
	return *rec, true
}

// Len возвращает число записей
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

// Adopt принимает авторитетный снимок сервера. Новая запись добавляется в начало.
// Пустая подпись не затирает известную.
func (r *Registry) Adopt(rec Record) bool {
	if err := rec.Validate(); err != nil {
		r.logger.Warn("Rejecting malformed snapshot", logger.Int64("timer_id", rec.ID), logger.Error(err))
		return false
	}

	r.mu.Lock()
	if existing, ok := r.records[rec.ID]; ok {
		if rec.Label == "" {
			rec.Label = existing.Label
		}
		*existing = rec
	} else {
		copied := rec
		r.records[rec.ID] = &copied
		r.order = append([]int64{rec.ID}, r.order...)
	}
	r.mu.Unlock()

	r.Render(rec.ID)
	r.StartTicking()
	return true
}

// Remove удаляет запись; при пустом реестре пересчет останавливается
func (r *Registry) Remove(id int64) bool {
	r.mu.Lock()
	_, ok := r.records[id]
	if ok {
		delete(r.records, id)
		for i, v := range r.order {
			if v == id {
				r.order = append(r.order[:i], r.order[i+1:]...)
				break
			}
		}
	}
	empty := len(r.records) == 0
	r.mu.Unlock()

	if !ok {
		return false
	}

	r.renderMu.Lock()
	r.renderer.Remove(id)
	if f, ok := r.renderer.(Flusher); ok {
		f.Flush()
	}
	r.renderMu.Unlock()

	if empty {
		r.StopTicking()
	}
	return true
}

// update изменяет запись под блокировкой. false, если записи нет.
func (r *Registry) update(id int64, fn func(s *timer.Snapshot)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[id]
	if !ok {
		return false
	}
	fn(&rec.Snapshot)
	return true
}
