package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"github.com/region23/servicedesk/internal/api"
	"github.com/region23/servicedesk/pkg/logger"
)

// Задержки переподключения по умолчанию
const (
	DefaultReconnectDelay    = time.Second
	DefaultMaxReconnectDelay = 30 * time.Second
)

// Watcher получает события живой ленты и применяет их к реестру
type Watcher struct {
	URL    string
	Header http.Header
	// Resync вызывается после каждого подключения, чтобы догнать пропущенные события
	Resync func(ctx context.Context) error

	ReconnectDelay    time.Duration
	MaxReconnectDelay time.Duration

	registry *Registry
	clock    clockwork.Clock
	dialer   *websocket.Dialer
	logger   *logger.Logger
}

// NewWatcher создает наблюдателя за лентой url
func NewWatcher(url string, registry *Registry, clock clockwork.Clock, log *logger.Logger) *Watcher {
	return &Watcher{
		URL:               url,
		Header:            http.Header{},
		ReconnectDelay:    DefaultReconnectDelay,
		MaxReconnectDelay: DefaultMaxReconnectDelay,
		registry:          registry,
		clock:             clock,
		dialer:            websocket.DefaultDialer,
		logger:            log,
	}
}

// Run держит подключение до отмены ctx, переподключаясь с экспоненциальной задержкой
func (w *Watcher) Run(ctx context.Context) error {
	delay := w.ReconnectDelay

	for {
		err := w.session(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if errors.Is(err, errSessionEstablished) {
			delay = w.ReconnectDelay
		} else {
			w.logger.Warn("Live feed connection failed",
				logger.String("url", w.URL),
				logger.Error(err),
				logger.Duration("retry_in", delay),
			)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.clock.After(delay):
		}

		if !errors.Is(err, errSessionEstablished) {
			delay *= 2
			if delay > w.MaxReconnectDelay {
				delay = w.MaxReconnectDelay
			}
		}
	}
}

var errSessionEstablished = errors.New("live feed session ended")

func (w *Watcher) session(ctx context.Context) error {
	conn, _, err := w.dialer.DialContext(ctx, w.URL, w.Header)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	w.logger.Info("Live feed connected", logger.String("url", w.URL))

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			conn.Close()
		case <-stop:
		}
	}()

	if w.Resync != nil {
		if err := w.Resync(ctx); err != nil {
			w.logger.Warn("Live feed resync failed", logger.Error(err))
		}
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) && ctx.Err() == nil {
				w.logger.Warn("Live feed read error", logger.Error(err))
			}
			return errSessionEstablished
		}
		w.Handle(data)
	}
}

// Handle применяет одно событие ленты
func (w *Watcher) Handle(data []byte) {
	var ev api.Event
	if err := json.Unmarshal(data, &ev); err != nil {
		w.logger.Warn("Malformed live event", logger.Error(err))
		return
	}

	switch ev.Type {
	case api.EventTimerUpdated:
		snap, ok := ev.Timer.Snapshot()
		if !ok {
			w.logger.Warn("Live event without full snapshot", logger.String("type", ev.Type))
			return
		}
		w.registry.Adopt(Record{Snapshot: snap, Label: ev.Timer.Label})
	case api.EventTimerDeleted:
		id := ev.TimerID
		if id == 0 && ev.Timer != nil && ev.Timer.ID != nil {
			id = *ev.Timer.ID
		}
		w.registry.Remove(id)
	default:
		w.logger.Debug("Ignoring live event", logger.String("type", ev.Type))
	}
}
