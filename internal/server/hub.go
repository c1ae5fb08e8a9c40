package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"github.com/region23/servicedesk/internal/api"
	"github.com/region23/servicedesk/internal/storage/models"
	"github.com/region23/servicedesk/pkg/logger"
	"github.com/region23/servicedesk/pkg/metrics"
)

// HubConfig настройки живой ленты
type HubConfig struct {
	WriteTimeout   time.Duration
	ReadTimeout    time.Duration
	PingInterval   time.Duration
	MaxMessageSize int64
	SendBuffer     int
	MaxClients     int
	CheckOrigin    func(r *http.Request) bool
}

// DefaultHubConfig возвращает настройки ленты по умолчанию
func DefaultHubConfig() HubConfig {
	return HubConfig{
		WriteTimeout:   10 * time.Second,
		ReadTimeout:    60 * time.Second,
		PingInterval:   30 * time.Second,
		MaxMessageSize: 1024,
		SendBuffer:     64,
		MaxClients:     100,
	}
}

// Hub рассылает события таймеров подключенным websocket клиентам
type Hub struct {
	config   HubConfig
	upgrader websocket.Upgrader
	clock    clockwork.Clock
	logger   *logger.Logger

	mu      sync.RWMutex
	clients map[*client]struct{}
}

type client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
	hub  *Hub
	once sync.Once
}

// NewHub создает хаб живой ленты
func NewHub(cfg HubConfig, clock clockwork.Clock, log *logger.Logger) *Hub {
	return &Hub{
		config: cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     cfg.CheckOrigin,
		},
		clock:   clock,
		logger:  log,
		clients: make(map[*client]struct{}),
	}
}

// ServeHTTP переводит соединение на websocket и подписывает клиента
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.config.MaxClients > 0 && h.Len() >= h.config.MaxClients {
		http.Error(w, "too many live clients", http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade уже ответил клиенту
		h.logger.Warn("Websocket upgrade failed", logger.Error(err))
		return
	}

	c := &client{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, h.config.SendBuffer),
		hub:  h,
	}
	if !h.register(c) {
		msg := websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "too many live clients")
		conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(h.config.WriteTimeout))
		conn.Close()
		return
	}

	go c.writePump()
	go c.readPump()
}

// Len возвращает число подключенных клиентов
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// TimerChanged рассылает обновленный таймер
func (h *Hub) TimerChanged(t *models.Timer) {
	h.broadcast(api.Event{
		Type:  api.EventTimerUpdated,
		Timer: api.NewTimer(t, h.clock.Now()).Payload(),
	})
}

// TimerDeleted рассылает удаление таймера
func (h *Hub) TimerDeleted(id int64) {
	h.broadcast(api.Event{Type: api.EventTimerDeleted, TimerID: id})
}

// Close отключает всех клиентов
func (h *Hub) Close() {
	for _, c := range h.snapshot() {
		h.unregister(c)
	}
}

func (h *Hub) broadcast(ev api.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error("Failed to marshal live event", logger.Error(err))
		return
	}

	// отправка идет под RLock, закрытие канала под Lock, поэтому
	// канал не закроется посреди рассылки
	var slow []*client
	h.mu.RLock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		// медленный клиент теряет подписку и догоняет через resync
		metrics.LiveEventsDropped.Inc()
		h.logger.Warn("Live client send buffer full, disconnecting", logger.String("client_id", c.id))
		h.unregister(c)
	}
}

func (h *Hub) snapshot() []*client {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		out = append(out, c)
	}
	return out
}

// register подписывает клиента, если не достигнут предел MaxClients
func (h *Hub) register(c *client) bool {
	h.mu.Lock()
	if h.config.MaxClients > 0 && len(h.clients) >= h.config.MaxClients {
		h.mu.Unlock()
		h.logger.Warn("Live client rejected, limit reached", logger.String("client_id", c.id))
		return false
	}
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()

	metrics.LiveClients.Set(float64(n))
	h.logger.Debug("Live client connected", logger.String("client_id", c.id), logger.Int("clients", n))
	return true
}

func (h *Hub) unregister(c *client) {
	c.once.Do(func() {
		h.mu.Lock()
		delete(h.clients, c)
		close(c.send)
		n := len(h.clients)
		h.mu.Unlock()

		metrics.LiveClients.Set(float64(n))
		h.logger.Debug("Live client disconnected", logger.String("client_id", c.id), logger.Int("clients", n))
	})
}

func (c *client) writePump() {
	ticker := time.NewTicker(c.hub.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		c.hub.unregister(c)
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.hub.config.WriteTimeout))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.hub.config.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump нужен только для pong и обнаружения закрытия, входящие сообщения игнорируются
func (c *client) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(c.hub.config.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(c.hub.config.ReadTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.hub.config.ReadTimeout))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Debug("Live client closed", logger.String("client_id", c.id), logger.Error(err))
			}
			return
		}
	}
}
