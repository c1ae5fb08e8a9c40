package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Метрики сервиса заявок
var (
	// Метрики таймеров
	TimerActions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "servicedesk_timer_actions_total",
			Help: "Количество действий над таймерами",
		},
		[]string{"action", "status"},
	)

	TimersTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "servicedesk_timers",
			Help: "Количество таймеров в хранилище",
		},
	)

	// Метрики задач
	TaskActions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "servicedesk_task_actions_total",
			Help: "Количество действий над задачами",
		},
		[]string{"action", "status"},
	)

	DeadlineNotifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "servicedesk_deadline_notifications_total",
			Help: "Уведомления об истечении обратных таймеров",
		},
		[]string{"status"},
	)

	ScheduledDeadlines = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "servicedesk_scheduled_deadlines",
			Help: "Количество запланированных уведомлений об истечении",
		},
	)

	// Метрики живых подписчиков
	LiveClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "servicedesk_live_clients",
			Help: "Количество подключенных websocket клиентов",
		},
	)

	LiveEventsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "servicedesk_live_events_dropped_total",
			Help: "События, не доставленные медленным клиентам",
		},
	)

	// Метрики Telegram
	TelegramUpdates = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "servicedesk_telegram_updates_total",
			Help: "Количество обработанных обновлений Telegram",
		},
		[]string{"type"},
	)

	// Метрики базы данных
	DatabaseOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "servicedesk_database_operations_total",
			Help: "Общее количество операций с базой данных",
		},
		[]string{"operation", "table", "status"},
	)

	// Метрики производительности
	MemoryUsage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "servicedesk_memory_usage_bytes",
			Help: "Использование памяти в байтах",
		},
	)

	GoroutinesCount = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "servicedesk_goroutines_count",
			Help: "Количество активных горутин",
		},
	)

	// Метрики ошибок
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "servicedesk_errors_total",
			Help: "Общее количество ошибок",
		},
		[]string{"component", "error_type"},
	)

	// Метрики HTTP сервера
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "servicedesk_http_requests_total",
			Help: "Общее количество HTTP запросов",
		},
		[]string{"method", "endpoint", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "servicedesk_http_request_duration_seconds",
			Help:    "Время обработки HTTP запросов в секундах",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)
)

// RecordTimerAction записывает метрику действия над таймером
func RecordTimerAction(action, status string) {
	TimerActions.WithLabelValues(action, status).Inc()
}

// RecordDeadlineNotification записывает метрику отправки уведомления об истечении
func RecordDeadlineNotification(status string) {
	DeadlineNotifications.WithLabelValues(status).Inc()
}

// RecordTaskAction записывает метрику действия над задачей
func RecordTaskAction(action, status string) {
	TaskActions.WithLabelValues(action, status).Inc()
}

// RecordTelegramUpdate записывает метрику обновления Telegram
func RecordTelegramUpdate(updateType string) {
	TelegramUpdates.WithLabelValues(updateType).Inc()
}

// RecordDatabaseOperation записывает метрику операции с БД
func RecordDatabaseOperation(operation, table, status string) {
	DatabaseOperations.WithLabelValues(operation, table, status).Inc()
}

// RecordError записывает метрику ошибки
func RecordError(component, errorType string) {
	ErrorsTotal.WithLabelValues(component, errorType).Inc()
}

// RecordHTTPRequest записывает метрику HTTP запроса
func RecordHTTPRequest(method, endpoint, status string) {
	HTTPRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
}

// SetTimersTotal устанавливает количество таймеров
func SetTimersTotal(count float64) {
	TimersTotal.Set(count)
}

// Status переводит ошибку в метку статуса
func Status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
