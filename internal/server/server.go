package server

import (
	"context"
	"crypto/sha256"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"time"

	tgbot "github.com/go-telegram/bot"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/region23/servicedesk/internal/bot"
	"github.com/region23/servicedesk/internal/config"
	"github.com/region23/servicedesk/internal/middleware"
	"github.com/region23/servicedesk/internal/service"
	"github.com/region23/servicedesk/pkg/errors"
	"github.com/region23/servicedesk/pkg/logger"
	"github.com/region23/servicedesk/pkg/metrics"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// Deps зависимости HTTP сервера. Dispatcher и TelegramBot равны nil, если бот выключен.
type Deps struct {
	Config      *config.Config
	Timers      *service.TimerService
	Tasks       *service.TaskService
	Storage     Pinger
	Hub         *Hub
	Dispatcher  *bot.Dispatcher
	TelegramBot *tgbot.Bot
	Clock       clockwork.Clock
	Logger      *logger.Logger
}

// Server представляет HTTP сервер с middleware
type Server struct {
	httpServer     *http.Server
	handler        http.Handler
	config         *config.Config
	location       *time.Location
	logger         *logger.Logger
	clock          clockwork.Clock
	timers         *service.TimerService
	tasks          *service.TaskService
	hub            *Hub
	rateLimiter    *middleware.RateLimiter
	securityLogger *SecurityLogger
	healthChecker  *HealthChecker
	dispatcher     *bot.Dispatcher
	telegramBot    *tgbot.Bot
	verifiedTokens *expirable.LRU[[sha256.Size]byte, struct{}]
	trustedProxies *middleware.TrustedProxies
}

// New создает новый HTTP сервер
func New(d Deps) (*Server, error) {
	loc, err := d.Config.Timers.Location()
	if err != nil {
		return nil, errors.ErrConfigurationInvalid.WithError(err)
	}
	proxies, err := middleware.ParseTrustedProxies(d.Config.Server.TrustedProxies)
	if err != nil {
		return nil, errors.ErrConfigurationInvalid.WithError(err)
	}

	s := &Server{
		config:         d.Config,
		location:       loc,
		logger:         d.Logger,
		clock:          d.Clock,
		timers:         d.Timers,
		tasks:          d.Tasks,
		hub:            d.Hub,
		rateLimiter:    middleware.NewRateLimiter(d.Config.Server.RequestsPerMinute, time.Minute, d.Clock, d.Logger),
		securityLogger: NewSecurityLogger(d.Logger),
		healthChecker:  NewHealthChecker(d.Storage, d.Hub, d.Clock, Version),
		dispatcher:     d.Dispatcher,
		telegramBot:    d.TelegramBot,
		verifiedTokens: newTokenCache(),
		trustedProxies: proxies,
	}
	s.handler = s.applyMiddleware(s.setupRoutes())

	// Создаем HTTP сервер с таймаутами
	s.httpServer = &http.Server{
		Addr:           ":" + d.Config.Server.Port,
		Handler:        h2c.NewHandler(s.handler, &http2.Server{}),
		ReadTimeout:    d.Config.Server.ReadTimeout,
		WriteTimeout:   d.Config.Server.WriteTimeout,
		IdleTimeout:    d.Config.Server.IdleTimeout,
		MaxHeaderBytes: 1 << 20, // 1MB
	}

	return s, nil
}

// Version версия сборки, подставляется через -ldflags
var Version = "dev"

// Handler возвращает корневой обработчик со всеми middleware
func (s *Server) Handler() http.Handler {
	return s.handler
}

// setupRoutes настраивает маршруты
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// Страницы
	mux.HandleFunc("GET /timers", s.handleTimersPage)
	mux.HandleFunc("GET /tasks", s.handleTasksPage)

	// Управление таймерами
	mux.HandleFunc("POST /timer/{id}/{action}", s.requireAdmin(s.handleTimerControl))
	mux.HandleFunc("GET /api/timers", s.handleListTimers)
	mux.HandleFunc("GET /api/timers/{id}", s.handleGetTimer)
	mux.HandleFunc("POST /api/timers", s.requireAdmin(s.handleCreateTimer))

	// Задачи
	mux.HandleFunc("GET /api/tasks", s.handleListTasks)
	mux.HandleFunc("GET /api/tasks/{id}", s.handleGetTask)
	mux.HandleFunc("POST /api/tasks", s.requireAdmin(s.handleCreateTask))
	mux.HandleFunc("POST /api/tasks/{id}/complete", s.requireAdmin(s.handleCompleteTask))
	mux.HandleFunc("POST /api/tasks/{id}/uncomplete", s.requireAdmin(s.handleUncompleteTask))
	mux.HandleFunc("DELETE /api/tasks/{id}", s.requireAdmin(s.handleDeleteTask))
	mux.HandleFunc("POST /tasks/bulk", s.requireAdmin(s.handleBulk))

	// Живая лента
	mux.Handle("GET /ws/timers", s.hub)

	// Служебные маршруты
	mux.HandleFunc("GET /health", s.healthChecker.HealthHandler)
	mux.Handle("GET /metrics", promhttp.Handler())
	if s.dispatcher != nil {
		mux.HandleFunc("POST /webhook", s.handleWebhook)
	}

	return mux
}

// applyMiddleware применяет middleware в правильном порядке
func (s *Server) applyMiddleware(handler http.Handler) http.Handler {
	// Применяем middleware в обратном порядке (последний применяется первым)

	// 6. Prometheus метрики. Стоит вплотную к mux, чтобы видеть r.Pattern
	h := middleware.PrometheusMiddleware(handler)

	// 5. Rate limiting по IP
	h = middleware.HTTPRateLimitMiddleware(s.rateLimiter)(h)

	// 4. Аудит запросов
	h = s.securityAuditMiddleware(s.securityLogger)(h)

	// 3. CORS
	h = cors.New(cors.Options{
		AllowedOrigins:   s.config.Server.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete},
		AllowedHeaders:   []string{"Authorization", "Content-Type", middleware.RequestIDHeader},
		AllowCredentials: false,
	}).Handler(h)

	// 2. Security headers
	h = s.securityHeadersMiddleware(h)

	// 1. IP клиента с учетом доверенных прокси
	h = middleware.RealIP(s.trustedProxies)(h)

	// 0. Request ID (применяется первым, выполняется последним)
	h = middleware.RequestID(h)

	return h
}

// Start запускает сервер
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("Starting HTTP server", logger.String("addr", s.httpServer.Addr))

	// Запускаем сервер в отдельной горутине
	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("server failed to start: %w", err)
		}
	}()

	// Ждем завершения контекста или ошибки
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return s.Shutdown(context.Background())
	}
}

// Shutdown корректно завершает работу сервера
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server")
	s.securityLogger.LogSystemEvent("server_shutdown", "info", map[string]interface{}{
		"initiated_at": s.clock.Now().UTC().Unix(),
	})

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	s.rateLimiter.Close()
	// websocket соединения не отслеживаются http.Server.Shutdown
	s.hub.Close()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("Error during server shutdown", logger.Error(err))
		return err
	}

	s.logger.Info("HTTP server shut down successfully")
	return nil
}

// writeJSON отправляет JSON ответ
func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("Failed to write JSON response", logger.Error(err))
	}
}

// errorResponse тело ответа с ошибкой
type errorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// writeError переводит ошибку приложения в HTTP ответ
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := errors.HTTPStatus(err)
	resp := errorResponse{Message: errors.UserMessage(err)}
	if appErr, ok := errors.GetAppError(err); ok {
		resp.Code = appErr.Code
	}

	if status >= http.StatusInternalServerError {
		code := resp.Code
		if code == "" {
			code = "INTERNAL"
		}
		metrics.RecordError("http", code)
		s.logger.Error("Request failed",
			logger.String("path", r.URL.Path),
			logger.String("request_id", middleware.RequestIDFromContext(r.Context())),
			logger.Error(err),
		)
	}
	s.writeJSON(w, status, resp)
}

// decodeJSON читает тело запроса в v с ограничением размера
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.Invalid("некорректный JSON в запросе").WithError(err)
	}
	return nil
}
