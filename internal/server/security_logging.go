package server

import (
	"net/http"
	"strings"

	"github.com/region23/servicedesk/internal/middleware"
	"github.com/region23/servicedesk/pkg/logger"
)

// SecurityLogger логирует события безопасности и действия администраторов
type SecurityLogger struct {
	logger *logger.Logger
}

// NewSecurityLogger создает новый логгер безопасности
func NewSecurityLogger(log *logger.Logger) *SecurityLogger {
	return &SecurityLogger{logger: log}
}

func requestFields(r *http.Request) []logger.Field {
	return []logger.Field{
		logger.String("ip", middleware.ClientIP(r)),
		logger.String("path", r.URL.Path),
		logger.String("method", r.Method),
		logger.String("request_id", middleware.RequestIDFromContext(r.Context())),
	}
}

func withDetails(fields []logger.Field, details map[string]interface{}) []logger.Field {
	for key, value := range details {
		fields = append(fields, logger.Any(key, value))
	}
	return fields
}

// LogFailedAuth логирует неудачную попытку аутентификации
func (sl *SecurityLogger) LogFailedAuth(r *http.Request, reason string) {
	fields := append(requestFields(r),
		logger.String("reason", reason),
		logger.String("user_agent", r.UserAgent()),
	)
	sl.logger.Warn("Authentication failed", fields...)
}

// LogValidationError логирует отклоненный запрос
func (sl *SecurityLogger) LogValidationError(r *http.Request, err error) {
	fields := append(requestFields(r), logger.Error(err))
	sl.logger.Warn("Validation error", fields...)
}

// LogUserAction логирует изменяющее действие через HTTP
func (sl *SecurityLogger) LogUserAction(r *http.Request, action string, details map[string]interface{}) {
	fields := append(requestFields(r), logger.String("action", action))
	sl.logger.Info("User action", withDetails(fields, details)...)
}

// LogSystemEvent логирует системные события
func (sl *SecurityLogger) LogSystemEvent(event string, level string, details map[string]interface{}) {
	fields := withDetails([]logger.Field{logger.String("event", event)}, details)

	switch strings.ToLower(level) {
	case "error":
		sl.logger.Error("System event", fields...)
	case "warn", "warning":
		sl.logger.Warn("System event", fields...)
	case "debug":
		sl.logger.Debug("System event", fields...)
	default:
		sl.logger.Info("System event", fields...)
	}
}

// securityAuditMiddleware логирует ответы с ошибками и обращения к webhook
func (s *Server) securityAuditMiddleware(securityLogger *SecurityLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := s.clock.Now()

			wrapped := &middleware.ResponseWriter{ResponseWriter: w, StatusCode: http.StatusOK}
			next.ServeHTTP(wrapped, r)

			if r.URL.Path != "/webhook" && wrapped.StatusCode < 400 {
				return
			}

			fields := append(requestFields(r),
				logger.Int("status_code", wrapped.StatusCode),
				logger.Duration("duration", s.clock.Since(start)),
				logger.Int64("bytes_written", wrapped.BytesWritten),
			)
			switch {
			case wrapped.StatusCode >= 500:
				securityLogger.logger.Error("HTTP request failed", fields...)
			case wrapped.StatusCode >= 400:
				securityLogger.logger.Warn("HTTP request rejected", fields...)
			default:
				securityLogger.logger.Debug("Webhook request", fields...)
			}
		})
	}
}
