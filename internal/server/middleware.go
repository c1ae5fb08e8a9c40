package server

import (
	"context"
	"net/http"
	"time"

	"github.com/region23/servicedesk/internal/middleware"
	"github.com/region23/servicedesk/pkg/logger"
)

// securityHeadersMiddleware добавляет заголовки безопасности.
// Страницы используют встроенные стили, поэтому style-src разрешает 'unsafe-inline'.
func (s *Server) securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Content-Security-Policy", "default-src 'self'; style-src 'self' 'unsafe-inline'; connect-src 'self' ws: wss:")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")

		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				s.logger.Error("Panic in HTTP handler",
					logger.String("path", r.URL.Path),
					logger.String("request_id", middleware.RequestIDFromContext(r.Context())),
					logger.Any("panic", rec),
				)
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			}
		}()

		next.ServeHTTP(w, r)
	})
}

// contextWithTimeout ограничивает обработку запроса; нулевой таймаут не ограничивает
func contextWithTimeout(r *http.Request, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(r.Context())
	}
	return context.WithTimeout(r.Context(), timeout)
}
