// logging.go — structured request logging для PolicyHub.
package middleware

import (
	"log/slog"
	"net/http"
	"time"
)

// RequestLogger возвращает HTTP middleware для логирования запросов через slog.
// Health и metrics endpoints логируются на уровне Debug, чтобы не засорять
// журнал probe-запросами Kubernetes.
func RequestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			wrapped := newMetricsResponseWriter(w)
			next.ServeHTTP(wrapped, r)

			attrs := []any{
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", wrapped.statusCode),
				slog.Duration("duration", time.Since(start)),
				slog.String("remote_addr", r.RemoteAddr),
			}

			if isProbePath(r.URL.Path) {
				logger.Debug("HTTP запрос", attrs...)
				return
			}
			logger.Info("HTTP запрос", attrs...)
		})
	}
}

// isProbePath — пути, опрашиваемые Kubernetes и Prometheus.
func isProbePath(path string) bool {
	switch path {
	case "/health/live", "/health/ready", "/metrics":
		return true
	default:
		return false
	}
}
