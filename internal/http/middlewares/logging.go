package middlewares

import (
	"net/http"
	"time"

	"github.com/dropDatabas3/dramgate/internal/observability/logger"
)

// statusRecorder captura el status code escrito por el handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

// WithLogging loguea cada request con método, path, status y duración.
func WithLogging() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			logger.From(r.Context()).Info("request",
				logger.Method(r.Method),
				logger.Path(r.URL.Path),
				logger.Status(rec.status),
				logger.Duration(time.Since(start)),
			)
		})
	}
}
