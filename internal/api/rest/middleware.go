// Request ID propagation and access logging: a context-keyed request
// id, a response-writer wrapper capturing status and size, and one log
// line per request at a level keyed to the status code.
package rest

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const RequestIDHeader = "X-Request-ID"

type contextKey string

const contextRequestID contextKey = "request_id"

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(contextRequestID).(string)
	return id
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
	size       int
}

func newResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.size += n
	return n, err
}

// requestID assigns (or propagates) an X-Request-ID on every request.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		ctx := context.WithValue(r.Context(), contextRequestID, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// accessLog logs one line per request at a level keyed to the response
// status code.
func accessLog(logger *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rw := newResponseWriter(w)
			start := time.Now()

			next.ServeHTTP(rw, r)

			fields := []any{
				"request_id", requestIDFrom(r.Context()),
				"method", r.Method,
				"path", r.URL.Path,
				"status", rw.statusCode,
				"duration_ms", time.Since(start).Milliseconds(),
				"size_bytes", rw.size,
			}
			switch {
			case rw.statusCode >= 500:
				logger.Errorw("request failed", fields...)
			case rw.statusCode >= 400:
				logger.Warnw("request error", fields...)
			default:
				logger.Infow("request completed", fields...)
			}
		})
	}
}
