package exporter

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
	size   int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	n, err := r.ResponseWriter.Write(b)
	r.size += n
	return n, err
}

// NewHTTPLogger logs every request with the logger carried by ctx, at error
// level for server errors and debug level otherwise.
func NewHTTPLogger(ctx context.Context) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			timestamp := time.Now()

			logger := zerolog.Ctx(ctx)
			req = req.WithContext(logger.WithContext(req.Context()))

			recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(recorder, req)

			var event *zerolog.Event
			if recorder.status >= http.StatusInternalServerError {
				event = getNewErrorEventHTTPLogger(logger, timestamp, req, recorder)
			} else {
				event = getNewDebugEventHTTPLogger(logger, timestamp, req, recorder)
			}

			event.Msg("http middleware event logging")
		})
	}
}

func getNewErrorEventHTTPLogger(logger *zerolog.Logger, timestamp time.Time, req *http.Request, recorder *statusRecorder) *zerolog.Event {
	return logger.Error().
		Time(zerolog.TimestampFieldName, timestamp).
		Str("method", req.Method).
		Str("path", req.URL.Path).
		Int("status", recorder.status).
		Str("remote", req.RemoteAddr)
}

func getNewDebugEventHTTPLogger(logger *zerolog.Logger, timestamp time.Time, req *http.Request, recorder *statusRecorder) *zerolog.Event {
	return logger.Debug().
		Time(zerolog.TimestampFieldName, timestamp).
		Str("method", req.Method).
		Str("path", req.URL.Path).
		Int("status", recorder.status).
		Int("size", recorder.size).
		Dur("elapsed", time.Since(timestamp))
}
