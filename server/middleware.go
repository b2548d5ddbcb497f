package server

import (
	"net/http"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/jonwraymond/regrid/observe"
)

// requestLogger logs one line per request. Server errors log at error
// level, everything else at debug.
func requestLogger(logger observe.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)

			fields := []observe.Field{
				observe.F("method", r.Method),
				observe.F("path", r.URL.Path),
				observe.F("status", ww.Status()),
				observe.F("bytes", ww.BytesWritten()),
				observe.F("duration_ms", time.Since(start).Milliseconds()),
				observe.F("request_id", chimiddleware.GetReqID(r.Context())),
			}
			if ww.Status() >= http.StatusInternalServerError {
				logger.Error(r.Context(), "request failed", fields...)
				return
			}
			logger.Debug(r.Context(), "request served", fields...)
		})
	}
}
