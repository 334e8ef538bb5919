// internal/middleware/logging.go

package middleware

import (
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// LogMiddleware is an HTTP middleware that logs incoming requests using Logrus.
// Logs the method, path, status, size and duration of each request.
func LogMiddleware(logger *logrus.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				// Hijacked (WebSocket upgrade) or nothing written.
				status = http.StatusOK
			}
			entry := logger.WithFields(logrus.Fields{
				"method":   r.Method,
				"path":     r.URL.Path,
				"status":   status,
				"bytes":    ww.BytesWritten(),
				"duration": time.Since(start),
				"remote":   r.RemoteAddr,
			})
			if reqID := chimw.GetReqID(r.Context()); reqID != "" {
				entry = entry.WithField("request_id", reqID)
			}
			if status >= http.StatusInternalServerError {
				entry.Warn("HTTP Request")
				return
			}
			entry.Info("HTTP Request")
		})
	}
}

// LogWebSocketConnect logs a message when a WebSocket client connects.
func LogWebSocketConnect(logger *logrus.Logger, remoteAddr, path string, connID uuid.UUID) {
	logger.WithFields(logrus.Fields{
		"remote": remoteAddr,
		"path":   path,
		"conn":   connID,
	}).Info("WebSocket connected")
}

// LogWebSocketDisconnect logs a message when a WebSocket client disconnects. player is
// uuid.Nil for connections that never registered.
func LogWebSocketDisconnect(logger *logrus.Logger, remoteAddr, path string, connID, player uuid.UUID, err error) {
	fields := logrus.Fields{
		"remote": remoteAddr,
		"path":   path,
		"conn":   connID,
	}
	if player != uuid.Nil {
		fields["player"] = player
	}
	if err != nil {
		fields["error"] = err
	}
	logger.WithFields(fields).Info("WebSocket disconnected")
}
