package api

import (
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// RegisterRoutes sets up the API routes on the given ServeMux.
func RegisterRoutes(mux *http.ServeMux, h *Handler) {
	mux.HandleFunc("GET /api/v1/health", h.HandleHealth)
	mux.HandleFunc("GET /api/v1/documents", h.HandleListDocuments)
	mux.HandleFunc("GET /api/v1/documents/{title}/{version}/{release}", h.HandleGetDocument)
	mux.HandleFunc("GET /api/v1/documents/{title}/{version}/{release}/summary", h.HandleDocumentSummary)
	mux.HandleFunc("GET /api/v1/documents/{title}/{version}/{release}/requirements", h.HandleDocumentRequirements)
	mux.HandleFunc("GET /api/v1/runs", h.HandleListRuns)
	mux.HandleFunc("GET /api/v1/runs/{id}", h.HandleGetRun)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// LogRequests logs every request at debug level with its status and
// duration.
func LogRequests(logger logrus.FieldLogger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   rec.status,
			"duration": time.Since(start).String(),
		}).Debug("Request")
	})
}
