// Package api serves stored compliance documents over a read-only JSON
// HTTP API.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/cyber-trackr/cyber-trackr/internal/compliance"
	"github.com/cyber-trackr/cyber-trackr/pkg/buildinfo"
	"github.com/cyber-trackr/cyber-trackr/internal/store"
	"github.com/cyber-trackr/cyber-trackr/pkg/trackr"
)

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	store  store.Store
	logger logrus.FieldLogger
}

// HandlerConfig holds configuration for the handler.
type HandlerConfig struct {
	Store  store.Store
	Logger logrus.FieldLogger
}

// NewHandler creates a new API handler.
func NewHandler(cfg HandlerConfig) *Handler {
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	return &Handler{store: cfg.Store, logger: cfg.Logger}
}

// HandleHealth returns a simple health check response.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": buildinfo.Version,
	})
}

// HandleListDocuments lists stored documents. Query parameters: title
// (substring) and incomplete=true.
func (h *Handler) HandleListDocuments(w http.ResponseWriter, r *http.Request) {
	filter := store.DocumentFilter{Title: r.URL.Query().Get("title")}
	if v := r.URL.Query().Get("incomplete"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "incomplete must be a boolean"})
			return
		}
		filter.Incomplete = b
	}

	docs, err := h.store.ListDocuments(r.Context(), filter)
	if err != nil {
		h.logger.WithError(err).Error("List documents failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list documents"})
		return
	}
	if docs == nil {
		docs = []store.DocumentInfo{}
	}
	writeJSON(w, http.StatusOK, docs)
}

// HandleGetDocument returns a stored document.
func (h *Handler) HandleGetDocument(w http.ResponseWriter, r *http.Request) {
	doc, ok := h.loadDocument(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// HandleDocumentSummary returns the severity roll-up of a stored document.
func (h *Handler) HandleDocumentSummary(w http.ResponseWriter, r *http.Request) {
	doc, ok := h.loadDocument(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"key":     doc.Key,
		"summary": compliance.Summarize(doc),
	})
}

// HandleDocumentRequirements returns a document's requirements ordered by
// id, optionally limited to one severity (?severity=high).
func (h *Handler) HandleDocumentRequirements(w http.ResponseWriter, r *http.Request) {
	doc, ok := h.loadDocument(w, r)
	if !ok {
		return
	}

	var reqs []compliance.Requirement
	if sev := r.URL.Query().Get("severity"); sev != "" {
		reqs = compliance.FilterBySeverity(doc, compliance.NormalizeSeverity(sev))
	} else {
		for _, id := range doc.IDs() {
			reqs = append(reqs, doc.Requirements[id])
		}
	}
	if reqs == nil {
		reqs = []compliance.Requirement{}
	}
	writeJSON(w, http.StatusOK, reqs)
}

// HandleListRuns returns recent export runs (?limit=N).
func (h *Handler) HandleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}
	runs, err := h.store.ListRuns(r.Context(), limit)
	if err != nil {
		h.logger.WithError(err).Error("List runs failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list runs"})
		return
	}
	if runs == nil {
		runs = []store.Run{}
	}
	writeJSON(w, http.StatusOK, runs)
}

// HandleGetRun returns one export run with its items.
func (h *Handler) HandleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.store.GetRun(r.Context(), r.PathValue("id"))
	if errors.Is(err, store.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "run not found"})
		return
	}
	if err != nil {
		h.logger.WithError(err).Error("Get run failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to load run"})
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (h *Handler) loadDocument(w http.ResponseWriter, r *http.Request) (*compliance.CompleteDocument, bool) {
	key := trackr.NewDocumentKey(r.PathValue("title"), r.PathValue("version"), r.PathValue("release"))
	if err := key.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return nil, false
	}

	doc, err := h.store.GetDocument(r.Context(), key)
	if errors.Is(err, store.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "document not found"})
		return nil, false
	}
	if err != nil {
		h.logger.WithError(err).WithField("doc", key.String()).Error("Get document failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to load document"})
		return nil, false
	}
	return doc, true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(v)
}
