// Package store persists completed compliance documents and export run
// history in SQLite.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/cyber-trackr/cyber-trackr/internal/compliance"
	"github.com/cyber-trackr/cyber-trackr/pkg/trackr"
)

// ErrNotFound is returned when a document or run does not exist.
var ErrNotFound = errors.New("not found")

// Store defines the persistence interface for fetched documents.
// The primary implementation uses SQLite (see sqlite.go).
type Store interface {
	// Documents
	SaveDocument(ctx context.Context, doc *compliance.CompleteDocument) error
	GetDocument(ctx context.Context, key trackr.DocumentKey) (*compliance.CompleteDocument, error)
	ListDocuments(ctx context.Context, filter DocumentFilter) ([]DocumentInfo, error)
	DeleteDocument(ctx context.Context, key trackr.DocumentKey) error

	// Export runs
	CreateRun(ctx context.Context, target string) (*Run, error)
	AddRunItem(ctx context.Context, runID string, item RunItem) error
	FinishRun(ctx context.Context, runID string) error
	GetRun(ctx context.Context, runID string) (*Run, error)
	ListRuns(ctx context.Context, limit int) ([]Run, error)

	// Lifecycle
	Close() error
}

// DocumentInfo is the listing view of a stored document.
type DocumentInfo struct {
	Key       trackr.DocumentKey `json:"key"`
	Title     string             `json:"title"`
	Status    string             `json:"status"`
	Published string             `json:"published"`
	Summary   compliance.Summary `json:"summary"`
	FetchedAt time.Time          `json:"fetched_at"`
}

// DocumentFilter narrows ListDocuments. Empty fields match everything.
type DocumentFilter struct {
	// Title matches key titles containing the text, case-insensitively.
	Title string
	// Incomplete limits the listing to documents with failed details.
	Incomplete bool
}

// RunStatus is the outcome of one exported document.
type RunStatus string

const (
	RunItemOK     RunStatus = "ok"
	RunItemFailed RunStatus = "failed"
)

// Run is one batch export.
type Run struct {
	ID         string     `json:"id"`
	Target     string     `json:"target"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Succeeded  int        `json:"succeeded"`
	Failed     int        `json:"failed"`
	Items      []RunItem  `json:"items,omitempty"`
}

// RunItem records one document of a run.
type RunItem struct {
	Key      trackr.DocumentKey `json:"key"`
	Status   RunStatus          `json:"status"`
	Location string             `json:"location,omitempty"`
	Error    string             `json:"error,omitempty"`
}
