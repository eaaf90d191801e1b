// Package export writes completed documents for a list of document keys to
// a sink, one document at a time, and records each run in the store.
package export

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/cyber-trackr/cyber-trackr/internal/compliance"
	"github.com/cyber-trackr/cyber-trackr/internal/schedule"
	"github.com/cyber-trackr/cyber-trackr/internal/store"
	"github.com/cyber-trackr/cyber-trackr/pkg/trackr"
)

// DefaultDocumentDelay is the minimum spacing between documents.
const DefaultDocumentDelay = time.Second

// Completer builds a complete document. *compliance.Aggregator satisfies
// it.
type Completer interface {
	Complete(ctx context.Context, key trackr.DocumentKey, onProgress compliance.ProgressFunc) (*compliance.CompleteDocument, error)
}

// Sink persists one exported document and returns where it went.
type Sink interface {
	Write(ctx context.Context, doc *compliance.CompleteDocument) (location string, err error)
	String() string
}

// Config configures an Exporter.
type Config struct {
	// Delay between documents. Zero selects DefaultDocumentDelay, a
	// negative value disables pacing.
	Delay time.Duration
	// Store, when set, receives the run history and a copy of every
	// exported document.
	Store  store.Store
	Logger logrus.FieldLogger
}

// Item is the outcome of one document.
type Item struct {
	Key        trackr.DocumentKey `json:"key"`
	Location   string             `json:"location,omitempty"`
	Incomplete int                `json:"incomplete,omitempty"`
	Error      string             `json:"error,omitempty"`
	Skipped    bool               `json:"skipped,omitempty"`
	Err        error              `json:"-"`
}

// Report summarizes an export run.
type Report struct {
	RunID     string `json:"run_id,omitempty"`
	Succeeded int    `json:"succeeded"`
	Failed    int    `json:"failed"`
	Skipped   int    `json:"skipped"`
	Items     []Item `json:"items"`
}

// DocumentFunc reports a finished document (1-based index).
type DocumentFunc func(index, total int, key trackr.DocumentKey, err error)

// Exporter runs batch exports.
type Exporter struct {
	completer Completer
	sink      Sink
	store     store.Store
	delay     time.Duration
	logger    logrus.FieldLogger
}

// NewExporter creates an Exporter.
func NewExporter(completer Completer, sink Sink, cfg Config) *Exporter {
	delay := cfg.Delay
	if delay == 0 {
		delay = DefaultDocumentDelay
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Exporter{
		completer: completer,
		sink:      sink,
		store:     cfg.Store,
		delay:     delay,
		logger:    logger,
	}
}

// Export completes and writes every key in order. A failed document is
// reported and the batch moves on. The returned error is set only when the
// run could not be recorded or ctx ended; the report is valid either way.
func (e *Exporter) Export(ctx context.Context, keys []trackr.DocumentKey, onDocument DocumentFunc) (*Report, error) {
	report := &Report{Items: make([]Item, 0, len(keys))}

	if e.store != nil {
		run, err := e.store.CreateRun(ctx, e.sink.String())
		if err != nil {
			return report, fmt.Errorf("create run: %w", err)
		}
		report.RunID = run.ID
	}
	log := e.logger.WithFields(logrus.Fields{"sink": e.sink.String(), "documents": len(keys)})
	if report.RunID != "" {
		log = log.WithField("run", report.RunID)
	}
	log.Info("Starting export")

	// Fetches run one at a time, so the progress callback always sees the
	// outcome of the fetch that just finished.
	var last Item
	fetch := func(ctx context.Context, key trackr.DocumentKey) (Item, error) {
		last = e.exportOne(ctx, key)
		return last, last.Err
	}
	progress := func(i, n int, key trackr.DocumentKey) {
		if last.Err != nil {
			log.WithError(last.Err).WithField("doc", key.String()).Warn("Document export failed")
		} else {
			log.WithFields(logrus.Fields{"doc": key.String(), "location": last.Location}).Info("Exported document")
		}
		e.recordItem(ctx, report.RunID, last, log)
		if onDocument != nil {
			onDocument(i, n, key, last.Err)
		}
	}

	results, runErr := schedule.Run(ctx, e.delay, keys, fetch, progress)
	for _, r := range results {
		item := r.Value
		item.Key = r.Key
		switch {
		case r.Skipped:
			item.Err = r.Err
			item.Skipped = true
			report.Skipped++
		case r.Err != nil:
			item.Err = r.Err
			report.Failed++
		default:
			report.Succeeded++
		}
		if item.Err != nil {
			item.Error = item.Err.Error()
		}
		report.Items = append(report.Items, item)
	}

	if e.store != nil {
		// The run is closed even when ctx ended.
		if err := e.store.FinishRun(context.WithoutCancel(ctx), report.RunID); err != nil {
			log.WithError(err).Warn("Failed to finish export run")
		}
	}
	log.WithFields(logrus.Fields{
		"succeeded": report.Succeeded,
		"failed":    report.Failed,
		"skipped":   report.Skipped,
	}).Info("Export finished")

	return report, runErr
}

func (e *Exporter) exportOne(ctx context.Context, key trackr.DocumentKey) Item {
	item := Item{Key: key}
	doc, err := e.completer.Complete(ctx, key, nil)
	if err != nil {
		item.Err = err
		return item
	}
	item.Incomplete = len(doc.Failed())

	location, err := e.sink.Write(ctx, doc)
	if err != nil {
		item.Err = fmt.Errorf("write %s: %w", key.Filename(), err)
		return item
	}
	item.Location = location

	if e.store != nil {
		if err := e.store.SaveDocument(ctx, doc); err != nil {
			item.Err = fmt.Errorf("save %s: %w", key, err)
		}
	}
	return item
}

func (e *Exporter) recordItem(ctx context.Context, runID string, item Item, log logrus.FieldLogger) {
	if e.store == nil || runID == "" {
		return
	}
	ri := store.RunItem{Key: item.Key, Status: store.RunItemOK, Location: item.Location}
	if item.Err != nil {
		ri.Status = store.RunItemFailed
		ri.Error = item.Err.Error()
	}
	if err := e.store.AddRunItem(ctx, runID, ri); err != nil {
		log.WithError(err).WithField("doc", item.Key.String()).Warn("Failed to record export item")
	}
}
