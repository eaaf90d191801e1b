package compliance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/cyber-trackr/cyber-trackr/internal/schedule"
	"github.com/cyber-trackr/cyber-trackr/pkg/trackr"
)

// DefaultRequirementDelay is the minimum spacing between requirement
// detail fetches.
const DefaultRequirementDelay = 100 * time.Millisecond

// DocumentSource fetches document summaries and requirement details.
// *trackr.Client satisfies it.
type DocumentSource interface {
	GetDocument(ctx context.Context, key trackr.DocumentKey) (*trackr.DocumentSummary, error)
	GetRequirement(ctx context.Context, key trackr.DocumentKey, vulnID string) (*trackr.RequirementDetail, error)
}

// ProgressFunc reports a completed requirement fetch (1-based index).
type ProgressFunc func(index, total int, vulnID string)

// AggregatorConfig configures an Aggregator.
type AggregatorConfig struct {
	// Delay between detail fetches. Zero selects DefaultRequirementDelay,
	// a negative value disables pacing.
	Delay  time.Duration
	Logger logrus.FieldLogger
}

// Aggregator builds CompleteDocuments.
type Aggregator struct {
	src    DocumentSource
	delay  time.Duration
	logger logrus.FieldLogger
}

// NewAggregator creates an Aggregator reading from src.
func NewAggregator(src DocumentSource, cfg AggregatorConfig) *Aggregator {
	delay := cfg.Delay
	if delay == 0 {
		delay = DefaultRequirementDelay
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Aggregator{src: src, delay: delay, logger: logger}
}

var (
	errEmptySummary = errors.New("empty document summary")
	errEmptyDetail  = errors.New("empty requirement detail")
)

// Complete fetches the document summary for key and then every
// requirement detail, one at a time in ascending id order.
//
// Only a summary failure is returned as an error. A failed detail fetch
// keeps the summary entry with FetchError set; no requirement id is ever
// dropped. A document without requirements is returned as is.
//
// If ctx ends mid-document, the requirements not yet fetched are marked
// with the context error and the partial document is returned together
// with that error.
func (a *Aggregator) Complete(ctx context.Context, key trackr.DocumentKey, onProgress ProgressFunc) (*CompleteDocument, error) {
	summary, err := a.src.GetDocument(ctx, key)
	if err == nil && summary == nil {
		err = errEmptySummary
	}
	if err != nil {
		return nil, fmt.Errorf("fetch document %s: %w", key, err)
	}
	doc := newDocument(key, summary)
	if len(doc.Requirements) == 0 {
		return doc, nil
	}

	log := a.logger.WithField("doc", key.String())
	ids := doc.IDs()
	log.WithField("requirements", len(ids)).Debug("Fetching requirement details")

	fetch := func(ctx context.Context, id string) (*trackr.RequirementDetail, error) {
		d, err := a.src.GetRequirement(ctx, key, id)
		if err == nil && d == nil {
			err = errEmptyDetail
		}
		return d, err
	}
	var progress schedule.ProgressFunc[string]
	if onProgress != nil {
		progress = func(i, n int, id string) { onProgress(i, n, id) }
	}

	results, runErr := schedule.Run(ctx, a.delay, ids, fetch, progress)
	for _, r := range results {
		entry := doc.Requirements[r.Key]
		if r.OK() {
			doc.Requirements[r.Key] = merge(entry, r.Value)
			continue
		}
		entry.Complete = false
		entry.FetchError = r.Err.Error()
		doc.Requirements[r.Key] = entry
		if !r.Skipped {
			log.WithError(r.Err).WithField("vuln", r.Key).Warn("Requirement detail fetch failed")
		}
	}

	if runErr != nil {
		return doc, runErr
	}
	if failed := len(doc.Failed()); failed > 0 {
		log.WithFields(logrus.Fields{"failed": failed, "total": len(ids)}).Info("Document completed with failures")
	}
	return doc, nil
}
