// Package xref cross-references RMF controls and CCIs: it finds every CCI
// whose assessment procedures map onto a given NIST 800-53 control.
package xref

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/cyber-trackr/cyber-trackr/internal/schedule"
	"github.com/cyber-trackr/cyber-trackr/pkg/trackr"
)

// CCISource lists CCIs and fetches their details. *trackr.Client
// satisfies it; its response cache memoizes details across calls.
type CCISource interface {
	ListCCIs(ctx context.Context) (map[string]string, error)
	GetCCI(ctx context.Context, id string) (*trackr.CCIDetail, error)
}

// Config configures a Resolver.
type Config struct {
	// Delay is the minimum spacing between CCI detail requests. Negative
	// disables pacing.
	Delay time.Duration
	// Concurrency above 1 fetches details with that many workers sharing
	// one rate limiter. 0 or 1 fetches sequentially.
	Concurrency int
	Logger      logrus.FieldLogger
}

// Match is a CCI mapped onto the requested control.
type Match struct {
	CCI      string `json:"cci"`
	Control  string `json:"control"`
	Revision int    `json:"revision"`
}

// Resolution is the result of one Resolve call.
type Resolution struct {
	Control  string  `json:"control"`
	Revision int     `json:"revision"`
	Matches  []Match `json:"matches"`
	// Failures maps CCI ids whose detail could not be fetched to the
	// reason. They are excluded from Matches.
	Failures map[string]string `json:"failures,omitempty"`
	// Skipped lists, in ascending order, the ids never fetched because the
	// context ended first.
	Skipped []string `json:"skipped,omitempty"`
	Scanned  int               `json:"scanned"`
}

// IDs returns the matching CCI ids in ascending order.
func (r *Resolution) IDs() []string {
	ids := make([]string, len(r.Matches))
	for i, m := range r.Matches {
		ids[i] = m.CCI
	}
	return ids
}

// Resolver finds the CCIs mapped to an RMF control.
type Resolver struct {
	src         CCISource
	delay       time.Duration
	concurrency int
	logger      logrus.FieldLogger
}

// NewResolver creates a Resolver.
func NewResolver(src CCISource, cfg Config) *Resolver {
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Resolver{
		src:         src,
		delay:       cfg.Delay,
		concurrency: cfg.Concurrency,
		logger:      logger,
	}
}

// FamilyFor returns the nist_control_family value for a revision.
func FamilyFor(revision int) string {
	return fmt.Sprintf("NIST-800-53-R%d", revision)
}

// Resolve lists every CCI and fetches each detail, returning the ids with
// an assessment procedure for control at revision. Control and revision
// are validated before any request. A failed detail fetch excludes that
// id and is recorded in Failures. When ctx ends mid-scan the partial
// resolution is returned with the context error, and every id lands in
// exactly one of Matches, Failures, Skipped or the non-matching rest.
func (r *Resolver) Resolve(ctx context.Context, control string, revision int) (*Resolution, error) {
	control = trackr.NormalizeControl(control)
	if err := trackr.ValidateControl(control); err != nil {
		return nil, err
	}
	if err := trackr.ValidateRevision(revision); err != nil {
		return nil, err
	}

	all, err := r.src.ListCCIs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list CCIs: %w", err)
	}
	ids := make([]string, 0, len(all))
	for id := range all {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	log := r.logger.WithFields(logrus.Fields{"control": control, "revision": revision})
	log.WithField("ccis", len(ids)).Debug("Scanning CCIs")

	res := &Resolution{
		Control:  control,
		Revision: revision,
		Matches:  []Match{},
		Scanned:  len(ids),
	}
	family := FamilyFor(revision)

	var details []detailResult
	if r.concurrency > 1 {
		details, res.Skipped, err = r.fetchConcurrent(ctx, ids)
	} else {
		details, res.Skipped, err = r.fetchSequential(ctx, ids)
	}

	for _, d := range details {
		if d.err != nil {
			if res.Failures == nil {
				res.Failures = map[string]string{}
			}
			res.Failures[d.id] = d.err.Error()
			log.WithError(d.err).WithField("cci", d.id).Warn("CCI detail fetch failed")
			continue
		}
		if matches(d.detail, control, family) {
			res.Matches = append(res.Matches, Match{CCI: d.id, Control: control, Revision: revision})
		}
	}
	sort.Slice(res.Matches, func(i, j int) bool { return res.Matches[i].CCI < res.Matches[j].CCI })
	return res, err
}

func matches(d *trackr.CCIDetail, control, family string) bool {
	if d == nil {
		return false
	}
	for _, p := range d.AssessmentProcedures {
		if strings.EqualFold(p.ControlIdentifier, control) && p.NISTControlFamily == family {
			return true
		}
	}
	return false
}

type detailResult struct {
	id     string
	detail *trackr.CCIDetail
	err    error
}

func (r *Resolver) fetchSequential(ctx context.Context, ids []string) ([]detailResult, []string, error) {
	results, err := schedule.Run(ctx, r.delay, ids, r.src.GetCCI, nil)
	out := make([]detailResult, 0, len(results))
	var skipped []string
	for _, res := range results {
		if res.Skipped {
			skipped = append(skipped, res.Key)
			continue
		}
		out = append(out, detailResult{id: res.Key, detail: res.Value, err: res.Err})
	}
	return out, skipped, err
}

// fetchConcurrent fans detail requests out over a bounded worker pool.
// Workers share one limiter so the request rate matches the sequential
// path. Per-id failures are collected, not returned. Once the context
// ends, ids that have not started are skipped and requests already in
// flight run to completion.
func (r *Resolver) fetchConcurrent(ctx context.Context, ids []string) ([]detailResult, []string, error) {
	limiter := schedule.NewLimiter(r.delay)
	var g errgroup.Group
	g.SetLimit(r.concurrency)

	var (
		mu      sync.Mutex
		out     = make([]detailResult, 0, len(ids))
		skipped []string
		stopErr error
	)
	stop := func(err error, ids ...string) {
		mu.Lock()
		defer mu.Unlock()
		skipped = append(skipped, ids...)
		if stopErr == nil {
			stopErr = err
		}
	}
	stopped := func() bool {
		mu.Lock()
		defer mu.Unlock()
		return stopErr != nil
	}

	for i, id := range ids {
		if err := ctx.Err(); err != nil {
			stop(err, ids[i:]...)
			break
		}
		if stopped() {
			stop(nil, ids[i:]...)
			break
		}
		g.Go(func() error {
			if err := schedule.Wait(ctx, limiter); err != nil {
				stop(err, id)
				return nil
			}
			d, err := r.src.GetCCI(ctx, id)
			mu.Lock()
			out = append(out, detailResult{id: id, detail: d, err: err})
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	sort.Strings(skipped)
	return out, skipped, stopErr
}
