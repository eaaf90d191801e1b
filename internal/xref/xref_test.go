package xref

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"

	"github.com/cyber-trackr/cyber-trackr/pkg/trackr"
)

// --- Test helpers ---

type fakeCCIs struct {
	details map[string]*trackr.CCIDetail
	fail    map[string]error
	listErr error
	calls   atomic.Int32
}

func (f *fakeCCIs) ListCCIs(context.Context) (map[string]string, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := map[string]string{}
	for id := range f.details {
		out[id] = "definition of " + id
	}
	for id := range f.fail {
		out[id] = "definition of " + id
	}
	return out, nil
}

func (f *fakeCCIs) GetCCI(_ context.Context, id string) (*trackr.CCIDetail, error) {
	f.calls.Add(1)
	if err, ok := f.fail[id]; ok {
		return nil, err
	}
	return f.details[id], nil
}

func procedure(control, family string) trackr.AssessmentProcedure {
	return trackr.AssessmentProcedure{ControlIdentifier: control, NISTControlFamily: family}
}

func testSource() *fakeCCIs {
	return &fakeCCIs{
		details: map[string]*trackr.CCIDetail{
			"CCI-000001": {AssessmentProcedures: []trackr.AssessmentProcedure{procedure("AC-1", "NIST-800-53-R5")}},
			"CCI-000002": {AssessmentProcedures: []trackr.AssessmentProcedure{procedure("AC-1", "NIST-800-53-R4")}},
			"CCI-000003": {AssessmentProcedures: []trackr.AssessmentProcedure{
				procedure("AC-2", "NIST-800-53-R5"),
				procedure("ac-1", "NIST-800-53-R5"),
			}},
			"CCI-000004": {AssessmentProcedures: []trackr.AssessmentProcedure{procedure("AC-10", "NIST-800-53-R5")}},
			"CCI-000005": {},
		},
		fail: map[string]error{},
	}
}

func newTestResolver(src CCISource, concurrency int) *Resolver {
	logger, _ := test.NewNullLogger()
	return NewResolver(src, Config{Delay: -1, Concurrency: concurrency, Logger: logger})
}

// --- Tests ---

func TestResolveRevision(t *testing.T) {
	src := testSource()
	r := newTestResolver(src, 1)

	res, err := r.Resolve(context.Background(), "AC-1", 5)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := res.IDs(), []string{"CCI-000001", "CCI-000003"}; !reflect.DeepEqual(got, want) {
		t.Errorf("rev 5 IDs() = %v, want %v", got, want)
	}
	if res.Scanned != 5 || src.calls.Load() != 5 {
		t.Errorf("expected 5 detail fetches, scanned=%d calls=%d", res.Scanned, src.calls.Load())
	}

	res, err = r.Resolve(context.Background(), "AC-1", 4)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := res.IDs(), []string{"CCI-000002"}; !reflect.DeepEqual(got, want) {
		t.Errorf("rev 4 IDs() = %v, want %v", got, want)
	}
}

func TestResolveNormalizesControl(t *testing.T) {
	res, err := newTestResolver(testSource(), 1).Resolve(context.Background(), " ac-1 ", 5)
	if err != nil {
		t.Fatal(err)
	}
	if res.Control != "AC-1" {
		t.Errorf("Control = %q", res.Control)
	}
	if len(res.Matches) != 2 || res.Matches[0].Revision != 5 || res.Matches[0].Control != "AC-1" {
		t.Errorf("unexpected matches %+v", res.Matches)
	}
}

func TestResolveFailuresExcluded(t *testing.T) {
	src := testSource()
	src.fail["CCI-000009"] = trackr.NewAPIError("/cci/CCI-000009", 503, trackr.ErrServer)

	res, err := newTestResolver(src, 1).Resolve(context.Background(), "AC-1", 5)
	if err != nil {
		t.Fatalf("detail failures must not be fatal: %v", err)
	}
	if _, ok := res.Failures["CCI-000009"]; !ok {
		t.Errorf("expected failure recorded, got %v", res.Failures)
	}
	for _, id := range res.IDs() {
		if id == "CCI-000009" {
			t.Error("failed id must not be matched")
		}
	}
	if len(res.Matches) != 2 {
		t.Errorf("expected 2 matches, got %v", res.IDs())
	}
}

func TestResolveValidation(t *testing.T) {
	tests := []struct {
		control  string
		revision int
	}{
		{"AC1", 5},
		{"AC-1(1)", 5},
		{"", 5},
		{"AC-1", 3},
		{"AC-1", 0},
	}
	for _, tt := range tests {
		src := testSource()
		_, err := newTestResolver(src, 1).Resolve(context.Background(), tt.control, tt.revision)
		if !errors.Is(err, trackr.ErrValidation) {
			t.Errorf("Resolve(%q, %d): expected ErrValidation, got %v", tt.control, tt.revision, err)
		}
		if src.calls.Load() != 0 {
			t.Errorf("Resolve(%q, %d): made requests before validating", tt.control, tt.revision)
		}
	}
}

func TestResolveListFailure(t *testing.T) {
	src := testSource()
	src.listErr = trackr.NewAPIError("/cci", 0, trackr.ErrTimeout)
	_, err := newTestResolver(src, 1).Resolve(context.Background(), "AC-1", 5)
	if !errors.Is(err, trackr.ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}

func TestResolveConcurrentMatchesSequential(t *testing.T) {
	src := testSource()
	src.fail["CCI-000007"] = errors.New("boom")

	seq, err := newTestResolver(src, 1).Resolve(context.Background(), "AC-1", 5)
	if err != nil {
		t.Fatal(err)
	}
	con, err := newTestResolver(src, 4).Resolve(context.Background(), "AC-1", 5)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(seq, con) {
		t.Errorf("sequential %+v != concurrent %+v", seq, con)
	}
}

func TestResolveCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for _, n := range []int{1, 3} {
		res, err := newTestResolver(testSource(), n).Resolve(ctx, "AC-1", 5)
		if !errors.Is(err, context.Canceled) {
			t.Errorf("concurrency %d: expected context.Canceled, got %v", n, err)
		}
		if res == nil {
			t.Errorf("concurrency %d: expected partial resolution", n)
		}
	}
}

func TestResolveDeadlineKeepsEveryID(t *testing.T) {
	for _, n := range []int{1, 3} {
		src := testSource()
		logger, _ := test.NewNullLogger()
		r := NewResolver(src, Config{Delay: 200 * time.Millisecond, Concurrency: n, Logger: logger})

		ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
		res, err := r.Resolve(ctx, "AC-1", 5)
		cancel()

		if !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("concurrency %d: expected context.DeadlineExceeded, got %v", n, err)
		}
		if res == nil {
			t.Fatalf("concurrency %d: expected partial resolution", n)
		}
		if len(res.Skipped) == 0 {
			t.Errorf("concurrency %d: expected skipped ids", n)
		}
		if n == 1 && !contains(res.IDs(), "CCI-000001") {
			t.Errorf("concurrency %d: first match lost, got %v skipped %v", n, res.IDs(), res.Skipped)
		}
		if int(src.calls.Load())+len(res.Skipped) != res.Scanned {
			t.Errorf("concurrency %d: %d fetched + %d skipped != %d scanned",
				n, src.calls.Load(), len(res.Skipped), res.Scanned)
		}
		seen := map[string]bool{}
		for _, id := range res.Skipped {
			if seen[id] {
				t.Errorf("concurrency %d: %s skipped twice", n, id)
			}
			seen[id] = true
			if contains(res.IDs(), id) {
				t.Errorf("concurrency %d: %s both matched and skipped", n, id)
			}
		}
	}
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func TestResolveAgainstClientUsesCache(t *testing.T) {
	var details atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/cci":
			w.Write([]byte(`{"CCI-000001":"a","CCI-000002":"b"}`))
		case strings.HasPrefix(r.URL.Path, "/cci/"):
			details.Add(1)
			family := "NIST-800-53-R5"
			if strings.HasSuffix(r.URL.Path, "2") {
				family = "NIST-800-53-R4"
			}
			w.Write([]byte(`{"assessment_procedures":[{"control_identifier":"AC-1","nist_control_family":"` + family + `"}]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)

	logger, _ := test.NewNullLogger()
	client := trackr.NewClient(trackr.WithBaseURL(srv.URL), trackr.WithCacheTTL(time.Minute), trackr.WithLogger(logger))
	r := newTestResolver(client, 2)

	for range 2 {
		res, err := r.Resolve(context.Background(), "AC-1", 5)
		if err != nil {
			t.Fatal(err)
		}
		if got := res.IDs(); !reflect.DeepEqual(got, []string{"CCI-000001"}) {
			t.Errorf("IDs() = %v", got)
		}
	}
	if details.Load() != 2 {
		t.Errorf("expected details fetched once each, got %d requests", details.Load())
	}
}
