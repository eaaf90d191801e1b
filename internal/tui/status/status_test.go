package status

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/cyber-trackr/cyber-trackr/internal/compliance"
	"github.com/cyber-trackr/cyber-trackr/pkg/trackr"
)

var testKey = trackr.DocumentKey{Title: "Windows_10", Version: "3", Release: "2"}

// ---------------------------------------------------------------------------
// FetchModel.Update
// ---------------------------------------------------------------------------

func TestProgressMsgAdvances(t *testing.T) {
	m := NewFetchModel(testKey)
	if m.Percent() != 0 {
		t.Fatalf("initial percent = %v", m.Percent())
	}

	m = update(t, m, ProgressMsg{Index: 1, Total: 4, VulnID: "V-000001"})
	if got := m.Percent(); got != 0.25 {
		t.Errorf("percent = %v, want 0.25", got)
	}
	if m.current != "V-000001" {
		t.Errorf("current = %q", m.current)
	}
}

func TestRecentIsBounded(t *testing.T) {
	m := NewFetchModel(testKey)
	for i := 1; i <= 8; i++ {
		m = update(t, m, ProgressMsg{Index: i, Total: 8, VulnID: fmt.Sprintf("V-00000%d", i)})
	}
	if len(m.recent) != maxRecent {
		t.Fatalf("recent has %d ids, want %d", len(m.recent), maxRecent)
	}
	if m.recent[0] != "V-000004" || m.recent[maxRecent-1] != "V-000008" {
		t.Errorf("unexpected recent %v", m.recent)
	}
}

func TestDoneMsgQuits(t *testing.T) {
	m := NewFetchModel(testKey)
	next, cmd := m.Update(DoneMsg{Doc: testDoc()})
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Errorf("expected tea.QuitMsg")
	}
	fm := next.(FetchModel)
	if !fm.done || fm.Cancelled() {
		t.Errorf("done = %v, cancelled = %v", fm.done, fm.Cancelled())
	}
}

func TestQuitKeyCancels(t *testing.T) {
	m := NewFetchModel(testKey)
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if !next.(FetchModel).Cancelled() {
		t.Error("expected model to be cancelled")
	}
}

func TestWindowSizeClampsBar(t *testing.T) {
	m := NewFetchModel(testKey)
	m = update(t, m, tea.WindowSizeMsg{Width: 200, Height: 40})
	if m.bar.Width != 60 {
		t.Errorf("bar width = %d, want 60", m.bar.Width)
	}
	m = update(t, m, tea.WindowSizeMsg{Width: 8, Height: 40})
	if m.bar.Width != 10 {
		t.Errorf("bar width = %d, want 10", m.bar.Width)
	}
}

// ---------------------------------------------------------------------------
// View
// ---------------------------------------------------------------------------

func TestViewInProgress(t *testing.T) {
	m := NewFetchModel(testKey)
	if !strings.Contains(m.View(), "Fetching requirement list") {
		t.Error("expected waiting text before first progress")
	}

	m = update(t, m, ProgressMsg{Index: 2, Total: 3, VulnID: "V-000002"})
	v := m.View()
	for _, want := range []string{"Windows_10 v3r2", "2/3", "V-000002", "cancel"} {
		if !strings.Contains(v, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

func TestViewDone(t *testing.T) {
	m := NewFetchModel(testKey)
	m = update(t, m, DoneMsg{Doc: testDoc(), Err: context.Canceled})
	v := m.View()
	for _, want := range []string{"3 requirements", "1 incomplete", "V-000003", "server error", "context canceled"} {
		if !strings.Contains(v, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

// ---------------------------------------------------------------------------
// rendering helpers
// ---------------------------------------------------------------------------

func TestSeverityLabel(t *testing.T) {
	tests := []struct {
		sev  compliance.Severity
		want string
	}{
		{compliance.SeverityHigh, "HIGH"},
		{compliance.SeverityMedium, "MEDIUM"},
		{compliance.SeverityLow, "LOW"},
		{compliance.SeverityUnknown, "UNKNOWN"},
		{"", "UNKNOWN"},
	}
	for _, tt := range tests {
		if got := severityLabel(tt.sev); !strings.Contains(got, tt.want) {
			t.Errorf("severityLabel(%q) = %q, want substring %q", tt.sev, got, tt.want)
		}
	}
}

func TestRenderSummaryOmitsUnknownWhenAbsent(t *testing.T) {
	got := renderSummary(compliance.Summarize(testDoc()))
	if strings.Contains(got, "UNKNOWN") {
		t.Errorf("unexpected unknown bucket in %q", got)
	}
	if !strings.Contains(got, "HIGH") || !strings.Contains(got, "LOW") {
		t.Errorf("expected fixed buckets in %q", got)
	}
}

// ---------------------------------------------------------------------------
// run
// ---------------------------------------------------------------------------

func TestRunReturnsFetchResult(t *testing.T) {
	want := testDoc()
	doc, err := run(context.Background(), testKey, func(ctx context.Context, onProgress compliance.ProgressFunc) (*compliance.CompleteDocument, error) {
		for i, id := range want.IDs() {
			onProgress(i+1, len(want.Requirements), id)
		}
		return want, nil
	}, tea.WithInput(nil), tea.WithOutput(io.Discard))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if doc != want {
		t.Error("expected the fetched document")
	}
}

func TestRunPropagatesFetchError(t *testing.T) {
	boom := errors.New("boom")
	_, err := run(context.Background(), testKey, func(ctx context.Context, _ compliance.ProgressFunc) (*compliance.CompleteDocument, error) {
		return nil, boom
	}, tea.WithInput(nil), tea.WithOutput(io.Discard))
	if !errors.Is(err, boom) {
		t.Errorf("expected boom, got %v", err)
	}
}

// --- Test helpers ---

func update(t *testing.T, m FetchModel, msg tea.Msg) FetchModel {
	t.Helper()
	next, _ := m.Update(msg)
	fm, ok := next.(FetchModel)
	if !ok {
		t.Fatalf("Update returned %T", next)
	}
	return fm
}

func testDoc() *compliance.CompleteDocument {
	return &compliance.CompleteDocument{
		Key: testKey,
		Requirements: map[string]compliance.Requirement{
			"V-000001": {ID: "V-000001", Severity: "high", Complete: true},
			"V-000002": {ID: "V-000002", Severity: "medium", Complete: true},
			"V-000003": {ID: "V-000003", Severity: "low", FetchError: "server error"},
		},
	}
}
