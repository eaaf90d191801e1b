package trackr

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

// mockTrackr creates a test server standing in for cyber.trackr.live.
func mockTrackr(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func quietLogger() logrus.FieldLogger {
	l, _ := test.NewNullLogger()
	return l
}

func newTestClient(srv *httptest.Server, opts ...Option) *Client {
	opts = append([]Option{WithBaseURL(srv.URL), WithLogger(quietLogger())}, opts...)
	return NewClient(opts...)
}

func TestNewClientDefaults(t *testing.T) {
	c := NewClient()
	if c.baseURL != DefaultBaseURL {
		t.Errorf("baseURL = %q, want %q", c.baseURL, DefaultBaseURL)
	}
	if c.ttl != 60*time.Second {
		t.Errorf("ttl = %v, want 60s", c.ttl)
	}
	if c.httpClient.Timeout != 30*time.Second {
		t.Errorf("timeout = %v, want 30s", c.httpClient.Timeout)
	}
	if c.retryAttempts != 1 {
		t.Errorf("retryAttempts = %d, want 1", c.retryAttempts)
	}
	if c.cache == nil {
		t.Error("expected cache to be enabled by default")
	}
}

func TestNewClientOptions(t *testing.T) {
	c := NewClient(
		WithBaseURL("https://test.example.com/api/"),
		WithCacheTTL(0),
		WithTimeout(5*time.Second),
		WithRetry(3, time.Millisecond),
		WithUserAgent("test-agent"),
	)
	if c.baseURL != "https://test.example.com/api" {
		t.Errorf("expected trailing slash trimmed, got %q", c.baseURL)
	}
	if c.cache != nil {
		t.Error("expected cache disabled with zero TTL")
	}
	if c.httpClient.Timeout != 5*time.Second {
		t.Errorf("timeout = %v, want 5s", c.httpClient.Timeout)
	}
	if c.retryAttempts != 3 {
		t.Errorf("retryAttempts = %d, want 3", c.retryAttempts)
	}
	if c.userAgent != "test-agent" {
		t.Errorf("userAgent = %q", c.userAgent)
	}
}

func TestGetHeaders(t *testing.T) {
	var gotAccept, gotUA string
	srv := mockTrackr(t, func(w http.ResponseWriter, r *http.Request) {
		gotAccept = r.Header.Get("Accept")
		gotUA = r.Header.Get("User-Agent")
		writeJSON(w, map[string]string{"server_api_root": "/api"})
	})

	c := newTestClient(srv, WithUserAgent("trackr-test"))
	if _, err := c.APIInfo(context.Background()); err != nil {
		t.Fatal(err)
	}
	if gotAccept != "application/json" {
		t.Errorf("Accept = %q", gotAccept)
	}
	if gotUA != "trackr-test" {
		t.Errorf("User-Agent = %q", gotUA)
	}
}

func TestGetCaching(t *testing.T) {
	var calls atomic.Int32
	srv := mockTrackr(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeJSON(w, map[string]string{"CCI-000001": "definition"})
	})

	c := newTestClient(srv, WithCacheTTL(time.Hour))
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := c.ListCCIs(ctx); err != nil {
			t.Fatal(err)
		}
	}
	if calls.Load() != 1 {
		t.Errorf("expected 1 call (second cached), got %d", calls.Load())
	}

	c.ClearCache()
	if _, err := c.ListCCIs(ctx); err != nil {
		t.Fatal(err)
	}
	if calls.Load() != 2 {
		t.Errorf("expected 2 calls after ClearCache, got %d", calls.Load())
	}
}

func TestGetCacheDisabled(t *testing.T) {
	var calls atomic.Int32
	srv := mockTrackr(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeJSON(w, map[string]string{})
	})

	c := newTestClient(srv, WithCacheTTL(0))
	c.ListCCIs(context.Background())
	c.ListCCIs(context.Background())
	if calls.Load() != 2 {
		t.Errorf("expected 2 calls without cache, got %d", calls.Load())
	}
}

func TestErrorsAreNotCached(t *testing.T) {
	var calls atomic.Int32
	srv := mockTrackr(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		writeJSON(w, map[string]string{})
	})

	c := newTestClient(srv, WithCacheTTL(time.Hour))
	if _, err := c.ListCCIs(context.Background()); err == nil {
		t.Fatal("expected first call to fail")
	}
	if _, err := c.ListCCIs(context.Background()); err != nil {
		t.Fatalf("expected second call to succeed, got %v", err)
	}
}

func TestErrorKinds(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
		detail string
	}{
		{"not found", http.StatusNotFound, `{"status":404}`, ErrNotFound, ""},
		{"server error", http.StatusInternalServerError, `{"status":500,"detail":"database unavailable"}`, ErrServer, "database unavailable"},
		{"bad gateway", http.StatusBadGateway, `<html>`, ErrServer, ""},
		{"bad request", http.StatusBadRequest, `{"error":"bad input"}`, ErrAPI, "bad input"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := mockTrackr(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})

			c := newTestClient(srv)
			_, err := c.ListDocuments(context.Background())
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("expected *APIError, got %T", err)
			}
			if apiErr.StatusCode != tt.status {
				t.Errorf("StatusCode = %d, want %d", apiErr.StatusCode, tt.status)
			}
			if apiErr.Detail != tt.detail {
				t.Errorf("Detail = %q, want %q", apiErr.Detail, tt.detail)
			}
			if apiErr.Path != "/stig" {
				t.Errorf("Path = %q, want /stig", apiErr.Path)
			}
		})
	}
}

func TestTimeout(t *testing.T) {
	srv := mockTrackr(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(200 * time.Millisecond):
		case <-r.Context().Done():
		}
		writeJSON(w, map[string]string{})
	})

	c := newTestClient(srv, WithTimeout(20*time.Millisecond))
	_, err := c.ListCCIs(context.Background())
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}

func TestNetworkError(t *testing.T) {
	c := NewClient(WithBaseURL("http://127.0.0.1:1"), WithLogger(quietLogger()))
	_, err := c.ListCCIs(context.Background())
	if err == nil {
		t.Fatal("expected error for unreachable server")
	}
	if !errors.Is(err, ErrAPI) {
		t.Errorf("expected ErrAPI for connection failure, got %v", err)
	}
}

func TestRetryTransient(t *testing.T) {
	var calls atomic.Int32
	srv := mockTrackr(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, map[string]string{"CCI-000001": "ok"})
	})

	c := newTestClient(srv, WithRetry(3, time.Millisecond))
	ccis, err := c.ListCCIs(context.Background())
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if len(ccis) != 1 {
		t.Errorf("expected 1 CCI, got %d", len(ccis))
	}
	if calls.Load() != 3 {
		t.Errorf("expected 3 calls, got %d", calls.Load())
	}
}

func TestRetryGivesUp(t *testing.T) {
	var calls atomic.Int32
	srv := mockTrackr(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	})

	c := newTestClient(srv, WithRetry(2, time.Millisecond))
	_, err := c.ListCCIs(context.Background())
	if !errors.Is(err, ErrServer) {
		t.Fatalf("expected ErrServer after retries, got %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("expected 2 calls, got %d", calls.Load())
	}
}

func TestNoRetryOnNotFound(t *testing.T) {
	var calls atomic.Int32
	srv := mockTrackr(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	})

	c := newTestClient(srv, WithRetry(5, time.Millisecond))
	_, err := c.ListCCIs(context.Background())
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("expected a single call for 404, got %d", calls.Load())
	}
}

func TestInvalidJSON(t *testing.T) {
	srv := mockTrackr(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	})

	c := newTestClient(srv)
	_, err := c.ListCCIs(context.Background())
	if err == nil {
		t.Fatal("expected error for invalid JSON")
	}
	if !strings.Contains(err.Error(), "parse /cci") {
		t.Errorf("expected parse error naming the path, got %q", err.Error())
	}
}

func TestControlCharactersInStrings(t *testing.T) {
	srv := mockTrackr(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("{\"id\":\"V-214518\",\"severity\":\"medium\",\"check-text\":\"line one\nline two\tend\"}"))
	})

	c := newTestClient(srv)
	key := DocumentKey{Title: "Juniper_SRX_Services_Gateway_ALG", Version: "3", Release: "3"}
	req, err := c.GetRequirement(context.Background(), key, "V-214518")
	if err != nil {
		t.Fatalf("expected control characters to be tolerated, got %v", err)
	}
	if req.CheckText != "line one line two end" {
		t.Errorf("CheckText = %q", req.CheckText)
	}
}

func TestValidationBeforeRequest(t *testing.T) {
	var calls atomic.Int32
	srv := mockTrackr(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeJSON(w, map[string]string{})
	})
	c := newTestClient(srv)
	ctx := context.Background()
	key := DocumentKey{Title: "Windows_10", Version: "3", Release: "2"}

	checks := []struct {
		name string
		call func() error
	}{
		{"bad version", func() error {
			_, err := c.GetDocument(ctx, DocumentKey{Title: "Windows_10", Version: "v3", Release: "2"})
			return err
		}},
		{"bad release", func() error {
			_, err := c.GetDocument(ctx, DocumentKey{Title: "Windows_10", Version: "3", Release: "2.x"})
			return err
		}},
		{"empty title", func() error {
			_, err := c.GetDocument(ctx, DocumentKey{Version: "3", Release: "2"})
			return err
		}},
		{"bad vuln", func() error {
			_, err := c.GetRequirement(ctx, key, "V-12")
			return err
		}},
		{"bad cci", func() error {
			_, err := c.GetCCI(ctx, "CCI-1")
			return err
		}},
		{"bad control", func() error {
			_, err := c.GetRMFControl(ctx, 5, "AC1")
			return err
		}},
		{"bad revision", func() error {
			_, err := c.ListRMFControls(ctx, 3)
			return err
		}},
	}
	for _, tt := range checks {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("expected ErrValidation, got %v", err)
			}
		})
	}
	if calls.Load() != 0 {
		t.Errorf("expected no requests for invalid identifiers, got %d", calls.Load())
	}
}
