package manifest

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cyber-trackr/cyber-trackr/pkg/trackr"
)

func sampleManifest() *ExportManifest {
	return &ExportManifest{
		Tool:      "cyber-trackr dev",
		UpdatedAt: time.Date(2026, 2, 20, 0, 0, 0, 0, time.UTC),
		Documents: []Entry{
			{
				Key:          trackr.DocumentKey{Title: "Windows_10", Version: "3", Release: "2"},
				File:         "Windows_10_v3r2.json",
				SHA256:       Checksum([]byte("windows")),
				Requirements: 260,
				Incomplete:   2,
			},
		},
	}
}

func TestWriteAndReadManifestRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	original := sampleManifest()

	if err := WriteManifest(path, original); err != nil {
		t.Fatalf("WriteManifest failed: %v", err)
	}

	got, err := ReadManifest(path)
	if err != nil {
		t.Fatalf("ReadManifest failed: %v", err)
	}
	if got.Tool != original.Tool {
		t.Errorf("Tool = %q, want %q", got.Tool, original.Tool)
	}
	if !got.UpdatedAt.Equal(original.UpdatedAt) {
		t.Errorf("UpdatedAt = %v, want %v", got.UpdatedAt, original.UpdatedAt)
	}
	if len(got.Documents) != 1 {
		t.Fatalf("expected 1 document, got %d", len(got.Documents))
	}
	want := original.Documents[0]
	if e := got.Documents[0]; e.Key != want.Key || e.SHA256 != want.SHA256 || e.Incomplete != want.Incomplete {
		t.Errorf("Documents[0] = %+v, want %+v", e, want)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temporary file left behind")
	}
}

func TestReadManifestErrors(t *testing.T) {
	dir := t.TempDir()

	if _, err := ReadManifest(filepath.Join(dir, "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}

	bad := filepath.Join(dir, "bad.json")
	os.WriteFile(bad, []byte("{not json"), 0644)
	if _, err := ReadManifest(bad); err == nil {
		t.Error("expected error for invalid JSON")
	}
}

func TestReadOrEmpty(t *testing.T) {
	m, err := ReadOrEmpty(filepath.Join(t.TempDir(), FileName))
	if err != nil {
		t.Fatalf("ReadOrEmpty: %v", err)
	}
	if len(m.Documents) != 0 {
		t.Errorf("expected empty manifest, got %+v", m)
	}
}

func TestPutReplacesAndSorts(t *testing.T) {
	m := &ExportManifest{}
	win := trackr.DocumentKey{Title: "Windows_10", Version: "3", Release: "2"}
	alg := trackr.DocumentKey{Title: "Application_Layer_Gateway", Version: "1", Release: "2"}

	m.Put(Entry{Key: win, File: "Windows_10_v3r2.json", Requirements: 1})
	m.Put(Entry{Key: alg, File: "Application_Layer_Gateway_v1r2.json"})
	m.Put(Entry{Key: win, File: "Windows_10_v3r2.json", Requirements: 5})

	if len(m.Documents) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(m.Documents))
	}
	if m.Documents[0].Key != alg {
		t.Errorf("expected entries sorted by file, got %+v", m.Documents)
	}
	if m.Documents[1].Requirements != 5 {
		t.Errorf("expected replaced entry, got %+v", m.Documents[1])
	}
}

func TestVerify(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "a.json"), []byte("alpha"), 0644)
	os.WriteFile(filepath.Join(dir, "b.json"), []byte("tampered"), 0644)

	m := &ExportManifest{Documents: []Entry{
		{Key: trackr.DocumentKey{Title: "A", Version: "1", Release: "1"}, File: "a.json", SHA256: Checksum([]byte("alpha"))},
		{Key: trackr.DocumentKey{Title: "B", Version: "1", Release: "1"}, File: "b.json", SHA256: Checksum([]byte("bravo"))},
		{Key: trackr.DocumentKey{Title: "C", Version: "1", Release: "1"}, File: "c.json", SHA256: Checksum([]byte("charlie"))},
	}}
	if err := WriteManifest(filepath.Join(dir, FileName), m); err != nil {
		t.Fatal(err)
	}

	bad, err := Verify(dir)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if len(bad) != 2 {
		t.Fatalf("expected 2 mismatches, got %+v", bad)
	}
	if bad[0].File != "b.json" || bad[0].Reason != "checksum mismatch" {
		t.Errorf("unexpected mismatch %+v", bad[0])
	}
	if bad[1].File != "c.json" || bad[1].Reason != "missing" {
		t.Errorf("unexpected mismatch %+v", bad[1])
	}
}

func TestChecksumKnownValue(t *testing.T) {
	const empty = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
	if got := Checksum(nil); got != empty {
		t.Errorf("Checksum(nil) = %s", got)
	}
}
