// Package manifest describes the manifest.json written next to exported
// documents: which documents a directory holds and the checksum of each
// file.
package manifest

import (
	"time"

	"github.com/cyber-trackr/cyber-trackr/pkg/trackr"
)

// FileName is the manifest's name inside an export directory.
const FileName = "manifest.json"

// ExportManifest indexes the documents of one export directory.
type ExportManifest struct {
	Tool      string    `json:"tool"`
	UpdatedAt time.Time `json:"updated_at"`
	Documents []Entry   `json:"documents"`
}

// Entry is one exported document.
type Entry struct {
	Key          trackr.DocumentKey `json:"key"`
	File         string             `json:"file"`
	SHA256       string             `json:"sha256"`
	Requirements int                `json:"requirements"`
	Incomplete   int                `json:"incomplete,omitempty"`
	FetchedAt    time.Time          `json:"fetched_at"`
}
