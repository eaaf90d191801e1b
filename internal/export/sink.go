package export

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	minio "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/cyber-trackr/cyber-trackr/internal/compliance"
	"github.com/cyber-trackr/cyber-trackr/pkg/buildinfo"
	"github.com/cyber-trackr/cyber-trackr/pkg/manifest"
)

// Encode renders a document as pretty-printed JSON.
func Encode(doc *compliance.CompleteDocument) ([]byte, error) {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// DirSink writes one JSON file per document into a directory and keeps
// the directory's manifest.json current.
type DirSink struct {
	dir string
	mu  sync.Mutex
}

// NewDirSink creates a sink writing into dir, created on first write.
func NewDirSink(dir string) *DirSink {
	return &DirSink{dir: dir}
}

func (s *DirSink) String() string { return "dir:" + s.dir }

// Write stores doc as <title>_v<version>r<release>.json.
func (s *DirSink) Write(_ context.Context, doc *compliance.CompleteDocument) (string, error) {
	data, err := Encode(doc)
	if err != nil {
		return "", fmt.Errorf("encode: %w", err)
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	p := filepath.Join(s.dir, doc.Key.Filename())
	if err := os.WriteFile(p, data, 0o644); err != nil {
		return "", err
	}
	if err := s.record(doc, data); err != nil {
		return "", err
	}
	return p, nil
}

func (s *DirSink) record(doc *compliance.CompleteDocument, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.dir, manifest.FileName)
	m, err := manifest.ReadOrEmpty(path)
	if err != nil {
		return err
	}
	m.Tool = "cyber-trackr " + buildinfo.Version
	m.UpdatedAt = time.Now().UTC()
	m.Put(manifest.Entry{
		Key:          doc.Key,
		File:         doc.Key.Filename(),
		SHA256:       manifest.Checksum(data),
		Requirements: len(doc.Requirements),
		Incomplete:   len(doc.Failed()),
		FetchedAt:    doc.FetchedAt,
	})
	return manifest.WriteManifest(path, m)
}

// S3Options configures an S3Sink.
type S3Options struct {
	Endpoint  string
	Bucket    string
	Prefix    string
	AccessKey string
	SecretKey string
	UseSSL    bool
	// Region skips the bucket location lookup when set.
	Region string
}

// S3Sink uploads documents to an S3-compatible bucket.
type S3Sink struct {
	mc     *minio.Client
	bucket string
	prefix string
}

// NewS3Sink creates an S3 sink. No request is made until the first write.
func NewS3Sink(opts S3Options) (*S3Sink, error) {
	mc, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
		Region: opts.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create s3 client: %w", err)
	}
	return &S3Sink{mc: mc, bucket: opts.Bucket, prefix: strings.Trim(opts.Prefix, "/")}, nil
}

func (s *S3Sink) String() string {
	return "s3://" + path.Join(s.bucket, s.prefix)
}

// Write uploads doc under <prefix>/<title>_v<version>r<release>.json.
func (s *S3Sink) Write(ctx context.Context, doc *compliance.CompleteDocument) (string, error) {
	data, err := Encode(doc)
	if err != nil {
		return "", fmt.Errorf("encode: %w", err)
	}
	key := doc.Key.Filename()
	if s.prefix != "" {
		key = s.prefix + "/" + key
	}
	_, err = s.mc.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	return "s3://" + s.bucket + "/" + key, nil
}
