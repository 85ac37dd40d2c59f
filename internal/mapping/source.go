package mapping

import (
	"context"
	_ "embed"
	"fmt"
	"os"
)

//go:embed field-mappings.json
var defaultMappings []byte

// Source yields the raw bytes of a mapping document.
type Source interface {
	// Name identifies the source in logs and metrics.
	Name() string
	Fetch(ctx context.Context) ([]byte, Format, error)
}

// EmbeddedSource serves the mapping document compiled into the binary.
type EmbeddedSource struct{}

func (EmbeddedSource) Name() string { return "embedded" }

func (EmbeddedSource) Fetch(context.Context) ([]byte, Format, error) {
	return defaultMappings, FormatJSON, nil
}

// FileSource reads a JSON or YAML mapping document from disk.
type FileSource struct {
	Path string
}

func (s FileSource) Name() string { return "file" }

func (s FileSource) Fetch(context.Context) ([]byte, Format, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, "", fmt.Errorf("reading %s: %w", s.Path, err)
	}
	return data, FormatFor(s.Path), nil
}

// ObjectReader downloads an object by key. storage.MinIOClient satisfies it.
type ObjectReader interface {
	Download(ctx context.Context, key string) ([]byte, error)
}

// ObjectSource reads a mapping document from object storage.
type ObjectSource struct {
	Store ObjectReader
	Key   string
}

func (s ObjectSource) Name() string { return "object" }

func (s ObjectSource) Fetch(ctx context.Context) ([]byte, Format, error) {
	if s.Store == nil {
		return nil, "", fmt.Errorf("object store not configured")
	}
	data, err := s.Store.Download(ctx, s.Key)
	if err != nil {
		return nil, "", fmt.Errorf("downloading %s: %w", s.Key, err)
	}
	return data, FormatFor(s.Key), nil
}

// BytesSource serves an in-memory document.
type BytesSource struct {
	Data   []byte
	Format Format
}

func (s BytesSource) Name() string { return "bytes" }

func (s BytesSource) Fetch(context.Context) ([]byte, Format, error) {
	f := s.Format
	if f == "" {
		f = FormatJSON
	}
	return s.Data, f, nil
}
