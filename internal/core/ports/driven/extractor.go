package driven

import (
	"context"
	"io"
)

// SourceFile describes a stored file handed to an extractor.
type SourceFile struct {
	Name     string
	MimeType string
	Size     int64
}

// Extractor converts a stored source file into plain text.
type Extractor interface {
	// Extract reads r and returns its plain text. Corrupt input is an error;
	// a valid file without text yields "" and no error.
	Extract(ctx context.Context, r io.Reader, file SourceFile) (string, error)

	// SupportedTypes returns MIME types this extractor handles.
	// Can include wildcards like "text/*".
	SupportedTypes() []string

	// Extensions returns file extensions (with dot) used when the MIME type is unknown.
	Extensions() []string

	// Priority returns the extractor priority (higher = more specific).
	Priority() int
}

// ExtractorRegistry manages extractors.
// When multiple extractors match, the highest priority one is used.
type ExtractorRegistry interface {
	// Get retrieves the best-matching extractor for a file, nil if none.
	// MIME type is tried first, then the file extension.
	Get(file SourceFile) Extractor

	// Register registers an extractor.
	Register(extractor Extractor)

	// List returns all registered MIME types.
	List() []string
}

// FileStore opens stored source files.
type FileStore interface {
	// Open returns a reader for the file at path, domain.ErrNotFound if missing.
	Open(ctx context.Context, path string) (io.ReadCloser, error)
}
