package domain

import (
	"strings"
	"time"
)

// IngestRequest starts ingestion either of a stored document (DocumentID)
// or of raw text that becomes a new document (ProjectID, Name, Text).
type IngestRequest struct {
	DocumentID string `json:"document_id,omitempty"`
	ProjectID  string `json:"project_id,omitempty"`
	Name       string `json:"name,omitempty"`
	Text       string `json:"text,omitempty"`

	// ForceExtract re-runs extraction even when the document already has text.
	ForceExtract bool `json:"force_extract,omitempty"`

	CallerID string `json:"-"`
}

// ByDocument reports whether the request targets an existing document.
func (r IngestRequest) ByDocument() bool {
	return r.DocumentID != ""
}

// Validate checks that exactly one addressing mode is usable.
func (r IngestRequest) Validate() error {
	if r.ByDocument() {
		return nil
	}
	if strings.TrimSpace(r.ProjectID) == "" || strings.TrimSpace(r.Name) == "" {
		return ErrInvalidInput
	}
	return nil
}

// IngestResult summarises a completed ingestion.
type IngestResult struct {
	DocumentID  string        `json:"document_id"`
	ProjectID   string        `json:"project_id"`
	Name        string        `json:"name"`
	ChunkCount  int           `json:"chunk_count"`
	ContentHash string        `json:"content_hash"`
	Took        time.Duration `json:"took"`
}
