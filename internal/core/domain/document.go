package domain

import "time"

// Project is the isolation boundary for documents, chunks and searches.
type Project struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	OwnerID   string    `json:"owner_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// AccessibleBy reports whether callerID may read or write the project.
// An empty callerID means ownership is not enforced for this request.
func (p *Project) AccessibleBy(callerID string) bool {
	if callerID == "" || p.OwnerID == "" {
		return true
	}
	return p.OwnerID == callerID
}

// Document represents one ingested source file
type Document struct {
	ID          string     `json:"id"`
	ProjectID   string     `json:"project_id"`
	Name        string     `json:"name"`
	FilePath    string     `json:"file_path,omitempty"`
	MimeType    string     `json:"mime_type,omitempty"`
	SizeBytes   int64      `json:"size_bytes,omitempty"`
	RawText     *string    `json:"-"` // nil until extraction completes
	ContentHash string     `json:"content_hash,omitempty"`
	ChunkCount  int        `json:"chunk_count"`
	CreatedAt   time.Time  `json:"created_at"`
	ExtractedAt *time.Time `json:"extracted_at,omitempty"`
}

// HasText reports whether extraction has already produced text for the document.
func (d *Document) HasText() bool {
	return d.RawText != nil
}

// Chunk is an ordinally-addressed slice of a document's text.
// Ordinals within a document are contiguous and zero-based.
type Chunk struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"document_id"`
	ProjectID  string    `json:"project_id"`
	Ordinal    int       `json:"ordinal"`
	Content    string    `json:"content"`
	Embedding  []float32 `json:"embedding,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// ChunkInput is one (text, vector) pair handed to the vector store in ordinal order.
type ChunkInput struct {
	Content   string
	Embedding []float32
}

// ScoredChunk is a search hit scoped to one project.
type ScoredChunk struct {
	ChunkID      string  `json:"chunk_id"`
	DocumentID   string  `json:"document_id"`
	DocumentName string  `json:"document_name"`
	Ordinal      int     `json:"ordinal"`
	Content      string  `json:"content"`
	Score        float64 `json:"score"`
}

// DocumentWithChunks combines a document with its chunks
type DocumentWithChunks struct {
	Document *Document `json:"document"`
	Chunks   []*Chunk  `json:"chunks"`
}
