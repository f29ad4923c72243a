package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/custodia-labs/verag/internal/core/domain"
	"github.com/custodia-labs/verag/internal/core/ports/driven"
)

// Verify interface compliance
var (
	_ driven.ProjectStore  = (*ProjectStore)(nil)
	_ driven.DocumentStore = (*DocumentStore)(nil)
)

// ProjectStore implements driven.ProjectStore using PostgreSQL
type ProjectStore struct {
	db *DB
}

// NewProjectStore creates a new ProjectStore
func NewProjectStore(db *DB) *ProjectStore {
	return &ProjectStore{db: db}
}

// Save creates or updates a project
func (s *ProjectStore) Save(ctx context.Context, p *domain.Project) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO projects (id, name, owner_id, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			owner_id = EXCLUDED.owner_id
	`, p.ID, p.Name, sql.NullString{String: p.OwnerID, Valid: p.OwnerID != ""}, p.CreatedAt)
	return err
}

// Get retrieves a project by ID
func (s *ProjectStore) Get(ctx context.Context, id string) (*domain.Project, error) {
	var p domain.Project
	var owner sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, owner_id, created_at FROM projects WHERE id = $1
	`, id).Scan(&p.ID, &p.Name, &owner, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	p.OwnerID = owner.String
	return &p, nil
}

// DocumentStore implements driven.DocumentStore using PostgreSQL
type DocumentStore struct {
	db *DB
}

// NewDocumentStore creates a new DocumentStore
func NewDocumentStore(db *DB) *DocumentStore {
	return &DocumentStore{db: db}
}

const documentColumns = `id, project_id, name, file_path, mime_type, size_bytes, raw_text, content_hash, chunk_count, created_at, extracted_at`

// Save creates or updates a document's metadata. Extraction results and
// chunk counts have their own setters.
func (s *DocumentStore) Save(ctx context.Context, doc *domain.Document) error {
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO documents (` + documentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			file_path = EXCLUDED.file_path,
			mime_type = EXCLUDED.mime_type,
			size_bytes = EXCLUDED.size_bytes,
			raw_text = COALESCE(EXCLUDED.raw_text, documents.raw_text),
			content_hash = COALESCE(EXCLUDED.content_hash, documents.content_hash),
			chunk_count = EXCLUDED.chunk_count,
			extracted_at = COALESCE(EXCLUDED.extracted_at, documents.extracted_at)
	`

	_, err := s.db.ExecContext(ctx, query,
		doc.ID,
		doc.ProjectID,
		doc.Name,
		nullIfEmpty(doc.FilePath),
		nullIfEmpty(doc.MimeType),
		doc.SizeBytes,
		nullable(doc.RawText),
		nullIfEmpty(doc.ContentHash),
		doc.ChunkCount,
		doc.CreatedAt,
		nullable(doc.ExtractedAt),
	)
	return err
}

// Get retrieves a document by ID
func (s *DocumentStore) Get(ctx context.Context, id string) (*domain.Document, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = $1`, id)
	doc, err := scanDocument(row)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	return doc, err
}

// ListByProject returns documents newest first. Raw text is not loaded.
func (s *DocumentStore) ListByProject(ctx context.Context, projectID string, limit, offset int) ([]*domain.Document, error) {
	query := `
		SELECT id, project_id, name, file_path, mime_type, size_bytes, NULL, content_hash, chunk_count, created_at, extracted_at
		FROM documents
		WHERE project_id = $1
		ORDER BY created_at DESC, id
		LIMIT $2 OFFSET $3
	`

	rows, err := s.db.QueryContext(ctx, query, projectID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	docs := make([]*domain.Document, 0)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// SetExtractedText stores extraction output and stamps extracted_at
func (s *DocumentStore) SetExtractedText(ctx context.Context, id, text, contentHash string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE documents SET raw_text = $2, content_hash = $3, extracted_at = NOW()
		WHERE id = $1
	`, id, text, contentHash)
	if err != nil {
		return err
	}
	return expectOneRow(res)
}

// SetChunkCount records the chunk count of the last ingestion
func (s *DocumentStore) SetChunkCount(ctx context.Context, id string, count int) error {
	res, err := s.db.ExecContext(ctx, `UPDATE documents SET chunk_count = $2 WHERE id = $1`, id, count)
	if err != nil {
		return err
	}
	return expectOneRow(res)
}

// Delete drops the document row; chunks go with it through ON DELETE CASCADE.
func (s *DocumentStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, id)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*domain.Document, error) {
	var doc domain.Document
	var filePath, mimeType, hash sql.NullString
	var rawText sql.Null[string]
	var extractedAt sql.Null[time.Time]

	err := row.Scan(
		&doc.ID,
		&doc.ProjectID,
		&doc.Name,
		&filePath,
		&mimeType,
		&doc.SizeBytes,
		&rawText,
		&hash,
		&doc.ChunkCount,
		&doc.CreatedAt,
		&extractedAt,
	)
	if err != nil {
		return nil, err
	}

	doc.FilePath = filePath.String
	doc.MimeType = mimeType.String
	doc.ContentHash = hash.String
	doc.RawText = ptrOf(rawText)
	doc.ExtractedAt = ptrOf(extractedAt)
	return &doc, nil
}

func nullIfEmpty(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}
