package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/pgvector/pgvector-go"

	"github.com/custodia-labs/verag/internal/core/domain"
	"github.com/custodia-labs/verag/internal/core/ports/driven"
)

var _ driven.VectorStore = (*VectorStore)(nil)

// Bounds for hnsw.ef_search: pgvector's default and its maximum.
const (
	minEFSearch = 40
	maxEFSearch = 1000
)

// VectorStore keeps chunks and their embeddings in a pgvector column and
// searches them by cosine distance.
type VectorStore struct {
	db         *DB
	dimensions int
}

// NewVectorStore creates a store for vectors of the given size.
func NewVectorStore(db *DB, dimensions int) *VectorStore {
	return &VectorStore{db: db, dimensions: dimensions}
}

// Dimensions returns the configured vector length
func (s *VectorStore) Dimensions() int {
	return s.dimensions
}

// ReplaceChunks swaps a document's chunk set in one transaction.
// A transaction-scoped advisory lock on the document serializes
// concurrent replacements so the last commit wins as a whole set.
func (s *VectorStore) ReplaceChunks(ctx context.Context, documentID, projectID string, chunks []domain.ChunkInput) (int, error) {
	for i, c := range chunks {
		if len(c.Embedding) != s.dimensions {
			return 0, fmt.Errorf("%w: chunk %d has %d dimensions, store expects %d",
				domain.ErrDimensionMismatch, i, len(c.Embedding), s.dimensions)
		}
	}

	now := time.Now()
	err := s.db.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, hashLockName("chunks:"+documentID)); err != nil {
			return fmt.Errorf("lock document chunks: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE document_id = $1`, documentID); err != nil {
			return fmt.Errorf("delete chunks: %w", err)
		}
		if len(chunks) == 0 {
			return nil
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO chunks (id, document_id, project_id, ordinal, content, embedding, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for i, c := range chunks {
			_, err := stmt.ExecContext(ctx,
				domain.GenerateID(),
				documentID,
				projectID,
				i,
				c.Content,
				pgvector.NewVector(c.Embedding),
				now,
			)
			if err != nil {
				return fmt.Errorf("insert chunk %d: %w", i, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(chunks), nil
}

// Search ranks a project's chunks by cosine similarity (1 - cosine distance).
func (s *VectorStore) Search(ctx context.Context, projectID string, query []float32, topK int) ([]*domain.ScoredChunk, error) {
	if len(query) != s.dimensions {
		return nil, fmt.Errorf("%w: query has %d dimensions, store expects %d",
			domain.ErrDimensionMismatch, len(query), s.dimensions)
	}
	if topK <= 0 {
		return []*domain.ScoredChunk{}, nil
	}

	results := make([]*domain.ScoredChunk, 0, topK)
	err := s.db.inTx(ctx, func(tx *sql.Tx) error {
		// The project filter applies after the HNSW scan. Iterative scanning
		// (pgvector 0.8+) keeps walking the graph until topK rows match.
		if _, err := tx.ExecContext(ctx, `SET LOCAL hnsw.iterative_scan = strict_order`); err != nil {
			return fmt.Errorf("enable iterative scan: %w", err)
		}
		efSearch := strconv.Itoa(min(max(topK, minEFSearch), maxEFSearch))
		if _, err := tx.ExecContext(ctx, `SET LOCAL hnsw.ef_search = `+efSearch); err != nil {
			return fmt.Errorf("set ef_search: %w", err)
		}

		rows, err := tx.QueryContext(ctx, `
			SELECT c.id, c.document_id, d.name, c.ordinal, c.content,
			       1 - (c.embedding <=> $1) AS score
			FROM chunks c
			JOIN documents d ON d.id = c.document_id
			WHERE c.project_id = $2
			ORDER BY c.embedding <=> $1, c.document_id, c.ordinal
			LIMIT $3
		`, pgvector.NewVector(query), projectID, topK)
		if err != nil {
			return fmt.Errorf("search chunks: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var sc domain.ScoredChunk
			if err := rows.Scan(&sc.ChunkID, &sc.DocumentID, &sc.DocumentName, &sc.Ordinal, &sc.Content, &sc.Score); err != nil {
				return err
			}
			results = append(results, &sc)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// GetByDocument returns a document's chunks in ordinal order
func (s *VectorStore) GetByDocument(ctx context.Context, documentID string, withEmbeddings bool) ([]*domain.Chunk, error) {
	embeddingCol := "NULL"
	if withEmbeddings {
		embeddingCol = "embedding"
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, document_id, project_id, ordinal, content, `+embeddingCol+`, created_at
		FROM chunks
		WHERE document_id = $1
		ORDER BY ordinal
	`, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	chunks := make([]*domain.Chunk, 0)
	for rows.Next() {
		var c domain.Chunk
		var vec pgvector.Vector
		var skipped any
		var dest any = &vec
		if !withEmbeddings {
			dest = &skipped
		}
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.ProjectID, &c.Ordinal, &c.Content, dest, &c.CreatedAt); err != nil {
			return nil, err
		}
		if withEmbeddings {
			c.Embedding = vec.Slice()
		}
		chunks = append(chunks, &c)
	}
	return chunks, rows.Err()
}

// Ping checks the database
func (s *VectorStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
