package postgres

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/verag/internal/core/domain"
)

const testDims = 3

// openTestDB connects to VERAG_TEST_DATABASE_URL and recreates the schema.
// The tables are dropped first, so point it at a throwaway database.
func openTestDB(t *testing.T) *DB {
	t.Helper()
	url := os.Getenv("VERAG_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("VERAG_TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	db, err := Connect(ctx, Config{URL: url, MaxOpenConns: 4, MaxIdleConns: 2})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.ExecContext(ctx, `DROP TABLE IF EXISTS chunks, documents, projects, ingest_tasks CASCADE`)
	require.NoError(t, err)
	require.NoError(t, db.InitSchema(ctx, testDims))
	return db
}

func seed(t *testing.T, db *DB, projectID, docID, name string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, NewProjectStore(db).Save(ctx, &domain.Project{ID: projectID, Name: projectID, OwnerID: "u1"}))
	require.NoError(t, NewDocumentStore(db).Save(ctx, &domain.Document{ID: docID, ProjectID: projectID, Name: name}))
}

func TestIntegration_ColumnDimensions(t *testing.T) {
	db := openTestDB(t)
	dims, err := db.ColumnDimensions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, testDims, dims)
}

func TestIntegration_DocumentStore(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	seed(t, db, "p1", "d1", "a.txt")
	docs := NewDocumentStore(db)

	require.NoError(t, docs.SetExtractedText(ctx, "d1", "hello", "abc"))
	require.NoError(t, docs.SetChunkCount(ctx, "d1", 2))

	doc, err := docs.Get(ctx, "d1")
	require.NoError(t, err)
	require.NotNil(t, doc.RawText)
	assert.Equal(t, "hello", *doc.RawText)
	assert.Equal(t, 2, doc.ChunkCount)
	assert.NotNil(t, doc.ExtractedAt)

	_, err = docs.Get(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, docs.SetChunkCount(ctx, "missing", 1), domain.ErrNotFound)

	list, err := docs.ListByProject(ctx, "p1", 10, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Nil(t, list[0].RawText)

	require.NoError(t, docs.Delete(ctx, "d1"))
	require.NoError(t, docs.Delete(ctx, "d1"))
	_, err = docs.Get(ctx, "d1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestIntegration_ReplaceAndSearch(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	seed(t, db, "p1", "d1", "a.txt")
	seed(t, db, "p2", "d2", "b.txt")
	store := NewVectorStore(db, testDims)

	n, err := store.ReplaceChunks(ctx, "d1", "p1", []domain.ChunkInput{
		{Content: "north", Embedding: []float32{1, 0, 0}},
		{Content: "east", Embedding: []float32{0, 1, 0}},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = store.ReplaceChunks(ctx, "d2", "p2", []domain.ChunkInput{
		{Content: "other project", Embedding: []float32{1, 0, 0}},
	})
	require.NoError(t, err)

	hits, err := store.Search(ctx, "p1", []float32{1, 0, 0}, 5)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "north", hits[0].Content)
	assert.Equal(t, "a.txt", hits[0].DocumentName)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-6)
	assert.InDelta(t, 0.0, hits[1].Score, 1e-6)

	chunks, err := store.GetByDocument(ctx, "d1", true)
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, 0, chunks[0].Ordinal)
	assert.Equal(t, []float32{0, 1, 0}, chunks[1].Embedding)

	// Replacing with fewer chunks leaves no stale ordinals
	_, err = store.ReplaceChunks(ctx, "d1", "p1", []domain.ChunkInput{
		{Content: "only", Embedding: []float32{0, 0, 1}},
	})
	require.NoError(t, err)
	chunks, err = store.GetByDocument(ctx, "d1", false)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "only", chunks[0].Content)
	assert.Nil(t, chunks[0].Embedding)
}

func TestIntegration_ReplaceChunksRejectsWrongDimensions(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	seed(t, db, "p1", "d1", "a.txt")
	store := NewVectorStore(db, testDims)

	_, err := store.ReplaceChunks(ctx, "d1", "p1", []domain.ChunkInput{{Content: "ok", Embedding: []float32{1, 0, 0}}})
	require.NoError(t, err)

	_, err = store.ReplaceChunks(ctx, "d1", "p1", []domain.ChunkInput{{Content: "bad", Embedding: []float32{1, 0}}})
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)

	chunks, err := store.GetByDocument(ctx, "d1", false)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "ok", chunks[0].Content)
}

func TestIntegration_ConcurrentReplaceKeepsOneFullSet(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	seed(t, db, "p1", "d1", "a.txt")
	store := NewVectorStore(db, testDims)

	sets := [][]domain.ChunkInput{
		{{Content: "a0", Embedding: []float32{1, 0, 0}}, {Content: "a1", Embedding: []float32{1, 0, 0}}},
		{{Content: "b0", Embedding: []float32{0, 1, 0}}, {Content: "b1", Embedding: []float32{0, 1, 0}}, {Content: "b2", Embedding: []float32{0, 1, 0}}},
	}

	var wg sync.WaitGroup
	for _, set := range sets {
		wg.Add(1)
		go func(set []domain.ChunkInput) {
			defer wg.Done()
			_, err := store.ReplaceChunks(ctx, "d1", "p1", set)
			assert.NoError(t, err)
		}(set)
	}
	wg.Wait()

	chunks, err := store.GetByDocument(ctx, "d1", false)
	require.NoError(t, err)
	prefix := chunks[0].Content[:1]
	for i, c := range chunks {
		assert.Equal(t, i, c.Ordinal)
		assert.Equal(t, prefix, c.Content[:1], "chunk sets must not interleave")
	}
}

func TestIntegration_AdvisoryLock(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	a := NewAdvisoryLock(db)
	b := NewAdvisoryLock(db)

	ok, err := a.Acquire(ctx, "ingest:d1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = b.Acquire(ctx, "ingest:d1", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, a.Extend(ctx, "ingest:d1", time.Minute))
	require.NoError(t, a.Release(ctx, "ingest:d1"))

	ok, err = b.Acquire(ctx, "ingest:d1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, b.Release(ctx, "ingest:d1"))
	assert.Error(t, b.Extend(ctx, "ingest:d1", time.Minute))
}

func TestIntegration_SearchFillsTopKForSmallProject(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	store := NewVectorStore(db, testDims)

	// Project "big" owns most rows and sits closest to the query, so a
	// post-filtered index scan would return little or nothing for "small".
	seed(t, db, "big", "big-doc", "big.txt")
	bigChunks := make([]domain.ChunkInput, 2000)
	for i := range bigChunks {
		bigChunks[i] = domain.ChunkInput{Content: "big", Embedding: []float32{1, float32(i%7) * 0.001, 0}}
	}
	_, err := store.ReplaceChunks(ctx, "big-doc", "big", bigChunks)
	require.NoError(t, err)

	seed(t, db, "small", "small-doc", "small.txt")
	smallChunks := make([]domain.ChunkInput, 20)
	for i := range smallChunks {
		smallChunks[i] = domain.ChunkInput{Content: "small", Embedding: []float32{0, 1, float32(i) * 0.01}}
	}
	_, err = store.ReplaceChunks(ctx, "small-doc", "small", smallChunks)
	require.NoError(t, err)

	hits, err := store.Search(ctx, "small", []float32{1, 0, 0}, 10)
	require.NoError(t, err)
	require.Len(t, hits, 10)
	for _, h := range hits {
		assert.Equal(t, "small-doc", h.DocumentID)
	}

	hits, err = store.Search(ctx, "small", []float32{1, 0, 0}, 0)
	require.NoError(t, err)
	assert.Empty(t, hits)
}
