package postgres

import (
	"strings"
	"testing"
	"time"

	"github.com/pgvector/pgvector-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchema_RendersDimensions(t *testing.T) {
	ddl, err := Schema(1536)
	require.NoError(t, err)

	assert.Contains(t, ddl, "vector(1536)")
	assert.NotContains(t, ddl, "{{DIMENSIONS}}")
	assert.Contains(t, ddl, "vector_cosine_ops")
	assert.True(t, strings.HasPrefix(ddl, "CREATE EXTENSION IF NOT EXISTS vector"))
}

func TestSchema_RejectsUnindexableDimensions(t *testing.T) {
	for _, dims := range []int{0, -3, 2001, 3072} {
		_, err := Schema(dims)
		assert.Error(t, err, "dimensions %d", dims)
	}
	_, err := Schema(2000)
	assert.NoError(t, err)
}

func TestHashLockName(t *testing.T) {
	assert.Equal(t, hashLockName("ingest:d1"), hashLockName("ingest:d1"))
	assert.NotEqual(t, hashLockName("ingest:d1"), hashLockName("ingest:d2"))
	assert.NotEqual(t, hashLockName("chunks:d1"), hashLockName("ingest:d1"))
}

func TestNullHelpers(t *testing.T) {
	s := "x"
	assert.Equal(t, &s, ptrOf(nullable(&s)))
	assert.Nil(t, ptrOf(nullable[string](nil)))
	assert.False(t, nullIfEmpty("").Valid)
	assert.Nil(t, ptrOf(nullable[time.Time](nil)))
}

func TestPGVector_ParameterEncoding(t *testing.T) {
	v := pgvector.NewVector([]float32{1, 0.5, -2})
	val, err := v.Value()
	require.NoError(t, err)

	var back pgvector.Vector
	require.NoError(t, back.Scan(val))
	assert.Equal(t, []float32{1, 0.5, -2}, back.Slice())
}
