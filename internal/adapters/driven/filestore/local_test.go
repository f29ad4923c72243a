package filestore

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/verag/internal/core/domain"
)

func TestLocal_PutThenOpen(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocal(dir)
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	rel, n, err := store.Put(ctx, "proj-1", "Q3 report (final).pdf", strings.NewReader("hello"))
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)
	assert.True(t, strings.HasPrefix(rel, "proj-1/"))
	assert.True(t, strings.HasSuffix(rel, "_Q3_report__final_.pdf"))

	_, err = os.Stat(filepath.Join(dir, filepath.FromSlash(rel)))
	require.NoError(t, err)

	rc, err := store.Open(ctx, rel)
	require.NoError(t, err)
	defer rc.Close()
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(body))
}

func TestLocal_OpenMissing(t *testing.T) {
	store, err := NewLocal(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	_, err = store.Open(context.Background(), "proj-1/nope.txt")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestLocal_OpenCannotEscapeRoot(t *testing.T) {
	parent := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(parent, "secret.txt"), []byte("x"), 0o600))

	store, err := NewLocal(filepath.Join(parent, "root"))
	require.NoError(t, err)
	defer store.Close()

	_, err = store.Open(context.Background(), "../secret.txt")
	assert.Error(t, err)
}

func TestLocal_PutRejectsBadProject(t *testing.T) {
	store, err := NewLocal(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	for _, id := range []string{"", "..", "a/b"} {
		_, _, err := store.Put(context.Background(), id, "f.txt", strings.NewReader("x"))
		assert.ErrorIs(t, err, domain.ErrInvalidInput, id)
	}
}

func TestSafeName(t *testing.T) {
	tests := map[string]string{
		"notes.txt":          "notes.txt",
		"../../etc/passwd":   "passwd",
		`C:\docs\plan v2.md`: "plan_v2.md",
		"...":                "file",
		"résumé.pdf":         "r_sum_.pdf",
	}
	for in, want := range tests {
		assert.Equal(t, want, SafeName(in), in)
	}
}
