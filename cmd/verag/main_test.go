package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Chdir(t.TempDir())
	t.Setenv("CONFIG_FILE", "")

	var buf bytes.Buffer
	root := newRootCmd()
	root.SetOut(&buf)
	root.SetErr(&buf)
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

func TestRootCommands(t *testing.T) {
	root := newRootCmd()

	names := map[string]bool{}
	for _, cmd := range root.Commands() {
		names[cmd.Name()] = true
	}
	for _, want := range []string{"serve", "migrate", "project", "ingest", "ask", "version"} {
		assert.True(t, names[want], "missing command %s", want)
	}
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "verag version dev\n", out)
}

func TestVersionSkipsConfig(t *testing.T) {
	t.Setenv("EMBEDDING_DIMENSIONS", "not-a-number")

	_, err := execute(t, "version")
	assert.NoError(t, err)
}

func TestInvalidConfigFailsBeforeWork(t *testing.T) {
	t.Setenv("EMBEDDING_DIMENSIONS", "0")

	_, err := execute(t, "ask", "--project", "p1", "why?")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "EMBEDDING_DIMENSIONS")
}

func TestServeRejectsUnknownMode(t *testing.T) {
	_, err := execute(t, "serve", "batch")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid argument")
}

func TestAskRequiresProject(t *testing.T) {
	_, err := execute(t, "ask", "what is the duty point?")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `required flag(s) "project" not set`)
}

func TestAskRequiresQuestion(t *testing.T) {
	_, err := execute(t, "ask", "--project", "p1")
	assert.Error(t, err)
}

func TestIngestSourceFlags(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"no source", []string{"ingest", "--project", "p1"}, "at least one of the flags"},
		{"two sources", []string{"ingest", "--project", "p1", "--file", "a.pdf", "--text", "x"}, "were all set"},
		{"file without project", []string{"ingest", "--file", "a.pdf"}, "--project is required"},
		{"async raw text", []string{"ingest", "--project", "p1", "--text", "x", "--async"}, "--async needs a stored document"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestDetectMIME(t *testing.T) {
	tests := []struct {
		path    string
		content string
		want    string
	}{
		{"notes.md", "# Title\n\nbody", "text/markdown"},
		{"page.html", "<!DOCTYPE html><html><body>hi</body></html>", "text/html"},
		{"brief.pdf", "%PDF-1.7\n%\xe2\xe3\xcf\xd3\n", "application/pdf"},
		{"notes.txt", "plain words only", "text/plain"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			r := strings.NewReader(tt.content)
			got, err := detectMIME(r, tt.path)
			require.NoError(t, err)
			assert.True(t, strings.HasPrefix(got, tt.want), "got %s", got)
		})
	}
}
