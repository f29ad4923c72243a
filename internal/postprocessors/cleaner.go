package postprocessors

import (
	"strings"

	"github.com/custodia-labs/verag/internal/core/ports/driven"
)

// TextCleaner normalizes whitespace inside lines while keeping line structure,
// so paragraph splitting downstream still sees the original boundaries.
type TextCleaner struct{}

// Verify interface compliance
var _ driven.PostProcessor = (*TextCleaner)(nil)

// NewTextCleaner creates a new text cleaner.
func NewTextCleaner() *TextCleaner {
	return &TextCleaner{}
}

// Process cleans each chunk. Chunks are never dropped here.
func (t *TextCleaner) Process(chunks []driven.Chunk) []driven.Chunk {
	result := make([]driven.Chunk, 0, len(chunks))
	for _, chunk := range chunks {
		chunk.Content = Clean(chunk.Content)
		result = append(result, chunk)
	}
	return result
}

// Name returns the processor name.
func (t *TextCleaner) Name() string {
	return "text-cleaner"
}

// Order returns -10 - cleaning precedes chunking.
func (t *TextCleaner) Order() int {
	return -10
}

// Clean turns CR, tabs and other control spacing into single spaces,
// collapses runs of spaces and trims every line.
func Clean(content string) string {
	content = strings.ReplaceAll(content, "\r\n", "\n")

	lines := strings.Split(content, "\n")
	for i, line := range lines {
		lines[i] = strings.Join(strings.FieldsFunc(line, isInlineSpace), " ")
	}
	return strings.Join(lines, "\n")
}

func isInlineSpace(r rune) bool {
	switch r {
	case ' ', '\t', '\r', '\v', '\f', '\u00a0':
		return true
	}
	return false
}
