package extractors

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/custodia-labs/verag/internal/core/domain"
	"github.com/custodia-labs/verag/internal/core/ports/driven"
)

// maxTextBytes caps how much of a text file is read into memory.
const maxTextBytes = 64 << 20

// readText reads a UTF-8 text stream, rejecting binary or oversized input.
func readText(r io.Reader) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxTextBytes+1))
	if err != nil {
		return "", fmt.Errorf("read: %w", err)
	}
	if len(data) > maxTextBytes {
		return "", fmt.Errorf("%w: text larger than %d bytes", domain.ErrUnsupportedFormat, maxTextBytes)
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if !utf8.Valid(data) || bytes.IndexByte(data, 0) >= 0 {
		return "", fmt.Errorf("%w: not UTF-8 text", domain.ErrUnsupportedFormat)
	}
	return string(data), nil
}

// PlaintextExtractor handles plain text content.
type PlaintextExtractor struct{}

func (e *PlaintextExtractor) Extract(ctx context.Context, r io.Reader, file driven.SourceFile) (string, error) {
	text, err := readText(r)
	if err != nil {
		return "", err
	}
	return strings.ReplaceAll(text, "\r\n", "\n"), nil
}

func (e *PlaintextExtractor) SupportedTypes() []string {
	return []string{"text/plain", "text/csv"}
}

func (e *PlaintextExtractor) Extensions() []string {
	return []string{".txt", ".csv", ".log"}
}

func (e *PlaintextExtractor) Priority() int {
	return 10
}

// MarkdownExtractor keeps Markdown source as-is; headings and lists already
// sit on their own lines, which is what the chunker splits on.
type MarkdownExtractor struct{}

func (e *MarkdownExtractor) Extract(ctx context.Context, r io.Reader, file driven.SourceFile) (string, error) {
	text, err := readText(r)
	if err != nil {
		return "", err
	}
	text = strings.ReplaceAll(text, "\r\n", "\n")
	for strings.Contains(text, "\n\n\n") {
		text = strings.ReplaceAll(text, "\n\n\n", "\n\n")
	}
	return strings.TrimSpace(text), nil
}

func (e *MarkdownExtractor) SupportedTypes() []string {
	return []string{"text/markdown", "text/x-markdown"}
}

func (e *MarkdownExtractor) Extensions() []string {
	return []string{".md", ".markdown"}
}

func (e *MarkdownExtractor) Priority() int {
	return 50
}
