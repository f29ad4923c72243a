package extractors

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/ledongthuc/pdf"

	"github.com/custodia-labs/verag/internal/core/domain"
	"github.com/custodia-labs/verag/internal/core/ports/driven"
)

// PDFExtractor reads the text layer of PDF files. Scanned pages without a
// text layer produce no text.
type PDFExtractor struct{}

func (e *PDFExtractor) Extract(ctx context.Context, r io.Reader, file driven.SourceFile) (text string, err error) {
	// the parser panics on some malformed object streams
	defer func() {
		if p := recover(); p != nil {
			text, err = "", fmt.Errorf("%w: corrupt pdf: %v", domain.ErrUnsupportedFormat, p)
		}
	}()

	b, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read pdf: %w", err)
	}
	if len(b) == 0 {
		return "", nil
	}

	reader, err := pdf.NewReader(bytes.NewReader(b), int64(len(b)))
	if err != nil {
		return "", fmt.Errorf("%w: corrupt pdf: %v", domain.ErrUnsupportedFormat, err)
	}

	var out bytes.Buffer
	for i := 1; i <= reader.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("%w: page %d: %v", domain.ErrUnsupportedFormat, i, err)
		}
		out.WriteString(pageText)
		out.WriteString("\n\n")
	}
	return out.String(), nil
}

func (e *PDFExtractor) SupportedTypes() []string {
	return []string{"application/pdf", "application/x-pdf"}
}

func (e *PDFExtractor) Extensions() []string {
	return []string{".pdf"}
}

func (e *PDFExtractor) Priority() int {
	return 50
}
