package extractors

import (
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/custodia-labs/verag/internal/core/ports/driven"
)

var _ driven.ExtractorRegistry = (*Registry)(nil)

// Registry picks the extractor for an uploaded document. Candidates are
// ranked by Priority, so a specialised extractor can shadow a generic one
// registered for the same type.
type Registry struct {
	mu         sync.RWMutex
	extractors []driven.Extractor
}

func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds e. Registration order breaks priority ties.
func (r *Registry) Register(e driven.Extractor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.extractors = append(r.extractors, e)
}

// Get returns the extractor for file, or nil when its format is not
// supported. A MIME match wins; the file extension is only a fallback for
// missing or generic MIME types.
func (r *Registry) Get(file driven.SourceFile) driven.Extractor {
	if e := r.best(func(e driven.Extractor) bool {
		return matchesMIMEType(e.SupportedTypes(), file.MimeType)
	}); e != nil {
		return e
	}

	ext := strings.ToLower(filepath.Ext(file.Name))
	if ext == "" {
		return nil
	}
	return r.best(func(e driven.Extractor) bool {
		return slices.ContainsFunc(e.Extensions(), func(x string) bool {
			return strings.EqualFold(x, ext)
		})
	})
}

// best returns the highest priority extractor accepted by ok.
func (r *Registry) best(ok func(driven.Extractor) bool) driven.Extractor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var pick driven.Extractor
	for _, e := range r.extractors {
		if ok(e) && (pick == nil || e.Priority() > pick.Priority()) {
			pick = e
		}
	}
	return pick
}

// List returns every MIME type some extractor accepts, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var types []string
	for _, e := range r.extractors {
		types = append(types, e.SupportedTypes()...)
	}
	slices.Sort(types)
	return slices.Compact(types)
}

// matchesMIMEType compares without parameters or case. An entry ending in
// "/*" accepts the whole top-level type.
func matchesMIMEType(supportedTypes []string, mimeType string) bool {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	if idx := strings.Index(mimeType, ";"); idx != -1 {
		mimeType = strings.TrimSpace(mimeType[:idx])
	}
	if mimeType == "" {
		return false
	}

	for _, supported := range supportedTypes {
		supported = strings.ToLower(strings.TrimSpace(supported))
		if supported == mimeType {
			return true
		}
		if strings.HasSuffix(supported, "/*") && strings.HasPrefix(mimeType, supported[:len(supported)-1]) {
			return true
		}
	}
	return false
}

// DefaultRegistry knows plain text, markdown, HTML and PDF.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(&PlaintextExtractor{})
	r.Register(&MarkdownExtractor{})
	r.Register(&HTMLExtractor{})
	r.Register(&PDFExtractor{})
	return r
}
