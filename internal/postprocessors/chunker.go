package postprocessors

import (
	"strings"
	"unicode/utf8"

	"github.com/custodia-labs/verag/internal/core/ports/driven"
)

// DefaultMaxLength is the chunk budget in characters.
const DefaultMaxLength = 1000

// LengthFunc measures a candidate chunk. Chunk budgets are expressed in its unit.
type LengthFunc func(s string) int

// CharLength counts runes.
func CharLength(s string) int {
	return utf8.RuneCountInString(s)
}

// ChunkConfig configures the chunker behavior.
type ChunkConfig struct {
	// MaxLength is the largest chunk the chunker will build from several
	// segments. A single longer segment is still emitted whole.
	MaxLength int

	// Length measures text; nil means CharLength.
	Length LengthFunc
}

// DefaultChunkConfig returns the character-based default.
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{
		MaxLength: DefaultMaxLength,
		Length:    CharLength,
	}
}

// Chunker packs line-delimited segments into bounded chunks.
// Output is a pure function of the input and config.
type Chunker struct {
	maxLength int
	length    LengthFunc
}

// Verify interface compliance
var _ driven.PostProcessor = (*Chunker)(nil)

// NewChunker creates a new chunker with the given config.
func NewChunker(config ChunkConfig) *Chunker {
	if config.MaxLength <= 0 {
		config.MaxLength = DefaultMaxLength
	}
	if config.Length == nil {
		config.Length = CharLength
	}
	return &Chunker{maxLength: config.MaxLength, length: config.Length}
}

// Split chunks text. Segments are the trimmed non-empty lines of text;
// they are joined with a single space while the result fits MaxLength.
// Empty or whitespace-only input yields an empty slice.
func (c *Chunker) Split(text string) []string {
	chunks := []string{}
	var buf strings.Builder

	for _, line := range strings.Split(text, "\n") {
		seg := strings.TrimSpace(line)
		if seg == "" {
			continue
		}
		if buf.Len() == 0 {
			buf.WriteString(seg)
			continue
		}
		if c.length(buf.String()+" "+seg) <= c.maxLength {
			buf.WriteByte(' ')
			buf.WriteString(seg)
			continue
		}
		chunks = append(chunks, buf.String())
		buf.Reset()
		buf.WriteString(seg)
	}
	if buf.Len() > 0 {
		chunks = append(chunks, buf.String())
	}
	return chunks
}

// Process splits every incoming chunk, numbering positions across all of them.
func (c *Chunker) Process(chunks []driven.Chunk) []driven.Chunk {
	var result []driven.Chunk
	for _, chunk := range chunks {
		for _, s := range c.Split(chunk.Content) {
			result = append(result, driven.Chunk{Content: s, Position: len(result)})
		}
	}
	return result
}

// Name returns the processor name.
func (c *Chunker) Name() string {
	return "chunker"
}

// Order returns 0 - the chunker runs after all cleaners.
func (c *Chunker) Order() int {
	return 0
}

// MaxLength returns the configured budget.
func (c *Chunker) MaxLength() int {
	return c.maxLength
}
