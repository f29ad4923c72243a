package driven

// Chunk is a span of document text. Position is its 0-based ordinal in the
// document once the pipeline has finished.
type Chunk struct {
	Content  string
	Position int
}

// PostProcessor is one stage between extraction and embedding. The first
// stage gets the whole text as a single chunk.
type PostProcessor interface {
	Process(chunks []Chunk) []Chunk
	Name() string
	// Order sorts stages ascending. The chunker sits at 0 and cleaners
	// run before it with negative values.
	Order() int
}

// PostProcessorPipeline turns extracted text into the ordered chunks that
// get embedded. The same text always yields the same chunks, positions
// numbered from 0 without gaps.
type PostProcessorPipeline interface {
	Process(content string) []Chunk
	Add(processor PostProcessor)
	List() []string
}
