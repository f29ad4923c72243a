package postprocessors

import (
	"cmp"
	"slices"
	"sync"

	"github.com/custodia-labs/verag/internal/core/ports/driven"
)

var _ driven.PostProcessorPipeline = (*Pipeline)(nil)

// Pipeline turns extracted document text into ordered chunks. Stages run by
// ascending Order, so the cleaner (negative order) sees the whole text
// before the chunker splits it.
type Pipeline struct {
	mu     sync.RWMutex
	stages []driven.PostProcessor
}

func NewPipeline() *Pipeline {
	return &Pipeline{}
}

// Add inserts a stage after every stage of equal or lower order.
func (p *Pipeline) Add(stage driven.PostProcessor) {
	p.mu.Lock()
	defer p.mu.Unlock()

	i, _ := slices.BinarySearchFunc(p.stages, stage.Order()+1, func(s driven.PostProcessor, order int) int {
		return cmp.Compare(s.Order(), order)
	})
	p.stages = slices.Insert(p.stages, i, stage)
}

// Process runs every stage over text. Output positions are 0..n-1 in
// order no matter how stages split, merge or drop chunks.
func (p *Pipeline) Process(text string) []driven.Chunk {
	p.mu.RLock()
	stages := slices.Clone(p.stages)
	p.mu.RUnlock()

	chunks := []driven.Chunk{{Content: text}}
	for _, stage := range stages {
		chunks = stage.Process(chunks)
	}

	out := make([]driven.Chunk, len(chunks))
	for i, c := range chunks {
		out[i] = driven.Chunk{Content: c.Content, Position: i}
	}
	return out
}

// List names the stages in run order.
func (p *Pipeline) List() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	names := make([]string, len(p.stages))
	for i, s := range p.stages {
		names[i] = s.Name()
	}
	return names
}

// DefaultPipeline is the ingest pipeline: whitespace cleanup then chunking.
func DefaultPipeline(config ChunkConfig) *Pipeline {
	p := NewPipeline()
	p.Add(NewTextCleaner())
	p.Add(NewChunker(config))
	return p
}
