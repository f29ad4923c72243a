package domain

import (
	"fmt"
	"time"
)

// AnswerState is the per-request progress of a question through the answerer.
// It is never persisted.
type AnswerState string

const (
	AnswerStateReceived       AnswerState = "RECEIVED"
	AnswerStateEmbeddingQuery AnswerState = "EMBEDDING_QUERY"
	AnswerStateRetrieving     AnswerState = "RETRIEVING"
	AnswerStatePrompting      AnswerState = "PROMPTING"
	AnswerStateCompleted      AnswerState = "COMPLETED"
	AnswerStateFailed         AnswerState = "FAILED"
)

var answerTransitions = map[AnswerState]AnswerState{
	AnswerStateReceived:       AnswerStateEmbeddingQuery,
	AnswerStateEmbeddingQuery: AnswerStateRetrieving,
	AnswerStateRetrieving:     AnswerStatePrompting,
	AnswerStatePrompting:      AnswerStateCompleted,
}

// IsTerminal reports whether no further transition is possible.
func (s AnswerState) IsTerminal() bool {
	return s == AnswerStateCompleted || s == AnswerStateFailed
}

// CanTransition reports whether next is a legal successor of s.
// FAILED is reachable from every non-terminal state.
func (s AnswerState) CanTransition(next AnswerState) bool {
	if s.IsTerminal() {
		return false
	}
	if next == AnswerStateFailed {
		return true
	}
	return answerTransitions[s] == next
}

// AnswerProgress tracks one request through the state machine.
type AnswerProgress struct {
	state   AnswerState
	history []AnswerState
}

// NewAnswerProgress starts in RECEIVED.
func NewAnswerProgress() *AnswerProgress {
	return &AnswerProgress{
		state:   AnswerStateReceived,
		history: []AnswerState{AnswerStateReceived},
	}
}

// Advance moves to next or returns an error for an illegal transition.
func (p *AnswerProgress) Advance(next AnswerState) error {
	if !p.state.CanTransition(next) {
		return fmt.Errorf("illegal answer transition %s -> %s", p.state, next)
	}
	p.state = next
	p.history = append(p.history, next)
	return nil
}

// Fail moves to FAILED unless already terminal.
func (p *AnswerProgress) Fail() {
	if !p.state.IsTerminal() {
		p.state = AnswerStateFailed
		p.history = append(p.history, AnswerStateFailed)
	}
}

// State returns the current state.
func (p *AnswerProgress) State() AnswerState {
	return p.state
}

// History returns every state visited, in order.
func (p *AnswerProgress) History() []AnswerState {
	out := make([]AnswerState, len(p.history))
	copy(out, p.history)
	return out
}

// AskRequest is a question scoped to one project.
type AskRequest struct {
	ProjectID string `json:"project_id"`
	Question  string `json:"question"`
	TopK      int    `json:"top_k,omitempty"`
	Phase     string `json:"phase,omitempty"`

	// CallerID is the authenticated user, empty when ownership is not enforced.
	CallerID string `json:"-"`
}

// Citation points from an answer back to a retrieved chunk.
// Source matches the 1-based label used in the prompt.
type Citation struct {
	Source       int     `json:"source"`
	DocumentID   string  `json:"document_id"`
	DocumentName string  `json:"document_name"`
	Ordinal      int     `json:"ordinal"`
	Score        float64 `json:"score"`
}

// Answer is the result of a completed question.
type Answer struct {
	ProjectID string        `json:"project_id"`
	Answer    string        `json:"answer"`
	Citations []Citation    `json:"citations"`
	State     AnswerState   `json:"state"`
	Model     string        `json:"model,omitempty"`
	Took      time.Duration `json:"took"`
}

// CitationsFrom derives citations structurally from retrieval results,
// preserving retrieval order.
func CitationsFrom(chunks []*ScoredChunk) []Citation {
	citations := make([]Citation, 0, len(chunks))
	for i, c := range chunks {
		citations = append(citations, Citation{
			Source:       i + 1,
			DocumentID:   c.DocumentID,
			DocumentName: c.DocumentName,
			Ordinal:      c.Ordinal,
			Score:        c.Score,
		})
	}
	return citations
}
