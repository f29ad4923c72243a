package services

import (
	"fmt"
	"strings"

	"github.com/custodia-labs/verag/internal/core/domain"
)

// NoSourcesMarker replaces the source list when retrieval found nothing.
const NoSourcesMarker = "[NO SOURCES FOUND]"

const answerInstruction = `You are a value-engineering analyst assistant.
Answer the question using only the numbered sources provided.
Refer to sources by their number, for example [1] or [2][3].
If the sources do not contain the answer, say explicitly that the project's documents do not cover it.
Do not invent figures, costs or requirements that are not in the sources.`

// BuildPrompt returns the system instruction and user prompt for a grounded
// answer. Sources are labelled 1..K in retrieval order with their document
// name and ordinal; those labels are the citation Source numbers.
func BuildPrompt(question, phase string, chunks []*domain.ScoredChunk) (system, prompt string) {
	var b strings.Builder

	if phase != "" {
		fmt.Fprintf(&b, "Project phase: %s\n", phase)
	}
	fmt.Fprintf(&b, "Question: %s\n\n", strings.TrimSpace(question))
	b.WriteString("Sources:\n")

	if len(chunks) == 0 {
		b.WriteString(NoSourcesMarker)
		b.WriteString("\nNo passage of this project's documents matched the question.\n")
		return answerInstruction, b.String()
	}

	for i, c := range chunks {
		fmt.Fprintf(&b, "\nSource %d (%s, chunk %d):\n%s\n", i+1, sourceName(c), c.Ordinal, c.Content)
	}
	return answerInstruction, b.String()
}

// queryText is the text embedded for retrieval. The phase label steers the
// embedding but is never stored.
func queryText(question, phase string) string {
	question = strings.TrimSpace(question)
	if phase == "" {
		return question
	}
	return phase + "\n" + question
}

func sourceName(c *domain.ScoredChunk) string {
	if c.DocumentName != "" {
		return c.DocumentName
	}
	return c.DocumentID
}
