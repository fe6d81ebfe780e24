package engine

import (
	"fmt"
	"strings"

	"github.com/concierge-ai/concierge/internal/index"
	"github.com/concierge-ai/concierge/internal/session"
)

// promptBuilder assembles the generation prompt from retrieved excerpts
// and prior conversation turns.
type promptBuilder struct {
	maxContextTokens int
}

func newPromptBuilder(maxContextTokens int) *promptBuilder {
	if maxContextTokens <= 0 {
		maxContextTokens = 2000
	}
	return &promptBuilder{maxContextTokens: maxContextTokens}
}

// buildContext creates a formatted context string from retrieval hits,
// truncated to roughly the configured token budget.
func (pb *promptBuilder) buildContext(hits []index.Scored) string {
	if len(hits) == 0 {
		return ""
	}

	var parts []string
	parts = append(parts, "## Relevant Excerpts:")
	for i, hit := range hits {
		parts = append(parts, fmt.Sprintf("\n### Excerpt %d (from %s):", i+1, hit.Source))
		parts = append(parts, hit.Text)
		parts = append(parts, "")
	}

	context := strings.Join(parts, "\n")

	// rough token estimation: ~4 chars per token
	maxChars := pb.maxContextTokens * 4
	if len(context) > maxChars {
		context = context[:maxChars] + "\n\n[Context truncated...]"
	}
	return context
}

// buildPrompt creates the full prompt: instructions, excerpt context,
// conversation history, and the user's question.
func (pb *promptBuilder) buildPrompt(hits []index.Scored, history []session.Turn, question string) string {
	var parts []string

	parts = append(parts, "You are a helpful assistant answering questions about a specific website and its documents.")
	parts = append(parts, "Ground your answers in the excerpts provided below.")
	parts = append(parts, "If the excerpts don't contain the answer, say so rather than guessing.")
	parts = append(parts, "")

	if context := pb.buildContext(hits); context != "" {
		parts = append(parts, context)
		parts = append(parts, "")
	}

	if len(history) > 0 {
		parts = append(parts, "## Conversation So Far:")
		for _, turn := range history {
			parts = append(parts, fmt.Sprintf("User: %s", turn.Question))
			parts = append(parts, fmt.Sprintf("Assistant: %s", turn.Answer))
		}
		parts = append(parts, "")
	}

	parts = append(parts, "## User Question:")
	parts = append(parts, question)

	return strings.Join(parts, "\n")
}
