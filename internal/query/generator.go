package query

import (
	"context"
	"fmt"
	"strings"

	"github.com/docuchat/docuchat/internal/ai"
	"github.com/docuchat/docuchat/internal/chat"
	"github.com/docuchat/docuchat/internal/index"
)

const systemPrompt = `You are a helpful assistant that answers questions about the project's documents.
Use the provided context to answer the user's question accurately and comprehensively.

Context:
%s

Instructions:
- Answer based primarily on the provided context
- If the context doesn't contain enough information, say so clearly
- Be specific and cite relevant details from the documents
- If you're unsure, acknowledge the uncertainty`

// NoGroundingAnswer is returned verbatim when retrieval found nothing to
// ground an answer in; it must never carry citations.
const NoGroundingAnswer = "I don't know. I couldn't find any relevant documents for this question in the project."

// Generator combines retrieved chunks, bounded chat history and the
// question into one provider call. It performs no retries; retry policy
// belongs to the orchestrator.
type Generator struct {
	provider ai.Provider
}

func NewGenerator(provider ai.Provider) *Generator {
	return &Generator{provider: provider}
}

func (g *Generator) Generate(ctx context.Context, question string, hits []index.Scored, history []chat.Message) (string, []string, error) {
	if len(hits) == 0 {
		return NoGroundingAnswer, []string{}, nil
	}

	msgs := make([]ai.Message, 0, len(history)+2)
	msgs = append(msgs, ai.Message{
		Role:    "system",
		Content: fmt.Sprintf(systemPrompt, formatContext(hits)),
	})
	for _, m := range history {
		msgs = append(msgs, ai.Message{Role: m.Role, Content: m.Content})
	}
	msgs = append(msgs, ai.Message{Role: chat.RoleUser, Content: question})

	answer, err := g.provider.Chat(ctx, msgs)
	if err != nil {
		return "", nil, err
	}
	return answer, SourceURLs(hits), nil
}

func formatContext(hits []index.Scored) string {
	parts := make([]string, 0, len(hits))
	for i, h := range hits {
		parts = append(parts, fmt.Sprintf("==DOCUMENT %d==\nSource: %s\nContent: %s", i+1, h.Chunk.SourceURL, h.Chunk.Text))
	}
	return strings.Join(parts, "\n\n")
}

// SourceURLs deduplicates hit URLs preserving first-occurrence (highest
// rank) order.
func SourceURLs(hits []index.Scored) []string {
	seen := make(map[string]struct{}, len(hits))
	out := make([]string, 0, len(hits))
	for _, h := range hits {
		if _, ok := seen[h.Chunk.SourceURL]; ok {
			continue
		}
		seen[h.Chunk.SourceURL] = struct{}{}
		out = append(out, h.Chunk.SourceURL)
	}
	return out
}
