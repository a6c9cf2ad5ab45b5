package ai

import "context"

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Provider generates a single completion for a conversation.
type Provider interface {
	Chat(ctx context.Context, messages []Message) (string, error)
}

// Embedder turns texts into fixed-dimensional vectors. The dimensionality is
// defined by the backing model; all vectors of one call share it.
type Embedder interface {
	Embed(ctx context.Context, inputs []string) ([][]float32, error)
}

// Backend serves both completions and embeddings from one client; Ollama
// and OpenAI each do.
type Backend interface {
	Provider
	Embedder
}
