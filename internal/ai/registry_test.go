package ai

import (
	"context"
	"testing"
)

type fakeBackend struct {
	model string
}

func (f *fakeBackend) Chat(_ context.Context, _ []Message) (string, error) {
	return "answer from " + f.model, nil
}

func (f *fakeBackend) Embed(_ context.Context, inputs []string) ([][]float32, error) {
	out := make([][]float32, len(inputs))
	for i := range inputs {
		out[i] = []float32{1}
	}
	return out, nil
}

func TestRegistry_GetNormalizesName(t *testing.T) {
	reg := NewRegistry()
	reg.Register("Ollama", func(_ context.Context, model string) (Backend, error) {
		return &fakeBackend{model: model}, nil
	})

	b, err := reg.Get(context.Background(), "  ollama ", "llama3")
	if err != nil {
		t.Fatalf("get: %v", err)
	}

	answer, err := b.Chat(context.Background(), nil)
	if err != nil || answer != "answer from llama3" {
		t.Fatalf("unexpected chat result %q err=%v", answer, err)
	}
	vecs, err := b.Embed(context.Background(), []string{"x"})
	if err != nil || len(vecs) != 1 {
		t.Fatalf("unexpected embed result %v err=%v", vecs, err)
	}
}

func TestRegistry_UnknownBackend(t *testing.T) {
	reg := NewRegistry()
	if _, err := reg.Get(context.Background(), "claude", ""); err == nil {
		t.Fatalf("expected an error for an unregistered backend")
	}
}

func TestRegistry_ModelOverridePassedThrough(t *testing.T) {
	var got string
	reg := NewRegistry()
	reg.Register("ollama", func(_ context.Context, model string) (Backend, error) {
		got = model
		return &fakeBackend{model: model}, nil
	})

	if _, err := reg.Get(context.Background(), "ollama", "mistral"); err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != "mistral" {
		t.Fatalf("expected model override to reach the factory, got %q", got)
	}
}
