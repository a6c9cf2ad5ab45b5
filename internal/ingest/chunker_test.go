package ingest

import (
	"strings"
	"testing"
)

func TestChunkText_SplitsWithOverlap(t *testing.T) {
	text := strings.Repeat("abcdefghij", 30) // 300 runes

	chunks := ChunkText(text, 100, 20)
	if len(chunks) != 4 {
		t.Fatalf("expected 4 chunks, got %d", len(chunks))
	}
	for i, c := range chunks[:len(chunks)-1] {
		if len([]rune(c)) != 100 {
			t.Fatalf("chunk %d: expected 100 runes, got %d", i, len([]rune(c)))
		}
	}
	// overlap: the last 20 runes of chunk 0 open chunk 1
	if !strings.HasPrefix(chunks[1], chunks[0][80:]) {
		t.Fatalf("expected chunk 1 to start with the tail of chunk 0")
	}
}

func TestChunkText_ShortText(t *testing.T) {
	chunks := ChunkText("hello", 100, 20)
	if len(chunks) != 1 || chunks[0] != "hello" {
		t.Fatalf("unexpected chunks: %v", chunks)
	}
}

func TestChunkText_Empty(t *testing.T) {
	if got := ChunkText("   ", 100, 0); len(got) != 0 {
		t.Fatalf("expected no chunks for blank text, got %v", got)
	}
}

func TestChunkText_BadParamsFallBack(t *testing.T) {
	text := strings.Repeat("x", 50)
	if got := ChunkText(text, 0, -5); len(got) == 0 {
		t.Fatalf("expected defaults to apply, got no chunks")
	}
	// overlap >= chunkSize must not loop forever
	if got := ChunkText(text, 10, 10); len(got) != 5 {
		t.Fatalf("expected 5 chunks with neutralized overlap, got %d", len(got))
	}
}
