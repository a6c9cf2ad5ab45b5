package query

import (
	"context"

	"github.com/docuchat/docuchat/internal/ai"
	"github.com/docuchat/docuchat/internal/index"
)

// Retriever embeds a question and ranks a project's chunks against it.
type Retriever struct {
	cache    *index.Cache
	embedder ai.Embedder
	topK     int
}

func NewRetriever(cache *index.Cache, embedder ai.Embedder, topK int) *Retriever {
	if topK <= 0 {
		topK = 3
	}
	return &Retriever{cache: cache, embedder: embedder, topK: topK}
}

func (r *Retriever) Retrieve(ctx context.Context, projectID, question string) ([]index.Scored, error) {
	ix, err := r.cache.Acquire(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if ix.Len() == 0 {
		return []index.Scored{}, nil
	}

	vecs, err := r.embedder.Embed(ctx, []string{question})
	if err != nil {
		return nil, err
	}
	return ix.Search(vecs[0], r.topK)
}
