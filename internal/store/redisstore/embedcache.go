package redisstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/docuchat/docuchat/internal/ai"
)

// Store caches query embeddings so repeated questions don't re-hit the
// embedding provider.
type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

func New(addr, password string, db int, ttl time.Duration) *Store {
	return &Store{
		rdb: redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db}),
		ttl: ttl,
	}
}

func embedKey(model, text string) string {
	h := sha256.Sum256([]byte(model + "\x00" + text))
	return "embed:" + hex.EncodeToString(h[:])
}

func (s *Store) GetEmbedding(ctx context.Context, model, text string) ([]float32, bool) {
	raw, err := s.rdb.Get(ctx, embedKey(model, text)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Printf("embed cache get failed err=%v", err)
		}
		return nil, false
	}
	var vec []float32
	if err := json.Unmarshal(raw, &vec); err != nil {
		return nil, false
	}
	return vec, true
}

func (s *Store) SetEmbedding(ctx context.Context, model, text string, vec []float32) {
	raw, err := json.Marshal(vec)
	if err != nil {
		return
	}
	if err := s.rdb.Set(ctx, embedKey(model, text), raw, s.ttl).Err(); err != nil {
		log.Printf("embed cache set failed err=%v", err)
	}
}

// CachedEmbedder wraps an Embedder with the redis cache. A nil store is a
// pass-through, so wiring stays unconditional.
type CachedEmbedder struct {
	Inner ai.Embedder
	Model string
	Store *Store
}

func (c *CachedEmbedder) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	if c.Store == nil {
		return c.Inner.Embed(ctx, inputs)
	}

	out := make([][]float32, len(inputs))
	var missIdx []int
	var miss []string
	for i, text := range inputs {
		if vec, ok := c.Store.GetEmbedding(ctx, c.Model, text); ok {
			out[i] = vec
			continue
		}
		missIdx = append(missIdx, i)
		miss = append(miss, text)
	}
	if len(miss) == 0 {
		return out, nil
	}

	vecs, err := c.Inner.Embed(ctx, miss)
	if err != nil {
		return nil, err
	}
	for j, i := range missIdx {
		out[i] = vecs[j]
		c.Store.SetEmbedding(ctx, c.Model, inputs[i], vecs[j])
	}
	return out, nil
}
