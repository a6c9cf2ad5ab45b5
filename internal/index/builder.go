package index

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"
	"sync"

	"github.com/docuchat/docuchat/internal/ai"
	"github.com/docuchat/docuchat/internal/common"
	"github.com/docuchat/docuchat/internal/ingest"
	"github.com/docuchat/docuchat/internal/project"
)

const embedBatchSize = 16

// ProjectStore is the slice of the project repo the builder needs.
type ProjectStore interface {
	GetByID(ctx context.Context, id string) (*project.Project, error)
	UpdateBuildState(ctx context.Context, id, state string) error
}

// Builder turns a project's source URLs into a persisted vector index.
// At most one build runs per project at a time; a rebuild leaves the old
// artifact servable until the new one swaps in.
type Builder struct {
	fetcher  ingest.Fetcher
	embedder ai.Embedder
	projects ProjectStore
	dir      string

	chunkSize    int
	chunkOverlap int

	// Called with the project id after an artifact swap, so a resident
	// cache entry can be dropped.
	onSwap func(projectID string)

	// building serializes builds per project within this process only. A
	// worker job and an API lazy build can still overlap across processes;
	// deterministic chunk ids and the atomic artifact swap keep that safe.
	mu       sync.Mutex
	building map[string]bool
}

func NewBuilder(fetcher ingest.Fetcher, embedder ai.Embedder, projects ProjectStore, dir string, chunkSize, chunkOverlap int) *Builder {
	return &Builder{
		fetcher:      fetcher,
		embedder:     embedder,
		projects:     projects,
		dir:          dir,
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
		building:     make(map[string]bool),
	}
}

func (b *Builder) OnSwap(fn func(projectID string)) { b.onSwap = fn }

func (b *Builder) Build(ctx context.Context, projectID string) (*Index, error) {
	b.mu.Lock()
	if b.building[projectID] {
		b.mu.Unlock()
		return nil, fmt.Errorf("index build already in flight for project %s", projectID)
	}
	b.building[projectID] = true
	b.mu.Unlock()
	defer func() {
		b.mu.Lock()
		delete(b.building, projectID)
		b.mu.Unlock()
	}()

	p, err := b.projects.GetByID(ctx, projectID)
	if err != nil {
		return nil, err
	}

	firstBuild := p.BuildState == project.StateUnbuilt
	if firstBuild {
		if err := b.projects.UpdateBuildState(ctx, projectID, project.StateBuilding); err != nil {
			return nil, err
		}
	}
	// On any failure, the project falls back to a state that matches what is
	// on disk: unbuilt when there is no artifact yet, ready when the old one
	// still serves.
	done := false
	defer func() {
		if done {
			return
		}
		fallback := project.StateReady
		if firstBuild {
			fallback = project.StateUnbuilt
		}
		if err := b.projects.UpdateBuildState(ctx, projectID, fallback); err != nil {
			log.Printf("builder project=%s restore state %s failed err=%v", projectID, fallback, err)
		}
	}()

	chunks := b.ingestAll(ctx, p)
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: project %s: %d urls yielded no chunks", common.ErrEmptyIngestion, projectID, len(p.URLs))
	}

	ix, err := b.embedAndIndex(ctx, chunks)
	if err != nil {
		return nil, err
	}

	if err := Save(ArtifactPath(b.dir, projectID), ix); err != nil {
		return nil, fmt.Errorf("%w: persist index artifact: %v", common.ErrPersistence, err)
	}
	if err := b.projects.UpdateBuildState(ctx, projectID, project.StateReady); err != nil {
		return nil, err
	}
	done = true

	if b.onSwap != nil {
		b.onSwap(projectID)
	}

	log.Printf("builder project=%s built chunks=%d dim=%d urls=%d", projectID, ix.Len(), ix.Dimension, len(p.URLs))
	return ix, nil
}

// ingestAll fetches and chunks every source URL. Unreachable URLs are
// tolerated; the index is built from whatever succeeded.
func (b *Builder) ingestAll(ctx context.Context, p *project.Project) []Chunk {
	var chunks []Chunk
	for _, url := range p.URLs {
		text, err := b.fetcher.Fetch(ctx, url)
		if err != nil {
			log.Printf("builder project=%s url=%s fetch failed err=%v", p.ID, url, err)
			continue
		}
		for i, part := range ingest.ChunkText(text, b.chunkSize, b.chunkOverlap) {
			chunks = append(chunks, Chunk{
				ID:        chunkID(p.ID, url, i, part),
				ProjectID: p.ID,
				SourceURL: url,
				Text:      part,
			})
		}
	}
	return chunks
}

func (b *Builder) embedAndIndex(ctx context.Context, chunks []Chunk) (*Index, error) {
	var ix *Index
	for start := 0; start < len(chunks); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Text
		}
		vecs, err := b.embedder.Embed(ctx, texts)
		if err != nil {
			return nil, err
		}
		if len(vecs) != len(batch) {
			return nil, fmt.Errorf("%w: got %d embeddings for %d chunks", common.ErrProvider, len(vecs), len(batch))
		}

		if ix == nil {
			ix, err = New(len(vecs[0]))
			if err != nil {
				return nil, err
			}
		}
		for i, c := range batch {
			if err := ix.Add(c, vecs[i]); err != nil {
				return nil, err
			}
		}
	}
	return ix, nil
}

// chunkID is deterministic so re-ingesting identical content yields the
// same chunk set.
func chunkID(projectID, url string, idx int, text string) string {
	h := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%d|%s", projectID, url, idx, text)))
	return hex.EncodeToString(h[:8])
}
