package index

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/docuchat/docuchat/internal/common"
	"github.com/docuchat/docuchat/internal/project"
)

// Loader builds a project's index when no artifact exists yet.
type Loader interface {
	Build(ctx context.Context, projectID string) (*Index, error)
}

// Cache keeps at most capacity indices resident, loading artifacts lazily
// and evicting the least recently accessed entry. Eviction only drops the
// in-memory handle; the on-disk artifact stays.
type Cache struct {
	capacity int
	dir      string
	projects ProjectStore
	builder  Loader // optional; nil means never-built projects are unavailable

	mu      sync.Mutex
	entries map[string]*cacheEntry
	group   singleflight.Group
}

type cacheEntry struct {
	idx        *Index
	lastAccess time.Time
	chunkCount int
	// Modtime of the artifact this entry was loaded from; zero when the
	// index came straight from a builder with no artifact on disk yet.
	artifactMod time.Time
}

func NewCache(capacity int, dir string, projects ProjectStore, builder Loader) *Cache {
	if capacity <= 0 {
		capacity = 8
	}
	return &Cache{
		capacity: capacity,
		dir:      dir,
		projects: projects,
		builder:  builder,
		entries:  make(map[string]*cacheEntry),
	}
}

// Acquire returns the project's index, loading or building it if needed.
// Concurrent calls for the same not-yet-resident project share one load.
// The load runs detached from the caller's context: a caller that gives up
// returns early, but the shared load finishes and serves the others.
func (c *Cache) Acquire(ctx context.Context, projectID string) (*Index, error) {
	if ix, ok := c.resident(projectID); ok {
		return ix, nil
	}

	ch := c.group.DoChan(projectID, func() (any, error) {
		return c.load(context.WithoutCancel(ctx), projectID)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Index), nil
	}
}

func (c *Cache) resident(projectID string) (*Index, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[projectID]
	if !ok {
		return nil, false
	}
	// A rebuild may have swapped the artifact from another process, where
	// no Invalidate call reaches us. Stat catches the swap.
	if !e.artifactMod.IsZero() {
		if fi, err := os.Stat(ArtifactPath(c.dir, projectID)); err == nil && !fi.ModTime().Equal(e.artifactMod) {
			delete(c.entries, projectID)
			return nil, false
		}
	}
	e.lastAccess = time.Now()
	return e.idx, true
}

func (c *Cache) load(ctx context.Context, projectID string) (*Index, error) {
	// A flight that just finished may have made the entry resident.
	if ix, ok := c.resident(projectID); ok {
		return ix, nil
	}

	p, err := c.projects.GetByID(ctx, projectID)
	if err != nil {
		return nil, err
	}

	ix, err := Load(ArtifactPath(c.dir, projectID))
	switch {
	case err == nil:
	case errors.Is(err, os.ErrNotExist):
		if p.BuildState == project.StateUnbuilt && c.builder != nil {
			ix, err = c.builder.Build(ctx, projectID)
			if err != nil {
				return nil, err
			}
		} else {
			return nil, fmt.Errorf("%w: project %s has no index artifact (state %s)",
				common.ErrIndexUnavailable, projectID, p.BuildState)
		}
	default:
		return nil, err
	}

	c.insert(projectID, ix)
	return ix, nil
}

func (c *Cache) insert(projectID string, ix *Index) {
	var mod time.Time
	if fi, err := os.Stat(ArtifactPath(c.dir, projectID)); err == nil {
		mod = fi.ModTime()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[projectID] = &cacheEntry{
		idx:         ix,
		lastAccess:  time.Now(),
		chunkCount:  ix.Len(),
		artifactMod: mod,
	}

	for len(c.entries) > c.capacity {
		oldestID := ""
		var oldest time.Time
		for id, e := range c.entries {
			if oldestID == "" || e.lastAccess.Before(oldest) {
				oldestID = id
				oldest = e.lastAccess
			}
		}
		delete(c.entries, oldestID)
		log.Printf("index cache evicted project=%s resident=%d", oldestID, len(c.entries))
	}
}

// Invalidate drops a resident entry after an artifact swap so the next
// Acquire reloads the fresh artifact.
func (c *Cache) Invalidate(projectID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, projectID)
}

// Len reports the resident entry count.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
