package index

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/docuchat/docuchat/internal/common"
	"github.com/docuchat/docuchat/internal/project"
)

// countingLoader builds a tiny index per project and counts invocations.
type countingLoader struct {
	builds atomic.Int64
	delay  time.Duration
}

func (l *countingLoader) Build(_ context.Context, projectID string) (*Index, error) {
	l.builds.Add(1)
	if l.delay > 0 {
		time.Sleep(l.delay)
	}
	ix, err := New(2)
	if err != nil {
		return nil, err
	}
	if err := ix.Add(Chunk{ID: projectID + "-c1", ProjectID: projectID}, []float32{1, 0}); err != nil {
		return nil, err
	}
	return ix, nil
}

func unbuiltProjects(ids ...string) *stubProjects {
	ps := make([]*project.Project, 0, len(ids))
	for _, id := range ids {
		ps = append(ps, &project.Project{ID: id, BuildState: project.StateUnbuilt})
	}
	return newStubProjects(ps...)
}

func TestCache_ConcurrentAcquireSharesOneBuild(t *testing.T) {
	loader := &countingLoader{delay: 30 * time.Millisecond}
	c := NewCache(4, t.TempDir(), unbuiltProjects("p1"), loader)

	const n = 10
	results := make([]*Index, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = c.Acquire(context.Background(), "p1")
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
	}
	require.Equal(t, int64(1), loader.builds.Load())
	for i := 1; i < n; i++ {
		require.Same(t, results[0], results[i])
	}
	require.Equal(t, 1, c.Len())
}

func TestCache_CancelledCallerDoesNotAbortSharedLoad(t *testing.T) {
	loader := &countingLoader{delay: 50 * time.Millisecond}
	c := NewCache(4, t.TempDir(), unbuiltProjects("p1"), loader)

	ctxA, cancel := context.WithCancel(context.Background())
	var (
		wg         sync.WaitGroup
		errA, errB error
		ixB        *Index
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, errA = c.Acquire(ctxA, "p1")
	}()
	go func() {
		defer wg.Done()
		ixB, errB = c.Acquire(context.Background(), "p1")
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()
	wg.Wait()

	require.ErrorIs(t, errA, context.Canceled)
	require.NoError(t, errB)
	require.NotNil(t, ixB)
	require.Equal(t, int64(1), loader.builds.Load())

	// the build ran to completion and the index is resident
	ix, err := c.Acquire(context.Background(), "p1")
	require.NoError(t, err)
	require.Same(t, ixB, ix)
}

func TestCache_ReloadsWhenArtifactSwapped(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Save(ArtifactPath(dir, "p1"), testIndex(t)))

	projects := newStubProjects(&project.Project{ID: "p1", BuildState: project.StateReady})
	c := NewCache(2, dir, projects, nil)

	first, err := c.Acquire(context.Background(), "p1")
	require.NoError(t, err)
	require.Equal(t, 3, first.Len())

	// another process rebuilds and swaps the artifact
	time.Sleep(5 * time.Millisecond)
	replacement, err := New(2)
	require.NoError(t, err)
	require.NoError(t, replacement.Add(Chunk{ID: "new"}, []float32{1, 0}))
	require.NoError(t, Save(ArtifactPath(dir, "p1"), replacement))

	second, err := c.Acquire(context.Background(), "p1")
	require.NoError(t, err)
	require.Equal(t, 1, second.Len())
	require.Equal(t, "new", second.Chunks[0].ID)
}

func TestCache_EvictsLeastRecentlyAccessed(t *testing.T) {
	loader := &countingLoader{}
	c := NewCache(2, t.TempDir(), unbuiltProjects("p1", "p2", "p3"), loader)

	ctx := context.Background()
	_, err := c.Acquire(ctx, "p1")
	require.NoError(t, err)
	_, err = c.Acquire(ctx, "p2")
	require.NoError(t, err)
	require.Equal(t, int64(2), loader.builds.Load())

	// touch p1 so p2 becomes the LRU entry
	time.Sleep(2 * time.Millisecond)
	_, err = c.Acquire(ctx, "p1")
	require.NoError(t, err)
	require.Equal(t, int64(2), loader.builds.Load())

	time.Sleep(2 * time.Millisecond)
	_, err = c.Acquire(ctx, "p3")
	require.NoError(t, err)
	require.Equal(t, 2, c.Len())

	// p1 stayed resident, p2 was evicted and reloads on demand
	_, err = c.Acquire(ctx, "p1")
	require.NoError(t, err)
	require.Equal(t, int64(3), loader.builds.Load())

	_, err = c.Acquire(ctx, "p2")
	require.NoError(t, err)
	require.Equal(t, int64(4), loader.builds.Load())
}

func TestCache_LoadsPersistedArtifact(t *testing.T) {
	dir := t.TempDir()

	ix := testIndex(t)
	require.NoError(t, Save(ArtifactPath(dir, "p1"), ix))

	projects := newStubProjects(&project.Project{ID: "p1", BuildState: project.StateReady})
	c := NewCache(2, dir, projects, nil)

	loaded, err := c.Acquire(context.Background(), "p1")
	require.NoError(t, err)
	require.Equal(t, ix.Len(), loaded.Len())
	require.Equal(t, 1, c.Len())
}

func TestCache_UnbuiltWithoutBuilderUnavailable(t *testing.T) {
	c := NewCache(2, t.TempDir(), unbuiltProjects("p1"), nil)
	_, err := c.Acquire(context.Background(), "p1")
	require.True(t, errors.Is(err, common.ErrIndexUnavailable), "got %v", err)
}

func TestCache_BuildingProjectUnavailable(t *testing.T) {
	projects := newStubProjects(&project.Project{ID: "p1", BuildState: project.StateBuilding})
	c := NewCache(2, t.TempDir(), projects, &countingLoader{})

	_, err := c.Acquire(context.Background(), "p1")
	require.True(t, errors.Is(err, common.ErrIndexUnavailable), "got %v", err)
}

func TestCache_UnknownProject(t *testing.T) {
	c := NewCache(2, t.TempDir(), unbuiltProjects(), &countingLoader{})
	_, err := c.Acquire(context.Background(), "ghost")
	require.True(t, errors.Is(err, common.ErrNotFound))
}

func TestCache_InvalidateDropsOnlyMemory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Save(ArtifactPath(dir, "p1"), testIndex(t)))

	projects := newStubProjects(&project.Project{ID: "p1", BuildState: project.StateReady})
	c := NewCache(2, dir, projects, nil)

	_, err := c.Acquire(context.Background(), "p1")
	require.NoError(t, err)
	require.Equal(t, 1, c.Len())

	c.Invalidate("p1")
	require.Equal(t, 0, c.Len())

	// artifact untouched; reload succeeds
	_, err = c.Acquire(context.Background(), "p1")
	require.NoError(t, err)
}
