package index

import (
	"encoding/gob"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
)

// Chunk is one ingested text fragment. Chunks are immutable; a rebuild
// replaces the whole set.
type Chunk struct {
	ID        string
	ProjectID string
	SourceURL string
	Text      string
}

// Index is a flat in-memory vector index. Vectors are L2-normalized at
// insert so cosine similarity reduces to a dot product. Once built it is
// read-only and safe for concurrent search.
type Index struct {
	Dimension int
	Chunks    []Chunk
	Vectors   [][]float32
}

func New(dimension int) (*Index, error) {
	if dimension <= 0 {
		return nil, errors.New("index: invalid dimension")
	}
	return &Index{Dimension: dimension}, nil
}

func (ix *Index) Len() int { return len(ix.Chunks) }

func (ix *Index) Add(c Chunk, vec []float32) error {
	if len(vec) != ix.Dimension {
		return fmt.Errorf("index: vector dimension %d, want %d", len(vec), ix.Dimension)
	}
	ix.Chunks = append(ix.Chunks, c)
	ix.Vectors = append(ix.Vectors, normalize(vec))
	return nil
}

// Scored is one retrieval hit.
type Scored struct {
	Chunk Chunk
	Score float64
}

// Search returns the top k chunks by cosine similarity, scores
// non-increasing, ties kept in insertion order. An empty index yields an
// empty result.
func (ix *Index) Search(query []float32, k int) ([]Scored, error) {
	if len(ix.Chunks) == 0 {
		return []Scored{}, nil
	}
	if len(query) != ix.Dimension {
		return nil, fmt.Errorf("index: query dimension %d, want %d", len(query), ix.Dimension)
	}
	if k <= 0 {
		return []Scored{}, nil
	}

	q := normalize(query)
	hits := make([]Scored, len(ix.Chunks))
	for i, v := range ix.Vectors {
		hits[i] = Scored{Chunk: ix.Chunks[i], Score: dot(v, q)}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })

	if k > len(hits) {
		k = len(hits)
	}
	return hits[:k], nil
}

func dot(a, b []float32) float64 {
	sum := 0.0
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

func normalize(v []float32) []float32 {
	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		return append([]float32(nil), v...)
	}
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

// ArtifactPath is the on-disk location of a project's persisted index.
func ArtifactPath(dir, projectID string) string {
	return filepath.Join(dir, projectID+".idx")
}

// Save persists the index as a gob artifact, written to a temp file and
// renamed so readers never see a half-written artifact.
func Save(path string, ix *Index) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".idx-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if err := gob.NewEncoder(tmp).Encode(ix); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("index: encode artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

// Load reads a persisted artifact. os.ErrNotExist is returned unwrapped so
// callers can distinguish "never built" from a corrupt artifact.
func Load(path string) (*Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var ix Index
	if err := gob.NewDecoder(f).Decode(&ix); err != nil {
		return nil, fmt.Errorf("index: decode artifact %s: %w", path, err)
	}
	return &ix, nil
}
