// Package index holds the in-memory vector index used for semantic
// retrieval. Entries carry enough metadata (document, filename, page,
// text) to assemble citations without a second lookup. Durability comes
// from the chunk table: the index is reloaded from it at startup and
// appended to after each successful ingestion.
package index

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
)

var (
	// ErrDuplicateChunk is returned when an entry with an already
	// indexed chunk identifier is added. Additions never overwrite.
	ErrDuplicateChunk = errors.New("duplicate chunk id")

	// ErrDimensionMismatch is returned when a vector's length differs
	// from the index dimension. Mixing embedding models without
	// re-indexing is a consistency violation, not a soft degradation.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// Entry pairs a chunk's embedding with its citation metadata.
type Entry struct {
	ChunkID    string
	DocumentID string
	Filename   string
	PageNumber int
	Text       string
	Vector     []float32
}

// Result is one search hit. Score is cosine similarity in [-1, 1].
type Result struct {
	Entry Entry
	Score float64
}

// Index is an exact-scan cosine similarity index. Writes are serialized;
// searches run concurrently and never observe a partially added batch.
type Index struct {
	mu        sync.RWMutex
	dimension int
	entries   []Entry
	seen      map[string]struct{}
}

func New(dimension int) (*Index, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("index dimension must be positive, got %d", dimension)
	}
	return &Index{
		dimension: dimension,
		seen:      make(map[string]struct{}),
	}, nil
}

func (ix *Index) Dimension() int {
	return ix.dimension
}

// Len returns the number of indexed entries.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.entries)
}

// Add appends entries to the index. The batch is validated up front and
// applied atomically: a duplicate chunk id or a wrong-dimension vector
// rejects the whole batch and leaves the index unchanged.
func (ix *Index) Add(entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	batch := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		if len(e.Vector) != ix.dimension {
			return fmt.Errorf("%w: chunk %s has %d, index wants %d",
				ErrDimensionMismatch, e.ChunkID, len(e.Vector), ix.dimension)
		}
		if _, ok := ix.seen[e.ChunkID]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicateChunk, e.ChunkID)
		}
		if _, ok := batch[e.ChunkID]; ok {
			return fmt.Errorf("%w: %s repeated within batch", ErrDuplicateChunk, e.ChunkID)
		}
		batch[e.ChunkID] = struct{}{}
	}

	ix.entries = append(ix.entries, entries...)
	for id := range batch {
		ix.seen[id] = struct{}{}
	}
	return nil
}

// Search returns the k entries most similar to query, ordered by
// descending cosine similarity. Ties keep insertion order so retrieval is
// deterministic for identical inputs. If fewer than k entries exist, all
// of them are returned.
func (ix *Index) Search(query []float32, k int) ([]Result, error) {
	if len(query) != ix.dimension {
		return nil, fmt.Errorf("%w: query has %d, index wants %d",
			ErrDimensionMismatch, len(query), ix.dimension)
	}
	if k <= 0 {
		return nil, nil
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	results := make([]Result, len(ix.entries))
	for i, e := range ix.entries {
		results[i] = Result{Entry: e, Score: cosineSimilarity(query, e.Vector)}
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if k > len(results) {
		k = len(results)
	}
	return results[:k], nil
}

// Remove drops every entry belonging to documentID and returns how many
// were removed. Safe to call concurrently with Add for other documents.
func (ix *Index) Remove(documentID string) int {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	kept := ix.entries[:0]
	removed := 0
	for _, e := range ix.entries {
		if e.DocumentID == documentID {
			delete(ix.seen, e.ChunkID)
			removed++
			continue
		}
		kept = append(kept, e)
	}
	ix.entries = kept
	return removed
}

// Clear drops all entries.
func (ix *Index) Clear() {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.entries = nil
	ix.seen = make(map[string]struct{})
}

// cosineSimilarity accumulates in float64 for stable ranking. A zero
// vector scores 0 against anything.
func cosineSimilarity(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
