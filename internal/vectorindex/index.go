// Package vectorindex holds the per-project similarity index: an append-only
// list of (vector, chunk text, metadata) entries searched by cosine similarity.
package vectorindex

import (
	"fmt"
	"math"
	"sort"

	"docqa/internal/domain"
)

// Index is a brute-force cosine index. Entries are kept in insertion order,
// which is used only to break score ties.
type Index struct {
	dimension int
	entries   []domain.Entry
	norms     []float64
}

// New returns an empty index. A dimension of 0 is fixed by the first entry added.
func New(dimension int) *Index {
	return &Index{dimension: dimension}
}

// Build creates an index fragment from freshly embedded chunks of one file.
func Build(chunks []domain.Chunk, vectors [][]float32, fileID int64) (*Index, error) {
	if len(chunks) != len(vectors) {
		return nil, fmt.Errorf("build index: %d chunks but %d vectors", len(chunks), len(vectors))
	}

	ix := New(0)
	for i, chunk := range chunks {
		entry := domain.Entry{
			FileID:        fileID,
			ChunkIndex:    chunk.ChunkIndex,
			EstimatedPage: chunk.EstimatedPage,
			WordCount:     chunk.WordCount,
			Text:          chunk.Text,
			Vector:        vectors[i],
		}
		if err := ix.add(entry); err != nil {
			return nil, fmt.Errorf("build index: chunk %d: %w", chunk.ChunkIndex, err)
		}
	}
	return ix, nil
}

// Merge appends the fragment's entries after the existing ones. Neither input is
// modified; existing entries are carried over as-is, never re-embedded.
// A nil existing index yields the fragment.
func Merge(existing, fragment *Index) (*Index, error) {
	if existing == nil {
		return fragment, nil
	}
	if fragment == nil {
		return existing, nil
	}
	if existing.dimension != 0 && fragment.dimension != 0 && existing.dimension != fragment.dimension {
		return nil, fmt.Errorf("merge index: %w: %d vs %d", domain.ErrDimensionMismatch, existing.dimension, fragment.dimension)
	}

	dimension := existing.dimension
	if dimension == 0 {
		dimension = fragment.dimension
	}

	total := len(existing.entries) + len(fragment.entries)
	merged := &Index{
		dimension: dimension,
		entries:   make([]domain.Entry, 0, total),
		norms:     make([]float64, 0, total),
	}
	merged.entries = append(merged.entries, existing.entries...)
	merged.entries = append(merged.entries, fragment.entries...)
	merged.norms = append(merged.norms, existing.norms...)
	merged.norms = append(merged.norms, fragment.norms...)
	return merged, nil
}

// Search returns up to k entries by descending cosine similarity. Equal scores
// keep insertion order. An empty index yields an empty result.
func (ix *Index) Search(query []float32, k int) ([]domain.ScoredEntry, error) {
	if ix == nil || len(ix.entries) == 0 || k <= 0 {
		return nil, nil
	}
	if len(query) != ix.dimension {
		return nil, fmt.Errorf("search: %w: query %d, index %d", domain.ErrDimensionMismatch, len(query), ix.dimension)
	}

	qn := norm(query)
	scored := make([]domain.ScoredEntry, len(ix.entries))
	for i, entry := range ix.entries {
		scored[i] = domain.ScoredEntry{
			Entry: entry,
			Score: cosine(query, entry.Vector, qn, ix.norms[i]),
		}
	}

	sort.SliceStable(scored, func(a, b int) bool {
		return scored[a].Score > scored[b].Score
	})

	if k > len(scored) {
		k = len(scored)
	}
	return scored[:k], nil
}

func (ix *Index) Len() int {
	if ix == nil {
		return 0
	}
	return len(ix.entries)
}

func (ix *Index) Dimension() int {
	return ix.dimension
}

// Entries returns a copy of the entries in insertion order.
func (ix *Index) Entries() []domain.Entry {
	out := make([]domain.Entry, len(ix.entries))
	copy(out, ix.entries)
	return out
}

// Stats summarizes the distinct files and chunk count held by the index.
func (ix *Index) Stats() domain.ProjectStats {
	stats := domain.ProjectStats{FileIDs: []int64{}}
	if ix == nil {
		return stats
	}

	seen := make(map[int64]struct{})
	for _, entry := range ix.entries {
		if _, ok := seen[entry.FileID]; !ok {
			seen[entry.FileID] = struct{}{}
			stats.FileIDs = append(stats.FileIDs, entry.FileID)
		}
	}
	sort.Slice(stats.FileIDs, func(i, j int) bool { return stats.FileIDs[i] < stats.FileIDs[j] })

	stats.TotalDocuments = len(seen)
	stats.TotalChunks = len(ix.entries)
	return stats
}

func (ix *Index) add(entry domain.Entry) error {
	if len(entry.Vector) == 0 {
		return fmt.Errorf("empty vector")
	}
	if ix.dimension == 0 {
		ix.dimension = len(entry.Vector)
	}
	if len(entry.Vector) != ix.dimension {
		return fmt.Errorf("%w: expected %d, got %d", domain.ErrDimensionMismatch, ix.dimension, len(entry.Vector))
	}
	ix.entries = append(ix.entries, entry)
	ix.norms = append(ix.norms, norm(entry.Vector))
	return nil
}

func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

// cosine returns 0 when either vector has zero magnitude.
func cosine(a, b []float32, na, nb float64) float64 {
	if na == 0 || nb == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot / (na * nb)
}
