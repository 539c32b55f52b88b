package chunker

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"docqa/internal/domain"
)

func words(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("w%d", i)
	}
	return strings.Join(parts, " ")
}

func TestWordChunkerBasic(t *testing.T) {
	c, err := NewWordChunker(1000, 200)
	if err != nil {
		t.Fatal(err)
	}

	chunks, err := c.Chunk(words(2600))
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}

	wantStart := []string{"w0", "w800", "w1600"}
	wantEnd := []string{"w999", "w1799", "w2599"}
	wantPage := []int{1, 1, 2}

	for i, chunk := range chunks {
		if chunk.ChunkIndex != i {
			t.Errorf("chunk %d: ChunkIndex = %d", i, chunk.ChunkIndex)
		}
		if chunk.WordCount != 1000 {
			t.Errorf("chunk %d: WordCount = %d, want 1000", i, chunk.WordCount)
		}
		if chunk.EstimatedPage != wantPage[i] {
			t.Errorf("chunk %d: EstimatedPage = %d, want %d", i, chunk.EstimatedPage, wantPage[i])
		}
		fields := strings.Fields(chunk.Text)
		if fields[0] != wantStart[i] || fields[len(fields)-1] != wantEnd[i] {
			t.Errorf("chunk %d spans %s..%s, want %s..%s", i, fields[0], fields[len(fields)-1], wantStart[i], wantEnd[i])
		}
	}
}

func TestWordChunkerOverlap(t *testing.T) {
	chunks, err := Split(words(25), 10, 3)
	if err != nil {
		t.Fatal(err)
	}

	for i := 1; i < len(chunks); i++ {
		prev := strings.Fields(chunks[i-1].Text)
		cur := strings.Fields(chunks[i].Text)
		tail := strings.Join(prev[len(prev)-3:], " ")
		head := strings.Join(cur[:3], " ")
		if tail != head {
			t.Errorf("chunks %d/%d overlap %q vs %q", i-1, i, tail, head)
		}
	}

	last := chunks[len(chunks)-1]
	if !strings.HasSuffix(last.Text, "w24") {
		t.Errorf("last chunk should end with the final word, got %q", last.Text)
	}
	if last.WordCount > 10 {
		t.Errorf("last chunk has %d words", last.WordCount)
	}
}

func TestWordChunkerDeterministic(t *testing.T) {
	text := "The quick brown fox\n\tjumps over   the lazy dog. " + words(300)
	first, err := Split(text, 40, 7)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 5; i++ {
		again, err := Split(text, 40, 7)
		if err != nil {
			t.Fatal(err)
		}
		if len(again) != len(first) {
			t.Fatalf("run %d: %d chunks, want %d", i, len(again), len(first))
		}
		for j := range first {
			if again[j] != first[j] {
				t.Fatalf("run %d: chunk %d differs", i, j)
			}
		}
	}
}

func TestWordChunkerEmptyText(t *testing.T) {
	chunks, err := Split("   \n\t ", 100, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) != 0 {
		t.Errorf("expected no chunks, got %d", len(chunks))
	}
}

func TestWordChunkerShortText(t *testing.T) {
	chunks, err := Split("one two three", 1000, 200)
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].Text != "one two three" || chunks[0].WordCount != 3 || chunks[0].EstimatedPage != 1 {
		t.Errorf("unexpected chunk: %+v", chunks[0])
	}
}

func TestWordChunkerInvalidConfig(t *testing.T) {
	tests := []struct {
		size, overlap int
	}{
		{100, 100},
		{100, 150},
		{0, 0},
		{-5, 0},
		{10, -1},
	}

	for _, tt := range tests {
		_, err := NewWordChunker(tt.size, tt.overlap)
		var cfgErr *domain.ConfigurationError
		if !errors.As(err, &cfgErr) {
			t.Errorf("NewWordChunker(%d, %d): expected ConfigurationError, got %v", tt.size, tt.overlap, err)
		}

		_, err = Split("a b c", tt.size, tt.overlap)
		if !errors.As(err, &cfgErr) {
			t.Errorf("Split(%d, %d): expected ConfigurationError, got %v", tt.size, tt.overlap, err)
		}
	}
}

func TestWordCount(t *testing.T) {
	if n := WordCount("  alpha beta\n gamma "); n != 3 {
		t.Errorf("WordCount = %d, want 3", n)
	}
}

func TestZeroValueWordChunkerFails(t *testing.T) {
	var c WordChunker
	chunks, err := c.Chunk(words(10))
	if chunks != nil {
		t.Errorf("expected no chunks, got %d", len(chunks))
	}
	var cfgErr *domain.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
}
