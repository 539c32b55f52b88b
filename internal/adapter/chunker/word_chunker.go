package chunker

import (
	"strings"

	"docqa/internal/domain"
)

// WordChunker splits text into overlapping windows of whitespace-delimited words.
type WordChunker struct {
	size    int
	overlap int
}

func NewWordChunker(size, overlap int) (*WordChunker, error) {
	if err := validate(size, overlap); err != nil {
		return nil, err
	}
	return &WordChunker{size: size, overlap: overlap}, nil
}

// Chunk splits text with the chunker's settings. A WordChunker not built by
// NewWordChunker fails with a ConfigurationError.
func (c *WordChunker) Chunk(text string) ([]domain.Chunk, error) {
	return Split(text, c.size, c.overlap)
}

// Split slides a window of size words over text, advancing by size-overlap.
// The page estimate is start/size + 1. The last window is the first one that
// reaches the end of the text, so it may be shorter than size.
func Split(text string, size, overlap int) ([]domain.Chunk, error) {
	if err := validate(size, overlap); err != nil {
		return nil, err
	}

	words := strings.Fields(text)
	if len(words) == 0 {
		return nil, nil
	}

	step := size - overlap
	var chunks []domain.Chunk
	for start := 0; start < len(words); start += step {
		end := start + size
		if end > len(words) {
			end = len(words)
		}

		chunks = append(chunks, domain.Chunk{
			Text:          strings.Join(words[start:end], " "),
			ChunkIndex:    len(chunks),
			EstimatedPage: start/size + 1,
			WordCount:     end - start,
		})

		if end == len(words) {
			break
		}
	}
	return chunks, nil
}

// WordCount returns the number of whitespace-delimited words in text.
func WordCount(text string) int {
	return len(strings.Fields(text))
}

func validate(size, overlap int) error {
	if size <= 0 {
		return &domain.ConfigurationError{Field: "chunking.size_words", Reason: "must be positive"}
	}
	if overlap < 0 {
		return &domain.ConfigurationError{Field: "chunking.overlap_words", Reason: "must not be negative"}
	}
	if overlap >= size {
		return &domain.ConfigurationError{Field: "chunking.overlap_words", Reason: "must be smaller than size_words"}
	}
	return nil
}
