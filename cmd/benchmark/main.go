package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"docqa/config"
	"docqa/internal/adapter/embedding"
	"docqa/internal/adapter/store"
	"docqa/internal/port"
	"docqa/internal/vectorindex"
)

func main() {
	dir := flag.String("dir", ".", "Data directory holding docqa.yaml and .docqa/")
	project := flag.Int64("p", 1, "Project id")
	query := flag.String("q", "", "Query to test")
	topK := flag.Int("k", 5, "Number of results")
	flag.Parse()

	if *query == "" {
		fmt.Println("Usage: go run ./cmd/benchmark -dir ./papers -p 1 -q \"query\"")
		fmt.Println("\nReports:")
		fmt.Println("  1. Index size and embedding model")
		fmt.Println("  2. Query embedding and search latency")
		fmt.Println("  3. Similarity of the top matches")
		os.Exit(1)
	}

	if err := config.LoadEnv(*dir); err != nil {
		fmt.Fprintf(os.Stderr, "Error loading .env: %v\n", err)
		os.Exit(1)
	}
	cfg, err := config.LoadFromDir(*dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	st, err := store.Open(cfg.Store.Backend, cfg.StorePath(*dir))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening index: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	ctx := context.Background()
	ix, err := st.Load(ctx, *project)
	if err != nil {
		fmt.Fprintf(os.Stderr, "No index for project %d: %v\n", *project, err)
		os.Exit(1)
	}

	embedder, err := setupEmbedding(ctx, cfg, ix.Dimension())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Embedder not available: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("RETRIEVAL BENCHMARK")
	fmt.Println(strings.Repeat("=", 70))

	stats := ix.Stats()
	fmt.Printf("Project %d: %d documents, %d chunks\n", *project, stats.TotalDocuments, stats.TotalChunks)
	fmt.Printf("Model: %s (%s)\n", cfg.Embedding.Model, cfg.Embedding.Provider)
	fmt.Printf("Dimension: %d\n", ix.Dimension())
	fmt.Println()

	fmt.Printf("Query: \"%s\"\n", *query)
	fmt.Println(strings.Repeat("-", 70))

	start := time.Now()
	queryVec, err := embedder.Embed(ctx, []string{*query})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Embedding error: %v\n", err)
		os.Exit(1)
	}
	embedTime := time.Since(start)

	start = time.Now()
	results, err := ix.Search(queryVec[0], *topK)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Search error: %v\n", err)
		os.Exit(1)
	}
	searchTime := time.Since(start)

	if len(results) == 0 {
		fmt.Println("No matches.")
		return
	}
	fmt.Printf("Top %d matches:\n\n", len(results))

	totalScore := 0.0
	for i, r := range results {
		preview := r.Entry.Text
		if len(preview) > 150 {
			preview = preview[:150] + "..."
		}
		preview = strings.ReplaceAll(preview, "\n", " ")

		similarity := r.Score
		totalScore += similarity

		rating := "LOW"
		if similarity > 0.7 {
			rating = "HIGH"
		} else if similarity > 0.5 {
			rating = "GOOD"
		} else if similarity > 0.3 {
			rating = "OK"
		}

		fmt.Printf("%d. [%s %.3f] file %d, page %d, chunk %d\n", i+1, rating, similarity, r.Entry.FileID, r.Entry.EstimatedPage, r.Entry.ChunkIndex)
		fmt.Printf("   %s\n\n", preview)
	}

	avgScore := totalScore / float64(len(results))
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("QUALITY METRICS:\n")
	fmt.Printf("  Average similarity: %.3f\n", avgScore)
	fmt.Printf("  Top-1 similarity:   %.3f\n", results[0].Score)
	fmt.Printf("  Embed latency:      %s\n", embedTime)
	fmt.Printf("  Search latency:     %s (%d entries)\n", searchTime, ix.Len())
	fmt.Printf("  Index size:         %s\n", formatBytes(encodedSize(ix)))

	if avgScore > 0.5 {
		fmt.Println("  Status: GOOD - retrieval looks relevant")
	} else if avgScore > 0.3 {
		fmt.Println("  Status: OK - results are somewhat related")
	} else {
		fmt.Println("  Status: POOR - check the embedding model or re-index")
	}
}

func encodedSize(ix *vectorindex.Index) int {
	data, err := ix.MarshalBinary()
	if err != nil {
		return 0
	}
	return len(data)
}

func formatBytes(n int) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}

func setupEmbedding(ctx context.Context, cfg *config.Config, dimension int) (port.Embedder, error) {
	ec := cfg.Embedding
	oc := embedding.OpenAIConfig{
		APIKeyEnv: ec.APIKeyEnv,
		Model:     ec.Model,
		BaseURL:   ec.BaseURL,
		Dimension: ec.Dimension,
		Timeout:   ec.Timeout,
	}

	switch ec.Provider {
	case "upstage":
		return embedding.NewUpstageEmbedder(oc)
	case "openai":
		return embedding.NewOpenAIEmbedder(oc)
	case "compatible":
		return embedding.NewOpenAICompatibleEmbedder(oc)
	case "gemini":
		return embedding.NewGeminiEmbedder(ctx, embedding.GeminiConfig{
			APIKeyEnv: ec.APIKeyEnv,
			Model:     ec.Model,
			Dimension: ec.Dimension,
			Timeout:   ec.Timeout,
		})
	case "mock":
		// Match the stored index so a mock-built project can be searched.
		return embedding.NewMockEmbedder(dimension), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", ec.Provider)
	}
}
