package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"docqa/internal/domain"
)

var (
	askQuestion string
	askJSON     bool
)

var askCmd = &cobra.Command{
	Use:   "ask",
	Short: "Ask a question about a project's papers",
	Long: `Embed the question, retrieve the most similar chunks from the project's
index and generate an answer that cites them.

Examples:
  docqa ask -p 1 -q "What datasets were used?"
  docqa ask -p 1 -q "주요 결과는?" --json`,
	RunE: runAsk,
}

var summarizeCmd = &cobra.Command{
	Use:   "summarize",
	Short: "Summarize all papers of a project",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCanned(cmd, func(a *app, ctx context.Context, project int64) (domain.Answer, error) {
			return a.service.Summarize(ctx, project)
		})
	},
}

var compareCmd = &cobra.Command{
	Use:   "compare",
	Short: "Compare and contrast the papers of a project",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCanned(cmd, func(a *app, ctx context.Context, project int64) (domain.Answer, error) {
			return a.service.Compare(ctx, project)
		})
	},
}

func init() {
	rootCmd.AddCommand(askCmd, summarizeCmd, compareCmd)
	askCmd.Flags().StringVarP(&askQuestion, "question", "q", "", "question to ask (required)")
	askCmd.MarkFlagRequired("question")
	for _, c := range []*cobra.Command{askCmd, summarizeCmd, compareCmd} {
		c.Flags().BoolVar(&askJSON, "json", false, "output as JSON")
	}
}

func runAsk(cmd *cobra.Command, args []string) error {
	return runCanned(cmd, func(a *app, ctx context.Context, project int64) (domain.Answer, error) {
		return a.service.AnswerQuestion(ctx, askQuestion, project)
	})
}

func runCanned(cmd *cobra.Command, fn func(a *app, ctx context.Context, project int64) (domain.Answer, error)) error {
	project, err := requireProject()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	a, err := newApp(ctx, appOptions{embed: true, generate: true})
	if err != nil {
		return err
	}
	defer a.Close()

	ans, err := fn(a, ctx, project)
	if err != nil {
		return err
	}

	if askJSON {
		output, _ := json.MarshalIndent(ans, "", "  ")
		fmt.Println(string(output))
		return nil
	}
	printAnswer(ans)
	return nil
}

func printAnswer(ans domain.Answer) {
	fmt.Println(ans.Answer)
	if len(ans.Sources) == 0 {
		return
	}

	fmt.Printf("\nSources:\n")
	for i, s := range ans.Sources {
		fmt.Printf("--- [%d] file %d, page %d, chunk %d (score: %.2f) ---\n", i+1, s.FileID, s.Page, s.ChunkIndex, s.Score)
		// Truncate long text for display
		text := strings.TrimSpace(s.Content)
		if len(text) > 300 {
			text = truncateUTF8(text, 300) + "..."
		}
		fmt.Println(text)
	}
}

func truncateUTF8(s string, n int) string {
	if n >= len(s) {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
