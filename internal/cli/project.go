package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var statsJSON bool

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show document and chunk counts of a project",
	RunE:  runStats,
}

var deleteIndexCmd = &cobra.Command{
	Use:   "delete-index",
	Short: "Delete a project's vector index",
	RunE:  runDeleteIndex,
}

func init() {
	rootCmd.AddCommand(statsCmd, deleteIndexCmd)
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "output as JSON")
}

func runStats(cmd *cobra.Command, args []string) error {
	project, err := requireProject()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	a, err := newApp(ctx, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	stats, err := a.service.GetProjectStats(ctx, project)
	if err != nil {
		return err
	}

	if statsJSON {
		output, _ := json.MarshalIndent(stats, "", "  ")
		fmt.Println(string(output))
		return nil
	}
	fmt.Printf("Project %d:\n", project)
	fmt.Printf("  Documents: %d\n", stats.TotalDocuments)
	fmt.Printf("  Chunks:    %d\n", stats.TotalChunks)
	fmt.Printf("  File ids:  %v\n", stats.FileIDs)
	return nil
}

func runDeleteIndex(cmd *cobra.Command, args []string) error {
	project, err := requireProject()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	a, err := newApp(ctx, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.service.DeleteProjectIndex(ctx, project); err != nil {
		return err
	}
	fmt.Printf("Deleted index of project %d\n", project)
	return nil
}
