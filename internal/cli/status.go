package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show index and draft counts",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, _ []string) error {
	if documentCounter == nil || chunkCounter == nil {
		return errors.New("status service not configured")
	}

	ctx := cmd.Context()
	docs, err := documentCounter.Count(ctx)
	if err != nil {
		return fmt.Errorf("failed to count documents: %w", err)
	}
	chunks, err := chunkCounter.Count(ctx)
	if err != nil {
		return fmt.Errorf("failed to count chunks: %w", err)
	}

	cmd.Printf("Documents: %d\n", docs)
	cmd.Printf("Chunks:    %d\n", chunks)
	if draftCounter != nil {
		drafts, err := draftCounter.Count(ctx)
		if err != nil {
			return fmt.Errorf("failed to count drafts: %w", err)
		}
		cmd.Printf("Drafts:    %d\n", drafts)
	}
	if docs == 0 {
		cmd.Println("Index is empty. Run 'mlctl sync' to index documents.")
	}
	return nil
}
