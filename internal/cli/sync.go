package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"marketlens/internal/indexer"
)

var syncForce bool

var syncCmd = &cobra.Command{
	Use:   "sync [folder]",
	Short: "Index documents from a folder",
	Long: `Extracts every document in the folder and writes its pages to the
vector store. Documents already indexed are skipped unless --force is set.
Without a folder argument the configured document folder is used.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSync,
}

func init() {
	syncCmd.Flags().BoolVarP(&syncForce, "force", "f", false, "re-index documents that are already indexed")
	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	if indexService == nil {
		return errors.New("index service not configured")
	}

	folder := defaultFolder
	if len(args) > 0 {
		folder = args[0]
	}
	if folder == "" {
		return errors.New("no folder given and no default configured")
	}

	cmd.Printf("Indexing %s...\n", folder)

	var (
		summary indexer.Summary
		err     error
	)
	if syncForce {
		summary, err = indexService.Reindex(cmd.Context(), folder)
	} else {
		summary, err = indexService.Sync(cmd.Context(), folder)
	}
	if err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}

	cmd.Printf("Indexed %d documents (%d chunks), skipped %d.\n", summary.Documents, summary.Chunks, summary.Skipped)
	return nil
}
