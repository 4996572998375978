// Package cli implements mlctl, the operator command line for the research backend.
package cli

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"marketlens/features/research"
	"marketlens/internal/indexer"
	core "marketlens/internal/research"
)

// Indexer runs folder indexing in-process.
type Indexer interface {
	Sync(ctx context.Context, folder string) (indexer.Summary, error)
	Reindex(ctx context.Context, folder string) (indexer.Summary, error)
}

type Researcher interface {
	Draft(ctx context.Context, req core.Request) (*research.Draft, error)
}

type Counter interface {
	Count(ctx context.Context) (int, error)
}

// Services holds the backends the commands call into.
type Services struct {
	Indexer       Indexer
	Researcher    Researcher
	Documents     Counter
	Chunks        Counter
	Drafts        Counter
	DefaultFolder string
}

// Package-level services, set by Configure and swapped in tests.
var (
	indexService    Indexer
	researchService Researcher
	documentCounter Counter
	chunkCounter    Counter
	draftCounter    Counter
	defaultFolder   string
)

var rootCmd = &cobra.Command{
	Use:   "mlctl",
	Short: "Operate the market research backend",
	Long: `mlctl indexes the internal document folder, runs research drafts
and reports the state of the document and chunk stores.`,
	SilenceUsage: true,
}

func Configure(s Services) {
	indexService = s.Indexer
	researchService = s.Researcher
	documentCounter = s.Documents
	chunkCounter = s.Chunks
	draftCounter = s.Drafts
	defaultFolder = s.DefaultFolder
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	rootCmd.SetOut(os.Stdout)
	return rootCmd.ExecuteContext(ctx)
}
