package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	core "marketlens/internal/research"
)

var (
	researchIndustry    string
	researchCompetitors []string
	researchWebResults  int
	researchDocChunks   int
	researchJSON        bool
)

var researchCmd = &cobra.Command{
	Use:   "research [query]",
	Short: "Draft a market research report",
	Long: `Runs web search, internal document retrieval and report synthesis
for the query, stores the draft and prints its markdown.`,
	Args: cobra.ExactArgs(1),
	RunE: runResearch,
}

func init() {
	researchCmd.Flags().StringVar(&researchIndustry, "industry", "", "industry context")
	researchCmd.Flags().StringSliceVarP(&researchCompetitors, "competitor", "c", nil, "competitor name (repeatable)")
	researchCmd.Flags().IntVar(&researchWebResults, "web-results", 0, "maximum web results (1-20)")
	researchCmd.Flags().IntVar(&researchDocChunks, "doc-chunks", 0, "maximum document chunks (1-50)")
	researchCmd.Flags().BoolVar(&researchJSON, "json", false, "print the full draft as JSON")
	rootCmd.AddCommand(researchCmd)
}

func runResearch(cmd *cobra.Command, args []string) error {
	if researchService == nil {
		return errors.New("research service not configured")
	}

	req := core.Request{
		Query:         args[0],
		Competitors:   researchCompetitors,
		MaxWebResults: researchWebResults,
		MaxDocChunks:  researchDocChunks,
	}
	if researchIndustry != "" {
		industry := researchIndustry
		req.Industry = &industry
	}

	draft, err := researchService.Draft(cmd.Context(), req)
	if err != nil {
		return fmt.Errorf("research failed: %w", err)
	}

	if researchJSON {
		data, err := json.MarshalIndent(draft, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal draft: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	cmd.Println(draft.DraftMarkdown)
	cmd.Printf("\nDraft ID: %s (%d citations)\n", draft.ID, len(draft.Citations))
	return nil
}
