package pipeline

import (
	"context"

	"marketlens/internal/report"
	"marketlens/internal/research"
	"marketlens/internal/retry"
)

// Stage is one step of the research run. It reads the state and returns
// the fields it produced; it never mutates the state itself.
type Stage interface {
	Name() string
	Run(ctx context.Context, state *research.State) (research.Patch, error)
}

type WebSearcher interface {
	Search(ctx context.Context, query string, maxResults int) ([]research.WebSearchResult, error)
}

type Retriever interface {
	Retrieve(ctx context.Context, query string, limit int) ([]research.DocumentChunk, error)
}

type WebSearchStage struct {
	Searcher   WebSearcher
	MaxResults int
	Policy     retry.Policy
}

func (s *WebSearchStage) Name() string { return "WebSearch" }

func (s *WebSearchStage) Run(ctx context.Context, state *research.State) (research.Patch, error) {
	results, err := retry.Do(ctx, s.Policy, "pipeline.WebSearch", func(ctx context.Context) ([]research.WebSearchResult, error) {
		return s.Searcher.Search(ctx, state.Query, s.MaxResults)
	})
	if err != nil {
		return research.Patch{}, err
	}
	if results == nil {
		results = []research.WebSearchResult{}
	}
	return research.Patch{WebResults: results}, nil
}

type DocRetrievalStage struct {
	Retriever Retriever
	Limit     int
	Policy    retry.Policy
}

func (s *DocRetrievalStage) Name() string { return "DocRetrieval" }

func (s *DocRetrievalStage) Run(ctx context.Context, state *research.State) (research.Patch, error) {
	chunks, err := retry.Do(ctx, s.Policy, "pipeline.DocRetrieval", func(ctx context.Context) ([]research.DocumentChunk, error) {
		return s.Retriever.Retrieve(ctx, state.Query, s.Limit)
	})
	if err != nil {
		return research.Patch{}, err
	}
	if chunks == nil {
		chunks = []research.DocumentChunk{}
	}
	return research.Patch{DocChunks: chunks}, nil
}

type ReportStage struct{}

func (ReportStage) Name() string { return "ReportSynthesis" }

func (ReportStage) Run(ctx context.Context, state *research.State) (research.Patch, error) {
	md, citations := report.Synthesize(state)
	return research.Patch{DraftMarkdown: &md, Citations: citations}, nil
}
