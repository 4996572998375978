// Package pipeline sequences the research stages over a shared state:
// web search, then document retrieval, then report synthesis.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"marketlens/internal/research"
	"marketlens/internal/retry"
	"marketlens/internal/settings"
)

// Caps bound how much evidence a run gathers.
type Caps struct {
	MaxWebResults int
	MaxDocChunks  int
}

// CapsSource supplies runtime overrides of the configured caps.
type CapsSource interface {
	Get(ctx context.Context) (*settings.Settings, error)
}

type Options struct {
	Defaults       Caps
	Policy         retry.Policy
	ParallelGather bool
}

type Orchestrator struct {
	searcher  WebSearcher
	retriever Retriever
	caps      CapsSource
	opts      Options
}

// New builds an orchestrator. caps may be nil.
func New(searcher WebSearcher, retriever Retriever, caps CapsSource, opts Options) *Orchestrator {
	return &Orchestrator{searcher: searcher, retriever: retriever, caps: caps, opts: opts}
}

// Run validates req and drives it through every stage. Any failure aborts
// the run and no state is returned.
func (o *Orchestrator) Run(ctx context.Context, req research.Request) (*research.State, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	caps := o.resolveCaps(ctx, req)
	state := research.NewState(req)
	start := time.Now()

	web := &WebSearchStage{Searcher: o.searcher, MaxResults: caps.MaxWebResults, Policy: o.opts.Policy}
	docs := &DocRetrievalStage{Retriever: o.retriever, Limit: caps.MaxDocChunks, Policy: o.opts.Policy}

	if o.opts.ParallelGather {
		if err := o.gather(ctx, state, web, docs); err != nil {
			return nil, err
		}
	} else {
		for _, st := range []Stage{web, docs} {
			if err := o.step(ctx, state, st); err != nil {
				return nil, err
			}
		}
	}

	if err := o.step(ctx, state, ReportStage{}); err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "research run completed",
		"web_results", len(state.WebResults),
		"doc_chunks", len(state.DocChunks),
		"duration", time.Since(start))
	return state, nil
}

func (o *Orchestrator) step(ctx context.Context, state *research.State, st Stage) error {
	patch, err := o.runStage(ctx, state, st)
	if err != nil {
		return err
	}
	state.Apply(patch)
	return nil
}

func (o *Orchestrator) runStage(ctx context.Context, state *research.State, st Stage) (research.Patch, error) {
	start := time.Now()
	patch, err := st.Run(ctx, state)
	if err != nil {
		slog.ErrorContext(ctx, "stage failed", "stage", st.Name(), "error", err)
		return research.Patch{}, fmt.Errorf("stage %s: %w", st.Name(), err)
	}
	slog.DebugContext(ctx, "stage completed", "stage", st.Name(), "duration", time.Since(start))
	return patch, nil
}

// gather runs the independent stages concurrently against a snapshot of
// the state and applies their patches in stage order once both finish.
func (o *Orchestrator) gather(ctx context.Context, state *research.State, stages ...Stage) error {
	patches := make([]research.Patch, len(stages))
	g, gctx := errgroup.WithContext(ctx)
	for i, st := range stages {
		snapshot := *state
		g.Go(func() error {
			p, err := o.runStage(gctx, &snapshot, st)
			if err != nil {
				return err
			}
			patches[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	for _, p := range patches {
		state.Apply(p)
	}
	return nil
}

func (o *Orchestrator) resolveCaps(ctx context.Context, req research.Request) Caps {
	caps := o.opts.Defaults
	if o.caps != nil {
		s, err := o.caps.Get(ctx)
		if err != nil {
			slog.WarnContext(ctx, "settings unavailable, using configured caps", "error", err)
		} else {
			if s.MaxWebResults > 0 {
				caps.MaxWebResults = s.MaxWebResults
			}
			if s.MaxDocChunks > 0 {
				caps.MaxDocChunks = s.MaxDocChunks
			}
		}
	}
	if req.MaxWebResults > 0 {
		caps.MaxWebResults = req.MaxWebResults
	}
	if req.MaxDocChunks > 0 {
		caps.MaxDocChunks = req.MaxDocChunks
	}
	return caps
}
