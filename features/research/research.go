package research

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"marketlens/internal/apperr"
	"marketlens/internal/research"
	"marketlens/internal/retry"
)

const (
	MinEditedLength = 10
	MinScore        = 1
	MaxScore        = 5
)

// Draft is a persisted pipeline result awaiting human review.
type Draft struct {
	ID            string                     `json:"id"`
	Query         string                     `json:"query"`
	Industry      *string                    `json:"industry,omitempty"`
	Competitors   []string                   `json:"competitors"`
	DraftMarkdown string                     `json:"draft_markdown"`
	WebResults    []research.WebSearchResult `json:"web_results"`
	DocChunks     []research.DocumentChunk   `json:"doc_chunks"`
	Citations     []string                   `json:"citations"`
	CreatedAt     time.Time                  `json:"created_at"`
}

// Feedback is the reviewer's verdict on a draft.
type Feedback struct {
	DraftID         string  `json:"draft_id"`
	EditedMarkdown  string  `json:"edited_markdown"`
	UsefulnessScore int     `json:"usefulness_score"`
	Comments        *string `json:"comments,omitempty"`

	FinalMarkdown string `json:"-"`
}

func (f *Feedback) Validate() error {
	if _, err := uuid.Parse(f.DraftID); err != nil {
		return apperr.Validation("research.Feedback", "draft_id must be a UUID")
	}
	if len([]rune(f.EditedMarkdown)) < MinEditedLength {
		return apperr.Validation("research.Feedback", fmt.Sprintf("edited_markdown must be at least %d characters", MinEditedLength))
	}
	if f.UsefulnessScore < MinScore || f.UsefulnessScore > MaxScore {
		return apperr.Validation("research.Feedback", "usefulness_score must be between 1 and 5")
	}
	return nil
}

func (f *Feedback) comments() string {
	if f.Comments == nil {
		return ""
	}
	return strings.TrimSpace(*f.Comments)
}

type FinalReport struct {
	ID            string   `json:"id"`
	Query         string   `json:"query"`
	FinalMarkdown string   `json:"final_markdown"`
	Citations     []string `json:"citations"`
}

type Repository interface {
	SaveDraft(ctx context.Context, d *Draft) error
	GetDraft(ctx context.Context, id string) (*Draft, error)
	SaveFeedback(ctx context.Context, f *Feedback) error
	CountDrafts(ctx context.Context) (int, error)
}

type Pipeline interface {
	Run(ctx context.Context, req research.Request) (*research.State, error)
}

// Reviser rewrites a draft with an LLM.
type Reviser interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

type Service struct {
	repo     Repository
	pipeline Pipeline
	reviser  Reviser
	policy   retry.Policy
}

func NewService(repo Repository, pipeline Pipeline) *Service {
	return &Service{repo: repo, pipeline: pipeline, policy: retry.DefaultPolicy()}
}

// WithReviser enables LLM revision of finalized reports that carry comments.
func (s *Service) WithReviser(r Reviser, policy retry.Policy) *Service {
	s.reviser = r
	s.policy = policy
	return s
}

// Draft runs the pipeline and stores the result.
func (s *Service) Draft(ctx context.Context, req research.Request) (*Draft, error) {
	state, err := s.pipeline.Run(ctx, req)
	if err != nil {
		return nil, err
	}

	d := &Draft{
		ID:          uuid.New().String(),
		Query:       state.Query,
		Industry:    state.Industry,
		Competitors: state.Competitors,
		WebResults:  state.WebResults,
		DocChunks:   state.DocChunks,
		Citations:   state.Citations,
		CreatedAt:   time.Now().UTC(),
	}
	if state.DraftMarkdown != nil {
		d.DraftMarkdown = *state.DraftMarkdown
	}

	if err := s.repo.SaveDraft(ctx, d); err != nil {
		return nil, apperr.Storage("research.Draft", err)
	}
	slog.InfoContext(ctx, "draft saved", "draft_id", d.ID, "citations", len(d.Citations))
	return d, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Draft, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, apperr.NotFound("research.Get", "draft not found")
	}
	d, err := s.repo.GetDraft(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("research.Get", "draft not found")
		}
		return nil, apperr.Storage("research.Get", err)
	}
	return d, nil
}

// Finalize records feedback on a stored draft and returns the final report
// with the draft's citations reattached.
func (s *Service) Finalize(ctx context.Context, f Feedback) (*FinalReport, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}

	d, err := s.Get(ctx, f.DraftID)
	if err != nil {
		return nil, err
	}

	f.FinalMarkdown = f.EditedMarkdown
	if s.reviser != nil && f.comments() != "" {
		revised, err := retry.Do(ctx, s.policy, "research.Revise", func(ctx context.Context) (string, error) {
			return s.reviser.Complete(ctx, reviseSystemPrompt, revisePrompt(f))
		})
		if err != nil {
			return nil, err
		}
		f.FinalMarkdown = strings.TrimSpace(revised)
	}

	if err := s.repo.SaveFeedback(ctx, &f); err != nil {
		return nil, apperr.Storage("research.Finalize", err)
	}
	slog.InfoContext(ctx, "draft finalized", "draft_id", d.ID, "score", f.UsefulnessScore, "revised", f.FinalMarkdown != f.EditedMarkdown)

	citations := d.Citations
	if citations == nil {
		citations = []string{}
	}
	return &FinalReport{
		ID:            d.ID,
		Query:         d.Query,
		FinalMarkdown: f.FinalMarkdown,
		Citations:     citations,
	}, nil
}

func (s *Service) Count(ctx context.Context) (int, error) {
	return s.repo.CountDrafts(ctx)
}
