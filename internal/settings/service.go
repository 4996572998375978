package settings

import (
	"context"
	"fmt"
	"strings"

	"marketlens/internal/apperr"
	"marketlens/internal/research"
)

// Settings are the runtime-editable knobs. Zero caps and empty keys fall
// back to the values the process was started with.
type Settings struct {
	ID            int    `json:"-"`
	MaxWebResults int    `json:"max_web_results"`
	MaxDocChunks  int    `json:"max_doc_chunks"`
	GeminiAPIKey  string `json:"gemini_api_key"`
	TavilyAPIKey  string `json:"tavily_api_key"`
}

type Repository interface {
	Get(ctx context.Context) (*Settings, error)
	Update(ctx context.Context, s *Settings) error
}

type Service struct {
	repo     Repository
	defaults Settings
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// WithDefaults sets the values used when a stored field is unset.
func (s *Service) WithDefaults(d Settings) *Service {
	s.defaults = d
	return s
}

// Get returns the effective settings: stored values over the defaults.
func (s *Service) Get(ctx context.Context) (*Settings, error) {
	set, err := s.repo.Get(ctx)
	if err != nil {
		return nil, apperr.Storage("settings.Get", err)
	}
	return s.effective(set), nil
}

func (s *Service) effective(set *Settings) *Settings {
	out := *set
	if out.MaxWebResults == 0 {
		out.MaxWebResults = s.defaults.MaxWebResults
	}
	if out.MaxDocChunks == 0 {
		out.MaxDocChunks = s.defaults.MaxDocChunks
	}
	if out.GeminiAPIKey == "" {
		out.GeminiAPIKey = s.defaults.GeminiAPIKey
	}
	if out.TavilyAPIKey == "" {
		out.TavilyAPIKey = s.defaults.TavilyAPIKey
	}
	return &out
}

// Patch is a partial update. Nil fields keep the stored value; zero caps
// and empty keys reset the field to its default.
type Patch struct {
	MaxWebResults *int    `json:"max_web_results"`
	MaxDocChunks  *int    `json:"max_doc_chunks"`
	GeminiAPIKey  *string `json:"gemini_api_key"`
	TavilyAPIKey  *string `json:"tavily_api_key"`
}

// Apply merges p into the stored settings and returns the effective result.
func (s *Service) Apply(ctx context.Context, p Patch) (*Settings, error) {
	stored, err := s.repo.Get(ctx)
	if err != nil {
		return nil, apperr.Storage("settings.Apply", err)
	}

	next := *stored
	if p.MaxWebResults != nil {
		next.MaxWebResults = *p.MaxWebResults
	}
	if p.MaxDocChunks != nil {
		next.MaxDocChunks = *p.MaxDocChunks
	}
	if p.GeminiAPIKey != nil {
		next.GeminiAPIKey = strings.TrimSpace(*p.GeminiAPIKey)
	}
	if p.TavilyAPIKey != nil {
		next.TavilyAPIKey = strings.TrimSpace(*p.TavilyAPIKey)
	}

	if err := s.Update(ctx, &next); err != nil {
		return nil, err
	}
	return s.effective(&next), nil
}

func (s *Service) Update(ctx context.Context, set *Settings) error {
	if set.MaxWebResults < 0 || set.MaxWebResults > research.MaxWebResults {
		return apperr.Validation("settings.Update", fmt.Sprintf("max_web_results must be between 1 and %d", research.MaxWebResults))
	}
	if set.MaxDocChunks < 0 || set.MaxDocChunks > research.MaxDocChunks {
		return apperr.Validation("settings.Update", fmt.Sprintf("max_doc_chunks must be between 1 and %d", research.MaxDocChunks))
	}
	if err := s.repo.Update(ctx, set); err != nil {
		return apperr.Storage("settings.Update", err)
	}
	return nil
}
