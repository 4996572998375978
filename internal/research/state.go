// Package research holds the records threaded through a research run.
package research

// State accumulates the output of each pipeline stage. Query, Industry and
// Competitors are set by NewState and never touched afterwards.
type State struct {
	Query       string   `json:"query"`
	Industry    *string  `json:"industry,omitempty"`
	Competitors []string `json:"competitors"`

	WebResults    []WebSearchResult `json:"web_results"`
	DocChunks     []DocumentChunk   `json:"doc_chunks"`
	DraftMarkdown *string           `json:"draft_markdown,omitempty"`
	Citations     []string          `json:"citations"`
}

func NewState(req Request) *State {
	competitors := make([]string, len(req.Competitors))
	copy(competitors, req.Competitors)
	return &State{
		Query:       req.Query,
		Industry:    req.Industry,
		Competitors: competitors,
		WebResults:  []WebSearchResult{},
		DocChunks:   []DocumentChunk{},
		Citations:   []string{},
	}
}

// Patch is the partial output of one stage. Nil fields are left untouched.
type Patch struct {
	WebResults    []WebSearchResult
	DocChunks     []DocumentChunk
	DraftMarkdown *string
	Citations     []string
}

// Apply merges p field by field. A non-nil empty slice still overwrites.
func (s *State) Apply(p Patch) {
	if p.WebResults != nil {
		s.WebResults = p.WebResults
	}
	if p.DocChunks != nil {
		s.DocChunks = p.DocChunks
	}
	if p.DraftMarkdown != nil {
		md := *p.DraftMarkdown
		s.DraftMarkdown = &md
	}
	if p.Citations != nil {
		s.Citations = p.Citations
	}
}

// IndustryOr returns the industry or fallback when unset.
func (s *State) IndustryOr(fallback string) string {
	if s.Industry == nil || *s.Industry == "" {
		return fallback
	}
	return *s.Industry
}
