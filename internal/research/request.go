package research

import (
	"strings"

	"marketlens/internal/apperr"
)

const (
	MinQueryLength = 5
	MaxWebResults  = 20
	MaxDocChunks   = 50
)

// Request is a validated research ask. Zero caps mean "use the configured default".
type Request struct {
	Query         string   `json:"query"`
	Industry      *string  `json:"industry,omitempty"`
	Competitors   []string `json:"competitors,omitempty"`
	MaxWebResults int      `json:"max_web_results,omitempty"`
	MaxDocChunks  int      `json:"max_doc_chunks,omitempty"`
}

func (r *Request) Validate() error {
	r.Query = strings.TrimSpace(r.Query)
	if len([]rune(r.Query)) < MinQueryLength {
		return apperr.Validation("research.Request", "query must be at least 5 characters")
	}
	if r.MaxWebResults < 0 || r.MaxWebResults > MaxWebResults {
		return apperr.Validation("research.Request", "max_web_results must be between 1 and 20")
	}
	if r.MaxDocChunks < 0 || r.MaxDocChunks > MaxDocChunks {
		return apperr.Validation("research.Request", "max_doc_chunks must be between 1 and 50")
	}
	if r.Industry != nil && strings.TrimSpace(*r.Industry) == "" {
		r.Industry = nil
	}

	competitors := make([]string, 0, len(r.Competitors))
	for _, c := range r.Competitors {
		if c = strings.TrimSpace(c); c != "" {
			competitors = append(competitors, c)
		}
	}
	r.Competitors = competitors
	return nil
}

// ParseCompetitors splits a comma separated list, dropping blanks.
func ParseCompetitors(csv string) []string {
	var out []string
	for _, c := range strings.Split(csv, ",") {
		if c = strings.TrimSpace(c); c != "" {
			out = append(out, c)
		}
	}
	return out
}
