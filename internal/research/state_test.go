package research_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketlens/internal/apperr"
	"marketlens/internal/research"
)

func strPtr(s string) *string { return &s }

func TestState_ApplyPreservesEarlierFields(t *testing.T) {
	s := research.NewState(research.Request{
		Query:       "electric vehicle market in Germany",
		Industry:    strPtr("Automotive"),
		Competitors: []string{"Tesla", "VW"},
	})

	web := []research.WebSearchResult{{Title: "t1", URL: "u1", Snippet: "s1"}}
	s.Apply(research.Patch{WebResults: web})
	s.Apply(research.Patch{DocChunks: []research.DocumentChunk{{DocID: "d", Source: "a.pdf", Page: 0, Text: "x"}}})

	assert.Equal(t, web, s.WebResults)
	assert.Len(t, s.DocChunks, 1)
	assert.Nil(t, s.DraftMarkdown)

	s.Apply(research.Patch{DraftMarkdown: strPtr("# md"), Citations: []string{"u1", "a.pdf"}})
	require.NotNil(t, s.DraftMarkdown)
	assert.Equal(t, "# md", *s.DraftMarkdown)
	assert.Equal(t, web, s.WebResults)
	assert.Equal(t, []string{"Tesla", "VW"}, s.Competitors)
	assert.Equal(t, "Automotive", s.IndustryOr("Not specified"))
}

func TestNewState_CopiesCompetitors(t *testing.T) {
	req := research.Request{Query: "query here", Competitors: []string{"A"}}
	s := research.NewState(req)
	req.Competitors[0] = "B"
	assert.Equal(t, []string{"A"}, s.Competitors)
	assert.Empty(t, s.WebResults)
	assert.NotNil(t, s.WebResults)
	assert.Equal(t, "Not specified", s.IndustryOr("Not specified"))
}

func TestRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		req     research.Request
		wantErr bool
	}{
		{"ok", research.Request{Query: "  market size of EVs "}, false},
		{"short query", research.Request{Query: " abc "}, true},
		{"web cap too high", research.Request{Query: "valid query", MaxWebResults: 21}, true},
		{"doc cap negative", research.Request{Query: "valid query", MaxDocChunks: -1}, true},
		{"caps in range", research.Request{Query: "valid query", MaxWebResults: 20, MaxDocChunks: 50}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, apperr.ErrValidation)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestRequest_ValidateNormalizes(t *testing.T) {
	req := research.Request{Query: " valid query ", Industry: strPtr("  "), Competitors: []string{" Tesla", "", "VW "}}
	require.NoError(t, req.Validate())
	assert.Equal(t, "valid query", req.Query)
	assert.Nil(t, req.Industry)
	assert.Equal(t, []string{"Tesla", "VW"}, req.Competitors)
}

func TestParseCompetitors(t *testing.T) {
	assert.Equal(t, []string{"Tesla", "VW"}, research.ParseCompetitors("Tesla, ,VW"))
	assert.Nil(t, research.ParseCompetitors(""))
}
