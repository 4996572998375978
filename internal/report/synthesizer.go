// Package report renders an accumulated research state into the draft
// Markdown report and its citation list.
package report

import (
	"fmt"
	"strings"

	"marketlens/internal/research"
	"marketlens/internal/text"
)

const (
	notSpecified  = "Not specified"
	noWebData     = "No web data."
	noDocData     = "No internal docs data."
	maxQuoteRunes = 500
)

// Synthesize is a pure function of the state's query, hints and gathered
// evidence. Citations are web URLs in result order followed by document
// sources in result order, duplicates kept.
func Synthesize(state *research.State) (string, []string) {
	industry := state.IndustryOr(notSpecified)
	competitors := strings.Join(state.Competitors, ", ")
	if competitors == "" {
		competitors = notSpecified
	}

	var b strings.Builder
	b.WriteString("# Market Research Report\n\n")
	b.WriteString("## Query\n")
	b.WriteString(state.Query + "\n\n")
	fmt.Fprintf(&b, "- Industry: %s\n", industry)
	fmt.Fprintf(&b, "- Competitors: %s\n\n", competitors)
	b.WriteString("---\n\n")

	b.WriteString("## 1. High-Level Market Overview\n\n")
	fmt.Fprintf(&b, "Summarize the overall market landscape for **%s**,\nincluding size, growth trends, and major dynamics.\n\n", industry)

	b.WriteString("## 2. Competitive Landscape\n\n")
	fmt.Fprintf(&b, "Describe the positioning and strategies of key competitors:\n%s.\n\n", competitors)

	b.WriteString("## 3. Web Research Findings\n\n")
	b.WriteString(webSection(state.WebResults) + "\n\n")

	b.WriteString("## 4. Internal Document Insights\n\n")
	b.WriteString(docSection(state.DocChunks) + "\n\n")

	b.WriteString("## 5. Synthesis & Recommendations\n\n")
	b.WriteString("Provide actionable recommendations based on the combined web\nand internal document insights.\n\n")
	b.WriteString("---")

	return b.String(), Citations(state.WebResults, state.DocChunks)
}

// Citations lists web URLs then document sources, both in input order.
func Citations(web []research.WebSearchResult, docs []research.DocumentChunk) []string {
	out := make([]string, 0, len(web)+len(docs))
	for _, r := range web {
		out = append(out, r.URL)
	}
	for _, c := range docs {
		out = append(out, c.Source)
	}
	return out
}

func webSection(results []research.WebSearchResult) string {
	if len(results) == 0 {
		return noWebData
	}
	lines := make([]string, 0, len(results))
	for i, r := range results {
		lines = append(lines, fmt.Sprintf("%d. **%s**\n   - %s\n   - [%s](%s)", i+1, r.Title, r.Snippet, r.URL, r.URL))
	}
	return strings.Join(lines, "\n")
}

func docSection(chunks []research.DocumentChunk) string {
	if len(chunks) == 0 {
		return noDocData
	}
	lines := make([]string, 0, len(chunks))
	for i, c := range chunks {
		quote := text.Truncate(text.FlattenNewlines(c.Text), maxQuoteRunes)
		lines = append(lines, fmt.Sprintf("%d. Source: `%s`, page %d\n\n   > %s...", i+1, c.Source, c.Page, quote))
	}
	return strings.Join(lines, "\n")
}
