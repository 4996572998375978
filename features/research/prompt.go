package research

import "fmt"

const reviseSystemPrompt = "You are a senior market research analyst. " +
	"You will revise the draft report to incorporate human feedback, " +
	"while keeping structure clear, factual, and well formatted in Markdown."

func revisePrompt(f Feedback) string {
	return fmt.Sprintf(`Here is the current draft report (Markdown):

---
%s
---

Human feedback / requested changes:
%s

Usefulness score given by the human (1-5): %d

Task:
- Improve and rewrite the report to address the feedback.
- Preserve useful content, but reorganize, expand or fix it as needed.
- Keep the output as a single, clean Markdown document.
- Do NOT include any meta-discussion about the fact this is a revision.`, f.EditedMarkdown, f.comments(), f.UsefulnessScore)
}
