package research

// DocumentChunk is one page of an indexed document. (DocID, Page) is unique
// within the vector store.
type DocumentChunk struct {
	DocID  string `json:"doc_id"`
	Source string `json:"source"`
	Page   int    `json:"page"`
	Text   string `json:"text"`
}

type WebSearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}
