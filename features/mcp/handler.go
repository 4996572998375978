package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"marketlens/features/document"
	"marketlens/internal/middleware"
	"marketlens/internal/research"
)

type Researcher interface {
	Run(ctx context.Context, req research.Request) (*research.State, error)
}

type Retriever interface {
	Retrieve(ctx context.Context, query string, limit int) ([]research.DocumentChunk, error)
}

type DocumentLister interface {
	List(ctx context.Context) ([]document.Document, error)
}

type Handler struct {
	researcher   Researcher
	retriever    Retriever
	documents    DocumentLister
	sessions     map[string]chan string // sessionId -> serialized JSON-RPC responses
	sessionsLock sync.RWMutex
}

func NewHandler(rs Researcher, r Retriever, d DocumentLister) *Handler {
	return &Handler{
		researcher: rs,
		retriever:  r,
		documents:  d,
		sessions:   make(map[string]chan string),
	}
}

type JSONRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
	ID      interface{}     `json:"id"`
}

type CallParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

type DraftArgs struct {
	Query         string   `json:"query"`
	Industry      *string  `json:"industry,omitempty"`
	Competitors   []string `json:"competitors,omitempty"`
	MaxWebResults int      `json:"max_web_results,omitempty"`
	MaxDocChunks  int      `json:"max_doc_chunks,omitempty"`
}

type SearchArgs struct {
	Query string `json:"query"`
	Limit *int   `json:"limit,omitempty"`
}

type Tool struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	InputSchema interface{} `json:"inputSchema"`
}

type ListToolsResult struct {
	Tools []Tool `json:"tools"`
}

type JSONRPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	Result  interface{} `json:"result,omitempty"`
	Error   interface{} `json:"error,omitempty"`
	ID      interface{} `json:"id"`
}

type ToolResult struct {
	Content []ToolContent `json:"content"`
	IsError bool          `json:"isError,omitempty"`
}

type ToolContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

const (
	ErrParse          = -32700
	ErrInvalidRequest = -32600
	ErrMethodNotFound = -32601
	ErrInvalidParams  = -32602
	ErrInternal       = -32603
)

const (
	ToolResearchDraft   = "research_draft"
	ToolSearchDocuments = "search_documents"
	ToolListDocuments   = "list_documents"

	defaultSearchLimit = 10
)

var tools = []Tool{
	{
		Name: ToolResearchDraft,
		Description: `Runs a full market research pass: web search, internal document retrieval and report synthesis. Returns the draft report as Markdown.

USAGE EXAMPLE:
research_draft(query="electric vehicle charging market in Germany", industry="Automotive", competitors=["Ionity", "Tesla"])`,
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "The research question (at least 5 characters)",
					"minLength":   research.MinQueryLength,
				},
				"industry": map[string]string{
					"type":        "string",
					"description": "Industry to frame the report",
				},
				"competitors": map[string]interface{}{
					"type":        "array",
					"items":       map[string]string{"type": "string"},
					"description": "Competitors to cover",
				},
				"max_web_results": map[string]interface{}{
					"type":    "integer",
					"minimum": 1,
					"maximum": research.MaxWebResults,
				},
				"max_doc_chunks": map[string]interface{}{
					"type":    "integer",
					"minimum": 1,
					"maximum": research.MaxDocChunks,
				},
			},
			"required": []string{"query"},
		},
	},
	{
		Name: ToolSearchDocuments,
		Description: `Searches the indexed internal documents by meaning and returns the closest pages with their source file and page number.

USAGE EXAMPLE:
search_documents(query="pricing strategy", limit=5)`,
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"query": map[string]string{
					"type":        "string",
					"description": "The search query",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Max results to return (default 10).",
					"minimum":     1,
					"maximum":     research.MaxDocChunks,
				},
			},
			"required": []string{"query"},
		},
	},
	{
		Name:        ToolListDocuments,
		Description: `Lists the internal documents currently indexed.`,
		InputSchema: map[string]interface{}{
			"type":       "object",
			"properties": map[string]interface{}{},
		},
	},
}

// processRequest returns nil for notifications.
func (h *Handler) processRequest(ctx context.Context, req JSONRPCRequest) *JSONRPCResponse {
	switch req.Method {
	case "initialize":
		return &JSONRPCResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Result: map[string]interface{}{
				"protocolVersion": "2024-11-05",
				"capabilities": map[string]interface{}{
					"tools": map[string]interface{}{},
				},
				"serverInfo": map[string]interface{}{
					"name":    "marketlens-mcp",
					"version": "1.0.0",
				},
			},
		}
	case "notifications/initialized":
		return nil
	case "ping":
		return &JSONRPCResponse{JSONRPC: "2.0", ID: req.ID, Result: map[string]interface{}{}}
	case "tools/list":
		return &JSONRPCResponse{JSONRPC: "2.0", ID: req.ID, Result: ListToolsResult{Tools: tools}}
	case "tools/call":
		return h.callTool(ctx, req)
	}

	slog.WarnContext(ctx, "unknown jsonrpc method", "method", req.Method)
	resp := makeErrorResponse(req.ID, ErrMethodNotFound, "Method not found")
	return &resp
}

func (h *Handler) callTool(ctx context.Context, req JSONRPCRequest) *JSONRPCResponse {
	var params CallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		slog.WarnContext(ctx, "invalid params structure", "error", err)
		resp := makeErrorResponse(req.ID, ErrInvalidParams, "Invalid params")
		return &resp
	}

	var (
		text string
		err  error
	)
	switch params.Name {
	case ToolResearchDraft:
		var args DraftArgs
		if err := json.Unmarshal(params.Arguments, &args); err != nil {
			resp := makeErrorResponse(req.ID, ErrInvalidParams, "Invalid research_draft arguments")
			return &resp
		}
		text, err = h.researchDraft(ctx, args)
	case ToolSearchDocuments:
		var args SearchArgs
		if err := json.Unmarshal(params.Arguments, &args); err != nil {
			resp := makeErrorResponse(req.ID, ErrInvalidParams, "Invalid search arguments")
			return &resp
		}
		if strings.TrimSpace(args.Query) == "" {
			resp := makeErrorResponse(req.ID, ErrInvalidParams, "Query is required")
			return &resp
		}
		text, err = h.searchDocuments(ctx, args)
	case ToolListDocuments:
		text, err = h.listDocuments(ctx)
	default:
		slog.WarnContext(ctx, "tool not found", "tool", params.Name)
		resp := makeErrorResponse(req.ID, ErrMethodNotFound, "Method not found: "+params.Name)
		return &resp
	}

	if err != nil {
		slog.ErrorContext(ctx, "tool execution failed", "tool", params.Name, "error", err)
		return &JSONRPCResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Result: ToolResult{
				Content: []ToolContent{{Type: "text", Text: "Error: " + err.Error()}},
				IsError: true,
			},
		}
	}

	slog.InfoContext(ctx, "tool execution completed", "tool", params.Name)
	return &JSONRPCResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result:  ToolResult{Content: []ToolContent{{Type: "text", Text: text}}},
	}
}

func (h *Handler) researchDraft(ctx context.Context, args DraftArgs) (string, error) {
	state, err := h.researcher.Run(ctx, research.Request{
		Query:         args.Query,
		Industry:      args.Industry,
		Competitors:   args.Competitors,
		MaxWebResults: args.MaxWebResults,
		MaxDocChunks:  args.MaxDocChunks,
	})
	if err != nil {
		return "", err
	}
	if state.DraftMarkdown == nil {
		return "", nil
	}
	return *state.DraftMarkdown, nil
}

func (h *Handler) searchDocuments(ctx context.Context, args SearchArgs) (string, error) {
	limit := defaultSearchLimit
	if args.Limit != nil {
		limit = *args.Limit
	}

	chunks, err := h.retriever.Retrieve(ctx, args.Query, limit)
	if err != nil {
		return "", err
	}
	if len(chunks) == 0 {
		return "No results found.", nil
	}

	var sb strings.Builder
	for i, c := range chunks {
		fmt.Fprintf(&sb, "Result %d:\nSource: %s\nPage: %d\nContent:\n%s\n\n---\n", i+1, c.Source, c.Page, c.Text)
	}
	return sb.String(), nil
}

func (h *Handler) listDocuments(ctx context.Context) (string, error) {
	docs, err := h.documents.List(ctx)
	if err != nil {
		return "", err
	}
	if len(docs) == 0 {
		return "No documents indexed.", nil
	}

	type simpleDoc struct {
		DocID  string `json:"doc_id"`
		Source string `json:"source"`
		Pages  int    `json:"pages"`
	}
	out := make([]simpleDoc, len(docs))
	for i, d := range docs {
		out[i] = simpleDoc{DocID: d.DocID, Source: d.Source, Pages: d.Pages}
	}

	b, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal documents: %w", err)
	}
	return string(b), nil
}

func makeErrorResponse(id interface{}, code int, message string) JSONRPCResponse {
	return JSONRPCResponse{
		JSONRPC: "2.0",
		Error: map[string]interface{}{
			"code":    code,
			"message": message,
		},
		ID: id,
	}
}

// ServeHTTP answers a single JSON-RPC request synchronously.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	slog.InfoContext(ctx, "mcp request received", "method", r.Method, "path", r.URL.Path)

	var req JSONRPCRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, nil, ErrParse, "Parse error")
		return
	}

	resp := h.processRequest(ctx, req)
	if resp == nil {
		w.WriteHeader(http.StatusOK)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

// HandleSSE establishes the SSE connection and manages the session.
func (h *Handler) HandleSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		h.writeHttpError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Streaming unsupported", middleware.GetCorrelationID(r.Context()))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	sessionID := uuid.New().String()
	msgChan := make(chan string, 100)

	h.sessionsLock.Lock()
	h.sessions[sessionID] = msgChan
	h.sessionsLock.Unlock()

	defer func() {
		h.sessionsLock.Lock()
		delete(h.sessions, sessionID)
		h.sessionsLock.Unlock()
		close(msgChan)
		slog.Info("sse session ended", "session_id", sessionID)
	}()

	slog.Info("sse session started", "session_id", sessionID)

	scheme := "http"
	if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
		scheme = "https"
	}
	endpoint := fmt.Sprintf("%s://%s/mcp/messages?sessionId=%s", scheme, r.Host, sessionID)

	fmt.Fprintf(w, "event: endpoint\ndata: %s\n\n", html.EscapeString(endpoint))
	flusher.Flush()

	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg := <-msgChan:
			fmt.Fprintf(w, "event: message\ndata: %s\n\n", msg)
			flusher.Flush()
		case <-ticker.C:
			fmt.Fprintf(w, ": keepalive\n\n")
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}

// HandleMessage accepts POST messages associated with an SSE session.
func (h *Handler) HandleMessage(w http.ResponseWriter, r *http.Request) {
	correlationID := middleware.GetCorrelationID(r.Context())

	sessionID := r.URL.Query().Get("sessionId")
	if sessionID == "" {
		h.writeHttpError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Missing sessionId", correlationID)
		return
	}

	h.sessionsLock.RLock()
	msgChan, exists := h.sessions[sessionID]
	h.sessionsLock.RUnlock()

	if !exists {
		slog.Warn("session not found", "session_id", sessionID, "correlation_id", correlationID)
		h.writeHttpError(w, http.StatusNotFound, "NOT_FOUND", "Session not found", correlationID)
		return
	}

	var req JSONRPCRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeHttpError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid JSON", correlationID)
		return
	}

	w.WriteHeader(http.StatusAccepted)

	// Keep values like the correlation id, drop the request's cancellation.
	bgCtx := context.WithoutCancel(r.Context())

	go func() {
		resp := h.processRequest(bgCtx, req)
		if resp == nil {
			return
		}

		respBytes, err := json.Marshal(resp)
		if err != nil {
			slog.Error("failed to marshal response", "error", err, "correlation_id", correlationID)
			return
		}

		// The read lock keeps HandleSSE from closing the channel mid-send.
		h.sessionsLock.RLock()
		defer h.sessionsLock.RUnlock()
		if _, ok := h.sessions[sessionID]; !ok {
			return
		}

		select {
		case msgChan <- string(respBytes):
		default:
			slog.Warn("session channel full, dropping message", "session_id", sessionID, "correlation_id", correlationID)
		}
	}()
}

func (h *Handler) writeError(w http.ResponseWriter, id interface{}, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	// JSON-RPC errors travel in a 200 body.
	w.WriteHeader(http.StatusOK)

	if err := json.NewEncoder(w).Encode(makeErrorResponse(id, code, message)); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}

func (h *Handler) writeHttpError(w http.ResponseWriter, status int, code string, message string, correlationID string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := map[string]interface{}{
		"status": "error",
		"error": map[string]interface{}{
			"code":    code,
			"message": message,
		},
		"correlationId": correlationID,
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}
