package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"marketlens/features/document"
	"marketlens/internal/apperr"
	"marketlens/internal/research"
)

type MockResearcher struct{ mock.Mock }

func (m *MockResearcher) Run(ctx context.Context, req research.Request) (*research.State, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*research.State), args.Error(1)
}

type MockRetriever struct{ mock.Mock }

func (m *MockRetriever) Retrieve(ctx context.Context, query string, limit int) ([]research.DocumentChunk, error) {
	args := m.Called(ctx, query, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]research.DocumentChunk), args.Error(1)
}

type MockDocuments struct{ mock.Mock }

func (m *MockDocuments) List(ctx context.Context) ([]document.Document, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]document.Document), args.Error(1)
}

func rpc(t *testing.T, h *Handler, method string, params interface{}) JSONRPCResponse {
	t.Helper()
	body := map[string]interface{}{"jsonrpc": "2.0", "method": method, "id": 1}
	if params != nil {
		body["params"] = params
	}
	b, err := json.Marshal(body)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/mcp", bytes.NewReader(b)))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp JSONRPCResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func toolText(t *testing.T, resp JSONRPCResponse) (string, bool) {
	t.Helper()
	result, ok := resp.Result.(map[string]interface{})
	require.True(t, ok, "expected result object, got %v", resp.Error)
	content := result["content"].([]interface{})
	require.Len(t, content, 1)
	isErr, _ := result["isError"].(bool)
	return content[0].(map[string]interface{})["text"].(string), isErr
}

func TestHandler_Initialize(t *testing.T) {
	resp := rpc(t, NewHandler(nil, nil, nil), "initialize", nil)
	result := resp.Result.(map[string]interface{})
	assert.Equal(t, "2024-11-05", result["protocolVersion"])
	assert.Equal(t, "marketlens-mcp", result["serverInfo"].(map[string]interface{})["name"])
}

func TestHandler_ToolsList(t *testing.T) {
	resp := rpc(t, NewHandler(nil, nil, nil), "tools/list", nil)
	result := resp.Result.(map[string]interface{})

	var names []string
	for _, tool := range result["tools"].([]interface{}) {
		names = append(names, tool.(map[string]interface{})["name"].(string))
	}
	assert.Equal(t, []string{ToolResearchDraft, ToolSearchDocuments, ToolListDocuments}, names)
}

func TestHandler_Notification(t *testing.T) {
	rec := httptest.NewRecorder()
	NewHandler(nil, nil, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/mcp",
		strings.NewReader(`{"jsonrpc":"2.0","method":"notifications/initialized"}`)))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestHandler_ParseError(t *testing.T) {
	rec := httptest.NewRecorder()
	NewHandler(nil, nil, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader("{bad")))

	var resp JSONRPCResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.EqualValues(t, ErrParse, resp.Error.(map[string]interface{})["code"])
}

func TestHandler_UnknownMethodAndTool(t *testing.T) {
	h := NewHandler(nil, nil, nil)

	resp := rpc(t, h, "resources/list", nil)
	assert.EqualValues(t, ErrMethodNotFound, resp.Error.(map[string]interface{})["code"])

	resp = rpc(t, h, "tools/call", map[string]interface{}{"name": "nope"})
	assert.EqualValues(t, ErrMethodNotFound, resp.Error.(map[string]interface{})["code"])
}

func TestHandler_ResearchDraft(t *testing.T) {
	rs := new(MockResearcher)
	md := "# Market Research Report"
	state := research.NewState(research.Request{Query: "ev charging market"})
	state.Apply(research.Patch{DraftMarkdown: &md})

	rs.On("Run", mock.Anything, mock.MatchedBy(func(r research.Request) bool {
		return r.Query == "ev charging market" && len(r.Competitors) == 1 && r.MaxDocChunks == 4
	})).Return(state, nil)

	resp := rpc(t, NewHandler(rs, nil, nil), "tools/call", map[string]interface{}{
		"name": ToolResearchDraft,
		"arguments": map[string]interface{}{
			"query":          "ev charging market",
			"competitors":    []string{"Ionity"},
			"max_doc_chunks": 4,
		},
	})

	text, isErr := toolText(t, resp)
	assert.False(t, isErr)
	assert.Equal(t, md, text)
}

func TestHandler_ResearchDraft_Failure(t *testing.T) {
	rs := new(MockResearcher)
	rs.On("Run", mock.Anything, mock.Anything).Return(nil, apperr.Validation("research.Request", "query must be at least 5 characters"))

	resp := rpc(t, NewHandler(rs, nil, nil), "tools/call", map[string]interface{}{
		"name":      ToolResearchDraft,
		"arguments": map[string]interface{}{"query": "ev"},
	})

	text, isErr := toolText(t, resp)
	assert.True(t, isErr)
	assert.Contains(t, text, "at least 5 characters")
}

func TestHandler_SearchDocuments(t *testing.T) {
	tests := []struct {
		name      string
		args      map[string]interface{}
		wantLimit int
		chunks    []research.DocumentChunk
		err       error
		wantText  string
		wantErr   bool
	}{
		{
			name:      "default limit",
			args:      map[string]interface{}{"query": "pricing"},
			wantLimit: 10,
			chunks:    []research.DocumentChunk{{DocID: "d1", Source: "plan.pdf", Page: 3, Text: "tiered pricing"}},
			wantText:  "Source: plan.pdf\nPage: 3",
		},
		{
			name:      "explicit limit no results",
			args:      map[string]interface{}{"query": "pricing", "limit": 2},
			wantLimit: 2,
			chunks:    []research.DocumentChunk{},
			wantText:  "No results found.",
		},
		{
			name:      "store failure",
			args:      map[string]interface{}{"query": "pricing"},
			wantLimit: 10,
			err:       errors.New("weaviate down"),
			wantText:  "weaviate down",
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := new(MockRetriever)
			r.On("Retrieve", mock.Anything, "pricing", tt.wantLimit).Return(tt.chunks, tt.err)

			resp := rpc(t, NewHandler(nil, r, nil), "tools/call", map[string]interface{}{
				"name": ToolSearchDocuments, "arguments": tt.args,
			})

			text, isErr := toolText(t, resp)
			assert.Equal(t, tt.wantErr, isErr)
			assert.Contains(t, text, tt.wantText)
		})
	}
}

func TestHandler_SearchDocuments_EmptyQuery(t *testing.T) {
	resp := rpc(t, NewHandler(nil, new(MockRetriever), nil), "tools/call", map[string]interface{}{
		"name": ToolSearchDocuments, "arguments": map[string]interface{}{"query": "  "},
	})
	assert.EqualValues(t, ErrInvalidParams, resp.Error.(map[string]interface{})["code"])
}

func TestHandler_ListDocuments(t *testing.T) {
	docs := new(MockDocuments)
	docs.On("List", mock.Anything).Return([]document.Document{{DocID: "d1", Source: "plan.pdf", Pages: 12}}, nil)

	resp := rpc(t, NewHandler(nil, nil, docs), "tools/call", map[string]interface{}{"name": ToolListDocuments})

	text, isErr := toolText(t, resp)
	assert.False(t, isErr)
	assert.Contains(t, text, `"source": "plan.pdf"`)
}

func TestHandler_HandleMessage_MissingSessionID(t *testing.T) {
	handler := NewHandler(nil, nil, nil)

	rec := httptest.NewRecorder()
	handler.HandleMessage(rec, httptest.NewRequest(http.MethodPost, "/mcp/messages", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "error", resp["status"])
	assert.Equal(t, "VALIDATION_ERROR", resp["error"].(map[string]interface{})["code"])
}

func TestHandler_HandleMessage_SessionNotFound(t *testing.T) {
	rec := httptest.NewRecorder()
	NewHandler(nil, nil, nil).HandleMessage(rec, httptest.NewRequest(http.MethodPost, "/mcp/messages?sessionId=unknown-session", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandler_HandleMessage_InvalidJSON(t *testing.T) {
	handler := NewHandler(nil, nil, nil)
	handler.sessions["test-session"] = make(chan string, 1)

	rec := httptest.NewRecorder()
	handler.HandleMessage(rec, httptest.NewRequest(http.MethodPost, "/mcp/messages?sessionId=test-session", strings.NewReader("{invalid-json")))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandler_HandleMessage_DeliversToSession(t *testing.T) {
	handler := NewHandler(nil, nil, nil)
	ch := make(chan string, 1)
	handler.sessions["test-session"] = ch

	rec := httptest.NewRecorder()
	handler.HandleMessage(rec, httptest.NewRequest(http.MethodPost, "/mcp/messages?sessionId=test-session",
		strings.NewReader(`{"jsonrpc":"2.0","method":"ping","id":7}`)))

	assert.Equal(t, http.StatusAccepted, rec.Code)

	select {
	case msg := <-ch:
		var resp JSONRPCResponse
		require.NoError(t, json.Unmarshal([]byte(msg), &resp))
		assert.EqualValues(t, 7, resp.ID)
		assert.Nil(t, resp.Error)
	case <-time.After(2 * time.Second):
		t.Fatal("response not delivered to session")
	}
}
