package tavily_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketlens/internal/adapter/tavily"
	"marketlens/internal/apperr"
)

func newClient(t *testing.T, handler http.HandlerFunc) (*tavily.Client, *httptest.Server) {
	ts := httptest.NewServer(handler)
	client := tavily.NewClient(tavily.StaticKey("tv-key"), 0)
	client.SetBaseURL(ts.URL)
	return client, ts
}

func TestClient_Search(t *testing.T) {
	client, ts := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "POST", r.Method)

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "tv-key", body["api_key"])
		assert.Equal(t, "ev market germany", body["query"])
		assert.Equal(t, 2.0, body["max_results"])
		assert.Equal(t, "basic", body["search_depth"])
		assert.Equal(t, false, body["include_answer"])

		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"results": []map[string]interface{}{
				{"title": "EV Outlook", "url": "https://a.example", "content": strings.Repeat("x", 800)},
				{"title": "", "url": "https://b.example", "content": "short"},
				{"title": "Extra", "url": "https://c.example", "content": "ignored"},
			},
		})
	})
	defer ts.Close()

	results, err := client.Search(context.Background(), "ev market germany", 2)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "EV Outlook", results[0].Title)
	assert.Equal(t, "https://a.example", results[0].URL)
	assert.Len(t, results[0].Snippet, 500)
	assert.Equal(t, "Untitled", results[1].Title)
	assert.Equal(t, "short", results[1].Snippet)
}

func TestClient_Search_FillsMissingURLAndCountsRunes(t *testing.T) {
	client, ts := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"results": []map[string]interface{}{
				{"title": "Marktanalyse", "url": "", "content": strings.Repeat("ä", 700)},
			},
		})
	})
	defer ts.Close()

	results, err := client.Search(context.Background(), "markt deutschland", 5)
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.Equal(t, "https://example.com", results[0].URL)
	assert.Equal(t, strings.Repeat("ä", 500), results[0].Snippet)
}

func TestClient_Search_ErrorClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   error
	}{
		{"Unauthorized", http.StatusUnauthorized, apperr.ErrConfiguration},
		{"BadRequest", http.StatusBadRequest, apperr.ErrConfiguration},
		{"RateLimited", http.StatusTooManyRequests, apperr.ErrTransient},
		{"ServerError", http.StatusBadGateway, apperr.ErrTransient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, ts := newClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			})
			defer ts.Close()

			_, err := client.Search(context.Background(), "query text", 3)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestClient_Search_BadJSON(t *testing.T) {
	client, ts := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("not json"))
	})
	defer ts.Close()

	_, err := client.Search(context.Background(), "query text", 3)
	assert.ErrorIs(t, err, apperr.ErrTransient)
}

func TestClient_Search_NetworkError(t *testing.T) {
	client, ts := newClient(t, func(w http.ResponseWriter, r *http.Request) {})
	ts.Close()

	_, err := client.Search(context.Background(), "query text", 3)
	assert.ErrorIs(t, err, apperr.ErrTransient)
}

func TestClient_Search_MissingKey(t *testing.T) {
	client := tavily.NewClient(tavily.StaticKey(""), 1)

	_, err := client.Search(context.Background(), "query text", 3)
	assert.ErrorIs(t, err, apperr.ErrConfiguration)
}

func TestClient_Search_ZeroMax(t *testing.T) {
	client, ts := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})
	defer ts.Close()

	results, err := client.Search(context.Background(), "query text", 0)
	assert.NoError(t, err)
	assert.Empty(t, results)
}

func TestClient_Search_CanceledWhileLimited(t *testing.T) {
	client, ts := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"results":[]}`))
	})
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Search(ctx, "query text", 3)
	assert.ErrorIs(t, err, apperr.ErrTransient)
}
