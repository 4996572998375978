package tavily

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"marketlens/internal/apperr"
	"marketlens/internal/research"
	"marketlens/internal/settings"
	"marketlens/internal/text"
)

const (
	DefaultBaseURL  = "https://api.tavily.com"
	maxSnippetRunes = 500
	untitled        = "Untitled"
	placeholderURL  = "https://example.com"
)

// KeySource yields the API key to use for the next request.
type KeySource interface {
	TavilyKey(ctx context.Context) (string, error)
}

type StaticKey string

func (k StaticKey) TavilyKey(ctx context.Context) (string, error) {
	return string(k), nil
}

// SettingsKey reads the key from runtime settings on every request.
type SettingsKey struct {
	Svc *settings.Service
}

func (k SettingsKey) TavilyKey(ctx context.Context) (string, error) {
	s, err := k.Svc.Get(ctx)
	if err != nil {
		return "", err
	}
	return s.TavilyAPIKey, nil
}

type Client struct {
	keys    KeySource
	client  *http.Client
	baseURL string
	limiter *rate.Limiter
}

// NewClient builds a search client allowing perSecond requests with a
// burst of one. A non-positive rate disables limiting.
func NewClient(keys KeySource, perSecond float64) *Client {
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	return &Client{
		keys:    keys,
		client:  &http.Client{Timeout: 30 * time.Second},
		baseURL: DefaultBaseURL,
		limiter: rate.NewLimiter(limit, 1),
	}
}

func (c *Client) SetBaseURL(url string) {
	if url != "" {
		c.baseURL = strings.TrimRight(url, "/")
	}
}

type searchRequest struct {
	APIKey        string `json:"api_key"`
	Query         string `json:"query"`
	MaxResults    int    `json:"max_results"`
	SearchDepth   string `json:"search_depth"`
	IncludeAnswer bool   `json:"include_answer"`
}

type searchResponse struct {
	Results []struct {
		Title   string `json:"title"`
		URL     string `json:"url"`
		Content string `json:"content"`
	} `json:"results"`
}

// Search returns at most maxResults web results for query.
func (c *Client) Search(ctx context.Context, query string, maxResults int) ([]research.WebSearchResult, error) {
	const op = "tavily.Search"

	if maxResults <= 0 {
		return []research.WebSearchResult{}, nil
	}

	key, err := c.keys.TavilyKey(ctx)
	if err != nil {
		return nil, err
	}
	if key == "" {
		return nil, apperr.Configuration(op, fmt.Errorf("tavily api key not configured"))
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, apperr.Transient(op, err)
	}

	body, _ := json.Marshal(searchRequest{
		APIKey:      key,
		Query:       query,
		MaxResults:  maxResults,
		SearchDepth: "basic",
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, apperr.Configuration(op, err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, apperr.Transient(op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		err := fmt.Errorf("tavily api error: %d %s", resp.StatusCode, strings.TrimSpace(string(msg)))
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return nil, apperr.Configuration(op, err)
		}
		return nil, apperr.Transient(op, err)
	}

	var result searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, apperr.Transient(op, fmt.Errorf("decode response: %w", err))
	}

	out := make([]research.WebSearchResult, 0, len(result.Results))
	for _, r := range result.Results {
		if len(out) == maxResults {
			break
		}
		title := strings.TrimSpace(r.Title)
		if title == "" {
			title = untitled
		}
		url := strings.TrimSpace(r.URL)
		if url == "" {
			url = placeholderURL
		}
		out = append(out, research.WebSearchResult{
			Title:   title,
			URL:     url,
			Snippet: text.Truncate(r.Content, maxSnippetRunes),
		})
	}

	slog.InfoContext(ctx, "web search completed", "results", len(out), "duration", time.Since(start))
	return out, nil
}
