package research

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/alantheprice/refactord/pkg/utils"
)

// DefaultJinaEndpoint is the Jina AI search API.
const DefaultJinaEndpoint = "https://s.jina.ai/search"

type jinaSearchResult struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description"`
	Content     string `json:"content"`
}

// Jina searches with the Jina AI search API.
type Jina struct {
	Endpoint string
	APIKey   string
	Client   *http.Client
	backoff  *utils.RateLimitBackoff
}

// NewJina returns a Jina search tool. An empty endpoint selects the public API.
func NewJina(endpoint, apiKey string) *Jina {
	if endpoint == "" {
		endpoint = DefaultJinaEndpoint
	}
	return &Jina{
		Endpoint: endpoint,
		APIKey:   apiKey,
		Client:   &http.Client{Timeout: 120 * time.Second},
		backoff:  utils.NewRateLimitBackoff(),
	}
}

// Search queries Jina for topic and returns at most constraints.MaxSources
// citations from allowed sources.
func (j *Jina) Search(ctx context.Context, topic string, constraints Constraints) ([]Citation, error) {
	if strings.TrimSpace(topic) == "" || constraints.MaxSources <= 0 {
		return nil, nil
	}

	var results []jinaSearchResult
	err := j.backoff.Do(ctx, func(ctx context.Context) error {
		var err error
		results, err = j.fetch(ctx, topic)
		return err
	})
	if err != nil {
		return nil, err
	}

	citations := make([]Citation, 0, len(results))
	for _, r := range results {
		if r.URL == "" {
			continue
		}
		snippet := r.Description
		if snippet == "" {
			snippet = truncate(r.Content, 280)
		}
		citations = append(citations, Citation{Title: r.Title, URL: r.URL, Snippet: snippet})
	}
	return Apply(citations, constraints), nil
}

func (j *Jina) fetch(ctx context.Context, topic string) ([]jinaSearchResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, j.Endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create jina request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if j.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+j.APIKey)
	}
	q := req.URL.Query()
	q.Add("q", topic)
	req.URL.RawQuery = q.Encode()

	client := j.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to perform jina search: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read jina response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("jina search returned status %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	var searchResponse struct {
		Data []jinaSearchResult `json:"data"`
	}
	if err := json.Unmarshal(body, &searchResponse); err != nil {
		return nil, fmt.Errorf("failed to unmarshal jina response: %w", err)
	}
	return searchResponse.Data, nil
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
