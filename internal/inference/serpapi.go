package inference

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// maxWebResults is how many organic results a web search returns
const maxWebResults = 5

// WebSearcher returns web results for a query. Each result is passed
// through as the search provider returned it.
type WebSearcher interface {
	Search(ctx context.Context, query string) ([]json.RawMessage, error)
}

// SerpAPI queries Google through serpapi.com
type SerpAPI struct {
	apiKey   string
	endpoint string
	client   *http.Client
}

// NewSerpAPI creates a SerpAPI client. A nil client uses one with timeout.
func NewSerpAPI(apiKey, endpoint string, timeout time.Duration, client *http.Client) *SerpAPI {
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	return &SerpAPI{apiKey: apiKey, endpoint: endpoint, client: client}
}

// serpResponse keeps only the organic results. A provider error body
// decodes to no results.
type serpResponse struct {
	OrganicResults []json.RawMessage `json:"organic_results"`
}

// Search returns the first organic results for query
func (s *SerpAPI) Search(ctx context.Context, query string) ([]json.RawMessage, error) {
	u, err := url.Parse(s.endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid serpapi endpoint: %w", err)
	}
	q := u.Query()
	q.Set("engine", "google")
	q.Set("q", query)
	q.Set("api_key", s.apiKey)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("serpapi request failed: %w", err)
	}
	defer resp.Body.Close()

	var body serpResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode serpapi response (status %d): %w", resp.StatusCode, err)
	}
	results := body.OrganicResults
	if len(results) > maxWebResults {
		results = results[:maxWebResults]
	}
	if results == nil {
		results = []json.RawMessage{}
	}
	return results, nil
}
