package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/promptatlas/promptatlas/pkg/logging"
)

// SearchConfig configures the external search provider client.
type SearchConfig struct {
	APIKey     string
	EngineID   string
	Endpoint   string
	MaxResults int
	Timeout    time.Duration
}

// DefaultSearchConfig returns default search client configuration
func DefaultSearchConfig() *SearchConfig {
	return &SearchConfig{
		Endpoint:   "https://www.googleapis.com/customsearch/v1",
		MaxResults: 5,
		Timeout:    10 * time.Second,
	}
}

// SearchClient queries a Custom Search style API for candidate guide URLs.
type SearchClient struct {
	config *SearchConfig
	client *http.Client
}

// SearchResult is one result row returned by the provider.
type SearchResult struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
}

type searchResponse struct {
	Items []SearchResult `json:"items"`
}

// NewSearchClient creates a new search client
func NewSearchClient(config *SearchConfig) *SearchClient {
	if config == nil {
		config = DefaultSearchConfig()
	}
	if config.Endpoint == "" {
		config.Endpoint = "https://www.googleapis.com/customsearch/v1"
	}
	if config.MaxResults == 0 {
		config.MaxResults = 5
	}
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}

	return &SearchClient{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
	}
}

// Enabled reports whether search credentials are configured.
func (sc *SearchClient) Enabled() bool {
	return sc.config.APIKey != "" && sc.config.EngineID != ""
}

// Search runs one query against the provider and returns up to
// MaxResults result rows.
func (sc *SearchClient) Search(ctx context.Context, query string) ([]SearchResult, error) {
	logger := logging.GetLogger("search")

	endpoint, err := url.Parse(sc.config.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid search endpoint: %w", err)
	}

	params := endpoint.Query()
	params.Set("key", sc.config.APIKey)
	params.Set("cx", sc.config.EngineID)
	params.Set("q", query)
	params.Set("num", strconv.Itoa(sc.config.MaxResults))
	endpoint.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("building search request: %w", err)
	}

	resp, err := sc.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search API returned HTTP %d", resp.StatusCode)
	}

	var parsed searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decoding search response: %w", err)
	}

	if len(parsed.Items) > sc.config.MaxResults {
		parsed.Items = parsed.Items[:sc.config.MaxResults]
	}

	logger.Debug().
		Str("query", query).
		Int("results", len(parsed.Items)).
		Msg("Search query completed")

	return parsed.Items, nil
}
