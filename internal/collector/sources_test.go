package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/promptatlas/promptatlas/pkg/guide"
)

func TestResolveStaticOnly(t *testing.T) {
	resolver := NewSourceResolver(nil)

	sources := resolver.Resolve(context.Background(), "llama-3.1")

	require.Len(t, sources, 2)
	assert.Equal(t, "https://www.llama.com/docs/how-to-guides/prompting/", sources[0].URL)
	for _, s := range sources {
		assert.Equal(t, guide.OriginStatic, s.Origin)
	}
}

func TestResolveUnknownEntity(t *testing.T) {
	resolver := NewSourceResolver(nil)

	assert.Empty(t, resolver.Resolve(context.Background(), "unknown-model"))
}

func TestResolveMergesSearchResults(t *testing.T) {
	var queries []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		queries = append(queries, r.URL.Query().Get("q"))
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))
		assert.Equal(t, "test-cx", r.URL.Query().Get("cx"))
		json.NewEncoder(w).Encode(map[string]any{
			"items": []map[string]string{
				{"title": "Guide A", "link": "https://blog.example.com/prompting", "snippet": "..."},
				{"title": "Static dup", "link": "https://docs.example.com/guide", "snippet": "..."},
			},
		})
	}))
	defer server.Close()

	search := NewSearchClient(&SearchConfig{
		APIKey:   "test-key",
		EngineID: "test-cx",
		Endpoint: server.URL,
	})
	resolver := NewSourceResolver(search).WithStaticSources(map[string][]string{
		"gpt-4o": {"https://docs.example.com/guide"},
	})

	sources := resolver.Resolve(context.Background(), "gpt-4o")

	// 3 entity queries plus 2 generic ones
	assert.Len(t, queries, 5)
	assert.Contains(t, queries, "gpt-4o prompt guide")
	assert.Contains(t, queries, "prompt engineering best practices")

	// Static first, search dedup against static and across queries.
	require.Len(t, sources, 2)
	assert.Equal(t, "https://docs.example.com/guide", sources[0].URL)
	assert.Equal(t, guide.OriginStatic, sources[0].Origin)
	assert.Equal(t, "https://blog.example.com/prompting", sources[1].URL)
	assert.Equal(t, guide.OriginSearch, sources[1].Origin)
	assert.NotEmpty(t, sources[1].Query)
}

func TestResolveSwallowsSearchFailures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer server.Close()

	search := NewSearchClient(&SearchConfig{
		APIKey:   "test-key",
		EngineID: "test-cx",
		Endpoint: server.URL,
	})
	resolver := NewSourceResolver(search).WithStaticSources(map[string][]string{
		"gpt-4o": {"https://docs.example.com/guide"},
	})

	sources := resolver.Resolve(context.Background(), "gpt-4o")

	require.Len(t, sources, 1)
	assert.Equal(t, "https://docs.example.com/guide", sources[0].URL)
}

func TestSearchClientDisabledWithoutCredentials(t *testing.T) {
	assert.False(t, NewSearchClient(nil).Enabled())
	assert.False(t, NewSearchClient(&SearchConfig{APIKey: "key"}).Enabled())
	assert.True(t, NewSearchClient(&SearchConfig{APIKey: "key", EngineID: "cx"}).Enabled())
}

func TestSearchClientCapsResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		items := make([]map[string]string, 8)
		for i := range items {
			items[i] = map[string]string{"link": fmt.Sprintf("https://example.com/%d", i)}
		}
		json.NewEncoder(w).Encode(map[string]any{"items": items})
	}))
	defer server.Close()

	search := NewSearchClient(&SearchConfig{
		APIKey:     "k",
		EngineID:   "cx",
		Endpoint:   server.URL,
		MaxResults: 3,
		Timeout:    5 * time.Second,
	})

	results, err := search.Search(context.Background(), "prompting")
	require.NoError(t, err)
	assert.Len(t, results, 3)
}

func TestDedupeSources(t *testing.T) {
	sources := dedupeSources([]guide.Source{
		{URL: "https://a.example.com/guide", Origin: guide.OriginStatic},
		{URL: "  https://a.example.com/guide  ", Origin: guide.OriginSearch},
		{URL: "ftp://b.example.com/guide"},
		{URL: "not a url at all", Origin: guide.OriginSearch},
		{URL: "https://c.example.com/guide", Origin: guide.OriginSearch},
	})

	require.Len(t, sources, 2)
	assert.Equal(t, "https://a.example.com/guide", sources[0].URL)
	assert.Equal(t, guide.OriginStatic, sources[0].Origin)
	assert.Equal(t, "https://c.example.com/guide", sources[1].URL)
}

func TestNormalizeURL(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"https://example.com/guide", "https://example.com/guide", true},
		{"  http://example.com  ", "http://example.com", true},
		{"", "", false},
		{"ftp://example.com", "", false},
		{"/relative/path", "", false},
	}

	for _, tc := range cases {
		got, ok := normalizeURL(tc.in)
		assert.Equal(t, tc.ok, ok, "input %q", tc.in)
		assert.Equal(t, tc.want, got, "input %q", tc.in)
	}
}
