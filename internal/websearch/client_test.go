package websearch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Search(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-API-KEY"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "krebs cycle", body["q"])

		json.NewEncoder(w).Encode(map[string]any{
			"organic": []map[string]any{
				{"title": "Krebs cycle - Encyclopedia", "link": "https://example.org/krebs", "snippet": "The citric acid cycle..."},
				{"title": "Cellular respiration", "link": "https://example.org/resp", "snippet": "ATP production..."},
			},
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "test-key")
	results, err := client.Search(context.Background(), "krebs cycle", 5)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "Krebs cycle - Encyclopedia", results[0].Title)
	assert.Equal(t, "The citric acid cycle...", results[0].Snippet)
}

func TestClient_Search_TruncatesToLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"organic": []map[string]any{
				{"title": "a"}, {"title": "b"}, {"title": "c"},
			},
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "")
	results, err := client.Search(context.Background(), "anything", 2)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestClient_Search_ProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "bad-key")
	_, err := client.Search(context.Background(), "anything", 5)
	assert.Error(t, err)
}
