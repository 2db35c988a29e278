package oracles

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGoogleImageSearch(t *testing.T) {
	var gotQuery map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		gotQuery = map[string]string{
			"q":          q.Get("q"),
			"searchType": q.Get("searchType"),
			"num":        q.Get("num"),
			"key":        q.Get("key"),
			"cx":         q.Get("cx"),
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"items": [
				{"title": "Pair at gala", "link": "https://img.example/1.jpg",
				 "image": {"thumbnailLink": "https://th.example/1.jpg", "contextLink": "https://page.example/1"}},
				{"title": "missing link"},
				{"title": "Second", "link": "https://img.example/2.jpg", "image": {}}
			]
		}`))
	}))
	defer server.Close()

	g := NewGoogleImageSearch(server.URL, "the-key", "the-engine", 7)
	results, err := g.Search(context.Background(), "a b together")
	require.NoError(t, err)

	assert.Equal(t, "a b together", gotQuery["q"])
	assert.Equal(t, "image", gotQuery["searchType"])
	assert.Equal(t, "7", gotQuery["num"])
	assert.Equal(t, "the-key", gotQuery["key"])
	assert.Equal(t, "the-engine", gotQuery["cx"])

	// Items without a link are dropped.
	require.Len(t, results, 2)
	assert.Equal(t, "https://img.example/1.jpg", results[0].ImageURL)
	assert.Equal(t, "https://th.example/1.jpg", results[0].ThumbnailURL)
	assert.Equal(t, "https://page.example/1", results[0].ContextURL)
	assert.Equal(t, "Pair at gala", results[0].Title)
}

func TestGoogleImageSearchClampsNum(t *testing.T) {
	g := NewGoogleImageSearch("http://x", "k", "e", 50)
	assert.Equal(t, 10, g.numResults)

	g = NewGoogleImageSearch("http://x", "k", "e", 0)
	assert.Equal(t, 5, g.numResults)
}

func TestGoogleImageSearchAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error": {"code": 403, "message": "quota exceeded"}}`))
	}))
	defer server.Close()

	g := NewGoogleImageSearch(server.URL, "k", "e", 5)
	_, err := g.Search(context.Background(), "q")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestGoogleImageSearchEmptyResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	g := NewGoogleImageSearch(server.URL, "k", "e", 5)
	results, err := g.Search(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Empty(t, results)
}
