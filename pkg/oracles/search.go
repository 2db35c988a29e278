package oracles

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/snapgraph/snapgraph/pkg/models"
)

const searchTimeout = 10 * time.Second

// GoogleImageSearch implements ImageSearch over the Google Custom Search JSON
// API restricted to image results.
type GoogleImageSearch struct {
	apiURL     string
	apiKey     string
	engineID   string
	numResults int
	httpClient *http.Client
}

var _ ImageSearch = (*GoogleImageSearch)(nil)

// NewGoogleImageSearch creates the search client. numResults is the number of
// image hits requested per query (the API caps it at 10).
func NewGoogleImageSearch(apiURL, apiKey, engineID string, numResults int) *GoogleImageSearch {
	if numResults < 1 {
		numResults = 5
	}
	if numResults > 10 {
		numResults = 10
	}
	return &GoogleImageSearch{
		apiURL:     apiURL,
		apiKey:     apiKey,
		engineID:   engineID,
		numResults: numResults,
		httpClient: &http.Client{Timeout: searchTimeout},
	}
}

type googleSearchResponse struct {
	Items []struct {
		Title string `json:"title"`
		Link  string `json:"link"`
		Image struct {
			ThumbnailLink string `json:"thumbnailLink"`
			ContextLink   string `json:"contextLink"`
		} `json:"image"`
	} `json:"items"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Search implements ImageSearch.
func (g *GoogleImageSearch) Search(ctx context.Context, query string) ([]models.ImageResult, error) {
	params := url.Values{}
	params.Set("key", g.apiKey)
	params.Set("cx", g.engineID)
	params.Set("q", query)
	params.Set("searchType", "image")
	params.Set("num", strconv.Itoa(g.numResults))
	params.Set("safe", "active")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.apiURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build search request: %w", err)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("image search request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read search response: %w", err)
	}

	var out googleSearchResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}
	if out.Error != nil {
		return nil, fmt.Errorf("image search returned %d: %s", out.Error.Code, out.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("image search returned status %d", resp.StatusCode)
	}

	results := make([]models.ImageResult, 0, len(out.Items))
	for _, item := range out.Items {
		if item.Link == "" {
			continue
		}
		results = append(results, models.ImageResult{
			ImageURL:     item.Link,
			ThumbnailURL: item.Image.ThumbnailLink,
			ContextURL:   item.Image.ContextLink,
			Title:        item.Title,
		})
	}
	return results, nil
}
