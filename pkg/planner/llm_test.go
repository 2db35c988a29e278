package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snapgraph/snapgraph/pkg/llm"
	"github.com/snapgraph/snapgraph/pkg/models"
)

// countingQuota allows a fixed number of LLM calls and counts consumption.
type countingQuota struct {
	allowed int
	used    int
}

func (q *countingQuota) TryLLM() bool {
	if q.used >= q.allowed {
		return false
	}
	q.used++
	return true
}

// fakeCompletionServer returns an OpenAI-style chat-completions endpoint
// whose assistant reply is produced by fn from the user prompt.
func fakeCompletionServer(t *testing.T, fn func(prompt string) string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Messages []struct {
				Role    string          `json:"role"`
				Content json.RawMessage `json:"content"`
			} `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.NotEmpty(t, req.Messages)

		var prompt string
		_ = json.Unmarshal(req.Messages[len(req.Messages)-1].Content, &prompt)

		reply := fn(prompt)
		resp := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": reply}},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
}

func newTestLLMPlanner(t *testing.T, quota Quota, fn func(prompt string) string) *LLMPlanner {
	t.Helper()
	server := fakeCompletionServer(t, fn)
	t.Cleanup(server.Close)
	client := llm.NewClient(server.URL, "test-key", "test-model", "test-vision")
	return NewLLMPlanner(client, newTestMatcher(), quota)
}

func TestLLMParseQuery(t *testing.T) {
	p := newTestLLMPlanner(t, &countingQuota{allowed: 10}, func(string) string {
		return `Here you go:
{"personA": "Taylor Swift", "personB": "Emma Stone", "isValid": true, "confidence": 95, "reason": "explicit"}`
	})

	got := p.ParseQuery(context.Background(), "taylor swift x emma stone??")
	require.True(t, got.IsValid)
	assert.Equal(t, "Taylor Swift", got.PersonA)
	assert.Equal(t, "Emma Stone", got.PersonB)
	assert.Equal(t, 95.0, got.Confidence)
}

func TestLLMParseQuerySamePersonInvalidated(t *testing.T) {
	p := newTestLLMPlanner(t, &countingQuota{allowed: 10}, func(string) string {
		return `{"personA": "The Rock", "personB": "Dwayne Johnson", "isValid": true, "confidence": 90}`
	})

	got := p.ParseQuery(context.Background(), "the rock and dwayne johnson")
	assert.False(t, got.IsValid)
}

func TestLLMParseQueryFallsBackOnSchemaViolation(t *testing.T) {
	// confidence above 100 violates the schema; the regex fallback answers.
	p := newTestLLMPlanner(t, &countingQuota{allowed: 10}, func(string) string {
		return `{"personA": "A", "personB": "B", "isValid": true, "confidence": 250}`
	})

	got := p.ParseQuery(context.Background(), "connect Rihanna to Jay Z")
	require.True(t, got.IsValid)
	assert.Equal(t, "Rihanna", got.PersonA)
	assert.Equal(t, "Jay Z", got.PersonB)
}

func TestLLMParseQueryFallsBackOnProse(t *testing.T) {
	p := newTestLLMPlanner(t, &countingQuota{allowed: 10}, func(string) string {
		return "I am sorry, I cannot help with that."
	})

	got := p.ParseQuery(context.Background(), "Zendaya and Tom Holland")
	require.True(t, got.IsValid)
	assert.Equal(t, "Zendaya", got.PersonA)
}

func TestLLMQuotaExhaustedUsesFallbackWithoutCalling(t *testing.T) {
	calls := 0
	quota := &countingQuota{allowed: 0}
	p := newTestLLMPlanner(t, quota, func(string) string {
		calls++
		return `{}`
	})

	got := p.ParseQuery(context.Background(), "connect Adele with Ed Sheeran")
	require.True(t, got.IsValid)
	assert.Equal(t, "Adele", got.PersonA)
	assert.Zero(t, calls)
}

func TestLLMSelectNextExpansionValidated(t *testing.T) {
	in := &SelectionInput{
		Frontier: "Taylor Swift",
		Target:   "Emma Stone",
		Candidates: []*models.Candidate{
			{Name: "Selena Gomez", BestConfidence: 92, CoappearCount: 3},
			{Name: "Blake Lively", BestConfidence: 85, CoappearCount: 1},
		},
	}

	t.Run("valid selection passes through", func(t *testing.T) {
		p := newTestLLMPlanner(t, &countingQuota{allowed: 10}, func(string) string {
			return `{"nextCandidates": ["Selena Gomez"], "searchQueries": ["Selena Gomez Emma Stone"], "stop": false}`
		})
		sel := p.SelectNextExpansion(context.Background(), in)
		assert.Equal(t, []string{"Selena Gomez"}, sel.NextCandidates)
	})

	t.Run("hallucinated candidate falls back to heuristic", func(t *testing.T) {
		p := newTestLLMPlanner(t, &countingQuota{allowed: 10}, func(string) string {
			return `{"nextCandidates": ["Tom Cruise"], "stop": false}`
		})
		sel := p.SelectNextExpansion(context.Background(), in)
		// Heuristic picks the strongest offered candidate.
		assert.Equal(t, []string{"Selena Gomez"}, sel.NextCandidates)
	})
}

func TestLLMSuggestBridgeCandidatesFiltersExcluded(t *testing.T) {
	p := newTestLLMPlanner(t, &countingQuota{allowed: 10}, func(string) string {
		return `[
			{"name": "The Rock", "confidence": 90},
			{"name": "Kevin Hart", "confidence": 85}
		]`
	})

	got := p.SuggestBridgeCandidates(context.Background(), "A", "B", []string{"Dwayne Johnson"})
	require.Len(t, got, 1)
	assert.Equal(t, "Kevin Hart", got[0].Name)
}

func TestLLMSmartQueriesCapped(t *testing.T) {
	p := newTestLLMPlanner(t, &countingQuota{allowed: 10}, func(string) string {
		out, _ := json.Marshal([]string{"q1", "q2", "q3", "q4", "q5", "q6"})
		return string(out)
	})

	got := p.SmartQueries(context.Background(), "A", "B", nil)
	assert.Len(t, got, maxSearchQueries)
}

func TestLLMServerErrorFallsBack(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	}))
	t.Cleanup(server.Close)

	client := llm.NewClient(server.URL, "test-key", "m", "m")
	p := NewLLMPlanner(client, newTestMatcher(), &countingQuota{allowed: 10})

	got := p.ParseQuery(context.Background(), fmt.Sprintf("%s and %s", "Zendaya", "Tom Holland"))
	require.True(t, got.IsValid)
	assert.Equal(t, "Zendaya", got.PersonA)
}
