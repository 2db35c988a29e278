package planner

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snapgraph/snapgraph/pkg/candidates"
	"github.com/snapgraph/snapgraph/pkg/models"
)

func newTestMatcher() *candidates.Matcher {
	return candidates.NewMatcher(map[string][]string{
		"Dwayne Johnson": {"The Rock"},
	})
}

func TestFallbackParseQuery(t *testing.T) {
	p := NewFallbackPlanner(newTestMatcher())
	ctx := context.Background()

	tests := []struct {
		name    string
		query   string
		personA string
		personB string
		valid   bool
	}{
		{
			name:    "how is connected to",
			query:   "How is Taylor Swift connected to Emma Stone?",
			personA: "Taylor Swift",
			personB: "Emma Stone",
			valid:   true,
		},
		{
			name:    "connect X to Y",
			query:   "connect Rihanna to Jay Z",
			personA: "Rihanna",
			personB: "Jay Z",
			valid:   true,
		},
		{
			name:    "connect X with Y",
			query:   "Connect Adele with Ed Sheeran",
			personA: "Adele",
			personB: "Ed Sheeran",
			valid:   true,
		},
		{
			name:    "bare X and Y",
			query:   "Zendaya and Tom Holland",
			personA: "Zendaya",
			personB: "Tom Holland",
			valid:   true,
		},
		{
			name:  "single person",
			query: "Beyonce",
			valid: false,
		},
		{
			name:  "same person twice",
			query: "Adele and ADELE",
			valid: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := p.ParseQuery(ctx, tt.query)
			assert.Equal(t, tt.valid, got.IsValid)
			if tt.valid {
				assert.Equal(t, tt.personA, got.PersonA)
				assert.Equal(t, tt.personB, got.PersonB)
			}
		})
	}
}

func TestFallbackSelectNextExpansion(t *testing.T) {
	p := NewFallbackPlanner(newTestMatcher())

	in := &SelectionInput{
		Frontier: "Taylor Swift",
		Target:   "Emma Stone",
		Candidates: []*models.Candidate{
			{Name: "The Rock", BestConfidence: 95, CoappearCount: 3},
			{Name: "Selena Gomez", BestConfidence: 88, CoappearCount: 2},
		},
		// Alias spelling: the fallback must recognize the failed candidate.
		FailedCandidates: []string{"Dwayne Johnson"},
	}

	sel := p.SelectNextExpansion(context.Background(), in)
	require.False(t, sel.Stop)
	assert.Equal(t, []string{"Selena Gomez"}, sel.NextCandidates)
	assert.NotEmpty(t, sel.SearchQueries)
}

func TestFallbackSelectStopsWhenAllFailed(t *testing.T) {
	p := NewFallbackPlanner(newTestMatcher())

	in := &SelectionInput{
		Frontier:         "A",
		Target:           "B",
		Candidates:       []*models.Candidate{{Name: "Someone"}},
		FailedCandidates: []string{"Someone"},
	}

	sel := p.SelectNextExpansion(context.Background(), in)
	assert.True(t, sel.Stop)
}

func TestValidateSelection(t *testing.T) {
	m := newTestMatcher()
	offered := []*models.Candidate{
		{Name: "Dwayne Johnson"},
		{Name: "Selena Gomez"},
	}

	t.Run("accepts alias spellings of offered candidates", func(t *testing.T) {
		sel := &Selection{NextCandidates: []string{"The Rock"}}
		assert.NoError(t, ValidateSelection(m, sel, offered))
	})

	t.Run("rejects unknown candidates", func(t *testing.T) {
		sel := &Selection{NextCandidates: []string{"Tom Cruise"}}
		assert.Error(t, ValidateSelection(m, sel, offered))
	})

	t.Run("rejects empty non-stop selection", func(t *testing.T) {
		assert.Error(t, ValidateSelection(m, &Selection{}, offered))
	})

	t.Run("accepts stop without candidates", func(t *testing.T) {
		assert.NoError(t, ValidateSelection(m, &Selection{Stop: true}, offered))
	})

	t.Run("rejects too many candidates", func(t *testing.T) {
		sel := &Selection{NextCandidates: []string{"Dwayne Johnson", "Selena Gomez", "Dwayne Johnson"}}
		assert.Error(t, ValidateSelection(m, sel, offered))
	})

	t.Run("truncates excess search queries", func(t *testing.T) {
		sel := &Selection{
			NextCandidates: []string{"Selena Gomez"},
			SearchQueries:  []string{"q1", "q2", "q3", "q4", "q5", "q6"},
		}
		require.NoError(t, ValidateSelection(m, sel, offered))
		assert.Len(t, sel.SearchQueries, maxSearchQueries)
	})
}
