package candidates

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snapgraph/snapgraph/pkg/models"
)

func analysis(contextURL string, detections ...models.Detection) *models.ImageAnalysis {
	return &models.ImageAnalysis{
		Image:      models.ImageResult{ImageURL: "https://img.example/" + contextURL, ContextURL: contextURL},
		Status:     models.AnalysisEvidence,
		Detections: detections,
	}
}

func TestAggregator_CreditsCoappearances(t *testing.T) {
	agg := NewAggregator(testMatcher(), 80)

	analyses := []*models.ImageAnalysis{
		analysis("https://ctx/1",
			models.Detection{Name: "Donald Trump", Confidence: 95},
			models.Detection{Name: "Kanye West", Confidence: 91},
		),
		analysis("https://ctx/2",
			models.Detection{Name: "Donald Trump", Confidence: 88},
			models.Detection{Name: "Kanye West", Confidence: 85},
			models.Detection{Name: "Kim Kardashian", Confidence: 93},
		),
	}

	out := agg.Collect("Donald Trump", nil, analyses)
	require.Len(t, out, 2)

	// Kim leads on best confidence, then Kanye on count.
	assert.Equal(t, "Kim Kardashian", out[0].Name)
	assert.Equal(t, float64(93), out[0].BestConfidence)
	assert.Equal(t, 1, out[0].CoappearCount)

	assert.Equal(t, "Kanye West", out[1].Name)
	assert.Equal(t, float64(91), out[1].BestConfidence)
	assert.Equal(t, 2, out[1].CoappearCount)
	assert.Equal(t, []string{"https://ctx/1", "https://ctx/2"}, out[1].ContextURLs)
}

func TestAggregator_RequiresFrontierAtThreshold(t *testing.T) {
	agg := NewAggregator(testMatcher(), 80)

	// Frontier below threshold: the image contributes nothing.
	out := agg.Collect("Donald Trump", nil, []*models.ImageAnalysis{
		analysis("https://ctx/1",
			models.Detection{Name: "Donald Trump", Confidence: 79},
			models.Detection{Name: "Kanye West", Confidence: 99},
		),
	})
	assert.Empty(t, out)

	// Exactly at threshold counts.
	out = agg.Collect("Donald Trump", nil, []*models.ImageAnalysis{
		analysis("https://ctx/1",
			models.Detection{Name: "Donald Trump", Confidence: 80},
			models.Detection{Name: "Kanye West", Confidence: 80},
		),
	})
	require.Len(t, out, 1)
	assert.Equal(t, "Kanye West", out[0].Name)
}

func TestAggregator_ExcludesFrontierAndPathMembers(t *testing.T) {
	agg := NewAggregator(testMatcher(), 80)

	out := agg.Collect("Donald Trump", []string{"Barack Obama"}, []*models.ImageAnalysis{
		analysis("https://ctx/1",
			models.Detection{Name: "Donald Trump", Confidence: 95},
			// Name variant of the frontier must not become a candidate.
			models.Detection{Name: "Trump Donald", Confidence: 92},
			// Path member, by subset match.
			models.Detection{Name: "Barack Hussein Obama", Confidence: 96},
			models.Detection{Name: "Kanye West", Confidence: 90},
		),
	})

	require.Len(t, out, 1)
	assert.Equal(t, "Kanye West", out[0].Name)
}

func TestAggregator_DeduplicatesNameVariants(t *testing.T) {
	agg := NewAggregator(testMatcher(), 80)

	out := agg.Collect("Donald Trump", nil, []*models.ImageAnalysis{
		analysis("https://ctx/1",
			models.Detection{Name: "Donald Trump", Confidence: 95},
			models.Detection{Name: "Kanye West", Confidence: 84},
		),
		analysis("https://ctx/2",
			models.Detection{Name: "Donald Trump", Confidence: 95},
			models.Detection{Name: "West Kanye", Confidence: 90},
		),
	})

	require.Len(t, out, 1)
	assert.Equal(t, 2, out[0].CoappearCount)
	assert.Equal(t, float64(90), out[0].BestConfidence)
}

func TestAggregator_IgnoresLowConfidenceCoappearances(t *testing.T) {
	agg := NewAggregator(testMatcher(), 80)

	out := agg.Collect("Donald Trump", nil, []*models.ImageAnalysis{
		analysis("https://ctx/1",
			models.Detection{Name: "Donald Trump", Confidence: 95},
			models.Detection{Name: "Kanye West", Confidence: 79},
		),
	})
	assert.Empty(t, out)
}
