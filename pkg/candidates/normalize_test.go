package candidates

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"lowercases", "Barack Obama", "barack obama"},
		{"collapses whitespace", "  Barack   Obama ", "barack obama"},
		{"strips diacritics", "Beyoncé", "beyonce"},
		{"strips diacritics in composed names", "Pénelope Cruz", "penelope cruz"},
		{"removes jr suffix", "Robert Downey Jr", "robert downey"},
		{"removes dotted jr suffix", "Robert Downey Jr.", "robert downey"},
		{"removes roman numeral suffix", "John Paul III", "john paul"},
		{"keeps single token", "Madonna", "madonna"},
		{"suffix-only name is kept", "Jr", "jr"},
		{"empty input", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Normalize(tt.input))
		})
	}
}

func TestNodeID_PureFunctionOfNormalizedName(t *testing.T) {
	// Spellings that normalize equally must produce the same node id.
	assert.Equal(t, NodeID("Beyoncé"), NodeID("beyonce"))
	assert.Equal(t, NodeID("  Barack  Obama "), NodeID("Barack Obama"))
	assert.Equal(t, NodeID("Robert Downey Jr."), NodeID("Robert Downey"))
	assert.NotEqual(t, NodeID("Barack Obama"), NodeID("Michelle Obama"))
}
