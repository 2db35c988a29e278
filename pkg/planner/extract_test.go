package planner

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractJSONBlock(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "bare object",
			input:    `{"a":1}`,
			expected: `{"a":1}`,
		},
		{
			name:     "object wrapped in prose",
			input:    "Sure! Here is the result:\n{\"a\": 1}\nLet me know if you need more.",
			expected: `{"a": 1}`,
		},
		{
			name:     "markdown fence",
			input:    "```json\n{\"isValid\": true}\n```",
			expected: `{"isValid": true}`,
		},
		{
			name:     "nested objects",
			input:    `prefix {"outer": {"inner": [1, 2]}} suffix`,
			expected: `{"outer": {"inner": [1, 2]}}`,
		},
		{
			name:     "array before object",
			input:    `["a", "b"] and then {"c": 1}`,
			expected: `["a", "b"]`,
		},
		{
			name:     "braces inside strings ignored",
			input:    `{"text": "a } inside \" quotes {"}`,
			expected: `{"text": "a } inside \" quotes {"}`,
		},
		{
			name:     "unbalanced returns empty",
			input:    `{"a": 1`,
			expected: "",
		},
		{
			name:     "no json at all",
			input:    "I could not produce a structured answer.",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ExtractJSONBlock(tt.input))
		})
	}
}
