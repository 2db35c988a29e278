package oracles

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/snapgraph/snapgraph/pkg/llm"
	"github.com/snapgraph/snapgraph/pkg/models"
)

const visionTimeout = 30 * time.Second

const singleScenePrompt = `Look at this image and decide whether it is ONE single photographic scene.
Answer "valid": false for collages, split-screens, magazine covers with insets,
side-by-side composites, or any image stitched from multiple photos.
Respond with only a JSON object: {"valid": true|false, "reason": "<short reason>"}`

// LLMVisionFilter implements VisionFilter by asking the vision model whether
// an image is a single scene.
type LLMVisionFilter struct {
	client *llm.Client
}

var _ VisionFilter = (*LLMVisionFilter)(nil)

// NewLLMVisionFilter creates the vision scene filter.
func NewLLMVisionFilter(client *llm.Client) *LLMVisionFilter {
	return &LLMVisionFilter{client: client}
}

// IsSingleScene implements VisionFilter.
func (v *LLMVisionFilter) IsSingleScene(ctx context.Context, imageURL string) (*models.SceneCheck, error) {
	ctx, cancel := context.WithTimeout(ctx, visionTimeout)
	defer cancel()

	reply, err := v.client.CompleteVision(ctx, []llm.Message{
		llm.VisionMessage(singleScenePrompt, imageURL),
	})
	if err != nil {
		return nil, fmt.Errorf("vision filter call failed: %w", err)
	}

	block := firstJSONObject(reply)
	if block == "" {
		return nil, fmt.Errorf("vision filter reply has no JSON object")
	}

	var check models.SceneCheck
	if err := json.Unmarshal([]byte(block), &check); err != nil {
		return nil, fmt.Errorf("failed to decode vision filter reply: %w", err)
	}
	return &check, nil
}

// firstJSONObject returns the first balanced {...} block in s, or "".
func firstJSONObject(s string) string {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}
