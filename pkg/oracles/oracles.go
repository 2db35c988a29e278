// Package oracles holds the HTTP clients for the three external services an
// investigation composes: web image search, face recognition, and the vision
// scene filter, plus the image pre-flight fetcher that guards them.
package oracles

import (
	"context"

	"github.com/snapgraph/snapgraph/pkg/models"
)

// ImageSearch finds candidate photographs for a text query.
type ImageSearch interface {
	Search(ctx context.Context, query string) ([]models.ImageResult, error)
}

// FaceRecognizer identifies public figures in an image.
type FaceRecognizer interface {
	Recognize(ctx context.Context, imageURL string) ([]models.Detection, error)
}

// VisionFilter decides whether an image is a single photographic scene.
// Collages and composites must be rejected before recognition results can
// count as co-presence evidence.
type VisionFilter interface {
	IsSingleScene(ctx context.Context, imageURL string) (*models.SceneCheck, error)
}
