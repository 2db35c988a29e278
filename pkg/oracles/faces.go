package oracles

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/snapgraph/snapgraph/pkg/models"
)

const recognizeTimeout = 20 * time.Second

// HTTPFaceRecognizer implements FaceRecognizer against a celebrity-recognition
// HTTP endpoint that accepts an image URL and returns named detections.
type HTTPFaceRecognizer struct {
	apiURL     string
	apiKey     string
	httpClient *http.Client
}

var _ FaceRecognizer = (*HTTPFaceRecognizer)(nil)

// NewHTTPFaceRecognizer creates the recognition client.
func NewHTTPFaceRecognizer(apiURL, apiKey string) *HTTPFaceRecognizer {
	return &HTTPFaceRecognizer{
		apiURL:     apiURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: recognizeTimeout},
	}
}

type recognizeRequest struct {
	ImageURL string `json:"imageUrl"`
}

type recognizeResponse struct {
	Celebrities []struct {
		Name       string  `json:"name"`
		Confidence float64 `json:"confidence"`
		Box        *struct {
			Left   float64 `json:"left"`
			Top    float64 `json:"top"`
			Width  float64 `json:"width"`
			Height float64 `json:"height"`
		} `json:"boundingBox"`
	} `json:"celebrities"`
	Error string `json:"error,omitempty"`
}

// Recognize implements FaceRecognizer.
func (r *HTTPFaceRecognizer) Recognize(ctx context.Context, imageURL string) ([]models.Detection, error) {
	payload, err := json.Marshal(recognizeRequest{ImageURL: imageURL})
	if err != nil {
		return nil, fmt.Errorf("failed to encode recognition request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.apiURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build recognition request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if r.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.apiKey)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("recognition request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read recognition response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("recognition endpoint returned %d", resp.StatusCode)
	}

	var out recognizeResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("failed to decode recognition response: %w", err)
	}
	if out.Error != "" {
		return nil, fmt.Errorf("recognition endpoint error: %s", out.Error)
	}

	detections := make([]models.Detection, 0, len(out.Celebrities))
	for _, c := range out.Celebrities {
		if c.Name == "" {
			continue
		}
		d := models.Detection{Name: c.Name, Confidence: clampConfidence(c.Confidence)}
		if c.Box != nil {
			d.Box = &models.BoundingBox{
				Left: c.Box.Left, Top: c.Box.Top,
				Width: c.Box.Width, Height: c.Box.Height,
			}
		}
		detections = append(detections, d)
	}
	return detections, nil
}

// clampConfidence forces a confidence into [0,100]. Some providers report
// [0,1] fractions; those are scaled up.
func clampConfidence(v float64) float64 {
	if v > 0 && v <= 1 {
		v *= 100
	}
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
