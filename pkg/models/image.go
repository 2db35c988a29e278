package models

// ImageResult is one hit returned by web image search.
type ImageResult struct {
	ImageURL     string `json:"imageUrl"`
	ThumbnailURL string `json:"thumbnailUrl,omitempty"`
	ContextURL   string `json:"contextUrl,omitempty"`
	Title        string `json:"title,omitempty"`
}

// BoundingBox locates a detected face within an image, in relative [0,1]
// coordinates.
type BoundingBox struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Detection is one recognized face with its confidence in [0,100].
type Detection struct {
	Name       string       `json:"name"`
	Confidence float64      `json:"confidence"`
	Box        *BoundingBox `json:"box,omitempty"`
}

// SceneCheck is the vision filter's verdict on whether an image is a single
// photographic scene rather than a collage or composite.
type SceneCheck struct {
	Valid  bool   `json:"valid"`
	Reason string `json:"reason,omitempty"`
}

// AnalysisStatus classifies the outcome of analyzing one candidate image.
type AnalysisStatus string

const (
	// AnalysisCollage means the vision filter rejected the image as a
	// composite of multiple scenes.
	AnalysisCollage AnalysisStatus = "collage"
	// AnalysisNoMatch means the required people were not confidently
	// recognized together.
	AnalysisNoMatch AnalysisStatus = "no_match"
	// AnalysisEvidence means both targets were recognized at or above the
	// confidence threshold.
	AnalysisEvidence AnalysisStatus = "evidence"
	// AnalysisError means fetching or analyzing the image failed.
	AnalysisError AnalysisStatus = "error"
)

// ImageAnalysis is the full outcome of running one image through the
// verification pipeline.
type ImageAnalysis struct {
	Image      ImageResult    `json:"image"`
	Status     AnalysisStatus `json:"status"`
	Reason     string         `json:"reason,omitempty"`
	Detections []Detection    `json:"detections,omitempty"`
	// Score is min(confidence A, confidence B) when Status is evidence.
	Score float64 `json:"score,omitempty"`
}

// ImageEvidence is an accepted image supporting an edge.
type ImageEvidence struct {
	ImageURL     string  `json:"imageUrl"`
	ThumbnailURL string  `json:"thumbnailUrl,omitempty"`
	ContextURL   string  `json:"contextUrl,omitempty"`
	Title        string  `json:"title,omitempty"`
	Score        float64 `json:"score"`
}

// VerifiedEdge is the result of a successful pairwise verification. Its
// confidence is the maximum image score across the gathered evidence.
type VerifiedEdge struct {
	PersonA    string          `json:"personA"`
	PersonB    string          `json:"personB"`
	Confidence float64         `json:"confidence"`
	Evidence   []ImageEvidence `json:"evidence"`
	Best       ImageEvidence   `json:"best"`
}

// Candidate is an aggregated bridge candidate discovered at the current
// frontier.
type Candidate struct {
	Name           string   `json:"name"`
	CoappearCount  int      `json:"coappearCount"`
	BestConfidence float64  `json:"bestConfidence"`
	ContextURLs    []string `json:"contextUrls,omitempty"`
}
