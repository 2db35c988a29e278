package oracles

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// minImageBytes rejects tracking pixels and error stubs.
	minImageBytes = 100
	// maxImageBytes caps the download so a hostile host cannot exhaust memory.
	maxImageBytes = 10 << 20

	fetchTimeout = 15 * time.Second

	// browserUserAgent makes image hosts serve us what they serve browsers.
	browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0 Safari/537.36"
)

// Pre-flight rejection reasons.
var (
	ErrTooSmall    = errors.New("image body is too small")
	ErrTooLarge    = errors.New("image body exceeds size limit")
	ErrHTMLBody    = errors.New("body looks like an HTML page, not an image")
	ErrUnknownType = errors.New("unrecognized image magic bytes")
)

// Fetcher downloads candidate images and rejects anything that is not a real
// photograph before the expensive oracles see it.
type Fetcher struct {
	httpClient *http.Client
}

// NewFetcher creates a Fetcher with the pre-flight timeout.
func NewFetcher() *Fetcher {
	return &Fetcher{httpClient: &http.Client{Timeout: fetchTimeout}}
}

// Fetch downloads the image and validates it: size bounds, not HTML, and a
// recognized magic-byte signature (JPEG/PNG/GIF/WEBP). The validated bytes are
// returned so callers can reuse them.
func (f *Fetcher) Fetch(ctx context.Context, imageURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build image request: %w", err)
	}
	req.Header.Set("User-Agent", browserUserAgent)
	req.Header.Set("Accept", "image/avif,image/webp,image/apng,image/*,*/*;q=0.8")
	if ref := refererFor(imageURL); ref != "" {
		req.Header.Set("Referer", ref)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("image host returned %d", resp.StatusCode)
	}

	// Read one byte past the limit to distinguish "exactly at" from "over".
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read image body: %w", err)
	}

	if err := ValidateImageBytes(body); err != nil {
		return nil, err
	}
	return body, nil
}

// ValidateImageBytes applies the pre-flight checks to an already-downloaded
// body.
func ValidateImageBytes(body []byte) error {
	if len(body) < minImageBytes {
		return ErrTooSmall
	}
	if len(body) > maxImageBytes {
		return ErrTooLarge
	}
	if looksLikeHTML(body) {
		return ErrHTMLBody
	}
	if sniffImageType(body) == "" {
		return ErrUnknownType
	}
	return nil
}

// sniffImageType returns the detected image format or "" when the magic bytes
// match none of the accepted types.
func sniffImageType(body []byte) string {
	switch {
	case len(body) >= 3 && bytes.Equal(body[:3], []byte{0xFF, 0xD8, 0xFF}):
		return "jpeg"
	case len(body) >= 8 && bytes.Equal(body[:8], []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}):
		return "png"
	case len(body) >= 6 && (bytes.Equal(body[:6], []byte("GIF87a")) || bytes.Equal(body[:6], []byte("GIF89a"))):
		return "gif"
	case len(body) >= 12 && bytes.Equal(body[:4], []byte("RIFF")) && bytes.Equal(body[8:12], []byte("WEBP")):
		return "webp"
	}
	return ""
}

func looksLikeHTML(body []byte) bool {
	head := body
	if len(head) > 512 {
		head = head[:512]
	}
	trimmed := bytes.TrimLeft(head, " \t\r\n")
	lower := bytes.ToLower(trimmed)
	return bytes.HasPrefix(lower, []byte("<!doctype")) ||
		bytes.HasPrefix(lower, []byte("<html")) ||
		bytes.Contains(lower, []byte("<head")) ||
		bytes.Contains(lower, []byte("<body"))
}

// refererFor derives a plausible Referer from the image URL's own host.
func refererFor(imageURL string) string {
	u, err := url.Parse(imageURL)
	if err != nil || u.Host == "" {
		return ""
	}
	scheme := u.Scheme
	if scheme == "" {
		scheme = "https"
	}
	return scheme + "://" + strings.TrimPrefix(u.Host, "www.") + "/"
}
