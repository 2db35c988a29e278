package oracles

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeJPEG returns n bytes starting with the JPEG magic signature.
func fakeJPEG(n int) []byte {
	body := make([]byte, n)
	copy(body, []byte{0xFF, 0xD8, 0xFF})
	return body
}

func TestValidateImageBytes(t *testing.T) {
	png := append([]byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}, make([]byte, 200)...)
	webp := append([]byte("RIFF"), append(make([]byte, 4), []byte("WEBP")...)...)
	webp = append(webp, make([]byte, 200)...)

	tests := []struct {
		name    string
		body    []byte
		wantErr error
	}{
		{name: "valid jpeg", body: fakeJPEG(500)},
		{name: "valid png", body: png},
		{name: "valid gif", body: append([]byte("GIF89a"), make([]byte, 200)...)},
		{name: "valid webp", body: webp},
		{name: "tracking pixel", body: fakeJPEG(50), wantErr: ErrTooSmall},
		{name: "oversized", body: fakeJPEG(maxImageBytes + 1), wantErr: ErrTooLarge},
		{name: "html error page", body: []byte("  <!DOCTYPE html><html><body>404</body></html>" + string(make([]byte, 100))), wantErr: ErrHTMLBody},
		{name: "unknown bytes", body: bytes.Repeat([]byte{0x42}, 200), wantErr: ErrUnknownType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateImageBytes(tt.body)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestFetchSetsBrowserHeaders(t *testing.T) {
	var gotUA, gotReferer string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotReferer = r.Header.Get("Referer")
		_, _ = w.Write(fakeJPEG(500))
	}))
	defer server.Close()

	f := NewFetcher()
	body, err := f.Fetch(context.Background(), server.URL+"/img.jpg")
	require.NoError(t, err)
	assert.Len(t, body, 500)
	assert.Contains(t, gotUA, "Mozilla/5.0")
	assert.Equal(t, server.URL+"/", gotReferer)
}

func TestFetchRejectsNon200(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer server.Close()

	f := NewFetcher()
	_, err := f.Fetch(context.Background(), server.URL)
	assert.Error(t, err)
}

func TestFetchRejectsHTMLBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html><head><title>image</title></head><body>" + string(make([]byte, 200)) + "</body></html>"))
	}))
	defer server.Close()

	f := NewFetcher()
	_, err := f.Fetch(context.Background(), server.URL)
	assert.ErrorIs(t, err, ErrHTMLBody)
}

func TestSniffImageType(t *testing.T) {
	assert.Equal(t, "jpeg", sniffImageType(fakeJPEG(10)))
	assert.Equal(t, "gif", sniffImageType([]byte("GIF87a......")))
	assert.Equal(t, "", sniffImageType([]byte("plain text")))
}

func TestRefererFor(t *testing.T) {
	assert.Equal(t, "https://example.com/", refererFor("https://www.example.com/a/b.jpg"))
	assert.Equal(t, "http://example.com/", refererFor("http://example.com/b.jpg"))
	assert.Equal(t, "", refererFor("://bad"))
}
