package media

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"
)

func encodePNG(t *testing.T, width, height int) []byte {
	t.Helper()
	var buffer bytes.Buffer
	if err := png.Encode(&buffer, image.NewRGBA(image.Rect(0, 0, width, height))); err != nil {
		t.Fatalf("failed to encode test image: %v", err)
	}
	return buffer.Bytes()
}

func TestDownloadReturnsBody(t *testing.T) {
	payload := []byte("attachment-bytes")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(payload)
	}))
	defer server.Close()

	fetcher := NewFetcher(FetcherConfig{})
	data, err := fetcher.Download(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("unexpected download error: %v", err)
	}
	if !bytes.Equal(data, payload) {
		t.Fatalf("unexpected body: %q", data)
	}
}

func TestDownloadRejectsErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	fetcher := NewFetcher(FetcherConfig{})
	if _, err := fetcher.Download(context.Background(), server.URL); !errors.Is(err, ErrUnexpectedStatus) {
		t.Fatalf("expected ErrUnexpectedStatus, got %v", err)
	}
}

func TestDimensionsProbesPNG(t *testing.T) {
	data := encodePNG(t, 320, 200)

	width, height, err := Dimensions(data)
	if err != nil {
		t.Fatalf("unexpected probe error: %v", err)
	}
	if width != 320 || height != 200 {
		t.Fatalf("unexpected dimensions: %dx%d", width, height)
	}
}

func TestDimensionsRejectsGarbage(t *testing.T) {
	if _, _, err := Dimensions([]byte("not an image")); err == nil {
		t.Fatalf("expected decode error for non-image data")
	}
}
