// Package media implements the image collaborator: attachment download and
// dimension extraction.
package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"net/http"
	"time"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"
)

// maxDownloadBytes caps a single attachment read; Discord attachments are
// well below this.
const maxDownloadBytes = 64 << 20

// ErrUnexpectedStatus reports a non-2xx response for an attachment download.
var ErrUnexpectedStatus = errors.New("media: unexpected response status")

// FetcherConfig carries the dependencies for NewFetcher.
type FetcherConfig struct {
	Client *http.Client
}

// Fetcher downloads attachment bytes over HTTP.
type Fetcher struct {
	client *http.Client
}

// NewFetcher returns a Fetcher, defaulting to a client with a 30s timeout.
func NewFetcher(cfg FetcherConfig) *Fetcher {
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Fetcher{client: client}
}

// Download fetches the resource at url and returns its raw bytes.
func (f *Fetcher) Download(ctx context.Context, url string) ([]byte, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build download request: %w", err)
	}

	response, err := f.client.Do(request)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", url, err)
	}
	defer response.Body.Close()

	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("%w: %d from %s", ErrUnexpectedStatus, response.StatusCode, url)
	}

	data, err := io.ReadAll(io.LimitReader(response.Body, maxDownloadBytes))
	if err != nil {
		return nil, fmt.Errorf("read download body: %w", err)
	}
	return data, nil
}

// Dimensions probes the pixel width and height of encoded image data
// without decoding the pixels. PNG, JPEG, GIF and WebP are registered.
func Dimensions(data []byte) (int, int, error) {
	config, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, fmt.Errorf("media: decode image config: %w", err)
	}
	return config.Width, config.Height, nil
}
