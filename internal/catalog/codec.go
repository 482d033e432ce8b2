package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fotogalerie/gallerybot/internal/stream"
)

const (
	defaultMaxResolution = 2048
	imageContentPrefix   = "image/"
)

var (
	errMissingDownloader = errors.New("catalog: downloader is required")
	errMissingDimensions = errors.New("catalog: dimension probe is required")
)

// Downloader fetches raw attachment bytes.
type Downloader interface {
	Download(ctx context.Context, url string) ([]byte, error)
}

// DimensionProbe extracts pixel dimensions from encoded image data.
type DimensionProbe func(data []byte) (width, height int, err error)

// CodecConfig carries the dependencies for NewCodec.
type CodecConfig struct {
	Downloader Downloader
	Dimensions DimensionProbe
	// MaxResolution bounds the display variant requested from the CDN.
	MaxResolution int
}

// Codec builds catalog entries from raw attachments. Downloading and
// decoding is the most expensive and fallible step of the pipeline; Build
// failures are per-attachment and must not stop the caller from processing
// sibling attachments.
type Codec struct {
	downloader    Downloader
	dimensions    DimensionProbe
	maxResolution int
}

// NewCodec validates the configuration and returns a Codec.
func NewCodec(cfg CodecConfig) (*Codec, error) {
	if cfg.Downloader == nil {
		return nil, errMissingDownloader
	}
	if cfg.Dimensions == nil {
		return nil, errMissingDimensions
	}
	maxResolution := cfg.MaxResolution
	if maxResolution <= 0 {
		maxResolution = defaultMaxResolution
	}
	return &Codec{
		downloader:    cfg.Downloader,
		dimensions:    cfg.Dimensions,
		maxResolution: maxResolution,
	}, nil
}

// Build assembles a catalog entry for one attachment. The skip result is
// true when the attachment is not an image; no entry is produced and no
// error is raised. Any other failure is recoverable: the caller logs it and
// moves on to the next attachment.
func (c *Codec) Build(ctx context.Context, attachment stream.Attachment, message stream.Message) (Entry, bool, error) {
	if !strings.HasPrefix(attachment.ContentType, imageContentPrefix) {
		return Entry{}, true, nil
	}

	displayURL := resizedDisplayURL(attachment.URL, c.maxResolution)

	data, err := c.downloader.Download(ctx, displayURL)
	if err != nil {
		return Entry{}, false, fmt.Errorf("download %s: %w", attachment.URL, err)
	}

	width, height, err := c.dimensions(data)
	if err != nil {
		return Entry{}, false, fmt.Errorf("probe dimensions of %s: %w", attachment.URL, err)
	}

	capturedAt := ResolveCapture(attachment.Filename, attachment.URL, message.CreatedAt)

	entry := Entry{
		SourceURL:         attachment.URL,
		DisplayURL:        displayURL,
		Filename:          attachment.Filename,
		SourceMessageID:   message.ID,
		SourceMessageURL:  message.URL(),
		ByteSize:          int64(len(data)),
		CapturedAt:        capturedAt,
		CapturedAtDisplay: CaptureDisplay(capturedAt),
		Width:             width,
		Height:            height,
	}
	if err := entry.Validate(); err != nil {
		return Entry{}, false, err
	}
	return entry, false, nil
}

// resizedDisplayURL bounds the resolution of Discord CDN attachments.
// CDN URLs always carry a query string, so the parameters are appended with
// an ampersand the same way the upstream gallery did.
func resizedDisplayURL(sourceURL string, maxResolution int) string {
	if strings.Contains(sourceURL, "media.discordapp.net") || strings.Contains(sourceURL, "cdn.discordapp.com") {
		return fmt.Sprintf("%s&width=%d&height=%d", sourceURL, maxResolution, maxResolution)
	}
	return sourceURL
}
