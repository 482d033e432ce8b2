package catalog

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidSourceURL indicates that an entry is missing its canonical origin locator.
	ErrInvalidSourceURL = errors.New("catalog: invalid source url")
	// ErrInvalidCapture indicates that an entry is missing its capture instant.
	ErrInvalidCapture = errors.New("catalog: invalid capture instant")
	// ErrInvalidByteSize indicates a negative attachment size.
	ErrInvalidByteSize = errors.New("catalog: invalid byte size")
	// ErrInvalidDimensions indicates negative pixel dimensions.
	ErrInvalidDimensions = errors.New("catalog: invalid dimensions")
)

// Entry is one catalog record for a distinct image source. The JSON field
// names are the wire contract with the serving layer and the persisted
// gallery document; do not rename them.
type Entry struct {
	SourceURL         string `json:"sourceUrl"`
	DisplayURL        string `json:"displayUrl"`
	Filename          string `json:"filename"`
	SourceMessageID   string `json:"sourceMessageId"`
	SourceMessageURL  string `json:"sourceMessageUrl"`
	ByteSize          int64  `json:"byteSize"`
	CapturedAt        int64  `json:"capturedAt"`
	CapturedAtDisplay string `json:"capturedAtDisplay"`
	Width             int    `json:"width"`
	Height            int    `json:"height"`
}

// Validate reports whether the entry satisfies the store invariants.
func (e Entry) Validate() error {
	if strings.TrimSpace(e.SourceURL) == "" {
		return fmt.Errorf("%w: empty", ErrInvalidSourceURL)
	}
	if e.CapturedAt <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidCapture, e.CapturedAt)
	}
	if e.ByteSize < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidByteSize, e.ByteSize)
	}
	if e.Width < 0 || e.Height < 0 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, e.Width, e.Height)
	}
	return nil
}
