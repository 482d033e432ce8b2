package reconcile

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fotogalerie/gallerybot/internal/catalog"
	"github.com/fotogalerie/gallerybot/internal/stream"
)

const defaultBatchSize = 100

// ScannerConfig carries the dependencies for NewScanner.
type ScannerConfig struct {
	History   stream.History
	Store     *catalog.Store
	Codec     *catalog.Codec
	Marker    stream.Marker
	Markers   Markers
	BatchSize int
	Logger    *zap.Logger
}

// Scanner pages backward through the full channel history and feeds the
// catalog store. The sweep is idempotent: already-known source URLs are only
// re-marked processed and never re-downloaded.
type Scanner struct {
	history   stream.History
	store     *catalog.Store
	codec     *catalog.Codec
	marker    stream.Marker
	markers   Markers
	batchSize int
	logger    *zap.Logger
}

// NewScanner validates the configuration and returns a Scanner.
func NewScanner(cfg ScannerConfig) (*Scanner, error) {
	if cfg.History == nil {
		return nil, errMissingHistory
	}
	if cfg.Store == nil {
		return nil, errMissingStore
	}
	if cfg.Codec == nil {
		return nil, errMissingCodec
	}
	if cfg.Marker == nil {
		return nil, errMissingMarker
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Scanner{
		history:   cfg.History,
		store:     cfg.Store,
		codec:     cfg.Codec,
		marker:    cfg.Marker,
		markers:   cfg.Markers,
		batchSize: batchSize,
		logger:    logger,
	}, nil
}

// Scan walks the channel history in reverse-chronological batches until an
// empty batch terminates the sweep. It returns the number of entries newly
// added to the catalog. Per-attachment errors are logged and skipped; only
// a failed history fetch aborts the sweep.
func (s *Scanner) Scan(ctx context.Context, channelID string) (int, error) {
	sweepID := uuid.NewString()
	logger := s.logger.With(zap.String("sweep_id", sweepID), zap.String("channel_id", channelID))
	logger.Info("backfill sweep starting")

	processed := 0
	before := ""
	for {
		messages, err := s.history.Messages(ctx, channelID, s.batchSize, before)
		if err != nil {
			return processed, fmt.Errorf("fetch history batch before %q: %w", before, err)
		}
		if len(messages) == 0 {
			break
		}

		for _, message := range messages {
			for _, attachment := range message.Attachments {
				if !isImage(attachment) {
					continue
				}

				// A restart may find reactions applied by a previous run
				// with no live-session memory behind them; the known-URL
				// path only repairs the marker.
				if s.store.ContainsURL(attachment.URL) {
					if err := markProcessed(ctx, s.marker, s.markers, message); err != nil {
						logger.Warn("processed marker apply failed",
							zap.String("message_id", message.ID),
							zap.Error(err))
					}
					continue
				}

				entry, skip, err := s.codec.Build(ctx, attachment, message)
				if skip {
					continue
				}
				if err != nil {
					logger.Error("historical attachment failed",
						zap.String("source_url", attachment.URL),
						zap.String("message_id", message.ID),
						zap.Error(err))
					continue
				}

				if err := s.store.Upsert(entry); err != nil {
					logger.Error("catalog upsert failed",
						zap.String("source_url", entry.SourceURL),
						zap.Error(err))
					continue
				}

				if err := markProcessed(ctx, s.marker, s.markers, message); err != nil {
					logger.Warn("processed marker apply failed",
						zap.String("message_id", message.ID),
						zap.Error(err))
				}
				processed++
			}
		}

		before = messages[len(messages)-1].ID
	}

	logger.Info("backfill sweep complete", zap.Int("processed", processed))
	return processed, nil
}
