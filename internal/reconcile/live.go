package reconcile

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/fotogalerie/gallerybot/internal/catalog"
	"github.com/fotogalerie/gallerybot/internal/config"
	"github.com/fotogalerie/gallerybot/internal/stream"
)

var (
	errMissingStore    = errors.New("reconcile: catalog store is required")
	errMissingCodec    = errors.New("reconcile: entry codec is required")
	errMissingMarker   = errors.New("reconcile: marker client is required")
	errMissingHistory  = errors.New("reconcile: history client is required")
	errMissingChannels = errors.New("reconcile: channel configuration is required")
	noOpLogger         = zap.NewNop()
)

// IngestorConfig carries the dependencies for NewIngestor.
type IngestorConfig struct {
	Store    *catalog.Store
	Codec    *catalog.Codec
	Marker   stream.Marker
	Markers  Markers
	Channels *config.Channels
	Logger   *zap.Logger
}

// Ingestor consumes message-created events from the photo channel and feeds
// the catalog store.
type Ingestor struct {
	store    *catalog.Store
	codec    *catalog.Codec
	marker   stream.Marker
	markers  Markers
	channels *config.Channels
	logger   *zap.Logger
}

// NewIngestor validates the configuration and returns an Ingestor.
func NewIngestor(cfg IngestorConfig) (*Ingestor, error) {
	if cfg.Store == nil {
		return nil, errMissingStore
	}
	if cfg.Codec == nil {
		return nil, errMissingCodec
	}
	if cfg.Marker == nil {
		return nil, errMissingMarker
	}
	if cfg.Channels == nil {
		return nil, errMissingChannels
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Ingestor{
		store:    cfg.Store,
		codec:    cfg.Codec,
		marker:   cfg.Marker,
		markers:  cfg.Markers,
		channels: cfg.Channels,
		logger:   logger,
	}, nil
}

// HandleMessage processes one incoming message. Attachment failures are
// isolated: each is logged and the remaining attachments still run.
func (i *Ingestor) HandleMessage(ctx context.Context, message stream.Message) {
	if message.ChannelID != i.channels.PhotoID() {
		return
	}

	for _, attachment := range message.Attachments {
		entry, skip, err := i.codec.Build(ctx, attachment, message)
		if skip {
			continue
		}
		if err != nil {
			i.logger.Error("attachment ingest failed",
				zap.String("source_url", attachment.URL),
				zap.String("message_id", message.ID),
				zap.Error(err))
			continue
		}

		if err := i.store.Upsert(entry); err != nil {
			i.logger.Error("catalog upsert failed",
				zap.String("source_url", entry.SourceURL),
				zap.Error(err))
			continue
		}

		if err := markProcessed(ctx, i.marker, i.markers, message); err != nil {
			i.logger.Warn("processed marker apply failed",
				zap.String("message_id", message.ID),
				zap.Error(err))
		}

		i.logger.Info("image ingested",
			zap.String("source_url", entry.SourceURL),
			zap.String("message_id", message.ID))
	}
}
