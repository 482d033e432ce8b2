package reconcile

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fotogalerie/gallerybot/internal/catalog"
	"github.com/fotogalerie/gallerybot/internal/stream"
)

// ValidatorConfig carries the dependencies for NewValidator.
type ValidatorConfig struct {
	History stream.History
	Store   *catalog.Store
	Marker  stream.Marker
	Markers Markers
	Logger  *zap.Logger
}

// Validator cross-checks every catalog entry against current channel state
// and evicts entries whose backing message, attachment or marker state no
// longer supports them.
type Validator struct {
	history stream.History
	store   *catalog.Store
	marker  stream.Marker
	markers Markers
	logger  *zap.Logger
}

// NewValidator validates the configuration and returns a Validator.
func NewValidator(cfg ValidatorConfig) (*Validator, error) {
	if cfg.History == nil {
		return nil, errMissingHistory
	}
	if cfg.Store == nil {
		return nil, errMissingStore
	}
	if cfg.Marker == nil {
		return nil, errMissingMarker
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Validator{
		history: cfg.History,
		store:   cfg.Store,
		marker:  cfg.Marker,
		markers: cfg.Markers,
		logger:  logger,
	}, nil
}

// Sweep walks the current catalog once and returns the kept and dropped
// entry counts. Eviction happens through a single ReplaceAll so a large
// cleanup costs one persist instead of one per removal. A transient lookup
// failure keeps the entry; only a confirmed missing message evicts it.
func (v *Validator) Sweep(ctx context.Context, channelID string) (kept, dropped int, err error) {
	sweepID := uuid.NewString()
	logger := v.logger.With(zap.String("sweep_id", sweepID), zap.String("channel_id", channelID))
	logger.Info("validation sweep starting", zap.Int("entries", v.store.Len()))

	entries := v.store.Snapshot()
	survivors := make([]catalog.Entry, 0, len(entries))
	for _, entry := range entries {
		message, lookupErr := v.history.Message(ctx, channelID, entry.SourceMessageID)
		if lookupErr != nil {
			if errors.Is(lookupErr, stream.ErrNotFound) {
				dropped++
				logger.Info("evicting entry, backing message gone",
					zap.String("source_url", entry.SourceURL),
					zap.String("message_id", entry.SourceMessageID))
				continue
			}
			survivors = append(survivors, entry)
			logger.Warn("validation lookup failed, keeping entry",
				zap.String("source_url", entry.SourceURL),
				zap.Error(lookupErr))
			continue
		}

		if !carriesAttachment(message, entry.SourceURL) {
			dropped++
			logger.Info("evicting entry, attachment gone",
				zap.String("source_url", entry.SourceURL),
				zap.String("message_id", entry.SourceMessageID))
			continue
		}

		if hasRemovalMarker(message, v.markers) {
			dropped++
			logger.Info("evicting entry, removal marker present",
				zap.String("source_url", entry.SourceURL),
				zap.String("message_id", entry.SourceMessageID))
			continue
		}

		survivors = append(survivors, entry)
		if markErr := markProcessed(ctx, v.marker, v.markers, message); markErr != nil {
			logger.Warn("processed marker apply failed",
				zap.String("message_id", message.ID),
				zap.Error(markErr))
		}
	}

	if dropped > 0 {
		if err := v.store.ReplaceAll(survivors); err != nil {
			return len(survivors), dropped, err
		}
	}

	logger.Info("validation sweep complete",
		zap.Int("kept", len(survivors)),
		zap.Int("dropped", dropped))
	return len(survivors), dropped, nil
}

func carriesAttachment(message stream.Message, sourceURL string) bool {
	for _, attachment := range message.Attachments {
		if attachment.URL == sourceURL {
			return true
		}
	}
	return false
}

func hasRemovalMarker(message stream.Message, markers Markers) bool {
	for _, reaction := range message.Reactions {
		if markers.IsRemoval(reaction.Emoji) {
			return true
		}
	}
	return false
}
