package reconcile

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/fotogalerie/gallerybot/internal/catalog"
	"github.com/fotogalerie/gallerybot/internal/config"
	"github.com/fotogalerie/gallerybot/internal/stream"
)

// ManagerConfig carries the dependencies for NewManager.
type ManagerConfig struct {
	History  stream.History
	Store    *catalog.Store
	Codec    *catalog.Codec
	Marker   stream.Marker
	Markers  Markers
	Channels *config.Channels
	// SelfID is the bot's own identity; its reaction events are ignored to
	// prevent feedback loops.
	SelfID string
	Logger *zap.Logger
}

// Manager consumes reaction events and toggles the soft-delete state of
// catalog entries. A removal marker tombstones the message's images; taking
// that marker back restores them from the same derivation as initial
// creation. The removal marker itself is never retracted programmatically,
// it stays on the message as an audit trail.
type Manager struct {
	history  stream.History
	store    *catalog.Store
	codec    *catalog.Codec
	marker   stream.Marker
	markers  Markers
	channels *config.Channels
	selfID   string
	logger   *zap.Logger
}

// NewManager validates the configuration and returns a Manager.
func NewManager(cfg ManagerConfig) (*Manager, error) {
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
	if cfg.Channels == nil {
		return nil, errMissingChannels
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Manager{
		history:  cfg.History,
		store:    cfg.Store,
		codec:    cfg.Codec,
		marker:   cfg.Marker,
		markers:  cfg.Markers,
		channels: cfg.Channels,
		selfID:   cfg.SelfID,
		logger:   logger,
	}, nil
}

// HandleReactionAdd tombstones the catalog entries backed by the reacted
// message when a human adds a removal marker.
func (m *Manager) HandleReactionAdd(ctx context.Context, event stream.ReactionEvent) {
	if !m.relevant(event) {
		return
	}

	message, err := m.history.Message(ctx, event.ChannelID, event.MessageID)
	if err != nil {
		m.logger.Error("tombstone message lookup failed",
			zap.String("message_id", event.MessageID),
			zap.Error(err))
		return
	}

	removed := 0
	for _, attachment := range message.Attachments {
		entry, ok := m.store.RemoveByURL(attachment.URL)
		if !ok {
			continue
		}
		removed++
		m.logger.Info("entry tombstoned",
			zap.String("source_url", entry.SourceURL),
			zap.String("message_id", message.ID),
			zap.String("actor_id", event.ActorID))
	}
	if removed == 0 {
		return
	}

	if err := m.marker.RemoveOwnReaction(ctx, event.ChannelID, event.MessageID, m.markers.Processed); err != nil {
		m.logger.Warn("processed marker retract failed",
			zap.String("message_id", event.MessageID),
			zap.Error(err))
	}
}

// HandleReactionRemove restores catalog entries when a human takes a removal
// marker back from a message whose images are no longer in the catalog.
func (m *Manager) HandleReactionRemove(ctx context.Context, event stream.ReactionEvent) {
	if !m.relevant(event) {
		return
	}

	message, err := m.history.Message(ctx, event.ChannelID, event.MessageID)
	if err != nil {
		if errors.Is(err, stream.ErrNotFound) {
			return
		}
		m.logger.Error("restore message lookup failed",
			zap.String("message_id", event.MessageID),
			zap.Error(err))
		return
	}

	restored := 0
	for _, attachment := range message.Attachments {
		if m.store.ContainsURL(attachment.URL) {
			continue
		}

		entry, skip, err := m.codec.Build(ctx, attachment, message)
		if skip {
			continue
		}
		if err != nil {
			m.logger.Error("entry restore failed",
				zap.String("source_url", attachment.URL),
				zap.String("message_id", message.ID),
				zap.Error(err))
			continue
		}

		if err := m.store.Upsert(entry); err != nil {
			m.logger.Error("catalog upsert failed",
				zap.String("source_url", entry.SourceURL),
				zap.Error(err))
			continue
		}
		restored++
		m.logger.Info("entry restored",
			zap.String("source_url", entry.SourceURL),
			zap.String("message_id", message.ID),
			zap.String("actor_id", event.ActorID))
	}
	if restored == 0 {
		return
	}

	if err := markProcessed(ctx, m.marker, m.markers, message); err != nil {
		m.logger.Warn("processed marker apply failed",
			zap.String("message_id", message.ID),
			zap.Error(err))
	}
}

func (m *Manager) relevant(event stream.ReactionEvent) bool {
	if event.ActorID == m.selfID {
		return false
	}
	if !m.markers.IsRemoval(event.Emoji) {
		return false
	}
	return event.ChannelID == m.channels.PhotoID()
}
