package discord

import (
	"context"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/fotogalerie/gallerybot/internal/config"
)

// Announcer posts operational notices to the configured log channel.
// Announcements are best-effort; a delivery failure is logged and dropped.
type Announcer struct {
	session  *Session
	channels *config.Channels
	logger   *zap.Logger
}

// NewAnnouncer returns an Announcer bound to the runtime channel config.
func NewAnnouncer(session *Session, channels *config.Channels, logger *zap.Logger) *Announcer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Announcer{session: session, channels: channels, logger: logger}
}

// Announce implements stream.Announcer.
func (a *Announcer) Announce(ctx context.Context, text string) {
	channelID := a.channels.LogID()
	if channelID == "" {
		return
	}
	if _, err := a.session.session.ChannelMessageSend(channelID, text, discordgo.WithContext(ctx)); err != nil {
		a.logger.Warn("log channel announcement failed",
			zap.String("channel_id", channelID),
			zap.Error(err))
	}
}
