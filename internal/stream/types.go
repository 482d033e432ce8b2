// Package stream defines the boundary between the catalog engine and the
// chat transport. The engine consumes these types and interfaces only; the
// concrete Discord session lives in the discord subpackage.
package stream

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound reports that a referenced channel or message no longer exists
// on the transport side.
var ErrNotFound = errors.New("stream: not found")

// Attachment is one file carried by a message.
type Attachment struct {
	URL         string
	Filename    string
	ContentType string
}

// Reaction summarizes one marker symbol currently attached to a message.
type Reaction struct {
	Emoji string
	// Mine reports whether the bot's own identity is among the reactors.
	Mine bool
}

// Message is a transport message with its attachments and current markers.
type Message struct {
	ID          string
	ChannelID   string
	GuildID     string
	AuthorID    string
	AuthorIsBot bool
	CreatedAt   time.Time
	Attachments []Attachment
	Reactions   []Reaction
}

// URL returns the human-navigable locator for the message.
func (m Message) URL() string {
	guild := m.GuildID
	if guild == "" {
		guild = "@me"
	}
	return fmt.Sprintf("https://discord.com/channels/%s/%s/%s", guild, m.ChannelID, m.ID)
}

// ReactionEvent is one reaction-added or reaction-removed notification.
type ReactionEvent struct {
	ChannelID string
	MessageID string
	Emoji     string
	ActorID   string
}

// History is the request/response surface of the chat transport consumed by
// the backfill scanner, the tombstone manager and the validator.
type History interface {
	// Messages pages backward through channel history; beforeID is the
	// cursor from the previous batch, empty for the newest batch.
	Messages(ctx context.Context, channelID string, limit int, beforeID string) ([]Message, error)
	// Message re-locates a single message. Returns ErrNotFound when the
	// message no longer exists.
	Message(ctx context.Context, channelID, messageID string) (Message, error)
}

// Marker mutates reaction markers on messages.
type Marker interface {
	AddReaction(ctx context.Context, channelID, messageID, emoji string) error
	RemoveOwnReaction(ctx context.Context, channelID, messageID, emoji string) error
}

// Announcer posts operational notices to the configured log channel.
// Implementations swallow delivery failures; announcements are best-effort.
type Announcer interface {
	Announce(ctx context.Context, text string)
}
