// Package discord adapts the discordgo session to the transport interfaces
// the catalog engine consumes.
package discord

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/fotogalerie/gallerybot/internal/stream"
)

var (
	errMissingToken = errors.New("discord: bot token is required")
	errNoSelfUser   = errors.New("discord: session has no self user yet")
)

// SessionConfig carries the dependencies for NewSession.
type SessionConfig struct {
	Token  string
	Logger *zap.Logger
}

// Session wraps a discordgo session and implements stream.History and
// stream.Marker.
type Session struct {
	session *discordgo.Session
	logger  *zap.Logger
}

// NewSession builds the gateway session with the intents the catalog needs.
func NewSession(cfg SessionConfig) (*Session, error) {
	if cfg.Token == "" {
		return nil, errMissingToken
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	inner, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	inner.Identify.Intents = discordgo.IntentGuilds |
		discordgo.IntentGuildMessages |
		discordgo.IntentGuildMessageReactions |
		discordgo.IntentMessageContent

	return &Session{session: inner, logger: logger}, nil
}

// Open connects to the gateway and blocks until the session is ready.
func (s *Session) Open() error {
	if err := s.session.Open(); err != nil {
		return fmt.Errorf("open discord session: %w", err)
	}
	return nil
}

// Close tears the gateway connection down.
func (s *Session) Close() error {
	return s.session.Close()
}

// SelfID returns the bot's own user identifier. Valid after Open.
func (s *Session) SelfID() (string, error) {
	if s.session.State == nil || s.session.State.User == nil {
		return "", errNoSelfUser
	}
	return s.session.State.User.ID, nil
}

// ChannelName verifies the channel exists and returns its name.
func (s *Session) ChannelName(ctx context.Context, channelID string) (string, error) {
	channel, err := s.session.Channel(channelID, discordgo.WithContext(ctx))
	if err != nil {
		return "", mapRESTError(fmt.Errorf("fetch channel %s: %w", channelID, err))
	}
	return channel.Name, nil
}

// Messages implements stream.History.
func (s *Session) Messages(ctx context.Context, channelID string, limit int, beforeID string) ([]stream.Message, error) {
	batch, err := s.session.ChannelMessages(channelID, limit, beforeID, "", "", discordgo.WithContext(ctx))
	if err != nil {
		return nil, mapRESTError(fmt.Errorf("fetch messages of %s: %w", channelID, err))
	}
	messages := make([]stream.Message, 0, len(batch))
	for _, message := range batch {
		messages = append(messages, convertMessage(message))
	}
	return messages, nil
}

// Message implements stream.History.
func (s *Session) Message(ctx context.Context, channelID, messageID string) (stream.Message, error) {
	message, err := s.session.ChannelMessage(channelID, messageID, discordgo.WithContext(ctx))
	if err != nil {
		return stream.Message{}, mapRESTError(fmt.Errorf("fetch message %s: %w", messageID, err))
	}
	return convertMessage(message), nil
}

// AddReaction implements stream.Marker.
func (s *Session) AddReaction(ctx context.Context, channelID, messageID, emoji string) error {
	if err := s.session.MessageReactionAdd(channelID, messageID, emoji, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("add reaction %s to %s: %w", emoji, messageID, err)
	}
	return nil
}

// RemoveOwnReaction implements stream.Marker.
func (s *Session) RemoveOwnReaction(ctx context.Context, channelID, messageID, emoji string) error {
	if err := s.session.MessageReactionRemove(channelID, messageID, emoji, "@me", discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("remove own reaction %s from %s: %w", emoji, messageID, err)
	}
	return nil
}

// OnMessageCreate registers a handler for message-created events.
func (s *Session) OnMessageCreate(fn func(ctx context.Context, message stream.Message)) {
	s.session.AddHandler(func(_ *discordgo.Session, event *discordgo.MessageCreate) {
		fn(context.Background(), convertMessage(event.Message))
	})
}

// OnReactionAdd registers a handler for reaction-added events.
func (s *Session) OnReactionAdd(fn func(ctx context.Context, event stream.ReactionEvent)) {
	s.session.AddHandler(func(_ *discordgo.Session, event *discordgo.MessageReactionAdd) {
		fn(context.Background(), convertReaction(event.MessageReaction))
	})
}

// OnReactionRemove registers a handler for reaction-removed events.
func (s *Session) OnReactionRemove(fn func(ctx context.Context, event stream.ReactionEvent)) {
	s.session.AddHandler(func(_ *discordgo.Session, event *discordgo.MessageReactionRemove) {
		fn(context.Background(), convertReaction(event.MessageReaction))
	})
}

func convertMessage(message *discordgo.Message) stream.Message {
	converted := stream.Message{
		ID:        message.ID,
		ChannelID: message.ChannelID,
		GuildID:   message.GuildID,
		CreatedAt: message.Timestamp,
	}
	if message.Author != nil {
		converted.AuthorID = message.Author.ID
		converted.AuthorIsBot = message.Author.Bot
	}
	for _, attachment := range message.Attachments {
		converted.Attachments = append(converted.Attachments, stream.Attachment{
			URL:         attachment.URL,
			Filename:    attachment.Filename,
			ContentType: attachment.ContentType,
		})
	}
	for _, reaction := range message.Reactions {
		converted.Reactions = append(converted.Reactions, stream.Reaction{
			Emoji: reaction.Emoji.APIName(),
			Mine:  reaction.Me,
		})
	}
	return converted
}

func convertReaction(reaction *discordgo.MessageReaction) stream.ReactionEvent {
	return stream.ReactionEvent{
		ChannelID: reaction.ChannelID,
		MessageID: reaction.MessageID,
		Emoji:     reaction.Emoji.APIName(),
		ActorID:   reaction.UserID,
	}
}

func mapRESTError(err error) error {
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Response != nil && restErr.Response.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %v", stream.ErrNotFound, err)
	}
	return err
}
