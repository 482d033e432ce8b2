package discord

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/fotogalerie/gallerybot/internal/config"
	"github.com/fotogalerie/gallerybot/internal/stream"
)

const (
	adminCommandName = "fotogalerie"
	subcommandPhotos = "photosid"
	subcommandLogs   = "logsid"
)

// RegisterAdminCommand installs the /fotogalerie slash command that lets
// administrators repoint the photo and log channels at runtime.
func (s *Session) RegisterAdminCommand(channels *config.Channels, announcer stream.Announcer) error {
	selfID, err := s.SelfID()
	if err != nil {
		return err
	}

	command := &discordgo.ApplicationCommand{
		Name:        adminCommandName,
		Description: "Manage Fotogalerie settings",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        subcommandPhotos,
				Description: "Set the channel ID for photos",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionString,
						Name:        "channelid",
						Description: "The channel ID to use for photos",
						Required:    true,
					},
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        subcommandLogs,
				Description: "Set the channel ID for logs",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionString,
						Name:        "channelid",
						Description: "The channel ID to use for logs",
						Required:    true,
					},
				},
			},
		},
	}

	if _, err := s.session.ApplicationCommandCreate(selfID, "", command); err != nil {
		return fmt.Errorf("register %s command: %w", adminCommandName, err)
	}

	s.session.AddHandler(func(_ *discordgo.Session, interaction *discordgo.InteractionCreate) {
		s.handleAdminCommand(interaction, channels, announcer)
	})
	return nil
}

func (s *Session) handleAdminCommand(interaction *discordgo.InteractionCreate, channels *config.Channels, announcer stream.Announcer) {
	if interaction.Type != discordgo.InteractionApplicationCommand {
		return
	}
	data := interaction.ApplicationCommandData()
	if data.Name != adminCommandName || len(data.Options) == 0 {
		return
	}

	if interaction.Member == nil || interaction.Member.Permissions&discordgo.PermissionAdministrator == 0 {
		s.respond(interaction, "You need administrator permissions to use this command.")
		return
	}

	subcommand := data.Options[0]
	if len(subcommand.Options) == 0 {
		return
	}
	channelID := subcommand.Options[0].StringValue()

	ctx := context.Background()
	channelName, err := s.ChannelName(ctx, channelID)
	if err != nil {
		s.logger.Warn("admin command channel lookup failed",
			zap.String("channel_id", channelID),
			zap.Error(err))
		s.respond(interaction, fmt.Sprintf("Channel %s not found or not accessible.", channelID))
		return
	}

	switch subcommand.Name {
	case subcommandPhotos:
		channels.SetPhotoID(channelID)
		s.respond(interaction, fmt.Sprintf("Photo channel updated to %s (%s)", channelName, channelID))
		if announcer != nil {
			announcer.Announce(ctx, fmt.Sprintf("Photo channel changed to %s (%s)", channelName, channelID))
		}
	case subcommandLogs:
		channels.SetLogID(channelID)
		s.respond(interaction, fmt.Sprintf("Log channel updated to %s (%s)", channelName, channelID))
		if announcer != nil {
			announcer.Announce(ctx, fmt.Sprintf("Log channel changed to %s (%s)", channelName, channelID))
		}
	}
}

func (s *Session) respond(interaction *discordgo.InteractionCreate, text string) {
	err := s.session.InteractionRespond(interaction.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: text,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		s.logger.Warn("interaction response failed", zap.Error(err))
	}
}
