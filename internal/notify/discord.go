package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"
)

const discordMaxMsgLen = 2000

// Discord posts announcements to a single Discord channel. Outbound messages
// go over the REST API, so no gateway session is opened.
type Discord struct {
	session   *discordgo.Session
	channelID string
	logger    *slog.Logger
}

// DiscordConfig configures the Discord notifier.
type DiscordConfig struct {
	Token     string
	ChannelID string
	Logger    *slog.Logger
}

// NewDiscord creates a Discord notifier.
func NewDiscord(cfg DiscordConfig) (*Discord, error) {
	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("discord session: %w", err)
	}
	return &Discord{
		session:   session,
		channelID: cfg.ChannelID,
		logger:    cfg.Logger,
	}, nil
}

func (d *Discord) Name() string { return "discord" }

// Send posts the text, split into chunks Discord accepts.
func (d *Discord) Send(ctx context.Context, text string) error {
	for _, chunk := range splitMessage(text, discordMaxMsgLen) {
		_, err := d.session.ChannelMessageSend(d.channelID, chunk, discordgo.WithContext(ctx))
		if err != nil {
			return fmt.Errorf("discord send: %w", err)
		}
	}
	return nil
}
