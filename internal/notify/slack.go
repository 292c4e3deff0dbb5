package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/slack-go/slack"
)

const slackMaxMsgLen = 4000

// Slack posts announcements to a single Slack channel.
type Slack struct {
	client  *slack.Client
	channel string
	logger  *slog.Logger
}

// SlackConfig configures the Slack notifier.
type SlackConfig struct {
	BotToken string
	Channel  string
	Logger   *slog.Logger
}

// NewSlack creates a Slack notifier. The token is not verified until the
// first send.
func NewSlack(cfg SlackConfig) *Slack {
	return &Slack{
		client:  slack.New(cfg.BotToken),
		channel: cfg.Channel,
		logger:  cfg.Logger,
	}
}

func (s *Slack) Name() string { return "slack" }

// Send posts the text, split into chunks Slack accepts.
func (s *Slack) Send(ctx context.Context, text string) error {
	for _, chunk := range splitMessage(text, slackMaxMsgLen) {
		_, _, err := s.client.PostMessageContext(ctx, s.channel,
			slack.MsgOptionText(chunk, false),
		)
		if err != nil {
			return fmt.Errorf("slack post: %w", err)
		}
	}
	return nil
}
