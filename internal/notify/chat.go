package notify

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/slack-go/slack"
	"go.uber.org/zap"
)

// Slack posts events to a channel, through an incoming webhook when one
// is configured and through the bot API otherwise.
type Slack struct {
	webhookURL string
	client     *slack.Client
	channel    string
	logger     *zap.Logger
}

// NewSlackWebhook creates a notifier for an incoming webhook URL.
func NewSlackWebhook(url string, logger *zap.Logger) *Slack {
	return &Slack{webhookURL: url, logger: logger}
}

// NewSlackBot creates a notifier posting as a bot user.
func NewSlackBot(botToken, channel string, logger *zap.Logger, opts ...slack.Option) *Slack {
	return &Slack{client: slack.New(botToken, opts...), channel: channel, logger: logger}
}

func (s *Slack) Name() string { return "slack" }

func (s *Slack) Notify(ctx context.Context, ev *Event) error {
	if s.webhookURL != "" {
		if err := slack.PostWebhookContext(ctx, s.webhookURL, &slack.WebhookMessage{Text: ev.Text()}); err != nil {
			return fmt.Errorf("slack webhook: %w", err)
		}
		return nil
	}
	_, _, err := s.client.PostMessageContext(ctx, s.channel, slack.MsgOptionText(ev.Text(), false))
	if err != nil {
		return fmt.Errorf("slack post: %w", err)
	}
	return nil
}

// Discord posts events to a channel over the REST API; no gateway
// connection is opened.
type Discord struct {
	session   *discordgo.Session
	channelID string
	logger    *zap.Logger
}

// NewDiscord creates a Discord notifier for a bot token.
func NewDiscord(token, channelID string, logger *zap.Logger) (*Discord, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("discord session: %w", err)
	}
	return &Discord{session: session, channelID: channelID, logger: logger}, nil
}

func (d *Discord) Name() string { return "discord" }

func (d *Discord) Notify(ctx context.Context, ev *Event) error {
	if _, err := d.session.ChannelMessageSend(d.channelID, ev.Text(), discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("discord send: %w", err)
	}
	return nil
}
