package channels

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/sipeed/picopager/pkg/bus"
	"github.com/sipeed/picopager/pkg/config"
	"github.com/sipeed/picopager/pkg/logger"
	"github.com/sipeed/picopager/pkg/paginator"
	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"
)

// Slack reactions are named, not glyphs.
var slackEmojiNames = map[string]string{
	paginator.Left:  "arrow_backward",
	paginator.Stop:  "black_square_for_stop",
	paginator.Right: "arrow_forward",
}

func slackEmojiName(glyph string) string {
	if name, ok := slackEmojiNames[glyph]; ok {
		return name
	}
	return strings.Trim(glyph, ":")
}

func slackGlyph(name string) string {
	for glyph, n := range slackEmojiNames {
		if n == name {
			return glyph
		}
	}
	return name
}

type SlackChannel struct {
	*BaseChannel
	api    *slack.Client
	socket *socketmode.Client
	config config.SlackConfig

	mu        sync.Mutex
	botUserID string
	cancel    context.CancelFunc
	done      chan struct{}
}

func NewSlackChannel(cfg config.SlackConfig, mb *bus.MessageBus) *SlackChannel {
	api := slack.New(cfg.BotToken, slack.OptionAppLevelToken(cfg.AppToken))
	return &SlackChannel{
		BaseChannel: NewBaseChannel("slack", mb, cfg.AllowFrom),
		api:         api,
		socket:      socketmode.New(api),
		config:      cfg,
	}
}

func (c *SlackChannel) Start(ctx context.Context) error {
	logger.InfoC("slack", "Starting Slack bot")

	auth, err := c.api.AuthTestContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to authenticate slack bot: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	c.mu.Lock()
	c.botUserID = auth.UserID
	c.cancel = cancel
	c.done = done
	c.mu.Unlock()

	go func() {
		if err := c.socket.RunContext(runCtx); err != nil && runCtx.Err() == nil {
			logger.ErrorCF("slack", "Socket mode connection stopped", map[string]any{
				"error": err.Error(),
			})
		}
	}()
	go func() {
		defer close(done)
		c.consume(runCtx)
	}()

	c.setRunning(true)
	logger.InfoCF("slack", "Slack bot connected", map[string]any{
		"user_id": auth.UserID,
		"team_id": auth.TeamID,
	})
	return nil
}

func (c *SlackChannel) Stop(ctx context.Context) error {
	logger.InfoC("slack", "Stopping Slack bot")
	c.setRunning(false)

	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("failed to stop slack bot: %w", ctx.Err())
	}
}

func (c *SlackChannel) consume(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-c.socket.Events:
			if !ok {
				return
			}
			if evt.Type != socketmode.EventTypeEventsAPI {
				continue
			}
			apiEvent, ok := evt.Data.(slackevents.EventsAPIEvent)
			if !ok {
				continue
			}
			if evt.Request != nil {
				c.socket.Ack(*evt.Request)
			}
			c.handleEvent(apiEvent)
		}
	}
}

func (c *SlackChannel) handleEvent(ev slackevents.EventsAPIEvent) {
	c.mu.Lock()
	botUserID := c.botUserID
	c.mu.Unlock()

	switch inner := ev.InnerEvent.Data.(type) {
	case *slackevents.ReactionAddedEvent:
		if inner.User == botUserID {
			return
		}
		c.HandleReaction(bus.ReactionEvent{
			ChatID:    inner.Item.Channel,
			GuildID:   ev.TeamID,
			MessageID: inner.Item.Timestamp,
			UserID:    inner.User,
			Emoji:     slackGlyph(inner.Reaction),
		})
	case *slackevents.MessageEvent:
		if inner.User == "" || inner.User == botUserID || inner.BotID != "" || inner.Text == "" {
			return
		}
		c.HandleMessage(inner.User, inner.Channel, ev.TeamID, inner.Text, map[string]string{
			"message_id": inner.TimeStamp,
			"is_dm":      fmt.Sprintf("%t", inner.ChannelType == "im"),
		})
	}
}

func (c *SlackChannel) SendMessage(ctx context.Context, msg bus.OutboundMessage) (bus.MessageRef, error) {
	if !c.IsRunning() {
		return bus.MessageRef{}, ErrNotRunning
	}

	sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	channelID, ts, err := c.api.PostMessageContext(sendCtx, msg.ChatID, slackMessageOptions(msg)...)
	if err != nil {
		return bus.MessageRef{}, fmt.Errorf("failed to send slack message: %w", err)
	}
	return bus.MessageRef{Channel: c.Name(), ChatID: channelID, MessageID: ts}, nil
}

func (c *SlackChannel) EditMessage(ctx context.Context, ref bus.MessageRef, msg bus.OutboundMessage) error {
	if !c.IsRunning() {
		return ErrNotRunning
	}

	sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	if _, _, _, err := c.api.UpdateMessageContext(sendCtx, ref.ChatID, ref.MessageID, slackMessageOptions(msg)...); err != nil {
		return fmt.Errorf("failed to edit slack message: %w", err)
	}
	return nil
}

func (c *SlackChannel) DeleteMessage(ctx context.Context, ref bus.MessageRef) error {
	sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	if _, _, err := c.api.DeleteMessageContext(sendCtx, ref.ChatID, ref.MessageID); err != nil {
		return fmt.Errorf("failed to delete slack message: %w", err)
	}
	return nil
}

func (c *SlackChannel) AddReaction(ctx context.Context, ref bus.MessageRef, emoji string) error {
	sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	item := slack.NewRefToMessage(ref.ChatID, ref.MessageID)
	if err := c.api.AddReactionContext(sendCtx, slackEmojiName(emoji), item); err != nil {
		return fmt.Errorf("failed to add slack reaction: %w", err)
	}
	return nil
}

// RemoveReaction is a no-op: Slack only lets a user remove their own reactions.
func (c *SlackChannel) RemoveReaction(_ context.Context, ref bus.MessageRef, emoji, userID string) error {
	logger.DebugCF("slack", "Cannot remove another user's reaction", map[string]any{
		"message_id": ref.MessageID,
		"emoji":      emoji,
		"user_id":    userID,
	})
	return nil
}

// MemberRoles maps Slack user groups onto roles.
func (c *SlackChannel) MemberRoles(ctx context.Context, _, userID string) ([]string, error) {
	groups, err := c.api.GetUserGroupsContext(ctx, slack.GetUserGroupsOptionIncludeUsers(true))
	if err != nil {
		return nil, fmt.Errorf("failed to list slack user groups: %w", err)
	}

	var roles []string
	for _, g := range groups {
		for _, member := range g.Users {
			if member == userID {
				roles = append(roles, g.ID, g.Handle)
				break
			}
		}
	}
	return roles, nil
}

func slackMessageOptions(msg bus.OutboundMessage) []slack.MsgOption {
	opts := []slack.MsgOption{slack.MsgOptionText(msg.Content, false)}
	if msg.Embed != nil {
		opts = append(opts, slack.MsgOptionAttachments(toSlackAttachment(msg.Embed)))
	}
	return opts
}

func toSlackAttachment(e *bus.Embed) slack.Attachment {
	att := slack.Attachment{
		Text:   e.Description,
		Footer: e.Footer,
	}
	if e.Color != 0 {
		att.Color = fmt.Sprintf("#%06x", e.Color)
	}
	for _, f := range e.Fields {
		att.Fields = append(att.Fields, slack.AttachmentField{
			Title: f.Name,
			Value: f.Value,
			Short: f.Inline,
		})
	}
	return att
}
