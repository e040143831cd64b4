package channels

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/sipeed/picopager/pkg/bus"
	"github.com/sipeed/picopager/pkg/config"
	"github.com/sipeed/picopager/pkg/logger"
)

const (
	sendTimeout = 10 * time.Second

	// Discord rejects embed fields with an empty name or value.
	zeroWidthSpace = "\u200b"
)

type DiscordChannel struct {
	*BaseChannel
	session *discordgo.Session
	config  config.DiscordConfig
}

func NewDiscordChannel(cfg config.DiscordConfig, mb *bus.MessageBus) (*DiscordChannel, error) {
	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildMessageReactions |
		discordgo.IntentsDirectMessages |
		discordgo.IntentsDirectMessageReactions |
		discordgo.IntentsMessageContent

	return &DiscordChannel{
		BaseChannel: NewBaseChannel("discord", mb, cfg.AllowFrom),
		session:     session,
		config:      cfg,
	}, nil
}

func (c *DiscordChannel) Start(ctx context.Context) error {
	logger.InfoC("discord", "Starting Discord bot")

	c.session.AddHandler(c.handleMessage)
	c.session.AddHandler(c.handleReaction)

	if err := c.session.Open(); err != nil {
		return fmt.Errorf("failed to open discord session: %w", err)
	}

	c.setRunning(true)

	botUser, err := c.session.User("@me", discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to get bot user: %w", err)
	}
	logger.InfoCF("discord", "Discord bot connected", map[string]any{
		"username": botUser.Username,
		"user_id":  botUser.ID,
	})

	return nil
}

func (c *DiscordChannel) Stop(ctx context.Context) error {
	logger.InfoC("discord", "Stopping Discord bot")
	c.setRunning(false)

	if err := c.session.Close(); err != nil {
		return fmt.Errorf("failed to close discord session: %w", err)
	}

	return nil
}

func (c *DiscordChannel) SendMessage(ctx context.Context, msg bus.OutboundMessage) (bus.MessageRef, error) {
	if !c.IsRunning() {
		return bus.MessageRef{}, ErrNotRunning
	}
	if msg.ChatID == "" {
		return bus.MessageRef{}, fmt.Errorf("channel ID is empty")
	}

	sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	send := &discordgo.MessageSend{Content: msg.Content}
	if msg.Embed != nil {
		send.Embeds = []*discordgo.MessageEmbed{toDiscordEmbed(msg.Embed)}
	}

	m, err := c.session.ChannelMessageSendComplex(msg.ChatID, send, discordgo.WithContext(sendCtx))
	if err != nil {
		return bus.MessageRef{}, fmt.Errorf("failed to send discord message: %w", err)
	}
	return bus.MessageRef{
		Channel:   c.Name(),
		ChatID:    m.ChannelID,
		GuildID:   m.GuildID,
		MessageID: m.ID,
	}, nil
}

func (c *DiscordChannel) EditMessage(ctx context.Context, ref bus.MessageRef, msg bus.OutboundMessage) error {
	if !c.IsRunning() {
		return ErrNotRunning
	}

	sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	edit := discordgo.NewMessageEdit(ref.ChatID, ref.MessageID).SetContent(msg.Content)
	if msg.Embed != nil {
		edit.SetEmbed(toDiscordEmbed(msg.Embed))
	}
	if _, err := c.session.ChannelMessageEditComplex(edit, discordgo.WithContext(sendCtx)); err != nil {
		return fmt.Errorf("failed to edit discord message: %w", err)
	}
	return nil
}

func (c *DiscordChannel) DeleteMessage(ctx context.Context, ref bus.MessageRef) error {
	sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	if err := c.session.ChannelMessageDelete(ref.ChatID, ref.MessageID, discordgo.WithContext(sendCtx)); err != nil {
		return fmt.Errorf("failed to delete discord message: %w", err)
	}
	return nil
}

func (c *DiscordChannel) AddReaction(ctx context.Context, ref bus.MessageRef, emoji string) error {
	sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	if err := c.session.MessageReactionAdd(ref.ChatID, ref.MessageID, emoji, discordgo.WithContext(sendCtx)); err != nil {
		return fmt.Errorf("failed to add discord reaction: %w", err)
	}
	return nil
}

func (c *DiscordChannel) RemoveReaction(ctx context.Context, ref bus.MessageRef, emoji, userID string) error {
	sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	if err := c.session.MessageReactionRemove(ref.ChatID, ref.MessageID, emoji, userID, discordgo.WithContext(sendCtx)); err != nil {
		return fmt.Errorf("failed to remove discord reaction: %w", err)
	}
	return nil
}

// MemberRoles prefers the gateway state cache and falls back to REST.
func (c *DiscordChannel) MemberRoles(ctx context.Context, guildID, userID string) ([]string, error) {
	if member, err := c.session.State.Member(guildID, userID); err == nil {
		return member.Roles, nil
	}

	member, err := c.session.GuildMember(guildID, userID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to get discord guild member: %w", err)
	}
	return member.Roles, nil
}

func (c *DiscordChannel) handleMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m == nil || m.Message == nil || m.Author == nil {
		return
	}

	if s.State.User != nil && m.Author.ID == s.State.User.ID {
		return
	}

	if !c.IsAllowed(m.Author.ID) {
		logger.DebugCF("discord", "Message rejected by allowlist", map[string]any{
			"user_id": m.Author.ID,
		})
		return
	}

	if m.Content == "" {
		return
	}

	metadata := map[string]string{
		"message_id": m.ID,
		"username":   m.Author.Username,
		"is_dm":      fmt.Sprintf("%t", m.GuildID == ""),
	}
	c.HandleMessage(m.Author.ID, m.ChannelID, m.GuildID, m.Content, metadata)
}

func (c *DiscordChannel) handleReaction(s *discordgo.Session, r *discordgo.MessageReactionAdd) {
	if r == nil || r.MessageReaction == nil {
		return
	}

	// The bot's own control reactions arrive here too.
	if s.State.User != nil && r.UserID == s.State.User.ID {
		return
	}

	c.HandleReaction(reactionEvent(r.MessageReaction))
}

func reactionEvent(r *discordgo.MessageReaction) bus.ReactionEvent {
	return bus.ReactionEvent{
		ChatID:    r.ChannelID,
		GuildID:   r.GuildID,
		MessageID: r.MessageID,
		UserID:    r.UserID,
		Emoji:     r.Emoji.Name,
	}
}

func toDiscordEmbed(e *bus.Embed) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Description: e.Description,
		Color:       e.Color,
	}
	for _, f := range e.Fields {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   orZeroWidth(f.Name),
			Value:  orZeroWidth(f.Value),
			Inline: f.Inline,
		})
	}
	if e.Footer != "" {
		embed.Footer = &discordgo.MessageEmbedFooter{Text: e.Footer}
	}
	return embed
}

func orZeroWidth(s string) string {
	if s == "" {
		return zeroWidthSpace
	}
	return s
}
