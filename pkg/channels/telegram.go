package channels

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/mymmrac/telego"
	"github.com/sipeed/picopager/pkg/bus"
	"github.com/sipeed/picopager/pkg/config"
	"github.com/sipeed/picopager/pkg/logger"
	"github.com/sipeed/picopager/pkg/paginator"
)

// Telegram only accepts reactions from a fixed emoji set, so controls are
// carried on stand-ins.
var telegramEmojis = map[string]string{
	paginator.Left:  "👎",
	paginator.Stop:  "👌",
	paginator.Right: "👍",
}

func telegramEmoji(glyph string) string {
	if e, ok := telegramEmojis[glyph]; ok {
		return e
	}
	return glyph
}

func telegramGlyph(emoji string) string {
	for glyph, e := range telegramEmojis {
		if e == emoji {
			return glyph
		}
	}
	return emoji
}

type TelegramChannel struct {
	*BaseChannel
	bot    *telego.Bot
	config config.TelegramConfig

	mu     sync.Mutex
	botID  int64
	cancel context.CancelFunc
	done   chan struct{}
}

func NewTelegramChannel(cfg config.TelegramConfig, mb *bus.MessageBus) (*TelegramChannel, error) {
	bot, err := telego.NewBot(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	return &TelegramChannel{
		BaseChannel: NewBaseChannel("telegram", mb, cfg.AllowFrom),
		bot:         bot,
		config:      cfg,
	}, nil
}

func (c *TelegramChannel) Start(ctx context.Context) error {
	logger.InfoC("telegram", "Starting Telegram bot")

	me, err := c.bot.GetMe(ctx)
	if err != nil {
		return fmt.Errorf("failed to get bot user: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	updates, err := c.bot.UpdatesViaLongPolling(runCtx, &telego.GetUpdatesParams{
		AllowedUpdates: []string{"message", "message_reaction"},
	})
	if err != nil {
		cancel()
		return fmt.Errorf("failed to start telegram long polling: %w", err)
	}

	done := make(chan struct{})
	c.mu.Lock()
	c.botID = me.ID
	c.cancel = cancel
	c.done = done
	c.mu.Unlock()

	go func() {
		defer close(done)
		for update := range updates {
			c.handleUpdate(update)
		}
	}()

	c.setRunning(true)
	logger.InfoCF("telegram", "Telegram bot connected", map[string]any{
		"username": me.Username,
		"user_id":  me.ID,
	})
	return nil
}

func (c *TelegramChannel) Stop(ctx context.Context) error {
	logger.InfoC("telegram", "Stopping Telegram bot")
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
		return fmt.Errorf("failed to stop telegram bot: %w", ctx.Err())
	}
}

func (c *TelegramChannel) handleUpdate(update telego.Update) {
	c.mu.Lock()
	botID := c.botID
	c.mu.Unlock()

	switch {
	case update.MessageReaction != nil:
		r := update.MessageReaction
		if r.User == nil || r.User.ID == botID {
			return
		}
		for _, ev := range telegramReactionEvents(r) {
			c.HandleReaction(ev)
		}
	case update.Message != nil:
		m := update.Message
		if m.From == nil || m.From.ID == botID || m.Text == "" {
			return
		}
		c.HandleMessage(strconv.FormatInt(m.From.ID, 10), telegramChatID(m.Chat), telegramGuildID(m.Chat), m.Text, map[string]string{
			"message_id": strconv.Itoa(m.MessageID),
			"username":   m.From.Username,
			"is_dm":      fmt.Sprintf("%t", m.Chat.Type == telego.ChatTypePrivate),
		})
	}
}

// telegramReactionEvents reports the emoji a user just added. Telegram sends
// the whole reaction set, so removals and unchanged emoji are dropped.
func telegramReactionEvents(r *telego.MessageReactionUpdated) []bus.ReactionEvent {
	old := make(map[string]struct{}, len(r.OldReaction))
	for _, rt := range r.OldReaction {
		if e, ok := rt.(*telego.ReactionTypeEmoji); ok {
			old[e.Emoji] = struct{}{}
		}
	}

	var events []bus.ReactionEvent
	for _, rt := range r.NewReaction {
		e, ok := rt.(*telego.ReactionTypeEmoji)
		if !ok {
			continue
		}
		if _, seen := old[e.Emoji]; seen {
			continue
		}
		events = append(events, bus.ReactionEvent{
			ChatID:    telegramChatID(r.Chat),
			GuildID:   telegramGuildID(r.Chat),
			MessageID: strconv.Itoa(r.MessageID),
			UserID:    strconv.FormatInt(r.User.ID, 10),
			Emoji:     telegramGlyph(e.Emoji),
		})
	}
	return events
}

func telegramChatID(chat telego.Chat) string {
	return strconv.FormatInt(chat.ID, 10)
}

// Groups stand in for guilds; member status is the role.
func telegramGuildID(chat telego.Chat) string {
	if chat.Type == telego.ChatTypePrivate {
		return ""
	}
	return telegramChatID(chat)
}

func parseTelegramRef(ref bus.MessageRef) (telego.ChatID, int, error) {
	chatID, err := strconv.ParseInt(ref.ChatID, 10, 64)
	if err != nil {
		return telego.ChatID{}, 0, fmt.Errorf("invalid telegram chat id %q: %w", ref.ChatID, err)
	}
	messageID, err := strconv.Atoi(ref.MessageID)
	if err != nil {
		return telego.ChatID{}, 0, fmt.Errorf("invalid telegram message id %q: %w", ref.MessageID, err)
	}
	return telego.ChatID{ID: chatID}, messageID, nil
}

func (c *TelegramChannel) SendMessage(ctx context.Context, msg bus.OutboundMessage) (bus.MessageRef, error) {
	if !c.IsRunning() {
		return bus.MessageRef{}, ErrNotRunning
	}
	chatID, err := strconv.ParseInt(msg.ChatID, 10, 64)
	if err != nil {
		return bus.MessageRef{}, fmt.Errorf("invalid telegram chat id %q: %w", msg.ChatID, err)
	}

	sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	m, err := c.bot.SendMessage(sendCtx, &telego.SendMessageParams{
		ChatID: telego.ChatID{ID: chatID},
		Text:   plainText(msg),
	})
	if err != nil {
		return bus.MessageRef{}, fmt.Errorf("failed to send telegram message: %w", err)
	}
	return bus.MessageRef{
		Channel:   c.Name(),
		ChatID:    telegramChatID(m.Chat),
		GuildID:   telegramGuildID(m.Chat),
		MessageID: strconv.Itoa(m.MessageID),
	}, nil
}

func (c *TelegramChannel) EditMessage(ctx context.Context, ref bus.MessageRef, msg bus.OutboundMessage) error {
	if !c.IsRunning() {
		return ErrNotRunning
	}
	chatID, messageID, err := parseTelegramRef(ref)
	if err != nil {
		return err
	}

	sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	_, err = c.bot.EditMessageText(sendCtx, &telego.EditMessageTextParams{
		ChatID:    chatID,
		MessageID: messageID,
		Text:      plainText(msg),
	})
	// Redrawing the same page is not an error.
	if err != nil && !strings.Contains(err.Error(), "message is not modified") {
		return fmt.Errorf("failed to edit telegram message: %w", err)
	}
	return nil
}

func (c *TelegramChannel) DeleteMessage(ctx context.Context, ref bus.MessageRef) error {
	chatID, messageID, err := parseTelegramRef(ref)
	if err != nil {
		return err
	}

	sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	if err := c.bot.DeleteMessage(sendCtx, &telego.DeleteMessageParams{ChatID: chatID, MessageID: messageID}); err != nil {
		return fmt.Errorf("failed to delete telegram message: %w", err)
	}
	return nil
}

// AddReaction sets the bot's reaction. Bots hold one reaction per message,
// so each control replaces the previous one.
func (c *TelegramChannel) AddReaction(ctx context.Context, ref bus.MessageRef, emoji string) error {
	chatID, messageID, err := parseTelegramRef(ref)
	if err != nil {
		return err
	}

	sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	err = c.bot.SetMessageReaction(sendCtx, &telego.SetMessageReactionParams{
		ChatID:    chatID,
		MessageID: messageID,
		Reaction: []telego.ReactionType{
			&telego.ReactionTypeEmoji{Type: telego.ReactionEmoji, Emoji: telegramEmoji(emoji)},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to add telegram reaction: %w", err)
	}
	return nil
}

// RemoveReaction is a no-op: bots cannot clear another user's reaction.
// Users toggle their reaction off and on to press a control again.
func (c *TelegramChannel) RemoveReaction(_ context.Context, ref bus.MessageRef, emoji, userID string) error {
	logger.DebugCF("telegram", "Cannot remove another user's reaction", map[string]any{
		"message_id": ref.MessageID,
		"emoji":      emoji,
		"user_id":    userID,
	})
	return nil
}

// MemberRoles reports the user's chat member status ("creator",
// "administrator", "member", ...).
func (c *TelegramChannel) MemberRoles(ctx context.Context, guildID, userID string) ([]string, error) {
	chatID, err := strconv.ParseInt(guildID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid telegram chat id %q: %w", guildID, err)
	}
	uid, err := strconv.ParseInt(userID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid telegram user id %q: %w", userID, err)
	}

	member, err := c.bot.GetChatMember(ctx, &telego.GetChatMemberParams{
		ChatID: telego.ChatID{ID: chatID},
		UserID: uid,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get telegram chat member: %w", err)
	}
	return []string{member.MemberStatus()}, nil
}
