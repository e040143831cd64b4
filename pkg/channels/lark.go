package channels

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	lark "github.com/larksuite/oapi-sdk-go/v3"
	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	larkdispatcher "github.com/larksuite/oapi-sdk-go/v3/event/dispatcher"
	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	larkws "github.com/larksuite/oapi-sdk-go/v3/ws"
	"github.com/sipeed/picopager/pkg/bus"
	"github.com/sipeed/picopager/pkg/config"
	"github.com/sipeed/picopager/pkg/logger"
	"github.com/sipeed/picopager/pkg/paginator"
)

// Lark reactions are emoji_type keys.
var larkEmojiTypes = map[string]string{
	paginator.Left:  "ThumbsDown",
	paginator.Stop:  "OK",
	paginator.Right: "THUMBSUP",
}

func larkEmojiType(glyph string) string {
	if t, ok := larkEmojiTypes[glyph]; ok {
		return t
	}
	return glyph
}

func larkGlyph(emojiType string) string {
	for glyph, t := range larkEmojiTypes {
		if t == emojiType {
			return glyph
		}
	}
	return emojiType
}

type LarkChannel struct {
	*BaseChannel
	client *lark.Client
	config config.LarkConfig

	mu     sync.Mutex
	cancel context.CancelFunc
	// Reaction events carry only the message ID; sent messages are
	// remembered so the chat can be filled in.
	sent   map[string]bus.MessageRef
}

func NewLarkChannel(cfg config.LarkConfig, mb *bus.MessageBus) *LarkChannel {
	return &LarkChannel{
		BaseChannel: NewBaseChannel("lark", mb, cfg.AllowFrom),
		client:      lark.NewClient(cfg.AppID, cfg.AppSecret),
		config:      cfg,
		sent:        make(map[string]bus.MessageRef),
	}
}

func (c *LarkChannel) Start(ctx context.Context) error {
	logger.InfoC("lark", "Starting Lark bot")

	dispatcher := larkdispatcher.NewEventDispatcher(c.config.VerificationToken, c.config.EncryptKey).
		OnP2MessageReceiveV1(c.handleMessageReceive).
		OnP2MessageReactionCreatedV1(c.handleReactionCreated)

	ws := larkws.NewClient(c.config.AppID, c.config.AppSecret,
		larkws.WithEventHandler(dispatcher),
		larkws.WithLogLevel(larkcore.LogLevelInfo),
	)

	runCtx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.cancel = cancel
	c.mu.Unlock()

	go func() {
		if err := ws.Start(runCtx); err != nil && runCtx.Err() == nil {
			logger.ErrorCF("lark", "Lark websocket stopped", map[string]any{
				"error": err.Error(),
			})
		}
	}()

	c.setRunning(true)
	logger.InfoCF("lark", "Lark bot connected", map[string]any{
		"app_id": c.config.AppID,
	})
	return nil
}

func (c *LarkChannel) Stop(ctx context.Context) error {
	logger.InfoC("lark", "Stopping Lark bot")
	c.setRunning(false)

	c.mu.Lock()
	cancel := c.cancel
	c.cancel = nil
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	return nil
}

func (c *LarkChannel) handleMessageReceive(_ context.Context, event *larkim.P2MessageReceiveV1) error {
	if event == nil || event.Event == nil || event.Event.Message == nil || event.Event.Sender == nil {
		return nil
	}
	msg := event.Event.Message
	if larkcore.StringValue(msg.MessageType) != larkim.MsgTypeText || event.Event.Sender.SenderId == nil {
		return nil
	}

	var body struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal([]byte(larkcore.StringValue(msg.Content)), &body); err != nil || body.Text == "" {
		return nil
	}

	chatID := larkcore.StringValue(msg.ChatId)
	c.HandleMessage(larkcore.StringValue(event.Event.Sender.SenderId.OpenId), chatID, chatID, body.Text, map[string]string{
		"message_id": larkcore.StringValue(msg.MessageId),
		"is_dm":      fmt.Sprintf("%t", larkcore.StringValue(msg.ChatType) == "p2p"),
	})
	return nil
}

func (c *LarkChannel) handleReactionCreated(_ context.Context, event *larkim.P2MessageReactionCreatedV1) error {
	if event == nil || event.Event == nil {
		return nil
	}
	if ev, ok := c.reactionEvent(event.Event); ok {
		c.HandleReaction(ev)
	}
	return nil
}

// reactionEvent maps a user reaction on a message this channel sent.
func (c *LarkChannel) reactionEvent(data *larkim.P2MessageReactionCreatedV1Data) (bus.ReactionEvent, bool) {
	if larkcore.StringValue(data.OperatorType) != "user" || data.UserId == nil || data.ReactionType == nil {
		return bus.ReactionEvent{}, false
	}

	messageID := larkcore.StringValue(data.MessageId)
	c.mu.Lock()
	ref, ok := c.sent[messageID]
	c.mu.Unlock()
	if !ok {
		return bus.ReactionEvent{}, false
	}

	return bus.ReactionEvent{
		ChatID:    ref.ChatID,
		GuildID:   ref.GuildID,
		MessageID: messageID,
		UserID:    larkcore.StringValue(data.UserId.OpenId),
		Emoji:     larkGlyph(larkcore.StringValue(data.ReactionType.EmojiType)),
	}, true
}

func larkText(msg bus.OutboundMessage) (string, error) {
	payload, err := json.Marshal(map[string]string{"text": plainText(msg)})
	if err != nil {
		return "", fmt.Errorf("failed to encode lark message: %w", err)
	}
	return string(payload), nil
}

func larkError(op string, code int, msg string) error {
	return fmt.Errorf("failed to %s lark message: code=%d msg=%s", op, code, msg)
}

func (c *LarkChannel) SendMessage(ctx context.Context, msg bus.OutboundMessage) (bus.MessageRef, error) {
	if !c.IsRunning() {
		return bus.MessageRef{}, ErrNotRunning
	}
	content, err := larkText(msg)
	if err != nil {
		return bus.MessageRef{}, err
	}

	sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	req := larkim.NewCreateMessageReqBuilder().
		ReceiveIdType(larkim.ReceiveIdTypeChatId).
		Body(larkim.NewCreateMessageReqBodyBuilder().
			ReceiveId(msg.ChatID).
			MsgType(larkim.MsgTypeText).
			Content(content).
			Build()).
		Build()
	resp, err := c.client.Im.V1.Message.Create(sendCtx, req)
	if err != nil {
		return bus.MessageRef{}, fmt.Errorf("failed to send lark message: %w", err)
	}
	if !resp.Success() {
		return bus.MessageRef{}, larkError("send", resp.Code, resp.Msg)
	}

	ref := bus.MessageRef{
		Channel:   c.Name(),
		ChatID:    msg.ChatID,
		GuildID:   msg.ChatID,
		MessageID: larkcore.StringValue(resp.Data.MessageId),
	}
	c.mu.Lock()
	c.sent[ref.MessageID] = ref
	c.mu.Unlock()
	return ref, nil
}

func (c *LarkChannel) EditMessage(ctx context.Context, ref bus.MessageRef, msg bus.OutboundMessage) error {
	if !c.IsRunning() {
		return ErrNotRunning
	}
	content, err := larkText(msg)
	if err != nil {
		return err
	}

	sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	req := larkim.NewUpdateMessageReqBuilder().
		MessageId(ref.MessageID).
		Body(larkim.NewUpdateMessageReqBodyBuilder().
			MsgType(larkim.MsgTypeText).
			Content(content).
			Build()).
		Build()
	resp, err := c.client.Im.V1.Message.Update(sendCtx, req)
	if err != nil {
		return fmt.Errorf("failed to edit lark message: %w", err)
	}
	if !resp.Success() {
		return larkError("edit", resp.Code, resp.Msg)
	}

	c.mu.Lock()
	if _, ok := c.sent[ref.MessageID]; !ok {
		c.sent[ref.MessageID] = ref
	}
	c.mu.Unlock()
	return nil
}

func (c *LarkChannel) DeleteMessage(ctx context.Context, ref bus.MessageRef) error {
	c.mu.Lock()
	delete(c.sent, ref.MessageID)
	c.mu.Unlock()

	sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	resp, err := c.client.Im.V1.Message.Delete(sendCtx, larkim.NewDeleteMessageReqBuilder().MessageId(ref.MessageID).Build())
	if err != nil {
		return fmt.Errorf("failed to delete lark message: %w", err)
	}
	if !resp.Success() {
		return larkError("delete", resp.Code, resp.Msg)
	}
	return nil
}

func (c *LarkChannel) AddReaction(ctx context.Context, ref bus.MessageRef, emoji string) error {
	sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	req := larkim.NewCreateMessageReactionReqBuilder().
		MessageId(ref.MessageID).
		Body(larkim.NewCreateMessageReactionReqBodyBuilder().
			ReactionType(larkim.NewEmojiBuilder().EmojiType(larkEmojiType(emoji)).Build()).
			Build()).
		Build()
	resp, err := c.client.Im.V1.MessageReaction.Create(sendCtx, req)
	if err != nil {
		return fmt.Errorf("failed to add lark reaction: %w", err)
	}
	if !resp.Success() {
		return fmt.Errorf("failed to add lark reaction: code=%d msg=%s", resp.Code, resp.Msg)
	}
	return nil
}

// RemoveReaction is a no-op: an app may only delete reactions it added.
func (c *LarkChannel) RemoveReaction(_ context.Context, ref bus.MessageRef, emoji, userID string) error {
	logger.DebugCF("lark", "Cannot remove another user's reaction", map[string]any{
		"message_id": ref.MessageID,
		"emoji":      emoji,
		"user_id":    userID,
	})
	return nil
}

// MemberRoles grants "owner" to the chat owner. Lark chats have no other
// role model visible to bots.
func (c *LarkChannel) MemberRoles(ctx context.Context, guildID, userID string) ([]string, error) {
	req := larkim.NewGetChatReqBuilder().ChatId(guildID).UserIdType("open_id").Build()
	resp, err := c.client.Im.V1.Chat.Get(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to get lark chat: %w", err)
	}
	if !resp.Success() {
		return nil, fmt.Errorf("failed to get lark chat: code=%d msg=%s", resp.Code, resp.Msg)
	}
	if larkcore.StringValue(resp.Data.OwnerId) == userID {
		return []string{"owner"}, nil
	}
	return nil, nil
}
