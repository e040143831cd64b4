package channels

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"

	"github.com/sipeed/picopager/pkg/bus"
	"github.com/sipeed/picopager/pkg/logger"
	"github.com/sipeed/picopager/pkg/paginator"
)

var ErrNotRunning = errors.New("channel not running")

// Channel is a chat platform connection the bot can paginate on.
type Channel interface {
	paginator.Client
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	IsRunning() bool
}

type BaseChannel struct {
	name      string
	bus       *bus.MessageBus
	allowList map[string]struct{}
	running   atomic.Bool
}

func NewBaseChannel(name string, mb *bus.MessageBus, allowFrom []string) *BaseChannel {
	allow := make(map[string]struct{}, len(allowFrom))
	for _, id := range allowFrom {
		if id != "" {
			allow[id] = struct{}{}
		}
	}
	return &BaseChannel{name: name, bus: mb, allowList: allow}
}

func (c *BaseChannel) Name() string {
	return c.name
}

func (c *BaseChannel) IsRunning() bool {
	return c.running.Load()
}

func (c *BaseChannel) setRunning(running bool) {
	c.running.Store(running)
}

// IsAllowed reports whether senderID may talk to the bot at all. An empty
// allow-list admits everyone.
func (c *BaseChannel) IsAllowed(senderID string) bool {
	if len(c.allowList) == 0 {
		return true
	}
	_, ok := c.allowList[senderID]
	return ok
}

func (c *BaseChannel) HandleMessage(senderID, chatID, guildID, content string, metadata map[string]string) {
	if !c.IsAllowed(senderID) {
		return
	}
	msg := bus.InboundMessage{
		Channel:  c.name,
		SenderID: senderID,
		ChatID:   chatID,
		GuildID:  guildID,
		Content:  content,
		Metadata: metadata,
	}
	if err := c.bus.PublishInbound(msg); err != nil {
		logger.ErrorCF(c.name, "Failed to handle message", map[string]any{
			"sender_id": senderID,
			"chat_id":   chatID,
			"error":     err.Error(),
		})
	}
}

func (c *BaseChannel) HandleReaction(ev bus.ReactionEvent) {
	if !c.IsAllowed(ev.UserID) {
		logger.DebugCF(c.name, "Reaction rejected by allowlist", map[string]any{
			"user_id": ev.UserID,
		})
		return
	}
	ev.Channel = c.name
	c.bus.PublishReaction(ev)
}

// plainText flattens a message for platforms without embeds.
func plainText(msg bus.OutboundMessage) string {
	var parts []string
	if msg.Content != "" {
		parts = append(parts, msg.Content)
	}
	if e := msg.Embed; e != nil {
		if e.Description != "" {
			parts = append(parts, e.Description)
		}
		for _, f := range e.Fields {
			if f.Name != "" {
				parts = append(parts, f.Name)
			}
			if f.Value != "" {
				parts = append(parts, f.Value)
			}
		}
		if e.Footer != "" {
			parts = append(parts, e.Footer)
		}
	}
	return strings.Join(parts, "\n\n")
}
