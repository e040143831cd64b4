package bus

import (
	"fmt"
	"sync"

	"github.com/sipeed/picopager/pkg/logger"
)

// MessageBus connects platform channels to the rest of the bot: chat messages
// go to a single handler, reactions go to a shared Waiter.
type MessageBus struct {
	mu        sync.RWMutex
	handler   MessageHandler
	reactions *Waiter[ReactionEvent]
}

func NewMessageBus() *MessageBus {
	return &MessageBus{reactions: NewWaiter[ReactionEvent]()}
}

func (mb *MessageBus) SetHandler(h MessageHandler) {
	mb.mu.Lock()
	mb.handler = h
	mb.mu.Unlock()
}

func (mb *MessageBus) PublishInbound(msg InboundMessage) error {
	mb.mu.RLock()
	h := mb.handler
	mb.mu.RUnlock()

	if h == nil {
		logger.DebugCF("bus", "Inbound message dropped, no handler", map[string]any{
			"channel": msg.Channel,
			"chat_id": msg.ChatID,
		})
		return nil
	}
	if err := h(msg); err != nil {
		return fmt.Errorf("failed to handle inbound message: %w", err)
	}
	return nil
}

func (mb *MessageBus) PublishReaction(ev ReactionEvent) int {
	return mb.reactions.Publish(ev)
}

func (mb *MessageBus) Reactions() *Waiter[ReactionEvent] {
	return mb.reactions
}
