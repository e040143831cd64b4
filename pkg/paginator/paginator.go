// Package paginator displays a list of text items as a multi-page message that
// viewers navigate with reaction controls. A session re-arms itself after every
// accepted reaction and deletes the message when it is stopped, times out or
// can no longer be displayed.
package paginator

import (
	"context"
	"fmt"

	"github.com/sipeed/picopager/pkg/bus"
	"github.com/sipeed/picopager/pkg/logger"
	"github.com/sipeed/picopager/pkg/menu"
)

// Client is the chat platform surface a paginator drives.
type Client interface {
	menu.RoleResolver
	SendMessage(ctx context.Context, msg bus.OutboundMessage) (bus.MessageRef, error)
	EditMessage(ctx context.Context, ref bus.MessageRef, msg bus.OutboundMessage) error
	DeleteMessage(ctx context.Context, ref bus.MessageRef) error
	AddReaction(ctx context.Context, ref bus.MessageRef, emoji string) error
	RemoveReaction(ctx context.Context, ref bus.MessageRef, emoji, userID string) error
}

// Paginator is immutable once built and may run any number of sessions.
type Paginator struct {
	*menu.Menu

	client   Client
	waiter   *bus.Waiter[bus.ReactionEvent]
	registry *Registry

	color           ColorFunc
	text            TextFunc
	columns         int
	itemsPerPage    int
	showPageNumbers bool
	numberItems     bool
	items           []string
	pages           int
}

func (p *Paginator) TotalPages() int {
	return p.pages
}

func (p *Paginator) clamp(page int) int {
	return max(1, min(page, p.pages))
}

// Paginate sends a new paginated message to chatID, starting at page.
func (p *Paginator) Paginate(ctx context.Context, chatID string, page int) (*Session, error) {
	page = p.clamp(page)
	msg := p.Render(page)
	msg.ChatID = chatID

	ref, err := p.client.SendMessage(ctx, msg)
	if err != nil {
		return nil, fmt.Errorf("failed to send paginated message: %w", err)
	}

	s := newSession(p, ref, page)
	if err := p.registry.claim(s); err != nil {
		// Nothing will ever manage the message just sent.
		if derr := p.client.DeleteMessage(ctx, ref); derr != nil {
			logger.WarnCF("paginator", "Failed to delete unclaimed message", map[string]any{
				"message_id": ref.MessageID,
				"error":      derr.Error(),
			})
		}
		return nil, err
	}
	return p.start(ctx, s), nil
}

// PaginateMessage edits an existing message into a paginated one.
func (p *Paginator) PaginateMessage(ctx context.Context, ref bus.MessageRef, page int) (*Session, error) {
	page = p.clamp(page)
	s := newSession(p, ref, page)
	if err := p.registry.claim(s); err != nil {
		return nil, err
	}

	msg := p.Render(page)
	msg.Channel = ref.Channel
	msg.ChatID = ref.ChatID
	if err := p.client.EditMessage(ctx, ref, msg); err != nil {
		p.registry.release(s)
		return nil, fmt.Errorf("failed to edit paginated message: %w", err)
	}
	return p.start(ctx, s), nil
}

// start attaches the controls in order and then hands the session to its
// loop. A control that fails to attach is logged and skipped.
func (p *Paginator) start(ctx context.Context, s *Session) *Session {
	for _, emoji := range controls(p.pages) {
		if err := p.client.AddReaction(ctx, s.ref, emoji); err != nil {
			logger.WarnCF("paginator", "Failed to add control reaction", map[string]any{
				"session_id": s.id,
				"message_id": s.ref.MessageID,
				"emoji":      emoji,
				"error":      err.Error(),
			})
		}
	}

	logger.DebugCF("paginator", "Pagination started", map[string]any{
		"session_id": s.id,
		"channel":    s.ref.Channel,
		"chat_id":    s.ref.ChatID,
		"message_id": s.ref.MessageID,
		"page":       s.Page(),
		"pages":      p.pages,
	})

	go s.run(ctx)
	return s
}
