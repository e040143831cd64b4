package paginator

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sipeed/picopager/pkg/bus"
	"github.com/sipeed/picopager/pkg/logger"
)

const deleteTimeout = 10 * time.Second

// Reason records why a session ended.
type Reason int32

const (
	ReasonNone Reason = iota
	ReasonStopped
	ReasonTimeout
	ReasonFailed
	ReasonCanceled
)

func (r Reason) String() string {
	switch r {
	case ReasonStopped:
		return "stopped"
	case ReasonTimeout:
		return "timeout"
	case ReasonFailed:
		return "failed"
	case ReasonCanceled:
		return "canceled"
	default:
		return "none"
	}
}

// Session is one live paginated message. Only its own loop goroutine changes
// the current page.
type Session struct {
	id     string
	p      *Paginator
	ref    bus.MessageRef
	page   atomic.Int64
	reason atomic.Int32
	done   chan struct{}
}

func newSession(p *Paginator, ref bus.MessageRef, page int) *Session {
	s := &Session{
		id:   uuid.NewString(),
		p:    p,
		ref:  ref,
		done: make(chan struct{}),
	}
	s.page.Store(int64(page))
	return s
}

func (s *Session) ID() string              { return s.id }
func (s *Session) Message() bus.MessageRef { return s.ref }
func (s *Session) Page() int               { return int(s.page.Load()) }
func (s *Session) Reason() Reason          { return Reason(s.reason.Load()) }
func (s *Session) Done() <-chan struct{}   { return s.done }

// Wait blocks until the session has ended or ctx is done.
func (s *Session) Wait(ctx context.Context) (Reason, error) {
	select {
	case <-s.done:
		return s.Reason(), nil
	case <-ctx.Done():
		return ReasonNone, ctx.Err()
	}
}

func (s *Session) run(ctx context.Context) {
	defer close(s.done)
	defer s.p.registry.release(s)

	match := s.qualifies(ctx)
	for {
		ev, err := s.p.waiter.Next(ctx, match, s.p.Timeout())
		if err != nil {
			if errors.Is(err, bus.ErrWaitTimeout) {
				s.terminate(ctx, ReasonTimeout)
			} else {
				s.terminate(ctx, ReasonCanceled)
			}
			return
		}

		if ev.Emoji == Stop {
			s.terminate(ctx, ReasonStopped)
			return
		}
		if !s.turn(ctx, ev) {
			s.terminate(ctx, ReasonFailed)
			return
		}
	}
}

func (s *Session) qualifies(ctx context.Context) func(bus.ReactionEvent) bool {
	return func(ev bus.ReactionEvent) bool {
		if ev.Channel != s.ref.Channel || ev.ChatID != s.ref.ChatID || ev.MessageID != s.ref.MessageID {
			return false
		}
		if !isControl(ev.Emoji) {
			return false
		}
		return s.p.IsAuthorized(ctx, s.p.client, ev.UserID, ev.GuildID)
	}
}

// turn moves one page for a previous/next reaction and redraws the message.
// It reports false when the message could not be updated.
func (s *Session) turn(ctx context.Context, ev bus.ReactionEvent) bool {
	page := s.Page()
	switch ev.Emoji {
	case Left:
		page = max(1, page-1)
	case Right:
		page = min(s.p.pages, page+1)
	}

	if err := s.p.client.RemoveReaction(ctx, s.ref, ev.Emoji, ev.UserID); err != nil {
		logger.DebugCF("paginator", "Failed to remove reaction", map[string]any{
			"session_id": s.id,
			"user_id":    ev.UserID,
			"emoji":      ev.Emoji,
			"error":      err.Error(),
		})
	}

	msg := s.p.Render(page)
	msg.Channel = s.ref.Channel
	msg.ChatID = s.ref.ChatID
	if err := s.p.client.EditMessage(ctx, s.ref, msg); err != nil {
		logger.ErrorCF("paginator", "Failed to update page", map[string]any{
			"session_id": s.id,
			"message_id": s.ref.MessageID,
			"page":       page,
			"error":      err.Error(),
		})
		return false
	}
	s.page.Store(int64(page))
	return true
}

// terminate deletes the message. The delete runs detached from ctx so that a
// shutting-down host still cleans up.
func (s *Session) terminate(ctx context.Context, reason Reason) {
	s.reason.Store(int32(reason))

	dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), deleteTimeout)
	defer cancel()
	if err := s.p.client.DeleteMessage(dctx, s.ref); err != nil {
		logger.WarnCF("paginator", "Failed to delete paginated message", map[string]any{
			"session_id": s.id,
			"message_id": s.ref.MessageID,
			"error":      err.Error(),
		})
	}

	logger.DebugCF("paginator", "Pagination ended", map[string]any{
		"session_id": s.id,
		"message_id": s.ref.MessageID,
		"page":       s.Page(),
		"reason":     reason.String(),
	})
}
