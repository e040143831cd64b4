// Package bot turns chat commands into paginated messages on whichever
// channel the command arrived from.
package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/sipeed/picopager/pkg/bus"
	"github.com/sipeed/picopager/pkg/channels"
	"github.com/sipeed/picopager/pkg/config"
	"github.com/sipeed/picopager/pkg/logger"
	"github.com/sipeed/picopager/pkg/paginator"
)

// ErrStopping is returned for commands that arrive after Stop began.
var ErrStopping = errors.New("bot is stopping")

const helpText = "Commands:\n" +
	"  %[1]spages [n]      browse the configured list, starting at page n\n" +
	"  %[1]slist a, b, c   browse the given items\n" +
	"  %[1]shelp           show this message"

type Bot struct {
	cfg      config.Config
	bus      *bus.MessageBus
	registry *paginator.Registry

	mu       sync.RWMutex
	ctx      context.Context
	stopping bool
	channels map[string]channels.Channel
	sessions sync.WaitGroup
}

func New(cfg config.Config, mb *bus.MessageBus) *Bot {
	return &Bot{
		cfg:      cfg,
		bus:      mb,
		registry: paginator.NewRegistry(),
		ctx:      context.Background(),
		channels: make(map[string]channels.Channel),
	}
}

func (b *Bot) AddChannel(ch channels.Channel) {
	b.mu.Lock()
	b.channels[ch.Name()] = ch
	b.mu.Unlock()
}

func (b *Bot) channel(name string) (channels.Channel, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	ch, ok := b.channels[name]
	return ch, ok
}

// Start starts every channel. Sessions opened later live until ctx is done.
func (b *Bot) Start(ctx context.Context) error {
	b.mu.Lock()
	b.ctx = ctx
	chans := make([]channels.Channel, 0, len(b.channels))
	for _, ch := range b.channels {
		chans = append(chans, ch)
	}
	b.mu.Unlock()

	b.bus.SetHandler(b.HandleInbound)

	for i, ch := range chans {
		if err := ch.Start(ctx); err != nil {
			for _, started := range chans[:i] {
				_ = started.Stop(ctx)
			}
			return fmt.Errorf("failed to start %s channel: %w", ch.Name(), err)
		}
	}
	return nil
}

// Stop rejects further commands, waits for live sessions to finish their
// cleanup, then stops channels.
func (b *Bot) Stop(ctx context.Context) error {
	b.mu.Lock()
	b.stopping = true
	b.mu.Unlock()

	done := make(chan struct{})
	go func() {
		b.sessions.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		logger.WarnCF("bot", "Sessions still running at shutdown", map[string]any{
			"active": b.registry.Len(),
		})
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	var errs []error
	for _, ch := range b.channels {
		if err := ch.Stop(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// HandleInbound runs a prefixed command. Other messages are ignored.
func (b *Bot) HandleInbound(msg bus.InboundMessage) error {
	name, args, ok := parseCommand(b.cfg.Bot.Prefix, msg.Content)
	if !ok {
		return nil
	}

	ch, ok := b.channel(msg.Channel)
	if !ok {
		return fmt.Errorf("unknown channel %q", msg.Channel)
	}

	b.mu.RLock()
	ctx := b.ctx
	b.mu.RUnlock()

	logger.DebugCF("bot", "Command received", map[string]any{
		"channel":   msg.Channel,
		"chat_id":   msg.ChatID,
		"sender_id": msg.SenderID,
		"command":   name,
	})

	switch name {
	case "pages":
		page := 1
		if args != "" {
			n, err := strconv.Atoi(args)
			if err != nil {
				return b.reply(ctx, ch, msg, fmt.Sprintf("usage: %spages [n]", b.cfg.Bot.Prefix))
			}
			page = n
		}
		return b.paginate(ctx, ch, msg, b.cfg.Bot.Items, page)
	case "list":
		items := splitItems(args)
		if len(items) == 0 {
			return b.reply(ctx, ch, msg, fmt.Sprintf("usage: %slist a, b, c", b.cfg.Bot.Prefix))
		}
		return b.paginate(ctx, ch, msg, items, 1)
	case "help":
		return b.reply(ctx, ch, msg, fmt.Sprintf(helpText, b.cfg.Bot.Prefix))
	}
	return nil
}

func (b *Bot) paginate(ctx context.Context, ch channels.Channel, msg bus.InboundMessage, items []string, page int) error {
	p, err := b.newPaginator(ch, items, msg.SenderID)
	if err != nil {
		return err
	}

	// Add must not race Stop's Wait, so it happens under mu.
	b.mu.Lock()
	if b.stopping {
		b.mu.Unlock()
		return ErrStopping
	}
	b.sessions.Add(1)
	b.mu.Unlock()

	s, err := p.Paginate(ctx, msg.ChatID, page)
	if err != nil {
		b.sessions.Done()
		return err
	}

	go func() {
		defer b.sessions.Done()
		<-s.Done()
	}()

	logger.InfoCF("bot", "Paginator opened", map[string]any{
		"channel":    msg.Channel,
		"chat_id":    msg.ChatID,
		"session_id": s.ID(),
		"items":      len(items),
		"pages":      p.TotalPages(),
	})
	return nil
}

func (b *Bot) newPaginator(ch channels.Channel, items []string, invoker string) (*paginator.Paginator, error) {
	pc := b.cfg.Paginator
	color, err := config.ParseColor(pc.Color)
	if err != nil {
		return nil, err
	}

	builder := paginator.NewBuilder().
		SetClient(ch).
		SetWaiter(b.bus.Reactions()).
		SetRegistry(b.registry).
		SetItems(items...).
		SetItemsPerPage(pc.ItemsPerPage).
		SetColumns(pc.Columns).
		ShowPageNumbers(pc.ShowPageNumbers).
		NumberItems(pc.NumberItems).
		SetUsers(pc.AuthorizedUsers...).
		SetRoles(pc.AuthorizedRoles...).
		SetTimeout(pc.Timeout)

	if color != 0 {
		builder.SetStaticColor(color)
	}
	if pc.Text != "" {
		builder.SetStaticText(pc.Text)
	}
	if b.cfg.Bot.RestrictToInvoker && invoker != "" {
		builder.AddUsers(invoker)
	}
	return builder.Build()
}

func (b *Bot) reply(ctx context.Context, ch channels.Channel, msg bus.InboundMessage, text string) error {
	_, err := ch.SendMessage(ctx, bus.OutboundMessage{
		Channel: msg.Channel,
		ChatID:  msg.ChatID,
		Content: text,
	})
	if err != nil {
		return fmt.Errorf("failed to send reply: %w", err)
	}
	return nil
}

func parseCommand(prefix, content string) (name, args string, ok bool) {
	content = strings.TrimSpace(content)
	if prefix == "" || !strings.HasPrefix(content, prefix) {
		return "", "", false
	}
	rest := strings.TrimSpace(strings.TrimPrefix(content, prefix))
	if rest == "" {
		return "", "", false
	}
	name, args, _ = strings.Cut(rest, " ")
	return strings.ToLower(name), strings.TrimSpace(args), true
}

func splitItems(s string) []string {
	var items []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			items = append(items, part)
		}
	}
	return items
}
