package channels

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/chzyer/readline"
	"github.com/sipeed/picopager/pkg/bus"
	"github.com/sipeed/picopager/pkg/config"
	"github.com/sipeed/picopager/pkg/logger"
	"github.com/sipeed/picopager/pkg/paginator"
)

const consoleChatID = "console"

var consoleControls = map[string]string{
	"<":             paginator.Left,
	"prev":          paginator.Left,
	paginator.Left:  paginator.Left,
	">":             paginator.Right,
	"next":          paginator.Right,
	paginator.Right: paginator.Right,
	"x":             paginator.Stop,
	"stop":          paginator.Stop,
	paginator.Stop:  paginator.Stop,
}

// ConsoleChannel is a local terminal stand-in for a chat platform. Lines
// typed at the prompt become messages from the configured user, except the
// control shortcuts, which react to the most recent paginated message.
type ConsoleChannel struct {
	*BaseChannel
	config config.ConsoleConfig

	mu       sync.Mutex
	rl       *readline.Instance
	out      io.Writer
	seq      int
	messages map[string]bus.OutboundMessage
	last     string
	done     chan struct{}
}

func NewConsoleChannel(cfg config.ConsoleConfig, mb *bus.MessageBus) *ConsoleChannel {
	return &ConsoleChannel{
		BaseChannel: NewBaseChannel("console", mb, nil),
		config:      cfg,
		out:         os.Stdout,
		messages:    make(map[string]bus.OutboundMessage),
		done:        make(chan struct{}),
	}
}

func (c *ConsoleChannel) Start(ctx context.Context) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "> ",
		HistoryFile:     c.config.HistoryFile,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("failed to open console: %w", err)
	}

	c.mu.Lock()
	c.rl = rl
	c.out = rl.Stdout()
	c.mu.Unlock()

	c.setRunning(true)
	logger.InfoCF("console", "Console ready", map[string]any{
		"user_id": c.config.UserID,
	})
	c.printf("Type %q to page, %q/%q/%q to navigate, Ctrl-D to quit.\n", "!pages", "<", ">", "x")

	go c.readLoop(ctx, rl)
	return nil
}

func (c *ConsoleChannel) Stop(ctx context.Context) error {
	c.setRunning(false)
	c.mu.Lock()
	rl := c.rl
	c.mu.Unlock()
	if rl == nil {
		return nil
	}
	if err := rl.Close(); err != nil {
		return fmt.Errorf("failed to close console: %w", err)
	}
	return nil
}

// Done is closed when the user ends input.
func (c *ConsoleChannel) Done() <-chan struct{} {
	return c.done
}

func (c *ConsoleChannel) readLoop(ctx context.Context, rl *readline.Instance) {
	defer close(c.done)
	for ctx.Err() == nil {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			if line == "" {
				return
			}
			continue
		}
		if err != nil {
			return
		}
		c.handleLine(line)
	}
}

func (c *ConsoleChannel) handleLine(line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}

	if emoji, ok := consoleControls[strings.ToLower(line)]; ok {
		c.mu.Lock()
		target := c.last
		c.mu.Unlock()
		if target == "" {
			c.printf("no paginated message to react to\n")
			return
		}
		c.HandleReaction(bus.ReactionEvent{
			ChatID:    consoleChatID,
			GuildID:   c.config.GuildID,
			MessageID: target,
			UserID:    c.config.UserID,
			Emoji:     emoji,
		})
		return
	}

	c.HandleMessage(c.config.UserID, consoleChatID, c.config.GuildID, line, nil)
}

func (c *ConsoleChannel) SendMessage(_ context.Context, msg bus.OutboundMessage) (bus.MessageRef, error) {
	if !c.IsRunning() {
		return bus.MessageRef{}, ErrNotRunning
	}

	c.mu.Lock()
	c.seq++
	id := strconv.Itoa(c.seq)
	c.messages[id] = msg
	c.mu.Unlock()

	c.printf("%s", formatConsole(id, msg))
	return bus.MessageRef{
		Channel:   c.Name(),
		ChatID:    consoleChatID,
		GuildID:   c.config.GuildID,
		MessageID: id,
	}, nil
}

func (c *ConsoleChannel) EditMessage(_ context.Context, ref bus.MessageRef, msg bus.OutboundMessage) error {
	if !c.IsRunning() {
		return ErrNotRunning
	}

	c.mu.Lock()
	_, ok := c.messages[ref.MessageID]
	if ok {
		c.messages[ref.MessageID] = msg
	}
	c.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown console message %s", ref.MessageID)
	}

	c.printf("%s", formatConsole(ref.MessageID, msg))
	return nil
}

func (c *ConsoleChannel) DeleteMessage(_ context.Context, ref bus.MessageRef) error {
	c.mu.Lock()
	_, ok := c.messages[ref.MessageID]
	delete(c.messages, ref.MessageID)
	if c.last == ref.MessageID {
		c.last = ""
	}
	c.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown console message %s", ref.MessageID)
	}

	c.printf("[message %s deleted]\n", ref.MessageID)
	return nil
}

// AddReaction makes the message the target of control shortcuts.
func (c *ConsoleChannel) AddReaction(_ context.Context, ref bus.MessageRef, _ string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.messages[ref.MessageID]; !ok {
		return fmt.Errorf("unknown console message %s", ref.MessageID)
	}
	c.last = ref.MessageID
	return nil
}

// RemoveReaction has nothing to undo; console reactions are not kept.
func (c *ConsoleChannel) RemoveReaction(context.Context, bus.MessageRef, string, string) error {
	return nil
}

func (c *ConsoleChannel) MemberRoles(_ context.Context, _, userID string) ([]string, error) {
	if userID != c.config.UserID {
		return nil, fmt.Errorf("unknown console user %s", userID)
	}
	return c.config.Roles, nil
}

func (c *ConsoleChannel) printf(format string, args ...any) {
	c.mu.Lock()
	out := c.out
	c.mu.Unlock()
	fmt.Fprintf(out, format, args...)
}

func formatConsole(id string, msg bus.OutboundMessage) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "--- message %s ---\n", id)
	if msg.Content != "" {
		sb.WriteString(msg.Content + "\n")
	}
	if e := msg.Embed; e != nil {
		if e.Description != "" {
			sb.WriteString(e.Description + "\n")
		}
		for i, f := range e.Fields {
			fmt.Fprintf(&sb, "[column %d]\n", i+1)
			if f.Value != "" {
				sb.WriteString(f.Value + "\n")
			}
		}
		if e.Footer != "" {
			sb.WriteString(e.Footer + "\n")
		}
	}
	return sb.String()
}
