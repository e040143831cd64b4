package channels

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/sipeed/picopager/pkg/bus"
	"github.com/sipeed/picopager/pkg/config"
	"github.com/sipeed/picopager/pkg/paginator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newTestConsole(mb *bus.MessageBus) (*ConsoleChannel, *syncBuffer) {
	c := NewConsoleChannel(config.ConsoleConfig{UserID: "me", GuildID: "local", Roles: []string{"Admin"}}, mb)
	out := &syncBuffer{}
	c.out = out
	c.setRunning(true)
	return c, out
}

func TestConsole_MessageLifecycle(t *testing.T) {
	c, out := newTestConsole(bus.NewMessageBus())
	ctx := context.Background()

	ref, err := c.SendMessage(ctx, bus.OutboundMessage{
		ChatID:  consoleChatID,
		Content: "Header",
		Embed:   &bus.Embed{Description: "1. a", Footer: "Page 1/2"},
	})
	require.NoError(t, err)
	assert.Equal(t, "console", ref.Channel)
	assert.Equal(t, "local", ref.GuildID)
	assert.Contains(t, out.String(), "--- message 1 ---\nHeader\n1. a\nPage 1/2\n")

	require.NoError(t, c.EditMessage(ctx, ref, bus.OutboundMessage{Embed: &bus.Embed{
		Fields: []bus.EmbedField{{Value: "2. b"}, {Value: ""}},
	}}))
	assert.Contains(t, out.String(), "[column 1]\n2. b\n[column 2]\n")

	require.NoError(t, c.DeleteMessage(ctx, ref))
	assert.Contains(t, out.String(), "[message 1 deleted]")
	assert.Error(t, c.EditMessage(ctx, ref, bus.OutboundMessage{}))
	assert.Error(t, c.DeleteMessage(ctx, ref))
}

func TestConsole_MemberRoles(t *testing.T) {
	c, _ := newTestConsole(bus.NewMessageBus())
	roles, err := c.MemberRoles(context.Background(), "local", "me")
	require.NoError(t, err)
	assert.Equal(t, []string{"Admin"}, roles)

	_, err = c.MemberRoles(context.Background(), "local", "someone")
	assert.Error(t, err)
}

func TestConsole_ControlWithoutPaginator(t *testing.T) {
	c, out := newTestConsole(bus.NewMessageBus())
	c.handleLine(">")
	assert.Contains(t, out.String(), "no paginated message")
}

func TestConsole_DrivesPaginator(t *testing.T) {
	mb := bus.NewMessageBus()
	c, out := newTestConsole(mb)

	p, err := paginator.NewBuilder().
		SetClient(c).
		SetWaiter(mb.Reactions()).
		SetItems("a", "b", "c", "d", "e").
		SetItemsPerPage(2).
		NumberItems(true).
		SetRoles("Admin").
		Build()
	require.NoError(t, err)

	s, err := p.Paginate(context.Background(), consoleChatID, 1)
	require.NoError(t, err)
	armed := func() bool { return mb.Reactions().Pending() == 1 }
	require.Eventually(t, armed, time.Second, time.Millisecond)

	c.handleLine("next")
	require.Eventually(t, func() bool { return s.Page() == 2 && armed() }, time.Second, time.Millisecond)
	assert.Contains(t, out.String(), "3. c\n4. d\nPage 2/3")

	c.handleLine("<")
	require.Eventually(t, func() bool { return s.Page() == 1 && armed() }, time.Second, time.Millisecond)

	c.handleLine("x")
	reason, err := s.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, paginator.ReasonStopped, reason)
	assert.Contains(t, out.String(), "[message 1 deleted]")
}

func TestConsole_PlainLineIsMessage(t *testing.T) {
	mb := bus.NewMessageBus()
	var got bus.InboundMessage
	mb.SetHandler(func(msg bus.InboundMessage) error {
		got = msg
		return nil
	})
	c, _ := newTestConsole(mb)

	c.handleLine("  !pages 3  ")
	assert.Equal(t, "!pages 3", got.Content)
	assert.Equal(t, "me", got.SenderID)
	assert.Equal(t, "console", got.Channel)
	assert.Equal(t, "local", got.GuildID)
}
