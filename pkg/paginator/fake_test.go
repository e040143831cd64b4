package paginator

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/sipeed/picopager/pkg/bus"
	"github.com/stretchr/testify/require"
)

var errTransport = errors.New("transport failure")

type call struct {
	op    string
	ref   bus.MessageRef
	msg   bus.OutboundMessage
	emoji string
	user  string
}

// fakeClient records every platform call and fails the ops named in failOps.
type fakeClient struct {
	mu      sync.Mutex
	seq     int
	calls   []call
	roles   map[string][]string
	failOps map[string]bool
}

func newFakeClient() *fakeClient {
	return &fakeClient{roles: map[string][]string{}, failOps: map[string]bool{}}
}

func (f *fakeClient) fail(op string) {
	f.mu.Lock()
	f.failOps[op] = true
	f.mu.Unlock()
}

func (f *fakeClient) record(c call) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
	if f.failOps[c.op] {
		return errTransport
	}
	return nil
}

func (f *fakeClient) SendMessage(_ context.Context, msg bus.OutboundMessage) (bus.MessageRef, error) {
	f.mu.Lock()
	f.seq++
	ref := bus.MessageRef{Channel: "fake", ChatID: msg.ChatID, GuildID: "g1", MessageID: "m" + strconv.Itoa(f.seq)}
	f.mu.Unlock()
	if err := f.record(call{op: "send", ref: ref, msg: msg}); err != nil {
		return bus.MessageRef{}, err
	}
	return ref, nil
}

func (f *fakeClient) EditMessage(_ context.Context, ref bus.MessageRef, msg bus.OutboundMessage) error {
	return f.record(call{op: "edit", ref: ref, msg: msg})
}

func (f *fakeClient) DeleteMessage(_ context.Context, ref bus.MessageRef) error {
	return f.record(call{op: "delete", ref: ref})
}

func (f *fakeClient) AddReaction(_ context.Context, ref bus.MessageRef, emoji string) error {
	return f.record(call{op: "react", ref: ref, emoji: emoji})
}

func (f *fakeClient) RemoveReaction(_ context.Context, ref bus.MessageRef, emoji, userID string) error {
	return f.record(call{op: "unreact", ref: ref, emoji: emoji, user: userID})
}

func (f *fakeClient) MemberRoles(_ context.Context, guildID, userID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	roles, ok := f.roles[guildID+"/"+userID]
	if !ok {
		return nil, errors.New("unknown member")
	}
	return roles, nil
}

func (f *fakeClient) ops(op string) []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []call
	for _, c := range f.calls {
		if c.op == op {
			out = append(out, c)
		}
	}
	return out
}

func (f *fakeClient) count(op string) int {
	return len(f.ops(op))
}

func items(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = "item" + strconv.Itoa(i+1)
	}
	return out
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, 2*time.Second, time.Millisecond)
}
