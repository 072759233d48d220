package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/chat-session-engine/internal/transport"
)

func (f *fakeTransport) connectCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connects
}

func TestReconnectorRetriesOnDisconnect(t *testing.T) {
	tr := newFakeTransport(transport.StateDisconnected)
	r := NewReconnector(tr, ReconnectPolicy{
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx)

	r.Observe(transport.StateDisconnected)

	require.Eventually(t, func() bool {
		return tr.connectCount() >= 1
	}, time.Second, 5*time.Millisecond)
}

func TestReconnectorResetsOnConnected(t *testing.T) {
	tr := newFakeTransport(transport.StateDisconnected)
	r := NewReconnector(tr, ReconnectPolicy{
		MaxAttempts:     2,
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx)

	// Two failures exhaust the budget unless a connect intervenes.
	r.Observe(transport.StateDisconnected)
	require.Eventually(t, func() bool { return tr.connectCount() == 1 }, time.Second, time.Millisecond)

	r.Observe(transport.StateConnected)
	r.Observe(transport.StateDisconnected)
	require.Eventually(t, func() bool { return tr.connectCount() == 2 }, time.Second, time.Millisecond)

	r.Observe(transport.StateConnected)
	r.Observe(transport.StateDisconnected)
	require.Eventually(t, func() bool { return tr.connectCount() == 3 }, time.Second, time.Millisecond)
}

func TestReconnectorStopsAfterMaxAttempts(t *testing.T) {
	tr := newFakeTransport(transport.StateDisconnected)
	r := NewReconnector(tr, ReconnectPolicy{
		MaxAttempts:     2,
		InitialInterval: time.Millisecond,
		MaxInterval:     2 * time.Millisecond,
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	r.Observe(transport.StateDisconnected)
	require.Eventually(t, func() bool { return tr.connectCount() == 1 }, time.Second, time.Millisecond)
	r.Observe(transport.StateDisconnected)
	require.Eventually(t, func() bool { return tr.connectCount() == 2 }, time.Second, time.Millisecond)

	// Third disconnect exceeds the budget; the supervisor exits.
	r.Observe(transport.StateDisconnected)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("reconnector did not stop after exhausting attempts")
	}
	assert.Equal(t, 2, tr.connectCount())
}
