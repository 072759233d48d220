// Package session orchestrates one chat session: it binds user submissions,
// transport events, and conversation history together.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/capitalize-ai/chat-session-engine/internal/model"
	"github.com/capitalize-ai/chat-session-engine/internal/store"
	"github.com/capitalize-ai/chat-session-engine/internal/transport"
	"github.com/capitalize-ai/chat-session-engine/pkg/logger"
)

var (
	// ErrNotAuthenticated is returned by Start when the authorizer rejects
	// the session.
	ErrNotAuthenticated = errors.New("session not authenticated")

	// ErrNoActiveConversation is returned by SubmitUserText when no
	// conversation is active.
	ErrNoActiveConversation = errors.New("no active conversation")

	// ErrResponseTimeout is recorded when a pending assistant reply does
	// not arrive within the configured bound.
	ErrResponseTimeout = errors.New("timed out waiting for response")
)

const defaultTitle = "New Chat"

// Transport is the connection surface the controller drives. Satisfied by
// *transport.Conn; tests substitute a fake.
type Transport interface {
	Connect(ctx context.Context)
	Send(text string) error
	Close() error
	Events() <-chan transport.Event
	State() transport.State
}

// Authorizer answers whether a session is currently authenticated. The
// controller consults it once, before activating the transport.
type Authorizer interface {
	Authenticated(ctx context.Context) (bool, error)
}

// AuthorizerFunc adapts a function to the Authorizer interface.
type AuthorizerFunc func(ctx context.Context) (bool, error)

// Authenticated implements Authorizer.
func (f AuthorizerFunc) Authenticated(ctx context.Context) (bool, error) {
	return f(ctx)
}

// Config holds the controller's tunables.
type Config struct {
	// ResponseTimeout bounds the wait for an assistant reply after a
	// successful send. Zero leaves pending requests pending indefinitely;
	// there is no built-in default.
	ResponseTimeout time.Duration

	// OnAssistantMessage, when set, is invoked after an assistant message
	// has been appended to the store. Called outside the controller's lock.
	OnAssistantMessage func(model.Message)

	// OnStateChange, when set, is invoked for every transport state
	// transition. Called outside the controller's lock.
	OnStateChange func(transport.State)
}

// Controller owns one session's state: the active conversation, the
// awaiting-response flag, and the last seen error. Every handler runs to
// completion under one lock, so two rapid submissions append in submission
// order and transport events never interleave mid-mutation.
type Controller struct {
	cfg   Config
	store *store.Store
	tr    Transport
	auth  Authorizer
	log   *logger.Logger

	mu        sync.Mutex
	connState transport.State
	awaiting  bool
	lastErr   error
	pending   uint64
	timer     *time.Timer
}

// New creates a controller over the given store and transport.
func New(cfg Config, st *store.Store, tr Transport, auth Authorizer, log *logger.Logger) *Controller {
	if log == nil {
		log = logger.NewNop()
	}
	return &Controller{
		cfg:       cfg,
		store:     st,
		tr:        tr,
		auth:      auth,
		log:       log,
		connState: tr.State(),
	}
}

// Start gates on authentication, guarantees an active conversation, and
// activates the transport. Connection progress arrives through Run.
func (c *Controller) Start(ctx context.Context) error {
	if c.auth != nil {
		ok, err := c.auth.Authenticated(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return ErrNotAuthenticated
		}
	}

	c.EnsureConversation()
	c.tr.Connect(ctx)
	return nil
}

// Run pumps transport events into the controller until ctx is done. It is
// the single consumer of the transport's event channel.
func (c *Controller) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-c.tr.Events():
			c.HandleEvent(ev)
		}
	}
}

// EnsureConversation guarantees at least one conversation exists and is
// active, and returns the active id. Idempotent.
func (c *Controller) EnsureConversation() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ensureConversationLocked()
}

func (c *Controller) ensureConversationLocked() string {
	if id := c.store.ActiveConversationID(); id != "" {
		return id
	}

	convs := c.store.Conversations()
	if len(convs) > 0 {
		// Conversations exist but none is active; take the first.
		_ = c.store.SelectConversation(convs[0].ID)
		return convs[0].ID
	}

	id := c.store.CreateConversation(defaultTitle)
	_ = c.store.SelectConversation(id)
	c.log.Debug("created conversation", "conversation_id", id)
	return id
}

// SubmitUserText appends text as a user message to the active conversation
// and sends it over the transport. The appended message stays in history
// even when the send fails: history records user intent, not delivery.
func (c *Controller) SubmitUserText(text string) error {
	c.mu.Lock()

	convID := c.store.ActiveConversationID()
	if convID == "" {
		c.mu.Unlock()
		c.log.Warn("submit dropped, no active conversation")
		return ErrNoActiveConversation
	}

	msg := model.NewUserMessage(convID, text)
	if err := c.store.AppendMessage(convID, msg); err != nil {
		c.mu.Unlock()
		return err
	}

	c.awaiting = true

	if err := c.tr.Send(text); err != nil {
		c.awaiting = false
		c.lastErr = err
		c.mu.Unlock()
		c.log.Warn("send failed, message kept in history", "conversation_id", convID, "error", err)
		return err
	}

	c.lastErr = nil
	c.armTimeoutLocked()
	c.mu.Unlock()
	return nil
}

// HandleEvent applies one transport event. Exported so tests can drive the
// controller without a live connection; Run calls it for every event.
func (c *Controller) HandleEvent(ev transport.Event) {
	switch ev.Kind {
	case transport.KindMessage:
		c.onMessage(ev.Text)
	case transport.KindError:
		c.onError(ev.Err)
	case transport.KindStateChange:
		c.onStateChange(ev.State)
	}
}

func (c *Controller) onMessage(text string) {
	c.mu.Lock()
	convID := c.ensureConversationLocked()
	msg := model.NewAssistantMessage(convID, text)
	if err := c.store.AppendMessage(convID, msg); err != nil {
		// Only possible if the conversation vanished, which the store
		// forbids; surface rather than drop silently.
		c.lastErr = err
		c.mu.Unlock()
		c.log.Error("failed to append assistant message", "conversation_id", convID, "error", err)
		return
	}
	c.awaiting = false
	c.lastErr = nil
	c.disarmTimeoutLocked()
	cb := c.cfg.OnAssistantMessage
	c.mu.Unlock()

	if cb != nil {
		cb(msg)
	}
}

func (c *Controller) onError(err error) {
	c.mu.Lock()
	// A pending request stays pending: only an assistant message or the
	// response timeout resolves it.
	c.lastErr = err
	c.mu.Unlock()
	c.log.Warn("transport error", "error", err)
}

func (c *Controller) onStateChange(st transport.State) {
	c.mu.Lock()
	c.connState = st
	if st == transport.StateConnected {
		c.lastErr = nil
	}
	cb := c.cfg.OnStateChange
	c.mu.Unlock()

	if cb != nil {
		cb(st)
	}
}

// armTimeoutLocked starts the response timer for the current submission.
func (c *Controller) armTimeoutLocked() {
	if c.cfg.ResponseTimeout <= 0 {
		return
	}
	c.disarmTimeoutLocked()

	c.pending++
	gen := c.pending
	c.timer = time.AfterFunc(c.cfg.ResponseTimeout, func() {
		c.mu.Lock()
		if c.awaiting && gen == c.pending {
			c.awaiting = false
			c.lastErr = ErrResponseTimeout
			c.mu.Unlock()
			c.log.Warn("response timed out", "timeout", c.cfg.ResponseTimeout)
			return
		}
		c.mu.Unlock()
	})
}

func (c *Controller) disarmTimeoutLocked() {
	c.pending++
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

// AwaitingResponse reports whether a user submission is still waiting for
// its assistant reply.
func (c *Controller) AwaitingResponse() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.awaiting
}

// ConnectionState returns the last observed transport state.
func (c *Controller) ConnectionState() transport.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connState
}

// LastError returns the last seen failure, or nil after a successful
// operation cleared it.
func (c *Controller) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Close releases the transport.
func (c *Controller) Close() error {
	c.mu.Lock()
	c.disarmTimeoutLocked()
	c.mu.Unlock()
	return c.tr.Close()
}
