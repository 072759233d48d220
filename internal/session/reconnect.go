package session

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/capitalize-ai/chat-session-engine/internal/transport"
	"github.com/capitalize-ai/chat-session-engine/pkg/logger"
)

// ReconnectPolicy parameterizes the supervisory reconnect loop.
type ReconnectPolicy struct {
	// MaxAttempts bounds consecutive failed reconnects before the
	// supervisor gives up. Zero or negative means unlimited.
	MaxAttempts int
	// InitialInterval is the first backoff wait. Defaults to 1s when zero.
	InitialInterval time.Duration
	// MaxInterval caps the backoff wait. Defaults to 30s when zero.
	MaxInterval time.Duration
}

// Reconnector is an explicit supervisory loop wrapped around the
// transport's Connect. It lives outside the transport: the connection
// itself never retries. Feed it state transitions via Observe, typically
// from the controller's OnStateChange hook.
type Reconnector struct {
	tr     Transport
	policy ReconnectPolicy
	log    *logger.Logger

	signals chan transport.State
}

// NewReconnector creates a reconnect supervisor for tr.
func NewReconnector(tr Transport, policy ReconnectPolicy, log *logger.Logger) *Reconnector {
	if policy.InitialInterval <= 0 {
		policy.InitialInterval = time.Second
	}
	if policy.MaxInterval <= 0 {
		policy.MaxInterval = 30 * time.Second
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Reconnector{
		tr:      tr,
		policy:  policy,
		log:     log,
		signals: make(chan transport.State, 8),
	}
}

// Observe feeds a transport state transition to the supervisor. Never
// blocks; a full signal buffer drops older intent, which is harmless since
// only the latest state matters.
func (r *Reconnector) Observe(st transport.State) {
	select {
	case r.signals <- st:
	default:
	}
}

// Run supervises until ctx is done or the attempt budget is exhausted.
func (r *Reconnector) Run(ctx context.Context) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = r.policy.InitialInterval
	bo.MaxInterval = r.policy.MaxInterval
	bo.MaxElapsedTime = 0

	attempts := 0

	for {
		select {
		case <-ctx.Done():
			return
		case st := <-r.signals:
			switch st {
			case transport.StateConnected:
				bo.Reset()
				attempts = 0

			case transport.StateDisconnected:
				if r.policy.MaxAttempts > 0 && attempts >= r.policy.MaxAttempts {
					r.log.Warn("reconnect attempts exhausted", "attempts", attempts)
					return
				}

				wait := bo.NextBackOff()
				r.log.Info("reconnecting", "attempt", attempts+1, "wait", wait)

				select {
				case <-ctx.Done():
					return
				case <-time.After(wait):
				}

				attempts++
				r.tr.Connect(ctx)
			}
		}
	}
}
