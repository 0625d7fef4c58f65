// Package realtime maintains the persistent push channel between the
// client and the portal, one per identified session.
package realtime

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nhle/notehub/internal/logging"
	"github.com/nhle/notehub/internal/model"
)

// Options configures a Manager.
type Options struct {
	// URL is the websocket endpoint (ws:// or wss://).
	URL string

	// Jar supplies the ambient session cookie for the handshake.
	Jar http.CookieJar

	ReconnectDelay       time.Duration
	MaxReconnectAttempts int
	HandshakeTimeout     time.Duration

	Logger *logging.Logger
}

// Manager guarantees at most one open Subscription at a time.
type Manager struct {
	opts   Options
	dialer *websocket.Dialer
	logg   *logging.Logger

	mu      sync.Mutex
	current *Subscription
}

// NewManager creates a Manager. Nothing is dialed until Open.
func NewManager(opts Options) *Manager {
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = 2 * time.Second
	}
	if opts.MaxReconnectAttempts < 0 {
		opts.MaxReconnectAttempts = 0
	}
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = 10 * time.Second
	}
	logg := opts.Logger
	if logg == nil {
		logg = logging.Nop()
	}

	return &Manager{
		opts: opts,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: opts.HandshakeTimeout,
			Jar:              opts.Jar,
		},
		logg: logg,
	}
}

// Open closes any existing subscription and starts a new one for
// identity. Connection failures are handled by the subscription's retry
// loop and surface as state events, not as an error here.
func (m *Manager) Open(ctx context.Context, identity model.Identity) *Subscription {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current != nil {
		_ = m.current.Close()
		m.current = nil
	}

	sub := newSubscription(ctx, m, identity)
	m.current = sub
	go sub.run()
	go func() {
		select {
		case <-ctx.Done():
			_ = sub.Close()
		case <-sub.exited:
		}
	}()

	m.logg.Info(m.logg.WithRecipient(ctx, identity.RecipientID), "realtime subscription opened")
	return sub
}

// Current returns the active subscription, or nil.
func (m *Manager) Current() *Subscription {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Close shuts down the active subscription, if any, and waits for it.
func (m *Manager) Close() error {
	m.mu.Lock()
	sub := m.current
	m.current = nil
	m.mu.Unlock()

	if sub == nil {
		return nil
	}
	return sub.Close()
}
