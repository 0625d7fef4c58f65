// Package session binds an identity to its live channel, its
// notification store and the mutations the user performs on it.
package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/nhle/notehub/internal/logging"
	"github.com/nhle/notehub/internal/model"
	"github.com/nhle/notehub/internal/notify"
	"github.com/nhle/notehub/internal/realtime"
)

// ErrNoIdentity is returned by operations that need a signed-in session.
var ErrNoIdentity = errors.New("no identified session")

// API is the subset of the portal API a session uses.
type API interface {
	ListNotifications(ctx context.Context, recipientID string) ([]model.Notification, error)
	MarkRead(ctx context.Context, id string) error
	DeleteRead(ctx context.Context, recipientID string) error
}

// Connector opens the live channel for an identity. Opening closes any
// channel opened before.
type Connector interface {
	Open(ctx context.Context, identity model.Identity) *realtime.Subscription
	Close() error
}

// Controller owns the active session. Each activation gets a fresh store
// and a new generation; results that arrive for an older generation are
// dropped.
type Controller struct {
	api  API
	conn Connector
	obs  Observer
	logg *logging.Logger

	gen atomic.Uint64
	wg  sync.WaitGroup

	mu     sync.Mutex
	active *active
	closed bool
}

// active is the state of one identified session.
type active struct {
	identity model.Identity
	gen      uint64
	ctx      context.Context
	cancel   context.CancelFunc
	store    *notify.MemoryStore
	presence *notify.Presence
	sub      atomic.Pointer[realtime.Subscription]
}

// NewController creates a Controller with no active session.
func NewController(api API, conn Connector, obs Observer, logg *logging.Logger) *Controller {
	if obs == nil {
		obs = NopObserver{}
	}
	if logg == nil {
		logg = logging.Nop()
	}
	return &Controller{api: api, conn: conn, obs: obs, logg: logg}
}

// Activate switches to identity, or signs out when identity is nil. The
// previous session's channel is closed before the next one is opened.
func (c *Controller) Activate(identity *model.Identity) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	if c.active != nil {
		c.active.cancel()
		c.active = nil
	}
	gen := c.gen.Add(1)

	if identity == nil || !identity.Valid() {
		if err := c.conn.Close(); err != nil {
			c.logg.Error(context.Background(), "closing realtime channel", err)
		}
		c.obs.NotificationsChanged(notify.Snapshot{})
		c.obs.ConnectionChanged(realtime.StateClosed, 0)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	ctx = c.logg.WithRecipient(ctx, identity.RecipientID)
	a := &active{
		identity: *identity,
		gen:      gen,
		ctx:      ctx,
		cancel:   cancel,
		presence: &notify.Presence{},
	}
	a.store = notify.NewMemoryStore(func(snap notify.Snapshot) {
		if c.gen.Load() == gen {
			c.obs.NotificationsChanged(snap)
		}
	})
	c.active = a
	c.obs.NotificationsChanged(notify.Snapshot{})

	c.openLocked(a)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.reload(a)
	}()
}

// Reconnect reopens the live channel of the active session, for example
// after the retry budget ran out.
func (c *Controller) Reconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active == nil {
		return ErrNoIdentity
	}
	c.openLocked(c.active)
	return nil
}

// Refresh reloads the full list from the portal.
func (c *Controller) Refresh() error {
	a := c.current()
	if a == nil {
		return ErrNoIdentity
	}
	c.reload(a)
	return nil
}

// Identity returns the active identity, or nil.
func (c *Controller) Identity() *model.Identity {
	a := c.current()
	if a == nil {
		return nil
	}
	id := a.identity
	return &id
}

// Snapshot returns the active store contents; empty when signed out.
func (c *Controller) Snapshot() notify.Snapshot {
	a := c.current()
	if a == nil {
		return notify.Snapshot{}
	}
	return a.store.Snapshot()
}

// Presence returns the last pushed online count and whether any was received.
func (c *Controller) Presence() (int, bool) {
	a := c.current()
	if a == nil {
		return 0, false
	}
	return a.presence.Get()
}

// State returns the state of the live channel.
func (c *Controller) State() realtime.State {
	a := c.current()
	if a == nil {
		return realtime.StateClosed
	}
	sub := a.sub.Load()
	if sub == nil {
		return realtime.StateConnecting
	}
	return sub.State()
}

// Close ends the active session and waits for its goroutines.
func (c *Controller) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	if c.active != nil {
		c.active.cancel()
		c.active = nil
	}
	c.gen.Add(1)
	err := c.conn.Close()
	c.mu.Unlock()

	c.wg.Wait()
	return err
}

func (c *Controller) current() *active {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// live reports whether a still belongs to the current generation.
func (c *Controller) live(a *active) bool {
	return c.gen.Load() == a.gen
}

func (c *Controller) openLocked(a *active) {
	sub := c.conn.Open(a.ctx, a.identity)
	a.sub.Store(sub)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.ingest(a, sub)
	}()
}

// reload fetches the full list and replaces the store contents. On
// failure the store keeps what it had.
func (c *Controller) reload(a *active) {
	list, err := c.api.ListNotifications(a.ctx, a.identity.RecipientID)
	if !c.live(a) {
		return
	}
	if err != nil {
		c.logg.Error(a.ctx, "loading notifications", err)
		c.obs.Notice("Could not load notifications")
		return
	}
	a.store.Load(list)
}

// IdentitySource is where the Controller learns about sign-in changes.
type IdentitySource interface {
	Current() *model.Identity
	Subscribe(fn func(*model.Identity)) (unsubscribe func())
}

// Follow activates the current identity of src and every later change.
func (c *Controller) Follow(src IdentitySource) (unsubscribe func()) {
	unsubscribe = src.Subscribe(c.Activate)
	if current := src.Current(); current != nil {
		c.Activate(current)
	}
	return unsubscribe
}
