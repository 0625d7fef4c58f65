// Package identity tracks who is signed in and tells interested parties
// when that changes.
package identity

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/nhle/notehub/internal/credential"
	"github.com/nhle/notehub/internal/logging"
	"github.com/nhle/notehub/internal/model"
)

// ErrInvalid is returned by Login for an identity without a recipient id.
var ErrInvalid = errors.New("identity has no recipient id")

// SessionSetter installs the portal session token on outgoing requests.
type SessionSetter interface {
	SetSession(token string)
}

// Provider holds the current identity. Listeners are called in the order
// changes happen, one change at a time.
type Provider struct {
	creds    credential.SessionStore
	sessions SessionSetter
	logg     *logging.Logger

	// publish serializes change notifications.
	publish sync.Mutex

	mu        sync.Mutex
	current   *model.Identity
	listeners map[int]func(*model.Identity)
	nextID    int
}

// NewProvider creates a Provider with no identity.
func NewProvider(creds credential.SessionStore, sessions SessionSetter, logg *logging.Logger) *Provider {
	if logg == nil {
		logg = logging.Nop()
	}
	return &Provider{
		creds:     creds,
		sessions:  sessions,
		logg:      logg,
		listeners: make(map[int]func(*model.Identity)),
	}
}

// Current returns a copy of the current identity, or nil when signed out.
func (p *Provider) Current() *model.Identity {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return nil
	}
	id := *p.current
	return &id
}

// Subscribe registers fn for identity changes and returns a function
// that removes it. fn receives nil after logout.
func (p *Provider) Subscribe(fn func(*model.Identity)) (unsubscribe func()) {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.listeners[id] = fn
	p.mu.Unlock()

	return func() {
		p.mu.Lock()
		delete(p.listeners, id)
		p.mu.Unlock()
	}
}

// Login stores the session token for identity and makes it current.
func (p *Provider) Login(identity model.Identity, token string) error {
	if !identity.Valid() {
		return ErrInvalid
	}
	if err := p.creds.Set(identity.RecipientID, token); err != nil {
		return fmt.Errorf("storing session for %q: %w", identity.RecipientID, err)
	}
	p.sessions.SetSession(token)
	p.set(&identity)

	p.logg.Info(p.logg.WithRecipient(context.Background(), identity.RecipientID), "signed in")
	return nil
}

// Logout forgets the stored token and clears the identity. Logging out
// while signed out does nothing.
func (p *Provider) Logout() error {
	current := p.Current()
	if current == nil {
		return nil
	}
	if err := p.creds.Delete(current.RecipientID); err != nil {
		return fmt.Errorf("forgetting session for %q: %w", current.RecipientID, err)
	}
	p.sessions.SetSession("")
	p.set(nil)

	p.logg.Info(p.logg.WithRecipient(context.Background(), current.RecipientID), "signed out")
	return nil
}

// Restore makes last current again when a session token is still stored
// for it. It reports whether an identity was restored.
func (p *Provider) Restore(last *model.Identity) (bool, error) {
	if last == nil || !last.Valid() {
		return false, nil
	}
	token, err := p.creds.Get(last.RecipientID)
	if errors.Is(err, credential.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	p.sessions.SetSession(token)
	restored := *last
	p.set(&restored)
	return true, nil
}

func (p *Provider) set(identity *model.Identity) {
	p.publish.Lock()
	defer p.publish.Unlock()

	p.mu.Lock()
	p.current = identity
	listeners := make([]func(*model.Identity), 0, len(p.listeners))
	for i := 0; i < p.nextID; i++ {
		if fn, ok := p.listeners[i]; ok {
			listeners = append(listeners, fn)
		}
	}
	p.mu.Unlock()

	for _, fn := range listeners {
		if identity == nil {
			fn(nil)
			continue
		}
		copied := *identity
		fn(&copied)
	}
}
