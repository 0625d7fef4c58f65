package credential

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/99designs/keyring"

	"github.com/nhle/notehub/internal/model"
)

const serviceName = "notehub"

// ErrNotFound is returned when no session credential is stored for a recipient.
var ErrNotFound = errors.New("credential not found")

// SessionStore persists the portal session token per recipient.
type SessionStore interface {
	Get(recipientID string) (string, error)
	Set(recipientID, token string) error
	Delete(recipientID string) error
}

// Keyring is a SessionStore backed by the system keyring.
type Keyring struct {
	ring keyring.Keyring
}

// OpenKeyring returns a keyring-backed session store. The file backend is
// used as the last resort on machines without a secret service.
func OpenKeyring() (*Keyring, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  filepath.Join(model.ConfigDir(), "credentials"),
		FilePasswordFunc:         keyring.FixedStringPrompt("notehub-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return &Keyring{ring: ring}, nil
}

// NewKeyring wraps an already opened keyring. Tests use keyring.NewArrayKeyring.
func NewKeyring(ring keyring.Keyring) *Keyring {
	return &Keyring{ring: ring}
}

func sessionKey(recipientID string) string {
	return "session-" + recipientID
}

// Get retrieves the session token for recipientID.
func (k *Keyring) Get(recipientID string) (string, error) {
	item, err := k.ring.Get(sessionKey(recipientID))
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("getting credential for %q: %w", recipientID, err)
	}
	return string(item.Data), nil
}

// Set stores the session token for recipientID.
func (k *Keyring) Set(recipientID, token string) error {
	err := k.ring.Set(keyring.Item{
		Key:   sessionKey(recipientID),
		Data:  []byte(token),
		Label: "notehub session",
	})
	if err != nil {
		return fmt.Errorf("setting credential for %q: %w", recipientID, err)
	}
	return nil
}

// Delete removes the session token for recipientID. A missing entry is not an error.
func (k *Keyring) Delete(recipientID string) error {
	err := k.ring.Remove(sessionKey(recipientID))
	if err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("deleting credential for %q: %w", recipientID, err)
	}
	return nil
}
