package store

import (
	"context"
	"errors"

	"github.com/nhle/notehub/internal/model"
)

// ErrNotFound is returned when a notification or session does not exist.
var ErrNotFound = errors.New("not found")

// NotificationStore persists notifications per recipient.
type NotificationStore interface {
	// CreateNotification inserts n, assigning an id and creation time when
	// missing, and returns the stored record.
	CreateNotification(ctx context.Context, n model.Notification) (model.Notification, error)
	// ListNotifications returns every notification of recipientID, newest first.
	ListNotifications(ctx context.Context, recipientID string) ([]model.Notification, error)
	// GetNotification returns one notification by id.
	GetNotification(ctx context.Context, id string) (*model.Notification, error)
	// MarkNotificationRead sets read on one notification.
	MarkNotificationRead(ctx context.Context, id string) error
	// DeleteReadNotifications removes every read notification of
	// recipientID and returns how many were removed.
	DeleteReadNotifications(ctx context.Context, recipientID string) (int64, error)
}

// SessionStore maps session tokens to recipients.
type SessionStore interface {
	CreateSession(ctx context.Context, recipientID string) (string, error)
	RecipientForSession(ctx context.Context, token string) (string, error)
	DeleteSession(ctx context.Context, token string) error
}

// Store is everything the reference server persists.
type Store interface {
	NotificationStore
	SessionStore
	Close() error
}
