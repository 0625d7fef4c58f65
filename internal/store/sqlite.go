package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/nhle/notehub/internal/model"
)

// SQLiteStore implements the Store interface using a local SQLite database.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath,
// enables WAL mode, and runs any pending schema migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// An in-memory database exists per connection.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (s *SQLiteStore) runMigrations() error {
	currentVersion := 0

	// Check if schema_version table exists.
	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

const notificationColumns = `id, recipient_id, kind, message, related_resource_id, read, created_at`

// notificationRow mirrors the notifications table.
type notificationRow struct {
	ID                string         `db:"id"`
	RecipientID       string         `db:"recipient_id"`
	Kind              string         `db:"kind"`
	Message           string         `db:"message"`
	RelatedResourceID sql.NullString `db:"related_resource_id"`
	Read              int            `db:"read"`
	CreatedAt         time.Time      `db:"created_at"`
}

func (r notificationRow) toModel() model.Notification {
	n := model.Notification{
		ID:          r.ID,
		RecipientID: r.RecipientID,
		Kind:        model.Kind(r.Kind),
		Message:     r.Message,
		CreatedAt:   r.CreatedAt,
		Read:        r.Read != 0,
	}
	if r.RelatedResourceID.Valid {
		related := r.RelatedResourceID.String
		n.RelatedResourceID = &related
	}
	return n
}

// CreateNotification inserts a new notification record.
func (s *SQLiteStore) CreateNotification(
	ctx context.Context,
	n model.Notification,
) (model.Notification, error) {
	if strings.TrimSpace(n.RecipientID) == "" {
		return model.Notification{}, fmt.Errorf("notification recipient must not be empty")
	}
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	n.CreatedAt = n.CreatedAt.UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notifications (`+notificationColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		n.ID, n.RecipientID, string(n.Kind), n.Message,
		n.RelatedResourceID, boolToInt(n.Read), n.CreatedAt,
	)
	if err != nil {
		return model.Notification{}, fmt.Errorf("creating notification: %w", err)
	}

	return n, nil
}

// ListNotifications retrieves the notifications of recipientID,
// ordered by creation time descending.
func (s *SQLiteStore) ListNotifications(
	ctx context.Context,
	recipientID string,
) ([]model.Notification, error) {
	var rows []notificationRow
	err := s.db.SelectContext(ctx, &rows,
		"SELECT "+notificationColumns+" FROM notifications WHERE recipient_id = ? ORDER BY created_at DESC",
		recipientID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying notifications for %s: %w", recipientID, err)
	}

	notifications := make([]model.Notification, 0, len(rows))
	for _, r := range rows {
		notifications = append(notifications, r.toModel())
	}
	return notifications, nil
}

// GetNotification retrieves a single notification by its ID.
func (s *SQLiteStore) GetNotification(
	ctx context.Context,
	id string,
) (*model.Notification, error) {
	var row notificationRow
	err := s.db.GetContext(ctx, &row,
		"SELECT "+notificationColumns+" FROM notifications WHERE id = ?", id,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting notification %s: %w", id, err)
	}

	n := row.toModel()
	return &n, nil
}

// MarkNotificationRead marks a single notification as read.
func (s *SQLiteStore) MarkNotificationRead(
	ctx context.Context,
	id string,
) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE notifications SET read = 1 WHERE id = ?", id,
	)
	if err != nil {
		return fmt.Errorf("marking notification %s as read: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("marking notification %s as read: %w", id, err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteReadNotifications removes the read notifications of recipientID.
func (s *SQLiteStore) DeleteReadNotifications(
	ctx context.Context,
	recipientID string,
) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM notifications WHERE recipient_id = ? AND read = 1", recipientID,
	)
	if err != nil {
		return 0, fmt.Errorf("deleting read notifications for %s: %w", recipientID, err)
	}
	return res.RowsAffected()
}

// CreateSession issues a new session token for recipientID.
func (s *SQLiteStore) CreateSession(ctx context.Context, recipientID string) (string, error) {
	if strings.TrimSpace(recipientID) == "" {
		return "", fmt.Errorf("session recipient must not be empty")
	}
	token := uuid.New().String()
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO sessions (token, recipient_id, created_at) VALUES (?, ?, ?)",
		token, recipientID, time.Now().UTC(),
	)
	if err != nil {
		return "", fmt.Errorf("creating session for %s: %w", recipientID, err)
	}
	return token, nil
}

// RecipientForSession returns the recipient a token was issued to.
func (s *SQLiteStore) RecipientForSession(ctx context.Context, token string) (string, error) {
	var recipientID string
	err := s.db.GetContext(ctx, &recipientID,
		"SELECT recipient_id FROM sessions WHERE token = ?", token,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("looking up session: %w", err)
	}
	return recipientID, nil
}

// DeleteSession revokes a token.
func (s *SQLiteStore) DeleteSession(ctx context.Context, token string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM sessions WHERE token = ?", token)
	if err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}

// boolToInt converts a boolean to 0 or 1 for SQLite storage.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
