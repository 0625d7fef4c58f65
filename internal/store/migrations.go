package store

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// migrations is the ordered list of schema migrations.
// Each migration's version must be sequential starting from 1.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS notifications (
	id                  TEXT PRIMARY KEY,
	recipient_id        TEXT NOT NULL,
	kind                TEXT NOT NULL,
	message             TEXT NOT NULL,
	related_resource_id TEXT,
	read                INTEGER NOT NULL DEFAULT 0 CHECK(read IN (0, 1)),
	created_at          DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_notifications_recipient ON notifications(recipient_id);
CREATE INDEX IF NOT EXISTS idx_notifications_created ON notifications(created_at);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
	{
		version: 2,
		sql: `
CREATE INDEX IF NOT EXISTS idx_notifications_recipient_read
	ON notifications(recipient_id, read);

CREATE TABLE IF NOT EXISTS sessions (
	token        TEXT PRIMARY KEY,
	recipient_id TEXT NOT NULL,
	created_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_sessions_recipient ON sessions(recipient_id);

INSERT INTO schema_version (version) VALUES (2);
`,
	},
}
