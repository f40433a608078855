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

CREATE TABLE IF NOT EXISTS saved_messages (
	id             TEXT PRIMARY KEY,
	mailbox        TEXT NOT NULL,
	message_id     TEXT NOT NULL,
	sender_address TEXT NOT NULL DEFAULT '',
	sender_name    TEXT NOT NULL DEFAULT '',
	subject        TEXT NOT NULL DEFAULT '',
	text_body      TEXT NOT NULL DEFAULT '',
	html_parts     TEXT NOT NULL DEFAULT '[]',
	created_at     DATETIME NOT NULL,
	saved_at       DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE(mailbox, message_id)
);

CREATE INDEX IF NOT EXISTS idx_saved_messages_mailbox ON saved_messages(mailbox);
CREATE INDEX IF NOT EXISTS idx_saved_messages_saved_at ON saved_messages(saved_at);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
}
