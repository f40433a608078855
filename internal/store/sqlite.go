package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/nhle/tempmail/internal/model"
)

// SQLiteStore implements the Store interface using a local SQLite database.
type SQLiteStore struct {
	db *sqlx.DB
}

var _ Store = (*SQLiteStore)(nil)

// savedRow is the column layout of saved_messages.
type savedRow struct {
	ID            string    `db:"id"`
	Mailbox       string    `db:"mailbox"`
	MessageID     string    `db:"message_id"`
	SenderAddress string    `db:"sender_address"`
	SenderName    string    `db:"sender_name"`
	Subject       string    `db:"subject"`
	TextBody      string    `db:"text_body"`
	HTMLParts     string    `db:"html_parts"`
	CreatedAt     time.Time `db:"created_at"`
	SavedAt       time.Time `db:"saved_at"`
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath,
// enables WAL mode, and runs any pending schema migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// Every pooled connection to ":memory:" would get its own database.
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

// SaveMessage inserts msg or refreshes the existing entry for the same
// mailbox and message ID.
func (s *SQLiteStore) SaveMessage(
	ctx context.Context,
	mailbox string,
	msg model.MessageDetail,
) (string, error) {
	if msg.ID == "" {
		return "", errors.New("message id is required")
	}

	htmlParts := msg.HTML
	if htmlParts == nil {
		htmlParts = []string{}
	}
	htmlJSON, err := json.Marshal(htmlParts)
	if err != nil {
		return "", fmt.Errorf("marshaling html parts for %s: %w", msg.ID, err)
	}

	const query = `
		INSERT INTO saved_messages (
			id, mailbox, message_id,
			sender_address, sender_name, subject,
			text_body, html_parts,
			created_at, saved_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(mailbox, message_id) DO UPDATE SET
			sender_address = excluded.sender_address,
			sender_name    = excluded.sender_name,
			subject        = excluded.subject,
			text_body      = excluded.text_body,
			html_parts     = excluded.html_parts,
			created_at     = excluded.created_at,
			saved_at       = excluded.saved_at`

	_, err = s.db.ExecContext(ctx, query,
		uuid.New().String(), mailbox, msg.ID,
		msg.From.Address, msg.From.Name, msg.Subject,
		msg.Text, string(htmlJSON),
		msg.CreatedAt.UTC(), time.Now().UTC(),
	)
	if err != nil {
		return "", fmt.Errorf("saving message %s: %w", msg.ID, err)
	}

	var id string
	err = s.db.GetContext(ctx, &id,
		"SELECT id FROM saved_messages WHERE mailbox = ? AND message_id = ?",
		mailbox, msg.ID,
	)
	if err != nil {
		return "", fmt.Errorf("reading archive id for %s: %w", msg.ID, err)
	}
	return id, nil
}

// GetSaved retrieves a single archived message by its archive ID.
func (s *SQLiteStore) GetSaved(ctx context.Context, id string) (*model.SavedMessage, error) {
	var row savedRow
	err := s.db.GetContext(ctx, &row, "SELECT * FROM saved_messages WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("getting saved message %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting saved message %s: %w", id, err)
	}

	msg, err := row.toModel()
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// ListSaved retrieves archived messages matching filter.
func (s *SQLiteStore) ListSaved(
	ctx context.Context,
	filter ArchiveFilter,
) ([]model.SavedMessage, error) {
	var conditions []string
	var args []interface{}

	if filter.Mailbox != nil {
		conditions = append(conditions, "mailbox = ?")
		args = append(args, *filter.Mailbox)
	}
	if filter.Query != nil && *filter.Query != "" {
		conditions = append(conditions, "(subject LIKE ? OR sender_address LIKE ? OR sender_name LIKE ?)")
		q := "%" + *filter.Query + "%"
		args = append(args, q, q, q)
	}

	query := "SELECT * FROM saved_messages"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY saved_at DESC, id"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
		if filter.Offset > 0 {
			query += fmt.Sprintf(" OFFSET %d", filter.Offset)
		}
	}

	var rows []savedRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("listing saved messages: %w", err)
	}

	out := make([]model.SavedMessage, 0, len(rows))
	for _, r := range rows {
		msg, err := r.toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, msg)
	}
	return out, nil
}

// DeleteSaved removes an archived message.
func (s *SQLiteStore) DeleteSaved(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM saved_messages WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting saved message %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting saved message %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("deleting saved message %s: %w", id, ErrNotFound)
	}
	return nil
}

// CountSaved returns the number of archived messages.
func (s *SQLiteStore) CountSaved(ctx context.Context) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM saved_messages"); err != nil {
		return 0, fmt.Errorf("counting saved messages: %w", err)
	}
	return n, nil
}

func (r savedRow) toModel() (model.SavedMessage, error) {
	var parts []string
	if r.HTMLParts != "" {
		if err := json.Unmarshal([]byte(r.HTMLParts), &parts); err != nil {
			return model.SavedMessage{}, fmt.Errorf("unmarshaling html parts of %s: %w", r.ID, err)
		}
	}
	return model.SavedMessage{
		ID:      r.ID,
		Mailbox: r.Mailbox,
		MessageDetail: model.MessageDetail{
			MessageSummary: model.MessageSummary{
				ID:        r.MessageID,
				From:      model.Sender{Address: r.SenderAddress, Name: r.SenderName},
				Subject:   r.Subject,
				CreatedAt: r.CreatedAt,
			},
			Text: r.TextBody,
			HTML: parts,
		},
		SavedAt: r.SavedAt,
	}, nil
}
