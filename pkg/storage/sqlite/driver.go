// Package sqlite is a storage.Driver backed by a SQLite database file.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/papercomputeco/parley/pkg/llm"
	"github.com/papercomputeco/parley/pkg/storage"
)

const schema = `
CREATE TABLE IF NOT EXISTS conversations (
	id         TEXT PRIMARY KEY,
	title      TEXT NOT NULL,
	model_id   TEXT NOT NULL,
	owner_id   TEXT NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_conversations_owner ON conversations(owner_id, created_at);

CREATE TABLE IF NOT EXISTS turns (
	seq             INTEGER PRIMARY KEY AUTOINCREMENT,
	id              TEXT NOT NULL UNIQUE,
	conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
	role            TEXT NOT NULL,
	content         TEXT NOT NULL,
	model_id        TEXT NOT NULL DEFAULT '',
	created_at      INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_turns_conversation ON turns(conversation_id, created_at, seq);
`

// Driver stores conversations in SQLite. Timestamps are kept as unix
// nanoseconds so ordering is exact.
type Driver struct {
	db   *sql.DB
	path string
}

var _ storage.Driver = (*Driver)(nil)

// NewDriver opens (creating if needed) the database at path and applies the
// schema. Use ":memory:" for a throwaway database.
func NewDriver(ctx context.Context, path string) (*Driver, error) {
	dsn := ":memory:?_foreign_keys=on"
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		dsn = path + "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single connection keeps :memory: databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Driver{db: db, path: path}, nil
}

// Path returns the database file path.
func (d *Driver) Path() string {
	return d.path
}

func (d *Driver) Create(ctx context.Context, conv *llm.Conversation, first llm.Record) error {
	if conv == nil {
		return fmt.Errorf("cannot store nil conversation")
	}

	return d.inTx(ctx, func(tx *sql.Tx) error {
		if err := insertConversation(ctx, tx, conv); err != nil {
			return err
		}
		first.ConversationID = conv.ID
		return insertRecord(ctx, tx, first)
	})
}

func (d *Driver) List(ctx context.Context, ownerID string) ([]*llm.Conversation, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT id, title, model_id, owner_id, created_at FROM conversations
		 WHERE owner_id = ? ORDER BY created_at DESC, id`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("listing conversations: %w", err)
	}
	return scanConversations(rows)
}

func (d *Driver) ListAll(ctx context.Context) ([]*llm.Conversation, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT id, title, model_id, owner_id, created_at FROM conversations
		 ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("listing conversations: %w", err)
	}
	return scanConversations(rows)
}

func (d *Driver) Fetch(ctx context.Context, id string) (*llm.Conversation, error) {
	row := d.db.QueryRowContext(ctx,
		`SELECT id, title, model_id, owner_id, created_at FROM conversations WHERE id = ?`, id)

	conv, err := scanConversation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound{ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("fetching conversation %s: %w", id, err)
	}
	return conv, nil
}

func (d *Driver) Delete(ctx context.Context, id string) error {
	res, err := d.db.ExecContext(ctx, `DELETE FROM conversations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting conversation %s: %w", id, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting conversation %s: %w", id, err)
	}
	if n == 0 {
		return storage.ErrNotFound{ID: id}
	}
	return nil
}

func (d *Driver) AppendTurns(ctx context.Context, conversationID string, records []llm.Record) error {
	return d.inTx(ctx, func(tx *sql.Tx) error {
		if err := requireConversation(ctx, tx, conversationID); err != nil {
			return err
		}
		for _, r := range records {
			r.ConversationID = conversationID
			if err := insertRecord(ctx, tx, r); err != nil {
				return err
			}
		}
		return nil
	})
}

func (d *Driver) Turns(ctx context.Context, conversationID string) ([]llm.Record, error) {
	if _, err := d.Fetch(ctx, conversationID); err != nil {
		return nil, err
	}

	rows, err := d.db.QueryContext(ctx,
		`SELECT id, conversation_id, role, content, model_id, created_at FROM turns
		 WHERE conversation_id = ? ORDER BY created_at, seq`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("listing turns: %w", err)
	}
	defer rows.Close()

	records := make([]llm.Record, 0)
	for rows.Next() {
		var (
			r       llm.Record
			created int64
		)
		if err := rows.Scan(&r.ID, &r.ConversationID, &r.Role, &r.Content, &r.ModelID, &created); err != nil {
			return nil, fmt.Errorf("scanning turn: %w", err)
		}
		r.CreatedAt = time.Unix(0, created).UTC()
		records = append(records, r)
	}
	return records, rows.Err()
}

// Import copies a conversation and its records into the store. Existing
// conversations and records (by id) are left untouched. It reports whether
// the conversation was new and how many records were added.
func (d *Driver) Import(ctx context.Context, conv *llm.Conversation, records []llm.Record) (bool, int, error) {
	var (
		isNew bool
		added int
	)

	err := d.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO conversations (id, title, model_id, owner_id, created_at) VALUES (?, ?, ?, ?, ?)`,
			conv.ID, conv.Title, conv.ModelID, conv.OwnerID, conv.CreatedAt.UnixNano())
		if err != nil {
			return fmt.Errorf("importing conversation %s: %w", conv.ID, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			isNew = true
		} else {
			var owner string
			if err := tx.QueryRowContext(ctx,
				`SELECT owner_id FROM conversations WHERE id = ?`, conv.ID).Scan(&owner); err != nil {
				return fmt.Errorf("reading owner of %s: %w", conv.ID, err)
			}
			if owner != conv.OwnerID {
				return storage.ErrOwnerMismatch{ID: conv.ID}
			}
		}

		for _, r := range records {
			r.ConversationID = conv.ID
			res, err := tx.ExecContext(ctx,
				`INSERT OR IGNORE INTO turns (id, conversation_id, role, content, model_id, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
				r.ID, r.ConversationID, r.Role, r.Content, r.ModelID, r.CreatedAt.UnixNano())
			if err != nil {
				return fmt.Errorf("importing turn %s: %w", r.ID, err)
			}
			if n, _ := res.RowsAffected(); n > 0 {
				added++
			}
		}
		return nil
	})
	if err != nil {
		return false, 0, err
	}
	return isNew, added, nil
}

func (d *Driver) Close() error {
	return d.db.Close()
}

func (d *Driver) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func requireConversation(ctx context.Context, tx *sql.Tx, id string) error {
	var one int
	err := tx.QueryRowContext(ctx, `SELECT 1 FROM conversations WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ErrNotFound{ID: id}
	}
	if err != nil {
		return fmt.Errorf("checking conversation %s: %w", id, err)
	}
	return nil
}

func insertConversation(ctx context.Context, tx *sql.Tx, conv *llm.Conversation) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO conversations (id, title, model_id, owner_id, created_at) VALUES (?, ?, ?, ?, ?)`,
		conv.ID, conv.Title, conv.ModelID, conv.OwnerID, conv.CreatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("inserting conversation %s: %w", conv.ID, err)
	}
	return nil
}

func insertRecord(ctx context.Context, tx *sql.Tx, r llm.Record) error {
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO turns (id, conversation_id, role, content, model_id, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		r.ID, r.ConversationID, r.Role, r.Content, r.ModelID, r.CreatedAt.UnixNano()); err != nil {
		return fmt.Errorf("inserting turn %s: %w", r.ID, err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanConversation(s scanner) (*llm.Conversation, error) {
	var (
		c       llm.Conversation
		created int64
	)
	if err := s.Scan(&c.ID, &c.Title, &c.ModelID, &c.OwnerID, &created); err != nil {
		return nil, err
	}
	c.CreatedAt = time.Unix(0, created).UTC()
	return &c, nil
}

func scanConversations(rows *sql.Rows) ([]*llm.Conversation, error) {
	defer rows.Close()

	out := make([]*llm.Conversation, 0)
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning conversation: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
