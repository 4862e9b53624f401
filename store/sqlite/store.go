// Package sqlite provides a SQLite-backed transaction store. Transactions
// are kept as canonical CBOR blobs, so values referencing live objects can
// only be stored while the codec's registry still knows those objects.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/waysome/waysome/action"
	"github.com/waysome/waysome/message"
)

const schema = `CREATE TABLE IF NOT EXISTS transactions (
	id    INTEGER PRIMARY KEY,
	name  TEXT NOT NULL DEFAULT '',
	flags INTEGER NOT NULL,
	data  BLOB NOT NULL
)`

// Store implements action.Store on a SQLite database.
type Store struct {
	db    *sql.DB
	codec *message.Codec
}

// Open opens (creating if needed) the database at path. ":memory:" opens a
// private in-memory database.
func Open(path string, codec *message.Codec) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite: storage path is required")
	}
	if codec == nil {
		codec = message.NewCodec(nil)
	}

	dsn := path
	if path != ":memory:" {
		dsn = filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}
	if path == ":memory:" {
		// Every connection would get its own database.
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: ping: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: creating table: %w", err)
	}
	return &Store{db: db, codec: codec}, nil
}

func (s *Store) Put(ctx context.Context, tx *message.Transaction) error {
	if tx == nil {
		return action.ErrInvalid
	}
	data, err := s.codec.EncodeTransaction(tx)
	if err != nil {
		return fmt.Errorf("sqlite: encoding transaction %d: %w", tx.ID(), err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO transactions (id, name, flags, data) VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET name = excluded.name, flags = excluded.flags, data = excluded.data`,
		int64(tx.ID()), tx.Name(), int64(tx.Flags()), data)
	if err != nil {
		return fmt.Errorf("sqlite: storing transaction %d: %w", tx.ID(), err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id uint64) (*message.Transaction, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT data FROM transactions WHERE id = ?`, int64(id)).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("sqlite: transaction %d: %w", id, action.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: loading transaction %d: %w", id, err)
	}
	tx, err := s.codec.DecodeTransaction(data)
	if err != nil {
		return nil, fmt.Errorf("sqlite: decoding transaction %d: %w", id, err)
	}
	return tx, nil
}

func (s *Store) Delete(ctx context.Context, id uint64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, int64(id))
	if err != nil {
		return fmt.Errorf("sqlite: deleting transaction %d: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("sqlite: transaction %d: %w", id, action.ErrNotFound)
	}
	return nil
}

func (s *Store) List(ctx context.Context) ([]uint64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM transactions ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing transactions: %w", err)
	}
	defer rows.Close()
	var ids []uint64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("sqlite: listing transactions: %w", err)
		}
		ids = append(ids, uint64(id))
	}
	return ids, rows.Err()
}

// Close closes the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

var _ action.Store = (*Store)(nil)
