package store

import (
	"context"
	"database/sql"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS kv (
    namespace TEXT NOT NULL,
    key TEXT NOT NULL,
    value BLOB NOT NULL,
    PRIMARY KEY (namespace, key)
);
`

// SQLiteGateway backs the key-value contract with a single SQLite table.
type SQLiteGateway struct {
	db *sql.DB
}

// Compile-time check: *SQLiteGateway satisfies the Gateway interface.
var _ Gateway = (*SQLiteGateway)(nil)

func NewSQLite(dbPath string) (*SQLiteGateway, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteGateway{db: db}, nil
}

func (g *SQLiteGateway) Close() error {
	return g.db.Close()
}

func (g *SQLiteGateway) Get(ctx context.Context, namespace, key string) ([]byte, error) {
	var value []byte
	err := g.db.QueryRowContext(ctx,
		"SELECT value FROM kv WHERE namespace = ? AND key = ?",
		namespace, key,
	).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return value, nil
}

func (g *SQLiteGateway) Set(ctx context.Context, namespace, key string, value []byte) error {
	_, err := g.db.ExecContext(ctx,
		`INSERT INTO kv (namespace, key, value) VALUES (?, ?, ?)
		 ON CONFLICT(namespace, key) DO UPDATE SET value = excluded.value`,
		namespace, key, value,
	)
	return err
}

func (g *SQLiteGateway) List(ctx context.Context, namespace string) (map[string][]byte, error) {
	rows, err := g.db.QueryContext(ctx,
		"SELECT key, value FROM kv WHERE namespace = ?",
		namespace,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string][]byte)
	for rows.Next() {
		var key string
		var value []byte
		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		out[key] = value
	}
	return out, rows.Err()
}
