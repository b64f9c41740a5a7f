// Package storage is the document-persistence sink: room snapshots in
// a local sqlite database, written on the engine's flush interval.
package storage

import (
	"database/sql"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

type Sqlite struct {
	db *sql.DB
}

func New(dbPath string) (*Sqlite, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	// WAL for concurrent readers while the flusher writes
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, err
	}
	if err := createTables(db); err != nil {
		return nil, err
	}
	return &Sqlite{db: db}, nil
}

func createTables(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS rooms (
		id TEXT PRIMARY KEY,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS room_snapshots (
		room_id TEXT PRIMARY KEY,
		ops BLOB NOT NULL,
		content TEXT NOT NULL DEFAULT '',
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (room_id) REFERENCES rooms(id) ON DELETE CASCADE
	);
	`
	_, err := db.Exec(schema)
	return err
}

func (s *Sqlite) SaveSnapshot(roomId string, ops []byte, content string) error {
	if _, err := s.db.Exec(
		"INSERT OR IGNORE INTO rooms (id) VALUES (?)", roomId,
	); err != nil {
		return err
	}
	_, err := s.db.Exec(
		`INSERT INTO room_snapshots (room_id, ops, content, updated_at)
		 VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(room_id) DO UPDATE SET
		   ops = excluded.ops,
		   content = excluded.content,
		   updated_at = CURRENT_TIMESTAMP`,
		roomId, ops, content,
	)
	return err
}

func (s *Sqlite) LoadSnapshot(roomId string) ([]byte, string, error) {
	row := s.db.QueryRow(
		"SELECT ops, content FROM room_snapshots WHERE room_id = ?", roomId,
	)
	var ops []byte
	var content string
	err := row.Scan(&ops, &content)
	if err == sql.ErrNoRows {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", err
	}
	return ops, content, nil
}

func (s *Sqlite) Close() error { return s.db.Close() }
