// Package cmdlog persists every command the turret receives in sqlite.
package cmdlog

import (
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/w1xm/turret_interface/turret"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

type Store struct {
	*sql.DB
}

func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// sqlite allows one writer at a time.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, err
	}
	log.Printf("command log at %s", path)
	return &Store{db}, nil
}

// commandMode names the branch the command would take if applied.
func commandMode(cmd turret.Command) turret.Mode {
	switch {
	case cmd.Absolute != nil:
		return turret.ModeAbsolute
	case cmd.Imu != nil:
		return turret.ModeImu
	case cmd.Rate != nil:
		return turret.ModeRate
	}
	return turret.ModeIdle
}

// LogCommand implements turret.CommandLogger.
func (s *Store) LogCommand(entry turret.CommandLog) error {
	b, err := json.Marshal(entry.Command)
	if err != nil {
		return err
	}
	_, err = s.Exec(`
		INSERT INTO commands (timestamp_ns, sequence, mode, laser_on, command_json)
		VALUES (?, ?, ?, ?, ?)
	`, entry.Timestamp.UnixNano(), entry.Command.Sequence, commandMode(entry.Command).String(), entry.Command.LaserOn, string(b))
	if err != nil {
		return fmt.Errorf("failed to insert command: %w", err)
	}
	return nil
}

// Recent returns up to limit commands, newest first.
func (s *Store) Recent(limit int) ([]turret.CommandLog, error) {
	rows, err := s.Query(`
		SELECT timestamp_ns, command_json
		FROM commands
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent commands: %w", err)
	}
	defer rows.Close()

	var out []turret.CommandLog
	for rows.Next() {
		var (
			ts  int64
			raw string
		)
		if err := rows.Scan(&ts, &raw); err != nil {
			return nil, err
		}
		entry := turret.CommandLog{Timestamp: time.Unix(0, ts).UTC()}
		if err := json.Unmarshal([]byte(raw), &entry.Command); err != nil {
			return nil, fmt.Errorf("decoding command %q: %w", raw, err)
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

// Count returns the number of commands logged since t.
func (s *Store) Count(since time.Time) (int, error) {
	var n int
	err := s.QueryRow(`SELECT COUNT(*) FROM commands WHERE timestamp_ns >= ?`, since.UnixNano()).Scan(&n)
	return n, err
}
