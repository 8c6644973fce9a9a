package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // pure-Go SQLite driver
)

// SQLiteStore implements ProfileStore on an embedded SQLite database.
// Profiles are stored as JSON payloads keyed by agent ID; the engine
// never queries inside the payload.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLiteStore opens (and migrates) a profile store at path.
// Use ":memory:" for an ephemeral store.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open profile store: %w", err)
	}
	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS behavioral_profiles (
			agent_id   TEXT PRIMARY KEY,
			payload    TEXT NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`)
	if err != nil {
		return fmt.Errorf("migrate profile store: %w", err)
	}
	return nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Get(ctx context.Context, agentID string) (*BehavioralProfile, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT payload FROM behavioral_profiles WHERE agent_id = ?", agentID)

	var payload string
	err := row.Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil // not found is valid, the ledger will initialize
	}
	if err != nil {
		return nil, fmt.Errorf("get profile %q: %w", agentID, err)
	}

	var p BehavioralProfile
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		return nil, fmt.Errorf("decode profile %q: %w", agentID, err)
	}
	return &p, nil
}

func (s *SQLiteStore) Save(ctx context.Context, profile *BehavioralProfile) error {
	payload, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("encode profile %q: %w", profile.AgentID, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO behavioral_profiles (agent_id, payload, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (agent_id) DO UPDATE SET
			payload = excluded.payload,
			updated_at = excluded.updated_at`,
		profile.AgentID, string(payload), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("persist profile %q: %w", profile.AgentID, err)
	}
	return nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]*BehavioralProfile, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT payload FROM behavioral_profiles ORDER BY agent_id")
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	defer rows.Close()

	var out []*BehavioralProfile
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		var p BehavioralProfile
		if err := json.Unmarshal([]byte(payload), &p); err != nil {
			return nil, fmt.Errorf("decode profile: %w", err)
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}
