// Package journal is the append-only audit log of agent lifecycle
// transitions. The live state table is in-memory only; the journal is the
// best-effort durable trail behind `muster agent history` and the API.
package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Entry is one journaled transition.
type Entry struct {
	ID         int64
	AgentID    string
	Profile    string
	Status     string
	Reason     string
	ExitCode   *int
	Model      string
	Visible    bool
	RecordedAt time.Time
}

// Journal wraps the sqlite handle.
type Journal struct {
	db *sql.DB
}

// Open opens (and creates if needed) the journal database at path and
// ensures the schema exists.
func Open(ctx context.Context, path string) (*Journal, error) {
	if path == "" {
		return nil, fmt.Errorf("journal path is empty")
	}
	if err := validateJournalFilesystem(path); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create journal directory: %w", err)
	}

	// The pragma goes in the DSN so it applies to every connection in the
	// database/sql pool, not just the one a plain Exec would run on.
	db, err := sql.Open("sqlite", "file:"+path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := bootstrap(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Journal{db: db}, nil
}

func bootstrap(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS agent_log (
  id          INTEGER PRIMARY KEY AUTOINCREMENT,
  agent_id    TEXT NOT NULL,
  profile     TEXT NOT NULL,
  status      TEXT NOT NULL,
  reason      TEXT,
  exit_code   INTEGER,
  model       TEXT,
  visible     INTEGER NOT NULL DEFAULT 0,
  recorded_at TEXT NOT NULL
);`,
		`CREATE INDEX IF NOT EXISTS agent_log_agent_id_idx ON agent_log(agent_id, id);`,
		`CREATE INDEX IF NOT EXISTS agent_log_recorded_at_idx ON agent_log(recorded_at);`,
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("bootstrap journal schema: %w", err)
		}
	}
	return nil
}

// Append records one transition. RecordedAt defaults to now.
func (j *Journal) Append(ctx context.Context, e Entry) error {
	if e.AgentID == "" {
		return fmt.Errorf("agent id is empty")
	}
	if e.Status == "" {
		return fmt.Errorf("status is empty")
	}
	at := e.RecordedAt
	if at.IsZero() {
		at = time.Now().UTC()
	}

	var exitCode any
	if e.ExitCode != nil {
		exitCode = *e.ExitCode
	}

	_, err := j.db.ExecContext(ctx, `
INSERT INTO agent_log(agent_id, profile, status, reason, exit_code, model, visible, recorded_at)
VALUES(?, ?, ?, ?, ?, ?, ?, ?);
`, e.AgentID, e.Profile, e.Status, e.Reason, exitCode, e.Model, boolToInt(e.Visible), at.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("append journal entry: %w", err)
	}
	return nil
}

// History returns the transitions for one agent, oldest first.
func (j *Journal) History(ctx context.Context, agentID string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := j.db.QueryContext(ctx, `
SELECT id, agent_id, profile, status, reason, exit_code, model, visible, recorded_at
FROM agent_log WHERE agent_id = ? ORDER BY id ASC LIMIT ?;
`, agentID, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

// Recent returns the latest transitions across all agents, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := j.db.QueryContext(ctx, `
SELECT id, agent_id, profile, status, reason, exit_code, model, visible, recorded_at
FROM agent_log ORDER BY id DESC LIMIT ?;
`, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

// Prune deletes entries recorded before the retention horizon.
func (j *Journal) Prune(ctx context.Context, retention time.Duration) (int64, error) {
	horizon := time.Now().UTC().Add(-retention).Format(time.RFC3339Nano)
	res, err := j.db.ExecContext(ctx, `DELETE FROM agent_log WHERE recorded_at < ?;`, horizon)
	if err != nil {
		return 0, fmt.Errorf("prune journal: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return n, nil
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	return j.db.Close()
}

func scanEntries(rows *sql.Rows) ([]Entry, error) {
	var out []Entry
	for rows.Next() {
		var (
			e          Entry
			reason     sql.NullString
			exitCode   sql.NullInt64
			model      sql.NullString
			visible    int
			recordedAt string
		)
		if err := rows.Scan(&e.ID, &e.AgentID, &e.Profile, &e.Status, &reason, &exitCode, &model, &visible, &recordedAt); err != nil {
			return nil, fmt.Errorf("scan journal entry: %w", err)
		}
		if reason.Valid {
			e.Reason = reason.String
		}
		if exitCode.Valid {
			code := int(exitCode.Int64)
			e.ExitCode = &code
		}
		if model.Valid {
			e.Model = model.String
		}
		e.Visible = visible != 0
		if t, err := time.Parse(time.RFC3339Nano, recordedAt); err == nil {
			e.RecordedAt = t
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("iterate journal entries: %w", err)
	}
	return out, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
