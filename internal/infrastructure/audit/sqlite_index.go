package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/avast/retry-go/v5"
	_ "modernc.org/sqlite"

	"github.com/doeshing/hookgate/internal/domain"
	"github.com/doeshing/hookgate/internal/ports"
)

type migration struct {
	Version int
	Name    string
	SQL     []string
}

var migrations = []migration{
	{
		Version: 1,
		Name:    "audit_entries",
		SQL: []string{
			`CREATE TABLE IF NOT EXISTS audit_entries (
				seq INTEGER PRIMARY KEY AUTOINCREMENT,
				id TEXT NOT NULL UNIQUE,
				timestamp TEXT NOT NULL,
				session_id TEXT NOT NULL DEFAULT '',
				event TEXT NOT NULL,
				tool TEXT NOT NULL DEFAULT '',
				outcome TEXT NOT NULL,
				reason TEXT NOT NULL DEFAULT '',
				duration_us INTEGER NOT NULL DEFAULT 0,
				record TEXT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_audit_entries_session ON audit_entries(session_id, seq)`,
			`CREATE TABLE IF NOT EXISTS audit_rule_matches (
				entry_seq INTEGER NOT NULL REFERENCES audit_entries(seq) ON DELETE CASCADE,
				rule TEXT NOT NULL,
				position INTEGER NOT NULL,
				PRIMARY KEY (entry_seq, position)
			)`,
			`CREATE INDEX IF NOT EXISTS idx_audit_rule_matches_rule ON audit_rule_matches(rule, entry_seq)`,
		},
	},
}

// SQLiteIndex mirrors the audit stream into SQLite so the rule and session
// queries do not need to scan the whole jsonl file.
type SQLiteIndex struct {
	db   *sql.DB
	path string
}

// OpenSQLiteIndex opens (or creates) the index at path and applies migrations.
func OpenSQLiteIndex(path string) (*SQLiteIndex, error) {
	if err := os.MkdirAll(filepath.Dir(path), domain.DirectoryPermissions); err != nil {
		return nil, fmt.Errorf("open audit index: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open audit index: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := configure(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteIndex{db: db, path: path}, nil
}

func configure(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA journal_mode = WAL",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("configure audit index: %s: %w", pragma, err)
		}
	}
	return nil
}

func migrate(db *sql.DB) error {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		applied_at TEXT NOT NULL
	)`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	for _, m := range migrations {
		var applied int
		if err := db.QueryRow(`SELECT COUNT(1) FROM schema_migrations WHERE version = ?`, m.Version).Scan(&applied); err != nil {
			return fmt.Errorf("read migrations: %w", err)
		}
		if applied > 0 {
			continue
		}
		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("apply migration %d %s: %w", m.Version, m.Name, err)
		}
		for _, stmt := range m.SQL {
			if _, err := tx.Exec(stmt); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("apply migration %d %s: %w", m.Version, m.Name, err)
			}
		}
		if _, err := tx.Exec(
			`INSERT INTO schema_migrations(version, name, applied_at) VALUES (?, ?, ?)`,
			m.Version, m.Name, time.Now().UTC().Format(domain.TimestampFormat),
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %d %s: %w", m.Version, m.Name, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d %s: %w", m.Version, m.Name, err)
		}
	}
	return nil
}

// Append implements ports.AuditSink. Busy databases (another hook process
// holding the write lock) are retried with backoff.
func (s *SQLiteIndex) Append(entry domain.LogEntry) error {
	record, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("%w: encode: %v", domain.ErrLogWrite, err)
	}
	r := retry.New(
		retry.Context(context.Background()),
		retry.Attempts(3),
		retry.DelayType(retry.BackOffDelay),
	)
	if err := r.Do(func() error { return s.insert(entry, record) }); err != nil {
		return fmt.Errorf("%w: index: %v", domain.ErrLogWrite, err)
	}
	return nil
}

func (s *SQLiteIndex) insert(entry domain.LogEntry, record []byte) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	res, err := tx.Exec(`INSERT INTO audit_entries
		(id, timestamp, session_id, event, tool, outcome, reason, duration_us, record)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID,
		entry.Timestamp.UTC().Format(domain.TimestampFormat),
		entry.SessionID,
		string(entry.Event),
		entry.Tool,
		string(entry.Outcome),
		entry.Reason,
		entry.DurationMicros,
		string(record),
	)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	seq, err := res.LastInsertId()
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	for i, rule := range entry.MatchedRules {
		if _, err := tx.Exec(
			`INSERT INTO audit_rule_matches(entry_seq, rule, position) VALUES (?, ?, ?)`,
			seq, rule, i,
		); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// Query implements ports.AuditReader. Results are in write order.
func (s *SQLiteIndex) Query(ctx context.Context, q domain.AuditQuery) ([]domain.LogEntry, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = domain.DefaultAuditQueryLimit
	}
	rows, err := s.db.QueryContext(ctx, `SELECT e.record FROM audit_entries e
		WHERE (? = '' OR e.session_id = ?)
		AND (? = '' OR EXISTS (SELECT 1 FROM audit_rule_matches m WHERE m.entry_seq = e.seq AND m.rule = ?))
		ORDER BY e.seq DESC
		LIMIT ?`,
		q.SessionID, q.SessionID, q.Rule, q.Rule, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.LogEntry
	for rows.Next() {
		var record string
		if err := rows.Scan(&record); err != nil {
			return nil, err
		}
		var entry domain.LogEntry
		if err := json.Unmarshal([]byte(record), &entry); err != nil {
			continue
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries, nil
}

// Count returns the number of indexed entries.
func (s *SQLiteIndex) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM audit_entries`).Scan(&n)
	return n, err
}

// Path returns the sqlite database path.
func (s *SQLiteIndex) Path() string {
	return s.path
}

// Close implements ports.AuditSink.
func (s *SQLiteIndex) Close() error {
	return s.db.Close()
}

var (
	_ ports.AuditSink   = (*SQLiteIndex)(nil)
	_ ports.AuditReader = (*SQLiteIndex)(nil)
)
