package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/refine/internal/bigram"
	"github.com/hyperjump/refine/internal/models"
)

var _ Storage = (*SQLiteStorage)(nil)

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS bigram_sets (
		fingerprint TEXT PRIMARY KEY,
		source TEXT NOT NULL,
		pairs INTEGER NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_bigram_sets_source ON bigram_sets(source);

	CREATE TABLE IF NOT EXISTS bigrams (
		fingerprint TEXT NOT NULL,
		first_term TEXT NOT NULL,
		second_term TEXT NOT NULL,
		count INTEGER NOT NULL,
		PRIMARY KEY (fingerprint, first_term, second_term),
		FOREIGN KEY (fingerprint) REFERENCES bigram_sets(fingerprint) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		seed_query TEXT NOT NULL,
		final_query TEXT,
		target_precision REAL NOT NULL,
		stop_reason TEXT,
		started_at TIMESTAMP NOT NULL,
		finished_at TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_started_at ON sessions(started_at);

	CREATE TABLE IF NOT EXISTS rounds (
		session_id TEXT NOT NULL,
		number INTEGER NOT NULL,
		query_text TEXT NOT NULL,
		results INTEGER NOT NULL,
		indexable INTEGER NOT NULL,
		relevant INTEGER NOT NULL,
		precision REAL NOT NULL,
		added_terms TEXT,
		PRIMARY KEY (session_id, number),
		FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS judgments (
		session_id TEXT NOT NULL,
		round INTEGER NOT NULL,
		rank INTEGER NOT NULL,
		url TEXT NOT NULL,
		title TEXT,
		html INTEGER NOT NULL,
		indexable INTEGER NOT NULL,
		relevant INTEGER NOT NULL,
		PRIMARY KEY (session_id, round, rank),
		FOREIGN KEY (session_id, round) REFERENCES rounds(session_id, number) ON DELETE CASCADE
	);
	`
	_, err := db.Exec(schema)
	return err
}

// LoadBigrams returns the cached counts for fingerprint. ok is false when none are cached.
func (s *SQLiteStorage) LoadBigrams(ctx context.Context, fingerprint string) (map[bigram.Pair]int, bool, error) {
	var pairs int
	err := s.db.QueryRowContext(ctx,
		`SELECT pairs FROM bigram_sets WHERE fingerprint = ?`, fingerprint,
	).Scan(&pairs)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT first_term, second_term, count FROM bigrams WHERE fingerprint = ?`, fingerprint)
	if err != nil {
		return nil, false, err
	}
	defer rows.Close()

	counts := make(map[bigram.Pair]int, pairs)
	for rows.Next() {
		var p bigram.Pair
		var n int
		if err := rows.Scan(&p.First, &p.Second, &n); err != nil {
			return nil, false, err
		}
		counts[p] = n
	}
	if err := rows.Err(); err != nil {
		return nil, false, err
	}
	return counts, true, nil
}

// SaveBigrams stores counts under fingerprint in a transaction and drops older sets built
// from the same source.
func (s *SQLiteStorage) SaveBigrams(ctx context.Context, fingerprint, source string, counts map[bigram.Pair]int) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM bigram_sets WHERE fingerprint = ? OR source = ?`, fingerprint, source); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO bigram_sets (fingerprint, source, pairs, created_at) VALUES (?, ?, ?, ?)`,
		fingerprint, source, len(counts), time.Now()); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO bigrams (fingerprint, first_term, second_term, count) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for p, n := range counts {
		if _, err := stmt.ExecContext(ctx, fingerprint, p.First, p.Second, n); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// StartSession inserts a new session row.
func (s *SQLiteStorage) StartSession(ctx context.Context, id, seedQuery string, targetPrecision float64, startedAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, seed_query, target_precision, started_at) VALUES (?, ?, ?, ?)`,
		id, seedQuery, targetPrecision, startedAt)
	return err
}

// RecordRound stores a round and its judgments in a transaction.
func (s *SQLiteStorage) RecordRound(ctx context.Context, sessionID string, round *models.Round) error {
	added, err := json.Marshal(round.AddedTerms)
	if err != nil {
		return fmt.Errorf("failed to marshal added terms: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO rounds (session_id, number, query_text, results, indexable, relevant, precision, added_terms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sessionID, round.Number, round.Query, round.Results, round.Indexable, round.Relevant,
		round.Precision, string(added)); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO judgments (session_id, round, rank, url, title, html, indexable, relevant)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, j := range round.Judgments {
		doc := j.Document
		if doc == nil || doc.Result == nil {
			continue
		}
		if _, err := stmt.ExecContext(ctx, sessionID, round.Number, doc.Rank, doc.Result.URL,
			doc.Result.Title, doc.HTML, doc.Indexable, j.Relevant); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// FinishSession records the final query and stop reason.
func (s *SQLiteStorage) FinishSession(ctx context.Context, outcome *models.Outcome) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET final_query = ?, stop_reason = ?, finished_at = ? WHERE id = ?`,
		outcome.FinalQuery, outcome.Reason.String(), outcome.FinishedAt, outcome.SessionID)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("session not found: %s", outcome.SessionID)
	}
	return nil
}

// ListSessions returns sessions newest first with offset and limit.
func (s *SQLiteStorage) ListSessions(ctx context.Context, offset, limit int) ([]*models.SessionSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT s.id, s.seed_query, COALESCE(s.final_query, ''), s.target_precision,
		        COALESCE(s.stop_reason, ''), s.started_at, s.finished_at,
		        (SELECT COUNT(*) FROM rounds r WHERE r.session_id = s.id),
		        COALESCE((SELECT r.precision FROM rounds r WHERE r.session_id = s.id
		                  ORDER BY r.number DESC LIMIT 1), 0)
		 FROM sessions s ORDER BY s.started_at DESC LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*models.SessionSummary
	for rows.Next() {
		var ss models.SessionSummary
		var finished sql.NullTime
		if err := rows.Scan(&ss.ID, &ss.SeedQuery, &ss.FinalQuery, &ss.TargetPrecision,
			&ss.StopReason, &ss.StartedAt, &finished, &ss.Rounds, &ss.FinalPrecision); err != nil {
			return nil, err
		}
		if finished.Valid {
			ss.FinishedAt = finished.Time
		}
		sessions = append(sessions, &ss)
	}
	return sessions, rows.Err()
}

// GetRounds returns the rounds of a session ordered by number, without judgments.
func (s *SQLiteStorage) GetRounds(ctx context.Context, sessionID string) ([]*models.Round, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT number, query_text, results, indexable, relevant, precision, COALESCE(added_terms, '')
		 FROM rounds WHERE session_id = ? ORDER BY number`,
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rounds []*models.Round
	for rows.Next() {
		var r models.Round
		var added string
		if err := rows.Scan(&r.Number, &r.Query, &r.Results, &r.Indexable, &r.Relevant, &r.Precision, &added); err != nil {
			return nil, err
		}
		if added != "" && added != "null" {
			if err := json.Unmarshal([]byte(added), &r.AddedTerms); err != nil {
				return nil, fmt.Errorf("failed to unmarshal added terms: %w", err)
			}
		}
		rounds = append(rounds, &r)
	}
	return rounds, rows.Err()
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
