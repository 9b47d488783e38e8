// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package archive persists completed research sessions to SQLite as audit
// artifacts: rounds, queries, citations and the synthesized answer, minus
// raw page text.
package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/deepsearch-engine/pkg/types"
)

const dbFile = "deepsearch.db"

// Store manages the session archive SQLite database.
type Store struct {
	db  *sql.DB
	dir string
}

// Open opens or creates the archive database at dir/deepsearch.db and
// creates the schema if it does not exist.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating archive directory: %w", err)
	}

	dbPath := filepath.Join(dir, dbFile)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db, dir: dir}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			objective TEXT NOT NULL,
			status TEXT NOT NULL,
			round_count INTEGER NOT NULL,
			max_rounds INTEGER NOT NULL,
			answer TEXT,
			confidence REAL,
			archived_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS rounds (
			session_id TEXT NOT NULL REFERENCES sessions(id),
			round_number INTEGER NOT NULL,
			queries TEXT NOT NULL,
			decision TEXT,
			feedback TEXT,
			PRIMARY KEY (session_id, round_number)
		)`,
		`CREATE TABLE IF NOT EXISTS citations (
			session_id TEXT NOT NULL REFERENCES sessions(id),
			citation_id INTEGER NOT NULL,
			round_number INTEGER NOT NULL,
			url TEXT NOT NULL,
			title TEXT,
			quality TEXT NOT NULL,
			quality_note TEXT,
			quotes TEXT NOT NULL,
			PRIMARY KEY (session_id, citation_id)
		)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Save writes a finished session and its answer in one transaction.
// Archiving the same session twice replaces the earlier record.
func (s *Store) Save(ctx context.Context, state *types.ResearchState, answer types.Answer) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range []string{
		`DELETE FROM citations WHERE session_id = ?`,
		`DELETE FROM rounds WHERE session_id = ?`,
		`DELETE FROM sessions WHERE id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, stmt, state.SessionID); err != nil {
			return fmt.Errorf("clearing previous archive: %w", err)
		}
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO sessions (id, objective, status, round_count, max_rounds, answer, confidence, archived_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		state.SessionID, state.Objective, string(state.Status),
		state.Metrics.RoundCount, state.Metrics.MaxRounds,
		answer.Formatted, answer.Confidence,
		time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("inserting session: %w", err)
	}

	for _, round := range state.Rounds {
		queries, err := json.Marshal(round.Queries)
		if err != nil {
			return fmt.Errorf("marshaling queries: %w", err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO rounds (session_id, round_number, queries, decision, feedback)
			 VALUES (?, ?, ?, ?, ?)`,
			state.SessionID, round.RoundNumber, string(queries),
			string(round.RefinerDecision), round.RefinerFeedback)
		if err != nil {
			return fmt.Errorf("inserting round %d: %w", round.RoundNumber, err)
		}

		for _, c := range round.Citations {
			quotes, err := json.Marshal(c.Quotes)
			if err != nil {
				return fmt.Errorf("marshaling quotes: %w", err)
			}
			_, err = tx.ExecContext(ctx,
				`INSERT INTO citations (session_id, citation_id, round_number, url, title, quality, quality_note, quotes)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				state.SessionID, c.ID, round.RoundNumber,
				c.URL, c.Title, string(c.Quality), c.QualityNote, string(quotes))
			if err != nil {
				return fmt.Errorf("inserting citation %d: %w", c.ID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing archive: %w", err)
	}
	return nil
}

// SessionSummary is one row of the archive listing.
type SessionSummary struct {
	SessionID  string `json:"session_id" yaml:"session_id"`
	Objective  string `json:"objective" yaml:"objective"`
	Status     string `json:"status" yaml:"status"`
	RoundCount int    `json:"round_count" yaml:"round_count"`
	Citations  int    `json:"citations" yaml:"citations"`
	ArchivedAt string `json:"archived_at" yaml:"archived_at"`
}

// List returns archived sessions, most recent first.
func (s *Store) List(ctx context.Context) ([]SessionSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT s.id, s.objective, s.status, s.round_count, s.archived_at,
		        (SELECT COUNT(*) FROM citations c WHERE c.session_id = s.id)
		 FROM sessions s ORDER BY s.archived_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer rows.Close()

	var out []SessionSummary
	for rows.Next() {
		var sum SessionSummary
		if err := rows.Scan(&sum.SessionID, &sum.Objective, &sum.Status, &sum.RoundCount, &sum.ArchivedAt, &sum.Citations); err != nil {
			return nil, fmt.Errorf("scanning session row: %w", err)
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}

// Load reconstructs an archived session and its formatted answer.
func (s *Store) Load(ctx context.Context, sessionID string) (*types.ResearchState, string, error) {
	state := &types.ResearchState{SessionID: sessionID}
	var status, answer string
	err := s.db.QueryRowContext(ctx,
		`SELECT objective, status, round_count, max_rounds, answer FROM sessions WHERE id = ?`,
		sessionID).Scan(&state.Objective, &status, &state.Metrics.RoundCount, &state.Metrics.MaxRounds, &answer)
	if err == sql.ErrNoRows {
		return nil, "", fmt.Errorf("session %s not found", sessionID)
	}
	if err != nil {
		return nil, "", fmt.Errorf("loading session: %w", err)
	}
	state.Status = types.SessionStatus(status)

	rows, err := s.db.QueryContext(ctx,
		`SELECT round_number, queries, decision, feedback FROM rounds
		 WHERE session_id = ? ORDER BY round_number`, sessionID)
	if err != nil {
		return nil, "", fmt.Errorf("loading rounds: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var round types.Round
		var queries, decision string
		if err := rows.Scan(&round.RoundNumber, &queries, &decision, &round.RefinerFeedback); err != nil {
			return nil, "", fmt.Errorf("scanning round: %w", err)
		}
		if err := json.Unmarshal([]byte(queries), &round.Queries); err != nil {
			return nil, "", fmt.Errorf("unmarshaling queries: %w", err)
		}
		round.RefinerDecision = types.Decision(decision)
		state.Rounds = append(state.Rounds, round)
	}
	if err := rows.Err(); err != nil {
		return nil, "", err
	}

	cRows, err := s.db.QueryContext(ctx,
		`SELECT citation_id, round_number, url, title, quality, quality_note, quotes
		 FROM citations WHERE session_id = ? ORDER BY citation_id`, sessionID)
	if err != nil {
		return nil, "", fmt.Errorf("loading citations: %w", err)
	}
	defer cRows.Close()

	for cRows.Next() {
		var c types.Citation
		var roundNumber int
		var quality, quotes string
		if err := cRows.Scan(&c.ID, &roundNumber, &c.URL, &c.Title, &quality, &c.QualityNote, &quotes); err != nil {
			return nil, "", fmt.Errorf("scanning citation: %w", err)
		}
		c.Quality = types.CitationQuality(quality)
		if err := json.Unmarshal([]byte(quotes), &c.Quotes); err != nil {
			return nil, "", fmt.Errorf("unmarshaling quotes: %w", err)
		}
		if roundNumber >= 1 && roundNumber <= len(state.Rounds) {
			r := &state.Rounds[roundNumber-1]
			r.Citations = append(r.Citations, c)
		}
	}

	return state, answer, cRows.Err()
}
