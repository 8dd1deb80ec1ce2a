package sinks

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/kilianp07/grantvest/core/report"
)

// SQLiteConfig configures the sqlite sink.
type SQLiteConfig struct {
	Path string `json:"path"`
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS runs (
    run_id TEXT PRIMARY KEY,
    generated_at INTEGER,
    policy TEXT,
    projects INTEGER,
    total_funding_usd REAL,
    total_tokens REAL,
    config TEXT
);
CREATE TABLE IF NOT EXISTS allocations (
    run_id TEXT,
    position INTEGER,
    proposal_name TEXT,
    funding_usd REAL,
    total_tokens REAL,
    project_tokens REAL,
    participant_tokens REAL,
    auditor_tokens REAL,
    milestone_tokens REAL,
    tail_tokens REAL,
    PRIMARY KEY(run_id, position)
);
CREATE TABLE IF NOT EXISTS timeline (
    run_id TEXT,
    position INTEGER,
    month INTEGER,
    days_elapsed INTEGER,
    past_cliff INTEGER,
    project REAL,
    participant REAL,
    auditor REAL,
    total_pct REAL,
    PRIMARY KEY(run_id, position, month)
);`

// SQLiteSink archives reports in a SQLite database. Rows are append-only and
// keyed by run ID.
type SQLiteSink struct {
	db *sql.DB
}

// NewSQLiteSink opens or creates the database and ensures the schema.
func NewSQLiteSink(path string) (*SQLiteSink, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite sink: path is required")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite sink: schema: %w", err)
	}
	return &SQLiteSink{db: db}, nil
}

// Write stores the run, its allocations and hybrid timelines in one
// transaction.
func (s *SQLiteSink) Write(ctx context.Context, r report.Report) error {
	cfg, err := json.Marshal(struct {
		Distribution any `json:"distribution"`
		Vesting      any `json:"vesting"`
	}{r.Distribution, r.Vesting})
	if err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite sink: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `INSERT INTO runs (run_id, generated_at, policy, projects, total_funding_usd, total_tokens, config)
        VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, r.GeneratedAt.Unix(), string(r.Policy), r.Summary.TotalProjects,
		r.Summary.TotalFundingUSD, r.Summary.TotalTokens, string(cfg)); err != nil {
		return fmt.Errorf("sqlite sink: insert run: %w", err)
	}

	alloc, err := tx.PrepareContext(ctx, `INSERT INTO allocations (run_id, position, proposal_name, funding_usd, total_tokens,
        project_tokens, participant_tokens, auditor_tokens, milestone_tokens, tail_tokens)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer func() { _ = alloc.Close() }()

	switch r.Policy {
	case report.PolicyFlat:
		for i, a := range r.Flat {
			if _, err := alloc.ExecContext(ctx, r.RunID, i, a.ProposalName, a.RequestedFundingUSD, a.TotalTokens,
				a.Tokens.Project, a.Tokens.Participant, a.Tokens.Auditor, 0.0, 0.0); err != nil {
				return fmt.Errorf("sqlite sink: insert allocation: %w", err)
			}
		}
	default:
		tl, err := tx.PrepareContext(ctx, `INSERT INTO timeline (run_id, position, month, days_elapsed, past_cliff,
            project, participant, auditor, total_pct)
            VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer func() { _ = tl.Close() }()
		for i, a := range r.Hybrid {
			if _, err := alloc.ExecContext(ctx, r.RunID, i, a.ProposalName, a.RequestedFundingUSD, a.TotalTokens,
				a.Tokens.Project, a.Tokens.Participant, a.Tokens.Auditor, a.MilestoneTokens, a.TailTokens); err != nil {
				return fmt.Errorf("sqlite sink: insert allocation: %w", err)
			}
			for _, m := range a.MonthlyTimeline {
				c := m.CumulativeVested
				if _, err := tl.ExecContext(ctx, r.RunID, i, m.Month, m.DaysElapsed, m.PastCliff,
					c.Project, c.Participant, c.Auditor, m.TotalVestedPct); err != nil {
					return fmt.Errorf("sqlite sink: insert timeline: %w", err)
				}
			}
		}
	}
	return tx.Commit()
}

// Close closes the underlying database.
func (s *SQLiteSink) Close() error { return s.db.Close() }
