package ledger

import (
	"context"
	"fmt"
	"time"
)

// Run represents one processing run
type Run struct {
	ID             int64      `db:"id"`
	StartedAt      string     `db:"started_at"`
	FinishedAt     *string    `db:"finished_at"`
	EmailsFetched  int        `db:"emails_fetched"`
	ItemsExtracted int        `db:"items_extracted"`
	ItemsScored    int        `db:"items_scored"`
	ItemsProposed  int        `db:"items_proposed"`
	ItemsSkipped   int        `db:"items_skipped"`
	Status         string     `db:"status"`
}

// RunStats carries the final counters recorded when a run finishes
type RunStats struct {
	ItemsExtracted int
	ItemsScored    int
	ItemsProposed  int
	ItemsSkipped   int
	Status         string
}

// Started parses the run's start timestamp
func (r *Run) Started() time.Time {
	t, _ := time.Parse(time.RFC3339, r.StartedAt)
	return t
}

// CreateRun starts a new processing run and returns its ID
func (s *Store) CreateRun(ctx context.Context, emailsFetched int) (int64, error) {
	res, err := s.conn.ExecContext(ctx,
		"INSERT INTO runs (started_at, emails_fetched) VALUES (?, ?)", now(), emailsFetched)
	if err != nil {
		return 0, fmt.Errorf("create run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("get run id: %w", err)
	}
	return id, nil
}

// FinishRun marks a run as finished with its final stats
func (s *Store) FinishRun(ctx context.Context, runID int64, stats RunStats) error {
	status := stats.Status
	if status == "" {
		status = "completed"
	}
	_, err := s.conn.ExecContext(ctx,
		`UPDATE runs SET
			finished_at = ?,
			items_extracted = ?,
			items_scored = ?,
			items_proposed = ?,
			items_skipped = ?,
			status = ?
		WHERE id = ?`,
		now(), stats.ItemsExtracted, stats.ItemsScored, stats.ItemsProposed, stats.ItemsSkipped, status, runID)
	if err != nil {
		return fmt.Errorf("finish run %d: %w", runID, err)
	}
	return nil
}

// GetRun retrieves run details by ID
func (s *Store) GetRun(ctx context.Context, runID int64) (*Run, error) {
	var run Run
	if err := s.conn.GetContext(ctx, &run, "SELECT * FROM runs WHERE id = ?", runID); err != nil {
		return nil, fmt.Errorf("get run %d: %w", runID, err)
	}
	return &run, nil
}

// GetRuns lists all runs, newest first
func (s *Store) GetRuns(ctx context.Context) ([]Run, error) {
	var runs []Run
	if err := s.conn.SelectContext(ctx, &runs, "SELECT * FROM runs ORDER BY id DESC"); err != nil {
		return nil, fmt.Errorf("get runs: %w", err)
	}
	return runs, nil
}

// LatestRun returns the most recent run, or nil when the ledger is empty
func (s *Store) LatestRun(ctx context.Context) (*Run, error) {
	runs, err := s.GetRuns(ctx)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, nil
	}
	return &runs[0], nil
}
