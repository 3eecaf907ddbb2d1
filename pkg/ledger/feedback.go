package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/kurtb/curator/pkg/domain"
)

// feedbackSQL is a feedback row for SQL operations
type feedbackSQL struct {
	ID               int64  `db:"id"`
	ItemID           int64  `db:"item_id"`
	CreatedAt        string `db:"created_at"`
	Verdict          string `db:"verdict"`
	UserDecision     string `db:"user_decision"`
	ItemType         string `db:"item_type"`
	TargetCollection string `db:"target_collection"`
	Score            int    `db:"score"`
	SuggestedName    string `db:"suggested_name"`
	URL              string `db:"url"`
	Reason           string `db:"reason"`
}

// GetFeedback returns recent feedback entries, newest first
func (s *Store) GetFeedback(ctx context.Context, limit int) ([]domain.FeedbackRecord, error) {
	var rows []feedbackSQL
	err := s.conn.SelectContext(ctx, &rows,
		"SELECT * FROM feedback ORDER BY id DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("get feedback: %w", err)
	}

	records := make([]domain.FeedbackRecord, 0, len(rows))
	for _, r := range rows {
		createdAt, _ := time.Parse(time.RFC3339, r.CreatedAt)
		records = append(records, domain.FeedbackRecord{
			ItemID:           r.ItemID,
			CreatedAt:        createdAt,
			Verdict:          domain.Verdict(r.Verdict),
			UserDecision:     domain.Decision(r.UserDecision),
			ItemType:         domain.ItemType(r.ItemType),
			TargetCollection: r.TargetCollection,
			Score:            r.Score,
			SuggestedName:    r.SuggestedName,
			URL:              r.URL,
			Reason:           r.Reason,
		})
	}
	return records, nil
}

// Stats holds summary counters across all runs
type Stats struct {
	TotalRuns       int
	TotalItems      int
	Proposed        int
	Skipped         int
	Reviewed        int
	Accepted        int
	Rejected        int
	FeedbackEntries int
}

// GetStats computes summary stats across the whole ledger
func (s *Store) GetStats(ctx context.Context) (Stats, error) {
	var stats Stats
	queries := []struct {
		dst   *int
		query string
	}{
		{&stats.TotalRuns, "SELECT COUNT(*) FROM runs"},
		{&stats.TotalItems, "SELECT COUNT(*) FROM items"},
		{&stats.Proposed, "SELECT COUNT(*) FROM items WHERE action = 'propose'"},
		{&stats.Skipped, "SELECT COUNT(*) FROM items WHERE action = 'skip'"},
		{&stats.Reviewed, "SELECT COUNT(*) FROM items WHERE user_decision IS NOT NULL"},
		{&stats.Accepted, "SELECT COUNT(*) FROM items WHERE user_decision = 'accepted'"},
		{&stats.Rejected, "SELECT COUNT(*) FROM items WHERE user_decision = 'rejected'"},
		{&stats.FeedbackEntries, "SELECT COUNT(*) FROM feedback"},
	}
	for _, q := range queries {
		if err := s.conn.GetContext(ctx, q.dst, q.query); err != nil {
			return Stats{}, fmt.Errorf("stats query %q: %w", q.query, err)
		}
	}
	return stats, nil
}
