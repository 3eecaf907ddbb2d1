package ledger

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-pkgz/repeater/v2"
	"github.com/jmoiron/sqlx"

	"github.com/kurtb/curator/pkg/domain"
)

// storedTextLimit caps the article text persisted per item; full text is
// only needed at scoring time
const storedTextLimit = 500

// Item is one routed digest item as stored in the ledger
type Item struct {
	ID        int64  `db:"id"`
	RunID     int64  `db:"run_id"`
	CreatedAt string `db:"created_at"`

	EmailID      string `db:"email_id"`
	EmailSubject string `db:"email_subject"`
	EmailSender  string `db:"email_sender"`

	URL      string `db:"url"`
	LinkText string `db:"link_text"`
	Title    string `db:"title"`
	Author   string `db:"author"`
	Text     string `db:"text"`

	Score             int     `db:"score"`
	Verdict           string  `db:"verdict"`
	ItemType          string  `db:"item_type"`
	Description       string  `db:"description"`
	Reasoning         string  `db:"reasoning"`
	Signals           jsonSQL `db:"signals"`
	SuggestedName     string  `db:"suggested_name"`
	SuggestedCategory string  `db:"suggested_category"`
	Tags              jsonSQL `db:"tags"`

	Pillar          string `db:"pillar"`
	Overlap         string `db:"overlap"`
	Relevance       string `db:"relevance"`
	Usefulness      string `db:"usefulness"`
	UsefulnessNotes string `db:"usefulness_notes"`

	TargetCollection string     `db:"target_collection"`
	DedupStatus      string     `db:"dedup_status"`
	DedupMatches     matchesSQL `db:"dedup_matches"`
	Action           string     `db:"action"`

	SourceArticle string `db:"source_article"`

	UserDecision  *string `db:"user_decision"`
	DecidedAt     *string `db:"decided_at"`
	CatalogPageID string  `db:"catalog_page_id"`
}

// matchesSQL is a JSON array of dedup matches for SQL storage
type matchesSQL []domain.DedupMatch

// Value implements driver.Valuer for database storage
func (m matchesSQL) Value() (driver.Value, error) {
	if m == nil {
		return "[]", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner for database retrieval
func (m *matchesSQL) Scan(value interface{}) error {
	if value == nil {
		*m = matchesSQL{}
		return nil
	}

	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		*m = matchesSQL{}
		return nil
	}

	if err := json.Unmarshal(data, m); err != nil {
		*m = matchesSQL{}
	}
	return nil
}

// fromDecision flattens a routing decision into a ledger item row
func fromDecision(runID int64, d *domain.RoutingDecision) *Item {
	text := d.Candidate.Text
	if runes := []rune(text); len(runes) > storedTextLimit {
		text = string(runes[:storedTextLimit])
	}

	return &Item{
		RunID:     runID,
		CreatedAt: now(),

		EmailID:      d.Candidate.Email.ID,
		EmailSubject: d.Candidate.Email.Subject,
		EmailSender:  d.Candidate.Email.Sender,

		URL:      d.URL(),
		LinkText: d.Candidate.LinkText,
		Title:    d.Candidate.Title,
		Author:   d.Candidate.Author,
		Text:     text,

		Score:             d.Score,
		Verdict:           string(d.Verdict),
		ItemType:          string(d.ItemType),
		Description:       d.Description,
		Reasoning:         d.Reasoning,
		Signals:           jsonSQL(d.Signals),
		SuggestedName:     d.SuggestedName,
		SuggestedCategory: d.SuggestedCategory,
		Tags:              jsonSQL(d.Tags),

		Pillar:          d.Pillar,
		Overlap:         d.Overlap,
		Relevance:       d.Relevance,
		Usefulness:      d.Usefulness,
		UsefulnessNotes: d.UsefulnessNotes,

		TargetCollection: d.TargetCollection,
		DedupStatus:      string(d.DedupStatus),
		DedupMatches:     matchesSQL(d.DedupMatches),
		Action:           string(d.Action),

		SourceArticle: d.SourceArticle,
	}
}

const insertItemQuery = `
	INSERT INTO items (
		run_id, created_at,
		email_id, email_subject, email_sender,
		url, link_text, title, author, text,
		score, verdict, item_type, description, reasoning, signals,
		suggested_name, suggested_category, tags,
		pillar, overlap, relevance, usefulness, usefulness_notes,
		target_collection, dedup_status, dedup_matches, action,
		source_article
	) VALUES (
		:run_id, :created_at,
		:email_id, :email_subject, :email_sender,
		:url, :link_text, :title, :author, :text,
		:score, :verdict, :item_type, :description, :reasoning, :signals,
		:suggested_name, :suggested_category, :tags,
		:pillar, :overlap, :relevance, :usefulness, :usefulness_notes,
		:target_collection, :dedup_status, :dedup_matches, :action,
		:source_article
	)
`

// AddItem stores one routing decision as a digest item and returns its ID.
// Email context comes along inside the decision's candidate.
func (s *Store) AddItem(ctx context.Context, runID int64, decision *domain.RoutingDecision) (int64, error) {
	item := fromDecision(runID, decision)

	var id int64
	retrier := repeater.NewBackoff(5, 50*time.Millisecond, repeater.WithMaxDelay(2*time.Second))
	err := retrier.Do(ctx, func() error {
		res, err := s.conn.NamedExecContext(ctx, insertItemQuery, item)
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("add item: %w", err)
	}
	return id, nil
}

// AddBatch stores a list of routing decisions in one transaction and
// returns the created item IDs in input order
func (s *Store) AddBatch(ctx context.Context, runID int64, decisions []domain.RoutingDecision) ([]int64, error) {
	ids := make([]int64, 0, len(decisions))

	err := s.inTransaction(ctx, func(tx *sqlx.Tx) error {
		for i := range decisions {
			item := fromDecision(runID, &decisions[i])
			res, err := tx.NamedExecContext(ctx, insertItemQuery, item)
			if err != nil {
				return fmt.Errorf("insert item %q: %w", item.SuggestedName, err)
			}
			id, err := res.LastInsertId()
			if err != nil {
				return fmt.Errorf("get insert id: %w", err)
			}
			ids = append(ids, id)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("add batch: %w", err)
	}
	return ids, nil
}

// GetItems retrieves items for a run, optionally filtered by action
func (s *Store) GetItems(ctx context.Context, runID int64, actionFilter string) ([]Item, error) {
	var items []Item
	var err error
	if actionFilter != "" {
		err = s.conn.SelectContext(ctx, &items,
			"SELECT * FROM items WHERE run_id = ? AND action = ? ORDER BY id", runID, actionFilter)
	} else {
		err = s.conn.SelectContext(ctx, &items,
			"SELECT * FROM items WHERE run_id = ? ORDER BY id", runID)
	}
	if err != nil {
		return nil, fmt.Errorf("get items for run %d: %w", runID, err)
	}
	return items, nil
}

// GetItem retrieves a single item by ID, nil when not found
func (s *Store) GetItem(ctx context.Context, itemID int64) (*Item, error) {
	var item Item
	err := s.conn.GetContext(ctx, &item, "SELECT * FROM items WHERE id = ?", itemID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get item %d: %w", itemID, err)
	}
	return &item, nil
}

// SetDecision records a user accept/reject decision on an item and logs it
// to the feedback table in the same transaction
func (s *Store) SetDecision(ctx context.Context, itemID int64, decision domain.Decision, reason string) error {
	item, err := s.GetItem(ctx, itemID)
	if err != nil {
		return err
	}
	if item == nil {
		return fmt.Errorf("item %d not found", itemID)
	}

	ts := now()
	retrier := repeater.NewBackoff(5, 50*time.Millisecond, repeater.WithMaxDelay(2*time.Second))
	err = retrier.Do(ctx, func() error {
		return s.inTransaction(ctx, func(tx *sqlx.Tx) error {
			if _, err := tx.ExecContext(ctx,
				"UPDATE items SET user_decision = ?, decided_at = ? WHERE id = ?",
				string(decision), ts, itemID); err != nil {
				return fmt.Errorf("update item decision: %w", err)
			}

			if _, err := tx.ExecContext(ctx,
				`INSERT INTO feedback (
					item_id, created_at, verdict, user_decision,
					item_type, target_collection, score,
					suggested_name, url, reason
				) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				itemID, ts, item.Verdict, string(decision),
				item.ItemType, item.TargetCollection, item.Score,
				item.SuggestedName, item.URL, reason); err != nil {
				return fmt.Errorf("insert feedback: %w", err)
			}
			return nil
		})
	})
	if err != nil {
		return fmt.Errorf("set decision on item %d: %w", itemID, err)
	}
	return nil
}

// EditableFields are the item fields a reviewer may adjust before accepting.
// Nil pointers leave the stored value untouched.
type EditableFields struct {
	SuggestedName     *string
	SuggestedCategory *string
	TargetCollection  *string
	Tags              []string
}

// UpdateItemFields applies reviewer edits to an item
func (s *Store) UpdateItemFields(ctx context.Context, itemID int64, fields EditableFields) error {
	var clauses []string
	var args []interface{}

	if fields.SuggestedName != nil {
		clauses = append(clauses, "suggested_name = ?")
		args = append(args, *fields.SuggestedName)
	}
	if fields.SuggestedCategory != nil {
		clauses = append(clauses, "suggested_category = ?")
		args = append(args, *fields.SuggestedCategory)
	}
	if fields.TargetCollection != nil {
		clauses = append(clauses, "target_collection = ?")
		args = append(args, *fields.TargetCollection)
	}
	if fields.Tags != nil {
		clauses = append(clauses, "tags = ?")
		args = append(args, jsonSQL(fields.Tags))
	}
	if len(clauses) == 0 {
		return nil
	}

	args = append(args, itemID)
	query := "UPDATE items SET " + strings.Join(clauses, ", ") + " WHERE id = ?"
	if _, err := s.conn.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update item %d fields: %w", itemID, err)
	}
	return nil
}

// GetPendingCount counts proposed items in a run still awaiting review
func (s *Store) GetPendingCount(ctx context.Context, runID int64) (int, error) {
	var count int
	err := s.conn.GetContext(ctx, &count,
		"SELECT COUNT(*) FROM items WHERE run_id = ? AND action = 'propose' AND user_decision IS NULL", runID)
	if err != nil {
		return 0, fmt.Errorf("count pending items: %w", err)
	}
	return count, nil
}

// GetAcceptedItems returns accepted items not yet written to the catalog
func (s *Store) GetAcceptedItems(ctx context.Context, runID int64) ([]Item, error) {
	var items []Item
	err := s.conn.SelectContext(ctx, &items,
		`SELECT * FROM items
		 WHERE run_id = ? AND user_decision = 'accepted' AND catalog_page_id = ''
		 ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("get accepted items: %w", err)
	}
	return items, nil
}

// SetCatalogPageID records the catalog page ID after a successful write
func (s *Store) SetCatalogPageID(ctx context.Context, itemID int64, pageID string) error {
	if _, err := s.conn.ExecContext(ctx,
		"UPDATE items SET catalog_page_id = ? WHERE id = ?", pageID, itemID); err != nil {
		return fmt.Errorf("set catalog page id on item %d: %w", itemID, err)
	}
	return nil
}

// DismissUndecided bulk-rejects all undecided items in a run. No feedback
// rows are created: bulk dismissals are not review decisions and must not
// influence the learning loop. Returns the number of items dismissed.
func (s *Store) DismissUndecided(ctx context.Context, runID int64) (int, error) {
	res, err := s.conn.ExecContext(ctx,
		"UPDATE items SET user_decision = 'rejected', decided_at = ? WHERE run_id = ? AND user_decision IS NULL",
		now(), runID)
	if err != nil {
		return 0, fmt.Errorf("dismiss undecided items: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("get affected rows: %w", err)
	}
	return int(n), nil
}

// CleanupOldItems deletes rejected or skipped items older than the given
// number of days. Items with feedback rows are never touched: feedback is
// the learning history and survives any cleanup. Returns the number of
// items deleted.
func (s *Store) CleanupOldItems(ctx context.Context, days int) (int, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -days).Format(time.RFC3339)

	res, err := s.conn.ExecContext(ctx,
		`DELETE FROM items
		 WHERE ((user_decision = 'rejected' AND decided_at < ?)
		    OR (action = 'skip' AND created_at < ?))
		   AND id NOT IN (SELECT item_id FROM feedback)`, cutoff, cutoff)
	if err != nil {
		return 0, fmt.Errorf("cleanup old items: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("get affected rows: %w", err)
	}
	return int(n), nil
}

// inTransaction executes a function within a database transaction
func (s *Store) inTransaction(ctx context.Context, fn func(*sqlx.Tx) error) error {
	tx, err := s.conn.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("transaction failed: %w (rollback also failed: %s)", err, rbErr.Error())
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
