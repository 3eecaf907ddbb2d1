package pipeline

import (
	"context"
	"fmt"

	"github.com/go-pkgz/lgr"

	"github.com/kurtb/curator/pkg/domain"
	"github.com/kurtb/curator/pkg/ledger"
	"github.com/kurtb/curator/pkg/router"
	"github.com/kurtb/curator/pkg/scorer"
)

// InboxSource delivers candidate items extracted from newsletter emails
type InboxSource interface {
	Fetch(ctx context.Context) (Inbox, error)
}

// Inbox is one fetch of newsletter content
type Inbox struct {
	EmailsFetched int
	Candidates    []domain.CandidateItem
}

// ContentResolver fetches and extracts article text for a candidate
type ContentResolver interface {
	Resolve(ctx context.Context, candidate *domain.CandidateItem) error
}

// Scorer evaluates candidates against the interest profile
type Scorer interface {
	ScoreBatch(ctx context.Context, items []domain.CandidateItem, onProgress scorer.ProgressFunc) ([]domain.ScoredItem, error)
}

// Exploder expands listicle articles into sub-items
type Exploder interface {
	ProcessBatch(ctx context.Context, items []domain.ScoredItem) []domain.ScoredItem
}

// DedupIndex is the catalog index the routing stage depends on
type DedupIndex interface {
	Build(ctx context.Context) error
	Invalidate()
}

// Router maps scored items to collections and dedup outcomes
type Router interface {
	RouteBatch(items []domain.ScoredItem) []domain.RoutingDecision
}

// Ledger is the run bookkeeping surface the pipeline writes to
type Ledger interface {
	CreateRun(ctx context.Context, emailsFetched int) (int64, error)
	FinishRun(ctx context.Context, runID int64, stats ledger.RunStats) error
	AddBatch(ctx context.Context, runID int64, decisions []domain.RoutingDecision) ([]int64, error)
}

// Pipeline drives one curation run through its stages: fetch, resolve,
// score, explode, route, persist. Stages are strict barriers, each consumes
// the previous stage's complete output.
type Pipeline struct {
	inbox    InboxSource
	resolver ContentResolver // optional
	scorer   Scorer
	exploder Exploder // optional
	dedup    DedupIndex
	router   Router
	ledger   Ledger
}

// Params groups the pipeline collaborators
type Params struct {
	Inbox    InboxSource
	Resolver ContentResolver
	Scorer   Scorer
	Exploder Exploder
	Dedup    DedupIndex
	Router   Router
	Ledger   Ledger
}

// New creates a pipeline. Resolver and Exploder may be nil, the stages are
// then skipped.
func New(p Params) *Pipeline {
	return &Pipeline{
		inbox:    p.Inbox,
		resolver: p.Resolver,
		scorer:   p.Scorer,
		exploder: p.Exploder,
		dedup:    p.Dedup,
		router:   p.Router,
		ledger:   p.Ledger,
	}
}

// Result summarizes one completed run
type Result struct {
	RunID          int64
	EmailsFetched  int
	ItemsExtracted int
	ItemsScored    int
	ItemsProposed  int
	ItemsSkipped   int
}

// Run executes one full curation pass. A scoring connectivity failure or a
// dedup build failure aborts the run; the ledger records it as failed.
func (p *Pipeline) Run(ctx context.Context) (Result, error) {
	inbox, err := p.inbox.Fetch(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("fetch inbox: %w", err)
	}
	lgr.Printf("[INFO] fetched %d emails, %d candidate items", inbox.EmailsFetched, len(inbox.Candidates))

	runID, err := p.ledger.CreateRun(ctx, inbox.EmailsFetched)
	if err != nil {
		return Result{}, fmt.Errorf("create run: %w", err)
	}

	res, err := p.process(ctx, runID, inbox)
	if err != nil {
		if ferr := p.ledger.FinishRun(ctx, runID, ledger.RunStats{
			ItemsExtracted: len(inbox.Candidates),
			Status:         "failed",
		}); ferr != nil {
			lgr.Printf("[WARN] failed to mark run %d as failed: %v", runID, ferr)
		}
		return Result{RunID: runID}, err
	}

	if err := p.ledger.FinishRun(ctx, runID, ledger.RunStats{
		ItemsExtracted: res.ItemsExtracted,
		ItemsScored:    res.ItemsScored,
		ItemsProposed:  res.ItemsProposed,
		ItemsSkipped:   res.ItemsSkipped,
	}); err != nil {
		return res, fmt.Errorf("finish run %d: %w", runID, err)
	}

	lgr.Printf("[INFO] run %d completed: %d scored, %d proposed, %d skipped",
		runID, res.ItemsScored, res.ItemsProposed, res.ItemsSkipped)
	return res, nil
}

// process runs the stages after run creation, so Run can record a failure
// status in one place
func (p *Pipeline) process(ctx context.Context, runID int64, inbox Inbox) (Result, error) {
	res := Result{
		RunID:          runID,
		EmailsFetched:  inbox.EmailsFetched,
		ItemsExtracted: len(inbox.Candidates),
	}

	candidates := inbox.Candidates
	if p.resolver != nil {
		for i := range candidates {
			if err := p.resolver.Resolve(ctx, &candidates[i]); err != nil {
				// scorer handles text-less candidates, keep going
				lgr.Printf("[WARN] content resolution failed for %s: %v", candidates[i].URL(), err)
			}
		}
	}

	scored, err := p.scorer.ScoreBatch(ctx, candidates, func(done, total int) {
		lgr.Printf("[DEBUG] scoring progress: %d/%d", done, total)
	})
	if err != nil {
		return res, fmt.Errorf("score batch: %w", err)
	}
	res.ItemsScored = len(scored)

	if p.exploder != nil {
		scored = p.exploder.ProcessBatch(ctx, scored)
	}

	// always a fresh build: routing against a stale index silently
	// re-proposes entries written since the cache was saved
	if err := p.dedup.Build(ctx); err != nil {
		return res, fmt.Errorf("build dedup index: %w", err)
	}

	decisions := p.router.RouteBatch(scored)
	if _, err := p.ledger.AddBatch(ctx, runID, decisions); err != nil {
		return res, fmt.Errorf("persist decisions: %w", err)
	}

	summary := router.Summarize(decisions)
	res.ItemsProposed = summary.ByAction[domain.ActionPropose]
	res.ItemsSkipped = summary.ByAction[domain.ActionSkip]
	return res, nil
}

// InvalidateAfterWrite drops the dedup cache after catalog writes so the
// next run's index sees the new entries
func (p *Pipeline) InvalidateAfterWrite() {
	p.dedup.Invalidate()
}
