package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kurtb/curator/pkg/domain"
	"github.com/kurtb/curator/pkg/ledger"
	"github.com/kurtb/curator/pkg/scorer"
)

type mockInbox struct {
	inbox Inbox
	err   error
}

func (m *mockInbox) Fetch(context.Context) (Inbox, error) { return m.inbox, m.err }

type mockResolver struct {
	errs     map[string]error
	resolved []string
}

func (m *mockResolver) Resolve(_ context.Context, c *domain.CandidateItem) error {
	m.resolved = append(m.resolved, c.Title)
	if err := m.errs[c.Title]; err != nil {
		return err
	}
	c.Text = "resolved text for " + c.Title
	return nil
}

type mockScorer struct {
	scoreFunc func(ctx context.Context, items []domain.CandidateItem, onProgress scorer.ProgressFunc) ([]domain.ScoredItem, error)
}

func (m *mockScorer) ScoreBatch(ctx context.Context, items []domain.CandidateItem, onProgress scorer.ProgressFunc) ([]domain.ScoredItem, error) {
	return m.scoreFunc(ctx, items, onProgress)
}

type mockExploder struct {
	called bool
	out    []domain.ScoredItem
}

func (m *mockExploder) ProcessBatch(_ context.Context, items []domain.ScoredItem) []domain.ScoredItem {
	m.called = true
	if m.out != nil {
		return m.out
	}
	return items
}

type mockDedup struct {
	buildErr    error
	builds      int
	invalidated bool
}

func (m *mockDedup) Build(context.Context) error { m.builds++; return m.buildErr }
func (m *mockDedup) Invalidate()                 { m.invalidated = true }

type mockRouter struct {
	routeFunc func(items []domain.ScoredItem) []domain.RoutingDecision
}

func (m *mockRouter) RouteBatch(items []domain.ScoredItem) []domain.RoutingDecision {
	return m.routeFunc(items)
}

type mockLedger struct {
	runID    int64
	addErr   error
	finished []ledger.RunStats
	added    [][]domain.RoutingDecision
}

func (m *mockLedger) CreateRun(context.Context, int) (int64, error) { return m.runID, nil }

func (m *mockLedger) FinishRun(_ context.Context, _ int64, stats ledger.RunStats) error {
	m.finished = append(m.finished, stats)
	return nil
}

func (m *mockLedger) AddBatch(_ context.Context, _ int64, decisions []domain.RoutingDecision) ([]int64, error) {
	if m.addErr != nil {
		return nil, m.addErr
	}
	m.added = append(m.added, decisions)
	ids := make([]int64, len(decisions))
	return ids, nil
}

func candidate(title string) domain.CandidateItem {
	return domain.CandidateItem{Title: title, SourceURL: "https://example.com/" + title}
}

// scoreAll maps every candidate to a proposable scored item
func scoreAll(_ context.Context, items []domain.CandidateItem, onProgress scorer.ProgressFunc) ([]domain.ScoredItem, error) {
	scored := make([]domain.ScoredItem, 0, len(items))
	for i, c := range items {
		scored = append(scored, domain.ScoredItem{
			Candidate:     c,
			Score:         5,
			Verdict:       domain.VerdictStrongFit,
			ItemType:      domain.TypeArticle,
			SuggestedName: c.Title,
		})
		if onProgress != nil {
			onProgress(i+1, len(items))
		}
	}
	return scored, nil
}

// routeAll proposes every positive item, skips the rest
func routeAll(items []domain.ScoredItem) []domain.RoutingDecision {
	decisions := make([]domain.RoutingDecision, 0, len(items))
	for _, item := range items {
		action := domain.ActionPropose
		if item.Verdict.IsNegative() {
			action = domain.ActionSkip
		}
		decisions = append(decisions, domain.RoutingDecision{
			ScoredItem:       item,
			TargetCollection: "Articles & Reads",
			DedupStatus:      domain.DedupNew,
			Action:           action,
		})
	}
	return decisions
}

func testPipeline(p Params) *Pipeline {
	if p.Scorer == nil {
		p.Scorer = &mockScorer{scoreFunc: scoreAll}
	}
	if p.Router == nil {
		p.Router = &mockRouter{routeFunc: routeAll}
	}
	if p.Dedup == nil {
		p.Dedup = &mockDedup{}
	}
	if p.Ledger == nil {
		p.Ledger = &mockLedger{runID: 1}
	}
	return New(p)
}

func TestPipeline_Run(t *testing.T) {
	dedup := &mockDedup{}
	ldg := &mockLedger{runID: 42}
	p := testPipeline(Params{
		Inbox:  &mockInbox{inbox: Inbox{EmailsFetched: 3, Candidates: []domain.CandidateItem{candidate("A"), candidate("B")}}},
		Dedup:  dedup,
		Ledger: ldg,
	})

	res, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(42), res.RunID)
	assert.Equal(t, 3, res.EmailsFetched)
	assert.Equal(t, 2, res.ItemsExtracted)
	assert.Equal(t, 2, res.ItemsScored)
	assert.Equal(t, 2, res.ItemsProposed)
	assert.Equal(t, 0, res.ItemsSkipped)

	assert.Equal(t, 1, dedup.builds, "the index is rebuilt before routing")
	require.Len(t, ldg.added, 1)
	assert.Len(t, ldg.added[0], 2)

	require.Len(t, ldg.finished, 1)
	assert.Empty(t, ldg.finished[0].Status, "default status marks the run completed")
	assert.Equal(t, 2, ldg.finished[0].ItemsProposed)
}

func TestPipeline_Run_FetchError(t *testing.T) {
	ldg := &mockLedger{runID: 1}
	p := testPipeline(Params{
		Inbox:  &mockInbox{err: errors.New("imap down")},
		Ledger: ldg,
	})

	_, err := p.Run(context.Background())
	require.Error(t, err)
	assert.Empty(t, ldg.finished, "no run is created when fetch fails")
}

func TestPipeline_Run_ScoringFailureMarksRunFailed(t *testing.T) {
	ldg := &mockLedger{runID: 7}
	p := testPipeline(Params{
		Inbox:  &mockInbox{inbox: Inbox{EmailsFetched: 1, Candidates: []domain.CandidateItem{candidate("A")}}},
		Scorer: &mockScorer{scoreFunc: func(context.Context, []domain.CandidateItem, scorer.ProgressFunc) ([]domain.ScoredItem, error) {
			return nil, errors.New("connection refused")
		}},
		Ledger: ldg,
	})

	res, err := p.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, int64(7), res.RunID, "the failed run id is still reported")

	require.Len(t, ldg.finished, 1)
	assert.Equal(t, "failed", ldg.finished[0].Status)
	assert.Equal(t, 1, ldg.finished[0].ItemsExtracted)
}

func TestPipeline_Run_DedupBuildFailureMarksRunFailed(t *testing.T) {
	ldg := &mockLedger{runID: 7}
	p := testPipeline(Params{
		Inbox:  &mockInbox{inbox: Inbox{EmailsFetched: 1, Candidates: []domain.CandidateItem{candidate("A")}}},
		Dedup:  &mockDedup{buildErr: errors.New("catalog unreachable")},
		Ledger: ldg,
	})

	_, err := p.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "build dedup index")

	require.Len(t, ldg.finished, 1)
	assert.Equal(t, "failed", ldg.finished[0].Status)
}

func TestPipeline_Run_PersistFailureMarksRunFailed(t *testing.T) {
	ldg := &mockLedger{runID: 7, addErr: errors.New("db locked")}
	p := testPipeline(Params{
		Inbox:  &mockInbox{inbox: Inbox{EmailsFetched: 1, Candidates: []domain.CandidateItem{candidate("A")}}},
		Ledger: ldg,
	})

	_, err := p.Run(context.Background())
	require.Error(t, err)
	require.Len(t, ldg.finished, 1)
	assert.Equal(t, "failed", ldg.finished[0].Status)
}

func TestPipeline_Run_ResolverErrorsTolerated(t *testing.T) {
	resolver := &mockResolver{errs: map[string]error{"B": errors.New("fetch timeout")}}
	p := testPipeline(Params{
		Inbox:    &mockInbox{inbox: Inbox{EmailsFetched: 1, Candidates: []domain.CandidateItem{candidate("A"), candidate("B")}}},
		Resolver: resolver,
	})

	res, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.ItemsScored, "a failed resolve never drops the candidate")
	assert.Equal(t, []string{"A", "B"}, resolver.resolved)
}

func TestPipeline_Run_ExploderExpandsItems(t *testing.T) {
	exploded := []domain.ScoredItem{
		{SuggestedName: "Marimo", Score: 5, Verdict: domain.VerdictStrongFit, ItemType: domain.TypePythonLibrary},
		{SuggestedName: "Polars", Score: 4, Verdict: domain.VerdictLikelyFit, ItemType: domain.TypePythonLibrary},
		{SuggestedName: "Junk", Score: 0, Verdict: domain.VerdictReject, ItemType: domain.TypePythonLibrary},
	}
	exp := &mockExploder{out: exploded}
	p := testPipeline(Params{
		Inbox:    &mockInbox{inbox: Inbox{EmailsFetched: 1, Candidates: []domain.CandidateItem{candidate("7 libs")}}},
		Exploder: exp,
	})

	res, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.True(t, exp.called)
	assert.Equal(t, 1, res.ItemsScored, "scored counts pre-explosion items")
	assert.Equal(t, 2, res.ItemsProposed, "proposed counts post-explosion decisions")
	assert.Equal(t, 1, res.ItemsSkipped)
}

func TestPipeline_Run_NilOptionalStages(t *testing.T) {
	p := testPipeline(Params{
		Inbox: &mockInbox{inbox: Inbox{EmailsFetched: 1, Candidates: []domain.CandidateItem{candidate("A")}}},
	})

	res, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.ItemsProposed)
}

func TestPipeline_InvalidateAfterWrite(t *testing.T) {
	dedup := &mockDedup{}
	p := testPipeline(Params{
		Inbox: &mockInbox{},
		Dedup: dedup,
	})

	p.InvalidateAfterWrite()
	assert.True(t, dedup.invalidated)
}
