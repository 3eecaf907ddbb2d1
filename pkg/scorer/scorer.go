package scorer

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-pkgz/lgr"
	"golang.org/x/sync/errgroup"

	"github.com/kurtb/curator/pkg/config"
	"github.com/kurtb/curator/pkg/domain"
	"github.com/kurtb/curator/pkg/llm"
)

// minTextChars is the floor for the context-overflow halving retry; below
// this the prompt carries no useful article text anyway
const minTextChars = 100

// Scorer evaluates candidate items against the interest profile via the
// model backend. Safe for concurrent use; batch scoring runs a bounded
// worker pool sized by the backend's tolerance.
type Scorer struct {
	provider llm.Provider
	cfg      config.ScoringConfig
	llmCfg   config.LLMConfig

	// feedback-derived override examples appended to the system prompt,
	// empty when there is no feedback yet
	feedbackExamples string

	mu    sync.Mutex
	stats Stats
}

// Stats holds cumulative token and error counters. Informational only,
// never used for control flow.
type Stats struct {
	ItemsScored  int
	Errors       int
	InputTokens  int
	OutputTokens int
}

// TotalTokens returns input plus output token usage
func (s Stats) TotalTokens() int { return s.InputTokens + s.OutputTokens }

// ProgressFunc is called after each item completes during batch scoring
type ProgressFunc func(done, total int)

// New creates a scorer over the given provider
func New(provider llm.Provider, cfg config.ScoringConfig, llmCfg config.LLMConfig, feedbackExamples string) *Scorer {
	return &Scorer{
		provider:         provider,
		cfg:              cfg,
		llmCfg:           llmCfg,
		feedbackExamples: feedbackExamples,
	}
}

// systemPrompt returns the static profile prompt plus any feedback examples
func (s *Scorer) systemPrompt() string {
	if s.feedbackExamples == "" {
		return systemPrompt
	}
	return systemPrompt + "\n" + s.feedbackExamples
}

// ScoreItem scores a single candidate. Parse failures are retried up to the
// configured bound; a context overflow halves the text budget and retries
// until the floor. A connectivity-class failure is returned as an error so
// the caller can abort the whole batch instead of recording misleading
// per-item errors. Any other exhaustion produces an error-verdict result.
func (s *Scorer) ScoreItem(ctx context.Context, candidate domain.CandidateItem) (domain.ScoredItem, error) {
	system := s.systemPrompt()
	textBudget := s.cfg.MaxTextChars
	userPrompt := buildUserPrompt(&candidate, textBudget)

	var lastErr error
	for attempt := 0; attempt <= s.cfg.MaxRetries; attempt++ {
		resp, err := s.provider.Call(ctx, system, userPrompt, s.llmCfg.MaxTokens, float32(s.llmCfg.Temperature))
		if err != nil {
			switch {
			case llm.IsContextOverflow(err):
				textBudget /= 2
				if textBudget < minTextChars {
					lastErr = err
					break
				}
				lgr.Printf("[WARN] context overflow, retrying with %d chars: %s", textBudget, candidate.LinkText)
				userPrompt = buildUserPrompt(&candidate, textBudget)
				continue
			case llm.IsConnectivity(err):
				// systemic outage, not per-item bad luck: escalate
				s.countError()
				return domain.ScoredItem{}, fmt.Errorf("model backend unreachable: %w", err)
			default:
				lastErr = err
			}
			break
		}

		result, perr := parseScored(resp.Text, candidate)
		if perr != nil {
			lastErr = perr
			lgr.Printf("[WARN] parse failure (attempt %d/%d): %v", attempt+1, s.cfg.MaxRetries+1, perr)
			continue
		}

		s.mu.Lock()
		s.stats.ItemsScored++
		s.stats.InputTokens += resp.InputTokens
		s.stats.OutputTokens += resp.OutputTokens
		s.mu.Unlock()
		return result, nil
	}

	s.countError()
	return domain.NewErrorResult(candidate, fmt.Sprintf("scoring failed after retries: %v", lastErr)), nil
}

// ScoreBatch scores all items with a bounded worker pool. Results come back
// in input order regardless of completion order. The progress callback, if
// given, fires once per completed item. A connectivity failure on any
// worker aborts the whole batch.
func (s *Scorer) ScoreBatch(ctx context.Context, items []domain.CandidateItem, onProgress ProgressFunc) ([]domain.ScoredItem, error) {
	if len(items) == 0 {
		return []domain.ScoredItem{}, nil
	}

	workers := s.provider.DefaultWorkers()
	total := len(items)
	results := make([]domain.ScoredItem, total)

	var progressMu sync.Mutex
	done := 0

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, item := range items {
		g.Go(func() error {
			lgr.Printf("[DEBUG] scoring: %s", item.LinkText)
			result, err := s.ScoreItem(ctx, item)
			if err != nil {
				return err
			}
			results[i] = result
			lgr.Printf("[DEBUG] scored %s -> %s (score: %d)", item.LinkText, result.Verdict, result.Score)

			if onProgress != nil {
				progressMu.Lock()
				done++
				n := done
				progressMu.Unlock()
				onProgress(n, total)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("batch scoring aborted: %w", err)
	}
	return results, nil
}

// Stats returns a snapshot of the cumulative counters
func (s *Scorer) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

func (s *Scorer) countError() {
	s.mu.Lock()
	s.stats.Errors++
	s.mu.Unlock()
}
