package exploder

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/go-pkgz/lgr"

	"github.com/kurtb/curator/pkg/config"
	"github.com/kurtb/curator/pkg/domain"
	"github.com/kurtb/curator/pkg/llm"
)

// explodableTypes are the member types that make sense as standalone
// catalog entries when extracted from a listicle
var explodableTypes = map[domain.ItemType]bool{
	domain.TypePythonLibrary:   true,
	domain.TypeDuckDBExtension: true,
	domain.TypeAITool:          true,
	domain.TypeCodingTool:      true,
	domain.TypeVibeCodingTool:  true,
	domain.TypePlatformInfra:   true,
}

// Deduper is the dedup index lookup the exploder pre-filters against
type Deduper interface {
	Search(name, url string, threshold int) []domain.DedupMatch
}

// Exploder detects listicle articles and expands them into independent
// sub-items via a secondary model call
type Exploder struct {
	provider  llm.Provider
	cfg       config.ExploderConfig
	dedup     Deduper
	threshold int

	mu    sync.Mutex
	stats Stats
}

// Stats holds cumulative explosion counters
type Stats struct {
	ItemsExploded   int
	SubItemsCreated int
	DuplicatesDrop  int
	Errors          int
	InputTokens     int
	OutputTokens    int
}

// New creates an exploder. The dedup index may be nil, which disables
// pre-filtering.
func New(provider llm.Provider, cfg config.ExploderConfig, dedup Deduper, threshold int) *Exploder {
	return &Exploder{provider: provider, cfg: cfg, dedup: dedup, threshold: threshold}
}

// ShouldExplode reports whether a scored item is an explodable listicle:
// flagged as a listicle, member type in the explodable set, and not
// rejected or errored
func (e *Exploder) ShouldExplode(item *domain.ScoredItem) bool {
	return item.IsListicle &&
		explodableTypes[item.ListicleItemType] &&
		!item.Verdict.IsNegative()
}

// ExplodeItem extracts individual sub-items from a listicle article via a
// second model call. Sub-items reuse the scorer's repaired-JSON parsing and
// score-derived verdicts, carry the parent's name as source article, and
// inherit the parent's email metadata. Sub-items already present in the
// dedup index are dropped silently. Returns an empty slice on any failure;
// the caller keeps the unexploded parent in that case.
func (e *Exploder) ExplodeItem(ctx context.Context, item *domain.ScoredItem) []domain.ScoredItem {
	memberType := item.ListicleItemType
	title := item.DisplayName()
	parentURL := item.URL()

	text := item.Candidate.Text
	if text == "" {
		text = "[No article text available]"
	} else {
		runes := []rune(text)
		if len(runes) > e.cfg.MaxTextChars {
			text = string(runes[:e.cfg.MaxTextChars])
		}
	}

	userPrompt := fmt.Sprintf(`Extract individual %s items from this listicle article.

Title: %s
URL: %s

Article text (first %d chars):
%s
`, memberType, title, parentURL, e.cfg.MaxTextChars, text)

	resp, err := e.provider.Call(ctx, extractionSystemPrompt, userPrompt, e.cfg.MaxTokens, 0.2)
	if err != nil {
		e.countError()
		lgr.Printf("[WARN] exploder call failed for %q: %v", title, err)
		return nil
	}

	e.mu.Lock()
	e.stats.InputTokens += resp.InputTokens
	e.stats.OutputTokens += resp.OutputTokens
	e.mu.Unlock()

	obj, err := llm.ParseObject(resp.Text)
	if err != nil {
		e.countError()
		lgr.Printf("[WARN] exploder parse failed for %q: %v", title, err)
		return nil
	}

	rawItems := llm.AsObjectList(obj["items"])
	if len(rawItems) == 0 {
		return nil
	}

	subItems := make([]domain.ScoredItem, 0, len(rawItems))
	dropped := 0
	for _, raw := range rawItems {
		sub := e.buildSubItem(raw, item, title, parentURL)

		// pre-filter: don't re-propose what the catalog already has
		if e.dedup != nil && e.alreadyKnown(&sub) {
			dropped++
			continue
		}
		subItems = append(subItems, sub)
	}

	e.mu.Lock()
	e.stats.ItemsExploded++
	e.stats.SubItemsCreated += len(subItems)
	e.stats.DuplicatesDrop += dropped
	e.mu.Unlock()

	return subItems
}

// buildSubItem converts one extracted member into a scored item. The
// verdict comes from the score, same as the scorer. A model-supplied URL
// wins over the parent URL when present.
func (e *Exploder) buildSubItem(raw map[string]any, parent *domain.ScoredItem, parentName, parentURL string) domain.ScoredItem {
	candidate := parent.Candidate
	if subURL := strings.TrimSpace(llm.AsString(raw["url"])); subURL != "" && subURL != "null" {
		candidate.ResolvedURL = subURL
	}

	score := llm.AsInt(raw["score"])
	return domain.ScoredItem{
		Candidate:         candidate,
		Score:             score,
		Verdict:           domain.VerdictFromScore(score),
		ItemType:          parent.ListicleItemType,
		Description:       llm.AsString(raw["description"]),
		Reasoning:         llm.AsString(raw["reasoning"]),
		SuggestedName:     llm.AsString(raw["suggested_name"]),
		SuggestedCategory: llm.AsString(raw["suggested_category"]),
		Tags:              llm.AsStringList(raw["tags"]),
		SourceArticle:     parentName,
	}
}

func (e *Exploder) alreadyKnown(sub *domain.ScoredItem) bool {
	matches := e.dedup.Search(sub.SuggestedName, sub.URL(), e.threshold)
	return len(matches) > 0
}

// ProcessBatch replaces eligible listicles with their extracted sub-items
// and passes everything else through unchanged. A listicle whose extraction
// fails stays in the output as-is rather than being dropped.
func (e *Exploder) ProcessBatch(ctx context.Context, items []domain.ScoredItem) []domain.ScoredItem {
	result := make([]domain.ScoredItem, 0, len(items))
	for i := range items {
		item := items[i]
		if !e.ShouldExplode(&item) {
			result = append(result, item)
			continue
		}

		lgr.Printf("[INFO] exploding listicle: %s", item.DisplayName())
		subItems := e.ExplodeItem(ctx, &item)
		if len(subItems) == 0 {
			lgr.Printf("[INFO] no sub-items extracted, keeping parent: %s", item.DisplayName())
			result = append(result, item)
			continue
		}
		lgr.Printf("[INFO] extracted %d sub-items from %s", len(subItems), item.DisplayName())
		result = append(result, subItems...)
	}
	return result
}

// Stats returns a snapshot of the cumulative counters
func (e *Exploder) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stats
}

func (e *Exploder) countError() {
	e.mu.Lock()
	e.stats.Errors++
	e.mu.Unlock()
}

// extractionSystemPrompt asks for independent extraction of each listicle member
const extractionSystemPrompt = `You are extracting individual tools/libraries/products from a listicle article. For each distinct item mentioned in the article, extract its details as a separate entry.

Return ONLY valid JSON (no markdown fences, no extra text) with this structure:
{
    "items": [
        {
            "suggested_name": "<clean name of the tool/library/product>",
            "description": "<1-2 sentence description of what it does>",
            "suggested_category": "<e.g. 'Data Validation', 'LLM Framework'>",
            "tags": ["<2-5 relevant tags>"],
            "url": "<the item's own URL if the article gives one, else null>",
            "score": <integer 0-10, based on relevance to a Python/AI developer>,
            "verdict": "<strong_fit|likely_fit|maybe|reject>",
            "reasoning": "<1 sentence explaining the score>"
        }
    ]
}

Guidelines:
- Only extract items that are concrete tools, libraries, or products -- skip generic advice or filler
- Each item should be independently useful as a catalog entry
- Use the same verdict thresholds: 5+ = strong_fit, 3-4 = likely_fit, 1-2 = maybe, 0- = reject
- If the article mentions a tool only in passing (1 sentence, no detail), still include it but score lower`
