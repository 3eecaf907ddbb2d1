package router

import (
	"github.com/go-pkgz/lgr"

	"github.com/kurtb/curator/pkg/domain"
)

// routingTable maps item types to target catalog collections
var routingTable = map[domain.ItemType]string{
	domain.TypePythonLibrary:   "Python Libraries",
	domain.TypeDuckDBExtension: "DuckDB Extensions",
	domain.TypeAITool:          "TAAFT",
	domain.TypeAgentWorkflow:   "Overview",
	domain.TypeModelRelease:    "Model information",
	domain.TypePlatformInfra:   "Platforms & Infrastructure",
	domain.TypeConceptPattern:  "Topics & Concepts",
	domain.TypeArticle:         "Articles & Reads",
	domain.TypeBookPaper:       "Books & Papers",
	domain.TypeCodingTool:      "AI Agents & Coding Tools",
	domain.TypeVibeCodingTool:  "Vibe Coding Tools",
	domain.TypeAIArchitecture:  "AI Architecture Topics",
	domain.TypeInfraReference:  "Infrastructure Knowledge Base",
}

// defaultCollection receives items whose type has no mapping
const defaultCollection = "Articles & Reads"

// Deduper is the dedup index lookup used for routing decisions
type Deduper interface {
	Search(name, url string, threshold int) []domain.DedupMatch
}

// Router maps scored items to target collections and applies dedup
type Router struct {
	dedup     Deduper
	threshold int
}

// New creates a router over a freshly built dedup index. Routing must see
// catalog entries written earlier in the same run, so callers build the
// index rather than loading a cache.
func New(dedup Deduper, threshold int) *Router {
	return &Router{dedup: dedup, threshold: threshold}
}

// RouteItem maps one scored item to its target collection and checks for
// duplicates. Rejected and errored items are marked skip without touching
// the dedup index: the catalog is never queried for items that won't be
// proposed anyway.
func (r *Router) RouteItem(item domain.ScoredItem) domain.RoutingDecision {
	target, ok := routingTable[item.ItemType]
	if !ok {
		target = defaultCollection
	}

	decision := domain.RoutingDecision{
		ScoredItem:       item,
		TargetCollection: target,
		DedupStatus:      domain.DedupNew,
		Action:           domain.ActionPropose,
	}

	if item.Verdict.IsNegative() {
		decision.Action = domain.ActionSkip
		return decision
	}

	matches := r.dedup.Search(item.SuggestedName, item.URL(), r.threshold)
	decision.DedupMatches = matches
	if len(matches) > 0 {
		decision.DedupStatus = domain.DedupDuplicate
		decision.Action = domain.ActionSkip
	}

	return decision
}

// RouteBatch routes a list of scored items and additionally applies
// within-batch URL dedup: a second occurrence of the same URL in one batch
// is a duplicate even though the index, built before the batch, has no
// record of it. Exploded sub-items are exempt since they legitimately share
// their parent's URL.
func (r *Router) RouteBatch(items []domain.ScoredItem) []domain.RoutingDecision {
	decisions := make([]domain.RoutingDecision, 0, len(items))
	seenURLs := map[string]bool{}

	for i := range items {
		decision := r.RouteItem(items[i])

		url := decision.URL()
		if url != "" && seenURLs[url] && decision.Action == domain.ActionPropose && decision.SourceArticle == "" {
			decision.DedupStatus = domain.DedupDuplicate
			decision.Action = domain.ActionSkip
		} else if url != "" {
			seenURLs[url] = true
		}

		lgr.Printf("[DEBUG] routed %s -> %s (%s)", decision.DisplayName(), decision.Action, decision.TargetCollection)
		decisions = append(decisions, decision)
	}

	return decisions
}

// Summary aggregates counts from a list of routing decisions
type Summary struct {
	Total        int
	ByAction     map[domain.Action]int
	ByCollection map[string]int
	ByDedup      map[domain.DedupStatus]int
}

// Summarize computes stats from routing decisions
func Summarize(decisions []domain.RoutingDecision) Summary {
	s := Summary{
		Total:        len(decisions),
		ByAction:     map[domain.Action]int{},
		ByCollection: map[string]int{},
		ByDedup:      map[domain.DedupStatus]int{},
	}
	for i := range decisions {
		d := &decisions[i]
		s.ByAction[d.Action]++
		s.ByCollection[d.TargetCollection]++
		s.ByDedup[d.DedupStatus]++
	}
	return s
}
