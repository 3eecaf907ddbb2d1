package domain

// DedupStatus describes what the dedup check found for an item
type DedupStatus string

const (
	DedupNew             DedupStatus = "new"
	DedupDuplicate       DedupStatus = "duplicate"
	DedupUpdateCandidate DedupStatus = "update_candidate"
)

// Action is what the pipeline should do with a routed item
type Action string

const (
	ActionPropose Action = "propose"
	ActionSkip    Action = "skip"
)

// DedupMatch is one ranked match from the dedup index
type DedupMatch struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Collection string `json:"collection"`
	URL        string `json:"url,omitempty"`
	Score      int    `json:"score"` // 100 for exact URL matches
}

// RoutingDecision is a scored item plus its routing outcome.
// Invariants: a reject/error verdict forces skip regardless of dedup status,
// and a duplicate dedup status forces skip.
type RoutingDecision struct {
	ScoredItem

	TargetCollection string
	DedupStatus      DedupStatus
	DedupMatches     []DedupMatch
	Action           Action
}
