package domain

import "time"

// Decision is the user's call on a proposed item
type Decision string

const (
	DecisionAccepted Decision = "accepted"
	DecisionRejected Decision = "rejected"
)

// FeedbackRecord is one user decision on one previously scored item.
// Append-only: records are never mutated or deleted individually.
type FeedbackRecord struct {
	ItemID           int64
	CreatedAt        time.Time
	Verdict          Verdict
	UserDecision     Decision
	ItemType         ItemType
	TargetCollection string
	Score            int
	SuggestedName    string
	URL              string
	Reason           string
}

// OverrideType classifies how a user decision contradicted the scorer
type OverrideType string

const (
	// OverridePromoted: user accepted what the scorer said reject/maybe
	OverridePromoted OverrideType = "promoted"
	// OverrideDemoted: user rejected what the scorer said strong_fit/likely_fit
	OverrideDemoted OverrideType = "demoted"
)

// Override is a feedback record whose user decision contradicts the verdict.
// Derived on the fly, never stored.
type Override struct {
	FeedbackRecord
	Type OverrideType
}

// ClassifyOverride reports whether a feedback record is an override and which kind
func ClassifyOverride(fb FeedbackRecord) (OverrideType, bool) {
	switch {
	case fb.UserDecision == DecisionAccepted && (fb.Verdict == VerdictReject || fb.Verdict == VerdictMaybe):
		return OverridePromoted, true
	case fb.UserDecision == DecisionRejected && (fb.Verdict == VerdictStrongFit || fb.Verdict == VerdictLikelyFit):
		return OverrideDemoted, true
	}
	return "", false
}

// Pattern is a recurring override theme for one (item type, direction) pair
type Pattern struct {
	ItemType     ItemType
	OverrideType OverrideType
	Count        int
	Examples     []string // up to 5 item names as evidence
}

// ProposalType says which profile list a rule proposal wants to change
type ProposalType string

const (
	ProposalAddInterest  ProposalType = "add_interest"
	ProposalAddRejection ProposalType = "add_rejection"
)

// RuleProposal is a suggested interest-profile adjustment derived from a pattern
type RuleProposal struct {
	Proposal      string
	Type          ProposalType
	Detail        ItemType
	EvidenceCount int
	Examples      []string
}
