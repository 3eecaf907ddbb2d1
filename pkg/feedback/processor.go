package feedback

import (
	"context"
	"fmt"
	"strings"

	"github.com/kurtb/curator/pkg/config"
	"github.com/kurtb/curator/pkg/domain"
)

// Store is the run ledger surface the processor reads feedback from
type Store interface {
	GetFeedback(ctx context.Context, limit int) ([]domain.FeedbackRecord, error)
}

// Processor mines historical accept/reject decisions for disagreements
// with the scorer and turns them into prompt examples and rule proposals
type Processor struct {
	store Store
	cfg   config.FeedbackConfig
}

// New creates a feedback processor
func New(store Store, cfg config.FeedbackConfig) *Processor {
	return &Processor{store: store, cfg: cfg}
}

// GetOverrides scans recent feedback and returns records where the user
// disagreed with the scorer, most recent first, capped at limit
func (p *Processor) GetOverrides(ctx context.Context, limit int) ([]domain.Override, error) {
	records, err := p.store.GetFeedback(ctx, p.cfg.ScanLimit)
	if err != nil {
		return nil, fmt.Errorf("get feedback: %w", err)
	}

	var overrides []domain.Override
	for _, fb := range records {
		overrideType, ok := domain.ClassifyOverride(fb)
		if !ok {
			continue
		}
		overrides = append(overrides, domain.Override{FeedbackRecord: fb, Type: overrideType})
		if len(overrides) >= limit {
			break
		}
	}
	return overrides, nil
}

// FormatExamples renders up to maxExamples overrides as few-shot
// corrections for the scorer's system prompt. Returns an empty string when
// there is no feedback yet; the scorer works identically without the block.
func (p *Processor) FormatExamples(ctx context.Context, overrides []domain.Override, maxExamples int) (string, error) {
	if overrides == nil {
		var err error
		overrides, err = p.GetOverrides(ctx, maxExamples)
		if err != nil {
			return "", err
		}
	}
	if len(overrides) > maxExamples {
		overrides = overrides[:maxExamples]
	}
	if len(overrides) == 0 {
		return "", nil
	}

	var sb strings.Builder
	sb.WriteString("\n## Recent Feedback (learn from these corrections)\n\n")
	sb.WriteString("The user reviewed previous suggestions and made these corrections.\n")
	sb.WriteString("Adjust your scoring to align with these preferences:\n\n")

	for i, ov := range overrides {
		name := ov.SuggestedName
		if name == "" {
			name = "Unknown item"
		}

		fmt.Fprintf(&sb, "%d. **%s** (%s)\n", i+1, name, ov.ItemType)
		if ov.URL != "" {
			fmt.Fprintf(&sb, "   URL: %s\n", ov.URL)
		}

		if ov.Type == domain.OverridePromoted {
			fmt.Fprintf(&sb, "   You scored this %s (score: %d), but the user ACCEPTED it. Score similar items higher.\n",
				ov.Verdict, ov.Score)
		} else {
			fmt.Fprintf(&sb, "   You scored this %s (score: %d), but the user REJECTED it. Score similar items lower.\n",
				ov.Verdict, ov.Score)
		}
		sb.WriteString("\n")
	}

	return sb.String(), nil
}

// DetectPatterns groups overrides by (item type, override direction) and
// returns every group at or above minCount, each with up to 5 example
// names as evidence
func (p *Processor) DetectPatterns(ctx context.Context, minCount int) ([]domain.Pattern, error) {
	overrides, err := p.GetOverrides(ctx, p.cfg.ScanLimit)
	if err != nil {
		return nil, err
	}

	type key struct {
		itemType     domain.ItemType
		overrideType domain.OverrideType
	}
	groups := map[key][]domain.Override{}
	var order []key // deterministic output, first-seen order
	for _, ov := range overrides {
		k := key{ov.ItemType, ov.Type}
		if _, seen := groups[k]; !seen {
			order = append(order, k)
		}
		groups[k] = append(groups[k], ov)
	}

	var patterns []domain.Pattern
	for _, k := range order {
		members := groups[k]
		if len(members) < minCount {
			continue
		}
		examples := make([]string, 0, 5)
		for _, ov := range members {
			if len(examples) == 5 {
				break
			}
			name := ov.SuggestedName
			if name == "" {
				name = "Unknown"
			}
			examples = append(examples, name)
		}
		patterns = append(patterns, domain.Pattern{
			ItemType:     k.itemType,
			OverrideType: k.overrideType,
			Count:        len(members),
			Examples:     examples,
		})
	}
	return patterns, nil
}

// GetRuleProposals converts detected patterns into human-readable interest
// profile adjustments. An item type with patterns in both directions is
// suppressed entirely: that signals the category is too broad, not that a
// rule should change.
func (p *Processor) GetRuleProposals(ctx context.Context) ([]domain.RuleProposal, error) {
	patterns, err := p.DetectPatterns(ctx, p.cfg.PatternMinCount)
	if err != nil {
		return nil, err
	}

	promoted := map[domain.ItemType]bool{}
	demoted := map[domain.ItemType]bool{}
	for _, pat := range patterns {
		if pat.OverrideType == domain.OverridePromoted {
			promoted[pat.ItemType] = true
		} else {
			demoted[pat.ItemType] = true
		}
	}

	var proposals []domain.RuleProposal
	for _, pat := range patterns {
		if promoted[pat.ItemType] && demoted[pat.ItemType] {
			continue
		}

		var text string
		var proposalType domain.ProposalType
		if pat.OverrideType == domain.OverridePromoted {
			text = fmt.Sprintf("You frequently accept %s items that the scorer rates low (%d times). "+
				"Consider adding '%s' to the strong interests list.", pat.ItemType, pat.Count, pat.ItemType)
			proposalType = domain.ProposalAddInterest
		} else {
			text = fmt.Sprintf("You frequently reject %s items that the scorer rates high (%d times). "+
				"Consider adding '%s' to the rejection list.", pat.ItemType, pat.Count, pat.ItemType)
			proposalType = domain.ProposalAddRejection
		}

		proposals = append(proposals, domain.RuleProposal{
			Proposal:      text,
			Type:          proposalType,
			Detail:        pat.ItemType,
			EvidenceCount: pat.Count,
			Examples:      pat.Examples,
		})
	}
	return proposals, nil
}

// Stats summarizes the feedback analysis
type Stats struct {
	TotalFeedback    int
	TotalOverrides   int
	PatternsDetected int
	RuleProposals    int
}

// GetStats computes a summary of the feedback state
func (p *Processor) GetStats(ctx context.Context) (Stats, error) {
	records, err := p.store.GetFeedback(ctx, p.cfg.ScanLimit)
	if err != nil {
		return Stats{}, fmt.Errorf("get feedback: %w", err)
	}
	overrides, err := p.GetOverrides(ctx, p.cfg.ScanLimit)
	if err != nil {
		return Stats{}, err
	}
	patterns, err := p.DetectPatterns(ctx, p.cfg.PatternMinCount)
	if err != nil {
		return Stats{}, err
	}
	proposals, err := p.GetRuleProposals(ctx)
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		TotalFeedback:    len(records),
		TotalOverrides:   len(overrides),
		PatternsDetected: len(patterns),
		RuleProposals:    len(proposals),
	}, nil
}
