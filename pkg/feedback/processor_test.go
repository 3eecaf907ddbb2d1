package feedback

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kurtb/curator/pkg/config"
	"github.com/kurtb/curator/pkg/domain"
)

// mockSource serves canned feedback records
type mockSource struct {
	records []domain.FeedbackRecord
	err     error
}

func (m *mockSource) GetFeedback(_ context.Context, limit int) ([]domain.FeedbackRecord, error) {
	if m.err != nil {
		return nil, m.err
	}
	if len(m.records) > limit {
		return m.records[:limit], nil
	}
	return m.records, nil
}

func testConfig() config.FeedbackConfig {
	return config.FeedbackConfig{ScanLimit: 200, PatternMinCount: 4}
}

func record(name string, verdict domain.Verdict, decision domain.Decision, itemType domain.ItemType) domain.FeedbackRecord {
	return domain.FeedbackRecord{
		ItemID:        1,
		CreatedAt:     time.Now(),
		Verdict:       verdict,
		UserDecision:  decision,
		ItemType:      itemType,
		Score:         2,
		SuggestedName: name,
		URL:           "https://example.com/" + name,
	}
}

func TestProcessor_GetOverrides(t *testing.T) {
	source := &mockSource{records: []domain.FeedbackRecord{
		record("promoted-1", domain.VerdictReject, domain.DecisionAccepted, domain.TypeAITool),
		record("agreed", domain.VerdictStrongFit, domain.DecisionAccepted, domain.TypeArticle),
		record("demoted-1", domain.VerdictStrongFit, domain.DecisionRejected, domain.TypeArticle),
		record("agreed-2", domain.VerdictReject, domain.DecisionRejected, domain.TypeArticle),
	}}

	p := New(source, testConfig())
	overrides, err := p.GetOverrides(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, overrides, 2)
	assert.Equal(t, "promoted-1", overrides[0].SuggestedName)
	assert.Equal(t, domain.OverridePromoted, overrides[0].Type)
	assert.Equal(t, "demoted-1", overrides[1].SuggestedName)
	assert.Equal(t, domain.OverrideDemoted, overrides[1].Type)
}

func TestProcessor_GetOverridesLimit(t *testing.T) {
	var records []domain.FeedbackRecord
	for i := 0; i < 20; i++ {
		records = append(records, record(fmt.Sprintf("o-%d", i), domain.VerdictReject, domain.DecisionAccepted, domain.TypeAITool))
	}
	p := New(&mockSource{records: records}, testConfig())

	overrides, err := p.GetOverrides(context.Background(), 5)
	require.NoError(t, err)
	assert.Len(t, overrides, 5)
	assert.Equal(t, "o-0", overrides[0].SuggestedName, "most recent first")
}

func TestProcessor_FormatExamples(t *testing.T) {
	source := &mockSource{records: []domain.FeedbackRecord{
		record("CoolTool", domain.VerdictReject, domain.DecisionAccepted, domain.TypeAITool),
		record("HypePost", domain.VerdictStrongFit, domain.DecisionRejected, domain.TypeArticle),
	}}
	p := New(source, testConfig())

	text, err := p.FormatExamples(context.Background(), nil, 10)
	require.NoError(t, err)
	assert.Contains(t, text, "## Recent Feedback (learn from these corrections)")
	assert.Contains(t, text, "**CoolTool** (ai_tool)")
	assert.Contains(t, text, "ACCEPTED it. Score similar items higher.")
	assert.Contains(t, text, "**HypePost** (article)")
	assert.Contains(t, text, "REJECTED it. Score similar items lower.")
}

func TestProcessor_FormatExamplesEmpty(t *testing.T) {
	p := New(&mockSource{}, testConfig())
	text, err := p.FormatExamples(context.Background(), nil, 10)
	require.NoError(t, err)
	assert.Empty(t, text, "no feedback yields an empty block, not a header with no items")
}

func TestProcessor_DetectPatterns(t *testing.T) {
	var records []domain.FeedbackRecord
	// 5 promoted ai_tool overrides: a pattern at min count 4
	for i := 0; i < 5; i++ {
		records = append(records, record(fmt.Sprintf("tool-%d", i), domain.VerdictReject, domain.DecisionAccepted, domain.TypeAITool))
	}
	// 3 demoted articles: below min count, no pattern
	for i := 0; i < 3; i++ {
		records = append(records, record(fmt.Sprintf("art-%d", i), domain.VerdictStrongFit, domain.DecisionRejected, domain.TypeArticle))
	}

	p := New(&mockSource{records: records}, testConfig())
	patterns, err := p.DetectPatterns(context.Background(), 4)
	require.NoError(t, err)
	require.Len(t, patterns, 1)

	assert.Equal(t, domain.TypeAITool, patterns[0].ItemType)
	assert.Equal(t, domain.OverridePromoted, patterns[0].OverrideType)
	assert.Equal(t, 5, patterns[0].Count)
	assert.Len(t, patterns[0].Examples, 5, "at most 5 example names")
}

func TestProcessor_GetRuleProposals(t *testing.T) {
	var records []domain.FeedbackRecord
	for i := 0; i < 4; i++ {
		records = append(records, record(fmt.Sprintf("tool-%d", i), domain.VerdictReject, domain.DecisionAccepted, domain.TypeAITool))
	}
	for i := 0; i < 4; i++ {
		records = append(records, record(fmt.Sprintf("art-%d", i), domain.VerdictStrongFit, domain.DecisionRejected, domain.TypeArticle))
	}

	p := New(&mockSource{records: records}, testConfig())
	proposals, err := p.GetRuleProposals(context.Background())
	require.NoError(t, err)
	require.Len(t, proposals, 2)

	assert.Equal(t, domain.ProposalAddInterest, proposals[0].Type)
	assert.Equal(t, domain.TypeAITool, proposals[0].Detail)
	assert.Contains(t, proposals[0].Proposal, "frequently accept")
	assert.Equal(t, 4, proposals[0].EvidenceCount)

	assert.Equal(t, domain.ProposalAddRejection, proposals[1].Type)
	assert.Contains(t, proposals[1].Proposal, "frequently reject")
}

func TestProcessor_ContradictionSuppression(t *testing.T) {
	var records []domain.FeedbackRecord
	// the same item type is promoted 5 times and demoted 5 times: the
	// category is too broad, no proposal may be emitted either way
	for i := 0; i < 5; i++ {
		records = append(records, record(fmt.Sprintf("up-%d", i), domain.VerdictReject, domain.DecisionAccepted, domain.TypeAITool))
		records = append(records, record(fmt.Sprintf("down-%d", i), domain.VerdictStrongFit, domain.DecisionRejected, domain.TypeAITool))
	}

	p := New(&mockSource{records: records}, testConfig())

	patterns, err := p.DetectPatterns(context.Background(), 4)
	require.NoError(t, err)
	assert.Len(t, patterns, 2, "both directions are detected as patterns")

	proposals, err := p.GetRuleProposals(context.Background())
	require.NoError(t, err)
	assert.Empty(t, proposals, "contradictory patterns suppress each other entirely")
}

func TestProcessor_GetStats(t *testing.T) {
	var records []domain.FeedbackRecord
	for i := 0; i < 4; i++ {
		records = append(records, record(fmt.Sprintf("tool-%d", i), domain.VerdictReject, domain.DecisionAccepted, domain.TypeAITool))
	}
	records = append(records, record("agreed", domain.VerdictStrongFit, domain.DecisionAccepted, domain.TypeArticle))

	p := New(&mockSource{records: records}, testConfig())
	stats, err := p.GetStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, stats.TotalFeedback)
	assert.Equal(t, 4, stats.TotalOverrides)
	assert.Equal(t, 1, stats.PatternsDetected)
	assert.Equal(t, 1, stats.RuleProposals)
}

func TestProcessor_SourceError(t *testing.T) {
	p := New(&mockSource{err: errors.New("db locked")}, testConfig())

	_, err := p.GetOverrides(context.Background(), 10)
	require.Error(t, err)

	_, err = p.FormatExamples(context.Background(), nil, 10)
	require.Error(t, err)
}
