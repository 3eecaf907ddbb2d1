package domain

// Verdict is the coarse relevance bucket, always derived from the score
type Verdict string

const (
	VerdictStrongFit Verdict = "strong_fit"
	VerdictLikelyFit Verdict = "likely_fit"
	VerdictMaybe     Verdict = "maybe"
	VerdictReject    Verdict = "reject"
	VerdictError     Verdict = "error"
)

// VerdictFromScore derives the verdict from a summed signal score.
// This is the only way a non-error verdict is ever produced; a verdict
// asserted by the model is never trusted.
func VerdictFromScore(score int) Verdict {
	switch {
	case score >= 5:
		return VerdictStrongFit
	case score >= 3:
		return VerdictLikelyFit
	case score >= 1:
		return VerdictMaybe
	default:
		return VerdictReject
	}
}

// IsNegative reports whether the verdict excludes an item from proposing
func (v Verdict) IsNegative() bool {
	return v == VerdictReject || v == VerdictError
}

// ItemType categorizes a scored item
type ItemType string

const (
	TypePythonLibrary   ItemType = "python_library"
	TypeDuckDBExtension ItemType = "duckdb_extension"
	TypeAITool          ItemType = "ai_tool"
	TypeAgentWorkflow   ItemType = "agent_workflow"
	TypeModelRelease    ItemType = "model_release"
	TypePlatformInfra   ItemType = "platform_infra"
	TypeConceptPattern  ItemType = "concept_pattern"
	TypeArticle         ItemType = "article"
	TypeBookPaper       ItemType = "book_paper"
	TypeCodingTool      ItemType = "coding_tool"
	TypeVibeCodingTool  ItemType = "vibe_coding_tool"
	TypeAIArchitecture  ItemType = "ai_architecture"
	TypeInfraReference  ItemType = "infra_reference"
)

var validItemTypes = map[ItemType]bool{
	TypePythonLibrary:   true,
	TypeDuckDBExtension: true,
	TypeAITool:          true,
	TypeAgentWorkflow:   true,
	TypeModelRelease:    true,
	TypePlatformInfra:   true,
	TypeConceptPattern:  true,
	TypeArticle:         true,
	TypeBookPaper:       true,
	TypeCodingTool:      true,
	TypeVibeCodingTool:  true,
	TypeAIArchitecture:  true,
	TypeInfraReference:  true,
}

// NormalizeItemType collapses anything outside the fixed enum to article
func NormalizeItemType(s string) ItemType {
	t := ItemType(s)
	if validItemTypes[t] {
		return t
	}
	return TypeArticle
}

// ScoredItem is a candidate item plus the model judgment
type ScoredItem struct {
	Candidate CandidateItem

	Score             int
	Verdict           Verdict
	ItemType          ItemType
	Description       string
	Reasoning         string
	Signals           []string
	SuggestedName     string
	SuggestedCategory string
	Tags              []string

	IsListicle       bool
	ListicleItemType ItemType // empty when not a listicle or mixed types

	// set on sub-items produced by listicle explosion, parent's name
	SourceArticle string

	// python_library extras, empty for other types
	Pillar          string
	Overlap         string
	Relevance       string
	Usefulness      string
	UsefulnessNotes string
}

// URL returns the best available URL for the scored item
func (s *ScoredItem) URL() string { return s.Candidate.URL() }

// DisplayName returns the best available label: suggested name, then title,
// then link text, then URL. Never empty for items that had any of those.
func (s *ScoredItem) DisplayName() string {
	if s.SuggestedName != "" {
		return s.SuggestedName
	}
	return fallbackName(&s.Candidate)
}

func fallbackName(c *CandidateItem) string {
	if c.Title != "" {
		return c.Title
	}
	if c.LinkText != "" {
		return c.LinkText
	}
	return c.URL()
}

// NewErrorResult builds the scored item for a candidate that failed scoring.
// The suggested name falls back to title/link-text/URL so downstream stages
// can still show a usable label.
func NewErrorResult(candidate CandidateItem, reason string) ScoredItem {
	return ScoredItem{
		Candidate:     candidate,
		Score:         0,
		Verdict:       VerdictError,
		ItemType:      TypeArticle,
		Reasoning:     reason,
		SuggestedName: fallbackName(&candidate),
	}
}
