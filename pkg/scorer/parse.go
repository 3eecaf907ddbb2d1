package scorer

import (
	"github.com/kurtb/curator/pkg/domain"
	"github.com/kurtb/curator/pkg/llm"
)

// parseScored turns raw model output into a ScoredItem. The verdict is
// always recomputed from the score here, never taken from the payload:
// this is the single construction point that keeps score and verdict
// consistent no matter what the model asserted.
func parseScored(raw string, candidate domain.CandidateItem) (domain.ScoredItem, error) {
	obj, err := llm.ParseObject(raw)
	if err != nil {
		return domain.ScoredItem{}, err
	}

	score := llm.AsInt(obj["score"])

	item := domain.ScoredItem{
		Candidate:         candidate,
		Score:             score,
		Verdict:           domain.VerdictFromScore(score),
		ItemType:          domain.NormalizeItemType(llm.AsString(obj["item_type"])),
		Description:       llm.AsString(obj["description"]),
		Reasoning:         llm.AsString(obj["reasoning"]),
		Signals:           llm.AsStringList(obj["signals"]),
		SuggestedName:     llm.AsString(obj["suggested_name"]),
		SuggestedCategory: llm.AsString(obj["suggested_category"]),
		Tags:              llm.AsStringList(obj["tags"]),
		IsListicle:        llm.AsBool(obj["is_listicle"]),
		ListicleItemType:  listicleType(llm.AsString(obj["listicle_item_type"])),
		Pillar:            llm.AsString(obj["pillar"]),
		Overlap:           llm.AsString(obj["overlap"]),
		Relevance:         llm.AsString(obj["relevance"]),
		Usefulness:        llm.AsString(obj["usefulness"]),
		UsefulnessNotes:   llm.AsString(obj["usefulness_notes"]),
	}

	// never leave a failed item unnamed; downstream stages show this label
	if item.SuggestedName == "" {
		item.SuggestedName = item.DisplayName()
	}

	return item, nil
}

// listicleType keeps only valid item types; mixed or unknown member types
// stay empty, which makes the listicle non-explodable
func listicleType(s string) domain.ItemType {
	if s == "" {
		return ""
	}
	if t := domain.NormalizeItemType(s); string(t) == s {
		return t
	}
	return ""
}
