package catalog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-pkgz/lgr"

	"github.com/kurtb/curator/pkg/domain"
	"github.com/kurtb/curator/pkg/ledger"
)

// relationThreshold is the fuzzy score for linking related entries; higher
// than the dedup threshold because relation links tolerate fewer false hits
const relationThreshold = 85

// builder assembles the field payload for one collection kind
type builder func(item *ledger.Item) Fields

// propertyMap holds per-collection field builders. Field names match the
// actual catalog schemas.
var propertyMap = map[string]builder{
	"Python Libraries":              buildPythonLibraries,
	"DuckDB Extensions":             buildDuckDBExtensions,
	"TAAFT":                         buildTAAFT,
	"Overview":                      buildOverview,
	"Model information":             buildModelInformation,
	"Platforms & Infrastructure":    buildPlatformsInfrastructure,
	"Topics & Concepts":             buildTopicsConcepts,
	"Articles & Reads":              buildArticlesReads,
	"Books & Papers":                buildBooksPapers,
	"AI Agents & Coding Tools":      buildAIAgentsCodingTools,
	"Vibe Coding Tools":             buildVibeCodingTools,
	"AI Architecture Topics":        buildAIArchitectureTopics,
	"Infrastructure Knowledge Base": buildInfraKnowledgeBase,
}

// relation is one relation property pointing into another collection
type relation struct {
	property string
	target   string
}

// relationMap lists relation links to populate per collection
var relationMap = map[string][]relation{
	"Articles & Reads":  {{property: "Related Concepts", target: "Topics & Concepts"}},
	"Books & Papers":    {{property: "Related Topics", target: "Topics & Concepts"}},
	"Topics & Concepts": {{property: "Related Books & Papers", target: "Books & Papers"}},
}

// learningPriority derives a priority label from the score
func learningPriority(score int) string {
	switch {
	case score >= 5:
		return "High"
	case score >= 3:
		return "Medium"
	default:
		return "Low"
	}
}

// addIf sets a field only when the value is non-empty
func addIf(fields Fields, key string, v Value) {
	if v.Text == "" && len(v.List) == 0 {
		return
	}
	fields[key] = v
}

func buildPythonLibraries(item *ledger.Item) Fields {
	fields := Fields{"Name": Title(item.SuggestedName)}
	addIf(fields, "Category", RichText(item.SuggestedCategory))
	addIf(fields, "Short Description", RichText(item.Description))
	addIf(fields, "Primary Use", RichText(item.Reasoning))
	addIf(fields, "Pillar", RichText(item.Pillar))
	addIf(fields, "Overlaps / Alternatives", RichText(item.Overlap))
	addIf(fields, "Relevance", RichText(item.Relevance))
	addIf(fields, "Reason", RichText(item.Reasoning))
	addIf(fields, "Learning Priority", Select(learningPriority(item.Score)))
	addIf(fields, "Usefulness (High/Medium/Low)", RichText(item.Usefulness))
	addIf(fields, "Usefulness Notes", RichText(item.UsefulnessNotes))
	return fields
}

func buildDuckDBExtensions(item *ledger.Item) Fields {
	fields := Fields{"Extension Name": Title(item.SuggestedName)}
	addIf(fields, "Category", Select(item.SuggestedCategory))
	addIf(fields, "Description", RichText(item.Description))
	return fields
}

func buildTAAFT(item *ledger.Item) Fields {
	fields := Fields{"Name": Title(item.SuggestedName)}
	addIf(fields, "Category", RichText(item.SuggestedCategory))
	addIf(fields, "Type", RichText(item.ItemType))
	addIf(fields, "Description", RichText(item.Description))
	addIf(fields, "Source URL", URL(item.URL))
	return fields
}

func buildOverview(item *ledger.Item) Fields {
	fields := Fields{"Name": Title(item.SuggestedName)}
	addIf(fields, "Type", RichText(item.ItemType))
	addIf(fields, "Category", RichText(item.SuggestedCategory))
	addIf(fields, "Core Idea", RichText(item.Description))
	addIf(fields, "Description", RichText(item.Reasoning))
	addIf(fields, "Source URL", URL(item.URL))
	fields["Date Added"] = Date(time.Now().Format("2006-01-02"))
	return fields
}

func buildModelInformation(item *ledger.Item) Fields {
	fields := Fields{"Name": Title(item.SuggestedName)}
	addIf(fields, "Category", RichText(item.SuggestedCategory))
	addIf(fields, "Type", RichText(item.ItemType))
	addIf(fields, "Description", RichText(item.Description))
	addIf(fields, "Why It Matters", RichText(item.Reasoning))
	addIf(fields, "Source URL", URL(item.URL))
	addIf(fields, "Tags", RichText(strings.Join(item.Tags, ", ")))
	return fields
}

func buildPlatformsInfrastructure(item *ledger.Item) Fields {
	fields := Fields{"Platform Name": Title(item.SuggestedName)}
	addIf(fields, "Category", Select(item.SuggestedCategory))
	addIf(fields, "Description", RichText(item.Description))
	addIf(fields, "Website", URL(item.URL))
	return fields
}

func buildTopicsConcepts(item *ledger.Item) Fields {
	fields := Fields{"Name": Title(item.SuggestedName)}
	addIf(fields, "Type", Select(item.ItemType))
	if item.SuggestedCategory != "" {
		fields["Category"] = MultiSelect([]string{item.SuggestedCategory})
	}
	addIf(fields, "Description", RichText(item.Description))
	addIf(fields, "Tags", MultiSelect(item.Tags))
	addIf(fields, "Summary", RichText(item.Reasoning))
	return fields
}

func buildArticlesReads(item *ledger.Item) Fields {
	fields := Fields{"Name": Title(item.SuggestedName)}
	addIf(fields, "URL", URL(item.URL))
	addIf(fields, "Tags", MultiSelect(item.Tags))
	addIf(fields, "Source", Select(item.EmailSender))
	addIf(fields, "Short Summary", RichText(item.Description))
	addIf(fields, "Why it matters", RichText(item.Reasoning))
	fields["Date found"] = Date(time.Now().Format("2006-01-02"))
	return fields
}

func buildBooksPapers(item *ledger.Item) Fields {
	fields := Fields{"Name": Title(item.SuggestedName)}
	addIf(fields, "Type", Select(item.ItemType))
	addIf(fields, "Author", RichText(item.Author))
	addIf(fields, "URL", URL(item.URL))
	addIf(fields, "Tags", MultiSelect(item.Tags))
	return fields
}

func buildAIAgentsCodingTools(item *ledger.Item) Fields {
	fields := Fields{"Name": Title(item.SuggestedName)}
	addIf(fields, "Category", RichText(item.SuggestedCategory))
	addIf(fields, "Short Description", RichText(item.Description))
	addIf(fields, "Primary Use", RichText(item.Reasoning))
	return fields
}

func buildVibeCodingTools(item *ledger.Item) Fields {
	fields := Fields{"Name": Title(item.SuggestedName)}
	addIf(fields, "Category", Select(item.SuggestedCategory))
	addIf(fields, "Short Description", RichText(item.Description))
	addIf(fields, "Primary Use", RichText(item.Reasoning))
	return fields
}

func buildAIArchitectureTopics(item *ledger.Item) Fields {
	fields := Fields{"Name": Title(item.SuggestedName)}
	addIf(fields, "Type", Select(item.ItemType))
	addIf(fields, "Summary", RichText(item.Description))
	addIf(fields, "Main Link", URL(item.URL))
	return fields
}

func buildInfraKnowledgeBase(item *ledger.Item) Fields {
	fields := Fields{"Title": Title(item.SuggestedName)}
	addIf(fields, "Category", Select(item.SuggestedCategory))
	addIf(fields, "Description", RichText(item.Description))
	addIf(fields, "Tags", MultiSelect(item.Tags))
	return fields
}

// Ledger is the run-ledger surface the writer needs
type Ledger interface {
	GetAcceptedItems(ctx context.Context, runID int64) ([]ledger.Item, error)
	SetCatalogPageID(ctx context.Context, itemID int64, pageID string) error
}

// NameSearcher looks up catalog entries by fuzzy name match, used to
// populate relation links
type NameSearcher interface {
	SearchByName(name string, threshold int) []domain.DedupMatch
}

// Writer creates or updates catalog entries for accepted digest items and
// records the resulting page IDs back in the ledger
type Writer struct {
	store  Store
	ledger Ledger
	dedup  NameSearcher // nil disables relation linking
}

// NewWriter creates a writer. The dedup searcher may be nil, which disables
// relation linking.
func NewWriter(store Store, ldg Ledger, dedup NameSearcher) *Writer {
	return &Writer{store: store, ledger: ldg, dedup: dedup}
}

// WriteItem creates or updates one catalog entry for an accepted item and
// returns the page ID. Update-candidate items with a matched page are
// updated in place, everything else creates a fresh entry.
func (w *Writer) WriteItem(ctx context.Context, item *ledger.Item) (string, error) {
	build, ok := propertyMap[item.TargetCollection]
	if !ok {
		return "", fmt.Errorf("no property map for collection %q", item.TargetCollection)
	}
	fields := build(item)

	// exploded sub-items note where they were found
	addIf(fields, "Source Article", RichText(item.SourceArticle))

	var pageID string
	var err error
	if existingID := updateTarget(item); existingID != "" {
		if err = w.store.Update(ctx, existingID, fields); err != nil {
			return "", fmt.Errorf("update entry %s: %w", existingID, err)
		}
		pageID = existingID
	} else {
		pageID, err = w.store.Create(ctx, item.TargetCollection, fields)
		if err != nil {
			return "", fmt.Errorf("create entry in %q: %w", item.TargetCollection, err)
		}
	}

	if err := w.ledger.SetCatalogPageID(ctx, item.ID, pageID); err != nil {
		return "", err
	}

	w.linkRelations(ctx, pageID, item)
	return pageID, nil
}

// updateTarget returns the page ID to update in place, empty for creates
func updateTarget(item *ledger.Item) string {
	if item.DedupStatus != string(domain.DedupUpdateCandidate) {
		return ""
	}
	for _, match := range item.DedupMatches {
		if match.ID != "" {
			return match.ID
		}
	}
	return ""
}

// linkRelations searches the dedup index for entries related by tag or
// category and links them via relation properties. Link failures are logged
// and ignored, the entry itself is already written.
func (w *Writer) linkRelations(ctx context.Context, pageID string, item *ledger.Item) {
	if w.dedup == nil {
		return
	}
	relations, ok := relationMap[item.TargetCollection]
	if !ok {
		return
	}

	terms := append([]string{}, item.Tags...)
	if item.SuggestedCategory != "" {
		terms = append(terms, item.SuggestedCategory)
	}
	if len(terms) == 0 {
		return
	}

	for _, rel := range relations {
		var targetIDs []string
		seen := map[string]bool{}

		for _, term := range terms {
			for _, match := range w.dedup.SearchByName(term, relationThreshold) {
				if match.Collection != rel.target || seen[match.ID] {
					continue
				}
				seen[match.ID] = true
				targetIDs = append(targetIDs, match.ID)
			}
		}

		if len(targetIDs) == 0 {
			continue
		}
		if err := w.store.LinkRelation(ctx, pageID, rel.property, targetIDs); err != nil {
			lgr.Printf("[WARN] relation link failed (%s): %v", rel.property, err)
			continue
		}
		lgr.Printf("[INFO] linked %d %s entries via %q", len(targetIDs), rel.target, rel.property)
	}
}

// BatchResult summarizes one write-back pass
type BatchResult struct {
	Created int
	Updated int
	Failed  int
	Errors  []string
}

// WriteBatch writes all accepted items for a run to the catalog. Individual
// failures are collected, not fatal.
func (w *Writer) WriteBatch(ctx context.Context, runID int64) (BatchResult, error) {
	items, err := w.ledger.GetAcceptedItems(ctx, runID)
	if err != nil {
		return BatchResult{}, fmt.Errorf("get accepted items: %w", err)
	}

	var res BatchResult
	for i := range items {
		item := &items[i]
		lgr.Printf("[INFO] writing [%d/%d]: %s", i+1, len(items), item.SuggestedName)

		if _, err := w.WriteItem(ctx, item); err != nil {
			res.Failed++
			res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", item.SuggestedName, err))
			lgr.Printf("[WARN] write failed for %q: %v", item.SuggestedName, err)
			continue
		}

		if updateTarget(item) != "" {
			res.Updated++
		} else {
			res.Created++
		}
	}
	return res, nil
}
