package dedup

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/go-pkgz/lgr"

	"github.com/kurtb/curator/pkg/catalog"
	"github.com/kurtb/curator/pkg/domain"
)

// Entry is one existing catalog record loaded into the index
type Entry struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	NameLower     string `json:"name_lower"`
	URL           string `json:"url,omitempty"`
	URLNormalized string `json:"url_normalized,omitempty"`
	Collection    string `json:"collection"`
}

// Index is an in-memory catalog of existing entries for duplicate detection.
// Build it fresh before routing; a cached load is only safe for read-only
// lookups where staleness is tolerable.
type Index struct {
	store   catalog.Store
	cache   *Cache
	entries []Entry
	urlMap  map[string][]int // normalized url -> entry indices
}

// NewIndex creates an index over the given catalog store. The cache is
// optional; without it Load always rebuilds.
func NewIndex(store catalog.Store, cache *Cache) *Index {
	return &Index{store: store, cache: cache}
}

// Build performs a full scan of every catalog collection. The title field
// and optional URL field of each collection are discovered from its schema;
// collections without a title field are skipped. Any query failure aborts
// the whole build: a partial index silently permits duplicates.
func (x *Index) Build(ctx context.Context) error {
	x.entries = nil
	x.urlMap = map[string][]int{}

	collections := x.store.Collections()
	lgr.Printf("[INFO] building dedup index from %d collections", len(collections))

	for _, coll := range collections {
		schema, err := x.store.GetSchema(ctx, coll)
		if err != nil {
			return fmt.Errorf("get schema for %s: %w", coll, err)
		}

		titleField, urlField := discoverFields(schema)
		if titleField == "" {
			lgr.Printf("[WARN] collection %s skipped, no title field", coll)
			continue
		}

		records, err := x.store.Query(ctx, coll)
		if err != nil {
			return fmt.Errorf("query collection %s: %w", coll, err)
		}

		count := 0
		for _, rec := range records {
			name := rec.Fields[titleField]
			if name == "" {
				continue
			}
			rawURL := ""
			if urlField != "" {
				rawURL = rec.Fields[urlField]
			}
			x.add(Entry{
				ID:            rec.ID,
				Name:          name,
				NameLower:     strings.ToLower(name),
				URL:           rawURL,
				URLNormalized: NormalizeURL(rawURL),
				Collection:    coll,
			})
			count++
		}
		lgr.Printf("[DEBUG] collection %s: %d entries", coll, count)
	}

	lgr.Printf("[INFO] dedup index built: %d entries", len(x.entries))

	if x.cache != nil {
		if err := x.cache.Save(x.entries); err != nil {
			lgr.Printf("[WARN] failed to save dedup cache: %v", err)
		}
	}
	return nil
}

// Load reads the index from cache when fresh enough, otherwise rebuilds
func (x *Index) Load(ctx context.Context) error {
	if x.cache != nil {
		entries, ok, err := x.cache.Load()
		if err != nil {
			lgr.Printf("[WARN] failed to load dedup cache, rebuilding: %v", err)
		}
		if ok {
			x.entries = entries
			x.rebuildURLMap()
			lgr.Printf("[INFO] dedup index loaded from cache: %d entries", len(entries))
			return nil
		}
	}
	return x.Build(ctx)
}

// Invalidate drops the on-disk cache. Call after writing new entries to the
// catalog so the next Load doesn't miss them.
func (x *Index) Invalidate() {
	if x.cache != nil {
		x.cache.Invalidate()
	}
}

// SearchByName returns fuzzy name matches scoring at or above the
// threshold, best first
func (x *Index) SearchByName(name string, threshold int) []domain.DedupMatch {
	var matches []domain.DedupMatch
	for i := range x.entries {
		e := &x.entries[i]
		score := TokenSortRatio(name, e.NameLower)
		if score >= threshold {
			matches = append(matches, domain.DedupMatch{
				ID:         e.ID,
				Name:       e.Name,
				Collection: e.Collection,
				Score:      score,
			})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	return matches
}

// SearchByURL returns entries whose normalized URL matches exactly
func (x *Index) SearchByURL(rawURL string) []domain.DedupMatch {
	normalized := NormalizeURL(rawURL)
	if normalized == "" {
		return nil
	}
	var matches []domain.DedupMatch
	for _, i := range x.urlMap[normalized] {
		e := &x.entries[i]
		matches = append(matches, domain.DedupMatch{
			ID:         e.ID,
			Name:       e.Name,
			Collection: e.Collection,
			URL:        e.URL,
			Score:      100,
		})
	}
	return matches
}

// Search combines URL and name lookup. URL matches are exact and come
// first; fuzzy name matches are appended, excluding ids the URL already
// matched. This avoids false negatives from cosmetic name changes without
// letting generic names cause false positives.
func (x *Index) Search(name, rawURL string, threshold int) []domain.DedupMatch {
	seen := map[string]bool{}
	var results []domain.DedupMatch

	if rawURL != "" {
		for _, m := range x.SearchByURL(rawURL) {
			if !seen[m.ID] {
				seen[m.ID] = true
				results = append(results, m)
			}
		}
	}

	if name != "" {
		for _, m := range x.SearchByName(name, threshold) {
			if !seen[m.ID] {
				seen[m.ID] = true
				results = append(results, m)
			}
		}
	}

	return results
}

// Exists reports whether any entry matches the name at the threshold
func (x *Index) Exists(name string, threshold int) bool {
	return len(x.SearchByName(name, threshold)) > 0
}

// Stats returns entry counts per collection
func (x *Index) Stats() map[string]int {
	byCollection := map[string]int{}
	for i := range x.entries {
		byCollection[x.entries[i].Collection]++
	}
	return byCollection
}

// Size returns the total number of indexed entries
func (x *Index) Size() int { return len(x.entries) }

func (x *Index) add(e Entry) {
	idx := len(x.entries)
	x.entries = append(x.entries, e)
	if e.URLNormalized != "" {
		x.urlMap[e.URLNormalized] = append(x.urlMap[e.URLNormalized], idx)
	}
}

func (x *Index) rebuildURLMap() {
	x.urlMap = map[string][]int{}
	for i := range x.entries {
		if n := x.entries[i].URLNormalized; n != "" {
			x.urlMap[n] = append(x.urlMap[n], i)
		}
	}
}

// discoverFields finds the title field and the first URL-typed field
func discoverFields(schema map[string]catalog.FieldType) (titleField, urlField string) {
	// map iteration order is random; pick deterministically
	names := make([]string, 0, len(schema))
	for name := range schema {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		switch schema[name] {
		case catalog.FieldTitle:
			if titleField == "" {
				titleField = name
			}
		case catalog.FieldURL:
			if urlField == "" {
				urlField = name
			}
		}
	}
	return titleField, urlField
}
