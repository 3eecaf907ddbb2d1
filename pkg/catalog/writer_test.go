package catalog

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kurtb/curator/pkg/domain"
	"github.com/kurtb/curator/pkg/ledger"
)

// mockWriteStore is a func-field test double for the Store write surface
type mockWriteStore struct {
	createFunc func(ctx context.Context, collection string, fields Fields) (string, error)
	updateFunc func(ctx context.Context, id string, fields Fields) error
	linkFunc   func(ctx context.Context, id, property string, targetIDs []string) error

	created []Fields
	updated []string
	linked  map[string][]string
}

func (m *mockWriteStore) Collections() []string { return nil }
func (m *mockWriteStore) GetSchema(context.Context, string) (map[string]FieldType, error) {
	return nil, nil
}
func (m *mockWriteStore) Query(context.Context, string) ([]Record, error) { return nil, nil }

func (m *mockWriteStore) Create(ctx context.Context, collection string, fields Fields) (string, error) {
	m.created = append(m.created, fields)
	if m.createFunc != nil {
		return m.createFunc(ctx, collection, fields)
	}
	return fmt.Sprintf("page-%d", len(m.created)), nil
}

func (m *mockWriteStore) Update(ctx context.Context, id string, fields Fields) error {
	m.updated = append(m.updated, id)
	if m.updateFunc != nil {
		return m.updateFunc(ctx, id, fields)
	}
	return nil
}

func (m *mockWriteStore) LinkRelation(ctx context.Context, id, property string, targetIDs []string) error {
	if m.linked == nil {
		m.linked = map[string][]string{}
	}
	m.linked[property] = targetIDs
	if m.linkFunc != nil {
		return m.linkFunc(ctx, id, property, targetIDs)
	}
	return nil
}

// mockLedger serves accepted items and records written page IDs
type mockLedger struct {
	items   []ledger.Item
	err     error
	pageIDs map[int64]string
}

func (m *mockLedger) GetAcceptedItems(context.Context, int64) ([]ledger.Item, error) {
	return m.items, m.err
}

func (m *mockLedger) SetCatalogPageID(_ context.Context, itemID int64, pageID string) error {
	if m.pageIDs == nil {
		m.pageIDs = map[int64]string{}
	}
	m.pageIDs[itemID] = pageID
	return nil
}

// mockSearcher returns canned name matches
type mockSearcher struct {
	known map[string][]domain.DedupMatch
}

func (m *mockSearcher) SearchByName(name string, _ int) []domain.DedupMatch {
	return m.known[name]
}

func acceptedItem(id int64, name, collection string) ledger.Item {
	return ledger.Item{
		ID:               id,
		SuggestedName:    name,
		TargetCollection: collection,
		URL:              "https://example.com/" + name,
		Description:      "desc for " + name,
		Reasoning:        "matters because",
		Score:            5,
		ItemType:         "python_library",
		DedupStatus:      string(domain.DedupNew),
	}
}

func TestWriter_WriteItem_Create(t *testing.T) {
	store := &mockWriteStore{}
	ldg := &mockLedger{}
	w := NewWriter(store, ldg, nil)

	item := acceptedItem(7, "Marimo", "Python Libraries")
	pageID, err := w.WriteItem(context.Background(), &item)
	require.NoError(t, err)
	assert.Equal(t, "page-1", pageID)

	require.Len(t, store.created, 1)
	fields := store.created[0]
	assert.Equal(t, Title("Marimo"), fields["Name"])
	assert.Equal(t, Select("High"), fields["Learning Priority"])
	assert.NotContains(t, fields, "Pillar", "empty values are omitted")

	assert.Equal(t, "page-1", ldg.pageIDs[7], "page id recorded back in the ledger")
}

func TestWriter_WriteItem_SourceArticleNote(t *testing.T) {
	store := &mockWriteStore{}
	w := NewWriter(store, &mockLedger{}, nil)

	item := acceptedItem(1, "Marimo", "Python Libraries")
	item.SourceArticle = "7 Python libraries you should know"

	_, err := w.WriteItem(context.Background(), &item)
	require.NoError(t, err)

	require.Len(t, store.created, 1)
	assert.Equal(t, RichText("7 Python libraries you should know"), store.created[0]["Source Article"])
}

func TestWriter_WriteItem_UpdateCandidate(t *testing.T) {
	store := &mockWriteStore{}
	ldg := &mockLedger{}
	w := NewWriter(store, ldg, nil)

	item := acceptedItem(3, "Marimo", "Python Libraries")
	item.DedupStatus = string(domain.DedupUpdateCandidate)
	item.DedupMatches = []domain.DedupMatch{{ID: "existing-1", Name: "Marimo Notebooks", Score: 93}}

	pageID, err := w.WriteItem(context.Background(), &item)
	require.NoError(t, err)
	assert.Equal(t, "existing-1", pageID, "update candidates reuse the matched page")
	assert.Equal(t, []string{"existing-1"}, store.updated)
	assert.Empty(t, store.created)
}

func TestWriter_WriteItem_UpdateCandidateWithoutMatchCreates(t *testing.T) {
	store := &mockWriteStore{}
	w := NewWriter(store, &mockLedger{}, nil)

	item := acceptedItem(3, "Marimo", "Python Libraries")
	item.DedupStatus = string(domain.DedupUpdateCandidate) // no matches recorded

	pageID, err := w.WriteItem(context.Background(), &item)
	require.NoError(t, err)
	assert.Equal(t, "page-1", pageID)
	assert.Empty(t, store.updated)
}

func TestWriter_WriteItem_UnknownCollection(t *testing.T) {
	w := NewWriter(&mockWriteStore{}, &mockLedger{}, nil)

	item := acceptedItem(1, "Thing", "Nonexistent Collection")
	_, err := w.WriteItem(context.Background(), &item)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no property map")
}

func TestWriter_LinkRelations(t *testing.T) {
	store := &mockWriteStore{}
	searcher := &mockSearcher{known: map[string][]domain.DedupMatch{
		"rag": {
			{ID: "c1", Name: "RAG", Collection: "Topics & Concepts", Score: 100},
			{ID: "b1", Name: "RAG Handbook", Collection: "Books & Papers", Score: 90},
		},
		"agents": {
			{ID: "c2", Name: "Agents", Collection: "Topics & Concepts", Score: 100},
		},
	}}
	w := NewWriter(store, &mockLedger{}, searcher)

	item := acceptedItem(1, "Long read on RAG", "Articles & Reads")
	item.Tags = []string{"rag", "agents"}

	_, err := w.WriteItem(context.Background(), &item)
	require.NoError(t, err)

	linked := store.linked["Related Concepts"]
	assert.ElementsMatch(t, []string{"c1", "c2"}, linked, "only matches from the relation's target collection link")
}

func TestWriter_LinkRelations_FailureNotFatal(t *testing.T) {
	store := &mockWriteStore{
		linkFunc: func(context.Context, string, string, []string) error {
			return errors.New("relation write refused")
		},
	}
	searcher := &mockSearcher{known: map[string][]domain.DedupMatch{
		"rag": {{ID: "c1", Collection: "Topics & Concepts", Score: 100}},
	}}
	w := NewWriter(store, &mockLedger{}, searcher)

	item := acceptedItem(1, "Long read on RAG", "Articles & Reads")
	item.Tags = []string{"rag"}

	_, err := w.WriteItem(context.Background(), &item)
	assert.NoError(t, err, "the entry itself is already written")
}

func TestWriter_LinkRelations_SkippedWithoutSearcher(t *testing.T) {
	store := &mockWriteStore{}
	w := NewWriter(store, &mockLedger{}, nil)

	item := acceptedItem(1, "Long read on RAG", "Articles & Reads")
	item.Tags = []string{"rag"}

	_, err := w.WriteItem(context.Background(), &item)
	require.NoError(t, err)
	assert.Empty(t, store.linked)
}

func TestWriter_WriteBatch(t *testing.T) {
	items := []ledger.Item{
		acceptedItem(1, "Marimo", "Python Libraries"),
		acceptedItem(2, "Broken", "Nonexistent Collection"),
		acceptedItem(3, "Existing", "Python Libraries"),
	}
	items[2].DedupStatus = string(domain.DedupUpdateCandidate)
	items[2].DedupMatches = []domain.DedupMatch{{ID: "old-1", Score: 95}}

	store := &mockWriteStore{}
	ldg := &mockLedger{items: items}
	w := NewWriter(store, ldg, nil)

	res, err := w.WriteBatch(context.Background(), 1)
	require.NoError(t, err)

	assert.Equal(t, 1, res.Created)
	assert.Equal(t, 1, res.Updated)
	assert.Equal(t, 1, res.Failed)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "Broken")
}

func TestWriter_WriteBatch_LedgerError(t *testing.T) {
	w := NewWriter(&mockWriteStore{}, &mockLedger{err: errors.New("db locked")}, nil)
	_, err := w.WriteBatch(context.Background(), 1)
	require.Error(t, err)
}

func TestLearningPriority(t *testing.T) {
	tests := []struct {
		score int
		want  string
	}{
		{7, "High"},
		{5, "High"},
		{4, "Medium"},
		{3, "Medium"},
		{2, "Low"},
		{0, "Low"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, learningPriority(tt.score), "score %d", tt.score)
	}
}

func TestPropertyMap_CoversAllCollections(t *testing.T) {
	item := acceptedItem(1, "X", "")
	item.Tags = []string{"a"}
	item.SuggestedCategory = "cat"

	for collection, build := range propertyMap {
		fields := build(&item)
		var hasTitle bool
		for _, v := range fields {
			if v.Type == FieldTitle {
				hasTitle = true
			}
		}
		assert.True(t, hasTitle, "collection %q builds a title field", collection)
	}
}

func TestBuildTopicsConcepts_MultiSelects(t *testing.T) {
	item := acceptedItem(1, "RAG", "Topics & Concepts")
	item.SuggestedCategory = "Retrieval"
	item.Tags = []string{"rag", "search"}

	fields := buildTopicsConcepts(&item)
	assert.Equal(t, MultiSelect([]string{"Retrieval"}), fields["Category"])
	assert.Equal(t, MultiSelect([]string{"rag", "search"}), fields["Tags"])
}
