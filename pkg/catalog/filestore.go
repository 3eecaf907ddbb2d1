package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
)

// FileStore is a catalog backend over a local JSON snapshot. It serves the
// same Store interface as a remote backend, which keeps the pipeline and
// dedup index runnable against an exported catalog copy.
type FileStore struct {
	path string

	mu   sync.Mutex
	data fileSnapshot
}

type fileSnapshot struct {
	Collections map[string]*fileCollection `json:"collections"`
	NextID      int                        `json:"next_id"`
}

type fileCollection struct {
	Schema  map[string]FieldType `json:"schema"`
	Records []fileRecord         `json:"records"`
}

type fileRecord struct {
	ID     string            `json:"id"`
	Fields map[string]string `json:"fields"`
}

// NewFileStore loads a catalog snapshot from a JSON file. A missing file
// yields an empty catalog that is created on first write.
func NewFileStore(path string) (*FileStore, error) {
	s := &FileStore{path: path, data: fileSnapshot{Collections: map[string]*fileCollection{}, NextID: 1}}

	raw, err := os.ReadFile(path) //nolint:gosec // file path comes from CLI flag
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read catalog snapshot: %w", err)
	}
	if err := json.Unmarshal(raw, &s.data); err != nil {
		return nil, fmt.Errorf("parse catalog snapshot: %w", err)
	}
	if s.data.Collections == nil {
		s.data.Collections = map[string]*fileCollection{}
	}
	if s.data.NextID == 0 {
		s.data.NextID = 1
	}
	return s, nil
}

// Collections lists all known collection names, sorted
func (s *FileStore) Collections() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.data.Collections))
	for name := range s.data.Collections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetSchema returns the field schema for one collection
func (s *FileStore) GetSchema(_ context.Context, collection string) (map[string]FieldType, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	coll, ok := s.data.Collections[collection]
	if !ok {
		return nil, fmt.Errorf("unknown collection %q", collection)
	}
	schema := make(map[string]FieldType, len(coll.Schema))
	for k, v := range coll.Schema {
		schema[k] = v
	}
	return schema, nil
}

// Query returns every entry in a collection
func (s *FileStore) Query(_ context.Context, collection string) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	coll, ok := s.data.Collections[collection]
	if !ok {
		return nil, fmt.Errorf("unknown collection %q", collection)
	}
	records := make([]Record, 0, len(coll.Records))
	for _, r := range coll.Records {
		fields := make(map[string]string, len(r.Fields))
		for k, v := range r.Fields {
			fields[k] = v
		}
		records = append(records, Record{ID: r.ID, Fields: fields})
	}
	return records, nil
}

// Create adds an entry to a collection and persists the snapshot. Unknown
// collections are created with a schema inferred from the fields.
func (s *FileStore) Create(_ context.Context, collection string, fields Fields) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	coll, ok := s.data.Collections[collection]
	if !ok {
		coll = &fileCollection{Schema: map[string]FieldType{}}
		s.data.Collections[collection] = coll
	}

	id := fmt.Sprintf("local-%06d", s.data.NextID)
	s.data.NextID++

	rec := fileRecord{ID: id, Fields: map[string]string{}}
	for name, v := range fields {
		rec.Fields[name] = flattenValue(v)
		if _, known := coll.Schema[name]; !known {
			coll.Schema[name] = v.Type
		}
	}
	coll.Records = append(coll.Records, rec)

	if err := s.save(); err != nil {
		return "", err
	}
	return id, nil
}

// Update modifies fields on an existing entry and persists the snapshot
func (s *FileStore) Update(_ context.Context, id string, fields Fields) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, coll := s.find(id)
	if rec == nil {
		return fmt.Errorf("entry %q not found", id)
	}
	for name, v := range fields {
		rec.Fields[name] = flattenValue(v)
		if _, known := coll.Schema[name]; !known {
			coll.Schema[name] = v.Type
		}
	}
	return s.save()
}

// LinkRelation stores relation targets as a comma-joined id list on the
// relation property
func (s *FileStore) LinkRelation(_ context.Context, id, property string, targetIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, coll := s.find(id)
	if rec == nil {
		return fmt.Errorf("entry %q not found", id)
	}
	rec.Fields[property] = strings.Join(targetIDs, ",")
	if _, known := coll.Schema[property]; !known {
		coll.Schema[property] = FieldRelation
	}
	return s.save()
}

// find locates a record by id across all collections, callers hold the lock
func (s *FileStore) find(id string) (*fileRecord, *fileCollection) {
	for _, coll := range s.data.Collections {
		for i := range coll.Records {
			if coll.Records[i].ID == id {
				return &coll.Records[i], coll
			}
		}
	}
	return nil, nil
}

// save writes the snapshot back to disk, callers hold the lock
func (s *FileStore) save() error {
	raw, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal catalog snapshot: %w", err)
	}
	if err := os.WriteFile(s.path, raw, 0o600); err != nil {
		return fmt.Errorf("write catalog snapshot: %w", err)
	}
	return nil
}

// flattenValue renders a typed value as the plain string a Record carries
func flattenValue(v Value) string {
	if v.Type == FieldMultiSelect {
		return strings.Join(v.List, ", ")
	}
	return v.Text
}
