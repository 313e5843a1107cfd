package docstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// MemoryStore is an in-process Store used by tests and offline development.
// Callbacks run synchronously on the writing goroutine, one write at a time,
// which keeps per-subscription delivery order identical to write order.
type MemoryStore struct {
	mu     sync.Mutex
	docs   map[string]map[string]any
	subs   map[int]*memorySub
	next   int
	writes int
}

type memorySub struct {
	path       string // single-document watch
	collection string // collection watch
	filters    []Filter
	docFn      func(*Document)
	queryFn    func([]*Document)
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs: make(map[string]map[string]any),
		subs: make(map[int]*memorySub),
	}
}

// WriteCount returns the number of write operations performed, so tests can
// assert that an operation touched the store exactly as often as specified.
func (s *MemoryStore) WriteCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

// Close implements Store. No resources to release.
func (s *MemoryStore) Close() error { return nil }

// Get returns the document at path, or ErrNotFound.
func (s *MemoryStore) Get(_ context.Context, path string) (*Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fields, ok := s.docs[path]
	if !ok {
		return nil, fmt.Errorf("get %s: %w", path, ErrNotFound)
	}
	return &Document{Path: path, Fields: cloneFields(fields)}, nil
}

// Set writes fields at path, creating the document if absent.
func (s *MemoryStore) Set(_ context.Context, path string, fields map[string]any, merge bool) error {
	s.mu.Lock()
	out := cloneFields(fields)
	if merge {
		if existing, ok := s.docs[path]; ok {
			merged := cloneFields(existing)
			for k, v := range out {
				merged[k] = v
			}
			out = merged
		}
	}
	s.docs[path] = out
	s.writes++
	notify := s.pendingNotifications(path)
	s.mu.Unlock()

	for _, fn := range notify {
		fn()
	}
	return nil
}

// Update overwrites the named fields of an existing document.
func (s *MemoryStore) Update(_ context.Context, path string, fields map[string]any) error {
	s.mu.Lock()
	existing, ok := s.docs[path]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("update %s: %w", path, ErrNotFound)
	}
	merged := cloneFields(existing)
	for k, v := range cloneFields(fields) {
		merged[k] = v
	}
	s.docs[path] = merged
	s.writes++
	notify := s.pendingNotifications(path)
	s.mu.Unlock()

	for _, fn := range notify {
		fn()
	}
	return nil
}

// Query returns the documents of a collection matching all filters, in
// path order for determinism.
func (s *MemoryStore) Query(_ context.Context, collection string, filters ...Filter) ([]*Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queryLocked(collection, filters), nil
}

// Subscribe watches a single document, delivering the current snapshot first.
func (s *MemoryStore) Subscribe(path string, fn func(*Document)) (func(), error) {
	s.mu.Lock()
	id := s.next
	s.next++
	s.subs[id] = &memorySub{path: path, docFn: fn}
	initial := s.snapshotLocked(path)
	s.mu.Unlock()

	fn(initial)
	return s.cancelFunc(id), nil
}

// SubscribeQuery watches a collection query, delivering the current result
// set first and the full re-queried set after every write in the collection.
func (s *MemoryStore) SubscribeQuery(collection string, filters []Filter, fn func([]*Document)) (func(), error) {
	s.mu.Lock()
	id := s.next
	s.next++
	s.subs[id] = &memorySub{collection: collection, filters: filters, queryFn: fn}
	initial := s.queryLocked(collection, filters)
	s.mu.Unlock()

	fn(initial)
	return s.cancelFunc(id), nil
}

func (s *MemoryStore) cancelFunc(id int) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}
}

// pendingNotifications collects callbacks for the write at path. Called with
// the lock held; the returned closures are invoked after release so that
// callbacks may issue store operations.
func (s *MemoryStore) pendingNotifications(path string) []func() {
	collection := CollectionOf(path)
	var out []func()
	for _, sub := range s.subs {
		switch {
		case sub.docFn != nil && sub.path == path:
			doc := s.snapshotLocked(path)
			fn := sub.docFn
			out = append(out, func() { fn(doc) })
		case sub.queryFn != nil && sub.collection == collection:
			docs := s.queryLocked(sub.collection, sub.filters)
			fn := sub.queryFn
			out = append(out, func() { fn(docs) })
		}
	}
	return out
}

func (s *MemoryStore) snapshotLocked(path string) *Document {
	fields, ok := s.docs[path]
	if !ok {
		return nil
	}
	return &Document{Path: path, Fields: cloneFields(fields)}
}

func (s *MemoryStore) queryLocked(collection string, filters []Filter) []*Document {
	var docs []*Document
	for path, fields := range s.docs {
		if CollectionOf(path) != collection {
			continue
		}
		doc := &Document{Path: path, Fields: cloneFields(fields)}
		if matchesAll(doc, filters) {
			docs = append(docs, doc)
		}
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].Path < docs[j].Path })
	return docs
}

func cloneFields(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneFields(t)
	case map[string]bool:
		out := make(map[string]bool, len(t))
		for k, b := range t {
			out[k] = b
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, el := range t {
			out[i] = cloneValue(el)
		}
		return out
	case []string:
		out := make([]string, len(t))
		copy(out, t)
		return out
	default:
		return v
	}
}
