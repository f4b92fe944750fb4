package docstore

import (
	"context"
	"sync"
	"sync/atomic"
)

type memoryCollection struct {
	keys []string
	docs map[string]Document
}

func (c *memoryCollection) put(key string, doc Document) {
	if _, ok := c.docs[key]; !ok {
		c.keys = append(c.keys, key)
	}
	c.docs[key] = doc
}

func (c *memoryCollection) remove(match func(Document) bool) int64 {
	var removed int64
	kept := c.keys[:0]
	for _, key := range c.keys {
		if match(c.docs[key]) {
			delete(c.docs, key)
			removed++
			continue
		}
		kept = append(kept, key)
	}
	c.keys = kept
	return removed
}

// MemoryStore keeps every tier in process. It backs unit tests and dry runs.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[Namespace]*memoryCollection
	open        atomic.Int64
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: map[Namespace]*memoryCollection{}}
}

// Acquire returns a handle; the MemoryStore is its own Provider.
func (s *MemoryStore) Acquire(_ context.Context) (Store, error) {
	s.open.Add(1)
	return &memoryHandle{store: s}, nil
}

// OpenHandles reports how many acquired handles have not been closed.
func (s *MemoryStore) OpenHandles() int {
	return int(s.open.Load())
}

// Count returns the number of documents in ns.
func (s *MemoryStore) Count(ns Namespace) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if c, ok := s.collections[ns]; ok {
		return len(c.keys)
	}
	return 0
}

func (s *MemoryStore) collection(ns Namespace) *memoryCollection {
	c, ok := s.collections[ns]
	if !ok {
		c = &memoryCollection{docs: map[string]Document{}}
		s.collections[ns] = c
	}
	return c
}

func clone(doc Document) Document {
	// stored documents are already normalized, so a JSON round trip cannot fail
	out, _ := normalize(map[string]any(doc))
	return Document(out)
}

type memoryHandle struct {
	store  *MemoryStore
	closed atomic.Bool
}

func (h *memoryHandle) Close() error {
	if h.closed.CompareAndSwap(false, true) {
		h.store.open.Add(-1)
	}
	return nil
}

func (h *memoryHandle) check(ctx context.Context) error {
	if h.closed.Load() {
		return ErrClosed
	}
	return ctx.Err()
}

func (h *memoryHandle) UpsertByQuery(ctx context.Context, ns Namespace, q Query, doc Document) error {
	if err := h.check(ctx); err != nil {
		return err
	}
	key, err := NaturalKey(q)
	if err != nil {
		return err
	}
	stored, err := withKey(q, doc)
	if err != nil {
		return err
	}

	h.store.mu.Lock()
	defer h.store.mu.Unlock()
	h.store.collection(ns).put(key, stored)
	return nil
}

func (h *memoryHandle) Find(ctx context.Context, ns Namespace, q Query) ([]Document, error) {
	if err := h.check(ctx); err != nil {
		return nil, err
	}
	nq, err := normalize(map[string]any(q))
	if err != nil {
		return nil, err
	}

	h.store.mu.RLock()
	defer h.store.mu.RUnlock()
	c, ok := h.store.collections[ns]
	if !ok {
		return []Document{}, nil
	}
	out := make([]Document, 0, len(c.keys))
	for _, key := range c.keys {
		if Matches(c.docs[key], Query(nq)) {
			out = append(out, clone(c.docs[key]))
		}
	}
	return out, nil
}

func (h *memoryHandle) FindOne(ctx context.Context, ns Namespace, q Query) (Document, bool, error) {
	docs, err := h.Find(ctx, ns, q)
	if err != nil || len(docs) == 0 {
		return nil, false, err
	}
	return docs[0], true, nil
}

func (h *memoryHandle) InsertIfAbsent(ctx context.Context, ns Namespace, q Query, doc Document) (Document, bool, error) {
	if err := h.check(ctx); err != nil {
		return nil, false, err
	}
	key, err := NaturalKey(q)
	if err != nil {
		return nil, false, err
	}
	stored, err := withKey(q, doc)
	if err != nil {
		return nil, false, err
	}

	h.store.mu.Lock()
	defer h.store.mu.Unlock()
	c := h.store.collection(ns)
	if existing, ok := c.docs[key]; ok {
		return clone(existing), false, nil
	}
	c.put(key, stored)
	return clone(stored), true, nil
}

func (h *memoryHandle) Replace(ctx context.Context, ns Namespace, q Query, doc Document) error {
	if err := h.check(ctx); err != nil {
		return err
	}
	key, err := NaturalKey(q)
	if err != nil {
		return err
	}
	nq, err := normalize(map[string]any(q))
	if err != nil {
		return err
	}
	stored, err := withKey(q, doc)
	if err != nil {
		return err
	}

	h.store.mu.Lock()
	defer h.store.mu.Unlock()
	c := h.store.collection(ns)
	c.remove(func(d Document) bool { return Matches(d, Query(nq)) })
	c.put(key, stored)
	return nil
}

func (h *memoryHandle) DeleteByQuery(ctx context.Context, ns Namespace, q Query) (int64, error) {
	if err := h.check(ctx); err != nil {
		return 0, err
	}
	nq, err := normalize(map[string]any(q))
	if err != nil {
		return 0, err
	}

	h.store.mu.Lock()
	defer h.store.mu.Unlock()
	c, ok := h.store.collections[ns]
	if !ok {
		return 0, nil
	}
	return c.remove(func(d Document) bool { return Matches(d, Query(nq)) }), nil
}

func (h *memoryHandle) DeleteAll(ctx context.Context, ns Namespace) (int64, error) {
	if err := h.check(ctx); err != nil {
		return 0, err
	}

	h.store.mu.Lock()
	defer h.store.mu.Unlock()
	c, ok := h.store.collections[ns]
	if !ok {
		return 0, nil
	}
	removed := int64(len(c.keys))
	delete(h.store.collections, ns)
	return removed, nil
}
