package store

import (
	"context"
	"fmt"
	"sync"

	"reorder-service/internal/models"
)

// MemoryBackend keeps collections in process memory. Transactions are
// serialized by a single mutex and staged until commit.
type MemoryBackend struct {
	mu          sync.Mutex
	collections map[string]map[int64]Document
}

// NewMemoryBackend creates an empty memory backend
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{collections: make(map[string]map[int64]Document)}
}

// RunInTx runs fn with exclusive access and applies its writes only if it succeeds
func (b *MemoryBackend) RunInTx(ctx context.Context, fn func(Documents) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	tx := &memoryTx{backend: b, staged: make(map[string]map[int64]Document)}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	for name, docs := range tx.staged {
		coll := b.collections[name]
		if coll == nil {
			coll = make(map[int64]Document)
			b.collections[name] = coll
		}
		for id, doc := range docs {
			coll[id] = doc
		}
	}
	return nil
}

// Close is a no-op for the memory backend
func (b *MemoryBackend) Close() error {
	return nil
}

type memoryTx struct {
	backend *MemoryBackend
	staged  map[string]map[int64]Document
}

func (t *memoryTx) lookup(collection string, id int64) (Document, bool) {
	if doc, ok := t.staged[collection][id]; ok {
		return doc, true
	}
	doc, ok := t.backend.collections[collection][id]
	return doc, ok
}

func (t *memoryTx) stage(collection string, doc Document) {
	docs := t.staged[collection]
	if docs == nil {
		docs = make(map[int64]Document)
		t.staged[collection] = docs
	}
	body := make([]byte, len(doc.Body))
	copy(body, doc.Body)
	doc.Body = body
	docs[doc.ID] = doc
}

func (t *memoryTx) NextID(_ context.Context, collection string) (int64, error) {
	var max int64
	for id := range t.backend.collections[collection] {
		if id > max {
			max = id
		}
	}
	for id := range t.staged[collection] {
		if id > max {
			max = id
		}
	}
	return max + 1, nil
}

func (t *memoryTx) Insert(_ context.Context, collection string, doc Document) error {
	if _, exists := t.lookup(collection, doc.ID); exists {
		return fmt.Errorf("duplicate id %d in %s", doc.ID, collection)
	}
	t.stage(collection, doc)
	return nil
}

func (t *memoryTx) Update(_ context.Context, collection string, expectedVersion int, doc Document) error {
	current, ok := t.lookup(collection, doc.ID)
	if !ok {
		return ErrNoDocument
	}
	if current.Version != expectedVersion {
		return fmt.Errorf("%s %d at version %d, expected %d: %w",
			collection, doc.ID, current.Version, expectedVersion, models.ErrVersionConflict)
	}
	t.stage(collection, doc)
	return nil
}

func (t *memoryTx) Get(_ context.Context, collection string, id int64) (Document, error) {
	doc, ok := t.lookup(collection, id)
	if !ok {
		return Document{}, ErrNoDocument
	}
	return doc, nil
}

func (t *memoryTx) List(_ context.Context, collection string) ([]Document, error) {
	docs := make([]Document, 0, len(t.backend.collections[collection])+len(t.staged[collection]))
	for id, doc := range t.backend.collections[collection] {
		if _, overridden := t.staged[collection][id]; overridden {
			continue
		}
		docs = append(docs, doc)
	}
	for _, doc := range t.staged[collection] {
		docs = append(docs, doc)
	}
	return docs, nil
}
