package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"reorder-service/internal/models"
)

// Document is a raw stored record
type Document struct {
	ID      int64
	Version int
	Body    []byte
}

// Documents is the collection-level access available inside a transaction
type Documents interface {
	// NextID returns max(existing ids)+1 for the collection and reserves it for this transaction.
	NextID(ctx context.Context, collection string) (int64, error)
	Insert(ctx context.Context, collection string, doc Document) error
	// Update replaces the document if its stored version equals expectedVersion.
	Update(ctx context.Context, collection string, expectedVersion int, doc Document) error
	Get(ctx context.Context, collection string, id int64) (Document, error)
	List(ctx context.Context, collection string) ([]Document, error)
}

// Backend runs transactions against a record store
type Backend interface {
	RunInTx(ctx context.Context, fn func(Documents) error) error
	Close() error
}

// ErrNoDocument is returned by backends for a missing id
var ErrNoDocument = errors.New("document not found")

// Store is the transactional record store shared by all services
type Store struct {
	backend Backend
	now     func() time.Time
}

// New creates a store over the given backend
func New(backend Backend) *Store {
	return &Store{backend: backend, now: time.Now}
}

// NewMemory creates a store backed by process memory
func NewMemory() *Store {
	return New(NewMemoryBackend())
}

// Close closes the backend
func (s *Store) Close() error {
	return s.backend.Close()
}

// Tx is a unit of work; every read-modify-write must happen inside one
type Tx struct {
	docs Documents
	now  time.Time
}

// Now returns the transaction timestamp
func (tx *Tx) Now() time.Time {
	return tx.now
}

// RunInTx executes fn atomically. Writes are discarded when fn returns an error.
func (s *Store) RunInTx(ctx context.Context, fn func(tx *Tx) error) error {
	return s.backend.RunInTx(ctx, func(docs Documents) error {
		return fn(&Tx{docs: docs, now: s.now()})
	})
}

// Entity is implemented by every model embedding models.Record
type Entity interface {
	Meta() *models.Record
}

// Numbered is implemented by entities whose business number derives from their id
type Numbered interface {
	AssignNumber(id int64, at time.Time)
}

// Collection gives typed access to one named collection
type Collection[T any, PT interface {
	*T
	Entity
}] struct {
	Name string
}

// Insert assigns the next id and stores v
func (c Collection[T, PT]) Insert(ctx context.Context, tx *Tx, v PT) error {
	id, err := tx.docs.NextID(ctx, c.Name)
	if err != nil {
		return fmt.Errorf("failed to allocate %s id: %w", c.Name, err)
	}
	meta := v.Meta()
	meta.ID = id
	meta.Version = 1
	meta.CreatedAt = tx.now
	meta.UpdatedAt = tx.now
	if n, ok := any(v).(Numbered); ok {
		n.AssignNumber(id, tx.now)
	}

	body, err := json.Marshal(v)
	if err != nil {
		return &models.StorageError{Op: "encode " + c.Name, Err: err}
	}
	if err := tx.docs.Insert(ctx, c.Name, Document{ID: id, Version: 1, Body: body}); err != nil {
		return fmt.Errorf("failed to insert %s: %w", c.Name, err)
	}
	return nil
}

// Get loads one record by id
func (c Collection[T, PT]) Get(ctx context.Context, tx *Tx, id int64) (PT, error) {
	doc, err := tx.docs.Get(ctx, c.Name, id)
	if errors.Is(err, ErrNoDocument) {
		return nil, &models.NotFoundError{Collection: c.Name, ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s %d: %w", c.Name, id, err)
	}
	return c.decode(doc)
}

// Update persists v if nobody changed it since it was read
func (c Collection[T, PT]) Update(ctx context.Context, tx *Tx, v PT) error {
	meta := v.Meta()
	expected := meta.Version
	meta.Version = expected + 1
	meta.UpdatedAt = tx.now

	body, err := json.Marshal(v)
	if err != nil {
		meta.Version = expected
		return &models.StorageError{Op: "encode " + c.Name, Err: err}
	}
	err = tx.docs.Update(ctx, c.Name, expected, Document{ID: meta.ID, Version: meta.Version, Body: body})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNoDocument):
		meta.Version = expected
		return &models.NotFoundError{Collection: c.Name, ID: meta.ID}
	default:
		meta.Version = expected
		return fmt.Errorf("failed to update %s %d: %w", c.Name, meta.ID, err)
	}
}

// List returns every record ordered by id
func (c Collection[T, PT]) List(ctx context.Context, tx *Tx) ([]PT, error) {
	docs, err := tx.docs.List(ctx, c.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", c.Name, err)
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })

	out := make([]PT, 0, len(docs))
	for _, doc := range docs {
		v, err := c.decode(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// Find returns the records matching the predicate, ordered by id
func (c Collection[T, PT]) Find(ctx context.Context, tx *Tx, match func(PT) bool) ([]PT, error) {
	all, err := c.List(ctx, tx)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, v := range all {
		if match(v) {
			out = append(out, v)
		}
	}
	return out, nil
}

// FindOne returns the first matching record or nil
func (c Collection[T, PT]) FindOne(ctx context.Context, tx *Tx, match func(PT) bool) (PT, error) {
	found, err := c.Find(ctx, tx, match)
	if err != nil || len(found) == 0 {
		return nil, err
	}
	return found[0], nil
}

func (c Collection[T, PT]) decode(doc Document) (PT, error) {
	v := PT(new(T))
	if err := json.Unmarshal(doc.Body, v); err != nil {
		return nil, &models.StorageError{Op: "decode " + c.Name, Err: err}
	}
	v.Meta().Version = doc.Version
	return v, nil
}
