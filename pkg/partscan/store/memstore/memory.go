package memstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/cognicore/partscan/pkg/partscan/catalog"
	"github.com/cognicore/partscan/pkg/partscan/internalerr"
	"github.com/cognicore/partscan/pkg/partscan/store"
)

var _ store.CatalogStore = (*Store)(nil)

// Store is an in-memory implementation of store.CatalogStore for tests.
// Products come back in insertion order.
type Store struct {
	mu      sync.RWMutex
	order   []string
	records map[string]catalog.Record
}

// New creates a store holding recs.
func New(recs ...catalog.Record) *Store {
	s := &Store{records: make(map[string]catalog.Record)}
	for _, r := range recs {
		_ = s.UpsertProduct(context.Background(), r)
	}
	return s
}

// String names the source in load errors.
func (s *Store) String() string { return "memstore" }

// Close implements store.CatalogStore.
func (s *Store) Close() error { return nil }

// Products returns a copy of every record.
func (s *Store) Products(ctx context.Context) ([]catalog.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]catalog.Record, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, copyRecord(s.records[id]))
	}
	return out, nil
}

// Product returns one record by ID.
func (s *Store) Product(ctx context.Context, id string) (catalog.Record, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.records[id]
	if !ok {
		return catalog.Record{}, false, nil
	}
	return copyRecord(r), true, nil
}

// UpsertProduct inserts or replaces a record, keyed by ID.
func (s *Store) UpsertProduct(ctx context.Context, rec catalog.Record) error {
	if rec.ID == "" {
		return fmt.Errorf("upsert product: %w: empty id", internalerr.ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[rec.ID]; !ok {
		s.order = append(s.order, rec.ID)
	}
	s.records[rec.ID] = copyRecord(rec)
	return nil
}

// DeleteProduct removes a record. Deleting an unknown ID returns
// internalerr.ErrNotFound.
func (s *Store) DeleteProduct(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[id]; !ok {
		return fmt.Errorf("delete product %q: %w", id, internalerr.ErrNotFound)
	}
	delete(s.records, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

func copyRecord(r catalog.Record) catalog.Record {
	r.Aliases = append([]string(nil), r.Aliases...)
	return r
}
