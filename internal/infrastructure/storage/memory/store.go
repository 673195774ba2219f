// Package memory provides an in-process implementation of the stock ledger
// storage and transaction contracts. Used by tests and the demo seed.
//
// Writers are serialized: a write transaction holds the store lock from
// start to commit and stages its changes, which are published only when fn
// succeeds. Read-only transactions share the lock and see one point-in-time
// view.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"

	"storeledger/internal/core/entity"
	"storeledger/internal/core/id"
	"storeledger/internal/core/tx"
	"storeledger/internal/domain/registers/stock"
)

// ErrNoTransaction is returned by operations that need a write transaction.
var ErrNoTransaction = errors.New("memory store: operation requires a write transaction")

// Store holds items and the ledger.
type Store struct {
	mu      sync.RWMutex
	items   map[id.ID]entity.StockItem
	codes   map[string]id.ID
	entries []entity.LedgerEntry // sorted by BusinessDate, then Seq
	seq     int64
}

var (
	_ stock.Repository   = (*Store)(nil)
	_ tx.ReadOnlyManager = (*Store)(nil)
)

// New creates an empty store.
func New() *Store {
	return &Store{
		items: make(map[id.ID]entity.StockItem),
		codes: make(map[string]id.ID),
	}
}

type txKey struct{}

// txState is the staged view of one transaction.
type txState struct {
	readOnly bool
	items    map[id.ID]entity.StockItem
	created  []id.ID
	entries  []entity.LedgerEntry
}

func stateFrom(ctx context.Context) *txState {
	if st, ok := ctx.Value(txKey{}).(*txState); ok {
		return st
	}
	return nil
}

// RunInTransaction runs fn with exclusive access; nested calls reuse the
// outer transaction.
func (s *Store) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if st := stateFrom(ctx); st != nil {
		if st.readOnly {
			return errors.New("memory store: write transaction nested in read-only transaction")
		}
		return fn(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	st := &txState{items: make(map[id.ID]entity.StockItem)}
	if err := fn(context.WithValue(ctx, txKey{}, st)); err != nil {
		return err
	}
	s.commitLocked(st)
	return nil
}

// ReadOnly runs fn against a consistent view.
func (s *Store) ReadOnly(ctx context.Context, fn func(ctx context.Context) error) error {
	if stateFrom(ctx) != nil {
		return fn(ctx)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return fn(context.WithValue(ctx, txKey{}, &txState{readOnly: true}))
}

func (s *Store) commitLocked(st *txState) {
	for _, itemID := range st.created {
		s.codes[st.items[itemID].Code] = itemID
	}
	for itemID, item := range st.items {
		s.items[itemID] = item
	}
	for _, e := range st.entries {
		s.insertEntryLocked(e)
	}
	s.seq += int64(len(st.entries))
}

// insertEntryLocked keeps entries sorted by business date, then Seq.
func (s *Store) insertEntryLocked(e entity.LedgerEntry) {
	i := sort.Search(len(s.entries), func(i int) bool {
		return s.entries[i].BusinessDate.After(e.BusinessDate)
	})
	s.entries = append(s.entries, entity.LedgerEntry{})
	copy(s.entries[i+1:], s.entries[i:])
	s.entries[i] = e
}

// read runs fn inside the caller's transaction or a short read lock.
func (s *Store) read(ctx context.Context, fn func(st *txState) error) error {
	if st := stateFrom(ctx); st != nil {
		return fn(st)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(&txState{readOnly: true})
}

// write runs fn inside the caller's write transaction or a new one.
func (s *Store) write(ctx context.Context, fn func(st *txState) error) error {
	if st := stateFrom(ctx); st != nil {
		if st.readOnly {
			return ErrNoTransaction
		}
		return fn(st)
	}
	return s.RunInTransaction(ctx, func(ctx context.Context) error {
		return fn(stateFrom(ctx))
	})
}

// itemLocked returns the staged or committed item.
func (s *Store) itemLocked(st *txState, itemID id.ID) (entity.StockItem, bool) {
	if item, ok := st.items[itemID]; ok {
		return item, true
	}
	item, ok := s.items[itemID]
	return item, ok
}

// allEntriesLocked returns committed then staged entries.
func (s *Store) allEntriesLocked(st *txState) []entity.LedgerEntry {
	if len(st.entries) == 0 {
		return s.entries
	}
	out := make([]entity.LedgerEntry, 0, len(s.entries)+len(st.entries))
	out = append(out, s.entries...)
	return append(out, st.entries...)
}
