package memory

import (
	"bytes"
	"cmp"
	"context"
	"slices"

	"storeledger/internal/core/apperror"
	"storeledger/internal/core/entity"
	"storeledger/internal/core/id"
	"storeledger/internal/domain/registers/stock"
)

// AppendEntries stages entries and assigns their Seq. Every entry is checked
// before any is staged.
func (s *Store) AppendEntries(ctx context.Context, entries []entity.LedgerEntry) error {
	return s.write(ctx, func(st *txState) error {
		for _, e := range entries {
			if _, ok := s.itemLocked(st, e.ItemID); !ok {
				return apperror.NewNotFound("stock item", e.ItemID)
			}
			if !e.Type.IsValid() || !e.Quantity.IsPositive() {
				return apperror.NewInvalidMovement("malformed ledger entry").WithDetail("entry_id", e.ID)
			}
		}
		for i := range entries {
			entries[i].Seq = s.seq + int64(len(st.entries)) + 1
			st.entries = append(st.entries, entries[i])
		}
		return nil
	})
}

// ListEntries returns matching entries by business date, then Seq.
func (s *Store) ListEntries(ctx context.Context, filter stock.EntryFilter) ([]entity.LedgerEntry, error) {
	var out []entity.LedgerEntry
	err := s.read(ctx, func(st *txState) error {
		for _, e := range s.allEntriesLocked(st) {
			if matches(e, filter) {
				out = append(out, e)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slices.SortStableFunc(out, func(a, b entity.LedgerEntry) int {
		if c := a.BusinessDate.Compare(b.BusinessDate); c != 0 {
			return c
		}
		return cmp.Compare(a.Seq, b.Seq)
	})
	return out, nil
}

// SumByType totals matching entries per item and movement type.
func (s *Store) SumByType(ctx context.Context, filter stock.EntryFilter) ([]stock.TypeTotal, error) {
	type key struct {
		item id.ID
		mt   entity.MovementType
	}
	sums := make(map[key]*stock.TypeTotal)

	err := s.read(ctx, func(st *txState) error {
		for _, e := range s.allEntriesLocked(st) {
			if !matches(e, filter) {
				continue
			}
			k := key{item: e.ItemID, mt: e.Type}
			t, ok := sums[k]
			if !ok {
				t = &stock.TypeTotal{ItemID: e.ItemID, Type: e.Type}
				sums[k] = t
			}
			t.Quantity += e.SignedQuantity()
			t.Amount = t.Amount.Add(e.SignedAmount())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := make([]stock.TypeTotal, 0, len(sums))
	for _, t := range sums {
		out = append(out, *t)
	}
	slices.SortFunc(out, func(a, b stock.TypeTotal) int {
		if c := bytes.Compare(a.ItemID[:], b.ItemID[:]); c != 0 {
			return c
		}
		return cmp.Compare(a.Type, b.Type)
	})
	return out, nil
}

func matches(e entity.LedgerEntry, f stock.EntryFilter) bool {
	if len(f.ItemIDs) > 0 && !slices.Contains(f.ItemIDs, e.ItemID) {
		return false
	}
	if f.From != nil && e.BusinessDate.Before(*f.From) {
		return false
	}
	if f.To != nil && !e.BusinessDate.Before(*f.To) {
		return false
	}
	if f.DocumentRef != "" && e.DocumentRef != f.DocumentRef {
		return false
	}
	if f.DocumentType != "" && e.DocumentType != f.DocumentType {
		return false
	}
	return true
}
