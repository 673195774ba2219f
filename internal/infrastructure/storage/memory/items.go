package memory

import (
	"context"
	"slices"
	"strings"

	"storeledger/internal/core/apperror"
	"storeledger/internal/core/entity"
	"storeledger/internal/core/id"
	"storeledger/internal/domain/registers/stock"
)

// CreateItem stages a new item.
func (s *Store) CreateItem(ctx context.Context, item *entity.StockItem) error {
	return s.write(ctx, func(st *txState) error {
		if _, ok := s.itemLocked(st, item.ID); ok {
			return apperror.NewDuplicate("stock item", "id", item.ID.String())
		}
		if _, ok := s.codes[item.Code]; ok {
			return apperror.NewDuplicate("stock item", "code", item.Code)
		}
		for _, created := range st.created {
			if st.items[created].Code == item.Code {
				return apperror.NewDuplicate("stock item", "code", item.Code)
			}
		}
		st.items[item.ID] = *item
		st.created = append(st.created, item.ID)
		return nil
	})
}

// GetItem returns a copy of the item.
func (s *Store) GetItem(ctx context.Context, itemID id.ID) (*entity.StockItem, error) {
	var out *entity.StockItem
	err := s.read(ctx, func(st *txState) error {
		item, ok := s.itemLocked(st, itemID)
		if !ok {
			return apperror.NewNotFound("stock item", itemID)
		}
		out = &item
		return nil
	})
	return out, err
}

// GetItemByCode returns a copy of the item with the given code.
func (s *Store) GetItemByCode(ctx context.Context, code string) (*entity.StockItem, error) {
	code = strings.TrimSpace(code)
	var out *entity.StockItem
	err := s.read(ctx, func(st *txState) error {
		itemID, ok := s.codes[code]
		if !ok {
			for _, created := range st.created {
				if st.items[created].Code == code {
					itemID, ok = created, true
					break
				}
			}
		}
		if !ok {
			return apperror.NewNotFound("stock item", code)
		}
		item, _ := s.itemLocked(st, itemID)
		out = &item
		return nil
	})
	return out, err
}

// GetItemForUpdate is GetItem inside a write transaction. The transaction
// already holds the store exclusively.
func (s *Store) GetItemForUpdate(ctx context.Context, itemID id.ID) (*entity.StockItem, error) {
	st := stateFrom(ctx)
	if st == nil || st.readOnly {
		return nil, ErrNoTransaction
	}
	return s.GetItem(ctx, itemID)
}

// SaveSnapshot stages the item's quantity fields.
func (s *Store) SaveSnapshot(ctx context.Context, item *entity.StockItem) error {
	return s.write(ctx, func(st *txState) error {
		current, ok := s.itemLocked(st, item.ID)
		if !ok {
			return apperror.NewNotFound("stock item", item.ID)
		}
		if item.MainQty.IsNegative() || item.SubQty.IsNegative() {
			return apperror.NewIntegrityViolation(item.ID, "snapshot must not be negative")
		}
		current.MainQty = item.MainQty
		current.SubQty = item.SubQty
		current.Version = item.Version
		current.LastMovementAt = item.LastMovementAt
		current.UpdatedAt = item.UpdatedAt
		st.items[item.ID] = current
		return nil
	})
}

// ListItems returns copies ordered by code.
func (s *Store) ListItems(ctx context.Context, filter stock.ItemFilter) ([]entity.StockItem, error) {
	var out []entity.StockItem
	err := s.read(ctx, func(st *txState) error {
		seen := make(map[id.ID]struct{}, len(s.items)+len(st.items))
		collect := func(item entity.StockItem) {
			if _, ok := seen[item.ID]; ok {
				return
			}
			seen[item.ID] = struct{}{}
			if len(filter.IDs) > 0 && !slices.Contains(filter.IDs, item.ID) {
				return
			}
			if filter.Category != "" && !strings.EqualFold(item.Category, filter.Category) {
				return
			}
			out = append(out, item)
		}
		for _, item := range st.items {
			collect(item)
		}
		for _, item := range s.items {
			collect(item)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slices.SortFunc(out, func(a, b entity.StockItem) int {
		return strings.Compare(a.Code, b.Code)
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return []entity.StockItem{}, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}
