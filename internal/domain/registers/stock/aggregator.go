package stock

import (
	"context"
	"fmt"

	"storeledger/internal/core/entity"
	"storeledger/internal/core/id"
	"storeledger/internal/core/types"
)

// Summary is an item's lifetime ledger totals and the balances derived from
// them, next to the snapshot read in the same transaction.
type Summary struct {
	ItemID id.ID  `json:"itemId"`
	Code   string `json:"code"`
	Name   string `json:"name"`
	Unit   string `json:"unit,omitempty"`

	Totals

	BalanceMain  types.Quantity `json:"balanceMain"`
	BalanceSub   types.Quantity `json:"balanceSub"`
	BalanceTotal types.Quantity `json:"balanceTotal"`

	SnapshotMain  types.Quantity `json:"snapshotMain"`
	SnapshotSub   types.Quantity `json:"snapshotSub"`
	SnapshotTotal types.Quantity `json:"snapshotTotal"`
}

// InSync reports whether the snapshot matches the ledger.
func (s Summary) InSync() bool {
	return s.BalanceMain == s.SnapshotMain && s.BalanceSub == s.SnapshotSub
}

// Summarize folds the ledger by item and movement type. With a nil itemID
// every item is summarized, ordered by code; items without entries get
// zero totals. It never trusts the snapshot for the balances.
func (s *Service) Summarize(ctx context.Context, itemID *id.ID) ([]Summary, error) {
	ctx, span := tracer.Start(ctx, "stock.Summarize")
	defer span.End()

	var out []Summary
	err := s.txm.ReadOnly(ctx, func(ctx context.Context) error {
		var items []entity.StockItem
		if itemID != nil {
			item, err := s.repo.GetItem(ctx, *itemID)
			if err != nil {
				return err
			}
			items = []entity.StockItem{*item}
		} else {
			var err error
			items, err = s.repo.ListItems(ctx, ItemFilter{})
			if err != nil {
				return fmt.Errorf("list items: %w", err)
			}
		}

		filter := EntryFilter{}
		if itemID != nil {
			filter.ItemIDs = []id.ID{*itemID}
		}
		totals, err := s.repo.SumByType(ctx, filter)
		if err != nil {
			return fmt.Errorf("sum ledger: %w", err)
		}

		out = buildSummaries(items, totals)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func buildSummaries(items []entity.StockItem, rows []TypeTotal) []Summary {
	byItem := make(map[id.ID]*Totals, len(items))
	for _, row := range rows {
		t, ok := byItem[row.ItemID]
		if !ok {
			t = &Totals{}
			byItem[row.ItemID] = t
		}
		t.Add(row.Type, row.Quantity, row.Amount)
	}

	out := make([]Summary, 0, len(items))
	for _, item := range items {
		var t Totals
		if found, ok := byItem[item.ID]; ok {
			t = *found
		}
		b := t.Balance()
		out = append(out, Summary{
			ItemID:        item.ID,
			Code:          item.Code,
			Name:          item.Name,
			Unit:          item.Unit,
			Totals:        t,
			BalanceMain:   b.Main,
			BalanceSub:    b.Sub,
			BalanceTotal:  b.Total(),
			SnapshotMain:  item.MainQty,
			SnapshotSub:   item.SubQty,
			SnapshotTotal: item.TotalQty(),
		})
	}
	return out
}
