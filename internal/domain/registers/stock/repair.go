package stock

import (
	"context"
	"fmt"

	"storeledger/internal/core/apperror"
	"storeledger/internal/core/entity"
	"storeledger/internal/core/id"
	"storeledger/pkg/logger"
)

// Discrepancy compares an item's snapshot with its ledger fold.
type Discrepancy struct {
	ItemID   id.ID          `json:"itemId"`
	Code     string         `json:"code"`
	Snapshot entity.Balance `json:"snapshot"`
	Ledger   entity.Balance `json:"ledger"`
}

// InSync reports whether snapshot and ledger agree.
func (d Discrepancy) InSync() bool {
	return d.Snapshot == d.Ledger
}

// Err returns an INTEGRITY_VIOLATION error for an out-of-sync item, or nil.
func (d Discrepancy) Err() error {
	if d.InSync() {
		return nil
	}
	return apperror.NewIntegrityViolation(d.ItemID, "snapshot disagrees with ledger").
		WithDetail("item_code", d.Code).
		WithDetail("snapshot_main", d.Snapshot.Main.String()).
		WithDetail("snapshot_sub", d.Snapshot.Sub.String()).
		WithDetail("ledger_main", d.Ledger.Main.String()).
		WithDetail("ledger_sub", d.Ledger.Sub.String())
}

// Verify folds the item's full ledger and compares it with the snapshot,
// both read from one consistent view. It never writes.
func (s *Service) Verify(ctx context.Context, itemID id.ID) (Discrepancy, error) {
	var d Discrepancy
	err := s.txm.ReadOnly(ctx, func(ctx context.Context) error {
		item, err := s.repo.GetItem(ctx, itemID)
		if err != nil {
			return err
		}
		d, err = s.discrepancy(ctx, item)
		return err
	})
	return d, err
}

func (s *Service) discrepancy(ctx context.Context, item *entity.StockItem) (Discrepancy, error) {
	entries, err := s.repo.ListEntries(ctx, EntryFilter{ItemIDs: []id.ID{item.ID}})
	if err != nil {
		return Discrepancy{}, fmt.Errorf("list entries for %s: %w", item.ID, err)
	}
	return Discrepancy{
		ItemID:   item.ID,
		Code:     item.Code,
		Snapshot: item.Snapshot(),
		Ledger:   Fold(entity.Balance{}, entries),
	}, nil
}

// RepairResult describes what Repair did to one item.
type RepairResult struct {
	Discrepancy
	Repaired bool `json:"repaired"`
}

// Repair recomputes an item's snapshot from its full ledger under the item
// lock. The ledger is authoritative: a mismatching snapshot is overwritten
// and the mismatch is logged as an integrity violation. A ledger that folds
// to a negative balance cannot be written as a snapshot and is returned as
// INTEGRITY_VIOLATION for manual correction.
func (s *Service) Repair(ctx context.Context, itemID id.ID) (RepairResult, error) {
	ctx, span := tracer.Start(ctx, "stock.Repair")
	defer span.End()

	release, err := s.lockItems(ctx, []id.ID{itemID})
	if err != nil {
		return RepairResult{}, err
	}
	defer release()

	var res RepairResult
	err = s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		item, err := s.repo.GetItemForUpdate(ctx, itemID)
		if err != nil {
			return err
		}
		d, err := s.discrepancy(ctx, item)
		if err != nil {
			return err
		}
		res.Discrepancy = d
		if d.InSync() {
			return nil
		}

		s.metrics.IntegrityAlarm("repair")
		logger.Error(ctx, "stock snapshot integrity violation",
			"code", apperror.CodeIntegrityViolation,
			"item_id", d.ItemID,
			"item_code", d.Code,
			"snapshot_main", d.Snapshot.Main,
			"snapshot_sub", d.Snapshot.Sub,
			"ledger_main", d.Ledger.Main,
			"ledger_sub", d.Ledger.Sub,
		)

		if d.Ledger.IsNegative() {
			return apperror.NewIntegrityViolation(d.ItemID, "ledger folds to a negative balance").
				WithDetail("item_code", d.Code).
				WithDetail("ledger_main", d.Ledger.Main.String()).
				WithDetail("ledger_sub", d.Ledger.Sub.String())
		}

		item.SetSnapshot(d.Ledger, nil)
		if err := s.repo.SaveSnapshot(ctx, item); err != nil {
			return fmt.Errorf("save repaired snapshot: %w", err)
		}
		res.Repaired = true
		return nil
	})
	if err != nil {
		return res, err
	}

	if res.Repaired {
		s.metrics.SnapshotRepaired()
		logger.Warn(ctx, "stock snapshot repaired from ledger", "item_id", itemID, "item_code", res.Code)
	}
	return res, nil
}

// RepairReport summarizes a RepairAll sweep.
type RepairReport struct {
	Checked  int               `json:"checked"`
	Repaired []RepairResult    `json:"repaired,omitempty"`
	Failed   map[string]string `json:"failed,omitempty"`
}

// RepairAll runs Repair for every item, page by page. Failures on one item
// are collected and do not stop the sweep.
func (s *Service) RepairAll(ctx context.Context, pageSize int) (RepairReport, error) {
	if pageSize <= 0 {
		pageSize = 500
	}

	report := RepairReport{Failed: make(map[string]string)}
	for offset := 0; ; offset += pageSize {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		items, err := s.repo.ListItems(ctx, ItemFilter{Limit: pageSize, Offset: offset})
		if err != nil {
			return report, fmt.Errorf("list items: %w", err)
		}

		for _, item := range items {
			report.Checked++
			res, err := s.Repair(ctx, item.ID)
			if err != nil {
				report.Failed[item.Code] = err.Error()
				continue
			}
			if res.Repaired {
				report.Repaired = append(report.Repaired, res)
			}
		}

		if len(items) < pageSize {
			break
		}
	}

	logger.Info(ctx, "snapshot repair sweep finished",
		"checked", report.Checked,
		"repaired", len(report.Repaired),
		"failed", len(report.Failed),
	)
	return report, nil
}
