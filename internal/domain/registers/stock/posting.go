package stock

import (
	"context"
	"fmt"
	"time"

	"storeledger/internal/core/apperror"
	appctx "storeledger/internal/core/context"
	"storeledger/internal/core/entity"
	"storeledger/internal/core/id"
)

// posting collects the entries of one transaction and the item snapshots
// they produce. Nothing reaches the repository until flush.
//
// In net mode each entry only has to stay inside the storable range; the
// non-negativity of every touched store is checked once, on the end state,
// by settle.
type posting struct {
	repo       Repository
	net        bool
	items      map[id.ID]*entity.StockItem
	start      map[id.ID]entity.Balance
	order      []id.ID
	recordedBy string
	entries    []entity.LedgerEntry
	results    []MovementResult
}

func (s *Service) newPosting(ctx context.Context, net bool) *posting {
	return &posting{
		repo:       s.repo,
		net:        net,
		items:      make(map[id.ID]*entity.StockItem),
		start:      make(map[id.ID]entity.Balance),
		recordedBy: appctx.OperatorID(ctx),
	}
}

// item returns the row-locked snapshot of itemID, reading it on first use.
func (p *posting) item(ctx context.Context, itemID id.ID) (*entity.StockItem, error) {
	if item, ok := p.items[itemID]; ok {
		return item, nil
	}
	item, err := p.repo.GetItemForUpdate(ctx, itemID)
	if err != nil {
		return nil, err
	}
	p.items[itemID] = item
	p.start[itemID] = item.Snapshot()
	p.order = append(p.order, itemID)
	return item, nil
}

// add applies e to item and queues it for append.
func (p *posting) add(item *entity.StockItem, e entity.LedgerEntry) error {
	e.RecordedBy = p.recordedBy
	step := Apply
	if p.net {
		step = ApplyNet
	}
	next, err := step(item.Snapshot(), e)
	if err != nil {
		if appErr, ok := apperror.AsAppError(err); ok {
			appErr.WithDetail("item_code", item.Code)
		}
		return err
	}

	// Reversals do not count as activity on the item.
	var movedAt *time.Time
	if !e.Reversal {
		date := e.BusinessDate
		movedAt = &date
	}
	item.SetSnapshot(next, movedAt)

	p.entries = append(p.entries, e)
	p.results = append(p.results, MovementResult{Entry: e, Snapshot: *item})
	return nil
}

// post turns reqs into entries. Line errors carry the line index when multi.
func (p *posting) post(ctx context.Context, reqs []MovementRequest, multi bool) error {
	for _, itemID := range requestItems(reqs) {
		if _, err := p.item(ctx, itemID); err != nil {
			return withLine(err, firstLine(reqs, itemID), multi)
		}
	}
	for i, r := range reqs {
		entry := entity.NewLedgerEntry(r.ItemID, r.Type, r.Quantity, r.Rate, r.Date, r.Meta)
		if err := p.add(p.items[r.ItemID], entry); err != nil {
			return withLine(err, i, multi)
		}
	}
	return nil
}

// settle fails with INSUFFICIENT_STOCK if any touched store ends negative.
func (p *posting) settle() error {
	for _, itemID := range p.sortedItems() {
		item, start := p.items[itemID], p.start[itemID]
		b := item.Snapshot()
		if b.Main.IsNegative() {
			return netShortfall(item, entity.StoreMain, start.Main, b.Main)
		}
		if b.Sub.IsNegative() {
			return netShortfall(item, entity.StoreSub, start.Sub, b.Sub)
		}
	}
	return nil
}

// flush appends the queued entries and writes every touched snapshot.
func (p *posting) flush(ctx context.Context) error {
	if p.net {
		if err := p.settle(); err != nil {
			return err
		}
	}
	if err := p.repo.AppendEntries(ctx, p.entries); err != nil {
		return fmt.Errorf("append ledger entries: %w", err)
	}
	for _, itemID := range p.sortedItems() {
		if err := p.repo.SaveSnapshot(ctx, p.items[itemID]); err != nil {
			return fmt.Errorf("save snapshot %s: %w", itemID, err)
		}
	}
	return nil
}

func (p *posting) sortedItems() []id.ID {
	ids := append([]id.ID(nil), p.order...)
	id.Sort(ids)
	return ids
}
