// Package stock provides the stock ledger: the movement engine, the
// aggregator and the snapshot repair path.
package stock

import (
	"context"
	"time"

	"storeledger/internal/core/entity"
	"storeledger/internal/core/id"
	"storeledger/internal/core/types"
)

// ItemRepository stores stock items and their quantity snapshots.
type ItemRepository interface {
	// CreateItem inserts a new item. A taken code fails with DUPLICATE_ENTRY.
	CreateItem(ctx context.Context, item *entity.StockItem) error

	// GetItem returns the item or NOT_FOUND.
	GetItem(ctx context.Context, itemID id.ID) (*entity.StockItem, error)

	// GetItemByCode returns the item or NOT_FOUND.
	GetItemByCode(ctx context.Context, code string) (*entity.StockItem, error)

	// GetItemForUpdate returns the item and holds its row lock until the
	// surrounding transaction ends. Must be called inside a transaction.
	GetItemForUpdate(ctx context.Context, itemID id.ID) (*entity.StockItem, error)

	// SaveSnapshot writes MainQty, SubQty, Version and LastMovementAt.
	SaveSnapshot(ctx context.Context, item *entity.StockItem) error

	// ListItems returns items ordered by code.
	ListItems(ctx context.Context, filter ItemFilter) ([]entity.StockItem, error)
}

// EntryRepository is the append-only ledger.
type EntryRepository interface {
	// AppendEntries writes all entries or none.
	AppendEntries(ctx context.Context, entries []entity.LedgerEntry) error

	// ListEntries returns entries by business date, then append order.
	ListEntries(ctx context.Context, filter EntryFilter) ([]entity.LedgerEntry, error)

	// SumByType returns signed quantity and amount totals per item and type.
	SumByType(ctx context.Context, filter EntryFilter) ([]TypeTotal, error)
}

// Repository is the full storage contract of the ledger.
type Repository interface {
	ItemRepository
	EntryRepository
}

// ItemFilter for listing items.
type ItemFilter struct {
	IDs      []id.ID
	Category string
	Limit    int
	Offset   int
}

// EntryFilter for ledger queries. From is inclusive, To is exclusive.
type EntryFilter struct {
	ItemIDs     []id.ID
	From        *time.Time
	To          *time.Time
	DocumentRef string
	// DocumentType restricts DocumentRef lookups to one kind of document.
	DocumentType string
}

// TypeTotal is one row of SumByType. Reversals count negatively.
type TypeTotal struct {
	ItemID   id.ID               `db:"item_id"`
	Type     entity.MovementType `db:"movement_type"`
	Quantity types.Quantity      `db:"quantity"`
	Amount   types.Money         `db:"amount"`
}
