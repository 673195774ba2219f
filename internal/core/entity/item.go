package entity

import (
	"strings"
	"time"

	"storeledger/internal/core/apperror"
	"storeledger/internal/core/id"
	"storeledger/internal/core/types"
)

// StockItem is a stock-keeping unit together with its quantity snapshot.
// MainQty and SubQty are a cache over the ledger; only the movement engine
// and the repair path write them.
type StockItem struct {
	ID       id.ID  `db:"id" json:"id"`
	Code     string `db:"code" json:"code"`
	Name     string `db:"name" json:"name"`
	Category string `db:"category" json:"category,omitempty"`
	Unit     string `db:"unit" json:"unit,omitempty"`

	MainQty types.Quantity `db:"main_qty" json:"mainQty"`
	SubQty  types.Quantity `db:"sub_qty" json:"subQty"`

	// Version increments on every snapshot write.
	Version        int        `db:"version" json:"version"`
	LastMovementAt *time.Time `db:"last_movement_at" json:"lastMovementAt,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updatedAt"`
}

// NewStockItem creates an item with an empty snapshot.
func NewStockItem(code, name, category, unit string) *StockItem {
	now := time.Now().UTC()
	return &StockItem{
		ID:        id.New(),
		Code:      strings.TrimSpace(code),
		Name:      strings.TrimSpace(name),
		Category:  strings.TrimSpace(category),
		Unit:      strings.TrimSpace(unit),
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// TotalQty is always derived, never stored.
func (i *StockItem) TotalQty() types.Quantity {
	return i.MainQty + i.SubQty
}

// Snapshot returns the item's current store balances.
func (i *StockItem) Snapshot() Balance {
	return Balance{Main: i.MainQty, Sub: i.SubQty}
}

// SetSnapshot writes new balances and bumps the version.
// LastMovementAt only moves forward; backdated movements leave it alone.
func (i *StockItem) SetSnapshot(b Balance, movedAt *time.Time) {
	i.MainQty = b.Main
	i.SubQty = b.Sub
	i.Version++
	if movedAt != nil && (i.LastMovementAt == nil || movedAt.After(*i.LastMovementAt)) {
		i.LastMovementAt = movedAt
	}
	i.UpdatedAt = time.Now().UTC()
}

// Validate checks item invariants that do not need the database.
func (i *StockItem) Validate() error {
	if i.Code == "" {
		return apperror.NewValidation("item code is required").WithDetail("field", "code")
	}
	if i.Name == "" {
		return apperror.NewValidation("item name is required").WithDetail("field", "name")
	}
	if i.MainQty.IsNegative() || i.SubQty.IsNegative() {
		return apperror.NewValidation("item quantities must not be negative")
	}
	return nil
}

// Balance is a pair of store quantities.
type Balance struct {
	Main types.Quantity `json:"main"`
	Sub  types.Quantity `json:"sub"`
}

// Total returns Main + Sub.
func (b Balance) Total() types.Quantity { return b.Main + b.Sub }

// Add applies a delta.
func (b Balance) Add(d Delta) Balance {
	return Balance{Main: b.Main + d.Main, Sub: b.Sub + d.Sub}
}

// AddChecked applies a delta and reports false when a store quantity
// would overflow.
func (b Balance) AddChecked(d Delta) (Balance, bool) {
	main, ok := b.Main.AddChecked(d.Main)
	if !ok {
		return b, false
	}
	sub, ok := b.Sub.AddChecked(d.Sub)
	if !ok {
		return b, false
	}
	return Balance{Main: main, Sub: sub}, true
}

// IsNegative reports whether either store is below zero.
func (b Balance) IsNegative() bool {
	return b.Main.IsNegative() || b.Sub.IsNegative()
}
