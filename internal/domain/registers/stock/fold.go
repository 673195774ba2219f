package stock

import (
	"storeledger/internal/core/apperror"
	"storeledger/internal/core/entity"
	"storeledger/internal/core/types"
)

// Apply returns the balance after entry e. A draw larger than the store
// holds fails with INSUFFICIENT_STOCK and b is left as it was; a sum that
// would overflow a store fails with INVALID_MOVEMENT.
//
// Live movements, reversals and the repair path all derive balances from
// entity.LedgerEntry.Delta, so they cannot disagree about a movement's effect.
func Apply(b entity.Balance, e entity.LedgerEntry) (entity.Balance, error) {
	next, err := ApplyNet(b, e)
	if err != nil {
		return b, err
	}
	d := e.Delta()
	if next.Main.IsNegative() {
		return b, shortfall(e, entity.StoreMain, d.Main.Neg(), b.Main)
	}
	if next.Sub.IsNegative() {
		return b, shortfall(e, entity.StoreSub, d.Sub.Neg(), b.Sub)
	}
	return next, nil
}

// ApplyNet is Apply without the sufficiency check: an intermediate negative
// store is allowed. Used when several entries commit together and only the
// combined result has to be non-negative. Overflow still fails.
func ApplyNet(b entity.Balance, e entity.LedgerEntry) (entity.Balance, error) {
	next, ok := b.AddChecked(e.Delta())
	if !ok {
		return b, apperror.NewInvalidMovement("quantity exceeds the storable range").
			WithDetail("item_id", e.ItemID.String()).
			WithDetail("movement_type", string(e.Type)).
			WithDetail("quantity", e.Quantity.String())
	}
	return next, nil
}

// Fold replays entries on top of start without sufficiency checks.
// It is the rebuild path: the ledger is authoritative even if its history
// would have been rejected live.
func Fold(start entity.Balance, entries []entity.LedgerEntry) entity.Balance {
	b := start
	for _, e := range entries {
		b = b.Add(e.Delta())
	}
	return b
}

func shortfall(e entity.LedgerEntry, store entity.Store, requested, available types.Quantity) error {
	return apperror.NewInsufficientStock(
		e.ItemID.String(),
		string(store),
		requested.String(),
		available.String(),
		(requested-available).String(),
	).WithDetail("movement_type", string(e.Type))
}

// netShortfall reports a store left negative by a group of entries that
// commit together: requested is the group's net draw on the store.
func netShortfall(item *entity.StockItem, store entity.Store, start, final types.Quantity) error {
	return apperror.NewInsufficientStock(
		item.ID.String(),
		string(store),
		(start-final).String(),
		start.String(),
		final.Neg().String(),
	).WithDetail("item_code", item.Code)
}

// Totals are per-type lifetime (or per-period) sums for one item.
type Totals struct {
	PurchaseQty    types.Quantity `json:"purchaseQty"`
	TransferQty    types.Quantity `json:"transferQty"`
	ConsumptionQty types.Quantity `json:"consumptionQty"`
	SaleQty        types.Quantity `json:"saleQty"`

	PurchaseAmount    types.Money `json:"purchaseAmount"`
	TransferAmount    types.Money `json:"transferAmount"`
	ConsumptionAmount types.Money `json:"consumptionAmount"`
	SaleAmount        types.Money `json:"saleAmount"`
}

// Add accumulates a signed quantity and amount for movement type mt.
func (t *Totals) Add(mt entity.MovementType, q types.Quantity, amount types.Money) {
	switch mt {
	case entity.MovementPurchase:
		t.PurchaseQty += q
		t.PurchaseAmount = t.PurchaseAmount.Add(amount)
	case entity.MovementTransferMainToSub:
		t.TransferQty += q
		t.TransferAmount = t.TransferAmount.Add(amount)
	case entity.MovementConsumption:
		t.ConsumptionQty += q
		t.ConsumptionAmount = t.ConsumptionAmount.Add(amount)
	case entity.MovementSale:
		t.SaleQty += q
		t.SaleAmount = t.SaleAmount.Add(amount)
	}
}

// AddEntry accumulates e with reversals counted negatively.
func (t *Totals) AddEntry(e entity.LedgerEntry) {
	t.Add(e.Type, e.SignedQuantity(), e.SignedAmount())
}

// Balance derives store balances from the totals:
// main = purchased - transferred, sub = transferred - (consumed + sold).
func (t Totals) Balance() entity.Balance {
	return entity.Balance{}.
		Add(entity.MovementPurchase.Delta(t.PurchaseQty)).
		Add(entity.MovementTransferMainToSub.Delta(t.TransferQty)).
		Add(entity.MovementConsumption.Delta(t.ConsumptionQty)).
		Add(entity.MovementSale.Delta(t.SaleQty))
}

// AmountDelta is the change in stock value these totals represent:
// purchases add, transfers, consumption and sales subtract.
func (t Totals) AmountDelta() types.Money {
	return t.PurchaseAmount.
		Sub(t.TransferAmount).
		Sub(t.ConsumptionAmount).
		Sub(t.SaleAmount)
}
