// Package entity provides core ledger entities.
package entity

import (
	"storeledger/internal/core/types"
)

// MovementType is the reason an item's stock changed.
type MovementType string

const (
	// MovementPurchase receives stock into the Main Store.
	MovementPurchase MovementType = "PURCHASE"
	// MovementTransferMainToSub moves stock from Main Store to Sub Store.
	MovementTransferMainToSub MovementType = "TRANSFER_MAIN_TO_SUB"
	// MovementConsumption draws stock from Sub Store for internal use.
	MovementConsumption MovementType = "CONSUMPTION"
	// MovementSale draws stock from Sub Store for a sale.
	MovementSale MovementType = "SALE"
)

// MovementTypes lists every movement type in report column order.
var MovementTypes = []MovementType{
	MovementPurchase,
	MovementTransferMainToSub,
	MovementConsumption,
	MovementSale,
}

// IsValid reports whether t is one of the enumerated movement types.
func (t MovementType) IsValid() bool {
	switch t {
	case MovementPurchase, MovementTransferMainToSub, MovementConsumption, MovementSale:
		return true
	}
	return false
}

// Store is one of the two holding locations of an item.
type Store string

const (
	StoreMain Store = "Main"
	StoreSub  Store = "Sub"
)

// Delta is the effect of a movement on an item's two stores.
type Delta struct {
	Main types.Quantity
	Sub  types.Quantity
}

// Neg returns the compensating delta.
func (d Delta) Neg() Delta {
	return Delta{Main: d.Main.Neg(), Sub: d.Sub.Neg()}
}

// Delta returns the store effect of moving q units with this type.
// Unknown types have no effect; callers validate with IsValid first.
func (t MovementType) Delta(q types.Quantity) Delta {
	switch t {
	case MovementPurchase:
		return Delta{Main: q}
	case MovementTransferMainToSub:
		return Delta{Main: q.Neg(), Sub: q}
	case MovementConsumption, MovementSale:
		return Delta{Sub: q.Neg()}
	}
	return Delta{}
}
