package entity

import (
	"time"

	"storeledger/internal/core/id"
	"storeledger/internal/core/types"
)

// EntryMeta is the free-form context recorded with a movement.
type EntryMeta struct {
	// DocumentRef is the source document (invoice number, issue bill number)
	DocumentRef string `json:"documentRef,omitempty"`
	// DocumentType is e.g. "PurchaseInvoice" or "IssueBill"
	DocumentType string `json:"documentType,omitempty"`
	// Counterparty is the vendor, bus, customer or department involved
	Counterparty string `json:"counterparty,omitempty"`
	Note         string `json:"note,omitempty"`
}

// LedgerEntry is an immutable record of one accepted movement.
// Entries are never updated or deleted; a correction is a new entry with
// Reversal set, whose effect is the negation of the original type's delta.
type LedgerEntry struct {
	ID     id.ID        `db:"id" json:"id"`
	ItemID id.ID        `db:"item_id" json:"itemId"`
	Type   MovementType `db:"movement_type" json:"type"`

	// Quantity is always positive; direction comes from Type and Reversal.
	Quantity types.Quantity `db:"quantity" json:"quantity"`
	Rate     types.Money    `db:"rate" json:"rate"`
	Amount   types.Money    `db:"amount" json:"amount"`

	// BusinessDate is the date the movement happened, not when it was recorded.
	BusinessDate time.Time `db:"business_date" json:"businessDate"`

	Reversal bool `db:"reversal" json:"reversal"`

	DocumentRef  string `db:"document_ref" json:"documentRef,omitempty"`
	DocumentType string `db:"document_type" json:"documentType,omitempty"`
	Counterparty string `db:"counterparty" json:"counterparty,omitempty"`
	Note         string `db:"note" json:"note,omitempty"`
	RecordedBy   string `db:"recorded_by" json:"recordedBy,omitempty"`

	// Seq is the append order assigned by the store.
	Seq       int64     `db:"seq" json:"seq"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// NewLedgerEntry builds an entry with a fresh id and amount = quantity × rate.
func NewLedgerEntry(itemID id.ID, t MovementType, q types.Quantity, rate types.Money, date time.Time, meta EntryMeta) LedgerEntry {
	return LedgerEntry{
		ID:           id.New(),
		ItemID:       itemID,
		Type:         t,
		Quantity:     q,
		Rate:         rate,
		Amount:       q.Amount(rate),
		BusinessDate: date,
		DocumentRef:  meta.DocumentRef,
		DocumentType: meta.DocumentType,
		Counterparty: meta.Counterparty,
		Note:         meta.Note,
		CreatedAt:    time.Now().UTC(),
	}
}

// Reverse builds the compensating entry for e.
func (e LedgerEntry) Reverse(date time.Time, note string) LedgerEntry {
	r := NewLedgerEntry(e.ItemID, e.Type, e.Quantity, e.Rate, date, EntryMeta{
		DocumentRef:  e.DocumentRef,
		DocumentType: e.DocumentType,
		Counterparty: e.Counterparty,
		Note:         note,
	})
	r.Amount = e.Amount
	r.Reversal = true
	return r
}

// Delta is the entry's effect on the item's stores.
func (e LedgerEntry) Delta() Delta {
	d := e.Type.Delta(e.Quantity)
	if e.Reversal {
		return d.Neg()
	}
	return d
}

// SignedQuantity is the quantity counted toward the entry's type total:
// positive for a normal entry, negative for a reversal.
func (e LedgerEntry) SignedQuantity() types.Quantity {
	if e.Reversal {
		return e.Quantity.Neg()
	}
	return e.Quantity
}

// SignedAmount mirrors SignedQuantity for the amount.
func (e LedgerEntry) SignedAmount() types.Money {
	if e.Reversal {
		return e.Amount.Neg()
	}
	return e.Amount
}
