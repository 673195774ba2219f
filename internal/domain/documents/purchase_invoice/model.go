// Package purchase_invoice posts vendor purchase invoices into the stock
// ledger as PURCHASE movements into the Main Store.
package purchase_invoice

import (
	"strings"
	"time"

	"storeledger/internal/core/apperror"
	"storeledger/internal/core/entity"
	"storeledger/internal/core/id"
	"storeledger/internal/core/types"
	"storeledger/internal/domain/registers/stock"
)

// DocumentType is recorded on every entry the invoice posts.
const DocumentType = "PurchaseInvoice"

// refPrefix keeps invoice numbers apart from other documents' numbers in
// the ledger's document reference.
const refPrefix = "PI/"

// Invoice is a vendor purchase invoice.
type Invoice struct {
	// Number is the vendor's invoice number.
	Number    string    `json:"number"`
	Date      time.Time `json:"date"`
	Vendor    string    `json:"vendor"`
	PartyName string    `json:"partyName,omitempty"`
	Lines     []Line    `json:"lines"`
}

// Line is one purchased item. The item is identified by ItemID, or by
// ItemCode. With neither, NewItem registers the item before posting.
type Line struct {
	ItemID   id.ID          `json:"itemId,omitempty"`
	ItemCode string         `json:"itemCode,omitempty"`
	NewItem  *stock.NewItem `json:"newItem,omitempty"`

	Quantity types.Quantity `json:"quantity"`
	Rate     types.Money    `json:"rate"`
	Notes    string         `json:"notes,omitempty"`
}

// Amount is quantity × rate.
func (l Line) Amount() types.Money {
	return l.Quantity.Amount(l.Rate)
}

// Ref returns the ledger document reference of invoice number.
func Ref(number string) string {
	return refPrefix + strings.TrimSpace(number)
}

// Ref returns the invoice's ledger document reference.
func (inv *Invoice) Ref() string {
	return Ref(inv.Number)
}

// TotalAmount is the taxable value of the invoice.
func (inv *Invoice) TotalAmount() types.Money {
	var total types.Money
	for _, l := range inv.Lines {
		total = total.Add(l.Amount())
	}
	return total
}

// TotalQuantity sums the line quantities.
func (inv *Invoice) TotalQuantity() types.Quantity {
	var total types.Quantity
	for _, l := range inv.Lines {
		total += l.Quantity
	}
	return total
}

// Validate checks the invoice header and lines.
func (inv *Invoice) Validate() error {
	if strings.TrimSpace(inv.Number) == "" {
		return apperror.NewValidation("invoice number is required").WithDetail("field", "number")
	}
	if strings.TrimSpace(inv.Vendor) == "" {
		return apperror.NewValidation("vendor is required").WithDetail("field", "vendor")
	}
	if len(inv.Lines) == 0 {
		return apperror.NewValidation("at least one line is required").WithDetail("field", "lines")
	}

	for i, l := range inv.Lines {
		if id.IsNil(l.ItemID) && strings.TrimSpace(l.ItemCode) == "" && l.NewItem == nil {
			return apperror.NewValidation("item is required").
				WithDetail("field", "lines").
				WithDetail("lineNo", i+1)
		}
		if !l.Quantity.IsPositive() {
			return apperror.NewInvalidMovement("quantity must be positive").
				WithDetail("quantity", l.Quantity.String()).
				WithDetail("lineNo", i+1)
		}
		if l.Rate.IsNegative() {
			return apperror.NewInvalidMovement("rate must not be negative").
				WithDetail("rate", l.Rate.String()).
				WithDetail("lineNo", i+1)
		}
	}
	return nil
}

// requests builds the PURCHASE movements of the invoice. Lines must have
// their ItemID resolved.
func (inv *Invoice) requests() []stock.MovementRequest {
	reqs := make([]stock.MovementRequest, 0, len(inv.Lines))
	for _, l := range inv.Lines {
		reqs = append(reqs, stock.MovementRequest{
			ItemID:   l.ItemID,
			Type:     entity.MovementPurchase,
			Quantity: l.Quantity,
			Rate:     l.Rate,
			Date:     inv.Date,
			Meta: entity.EntryMeta{
				DocumentRef:  inv.Ref(),
				DocumentType: DocumentType,
				Counterparty: strings.TrimSpace(inv.Vendor),
				Note:         l.Notes,
			},
		})
	}
	return reqs
}
