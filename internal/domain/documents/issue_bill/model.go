// Package issue_bill posts issue bills: stock handed from the Main Store to
// the Sub Store, or out of the Sub Store to a user or a sale.
package issue_bill

import (
	"fmt"
	"strings"
	"time"

	"storeledger/internal/core/apperror"
	"storeledger/internal/core/entity"
	"storeledger/internal/core/id"
	"storeledger/internal/core/types"
	"storeledger/internal/domain/registers/stock"
)

// DocumentType is recorded on every entry the bill posts.
const DocumentType = "IssueBill"

// IssueType says where issued stock goes.
type IssueType string

const (
	// IssueMainToSub moves stock from the Main Store into the Sub Store.
	IssueMainToSub IssueType = "MAIN_TO_SUB"
	// IssueSubToUser hands stock from the Sub Store to a user for consumption.
	IssueSubToUser IssueType = "SUB_TO_USER"
	// IssueSubToSale sells stock out of the Sub Store.
	IssueSubToSale IssueType = "SUB_TO_SALE"
)

// MovementType maps the issue type to the ledger movement it posts.
func (t IssueType) MovementType() (entity.MovementType, error) {
	switch t {
	case IssueMainToSub:
		return entity.MovementTransferMainToSub, nil
	case IssueSubToUser:
		return entity.MovementConsumption, nil
	case IssueSubToSale:
		return entity.MovementSale, nil
	}
	return "", apperror.NewValidation(fmt.Sprintf("unknown issue type %q", t)).WithDetail("field", "type")
}

// Bill is an issue bill.
type Bill struct {
	// Number is assigned on Create.
	Number     string    `json:"number"`
	Date       time.Time `json:"date"`
	Department string    `json:"department"`
	Type       IssueType `json:"type"`
	IssuedTo   string    `json:"issuedTo,omitempty"`
	IssuedBy   string    `json:"issuedBy,omitempty"`
	Lines      []Line    `json:"lines"`
}

// Line is one issued item.
type Line struct {
	ItemID   id.ID          `json:"itemId"`
	Quantity types.Quantity `json:"quantity"`
	Rate     types.Money    `json:"rate"`
}

// Validate checks the bill header and lines.
func (b *Bill) Validate() error {
	if strings.TrimSpace(b.Department) == "" {
		return apperror.NewValidation("department is required").WithDetail("field", "department")
	}
	if _, err := b.Type.MovementType(); err != nil {
		return err
	}
	if b.Type != IssueMainToSub && strings.TrimSpace(b.IssuedTo) == "" {
		return apperror.NewValidation("issued to is required").WithDetail("field", "issuedTo")
	}
	if len(b.Lines) == 0 {
		return apperror.NewValidation("at least one line is required").WithDetail("field", "lines")
	}
	for i, l := range b.Lines {
		if id.IsNil(l.ItemID) {
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

// Counterparty is who received the stock: the user, or the department for
// internal transfers.
func (b *Bill) Counterparty() string {
	if to := strings.TrimSpace(b.IssuedTo); to != "" {
		return to
	}
	return strings.TrimSpace(b.Department)
}

func (b *Bill) note() string {
	by := strings.TrimSpace(b.IssuedBy)
	switch {
	case by != "" && strings.TrimSpace(b.IssuedTo) != "":
		return fmt.Sprintf("Issued by %s to %s", by, strings.TrimSpace(b.IssuedTo))
	case by != "":
		return "Issued by " + by
	case strings.TrimSpace(b.IssuedTo) != "":
		return "Issued to " + strings.TrimSpace(b.IssuedTo)
	}
	return ""
}

func (b *Bill) requests() ([]stock.MovementRequest, error) {
	mt, err := b.Type.MovementType()
	if err != nil {
		return nil, err
	}
	meta := entity.EntryMeta{
		DocumentRef:  b.Number,
		DocumentType: DocumentType,
		Counterparty: b.Counterparty(),
		Note:         b.note(),
	}

	reqs := make([]stock.MovementRequest, 0, len(b.Lines))
	for _, l := range b.Lines {
		reqs = append(reqs, stock.MovementRequest{
			ItemID:   l.ItemID,
			Type:     mt,
			Quantity: l.Quantity,
			Rate:     l.Rate,
			Date:     b.Date,
			Meta:     meta,
		})
	}
	return reqs, nil
}
