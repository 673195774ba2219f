package purchase_invoice

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"storeledger/internal/core/apperror"
	"storeledger/internal/core/entity"
	"storeledger/internal/core/id"
	"storeledger/internal/domain"
	"storeledger/internal/domain/registers/stock"
	"storeledger/pkg/logger"
)

// Ledger is the part of the stock service invoices post through.
type Ledger interface {
	ApplyMultiMovement(ctx context.Context, reqs []stock.MovementRequest) ([]stock.MovementResult, error)
	ReplaceDocument(ctx context.Context, documentRef string, date time.Time, note string, reqs []stock.MovementRequest) ([]stock.MovementResult, error)
	ReverseDocumentOfType(ctx context.Context, documentType, documentRef string, date time.Time, note string) ([]stock.MovementResult, error)
	Entries(ctx context.Context, filter stock.EntryFilter) ([]entity.LedgerEntry, error)
	GetItemByCode(ctx context.Context, code string) (*entity.StockItem, error)
	CreateItem(ctx context.Context, in stock.NewItem) (*entity.StockItem, error)
}

// Posting is a recorded invoice and the movements it produced.
type Posting struct {
	Invoice *Invoice               `json:"invoice"`
	Results []stock.MovementResult `json:"results"`
}

// Service records purchase invoices.
type Service struct {
	ledger Ledger
	hooks  *domain.HookRegistry[*Invoice]
}

// NewService creates a purchase invoice service.
func NewService(ledger Ledger) *Service {
	return &Service{
		ledger: ledger,
		hooks:  domain.NewHookRegistry[*Invoice](),
	}
}

// Hooks returns the hook registry for registering callbacks.
func (s *Service) Hooks() *domain.HookRegistry[*Invoice] {
	return s.hooks
}

// Record posts an invoice as one PURCHASE movement per line, all or nothing.
// Lines naming an unknown item by NewItem register it first. An invoice
// number already present in the ledger is refused; use Amend to change it.
func (s *Service) Record(ctx context.Context, inv *Invoice) (*Posting, error) {
	if err := inv.Validate(); err != nil {
		return nil, err
	}

	existing, err := s.ledger.Entries(ctx, stock.EntryFilter{DocumentRef: inv.Ref()})
	if err != nil {
		return nil, fmt.Errorf("check invoice number: %w", err)
	}
	if len(existing) > 0 {
		return nil, apperror.NewDuplicate("purchase invoice", "number", inv.Number)
	}

	doc, err := s.resolve(ctx, inv)
	if err != nil {
		return nil, err
	}

	if err := s.hooks.Run(ctx, domain.BeforePost, doc); err != nil {
		return nil, err
	}

	results, err := s.ledger.ApplyMultiMovement(ctx, doc.requests())
	if err != nil {
		return nil, err
	}

	if err := s.hooks.Run(ctx, domain.AfterPost, doc); err != nil {
		logger.Warn(ctx, "after-post hook failed", "error", err)
	}

	logger.Info(ctx, "purchase invoice recorded",
		"number", doc.Number,
		"vendor", doc.Vendor,
		"lines", len(doc.Lines),
		"amount", doc.TotalAmount())

	return &Posting{Invoice: doc, Results: results}, nil
}

// Amend replaces a recorded invoice's movements with the ones of inv, in
// one transaction. The invoice number identifies the document. Only the
// end state has to be covered: raising a quantity after part of the
// original moved on is accepted.
func (s *Service) Amend(ctx context.Context, inv *Invoice) (*Posting, error) {
	if err := inv.Validate(); err != nil {
		return nil, err
	}

	doc, err := s.resolve(ctx, inv)
	if err != nil {
		return nil, err
	}

	if err := s.hooks.Run(ctx, domain.BeforePost, doc); err != nil {
		return nil, err
	}

	results, err := s.ledger.ReplaceDocument(ctx, doc.Ref(), time.Time{}, "invoice amended", doc.requests())
	if err != nil {
		return nil, err
	}

	if err := s.hooks.Run(ctx, domain.AfterPost, doc); err != nil {
		logger.Warn(ctx, "after-post hook failed", "error", err)
	}

	logger.Info(ctx, "purchase invoice amended", "number", doc.Number, "lines", len(doc.Lines))
	return &Posting{Invoice: doc, Results: results}, nil
}

// Cancel reverses every movement of the invoice still in effect. Entries
// another kind of document posted under the same reference are untouched.
func (s *Service) Cancel(ctx context.Context, number, reason string) ([]stock.MovementResult, error) {
	if strings.TrimSpace(number) == "" {
		return nil, apperror.NewValidation("invoice number is required").WithDetail("field", "number")
	}
	if reason == "" {
		reason = "invoice cancelled"
	}

	results, err := s.ledger.ReverseDocumentOfType(ctx, DocumentType, Ref(number), time.Time{}, reason)
	if err != nil {
		return nil, err
	}

	doc := &Invoice{Number: strings.TrimSpace(number)}
	if len(results) > 0 {
		doc.Date = results[0].Entry.BusinessDate
		doc.Vendor = results[0].Entry.Counterparty
	}
	if err := s.hooks.Run(ctx, domain.AfterReverse, doc); err != nil {
		logger.Warn(ctx, "after-reverse hook failed", "error", err)
	}

	logger.Info(ctx, "purchase invoice cancelled", "number", doc.Number, "entries", len(results))
	return results, nil
}

// resolve returns a copy of inv with every line's ItemID set.
func (s *Service) resolve(ctx context.Context, inv *Invoice) (*Invoice, error) {
	doc := *inv
	doc.Number = strings.TrimSpace(inv.Number)
	doc.Vendor = strings.TrimSpace(inv.Vendor)
	doc.Lines = slices.Clone(inv.Lines)

	for i := range doc.Lines {
		l := &doc.Lines[i]
		if !id.IsNil(l.ItemID) {
			continue
		}

		if code := strings.TrimSpace(l.ItemCode); code != "" {
			item, err := s.ledger.GetItemByCode(ctx, code)
			switch {
			case err == nil:
				l.ItemID = item.ID
				continue
			case !apperror.IsNotFound(err) || l.NewItem == nil:
				return nil, err
			}
		}

		in := *l.NewItem
		if in.Code == "" {
			in.Code = strings.TrimSpace(l.ItemCode)
		}
		item, err := s.ledger.CreateItem(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("register item on line %d: %w", i+1, err)
		}
		l.ItemID = item.ID
		l.ItemCode = item.Code
	}
	return &doc, nil
}
