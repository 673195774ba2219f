package issue_bill

import (
	"context"
	"fmt"
	"strings"
	"time"

	"storeledger/internal/core/apperror"
	"storeledger/internal/core/entity"
	"storeledger/internal/core/numerator"
	"storeledger/internal/domain"
	"storeledger/internal/domain/registers/stock"
	"storeledger/pkg/logger"
)

// Ledger is the part of the stock service issue bills post through.
type Ledger interface {
	ApplyMultiMovement(ctx context.Context, reqs []stock.MovementRequest) ([]stock.MovementResult, error)
	ReverseDocumentOfType(ctx context.Context, documentType, documentRef string, date time.Time, note string) ([]stock.MovementResult, error)
	Entries(ctx context.Context, filter stock.EntryFilter) ([]entity.LedgerEntry, error)
}

// Service creates and cancels issue bills.
type Service struct {
	ledger    Ledger
	numerator numerator.Generator
	strategy  numerator.Strategy
	hooks     *domain.HookRegistry[*Bill]
	now       func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithStrategy overrides NumeratorStrategy.
func WithStrategy(st numerator.Strategy) Option {
	return func(s *Service) { s.strategy = st }
}

// WithClock replaces time.Now for defaulting bill dates.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates an issue bill service.
func NewService(ledger Ledger, gen numerator.Generator, opts ...Option) *Service {
	s := &Service{
		ledger:    ledger,
		numerator: gen,
		strategy:  NumeratorStrategy,
		hooks:     domain.NewHookRegistry[*Bill](),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Hooks returns the hook registry for registering callbacks.
func (s *Service) Hooks() *domain.HookRegistry[*Bill] {
	return s.hooks
}

// Create numbers the bill and posts all its lines as one multi-movement.
// The number is allocated before posting, so a rejected bill leaves a gap
// in the sequence. A number already present in the ledger, under any
// document type, is refused.
func (s *Service) Create(ctx context.Context, bill *Bill) ([]stock.MovementResult, error) {
	if err := bill.Validate(); err != nil {
		return nil, err
	}
	if bill.Date.IsZero() {
		bill.Date = s.now()
	}

	if err := s.hooks.Run(ctx, domain.BeforePost, bill); err != nil {
		return nil, err
	}

	bill.Number = strings.TrimSpace(bill.Number)
	if bill.Number == "" {
		number, err := s.numerator.GetNextNumber(ctx, numerator.DocumentConfig(NumberPrefix),
			&numerator.Options{Strategy: s.strategy}, bill.Date)
		if err != nil {
			return nil, fmt.Errorf("generate number: %w", err)
		}
		bill.Number = number
	}

	existing, err := s.ledger.Entries(ctx, stock.EntryFilter{DocumentRef: bill.Number})
	if err != nil {
		return nil, fmt.Errorf("check bill number: %w", err)
	}
	if len(existing) > 0 {
		return nil, apperror.NewDuplicate("issue bill", "number", bill.Number)
	}

	reqs, err := bill.requests()
	if err != nil {
		return nil, err
	}
	results, err := s.ledger.ApplyMultiMovement(ctx, reqs)
	if err != nil {
		return nil, err
	}

	if err := s.hooks.Run(ctx, domain.AfterPost, bill); err != nil {
		logger.Warn(ctx, "after-post hook failed", "error", err)
	}

	logger.Info(ctx, "issue bill created",
		"number", bill.Number,
		"type", bill.Type,
		"department", bill.Department,
		"lines", len(bill.Lines))

	return results, nil
}

// Cancel reverses the bill's movements. Cancelling a sale or consumption
// puts the stock back into the Sub Store. Only entries posted by an issue
// bill are reversed; another document's number is NOT_FOUND.
func (s *Service) Cancel(ctx context.Context, number, reason string) ([]stock.MovementResult, error) {
	number = strings.TrimSpace(number)
	if number == "" {
		return nil, apperror.NewValidation("bill number is required").WithDetail("field", "number")
	}
	if reason == "" {
		reason = "issue bill cancelled"
	}

	results, err := s.ledger.ReverseDocumentOfType(ctx, DocumentType, number, time.Time{}, reason)
	if err != nil {
		return nil, err
	}

	bill := &Bill{Number: number}
	if len(results) > 0 {
		bill.Date = results[0].Entry.BusinessDate
		bill.IssuedTo = results[0].Entry.Counterparty
	}
	if err := s.hooks.Run(ctx, domain.AfterReverse, bill); err != nil {
		logger.Warn(ctx, "after-reverse hook failed", "error", err)
	}

	logger.Info(ctx, "issue bill cancelled", "number", number, "entries", len(results))
	return results, nil
}
