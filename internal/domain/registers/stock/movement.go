package stock

import (
	"context"
	"fmt"
	"slices"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"storeledger/internal/core/apperror"
	"storeledger/internal/core/entity"
	"storeledger/internal/core/id"
	"storeledger/internal/core/types"
	"storeledger/pkg/logger"
)

// MovementRequest asks the engine to move Quantity units of an item.
type MovementRequest struct {
	ItemID   id.ID
	Type     entity.MovementType
	Quantity types.Quantity
	Rate     types.Money
	// Date is the business date. Zero means now.
	Date time.Time
	Meta entity.EntryMeta
}

// Validate checks the request without touching storage.
func (r MovementRequest) Validate() error {
	if id.IsNil(r.ItemID) {
		return apperror.NewInvalidMovement("item reference is required")
	}
	if !r.Type.IsValid() {
		return apperror.NewInvalidMovement("unknown movement type").WithDetail("type", string(r.Type))
	}
	if !r.Quantity.IsPositive() {
		return apperror.NewInvalidMovement("quantity must be positive").WithDetail("quantity", r.Quantity.String())
	}
	if r.Rate.IsNegative() {
		return apperror.NewInvalidMovement("rate must not be negative").WithDetail("rate", r.Rate.String())
	}
	return nil
}

// MovementResult is the appended entry and the item snapshot right after it.
type MovementResult struct {
	Entry    entity.LedgerEntry
	Snapshot entity.StockItem
}

// ApplyMovement validates and executes a single movement.
func (s *Service) ApplyMovement(ctx context.Context, req MovementRequest) (MovementResult, error) {
	results, err := s.apply(ctx, []MovementRequest{req}, false)
	if err != nil {
		return MovementResult{}, err
	}
	return results[0], nil
}

// ApplyMultiMovement executes all requests in one transaction: either every
// line is applied or none is. Lines on the same item see earlier lines'
// effects. A failure names the offending line in the error details.
func (s *Service) ApplyMultiMovement(ctx context.Context, reqs []MovementRequest) ([]MovementResult, error) {
	return s.apply(ctx, reqs, true)
}

func (s *Service) apply(ctx context.Context, reqs []MovementRequest, multi bool) (results []MovementResult, err error) {
	ctx, span := tracer.Start(ctx, "stock.apply", trace.WithAttributes(
		attribute.Int("movement.lines", len(reqs)),
	))
	defer span.End()

	started := time.Now()
	kind := movementKind(reqs)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			s.metrics.MovementRejected(kind, errorCode(err))
			return
		}
		s.metrics.MovementApplied(kind, len(reqs), time.Since(started))
	}()

	reqs, err = s.prepare(reqs, multi)
	if err != nil {
		return nil, err
	}
	itemIDs := requestItems(reqs)

	release, err := s.lockItems(ctx, itemIDs)
	if err != nil {
		return nil, err
	}
	defer release()

	err = s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		results, err = s.applyLocked(ctx, reqs, multi)
		return err
	})
	if err != nil {
		if apperror.IsInsufficientStock(err) {
			logger.Warn(ctx, "movement rejected", "lines", len(reqs), "error", err)
		}
		return nil, err
	}

	logger.Info(ctx, "applied stock movements",
		"lines", len(results),
		"items", len(itemIDs),
		"document_ref", reqs[0].Meta.DocumentRef,
	)
	return results, nil
}

// prepare copies reqs, fills missing dates and validates every line.
func (s *Service) prepare(reqs []MovementRequest, multi bool) ([]MovementRequest, error) {
	if len(reqs) == 0 {
		return nil, apperror.NewInvalidMovement("no movement lines")
	}
	reqs = slices.Clone(reqs)
	for i := range reqs {
		if reqs[i].Date.IsZero() {
			reqs[i].Date = s.now()
		}
		if err := reqs[i].Validate(); err != nil {
			return nil, withLine(err, i, multi)
		}
	}
	return reqs, nil
}

// applyLocked runs inside a transaction with every touched item locked:
// re-read snapshots under row lock, re-check sufficiency line by line,
// append the entries and write the snapshots.
func (s *Service) applyLocked(ctx context.Context, reqs []MovementRequest, multi bool) ([]MovementResult, error) {
	p := s.newPosting(ctx, false)
	if err := p.post(ctx, reqs, multi); err != nil {
		return nil, err
	}
	if err := p.flush(ctx); err != nil {
		return nil, err
	}
	return p.results, nil
}

// movementKind labels a call for metrics: the lines' common type, or
// KindMulti when a multi-movement mixes types.
func movementKind(reqs []MovementRequest) entity.MovementType {
	if len(reqs) == 0 {
		return ""
	}
	kind := reqs[0].Type
	for _, r := range reqs[1:] {
		if r.Type != kind {
			return KindMulti
		}
	}
	return kind
}

// requestItems returns the distinct items of reqs in lock order.
func requestItems(reqs []MovementRequest) []id.ID {
	itemIDs := make([]id.ID, 0, len(reqs))
	for _, r := range reqs {
		itemIDs = append(itemIDs, r.ItemID)
	}
	itemIDs = id.Unique(itemIDs)
	id.Sort(itemIDs)
	return itemIDs
}

// withLine tags err with the index of the failing line of a multi-movement.
func withLine(err error, line int, multi bool) error {
	if !multi {
		return err
	}
	if appErr, ok := apperror.AsAppError(err); ok {
		appErr.WithDetail("line", line)
		return err
	}
	return fmt.Errorf("line %d: %w", line, err)
}

func firstLine(reqs []MovementRequest, itemID id.ID) int {
	for i, r := range reqs {
		if r.ItemID == itemID {
			return i
		}
	}
	return -1
}
