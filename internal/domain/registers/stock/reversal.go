package stock

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"storeledger/internal/core/apperror"
	"storeledger/internal/core/entity"
	"storeledger/internal/core/id"
	"storeledger/pkg/logger"
)

// ReverseDocument writes one compensating entry for every entry of
// documentRef that is still in effect, in one transaction. Reversing a
// purchase needs the quantity to still be in the Main Store; the same
// sufficiency rules as live movements apply.
func (s *Service) ReverseDocument(ctx context.Context, documentRef string, date time.Time, note string) ([]MovementResult, error) {
	return s.ReverseDocumentOfType(ctx, "", documentRef, date, note)
}

// ReverseDocumentOfType is ReverseDocument restricted to entries posted by
// documentType. Entries under documentRef that another kind of document
// posted are not touched; if there are only such entries the document is
// NOT_FOUND. An empty documentType matches any.
func (s *Service) ReverseDocumentOfType(ctx context.Context, documentType, documentRef string, date time.Time, note string) (results []MovementResult, err error) {
	ctx, span := tracer.Start(ctx, "stock.ReverseDocument")
	defer span.End()

	started := time.Now()
	defer func() {
		if err != nil {
			s.metrics.MovementRejected(KindReversal, errorCode(err))
			return
		}
		s.metrics.MovementApplied(KindReversal, len(results), time.Since(started))
	}()

	documentRef = strings.TrimSpace(documentRef)
	if documentRef == "" {
		return nil, apperror.NewInvalidMovement("document reference is required")
	}
	if date.IsZero() {
		date = s.now()
	}
	filter := EntryFilter{DocumentRef: documentRef, DocumentType: documentType}

	itemIDs, err := s.documentItems(ctx, filter)
	if err != nil {
		return nil, err
	}

	release, err := s.lockItems(ctx, itemIDs)
	if err != nil {
		return nil, err
	}
	defer release()

	err = s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		p := s.newPosting(ctx, false)
		if err := s.reverseInto(ctx, p, filter, date, note); err != nil {
			return err
		}
		if err := p.flush(ctx); err != nil {
			return err
		}
		results = p.results
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "reversed document", "document_ref", documentRef, "entries", len(results))
	return results, nil
}

// ReplaceDocument reverses what documentRef currently has in effect and
// applies reqs in its place, all in one transaction. Used when a posted
// document is amended. Lines without a document reference get documentRef;
// lines without a document type get the first line's type, and only
// entries of that type are reversed.
//
// Reversal and replacement are judged together: a store may dip below zero
// between the two, but every touched store must be non-negative at commit.
// Raising an invoice's quantity after part of it moved on therefore works.
func (s *Service) ReplaceDocument(ctx context.Context, documentRef string, date time.Time, note string, reqs []MovementRequest) (results []MovementResult, err error) {
	ctx, span := tracer.Start(ctx, "stock.ReplaceDocument")
	defer span.End()

	started := time.Now()
	defer func() {
		if err != nil {
			s.metrics.MovementRejected(KindReplacement, errorCode(err))
			return
		}
		s.metrics.MovementApplied(KindReplacement, len(results), time.Since(started))
	}()

	documentRef = strings.TrimSpace(documentRef)
	if documentRef == "" {
		return nil, apperror.NewInvalidMovement("document reference is required")
	}
	if date.IsZero() {
		date = s.now()
	}

	reqs, err = s.prepare(reqs, true)
	if err != nil {
		return nil, err
	}
	documentType := reqs[0].Meta.DocumentType
	for i := range reqs {
		if reqs[i].Meta.DocumentRef == "" {
			reqs[i].Meta.DocumentRef = documentRef
		}
		if reqs[i].Meta.DocumentType == "" {
			reqs[i].Meta.DocumentType = documentType
		}
		if reqs[i].Meta.DocumentRef != documentRef || reqs[i].Meta.DocumentType != documentType {
			return nil, apperror.NewInvalidMovement("line belongs to another document").WithDetail("line", i)
		}
	}
	filter := EntryFilter{DocumentRef: documentRef, DocumentType: documentType}

	docItems, err := s.documentItems(ctx, filter)
	if err != nil {
		return nil, err
	}
	itemIDs := id.Unique(append(docItems, requestItems(reqs)...))
	id.Sort(itemIDs)

	release, err := s.lockItems(ctx, itemIDs)
	if err != nil {
		return nil, err
	}
	defer release()

	err = s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		p := s.newPosting(ctx, true)
		if err := s.reverseInto(ctx, p, filter, date, note); err != nil {
			return err
		}
		reversed := len(p.results)
		if err := p.post(ctx, reqs, true); err != nil {
			return err
		}
		if err := p.flush(ctx); err != nil {
			return err
		}
		results = p.results[reversed:]
		return nil
	})
	if err != nil {
		if apperror.IsInsufficientStock(err) {
			logger.Warn(ctx, "replacement rejected", "document_ref", documentRef, "error", err)
		}
		return nil, err
	}

	logger.Info(ctx, "replaced document", "document_ref", documentRef, "lines", len(results))
	return results, nil
}

// documentItems returns the items touched by the filtered document, in lock
// order. Entries are read again under lock by the caller.
func (s *Service) documentItems(ctx context.Context, filter EntryFilter) ([]id.ID, error) {
	var entries []entity.LedgerEntry
	if err := s.txm.ReadOnly(ctx, func(ctx context.Context) error {
		var err error
		entries, err = s.repo.ListEntries(ctx, filter)
		return err
	}); err != nil {
		return nil, fmt.Errorf("list document entries: %w", err)
	}
	if len(entries) == 0 {
		return nil, apperror.NewNotFound("document", filter.DocumentRef)
	}

	itemIDs := make([]id.ID, 0, len(entries))
	for _, e := range entries {
		itemIDs = append(itemIDs, e.ItemID)
	}
	itemIDs = id.Unique(itemIDs)
	id.Sort(itemIDs)
	return itemIDs, nil
}

// reverseInto queues a reversal of every live entry matching filter on p.
// Runs inside the caller's transaction with item locks held.
func (s *Service) reverseInto(ctx context.Context, p *posting, filter EntryFilter, date time.Time, note string) error {
	entries, err := s.repo.ListEntries(ctx, filter)
	if err != nil {
		return fmt.Errorf("list document entries: %w", err)
	}
	if len(entries) == 0 {
		return apperror.NewNotFound("document", filter.DocumentRef)
	}

	live := liveEntries(entries)
	if len(live) == 0 {
		return apperror.NewAlreadyReversed(filter.DocumentRef)
	}

	for _, e := range live {
		if date.Before(e.BusinessDate) {
			return apperror.NewInvalidMovement("reversal date precedes the original entry").
				WithDetail("document_ref", filter.DocumentRef).
				WithDetail("entry_date", e.BusinessDate)
		}
	}

	for _, e := range live {
		item, err := p.item(ctx, e.ItemID)
		if err != nil {
			return err
		}
		if err := p.add(item, e.Reverse(date, note)); err != nil {
			if appErr, ok := apperror.AsAppError(err); ok {
				appErr.WithDetail("document_ref", filter.DocumentRef)
			}
			return err
		}
	}
	return nil
}

// liveEntries replays a document's entries in append order and returns the
// ones not cancelled by a later reversal.
func liveEntries(entries []entity.LedgerEntry) []entity.LedgerEntry {
	ordered := slices.Clone(entries)
	slices.SortStableFunc(ordered, func(a, b entity.LedgerEntry) int {
		return cmp.Compare(a.Seq, b.Seq)
	})

	live := make([]entity.LedgerEntry, 0, len(ordered))
	for _, e := range ordered {
		if !e.Reversal {
			live = append(live, e)
			continue
		}
		for i, l := range live {
			if l.ItemID == e.ItemID && l.Type == e.Type && l.Quantity == e.Quantity && l.Amount.Equal(e.Amount) {
				live = append(live[:i], live[i+1:]...)
				break
			}
		}
	}
	return live
}

func errorCode(err error) string {
	if appErr, ok := apperror.AsAppError(err); ok {
		return appErr.Code
	}
	return apperror.CodeInternal
}
