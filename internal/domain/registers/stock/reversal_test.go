package stock_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storeledger/internal/core/apperror"
	"storeledger/internal/core/entity"
	"storeledger/internal/core/types"
	"storeledger/internal/domain/registers/stock"
)

func withRef(r stock.MovementRequest, ref string) stock.MovementRequest {
	r.Meta = entity.EntryMeta{DocumentRef: ref, DocumentType: "PurchaseInvoice"}
	return r
}

func TestReverseDocument(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()
	a := newItem(t, svc, "A")
	b := newItem(t, svc, "B")

	_, err := svc.ApplyMultiMovement(ctx, []stock.MovementRequest{
		withRef(move(a.ID, entity.MovementPurchase, 10, 1), "PI-1"),
		withRef(move(b.ID, entity.MovementPurchase, 4, 1), "PI-1"),
	})
	require.NoError(t, err)

	results, err := svc.ReverseDocument(ctx, "PI-1", day(2), "wrong vendor")
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.True(t, r.Entry.Reversal)
		assert.Equal(t, "PI-1", r.Entry.DocumentRef)
		assert.Equal(t, "wrong vendor", r.Entry.Note)
	}

	assert.Equal(t, entity.Balance{}, balance(t, svc, a.ID))
	assert.Equal(t, entity.Balance{}, balance(t, svc, b.ID))

	entries, err := store.ListEntries(ctx, stock.EntryFilter{DocumentRef: "PI-1"})
	require.NoError(t, err)
	assert.Len(t, entries, 4)

	_, err = svc.ReverseDocument(ctx, "PI-1", day(3), "")
	assert.True(t, apperror.HasCode(err, apperror.CodeAlreadyReversed))

	_, err = svc.ReverseDocument(ctx, "PI-404", day(3), "")
	assert.True(t, apperror.IsNotFound(err))

	_, err = svc.ReverseDocument(ctx, "  ", day(3), "")
	assert.True(t, apperror.IsInvalidMovement(err))
}

func TestReverseDocument_NeedsStockStillOnHand(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	item := newItem(t, svc, "A")

	_, err := svc.ApplyMovement(ctx, withRef(move(item.ID, entity.MovementPurchase, 10, 1), "PI-1"))
	require.NoError(t, err)
	_, err = svc.ApplyMovement(ctx, move(item.ID, entity.MovementTransferMainToSub, 8, 2))
	require.NoError(t, err)

	_, err = svc.ReverseDocument(ctx, "PI-1", day(3), "")
	assert.True(t, apperror.IsInsufficientStock(err))
	assert.Equal(t, entity.Balance{Main: types.Units(2), Sub: types.Units(8)}, balance(t, svc, item.ID))
}

func TestReverseDocument_RejectsBackdating(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	item := newItem(t, svc, "A")

	_, err := svc.ApplyMovement(ctx, withRef(move(item.ID, entity.MovementPurchase, 10, 5), "PI-1"))
	require.NoError(t, err)

	_, err = svc.ReverseDocument(ctx, "PI-1", day(4), "")
	assert.True(t, apperror.IsInvalidMovement(err))
	assert.Equal(t, entity.Balance{Main: types.Units(10)}, balance(t, svc, item.ID))
}

func TestReplaceDocument(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()
	a := newItem(t, svc, "A")
	b := newItem(t, svc, "B")

	_, err := svc.ApplyMovement(ctx, withRef(move(a.ID, entity.MovementPurchase, 10, 1), "PI-1"))
	require.NoError(t, err)

	results, err := svc.ReplaceDocument(ctx, "PI-1", day(2), "amended", []stock.MovementRequest{
		move(a.ID, entity.MovementPurchase, 7, 1),
		move(b.ID, entity.MovementPurchase, 3, 1),
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "PI-1", results[1].Entry.DocumentRef)

	assert.Equal(t, entity.Balance{Main: types.Units(7)}, balance(t, svc, a.ID))
	assert.Equal(t, entity.Balance{Main: types.Units(3)}, balance(t, svc, b.ID))

	// a second amendment cancels the first replacement, not the original
	_, err = svc.ReplaceDocument(ctx, "PI-1", day(3), "", []stock.MovementRequest{
		move(a.ID, entity.MovementPurchase, 1, 1),
	})
	require.NoError(t, err)
	assert.Equal(t, entity.Balance{Main: types.Units(1)}, balance(t, svc, a.ID))
	assert.Equal(t, entity.Balance{}, balance(t, svc, b.ID))

	for _, it := range []*entity.StockItem{a, b} {
		d, err := svc.Verify(ctx, it.ID)
		require.NoError(t, err)
		assert.True(t, d.InSync())
	}

	entries, err := store.ListEntries(ctx, stock.EntryFilter{DocumentRef: "PI-1"})
	require.NoError(t, err)
	assert.Len(t, entries, 7)
}

func TestReplaceDocument_FailureKeepsOriginal(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	item := newItem(t, svc, "A")
	seed(t, svc, item.ID, 0, 5)

	_, err := svc.ApplyMovement(ctx, withRef(move(item.ID, entity.MovementSale, 2, 2), "SI-1"))
	require.NoError(t, err)

	_, err = svc.ReplaceDocument(ctx, "SI-1", day(3), "", []stock.MovementRequest{
		move(item.ID, entity.MovementSale, 9, 2),
	})
	assert.True(t, apperror.IsInsufficientStock(err))
	assert.Equal(t, entity.Balance{Sub: types.Units(3)}, balance(t, svc, item.ID))

	_, err = svc.ReplaceDocument(ctx, "SI-1", day(3), "", []stock.MovementRequest{
		withRef(move(item.ID, entity.MovementSale, 1, 2), "SI-2"),
	})
	assert.True(t, apperror.IsInvalidMovement(err))
}

func TestReplaceDocument_JudgesEndState(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	item := newItem(t, svc, "A")

	_, err := svc.ApplyMovement(ctx, withRef(move(item.ID, entity.MovementPurchase, 10, 1), "PI-1"))
	require.NoError(t, err)
	_, err = svc.ApplyMovement(ctx, move(item.ID, entity.MovementTransferMainToSub, 8, 2))
	require.NoError(t, err)

	// reversing 10 alone would take Main to -8; the new 12 brings it back
	results, err := svc.ReplaceDocument(ctx, "PI-1", day(3), "quantity corrected", []stock.MovementRequest{
		withRef(move(item.ID, entity.MovementPurchase, 12, 1), "PI-1"),
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, entity.Balance{Main: types.Units(4), Sub: types.Units(8)}, balance(t, svc, item.ID))

	d, err := svc.Verify(ctx, item.ID)
	require.NoError(t, err)
	assert.True(t, d.InSync())

	// 4 - 12 + 5 leaves Main at -3
	_, err = svc.ReplaceDocument(ctx, "PI-1", day(4), "", []stock.MovementRequest{
		withRef(move(item.ID, entity.MovementPurchase, 5, 1), "PI-1"),
	})
	require.True(t, apperror.IsInsufficientStock(err))
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, "Main", appErr.Details["store"])
	assert.Equal(t, "4", appErr.Details["available"])
	assert.Equal(t, "3", appErr.Details["shortfall"])
	assert.Equal(t, entity.Balance{Main: types.Units(4), Sub: types.Units(8)}, balance(t, svc, item.ID))
}

func TestReverseDocumentOfType_IgnoresOtherDocuments(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()
	item := newItem(t, svc, "A")

	_, err := svc.ApplyMovement(ctx, withRef(move(item.ID, entity.MovementPurchase, 10, 1), "PI/INV-9"))
	require.NoError(t, err)

	_, err = svc.ReverseDocumentOfType(ctx, "IssueBill", "PI/INV-9", day(2), "")
	assert.True(t, apperror.IsNotFound(err))
	assert.Equal(t, entity.Balance{Main: types.Units(10)}, balance(t, svc, item.ID))

	entries, err := store.ListEntries(ctx, stock.EntryFilter{DocumentRef: "PI/INV-9"})
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	_, err = svc.ReverseDocumentOfType(ctx, "PurchaseInvoice", "PI/INV-9", day(2), "")
	require.NoError(t, err)
	assert.Equal(t, entity.Balance{}, balance(t, svc, item.ID))
}

func TestReplaceDocument_OnlyReversesItsOwnType(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	item := newItem(t, svc, "A")

	_, err := svc.ApplyMovement(ctx, withRef(move(item.ID, entity.MovementPurchase, 10, 1), "DOC-1"))
	require.NoError(t, err)

	line := move(item.ID, entity.MovementPurchase, 2, 1)
	line.Meta = entity.EntryMeta{DocumentRef: "DOC-1", DocumentType: "IssueBill"}
	_, err = svc.ReplaceDocument(ctx, "DOC-1", day(2), "", []stock.MovementRequest{line})
	assert.True(t, apperror.IsNotFound(err))
	assert.Equal(t, entity.Balance{Main: types.Units(10)}, balance(t, svc, item.ID))
}
