package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storeledger/internal/core/apperror"
	"storeledger/internal/core/entity"
	"storeledger/internal/core/types"
	"storeledger/internal/domain/registers/stock"
)

func day(d int) time.Time {
	return time.Date(2024, time.March, d, 10, 0, 0, 0, time.UTC)
}

func TestStore_CreateAndGetItem(t *testing.T) {
	ctx := context.Background()
	s := New()

	item := entity.NewStockItem("RM-00001", "Brake pad", "Spare Part", "pcs")
	require.NoError(t, s.CreateItem(ctx, item))

	got, err := s.GetItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, "Brake pad", got.Name)

	byCode, err := s.GetItemByCode(ctx, " RM-00001 ")
	require.NoError(t, err)
	assert.Equal(t, item.ID, byCode.ID)

	// returned items are copies
	got.MainQty = types.Units(99)
	again, err := s.GetItem(ctx, item.ID)
	require.NoError(t, err)
	assert.True(t, again.MainQty.IsZero())

	dup := entity.NewStockItem("RM-00001", "Other", "", "")
	err = s.CreateItem(ctx, dup)
	assert.Equal(t, apperror.CodeDuplicate, err.(*apperror.AppError).Code)
}

func TestStore_GetItem_NotFound(t *testing.T) {
	s := New()
	_, err := s.GetItem(context.Background(), entity.NewStockItem("x", "x", "", "").ID)
	assert.True(t, apperror.IsNotFound(err))
}

func TestStore_RollbackDiscardsStagedWrites(t *testing.T) {
	ctx := context.Background()
	s := New()
	item := entity.NewStockItem("RM-00001", "Bolt", "", "pcs")
	require.NoError(t, s.CreateItem(ctx, item))

	boom := errors.New("boom")
	err := s.RunInTransaction(ctx, func(ctx context.Context) error {
		locked, err := s.GetItemForUpdate(ctx, item.ID)
		require.NoError(t, err)
		locked.SetSnapshot(entity.Balance{Main: types.Units(10)}, nil)
		require.NoError(t, s.SaveSnapshot(ctx, locked))

		e := entity.NewLedgerEntry(item.ID, entity.MovementPurchase, types.Units(10), types.MustMoney("1"), day(1), entity.EntryMeta{})
		require.NoError(t, s.AppendEntries(ctx, []entity.LedgerEntry{e}))

		// visible inside the transaction
		inside, err := s.GetItem(ctx, item.ID)
		require.NoError(t, err)
		assert.Equal(t, types.Units(10), inside.MainQty)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := s.GetItem(ctx, item.ID)
	require.NoError(t, err)
	assert.True(t, got.MainQty.IsZero())

	entries, err := s.ListEntries(ctx, stock.EntryFilter{})
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestStore_GetItemForUpdate_RequiresTransaction(t *testing.T) {
	ctx := context.Background()
	s := New()
	item := entity.NewStockItem("RM-00001", "Bolt", "", "pcs")
	require.NoError(t, s.CreateItem(ctx, item))

	_, err := s.GetItemForUpdate(ctx, item.ID)
	assert.ErrorIs(t, err, ErrNoTransaction)

	err = s.ReadOnly(ctx, func(ctx context.Context) error {
		_, err := s.GetItemForUpdate(ctx, item.ID)
		return err
	})
	assert.ErrorIs(t, err, ErrNoTransaction)
}

func TestStore_ListEntries_OrderAndFilter(t *testing.T) {
	ctx := context.Background()
	s := New()
	a := entity.NewStockItem("A", "A", "", "")
	b := entity.NewStockItem("B", "B", "", "")
	require.NoError(t, s.CreateItem(ctx, a))
	require.NoError(t, s.CreateItem(ctx, b))

	mk := func(item *entity.StockItem, d int, ref string) entity.LedgerEntry {
		return entity.NewLedgerEntry(item.ID, entity.MovementPurchase, types.Units(1), types.MustMoney("2"), day(d), entity.EntryMeta{DocumentRef: ref})
	}
	// appended out of date order
	require.NoError(t, s.AppendEntries(ctx, []entity.LedgerEntry{mk(a, 3, "P1"), mk(b, 1, "P2")}))
	require.NoError(t, s.AppendEntries(ctx, []entity.LedgerEntry{mk(a, 1, "P3"), mk(a, 3, "P4")}))

	all, err := s.ListEntries(ctx, stock.EntryFilter{})
	require.NoError(t, err)
	require.Len(t, all, 4)
	refs := []string{all[0].DocumentRef, all[1].DocumentRef, all[2].DocumentRef, all[3].DocumentRef}
	assert.Equal(t, []string{"P2", "P3", "P1", "P4"}, refs)
	assert.Equal(t, int64(1), all[2].Seq)
	assert.Equal(t, int64(4), all[3].Seq)

	from, to := day(2), day(4)
	ranged, err := s.ListEntries(ctx, stock.EntryFilter{From: &from, To: &to})
	require.NoError(t, err)
	assert.Len(t, ranged, 2)

	doc, err := s.ListEntries(ctx, stock.EntryFilter{DocumentRef: "P2"})
	require.NoError(t, err)
	require.Len(t, doc, 1)
	assert.Equal(t, b.ID, doc[0].ItemID)
}

func TestStore_ListEntries_DocumentType(t *testing.T) {
	ctx := context.Background()
	s := New()
	item := entity.NewStockItem("A", "A", "", "")
	require.NoError(t, s.CreateItem(ctx, item))

	e := entity.NewLedgerEntry(item.ID, entity.MovementPurchase, types.Units(1), types.MustMoney("2"), day(1),
		entity.EntryMeta{DocumentRef: "PI/INV-9", DocumentType: "PurchaseInvoice"})
	require.NoError(t, s.AppendEntries(ctx, []entity.LedgerEntry{e}))

	got, err := s.ListEntries(ctx, stock.EntryFilter{DocumentRef: "PI/INV-9", DocumentType: "PurchaseInvoice"})
	require.NoError(t, err)
	assert.Len(t, got, 1)

	got, err = s.ListEntries(ctx, stock.EntryFilter{DocumentRef: "PI/INV-9", DocumentType: "IssueBill"})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestStore_SumByType_CountsReversalsNegatively(t *testing.T) {
	ctx := context.Background()
	s := New()
	item := entity.NewStockItem("A", "A", "", "")
	require.NoError(t, s.CreateItem(ctx, item))

	p := entity.NewLedgerEntry(item.ID, entity.MovementPurchase, types.Units(10), types.MustMoney("3"), day(1), entity.EntryMeta{})
	p2 := entity.NewLedgerEntry(item.ID, entity.MovementPurchase, types.Units(4), types.MustMoney("3"), day(2), entity.EntryMeta{})
	require.NoError(t, s.AppendEntries(ctx, []entity.LedgerEntry{p, p2, p2.Reverse(day(3), "")}))

	totals, err := s.SumByType(ctx, stock.EntryFilter{})
	require.NoError(t, err)
	require.Len(t, totals, 1)
	assert.Equal(t, types.Units(10), totals[0].Quantity)
	assert.Equal(t, "30", totals[0].Amount.String())
}

func TestStore_AppendEntries_AllOrNothing(t *testing.T) {
	ctx := context.Background()
	s := New()
	item := entity.NewStockItem("A", "A", "", "")
	require.NoError(t, s.CreateItem(ctx, item))

	ok := entity.NewLedgerEntry(item.ID, entity.MovementPurchase, types.Units(1), types.MustMoney("1"), day(1), entity.EntryMeta{})
	orphan := entity.NewLedgerEntry(entity.NewStockItem("B", "B", "", "").ID, entity.MovementPurchase, types.Units(1), types.MustMoney("1"), day(1), entity.EntryMeta{})

	err := s.AppendEntries(ctx, []entity.LedgerEntry{ok, orphan})
	assert.True(t, apperror.IsNotFound(err))

	entries, err := s.ListEntries(ctx, stock.EntryFilter{})
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestStore_ListItems_Paging(t *testing.T) {
	ctx := context.Background()
	s := New()
	for _, code := range []string{"C", "A", "B"} {
		require.NoError(t, s.CreateItem(ctx, entity.NewStockItem(code, code, "tyre", "")))
	}
	require.NoError(t, s.CreateItem(ctx, entity.NewStockItem("D", "D", "lubricant", "")))

	page, err := s.ListItems(ctx, stock.ItemFilter{Category: "Tyre", Limit: 2})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "A", page[0].Code)
	assert.Equal(t, "B", page[1].Code)

	rest, err := s.ListItems(ctx, stock.ItemFilter{Category: "tyre", Limit: 2, Offset: 2})
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, "C", rest[0].Code)

	none, err := s.ListItems(ctx, stock.ItemFilter{Offset: 10})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestStore_ReadOnlyInsideWriteTransaction(t *testing.T) {
	ctx := context.Background()
	s := New()
	item := entity.NewStockItem("A", "A", "", "")

	err := s.RunInTransaction(ctx, func(ctx context.Context) error {
		require.NoError(t, s.CreateItem(ctx, item))
		return s.ReadOnly(ctx, func(ctx context.Context) error {
			_, err := s.GetItemByCode(ctx, "A")
			return err
		})
	})
	require.NoError(t, err)
}
