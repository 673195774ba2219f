package purchase_invoice_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storeledger/internal/core/apperror"
	"storeledger/internal/core/entity"
	"storeledger/internal/core/numerator"
	"storeledger/internal/core/types"
	"storeledger/internal/domain"
	pi "storeledger/internal/domain/documents/purchase_invoice"
	"storeledger/internal/domain/registers/stock"
	"storeledger/internal/infrastructure/storage/memory"
)

var invoiceDate = time.Date(2024, time.March, 4, 10, 0, 0, 0, time.UTC)

func setup(t *testing.T) (*pi.Service, *stock.Service) {
	t.Helper()
	store := memory.New()
	ledger := stock.NewService(store, store,
		stock.WithNumerator(&numerator.MockGenerator{}),
		stock.WithClock(func() time.Time { return invoiceDate.Add(24 * time.Hour) }),
	)
	return pi.NewService(ledger), ledger
}

func item(t *testing.T, ledger *stock.Service, code string) *entity.StockItem {
	t.Helper()
	it, err := ledger.CreateItem(context.Background(), stock.NewItem{Code: code, Name: "Item " + code})
	require.NoError(t, err)
	return it
}

func TestRecord_PostsPurchases(t *testing.T) {
	svc, ledger := setup(t)
	ctx := context.Background()
	bolt := item(t, ledger, "HW-00001")

	posting, err := svc.Record(ctx, &pi.Invoice{
		Number: "INV-778",
		Date:   invoiceDate,
		Vendor: "Acme Supplies",
		Lines: []pi.Line{
			{ItemID: bolt.ID, Quantity: types.Units(40), Rate: types.MustMoney("2.50")},
			{ItemCode: "HW-00001", Quantity: types.Units(10), Rate: types.MustMoney("2.75")},
			{NewItem: &stock.NewItem{Name: "Engine oil", Category: "Lubricant", Unit: "l"}, Quantity: types.Units(20), Rate: types.MustMoney("6")},
		},
	})
	require.NoError(t, err)
	require.Len(t, posting.Results, 3)
	assert.Equal(t, "LUB-00001", posting.Invoice.Lines[2].ItemCode)
	assert.Equal(t, "247.5", posting.Invoice.TotalAmount().String())

	got, err := ledger.GetItem(ctx, bolt.ID)
	require.NoError(t, err)
	assert.Equal(t, types.Units(50), got.MainQty)
	assert.True(t, got.SubQty.IsZero())

	entries, err := ledger.Entries(ctx, stock.EntryFilter{DocumentRef: "PI/INV-778"})
	require.NoError(t, err)
	require.Len(t, entries, 3)
	for _, e := range entries {
		assert.Equal(t, entity.MovementPurchase, e.Type)
		assert.Equal(t, pi.DocumentType, e.DocumentType)
		assert.Equal(t, "Acme Supplies", e.Counterparty)
	}
}

func TestRecord_RefusesDuplicateNumber(t *testing.T) {
	svc, ledger := setup(t)
	ctx := context.Background()
	bolt := item(t, ledger, "HW-00001")

	inv := &pi.Invoice{
		Number: "INV-1",
		Date:   invoiceDate,
		Vendor: "Acme",
		Lines:  []pi.Line{{ItemID: bolt.ID, Quantity: types.Units(5), Rate: types.MustMoney("1")}},
	}
	_, err := svc.Record(ctx, inv)
	require.NoError(t, err)

	_, err = svc.Record(ctx, inv)
	assert.True(t, apperror.HasCode(err, apperror.CodeDuplicate))

	got, err := ledger.GetItem(ctx, bolt.ID)
	require.NoError(t, err)
	assert.Equal(t, types.Units(5), got.MainQty)
}

func TestRecord_Validation(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	cases := map[string]struct {
		inv  *pi.Invoice
		code string
	}{
		"no number": {&pi.Invoice{Vendor: "Acme", Lines: []pi.Line{{ItemCode: "X", Quantity: types.Units(1)}}}, apperror.CodeValidation},
		"no vendor": {&pi.Invoice{Number: "1", Lines: []pi.Line{{ItemCode: "X", Quantity: types.Units(1)}}}, apperror.CodeValidation},
		"no lines":  {&pi.Invoice{Number: "1", Vendor: "Acme"}, apperror.CodeValidation},
		"no item":   {&pi.Invoice{Number: "1", Vendor: "Acme", Lines: []pi.Line{{Quantity: types.Units(1)}}}, apperror.CodeValidation},
		"zero qty":  {&pi.Invoice{Number: "1", Vendor: "Acme", Lines: []pi.Line{{ItemCode: "X"}}}, apperror.CodeInvalidMovement},
		"neg qty":   {&pi.Invoice{Number: "1", Vendor: "Acme", Lines: []pi.Line{{ItemCode: "X", Quantity: types.Units(-2)}}}, apperror.CodeInvalidMovement},
		"neg rate": {&pi.Invoice{Number: "1", Vendor: "Acme",
			Lines: []pi.Line{{ItemCode: "X", Quantity: types.Units(1), Rate: types.MustMoney("-1")}}}, apperror.CodeInvalidMovement},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Record(ctx, tc.inv)
			assert.True(t, apperror.HasCode(err, tc.code), "got %v", err)
		})
	}
}

func TestRecord_UnknownCodeWithoutNewItem(t *testing.T) {
	svc, _ := setup(t)

	_, err := svc.Record(context.Background(), &pi.Invoice{
		Number: "INV-2",
		Vendor: "Acme",
		Lines:  []pi.Line{{ItemCode: "NOPE", Quantity: types.Units(1)}},
	})
	assert.True(t, apperror.IsNotFound(err))
}

func TestRecord_BeforePostHookAborts(t *testing.T) {
	svc, ledger := setup(t)
	ctx := context.Background()
	bolt := item(t, ledger, "HW-00001")

	blocked := errors.New("vendor on hold")
	svc.Hooks().On(domain.BeforePost, func(ctx context.Context, inv *pi.Invoice) error {
		if inv.Vendor == "Blocked Co" {
			return blocked
		}
		return nil
	})
	var posted []string
	svc.Hooks().On(domain.AfterPost, func(ctx context.Context, inv *pi.Invoice) error {
		posted = append(posted, inv.Number)
		return nil
	})

	_, err := svc.Record(ctx, &pi.Invoice{
		Number: "INV-3", Vendor: "Blocked Co",
		Lines: []pi.Line{{ItemID: bolt.ID, Quantity: types.Units(1)}},
	})
	assert.ErrorIs(t, err, blocked)

	_, err = svc.Record(ctx, &pi.Invoice{
		Number: "INV-4", Vendor: "Acme",
		Lines: []pi.Line{{ItemID: bolt.ID, Quantity: types.Units(1)}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"INV-4"}, posted)
}

func TestAmend_ReplacesMovements(t *testing.T) {
	svc, ledger := setup(t)
	ctx := context.Background()
	bolt := item(t, ledger, "HW-00001")
	nut := item(t, ledger, "HW-00002")

	_, err := svc.Record(ctx, &pi.Invoice{
		Number: "INV-5", Date: invoiceDate, Vendor: "Acme",
		Lines: []pi.Line{{ItemID: bolt.ID, Quantity: types.Units(10), Rate: types.MustMoney("1")}},
	})
	require.NoError(t, err)

	_, err = svc.Amend(ctx, &pi.Invoice{
		Number: "INV-5", Date: invoiceDate, Vendor: "Acme",
		Lines: []pi.Line{
			{ItemID: bolt.ID, Quantity: types.Units(8), Rate: types.MustMoney("1")},
			{ItemID: nut.ID, Quantity: types.Units(3), Rate: types.MustMoney("0.5")},
		},
	})
	require.NoError(t, err)

	b, err := ledger.GetItem(ctx, bolt.ID)
	require.NoError(t, err)
	n, err := ledger.GetItem(ctx, nut.ID)
	require.NoError(t, err)
	assert.Equal(t, types.Units(8), b.MainQty)
	assert.Equal(t, types.Units(3), n.MainQty)
}

func TestCancel(t *testing.T) {
	svc, ledger := setup(t)
	ctx := context.Background()
	bolt := item(t, ledger, "HW-00001")

	_, err := svc.Record(ctx, &pi.Invoice{
		Number: "INV-6", Date: invoiceDate, Vendor: "Acme",
		Lines: []pi.Line{{ItemID: bolt.ID, Quantity: types.Units(10), Rate: types.MustMoney("1")}},
	})
	require.NoError(t, err)

	var cancelled *pi.Invoice
	svc.Hooks().On(domain.AfterReverse, func(ctx context.Context, inv *pi.Invoice) error {
		cancelled = inv
		return nil
	})

	results, err := svc.Cancel(ctx, "INV-6", "")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].Entry.Reversal)
	require.NotNil(t, cancelled)
	assert.Equal(t, "Acme", cancelled.Vendor)

	b, err := ledger.GetItem(ctx, bolt.ID)
	require.NoError(t, err)
	assert.True(t, b.MainQty.IsZero())

	_, err = svc.Cancel(ctx, "INV-6", "")
	assert.True(t, apperror.HasCode(err, apperror.CodeAlreadyReversed))

	_, err = svc.Cancel(ctx, "INV-404", "")
	assert.True(t, apperror.IsNotFound(err))
}

func TestAmend_RaisesQuantityAfterTransfer(t *testing.T) {
	svc, ledger := setup(t)
	ctx := context.Background()
	bolt := item(t, ledger, "HW-00001")

	_, err := svc.Record(ctx, &pi.Invoice{
		Number: "INV-8", Date: invoiceDate, Vendor: "Acme",
		Lines: []pi.Line{{ItemID: bolt.ID, Quantity: types.Units(10), Rate: types.MustMoney("1")}},
	})
	require.NoError(t, err)
	_, err = ledger.ApplyMovement(ctx, stock.MovementRequest{
		ItemID: bolt.ID, Type: entity.MovementTransferMainToSub, Quantity: types.Units(8), Date: invoiceDate,
	})
	require.NoError(t, err)

	_, err = svc.Amend(ctx, &pi.Invoice{
		Number: "INV-8", Date: invoiceDate, Vendor: "Acme",
		Lines: []pi.Line{{ItemID: bolt.ID, Quantity: types.Units(12), Rate: types.MustMoney("1")}},
	})
	require.NoError(t, err)

	b, err := ledger.GetItem(ctx, bolt.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.Balance{Main: types.Units(4), Sub: types.Units(8)}, b.Snapshot())

	// cutting it below what already moved on is still refused
	_, err = svc.Amend(ctx, &pi.Invoice{
		Number: "INV-8", Date: invoiceDate, Vendor: "Acme",
		Lines: []pi.Line{{ItemID: bolt.ID, Quantity: types.Units(7), Rate: types.MustMoney("1")}},
	})
	assert.True(t, apperror.IsInsufficientStock(err), "got %v", err)
}

func TestCancel_LeavesOtherDocumentsAlone(t *testing.T) {
	svc, ledger := setup(t)
	ctx := context.Background()
	bolt := item(t, ledger, "HW-00001")

	// an issue bill numbered like an invoice reference
	_, err := ledger.ApplyMovement(ctx, stock.MovementRequest{
		ItemID: bolt.ID, Type: entity.MovementPurchase, Quantity: types.Units(3), Date: invoiceDate,
		Meta: entity.EntryMeta{DocumentRef: pi.Ref("INV-7"), DocumentType: "IssueBill"},
	})
	require.NoError(t, err)

	_, err = svc.Cancel(ctx, "INV-7", "")
	assert.True(t, apperror.IsNotFound(err), "got %v", err)

	b, err := ledger.GetItem(ctx, bolt.ID)
	require.NoError(t, err)
	assert.Equal(t, types.Units(3), b.MainQty)
}
