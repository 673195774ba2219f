package stock_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storeledger/internal/core/apperror"
	"storeledger/internal/core/entity"
	"storeledger/internal/core/id"
	"storeledger/internal/core/numerator"
	"storeledger/internal/core/types"
	"storeledger/internal/domain/registers/stock"
	"storeledger/internal/infrastructure/storage/memory"
)

func day(d int) time.Time {
	return time.Date(2024, time.January, d, 9, 0, 0, 0, time.UTC)
}

func newService(t *testing.T, opts ...stock.Option) (*stock.Service, *memory.Store) {
	t.Helper()
	store := memory.New()
	return stock.NewService(store, store, opts...), store
}

func newItem(t *testing.T, svc *stock.Service, code string) *entity.StockItem {
	t.Helper()
	item, err := svc.CreateItem(context.Background(), stock.NewItem{Code: code, Name: "Item " + code, Unit: "pcs"})
	require.NoError(t, err)
	return item
}

func move(itemID id.ID, mt entity.MovementType, qty int64, d int) stock.MovementRequest {
	return stock.MovementRequest{
		ItemID:   itemID,
		Type:     mt,
		Quantity: types.Units(qty),
		Rate:     types.MustMoney("10"),
		Date:     day(d),
	}
}

// seed puts main/sub units into the item through real movements.
func seed(t *testing.T, svc *stock.Service, itemID id.ID, main, sub int64) {
	t.Helper()
	ctx := context.Background()
	_, err := svc.ApplyMovement(ctx, move(itemID, entity.MovementPurchase, main+sub, 1))
	require.NoError(t, err)
	if sub > 0 {
		_, err = svc.ApplyMovement(ctx, move(itemID, entity.MovementTransferMainToSub, sub, 1))
		require.NoError(t, err)
	}
}

func balance(t *testing.T, svc *stock.Service, itemID id.ID) entity.Balance {
	t.Helper()
	item, err := svc.GetItem(context.Background(), itemID)
	require.NoError(t, err)
	return item.Snapshot()
}

func TestCreateItem_GeneratesCode(t *testing.T) {
	svc, _ := newService(t, stock.WithNumerator(&numerator.MockGenerator{}))
	ctx := context.Background()

	a, err := svc.CreateItem(ctx, stock.NewItem{Name: "Steel rod", Category: "Raw Material"})
	require.NoError(t, err)
	b, err := svc.CreateItem(ctx, stock.NewItem{Name: "Wire", Category: "Raw Material"})
	require.NoError(t, err)
	c, err := svc.CreateItem(ctx, stock.NewItem{Name: "Gasket", Category: "gaskets"})
	require.NoError(t, err)

	assert.Equal(t, "RM-00001", a.Code)
	assert.Equal(t, "RM-00002", b.Code)
	assert.Equal(t, "GAS-00001", c.Code)
	assert.True(t, a.MainQty.IsZero())
	assert.True(t, a.SubQty.IsZero())
}

func TestCreateItem_Validation(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	_, err := svc.CreateItem(ctx, stock.NewItem{Name: "No code"})
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))

	newItem(t, svc, "X-1")
	_, err = svc.CreateItem(ctx, stock.NewItem{Code: "X-1", Name: "Again"})
	assert.True(t, apperror.HasCode(err, apperror.CodeDuplicate))
}

func TestCodePrefix(t *testing.T) {
	assert.Equal(t, "TYR", stock.CodePrefix(" Tyre "))
	assert.Equal(t, "SP", stock.CodePrefix("spare part"))
	assert.Equal(t, "FIL", stock.CodePrefix("filters"))
	assert.Equal(t, "ITM", stock.CodePrefix(""))
}

func TestApplyMovement_CarryForward(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	item := newItem(t, svc, "RM-1")

	res, err := svc.ApplyMovement(ctx, move(item.ID, entity.MovementPurchase, 100, 1))
	require.NoError(t, err)
	assert.Equal(t, entity.Balance{Main: types.Units(100)}, res.Snapshot.Snapshot())
	assert.Equal(t, "1000", res.Entry.Amount.String())

	res, err = svc.ApplyMovement(ctx, move(item.ID, entity.MovementTransferMainToSub, 40, 2))
	require.NoError(t, err)
	assert.Equal(t, entity.Balance{Main: types.Units(60), Sub: types.Units(40)}, res.Snapshot.Snapshot())

	res, err = svc.ApplyMovement(ctx, move(item.ID, entity.MovementConsumption, 10, 3))
	require.NoError(t, err)
	assert.Equal(t, entity.Balance{Main: types.Units(60), Sub: types.Units(30)}, res.Snapshot.Snapshot())
	assert.Equal(t, types.Units(90), res.Snapshot.TotalQty())

	got, err := svc.GetItem(ctx, item.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LastMovementAt)
	assert.Equal(t, day(3), *got.LastMovementAt)
}

func TestApplyMovement_RejectsOverdraw(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()
	item := newItem(t, svc, "RM-1")
	seed(t, svc, item.ID, 0, 5)

	before, err := store.ListEntries(ctx, stock.EntryFilter{})
	require.NoError(t, err)

	_, err = svc.ApplyMovement(ctx, move(item.ID, entity.MovementSale, 6, 2))
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeInsufficientStock, appErr.Code)
	assert.Equal(t, "Sub", appErr.Details["store"])
	assert.Equal(t, "1", appErr.Details["shortfall"])
	assert.Equal(t, "RM-1", appErr.Details["item_code"])

	assert.Equal(t, entity.Balance{Sub: types.Units(5)}, balance(t, svc, item.ID))
	after, err := store.ListEntries(ctx, stock.EntryFilter{})
	require.NoError(t, err)
	assert.Len(t, after, len(before))
}

func TestApplyMovement_InvalidRequests(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	item := newItem(t, svc, "RM-1")

	tests := []struct {
		name string
		req  stock.MovementRequest
	}{
		{"zero quantity", move(item.ID, entity.MovementPurchase, 0, 1)},
		{"negative quantity", move(item.ID, entity.MovementPurchase, -3, 1)},
		{"unknown type", move(item.ID, entity.MovementType("GIFT"), 1, 1)},
		{"missing item", move(id.ID{}, entity.MovementPurchase, 1, 1)},
		{"negative rate", stock.MovementRequest{ItemID: item.ID, Type: entity.MovementPurchase, Quantity: types.Units(1), Rate: types.MustMoney("-1")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.ApplyMovement(ctx, tt.req)
			assert.True(t, apperror.IsInvalidMovement(err), "got %v", err)
		})
	}

	_, err := svc.ApplyMovement(ctx, move(id.New(), entity.MovementPurchase, 1, 1))
	assert.True(t, apperror.IsNotFound(err))
}

func TestApplyMultiMovement_AllOrNothing(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()
	a := newItem(t, svc, "A")
	b := newItem(t, svc, "B")
	seed(t, svc, a.ID, 10, 10)
	seed(t, svc, b.ID, 10, 2)

	before, err := store.ListEntries(ctx, stock.EntryFilter{})
	require.NoError(t, err)

	reqs := []stock.MovementRequest{
		move(a.ID, entity.MovementConsumption, 1, 2),
		move(a.ID, entity.MovementTransferMainToSub, 5, 2),
		move(b.ID, entity.MovementSale, 3, 2), // only 2 in Sub
		move(a.ID, entity.MovementSale, 1, 2),
		move(b.ID, entity.MovementPurchase, 1, 2),
	}
	_, err = svc.ApplyMultiMovement(ctx, reqs)
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeInsufficientStock, appErr.Code)
	assert.Equal(t, 2, appErr.Details["line"])

	assert.Equal(t, entity.Balance{Main: types.Units(10), Sub: types.Units(10)}, balance(t, svc, a.ID))
	assert.Equal(t, entity.Balance{Main: types.Units(10), Sub: types.Units(2)}, balance(t, svc, b.ID))
	after, err := store.ListEntries(ctx, stock.EntryFilter{})
	require.NoError(t, err)
	assert.Len(t, after, len(before))
}

func TestApplyMultiMovement_LinesSeeEarlierLines(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	item := newItem(t, svc, "A")

	results, err := svc.ApplyMultiMovement(ctx, []stock.MovementRequest{
		move(item.ID, entity.MovementPurchase, 20, 1),
		move(item.ID, entity.MovementTransferMainToSub, 15, 1),
		move(item.ID, entity.MovementConsumption, 15, 1),
	})
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, entity.Balance{Main: types.Units(5), Sub: types.Units(15)}, results[1].Snapshot.Snapshot())
	assert.Equal(t, entity.Balance{Main: types.Units(5)}, balance(t, svc, item.ID))
	assert.Less(t, results[0].Entry.Seq, results[2].Entry.Seq)
}

func TestApplyMultiMovement_InvalidLineNamed(t *testing.T) {
	svc, _ := newService(t)
	item := newItem(t, svc, "A")

	_, err := svc.ApplyMultiMovement(context.Background(), []stock.MovementRequest{
		move(item.ID, entity.MovementPurchase, 2, 1),
		move(item.ID, entity.MovementPurchase, 0, 1),
	})
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeInvalidMovement, appErr.Code)
	assert.Equal(t, 1, appErr.Details["line"])

	_, err = svc.ApplyMultiMovement(context.Background(), nil)
	assert.True(t, apperror.IsInvalidMovement(err))
}

func TestApplyMovement_ConcurrentDrawDown(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	item := newItem(t, svc, "A")
	seed(t, svc, item.ID, 0, 10)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.ApplyMovement(ctx, move(item.ID, entity.MovementConsumption, 6, 2))
		}(i)
	}
	wg.Wait()

	failed := 0
	for _, err := range errs {
		if err != nil {
			assert.True(t, apperror.IsInsufficientStock(err))
			failed++
		}
	}
	assert.Equal(t, 1, failed)
	assert.Equal(t, entity.Balance{Sub: types.Units(4)}, balance(t, svc, item.ID))
}

func TestApplyMovement_ConcurrentBalanceIdentity(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	item := newItem(t, svc, "A")
	seed(t, svc, item.ID, 50, 50)

	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			mt := entity.MovementTypes[i%len(entity.MovementTypes)]
			_, _ = svc.ApplyMovement(ctx, move(item.ID, mt, 3, 2))
		}(i)
	}
	wg.Wait()

	d, err := svc.Verify(ctx, item.ID)
	require.NoError(t, err)
	assert.True(t, d.InSync())
	assert.False(t, d.Ledger.IsNegative())

	sums, err := svc.Summarize(ctx, &item.ID)
	require.NoError(t, err)
	require.Len(t, sums, 1)
	assert.True(t, sums[0].InSync())
}

func TestApplyMovement_DefaultsDateToClock(t *testing.T) {
	fixed := day(20)
	svc, _ := newService(t, stock.WithClock(func() time.Time { return fixed }))
	item := newItem(t, svc, "A")

	res, err := svc.ApplyMovement(context.Background(), stock.MovementRequest{
		ItemID: item.ID, Type: entity.MovementPurchase, Quantity: types.Units(1),
	})
	require.NoError(t, err)
	assert.Equal(t, fixed, res.Entry.BusinessDate)
}

type recordingMetrics struct {
	mu       sync.Mutex
	applied  int
	kinds    []entity.MovementType
	rejected []string
	repaired int
	alarms   int
}

func (m *recordingMetrics) MovementApplied(kind entity.MovementType, _ int, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.applied++
	m.kinds = append(m.kinds, kind)
}

func (m *recordingMetrics) MovementRejected(_ entity.MovementType, code string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rejected = append(m.rejected, code)
}

func (m *recordingMetrics) SnapshotRepaired() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.repaired++
}

func (m *recordingMetrics) IntegrityAlarm(string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alarms++
}

func TestApplyMovement_ReportsMetrics(t *testing.T) {
	m := &recordingMetrics{}
	svc, _ := newService(t, stock.WithMetrics(m))
	ctx := context.Background()
	item := newItem(t, svc, "A")

	_, err := svc.ApplyMovement(ctx, move(item.ID, entity.MovementPurchase, 1, 1))
	require.NoError(t, err)
	_, err = svc.ApplyMovement(ctx, move(item.ID, entity.MovementSale, 1, 1))
	require.Error(t, err)

	assert.Equal(t, 1, m.applied)
	assert.Equal(t, []string{apperror.CodeInsufficientStock}, m.rejected)
}

func TestApplyMultiMovement_MetricsLabel(t *testing.T) {
	m := &recordingMetrics{}
	svc, _ := newService(t, stock.WithMetrics(m))
	ctx := context.Background()
	a := newItem(t, svc, "A")
	b := newItem(t, svc, "B")

	_, err := svc.ApplyMultiMovement(ctx, []stock.MovementRequest{
		move(a.ID, entity.MovementPurchase, 5, 1),
		move(b.ID, entity.MovementPurchase, 5, 1),
	})
	require.NoError(t, err)
	_, err = svc.ApplyMultiMovement(ctx, []stock.MovementRequest{
		move(a.ID, entity.MovementTransferMainToSub, 2, 2),
		move(a.ID, entity.MovementSale, 1, 2),
	})
	require.NoError(t, err)
	_, err = svc.ReverseDocument(ctx, "", day(3), "")
	require.Error(t, err)

	assert.Equal(t, []entity.MovementType{entity.MovementPurchase, stock.KindMulti}, m.kinds)
	assert.Equal(t, []string{apperror.CodeInvalidMovement}, m.rejected)
}
