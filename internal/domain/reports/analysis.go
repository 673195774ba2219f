package reports

import (
	"context"

	"storeledger/internal/core/entity"
	"storeledger/internal/core/id"
	"storeledger/internal/core/types"
)

const (
	// DefaultUsageWindowDays is how far back average daily usage looks.
	DefaultUsageWindowDays = 30
	// LeadTimeDays is the assumed supplier lead time.
	LeadTimeDays = 7
	// SafetyStockDays of average usage are kept as buffer.
	SafetyStockDays = 2
	// fastMovingRatio separates fast from slow movers.
	fastMovingRatio = 2.0
)

// ReorderPoints estimates, per item, the stock level at which a new purchase
// should be placed: average daily outflow over the window times the lead
// time, plus safety stock. The average is taken over days that had entries.
func (s *Service) ReorderPoints(ctx context.Context, itemIDs []id.ID, windowDays int) ([]ReorderRow, error) {
	ctx, span := tracer.Start(ctx, "reports.ReorderPoints")
	defer span.End()

	if windowDays <= 0 {
		windowDays = DefaultUsageWindowDays
	}
	to := s.now()
	from := to.AddDate(0, 0, -(windowDays - 1))

	rows, items, err := s.daily(ctx, DailyLedgerFilter{ItemIDs: itemIDs, From: &from, To: &to}, s.loc)
	if err != nil {
		return nil, err
	}

	usage := groupRows(rows)
	out := make([]ReorderRow, 0, len(items))
	for _, item := range items {
		days := usage[item.ID]

		var totalOut types.Quantity
		for _, d := range days {
			totalOut += d.Out()
		}
		avg := totalOut.Float64() / float64(max(len(days), 1))
		safety := avg * SafetyStockDays
		point := avg*LeadTimeDays + safety

		out = append(out, ReorderRow{
			ItemID:       item.ID,
			Code:         item.Code,
			Name:         item.Name,
			CurrentQty:   item.TotalQty(),
			AvgDailyOut:  avg,
			SafetyStock:  safety,
			ReorderPoint: point,
			NeedsReorder: item.TotalQty().Float64() < point,
		})
	}
	return out, nil
}

// Turnover relates outflow to the average closing stock over the days in
// filter that had entries. Items above a ratio of 2 are fast-moving.
func (s *Service) Turnover(ctx context.Context, filter DailyLedgerFilter) ([]TurnoverRow, error) {
	ctx, span := tracer.Start(ctx, "reports.Turnover")
	defer span.End()

	loc := filter.Location
	if loc == nil {
		loc = s.loc
	}

	rows, items, err := s.daily(ctx, filter, loc)
	if err != nil {
		return nil, err
	}

	byItem := groupRows(rows)
	out := make([]TurnoverRow, 0, len(items))
	for _, item := range items {
		out = append(out, turnover(item, byItem[item.ID]))
	}
	return out, nil
}

func turnover(item entity.StockItem, days []DailyRow) TurnoverRow {
	row := TurnoverRow{ItemID: item.ID, Code: item.Code, Name: item.Name, Class: SlowMoving}

	var closing float64
	for _, d := range days {
		row.TotalOut += d.Out()
		closing += d.ClosingTotal.Float64()
	}
	if len(days) > 0 {
		row.AvgClosingQty = closing / float64(len(days))
	}
	if row.AvgClosingQty > 0 {
		row.Ratio = row.TotalOut.Float64() / row.AvgClosingQty
	}
	if row.Ratio > fastMovingRatio {
		row.Class = FastMoving
	}
	return row
}

func groupRows(rows []DailyRow) map[id.ID][]DailyRow {
	out := make(map[id.ID][]DailyRow)
	for _, r := range rows {
		out[r.ItemID] = append(out[r.ItemID], r)
	}
	return out
}
