package reports

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"

	"storeledger/internal/core/apperror"
	"storeledger/internal/core/entity"
	"storeledger/internal/core/id"
	"storeledger/internal/core/tx"
	"storeledger/internal/core/types"
	"storeledger/internal/domain/registers/stock"
	"storeledger/pkg/logger"
)

var tracer = otel.Tracer("storeledger/reports")

// LedgerReader is the part of the ledger store reports read from.
type LedgerReader interface {
	ListItems(ctx context.Context, filter stock.ItemFilter) ([]entity.StockItem, error)
	ListEntries(ctx context.Context, filter stock.EntryFilter) ([]entity.LedgerEntry, error)
	SumByType(ctx context.Context, filter stock.EntryFilter) ([]stock.TypeTotal, error)
}

// Service provides report generation operations.
type Service struct {
	repo    LedgerReader
	txm     tx.ReadOnlyManager
	loc     *time.Location
	metrics stock.Metrics
	now     func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithLocation sets the default time zone of calendar days.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithMetrics sets where integrity alarms are counted.
func WithMetrics(m stock.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithClock overrides the clock used by the analyses.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a new reports service.
func NewService(repo LedgerReader, txm tx.ReadOnlyManager, opts ...Option) *Service {
	s := &Service{
		repo:    repo,
		txm:     txm,
		loc:     time.UTC,
		metrics: stock.NopMetrics,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DailyLedger groups the ledger by item and calendar day and carries each
// day's closing balance into the next day's opening. When the range starts
// after the first entry, the opening is the fold of everything before it.
// Days without entries are omitted.
//
// The result depends only on the ledger: two runs over the same entries
// produce the same report.
func (s *Service) DailyLedger(ctx context.Context, filter DailyLedgerFilter) (*DailyLedger, error) {
	ctx, span := tracer.Start(ctx, "reports.DailyLedger")
	defer span.End()

	loc := filter.Location
	if loc == nil {
		loc = s.loc
	}

	rows, _, err := s.daily(ctx, filter, loc)
	if err != nil {
		return nil, err
	}

	report := &DailyLedger{
		From:     filter.From,
		To:       filter.To,
		Location: loc.String(),
		Rows:     rows,
	}
	for _, r := range rows {
		if !r.Alarm {
			continue
		}
		report.Alarms++
		s.metrics.IntegrityAlarm("daily_ledger")
		logger.Error(ctx, "negative closing balance in daily ledger",
			"code", apperror.CodeIntegrityViolation,
			"item_id", r.ItemID,
			"item_code", r.Code,
			"day", r.Day.Format(time.DateOnly),
			"closing_main", r.ClosingMain,
			"closing_sub", r.ClosingSub,
		)
	}
	return report, nil
}

// daily loads items and entries in one read-only transaction and builds
// the rows.
func (s *Service) daily(ctx context.Context, filter DailyLedgerFilter, loc *time.Location) ([]DailyRow, []entity.StockItem, error) {
	var from, to *time.Time
	if filter.From != nil {
		d := startOfDay(*filter.From, loc)
		from = &d
	}
	if filter.To != nil {
		d := startOfDay(*filter.To, loc).AddDate(0, 0, 1)
		to = &d
	}
	if from != nil && to != nil && !from.Before(*to) {
		return nil, nil, apperror.NewValidation("from must not be after to").
			WithDetail("from", filter.From).
			WithDetail("to", filter.To)
	}

	var (
		items    []entity.StockItem
		openings []stock.TypeTotal
		entries  []entity.LedgerEntry
	)
	err := s.txm.ReadOnly(ctx, func(ctx context.Context) error {
		var err error
		items, err = s.repo.ListItems(ctx, stock.ItemFilter{IDs: filter.ItemIDs})
		if err != nil {
			return fmt.Errorf("list items: %w", err)
		}
		if err := checkAllFound(filter.ItemIDs, items); err != nil {
			return err
		}

		if from != nil {
			openings, err = s.repo.SumByType(ctx, stock.EntryFilter{ItemIDs: filter.ItemIDs, To: from})
			if err != nil {
				return fmt.Errorf("sum opening balances: %w", err)
			}
		}

		entries, err = s.repo.ListEntries(ctx, stock.EntryFilter{ItemIDs: filter.ItemIDs, From: from, To: to})
		if err != nil {
			return fmt.Errorf("list entries: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	return BuildDailyRows(items, openings, entries, loc), items, nil
}

func checkAllFound(ids []id.ID, items []entity.StockItem) error {
	if len(ids) == 0 {
		return nil
	}
	found := make(map[id.ID]struct{}, len(items))
	for _, item := range items {
		found[item.ID] = struct{}{}
	}
	for _, itemID := range ids {
		if _, ok := found[itemID]; !ok {
			return apperror.NewNotFound("stock item", itemID)
		}
	}
	return nil
}

// BuildDailyRows is the reconciliation walk. entries must be ordered by
// business date; openings are per-type totals strictly before the first day.
// Rows come out ordered by item code, then day.
func BuildDailyRows(items []entity.StockItem, openings []stock.TypeTotal, entries []entity.LedgerEntry, loc *time.Location) []DailyRow {
	opening := make(map[id.ID]*stock.Totals)
	for _, o := range openings {
		t, ok := opening[o.ItemID]
		if !ok {
			t = &stock.Totals{}
			opening[o.ItemID] = t
		}
		t.Add(o.Type, o.Quantity, o.Amount)
	}

	byItem := make(map[id.ID][]entity.LedgerEntry)
	for _, e := range entries {
		byItem[e.ItemID] = append(byItem[e.ItemID], e)
	}

	var rows []DailyRow
	for _, item := range items {
		itemEntries := byItem[item.ID]
		if len(itemEntries) == 0 {
			continue
		}

		var (
			balance entity.Balance
			amount  types.Money
		)
		if o, ok := opening[item.ID]; ok {
			balance = o.Balance()
			amount = o.AmountDelta()
		}

		for i := 0; i < len(itemEntries); {
			day := startOfDay(itemEntries[i].BusinessDate, loc)
			row := DailyRow{
				ItemID:        item.ID,
				Code:          item.Code,
				Name:          item.Name,
				Day:           day,
				OpeningMain:   balance.Main,
				OpeningSub:    balance.Sub,
				OpeningAmount: amount,
			}

			for ; i < len(itemEntries) && startOfDay(itemEntries[i].BusinessDate, loc).Equal(day); i++ {
				row.Totals.AddEntry(itemEntries[i])
			}

			d := row.Totals.Balance()
			balance = entity.Balance{Main: balance.Main + d.Main, Sub: balance.Sub + d.Sub}
			amount = amount.Add(row.Totals.AmountDelta())

			row.ClosingMain = balance.Main
			row.ClosingSub = balance.Sub
			row.ClosingTotal = balance.Total()
			row.ClosingAmount = amount
			row.Alarm = balance.IsNegative()
			rows = append(rows, row)
		}
	}
	return rows
}

func startOfDay(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}
