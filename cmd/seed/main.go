// Package main provides a CLI tool for seeding the ledger with demo data.
// Items are registered with generated codes and stocked through purchase
// invoices and issue bills, so snapshots and ledger agree from the start.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"storeledger/internal/app"
	"storeledger/internal/core/apperror"
	appctx "storeledger/internal/core/context"
	"storeledger/internal/core/types"
	"storeledger/internal/domain/documents/issue_bill"
	"storeledger/internal/domain/documents/purchase_invoice"
	"storeledger/internal/domain/registers/stock"
	"storeledger/internal/infrastructure/storage/postgres"
	"storeledger/pkg/config"
	"storeledger/pkg/logger"
)

type demoItem struct {
	name     string
	category string
	unit     string
	qty      int64
	rate     string
	issue    int64
}

var demoItems = []demoItem{
	{name: "Engine oil 15W-40", category: "Lubricant", unit: "l", qty: 200, rate: "4.80", issue: 60},
	{name: "Gear oil 80W-90", category: "Lubricant", unit: "l", qty: 80, rate: "5.25", issue: 20},
	{name: "Oil filter", category: "Spare part", unit: "pcs", qty: 40, rate: "7.50", issue: 12},
	{name: "Brake pad set", category: "Spare part", unit: "set", qty: 24, rate: "32.00", issue: 6},
	{name: "Hex bolt M10", category: "Hardware", unit: "pcs", qty: 500, rate: "0.18", issue: 150},
	{name: "Cotton waste", category: "Consumable", unit: "kg", qty: 50, rate: "1.10", issue: 25},
	{name: "Headlamp bulb H4", category: "Electrical", unit: "pcs", qty: 30, rate: "3.40", issue: 10},
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := app.NewLogger(cfg)
	if err != nil {
		fmt.Printf("failed to create logger: %v\n", err)
		os.Exit(1)
	}

	ctx := appctx.ForProcess(context.Background(), "seed")

	a, err := app.Open(ctx, cfg, log)
	if err != nil {
		log.Fatalw("failed to connect", "error", err)
	}
	defer a.Close()

	if err := postgres.Migrate(ctx, a.Pool); err != nil {
		log.Fatalw("failed to apply schema", "error", err)
	}

	if err := seedDemoData(ctx, a, log); err != nil {
		log.Fatalw("failed to seed demo data", "error", err)
	}

	log.Info("seeding completed successfully")
}

func seedDemoData(ctx context.Context, a *app.App, log *logger.Logger) error {
	log.Info("seeding demo data...")

	existing, err := a.Stock.ListItems(ctx, stock.ItemFilter{Limit: 1})
	if err != nil {
		return fmt.Errorf("list items: %w", err)
	}
	if len(existing) > 0 {
		log.Info("ledger already has items, skipping demo data")
		return nil
	}

	received := time.Now().AddDate(0, 0, -7)

	inv := &purchase_invoice.Invoice{
		Number:    "DEMO-0001",
		Date:      received,
		Vendor:    "Northern Auto Supplies",
		PartyName: "Northern Auto Supplies Pvt Ltd",
	}
	for _, it := range demoItems {
		inv.Lines = append(inv.Lines, purchase_invoice.Line{
			NewItem:  &stock.NewItem{Name: it.name, Category: it.category, Unit: it.unit},
			Quantity: types.Units(it.qty),
			Rate:     types.MustMoney(it.rate),
		})
	}

	posting, err := a.Invoices.Record(ctx, inv)
	if err != nil {
		if apperror.HasCode(err, apperror.CodeDuplicate) {
			log.Info("demo invoice already recorded")
			return nil
		}
		return fmt.Errorf("record demo invoice: %w", err)
	}
	log.Infow("recorded demo invoice", "number", inv.Number, "amount", posting.Invoice.TotalAmount())

	transfer := &issue_bill.Bill{
		Date:       received.AddDate(0, 0, 1),
		Department: "Workshop",
		Type:       issue_bill.IssueMainToSub,
		IssuedBy:   "Main store",
	}
	for i, it := range demoItems {
		transfer.Lines = append(transfer.Lines, issue_bill.Line{
			ItemID:   posting.Invoice.Lines[i].ItemID,
			Quantity: types.Units(it.issue),
			Rate:     types.MustMoney(it.rate),
		})
	}
	if _, err := a.Issues.Create(ctx, transfer); err != nil {
		return fmt.Errorf("create demo transfer: %w", err)
	}

	use := &issue_bill.Bill{
		Date:       received.AddDate(0, 0, 2),
		Department: "Fleet",
		Type:       issue_bill.IssueSubToUser,
		IssuedBy:   "Workshop store",
		IssuedTo:   "Bus KA-01-F-2231",
		Lines: []issue_bill.Line{
			{ItemID: posting.Invoice.Lines[0].ItemID, Quantity: types.Units(12), Rate: types.MustMoney("4.80")},
			{ItemID: posting.Invoice.Lines[2].ItemID, Quantity: types.Units(2), Rate: types.MustMoney("7.50")},
		},
	}
	if _, err := a.Issues.Create(ctx, use); err != nil {
		return fmt.Errorf("create demo issue: %w", err)
	}

	sale := &issue_bill.Bill{
		Date:       received.AddDate(0, 0, 3),
		Department: "Counter",
		Type:       issue_bill.IssueSubToSale,
		IssuedTo:   "Walk-in customer",
		Lines: []issue_bill.Line{
			{ItemID: posting.Invoice.Lines[4].ItemID, Quantity: types.Units(40), Rate: types.MustMoney("0.25")},
		},
	}
	if _, err := a.Issues.Create(ctx, sale); err != nil {
		return fmt.Errorf("create demo sale: %w", err)
	}

	summaries, err := a.Stock.Summarize(ctx, nil)
	if err != nil {
		return fmt.Errorf("summarize: %w", err)
	}
	for _, s := range summaries {
		log.Infow("seeded item",
			"code", s.Code,
			"main", s.BalanceMain,
			"sub", s.BalanceSub,
			"total", s.BalanceTotal)
	}

	log.Info("demo data seeded successfully")
	return nil
}
