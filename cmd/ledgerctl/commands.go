package main

import (
	"context"
	"fmt"
	"time"

	"storeledger/internal/app"
	"storeledger/internal/core/entity"
	"storeledger/internal/core/id"
	"storeledger/internal/domain/registers/stock"
	"storeledger/internal/domain/reports"
	"storeledger/internal/infrastructure/storage/postgres"
)

func runMigrate(ctx context.Context, a *app.App) error {
	fmt.Println("Applying ledger schema...")
	if err := postgres.Migrate(ctx, a.Pool); err != nil {
		return err
	}
	fmt.Println("Schema is up to date")
	return nil
}

// itemIDs resolves an optional item code to a one-element ID list.
func itemIDs(ctx context.Context, a *app.App, code string) ([]id.ID, error) {
	if code == "" {
		return nil, nil
	}
	item, err := a.Stock.GetItemByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	return []id.ID{item.ID}, nil
}

func runCheck(ctx context.Context, a *app.App, args []string) error {
	o, err := parseArgs(args)
	if err != nil {
		return err
	}

	var items []entity.StockItem
	if code := o.arg(0); code != "" {
		item, err := a.Stock.GetItemByCode(ctx, code)
		if err != nil {
			return err
		}
		items = []entity.StockItem{*item}
	} else if items, err = a.Stock.ListItems(ctx, stock.ItemFilter{}); err != nil {
		return err
	}

	var bad []stock.Discrepancy
	for _, item := range items {
		d, err := a.Stock.Verify(ctx, item.ID)
		if err != nil {
			return err
		}
		if !d.InSync() {
			bad = append(bad, d)
		}
	}

	if o.flags["json"] {
		if err := printJSON(bad); err != nil {
			return err
		}
	} else {
		fmt.Printf("Checked %d items, %d out of sync\n", len(items), len(bad))
		if len(bad) > 0 {
			printDiscrepancies(bad)
		}
	}
	if len(bad) > 0 {
		return errOutOfSync
	}
	return nil
}

func runRepair(ctx context.Context, a *app.App, args []string) error {
	o, err := parseArgs(args)
	if err != nil {
		return err
	}

	if code := o.arg(0); code != "" {
		item, err := a.Stock.GetItemByCode(ctx, code)
		if err != nil {
			return err
		}
		res, err := a.Stock.Repair(ctx, item.ID)
		if err != nil {
			return err
		}
		if o.flags["json"] {
			return printJSON(res)
		}
		if !res.Repaired {
			fmt.Printf("%s is in sync\n", res.Code)
			return nil
		}
		fmt.Printf("%s repaired\n", res.Code)
		printDiscrepancies([]stock.Discrepancy{res.Discrepancy})
		return nil
	}

	pageSize, err := o.positiveInt("page-size", 500)
	if err != nil {
		return err
	}
	report, err := a.Stock.RepairAll(ctx, pageSize)
	if err != nil {
		return err
	}
	if o.flags["json"] {
		return printJSON(report)
	}

	fmt.Printf("Checked %d items, repaired %d, failed %d\n", report.Checked, len(report.Repaired), len(report.Failed))
	if len(report.Repaired) > 0 {
		ds := make([]stock.Discrepancy, 0, len(report.Repaired))
		for _, r := range report.Repaired {
			ds = append(ds, r.Discrepancy)
		}
		printDiscrepancies(ds)
	}
	for code, msg := range report.Failed {
		fmt.Printf("  %s: %s\n", code, msg)
	}
	if len(report.Failed) > 0 {
		return errOutOfSync
	}
	return nil
}

func runSummary(ctx context.Context, a *app.App, args []string) error {
	o, err := parseArgs(args)
	if err != nil {
		return err
	}

	var itemID *id.ID
	if ids, err := itemIDs(ctx, a, o.arg(0)); err != nil {
		return err
	} else if len(ids) == 1 {
		itemID = &ids[0]
	}

	rows, err := a.Stock.Summarize(ctx, itemID)
	if err != nil {
		return err
	}
	if o.flags["json"] {
		return printJSON(rows)
	}
	printSummaries(rows)
	return nil
}

func dailyFilter(ctx context.Context, a *app.App, o *options) (reports.DailyLedgerFilter, error) {
	var f reports.DailyLedgerFilter
	ids, err := itemIDs(ctx, a, o.values["item"])
	if err != nil {
		return f, err
	}
	f.ItemIDs = ids
	if f.From, err = o.day("from"); err != nil {
		return f, err
	}
	if f.To, err = o.day("to"); err != nil {
		return f, err
	}
	return f, nil
}

func runDaily(ctx context.Context, a *app.App, args []string) error {
	o, err := parseArgs(args)
	if err != nil {
		return err
	}
	f, err := dailyFilter(ctx, a, o)
	if err != nil {
		return err
	}

	ledger, err := a.Reports.DailyLedger(ctx, f)
	if err != nil {
		return err
	}
	if o.flags["json"] {
		return printJSON(ledger)
	}
	printDaily(ledger)
	return nil
}

func runReorder(ctx context.Context, a *app.App, args []string) error {
	o, err := parseArgs(args)
	if err != nil {
		return err
	}
	window, err := o.positiveInt("window", reports.DefaultUsageWindowDays)
	if err != nil {
		return err
	}
	ids, err := itemIDs(ctx, a, o.values["item"])
	if err != nil {
		return err
	}

	rows, err := a.Reports.ReorderPoints(ctx, ids, window)
	if err != nil {
		return err
	}
	if o.flags["json"] {
		return printJSON(rows)
	}
	printReorder(rows)
	return nil
}

func runTurnover(ctx context.Context, a *app.App, args []string) error {
	o, err := parseArgs(args)
	if err != nil {
		return err
	}
	f, err := dailyFilter(ctx, a, o)
	if err != nil {
		return err
	}

	rows, err := a.Reports.Turnover(ctx, f)
	if err != nil {
		return err
	}
	if o.flags["json"] {
		return printJSON(rows)
	}
	printTurnover(rows)
	return nil
}

func runEntries(ctx context.Context, a *app.App, args []string) error {
	o, err := parseArgs(args)
	if err != nil {
		return err
	}

	f := stock.EntryFilter{DocumentRef: o.values["doc"]}
	if f.ItemIDs, err = itemIDs(ctx, a, o.values["item"]); err != nil {
		return err
	}
	if f.From, err = o.day("from"); err != nil {
		return err
	}
	to, err := o.day("to")
	if err != nil {
		return err
	}
	if to != nil {
		// --to is an inclusive day; the filter bound is exclusive
		next := to.AddDate(0, 0, 1)
		f.To = &next
	}

	entries, err := a.Stock.Entries(ctx, f)
	if err != nil {
		return err
	}
	if o.flags["json"] {
		return printJSON(entries)
	}
	printEntries(entries)
	return nil
}

func runReverse(ctx context.Context, a *app.App, args []string) error {
	o, err := parseArgs(args)
	if err != nil {
		return err
	}
	ref := o.arg(0)
	if ref == "" {
		return fmt.Errorf("usage: ledgerctl reverse <document-ref> [--type DOCUMENT_TYPE] [--reason TEXT]")
	}
	reason := o.values["reason"]
	if reason == "" {
		reason = "reversed by operator"
	}

	results, err := a.Stock.ReverseDocumentOfType(ctx, o.values["type"], ref, time.Time{}, reason)
	if err != nil {
		return err
	}
	if o.flags["json"] {
		return printJSON(results)
	}
	fmt.Printf("Reversed %d entries of %s\n", len(results), ref)
	return nil
}
