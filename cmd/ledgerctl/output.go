package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"storeledger/internal/core/entity"
	"storeledger/internal/domain/registers/stock"
	"storeledger/internal/domain/reports"
)

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func table() *tabwriter.Writer {
	return tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', tabwriter.AlignRight)
}

func printDiscrepancies(ds []stock.Discrepancy) {
	w := table()
	fmt.Fprintln(w, "CODE\tSNAP MAIN\tSNAP SUB\tLEDGER MAIN\tLEDGER SUB\t")
	for _, d := range ds {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t\n",
			d.Code, d.Snapshot.Main, d.Snapshot.Sub, d.Ledger.Main, d.Ledger.Sub)
	}
	_ = w.Flush()
}

func printSummaries(rows []stock.Summary) {
	w := table()
	fmt.Fprintln(w, "CODE\tPURCHASED\tTRANSFERRED\tCONSUMED\tSOLD\tMAIN\tSUB\tTOTAL\tSYNC\t")
	for _, r := range rows {
		sync := "ok"
		if !r.InSync() {
			sync = "DRIFT"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t\n",
			r.Code, r.PurchaseQty, r.TransferQty, r.ConsumptionQty, r.SaleQty,
			r.BalanceMain, r.BalanceSub, r.BalanceTotal, sync)
	}
	_ = w.Flush()
}

func printDaily(l *reports.DailyLedger) {
	w := table()
	fmt.Fprintln(w, "DAY\tCODE\tOPEN MAIN\tOPEN SUB\tIN\tTRANSFER\tOUT\tCLOSE MAIN\tCLOSE SUB\tCLOSE TOTAL\t\t")
	for _, r := range l.Rows {
		alarm := ""
		if r.Alarm {
			alarm = "ALARM"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t\n",
			r.Day.Format("2006-01-02"), r.Code,
			r.OpeningMain, r.OpeningSub,
			r.PurchaseQty, r.TransferQty, r.Out(),
			r.ClosingMain, r.ClosingSub, r.ClosingTotal, alarm)
	}
	_ = w.Flush()
	fmt.Printf("%d rows, %d alarms (%s)\n", len(l.Rows), l.Alarms, l.Location)
}

func printReorder(rows []reports.ReorderRow) {
	w := table()
	fmt.Fprintln(w, "CODE\tCURRENT\tAVG DAILY OUT\tSAFETY\tREORDER AT\t\t")
	for _, r := range rows {
		flag := ""
		if r.NeedsReorder {
			flag = "REORDER"
		}
		fmt.Fprintf(w, "%s\t%s\t%.2f\t%.2f\t%.2f\t%s\t\n",
			r.Code, r.CurrentQty, r.AvgDailyOut, r.SafetyStock, r.ReorderPoint, flag)
	}
	_ = w.Flush()
}

func printTurnover(rows []reports.TurnoverRow) {
	w := table()
	fmt.Fprintln(w, "CODE\tTOTAL OUT\tAVG CLOSING\tRATIO\tCLASS\t")
	for _, r := range rows {
		fmt.Fprintf(w, "%s\t%s\t%.2f\t%.2f\t%s\t\n", r.Code, r.TotalOut, r.AvgClosingQty, r.Ratio, r.Class)
	}
	_ = w.Flush()
}

func printEntries(entries []entity.LedgerEntry) {
	w := table()
	fmt.Fprintln(w, "SEQ\tDATE\tTYPE\tQTY\tRATE\tAMOUNT\tDOCUMENT\tREV\t")
	for _, e := range entries {
		rev := ""
		if e.Reversal {
			rev = "R"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t\n",
			e.Seq, e.BusinessDate.Format("2006-01-02 15:04"), e.Type,
			e.Quantity, e.Rate, e.Amount, e.DocumentRef, rev)
	}
	_ = w.Flush()
}
