package main

import (
	"context"
	"fmt"
	"time"

	"storeledger/internal/core/apperror"
	appctx "storeledger/internal/core/context"
	"storeledger/internal/domain/registers/stock"
	"storeledger/internal/domain/reports"
	"storeledger/pkg/logger"
)

const sweepPageSize = 500

// Reconciler checks every item's snapshot against its ledger and scans the
// previous day's ledger for negative balances.
type Reconciler struct {
	stock      *stock.Service
	reports    *reports.Service
	metrics    stock.Metrics
	autoRepair bool
	now        func() time.Time
}

// NewReconciler creates a reconciler. With autoRepair, drifted snapshots are
// rewritten from the ledger; otherwise they are only reported.
func NewReconciler(st *stock.Service, rep *reports.Service, m stock.Metrics, autoRepair bool) *Reconciler {
	if m == nil {
		m = stock.NopMetrics
	}
	return &Reconciler{stock: st, reports: rep, metrics: m, autoRepair: autoRepair, now: time.Now}
}

// SweepResult counts what one sweep found.
type SweepResult struct {
	Checked     int
	Drifted     int
	Repaired    int
	Failed      int
	DailyAlarms int
}

// Sweep runs one reconciliation pass.
func (r *Reconciler) Sweep(ctx context.Context) (SweepResult, error) {
	var res SweepResult

	if r.autoRepair {
		report, err := r.stock.RepairAll(ctx, sweepPageSize)
		if err != nil {
			return res, err
		}
		res.Checked = report.Checked
		res.Drifted = len(report.Repaired) + len(report.Failed)
		res.Repaired = len(report.Repaired)
		res.Failed = len(report.Failed)
	} else if err := r.verifyAll(ctx, &res); err != nil {
		return res, err
	}

	yesterday := r.now().AddDate(0, 0, -1)
	daily, err := r.reports.DailyLedger(ctx, reports.DailyLedgerFilter{From: &yesterday, To: &yesterday})
	if err != nil {
		return res, fmt.Errorf("daily ledger: %w", err)
	}
	res.DailyAlarms = daily.Alarms

	logger.Info(ctx, "reconciliation sweep finished",
		"checked", res.Checked,
		"drifted", res.Drifted,
		"repaired", res.Repaired,
		"failed", res.Failed,
		"daily_alarms", res.DailyAlarms,
	)
	return res, nil
}

func (r *Reconciler) verifyAll(ctx context.Context, res *SweepResult) error {
	for offset := 0; ; offset += sweepPageSize {
		if err := ctx.Err(); err != nil {
			return err
		}

		items, err := r.stock.ListItems(ctx, stock.ItemFilter{Limit: sweepPageSize, Offset: offset})
		if err != nil {
			return fmt.Errorf("list items: %w", err)
		}

		for _, item := range items {
			res.Checked++
			d, err := r.stock.Verify(ctx, item.ID)
			if err != nil {
				res.Failed++
				logger.Warn(ctx, "verify failed", "item_code", item.Code, "error", err)
				continue
			}
			if d.InSync() {
				continue
			}
			res.Drifted++
			r.metrics.IntegrityAlarm("reconcile")
			logger.Error(ctx, "stock snapshot drifted from ledger",
				"code", apperror.CodeIntegrityViolation,
				"item_id", d.ItemID,
				"item_code", d.Code,
				"snapshot_main", d.Snapshot.Main,
				"snapshot_sub", d.Snapshot.Sub,
				"ledger_main", d.Ledger.Main,
				"ledger_sub", d.Ledger.Sub,
			)
		}

		if len(items) < sweepPageSize {
			return nil
		}
	}
}

// Run sweeps once at start and then every interval until ctx ends.
func (r *Reconciler) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		sweepCtx := ctx
		if t := appctx.GetTrace(ctx); t != nil {
			sweepCtx = appctx.WithTrace(ctx, t.Child())
		}
		if _, err := r.Sweep(sweepCtx); err != nil && ctx.Err() == nil {
			logger.Error(sweepCtx, "reconciliation sweep failed", "error", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
