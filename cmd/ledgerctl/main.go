// Package main provides the ledger operations CLI.
// Usage: ledgerctl migrate
//
//	ledgerctl check [item-code]
//	ledgerctl repair [item-code]
//	ledgerctl summary [item-code]
//	ledgerctl daily [--item CODE] [--from 2024-01-01] [--to 2024-01-31] [--json]
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"storeledger/internal/app"
	appctx "storeledger/internal/core/context"
	"storeledger/pkg/config"
)

type command func(ctx context.Context, a *app.App, args []string) error

var commands = map[string]command{
	"check":    runCheck,
	"repair":   runRepair,
	"summary":  runSummary,
	"daily":    runDaily,
	"reorder":  runReorder,
	"turnover": runTurnover,
	"entries":  runEntries,
	"reverse":  runReverse,
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	name := os.Args[1]
	if name == "help" || name == "--help" || name == "-h" {
		printUsage()
		return
	}

	cmd, known := commands[name]
	if !known && name != "migrate" {
		fmt.Printf("Unknown command: %s\n", name)
		printUsage()
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	log, err := app.NewLogger(cfg)
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(appctx.ForProcess(context.Background(), "ledgerctl"), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Open(ctx, cfg, log)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	defer a.Close()

	if name == "migrate" {
		err = runMigrate(ctx, a)
	} else {
		err = cmd(ctx, a, os.Args[2:])
	}
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		a.Close()
		os.Exit(exitCode(err))
	}
}

func printUsage() {
	fmt.Println(`Stock ledger operations CLI

Usage:
  ledgerctl <command> [options]

Commands:
  migrate                       Create or update the ledger schema
  check [item-code]             Compare snapshots with the ledger (read-only)
  repair [item-code]            Rewrite snapshots from the ledger
  summary [item-code]           Lifetime totals per movement type
  daily                         Day-by-day ledger with opening and closing balances
  reorder                       Items at or below their reorder point
  turnover                      Turnover ratio per item
  entries                       List ledger entries
  reverse <document-ref>        Reverse every movement of a document
  help                          Show this help

Options:
  --item CODE          Limit to one item (daily, reorder, turnover, entries)
  --from YYYY-MM-DD    First calendar day, inclusive
  --to YYYY-MM-DD      Last calendar day, inclusive
  --window DAYS        Usage window for reorder (default 30)
  --doc REF            Document reference (entries)
  --reason TEXT        Reversal note (reverse)
  --type TYPE          Only reverse entries of this document type (reverse)
  --json               Print JSON instead of a table

Environment Variables:
  DATABASE_URL         PostgreSQL connection string (required)
  LEDGER_TIMEZONE      Zone calendar days are cut in (default UTC)
  LOCK_BACKEND         local or redis (default local)
  REDIS_ADDRESS        Redis address for LOCK_BACKEND=redis
  LOCK_TTL             Redis item lock TTL (default 30s)
  LOG_LEVEL            debug, info, warn, error

Examples:
  ledgerctl migrate
  ledgerctl check
  ledgerctl repair RM-00012
  ledgerctl daily --item LUB-00001 --from 2024-01-01 --to 2024-01-31
  ledgerctl reverse ISS-00042 --reason "issued to wrong bus"`)
}
