// Package reports builds read-only views over the stock ledger: the daily
// reconciliation ledger and the consumption analyses derived from it.
package reports

import (
	"time"

	"storeledger/internal/core/id"
	"storeledger/internal/core/types"
	"storeledger/internal/domain/registers/stock"
)

// --- Daily ledger ---

// DailyLedgerFilter selects the items and days of a daily ledger.
type DailyLedgerFilter struct {
	// ItemIDs limits the report; empty means every item.
	ItemIDs []id.ID

	// From and To are calendar days, both inclusive. A nil From starts at
	// the first entry; a nil To ends at the last.
	From *time.Time
	To   *time.Time

	// Location decides where a calendar day starts. Nil uses the service
	// default.
	Location *time.Location
}

// DailyRow is one item on one calendar day that has entries.
type DailyRow struct {
	ItemID id.ID     `json:"itemId"`
	Code   string    `json:"code"`
	Name   string    `json:"name"`
	Day    time.Time `json:"day"`

	OpeningMain   types.Quantity `json:"openingMain"`
	OpeningSub    types.Quantity `json:"openingSub"`
	OpeningAmount types.Money    `json:"openingAmount"`

	stock.Totals

	ClosingMain   types.Quantity `json:"closingMain"`
	ClosingSub    types.Quantity `json:"closingSub"`
	ClosingTotal  types.Quantity `json:"closingTotal"`
	ClosingAmount types.Money    `json:"closingAmount"`

	// Alarm is set when a closing balance is negative. The value is
	// reported as computed.
	Alarm bool `json:"alarm,omitempty"`
}

// Out is the quantity that left the Sub Store that day.
func (r DailyRow) Out() types.Quantity {
	return r.ConsumptionQty + r.SaleQty
}

// DailyLedger is the report for a range of days.
type DailyLedger struct {
	From     *time.Time `json:"from,omitempty"`
	To       *time.Time `json:"to,omitempty"`
	Location string     `json:"location"`
	Rows     []DailyRow `json:"rows"`
	Alarms   int        `json:"alarms"`
}

// --- Analysis ---

// ReorderRow is the reorder check for one item.
type ReorderRow struct {
	ItemID       id.ID          `json:"itemId"`
	Code         string         `json:"code"`
	Name         string         `json:"name"`
	CurrentQty   types.Quantity `json:"currentQty"`
	AvgDailyOut  float64        `json:"avgDailyOut"`
	SafetyStock  float64        `json:"safetyStock"`
	ReorderPoint float64        `json:"reorderPoint"`
	NeedsReorder bool           `json:"needsReorder"`
}

// Movement speed classes.
const (
	FastMoving = "Fast-moving"
	SlowMoving = "Slow-moving"
)

// TurnoverRow is the turnover ratio of one item over a period.
type TurnoverRow struct {
	ItemID        id.ID          `json:"itemId"`
	Code          string         `json:"code"`
	Name          string         `json:"name"`
	TotalOut      types.Quantity `json:"totalOut"`
	AvgClosingQty float64        `json:"avgClosingQty"`
	Ratio         float64        `json:"ratio"`
	Class         string         `json:"class"`
}
