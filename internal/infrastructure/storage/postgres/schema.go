package postgres

import (
	"context"
	"fmt"
)

// schema is idempotent; Migrate can run on every deploy.
const schema = `
	-- Stock items and their quantity snapshot (a cache over the ledger)
	CREATE TABLE IF NOT EXISTS stock_items (
		id               UUID PRIMARY KEY,
		code             TEXT NOT NULL UNIQUE,
		name             TEXT NOT NULL,
		category         TEXT NOT NULL DEFAULT '',
		unit             TEXT NOT NULL DEFAULT '',
		main_qty         BIGINT NOT NULL DEFAULT 0 CHECK (main_qty >= 0),
		sub_qty          BIGINT NOT NULL DEFAULT 0 CHECK (sub_qty >= 0),
		version          INTEGER NOT NULL DEFAULT 1,
		last_movement_at TIMESTAMPTZ,
		created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
	);

	CREATE INDEX IF NOT EXISTS idx_stock_items_category
		ON stock_items(lower(category));

	-- Ledger entries (append-only). Quantities are scaled by 10^4.
	CREATE TABLE IF NOT EXISTS ledger_entries (
		seq           BIGSERIAL PRIMARY KEY,
		id            UUID NOT NULL UNIQUE,
		item_id       UUID NOT NULL REFERENCES stock_items(id),
		movement_type TEXT NOT NULL CHECK (movement_type IN
			('PURCHASE', 'TRANSFER_MAIN_TO_SUB', 'CONSUMPTION', 'SALE')),
		quantity      BIGINT NOT NULL CHECK (quantity > 0),
		rate          NUMERIC(20, 6) NOT NULL DEFAULT 0,
		amount        NUMERIC(24, 6) NOT NULL DEFAULT 0,
		business_date TIMESTAMPTZ NOT NULL,
		reversal      BOOLEAN NOT NULL DEFAULT false,
		document_ref  TEXT NOT NULL DEFAULT '',
		document_type TEXT NOT NULL DEFAULT '',
		counterparty  TEXT NOT NULL DEFAULT '',
		note          TEXT NOT NULL DEFAULT '',
		recorded_by   TEXT NOT NULL DEFAULT '',
		created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
	);

	-- Hot path: fold one item's history in order
	CREATE INDEX IF NOT EXISTS idx_ledger_item_date
		ON ledger_entries(item_id, business_date, seq);
	CREATE INDEX IF NOT EXISTS idx_ledger_business_date
		ON ledger_entries(business_date);
	CREATE INDEX IF NOT EXISTS idx_ledger_document
		ON ledger_entries(document_ref) WHERE document_ref <> '';

	-- Entries are never updated or deleted
	CREATE OR REPLACE FUNCTION ledger_entries_immutable() RETURNS trigger AS $$
	BEGIN
		RAISE EXCEPTION 'ledger_entries is append-only';
	END;
	$$ LANGUAGE plpgsql;

	DROP TRIGGER IF EXISTS trg_ledger_entries_immutable ON ledger_entries;
	CREATE TRIGGER trg_ledger_entries_immutable
		BEFORE UPDATE OR DELETE ON ledger_entries
		FOR EACH ROW EXECUTE FUNCTION ledger_entries_immutable();

	-- Sequence counters for item codes and document numbers
	CREATE TABLE IF NOT EXISTS sys_sequences (
		key         TEXT PRIMARY KEY,
		current_val BIGINT NOT NULL DEFAULT 0
	);
`

// Migrate creates the ledger schema.
func Migrate(ctx context.Context, q Querier) error {
	if _, err := q.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
