// Package register_repo provides the PostgreSQL implementation of the stock
// ledger repository.
package register_repo

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgconn"

	"storeledger/internal/core/apperror"
	"storeledger/internal/core/entity"
	"storeledger/internal/core/id"
	"storeledger/internal/domain/registers/stock"
	"storeledger/internal/infrastructure/storage/postgres"
)

const (
	itemsTable   = "stock_items"
	entriesTable = "ledger_entries"

	// copyThreshold is the batch size above which entries go through COPY.
	copyThreshold = 64
)

// Postgres error codes the repository translates.
const (
	pgUniqueViolation  = "23505"
	pgCheckViolation   = "23514"
	pgLockNotAvailable = "55P03"
)

var _ stock.Repository = (*StockRepo)(nil)

// StockRepo implements stock.Repository.
type StockRepo struct {
	txm     *postgres.TxManager
	builder squirrel.StatementBuilderType

	itemCols        []string
	entryCols       []string
	entryInsertCols []string
}

// NewStockRepo creates the ledger repository.
func NewStockRepo(txm *postgres.TxManager) *StockRepo {
	entryCols := postgres.ExtractDBColumns[entity.LedgerEntry]()
	insertCols := make([]string, 0, len(entryCols))
	for _, c := range entryCols {
		if c != "seq" {
			insertCols = append(insertCols, c)
		}
	}

	return &StockRepo{
		txm:             txm,
		builder:         squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
		itemCols:        postgres.ExtractDBColumns[entity.StockItem](),
		entryCols:       entryCols,
		entryInsertCols: insertCols,
	}
}

// --- items ---

// CreateItem inserts a new item.
func (r *StockRepo) CreateItem(ctx context.Context, item *entity.StockItem) error {
	sql, args, err := r.builder.Insert(itemsTable).SetMap(postgres.StructToMap(item)).ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		if pgCode(err) == pgUniqueViolation {
			return apperror.NewDuplicate("stock item", "code", item.Code).WithCause(err)
		}
		return fmt.Errorf("insert stock item: %w", err)
	}
	return nil
}

// GetItem returns the item or NOT_FOUND.
func (r *StockRepo) GetItem(ctx context.Context, itemID id.ID) (*entity.StockItem, error) {
	return r.getItem(ctx, r.selectItems().Where(squirrel.Eq{"id": itemID}), itemID)
}

// GetItemByCode returns the item or NOT_FOUND.
func (r *StockRepo) GetItemByCode(ctx context.Context, code string) (*entity.StockItem, error) {
	return r.getItem(ctx, r.selectItems().Where(squirrel.Eq{"code": code}), code)
}

// GetItemForUpdate reads the item and holds its row lock until the
// transaction ends.
func (r *StockRepo) GetItemForUpdate(ctx context.Context, itemID id.ID) (*entity.StockItem, error) {
	if r.txm.GetTx(ctx) == nil {
		return nil, fmt.Errorf("GetItemForUpdate requires transaction context")
	}
	return r.getItem(ctx, r.selectItems().Where(squirrel.Eq{"id": itemID}).Suffix("FOR UPDATE"), itemID)
}

func (r *StockRepo) selectItems() squirrel.SelectBuilder {
	return r.builder.Select(r.itemCols...).From(itemsTable)
}

func (r *StockRepo) getItem(ctx context.Context, q squirrel.SelectBuilder, key any) (*entity.StockItem, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var item entity.StockItem
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &item, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("stock item", key)
		}
		if pgCode(err) == pgLockNotAvailable {
			return nil, apperror.NewConflict("item row is locked by another movement").WithCause(err)
		}
		return nil, fmt.Errorf("get stock item: %w", err)
	}
	return &item, nil
}

// SaveSnapshot writes the quantity fields. The CHECK constraints on
// stock_items reject a negative snapshot.
func (r *StockRepo) SaveSnapshot(ctx context.Context, item *entity.StockItem) error {
	sql, args, err := r.builder.Update(itemsTable).
		Set("main_qty", item.MainQty).
		Set("sub_qty", item.SubQty).
		Set("version", item.Version).
		Set("last_movement_at", item.LastMovementAt).
		Set("updated_at", item.UpdatedAt).
		Where(squirrel.Eq{"id": item.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	tag, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		if pgCode(err) == pgCheckViolation {
			return apperror.NewIntegrityViolation(item.ID, "snapshot must not be negative").WithCause(err)
		}
		return fmt.Errorf("update snapshot: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("stock item", item.ID)
	}
	return nil
}

// ListItems returns items ordered by code.
func (r *StockRepo) ListItems(ctx context.Context, filter stock.ItemFilter) ([]entity.StockItem, error) {
	q := r.selectItems().OrderBy("code")
	if len(filter.IDs) > 0 {
		q = q.Where(squirrel.Eq{"id": filter.IDs})
	}
	if c := strings.TrimSpace(filter.Category); c != "" {
		q = q.Where(squirrel.Expr("lower(category) = lower(?)", c))
	}
	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	items := make([]entity.StockItem, 0)
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &items, sql, args...); err != nil {
		return nil, fmt.Errorf("select stock items: %w", err)
	}
	return items, nil
}

// --- entries ---

// AppendEntries inserts entries and sets their Seq from the database.
// Large batches inside a transaction use COPY, like the movement fast path.
func (r *StockRepo) AppendEntries(ctx context.Context, entries []entity.LedgerEntry) error {
	if len(entries) == 0 {
		return nil
	}

	if r.txm.GetTx(ctx) != nil && len(entries) > copyThreshold {
		return r.copyEntries(ctx, entries)
	}

	q := r.builder.Insert(entriesTable).Columns(r.entryInsertCols...).Suffix("RETURNING id, seq")
	for i := range entries {
		q = q.Values(postgres.Values(&entries[i], r.entryInsertCols)...)
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	var assigned []seqRow
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &assigned, sql, args...); err != nil {
		return fmt.Errorf("insert ledger entries: %w", err)
	}
	return assignSeq(entries, assigned)
}

func (r *StockRepo) copyEntries(ctx context.Context, entries []entity.LedgerEntry) error {
	rows := make([][]any, 0, len(entries))
	ids := make([]id.ID, 0, len(entries))
	for i := range entries {
		rows = append(rows, postgres.Values(&entries[i], r.entryInsertCols))
		ids = append(ids, entries[i].ID)
	}

	inserter := postgres.NewBatchInserter(r.txm)
	if _, err := inserter.CopyFromSlice(ctx, entriesTable, r.entryInsertCols, rows); err != nil {
		return fmt.Errorf("copy ledger entries: %w", err)
	}

	sql, args, err := r.builder.Select("id", "seq").From(entriesTable).
		Where(squirrel.Eq{"id": ids}).ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	var assigned []seqRow
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &assigned, sql, args...); err != nil {
		return fmt.Errorf("read assigned seq: %w", err)
	}
	return assignSeq(entries, assigned)
}

type seqRow struct {
	ID  id.ID `db:"id"`
	Seq int64 `db:"seq"`
}

func assignSeq(entries []entity.LedgerEntry, assigned []seqRow) error {
	if len(assigned) != len(entries) {
		return fmt.Errorf("expected %d inserted entries, got %d", len(entries), len(assigned))
	}
	bySeq := make(map[id.ID]int64, len(assigned))
	for _, a := range assigned {
		bySeq[a.ID] = a.Seq
	}
	for i := range entries {
		entries[i].Seq = bySeq[entries[i].ID]
	}
	return nil
}

// ListEntries returns entries by business date, then seq.
func (r *StockRepo) ListEntries(ctx context.Context, filter stock.EntryFilter) ([]entity.LedgerEntry, error) {
	q := applyEntryFilter(r.builder.Select(r.entryCols...).From(entriesTable), filter).
		OrderBy("business_date", "seq")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	entries := make([]entity.LedgerEntry, 0)
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &entries, sql, args...); err != nil {
		return nil, fmt.Errorf("select ledger entries: %w", err)
	}
	return entries, nil
}

// SumByType totals entries per item and type, reversals negated.
func (r *StockRepo) SumByType(ctx context.Context, filter stock.EntryFilter) ([]stock.TypeTotal, error) {
	q := applyEntryFilter(r.builder.Select(
		"item_id",
		"movement_type",
		"COALESCE(SUM(CASE WHEN reversal THEN -quantity ELSE quantity END), 0)::bigint AS quantity",
		"COALESCE(SUM(CASE WHEN reversal THEN -amount ELSE amount END), 0) AS amount",
	).From(entriesTable), filter).
		GroupBy("item_id", "movement_type").
		OrderBy("item_id", "movement_type")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	totals := make([]stock.TypeTotal, 0)
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &totals, sql, args...); err != nil {
		return nil, fmt.Errorf("sum ledger entries: %w", err)
	}
	return totals, nil
}

func applyEntryFilter(q squirrel.SelectBuilder, f stock.EntryFilter) squirrel.SelectBuilder {
	if len(f.ItemIDs) > 0 {
		q = q.Where(squirrel.Eq{"item_id": f.ItemIDs})
	}
	if f.From != nil {
		q = q.Where(squirrel.GtOrEq{"business_date": *f.From})
	}
	if f.To != nil {
		q = q.Where(squirrel.Lt{"business_date": *f.To})
	}
	if f.DocumentRef != "" {
		q = q.Where(squirrel.Eq{"document_ref": f.DocumentRef})
	}
	if f.DocumentType != "" {
		q = q.Where(squirrel.Eq{"document_type": f.DocumentType})
	}
	return q
}

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}
