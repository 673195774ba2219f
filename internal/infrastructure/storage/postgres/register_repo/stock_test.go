package register_repo

import (
	"testing"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storeledger/internal/core/entity"
	"storeledger/internal/core/id"
	"storeledger/internal/domain/registers/stock"
)

func TestNewStockRepo_Columns(t *testing.T) {
	r := NewStockRepo(nil)

	assert.Contains(t, r.entryCols, "seq")
	assert.NotContains(t, r.entryInsertCols, "seq")
	assert.Len(t, r.entryInsertCols, len(r.entryCols)-1)
	assert.Contains(t, r.itemCols, "main_qty")
	assert.Contains(t, r.itemCols, "sub_qty")
}

func TestApplyEntryFilter(t *testing.T) {
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 7)
	itemA, itemB := id.New(), id.New()

	q := applyEntryFilter(
		squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar).Select("id").From(entriesTable),
		stock.EntryFilter{ItemIDs: []id.ID{itemA, itemB}, From: &from, To: &to, DocumentRef: "PI-7"},
	)

	sql, args, err := q.ToSql()
	require.NoError(t, err)
	assert.Equal(t,
		"SELECT id FROM ledger_entries WHERE item_id IN ($1,$2) AND business_date >= $3 AND business_date < $4 AND document_ref = $5",
		sql)
	assert.Equal(t, []any{itemA, itemB, from, to, "PI-7"}, args)
}

func TestApplyEntryFilter_DocumentType(t *testing.T) {
	sql, args, err := applyEntryFilter(
		squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar).Select("id").From(entriesTable),
		stock.EntryFilter{DocumentRef: "PI/INV-9", DocumentType: "IssueBill"},
	).ToSql()
	require.NoError(t, err)
	assert.Equal(t,
		"SELECT id FROM ledger_entries WHERE document_ref = $1 AND document_type = $2",
		sql)
	assert.Equal(t, []any{"PI/INV-9", "IssueBill"}, args)
}

func TestApplyEntryFilter_Empty(t *testing.T) {
	sql, args, err := applyEntryFilter(
		squirrel.StatementBuilder.Select("id").From(entriesTable),
		stock.EntryFilter{},
	).ToSql()
	require.NoError(t, err)
	assert.Equal(t, "SELECT id FROM ledger_entries", sql)
	assert.Empty(t, args)
}

func TestAssignSeq(t *testing.T) {
	a := entity.LedgerEntry{ID: id.New()}
	b := entity.LedgerEntry{ID: id.New()}
	entries := []entity.LedgerEntry{a, b}

	err := assignSeq(entries, []seqRow{{ID: b.ID, Seq: 11}, {ID: a.ID, Seq: 10}})
	require.NoError(t, err)
	assert.Equal(t, int64(10), entries[0].Seq)
	assert.Equal(t, int64(11), entries[1].Seq)

	assert.Error(t, assignSeq(entries, []seqRow{{ID: a.ID, Seq: 1}}))
}
