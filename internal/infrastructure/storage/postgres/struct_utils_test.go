package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storeledger/internal/core/entity"
	"storeledger/internal/core/id"
	"storeledger/internal/core/types"
)

type AuditFields struct {
	CreatedBy string `db:"created_by"`
}

type withEmbedded struct {
	AuditFields
	ID      id.ID  `db:"id"`
	Code    string `db:"code"`
	Ignored string `db:"-"`
	NoTag   string
}

func TestExtractDBColumns_LedgerEntry(t *testing.T) {
	cols := ExtractDBColumns[entity.LedgerEntry]()

	assert.Equal(t, "id", cols[0])
	for _, expected := range []string{
		"item_id", "movement_type", "quantity", "rate", "amount",
		"business_date", "reversal", "document_ref", "seq", "created_at",
	} {
		assert.Contains(t, cols, expected)
	}
}

func TestExtractDBColumns_Embedded(t *testing.T) {
	cols := ExtractDBColumns[withEmbedded]()
	assert.Equal(t, []string{"created_by", "id", "code"}, cols)
}

func TestStructToMap_StockItem(t *testing.T) {
	now := time.Now().UTC()
	item := entity.NewStockItem("RM-00001", "Steel rod", "Raw Material", "kg")
	item.MainQty = types.Units(60)
	item.SubQty = types.Units(30)
	item.LastMovementAt = &now

	m := StructToMap(item)

	assert.Equal(t, item.ID, m["id"])
	assert.Equal(t, "RM-00001", m["code"])
	assert.Equal(t, types.Units(60), m["main_qty"])
	assert.Equal(t, types.Units(30), m["sub_qty"])
	assert.Equal(t, 1, m["version"])
	assert.Equal(t, &now, m["last_movement_at"])
}

func TestStructToMap_EmbeddedAndIgnored(t *testing.T) {
	v := withEmbedded{AuditFields: AuditFields{CreatedBy: "ops"}, Code: "X", Ignored: "skip", NoTag: "skip"}

	m := StructToMap(v)
	require.Len(t, m, 3)
	assert.Equal(t, "ops", m["created_by"])
	assert.Equal(t, "X", m["code"])
	assert.Nil(t, StructToMap(42))
}

func TestValues_FollowsColumnOrder(t *testing.T) {
	v := withEmbedded{AuditFields: AuditFields{CreatedBy: "ops"}, Code: "X"}
	assert.Equal(t, []any{"X", "ops"}, Values(v, []string{"code", "created_by"}))
}
