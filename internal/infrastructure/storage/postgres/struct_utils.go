package postgres

import (
	"reflect"
	"sync"
)

// ExtractDBColumns returns the "db" tag names of T in field order,
// descending into embedded structs. Repositories call it once at
// construction time to build their column lists.
//
//	columns := ExtractDBColumns[entity.LedgerEntry]()
//	// ["id", "item_id", "movement_type", ...]
func ExtractDBColumns[T any]() []string {
	var zero T
	return columnsOf(reflect.TypeOf(zero))
}

func columnsOf(t reflect.Type) []string {
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil
	}

	var cols []string
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if field.Anonymous {
			cols = append(cols, columnsOf(field.Type)...)
			continue
		}
		if tag := field.Tag.Get("db"); tag != "" && tag != "-" {
			cols = append(cols, tag)
		}
	}
	return cols
}

// typeFields caches the tagged field indexes of one struct type.
type typeFields struct {
	tagged   []taggedField
	embedded []int
}

type taggedField struct {
	index int
	tag   string
}

var fieldCache sync.Map // reflect.Type -> *typeFields

func fieldsOf(t reflect.Type) *typeFields {
	if cached, ok := fieldCache.Load(t); ok {
		return cached.(*typeFields)
	}

	tf := &typeFields{}
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if field.Anonymous {
			tf.embedded = append(tf.embedded, i)
			continue
		}
		if tag := field.Tag.Get("db"); tag != "" && tag != "-" {
			tf.tagged = append(tf.tagged, taggedField{index: i, tag: tag})
		}
	}

	actual, _ := fieldCache.LoadOrStore(t, tf)
	return actual.(*typeFields)
}

// StructToMap converts a struct to column -> value using "db" tags.
// The result feeds squirrel's SetMap for inserts.
func StructToMap(v any) map[string]any {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Ptr {
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil
	}

	tf := fieldsOf(rv.Type())
	res := make(map[string]any, len(tf.tagged))
	for _, f := range tf.tagged {
		res[f.tag] = rv.Field(f.index).Interface()
	}
	for _, idx := range tf.embedded {
		for k, val := range StructToMap(rv.Field(idx).Interface()) {
			res[k] = val
		}
	}
	return res
}

// Values returns StructToMap(v) ordered by columns.
func Values(v any, columns []string) []any {
	m := StructToMap(v)
	out := make([]any, len(columns))
	for i, c := range columns {
		out[i] = m[c]
	}
	return out
}
