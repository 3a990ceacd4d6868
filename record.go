package sheetdb

import (
	"context"
	"fmt"
	"reflect"
	"time"
)

// RecordMeta carries the lifecycle state of a record. Embed it in every row
// struct. The zero value describes a new, unsaved record.
type RecordMeta struct {
	rowNum    int
	persisted bool
	dirty     bool
}

// Row returns the backing 1-based row number. Meaningless while IsNew.
func (m *RecordMeta) Row() int { return m.rowNum }

// IsNew reports whether the record has no backing row yet.
func (m *RecordMeta) IsNew() bool { return !m.persisted }

// IsDirty reports whether the record has unpersisted field changes.
func (m *RecordMeta) IsDirty() bool { return m.dirty }

// MarkDirty transitions the record to the dirty state after field mutations.
// Save is a no-op on records that are not dirty.
func (m *RecordMeta) MarkDirty() { m.dirty = true }

func (m *RecordMeta) markClean(rowNum int) {
	m.rowNum = rowNum
	m.persisted = true
	m.dirty = false
}

func (m *RecordMeta) markDeleted() {
	m.rowNum = 0
	m.persisted = false
	m.dirty = false
}

// Lifecycle hooks. Rows implement any subset of these; hooks run inside Save,
// Delete and the batch operations, and may mutate fields before serialization.
type (
	BeforeSaver interface {
		BeforeSave(ctx context.Context) error
	}
	AfterSaver interface {
		AfterSave(ctx context.Context) error
	}
	BeforeUpdater interface {
		BeforeUpdate(ctx context.Context) error
	}
	AfterUpdater interface {
		AfterUpdate(ctx context.Context) error
	}
	BeforeDeleter interface {
		BeforeDelete(ctx context.Context) error
	}
	AfterDeleter interface {
		AfterDelete(ctx context.Context) error
	}
)

// Validator is the business-rule validation gate, checked after the declared
// field rules and before any write.
type Validator interface {
	Validate() error
}

func (tbl *Table) rowMeta(rowVal reflect.Value) *RecordMeta {
	return tbl.rowInfo.metaOf(rowVal)
}

func (tbl *Table) rowValOf(row any) reflect.Value {
	rowVal := reflect.ValueOf(row)
	if rowVal.Type() != tbl.rowTypePtr {
		panic(fmt.Errorf("%s: expected %v, got %T", tbl.name, tbl.rowTypePtr, row))
	}
	return rowVal
}

// fieldCell converts one struct field into its stored scalar form. Link
// fields collapse to their raw string; resolved target data never leaks into
// the link column.
func (tbl *Table) fieldCell(rowVal reflect.Value, fi *fieldInfo) any {
	fv := fi.valueIn(rowVal)
	if fi.link {
		return fv.Addr().Interface().(linkValue).linkRaw()
	}
	switch fv.Kind() {
	case reflect.String:
		return fv.String()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return fv.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int64(fv.Uint())
	case reflect.Float32, reflect.Float64:
		return fv.Float()
	case reflect.Bool:
		return fv.Bool()
	case reflect.Struct:
		if fi.typ == timeType {
			t := fv.Interface().(time.Time)
			if t.IsZero() {
				return nil
			}
			return normalizeDateForWrite(t)
		}
	}
	panic(fmt.Errorf("%s.%s: unsupported field type %v", tbl.name, fi.column, fi.typ))
}

// flattenRow serializes a record into a fixed-width positional row.
func (tbl *Table) flattenRow(rowVal reflect.Value) []any {
	cells := make([]any, len(tbl.rowInfo.fields))
	for i, fi := range tbl.rowInfo.fields {
		cells[i] = tbl.fieldCell(rowVal, fi)
	}
	return cells
}

// fieldsMap projects a record onto a column-name map, for validation and for
// evaluating filters against cached instances.
func (tbl *Table) fieldsMap(rowVal reflect.Value) map[string]any {
	fields := make(map[string]any, len(tbl.rowInfo.fields))
	for _, fi := range tbl.rowInfo.fields {
		fields[fi.column] = tbl.fieldCell(rowVal, fi)
	}
	return fields
}

func (tbl *Table) setFieldCell(rowVal reflect.Value, fi *fieldInfo, cell any) error {
	fv := fi.valueIn(rowVal)
	cell = canonCell(cell)
	if fi.link {
		s, _ := cell.(string)
		fv.Addr().Interface().(linkValue).setLinkRaw(s)
		return nil
	}
	if cell == nil {
		fv.SetZero()
		return nil
	}
	switch fv.Kind() {
	case reflect.String:
		fv.SetString(cellString(cell))
		return nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if f, ok := cellFloat(cell); ok {
			fv.SetInt(int64(f))
			return nil
		}
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if f, ok := cellFloat(cell); ok {
			fv.SetUint(uint64(f))
			return nil
		}
	case reflect.Float32, reflect.Float64:
		if f, ok := cellFloat(cell); ok {
			fv.SetFloat(f)
			return nil
		}
	case reflect.Bool:
		if b, ok := cell.(bool); ok {
			fv.SetBool(b)
			return nil
		}
	case reflect.Struct:
		if fi.typ == timeType {
			if t, ok := cell.(time.Time); ok {
				fv.Set(reflect.ValueOf(t))
				return nil
			}
		}
	}
	return schemaErrf(tbl, []string{fi.column}, nil, "cell %T does not fit field %v", cell, fi.typ)
}

// hydrateRow builds a clean record from a fetched row.
func (tbl *Table) hydrateRow(cells []any, rowNum int) (reflect.Value, error) {
	if len(cells) != len(tbl.rowInfo.fields) {
		return reflect.Value{}, schemaErrf(tbl, nil, nil, "row %d has %d cells, schema declares %d columns", rowNum, len(cells), len(tbl.rowInfo.fields))
	}
	rowVal := reflect.New(tbl.rowType)
	for i, fi := range tbl.rowInfo.fields {
		if err := tbl.setFieldCell(rowVal, fi, cells[i]); err != nil {
			return reflect.Value{}, err
		}
	}
	tbl.rowMeta(rowVal).markClean(rowNum)
	return rowVal, nil
}
