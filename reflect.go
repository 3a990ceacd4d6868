package sheetdb

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"
)

var typeInfoCache sync.Map

var (
	recordMetaType = reflect.TypeOf(RecordMeta{})
	timeType       = reflect.TypeOf(time.Time{})
	linkValueType  = reflect.TypeOf((*linkValue)(nil)).Elem()
)

// structInfo is the reflection table of a row type: column name to accessor,
// built once per entity type and cached process-wide.
type structInfo struct {
	metaIndex []int
	fields    []*fieldInfo
	byColumn  map[string]*fieldInfo
}

type fieldInfo struct {
	column string
	index  []int
	typ    reflect.Type
	link   bool
}

func (si *structInfo) metaOf(rowVal reflect.Value) *RecordMeta {
	return rowVal.Elem().FieldByIndex(si.metaIndex).Addr().Interface().(*RecordMeta)
}

func (fi *fieldInfo) valueIn(rowVal reflect.Value) reflect.Value {
	return rowVal.Elem().FieldByIndex(fi.index)
}

func reflectType(typ reflect.Type) *structInfo {
	if v, ok := typeInfoCache.Load(typ); ok {
		return v.(*structInfo)
	}
	info := reflectTypeWithoutCache(typ)
	actual, _ := typeInfoCache.LoadOrStore(typ, info)
	return actual.(*structInfo)
}

func reflectTypeWithoutCache(typ reflect.Type) *structInfo {
	if typ.Kind() != reflect.Ptr {
		panic(fmt.Errorf("%v not a pointer", typ))
	}
	typ = typ.Elem()
	if typ.Kind() != reflect.Struct {
		panic(fmt.Errorf("%v not a struct", typ))
	}

	info := &structInfo{
		byColumn: make(map[string]*fieldInfo),
	}
	for i := 0; i < typ.NumField(); i++ {
		f := typ.Field(i)
		if f.Anonymous && f.Type == recordMetaType {
			info.metaIndex = f.Index
			continue
		}
		if !f.IsExported() {
			continue
		}
		column := f.Name
		if tag, ok := f.Tag.Lookup("sheet"); ok {
			if tag == "-" {
				continue
			}
			if comma := strings.IndexByte(tag, ','); comma >= 0 {
				tag = tag[:comma]
			}
			if tag != "" {
				column = tag
			}
		}
		if info.byColumn[column] != nil {
			panic(fmt.Errorf("%v: duplicate column %q", typ, column))
		}
		fi := &fieldInfo{
			column: column,
			index:  f.Index,
			typ:    f.Type,
			link:   reflect.PointerTo(f.Type).Implements(linkValueType),
		}
		info.fields = append(info.fields, fi)
		info.byColumn[column] = fi
	}
	if info.metaIndex == nil {
		panic(fmt.Errorf("%v must embed sheetdb.RecordMeta", typ))
	}
	if len(info.fields) == 0 {
		panic(fmt.Errorf("%v has no sheet columns", typ))
	}
	return info
}
