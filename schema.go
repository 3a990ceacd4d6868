package sheetdb

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"
)

// Schema is the set of tables a Store serves. Build it once at startup with
// AddTable; it is immutable afterwards.
type Schema struct {
	tables            []*Table
	tablesByLowerName map[string]*Table
	tablesByRowType   map[reflect.Type]*Table
}

func (scm *Schema) init() {
	if scm.tablesByLowerName == nil {
		scm.tablesByLowerName = make(map[string]*Table)
		scm.tablesByRowType = make(map[reflect.Type]*Table)
	}
}

func (scm *Schema) Tables() []*Table {
	return append([]*Table(nil), scm.tables...)
}

func (scm *Schema) TableNamed(name string) *Table {
	return scm.tablesByLowerName[strings.ToLower(name)]
}

func (scm *Schema) TableByRowType(rt reflect.Type) *Table {
	tbl := scm.tablesByRowType[rt]
	if tbl == nil {
		panic(fmt.Errorf("no table defined for row type %v", rt))
	}
	return tbl
}

func (scm *Schema) TableByRow(row any) *Table {
	rt := reflect.TypeOf(row)
	if rt != nil && rt.Kind() == reflect.Ptr && rt.Elem().Kind() == reflect.Struct {
		return scm.TableByRowType(rt)
	}
	panic(fmt.Errorf("expected pointer to a table row type, got %v", rt))
}

func (scm *Schema) addTable(tbl *Table) {
	scm.init()
	lower := strings.ToLower(tbl.name)
	if scm.tablesByLowerName[lower] != nil {
		panic(fmt.Errorf("table named %q already defined", tbl.name))
	}
	if scm.tablesByRowType[tbl.rowTypePtr] != nil {
		panic(fmt.Errorf("row type %v already mapped to table %q", tbl.rowType, scm.tablesByRowType[tbl.rowTypePtr].name))
	}
	tbl.pos = len(scm.tables)
	scm.tables = append(scm.tables, tbl)
	scm.tablesByLowerName[lower] = tbl
	scm.tablesByRowType[tbl.rowTypePtr] = tbl
}

// SortBy names one component of a table's default sort order.
type SortBy struct {
	Column     string
	Descending bool
}

// TableOpts configures a table beyond its column layout.
type TableOpts struct {
	// DefaultSort, when non-empty, is reapplied to the whole table after
	// every successful write. Simplicity over efficiency.
	DefaultSort []SortBy

	// SortColumn designates the column the table is known to be sorted by,
	// enabling the binary-search range optimization. Usually the first
	// component of DefaultSort.
	SortColumn           string
	SortColumnDescending bool

	// Rules are per-column validation constraints checked before any write.
	Rules map[string]FieldRule

	// Links declares relationship fields resolved by ResolveLinks.
	Links []*LinkDef

	// CacheKey derives the instance-cache key from a row. When nil, the
	// textual value of the first column is used.
	CacheKey func(row any) string
}

// Table describes one sheet: its physical column layout, sort configuration,
// validation rules and link declarations.
type Table struct {
	schema       *Schema
	name         string
	pos          int
	rowType      reflect.Type
	rowTypePtr   reflect.Type
	rowInfo      *structInfo
	columns      []string
	colIndex     map[string]int
	defaultSort  []SortBy
	sortColumn   string
	sortColDesc  bool
	rules        map[string]fieldRule
	links        []*LinkDef
	linksByField map[string]*LinkDef
	cacheKeyFn   func(row any) string
}

func (tbl *Table) Name() string {
	return tbl.name
}

func (tbl *Table) Columns() []string {
	return append([]string(nil), tbl.columns...)
}

// ColumnIndex returns the 0-based position of a column, or -1.
func (tbl *Table) ColumnIndex(name string) int {
	if i, ok := tbl.colIndex[name]; ok {
		return i
	}
	return -1
}

// AddTable defines a table backed by the given row struct. The struct's
// exported fields, in declaration order, are the physical column layout; use
// `sheet:"Name"` tags to rename and `sheet:"-"` to skip. The struct must
// embed RecordMeta.
func AddTable[Row any](scm *Schema, name string, opt TableOpts) *Table {
	scm.init()
	rowPtrType := reflect.TypeOf((*Row)(nil))
	if rowPtrType.Elem().Kind() != reflect.Struct {
		panic(fmt.Sprintf("%s: type arg to AddTable must be a struct type", name))
	}
	tbl := &Table{
		schema:       scm,
		name:         name,
		rowTypePtr:   rowPtrType,
		rowType:      rowPtrType.Elem(),
		rowInfo:      reflectType(rowPtrType),
		colIndex:     make(map[string]int),
		linksByField: make(map[string]*LinkDef),
		cacheKeyFn:   opt.CacheKey,
	}
	for i, fi := range tbl.rowInfo.fields {
		tbl.columns = append(tbl.columns, fi.column)
		tbl.colIndex[fi.column] = i
	}

	for _, sb := range opt.DefaultSort {
		if _, ok := tbl.colIndex[sb.Column]; !ok {
			panic(fmt.Errorf("%s: default sort references unknown column %q", name, sb.Column))
		}
		tbl.defaultSort = append(tbl.defaultSort, sb)
	}
	if opt.SortColumn != "" {
		if _, ok := tbl.colIndex[opt.SortColumn]; !ok {
			panic(fmt.Errorf("%s: sort column %q not in layout", name, opt.SortColumn))
		}
		tbl.sortColumn = opt.SortColumn
		tbl.sortColDesc = opt.SortColumnDescending
	}

	if len(opt.Rules) > 0 {
		tbl.rules = make(map[string]fieldRule, len(opt.Rules))
		for col, rule := range opt.Rules {
			if _, ok := tbl.colIndex[col]; !ok {
				panic(fmt.Errorf("%s: validation rule references unknown column %q", name, col))
			}
			compiled := fieldRule{FieldRule: rule}
			if rule.Pattern != "" {
				compiled.pattern = regexp.MustCompile(rule.Pattern)
			}
			if rule.Format != "" && formatValidators[rule.Format] == nil {
				panic(fmt.Errorf("%s.%s: unknown format %q", name, col, rule.Format))
			}
			tbl.rules[col] = compiled
		}
	}

	for _, def := range opt.Links {
		fi := tbl.rowInfo.byColumn[def.Field]
		if fi == nil {
			panic(fmt.Errorf("%s: link references unknown column %q", name, def.Field))
		}
		if !fi.link {
			panic(fmt.Errorf("%s.%s: link field must be a Link or LinkList", name, def.Field))
		}
		if tbl.linksByField[def.Field] != nil {
			panic(fmt.Errorf("%s: duplicate link on column %q", name, def.Field))
		}
		d := *def
		if d.LookupField == "" {
			d.LookupField = "name"
		}
		if d.Separator == "" {
			d.Separator = ","
		}
		tbl.links = append(tbl.links, &d)
		tbl.linksByField[def.Field] = &d
	}

	scm.addTable(tbl)
	return tbl
}

func (tbl *Table) cacheKey(rowVal reflect.Value) string {
	if tbl.cacheKeyFn != nil {
		return tbl.cacheKeyFn(rowVal.Interface())
	}
	return cellString(tbl.fieldCell(rowVal, tbl.rowInfo.fields[0]))
}

// sortSpecs maps the default sort order to physical column numbers.
func (tbl *Table) sortSpecs() []SortSpec {
	specs := make([]SortSpec, len(tbl.defaultSort))
	for i, sb := range tbl.defaultSort {
		specs[i] = SortSpec{Col: tbl.colIndex[sb.Column] + 1, Descending: sb.Descending}
	}
	return specs
}
