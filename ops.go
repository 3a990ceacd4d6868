package sheetdb

import (
	"context"
	"reflect"
	"sort"
)

func tableOf[Row any](s *Store) *Table {
	return s.schema.TableByRowType(reflect.TypeOf((*Row)(nil)))
}

// Get returns the records matching the filter. When the filter cannot use the
// range optimization, already-hydrated records are checked first and a store
// round-trip is skipped on a hit; range-shaped queries always go to the store
// because they rely on its ordering guarantees.
func Get[Row any](ctx context.Context, s *Store, filter Filter) ([]*Row, error) {
	tbl := tableOf[Row](s)

	if !s.rangeOptimizable(tbl, filter) {
		cached, err := s.cachedMatches(tbl, filter)
		if err != nil {
			return nil, err
		}
		if len(cached) > 0 {
			if s.verbose {
				s.logf("db: GET.CACHED %s => %d rows", tbl.name, len(cached))
			}
			return typedRows[Row](cached), nil
		}
	}

	matched, err := s.queryTable(ctx, tbl, filter)
	if err != nil {
		return nil, err
	}
	rowVals, err := s.hydrateAndCache(tbl, matched)
	if err != nil {
		return nil, err
	}
	return typedRows[Row](rowVals), nil
}

// All returns every record of the table in physical row order.
func All[Row any](ctx context.Context, s *Store) ([]*Row, error) {
	tbl := tableOf[Row](s)
	last, err := s.sheets.LastDataRow(ctx, tbl.name)
	if err != nil {
		return nil, err
	}
	if last < firstDataRow {
		return nil, nil
	}
	rect, err := s.sheets.ReadRange(ctx, tbl.name, firstDataRow, 1, last-firstDataRow+1, len(tbl.columns))
	if err != nil {
		return nil, err
	}
	matched := make([]matchedRow, len(rect))
	for i, cells := range rect {
		padded := make([]any, len(tbl.columns))
		for k := 0; k < len(padded) && k < len(cells); k++ {
			padded[k] = canonCell(cells[k])
		}
		matched[i] = matchedRow{rowNum: firstDataRow + i, cells: padded}
	}
	rowVals, err := s.hydrateAndCache(tbl, matched)
	if err != nil {
		return nil, err
	}
	return typedRows[Row](rowVals), nil
}

// GetValue returns a single scalar field of the first record matching the
// filter, or nil. Intentionally a linear scan.
func GetValue[Row any](ctx context.Context, s *Store, filter Filter, field string) (any, error) {
	tbl := tableOf[Row](s)
	return s.getValueTable(ctx, tbl, filter, field)
}

// rangeOptimizable reports whether queryTable would consult the range
// optimizer for this filter.
func (s *Store) rangeOptimizable(tbl *Table, filter Filter) bool {
	if tbl.sortColumn == "" {
		return false
	}
	pred, ok := filter[tbl.sortColumn]
	if !ok {
		return false
	}
	_, shaped := rangeBoundsOf(pred)
	return shaped
}

// cachedMatches filters the instance cache in memory. Cheap, but only catches
// records hydrated earlier in this session. Unknown filter columns fail here
// the same way they would against the store.
func (s *Store) cachedMatches(tbl *Table, filter Filter) ([]reflect.Value, error) {
	var unknown []string
	for f := range filter {
		if _, ok := tbl.colIndex[f]; !ok {
			unknown = append(unknown, f)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, schemaErrf(tbl, unknown, nil, "column not found")
	}

	var hits []reflect.Value
	for _, rowVal := range s.cacheFor(tbl).snapshot() {
		match, err := matchesFilter(tbl.fieldsMap(rowVal), filter)
		if err != nil {
			return nil, err
		}
		if match {
			hits = append(hits, rowVal)
		}
	}
	sort.Slice(hits, func(i, j int) bool {
		return tbl.rowMeta(hits[i]).rowNum < tbl.rowMeta(hits[j]).rowNum
	})
	return hits, nil
}

func (s *Store) hydrateAndCache(tbl *Table, matched []matchedRow) ([]reflect.Value, error) {
	cache := s.cacheFor(tbl)
	rowVals := make([]reflect.Value, len(matched))
	for i, m := range matched {
		rowVal, err := tbl.hydrateRow(m.cells, m.rowNum)
		if err != nil {
			return nil, err
		}
		rowVals[i] = rowVal
		cache.put(tbl.cacheKey(rowVal), rowVal)
	}
	return rowVals, nil
}

func typedRows[Row any](rowVals []reflect.Value) []*Row {
	if len(rowVals) == 0 {
		return nil
	}
	rows := make([]*Row, len(rowVals))
	for i, v := range rowVals {
		rows[i] = v.Interface().(*Row)
	}
	return rows
}
