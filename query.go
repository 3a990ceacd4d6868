package sheetdb

import (
	"context"
	"sort"
)

type matchedRow struct {
	rowNum int
	cells  []any
}

type rowRun struct {
	lo, hi int
}

// groupRuns splits sorted row numbers into maximal runs of consecutive
// integers. One rectangular store call per run bounds the number of
// round-trips by the number of runs, not the number of matches.
func groupRuns(rows []int) []rowRun {
	var runs []rowRun
	for _, r := range rows {
		if n := len(runs); n > 0 && runs[n-1].hi == r-1 {
			runs[n-1].hi = r
		} else {
			runs = append(runs, rowRun{r, r})
		}
	}
	return runs
}

func (s *Store) readColumn(ctx context.Context, tbl *Table, colIdx, fromRow, numRows int) ([]any, error) {
	rect, err := s.sheets.ReadRange(ctx, tbl.name, fromRow, colIdx+1, numRows, 1)
	if err != nil {
		return nil, err
	}
	vals := make([]any, numRows)
	for i := range vals {
		if i < len(rect) && len(rect[i]) > 0 {
			vals[i] = canonCell(rect[i][0])
		}
	}
	return vals, nil
}

// queryTable runs a filtered query: range optimization over the designated
// sort column when the predicate allows it, then a linear residual pass, then
// run-coalesced rectangular reads of the matching rows.
func (s *Store) queryTable(ctx context.Context, tbl *Table, filter Filter) ([]matchedRow, error) {
	fields := make([]string, 0, len(filter))
	for f := range filter {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	var unknown []string
	for _, f := range fields {
		if _, ok := tbl.colIndex[f]; !ok {
			unknown = append(unknown, f)
		}
	}
	if len(unknown) > 0 {
		return nil, schemaErrf(tbl, unknown, nil, "column not found")
	}

	last, err := s.sheets.LastDataRow(ctx, tbl.name)
	if err != nil {
		return nil, err
	}
	if last < firstDataRow {
		return nil, nil
	}

	residual := make(Filter, len(filter))
	for f, pred := range filter {
		residual[f] = pred
	}

	candLo, candHi := firstDataRow, last
	if tbl.sortColumn != "" {
		if pred, ok := filter[tbl.sortColumn]; ok {
			if b, shaped := rangeBoundsOf(pred); shaped {
				vals, err := s.readColumn(ctx, tbl, tbl.colIndex[tbl.sortColumn], firstDataRow, last-firstDataRow+1)
				if err != nil {
					return nil, err
				}
				lo, hi, nonEmpty := sortedInterval(vals, tbl.sortColDesc, b)
				if !nonEmpty {
					if s.verbose {
						s.logf("db: QUERY.EMPTY %s (range-optimized)", tbl.name)
					}
					return nil, nil
				}
				candLo, candHi = firstDataRow+lo, firstDataRow+hi
				delete(residual, tbl.sortColumn)
			}
		}
	}
	numCand := candHi - candLo + 1

	var matches []int
	if len(residual) == 0 {
		matches = make([]int, numCand)
		for i := range matches {
			matches[i] = candLo + i
		}
	} else {
		resFields := make([]string, 0, len(residual))
		for f := range residual {
			resFields = append(resFields, f)
		}
		sort.Strings(resFields)

		cols := make([][]any, len(resFields))
		for i, f := range resFields {
			cols[i], err = s.readColumn(ctx, tbl, tbl.colIndex[f], candLo, numCand)
			if err != nil {
				return nil, err
			}
		}
		for i := 0; i < numCand; i++ {
			ok := true
			for j, f := range resFields {
				match, err := evalPredicate(f, cols[j][i], residual[f])
				if err != nil {
					return nil, err
				}
				if !match {
					ok = false
					break
				}
			}
			if ok {
				matches = append(matches, candLo+i)
			}
		}
	}

	width := len(tbl.columns)
	runs := groupRuns(matches)
	var result []matchedRow
	for _, run := range runs {
		rect, err := s.sheets.ReadRange(ctx, tbl.name, run.lo, 1, run.hi-run.lo+1, width)
		if err != nil {
			return nil, err
		}
		for i := run.lo; i <= run.hi; i++ {
			cells := make([]any, width)
			if j := i - run.lo; j < len(rect) {
				for k := 0; k < width && k < len(rect[j]); k++ {
					cells[k] = canonCell(rect[j][k])
				}
			}
			result = append(result, matchedRow{rowNum: i, cells: cells})
		}
	}
	if s.verbose {
		s.logf("db: QUERY %s => %d rows in %d reads", tbl.name, len(result), len(runs))
	}
	return result, nil
}

// getValueTable is the intentionally simple scalar lookup: a linear scan over
// the predicate columns, bypassing the range optimizer.
func (s *Store) getValueTable(ctx context.Context, tbl *Table, filter Filter, field string) (any, error) {
	fieldIdx, ok := tbl.colIndex[field]
	if !ok {
		return nil, schemaErrf(tbl, []string{field}, nil, "column not found")
	}
	fields := make([]string, 0, len(filter))
	var unknown []string
	for f := range filter {
		if _, ok := tbl.colIndex[f]; !ok {
			unknown = append(unknown, f)
			continue
		}
		fields = append(fields, f)
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, schemaErrf(tbl, unknown, nil, "column not found")
	}
	sort.Strings(fields)

	last, err := s.sheets.LastDataRow(ctx, tbl.name)
	if err != nil {
		return nil, err
	}
	if last < firstDataRow {
		return nil, nil
	}
	n := last - firstDataRow + 1

	cols := make([][]any, len(fields))
	for i, f := range fields {
		cols[i], err = s.readColumn(ctx, tbl, tbl.colIndex[f], firstDataRow, n)
		if err != nil {
			return nil, err
		}
	}
	fieldCol, err := s.readColumn(ctx, tbl, fieldIdx, firstDataRow, n)
	if err != nil {
		return nil, err
	}

	for i := 0; i < n; i++ {
		ok := true
		for j, f := range fields {
			match, err := evalPredicate(f, cols[j][i], filter[f])
			if err != nil {
				return nil, err
			}
			if !match {
				ok = false
				break
			}
		}
		if ok {
			return fieldCol[i], nil
		}
	}
	return nil, nil
}
