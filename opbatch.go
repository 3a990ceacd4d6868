package sheetdb

import (
	"context"
	"reflect"
	"sort"

	"golang.org/x/sync/errgroup"
)

type BatchInsertOpts struct {
	// Prepend inserts the batch directly after the header instead of
	// appending it after the last data row.
	Prepend bool
}

// BatchInsert persists a batch of new records with one bulk write. Every
// record is validated before anything is written (all-or-nothing validation
// gate; a store failure mid-write is not rolled back). Hooks of each phase
// run concurrently and the next phase starts only after all of them finish.
func BatchInsert[Row any](ctx context.Context, s *Store, rows []*Row, opt BatchInsertOpts) ([]*Row, error) {
	if len(rows) == 0 {
		return rows, nil
	}
	tbl := tableOf[Row](s)

	if err := s.validateBatch(tbl, anyRows(rows)); err != nil {
		return nil, err
	}

	if err := hookPhase(ctx, anyRows(rows), callBeforeSave); err != nil {
		return nil, err
	}

	cells := make([][]any, len(rows))
	rowVals := make([]reflect.Value, len(rows))
	for i, row := range rows {
		rowVals[i] = tbl.rowValOf(row)
		cells[i] = tbl.flattenRow(rowVals[i])
	}

	var first int
	if opt.Prepend {
		if err := s.sheets.InsertRowsAfter(ctx, tbl.name, 1, len(rows)); err != nil {
			return nil, err
		}
		if err := s.sheets.WriteRange(ctx, tbl.name, firstDataRow, 1, cells); err != nil {
			return nil, err
		}
		first = firstDataRow
	} else {
		var err error
		first, err = s.sheets.AppendRows(ctx, tbl.name, cells)
		if err != nil {
			return nil, err
		}
	}
	if s.verbose {
		s.logf("db: BATCH.INSERT %s => %d rows at %d", tbl.name, len(rows), first)
	}

	cache := s.cacheFor(tbl)
	for i := range rowVals {
		tbl.rowMeta(rowVals[i]).markClean(first + i)
		cache.put(tbl.cacheKey(rowVals[i]), rowVals[i])
	}

	if err := hookPhase(ctx, anyRows(rows), callAfterSave); err != nil {
		return nil, err
	}
	if err := s.applyDefaultSort(ctx, tbl); err != nil {
		return nil, err
	}
	return rows, nil
}

// BatchSave persists a batch of existing records: dirty ones split into new
// (one bulk append) and existing (positional updates coalesced into
// contiguous-row chunks), then everything is marked clean.
func BatchSave[Row any](ctx context.Context, s *Store, rows []*Row) error {
	tbl := tableOf[Row](s)

	var dirty []*Row
	for _, row := range rows {
		if tbl.rowMeta(tbl.rowValOf(row)).dirty {
			dirty = append(dirty, row)
		}
	}
	if len(dirty) == 0 {
		return nil
	}

	if err := s.validateBatch(tbl, anyRows(dirty)); err != nil {
		return err
	}
	if err := hookPhase(ctx, anyRows(dirty), callBeforeSave); err != nil {
		return err
	}

	var news, existing []*Row
	for _, row := range dirty {
		if tbl.rowMeta(tbl.rowValOf(row)).IsNew() {
			news = append(news, row)
		} else {
			existing = append(existing, row)
		}
	}

	cache := s.cacheFor(tbl)

	if len(news) > 0 {
		cells := make([][]any, len(news))
		for i, row := range news {
			cells[i] = tbl.flattenRow(tbl.rowValOf(row))
		}
		first, err := s.sheets.AppendRows(ctx, tbl.name, cells)
		if err != nil {
			return err
		}
		for i, row := range news {
			rowVal := tbl.rowValOf(row)
			tbl.rowMeta(rowVal).markClean(first + i)
			cache.put(tbl.cacheKey(rowVal), rowVal)
		}
	}

	if len(existing) > 0 {
		sort.Slice(existing, func(i, j int) bool {
			return tbl.rowMeta(tbl.rowValOf(existing[i])).rowNum < tbl.rowMeta(tbl.rowValOf(existing[j])).rowNum
		})
		byRow := make(map[int]*Row, len(existing))
		rowNums := make([]int, len(existing))
		for i, row := range existing {
			n := tbl.rowMeta(tbl.rowValOf(row)).rowNum
			rowNums[i] = n
			byRow[n] = row
		}
		for _, run := range groupRuns(rowNums) {
			chunk := make([][]any, 0, run.hi-run.lo+1)
			for n := run.lo; n <= run.hi; n++ {
				chunk = append(chunk, tbl.flattenRow(tbl.rowValOf(byRow[n])))
			}
			if err := s.sheets.WriteRange(ctx, tbl.name, run.lo, 1, chunk); err != nil {
				return err
			}
		}
		for _, row := range existing {
			rowVal := tbl.rowValOf(row)
			meta := tbl.rowMeta(rowVal)
			meta.markClean(meta.rowNum)
			cache.put(tbl.cacheKey(rowVal), rowVal)
		}
	}
	if s.verbose {
		s.logf("db: BATCH.SAVE %s => %d new, %d updated", tbl.name, len(news), len(existing))
	}

	if err := hookPhase(ctx, anyRows(dirty), callAfterSave); err != nil {
		return err
	}
	return s.applyDefaultSort(ctx, tbl)
}

// validateBatch checks every candidate before anything is written, collecting
// all violations across the batch.
func (s *Store) validateBatch(tbl *Table, rows []any) error {
	var all []Violation
	var firstBusinessErr error
	for _, row := range rows {
		rowVal := tbl.rowValOf(row)
		all = append(all, tbl.validateFields(tbl.fieldsMap(rowVal))...)
		if v, ok := row.(Validator); ok && firstBusinessErr == nil {
			firstBusinessErr = v.Validate()
		}
	}
	if len(all) > 0 || firstBusinessErr != nil {
		return &ValidationError{Table: tbl.name, Violations: all, Err: firstBusinessErr}
	}
	return nil
}

// hookPhase fans one hook phase out across the batch and joins before
// returning. No ordering guarantee between records within a phase.
func hookPhase(ctx context.Context, rows []any, call func(context.Context, any) error) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, row := range rows {
		row := row
		g.Go(func() error {
			return call(ctx, row)
		})
	}
	return g.Wait()
}

func anyRows[Row any](rows []*Row) []any {
	out := make([]any, len(rows))
	for i, row := range rows {
		out[i] = row
	}
	return out
}
