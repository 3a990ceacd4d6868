package sheetdb

import (
	"context"
	"fmt"
)

// Store serves a Schema against a SheetStore. All operations from a single
// caller are sequential; the instance caches are mutex-guarded so a Store may
// be shared across goroutines, but the package never parallelizes I/O itself.
type Store struct {
	sheets  SheetStore
	schema  *Schema
	logf    func(format string, args ...any)
	verbose bool
	caches  []*instanceCache
}

type Options struct {
	Logf    func(format string, args ...any)
	Verbose bool
}

// Open prepares every table of the schema (creating missing ones with their
// header row) and returns a ready Store. The Store takes ownership of sheets.
func Open(ctx context.Context, sheets SheetStore, schema *Schema, opt Options) (*Store, error) {
	if schema == nil || len(schema.tables) == 0 {
		panic("sheetdb: schema with at least one table required")
	}
	s := &Store{
		sheets:  sheets,
		schema:  schema,
		logf:    opt.Logf,
		verbose: opt.Verbose,
		caches:  make([]*instanceCache, len(schema.tables)),
	}
	if s.logf == nil {
		s.logf = func(format string, args ...any) {}
	}
	for i, tbl := range schema.tables {
		if err := sheets.EnsureTable(ctx, tbl.name, tbl.columns); err != nil {
			return nil, fmt.Errorf("sheetdb: preparing table %s: %w", tbl.name, err)
		}
		s.caches[i] = newInstanceCache()
	}
	return s, nil
}

func (s *Store) Schema() *Schema {
	return s.schema
}

func (s *Store) Close() {
	ensure(s.sheets.Close())
}

func (s *Store) cacheFor(tbl *Table) *instanceCache {
	return s.caches[tbl.pos]
}

// applyDefaultSort re-sorts the whole table by its declared order after a
// successful write. A deliberate simplicity-over-efficiency trade-off; row
// numbers of previously hydrated records may go stale afterwards.
func (s *Store) applyDefaultSort(ctx context.Context, tbl *Table) error {
	if len(tbl.defaultSort) == 0 {
		return nil
	}
	last, err := s.sheets.LastDataRow(ctx, tbl.name)
	if err != nil {
		return err
	}
	if last <= firstDataRow {
		return nil
	}
	return s.sheets.SortRange(ctx, tbl.name, firstDataRow, 1, last-firstDataRow+1, len(tbl.columns), tbl.sortSpecs())
}
