package sheetdb

import (
	"context"
	"errors"
	"testing"
)

type Order struct {
	RecordMeta
	Num   int64
	Buyer string
	Total float64
}

var (
	ordersSchema = &Schema{}
	ordersTable  = AddTable[Order](ordersSchema, "Orders", TableOpts{
		SortColumn: "Num",
	})
)

// countingStore wraps a SheetStore and counts the calls that hit it, so tests
// can assert how many round-trips an operation costs.
type countingStore struct {
	SheetStore
	reads, writes, appends, inserts, deletes, sorts int
}

func (c *countingStore) reset() {
	c.reads, c.writes, c.appends, c.inserts, c.deletes, c.sorts = 0, 0, 0, 0, 0, 0
}

func (c *countingStore) ReadRange(ctx context.Context, table string, row, col, numRows, numCols int) ([][]any, error) {
	c.reads++
	return c.SheetStore.ReadRange(ctx, table, row, col, numRows, numCols)
}

func (c *countingStore) WriteRange(ctx context.Context, table string, row, col int, rows [][]any) error {
	c.writes++
	return c.SheetStore.WriteRange(ctx, table, row, col, rows)
}

func (c *countingStore) AppendRows(ctx context.Context, table string, rows [][]any) (int, error) {
	c.appends++
	return c.SheetStore.AppendRows(ctx, table, rows)
}

func (c *countingStore) InsertRowsAfter(ctx context.Context, table string, afterRow, count int) error {
	c.inserts++
	return c.SheetStore.InsertRowsAfter(ctx, table, afterRow, count)
}

func (c *countingStore) DeleteRow(ctx context.Context, table string, row int) error {
	c.deletes++
	return c.SheetStore.DeleteRow(ctx, table, row)
}

func (c *countingStore) SortRange(ctx context.Context, table string, row, col, numRows, numCols int, specs []SortSpec) error {
	c.sorts++
	return c.SheetStore.SortRange(ctx, table, row, col, numRows, numCols, specs)
}

func seedOrders(t testing.TB, ctx context.Context, mem *MemStore, orders []*Order) {
	t.Helper()
	s := setupStoreNoClose(t, mem, ordersSchema)
	for _, o := range orders {
		o.MarkDirty()
		ensure0(t, Save(ctx, s, o))
	}
}

// setupStoreNoClose opens a Store whose backend outlives it, for tests that
// reopen the same sheets with a fresh instance cache.
func setupStoreNoClose(t testing.TB, sheets SheetStore, schema *Schema) *Store {
	t.Helper()
	return must(Open(context.Background(), sheets, schema, Options{Logf: t.Logf, Verbose: true}))
}

func TestQueryRangeOptimizedReads(t *testing.T) {
	ctx := context.Background()
	mem := NewMemStore()
	seedOrders(t, ctx, mem, []*Order{
		{Num: 10, Buyer: "ada", Total: 1},
		{Num: 20, Buyer: "bob", Total: 2},
		{Num: 25, Buyer: "ada", Total: 3},
		{Num: 25, Buyer: "cyn", Total: 4},
		{Num: 30, Buyer: "ada", Total: 5},
		{Num: 40, Buyer: "bob", Total: 6},
	})

	cs := &countingStore{SheetStore: mem}
	s := setupStoreNoClose(t, cs, ordersSchema)
	cs.reset()

	got := must(Get[Order](ctx, s, Filter{"Num": Cond{OpGTE: 25, OpLTE: 30}}))
	deepEqual(t, len(got), 3)
	// One sort-column read plus one rectangle read for the single run.
	deepEqual(t, cs.reads, 2)

	cs.reset()
	got = must(Get[Order](ctx, s, Filter{"Num": Cond{OpGT: 100}}))
	isempty(t, got)
	deepEqual(t, cs.reads, 1)
}

func TestQueryRunCoalescing(t *testing.T) {
	ctx := context.Background()
	mem := NewMemStore()
	seedOrders(t, ctx, mem, []*Order{
		{Num: 10, Buyer: "ada"},
		{Num: 20, Buyer: "ada"},
		{Num: 25, Buyer: "bob"},
		{Num: 25, Buyer: "bob"},
		{Num: 30, Buyer: "ada"},
		{Num: 40, Buyer: "cyn"},
	})

	cs := &countingStore{SheetStore: mem}
	s := setupStoreNoClose(t, cs, ordersSchema)
	cs.reset()

	// Matches land on rows 2, 3 and 6: two runs, so one residual column read
	// plus two rectangle reads.
	got := must(Get[Order](ctx, s, Filter{"Buyer": "ada"}))
	deepEqual(t, len(got), 3)
	deepEqual(t, cs.reads, 3)
}

func TestQueryResidualOverCandidates(t *testing.T) {
	ctx := context.Background()
	mem := NewMemStore()
	seedOrders(t, ctx, mem, []*Order{
		{Num: 10, Buyer: "ada"},
		{Num: 20, Buyer: "bob"},
		{Num: 25, Buyer: "ada"},
		{Num: 25, Buyer: "bob"},
		{Num: 30, Buyer: "ada"},
		{Num: 40, Buyer: "ada"},
	})

	cs := &countingStore{SheetStore: mem}
	s := setupStoreNoClose(t, cs, ordersSchema)
	cs.reset()

	got := must(Get[Order](ctx, s, Filter{
		"Num":   Cond{OpGTE: 20, OpLTE: 30},
		"Buyer": "ada",
	}))
	deepEqual(t, len(got), 2)
	for _, o := range got {
		deepEqual(t, o.Buyer, "ada")
	}
	// Sort-column read, residual Buyer read over the candidate interval only,
	// then two rectangle reads (rows 4 and 6 are separate runs).
	deepEqual(t, cs.reads, 4)
}

func TestQueryUnknownColumn(t *testing.T) {
	ctx := context.Background()
	s := setup(t, ordersSchema)

	_, err := Get[Order](ctx, s, Filter{"Nope": 1})
	var serr *SchemaError
	if !errors.As(err, &serr) {
		t.Fatalf("** got %v, wanted SchemaError", err)
	}
	deepEqual(t, serr.Columns, []string{"Nope"})

	_, err = GetValue[Order](ctx, s, Filter{"Num": 1}, "Nope")
	if !errors.As(err, &serr) {
		t.Fatalf("** got %v, wanted SchemaError", err)
	}
}

func TestQueryUnknownColumnWithWarmCache(t *testing.T) {
	ctx := context.Background()
	s := setup(t, ordersSchema)

	o := &Order{Num: 10, Buyer: "ada"}
	o.MarkDirty()
	ensure0(t, Save(ctx, s, o))

	// The cache shortcut must fail on an unknown column exactly like the
	// store path would, never match it against a nil field value.
	var serr *SchemaError
	for _, pred := range []any{nil, Cond{OpExists: false}, "x"} {
		got, err := Get[Order](ctx, s, Filter{"Nope": pred})
		if !errors.As(err, &serr) {
			t.Fatalf("** %v: got (%v, %v), wanted SchemaError", pred, got, err)
		}
		deepEqual(t, serr.Columns, []string{"Nope"})
	}
}

func TestQueryMalformedPredicateFailsClosed(t *testing.T) {
	ctx := context.Background()
	mem := NewMemStore()
	seedOrders(t, ctx, mem, []*Order{{Num: 10, Buyer: "ada"}})

	s := setupStoreNoClose(t, mem, ordersSchema)
	_, err := Get[Order](ctx, s, Filter{"Buyer": Cond{"$near": "ada"}})
	var perr *PredicateError
	if !errors.As(err, &perr) {
		t.Fatalf("** got %v, wanted PredicateError", err)
	}
}

func TestQueryCacheSkipsStore(t *testing.T) {
	ctx := context.Background()
	mem := NewMemStore()
	cs := &countingStore{SheetStore: mem}
	s := setupStoreNoClose(t, cs, ordersSchema)

	o := &Order{Num: 10, Buyer: "ada"}
	o.MarkDirty()
	ensure0(t, Save(ctx, s, o))
	cs.reset()

	// Non-range filter on a freshly saved record: served from the instance
	// cache without any store reads.
	got := must(Get[Order](ctx, s, Filter{"Buyer": "ada"}))
	deepEqual(t, len(got), 1)
	if got[0] != o {
		t.Error("** wanted the cached instance back")
	}
	deepEqual(t, cs.reads, 0)

	// A range-shaped filter on the sort column always goes to the store.
	cs.reset()
	got = must(Get[Order](ctx, s, Filter{"Num": Cond{OpGTE: 5}}))
	deepEqual(t, len(got), 1)
	if cs.reads == 0 {
		t.Error("** range query must not be served from the cache")
	}
}
