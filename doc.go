/*
Package sheetdb implements a record store on top of a row-oriented tabular
sheet (in this case, any backend implementing SheetStore).

We implement:

1. Tables, collections of typed records marshaled from the given struct,
projected onto a fixed, ordered column layout.

2. Filtered queries, with a binary-search range optimization over a table's
designated sort column, and contiguous-run read coalescing for everything else.

3. Record lifecycle, a new/dirty/clean state machine with pre-write validation,
save/update/delete hooks, batch operations, and an advisory per-table instance
cache.

4. Links, declarative one-hop relationships where a stored scalar string
doubles as a resolved record (or an ordered list of records) and always
serializes back to its raw string form.

# Technical Details

**Rows and row numbers.**
A row is a fixed-width positional tuple of scalar cells (string, int64,
float64, bool, time.Time or nil). Rows are addressed by 1-based row numbers;
row 1 is the header, data starts at row 2. Row numbers are stable only until a
structural mutation (delete/insert) shifts the rows below it.

**Range optimization.**
When a table declares a sort column and a query carries a range-shaped
predicate on it, two binary searches (biased to the leftmost and rightmost
match) narrow the candidate rows to a single contiguous interval before any
residual filtering happens. String bounds are compared through an
ordering-safe uppercase byte encoding so byte comparison matches sheet text
ordering.

**Call-count minimization.**
Batch reads and writes are grouped into maximal runs of consecutive row
numbers, one rectangular store call per run. Throughput comes from fewer
round-trips, not parallel I/O.

**Storage backends.**
SheetStore is deliberately narrow. The package ships an in-memory store and a
persistent one on top of Bolt (one bucket per table, big-endian row-number
keys, msgpack-encoded rows). Anything that can read and write rectangular cell
ranges can back the package.
*/
package sheetdb
