package sheetdb

import "context"

// SortSpec orders a sort by a physical column. Col is the 1-based column
// number within the sorted range.
type SortSpec struct {
	Col        int
	Descending bool
}

// SheetStore is the row-store adapter: rectangular cell-range I/O against
// named tables. Row and column numbers are 1-based; row 1 holds the header
// and data rows start at 2. Cells are scalars only (string, int64, float64,
// bool, time.Time or nil).
//
// Implementations must be safe for use by a single caller at a time; the
// package never issues concurrent calls against the same store.
type SheetStore interface {
	// EnsureTable creates the table with the given header row if it does not
	// exist yet.
	EnsureTable(ctx context.Context, table string, columns []string) error

	// ReadRange returns the rectangle of numRows x numCols cells starting at
	// (row, col). Cells outside the stored data read as nil.
	ReadRange(ctx context.Context, table string, row, col, numRows, numCols int) ([][]any, error)

	// WriteRange stores the given rows positionally starting at (row, col).
	WriteRange(ctx context.Context, table string, row, col int, rows [][]any) error

	// AppendRows appends full-width rows after the last data row and returns
	// the row number of the first appended row.
	AppendRows(ctx context.Context, table string, rows [][]any) (firstRow int, err error)

	// InsertRowsAfter inserts count blank rows directly after afterRow,
	// shifting everything below down.
	InsertRowsAfter(ctx context.Context, table string, afterRow, count int) error

	// DeleteRow removes the physical row, shifting everything below up.
	DeleteRow(ctx context.Context, table string, row int) error

	// SortRange sorts the rectangle of numRows x numCols cells starting at
	// (row, col) by the given specs, in order of significance.
	SortRange(ctx context.Context, table string, row, col, numRows, numCols int, specs []SortSpec) error

	// LastDataRow returns the number of the last row holding data, or 1 when
	// the table holds only the header.
	LastDataRow(ctx context.Context, table string) (int, error)

	// Close releases the store.
	Close() error
}

const firstDataRow = 2
