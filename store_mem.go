package sheetdb

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
)

// MemStore is a transient in-memory SheetStore, used by tests and embeddable
// by callers that want the record semantics without a persistent backend.
type MemStore struct {
	mu     sync.Mutex
	sheets map[string]*memSheet
	closed bool
}

type memSheet struct {
	header []string
	rows   [][]any // rows[i] backs row number firstDataRow+i
}

func NewMemStore() *MemStore {
	return &MemStore{sheets: make(map[string]*memSheet)}
}

func (s *MemStore) sheet(table string) (*memSheet, error) {
	if s.closed {
		return nil, fmt.Errorf("sheetdb: store closed")
	}
	sh := s.sheets[table]
	if sh == nil {
		return nil, fmt.Errorf("sheetdb: no such table %q", table)
	}
	return sh, nil
}

func (sh *memSheet) blankRow() []any {
	return make([]any, len(sh.header))
}

func (s *MemStore) EnsureTable(ctx context.Context, table string, columns []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("sheetdb: store closed")
	}
	if s.sheets[table] == nil {
		s.sheets[table] = &memSheet{header: slices.Clone(columns)}
	}
	return nil
}

func (s *MemStore) ReadRange(ctx context.Context, table string, row, col, numRows, numCols int) ([][]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sh, err := s.sheet(table)
	if err != nil {
		return nil, err
	}
	out := make([][]any, numRows)
	for i := 0; i < numRows; i++ {
		cells := make([]any, numCols)
		if di := row + i - firstDataRow; di >= 0 && di < len(sh.rows) {
			for j := 0; j < numCols; j++ {
				if ci := col - 1 + j; ci >= 0 && ci < len(sh.rows[di]) {
					cells[j] = canonCell(sh.rows[di][ci])
				}
			}
		}
		out[i] = cells
	}
	return out, nil
}

func (s *MemStore) WriteRange(ctx context.Context, table string, row, col int, rows [][]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sh, err := s.sheet(table)
	if err != nil {
		return err
	}
	for i, cells := range rows {
		di := row + i - firstDataRow
		if di < 0 {
			return fmt.Errorf("sheetdb: %s: cannot write above the header (row %d)", table, row+i)
		}
		for di >= len(sh.rows) {
			sh.rows = append(sh.rows, sh.blankRow())
		}
		for j, cell := range cells {
			if ci := col - 1 + j; ci < len(sh.header) {
				sh.rows[di][ci] = cell
			}
		}
	}
	return nil
}

func (s *MemStore) AppendRows(ctx context.Context, table string, rows [][]any) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sh, err := s.sheet(table)
	if err != nil {
		return 0, err
	}
	first := firstDataRow + len(sh.rows)
	for _, cells := range rows {
		r := sh.blankRow()
		copy(r, cells)
		sh.rows = append(sh.rows, r)
	}
	return first, nil
}

func (s *MemStore) InsertRowsAfter(ctx context.Context, table string, afterRow, count int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sh, err := s.sheet(table)
	if err != nil {
		return err
	}
	di := afterRow + 1 - firstDataRow
	if di < 0 || di > len(sh.rows) {
		return fmt.Errorf("sheetdb: %s: cannot insert after row %d", table, afterRow)
	}
	blanks := make([][]any, count)
	for i := range blanks {
		blanks[i] = sh.blankRow()
	}
	sh.rows = slices.Insert(sh.rows, di, blanks...)
	return nil
}

func (s *MemStore) DeleteRow(ctx context.Context, table string, row int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sh, err := s.sheet(table)
	if err != nil {
		return err
	}
	di := row - firstDataRow
	if di < 0 || di >= len(sh.rows) {
		return fmt.Errorf("sheetdb: %s: no data row %d", table, row)
	}
	sh.rows = slices.Delete(sh.rows, di, di+1)
	return nil
}

func (s *MemStore) SortRange(ctx context.Context, table string, row, col, numRows, numCols int, specs []SortSpec) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sh, err := s.sheet(table)
	if err != nil {
		return err
	}
	lo := row - firstDataRow
	if lo < 0 || lo+numRows > len(sh.rows) {
		return fmt.Errorf("sheetdb: %s: sort range %d+%d out of bounds", table, row, numRows)
	}

	// Extract the rectangle, sort it, write it back; cells outside the
	// rectangle stay where they are (sheet semantics).
	rect := make([][]any, numRows)
	for i := range rect {
		rect[i] = make([]any, numCols)
		for j := 0; j < numCols; j++ {
			if ci := col - 1 + j; ci < len(sh.rows[lo+i]) {
				rect[i][j] = sh.rows[lo+i][ci]
			}
		}
	}
	sort.SliceStable(rect, func(a, b int) bool {
		return compareRectRows(rect[a], rect[b], specs) < 0
	})
	for i := range rect {
		for j := 0; j < numCols; j++ {
			if ci := col - 1 + j; ci < len(sh.rows[lo+i]) {
				sh.rows[lo+i][ci] = rect[i][j]
			}
		}
	}
	return nil
}

func compareRectRows(a, b []any, specs []SortSpec) int {
	for _, spec := range specs {
		ci := spec.Col - 1
		var av, bv any
		if ci < len(a) {
			av = a[ci]
		}
		if ci < len(b) {
			bv = b[ci]
		}
		c := compareForOrder(av, bv)
		if c != 0 {
			if spec.Descending {
				return -c
			}
			return c
		}
	}
	return 0
}

func (s *MemStore) LastDataRow(ctx context.Context, table string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sh, err := s.sheet(table)
	if err != nil {
		return 0, err
	}
	return firstDataRow + len(sh.rows) - 1, nil
}

func (s *MemStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.sheets = nil
	return nil
}
