package sheetdb

import (
	"context"
	"encoding/binary"
	"fmt"
	"slices"
	"sort"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	"go.etcd.io/bbolt"
)

var (
	rowsBucket = []byte("rows")
	metaBucket = []byte("meta")
	headerKey  = []byte("header")
)

// BoltStore is a persistent SheetStore on top of Bolt: one root bucket per
// table, data rows under 8-byte big-endian row-number keys (starting at 2),
// each row msgpack-encoded.
type BoltStore struct {
	bdb *bbolt.DB
}

type BoltStoreOptions struct {
	IsTesting bool
	MmapSize  int
}

func OpenBoltStore(path string, opt BoltStoreOptions) (*BoltStore, error) {
	bopt := &bbolt.Options{}
	*bopt = *bbolt.DefaultOptions
	bopt.Timeout = 10 * time.Second
	if opt.IsTesting {
		bopt.NoSync = true
		bopt.NoFreelistSync = true
		bopt.InitialMmapSize = 1024 * 1024 * 5
	} else {
		bopt.InitialMmapSize = 1024 * 1024 * 1024
		bopt.FreelistType = bbolt.FreelistMapType
	}
	if opt.MmapSize != 0 {
		bopt.InitialMmapSize = opt.MmapSize
	}

	bdb, err := bbolt.Open(path, 0666, bopt)
	if err != nil {
		return nil, fmt.Errorf("sheetdb: %w", err)
	}
	return &BoltStore{bdb: bdb}, nil
}

func (s *BoltStore) Bolt() *bbolt.DB {
	return s.bdb
}

func (s *BoltStore) Close() error {
	return s.bdb.Close()
}

func rowKey(n int) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(n))
	return buf[:]
}

func encodeCells(cells []any) []byte {
	return must(msgpack.Marshal(cells))
}

func decodeCells(data []byte) ([]any, error) {
	var cells []any
	if err := msgpack.Unmarshal(data, &cells); err != nil {
		return nil, err
	}
	for i, c := range cells {
		cells[i] = canonCell(c)
	}
	return cells, nil
}

func (s *BoltStore) tableBuckets(btx *bbolt.Tx, table string) (rows, meta *bbolt.Bucket, err error) {
	root := btx.Bucket([]byte(table))
	if root == nil {
		return nil, nil, fmt.Errorf("sheetdb: no such table %q", table)
	}
	return nonNil(root.Bucket(rowsBucket)), nonNil(root.Bucket(metaBucket)), nil
}

func (s *BoltStore) headerWidth(meta *bbolt.Bucket) int {
	data := meta.Get(headerKey)
	var header []string
	ensure(msgpack.Unmarshal(data, &header))
	return len(header)
}

func (s *BoltStore) lastDataRowIn(rows *bbolt.Bucket) int {
	// Keys are contiguous starting at firstDataRow.
	return 1 + rows.Stats().KeyN
}

func (s *BoltStore) EnsureTable(ctx context.Context, table string, columns []string) error {
	return s.bdb.Update(func(btx *bbolt.Tx) error {
		root, err := btx.CreateBucketIfNotExists([]byte(table))
		if err != nil {
			return err
		}
		if _, err := root.CreateBucketIfNotExists(rowsBucket); err != nil {
			return err
		}
		meta, err := root.CreateBucketIfNotExists(metaBucket)
		if err != nil {
			return err
		}
		if meta.Get(headerKey) == nil {
			return meta.Put(headerKey, must(msgpack.Marshal(columns)))
		}
		return nil
	})
}

func (s *BoltStore) ReadRange(ctx context.Context, table string, row, col, numRows, numCols int) ([][]any, error) {
	var out [][]any
	err := s.bdb.View(func(btx *bbolt.Tx) error {
		rows, _, err := s.tableBuckets(btx, table)
		if err != nil {
			return err
		}
		out = make([][]any, numRows)
		for i := 0; i < numRows; i++ {
			cells := make([]any, numCols)
			if data := rows.Get(rowKey(row + i)); data != nil {
				stored, err := decodeCells(data)
				if err != nil {
					return fmt.Errorf("sheetdb: %s row %d: %w", table, row+i, err)
				}
				for j := 0; j < numCols; j++ {
					if ci := col - 1 + j; ci >= 0 && ci < len(stored) {
						cells[j] = stored[ci]
					}
				}
			}
			out[i] = cells
		}
		return nil
	})
	return out, err
}

func (s *BoltStore) WriteRange(ctx context.Context, table string, row, col int, rowData [][]any) error {
	return s.bdb.Update(func(btx *bbolt.Tx) error {
		rows, meta, err := s.tableBuckets(btx, table)
		if err != nil {
			return err
		}
		width := s.headerWidth(meta)
		for i, cells := range rowData {
			n := row + i
			if n < firstDataRow {
				return fmt.Errorf("sheetdb: %s: cannot write above the header (row %d)", table, n)
			}
			stored := make([]any, width)
			if data := rows.Get(rowKey(n)); data != nil {
				prev, err := decodeCells(data)
				if err != nil {
					return fmt.Errorf("sheetdb: %s row %d: %w", table, n, err)
				}
				copy(stored, prev)
			}
			for j, cell := range cells {
				if ci := col - 1 + j; ci < width {
					stored[ci] = cell
				}
			}
			if err := rows.Put(rowKey(n), encodeCells(stored)); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *BoltStore) AppendRows(ctx context.Context, table string, rowData [][]any) (int, error) {
	var first int
	err := s.bdb.Update(func(btx *bbolt.Tx) error {
		rows, meta, err := s.tableBuckets(btx, table)
		if err != nil {
			return err
		}
		width := s.headerWidth(meta)
		first = s.lastDataRowIn(rows) + 1
		for i, cells := range rowData {
			stored := make([]any, width)
			copy(stored, cells)
			if err := rows.Put(rowKey(first+i), encodeCells(stored)); err != nil {
				return err
			}
		}
		return nil
	})
	return first, err
}

func (s *BoltStore) InsertRowsAfter(ctx context.Context, table string, afterRow, count int) error {
	return s.bdb.Update(func(btx *bbolt.Tx) error {
		rows, meta, err := s.tableBuckets(btx, table)
		if err != nil {
			return err
		}
		last := s.lastDataRowIn(rows)
		if afterRow < 1 || afterRow > last {
			return fmt.Errorf("sheetdb: %s: cannot insert after row %d", table, afterRow)
		}
		// Shift everything below down, from the bottom up.
		for n := last; n > afterRow; n-- {
			data := slices.Clone(rows.Get(rowKey(n)))
			if err := rows.Put(rowKey(n+count), data); err != nil {
				return err
			}
		}
		width := s.headerWidth(meta)
		blank := encodeCells(make([]any, width))
		for n := afterRow + 1; n <= afterRow+count; n++ {
			if err := rows.Put(rowKey(n), blank); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *BoltStore) DeleteRow(ctx context.Context, table string, row int) error {
	return s.bdb.Update(func(btx *bbolt.Tx) error {
		rows, _, err := s.tableBuckets(btx, table)
		if err != nil {
			return err
		}
		last := s.lastDataRowIn(rows)
		if row < firstDataRow || row > last {
			return fmt.Errorf("sheetdb: %s: no data row %d", table, row)
		}
		// Shift everything below up.
		for n := row; n < last; n++ {
			data := slices.Clone(rows.Get(rowKey(n + 1)))
			if err := rows.Put(rowKey(n), data); err != nil {
				return err
			}
		}
		return rows.Delete(rowKey(last))
	})
}

func (s *BoltStore) SortRange(ctx context.Context, table string, row, col, numRows, numCols int, specs []SortSpec) error {
	return s.bdb.Update(func(btx *bbolt.Tx) error {
		rows, _, err := s.tableBuckets(btx, table)
		if err != nil {
			return err
		}
		last := s.lastDataRowIn(rows)
		if row < firstDataRow || row+numRows-1 > last {
			return fmt.Errorf("sheetdb: %s: sort range %d+%d out of bounds", table, row, numRows)
		}

		// Load, sort in memory, rewrite. Same simplicity-over-efficiency
		// trade the default-sort feature makes.
		full := make([][]any, numRows)
		rect := make([][]any, numRows)
		for i := 0; i < numRows; i++ {
			stored, err := decodeCells(rows.Get(rowKey(row + i)))
			if err != nil {
				return fmt.Errorf("sheetdb: %s row %d: %w", table, row+i, err)
			}
			full[i] = stored
			cells := make([]any, numCols)
			for j := 0; j < numCols; j++ {
				if ci := col - 1 + j; ci < len(stored) {
					cells[j] = stored[ci]
				}
			}
			rect[i] = cells
		}
		sort.SliceStable(rect, func(a, b int) bool {
			return compareRectRows(rect[a], rect[b], specs) < 0
		})
		for i := 0; i < numRows; i++ {
			for j := 0; j < numCols; j++ {
				if ci := col - 1 + j; ci < len(full[i]) {
					full[i][ci] = rect[i][j]
				}
			}
			if err := rows.Put(rowKey(row+i), encodeCells(full[i])); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *BoltStore) LastDataRow(ctx context.Context, table string) (int, error) {
	var last int
	err := s.bdb.View(func(btx *bbolt.Tx) error {
		rows, _, err := s.tableBuckets(btx, table)
		if err != nil {
			return err
		}
		last = s.lastDataRowIn(rows)
		return nil
	})
	return last, err
}
