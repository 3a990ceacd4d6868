package sheetdb

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCanonCell(t *testing.T) {
	assert.Equal(t, int64(5), canonCell(5))
	assert.Equal(t, int64(5), canonCell(int8(5)))
	assert.Equal(t, int64(5), canonCell(uint32(5)))
	assert.Equal(t, float64(1.5), canonCell(float32(1.5)))
	assert.Equal(t, "x", canonCell("x"))
	assert.Equal(t, true, canonCell(true))
	assert.Nil(t, canonCell(nil))
}

func TestNormalizeCell(t *testing.T) {
	assert.Nil(t, normalizeCell(""))
	assert.Nil(t, normalizeCell(nil))
	assert.Equal(t, "x", normalizeCell("x"))
	assert.Equal(t, int64(0), normalizeCell(0), "numeric zero is a value")
	assert.Equal(t, false, normalizeCell(false), "false is a value")
}

func TestCellsEqual(t *testing.T) {
	assert.True(t, cellsEqual(int64(5), 5.0))
	assert.True(t, cellsEqual("a", "a"))
	assert.False(t, cellsEqual("a", "A"))
	assert.False(t, cellsEqual("5", int64(5)))
	assert.False(t, cellsEqual(true, int64(1)))
	assert.True(t, cellsEqual(nil, nil))
	assert.False(t, cellsEqual(nil, ""))

	utc := time.Date(2024, 1, 2, 12, 0, 0, 0, time.UTC)
	other := utc.In(time.FixedZone("X", 3600))
	assert.True(t, cellsEqual(utc, other), "times compare by instant, not location")
}

func TestCompareCells(t *testing.T) {
	c, ok := compareCells(int64(5), 7.5)
	assert.True(t, ok)
	assert.Equal(t, -1, c)

	c, ok = compareCells("apple", "Banana")
	assert.True(t, ok)
	assert.Equal(t, -1, c, "string order is case-insensitive")

	_, ok = compareCells("5", int64(5))
	assert.False(t, ok, "strings and numbers are not mutually comparable")

	_, ok = compareCells(nil, int64(5))
	assert.False(t, ok)

	c, ok = compareCells(false, true)
	assert.True(t, ok)
	assert.Equal(t, -1, c)
}

func TestCompareForOrder(t *testing.T) {
	assert.Equal(t, 0, compareForOrder(nil, ""))
	assert.Equal(t, -1, compareForOrder(nil, int64(0)))
	assert.Equal(t, 1, compareForOrder("x", nil))
	assert.Equal(t, -1, compareForOrder(int64(1), int64(2)))
	assert.Equal(t, 0, compareForOrder("Ada", "ada"))
}

func TestCellString(t *testing.T) {
	assert.Equal(t, "", cellString(nil))
	assert.Equal(t, "42", cellString(42))
	assert.Equal(t, "1.5", cellString(1.5))
	assert.Equal(t, "true", cellString(true))
	assert.Equal(t, "x", cellString("x"))
}

func TestNormalizeDateForWrite(t *testing.T) {
	midnight := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, 12, normalizeDateForWrite(midnight).Hour())

	afternoon := time.Date(2024, 3, 1, 15, 30, 0, 0, time.UTC)
	assert.Equal(t, afternoon, normalizeDateForWrite(afternoon))
}
