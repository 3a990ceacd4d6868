package sheetdb

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// canonCell brings a scalar cell into canonical form: all integer kinds become
// int64, float32 becomes float64. Anything else passes through unchanged.
// Store backends call this on every cell they return so that comparisons never
// have to deal with the full zoo of Go numeric types.
func canonCell(v any) any {
	switch v := v.(type) {
	case int:
		return int64(v)
	case int8:
		return int64(v)
	case int16:
		return int64(v)
	case int32:
		return int64(v)
	case uint:
		return int64(v)
	case uint8:
		return int64(v)
	case uint16:
		return int64(v)
	case uint32:
		return int64(v)
	case uint64:
		return int64(v)
	case float32:
		return float64(v)
	default:
		return v
	}
}

// normalizeCell maps the empty string to nil. Ordering operators treat empty
// cells as absent values, and a sheet cannot distinguish "" from blank anyway.
func normalizeCell(v any) any {
	v = canonCell(v)
	if s, ok := v.(string); ok && s == "" {
		return nil
	}
	return v
}

func isNumericCell(v any) bool {
	switch v.(type) {
	case int64, float64:
		return true
	}
	return false
}

func cellFloat(v any) (float64, bool) {
	switch v := v.(type) {
	case int64:
		return float64(v), true
	case float64:
		return v, true
	}
	return 0, false
}

// cellString coerces a scalar to its textual form, the way a sheet displays it.
func cellString(v any) string {
	switch v := canonCell(v).(type) {
	case nil:
		return ""
	case string:
		return v
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	case time.Time:
		return v.Format(time.RFC3339)
	default:
		return fmt.Sprint(v)
	}
}

// encodeForOrder encodes a string into bytes whose lexicographic comparison
// matches sheet text ordering (case-insensitive, uppercased).
func encodeForOrder(s string) []byte {
	return []byte(strings.ToUpper(s))
}

// cellsEqual reports strict equality between two scalars. Numbers compare
// across int64/float64; everything else requires matching kinds.
func cellsEqual(a, b any) bool {
	a, b = canonCell(a), canonCell(b)
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if isNumericCell(a) && isNumericCell(b) {
		ai, aok := a.(int64)
		bi, bok := b.(int64)
		if aok && bok {
			return ai == bi
		}
		af, _ := cellFloat(a)
		bf, _ := cellFloat(b)
		return af == bf
	}
	switch a := a.(type) {
	case string:
		b, ok := b.(string)
		return ok && a == b
	case bool:
		b, ok := b.(bool)
		return ok && a == b
	case time.Time:
		b, ok := b.(time.Time)
		return ok && a.Equal(b)
	}
	return false
}

// compareCells orders two non-nil scalars. Returns ok == false when the values
// are not mutually comparable (e.g. a string against a number).
func compareCells(a, b any) (int, bool) {
	a, b = canonCell(a), canonCell(b)
	if a == nil || b == nil {
		return 0, false
	}
	if isNumericCell(a) && isNumericCell(b) {
		af, _ := cellFloat(a)
		bf, _ := cellFloat(b)
		switch {
		case af < bf:
			return -1, true
		case af > bf:
			return 1, true
		}
		return 0, true
	}
	switch a := a.(type) {
	case string:
		b, ok := b.(string)
		if !ok {
			return 0, false
		}
		return bytes.Compare(encodeForOrder(a), encodeForOrder(b)), true
	case bool:
		b, ok := b.(bool)
		if !ok {
			return 0, false
		}
		switch {
		case a == b:
			return 0, true
		case !a:
			return -1, true
		}
		return 1, true
	case time.Time:
		b, ok := b.(time.Time)
		if !ok {
			return 0, false
		}
		return a.Compare(b), true
	}
	return 0, false
}

// compareForOrder is compareCells with a total order: nil (and empty string)
// sorts before everything, incomparable kinds fall back to their textual form.
// Used when sorting whole rows and when binary-searching a sorted column.
func compareForOrder(a, b any) int {
	a, b = normalizeCell(a), normalizeCell(b)
	if a == nil || b == nil {
		switch {
		case a == nil && b == nil:
			return 0
		case a == nil:
			return -1
		}
		return 1
	}
	if c, ok := compareCells(a, b); ok {
		return c
	}
	return bytes.Compare(encodeForOrder(cellString(a)), encodeForOrder(cellString(b)))
}

// normalizeDateForWrite pins pure dates to noon so that a backend storing them
// in a different timezone cannot shift them across a day boundary.
func normalizeDateForWrite(t time.Time) time.Time {
	h, m, s := t.Clock()
	if h == 0 && m == 0 && s == 0 && t.Nanosecond() == 0 {
		return t.Add(12 * time.Hour)
	}
	return t
}
