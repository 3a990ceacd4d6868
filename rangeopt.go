package sheetdb

// rangeBounds is a predicate reduced to a single contiguous interval over a
// sorted column. A nil bound leaves that side open.
type rangeBounds struct {
	min, max         any
	minExcl, maxExcl bool
}

// rangeBoundsOf reduces a predicate to interval bounds. Returns ok == false
// when the predicate is not range-shaped (e.g. $contains, $exists, a malformed
// $between, or conflicting operators); such predicates stay in the residual
// set and are evaluated linearly.
func rangeBoundsOf(pred any) (rangeBounds, bool) {
	cond, isCond := asCond(pred)
	if !isCond {
		v := normalizeCell(pred)
		if v == nil {
			return rangeBounds{}, false
		}
		return rangeBounds{min: v, max: v}, true
	}

	var b rangeBounds
	for op, arg := range cond {
		arg = canonCell(arg)
		switch op {
		case OpEq:
			if len(cond) != 1 || arg == nil {
				return rangeBounds{}, false
			}
			return rangeBounds{min: arg, max: arg}, true
		case OpBetween:
			if len(cond) != 1 {
				return rangeBounds{}, false
			}
			pair, ok := arg.([]any)
			if !ok || len(pair) != 2 {
				return rangeBounds{}, false
			}
			return rangeBounds{min: canonCell(pair[0]), max: canonCell(pair[1])}, true
		case OpGT, OpGTE:
			if b.min != nil || arg == nil {
				return rangeBounds{}, false
			}
			b.min = arg
			b.minExcl = op == OpGT
		case OpLT, OpLTE:
			if b.max != nil || arg == nil {
				return rangeBounds{}, false
			}
			b.max = arg
			b.maxExcl = op == OpLT
		default:
			return rangeBounds{}, false
		}
	}
	if b.min == nil && b.max == nil {
		return rangeBounds{}, false
	}
	return b, true
}

// sortedInterval computes the minimal contiguous 0-based position interval of
// vals covering all matches of the bounds. vals must be the sort column's
// values in physical order; descending tables are searched through a reversed
// view and the result is mapped back. Returns ok == false for an empty result.
func sortedInterval(vals []any, descending bool, b rangeBounds) (lo, hi int, ok bool) {
	n := len(vals)
	if n == 0 {
		return 0, 0, false
	}

	view := vals
	if descending {
		view = make([]any, n)
		for i, v := range vals {
			view[n-1-i] = v
		}
	}

	lo = 0
	if b.min != nil {
		lo = searchLowest(view, b.min, b.minExcl)
	}
	hi = n - 1
	if b.max != nil {
		hi = searchHighest(view, b.max, b.maxExcl)
	}
	if lo < 0 || lo >= n || hi < 0 || lo > hi {
		return 0, 0, false
	}

	if descending {
		lo, hi = n-1-hi, n-1-lo
	}
	return lo, hi, true
}

// searchLowest returns the leftmost position whose value is >= bound
// (> when excl), or len(vals) when every value is below the bound.
func searchLowest(vals []any, bound any, excl bool) int {
	left, right := 0, len(vals)-1
	candidate := -1
	for left <= right {
		mid := (left + right) / 2
		c := compareForOrder(vals[mid], bound)
		if c < 0 || (excl && c == 0) {
			left = mid + 1
		} else {
			candidate = mid
			right = mid - 1
		}
	}
	if candidate < 0 {
		return left // insertion point, == len(vals)
	}
	return candidate
}

// searchHighest returns the rightmost position whose value is <= bound
// (< when excl), or -1 when every value is above the bound.
func searchHighest(vals []any, bound any, excl bool) int {
	left, right := 0, len(vals)-1
	candidate := -1
	for left <= right {
		mid := (left + right) / 2
		c := compareForOrder(vals[mid], bound)
		if c > 0 || (excl && c == 0) {
			right = mid - 1
		} else {
			candidate = mid
			left = mid + 1
		}
	}
	return candidate
}
