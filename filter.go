package sheetdb

import "strings"

// Filter maps column names to predicates. A predicate is either a bare scalar
// (strict equality) or a Cond combining one or more operators, ANDed.
type Filter map[string]any

// Cond is an operator object: operator key to operand.
type Cond map[string]any

// Filter operators.
const (
	OpExists   = "$exists"
	OpLT       = "$lt"
	OpLTE      = "$lte"
	OpGT       = "$gt"
	OpGTE      = "$gte"
	OpEq       = "$eq"
	OpBetween  = "$between"
	OpContains = "$contains"
)

// evalPredicate decides whether a stored value matches a predicate.
//
// $exists is checked before null-normalization: a value exists when it is
// neither nil nor the empty string. For every other operator the empty string
// first normalizes to nil, and nil never matches. Unrecognized operator keys
// fail closed with a PredicateError.
func evalPredicate(field string, value, pred any) (bool, error) {
	cond, ok := asCond(pred)
	if !ok {
		return cellsEqual(value, pred), nil
	}

	if arg, ok := cond[OpExists]; ok {
		want, ok := arg.(bool)
		if !ok {
			return false, predicateErrf(field, OpExists, "operand must be a bool, got %T", arg)
		}
		exists := normalizeCell(value) != nil
		if exists != want {
			return false, nil
		}
	}

	v := normalizeCell(value)
	for op, arg := range cond {
		switch op {
		case OpExists:
			// handled above
		case OpEq:
			if !cellsEqual(v, arg) {
				return false, nil
			}
		case OpLT, OpLTE, OpGT, OpGTE:
			if v == nil {
				return false, nil
			}
			c, ok := compareCells(v, arg)
			if !ok {
				return false, nil
			}
			var match bool
			switch op {
			case OpLT:
				match = c < 0
			case OpLTE:
				match = c <= 0
			case OpGT:
				match = c > 0
			case OpGTE:
				match = c >= 0
			}
			if !match {
				return false, nil
			}
		case OpBetween:
			min, max, err := betweenBounds(field, arg)
			if err != nil {
				return false, err
			}
			if v == nil {
				return false, nil
			}
			lo, ok1 := compareCells(v, min)
			hi, ok2 := compareCells(v, max)
			if !ok1 || !ok2 || lo < 0 || hi > 0 {
				return false, nil
			}
		case OpContains:
			if v == nil {
				return false, nil
			}
			hay := strings.ToUpper(cellString(v))
			needle := strings.ToUpper(cellString(arg))
			if !strings.Contains(hay, needle) {
				return false, nil
			}
		default:
			return false, predicateErrf(field, op, "unrecognized operator")
		}
	}
	return true, nil
}

func asCond(pred any) (Cond, bool) {
	switch pred := pred.(type) {
	case Cond:
		return pred, true
	case map[string]any:
		return Cond(pred), true
	}
	return nil, false
}

// betweenBounds validates a $between operand: a two-element [min, max] slice,
// inclusive on both ends.
func betweenBounds(field string, arg any) (min, max any, err error) {
	var pair []any
	switch arg := arg.(type) {
	case []any:
		pair = arg
	default:
		return nil, nil, predicateErrf(field, OpBetween, "operand must be a [min, max] pair, got %T", arg)
	}
	if len(pair) != 2 {
		return nil, nil, predicateErrf(field, OpBetween, "operand must have exactly 2 elements, got %d", len(pair))
	}
	return canonCell(pair[0]), canonCell(pair[1]), nil
}

// matchesFilter applies every predicate of a filter to a field map.
func matchesFilter(fields map[string]any, filter Filter) (bool, error) {
	for field, pred := range filter {
		ok, err := evalPredicate(field, fields[field], pred)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}
