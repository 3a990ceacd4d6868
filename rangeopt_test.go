package sheetdb

import (
	"math/rand"
	"sort"
	"testing"
)

func TestRangeBoundsOf(t *testing.T) {
	shaped := func(pred any) {
		t.Helper()
		if _, ok := rangeBoundsOf(pred); !ok {
			t.Errorf("** %v not range-shaped, wanted shaped", pred)
		}
	}
	unshaped := func(pred any) {
		t.Helper()
		if _, ok := rangeBoundsOf(pred); ok {
			t.Errorf("** %v range-shaped, wanted not", pred)
		}
	}

	shaped(25)
	shaped("bob")
	shaped(Cond{OpEq: 25})
	shaped(Cond{OpBetween: []any{10, 20}})
	shaped(Cond{OpGTE: 10})
	shaped(Cond{OpLT: 20})
	shaped(Cond{OpGT: 10, OpLTE: 20})

	unshaped(nil)
	unshaped("")
	unshaped(Cond{OpContains: "x"})
	unshaped(Cond{OpExists: true})
	unshaped(Cond{OpBetween: []any{10}})
	unshaped(Cond{OpBetween: 10})
	unshaped(Cond{OpGT: 10, OpGTE: 20})
	unshaped(Cond{OpEq: 25, OpLT: 30})
	unshaped(Cond{"$near": 25})
}

func TestSortedInterval(t *testing.T) {
	vals := []any{int64(20), int64(25), int64(25), int64(30), int64(40)}

	o := func(pred any, wantLo, wantHi int, wantOK bool) {
		t.Helper()
		b, shaped := rangeBoundsOf(pred)
		if !shaped {
			t.Fatalf("** %v not range-shaped", pred)
		}
		lo, hi, ok := sortedInterval(vals, false, b)
		if ok != wantOK || (ok && (lo != wantLo || hi != wantHi)) {
			t.Errorf("** %v => (%d, %d, %v), wanted (%d, %d, %v)", pred, lo, hi, ok, wantLo, wantHi, wantOK)
		}
	}

	o(Cond{OpGTE: 25, OpLTE: 30}, 1, 3, true)
	o(Cond{OpGT: 25, OpLTE: 30}, 3, 3, true)
	o(Cond{OpGTE: 25, OpLT: 30}, 1, 2, true)
	o(Cond{OpEq: 25}, 1, 2, true)
	o(Cond{OpEq: 22}, 0, 0, false)
	o(Cond{OpBetween: []any{20, 40}}, 0, 4, true)
	o(Cond{OpGT: 40}, 0, 0, false)
	o(Cond{OpLT: 20}, 0, 0, false)
	o(Cond{OpGTE: 35}, 4, 4, true)
	o(Cond{OpLTE: 22}, 0, 0, true)
}

func TestSortedIntervalDescending(t *testing.T) {
	vals := []any{int64(40), int64(30), int64(25), int64(25), int64(20)}

	b, shaped := rangeBoundsOf(Cond{OpGTE: 25, OpLTE: 30})
	if !shaped {
		t.Fatal("** not range-shaped")
	}
	lo, hi, ok := sortedInterval(vals, true, b)
	if !ok || lo != 1 || hi != 3 {
		t.Errorf("** got (%d, %d, %v), wanted (1, 3, true)", lo, hi, ok)
	}

	b, _ = rangeBoundsOf(Cond{OpGT: 100})
	if _, _, ok := sortedInterval(vals, true, b); ok {
		t.Error("** wanted empty interval")
	}
}

func TestSortedIntervalEmpty(t *testing.T) {
	b, _ := rangeBoundsOf(Cond{OpGTE: 0})
	if _, _, ok := sortedInterval(nil, false, b); ok {
		t.Error("** wanted empty interval for empty column")
	}
}

// Randomized cross-check: the interval returned by the optimizer must cover
// exactly the positions a linear evalPredicate pass would match.
func TestSortedIntervalRandomized(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for iter := 0; iter < 500; iter++ {
		n := rng.Intn(30)
		vals := make([]any, n)
		nums := make([]int, n)
		for i := range vals {
			nums[i] = rng.Intn(20)
		}
		sort.Ints(nums)

		descending := rng.Intn(2) == 1
		for i, v := range nums {
			if descending {
				vals[n-1-i] = int64(v)
			} else {
				vals[i] = int64(v)
			}
		}

		var pred Cond
		switch rng.Intn(4) {
		case 0:
			pred = Cond{OpEq: rng.Intn(20)}
		case 1:
			a, b := rng.Intn(20), rng.Intn(20)
			if a > b {
				a, b = b, a
			}
			pred = Cond{OpBetween: []any{a, b}}
		case 2:
			pred = Cond{OpGTE: rng.Intn(20), OpLT: rng.Intn(20)}
		default:
			pred = Cond{OpGT: rng.Intn(20)}
		}

		b, shaped := rangeBoundsOf(pred)
		if !shaped {
			t.Fatalf("** %v not range-shaped", pred)
		}
		lo, hi, ok := sortedInterval(vals, descending, b)

		var want []int
		for i, v := range vals {
			match, err := evalPredicate("F", v, pred)
			if err != nil {
				t.Fatal(err)
			}
			if match {
				want = append(want, i)
			}
		}

		if len(want) == 0 {
			if ok {
				t.Errorf("** %v over %v (desc=%v): got (%d, %d), wanted empty", pred, vals, descending, lo, hi)
			}
			continue
		}
		if !ok || lo != want[0] || hi != want[len(want)-1] {
			t.Errorf("** %v over %v (desc=%v): got (%d, %d, %v), wanted (%d, %d)", pred, vals, descending, lo, hi, ok, want[0], want[len(want)-1])
		}
	}
}

func TestGroupRuns(t *testing.T) {
	deepEqual(t, groupRuns(nil), []rowRun(nil))
	deepEqual(t, groupRuns([]int{7}), []rowRun{{7, 7}})
	deepEqual(t, groupRuns([]int{3, 4, 5, 9, 10, 15}), []rowRun{{3, 5}, {9, 10}, {15, 15}})
	deepEqual(t, groupRuns([]int{2, 3, 4, 5}), []rowRun{{2, 5}})
}
