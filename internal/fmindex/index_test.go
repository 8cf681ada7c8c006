package fmindex

import (
	"testing"

	"github.com/eernst/tailor/internal/sais"
)

func build(t *testing.T, seq string, stride1, stride2 int) *Index {
	t.Helper()
	s := []byte(seq)
	sa := sais.Compute(s)
	return Build(s, sa, stride1, stride2)
}

func TestLFCycleVisitsEveryIndexOnce(t *testing.T) {
	// spec.md §8 property 1.
	idx := build(t, "ACGTACGTACGT$", 4, 4)
	visited := make([]bool, idx.Len())
	i := 0
	for steps := 0; steps < idx.Len(); steps++ {
		if visited[i] {
			t.Fatalf("LF cycle revisited index %d after %d steps", i, steps)
		}
		visited[i] = true
		i = idx.LF(idx.BWT[i], i)
	}
	if i != 0 {
		t.Fatalf("LF cycle did not return to 0 after |S| steps, got %d", i)
	}
	for i, v := range visited {
		if !v {
			t.Errorf("LF cycle never visited index %d", i)
		}
	}
}

func TestOccConsistency(t *testing.T) {
	// spec.md §8 property 2: Occ(c,|S|) = C[next(c)] - C[c].
	idx := build(t, "ACGTACGTACGT$", 4, 4)
	for _, c := range []byte("$ACGT") {
		got := idx.Occ(c, idx.Len())
		var want int
		if nc, ok := next(c); ok {
			want = idx.C(nc) - idx.C(c)
		} else {
			want = idx.Len() - idx.C(c)
		}
		if got != want {
			t.Errorf("Occ(%q, |S|) = %d, want %d", c, got, want)
		}
	}
}

func TestLocateCorrectness(t *testing.T) {
	// spec.md §8 property 3: for sampled i, LF-walk recovers the stored SA[i].
	seq := []byte("GATTACAGATTACA$")
	sa := sais.Compute(seq)
	idx := Build(seq, sa, 4, 4)
	for i := range sa {
		if i%4 != 0 {
			continue
		}
		if got := idx.Locate(i); got != int(sa[i]) {
			t.Errorf("Locate(%d) = %d, want %d", i, got, sa[i])
		}
	}
}

func TestLocateAllPositionsMatchSA(t *testing.T) {
	seq := []byte("GATTACAGATTACA$")
	sa := sais.Compute(seq)
	idx := Build(seq, sa, 3, 3)
	for i := range sa {
		if got := idx.Locate(i); got != int(sa[i]) {
			t.Errorf("Locate(%d) = %d, want %d", i, got, sa[i])
		}
	}
}

func TestExtendIntervalFindsExactOccurrences(t *testing.T) {
	seq := []byte("ACGTACGT$")
	sa := sais.Compute(seq)
	idx := Build(seq, sa, 2, 2)

	itv := idx.FullInterval()
	pattern := []byte("ACGT")
	// Classic backward search extends with pattern characters back-to-front:
	// ExtendInterval(itv, c) yields the interval for "c"+P given P's interval.
	for i := len(pattern) - 1; i >= 0; i-- {
		itv = idx.ExtendInterval(itv, pattern[i])
		if itv.Empty() {
			t.Fatalf("interval went empty extending with %q", pattern[i])
		}
	}
	var positions []int
	for i := itv.Lo; i < itv.Hi; i++ {
		positions = append(positions, idx.Locate(i))
	}
	want := map[int]bool{0: true, 4: true}
	if len(positions) != 2 {
		t.Fatalf("positions = %v, want two matches (0 and 4)", positions)
	}
	for _, p := range positions {
		if !want[p] {
			t.Errorf("unexpected match position %d", p)
		}
	}
}

func TestExtendIntervalEmptyForAbsentPattern(t *testing.T) {
	seq := []byte("ACGTACGT$")
	sa := sais.Compute(seq)
	idx := Build(seq, sa, 2, 2)
	itv := idx.FullInterval()
	for _, c := range []byte("GGGG") {
		itv = idx.ExtendInterval(itv, c)
		if itv.Empty() {
			break
		}
	}
	if !itv.Empty() {
		t.Fatalf("expected empty interval for absent pattern, got %+v", itv)
	}
}
