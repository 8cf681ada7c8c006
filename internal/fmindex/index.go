// Package fmindex builds and queries the BWT/Occurrence/C-table structure
// (the FM-index) described in spec.md §3/§4.5 (C5): LF mapping, interval
// extension for backward search, and SA-sample-based locate.
package fmindex

import "fmt"

// alphabet is the fixed symbol order {$,A,C,G,T}; C-table and Occ rows are
// indexed by rank in this order, per spec.md §3.
const alphabet = "$ACGT"

func rank(c byte) int {
	switch c {
	case '$':
		return 0
	case 'A':
		return 1
	case 'C':
		return 2
	case 'G':
		return 3
	case 'T':
		return 4
	default:
		panic(fmt.Sprintf("fmindex: symbol %q outside the {$,A,C,G,T} alphabet", c))
	}
}

const numSymbols = 5

// Interval is a half-open SA-space range [Lo,Hi) representing the set of
// suffixes sharing a common prefix, per spec.md §3. Empty iff Lo >= Hi.
type Interval struct {
	Lo, Hi int
}

// Empty reports whether the interval contains no suffixes.
func (itv Interval) Empty() bool { return itv.Lo >= itv.Hi }

// Len reports how many suffixes the interval spans.
func (itv Interval) Len() int { return itv.Hi - itv.Lo }

// Index is the immutable, dual-strand BWT/Occ/C-table structure built once
// at index-build time and thereafter shared read-only across search
// workers (spec.md §3 Lifecycle, §5 Shared resources).
type Index struct {
	Seq []byte // S = F . rc(F) . $, kept for locate fallback and verification (C6)
	BWT []byte

	c [numSymbols]int32 // C-table: C[rank(c)] = |{j : S[j] < c}|

	stride1    int
	occSamples [][numSymbols]int32 // occSamples[k][r] = Occ(symbol r, k*stride1)

	stride2    int
	saSamples  []int32 // saSamples[i/stride2] = SA[i], for i % stride2 == 0

	n int
}

// Build constructs an Index from the concatenated sequence seq and its
// suffix array sa (as produced by package sais), sampling Occ every
// stride1 positions and SA every stride2 positions. Both strides must be
// positive powers of two (spec.md §4.5).
func Build(seq []byte, sa []int32, stride1, stride2 int) *Index {
	n := len(seq)
	if len(sa) != n {
		panic("fmindex: len(sa) != len(seq)")
	}
	if stride1 <= 0 || stride2 <= 0 {
		panic("fmindex: strides must be positive")
	}

	idx := &Index{
		Seq:     seq,
		BWT:     make([]byte, n),
		stride1: stride1,
		stride2: stride2,
		n:       n,
	}

	var freq [numSymbols]int32
	for _, c := range seq {
		freq[rank(c)]++
	}
	var acc int32
	for r := 0; r < numSymbols; r++ {
		idx.c[r] = acc
		acc += freq[r]
	}

	numOccSamples := n/stride1 + 1
	idx.occSamples = make([][numSymbols]int32, numOccSamples)

	numSASamples := (n + stride2 - 1) / stride2
	idx.saSamples = make([]int32, numSASamples)

	var running [numSymbols]int32
	for i := 0; i < n; i++ {
		var prevChar byte
		if sa[i] == 0 {
			prevChar = seq[n-1]
		} else {
			prevChar = seq[sa[i]-1]
		}
		idx.BWT[i] = prevChar

		if i%stride1 == 0 {
			idx.occSamples[i/stride1] = running
		}
		running[rank(prevChar)]++

		if i%stride2 == 0 {
			idx.saSamples[i/stride2] = sa[i]
		}
	}
	// When n is a multiple of stride1 the loop never reaches the sample for
	// position n, so it is stored here; otherwise the last sample sits below
	// n and Occ(c, n) scans forward from it (spec.md §3's Occ-consistency
	// invariant).
	if n%stride1 == 0 {
		idx.occSamples[n/stride1] = running
	}

	return idx
}

// Len returns |S|.
func (idx *Index) Len() int { return idx.n }

// C returns C[c] = |{j : S[j] < c}|.
func (idx *Index) C(c byte) int { return int(idx.c[rank(c)]) }

// next returns the alphabetically next symbol after c, or 0 if c is the
// last symbol (used only by tests checking the Occ-consistency invariant).
func next(c byte) (byte, bool) {
	i := rank(c)
	if i+1 >= numSymbols {
		return 0, false
	}
	return alphabet[i+1], true
}

// Occ computes Occ(c, i) = |{j < i : BWT[j] = c}|, reconstructing between
// samples by scanning the BWT (spec.md §3/§4.5).
func (idx *Index) Occ(c byte, i int) int {
	if i <= 0 {
		return 0
	}
	if i > idx.n {
		i = idx.n
	}
	r := rank(c)
	k := i / idx.stride1
	count := idx.occSamples[k][r]
	base := k * idx.stride1
	for j := base; j < i; j++ {
		if idx.BWT[j] == c {
			count++
		}
	}
	return int(count)
}

// LF is the LF mapping at BWT-space position i for symbol c: the index in
// SA-space of the character preceding an occurrence of c (spec.md §4.5).
func (idx *Index) LF(c byte, i int) int {
	return idx.C(c) + idx.Occ(c, i)
}

// ExtendInterval returns the SA interval for pattern c·P given the
// interval for P (spec.md §4.5's interval_extend). The result may be
// empty.
func (idx *Index) ExtendInterval(itv Interval, c byte) Interval {
	lo := idx.C(c) + idx.Occ(c, itv.Lo)
	hi := idx.C(c) + idx.Occ(c, itv.Hi)
	return Interval{Lo: lo, Hi: hi}
}

// FullInterval returns the SA interval spanning every suffix, the starting
// point of backward search.
func (idx *Index) FullInterval() Interval {
	return Interval{Lo: 0, Hi: idx.n}
}

// Locate recovers SA[i] by walking the LF mapping until a sampled SA
// position is reached, then adding the step count modulo |S| (spec.md
// §3's SA samples / §4.5's locate).
func (idx *Index) Locate(i int) int {
	steps := 0
	for i%idx.stride2 != 0 {
		c := idx.BWT[i]
		i = idx.LF(c, i)
		steps++
	}
	sampled := int(idx.saSamples[i/idx.stride2])
	return (sampled + steps) % idx.n
}

// Strides returns the Occ and SA sampling strides idx was built with, for
// persistence (C6).
func (idx *Index) Strides() (occStride, saStride int) { return idx.stride1, idx.stride2 }

// CTable returns a copy of the C-table, for persistence (C6).
func (idx *Index) CTable() [numSymbols]int32 { return idx.c }

// OccSamples returns the raw Occ sample table, for persistence (C6).
func (idx *Index) OccSamples() [][numSymbols]int32 { return idx.occSamples }

// SASamples returns the raw SA sample table, for persistence (C6).
func (idx *Index) SASamples() []int32 { return idx.saSamples }

// FromParts reconstructs an Index directly from previously-persisted
// tables, without recomputing them from a suffix array (spec.md §4.6's
// load path).
func FromParts(seq, bwt []byte, c [numSymbols]int32, occSamples [][numSymbols]int32, saSamples []int32, stride1, stride2 int) *Index {
	return &Index{
		Seq:        seq,
		BWT:        bwt,
		c:          c,
		stride1:    stride1,
		occSamples: occSamples,
		stride2:    stride2,
		saSamples:  saSamples,
		n:          len(seq),
	}
}
