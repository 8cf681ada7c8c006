// Package search implements the backward-extension-based longest-prefix
// matcher over the dual-strand FM-index (spec.md §4.7, C7): it finds the
// maximal prefix of a read that occurs in the reference, optionally
// tolerating one internal mismatch, and resolves genomic coordinates and
// strand via the suffix-array sample walk.
//
// The dual-strand index stores S = F · rc(F) · $. Backward extension (the
// standard prepend convention over the BWT of S) naturally grows suffixes
// of whatever pattern is fed to it. To recover growing PREFIXES of the
// read Q via that same prepend convention, this engine feeds the
// complement of each successive read base: after k steps the interval
// represents occurrences of rc(Q[0:k)) in S. Because S already holds both
// F and rc(F), those occurrences land in one of two places:
//
//   - in the rc(F) block, at local offset r: this says Q[0:k) itself
//     occurs, literally and forward, in F at position |F|-k-r — a
//     forward-strand match, mirrored back into F coordinates.
//   - in the F block, at position pos: this says Q[0:k) equals
//     rc(F[pos:pos+k)) — a reverse-strand match anchored directly at pos.
//
// The package tests check both cases against the exact dual-match and
// one-mismatch scenarios. Once a window is located, Q is compared against
// the stored literal reference only to recover the single mismatch
// descriptor; located windows are not otherwise re-checked.
package search

import (
	"fmt"
	"sort"

	"github.com/eernst/tailor/internal/bioseq"
	"github.com/eernst/tailor/internal/fmindex"
	"github.com/eernst/tailor/internal/refbuild"
)

// Mismatch describes the single substitution tolerated in mismatch mode.
// QueryPos and QueryBase are in read order; RefBase is the literal
// reference base in reference (forward-strand) orientation at the
// corresponding genomic position, regardless of the alignment's strand.
type Mismatch struct {
	QueryPos  int  // 0-based offset within the matched prefix, read order
	RefBase   byte // literal forward-strand reference base
	QueryBase byte // read base at that offset
}

// Alignment is one reported hit: a genomic window matching a prefix of
// the query, with any unmatched 3' suffix reported as Tail.
type Alignment struct {
	Chrom     string
	Pos       int // 1-based, within Chrom
	Strand    byte // '+' or '-'
	MatchLen  int
	Tail      []byte
	Mismatch  *Mismatch
}

// ChrTable resolves a forward (F-space) coordinate to a chromosome name
// and 0-based offset, per the chromosome start-offset table of spec.md §3.
type ChrTable struct {
	chrs []refbuild.ChrEntry
}

// NewChrTable builds a lookup table from a reference's chromosome entries.
func NewChrTable(chrs []refbuild.ChrEntry) *ChrTable {
	return &ChrTable{chrs: chrs}
}

// Lookup returns the chromosome containing forward coordinate pos and the
// 0-based offset within it. ok is false if pos falls outside every
// chromosome (should not happen for a valid match).
func (t *ChrTable) Lookup(pos int) (name string, offset int, ok bool) {
	i := sort.Search(len(t.chrs), func(i int) bool { return t.chrs[i].Start > pos }) - 1
	if i < 0 || i >= len(t.chrs) {
		return "", 0, false
	}
	c := t.chrs[i]
	if pos >= c.Start+c.StrippedLen {
		return "", 0, false
	}
	return c.Name, pos - c.Start, true
}

// Engine runs prefix searches against one immutable Index. It holds no
// mutable state of its own and is safe to share across worker goroutines.
type Engine struct {
	idx      *fmindex.Index
	chrs     *ChrTable
	flen     int
	minLen   int
	mismatch bool
}

// Config configures an Engine.
type Config struct {
	MinLen         int
	AllowMismatch  bool
}

// New builds a search Engine over idx, whose forward block has length
// flen, with chromosome bookkeeping chrs.
func New(idx *fmindex.Index, chrs *ChrTable, flen int, cfg Config) *Engine {
	return &Engine{idx: idx, chrs: chrs, flen: flen, minLen: cfg.MinLen, mismatch: cfg.AllowMismatch}
}

// ErrUnknownBase reports a read containing a symbol outside {A,C,G,T}.
type ErrUnknownBase struct{ Symbol byte }

func (e ErrUnknownBase) Error() string {
	return fmt.Sprintf("search: unsupported symbol %q in read", e.Symbol)
}

// Align finds every reported alignment for read q (spec.md §4.7). It
// returns (nil, nil) if the longest matched prefix is shorter than the
// engine's configured minimum length. It returns ErrUnknownBase if q
// contains a symbol outside {A,C,G,T}.
func (e *Engine) Align(q []byte) ([]Alignment, error) {
	for _, c := range q {
		if !bioseq.IsBase(c) {
			return nil, ErrUnknownBase{Symbol: c}
		}
	}
	if len(q) == 0 {
		return nil, nil
	}

	itv, p, _ := e.bestPrefix(q)
	if p < e.minLen {
		return nil, nil
	}

	var out []Alignment
	for i := itv.Lo; i < itv.Hi; i++ {
		global := e.idx.Locate(i)
		winStart, strand, ok := e.classify(global, p)
		if !ok {
			continue
		}
		chrom, offset, ok := e.chrs.Lookup(winStart)
		if !ok {
			continue
		}
		aln := Alignment{
			Chrom:    chrom,
			Pos:      offset + 1,
			Strand:   strand,
			MatchLen: p,
			Tail:     append([]byte(nil), q[p:]...),
			Mismatch: e.buildMismatch(q, p, winStart, strand),
		}
		out = append(out, aln)
	}
	return out, nil
}

// bestPrefix returns the SA interval and length of the longest matched
// prefix of q, applying the one-mismatch branch when enabled, per the
// tie-break rule of spec.md §4.7 (prefer longer; among equal, prefer
// exact).
func (e *Engine) bestPrefix(q []byte) (fmindex.Interval, int, bool) {
	exactItv, exactP := e.extendExact(q, 0, e.idx.FullInterval())
	if !e.mismatch || exactP == len(q) {
		return exactItv, exactP, false
	}

	failPos := exactP
	bestItv, bestP, usedMismatch := exactItv, exactP, false
	for _, alt := range []byte{'A', 'C', 'G', 'T'} {
		if alt == q[failPos] {
			continue
		}
		branchItv := e.idx.ExtendInterval(exactItv, bioseq.Complement(alt))
		if branchItv.Empty() {
			continue
		}
		finalItv, gained := e.extendExact(q, failPos+1, branchItv)
		total := failPos + 1 + gained
		if total > bestP {
			bestP, bestItv, usedMismatch = total, finalItv, true
		}
	}
	return bestItv, bestP, usedMismatch
}

// extendExact greedily extends itv using the true complemented bases of
// q starting at index start, stopping at the first empty interval or at
// the end of q. It returns the final interval and the number of
// additional positions consumed.
func (e *Engine) extendExact(q []byte, start int, itv fmindex.Interval) (fmindex.Interval, int) {
	count := 0
	for start+count < len(q) {
		c := bioseq.Complement(q[start+count])
		next := e.idx.ExtendInterval(itv, c)
		if next.Empty() {
			break
		}
		itv = next
		count++
	}
	return itv, count
}

// classify resolves a located S-space position + match length into a
// forward (F-space) window start and strand, per the package doc comment.
// ok is false if the match would cross the F/rc(F) boundary or the
// trailing sentinel.
func (e *Engine) classify(global, matchLen int) (winStart int, strand byte, ok bool) {
	switch {
	case global >= e.flen:
		roff := global - e.flen
		if roff+matchLen > e.flen {
			return 0, 0, false
		}
		return e.flen - matchLen - roff, '+', true
	default:
		if global+matchLen > e.flen {
			return 0, 0, false
		}
		return global, '-', true
	}
}

// buildMismatch re-derives the single substitution (if any) by literal
// comparison against the stored reference, rather than threading mismatch
// bookkeeping through the BWT search. On the reverse strand, query index j
// pairs with reference position winStart+p-1-j (the window read backward
// and complemented); buildMismatch compares using that pairing but always
// records the literal forward-strand base at that position, never its
// complement, since RefBase must be usable directly as a SAM MD letter.
func (e *Engine) buildMismatch(q []byte, p, winStart int, strand byte) *Mismatch {
	seq := e.idx.Seq
	for j := 0; j < p; j++ {
		var refPos int
		var checkBase byte
		if strand == '+' {
			refPos = winStart + j
			checkBase = seq[refPos]
		} else {
			refPos = winStart + p - 1 - j
			checkBase = bioseq.Complement(seq[refPos])
		}
		if checkBase != q[j] {
			return &Mismatch{QueryPos: j, RefBase: seq[refPos], QueryBase: q[j]}
		}
	}
	return nil
}
