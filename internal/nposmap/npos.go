// Package nposmap records where runs of 'N' were stripped from a reference
// sequence, so compacted (N-stripped) coordinates can be mapped back to the
// original FASTA coordinates (spec.md §4.2, C2).
package nposmap

import "sort"

// Run describes one stripped run of N bases: it started at originalStart
// in the source FASTA and was runLen bases long, collapsing to nothing at
// compactedPos in the N-stripped sequence.
type Run struct {
	CompactedPos  int
	OriginalStart int
	RunLen        int
}

// Map is an ordered list of stripped-N runs, sorted by CompactedPos.
type Map struct {
	runs []Run
	// cumShift[i] is the total RunLen of runs[0:i+1], letting
	// CompactedToOriginal add back the shift in O(1) once the binary
	// search has located the relevant run.
	cumShift []int
}

// New returns an empty N-position map.
func New() *Map { return &Map{} }

// AddRun records a stripped run of length runLen that began at
// originalStart in the source FASTA and collapses to compactedPos in the
// N-stripped sequence. Runs must be added in increasing compactedPos order.
func (m *Map) AddRun(compactedPos, originalStart, runLen int) {
	if runLen <= 0 {
		return
	}
	if n := len(m.runs); n > 0 && m.runs[n-1].CompactedPos > compactedPos {
		panic("nposmap: runs must be added in non-decreasing compactedPos order")
	}
	prevShift := 0
	if n := len(m.cumShift); n > 0 {
		prevShift = m.cumShift[n-1]
	}
	m.runs = append(m.runs, Run{CompactedPos: compactedPos, OriginalStart: originalStart, RunLen: runLen})
	m.cumShift = append(m.cumShift, prevShift+runLen)
}

// Len reports the number of recorded runs.
func (m *Map) Len() int { return len(m.runs) }

// Runs returns the recorded runs in compactedPos order.
func (m *Map) Runs() []Run { return m.runs }

// CompactedToOriginal maps a position in the N-stripped sequence to the
// corresponding position in the original FASTA sequence, accounting for
// every N run that was stripped strictly before it. O(log n) via binary
// search over the sorted run list plus an O(1) cumulative-shift lookup,
// per spec.md §4.2's contract.
func (m *Map) CompactedToOriginal(pos int) int {
	// Find the number of runs whose CompactedPos <= pos; every such run's
	// RunLen bases were removed before pos and must be added back.
	i := sort.Search(len(m.runs), func(i int) bool { return m.runs[i].CompactedPos > pos })
	if i == 0 {
		return pos
	}
	return pos + m.cumShift[i-1]
}
