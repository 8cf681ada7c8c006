// Package samfmt renders search.Alignment results as SAM records using
// github.com/biogo/hts/sam (C9, spec.md §4.9/§6). It mirrors the teacher's
// choice of library for reading/writing alignment formats, generalized from
// BAM-only I/O to text SAM output with a custom tail tag.
//
// CIGAR is reported in reference orientation: a matched prefix of length p
// and an unmatched 3' tail of length t become "pM tS" on the forward strand,
// but "tS pM" on the reverse strand, since SAM always reports SEQ and CIGAR
// as they appear on the reference's forward strand and the tail is always
// the read's 3' end in sequencing order. SEQ is reverse-complemented to
// match for reverse-strand hits.
package samfmt

import (
	"fmt"
	"io"

	"github.com/biogo/hts/sam"

	"github.com/eernst/tailor/internal/bioseq"
	"github.com/eernst/tailor/internal/refbuild"
	"github.com/eernst/tailor/internal/search"
)

// TailTag is the custom auxiliary tag carrying the non-templated 3' tail
// sequence, named after the original tool's tailor_map.hpp convention.
var TailTag = sam.NewTag("TL")

// mapQ is reported for every alignment: the engine does not compute a
// probabilistic mapping quality, so every hit gets the SAM "not available"
// sentinel.
const mapQ = 255

// Writer formats alignments against one fixed set of chromosomes.
type Writer struct {
	w    io.Writer
	refs map[string]*sam.Reference
}

// NewWriter builds a Writer and immediately emits the SAM header: one @HD
// line declaring unsorted order, and one @SQ line per chromosome, in the
// order given.
func NewWriter(w io.Writer, chrs []refbuild.ChrEntry) (*Writer, error) {
	refs := make([]*sam.Reference, len(chrs))
	byName := make(map[string]*sam.Reference, len(chrs))
	for i, c := range chrs {
		// LN uses the N-stripped length, not the original FASTA length:
		// reported alignment coordinates live in N-stripped space (the
		// chosen resolution of spec.md §9's N-handling question), and only
		// StrippedLen survives an index save/load round trip via chrLen.
		ref, err := sam.NewReference(c.Name, "", "", c.StrippedLen, nil, nil)
		if err != nil {
			return nil, fmt.Errorf("samfmt: reference %q: %w", c.Name, err)
		}
		refs[i] = ref
		byName[c.Name] = ref
	}

	h, err := sam.NewHeader(nil, refs)
	if err != nil {
		return nil, fmt.Errorf("samfmt: header: %w", err)
	}
	h.Version = "1.0"
	h.SortOrder = sam.Unsorted

	text, err := h.MarshalText()
	if err != nil {
		return nil, fmt.Errorf("samfmt: write header: %w", err)
	}
	if _, err := w.Write(text); err != nil {
		return nil, fmt.Errorf("samfmt: write header: %w", err)
	}
	return &Writer{w: w, refs: byName}, nil
}

// WriteAlignment formats one read/alignment pair and appends it to the
// underlying stream as a single SAM line.
func (sw *Writer) WriteAlignment(readName string, readSeq []byte, aln search.Alignment) error {
	line, err := sw.Format(readName, readSeq, aln)
	if err != nil {
		return err
	}
	if _, err := sw.w.Write(line); err != nil {
		return fmt.Errorf("samfmt: write record: %w", err)
	}
	return nil
}

// Format renders one read/alignment pair as a single newline-terminated SAM
// line, without writing it anywhere. Callers that serialize concurrent
// formatting from writing (e.g. a worker pool) use this directly and
// append the result under their own output lock.
func (sw *Writer) Format(readName string, readSeq []byte, aln search.Alignment) ([]byte, error) {
	ref, ok := sw.refs[aln.Chrom]
	if !ok {
		return nil, fmt.Errorf("samfmt: unknown chromosome %q", aln.Chrom)
	}

	tailLen := len(aln.Tail)
	var cigar sam.Cigar
	seq := readSeq
	if aln.Strand == '-' {
		seq = bioseq.ReverseComplement(readSeq)
		if tailLen > 0 {
			cigar = append(cigar, sam.NewCigarOp(sam.CigarSoftClipped, tailLen))
		}
		cigar = append(cigar, sam.NewCigarOp(sam.CigarMatch, aln.MatchLen))
	} else {
		cigar = append(cigar, sam.NewCigarOp(sam.CigarMatch, aln.MatchLen))
		if tailLen > 0 {
			cigar = append(cigar, sam.NewCigarOp(sam.CigarSoftClipped, tailLen))
		}
	}

	aux := []sam.Aux{
		buildMDTag(aln),
		mustAux(sam.NewAux(TailTag, string(aln.Tail))),
	}
	if aln.Mismatch != nil {
		aux = append(aux, mustAux(sam.NewAux(sam.NewTag("NM"), 1)))
	} else {
		aux = append(aux, mustAux(sam.NewAux(sam.NewTag("NM"), 0)))
	}

	rec, err := sam.NewRecord(readName, ref, nil, aln.Pos-1, -1, 0, mapQ, cigar, seq, nil, aux)
	if err != nil {
		return nil, fmt.Errorf("samfmt: record: %w", err)
	}
	if aln.Strand == '-' {
		rec.Flags |= sam.Reverse
	}

	text, err := rec.MarshalText()
	if err != nil {
		return nil, fmt.Errorf("samfmt: marshal record: %w", err)
	}
	return append(text, '\n'), nil
}

// buildMDTag renders the MD string for a matched prefix with at most one
// substitution, per standard SAM MD semantics: alternating match-run
// lengths and mismatched reference bases, always starting and ending with a
// run length (zero if the mismatch sits at either edge). Run lengths are
// counted in reference orientation (left to right along POS/CIGAR/SEQ);
// aln.Mismatch.QueryPos is in read order, which is the mirror image of
// reference order on the reverse strand, so before/after are swapped there.
func buildMDTag(aln search.Alignment) sam.Aux {
	if aln.Mismatch == nil {
		return mustAux(sam.NewAux(sam.NewTag("MD"), fmt.Sprintf("%d", aln.MatchLen)))
	}
	m := aln.Mismatch
	before := m.QueryPos
	after := aln.MatchLen - m.QueryPos - 1
	if aln.Strand == '-' {
		before, after = after, before
	}
	md := fmt.Sprintf("%d%c%d", before, m.RefBase, after)
	return mustAux(sam.NewAux(sam.NewTag("MD"), md))
}

func mustAux(a sam.Aux, err error) sam.Aux {
	if err != nil {
		panic(err)
	}
	return a
}
