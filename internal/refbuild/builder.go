// Package refbuild ingests a multi-FASTA reference, strips N runs, and
// concatenates the forward sequence with its reverse complement and a
// sentinel, per spec.md §3/§4.3 (C3).
package refbuild

import (
	"bufio"
	"bytes"
	"fmt"
	"io"

	"github.com/eernst/tailor/internal/bioseq"
	"github.com/eernst/tailor/internal/nposmap"
	"github.com/eernst/tailor/internal/tailorerr"
)

// Sentinel is the unique, lexicographically-smallest terminator appended
// to the concatenated sequence S.
const Sentinel = '$'

// ChrEntry records one chromosome's bookkeeping in the N-stripped forward
// block F: its name, its original (pre-strip) length, its stripped length,
// and its start offset within F.
type ChrEntry struct {
	Name        string
	OriginalLen int
	StrippedLen int
	Start       int
}

// Reference is the result of building from a multi-FASTA stream: the
// concatenated sequence S = F . rc(F) . $, the chromosome table over F,
// and the N-position map recording where N runs were stripped from F.
type Reference struct {
	Seq   []byte // S
	FLen  int    // |F|
	Chrs  []ChrEntry
	NPos  *nposmap.Map
}

// Build reads a stream of FASTA entries from r, strips N runs, and returns
// the concatenated dual-strand reference. It fails with a BadInput error
// if the stream contains no usable (non-N) bases.
func Build(r io.Reader) (*Reference, error) {
	sc := bufio.NewScanner(r)
	const maxLine = 64 * 1024 * 1024
	sc.Buffer(make([]byte, 64*1024), maxLine)

	var (
		chrs        []ChrEntry
		forward     []byte
		npos        = nposmap.New()
		curName     string
		curOrigLen  int
		curStripped []byte
		haveEntry   bool
		runStartOrig = -1
		runLen       int
	)

	flushRun := func() {
		if runLen > 0 {
			npos.AddRun(len(forward)+len(curStripped), runStartOrig, runLen)
			runLen = 0
			runStartOrig = -1
		}
	}

	flushEntry := func() {
		if !haveEntry {
			return
		}
		flushRun()
		entry := ChrEntry{
			Name:        curName,
			OriginalLen: curOrigLen,
			StrippedLen: len(curStripped),
			Start:       len(forward),
		}
		chrs = append(chrs, entry)
		forward = append(forward, curStripped...)
		curStripped = nil
		curOrigLen = 0
		haveEntry = false
	}

	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		if line[0] == '>' {
			flushEntry()
			curName = parseHeaderName(line[1:])
			haveEntry = true
			continue
		}
		if !haveEntry {
			return nil, tailorerr.New(tailorerr.BadInput, fmt.Errorf("refbuild: sequence data before any '>' header"))
		}
		for _, c := range line {
			uc := toUpper(c)
			curOrigLen++
			if bioseq.IsBase(uc) {
				if runLen > 0 {
					flushRun()
				}
				curStripped = append(curStripped, uc)
			} else if uc == 'N' {
				if runLen == 0 {
					runStartOrig = curOrigLen - 1
				}
				runLen++
			} else {
				return nil, tailorerr.New(tailorerr.BadInput, fmt.Errorf("refbuild: unsupported symbol %q in reference", c))
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, tailorerr.New(tailorerr.IOFailure, fmt.Errorf("refbuild: scan: %w", err))
	}
	flushEntry()

	if len(forward) == 0 {
		return nil, tailorerr.New(tailorerr.BadInput, fmt.Errorf("refbuild: reference has no usable bases after stripping N runs"))
	}

	rc := bioseq.ReverseComplement(forward)
	seq := make([]byte, 0, 2*len(forward)+1)
	seq = append(seq, forward...)
	seq = append(seq, rc...)
	seq = append(seq, Sentinel)

	return &Reference{
		Seq:  seq,
		FLen: len(forward),
		Chrs: chrs,
		NPos: npos,
	}, nil
}

func parseHeaderName(hdr []byte) string {
	hdr = bytes.TrimSpace(hdr)
	if i := bytes.IndexAny(hdr, " \t"); i >= 0 {
		hdr = hdr[:i]
	}
	return string(hdr)
}

func toUpper(c byte) byte {
	if c >= 'a' && c <= 'z' {
		return c - 'a' + 'A'
	}
	return c
}
