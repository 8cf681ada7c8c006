// Package indexio serializes and deserializes the on-disk index artifacts
// described in spec.md §6/§4.6 (C6): the packed BWT, the C-table/Occ/SA
// tables, the packed dual-strand sequence, the compressed N-position map,
// and the two plain-text chromosome tables. Each binary artifact carries a
// magic + version header so a damaged or foreign file is detected before
// any of its contents are trusted (spec.md §9's integrity-check
// strengthening), and writes land atomically via temp-name-then-rename
// (spec.md §7).
package indexio

import (
	"bufio"
	"compress/zlib"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/eernst/tailor/internal/bioseq"
	"github.com/eernst/tailor/internal/fmindex"
	"github.com/eernst/tailor/internal/nposmap"
	"github.com/eernst/tailor/internal/refbuild"
	"github.com/eernst/tailor/internal/tailorerr"
)

const fileVersion uint32 = 1

const (
	magicBWT   = "TBWT"
	magicTable = "TTBL"
	magicSeq   = "TSEQ"
	magicNpos  = "TNPZ"
)

const (
	nameBWT    = "t_bwt.bwt"
	nameTable  = "t_table.bwt"
	nameSeq    = "t_seq.bwt"
	nameNpos   = "NposLen.z"
	nameChrStart = "chrStart"
	nameChrLen   = "chrLen"
)

// Index bundles everything C6 persists, independent of the in-memory
// fmindex.Index representation.
type Index struct {
	FM    *fmindex.Index
	NPos  *nposmap.Map
	Chrs  []refbuild.ChrEntry
	FLen  int
}

type header struct {
	Magic   [4]byte
	Version uint32
}

func writeHeader(w io.Writer, magic string) error {
	var h header
	copy(h.Magic[:], magic)
	h.Version = fileVersion
	return binary.Write(w, binary.LittleEndian, h)
}

func readHeader(r io.Reader, wantMagic string) error {
	var h header
	if err := binary.Read(r, binary.LittleEndian, &h); err != nil {
		return fmt.Errorf("short or unreadable header: %w", err)
	}
	if string(h.Magic[:]) != wantMagic {
		return fmt.Errorf("bad magic %q, want %q", h.Magic[:], wantMagic)
	}
	if h.Version != fileVersion {
		return fmt.Errorf("unsupported version %d, want %d", h.Version, fileVersion)
	}
	return nil
}

// packWithSentinel packs seq (which must contain exactly one '$') into 2
// bits/base, recording the sentinel's position separately, since Packed
// itself only stores {A,C,G,T} (spec.md §4.1's edge case).
func packWithSentinel(seq []byte) (*bioseq.Packed, int) {
	sentinelPos := -1
	placeholder := make([]byte, len(seq))
	for i, c := range seq {
		if c == '$' {
			sentinelPos = i
			placeholder[i] = 'A'
		} else {
			placeholder[i] = c
		}
	}
	return bioseq.FromBytes(placeholder), sentinelPos
}

func unpackWithSentinel(p *bioseq.Packed, sentinelPos int) []byte {
	out := p.Bytes()
	if sentinelPos >= 0 {
		out[sentinelPos] = '$'
	}
	return out
}

// Save writes all six artifacts under prefix (prefix+name for each),
// atomically. It fans the writes out across goroutines, mirroring the
// teacher's parallel per-artifact save, but propagates the first error
// instead of panicking.
func Save(prefix string, idx *Index) error {
	writers := []func() error{
		func() error { return saveBWT(prefix, idx.FM) },
		func() error { return saveTable(prefix, idx.FM) },
		func() error { return saveSeq(prefix, idx.FM) },
		func() error { return saveNpos(prefix, idx.NPos) },
		func() error { return saveChrStart(prefix, idx.Chrs) },
		func() error { return saveChrLen(prefix, idx.Chrs) },
	}

	errc := make(chan error, len(writers))
	for _, w := range writers {
		go func(w func() error) { errc <- w() }(w)
	}
	var firstErr error
	for range writers {
		if err := <-errc; err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if firstErr != nil {
		return tailorerr.New(tailorerr.IOFailure, firstErr)
	}
	return nil
}

// atomicWrite writes the bytes produced by fn to a temp file under the
// same directory as path, then renames it into place (spec.md §7).
func atomicWrite(path string, fn func(w io.Writer) error) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	if err := fn(w); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := w.Flush(); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

func saveBWT(prefix string, fm *fmindex.Index) error {
	occStride, saStride := fm.Strides()
	packed, sentinelPos := packWithSentinel(fm.BWT)
	return atomicWrite(prefix+nameBWT, func(w io.Writer) error {
		if err := writeHeader(w, magicBWT); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, int64(len(fm.BWT))); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, [4]int32{int32(occStride), int32(saStride), 5, int32(sentinelPos)}); err != nil {
			return err
		}
		return binary.Write(w, binary.LittleEndian, packedWords(packed))
	})
}

func saveTable(prefix string, fm *fmindex.Index) error {
	occStride, saStride := fm.Strides()
	c := fm.CTable()
	occ := fm.OccSamples()
	sa := fm.SASamples()
	return atomicWrite(prefix+nameTable, func(w io.Writer) error {
		if err := writeHeader(w, magicTable); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, [2]int32{int32(occStride), int32(saStride)}); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, c); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, int64(len(occ))); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, occ); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, int64(len(sa))); err != nil {
			return err
		}
		return binary.Write(w, binary.LittleEndian, sa)
	})
}

func saveSeq(prefix string, fm *fmindex.Index) error {
	packed, sentinelPos := packWithSentinel(fm.Seq)
	return atomicWrite(prefix+nameSeq, func(w io.Writer) error {
		if err := writeHeader(w, magicSeq); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, [2]int64{int64(len(fm.Seq)), int64(sentinelPos)}); err != nil {
			return err
		}
		return binary.Write(w, binary.LittleEndian, packedWords(packed))
	})
}

func saveNpos(prefix string, m *nposmap.Map) error {
	return atomicWrite(prefix+nameNpos, func(w io.Writer) error {
		if err := writeHeader(w, magicNpos); err != nil {
			return err
		}
		zw := zlib.NewWriter(w)
		runs := m.Runs()
		if err := binary.Write(zw, binary.LittleEndian, int64(len(runs))); err != nil {
			zw.Close()
			return err
		}
		for _, r := range runs {
			v := [3]int64{int64(r.CompactedPos), int64(r.OriginalStart), int64(r.RunLen)}
			if err := binary.Write(zw, binary.LittleEndian, v); err != nil {
				zw.Close()
				return err
			}
		}
		return zw.Close()
	})
}

func saveChrStart(prefix string, chrs []refbuild.ChrEntry) error {
	return atomicWrite(prefix+nameChrStart, func(w io.Writer) error {
		for _, c := range chrs {
			if _, err := fmt.Fprintf(w, "%s\t%d\n", c.Name, c.Start); err != nil {
				return err
			}
		}
		return nil
	})
}

func saveChrLen(prefix string, chrs []refbuild.ChrEntry) error {
	return atomicWrite(prefix+nameChrLen, func(w io.Writer) error {
		for _, c := range chrs {
			if _, err := fmt.Fprintf(w, "%s\t%d\n", c.Name, c.StrippedLen); err != nil {
				return err
			}
		}
		return nil
	})
}

func packedWords(p *bioseq.Packed) []uint64 {
	// Packed exposes only Len/At/Set/Bytes; re-pack via Bytes/FromBytes's
	// own word layout is avoided by round-tripping through At, which is
	// simpler and runs once at save time, not per query.
	out := make([]uint64, (p.Len()+31)/32)
	for i := 0; i < p.Len(); i++ {
		code := baseCode(p.At(i))
		out[i/32] |= code << uint((i%32)*2)
	}
	return out
}

func baseCode(c byte) uint64 {
	switch c {
	case 'A':
		return 0
	case 'C':
		return 1
	case 'G':
		return 2
	default:
		return 3
	}
}

func unpackWords(words []uint64, n int) *bioseq.Packed {
	p := bioseq.NewPacked(n)
	for i := 0; i < n; i++ {
		word := words[i/32]
		shift := uint((i % 32) * 2)
		p.Set(i, decodeCode((word>>shift)&0x3))
	}
	return p
}

func decodeCode(code uint64) byte {
	switch code {
	case 0:
		return 'A'
	case 1:
		return 'C'
	case 2:
		return 'G'
	default:
		return 'T'
	}
}

// Load reads all six artifacts under prefix and reconstructs an Index.
// Missing files are reported as tailorerr.MissingIndexFile; any header,
// length, or parse inconsistency is reported as tailorerr.CorruptIndexFile
// (spec.md §4.6/§7).
func Load(prefix string) (*Index, error) {
	if err := checkExist(prefix); err != nil {
		return nil, err
	}

	bwt, occStride, saStride, n, err := loadBWT(prefix)
	if err != nil {
		return nil, tailorerr.New(tailorerr.CorruptIndexFile, fmt.Errorf("%s: %w", nameBWT, err))
	}
	c, occ, sa, err := loadTable(prefix)
	if err != nil {
		return nil, tailorerr.New(tailorerr.CorruptIndexFile, fmt.Errorf("%s: %w", nameTable, err))
	}
	seq, seqLen, err := loadSeq(prefix)
	if err != nil {
		return nil, tailorerr.New(tailorerr.CorruptIndexFile, fmt.Errorf("%s: %w", nameSeq, err))
	}
	if seqLen != n {
		return nil, tailorerr.New(tailorerr.CorruptIndexFile, fmt.Errorf("%s/%s: length mismatch %d != %d", nameBWT, nameSeq, n, seqLen))
	}

	npos, err := loadNpos(prefix)
	if err != nil {
		return nil, tailorerr.New(tailorerr.CorruptIndexFile, fmt.Errorf("%s: %w", nameNpos, err))
	}
	starts, err := loadChrCol(prefix, nameChrStart)
	if err != nil {
		return nil, tailorerr.New(tailorerr.CorruptIndexFile, fmt.Errorf("%s: %w", nameChrStart, err))
	}
	lens, err := loadChrCol(prefix, nameChrLen)
	if err != nil {
		return nil, tailorerr.New(tailorerr.CorruptIndexFile, fmt.Errorf("%s: %w", nameChrLen, err))
	}
	chrs, err := zipChrEntries(starts, lens)
	if err != nil {
		return nil, tailorerr.New(tailorerr.CorruptIndexFile, err)
	}

	flen := 0
	for _, entry := range chrs {
		if entry.Start+entry.StrippedLen > flen {
			flen = entry.Start + entry.StrippedLen
		}
	}

	fm := fmindex.FromParts(seq, bwt, c, occ, sa, occStride, saStride)
	return &Index{FM: fm, NPos: npos, Chrs: chrs, FLen: flen}, nil
}

func checkExist(prefix string) error {
	for _, name := range []string{nameBWT, nameTable, nameSeq, nameNpos, nameChrStart, nameChrLen} {
		path := prefix + name
		if _, err := os.Stat(path); err != nil {
			if os.IsNotExist(err) {
				return tailorerr.New(tailorerr.MissingIndexFile, fmt.Errorf("missing index file %s", path))
			}
			return tailorerr.New(tailorerr.IOFailure, err)
		}
	}
	return nil
}

func loadBWT(prefix string) (bwt []byte, occStride, saStride, n int, err error) {
	f, err := os.Open(prefix + nameBWT)
	if err != nil {
		return nil, 0, 0, 0, err
	}
	defer f.Close()
	r := bufio.NewReader(f)
	if err := readHeader(r, magicBWT); err != nil {
		return nil, 0, 0, 0, err
	}
	var n64 int64
	if err := binary.Read(r, binary.LittleEndian, &n64); err != nil {
		return nil, 0, 0, 0, err
	}
	var meta [4]int32
	if err := binary.Read(r, binary.LittleEndian, &meta); err != nil {
		return nil, 0, 0, 0, err
	}
	occStride, saStride, alphabetSize, sentinelPos := int(meta[0]), int(meta[1]), int(meta[2]), int(meta[3])
	if alphabetSize != 5 {
		return nil, 0, 0, 0, fmt.Errorf("unexpected alphabet size %d", alphabetSize)
	}
	n = int(n64)
	numWords := (n + 31) / 32
	words := make([]uint64, numWords)
	if err := binary.Read(r, binary.LittleEndian, words); err != nil {
		return nil, 0, 0, 0, err
	}
	bwt = unpackWithSentinel(unpackWords(words, n), sentinelPos)
	return bwt, occStride, saStride, n, nil
}

func loadTable(prefix string) (c [5]int32, occ [][5]int32, sa []int32, err error) {
	f, err := os.Open(prefix + nameTable)
	if err != nil {
		return c, nil, nil, err
	}
	defer f.Close()
	r := bufio.NewReader(f)
	if err := readHeader(r, magicTable); err != nil {
		return c, nil, nil, err
	}
	var strides [2]int32
	if err := binary.Read(r, binary.LittleEndian, &strides); err != nil {
		return c, nil, nil, err
	}
	if err := binary.Read(r, binary.LittleEndian, &c); err != nil {
		return c, nil, nil, err
	}
	var numOcc int64
	if err := binary.Read(r, binary.LittleEndian, &numOcc); err != nil {
		return c, nil, nil, err
	}
	occ = make([][5]int32, numOcc)
	if err := binary.Read(r, binary.LittleEndian, occ); err != nil {
		return c, nil, nil, err
	}
	var numSA int64
	if err := binary.Read(r, binary.LittleEndian, &numSA); err != nil {
		return c, nil, nil, err
	}
	sa = make([]int32, numSA)
	if err := binary.Read(r, binary.LittleEndian, sa); err != nil {
		return c, nil, nil, err
	}
	return c, occ, sa, nil
}

func loadSeq(prefix string) (seq []byte, n int, err error) {
	f, err := os.Open(prefix + nameSeq)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()
	r := bufio.NewReader(f)
	if err := readHeader(r, magicSeq); err != nil {
		return nil, 0, err
	}
	var meta [2]int64
	if err := binary.Read(r, binary.LittleEndian, &meta); err != nil {
		return nil, 0, err
	}
	var sentinelPos int
	n, sentinelPos = int(meta[0]), int(meta[1])
	numWords := (n + 31) / 32
	words := make([]uint64, numWords)
	if err := binary.Read(r, binary.LittleEndian, words); err != nil {
		return nil, 0, err
	}
	seq = unpackWithSentinel(unpackWords(words, n), sentinelPos)
	return seq, n, nil
}

func loadNpos(prefix string) (*nposmap.Map, error) {
	f, err := os.Open(prefix + nameNpos)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	r := bufio.NewReader(f)
	if err := readHeader(r, magicNpos); err != nil {
		return nil, err
	}
	zr, err := zlib.NewReader(r)
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	var numRuns int64
	if err := binary.Read(zr, binary.LittleEndian, &numRuns); err != nil {
		return nil, err
	}
	m := nposmap.New()
	for i := int64(0); i < numRuns; i++ {
		var v [3]int64
		if err := binary.Read(zr, binary.LittleEndian, &v); err != nil {
			return nil, err
		}
		m.AddRun(int(v[0]), int(v[1]), int(v[2]))
	}
	return m, nil
}

func loadChrCol(prefix, name string) ([]struct {
	Name string
	N    int
}, error) {
	f, err := os.Open(prefix + name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var out []struct {
		Name string
		N    int
	}
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, "\t", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("malformed line %q", line)
		}
		v, err := strconv.Atoi(parts[1])
		if err != nil {
			return nil, fmt.Errorf("malformed value in line %q: %w", line, err)
		}
		out = append(out, struct {
			Name string
			N    int
		}{parts[0], v})
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func zipChrEntries(starts, lens []struct {
	Name string
	N    int
}) ([]refbuild.ChrEntry, error) {
	if len(starts) != len(lens) {
		return nil, fmt.Errorf("chrStart/chrLen entry count mismatch: %d != %d", len(starts), len(lens))
	}
	out := make([]refbuild.ChrEntry, len(starts))
	for i := range starts {
		if starts[i].Name != lens[i].Name {
			return nil, fmt.Errorf("chrStart/chrLen name mismatch at entry %d: %q != %q", i, starts[i].Name, lens[i].Name)
		}
		out[i] = refbuild.ChrEntry{Name: starts[i].Name, Start: starts[i].N, StrippedLen: lens[i].N}
	}
	return out, nil
}

// Prefix normalizes an index-prefix flag value: a trailing '.' is appended
// if absent, per spec.md §6. A prefix ending in a path separator is
// returned unchanged.
func Prefix(p string) string {
	if strings.HasSuffix(p, ".") || strings.HasSuffix(p, string(filepath.Separator)) {
		return p
	}
	return p + "."
}
