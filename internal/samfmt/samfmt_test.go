package samfmt

import (
	"bytes"
	"strings"
	"testing"

	"github.com/eernst/tailor/internal/refbuild"
	"github.com/eernst/tailor/internal/search"
)

func testChrs() []refbuild.ChrEntry {
	return []refbuild.ChrEntry{
		{Name: "chr1", OriginalLen: 4, StrippedLen: 4, Start: 0},
	}
}

func TestNewWriterEmitsHeaderLines(t *testing.T) {
	var buf bytes.Buffer
	if _, err := NewWriter(&buf, testChrs()); err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "@HD") || !strings.Contains(out, "VN:1.0") {
		t.Errorf("missing @HD/VN:1.0 line, got %q", out)
	}
	if !strings.Contains(out, "@SQ") || !strings.Contains(out, "SN:chr1") || !strings.Contains(out, "LN:4") {
		t.Errorf("missing @SQ line for chr1, got %q", out)
	}
}

func TestWriteAlignmentForwardMatchWithTail(t *testing.T) {
	var buf bytes.Buffer
	sw, err := NewWriter(&buf, testChrs())
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	aln := search.Alignment{
		Chrom:    "chr1",
		Pos:      1,
		Strand:   '+',
		MatchLen: 4,
		Tail:     []byte("G"),
	}
	if err := sw.WriteAlignment("read1", []byte("AAAAG"), aln); err != nil {
		t.Fatalf("WriteAlignment: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	rec := lines[len(lines)-1]
	fields := strings.Split(rec, "\t")
	if fields[0] != "read1" {
		t.Errorf("QNAME = %q, want read1", fields[0])
	}
	if fields[5] != "4M1S" {
		t.Errorf("CIGAR = %q, want 4M1S", fields[5])
	}
	if !strings.Contains(rec, "MD:Z:4") {
		t.Errorf("missing MD:Z:4 tag, got %q", rec)
	}
	if !strings.Contains(rec, "TL:Z:G") {
		t.Errorf("missing TL:Z:G tag, got %q", rec)
	}
}

func TestWriteAlignmentReverseStrandClipsLeading(t *testing.T) {
	var buf bytes.Buffer
	sw, err := NewWriter(&buf, testChrs())
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	aln := search.Alignment{
		Chrom:    "chr1",
		Pos:      1,
		Strand:   '-',
		MatchLen: 3,
		Tail:     []byte("G"),
	}
	if err := sw.WriteAlignment("read2", []byte("CTTTG"), aln); err != nil {
		t.Fatalf("WriteAlignment: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	rec := lines[len(lines)-1]
	fields := strings.Split(rec, "\t")
	if fields[5] != "1S3M" {
		t.Errorf("CIGAR = %q, want 1S3M", fields[5])
	}
	flags := fields[1]
	if flags != "16" {
		t.Errorf("FLAG = %q, want 16 (reverse)", flags)
	}
}

func TestWriteAlignmentMismatchProducesSplitMDTag(t *testing.T) {
	var buf bytes.Buffer
	sw, err := NewWriter(&buf, testChrs())
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	aln := search.Alignment{
		Chrom:    "chr1",
		Pos:      1,
		Strand:   '+',
		MatchLen: 8,
		Tail:     nil,
		Mismatch: &search.Mismatch{QueryPos: 2, RefBase: 'G', QueryBase: 'C'},
	}
	if err := sw.WriteAlignment("read3", []byte("ACCTACGT"), aln); err != nil {
		t.Fatalf("WriteAlignment: %v", err)
	}
	rec := strings.TrimSpace(buf.String())
	if !strings.Contains(rec, "MD:Z:2G5") {
		t.Errorf("missing MD:Z:2G5 tag, got %q", rec)
	}
	if !strings.Contains(rec, "NM:i:1") {
		t.Errorf("missing NM:i:1 tag, got %q", rec)
	}
}

func TestWriteAlignmentReverseStrandMismatchSwapsMDRunLengths(t *testing.T) {
	var buf bytes.Buffer
	sw, err := NewWriter(&buf, testChrs())
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	aln := search.Alignment{
		Chrom:    "chr1",
		Pos:      1,
		Strand:   '-',
		MatchLen: 8,
		Tail:     nil,
		Mismatch: &search.Mismatch{QueryPos: 2, RefBase: 'G', QueryBase: 'C'},
	}
	if err := sw.WriteAlignment("read5", []byte("ACCTACGT"), aln); err != nil {
		t.Fatalf("WriteAlignment: %v", err)
	}
	rec := strings.TrimSpace(buf.String())
	// Same QueryPos/MatchLen as the forward-strand case above, but on the
	// reverse strand the MD run lengths are counted in reference
	// orientation, the mirror of read order, so before/after swap: 5G2
	// instead of 2G5.
	if !strings.Contains(rec, "MD:Z:5G2") {
		t.Errorf("missing MD:Z:5G2 tag, got %q", rec)
	}
}

func TestWriteAlignmentUnknownChromosomeFails(t *testing.T) {
	var buf bytes.Buffer
	sw, err := NewWriter(&buf, testChrs())
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	aln := search.Alignment{Chrom: "nope", Pos: 1, Strand: '+', MatchLen: 1}
	if err := sw.WriteAlignment("read4", []byte("A"), aln); err == nil {
		t.Fatalf("expected error for unknown chromosome")
	}
}
