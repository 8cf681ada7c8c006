package indexio

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/eernst/tailor/internal/fmindex"
	"github.com/eernst/tailor/internal/refbuild"
	"github.com/eernst/tailor/internal/sais"
	"github.com/eernst/tailor/internal/tailorerr"
)

func buildTestIndex(t *testing.T) *Index {
	t.Helper()
	ref, err := refbuild.Build(bytes.NewReader([]byte(">chr1\nACGTACGT\n>chr2\nTTTTGGGG\n")))
	if err != nil {
		t.Fatalf("refbuild.Build: %v", err)
	}
	sa := sais.Compute(ref.Seq)
	fm := fmindex.Build(ref.Seq, sa, 4, 4)
	return &Index{FM: fm, NPos: ref.NPos, Chrs: ref.Chrs, FLen: ref.FLen}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	idx := buildTestIndex(t)
	prefix := filepath.Join(t.TempDir(), "idx.")

	if err := Save(prefix, idx); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := Load(prefix)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if !bytes.Equal(got.FM.Seq, idx.FM.Seq) {
		t.Errorf("Seq mismatch after round-trip")
	}
	if !bytes.Equal(got.FM.BWT, idx.FM.BWT) {
		t.Errorf("BWT mismatch after round-trip")
	}
	if got.FM.CTable() != idx.FM.CTable() {
		t.Errorf("CTable mismatch: got %v, want %v", got.FM.CTable(), idx.FM.CTable())
	}
	if len(got.Chrs) != len(idx.Chrs) {
		t.Fatalf("Chrs length mismatch: got %d, want %d", len(got.Chrs), len(idx.Chrs))
	}
	// chrStart/chrLen persist name, start and stripped length only;
	// OriginalLen is not written and comes back zero.
	for i := range idx.Chrs {
		g, w := got.Chrs[i], idx.Chrs[i]
		if g.Name != w.Name || g.Start != w.Start || g.StrippedLen != w.StrippedLen {
			t.Errorf("Chrs[%d] = %+v, want Name/Start/StrippedLen of %+v", i, g, w)
		}
	}

	for i := 0; i < idx.FM.Len(); i++ {
		if got.FM.Locate(i) != idx.FM.Locate(i) {
			t.Errorf("Locate(%d) = %d, want %d", i, got.FM.Locate(i), idx.FM.Locate(i))
		}
	}
}

func TestLoadMissingFileReportsMissingIndexFile(t *testing.T) {
	idx := buildTestIndex(t)
	prefix := filepath.Join(t.TempDir(), "idx.")
	if err := Save(prefix, idx); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := os.Remove(prefix + nameChrLen); err != nil {
		t.Fatalf("remove: %v", err)
	}

	_, err := Load(prefix)
	kind, ok := tailorerr.As(err)
	if !ok || kind != tailorerr.MissingIndexFile {
		t.Fatalf("err kind = %v (ok=%v), want MissingIndexFile", kind, ok)
	}
}

func TestLoadCorruptHeaderReportsCorruptIndexFile(t *testing.T) {
	idx := buildTestIndex(t)
	prefix := filepath.Join(t.TempDir(), "idx.")
	if err := Save(prefix, idx); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := os.WriteFile(prefix+nameBWT, []byte("not a valid artifact"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	_, err := Load(prefix)
	kind, ok := tailorerr.As(err)
	if !ok || kind != tailorerr.CorruptIndexFile {
		t.Fatalf("err kind = %v (ok=%v), want CorruptIndexFile", kind, ok)
	}
}

func TestSaveLeavesNoTempFilesBehind(t *testing.T) {
	idx := buildTestIndex(t)
	dir := t.TempDir()
	prefix := filepath.Join(dir, "idx.")
	if err := Save(prefix, idx); err != nil {
		t.Fatalf("Save: %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".tmp" {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
}

func TestPrefixAppendsTrailingDot(t *testing.T) {
	if got := Prefix("foo"); got != "foo." {
		t.Errorf("Prefix(foo) = %q, want %q", got, "foo.")
	}
	if got := Prefix("foo."); got != "foo." {
		t.Errorf("Prefix(foo.) = %q, want %q", got, "foo.")
	}
}
