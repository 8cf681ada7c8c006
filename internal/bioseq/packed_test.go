package bioseq

import (
	"bytes"
	"testing"
)

func TestPackedRoundTrip(t *testing.T) {
	seq := []byte("ACGTACGTTTGCA")
	p := FromBytes(seq)
	if p.Len() != len(seq) {
		t.Fatalf("Len() = %d, want %d", p.Len(), len(seq))
	}
	if got := p.Bytes(); !bytes.Equal(got, seq) {
		t.Fatalf("Bytes() = %q, want %q", got, seq)
	}
	for i, c := range seq {
		if got := p.At(i); got != c {
			t.Errorf("At(%d) = %q, want %q", i, got, c)
		}
	}
}

func TestPackedSet(t *testing.T) {
	p := NewPacked(4)
	p.Set(0, 'A')
	p.Set(1, 'C')
	p.Set(2, 'G')
	p.Set(3, 'T')
	if got := string(p.Bytes()); got != "ACGT" {
		t.Fatalf("Bytes() = %q, want ACGT", got)
	}
	p.Set(1, 'T')
	if got := p.At(1); got != 'T' {
		t.Errorf("At(1) after overwrite = %q, want T", got)
	}
}

func TestPackedOutOfRangePanics(t *testing.T) {
	p := NewPacked(2)
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on out-of-range access")
		}
	}()
	p.At(2)
}

func TestReverseComplement(t *testing.T) {
	cases := map[string]string{
		"ACGT": "ACGT",
		"AAAA": "TTTT",
		"GATTACA": "TGTAATC",
	}
	for in, want := range cases {
		if got := string(ReverseComplement([]byte(in))); got != want {
			t.Errorf("ReverseComplement(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestIsBase(t *testing.T) {
	for _, c := range []byte("ACGT") {
		if !IsBase(c) {
			t.Errorf("IsBase(%q) = false, want true", c)
		}
	}
	for _, c := range []byte("Nn$x") {
		if IsBase(c) {
			t.Errorf("IsBase(%q) = true, want false", c)
		}
	}
}
