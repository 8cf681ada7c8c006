package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/eernst/tailor/internal/fmindex"
	"github.com/eernst/tailor/internal/indexio"
	"github.com/eernst/tailor/internal/refbuild"
	"github.com/eernst/tailor/internal/sais"
	"github.com/eernst/tailor/internal/tailorerr"
)

// buildOptions are the "build" subcommand's flags.
type buildOptions struct {
	ref       string
	index     string
	occStride int
	saStride  int
}

func parseBuildFlags(argv []string, stderr io.Writer) (buildOptions, error) {
	fs := flag.NewFlagSet("tailor build", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var o buildOptions
	fs.StringVar(&o.ref, "ref", "", "reference FASTA path [required]")
	fs.StringVar(&o.index, "index", "", "index file prefix [required]")
	fs.IntVar(&o.occStride, "occStride", 32, "Occ table sampling stride")
	fs.IntVar(&o.saStride, "saStride", 8, "suffix array sampling stride")
	if err := fs.Parse(argv); err != nil {
		return o, tailorerr.New(tailorerr.UsageError, err)
	}
	if o.ref == "" || o.index == "" {
		return o, tailorerr.New(tailorerr.UsageError, fmt.Errorf("-ref and -index are both required"))
	}
	return o, nil
}

// runBuild implements the "build" subcommand: ingest a FASTA reference,
// construct its suffix array and FM-index, and persist every artifact
// under the given prefix (C1-C6).
func runBuild(_ context.Context, argv []string, _, stderr io.Writer) error {
	o, err := parseBuildFlags(argv, stderr)
	if err != nil {
		return err
	}

	f, err := os.Open(o.ref)
	if err != nil {
		return tailorerr.New(tailorerr.BadInput, err)
	}
	defer f.Close()

	ref, err := refbuild.Build(f)
	if err != nil {
		return err
	}

	sa := sais.Compute(ref.Seq)
	fm := fmindex.Build(ref.Seq, sa, o.occStride, o.saStride)

	idx := &indexio.Index{FM: fm, NPos: ref.NPos, Chrs: ref.Chrs, FLen: ref.FLen}
	if err := indexio.Save(indexio.Prefix(o.index), idx); err != nil {
		return err
	}
	return nil
}
