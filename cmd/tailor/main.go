// Command tailor builds a dual-strand FM-index over a FASTA reference and
// maps FASTQ reads against it, reporting non-templated 3' tails.
package main

import (
	"context"
	"io"

	"github.com/eernst/tailor/internal/cliutil"
)

const usage = `usage:
  tailor build -ref genome.fa -index /path/to/prefix
  tailor map   -index /path/to/prefix -input reads.fq [-output out.sam] [-thread N] [-minLen 18] [-mismatch]`

func main() {
	cliutil.Main(map[string]cliutil.Command{
		"build": func(ctx context.Context, argv []string, stdout, stderr io.Writer) error {
			return runBuild(ctx, argv, stdout, stderr)
		},
		"map": func(ctx context.Context, argv []string, stdout, stderr io.Writer) error {
			return runMap(ctx, argv, stdout, stderr)
		},
	}, usage)
}
