package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"

	"github.com/eernst/tailor/internal/fastq"
	"github.com/eernst/tailor/internal/indexio"
	"github.com/eernst/tailor/internal/samfmt"
	"github.com/eernst/tailor/internal/search"
	"github.com/eernst/tailor/internal/tailorerr"
	"github.com/eernst/tailor/internal/workerpool"
)

// mapOptions are the "map" subcommand's flags, per spec.md §6.
type mapOptions struct {
	input    string
	index    string
	output   string
	thread   int
	minLen   int
	mismatch bool
}

func parseMapFlags(argv []string, stderr io.Writer) (mapOptions, error) {
	fs := flag.NewFlagSet("tailor map", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var o mapOptions
	fs.StringVar(&o.input, "input", "", "FASTQ read path [required]")
	fs.StringVar(&o.index, "index", "", "index file prefix [required]")
	fs.StringVar(&o.output, "output", "", "SAM output path [default: standard output]")
	fs.IntVar(&o.thread, "thread", 1, "worker count")
	fs.IntVar(&o.minLen, "minLen", 18, "minimum matched prefix length to report a read")
	fs.BoolVar(&o.mismatch, "mismatch", false, "allow one internal mismatch when no exact prefix match covers the read")
	if err := fs.Parse(argv); err != nil {
		return o, tailorerr.New(tailorerr.UsageError, err)
	}
	if o.input == "" || o.index == "" {
		return o, tailorerr.New(tailorerr.UsageError, fmt.Errorf("-input and -index are both required"))
	}
	return o, nil
}

// runMap implements the "map" subcommand: load a persisted index, run a
// worker pool of prefix searches over a FASTQ stream, and emit SAM (C6-C9).
func runMap(ctx context.Context, argv []string, stdout, stderr io.Writer) error {
	o, err := parseMapFlags(argv, stderr)
	if err != nil {
		return err
	}

	idx, err := indexio.Load(indexio.Prefix(o.index))
	if err != nil {
		return err
	}

	in, err := os.Open(o.input)
	if err != nil {
		return tailorerr.New(tailorerr.BadInput, err)
	}
	defer in.Close()

	out, closeOut, err := openOutput(o.output, stdout)
	if err != nil {
		return err
	}
	defer closeOut()
	bw := bufio.NewWriter(out)
	defer bw.Flush()

	sw, err := samfmt.NewWriter(bw, idx.Chrs)
	if err != nil {
		return tailorerr.New(tailorerr.IOFailure, err)
	}

	chrs := search.NewChrTable(idx.Chrs)
	engine := search.New(idx.FM, chrs, idx.FLen, search.Config{MinLen: o.minLen, AllowMismatch: o.mismatch})

	reader := fastq.NewReader(in)
	var readMu sync.Mutex
	next := func() (fastq.Read, bool, error) {
		readMu.Lock()
		defer readMu.Unlock()
		rd, err := reader.Next()
		if err == io.EOF {
			return fastq.Read{}, false, nil
		}
		if err != nil {
			return fastq.Read{}, false, tailorerr.New(tailorerr.BadInput, err)
		}
		return rd, true, nil
	}

	var writeMu sync.Mutex
	write := func(b []byte) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		_, err := bw.Write(b)
		return err
	}

	var skipped int64
	process := func(rd fastq.Read) ([]byte, error) {
		alns, err := engine.Align(rd.Seq)
		if err != nil {
			var unk search.ErrUnknownBase
			if errors.As(err, &unk) {
				atomic.AddInt64(&skipped, 1)
				return nil, nil
			}
			return nil, err
		}
		if len(alns) == 0 {
			return nil, nil
		}
		var buf []byte
		for _, aln := range alns {
			line, err := sw.Format(rd.Name, rd.Seq, aln)
			if err != nil {
				return nil, tailorerr.New(tailorerr.IOFailure, err)
			}
			buf = append(buf, line...)
		}
		return buf, nil
	}

	pool := workerpool.New(o.thread)
	if err := workerpool.Run(ctx, pool, next, process, write); err != nil {
		return err
	}
	if err := reader.Err(); err != nil {
		return tailorerr.New(tailorerr.IOFailure, err)
	}

	if total := int(atomic.LoadInt64(&skipped)) + reader.Skipped(); total > 0 {
		fmt.Fprintf(stderr, "tailor map: skipped %d read(s) (malformed or unsupported bases)\n", total)
	}
	return nil
}

func openOutput(path string, stdout io.Writer) (io.Writer, func(), error) {
	if path == "" {
		return stdout, func() {}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, tailorerr.New(tailorerr.IOFailure, err)
	}
	return f, func() { f.Close() }, nil
}
