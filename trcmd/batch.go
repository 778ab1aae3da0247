package trcmd

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/pelletier/go-toml/v2"
	"go.brendoncarroll.net/star"
	"go.brendoncarroll.net/stdctx/logctx"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"hwtrellis.org/trellis/fpadd"
	"hwtrellis.org/trellis/trace"
	"hwtrellis.org/trellis/tracedb"
)

var batchCmd = star.Command{
	Metadata: star.Metadata{
		Short: "run every case listed in a TOML manifest",
	},
	Flags: []star.IParam{dbParam, logLevelParam},
	Pos:   []star.IParam{manifestParam},
	F: func(c star.Context) error {
		ctx, done, err := setup(c)
		if err != nil {
			return err
		}
		defer done()
		man, err := LoadManifest(manifestParam.Load(c))
		if err != nil {
			return err
		}
		db, err := openDB(ctx, c)
		if err != nil {
			return err
		}
		if db != nil {
			defer db.Close()
		}
		results, err := runBatch(ctx, man, db)
		printResults(c.StdOut, results)
		return err
	},
}

var manifestParam = star.Param[string]{
	Name:  "manifest",
	Parse: star.ParseString,
}

// Manifest lists the cases in a batch, and how to run them.
//
//	adder = "hw"
//	parallel = 4
//
//	[[case]]
//	dir = "cases/small"
//	expect = "cases/small/output.dat"
type Manifest struct {
	Adder    string `toml:"adder"`
	Workers  int    `toml:"workers"`
	Memo     int    `toml:"memo"`
	Parallel int    `toml:"parallel"`

	Cases []CaseSpec `toml:"case"`
}

type CaseSpec struct {
	Dir string `toml:"dir"`
	// Expect is the expected trace. Defaults to output.dat in Dir, if that exists.
	Expect string `toml:"expect"`
	// Out is where to write the trace. The trace is discarded if it is empty.
	Out string `toml:"out"`
}

// ParseManifest parses a manifest, rejecting unknown keys.
// Relative paths are resolved against base.
func ParseManifest(data []byte, base string) (*Manifest, error) {
	var man Manifest
	dec := toml.NewDecoder(bytes.NewReader(data)).DisallowUnknownFields()
	if err := dec.Decode(&man); err != nil {
		return nil, err
	}
	if man.Adder == "" {
		man.Adder = fpadd.NameHardware
	}
	if _, err := fpadd.Lookup(man.Adder); err != nil {
		return nil, err
	}
	if man.Parallel <= 0 {
		man.Parallel = 1
	}
	if len(man.Cases) == 0 {
		return nil, fmt.Errorf("manifest has no cases")
	}
	for i := range man.Cases {
		cs := &man.Cases[i]
		if cs.Dir == "" {
			return nil, fmt.Errorf("case %d has no dir", i)
		}
		cs.Dir = resolve(base, cs.Dir)
		cs.Out = resolve(base, cs.Out)
		cs.Expect = resolve(base, cs.Expect)
	}
	return &man, nil
}

func LoadManifest(p string) (*Manifest, error) {
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, err
	}
	man, err := ParseManifest(data, filepath.Dir(p))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p, err)
	}
	return man, nil
}

func resolve(base, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}

// expectPath returns the expected trace for cs, or "" if there is none.
func (cs CaseSpec) expectPath() string {
	if cs.Expect != "" {
		return cs.Expect
	}
	p := filepath.Join(cs.Dir, trace.FileOutput)
	if _, err := os.Stat(p); err == nil {
		return p
	}
	return ""
}

// runBatch runs every case in man, at most man.Parallel at a time.
// A failed case does not stop the others; all failures are returned together.
func runBatch(ctx context.Context, man *Manifest, db *tracedb.DB) ([]*caseResult, error) {
	results := make([]*caseResult, len(man.Cases))
	errs := make([]error, len(man.Cases))
	var eg errgroup.Group
	eg.SetLimit(man.Parallel)
	for i, cs := range man.Cases {
		eg.Go(func() error {
			res, err := runSpec(ctx, cs, man, db)
			if err == nil {
				err = res.Err()
			}
			if err != nil {
				logctx.Error(ctx, "case failed", zap.String("dir", cs.Dir), zap.Error(err))
			}
			results[i], errs[i] = res, err
			return nil
		})
	}
	eg.Wait()
	return results, multierr.Combine(errs...)
}

func runSpec(ctx context.Context, cs CaseSpec, man *Manifest, db *tracedb.DB) (*caseResult, error) {
	var out io.Writer = io.Discard
	if cs.Out != "" {
		f, err := os.Create(cs.Out)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		out = f
	}
	return runCase(ctx, cs.Dir, runOptions{
		Adder:    man.Adder,
		Workers:  man.Workers,
		MemoSize: man.Memo,
		Expect:   cs.expectPath(),
		DB:       db,
	}, out)
}

func printResults(w io.Writer, results []*caseResult) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "CASE\tSEGMENTS\tOVERFLOWS\tSTOP\tDIGEST\tRESULT\n")
	for _, res := range results {
		if res == nil {
			continue
		}
		status := "-"
		if res.Checked {
			status = "ok"
			if res.Mismatch != nil {
				status = fmt.Sprintf("differs at %d", res.Mismatch.Record)
			}
		}
		s := res.Summary
		fmt.Fprintf(tw, "%s\t%d\t%d\t%v\t%s\t%s\n", res.Case, s.Segments, s.Overflows, s.Reason, s.Digest.Short(), status)
	}
	tw.Flush()
}
