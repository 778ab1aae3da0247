package trcmd

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"

	"go.brendoncarroll.net/star"
	"go.brendoncarroll.net/stdctx/logctx"
	"go.uber.org/zap"

	"hwtrellis.org/trellis/fpadd"
	"hwtrellis.org/trellis/trace"
	"hwtrellis.org/trellis/tracedb"
	"hwtrellis.org/trellis/viterbi"
)

var runCmd = star.Command{
	Metadata: star.Metadata{
		Short: "run the decoder over a case directory and write the trace",
	},
	Flags: []star.IParam{adderParam, workersParam, memoParam, dbParam, logLevelParam, outParam, expectParam},
	Pos:   []star.IParam{caseDirParam},
	F: func(c star.Context) error {
		ctx, done, err := setup(c)
		if err != nil {
			return err
		}
		defer done()
		db, err := openDB(ctx, c)
		if err != nil {
			return err
		}
		if db != nil {
			defer db.Close()
		}
		var out io.Writer = c.StdOut
		if p := outParam.Load(c); p != "" {
			f, err := os.Create(p)
			if err != nil {
				return err
			}
			defer f.Close()
			out = f
		}
		res, err := runCase(ctx, caseDirParam.Load(c), runOptions{
			Adder:    adderParam.Load(c),
			Workers:  workersParam.Load(c),
			MemoSize: memoParam.Load(c),
			Expect:   expectParam.Load(c),
			DB:       db,
		}, out)
		if err != nil {
			return err
		}
		return res.Err()
	},
}

var caseDirParam = star.Param[string]{
	Name:  "case",
	Parse: star.ParseString,
}

var outParam = star.Param[string]{
	Name:    "o",
	Default: star.Ptr(""),
	Parse:   star.ParseString,
}

// expectParam names a trace to compare against, usually a hardware capture.
var expectParam = star.Param[string]{
	Name:    "expect",
	Default: star.Ptr(""),
	Parse:   star.ParseString,
}

type runOptions struct {
	Adder    string
	Workers  int
	MemoSize int
	// Expect is the path of the expected trace, or empty.
	Expect string
	// DB records the run if it is not nil.
	DB *tracedb.DB
}

type caseResult struct {
	Case    string
	Summary *trace.Summary
	// Checked is true if the trace was compared against an expected trace.
	Checked  bool
	Mismatch *trace.Mismatch
	// RunID is 0 if the run was not recorded.
	RunID tracedb.RunID
}

// Err returns ErrMismatch if the trace did not match the expected trace.
func (r *caseResult) Err() error {
	if r.Mismatch != nil {
		return ErrMismatch{Case: r.Case, Mismatch: r.Mismatch}
	}
	return nil
}

type ErrMismatch struct {
	Case     string
	Mismatch *trace.Mismatch
}

func (e ErrMismatch) Error() string {
	return fmt.Sprintf("case %s: trace differs from expected at record %d\n%v", e.Case, e.Mismatch.Record, e.Mismatch)
}

func newConfig(adder string, workers, memoSize int) (viterbi.Config, error) {
	f, err := fpadd.Lookup(adder)
	if err != nil {
		return viterbi.Config{}, err
	}
	if memoSize > 0 {
		m, err := fpadd.NewMemo(memoSize, f)
		if err != nil {
			return viterbi.Config{}, err
		}
		f = m.Add
	}
	return viterbi.Config{Adder: f, Workers: workers}, nil
}

// runCase runs the case in dir, writing the trace to out.
func runCase(ctx context.Context, dir string, opts runOptions, out io.Writer) (*caseResult, error) {
	c, err := trace.LoadCase(dir)
	if err != nil {
		return nil, err
	}
	cfg, err := newConfig(opts.Adder, opts.Workers, opts.MemoSize)
	if err != nil {
		return nil, err
	}
	buf := &bytes.Buffer{}
	sum, err := trace.RunCase(ctx, c, cfg, io.MultiWriter(buf, out))
	if err != nil {
		return nil, err
	}
	res := &caseResult{Case: c.Name, Summary: sum}
	if opts.Expect != "" {
		f, err := os.Open(opts.Expect)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		res.Checked = true
		if res.Mismatch, err = trace.Diff(f, bytes.NewReader(buf.Bytes())); err != nil {
			return nil, err
		}
	}
	if opts.DB != nil {
		r := tracedb.NewRun(c.Name, opts.Adder, sum)
		if res.Checked {
			r.Matched = sql.NullBool{Valid: true, Bool: res.Mismatch == nil}
		}
		if res.RunID, err = opts.DB.RecordRun(ctx, r, buf.Bytes()); err != nil {
			return nil, err
		}
		logctx.Info(ctx, "recorded run", zap.String("case", c.Name), zap.Int64("run", res.RunID))
	}
	return res, nil
}
