package trcmd

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"go.brendoncarroll.net/star"

	"hwtrellis.org/trellis/fpadd"
	"hwtrellis.org/trellis/trace"
	"hwtrellis.org/trellis/tracedb"
)

var addCmd = star.Command{
	Metadata: star.Metadata{
		Short: "add two hex encoded words with an adder model",
		Tags:  []string{"debug"},
	},
	Flags: []star.IParam{adderParam},
	Pos:   []star.IParam{xParam, yParam},
	F: func(c star.Context) error {
		add, err := fpadd.Lookup(adderParam.Load(c))
		if err != nil {
			return err
		}
		x, y := xParam.Load(c), yParam.Load(c)
		z := add(x, y)
		sign, exp, man := fpadd.Fields(z)
		c.Printf("%s  sign=%d exp=%d man=%06x\n", trace.FormatWord(z), sign, exp, man)
		return nil
	},
}

var xParam = star.Param[fpadd.Word]{Name: "x", Parse: trace.ParseWord}
var yParam = star.Param[fpadd.Word]{Name: "y", Parse: trace.ParseWord}

var diffCmd = star.Command{
	Metadata: star.Metadata{
		Short: "compare two traces and show the first difference",
	},
	Pos: []star.IParam{wantParam, gotParam},
	F: func(c star.Context) error {
		want, err := os.Open(wantParam.Load(c))
		if err != nil {
			return err
		}
		defer want.Close()
		got, err := os.Open(gotParam.Load(c))
		if err != nil {
			return err
		}
		defer got.Close()
		m, err := trace.Diff(want, got)
		if err != nil {
			return err
		}
		if m == nil {
			c.Printf("traces match\n")
			return nil
		}
		c.Printf("%v", m)
		return fmt.Errorf("traces differ at record %d", m.Record)
	},
}

var wantParam = star.Param[string]{Name: "want", Parse: star.ParseString}
var gotParam = star.Param[string]{Name: "got", Parse: star.ParseString}

var historyCmd = star.Command{
	Metadata: star.Metadata{
		Short: "list recorded runs, most recent first",
		Tags:  []string{"db"},
	},
	Flags: []star.IParam{dbParam, caseNameParam, limitParam},
	F: func(c star.Context) error {
		db, err := requireDB(c.Context, c)
		if err != nil {
			return err
		}
		defer db.Close()
		runs, err := db.ListRuns(c.Context, caseNameParam.Load(c), limitParam.Load(c))
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(c.StdOut, 0, 4, 2, ' ', 0)
		fmt.Fprintf(tw, "ID\tCASE\tADDER\tSEGMENTS\tOVERFLOWS\tSTOP\tMATCHED\tDIGEST\tTIME\n")
		for _, r := range runs {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%d\t%s\t%s\t%s\t%s\n",
				r.ID, r.CaseName, r.Adder, r.Segments, r.Overflows, r.StopReason, matchedString(r), r.Digest.Short(), r.Timestamp())
		}
		return tw.Flush()
	},
}

var caseNameParam = star.Param[string]{
	Name:    "case",
	Default: star.Ptr(""),
	Parse:   star.ParseString,
}

var limitParam = star.Param[int]{
	Name:    "n",
	Default: star.Ptr("20"),
	Parse:   strconv.Atoi,
}

func matchedString(r tracedb.Run) string {
	switch {
	case !r.Matched.Valid:
		return "-"
	case r.Matched.Bool:
		return "yes"
	default:
		return "no"
	}
}

var showCmd = star.Command{
	Metadata: star.Metadata{
		Short: "write the trace of a recorded run",
		Tags:  []string{"db"},
	},
	Flags: []star.IParam{dbParam},
	Pos:   []star.IParam{runIDParam},
	F: func(c star.Context) error {
		db, err := requireDB(c.Context, c)
		if err != nil {
			return err
		}
		defer db.Close()
		data, err := db.GetTrace(c.Context, runIDParam.Load(c))
		if err != nil {
			return err
		}
		_, err = c.StdOut.Write(data)
		return err
	},
}

var runIDParam = star.Param[tracedb.RunID]{
	Name: "run",
	Parse: func(x string) (tracedb.RunID, error) {
		return strconv.ParseInt(x, 10, 64)
	},
}
