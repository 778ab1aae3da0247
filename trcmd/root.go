// package trcmd implements the trellis command line tool.
package trcmd

import (
	"context"
	"fmt"
	"strconv"

	"go.brendoncarroll.net/star"
	"go.brendoncarroll.net/stdctx/logctx"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"hwtrellis.org/trellis/fpadd"
	"hwtrellis.org/trellis/tracedb"
)

func Root() star.Command {
	return root
}

var root = star.NewDir(star.Metadata{
	Short: "bit exact model of a hardware Viterbi decoder",
}, map[star.Symbol]star.Command{
	"run":   runCmd,
	"batch": batchCmd,
	"add":   addCmd,
	"diff":  diffCmd,

	"history": historyCmd,
	"show":    showCmd,
})

var adderParam = star.Param[string]{
	Name:    "adder",
	Default: star.Ptr(fpadd.NameHardware),
	Parse: func(x string) (string, error) {
		_, err := fpadd.Lookup(x)
		return x, err
	},
}

var workersParam = star.Param[int]{
	Name:    "workers",
	Default: star.Ptr("1"),
	Parse:   strconv.Atoi,
}

var memoParam = star.Param[int]{
	Name:    "memo",
	Default: star.Ptr("0"),
	Parse:   strconv.Atoi,
}

// dbParam is empty when runs should not be recorded.
var dbParam = star.Param[string]{
	Name:    "db",
	Default: star.Ptr(""),
	Parse:   star.ParseString,
}

var logLevelParam = star.Param[zapcore.Level]{
	Name:    "log-level",
	Default: star.Ptr("info"),
	Parse:   zapcore.ParseLevel,
}

// setup returns a context carrying a logger at the requested level.
func setup(c star.Context) (context.Context, func(), error) {
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(logLevelParam.Load(c))
	l, err := cfg.Build()
	if err != nil {
		return nil, nil, err
	}
	return logctx.NewContext(c.Context, l), func() { l.Sync() }, nil
}

// openDB opens the run history named by --db, or returns nil if there isn't one.
func openDB(ctx context.Context, c star.Context) (*tracedb.DB, error) {
	p := dbParam.Load(c)
	if p == "" {
		return nil, nil
	}
	return tracedb.Open(ctx, p)
}

func requireDB(ctx context.Context, c star.Context) (*tracedb.DB, error) {
	db, err := openDB(ctx, c)
	if err != nil {
		return nil, err
	}
	if db == nil {
		return nil, fmt.Errorf("--db is required")
	}
	return db, nil
}
