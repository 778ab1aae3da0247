// package viterbi implements the segmented minimum cost Viterbi decoder.
//
// The observation stream is split into segments by Separator tokens.
// Each segment is decoded independently, but the decoder state carries over from one
// segment to the next, exactly as it does in hardware.
package viterbi

import (
	"context"
	"fmt"

	"go.brendoncarroll.net/stdctx/logctx"
	"go.uber.org/zap"

	"hwtrellis.org/trellis/fpadd"
)

// MaxObsLen is the capacity of the backtrace memory, in time steps.
// Longer segments are dropped.
const MaxObsLen = 64

type Status uint8

const (
	// Continue means the engine can be called again.
	Continue Status = iota
	// Stop means the run is over.
	Stop
)

func (s Status) String() string {
	switch s {
	case Continue:
		return "CONTINUE"
	case Stop:
		return "STOP"
	default:
		return fmt.Sprintf("Status(%d)", uint8(s))
	}
}

type StopReason uint8

const (
	NotStopped StopReason = iota
	// ZeroToken is a 0 token where an observation was expected.
	ZeroToken
	// EndOfStream is reading past the last token.
	EndOfStream
	// SymbolOutOfRange is a symbol which does not index the emission matrix.
	SymbolOutOfRange
)

func (r StopReason) String() string {
	switch r {
	case NotStopped:
		return ""
	case ZeroToken:
		return "zero-token"
	case EndOfStream:
		return "end-of-stream"
	case SymbolOutOfRange:
		return "symbol-out-of-range"
	default:
		return fmt.Sprintf("StopReason(%d)", uint8(r))
	}
}

// Segment is a decoded segment.
type Segment struct {
	// Path holds 1-based state indices in chronological order.
	Path []Word
	// Cost is the minimum final cost.
	Cost Word
}

type Result struct {
	Status Status
	// Segment is nil if the engine stopped, or if the segment overflowed the backtrace memory.
	Segment *Segment
	Reason  StopReason
}

type Stats struct {
	Segments  int
	Overflows int
	Steps     int
}

type Config struct {
	// Adder is used for every cost combination. Defaults to fpadd.Add
	Adder fpadd.Func
	// Workers > 1 splits each induction step across goroutines.
	Workers int
}

type Engine struct {
	model   *Model
	obs     Stream
	add     fpadd.Func
	workers int

	// bufs holds curr and temp. active is the index of curr.
	bufs   [2][]Word
	active int
	// bt is MaxObsLen rows of model.N() predecessor indices.
	// Rows are only ever read after being written in the same segment.
	bt   []int32
	path [MaxObsLen]Word

	t, tInit int
	stats    Stats
}

func New(model *Model, obs Stream, cfg Config) *Engine {
	if cfg.Adder == nil {
		cfg.Adder = fpadd.Add
	}
	n := model.N()
	return &Engine{
		model:   model,
		obs:     obs,
		add:     cfg.Adder,
		workers: cfg.Workers,

		bufs: [2][]Word{make([]Word, n), make([]Word, n)},
		bt:   make([]int32, MaxObsLen*n),
	}
}

// RunSegment decodes the next segment of the stream.
// It returns Stop once a token which is not a valid observation is reached,
// and will keep returning Stop if called again.
func (e *Engine) RunSegment(ctx context.Context) Result {
	if reason := e.checkSymbol(e.obs.At(e.t)); reason != NotStopped {
		return e.stop(ctx, reason)
	}
	e.initSegment(e.obs.At(e.t))
	e.t++

	for e.obs.At(e.t) != Separator {
		sym := e.obs.At(e.t)
		if reason := e.checkSymbol(sym); reason != NotStopped {
			return e.stop(ctx, reason)
		}
		e.induct(sym, e.t-e.tInit)
		e.active ^= 1
		e.t++
		e.stats.Steps++

		if e.t-e.tInit >= MaxObsLen && e.obs.At(e.t) != Separator {
			e.recoverOverflow(ctx)
			return Result{Status: Continue}
		}
	}
	seg := e.backtrack()
	// consume the separator
	e.t++
	e.tInit = e.t
	e.stats.Segments++
	logctx.Debug(ctx, "segment decoded", zap.Int("len", len(seg.Path)), zap.Uint32("cost", seg.Cost))
	return Result{Status: Continue, Segment: seg}
}

// Cursor is the position of the next token to be read.
func (e *Engine) Cursor() int {
	return e.t
}

func (e *Engine) Stats() Stats {
	return e.stats
}

func (e *Engine) curr() []Word {
	return e.bufs[e.active]
}

func (e *Engine) temp() []Word {
	return e.bufs[e.active^1]
}

func (e *Engine) checkSymbol(sym Word) StopReason {
	switch {
	case sym == Terminator && e.t >= e.obs.Len():
		return EndOfStream
	case sym == Terminator:
		return ZeroToken
	case sym > Word(e.model.M()):
		return SymbolOutOfRange
	default:
		return NotStopped
	}
}

func (e *Engine) stop(ctx context.Context, reason StopReason) Result {
	logctx.Debug(ctx, "stopping", zap.Stringer("reason", reason), zap.Int("t", e.t), zap.Uint32("token", e.obs.At(e.t)))
	return Result{Status: Stop, Reason: reason}
}

func (e *Engine) initSegment(sym Word) {
	curr := e.curr()
	for j := range curr {
		curr[j] = e.add(e.model.A(0, j), e.model.B(j, sym))
	}
}

// recoverOverflow skips the rest of a segment which will not fit in the backtrace memory.
// The next segment starts after the next separator, or at the next terminator.
func (e *Engine) recoverOverflow(ctx context.Context) {
	logctx.Warn(ctx, "segment exceeds backtrace memory, dropping it",
		zap.Int("max_obs_len", MaxObsLen),
		zap.Int("t_init", e.tInit),
		zap.Int("t", e.t),
	)
	for {
		tok := e.obs.At(e.t)
		if tok == Separator {
			e.t++
			break
		}
		if tok == Terminator {
			break
		}
		e.t++
	}
	e.tInit = e.t
	e.stats.Overflows++
}

func (e *Engine) backtrack() *Segment {
	n := e.model.N()
	last := e.t - e.tInit - 1
	clear(e.path[:])

	cost := fpadd.NegInf
	for i, c := range e.curr() {
		if c < cost {
			cost = c
			e.path[last] = Word(i + 1)
		}
	}
	for tm := last - 1; tm >= 0; tm-- {
		next := int(e.path[tm+1]) - 1
		if next < 0 {
			// an unresolved state reads the last column
			next = n - 1
		}
		e.path[tm] = Word(e.bt[(tm+1)*n+next] + 1)
	}
	return &Segment{
		Path: append([]Word(nil), e.path[:last+1]...),
		Cost: cost,
	}
}
