package viterbi

import (
	"math"
	"math/rand"
	"slices"
	"testing"

	"github.com/stretchr/testify/require"

	"hwtrellis.org/trellis/fpadd"
	"hwtrellis.org/trellis/internal/testutil"
)

const one = Word(0x3F800000)

// intAdd makes cost arithmetic easy to follow in tests.
func intAdd(x, y Word) Word { return x + y }

func TestEndToEnd(t *testing.T) {
	ctx := testutil.Context(t)
	e := newEngine(t, 2, 2, fill(6, one), fill(4, one), Stream{1, 2, Separator, Terminator}, Config{})

	res := e.RunSegment(ctx)
	require.Equal(t, Continue, res.Status)
	require.NotNil(t, res.Segment)
	require.Equal(t, []Word{1, 1}, res.Segment.Path)
	want := fpadd.Add(fpadd.Add(fpadd.Add(one, one), one), one)
	require.Equal(t, want, res.Segment.Cost)
	require.Equal(t, Word(0xC0800000), res.Segment.Cost)

	res = e.RunSegment(ctx)
	require.Equal(t, Stop, res.Status)
	require.Equal(t, ZeroToken, res.Reason)
	require.Nil(t, res.Segment)
}

func TestMalformed(t *testing.T) {
	ctx := testutil.Context(t)
	e := newEngine(t, 2, 2, fill(6, one), fill(4, one), Stream{0, Separator, Terminator}, Config{})
	res := e.RunSegment(ctx)
	require.Equal(t, Stop, res.Status)
	require.Equal(t, ZeroToken, res.Reason)
	require.Equal(t, 0, e.Cursor())
	// stopping is sticky
	require.Equal(t, Stop, e.RunSegment(ctx).Status)
}

func TestMalformedMidSegment(t *testing.T) {
	ctx := testutil.Context(t)
	e := newEngine(t, 2, 2, fill(6, one), fill(4, one), Stream{1, 2, 0, 1, Separator}, Config{})
	res := e.RunSegment(ctx)
	require.Equal(t, Stop, res.Status)
	require.Nil(t, res.Segment)
	require.Equal(t, 2, e.Cursor())
}

func TestSingleStep(t *testing.T) {
	ctx := testutil.Context(t)
	a := []Word{
		0x40400000, 0x3F800000, 0x40000000, // 3, 1, 2
	}
	a = append(a, fill(9, one)...)
	e := newEngine(t, 3, 2, a, fill(6, one), Stream{2, Separator, Terminator}, Config{})
	res := e.RunSegment(ctx)
	require.Equal(t, Continue, res.Status)
	require.Equal(t, []Word{2}, res.Segment.Path)
	require.Equal(t, Word(0xC0000000), res.Segment.Cost)
	require.Equal(t, 2, e.Cursor())
	require.Equal(t, 0, e.Stats().Steps)
}

func TestTieBreak(t *testing.T) {
	ctx := testutil.Context(t)
	a := []Word{
		10, 12, // initial
		5, 20, // from state 1
		3, 20, // from state 2
	}
	b := []Word{1, 1}
	// curr = [11, 13]
	// into state 1: 11+5+1 = 17 == 13+3+1 = 17, the first source wins.
	e := newEngine(t, 2, 1, a, b, Stream{1, 1, Separator}, Config{Adder: intAdd})
	res := e.RunSegment(ctx)
	require.Equal(t, []Word{1, 1}, res.Segment.Path)
	require.Equal(t, Word(17), res.Segment.Cost)

	// make the second source strictly better
	a[4] = 2
	e = newEngine(t, 2, 1, a, b, Stream{1, 1, Separator}, Config{Adder: intAdd})
	res = e.RunSegment(ctx)
	require.Equal(t, []Word{2, 1}, res.Segment.Path)
	require.Equal(t, Word(16), res.Segment.Cost)
}

func TestFinalTieBreak(t *testing.T) {
	ctx := testutil.Context(t)
	// every final cost is equal, the first state wins
	e := newEngine(t, 3, 1, fill(12, 1), fill(3, 1), Stream{1, 1, 1, Separator}, Config{Adder: intAdd})
	res := e.RunSegment(ctx)
	require.Equal(t, []Word{1, 1, 1}, res.Segment.Path)
	require.Equal(t, Word(6), res.Segment.Cost)
}

func TestOverflow(t *testing.T) {
	ctx := testutil.Context(t)
	obs := append(repeat(70, 1), Separator, 1, 1, Separator, Terminator)
	e := newEngine(t, 1, 1, []Word{1, 1}, []Word{1}, obs, Config{Adder: intAdd})

	res := e.RunSegment(ctx)
	require.Equal(t, Continue, res.Status)
	require.Nil(t, res.Segment)
	require.Equal(t, 71, e.Cursor())
	require.Equal(t, 1, e.Stats().Overflows)

	res = e.RunSegment(ctx)
	require.Equal(t, Continue, res.Status)
	require.Equal(t, []Word{1, 1}, res.Segment.Path)
	require.Equal(t, Word(4), res.Segment.Cost)

	res = e.RunSegment(ctx)
	require.Equal(t, Stop, res.Status)
	require.Equal(t, Stats{Segments: 1, Overflows: 1, Steps: 64}, e.Stats())
}

func TestOverflowBoundary(t *testing.T) {
	ctx := testutil.Context(t)
	// 64 observations fit
	obs := append(repeat(MaxObsLen, 1), Separator, Terminator)
	e := newEngine(t, 1, 1, []Word{1, 1}, []Word{1}, obs, Config{Adder: intAdd})
	res := e.RunSegment(ctx)
	require.NotNil(t, res.Segment)
	require.Len(t, res.Segment.Path, MaxObsLen)
	require.Equal(t, Word(2*MaxObsLen), res.Segment.Cost)

	// 65 do not
	obs = append(repeat(MaxObsLen+1, 1), Separator, 1, Separator, Terminator)
	e = newEngine(t, 1, 1, []Word{1, 1}, []Word{1}, obs, Config{Adder: intAdd})
	res = e.RunSegment(ctx)
	require.Equal(t, Continue, res.Status)
	require.Nil(t, res.Segment)
	res = e.RunSegment(ctx)
	require.Equal(t, []Word{1}, res.Segment.Path)
	require.Equal(t, Word(2), res.Segment.Cost)
	require.Equal(t, Stop, e.RunSegment(ctx).Status)
}

func TestOverflowIntoTerminator(t *testing.T) {
	ctx := testutil.Context(t)
	obs := append(repeat(70, 1), Terminator, 1, Separator)
	e := newEngine(t, 1, 1, []Word{1, 1}, []Word{1}, obs, Config{Adder: intAdd})
	res := e.RunSegment(ctx)
	require.Equal(t, Continue, res.Status)
	require.Nil(t, res.Segment)
	// the terminator is not consumed
	require.Equal(t, 70, e.Cursor())
	res = e.RunSegment(ctx)
	require.Equal(t, Stop, res.Status)
	require.Equal(t, ZeroToken, res.Reason)
}

func TestEndOfStream(t *testing.T) {
	ctx := testutil.Context(t)
	e := newEngine(t, 1, 1, []Word{1, 1}, []Word{1}, Stream{1, Separator}, Config{Adder: intAdd})
	require.NotNil(t, e.RunSegment(ctx).Segment)
	res := e.RunSegment(ctx)
	require.Equal(t, Stop, res.Status)
	require.Equal(t, EndOfStream, res.Reason)

	// a segment cut off by the end of the stream is never emitted
	e = newEngine(t, 1, 1, []Word{1, 1}, []Word{1}, Stream{1, 1, 1}, Config{Adder: intAdd})
	res = e.RunSegment(ctx)
	require.Equal(t, Stop, res.Status)
	require.Equal(t, EndOfStream, res.Reason)
}

func TestSymbolOutOfRange(t *testing.T) {
	ctx := testutil.Context(t)
	e := newEngine(t, 2, 2, fill(6, one), fill(4, one), Stream{1, 3, Separator}, Config{})
	res := e.RunSegment(ctx)
	require.Equal(t, Stop, res.Status)
	require.Equal(t, SymbolOutOfRange, res.Reason)

	// an empty segment
	e = newEngine(t, 2, 2, fill(6, one), fill(4, one), Stream{Separator, 1, Separator}, Config{})
	res = e.RunSegment(ctx)
	require.Equal(t, Stop, res.Status)
	require.Equal(t, SymbolOutOfRange, res.Reason)
}

func TestUnresolvedState(t *testing.T) {
	ctx := testutil.Context(t)
	a := []Word{
		one, one,
		one, one,
		one, 0x3F000000,
	}
	b := []Word{
		one, fpadd.NegInf,
		one, fpadd.NegInf,
	}
	// the last step saturates every cost, so no final state is found.
	// Unresolved states read the predecessor recorded for the last state.
	e := newEngine(t, 2, 2, a, b, Stream{1, 1, 2, Separator}, Config{})
	res := e.RunSegment(ctx)
	require.Equal(t, []Word{2, 0, 0}, res.Segment.Path)
	require.Equal(t, fpadd.NegInf, res.Segment.Cost)
}

func TestStatePersistsAcrossSegments(t *testing.T) {
	ctx := testutil.Context(t)
	obs := Stream{1, 1, 1, Separator, 1, Separator, 1, 1, Separator, Terminator}
	e := newEngine(t, 1, 1, []Word{1, 1}, []Word{1}, obs, Config{Adder: intAdd})
	var paths [][]Word
	for {
		res := e.RunSegment(ctx)
		if res.Status == Stop {
			break
		}
		paths = append(paths, res.Segment.Path)
	}
	require.Equal(t, [][]Word{{1, 1, 1}, {1}, {1, 1}}, paths)
	require.Equal(t, 9, e.Cursor())
}

func TestParallelInduction(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	const n, m = 37, 5
	a := randomCosts(rng, (n+1)*n)
	b := randomCosts(rng, n*m)
	var obs Stream
	for seg := 0; seg < 20; seg++ {
		l := 1 + rng.Intn(80)
		for i := 0; i < l; i++ {
			obs = append(obs, Word(1+rng.Intn(m)))
		}
		obs = append(obs, Separator)
	}
	obs = append(obs, Terminator)

	seq := runAll(t, newEngine(t, n, m, a, b, obs, Config{}))
	par := runAll(t, newEngine(t, n, m, a, b, obs, Config{Workers: 4}))
	require.Equal(t, seq, par)

	memo, err := fpadd.NewMemo(1<<12, fpadd.Add)
	require.NoError(t, err)
	memoed := runAll(t, newEngine(t, n, m, a, b, obs, Config{Adder: memo.Add, Workers: 3}))
	require.Equal(t, seq, memoed)
}

func TestNewModel(t *testing.T) {
	_, err := NewModel(0, 1, nil, nil)
	require.Error(t, err)
	_, err = NewModel(2, 2, fill(5, 1), fill(4, 1))
	require.Error(t, err)
	_, err = NewModel(2, 2, fill(6, 1), fill(3, 1))
	require.Error(t, err)

	md, err := NewModel(2, 3, []Word{1, 2, 3, 4, 5, 6}, []Word{7, 8, 9, 10, 11, 12})
	require.NoError(t, err)
	require.Equal(t, Word(4), md.A(1, 1))
	require.Equal(t, Word(5), md.A(2, 0))
	require.Equal(t, Word(7), md.B(0, 1))
	require.Equal(t, Word(12), md.B(1, 3))
}

func newEngine(t testing.TB, n, m int, a, b []Word, obs Stream, cfg Config) *Engine {
	md, err := NewModel(n, m, a, b)
	require.NoError(t, err)
	return New(md, obs, cfg)
}

func runAll(t testing.TB, e *Engine) []Result {
	ctx := testutil.Context(t)
	var out []Result
	for i := 0; ; i++ {
		require.Less(t, i, 1000, "engine did not stop")
		res := e.RunSegment(ctx)
		out = append(out, res)
		if res.Status == Stop {
			return out
		}
	}
}

func fill(n int, x Word) []Word {
	return slices.Repeat([]Word{x}, n)
}

func repeat(n int, x Word) Stream {
	return Stream(fill(n, x))
}

func randomCosts(rng *rand.Rand, n int) []Word {
	out := make([]Word, n)
	for i := range out {
		out[i] = math.Float32bits(0.5 + 8*rng.Float32())
	}
	return out
}
