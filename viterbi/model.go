package viterbi

import (
	"fmt"

	"hwtrellis.org/trellis/fpadd"
)

type Word = fpadd.Word

// Model holds the cost matrices for a run.
// It is never modified after NewModel returns.
type Model struct {
	n, m int
	// a is (n+1) x n. Row 0 holds the initial costs.
	a []Word
	// b is n x m, indexed by state and 0-based symbol.
	b []Word
}

// NewModel creates a model with n states and m symbols.
// a and b are row major.
func NewModel(n, m int, a, b []Word) (*Model, error) {
	if n <= 0 || m <= 0 {
		return nil, fmt.Errorf("viterbi: invalid dimensions n=%d m=%d", n, m)
	}
	if len(a) != (n+1)*n {
		return nil, fmt.Errorf("viterbi: transition matrix has %d elements, want (%d+1)*%d=%d", len(a), n, n, (n+1)*n)
	}
	if len(b) != n*m {
		return nil, fmt.Errorf("viterbi: emission matrix has %d elements, want %d*%d=%d", len(b), n, m, n*m)
	}
	return &Model{
		n: n,
		m: m,
		a: append([]Word(nil), a...),
		b: append([]Word(nil), b...),
	}, nil
}

// N is the number of states
func (md *Model) N() int { return md.n }

// M is the number of observation symbols
func (md *Model) M() int { return md.m }

// A returns the transition cost into state col.
// Row 0 is the initial cost, row i+1 is the cost from state i.
func (md *Model) A(row, col int) Word {
	return md.a[row*md.n+col]
}

// B returns the cost of state emitting sym. sym is 1-based.
func (md *Model) B(state int, sym Word) Word {
	return md.b[state*md.m+int(sym-1)]
}
