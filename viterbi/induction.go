package viterbi

import (
	"golang.org/x/sync/errgroup"

	"hwtrellis.org/trellis/fpadd"
)

// minParallelStates is the smallest model for which induction is split across goroutines.
const minParallelStates = 16

// induct computes one time step into temp, recording predecessors in backtrace row.
// Rows at or past MaxObsLen are not recorded.
func (e *Engine) induct(sym Word, row int) {
	n := e.model.N()
	curr, temp := e.curr(), e.temp()
	var bt []int32
	if row < MaxObsLen {
		bt = e.bt[row*n : (row+1)*n]
	}
	if e.workers <= 1 || n < minParallelStates {
		for j := 0; j < n; j++ {
			e.relax(curr, temp, bt, sym, j)
		}
		return
	}
	// each destination state only writes its own slot of temp and bt.
	chunk := (n + e.workers - 1) / e.workers
	var eg errgroup.Group
	for lo := 0; lo < n; lo += chunk {
		hi := min(lo+chunk, n)
		eg.Go(func() error {
			for j := lo; j < hi; j++ {
				e.relax(curr, temp, bt, sym, j)
			}
			return nil
		})
	}
	eg.Wait()
}

// relax finds the cheapest predecessor of state j.
// Sources are scanned in ascending order and only a strictly smaller score replaces the
// current best, so the lowest index wins ties.
func (e *Engine) relax(curr, temp []Word, bt []int32, sym Word, j int) {
	emit := e.model.B(j, sym)
	best, arg := fpadd.NegInf, int32(-1)
	for i, c := range curr {
		score := e.add(e.add(c, e.model.A(i+1, j)), emit)
		if score < best {
			best, arg = score, int32(i)
		}
	}
	temp[j] = best
	if bt != nil {
		bt[j] = arg
	}
}
