package fpadd

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// Memo caches the results of an adder model.
// Cost vectors in long runs settle into a small set of values, so the same
// operand pairs are added over and over.
type Memo struct {
	f     Func
	cache *lru.Cache[uint64, Word]
}

// NewMemo returns a Memo holding at most size results of f.
func NewMemo(size int, f Func) (*Memo, error) {
	cache, err := lru.New[uint64, Word](size)
	if err != nil {
		return nil, err
	}
	return &Memo{f: f, cache: cache}, nil
}

// Add returns f(x, y), consulting the cache first.
// It is safe to call from multiple goroutines.
func (m *Memo) Add(x, y Word) Word {
	k := uint64(x)<<32 | uint64(y)
	if z, ok := m.cache.Get(k); ok {
		return z
	}
	z := m.f(x, y)
	m.cache.Add(k, z)
	return z
}

func (m *Memo) Len() int {
	return m.cache.Len()
}
