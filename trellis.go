// package trellis is a bit exact model of a hardware Viterbi decoder and the
// floating point adder that drives it.
//
// The adder lives in package fpadd, the decoder in package viterbi, and the
// test case and trace formats in package trace.
package trellis

import (
	"lukechampine.com/blake3"

	"hwtrellis.org/trellis/internal/cadata"
)

const (
	TraceIDSize = cadata.IDSize

	// MaxTraceSize is the largest trace which will be stored.
	MaxTraceSize = 1 << 26
)

type (
	// TraceID is the hash of a trace's contents.
	TraceID = cadata.ID

	TraceStore = cadata.Store
)

// Hash calculates the hash of x.
func Hash(x []byte) (ret TraceID) {
	h := blake3.New(TraceIDSize, nil)
	h.Write(x)
	h.Sum(ret[:0])
	return ret
}

// ParseTraceID parses a hex encoded TraceID
func ParseTraceID(x string) (TraceID, error) {
	return cadata.ParseID(x)
}
