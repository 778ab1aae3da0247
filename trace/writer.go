package trace

import (
	"bufio"
	"encoding/binary"
	"encoding/hex"
	"io"

	"lukechampine.com/blake3"

	"hwtrellis.org/trellis"
	"hwtrellis.org/trellis/viterbi"
)

// Writer writes records, one hex word per line.
// Everything written is also hashed, so that traces can be compared by Digest.
type Writer struct {
	bw    *bufio.Writer
	h     *blake3.Hasher
	lines int
	buf   [9]byte
}

func NewWriter(w io.Writer) *Writer {
	h := blake3.New(trellis.TraceIDSize, nil)
	return &Writer{
		bw: bufio.NewWriter(io.MultiWriter(w, h)),
		h:  h,
	}
}

func (w *Writer) WriteWord(x Word) error {
	var be [4]byte
	binary.BigEndian.PutUint32(be[:], x)
	hex.Encode(w.buf[:8], be[:])
	w.buf[8] = '\n'
	if _, err := w.bw.Write(w.buf[:]); err != nil {
		return err
	}
	w.lines++
	return nil
}

// WriteSegment writes the path, the cost and then a Separator.
func (w *Writer) WriteSegment(seg *viterbi.Segment) error {
	for _, s := range seg.Path {
		if err := w.WriteWord(s); err != nil {
			return err
		}
	}
	if err := w.WriteWord(seg.Cost); err != nil {
		return err
	}
	return w.WriteWord(viterbi.Separator)
}

// WriteTerminator writes the final record of a run.
func (w *Writer) WriteTerminator() error {
	return w.WriteWord(viterbi.Terminator)
}

func (w *Writer) Flush() error {
	return w.bw.Flush()
}

// Lines is the number of words written so far.
func (w *Writer) Lines() int {
	return w.lines
}

// Digest flushes the writer and returns the hash of everything written.
func (w *Writer) Digest() (trellis.TraceID, error) {
	var id trellis.TraceID
	if err := w.Flush(); err != nil {
		return id, err
	}
	w.h.Sum(id[:0])
	return id, nil
}
