package viterbi

const (
	// Separator ends a segment.
	Separator Word = 0xFFFFFFFF
	// Terminator ends the stream. It is also never a valid symbol.
	Terminator Word = 0x00000000
)

// Stream is a sequence of observation tokens.
type Stream []Word

// At returns the token at position i.
// Positions past the end of the stream read as Terminator.
func (s Stream) At(i int) Word {
	if i < 0 || i >= len(s) {
		return Terminator
	}
	return s[i]
}

func (s Stream) Len() int {
	return len(s)
}
