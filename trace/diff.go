package trace

import (
	"fmt"
	"io"
	"strings"

	"hwtrellis.org/trellis/internal/ringbuf"
)

// DiffContext is the number of matching records kept before a mismatch.
const DiffContext = 4

// Mismatch is the first record where two traces disagree.
type Mismatch struct {
	// Record is the 1-based index of the record, ignoring blank lines.
	Record int
	// Want and Got are empty if that trace ended early.
	Want, Got string
	// Context holds the matching records before the mismatch, oldest first.
	Context []string
}

func (m *Mismatch) String() string {
	sb := &strings.Builder{}
	for i, c := range m.Context {
		fmt.Fprintf(sb, "  %6d  %s\n", m.Record-len(m.Context)+i, c)
	}
	fmt.Fprintf(sb, "- %6d  %s\n", m.Record, orEOF(m.Want))
	fmt.Fprintf(sb, "+ %6d  %s\n", m.Record, orEOF(m.Got))
	return sb.String()
}

// Diff compares two traces word by word.
// Words are compared by value, so hardware traces in upper case match.
// It returns nil if the traces are identical.
func Diff(want, got io.Reader) (*Mismatch, error) {
	ws, err := ReadWords(want)
	if err != nil {
		return nil, fmt.Errorf("reading expected trace: %w", err)
	}
	gs, err := ReadWords(got)
	if err != nil {
		return nil, fmt.Errorf("reading actual trace: %w", err)
	}
	return DiffWords(ws, gs), nil
}

func DiffWords(want, got []Word) *Mismatch {
	hist := ringbuf.New[string](DiffContext)
	for i := 0; i < max(len(want), len(got)); i++ {
		if i < len(want) && i < len(got) && want[i] == got[i] {
			hist.PushBack(FormatWord(want[i]))
			continue
		}
		m := &Mismatch{Record: i + 1, Context: hist.Slice()}
		if i < len(want) {
			m.Want = FormatWord(want[i])
		}
		if i < len(got) {
			m.Got = FormatWord(got[i])
		}
		return m
	}
	return nil
}

func orEOF(x string) string {
	if x == "" {
		return "<EOF>"
	}
	return x
}
