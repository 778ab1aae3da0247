// package trace reads decoder test cases and reads and writes decoder output traces.
//
// All files are text, with one hex encoded 32 bit word per line.
package trace

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"hwtrellis.org/trellis/viterbi"
)

type Word = viterbi.Word

// ErrParse is returned for a line which is not a hex encoded word.
type ErrParse struct {
	Line int
	Text string
	Err  error
}

func (e ErrParse) Error() string {
	return fmt.Sprintf("line %d: cannot parse %q as hex word: %v", e.Line, e.Text, e.Err)
}

func (e ErrParse) Unwrap() error {
	return e.Err
}

// ReadWords reads one hex word per line from r.
// Blank lines are skipped and surrounding whitespace is ignored.
func ReadWords(r io.Reader) ([]Word, error) {
	var out []Word
	err := scanLines(r, func(lineNum int, line string) error {
		x, err := ParseWord(line)
		if err != nil {
			return ErrParse{Line: lineNum, Text: line, Err: err}
		}
		out = append(out, x)
		return nil
	})
	return out, err
}

// ReadWordsFile calls ReadWords on the file at p
func ReadWordsFile(p string) ([]Word, error) {
	f, err := os.Open(p)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	ws, err := ReadWords(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p, err)
	}
	return ws, nil
}

// ReadDims reads the number of states, then the number of symbols.
func ReadDims(r io.Reader) (n, m int, err error) {
	ws, err := ReadWords(r)
	if err != nil {
		return 0, 0, err
	}
	if len(ws) < 2 {
		return 0, 0, fmt.Errorf("dimensions: need 2 words, have %d", len(ws))
	}
	return int(ws[0]), int(ws[1]), nil
}

// ParseWord parses a hex word, with or without a 0x prefix.
func ParseWord(x string) (Word, error) {
	x = strings.TrimPrefix(strings.TrimPrefix(x, "0x"), "0X")
	n, err := strconv.ParseUint(x, 16, 32)
	if err != nil {
		return 0, err
	}
	return Word(n), nil
}

// FormatWord returns the canonical 8 digit lowercase encoding of x.
func FormatWord(x Word) string {
	return fmt.Sprintf("%08x", x)
}

func scanLines(r io.Reader, fn func(lineNum int, line string) error) error {
	sc := bufio.NewScanner(r)
	lineNum := 0
	for sc.Scan() {
		lineNum++
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if err := fn(lineNum, line); err != nil {
			return err
		}
	}
	return sc.Err()
}
