package trace

import (
	"fmt"
	"os"
	"path/filepath"

	"hwtrellis.org/trellis/viterbi"
)

// File names in a case directory
const (
	FileA      = "A.dat"
	FileB      = "B.dat"
	FileDims   = "N.dat"
	FileInput  = "input.dat"
	FileOutput = "output.dat"
)

// Case is everything needed to run the decoder once.
type Case struct {
	Name  string
	Model *viterbi.Model
	Obs   viterbi.Stream
}

// LoadCase reads a case directory.
func LoadCase(dir string) (*Case, error) {
	f, err := os.Open(filepath.Join(dir, FileDims))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	n, m, err := ReadDims(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", f.Name(), err)
	}
	a, err := ReadWordsFile(filepath.Join(dir, FileA))
	if err != nil {
		return nil, err
	}
	b, err := ReadWordsFile(filepath.Join(dir, FileB))
	if err != nil {
		return nil, err
	}
	obs, err := ReadWordsFile(filepath.Join(dir, FileInput))
	if err != nil {
		return nil, err
	}
	md, err := viterbi.NewModel(n, m, a, b)
	if err != nil {
		return nil, fmt.Errorf("loading case %s: %w", dir, err)
	}
	return &Case{
		Name:  filepath.Base(filepath.Clean(dir)),
		Model: md,
		Obs:   obs,
	}, nil
}

// WriteCase writes a case directory which LoadCase can read.
func WriteCase(dir string, n, m int, a, b, obs []Word) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	for _, f := range []struct {
		name string
		ws   []Word
	}{
		{FileDims, []Word{Word(n), Word(m)}},
		{FileA, a},
		{FileB, b},
		{FileInput, obs},
	} {
		if err := writeWordsFile(filepath.Join(dir, f.name), f.ws); err != nil {
			return err
		}
	}
	return nil
}

func writeWordsFile(p string, ws []Word) error {
	f, err := os.Create(p)
	if err != nil {
		return err
	}
	w := NewWriter(f)
	for _, x := range ws {
		if err := w.WriteWord(x); err != nil {
			f.Close()
			return err
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
