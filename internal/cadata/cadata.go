// package cadata provides identifiers and interfaces for Content Addressed Data Storage.
//
// Traces are stored under the hash of their contents.
package cadata

import (
	"context"
	"crypto/subtle"
	"database/sql/driver"
	"encoding/hex"
	"errors"
	"fmt"
)

var _ driver.Value = ID{}

const IDSize = 32

// ID identifies a particular piece of data
type ID [IDSize]byte

func IDFromBytes(x []byte) ID {
	id := ID{}
	copy(id[:], x)
	return id
}

// ParseID parses the output of ID.String
func ParseID(x string) (ID, error) {
	var id ID
	n, err := hex.Decode(id[:], []byte(x))
	if err != nil {
		return ID{}, err
	}
	if n != IDSize {
		return ID{}, fmt.Errorf("cadata: id %q is too short", x)
	}
	return id, nil
}

func (id ID) String() string {
	return hex.EncodeToString(id[:])
}

// Short returns a prefix of the hex encoding, for display.
func (id ID) Short() string {
	return id.String()[:12]
}

func (a ID) Equals(b ID) bool {
	return a == b
}

func (id ID) IsZero() bool {
	return id == (ID{})
}

func (id *ID) Scan(x interface{}) error {
	switch x := x.(type) {
	case []byte:
		if len(x) != IDSize {
			return fmt.Errorf("wrong length for cadata.ID HAVE: %d WANT: %d", len(x), IDSize)
		}
		*id = IDFromBytes(x)
		return nil
	default:
		return fmt.Errorf("cannot scan type %T", x)
	}
}

func (id ID) Value() (driver.Value, error) {
	return id[:], nil
}

type HashFunc = func(x []byte) ID

type Poster interface {
	Post(ctx context.Context, data []byte) (ID, error)
}

type Getter interface {
	Get(ctx context.Context, id ID) ([]byte, error)
}

type Exister interface {
	Exists(ctx context.Context, id ID) (bool, error)
}

type Store interface {
	Poster
	Getter
	Exister
}

var ErrTooLarge = errors.New("data is too large for store")

type ErrNotFound struct {
	Key ID
}

func (e ErrNotFound) Error() string {
	return fmt.Sprintf("no data found for %v in store", e.Key)
}

type ErrBadData struct {
	Have ID
	Want ID
}

func (e ErrBadData) Error() string {
	return fmt.Sprintf("bad data. HAVE: %v WANT: %v", e.Have, e.Want)
}

// Check returns ErrBadData if data does not hash to expected.
func Check(hf HashFunc, expected ID, data []byte) error {
	actual := hf(data)
	if subtle.ConstantTimeCompare(actual[:], expected[:]) != 1 {
		return ErrBadData{Have: actual, Want: expected}
	}
	return nil
}
