// package fpadd models the single precision adder used by the decoder datapath.
//
// The adder is not IEEE-754. Zero operands bypass the datapath entirely,
// rounding is always nearest-even, any exponent overflow saturates to NegInf,
// and the sign bit of every computed result is forced to 1.
package fpadd

import "fmt"

// Word is a raw 32 bit pattern: sign(1) exponent(8) mantissa(23)
type Word = uint32

const (
	// NegInf is the saturation pattern, and the worst possible cost.
	NegInf Word = 0xFF800000

	ExpBits   = 8
	ManBits   = 23
	SigBits   = ManBits + 1
	ExpMax    = 1<<ExpBits - 1
	ManMask   = 1<<ManBits - 1
	hiddenBit = 1 << ManBits
	signBit   = 1 << 31
)

// Func is the signature shared by all adder models.
type Func = func(x, y Word) Word

// Fields splits x into its sign, biased exponent and mantissa.
func Fields(x Word) (sign, exp, man uint32) {
	return x >> 31, (x >> ManBits) & ExpMax, x & ManMask
}

// IsZero returns true if x has a zero exponent and a zero mantissa.
// The sign is ignored.
func IsZero(x Word) bool {
	return x&^signBit == 0
}

// Add is the hardware adder.
func Add(x, y Word) Word {
	if IsZero(x) {
		return y
	}
	if IsZero(y) {
		return x
	}
	return add(x, y, false)
}

// AddReference behaves like Add, except when y has the larger exponent and the
// shift is between 2 and 23 places. There the sticky bit is computed from the
// low bits of y's significand instead of x's, as the software reference model does.
// Use it to reproduce traces generated by that model.
func AddReference(x, y Word) Word {
	if IsZero(x) {
		return y
	}
	if IsZero(y) {
		return x
	}
	return add(x, y, true)
}

func add(x, y Word, refSticky bool) Word {
	_, ex, mx := Fields(x)
	_, ey, my := Fields(y)
	sx := mx | hiddenBit
	sy := my | hiddenBit

	exp := ex
	var guard, sticky uint32
	switch {
	case ex > ey:
		sy, guard, sticky = align(sy, ex-ey)
	case ey > ex:
		exp = ey
		d := ey - ex
		sx, guard, sticky = align(sx, d)
		if refSticky && d > 1 && d < SigBits {
			sticky = lowBitsSet(my|hiddenBit, d-1)
		}
	}

	sum := sx + sy
	if sum>>SigBits != 0 {
		sticky |= guard
		guard = sum & 1
		sum >>= 1
		exp++
	}
	man := sum & ManMask
	if guard == 1 && (sticky == 1 || man&1 == 1) {
		man++
	}
	if man&hiddenBit != 0 {
		man = 0
		exp++
	}
	if exp >= ExpMax {
		return NegInf
	}
	return signBit | exp<<ManBits | man
}

// align shifts the significand s right by d places, returning the
// shifted value along with the guard and sticky bits.
func align(s, d uint32) (shifted, guard, sticky uint32) {
	if d >= SigBits {
		if s != 0 {
			sticky = 1
		}
		return 0, 0, sticky
	}
	guard = (s >> (d - 1)) & 1
	if d > 1 {
		sticky = lowBitsSet(s, d-1)
	}
	return s >> d, guard, sticky
}

// lowBitsSet returns 1 if any of the low n bits of s are set.
func lowBitsSet(s, n uint32) uint32 {
	if s&(1<<n-1) != 0 {
		return 1
	}
	return 0
}

const (
	NameHardware  = "hw"
	NameReference = "reference"
)

type ErrUnknownAdder struct {
	Name string
}

func (e ErrUnknownAdder) Error() string {
	return fmt.Sprintf("unknown adder %q. options: %q, %q", e.Name, NameHardware, NameReference)
}

// Lookup returns the adder model with the given name.
func Lookup(name string) (Func, error) {
	switch name {
	case NameHardware, "":
		return Add, nil
	case NameReference:
		return AddReference, nil
	default:
		return nil, ErrUnknownAdder{Name: name}
	}
}
