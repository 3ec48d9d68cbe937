// Package offset provides the weave's absolute byte offset type.
//
// The weave is addressed by an unsigned integer that in principle grows
// without bound, so it is represented as a 256-bit value (32 bytes) both in
// memory and on the wire, even though any realistic weave size fits
// comfortably in 64 bits. Keeping the wider representation means the fixed
// width big-endian key encoding used throughout the key-value indices never
// has to change.
package offset

import (
	"fmt"
	"math/big"
)

// Width is the number of bytes used to encode an Offset as a fixed-width
// big-endian key. It corresponds to the deployment-wide NOTE_SIZE constant
// from the data model.
const Width = 32

// Offset is an absolute, non-negative byte position in the weave.
type Offset struct {
	i big.Int
}

// Zero is the offset 0.
var Zero = Offset{}

// New constructs an Offset from a non-negative int64.
func New(v int64) Offset {
	var o Offset
	o.i.SetInt64(v)
	return o
}

// FromBig wraps an existing big.Int. The big.Int must not be negative.
func FromBig(v *big.Int) Offset {
	var o Offset
	o.i.Set(v)
	return o
}

// FromBytes decodes a fixed-width big-endian encoded offset.
func FromBytes(b []byte) Offset {
	var o Offset
	o.i.SetBytes(b)
	return o
}

// Big returns the underlying big.Int. Callers must not mutate it.
func (o Offset) Big() *big.Int {
	return &o.i
}

// Bytes encodes the offset as a Width-byte big-endian key.
func (o Offset) Bytes() []byte {
	buf := make([]byte, Width)
	b := o.i.Bytes()
	if len(b) > Width {
		// Offsets this large cannot occur for any realistic weave; truncate
		// defensively to the low Width bytes rather than panic.
		b = b[len(b)-Width:]
	}
	copy(buf[Width-len(b):], b)
	return buf
}

// String renders the offset in decimal, used by the JSON sync-record wire
// format (§6: "<End decimal>").
func (o Offset) String() string {
	return o.i.String()
}

// Uint64 returns the offset truncated to 64 bits, sufficient for any
// in-memory arithmetic against a real weave.
func (o Offset) Uint64() uint64 {
	return o.i.Uint64()
}

// Add returns o + d.
func (o Offset) Add(d uint64) Offset {
	var out Offset
	out.i.Add(&o.i, new(big.Int).SetUint64(d))
	return out
}

// Sub returns o - d. Panics if the result would be negative; callers must
// only subtract amounts known not to underflow.
func (o Offset) Sub(d uint64) Offset {
	diff := new(big.Int).Sub(&o.i, new(big.Int).SetUint64(d))
	if diff.Sign() < 0 {
		panic(fmt.Sprintf("offset: subtraction underflow %s - %d", o.i.String(), d))
	}
	return Offset{i: *diff}
}

// Distance returns the non-negative difference hi - lo. Panics if hi < lo.
func Distance(hi, lo Offset) uint64 {
	if hi.Less(lo) {
		panic(fmt.Sprintf("offset: distance of %s below %s", hi.String(), lo.String()))
	}
	return new(big.Int).Sub(&hi.i, &lo.i).Uint64()
}

// Cmp compares two offsets the way big.Int.Cmp does.
func (o Offset) Cmp(other Offset) int {
	return o.i.Cmp(&other.i)
}

// Less reports whether o < other.
func (o Offset) Less(other Offset) bool {
	return o.i.Cmp(&other.i) < 0
}

// LessEq reports whether o <= other.
func (o Offset) LessEq(other Offset) bool {
	return o.i.Cmp(&other.i) <= 0
}

// Equal reports whether o == other.
func (o Offset) Equal(other Offset) bool {
	return o.i.Cmp(&other.i) == 0
}

// IsZero reports whether o == 0.
func (o Offset) IsZero() bool {
	return o.i.Sign() == 0
}

// Max returns the larger of a and b.
func Max(a, b Offset) Offset {
	if a.Less(b) {
		return b
	}
	return a
}

// Min returns the smaller of a and b.
func Min(a, b Offset) Offset {
	if a.Less(b) {
		return a
	}
	return b
}
