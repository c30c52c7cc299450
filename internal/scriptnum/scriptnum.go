// Package scriptnum implements the arbitrary-precision script-number view
// used by the value algebra (internal/value) and the opcode transfer
// functions (internal/opcode). Unlike the 32/64-bit script numbers of the
// reference interpreter, the tracer never executes consensus code directly,
// so script numbers here are bounded only by the minimaldata decoding rules,
// not by a fixed byte width.
package scriptnum

import "math/big"

// Num is a minimaldata-decoded script number: an arbitrary-precision signed
// integer. Only the value is kept; Bytes re-derives the minimal encoding.
type Num struct {
	val *big.Int
}

// New wraps v as a Num.
func New(v int64) Num {
	return Num{val: big.NewInt(v)}
}

// FromBig wraps an existing big.Int without copying; callers must not mutate
// v afterwards.
func FromBig(v *big.Int) Num {
	return Num{val: v}
}

// Decode parses bytes using the same little-endian sign-magnitude encoding
// as the script interpreter family: the high bit of the last byte is the
// sign, magnitude is little-endian. maxLen bounds the allowed byte length
// (0 disables the bound); minimal requires the minimal encoding.
func Decode(data []byte, maxLen int, minimal bool) (Num, bool) {
	if maxLen > 0 && len(data) > maxLen {
		return Num{}, false
	}
	if minimal && len(data) > 0 {
		last := data[len(data)-1]
		if last&0x7f == 0 {
			if len(data) == 1 || data[len(data)-2]&0x80 == 0 {
				return Num{}, false
			}
		}
	}
	if len(data) == 0 {
		return New(0), true
	}

	magnitude := make([]byte, len(data))
	copy(magnitude, data)

	negative := magnitude[len(magnitude)-1]&0x80 != 0
	magnitude[len(magnitude)-1] &^= 0x80

	// reverse to big-endian for big.Int.SetBytes
	for i, j := 0, len(magnitude)-1; i < j; i, j = i+1, j-1 {
		magnitude[i], magnitude[j] = magnitude[j], magnitude[i]
	}

	v := new(big.Int).SetBytes(magnitude)
	if negative {
		v.Neg(v)
	}
	return Num{val: v}, true
}

// Bytes returns the minimal little-endian sign-magnitude encoding, so
// Decode(b) followed by Bytes gives back b for any minimally-encoded b.
func (n Num) Bytes() []byte {
	if n.val.Sign() == 0 {
		return nil
	}

	isNegative := n.val.Sign() < 0
	mag := new(big.Int).Abs(n.val)
	result := mag.Bytes() // big-endian

	// reverse to little-endian
	for i, j := 0, len(result)-1; i < j; i, j = i+1, j-1 {
		result[i], result[j] = result[j], result[i]
	}

	if result[len(result)-1]&0x80 != 0 {
		if isNegative {
			result = append(result, 0x80)
		} else {
			result = append(result, 0x00)
		}
	} else if isNegative {
		result[len(result)-1] |= 0x80
	}

	return result
}

// Int64 returns the value truncated to int64 and whether it fit.
func (n Num) Int64() (int64, bool) {
	if !n.val.IsInt64() {
		return 0, false
	}
	return n.val.Int64(), true
}

// Big returns the underlying value. Callers must not mutate the result.
func (n Num) Big() *big.Int { return n.val }

// Sign returns -1, 0 or 1.
func (n Num) Sign() int { return n.val.Sign() }

// Cmp compares two script numbers.
func (n Num) Cmp(o Num) int { return n.val.Cmp(o.val) }

// Add, Sub, Mul implement the arithmetic opcodes' static-fold path; the
// general (possibly symbolic) case is handled by internal/value and
// internal/smt instead.
func (n Num) Add(o Num) Num { return Num{val: new(big.Int).Add(n.val, o.val)} }
func (n Num) Sub(o Num) Num { return Num{val: new(big.Int).Sub(n.val, o.val)} }
func (n Num) Mul(o Num) Num { return Num{val: new(big.Int).Mul(n.val, o.val)} }

// Neg returns -n.
func (n Num) Neg() Num { return Num{val: new(big.Int).Neg(n.val)} }

// String renders the decimal form, used in report rendering and debugging.
func (n Num) String() string { return n.val.String() }
