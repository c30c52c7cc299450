package smt

import (
	"fmt"

	"github.com/dgpv/bsst/internal/value"
)

// maxElementBytes caps the byte width bvWidthForBytes uses to lower a
// byte-string-valued node to a bit-vector of finite width.
// 520 bytes is the maximum script element size shared by the whole script
// family this tracer targets.
const maxElementBytes = 520

func bvWidthForBytes(n int) int {
	if n <= 0 {
		n = 1
	}
	if n > maxElementBytes {
		n = maxElementBytes
	}
	return n * 8
}

// termSort distinguishes which SMT theory a lowered node lives in, since
// script values are consulted both as byte strings (bit-vectors) and as
// script numbers (integers); the lowering picks the sort the consuming
// opcode needs and backends are expected to provide conversions between
// them (e.g. bv2int/int2bv) when a value is used under both views.
type termSort int

const (
	sortBitVec termSort = iota
	sortInt
	sortBool
)

// lowerPlan is a backend-independent description of how to lower v,
// produced once per value.ID and cached by the concrete backend (z3backend.go)
// so that hash-consed sharing in the value arena carries through to shared
// SMT terms instead of being re-asserted per occurrence.
type lowerPlan struct {
	v    value.Value
	sort termSort
}

// planFor classifies v's natural sort for lowering. Operator kinds that
// produce a boolean result (comparisons, BOOL, logical connectives) lower
// to sortBool; arithmetic and byte-manipulating kinds lower to sortInt or
// sortBitVec respectively; everything else (witnesses, placeholders,
// literals, references, introspection) is sorted by how the *consumer*
// uses it, so planFor takes a hint from the caller.
func planFor(v value.Value, hint termSort) lowerPlan {
	if op, ok := v.(*value.Op); ok {
		switch op.Kind() {
		case value.KindBool, value.KindEqual, value.KindNumEqual, value.KindNumNotEqual,
			value.KindLessThan, value.KindGreaterThan, value.KindLessThanOrEqual,
			value.KindGreaterThanEqual, value.KindBoolAnd, value.KindBoolOr,
			value.KindWithin, value.KindCheckSig, value.KindCheckMultiSig,
			value.KindCheckSigFromStack:
			return lowerPlan{v: v, sort: sortBool}
		case value.KindAdd, value.KindSub, value.KindMul, value.KindDiv, value.KindMod,
			value.KindMin, value.KindMax, value.KindSize:
			return lowerPlan{v: v, sort: sortInt}
		case value.KindCat, value.KindSubstr, value.KindLeft, value.KindRight,
			value.KindSHA256, value.KindRIPEMD160, value.KindHASH160, value.KindHASH256,
			value.KindInvert, value.KindAnd, value.KindOr, value.KindXor:
			return lowerPlan{v: v, sort: sortBitVec}
		}
	}
	return lowerPlan{v: v, sort: hint}
}

// describeUnsupported is used by backends that hit a Kind this lowering
// switch does not yet special-case; they fall back to an uninterpreted
// function of the operands, which is always sound (it only loses precision,
// never correctness) for opcodes the tracer treats opaquely.
func describeUnsupported(op *value.Op) string {
	return fmt.Sprintf("uninterpreted:%s", op.Kind())
}
