// Package txmodel provides a bounded symbolic transaction model: opaque
// introspection nodes for transaction fields. It generalizes a
// wire.MsgTx-shaped set of engine fields (tx, txIdx, prevOutFetcher) from a
// single concrete transaction to a symbolic one sized by
// --max-tx-size/--max-num-inputs/--max-num-outputs. No other package in
// this module calls it: CHECKSIG and the opcode transfer functions build
// their own nodes.
package txmodel

import "github.com/dgpv/bsst/internal/value"

// Bounds sizes the symbolic transaction model, taken directly from
// config.Settings.MaxTxSize/MaxNumInputs/MaxNumOutputs.
type Bounds struct {
	MaxTxSize     int
	MaxNumInputs  int
	MaxNumOutputs int
}

// Field identifies one introspectable transaction-level datum.
type Field string

const (
	FieldVersion       Field = "version"
	FieldLockTime      Field = "locktime"
	FieldInputCount    Field = "input_count"
	FieldOutputCount   Field = "output_count"
	FieldInputOutpoint Field = "input_outpoint"
	FieldInputSequence Field = "input_sequence"
	FieldOutputValue   Field = "output_value"
	FieldOutputScript  Field = "output_script"
)

// Model constructs symbolic operator nodes for transaction-field
// introspection, each tied to a model variable scoped by an input/output
// index. Model only ever produces the symbolic, opaque form; nothing folds
// these nodes to literals.
type Model struct {
	arena  *value.Arena
	bounds Bounds
}

// New returns a Model bound to arena and bounds.
func New(arena *value.Arena, bounds Bounds) *Model {
	return &Model{arena: arena, bounds: bounds}
}

// Introspect returns an opaque operator node representing field, optionally
// indexed (input/output index) and sub-tagged (e.g. which byte range for a
// script field).
func (m *Model) Introspect(field Field, index int, subTag string) value.Value {
	idx := m.arena.Lit(encodeIndex(index))
	return m.arena.Op(value.KindIntrospect, string(field)+"/"+subTag, idx)
}

func encodeIndex(i int) []byte {
	if i == 0 {
		return nil
	}
	neg := i < 0
	v := i
	if neg {
		v = -v
	}
	var b []byte
	for v > 0 {
		b = append(b, byte(v&0xff))
		v >>= 8
	}
	if b[len(b)-1]&0x80 != 0 {
		b = append(b, 0)
	}
	if neg {
		b[len(b)-1] |= 0x80
	}
	return b
}
