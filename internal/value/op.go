// Package value implements the symbolic value algebra and canonicalization:
// an immutable, hash-consed tree of literals, witness variables, data
// placeholders/references, and operator applications, each carrying a
// stable identity used to key SMT variables (internal/smt).
package value

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dgpv/bsst/internal/scriptnum"
)

// Kind tags an operator application. The set matches the source script's
// opcodes plus the engine-internal composite operators named explicitly
// (ADD, SUB, BOOL, CAT, EQUAL, WITHIN, CHECKSIG, CHECKMULTISIG,
// CHECKSIGADD, CHECKSIGFROMSTACK, SHA256, SIZE, ...).
type Kind string

const (
	KindAdd               Kind = "ADD"
	KindSub               Kind = "SUB"
	KindMul               Kind = "MUL"
	KindDiv               Kind = "DIV"
	KindMod               Kind = "MOD"
	KindNot               Kind = "NOT"
	KindBoolAnd           Kind = "BOOLAND"
	KindBoolOr            Kind = "BOOLOR"
	KindNumEqual          Kind = "NUMEQUAL"
	KindNumNotEqual       Kind = "NUMNOTEQUAL"
	KindLessThan          Kind = "LESSTHAN"
	KindGreaterThan       Kind = "GREATERTHAN"
	KindLessThanOrEqual   Kind = "LESSTHANOREQUAL"
	KindGreaterThanEqual  Kind = "GREATERTHANOREQUAL"
	KindMin               Kind = "MIN"
	KindMax               Kind = "MAX"
	KindWithin            Kind = "WITHIN"
	KindBool              Kind = "BOOL"
	KindCat               Kind = "CAT"
	KindSubstr            Kind = "SUBSTR"
	KindLeft              Kind = "LEFT"
	KindRight             Kind = "RIGHT"
	KindSize              Kind = "SIZE"
	KindEqual             Kind = "EQUAL"
	KindInvert            Kind = "INVERT"
	KindAnd               Kind = "AND"
	KindOr                Kind = "OR"
	KindXor               Kind = "XOR"
	KindSHA256            Kind = "SHA256"
	KindRIPEMD160         Kind = "RIPEMD160"
	KindHASH160           Kind = "HASH160"
	KindHASH256           Kind = "HASH256"
	KindCheckSig          Kind = "CHECKSIG"
	KindCheckSigAdd       Kind = "CHECKSIGADD"
	KindCheckMultiSig     Kind = "CHECKMULTISIG"
	KindCheckSigFromStack Kind = "CHECKSIGFROMSTACK"
	KindIntrospect        Kind = "INTROSPECT"
)

// commutativeForDisplay lists kinds whose operand order is canonicalized for
// *display* purposes only when use-deterministic-arguments-order=true; the
// underlying semantics never depend on operand order for these kinds.
var commutativeForDisplay = map[Kind]bool{
	KindAdd:      true,
	KindEqual:    true,
	KindNumEqual: true,
	KindBoolAnd:  true,
	KindBoolOr:   true,
	KindAnd:      true,
	KindOr:       true,
	KindXor:      true,
	KindMin:      true,
	KindMax:      true,
}

// Op is an operator application: a tagged interior node with an ordered
// operand list. Construct via Arena.Op so the arena can hash-cons it.
type Op struct {
	id       ID
	kind     Kind
	operands []Value
	// subTag disambiguates opcode-specific variants sharing a Kind, e.g. the
	// source byte on introspection opcodes, or the Elements tag.
	subTag string
}

func (o *Op) Identity() ID    { return o.id }
func (o *Op) Kind() Kind      { return o.kind }
func (o *Op) Operands() []Value {
	return o.operands
}

func (o *Op) Bytes() ([]byte, bool) {
	// Concrete folding for operators with literal operands is performed by
	// the opcode transfer functions themselves (internal/opcode), which
	// have the semantic knowledge of each opcode's static-fold rule; the
	// value algebra only exposes the tree, the arena, and canonical display.
	return nil, false
}

func (o *Op) ScriptNum() (scriptnum.Num, bool) { return scriptnum.Num{}, false }
func (o *Op) LE64() (uint64, bool)             { return 0, false }
func (o *Op) Bool() (bool, bool)               { return false, false }

func (o *Op) canonicalKey() string {
	parts := make([]string, len(o.operands))
	for i, operand := range o.operands {
		parts[i] = operand.CanonicalString()
	}
	if commutativeForDisplay[o.kind] {
		sort.Strings(parts)
	}
	return fmt.Sprintf("%s/%s(%s)", o.kind, o.subTag, strings.Join(parts, ","))
}

func (o *Op) CanonicalString() string { return o.canonicalKey() }

// Display renders the operator using the algebra's display conventions:
// inlined aliases, data references, placeholders, and bracket/position
// tags are handled by the operand's own Display, this level only orders
// operands (respecting deterministicOrder) and wraps them in the
// opcode-style call syntax.
func (o *Op) Display(deterministicOrder bool) string {
	rendered := make([]string, len(o.operands))
	for i, operand := range o.operands {
		rendered[i] = operand.Display(deterministicOrder)
	}
	if deterministicOrder && commutativeForDisplay[o.kind] {
		sort.Strings(rendered)
	}
	return fmt.Sprintf("%s(%s)", o.kind, strings.Join(rendered, ", "))
}

var _ Value = (*Op)(nil)
