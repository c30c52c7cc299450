package value

import (
	"fmt"

	"github.com/dgpv/bsst/internal/scriptnum"
)

// ID is the stable identity every value carries, used to key SMT variables.
// IDs are assigned by an Arena and are unique within it.
type ID uint64

// Value is a node in the immutable expression tree. Structural equality
// (same Arena, same ID after interning) implies semantic equality.
type Value interface {
	Identity() ID

	// Bytes returns the literal byte encoding when statically known.
	Bytes() ([]byte, bool)
	// ScriptNum returns the script-number view when statically decodable.
	ScriptNum() (scriptnum.Num, bool)
	// LE64 returns the little-endian 8-byte integer view when decodable.
	LE64() (uint64, bool)
	// Bool returns the CastToBool view when statically decidable.
	Bool() (bool, bool)

	// CanonicalString is the structural key used for hash-consing and for
	// commutative operand ordering; it does not apply alias/reference
	// display substitutions.
	CanonicalString() string

	// Display renders the value using the algebra's display renderer:
	// aliases (a1<wit0>), data references (&name) and placeholders ($name)
	// are applied here; position tags (@ 12:L3) are not part of it.
	Display(deterministicOrder bool) string
}

// Literal is a concrete byte string with derived numeric views.
type Literal struct {
	id    ID
	bytes []byte
}

func (l *Literal) Identity() ID        { return l.id }
func (l *Literal) Bytes() ([]byte, bool) { return l.bytes, true }

func (l *Literal) ScriptNum() (scriptnum.Num, bool) {
	return scriptnum.Decode(l.bytes, 0, false)
}

func (l *Literal) LE64() (uint64, bool) {
	if len(l.bytes) != 8 {
		return 0, false
	}
	var v uint64
	for i := 7; i >= 0; i-- {
		v = v<<8 | uint64(l.bytes[i])
	}
	return v, true
}

// CastToBool implements rule: empty, all-zero, or all-zero
// ending in 0x80 is false.
func CastToBool(b []byte) bool {
	for i, by := range b {
		if by != 0 {
			if i == len(b)-1 && by == 0x80 {
				return false
			}
			return true
		}
	}
	return false
}

func (l *Literal) Bool() (bool, bool) { return CastToBool(l.bytes), true }

func (l *Literal) CanonicalString() string { return fmt.Sprintf("x(%x)", l.bytes) }

func (l *Literal) Display(bool) string {
	if n, ok := scriptnum.Decode(l.bytes, 0, true); ok {
		return n.String()
	}
	return fmt.Sprintf("x('%x')", l.bytes)
}

var _ Value = (*Literal)(nil)

// Witness is a witness-stack variable, identified by its index of first
// appearance and an optional display alias set via
// bsst-name-alias(wit<N>): alias.
type Witness struct {
	id    ID
	Index int
	Alias string
}

func (w *Witness) Identity() ID          { return w.id }
func (w *Witness) Bytes() ([]byte, bool) { return nil, false }
func (w *Witness) ScriptNum() (scriptnum.Num, bool) { return scriptnum.Num{}, false }
func (w *Witness) LE64() (uint64, bool)             { return 0, false }
func (w *Witness) Bool() (bool, bool)               { return false, false }

func (w *Witness) CanonicalString() string {
	return fmt.Sprintf("wit%d", w.Index)
}

func (w *Witness) Display(bool) string {
	if w.Alias != "" {
		return fmt.Sprintf("%s<wit%d>", w.Alias, w.Index)
	}
	return fmt.Sprintf("wit%d", w.Index)
}

var _ Value = (*Witness)(nil)

// Placeholder is a `$name`-declared input whose value is unconstrained
// except by assumptions (internal/assert) attached to it by name.
type Placeholder struct {
	id   ID
	Name string
}

func (p *Placeholder) Identity() ID          { return p.id }
func (p *Placeholder) Bytes() ([]byte, bool) { return nil, false }
func (p *Placeholder) ScriptNum() (scriptnum.Num, bool) { return scriptnum.Num{}, false }
func (p *Placeholder) LE64() (uint64, bool)             { return 0, false }
func (p *Placeholder) Bool() (bool, bool)               { return false, false }

func (p *Placeholder) CanonicalString() string { return "$" + p.Name }
func (p *Placeholder) Display(bool) string     { return "$" + p.Name }

var _ Value = (*Placeholder)(nil)

// Reference is a `&name` binding created by the `// =>name` comment form; it
// is always a display-time alias for whatever Bound value sat on top of the
// stack at the binding position.
type Reference struct {
	id     ID
	Name   string
	Bound  Value
}

func (r *Reference) Identity() ID          { return r.id }
func (r *Reference) Bytes() ([]byte, bool) { return r.Bound.Bytes() }
func (r *Reference) ScriptNum() (scriptnum.Num, bool) { return r.Bound.ScriptNum() }
func (r *Reference) LE64() (uint64, bool)             { return r.Bound.LE64() }
func (r *Reference) Bool() (bool, bool)               { return r.Bound.Bool() }

func (r *Reference) CanonicalString() string { return r.Bound.CanonicalString() }
func (r *Reference) Display(bool) string     { return "&" + r.Name }

var _ Value = (*Reference)(nil)
