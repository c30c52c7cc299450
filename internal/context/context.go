// Package context implements the execution context: the unit
// of state that is forked at every branching transfer function and sealed
// at script end or first unrecoverable failure.
package context

import (
	"github.com/dgpv/bsst/internal/value"
)

// Position identifies a point in the source script, used to tag
// enforcements, unused-value entries, and branch-trail steps (including
// the "@ 12:L3" bracket/position tags used by reports).
type Position struct {
	PC   int
	Line int
}

// EnforcementFlag is a bit in Enforcement.Flags.
type EnforcementFlag int

const (
	// FlagAlwaysTrue marks an enforcement lifted to "All valid paths" and
	// proven tautologically true given the path predicate (the <*> marker).
	FlagAlwaysTrue EnforcementFlag = 1 << iota
	// FlagPathLocalAlwaysTrue marks an enforcement proven tautologically
	// true locally within one path but not across all valid paths (the {*}
	// marker).
	FlagPathLocalAlwaysTrue
)

// Enforcement is a predicate the script asserts for the path to be valid,
// paired with the source position that published it.
type Enforcement struct {
	Predicate value.Value
	Position  Position
	Flags     EnforcementFlag
}

// Equal implements "Enforcements are equal if predicates and
// positions match."
func (e Enforcement) Equal(o Enforcement) bool {
	return e.Predicate.CanonicalString() == o.Predicate.CanonicalString() && e.Position == o.Position
}

// ModelValueSample is a solver-sampled set of distinct concrete assignments
// for one stack expression, keyed in Context.ModelValues by the expression's
// Display(false) string. Matched records whether the expression's name
// matched a configured produce-model-values-for glob (in which case the
// sampled values themselves are reportable) as opposed to being sampled only
// to derive its observed encoded-size set.
type ModelValueSample struct {
	Values  []int64
	Sizes   []int // parallel to Values when report-model-value-sizes is set
	Matched bool
}

// Warning is a non-fatal annotation surfaced in the "Warnings per path"
// report section.
type Warning struct {
	Position Position
	Tag      string
	Message  string
}

// Failure seals a path as failed; "the path is moved from Valid
// paths to Failures per path and rendered with stack/altstack snapshots at
// the failing position."
type Failure struct {
	Position      Position
	Tag           string
	Message       string
	StackSnapshot []value.Value
	AltSnapshot   []value.Value
}

// BranchStep records one fork decision reaching this path, in order,
// feeding both the report's path label and the accumulated path predicate.
type BranchStep struct {
	Opcode    string
	Position  Position
	Condition value.Value // the predicate published for THIS edge (p or ¬p)
	Label     string      // e.g. "IF @ 3:L1 : True" or "PICK wit0 @ 0:L1 : 0"
}

// SolverFrame is the opaque per-path SMT handle; internal/smt implements it.
// Kept as an interface here so internal/context has no dependency on
// internal/smt (which in turn depends on internal/value only), avoiding an
// import cycle.
type SolverFrame interface {
	// Fork returns a new frame inheriting this frame's state, used when a
	// context forks in incremental mode (a solver push); in reset mode
	// implementations may return themselves since there is no live solver
	// to push/pop.
	Fork() SolverFrame
}

// Context is the per-path execution state.
type Context struct {
	Arena *value.Arena

	Stack    []value.Value
	AltStack []value.Value

	PC   int
	Line int

	Enforcements []Enforcement
	Warnings     []Warning
	Failure      *Failure

	WitnessUsed    int
	nextWitnessIdx int

	// Unused maps a producer position to a value pushed there that has not
	// yet been consumed or observed by a later opcode (used by
	// the "Unused values" report section).
	Unused map[Position]value.Value

	// DataRefs maps a reference name to its bound value for this path.
	// Rebinding a name on this path to a different value gets an apostrophe
	// suffix from the binder (internal/assert), never silently overwritten.
	DataRefs map[string]value.Value

	Assumptions []value.Value

	BranchTrail []BranchStep

	// ModelValues caches solver-sampled model values/size sets for this
	// path's final stack expressions, keyed by Display(false). Populated by
	// a post-walk pass (see pathexplorer.Explorer.sampleModelValues) so
	// Render stays a pure function of the completed tree.
	ModelValues map[string]ModelValueSample

	SolverState SolverFrame

	// PathPredicate is the conjunction of all branch conditions and
	// assumptions reaching this node, kept incrementally as an AND-chain
	// for SMT lowering.
	PathPredicate value.Value

	sealed bool
}

// New returns a fresh root context sharing arena for value interning.
func New(arena *value.Arena) *Context {
	return &Context{
		Arena:       arena,
		Unused:      make(map[Position]value.Value),
		DataRefs:    make(map[string]value.Value),
		ModelValues: make(map[string]ModelValueSample),
	}
}

// NextWitness allocates the next witness variable, bumping WitnessUsed the
// first time each index is referenced: witnesses are numbered by first
// appearance.
func (c *Context) NextWitness() *value.Witness {
	w := c.Arena.Wit(c.nextWitnessIdx)
	c.nextWitnessIdx++
	c.WitnessUsed++
	return w
}

// Push pushes v onto the data stack, recording it as unused-until-consumed
// at the given position.
func (c *Context) Push(v value.Value, pos Position) {
	c.Stack = append(c.Stack, v)
	c.Unused[pos] = v
}

// EnsureDepth pads the bottom of the data stack with fresh witnesses until
// it holds at least n items. The modeled stack only ever reflects what the
// traced script itself pushed; whatever lies beneath it is the incoming
// witness stack, whose contents are unknown, so reaching below the bottom
// of what's modeled is not a script defect — it's a reference to a witness
// input that hasn't been given a value yet.
func (c *Context) EnsureDepth(n int) {
	for len(c.Stack) < n {
		w := c.NextWitness()
		c.Stack = append([]value.Value{w}, c.Stack...)
	}
}

// Pop pops the top of the data stack, drawing a fresh witness first if the
// stack is empty (see EnsureDepth). Pop itself removes the popped value
// from Unused (the first entry holding it), since most opcodes consume what
// they pop — an opcode that merely duplicates a value pushes a fresh copy
// that remains tracked.
func (c *Context) Pop() (value.Value, bool) {
	c.EnsureDepth(1)
	top := c.Stack[len(c.Stack)-1]
	c.Stack = c.Stack[:len(c.Stack)-1]
	for pos, v := range c.Unused {
		if v == top {
			delete(c.Unused, pos)
			break
		}
	}
	return top, true
}

// Top returns the top of the data stack without popping it, drawing a fresh
// witness first if the stack is empty (see EnsureDepth).
func (c *Context) Top() (value.Value, bool) {
	c.EnsureDepth(1)
	return c.Stack[len(c.Stack)-1], true
}

// Depth returns the data stack depth.
func (c *Context) Depth() int { return len(c.Stack) }

// Publish appends an enforcement at the current position.
func (c *Context) Publish(pred value.Value, pos Position, flags EnforcementFlag) {
	c.Enforcements = append(c.Enforcements, Enforcement{Predicate: pred, Position: pos, Flags: flags})
}

// AddWarning appends a warning.
func (c *Context) AddWarning(pos Position, tag, msg string) {
	c.Warnings = append(c.Warnings, Warning{Position: pos, Tag: tag, Message: msg})
}

// Fail seals the context as a failure with a stack/altstack snapshot.
func (c *Context) Fail(pos Position, tag, msg string) {
	if c.Failure != nil {
		return
	}
	c.Failure = &Failure{
		Position:      pos,
		Tag:           tag,
		Message:       msg,
		StackSnapshot: append([]value.Value(nil), c.Stack...),
		AltSnapshot:   append([]value.Value(nil), c.AltStack...),
	}
	c.sealed = true
}

// Failed reports whether this path has been sealed as a failure.
func (c *Context) Failed() bool { return c.Failure != nil }

// Seal marks the context as finalized without failure.
func (c *Context) Seal() { c.sealed = true }

// Sealed reports whether execution on this path has ended (finalized or
// failed).
func (c *Context) Sealed() bool { return c.sealed }

// Fork snapshots the parent context for a child path. Ownership of the
// snapshot transfers to the new child; the parent continues with the
// second child.
// Enforcements, warnings, branch trail, assumptions and data refs are
// copied by value (slices/maps re-allocated) since each child must be able
// to diverge independently; stack/altstack elements are value.Value
// pointers into the shared, immutable arena and are safe to alias.
func (c *Context) Fork() *Context {
	child := &Context{
		Arena:          c.Arena,
		Stack:          append([]value.Value(nil), c.Stack...),
		AltStack:       append([]value.Value(nil), c.AltStack...),
		PC:             c.PC,
		Line:           c.Line,
		Enforcements:   append([]Enforcement(nil), c.Enforcements...),
		Warnings:       append([]Warning(nil), c.Warnings...),
		WitnessUsed:    c.WitnessUsed,
		nextWitnessIdx: c.nextWitnessIdx,
		Unused:         make(map[Position]value.Value, len(c.Unused)),
		DataRefs:       make(map[string]value.Value, len(c.DataRefs)),
		ModelValues:    make(map[string]ModelValueSample),
		Assumptions:    append([]value.Value(nil), c.Assumptions...),
		BranchTrail:    append([]BranchStep(nil), c.BranchTrail...),
		PathPredicate:  c.PathPredicate,
	}
	for k, v := range c.Unused {
		child.Unused[k] = v
	}
	for k, v := range c.DataRefs {
		child.DataRefs[k] = v
	}
	if c.SolverState != nil {
		child.SolverState = c.SolverState.Fork()
	}
	return child
}

// AddBranch records a branch step and extends the path predicate with its
// condition (AND-ed against the running predicate).
func (c *Context) AddBranch(step BranchStep) {
	c.BranchTrail = append(c.BranchTrail, step)
	if step.Condition == nil {
		return
	}
	if c.PathPredicate == nil {
		c.PathPredicate = step.Condition
		return
	}
	c.PathPredicate = c.Arena.Op(value.KindBoolAnd, "", c.PathPredicate, step.Condition)
}
