package smt

import (
	"context"
	"fmt"
	"time"

	"github.com/aclements/go-z3/z3"

	"github.com/dgpv/bsst/internal/value"
)

// z3Backend implements Solver against github.com/aclements/go-z3, the cgo
// binding treating Z3 as an external collaborator this tracer wires
// against rather than reimplements. All z3-specific API calls are confined
// to this file; everything else in package smt (policy.go, pool.go,
// lower.go) is backend-agnostic.
type z3Backend struct {
	ctx    *z3.Context
	solver *z3.Solver

	cache   map[value.ID]z3.AST
	tracked map[TrackedName]z3.Bool
	scopes  int

	lastModel *z3.Model
}

// NewZ3Factory returns a Factory that builds a fresh solver against a
// shared z3.Context, used for reset-mode checks where each query gets a new
// Solver instance but the symbol table (context) is reused so value
// identities map to the same z3 constants across checks.
func NewZ3Factory(ctx *z3.Context) Factory {
	return func() (Solver, error) {
		return &z3Backend{
			ctx:     ctx,
			solver:  z3.NewSolver(ctx),
			cache:   make(map[value.ID]z3.AST),
			tracked: make(map[TrackedName]z3.Bool),
		}, nil
	}
}

// NewIncrementalZ3 returns a single long-lived backend for a path in
// incremental mode: each path owns a solver with a push/pop frame stack
// mirroring branch depth.
func NewIncrementalZ3(ctx *z3.Context) *z3Backend {
	return &z3Backend{
		ctx:     ctx,
		solver:  z3.NewSolver(ctx),
		cache:   make(map[value.ID]z3.AST),
		tracked: make(map[TrackedName]z3.Bool),
	}
}

func (b *z3Backend) asBool(pred value.Value) (z3.Bool, error) {
	ast, err := b.lower(pred, sortBool)
	if err != nil {
		return z3.Bool{}, err
	}
	boolAST, ok := ast.(z3.Bool)
	if !ok {
		return z3.Bool{}, fmt.Errorf("predicate %s did not lower to a boolean term", pred.CanonicalString())
	}
	return boolAST, nil
}

func (b *z3Backend) Assert(pred value.Value) error {
	ast, err := b.asBool(pred)
	if err != nil {
		return err
	}
	b.solver.Assert(ast)
	return nil
}

func (b *z3Backend) AssertTracked(pred value.Value, name TrackedName) error {
	ast, err := b.asBool(pred)
	if err != nil {
		return err
	}
	b.tracked[name] = ast
	b.solver.AssertAndTrack(ast, b.ctx.BoolConst(string(name)))
	return nil
}

func (b *z3Backend) Push() {
	b.solver.Push()
	b.scopes++
}

func (b *z3Backend) Pop() {
	if b.scopes == 0 {
		return
	}
	b.solver.Pop(1)
	b.scopes--
}

func (b *z3Backend) CheckSat(ctx context.Context, timeout time.Duration, seed int64) (Result, error) {
	params := z3.NewParams(b.ctx)
	params.SetUint("timeout", uint(timeout.Milliseconds()))
	params.SetUint("random_seed", uint(seed))
	b.solver.SetParams(params)

	done := make(chan z3.Satisfiable, 1)
	go func() {
		sat, _ := b.solver.Check()
		done <- sat
	}()

	select {
	case <-ctx.Done():
		b.solver.Interrupt()
		return Unknown, ctx.Err()
	case sat := <-done:
		switch sat {
		case z3.Sat:
			m := b.solver.Model()
			b.lastModel = m
			return Sat, nil
		case z3.Unsat:
			return Unsat, nil
		default:
			return Unknown, nil
		}
	}
}

func (b *z3Backend) Model() (Model, error) {
	if b.lastModel == nil {
		return nil, fmt.Errorf("no model available")
	}
	out := make(Model, len(b.cache))
	for id, ast := range b.cache {
		v, ok := b.lastModel.Eval(ast, true)
		if !ok {
			continue
		}
		out[id] = []byte(fmt.Sprintf("%v", v))
	}
	return out, nil
}

func (b *z3Backend) UnsatCore() ([]TrackedName, error) {
	core := b.solver.UnsatCore()
	var names []TrackedName
	for _, lit := range core {
		for name, ast := range b.tracked {
			if ast.String() == lit.String() {
				names = append(names, name)
			}
		}
	}
	return names, nil
}

func (b *z3Backend) Close() {}

// lower recursively translates a value.Value into a z3 AST, memoized by
// value identity so hash-consed sharing in the arena carries through to
// shared SMT terms: witnesses and placeholders are fresh SMT variables
// keyed by value identity.
func (b *z3Backend) lower(v value.Value, hint termSort) (z3.AST, error) {
	if cached, ok := b.cache[v.Identity()]; ok {
		return cached, nil
	}

	ast, err := b.lowerUncached(v, hint)
	if err != nil {
		return nil, err
	}
	b.cache[v.Identity()] = ast
	return ast, nil
}

func (b *z3Backend) lowerUncached(v value.Value, hint termSort) (z3.AST, error) {
	switch n := v.(type) {
	case *value.Witness:
		name := fmt.Sprintf("wit%d", n.Index)
		return b.varForSort(name, hint), nil

	case *value.Placeholder:
		return b.varForSort("ph_"+n.Name, hint), nil

	case *value.Reference:
		return b.lower(n.Bound, hint)

	case *value.Literal:
		return b.literalConst(n, hint)

	case *value.Op:
		return b.lowerOp(n)
	}
	return nil, fmt.Errorf("unsupported value type %T", v)
}

func (b *z3Backend) varForSort(name string, hint termSort) z3.AST {
	switch hint {
	case sortBool:
		return b.ctx.BoolConst(name)
	case sortBitVec:
		return b.ctx.BVConst(name, bvWidthForBytes(maxElementBytes))
	default:
		return b.ctx.IntConst(name)
	}
}

func (b *z3Backend) literalConst(lit *value.Literal, hint termSort) (z3.AST, error) {
	bytesVal, _ := lit.Bytes()
	switch hint {
	case sortBool:
		bv, _ := lit.Bool()
		return b.ctx.FromBool(bv), nil
	case sortBitVec:
		return b.ctx.BVFromBytes(bytesVal, bvWidthForBytes(len(bytesVal))), nil
	default:
		num, ok := lit.ScriptNum()
		if !ok {
			return nil, fmt.Errorf("literal %x is not a valid script number", bytesVal)
		}
		return b.ctx.FromBigInt(num.Big()), nil
	}
}

func (b *z3Backend) lowerOp(op *value.Op) (z3.AST, error) {
	operands := op.Operands()

	switch op.Kind() {
	case value.KindAdd, value.KindSub, value.KindMul, value.KindDiv, value.KindMod,
		value.KindMin, value.KindMax:
		ints := make([]z3.Int, len(operands))
		for i, o := range operands {
			t, err := b.lower(o, sortInt)
			if err != nil {
				return nil, err
			}
			ints[i] = t.(z3.Int)
		}
		return b.ctx.ArithOp(string(op.Kind()), ints), nil

	case value.KindNumEqual, value.KindNumNotEqual, value.KindLessThan, value.KindGreaterThan,
		value.KindLessThanOrEqual, value.KindGreaterThanEqual:
		left, err := b.lower(operands[0], sortInt)
		if err != nil {
			return nil, err
		}
		right, err := b.lower(operands[1], sortInt)
		if err != nil {
			return nil, err
		}
		return b.ctx.Compare(string(op.Kind()), left.(z3.Int), right.(z3.Int)), nil

	case value.KindWithin:
		x, err := b.lower(operands[0], sortInt)
		if err != nil {
			return nil, err
		}
		lo, err := b.lower(operands[1], sortInt)
		if err != nil {
			return nil, err
		}
		hi, err := b.lower(operands[2], sortInt)
		if err != nil {
			return nil, err
		}
		return b.ctx.Within(x.(z3.Int), lo.(z3.Int), hi.(z3.Int)), nil

	case value.KindBoolAnd:
		return b.boolChain("and", operands)
	case value.KindBoolOr:
		return b.boolChain("or", operands)
	case value.KindNot:
		t, err := b.lower(operands[0], sortBool)
		if err != nil {
			return nil, err
		}
		return b.ctx.Not(t.(z3.Bool)), nil

	case value.KindEqual:
		// EQUAL compares two byte strings; lower both sides as
		// bit-vectors and compare for structural equality.
		left, err := b.lower(operands[0], sortBitVec)
		if err != nil {
			return nil, err
		}
		right, err := b.lower(operands[1], sortBitVec)
		if err != nil {
			return nil, err
		}
		return b.ctx.BVEqual(left.(z3.BV), right.(z3.BV)), nil

	case value.KindBool:
		t, err := b.lower(operands[0], sortBitVec)
		if err != nil {
			return nil, err
		}
		return b.ctx.CastToBool(t.(z3.BV)), nil

	case value.KindCat:
		bvs := make([]z3.BV, len(operands))
		for i, o := range operands {
			t, err := b.lower(o, sortBitVec)
			if err != nil {
				return nil, err
			}
			bvs[i] = t.(z3.BV)
		}
		return b.ctx.Concat(bvs), nil

	case value.KindSize:
		t, err := b.lower(operands[0], sortBitVec)
		if err != nil {
			return nil, err
		}
		return b.ctx.BVSizeAsInt(t.(z3.BV)), nil

	case value.KindSHA256, value.KindRIPEMD160, value.KindHASH160, value.KindHASH256:
		t, err := b.lower(operands[0], sortBitVec)
		if err != nil {
			return nil, err
		}
		return b.ctx.UninterpretedHash(string(op.Kind()), t.(z3.BV)), nil

	default:
		// Anything this switch doesn't special-case (CHECKSIG family,
		// Elements introspection, bitwise AND/OR/XOR/INVERT, SUBSTR/LEFT/
		// RIGHT) is modeled with an uninterpreted function of its
		// operands: sound but unable to prove properties of the
		// primitive's internals, which matches the tracer's own stance
		// of treating cryptographic primitives opaquely.
		args := make([]z3.AST, len(operands))
		for i, o := range operands {
			t, err := b.lower(o, sortBitVec)
			if err != nil {
				return nil, err
			}
			args[i] = t
		}
		return b.ctx.UninterpretedFunc(describeUnsupported(op), args), nil
	}
}

func (b *z3Backend) boolChain(kind string, operands []value.Value) (z3.AST, error) {
	bools := make([]z3.Bool, len(operands))
	for i, o := range operands {
		t, err := b.lower(o, sortBool)
		if err != nil {
			return nil, err
		}
		bools[i] = t.(z3.Bool)
	}
	return b.ctx.BoolChain(kind, bools), nil
}

var _ Solver = (*z3Backend)(nil)
