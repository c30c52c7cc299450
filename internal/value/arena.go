package value

import "sync"

// Arena interns structurally-equal values and assigns each a stable ID.
// Hash-consing is optional but arguments must not be mutated after
// construction; every value carries a stable identity. An Arena is safe
// for concurrent reads; construction should happen on a single goroutine
// since the path explorer itself is single-threaded — the mutex exists
// only to let report rendering run concurrently with the (already
// finished) tree it reads.
type Arena struct {
	mu       sync.Mutex
	nextID   ID
	byKey    map[string]Value
	literals map[string]*Literal
	witness  map[int]*Witness
	placehd  map[string]*Placeholder
}

// NewArena returns an empty, ready-to-use Arena.
func NewArena() *Arena {
	return &Arena{
		byKey:    make(map[string]Value),
		literals: make(map[string]*Literal),
		witness:  make(map[int]*Witness),
		placehd:  make(map[string]*Placeholder),
	}
}

func (a *Arena) allocID() ID {
	a.nextID++
	return a.nextID
}

// Lit interns a literal byte string.
func (a *Arena) Lit(b []byte) *Literal {
	a.mu.Lock()
	defer a.mu.Unlock()

	key := string(b)
	if existing, ok := a.literals[key]; ok {
		return existing
	}
	cp := append([]byte(nil), b...)
	lit := &Literal{id: a.allocID(), bytes: cp}
	a.literals[key] = lit
	return lit
}

// Wit interns a witness variable by index, the first call for a given index
// fixing its identity: wit<N> witness identities are stable across a path.
func (a *Arena) Wit(index int) *Witness {
	a.mu.Lock()
	defer a.mu.Unlock()

	if existing, ok := a.witness[index]; ok {
		return existing
	}
	w := &Witness{id: a.allocID(), Index: index}
	a.witness[index] = w
	return w
}

// SetAlias attaches a display alias to an already-interned witness.
func (a *Arena) SetAlias(index int, alias string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if w, ok := a.witness[index]; ok {
		w.Alias = alias
	}
}

// Placeholder interns a `$name` placeholder.
func (a *Arena) Placeholder(name string) *Placeholder {
	a.mu.Lock()
	defer a.mu.Unlock()

	if existing, ok := a.placehd[name]; ok {
		return existing
	}
	p := &Placeholder{id: a.allocID(), Name: name}
	a.placehd[name] = p
	return p
}

// Ref constructs a named reference bound to v. References are not
// hash-consed on name alone because the same name may bind different values
// at different points on the same path before apostrophe disambiguation is
// applied by internal/context; callers key uniqueness themselves.
func (a *Arena) Ref(name string, bound Value) *Reference {
	a.mu.Lock()
	defer a.mu.Unlock()
	return &Reference{id: a.allocID(), Name: name, Bound: bound}
}

// Op interns an operator application by its canonical key, so structurally
// identical expressions (after commutative canonicalization for display
// kinds, and always for genuinely commutative arithmetic/logic kinds)
// collapse to one node.
func (a *Arena) Op(kind Kind, subTag string, operands ...Value) *Op {
	a.mu.Lock()
	defer a.mu.Unlock()

	probe := &Op{kind: kind, subTag: subTag, operands: operands}
	key := probe.canonicalKey()
	if existing, ok := a.byKey[key]; ok {
		return existing.(*Op)
	}
	probe.id = a.allocID()
	a.byKey[key] = probe
	return probe
}
