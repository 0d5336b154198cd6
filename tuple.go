package rete

// Bindings holds named values projected into a tuple by binding nodes
//. Small and copy-on-extend; rule networks bind a handful
// of names, so this is cheaper than a persistent map structure.
type Bindings map[string]any

func (b Bindings) with(name string, value any) Bindings {
	out := make(Bindings, len(b)+1)
	for k, v := range b {
		out[k] = v
	}
	out[name] = value
	return out
}

// Tuple is an ordered sequence of fact wrappers representing a partial or
// complete match along one beta network path. A tuple's lineage is fixed
// at creation and shares structure with its parent: a tuple is exactly
// (parent, appended fact). Its bindings are the one mutable part:
// AggregateNode.emit and BindingNode.BetaUpdate replace them in place when
// a recomputed value refreshes a tuple they already emitted. RootTuple is the canonical empty
// tuple every rule's first pattern extends.
type Tuple struct {
	parent *Tuple
	fact   *factEntry // nil only for RootTuple
	depth  int        // len(Facts()); cached to avoid re-walking the chain
	binds  Bindings
}

// RootTuple is the shared empty tuple. It is never itself admitted to a
// memory or turned into an activation; it exists so the first pattern of a
// rule can be modeled uniformly as "extend the parent tuple by one fact"
// like every other join.
var RootTuple = &Tuple{}

// Fact returns the fact this tuple added over its parent, or nil for
// RootTuple.
func (t *Tuple) Fact() any {
	if t.fact == nil {
		return nil
	}
	return t.fact.value
}

// Facts returns the ordered list of host fact values along this tuple's
// lineage, root-to-leaf.
func (t *Tuple) Facts() []any {
	out := make([]any, t.depth)
	cur := t
	for i := t.depth - 1; i >= 0; i-- {
		out[i] = cur.fact.value
		cur = cur.parent
	}
	return out
}

// Binding looks up a named value projected by an upstream binding node.
func (t *Tuple) Binding(name string) (any, bool) {
	v, ok := t.binds[name]
	return v, ok
}

// tupleInternKey is the lineage identity: every tuple has a stable lineage
// of (parent tuple, appended fact). Using the parent
// *Tuple pointer directly as part of the key is safe because tuples are
// interned: equal lineages always resolve to the same *Tuple, so pointer
// equality on parent implies lineage equality.
type tupleInternKey struct {
	parent *Tuple
	factID FactID
}

// internTable shares child tuples by (parent, fact) across every node that
// would otherwise build an identical tuple, keeping memory proportional to
// the number of distinct matches rather than to the number of nodes that
// contain them.
type internTable struct {
	tuples map[tupleInternKey]*Tuple
}

func newInternTable() *internTable {
	return &internTable{tuples: make(map[tupleInternKey]*Tuple)}
}

// extend returns the tuple for (parent, fact), creating and interning it
// if this is the first time that lineage has been built.
func (it *internTable) extend(u *undoLog, parent *Tuple, fact *factEntry) *Tuple {
	key := tupleInternKey{parent: parent, factID: fact.id}
	if t, ok := it.tuples[key]; ok {
		return t
	}
	t := &Tuple{parent: parent, fact: fact, depth: parent.depth + 1, binds: parent.binds}
	it.tuples[key] = t
	u.push(func() { delete(it.tuples, key) })
	return t
}

// bind returns a tuple identical to base but with one additional named
// binding. Binding nodes use this; it does not change lineage (same
// parent/fact). bind does not intern its result: every call allocates a
// new tuple, and tupleBindKey is not used by it.
type tupleBindKey struct {
	base *Tuple
	name string
}

func (it *internTable) bind(base *Tuple, name string, value any) *Tuple {
	// Bound tuples are only ever looked up by their owning BindingNode,
	// which holds the pointer directly. The caller's own produced-tuple
	// undo entry covers rollback; there is no intern-table-level state
	// here to unwind.
	return &Tuple{parent: base.parent, fact: base.fact, depth: base.depth, binds: base.binds.with(name, value)}
}
