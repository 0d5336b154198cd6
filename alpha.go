package rete

import "reflect"

// AlphaPredicate is a pure function over a single fact's host value,
// supplied at compile time. A returned error is treated as
// a condition_evaluation failure.
type AlphaPredicate func(fact any) (bool, error)

// AlphaConsumer is the propagation contract for nodes on the alpha side of
// the network: the type-discriminated sub-roots, selection nodes, and the
// alpha memory itself.
type AlphaConsumer interface {
	ID() NodeID
	AlphaAssert(facts []*factEntry, ctx *ExecutionContext)
	AlphaUpdate(facts []*factEntry, ctx *ExecutionContext)
	AlphaRetract(facts []*factEntry, ctx *ExecutionContext)
}

// AlphaSelectionNode holds one predicate over a single fact. A chain of selection nodes forms the path from a type sub-root to
// an alpha memory; each node forwards only the facts that passed its own
// predicate.
type AlphaSelectionNode struct {
	id         NodeID
	predicate  AlphaPredicate
	downstream []AlphaConsumer
}

func (n *AlphaSelectionNode) ID() NodeID { return n.id }

func (n *AlphaSelectionNode) addDownstream(c AlphaConsumer) { n.downstream = append(n.downstream, c) }

func (n *AlphaSelectionNode) evaluate(facts []*factEntry, ctx *ExecutionContext) []*factEntry {
	passed := make([]*factEntry, 0, len(facts))
	for _, f := range facts {
		ok, err := n.predicate(f.value)
		if err != nil {
			wrapped := ctx.reportConditionFailure(n.id, f.value, err)
			panic(conditionAbort{wrapped})
		}
		if ok {
			passed = append(passed, f)
		}
	}
	return passed
}

func (n *AlphaSelectionNode) AlphaAssert(facts []*factEntry, ctx *ExecutionContext) {
	passed := n.evaluate(facts, ctx)
	if len(passed) == 0 {
		return
	}
	for _, d := range n.downstream {
		d.AlphaAssert(passed, ctx)
	}
}

func (n *AlphaSelectionNode) AlphaRetract(facts []*factEntry, ctx *ExecutionContext) {
	// Retract never re-evaluates the predicate: every fact is forwarded,
	// and each AlphaMemoryNode drops only the facts it actually holds.
	for _, d := range n.downstream {
		d.AlphaRetract(facts, ctx)
	}
}

func (n *AlphaSelectionNode) AlphaUpdate(facts []*factEntry, ctx *ExecutionContext) {
	// Update preservation rule: an updated fact keeps the alpha
	// memberships it already holds rather than having every predicate on
	// every path re-run. A host whose update changes a field a predicate
	// depends on is expected to retract and re-insert instead.
	for _, d := range n.downstream {
		d.AlphaUpdate(facts, ctx)
	}
}

// AlphaMemoryNode is the leaf of an alpha path: the mapping from fact
// identity to fact wrappers that passed every predicate on this path
//. Insertion order is preserved for deterministic downstream
// propagation. It is shared across every rule path that filters on this
// exact predicate prefix.
type AlphaMemoryNode struct {
	id         NodeID
	order      []FactID
	facts      map[FactID]*factEntry
	downstream []*AdapterNode
}

func (n *AlphaMemoryNode) ID() NodeID { return n.id }

func (n *AlphaMemoryNode) addDownstream(a *AdapterNode) { n.downstream = append(n.downstream, a) }

func (n *AlphaMemoryNode) AlphaAssert(facts []*factEntry, ctx *ExecutionContext) {
	added := make([]*factEntry, 0, len(facts))
	for _, f := range facts {
		if _, exists := n.facts[f.id]; exists {
			continue
		}
		n.facts[f.id] = f
		n.order = append(n.order, f.id)
		orderLen := len(n.order)
		ctx.undo.push(func() {
			delete(n.facts, f.id)
			if len(n.order) == orderLen && n.order[orderLen-1] == f.id {
				n.order = n.order[:orderLen-1]
			}
		})
		f.memberships[n.id] = struct{}{}
		nodeID := n.id
		ctx.undo.push(func() { delete(f.memberships, nodeID) })
		added = append(added, f)
	}
	if len(added) == 0 {
		return
	}
	for _, d := range n.downstream {
		d.fromAlphaAssert(added, ctx)
	}
}

func (n *AlphaMemoryNode) AlphaRetract(facts []*factEntry, ctx *ExecutionContext) {
	removed := make([]*factEntry, 0, len(facts))
	for _, f := range facts {
		if _, exists := n.facts[f.id]; !exists {
			continue
		}
		delete(n.facts, f.id)
		for i, id := range n.order {
			if id == f.id {
				n.order = append(n.order[:i], n.order[i+1:]...)
				break
			}
		}
		ctx.undo.push(func(fe *factEntry) func() {
			return func() {
				n.facts[fe.id] = fe
				n.order = append(n.order, fe.id)
			}
		}(f))
		removed = append(removed, f)
	}
	if len(removed) == 0 {
		return
	}
	for _, d := range n.downstream {
		d.fromAlphaRetract(removed, ctx)
	}
}

func (n *AlphaMemoryNode) AlphaUpdate(facts []*factEntry, ctx *ExecutionContext) {
	held := make([]*factEntry, 0, len(facts))
	for _, f := range facts {
		if _, ok := n.facts[f.id]; ok {
			held = append(held, f)
		}
	}
	if len(held) == 0 {
		return
	}
	for _, d := range n.downstream {
		d.fromAlphaUpdate(held, ctx)
	}
}

// orderedFacts returns the facts currently admitted, in insertion order.
func (n *AlphaMemoryNode) orderedFacts() []*factEntry {
	out := make([]*factEntry, 0, len(n.order))
	for _, id := range n.order {
		if f, ok := n.facts[id]; ok {
			out = append(out, f)
		}
	}
	return out
}

// alphaSubRoot pairs a type-discriminator with its entry point into the
// selection chain.
type alphaSubRoot struct {
	declType reflect.Type
	entry    AlphaConsumer
}

// AlphaNetwork is a rooted DAG: a type discriminator dispatching to
// selection-node chains that terminate in
// alpha memories. Type matching walks declared-type ancestry (a concrete
// struct type matches itself; an interface type matches any concrete type
// that implements it), and the applicable sub-root set is cached per
// concrete type after the first dispatch.
type AlphaNetwork struct {
	subRoots      []alphaSubRoot
	dispatchCache map[reflect.Type][]AlphaConsumer
}

func newAlphaNetwork() *AlphaNetwork {
	return &AlphaNetwork{dispatchCache: make(map[reflect.Type][]AlphaConsumer)}
}

// registerSubRoot wires a type-discriminated entry point. declType may be
// a concrete type or an interface type.
func (n *AlphaNetwork) registerSubRoot(declType reflect.Type, entry AlphaConsumer) {
	n.subRoots = append(n.subRoots, alphaSubRoot{declType: declType, entry: entry})
	n.dispatchCache = make(map[reflect.Type][]AlphaConsumer)
}

func (n *AlphaNetwork) consumersFor(factType reflect.Type) []AlphaConsumer {
	if cached, ok := n.dispatchCache[factType]; ok {
		return cached
	}
	var matched []AlphaConsumer
	for _, sr := range n.subRoots {
		if factType == sr.declType {
			matched = append(matched, sr.entry)
			continue
		}
		if sr.declType.Kind() == reflect.Interface && factType.Implements(sr.declType) {
			matched = append(matched, sr.entry)
			continue
		}
		if factType.AssignableTo(sr.declType) {
			matched = append(matched, sr.entry)
		}
	}
	n.dispatchCache[factType] = matched
	return matched
}

func (n *AlphaNetwork) propagateAssert(facts []*factEntry, ctx *ExecutionContext) {
	byRoot := n.groupByConsumer(facts)
	for _, group := range byRoot {
		group.consumer.AlphaAssert(group.facts, ctx)
	}
}

func (n *AlphaNetwork) propagateRetract(facts []*factEntry, ctx *ExecutionContext) {
	byRoot := n.groupByConsumer(facts)
	for _, group := range byRoot {
		group.consumer.AlphaRetract(group.facts, ctx)
	}
}

func (n *AlphaNetwork) propagateUpdate(facts []*factEntry, ctx *ExecutionContext) {
	byRoot := n.groupByConsumer(facts)
	for _, group := range byRoot {
		group.consumer.AlphaUpdate(group.facts, ctx)
	}
}

type consumerGroup struct {
	consumer AlphaConsumer
	facts    []*factEntry
}

// groupByConsumer buckets facts by matching sub-root entry: buckets appear
// in the order a consumer is first matched (each fact's consumers in
// registration order), and facts keep input order within a bucket. Every
// fact of one bucket reaches its consumer before the next bucket starts,
// so facts are not interleaved across consumers; Session passes a single
// fact per call, which keeps its propagation depth-first per fact.
func (n *AlphaNetwork) groupByConsumer(facts []*factEntry) []consumerGroup {
	order := make([]AlphaConsumer, 0)
	index := make(map[AlphaConsumer]int)
	var groups []consumerGroup
	for _, f := range facts {
		for _, c := range n.consumersFor(f.typ) {
			i, ok := index[c]
			if !ok {
				index[c] = len(order)
				order = append(order, c)
				groups = append(groups, consumerGroup{consumer: c})
				i = index[c]
			}
			groups[i].facts = append(groups[i].facts, f)
		}
	}
	return groups
}
