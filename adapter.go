package rete

// AdapterNode injects an alpha memory onto the right channel of a join, or
// (when it has no join consumers) turns a first-pattern alpha memory's
// facts into single-fact tuples extending RootTuple.
//
// Every alpha-memory-to-beta-network edge in this engine goes through an
// AdapterNode, so it has a concrete, addressable presence in the arena
// (snapshot visitors can enumerate it) rather than being folded invisibly
// into JoinNode.
type AdapterNode struct {
	id    NodeID
	alpha *AlphaMemoryNode

	// joinConsumers are beta nodes (join/not/exists/aggregate) that treat
	// this adapter as their right-hand fact stream.
	joinConsumers []RightConsumer

	// rootConsumers receive this adapter's facts as single-fact tuples
	// extending RootTuple: the entry point for a rule's first pattern.
	rootConsumers []BetaConsumer

	interning *internTable
}

// RightConsumer is implemented by beta nodes that read facts off an
// adapter's right channel: JoinNode, NotNode, ExistsNode, AggregateNode.
type RightConsumer interface {
	RightAssert(facts []*factEntry, ctx *ExecutionContext)
	RightUpdate(facts []*factEntry, ctx *ExecutionContext)
	RightRetract(facts []*factEntry, ctx *ExecutionContext)
}

func (a *AdapterNode) ID() NodeID { return a.id }

func (a *AdapterNode) addJoinConsumer(c RightConsumer) { a.joinConsumers = append(a.joinConsumers, c) }
func (a *AdapterNode) addRootConsumer(c BetaConsumer)  { a.rootConsumers = append(a.rootConsumers, c) }

// addDownstream satisfies BetaSource so an AdapterNode can be wired
// directly as a rule's first-pattern entry point, the same way a JoinNode
// or BetaSelectionNode is wired as an upstream source further down the
// path.
func (a *AdapterNode) addDownstream(c BetaConsumer) { a.addRootConsumer(c) }

func (a *AdapterNode) fromAlphaAssert(facts []*factEntry, ctx *ExecutionContext) {
	for _, c := range a.joinConsumers {
		c.RightAssert(facts, ctx)
	}
	if len(a.rootConsumers) == 0 {
		return
	}
	tuples := make([]*Tuple, len(facts))
	for i, f := range facts {
		tuples[i] = a.interning.extend(ctx.undo, RootTuple, f)
	}
	for _, c := range a.rootConsumers {
		c.BetaAssert(tuples, ctx)
	}
}

func (a *AdapterNode) fromAlphaRetract(facts []*factEntry, ctx *ExecutionContext) {
	for _, c := range a.joinConsumers {
		c.RightRetract(facts, ctx)
	}
	if len(a.rootConsumers) == 0 {
		return
	}
	tuples := make([]*Tuple, len(facts))
	for i, f := range facts {
		tuples[i] = a.interning.extend(ctx.undo, RootTuple, f)
	}
	for _, c := range a.rootConsumers {
		c.BetaRetract(tuples, ctx)
	}
}

func (a *AdapterNode) fromAlphaUpdate(facts []*factEntry, ctx *ExecutionContext) {
	for _, c := range a.joinConsumers {
		c.RightUpdate(facts, ctx)
	}
	if len(a.rootConsumers) == 0 {
		return
	}
	tuples := make([]*Tuple, len(facts))
	for i, f := range facts {
		tuples[i] = a.interning.extend(ctx.undo, RootTuple, f)
	}
	for _, c := range a.rootConsumers {
		c.BetaUpdate(tuples, ctx)
	}
}

// BetaConsumer is the propagation contract for beta-side nodes: selection,
// join, not, exists, aggregate, binding, and terminal nodes.
type BetaConsumer interface {
	ID() NodeID
	BetaAssert(tuples []*Tuple, ctx *ExecutionContext)
	BetaUpdate(tuples []*Tuple, ctx *ExecutionContext)
	BetaRetract(tuples []*Tuple, ctx *ExecutionContext)
}
