package rete

// BindingFn computes a named value from a tuple for downstream use (e.g. a
// running total, a normalized key) without appending a new fact.
type BindingFn func(tuple *Tuple) (any, error)

// BindingNode augments each upstream tuple with one named computed value.
// The augmented tuple is a distinct object sharing the input's lineage
// (same parent/fact); BindingNode keeps a node-local map from input to
// output tuple so retract can forward the right augmented object without
// re-running the computation, and update can re-run it and refresh that
// same object's bindings in place.
type BindingNode struct {
	id         NodeID
	name       string
	fn         BindingFn
	produced   map[*Tuple]*Tuple
	downstream []BetaConsumer
	interning  *internTable
}

func (n *BindingNode) ID() NodeID                      { return n.id }
func (n *BindingNode) addDownstream(c BetaConsumer)     { n.downstream = append(n.downstream, c) }

func (n *BindingNode) BetaAssert(tuples []*Tuple, ctx *ExecutionContext) {
	out := make([]*Tuple, 0, len(tuples))
	for _, t := range tuples {
		v, err := n.fn(t)
		if err != nil {
			wrapped := ctx.reportConditionFailure(n.id, t.Fact(), err)
			panic(conditionAbort{wrapped})
		}
		bound := n.interning.bind(t, n.name, v)
		n.produced[t] = bound
		ctx.undo.push(func(src *Tuple) func() { return func() { delete(n.produced, src) } }(t))
		out = append(out, bound)
	}
	for _, d := range n.downstream {
		d.BetaAssert(out, ctx)
	}
}

func (n *BindingNode) BetaRetract(tuples []*Tuple, ctx *ExecutionContext) {
	out := make([]*Tuple, 0, len(tuples))
	for _, t := range tuples {
		bound, ok := n.produced[t]
		if !ok {
			continue
		}
		delete(n.produced, t)
		ctx.undo.push(func(src, b *Tuple) func() { return func() { n.produced[src] = b } }(t, bound))
		out = append(out, bound)
	}
	if len(out) == 0 {
		return
	}
	for _, d := range n.downstream {
		d.BetaRetract(out, ctx)
	}
}

func (n *BindingNode) BetaUpdate(tuples []*Tuple, ctx *ExecutionContext) {
	// A downstream JoinNode indexes its memory by the exact *Tuple pointer
	// asserted earlier, so the update must mutate that same object's binds
	// in place and forward it, rather than interning a new tuple nobody
	// downstream has seen — the same in-place-mutation-and-forward shape
	// AggregateNode.emit uses for its own synthetic child tuple.
	out := make([]*Tuple, 0, len(tuples))
	for _, t := range tuples {
		v, err := n.fn(t)
		if err != nil {
			wrapped := ctx.reportConditionFailure(n.id, t.Fact(), err)
			panic(conditionAbort{wrapped})
		}
		bound, ok := n.produced[t]
		if !ok {
			bound = n.interning.bind(t, n.name, v)
			n.produced[t] = bound
			ctx.undo.push(func(src *Tuple) func() { return func() { delete(n.produced, src) } }(t))
			out = append(out, bound)
			continue
		}
		prevBinds := bound.binds
		bound.binds = bound.binds.with(n.name, v)
		ctx.undo.push(func(b *Tuple, old Bindings) func() { return func() { b.binds = old } }(bound, prevBinds))
		out = append(out, bound)
	}
	for _, d := range n.downstream {
		d.BetaUpdate(out, ctx)
	}
}
