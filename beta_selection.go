package rete

// BetaPredicate filters a tuple by a predicate over the full match so far
//. Filters tuples by a
// predicate over the full tuple.").
type BetaPredicate func(tuple *Tuple) (bool, error)

// BetaSelectionNode is the beta-level counterpart of AlphaSelectionNode:
// it passes through tuples matching its predicate unchanged (no new
// lineage is created; a filter does not append a fact). It tracks which
// upstream tuples it currently admits so a retract batch — which arrives
// as "these upstream tuples are gone," not "these admitted tuples are
// gone" — only forwards the subset it actually let through.
type BetaSelectionNode struct {
	id         NodeID
	predicate  BetaPredicate
	admitted   map[*Tuple]struct{}
	downstream []BetaConsumer
}

func (n *BetaSelectionNode) ID() NodeID                  { return n.id }
func (n *BetaSelectionNode) addDownstream(c BetaConsumer) { n.downstream = append(n.downstream, c) }

func (n *BetaSelectionNode) BetaAssert(tuples []*Tuple, ctx *ExecutionContext) {
	passed := make([]*Tuple, 0, len(tuples))
	for _, t := range tuples {
		ok, err := n.predicate(t)
		if err != nil {
			wrapped := ctx.reportConditionFailure(n.id, t.Fact(), err)
			panic(conditionAbort{wrapped})
		}
		if !ok {
			continue
		}
		n.admitted[t] = struct{}{}
		ctx.undo.push(func(tp *Tuple) func() { return func() { delete(n.admitted, tp) } }(t))
		passed = append(passed, t)
	}
	if len(passed) == 0 {
		return
	}
	for _, d := range n.downstream {
		d.BetaAssert(passed, ctx)
	}
}

func (n *BetaSelectionNode) BetaRetract(tuples []*Tuple, ctx *ExecutionContext) {
	gone := make([]*Tuple, 0, len(tuples))
	for _, t := range tuples {
		if _, ok := n.admitted[t]; !ok {
			continue
		}
		delete(n.admitted, t)
		ctx.undo.push(func(tp *Tuple) func() { return func() { n.admitted[tp] = struct{}{} } }(t))
		gone = append(gone, t)
	}
	if len(gone) == 0 {
		return
	}
	for _, d := range n.downstream {
		d.BetaRetract(gone, ctx)
	}
}

// BetaUpdate re-evaluates the predicate on every incoming tuple: unlike an
// alpha-chain selection node, a beta selection downstream of a binding or
// aggregate node may be gating on a value that the update itself just
// changed, so admission can transition either way here.
func (n *BetaSelectionNode) BetaUpdate(tuples []*Tuple, ctx *ExecutionContext) {
	var admits, retracts, updates []*Tuple
	for _, t := range tuples {
		ok, err := n.predicate(t)
		if err != nil {
			wrapped := ctx.reportConditionFailure(n.id, t.Fact(), err)
			panic(conditionAbort{wrapped})
		}
		_, wasAdmitted := n.admitted[t]
		switch {
		case ok && !wasAdmitted:
			n.admitted[t] = struct{}{}
			ctx.undo.push(func(tp *Tuple) func() { return func() { delete(n.admitted, tp) } }(t))
			admits = append(admits, t)
		case !ok && wasAdmitted:
			delete(n.admitted, t)
			ctx.undo.push(func(tp *Tuple) func() { return func() { n.admitted[tp] = struct{}{} } }(t))
			retracts = append(retracts, t)
		case ok && wasAdmitted:
			updates = append(updates, t)
		}
	}
	for _, d := range n.downstream {
		if len(admits) > 0 {
			d.BetaAssert(admits, ctx)
		}
		if len(updates) > 0 {
			d.BetaUpdate(updates, ctx)
		}
		if len(retracts) > 0 {
			d.BetaRetract(retracts, ctx)
		}
	}
}
