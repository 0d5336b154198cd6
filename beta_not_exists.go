package rete

// notExistsNode is the shared machinery behind NotNode and ExistsNode:
// both gate left-tuple propagation purely on whether the right-hand side
// currently has zero or nonzero matches, and both pass the left tuple
// itself downstream unchanged — neither creates new lineage.
type notExistsNode struct {
	id NodeID

	left  BetaSource
	right *AdapterNode

	leftKey  JoinKeyFn
	rightKey RightKeyFn
	extra    JoinPredicate

	// counts holds, per left tuple, the number of right facts currently
	// matching its join key (and extra predicate, if any).
	counts map[*Tuple]int

	// emitted holds the left tuples currently forwarded downstream, i.e.
	// those satisfying the gate (count == 0 for Not, count > 0 for Exists).
	emitted map[*Tuple]struct{}

	// rightIndex mirrors JoinNode's: right facts bucketed by join key, so a
	// newly asserted left tuple can find its matching right facts without a
	// full scan.
	rightIndex map[any][]*factEntry

	// leftByKey holds currently-known left tuples bucketed by join key, so a
	// right-side change can find the left tuples it affects.
	leftByKey map[any][]*Tuple

	downstream []BetaConsumer

	// negate is true for NotNode (gate open at count==0), false for
	// ExistsNode (gate open at count>0).
	negate bool
}

func (n *notExistsNode) ID() NodeID                  { return n.id }
func (n *notExistsNode) addDownstream(c BetaConsumer) { n.downstream = append(n.downstream, c) }

func (n *notExistsNode) gateOpen(count int) bool {
	if n.negate {
		return count == 0
	}
	return count > 0
}

func (n *notExistsNode) matches(t *Tuple, f *factEntry, ctx *ExecutionContext) bool {
	if n.extra == nil {
		return true
	}
	ok, err := n.extra(t, f.value)
	if err != nil {
		wrapped := ctx.reportConditionFailure(n.id, f.value, err)
		panic(conditionAbort{wrapped})
	}
	return ok
}

func (n *notExistsNode) setCount(t *Tuple, count int, ctx *ExecutionContext) {
	prev := n.counts[t]
	n.counts[t] = count
	ctx.undo.push(func() { n.counts[t] = prev })

	_, wasOpen := n.emitted[t]
	isOpen := n.gateOpen(count)
	if wasOpen == isOpen {
		return
	}
	if isOpen {
		n.emitted[t] = struct{}{}
		ctx.undo.push(func() { delete(n.emitted, t) })
		for _, d := range n.downstream {
			d.BetaAssert([]*Tuple{t}, ctx)
		}
	} else {
		delete(n.emitted, t)
		ctx.undo.push(func() { n.emitted[t] = struct{}{} })
		for _, d := range n.downstream {
			d.BetaRetract([]*Tuple{t}, ctx)
		}
	}
}

// BetaAssert admits a new left tuple: compute its initial right-match count
// and open or hold the gate accordingly.
func (n *notExistsNode) BetaAssert(tuples []*Tuple, ctx *ExecutionContext) {
	for _, t := range tuples {
		key := n.leftKey(t)
		n.leftByKey[key] = append(n.leftByKey[key], t)
		ctx.undo.push(func(k any, tp *Tuple) func() {
			return func() { n.leftByKey[k] = removeTuple(n.leftByKey[k], tp) }
		}(key, t))

		count := 0
		for _, rf := range n.rightIndex[key] {
			if n.matches(t, rf, ctx) {
				count++
			}
		}
		n.setCount(t, count, ctx)
	}
}

func (n *notExistsNode) BetaRetract(tuples []*Tuple, ctx *ExecutionContext) {
	for _, t := range tuples {
		key := n.leftKey(t)
		n.leftByKey[key] = removeTuple(n.leftByKey[key], t)
		ctx.undo.push(func(k any, tp *Tuple) func() {
			return func() { n.leftByKey[k] = append(n.leftByKey[k], tp) }
		}(key, t))

		wasEmitted := false
		if _, ok := n.emitted[t]; ok {
			wasEmitted = true
			delete(n.emitted, t)
			ctx.undo.push(func() { n.emitted[t] = struct{}{} })
		}
		prevCount := n.counts[t]
		delete(n.counts, t)
		ctx.undo.push(func() { n.counts[t] = prevCount })

		if wasEmitted {
			for _, d := range n.downstream {
				d.BetaRetract([]*Tuple{t}, ctx)
			}
		}
	}
}

func (n *notExistsNode) BetaUpdate(tuples []*Tuple, ctx *ExecutionContext) {
	// Join key is unchanged along this path by construction (see
	// JoinNode.BetaUpdate); only forward the update if the tuple is
	// currently emitted, since a non-emitted tuple has no downstream state
	// to refresh.
	var still []*Tuple
	for _, t := range tuples {
		if _, ok := n.emitted[t]; ok {
			still = append(still, t)
		}
	}
	if len(still) == 0 {
		return
	}
	for _, d := range n.downstream {
		d.BetaUpdate(still, ctx)
	}
}

// RightAssert admits new right-hand facts: index them and bump the count of
// every left tuple sharing their join key.
func (n *notExistsNode) RightAssert(facts []*factEntry, ctx *ExecutionContext) {
	for _, f := range facts {
		key := n.rightKey(f.value)
		n.rightIndex[key] = append(n.rightIndex[key], f)
		ctx.undo.push(func(k any, fe *factEntry) func() {
			return func() { n.rightIndex[k] = removeFact(n.rightIndex[k], fe) }
		}(key, f))

		for _, lt := range n.leftByKey[key] {
			if n.matches(lt, f, ctx) {
				n.setCount(lt, n.counts[lt]+1, ctx)
			}
		}
	}
}

func (n *notExistsNode) RightRetract(facts []*factEntry, ctx *ExecutionContext) {
	for _, f := range facts {
		key := n.rightKey(f.value)
		n.rightIndex[key] = removeFact(n.rightIndex[key], f)
		ctx.undo.push(func(k any, fe *factEntry) func() {
			return func() { n.rightIndex[k] = append(n.rightIndex[k], fe) }
		}(key, f))

		for _, lt := range n.leftByKey[key] {
			if n.matches(lt, f, ctx) {
				n.setCount(lt, n.counts[lt]-1, ctx)
			}
		}
	}
}

func (n *notExistsNode) RightUpdate(facts []*factEntry, ctx *ExecutionContext) {
	// An update to a right fact cannot change which left tuples it matches
	// without a retract+assert upstream (the join key and any field the
	// extra predicate reads are part of the fact's identity along this
	// path), so counts are unaffected; nothing to do.
}

// NotNode emits the left tuple exactly when there are zero matching right
// facts, and retracts it the instant a match appears; it re-emits on the
// transition back to zero.
type NotNode struct{ notExistsNode }

func newNotNode(id NodeID, left BetaSource, right *AdapterNode, leftKey JoinKeyFn, rightKey RightKeyFn, extra JoinPredicate) *NotNode {
	return &NotNode{notExistsNode{
		id: id, left: left, right: right, leftKey: leftKey, rightKey: rightKey, extra: extra,
		counts: make(map[*Tuple]int), emitted: make(map[*Tuple]struct{}),
		rightIndex: make(map[any][]*factEntry), leftByKey: make(map[any][]*Tuple),
		negate: true,
	}}
}

// ExistsNode is the dual of NotNode: it emits the left tuple exactly when
// there is at least one matching right fact.
type ExistsNode struct{ notExistsNode }

func newExistsNode(id NodeID, left BetaSource, right *AdapterNode, leftKey JoinKeyFn, rightKey RightKeyFn, extra JoinPredicate) *ExistsNode {
	return &ExistsNode{notExistsNode{
		id: id, left: left, right: right, leftKey: leftKey, rightKey: rightKey, extra: extra,
		counts: make(map[*Tuple]int), emitted: make(map[*Tuple]struct{}),
		rightIndex: make(map[any][]*factEntry), leftByKey: make(map[any][]*Tuple),
		negate: false,
	}}
}
