package rete

// JoinKeyFn extracts the join key from a tuple (left side) or a fact
// (right side). Keys must be comparable; they are supplied at compile time
//.
type JoinKeyFn func(tuple *Tuple) any

// RightKeyFn extracts the join key from a right-hand fact.
type RightKeyFn func(fact any) any

// JoinPredicate is an optional extra check evaluated once two sides share
// a join key, for joins that need more than equality (e.g. a range check
// using both sides' values).
type JoinPredicate func(tuple *Tuple, fact any) (bool, error)

// JoinNode is a beta join: for each left tuple,
// enumerate right facts whose join key matches and emit a child tuple
// left ⊕ right. It maintains hash indexes on both sides so a new left
// tuple or right fact only has to probe one bucket rather than scan.
type JoinNode struct {
	id NodeID

	left  BetaSource
	right *AdapterNode

	leftKey  JoinKeyFn
	rightKey RightKeyFn
	extra    JoinPredicate

	leftIndex  map[any][]*Tuple
	rightIndex map[any][]*factEntry

	// memory maps a left tuple to the (ordered) child tuples currently
	// admitted for it at this node.
	memory map[*Tuple][]*Tuple

	downstream []BetaConsumer
	interning  *internTable
}

// BetaSource is implemented by any node that can feed tuples into a join's
// left channel: another JoinNode, a NotNode/ExistsNode pass-through, a
// BetaSelectionNode, a BindingNode, or an AdapterNode acting as the first
// pattern's root consumer.
type BetaSource interface {
	addDownstream(BetaConsumer)
}

func (n *JoinNode) ID() NodeID { return n.id }

func (n *JoinNode) addDownstream(c BetaConsumer) { n.downstream = append(n.downstream, c) }

func (n *JoinNode) emit(children []*Tuple, ctx *ExecutionContext, propagate func(BetaConsumer, []*Tuple, *ExecutionContext)) {
	if len(children) == 0 {
		return
	}
	for _, d := range n.downstream {
		propagate(d, children, ctx)
	}
}

// BetaAssert admits new left tuples: index them, probe the right index for
// existing matches, and emit child tuples for each match found.
func (n *JoinNode) BetaAssert(tuples []*Tuple, ctx *ExecutionContext) {
	var children []*Tuple
	for _, t := range tuples {
		key := n.leftKey(t)
		n.leftIndex[key] = append(n.leftIndex[key], t)
		ctx.undo.push(func(k any, tp *Tuple) func() {
			return func() { n.leftIndex[k] = removeTuple(n.leftIndex[k], tp) }
		}(key, t))

		for _, rf := range n.rightIndex[key] {
			if n.extra != nil {
				ok, err := n.extra(t, rf.value)
				if err != nil {
					wrapped := ctx.reportConditionFailure(n.id, rf.value, err)
					panic(conditionAbort{wrapped})
				}
				if !ok {
					continue
				}
			}
			child := n.interning.extend(ctx.undo, t, rf)
			n.memory[t] = append(n.memory[t], child)
			ctx.undo.push(func() { n.memory[t] = removeTuple(n.memory[t], child) })
			children = append(children, child)
		}
	}
	n.emit(children, ctx, (BetaConsumer).BetaAssert)
}

func (n *JoinNode) BetaRetract(tuples []*Tuple, ctx *ExecutionContext) {
	var children []*Tuple
	for _, t := range tuples {
		key := n.leftKey(t)
		n.leftIndex[key] = removeTuple(n.leftIndex[key], t)
		ctx.undo.push(func(k any, tp *Tuple) func() {
			return func() { n.leftIndex[k] = append(n.leftIndex[k], tp) }
		}(key, t))

		admitted := n.memory[t]
		delete(n.memory, t)
		ctx.undo.push(func(tp *Tuple, adm []*Tuple) func() {
			return func() { n.memory[tp] = adm }
		}(t, admitted))
		children = append(children, admitted...)
	}
	n.emit(children, ctx, (BetaConsumer).BetaRetract)
}

func (n *JoinNode) BetaUpdate(tuples []*Tuple, ctx *ExecutionContext) {
	// The left tuple's identity and join key are unchanged along this
	// path (an update that altered the key would have retracted and
	// reasserted upstream), so the admitted children are forwarded as an
	// update, preserving their identity.
	var children []*Tuple
	for _, t := range tuples {
		children = append(children, n.memory[t]...)
	}
	n.emit(children, ctx, (BetaConsumer).BetaUpdate)
}

// RightAssert admits new right-hand facts: index them, probe the left
// index, and emit child tuples for each existing left tuple that matches.
func (n *JoinNode) RightAssert(facts []*factEntry, ctx *ExecutionContext) {
	var children []*Tuple
	for _, f := range facts {
		key := n.rightKey(f.value)
		n.rightIndex[key] = append(n.rightIndex[key], f)
		ctx.undo.push(func(k any, fe *factEntry) func() {
			return func() { n.rightIndex[k] = removeFact(n.rightIndex[k], fe) }
		}(key, f))

		for _, lt := range n.leftIndex[key] {
			if n.extra != nil {
				ok, err := n.extra(lt, f.value)
				if err != nil {
					wrapped := ctx.reportConditionFailure(n.id, f.value, err)
					panic(conditionAbort{wrapped})
				}
				if !ok {
					continue
				}
			}
			child := n.interning.extend(ctx.undo, lt, f)
			n.memory[lt] = append(n.memory[lt], child)
			ctx.undo.push(func() { n.memory[lt] = removeTuple(n.memory[lt], child) })
			children = append(children, child)
		}
	}
	n.emit(children, ctx, (BetaConsumer).BetaAssert)
}

func (n *JoinNode) RightRetract(facts []*factEntry, ctx *ExecutionContext) {
	var children []*Tuple
	for _, f := range facts {
		key := n.rightKey(f.value)
		n.rightIndex[key] = removeFact(n.rightIndex[key], f)
		ctx.undo.push(func(k any, fe *factEntry) func() {
			return func() { n.rightIndex[k] = append(n.rightIndex[k], fe) }
		}(key, f))

		for _, lt := range n.leftIndex[key] {
			admitted := n.memory[lt]
			for _, child := range admitted {
				if child.fact == f {
					children = append(children, child)
					n.memory[lt] = removeTuple(n.memory[lt], child)
					ctx.undo.push(func(tp *Tuple, c *Tuple) func() {
						return func() { n.memory[tp] = append(n.memory[tp], c) }
					}(lt, child))
				}
			}
		}
	}
	n.emit(children, ctx, (BetaConsumer).BetaRetract)
}

func (n *JoinNode) RightUpdate(facts []*factEntry, ctx *ExecutionContext) {
	// Walk facts in call order and, for each, the left tuples it joined in
	// leftIndex insertion order, rather than ranging over the unordered
	// n.memory map: emission order must stay deterministic across runs.
	var children []*Tuple
	for _, f := range facts {
		key := n.rightKey(f.value)
		for _, lt := range n.leftIndex[key] {
			for _, child := range n.memory[lt] {
				if child.fact == f {
					children = append(children, child)
				}
			}
		}
	}
	n.emit(children, ctx, (BetaConsumer).BetaUpdate)
}

func removeTuple(s []*Tuple, t *Tuple) []*Tuple {
	for i, v := range s {
		if v == t {
			return append(s[:i:i], s[i+1:]...)
		}
	}
	return s
}

func removeFact(s []*factEntry, f *factEntry) []*factEntry {
	for i, v := range s {
		if v == f {
			return append(s[:i:i], s[i+1:]...)
		}
	}
	return s
}
