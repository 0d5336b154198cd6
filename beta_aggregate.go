package rete

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Accumulator incrementally maintains one aggregate value over a changing
// set of facts. Add and Remove must be exact inverses of each other so the
// node's undo log can restore pre-call state by replaying the opposite
// call.
type Accumulator interface {
	Add(fact any)
	Remove(fact any)
	// Result reports the current aggregate value and whether the group
	// should be considered to have a value at all (false for, e.g., Sum
	// over zero facts, where "no value" and "zero" are different things).
	Result() (value any, ok bool)
}

// Aggregator constructs a fresh Accumulator for a new group.
type Aggregator func() Accumulator

// CountAggregator counts facts in the group. The empty group's count is 0
// and always has a value, unlike Sum/Collect.
func CountAggregator() Accumulator { return &countAccumulator{} }

type countAccumulator struct{ n int }

func (a *countAccumulator) Add(any)             { a.n++ }
func (a *countAccumulator) Remove(any)          { a.n-- }
func (a *countAccumulator) Result() (any, bool) { return a.n, true }

// SumAggregator sums a numeric projection of each fact. An empty group has
// no value (ok=false) so callers can distinguish "no facts" from "facts
// summing to zero".
func SumAggregator(project func(fact any) float64) Aggregator {
	return func() Accumulator { return &sumAccumulator{project: project} }
}

type sumAccumulator struct {
	project func(any) float64
	total   float64
	n       int
}

func (a *sumAccumulator) Add(f any)    { a.total += a.project(f); a.n++ }
func (a *sumAccumulator) Remove(f any) { a.total -= a.project(f); a.n-- }
func (a *sumAccumulator) Result() (any, bool) {
	if a.n == 0 {
		return 0.0, false
	}
	return a.total, true
}

// CollectAggregator gathers the matched facts into a slice, preserving
// insertion order. An empty group has no value.
func CollectAggregator() Accumulator { return &collectAccumulator{} }

type collectAccumulator struct{ items []any }

func (a *collectAccumulator) Add(f any) { a.items = append(a.items, f) }
func (a *collectAccumulator) Remove(f any) {
	for i, v := range a.items {
		if v == f {
			a.items = append(a.items[:i:i], a.items[i+1:]...)
			return
		}
	}
}
func (a *collectAccumulator) Result() (any, bool) {
	if len(a.items) == 0 {
		return nil, false
	}
	out := make([]any, len(a.items))
	copy(out, a.items)
	return out, true
}

// GroupKeyFn buckets right-hand facts within one left tuple's match set
// into independent aggregate groups (e.g. "sum per category"). A nil
// GroupKeyFn means every matching fact shares a single implicit group.
type GroupKeyFn func(fact any) any

var singleGroupKey = struct{}{}

// aggGroupState is one (left tuple, group key) aggregate's running state.
type aggGroupState struct {
	acc Accumulator
	// facts maps a member right fact to the value it was last added to acc
	// with, so a later RightUpdate can Remove the stale contribution before
	// Add-ing the fact's current value.
	facts map[*factEntry]any
	child *Tuple // emitted child tuple, nil if the group has never had a value
}

// AggregateNode computes a running aggregate per left tuple (optionally
// sub-grouped by GroupKeyFn) over the right-hand facts matching its join
// key, and projects the result into a binding on a child tuple that shares
// the left tuple's lineage. Recomputation after a right-side change fans the
// affected, independent groups out across an errgroup bounded to
// GOMAXPROCS workers; every group's own state mutation
// remains on the calling goroutine so the undo log, which is not
// goroutine-safe, is only ever touched serially.
type AggregateNode struct {
	id NodeID

	left  BetaSource
	right *AdapterNode

	leftKey  JoinKeyFn
	rightKey RightKeyFn
	groupKey GroupKeyFn
	newAcc   Aggregator
	binding  string
	extra    JoinPredicate

	emitEmpty bool

	leftByKey map[any][]*Tuple
	rightIndex map[any][]*factEntry

	// groups holds, per left tuple, the aggregate state per group key.
	groups map[*Tuple]map[any]*aggGroupState

	// membership tracks, for a right fact, which (left tuple, group key)
	// pairs currently include it, so RightRetract can find every group to
	// update without scanning every left tuple.
	membership map[*factEntry]map[*Tuple]any

	downstream []BetaConsumer
}

func newAggregateNode(id NodeID, left BetaSource, right *AdapterNode, leftKey JoinKeyFn, rightKey RightKeyFn, groupKey GroupKeyFn, newAcc Aggregator, binding string, extra JoinPredicate, emitEmpty bool) *AggregateNode {
	return &AggregateNode{
		id: id, left: left, right: right, leftKey: leftKey, rightKey: rightKey,
		groupKey: groupKey, newAcc: newAcc, binding: binding, extra: extra, emitEmpty: emitEmpty,
		leftByKey: make(map[any][]*Tuple), rightIndex: make(map[any][]*factEntry),
		groups: make(map[*Tuple]map[any]*aggGroupState), membership: make(map[*factEntry]map[*Tuple]any),
	}
}

func (n *AggregateNode) ID() NodeID                  { return n.id }
func (n *AggregateNode) addDownstream(c BetaConsumer) { n.downstream = append(n.downstream, c) }

func (n *AggregateNode) groupOf(fact any) any {
	if n.groupKey == nil {
		return singleGroupKey
	}
	return n.groupKey(fact)
}

func (n *AggregateNode) matches(t *Tuple, f *factEntry, ctx *ExecutionContext) bool {
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

func (n *AggregateNode) stateFor(t *Tuple, gk any, ctx *ExecutionContext) *aggGroupState {
	byGroup, ok := n.groups[t]
	if !ok {
		byGroup = make(map[any]*aggGroupState)
		n.groups[t] = byGroup
		ctx.undo.push(func() { delete(n.groups, t) })
	}
	st, ok := byGroup[gk]
	if !ok {
		st = &aggGroupState{acc: n.newAcc(), facts: make(map[*factEntry]any)}
		byGroup[gk] = st
		ctx.undo.push(func() { delete(byGroup, gk) })
	}
	return st
}

// emit reconciles a group's downstream presence with its current result.
// Once a group's child tuple exists, a new result does not create another
// tuple: the same child object has its bindings replaced in place and is
// forwarded as an update.
func (n *AggregateNode) emit(t *Tuple, st *aggGroupState, ctx *ExecutionContext) {
	value, ok := st.acc.Result()
	wantValue := ok || n.emitEmpty
	switch {
	case wantValue && st.child == nil:
		child := &Tuple{parent: t.parent, fact: t.fact, depth: t.depth, binds: t.binds.with(n.binding, value)}
		st.child = child
		ctx.undo.push(func() { st.child = nil })
		for _, d := range n.downstream {
			d.BetaAssert([]*Tuple{child}, ctx)
		}
	case wantValue && st.child != nil:
		prevBinds := st.child.binds
		st.child.binds = t.binds.with(n.binding, value)
		ctx.undo.push(func(c *Tuple, b Bindings) func() { return func() { c.binds = b } }(st.child, prevBinds))
		for _, d := range n.downstream {
			d.BetaUpdate([]*Tuple{st.child}, ctx)
		}
	case !wantValue && st.child != nil:
		gone := st.child
		st.child = nil
		ctx.undo.push(func() { st.child = gone })
		for _, d := range n.downstream {
			d.BetaRetract([]*Tuple{gone}, ctx)
		}
	}
}

func (n *AggregateNode) addFactToGroup(t *Tuple, f *factEntry, ctx *ExecutionContext) {
	gk := n.groupOf(f.value)
	st := n.stateFor(t, gk, ctx)
	st.facts[f] = f.value
	ctx.undo.push(func() { delete(st.facts, f) })
	st.acc.Add(f.value)
	ctx.undo.push(func() { st.acc.Remove(f.value) })

	byTuple, ok := n.membership[f]
	if !ok {
		byTuple = make(map[*Tuple]any)
		n.membership[f] = byTuple
		ctx.undo.push(func() { delete(n.membership, f) })
	}
	byTuple[t] = gk
	ctx.undo.push(func() { delete(byTuple, t) })
}

func (n *AggregateNode) removeFactFromGroup(t *Tuple, f *factEntry, gk any, ctx *ExecutionContext) {
	byGroup := n.groups[t]
	if byGroup == nil {
		return
	}
	st := byGroup[gk]
	if st == nil {
		return
	}
	oldValue, ok := st.facts[f]
	if !ok {
		return
	}
	delete(st.facts, f)
	ctx.undo.push(func() { st.facts[f] = oldValue })
	st.acc.Remove(oldValue)
	ctx.undo.push(func() { st.acc.Add(oldValue) })

	if byTuple := n.membership[f]; byTuple != nil {
		delete(byTuple, t)
		ctx.undo.push(func() { byTuple[t] = gk })
	}
}

func (n *AggregateNode) BetaAssert(tuples []*Tuple, ctx *ExecutionContext) {
	for _, t := range tuples {
		key := n.leftKey(t)
		n.leftByKey[key] = append(n.leftByKey[key], t)
		ctx.undo.push(func(k any, tp *Tuple) func() {
			return func() { n.leftByKey[k] = removeTuple(n.leftByKey[k], tp) }
		}(key, t))

		for _, rf := range n.rightIndex[key] {
			if n.matches(t, rf, ctx) {
				n.addFactToGroup(t, rf, ctx)
			}
		}
		if n.emitEmpty && n.groupKey == nil {
			n.emit(t, n.stateFor(t, singleGroupKey, ctx), ctx)
		} else {
			for gk, st := range n.groups[t] {
				_ = gk
				n.emit(t, st, ctx)
			}
		}
	}
}

func (n *AggregateNode) BetaRetract(tuples []*Tuple, ctx *ExecutionContext) {
	for _, t := range tuples {
		key := n.leftKey(t)
		n.leftByKey[key] = removeTuple(n.leftByKey[key], t)
		ctx.undo.push(func(k any, tp *Tuple) func() {
			return func() { n.leftByKey[k] = append(n.leftByKey[k], tp) }
		}(key, t))

		for _, st := range n.groups[t] {
			if st.child != nil {
				gone := st.child
				for _, d := range n.downstream {
					d.BetaRetract([]*Tuple{gone}, ctx)
				}
			}
		}
		removed := n.groups[t]
		delete(n.groups, t)
		ctx.undo.push(func() { n.groups[t] = removed })
	}
}

func (n *AggregateNode) BetaUpdate(tuples []*Tuple, ctx *ExecutionContext) {
	for _, t := range tuples {
		for _, st := range n.groups[t] {
			if st.child != nil {
				for _, d := range n.downstream {
					d.BetaUpdate([]*Tuple{st.child}, ctx)
				}
			}
		}
	}
}

func (n *AggregateNode) RightAssert(facts []*factEntry, ctx *ExecutionContext) {
	var touched []aggAffected
	for _, f := range facts {
		key := n.rightKey(f.value)
		n.rightIndex[key] = append(n.rightIndex[key], f)
		ctx.undo.push(func(k any, fe *factEntry) func() {
			return func() { n.rightIndex[k] = removeFact(n.rightIndex[k], fe) }
		}(key, f))

		for _, lt := range n.leftByKey[key] {
			if !n.matches(lt, f, ctx) {
				continue
			}
			n.addFactToGroup(lt, f, ctx)
			gk := n.groupOf(f.value)
			touched = append(touched, aggAffected{t: lt, st: n.groups[lt][gk]})
		}
	}
	// Independent groups' Result() calls are pure and safe to fan out; the
	// emit/undo bookkeeping that follows still runs serially on this
	// goroutine.
	n.precomputeResults(touched)
	for _, a := range touched {
		n.emit(a.t, a.st, ctx)
	}
}

func (n *AggregateNode) RightRetract(facts []*factEntry, ctx *ExecutionContext) {
	var touched []aggAffected
	for _, f := range facts {
		key := n.rightKey(f.value)
		n.rightIndex[key] = removeFact(n.rightIndex[key], f)
		ctx.undo.push(func(k any, fe *factEntry) func() {
			return func() { n.rightIndex[k] = append(n.rightIndex[k], fe) }
		}(key, f))

		byTuple := n.membership[f]
		for lt, gk := range byTuple {
			n.removeFactFromGroup(lt, f, gk, ctx)
			if st := n.groups[lt][gk]; st != nil {
				touched = append(touched, aggAffected{t: lt, st: st})
			}
		}
	}
	n.precomputeResults(touched)
	for _, a := range touched {
		n.emit(a.t, a.st, ctx)
	}
}

// RightUpdate recomputes every group a right fact already belongs to: the
// join key and group key are assumed stable across an update (a change to
// either would have retracted and reasserted upstream, the same assumption
// JoinNode and notExistsNode make), but the fact's own projected value can
// change, so each affected accumulator removes its stale contribution and
// adds the current one before re-emitting.
func (n *AggregateNode) RightUpdate(facts []*factEntry, ctx *ExecutionContext) {
	var touched []aggAffected
	for _, f := range facts {
		byTuple := n.membership[f]
		if byTuple == nil {
			continue
		}
		key := n.rightKey(f.value)
		for _, lt := range n.leftByKey[key] {
			gk, ok := byTuple[lt]
			if !ok {
				continue
			}
			st := n.groups[lt][gk]
			if st == nil {
				continue
			}
			oldValue, ok := st.facts[f]
			if !ok {
				continue
			}
			st.acc.Remove(oldValue)
			ctx.undo.push(func(a Accumulator, v any) func() { return func() { a.Add(v) } }(st.acc, oldValue))
			st.facts[f] = f.value
			ctx.undo.push(func(s *aggGroupState, fe *factEntry, v any) func() { return func() { s.facts[fe] = v } }(st, f, oldValue))
			st.acc.Add(f.value)
			ctx.undo.push(func(a Accumulator, v any) func() { return func() { a.Remove(v) } }(st.acc, f.value))
			touched = append(touched, aggAffected{t: lt, st: st})
		}
	}
	n.precomputeResults(touched)
	for _, a := range touched {
		n.emit(a.t, a.st, ctx)
	}
}

// aggAffected pairs a left tuple with the group state a right-side change
// touched, for the precompute/emit passes in RightAssert/RightRetract.
type aggAffected struct {
	t  *Tuple
	st *aggGroupState
}

// precomputeResults runs each affected group's Result() concurrently,
// bounded to GOMAXPROCS workers, purely to warm the value before the
// serial emit pass touches shared, undo-logged state. Result() on the
// built-in accumulators is cheap enough that this mostly matters for a
// host-supplied Accumulator with an expensive Result.
func (n *AggregateNode) precomputeResults(touched []aggAffected) {
	if len(touched) < 2 {
		return
	}
	g, _ := errgroup.WithContext(context.Background())
	g.SetLimit(runtime.GOMAXPROCS(0))
	for _, a := range touched {
		st := a.st
		g.Go(func() error {
			st.acc.Result()
			return nil
		})
	}
	_ = g.Wait()
}
