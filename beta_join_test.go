package rete

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type joinTestCustomer struct{ Name string }
type joinTestOrder struct {
	ID   string
	Name string
}

// captureBetaSink is a BetaConsumer that records everything it receives,
// for tests exercising one beta node in isolation.
type captureBetaSink struct {
	id       NodeID
	asserts  [][]*Tuple
	updates  [][]*Tuple
	retracts [][]*Tuple
}

func (c *captureBetaSink) ID() NodeID { return c.id }
func (c *captureBetaSink) BetaAssert(tuples []*Tuple, ctx *ExecutionContext) {
	c.asserts = append(c.asserts, tuples)
}
func (c *captureBetaSink) BetaUpdate(tuples []*Tuple, ctx *ExecutionContext) {
	c.updates = append(c.updates, tuples)
}
func (c *captureBetaSink) BetaRetract(tuples []*Tuple, ctx *ExecutionContext) {
	c.retracts = append(c.retracts, tuples)
}

func newTestJoin(interning *internTable) (*JoinNode, *captureBetaSink) {
	sink := &captureBetaSink{id: 100}
	join := &JoinNode{
		id:         1,
		leftIndex:  make(map[any][]*Tuple),
		rightIndex: make(map[any][]*factEntry),
		memory:     make(map[*Tuple][]*Tuple),
		interning:  interning,
		leftKey:    func(t *Tuple) any { return t.Fact().(joinTestCustomer).Name },
		rightKey:   func(f any) any { return f.(joinTestOrder).Name },
	}
	join.addDownstream(sink)
	return join, sink
}

func TestJoinNode_LeftThenRightMatch(t *testing.T) {
	it := newInternTable()
	join, sink := newTestJoin(it)
	ctx := newTestCtx()

	custFE := &factEntry{id: newFactID(), value: joinTestCustomer{Name: "alice"}}
	custTuple := it.extend(ctx.undo, RootTuple, custFE)

	join.BetaAssert([]*Tuple{custTuple}, ctx)
	require.Empty(t, sink.asserts) // no right-side facts yet

	orderFE := &factEntry{id: newFactID(), value: joinTestOrder{ID: "o1", Name: "alice"}}
	join.RightAssert([]*factEntry{orderFE}, ctx)

	require.Len(t, sink.asserts, 1)
	require.Len(t, sink.asserts[0], 1)
	child := sink.asserts[0][0]
	require.Equal(t, []any{joinTestCustomer{Name: "alice"}, joinTestOrder{ID: "o1", Name: "alice"}}, child.Facts())
}

func TestJoinNode_RightThenLeftMatch(t *testing.T) {
	it := newInternTable()
	join, sink := newTestJoin(it)
	ctx := newTestCtx()

	orderFE := &factEntry{id: newFactID(), value: joinTestOrder{ID: "o1", Name: "bob"}}
	join.RightAssert([]*factEntry{orderFE}, ctx)
	require.Empty(t, sink.asserts)

	custFE := &factEntry{id: newFactID(), value: joinTestCustomer{Name: "bob"}}
	custTuple := it.extend(ctx.undo, RootTuple, custFE)
	join.BetaAssert([]*Tuple{custTuple}, ctx)

	require.Len(t, sink.asserts, 1)
	require.Len(t, sink.asserts[0], 1)
}

func TestJoinNode_RightRetractRemovesOnlyMatchingChild(t *testing.T) {
	it := newInternTable()
	join, sink := newTestJoin(it)
	ctx := newTestCtx()

	custFE := &factEntry{id: newFactID(), value: joinTestCustomer{Name: "alice"}}
	custTuple := it.extend(ctx.undo, RootTuple, custFE)
	join.BetaAssert([]*Tuple{custTuple}, ctx)

	o1 := &factEntry{id: newFactID(), value: joinTestOrder{ID: "o1", Name: "alice"}}
	o2 := &factEntry{id: newFactID(), value: joinTestOrder{ID: "o2", Name: "alice"}}
	join.RightAssert([]*factEntry{o1, o2}, ctx)
	require.Len(t, join.memory[custTuple], 2)

	join.RightRetract([]*factEntry{o1}, ctx)
	require.Len(t, sink.retracts, 1)
	require.Len(t, sink.retracts[0], 1)
	require.Equal(t, o1, sink.retracts[0][0].fact)
	require.Len(t, join.memory[custTuple], 1)
}

func TestJoinNode_UndoRestoresIndexesAndMemory(t *testing.T) {
	it := newInternTable()
	join, _ := newTestJoin(it)
	ctx := newTestCtx()

	custFE := &factEntry{id: newFactID(), value: joinTestCustomer{Name: "alice"}}
	custTuple := it.extend(ctx.undo, RootTuple, custFE)

	mark := ctx.undo.mark()
	join.BetaAssert([]*Tuple{custTuple}, ctx)
	orderFE := &factEntry{id: newFactID(), value: joinTestOrder{ID: "o1", Name: "alice"}}
	join.RightAssert([]*factEntry{orderFE}, ctx)
	require.Len(t, join.memory[custTuple], 1)

	ctx.undo.unwindTo(mark)
	require.Empty(t, join.leftIndex["alice"])
	require.Empty(t, join.rightIndex["alice"])
	require.Empty(t, join.memory[custTuple])
}

func TestJoinNode_RightUpdateForwardsAffectedChildrenInDeterministicOrder(t *testing.T) {
	it := newInternTable()
	join, sink := newTestJoin(it)
	ctx := newTestCtx()

	alice := it.extend(ctx.undo, RootTuple, &factEntry{id: newFactID(), value: joinTestCustomer{Name: "alice"}})
	bob := it.extend(ctx.undo, RootTuple, &factEntry{id: newFactID(), value: joinTestCustomer{Name: "bob"}})
	join.BetaAssert([]*Tuple{alice, bob}, ctx)

	o1 := &factEntry{id: newFactID(), value: joinTestOrder{ID: "o1", Name: "alice"}}
	o2 := &factEntry{id: newFactID(), value: joinTestOrder{ID: "o2", Name: "bob"}}
	join.RightAssert([]*factEntry{o1, o2}, ctx)
	require.Len(t, sink.asserts, 1) // one batch carrying both children

	join.RightUpdate([]*factEntry{o2, o1}, ctx)
	require.Len(t, sink.updates, 1)
	require.Len(t, sink.updates[0], 2)
	// Order follows the facts argument, not map iteration: o2 named first.
	require.Equal(t, o2, sink.updates[0][0].fact)
	require.Equal(t, o1, sink.updates[0][1].fact)
}

func TestJoinNode_ExtraPredicateFiltersMatches(t *testing.T) {
	it := newInternTable()
	sink := &captureBetaSink{id: 1}
	join := &JoinNode{
		id:         1,
		leftIndex:  make(map[any][]*Tuple),
		rightIndex: make(map[any][]*factEntry),
		memory:     make(map[*Tuple][]*Tuple),
		interning:  it,
		leftKey:    func(t *Tuple) any { return t.Fact().(joinTestCustomer).Name },
		rightKey:   func(f any) any { return f.(joinTestOrder).Name },
		extra: func(t *Tuple, f any) (bool, error) {
			return f.(joinTestOrder).ID != "blocked", nil
		},
	}
	join.addDownstream(sink)
	ctx := newTestCtx()

	custFE := &factEntry{id: newFactID(), value: joinTestCustomer{Name: "alice"}}
	custTuple := it.extend(ctx.undo, RootTuple, custFE)
	join.BetaAssert([]*Tuple{custTuple}, ctx)

	blocked := &factEntry{id: newFactID(), value: joinTestOrder{ID: "blocked", Name: "alice"}}
	allowed := &factEntry{id: newFactID(), value: joinTestOrder{ID: "o1", Name: "alice"}}
	join.RightAssert([]*factEntry{blocked, allowed}, ctx)

	require.Len(t, sink.asserts, 1)
	require.Len(t, sink.asserts[0], 1)
	require.Equal(t, allowed, sink.asserts[0][0].fact)
}
