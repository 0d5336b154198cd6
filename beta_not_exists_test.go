package rete

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type neTestOrder struct{ ID string }
type neTestRefund struct{ OrderID string }

func newTestNot() (*NotNode, *captureBetaSink) {
	sink := &captureBetaSink{id: 200}
	n := newNotNode(1, nil, nil,
		func(t *Tuple) any { return t.Fact().(neTestOrder).ID },
		func(f any) any { return f.(neTestRefund).OrderID },
		nil,
	)
	n.addDownstream(sink)
	return n, sink
}

func newTestExists() (*ExistsNode, *captureBetaSink) {
	sink := &captureBetaSink{id: 201}
	n := newExistsNode(1, nil, nil,
		func(t *Tuple) any { return t.Fact().(neTestOrder).ID },
		func(f any) any { return f.(neTestRefund).OrderID },
		nil,
	)
	n.addDownstream(sink)
	return n, sink
}

func TestNotNode_EmitsWhenNoRightMatchYet(t *testing.T) {
	it := newInternTable()
	n, sink := newTestNot()
	ctx := newTestCtx()

	orderFE := &factEntry{id: newFactID(), value: neTestOrder{ID: "o1"}}
	orderTuple := it.extend(ctx.undo, RootTuple, orderFE)

	n.BetaAssert([]*Tuple{orderTuple}, ctx)
	require.Len(t, sink.asserts, 1)
	require.Equal(t, []*Tuple{orderTuple}, sink.asserts[0])
}

func TestNotNode_ClosesGateOnFirstMatchAndReopensOnLast(t *testing.T) {
	it := newInternTable()
	n, sink := newTestNot()
	ctx := newTestCtx()

	orderFE := &factEntry{id: newFactID(), value: neTestOrder{ID: "o1"}}
	orderTuple := it.extend(ctx.undo, RootTuple, orderFE)
	n.BetaAssert([]*Tuple{orderTuple}, ctx)
	require.Len(t, sink.asserts, 1)

	refundFE := &factEntry{id: newFactID(), value: neTestRefund{OrderID: "o1"}}
	n.RightAssert([]*factEntry{refundFE}, ctx)
	require.Len(t, sink.retracts, 1)
	require.Equal(t, []*Tuple{orderTuple}, sink.retracts[0])

	n.RightRetract([]*factEntry{refundFE}, ctx)
	require.Len(t, sink.asserts, 2)
	require.Equal(t, []*Tuple{orderTuple}, sink.asserts[1])
}

func TestNotNode_SecondRightMatchDoesNotReEmit(t *testing.T) {
	it := newInternTable()
	n, sink := newTestNot()
	ctx := newTestCtx()

	orderFE := &factEntry{id: newFactID(), value: neTestOrder{ID: "o1"}}
	orderTuple := it.extend(ctx.undo, RootTuple, orderFE)
	n.BetaAssert([]*Tuple{orderTuple}, ctx)

	r1 := &factEntry{id: newFactID(), value: neTestRefund{OrderID: "o1"}}
	r2 := &factEntry{id: newFactID(), value: neTestRefund{OrderID: "o1"}}
	n.RightAssert([]*factEntry{r1}, ctx)
	n.RightAssert([]*factEntry{r2}, ctx)
	require.Len(t, sink.retracts, 1) // only the 0->1 transition fires a retract

	n.RightRetract([]*factEntry{r1}, ctx)
	require.Empty(t, sink.asserts[1:]) // still one right match left (r2); gate stays closed
	n.RightRetract([]*factEntry{r2}, ctx)
	require.Len(t, sink.asserts, 2) // 1->0 transition reopens
}

func TestExistsNode_EmitsOnlyWhileAMatchExists(t *testing.T) {
	it := newInternTable()
	n, sink := newTestExists()
	ctx := newTestCtx()

	orderFE := &factEntry{id: newFactID(), value: neTestOrder{ID: "o1"}}
	orderTuple := it.extend(ctx.undo, RootTuple, orderFE)
	n.BetaAssert([]*Tuple{orderTuple}, ctx)
	require.Empty(t, sink.asserts) // no match yet, gate stays closed

	refundFE := &factEntry{id: newFactID(), value: neTestRefund{OrderID: "o1"}}
	n.RightAssert([]*factEntry{refundFE}, ctx)
	require.Len(t, sink.asserts, 1)

	n.RightRetract([]*factEntry{refundFE}, ctx)
	require.Len(t, sink.retracts, 1)
}

func TestNotNode_BetaRetractCleansUpWithoutDownstreamCallWhenGateClosed(t *testing.T) {
	it := newInternTable()
	n, sink := newTestNot()
	ctx := newTestCtx()

	orderFE := &factEntry{id: newFactID(), value: neTestOrder{ID: "o1"}}
	orderTuple := it.extend(ctx.undo, RootTuple, orderFE)
	n.BetaAssert([]*Tuple{orderTuple}, ctx)

	refundFE := &factEntry{id: newFactID(), value: neTestRefund{OrderID: "o1"}}
	n.RightAssert([]*factEntry{refundFE}, ctx) // gate closes, left tuple removed from emitted

	n.BetaRetract([]*Tuple{orderTuple}, ctx)
	require.Len(t, sink.retracts, 1) // no second retract: it was already closed
}

func TestNotNode_UndoRestoresCountsAndEmission(t *testing.T) {
	it := newInternTable()
	n, sink := newTestNot()
	ctx := newTestCtx()

	orderFE := &factEntry{id: newFactID(), value: neTestOrder{ID: "o1"}}
	orderTuple := it.extend(ctx.undo, RootTuple, orderFE)
	n.BetaAssert([]*Tuple{orderTuple}, ctx)

	mark := ctx.undo.mark()
	refundFE := &factEntry{id: newFactID(), value: neTestRefund{OrderID: "o1"}}
	n.RightAssert([]*factEntry{refundFE}, ctx)
	require.Equal(t, 1, n.counts[orderTuple])

	ctx.undo.unwindTo(mark)
	require.Equal(t, 0, n.counts[orderTuple])
	require.Contains(t, n.emitted, orderTuple)
}
