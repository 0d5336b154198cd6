package rete

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type bindTestOrder struct{ Amount float64 }

func newTestBinding() (*BindingNode, *captureBetaSink) {
	sink := &captureBetaSink{id: 400}
	n := &BindingNode{
		id:   1,
		name: "taxed",
		fn: func(t *Tuple) (any, error) {
			return t.Fact().(bindTestOrder).Amount * 1.1, nil
		},
		produced:  make(map[*Tuple]*Tuple),
		interning: newInternTable(),
	}
	n.addDownstream(sink)
	return n, sink
}

func TestBindingNode_ProjectsComputedValueWithoutChangingLineage(t *testing.T) {
	n, sink := newTestBinding()
	ctx := newTestCtx()

	fe := &factEntry{id: newFactID(), value: bindTestOrder{Amount: 100}}
	in := n.interning.extend(ctx.undo, RootTuple, fe)

	n.BetaAssert([]*Tuple{in}, ctx)
	require.Len(t, sink.asserts, 1)
	out := sink.asserts[0][0]
	require.Equal(t, in.Fact(), out.Fact())
	v, ok := out.Binding("taxed")
	require.True(t, ok)
	require.InDelta(t, 110.0, v.(float64), 0.001)
}

func TestBindingNode_RetractForwardsThePreviouslyProducedTuple(t *testing.T) {
	n, sink := newTestBinding()
	ctx := newTestCtx()

	fe := &factEntry{id: newFactID(), value: bindTestOrder{Amount: 50}}
	in := n.interning.extend(ctx.undo, RootTuple, fe)
	n.BetaAssert([]*Tuple{in}, ctx)
	produced := sink.asserts[0][0]

	n.BetaRetract([]*Tuple{in}, ctx)
	require.Len(t, sink.retracts, 1)
	require.Same(t, produced, sink.retracts[0][0])
}

func TestBindingNode_UpdateRecomputesValue(t *testing.T) {
	n, sink := newTestBinding()
	ctx := newTestCtx()

	fe := &factEntry{id: newFactID(), value: bindTestOrder{Amount: 50}}
	in := n.interning.extend(ctx.undo, RootTuple, fe)
	n.BetaAssert([]*Tuple{in}, ctx)
	produced := sink.asserts[0][0]

	fe.value = bindTestOrder{Amount: 200}
	n.BetaUpdate([]*Tuple{in}, ctx)
	require.Len(t, sink.updates, 1)
	v, _ := sink.updates[0][0].Binding("taxed")
	require.InDelta(t, 220.0, v.(float64), 0.001)

	// The update must mutate and forward the exact tuple object asserted
	// earlier: a downstream JoinNode indexes its memory by that pointer, so
	// a freshly allocated tuple here would make the update unfindable.
	require.Same(t, produced, sink.updates[0][0])
}
