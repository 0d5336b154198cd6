package rete

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/require"
)

type alphaTestOrder struct {
	ID     string
	Amount float64
}

type alphaTestNotifiable interface {
	Notify() string
}

type alphaTestSMS struct{ To string }

func (s alphaTestSMS) Notify() string { return "sms:" + s.To }

// captureSink is an AlphaConsumer that just records what reached it, for
// tests that don't need a full memory/adapter/terminal chain.
type captureSink struct {
	id      NodeID
	asserts [][]*factEntry
	updates [][]*factEntry
	retracts [][]*factEntry
}

func (c *captureSink) ID() NodeID { return c.id }
func (c *captureSink) AlphaAssert(facts []*factEntry, ctx *ExecutionContext) {
	c.asserts = append(c.asserts, facts)
}
func (c *captureSink) AlphaUpdate(facts []*factEntry, ctx *ExecutionContext) {
	c.updates = append(c.updates, facts)
}
func (c *captureSink) AlphaRetract(facts []*factEntry, ctx *ExecutionContext) {
	c.retracts = append(c.retracts, facts)
}

func TestAlphaSelectionNode_FiltersAndForwards(t *testing.T) {
	sink := &captureSink{id: 99}
	node := &AlphaSelectionNode{id: 1, predicate: func(f any) (bool, error) {
		return f.(alphaTestOrder).Amount > 100, nil
	}}
	node.addDownstream(sink)

	ctx := newTestCtx()
	big := &factEntry{id: newFactID(), value: alphaTestOrder{ID: "o1", Amount: 150}}
	small := &factEntry{id: newFactID(), value: alphaTestOrder{ID: "o2", Amount: 10}}

	node.AlphaAssert([]*factEntry{big, small}, ctx)
	require.Len(t, sink.asserts, 1)
	require.Equal(t, []*factEntry{big}, sink.asserts[0])
}

func TestAlphaSelectionNode_PredicateErrorPanicsConditionAbort(t *testing.T) {
	node := &AlphaSelectionNode{id: 1, predicate: func(f any) (bool, error) {
		return false, ErrNilFact
	}}
	ctx := newTestCtx()
	fe := &factEntry{id: newFactID(), value: alphaTestOrder{ID: "bad"}}

	require.Panics(t, func() {
		node.AlphaAssert([]*factEntry{fe}, ctx)
	})
}

func TestAlphaNetwork_DispatchesByConcreteTypeAndInterface(t *testing.T) {
	net := newAlphaNetwork()
	orderSink := &captureSink{id: 1}
	notifySink := &captureSink{id: 2}

	net.registerSubRoot(reflect.TypeOf(alphaTestOrder{}), orderSink)
	net.registerSubRoot(reflect.TypeOf((*alphaTestNotifiable)(nil)).Elem(), notifySink)

	ctx := newTestCtx()
	order := &factEntry{id: newFactID(), value: alphaTestOrder{ID: "o1"}, typ: reflect.TypeOf(alphaTestOrder{})}
	sms := &factEntry{id: newFactID(), value: alphaTestSMS{To: "555"}, typ: reflect.TypeOf(alphaTestSMS{})}

	net.propagateAssert([]*factEntry{order, sms}, ctx)

	require.Len(t, orderSink.asserts, 1)
	require.Equal(t, []*factEntry{order}, orderSink.asserts[0])
	require.Len(t, notifySink.asserts, 1)
	require.Equal(t, []*factEntry{sms}, notifySink.asserts[0])
}

func TestAlphaNetwork_DispatchCacheInvalidatedByNewSubRoot(t *testing.T) {
	net := newAlphaNetwork()
	sinkA := &captureSink{id: 1}
	net.registerSubRoot(reflect.TypeOf(alphaTestOrder{}), sinkA)

	// Warm the cache for this type.
	_ = net.consumersFor(reflect.TypeOf(alphaTestOrder{}))

	sinkB := &captureSink{id: 2}
	net.registerSubRoot(reflect.TypeOf(alphaTestOrder{}), sinkB)

	consumers := net.consumersFor(reflect.TypeOf(alphaTestOrder{}))
	require.Len(t, consumers, 2)
}

func TestAlphaMemoryNode_DedupesByFactIDAndPreservesOrder(t *testing.T) {
	mem := &AlphaMemoryNode{id: 1, facts: make(map[FactID]*factEntry)}
	ctx := newTestCtx()

	f1 := newFactEntry(newFactID(), nil, alphaTestOrder{ID: "o1"})
	f2 := newFactEntry(newFactID(), nil, alphaTestOrder{ID: "o2"})

	mem.AlphaAssert([]*factEntry{f1, f2}, ctx)
	mem.AlphaAssert([]*factEntry{f1}, ctx) // duplicate, ignored

	ordered := mem.orderedFacts()
	require.Equal(t, []*factEntry{f1, f2}, ordered)

	mem.AlphaRetract([]*factEntry{f1}, ctx)
	require.Equal(t, []*factEntry{f2}, mem.orderedFacts())
}

func TestAlphaMemoryNode_RetractUndoRestoresOrder(t *testing.T) {
	mem := &AlphaMemoryNode{id: 1, facts: make(map[FactID]*factEntry)}
	ctx := newTestCtx()
	f1 := newFactEntry(newFactID(), nil, alphaTestOrder{ID: "o1"})

	mem.AlphaAssert([]*factEntry{f1}, ctx)
	mark := ctx.undo.mark()
	mem.AlphaRetract([]*factEntry{f1}, ctx)
	require.Empty(t, mem.orderedFacts())

	ctx.undo.unwindTo(mark)
	require.Equal(t, []*factEntry{f1}, mem.orderedFacts())
}
