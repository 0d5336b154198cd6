package rete

import (
	"reflect"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

type snapTestCustomer struct{ Name string }
type snapTestOrder struct {
	Name   string
	Amount float64
}

func TestSnapshot_VisitsEveryNodeKindAndAgenda(t *testing.T) {
	nb := NewNetworkBuilder()
	custRoot := nb.AlphaRoot(reflect.TypeOf(snapTestCustomer{}), func(any) (bool, error) { return true, nil })
	custMem := nb.AlphaMemory(custRoot)
	custAdapter := nb.Adapter(custMem)

	orderRoot := nb.AlphaRoot(reflect.TypeOf(snapTestOrder{}), func(any) (bool, error) { return true, nil })
	orderMem := nb.AlphaMemory(orderRoot)
	orderAdapter := nb.Adapter(orderMem)

	join := nb.Join(custAdapter, orderAdapter,
		func(t *Tuple) any { return t.Fact().(snapTestCustomer).Name },
		func(f any) any { return f.(snapTestOrder).Name },
		nil,
	)
	sel := nb.Selection(join, func(*Tuple) (bool, error) { return true, nil })
	nb.Rule("r", 0, "", sel, func(ctx *ActionContext) error { return nil })

	s := NewSession(nb.Build())
	require.NoError(t, s.Insert(snapTestCustomer{Name: "alice"}))
	require.NoError(t, s.Insert(snapTestOrder{Name: "alice", Amount: 10}))

	v := &JSONSnapshotVisitor{}
	s.Snapshot(v)
	snap := v.Snapshot()

	var sawJoin, sawSelection, sawAlphaMemory bool
	for _, rec := range snap.Nodes {
		switch rec.Type {
		case "join":
			sawJoin = true
			require.Equal(t, 1, rec.MemSize)
		case "beta_selection":
			sawSelection = true
			require.Equal(t, 1, rec.MemSize)
		case "alpha_memory":
			sawAlphaMemory = true
		}
	}
	require.True(t, sawJoin)
	require.True(t, sawSelection)
	require.True(t, sawAlphaMemory)
	require.Len(t, snap.AlphaMemories, 2)
	require.Equal(t, 1, snap.PendingAgenda[DefaultAgendaGroup])

	blob, err := v.JSON()
	require.NoError(t, err)
	require.Contains(t, string(blob), `"type": "join"`)
}

func TestSnapshot_AlphaMemoryRecordsFactsInInsertionOrder(t *testing.T) {
	nb := NewNetworkBuilder()
	root := nb.AlphaRoot(reflect.TypeOf(snapTestOrder{}), func(any) (bool, error) { return true, nil })
	nb.AlphaMemory(root)

	s := NewSession(nb.Build())
	require.NoError(t, s.Insert(snapTestOrder{Name: "a"}))
	require.NoError(t, s.Insert(snapTestOrder{Name: "b"}))

	v := &JSONSnapshotVisitor{}
	s.Snapshot(v)
	snap := v.Snapshot()

	require.Len(t, snap.AlphaMemories, 1)
	require.Len(t, snap.AlphaMemories[0].Facts, 2)
}

// TestSnapshot_RoundTripsAfterInsertThenRetract uses go-cmp's structural
// diff, rather than a field-by-field require.Equal, so a regression that
// adds a field to SessionSnapshot or its records fails here with a
// readable diff instead of silently comparing fewer fields than exist.
func TestSnapshot_RoundTripsAfterInsertThenRetract(t *testing.T) {
	nb := NewNetworkBuilder()
	root := nb.AlphaRoot(reflect.TypeOf(snapTestOrder{}), func(any) (bool, error) { return true, nil })
	nb.AlphaMemory(root)

	s := NewSession(nb.Build())
	require.NoError(t, s.Insert(snapTestOrder{Name: "a"}))

	before := &JSONSnapshotVisitor{}
	s.Snapshot(before)

	transient := snapTestOrder{Name: "b"}
	require.NoError(t, s.Insert(transient))
	require.NoError(t, s.Retract(transient))

	after := &JSONSnapshotVisitor{}
	s.Snapshot(after)

	if diff := cmp.Diff(before.Snapshot(), after.Snapshot()); diff != "" {
		t.Fatalf("snapshot not structurally identical after insert+retract round trip (-before +after):\n%s", diff)
	}
}
