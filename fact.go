package rete

import (
	"fmt"
	"reflect"
)

// FactKeyFunc computes the identity key the engine uses to decide whether
// two insert calls refer to "the same fact". The returned key must be comparable (usable as a Go
// map key).
type FactKeyFunc func(fact any) (any, error)

type ptrKey struct {
	t reflect.Type
	p uintptr
}

// DefaultFactKey implements a dual identity rule without requiring the
// caller to supply a key function for the common cases:
// pointer/map/chan/slice-backed facts key by (type, pointer value);
// everything else keys by the value itself, which requires the fact's
// concrete type to be comparable.
func DefaultFactKey(fact any) (any, error) {
	if fact == nil {
		return nil, ErrNilFact
	}
	v := reflect.ValueOf(fact)
	t := v.Type()
	switch v.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Chan, reflect.Func, reflect.UnsafePointer, reflect.Slice:
		return ptrKey{t: t, p: v.Pointer()}, nil
	default:
		if !t.Comparable() {
			return nil, fmt.Errorf("%w: %s", ErrFactNotComparable, t)
		}
		return fact, nil
	}
}

// factEntry is the engine-internal fact wrapper: identity, host value, and
// alpha-membership set. Exclusively owned by WorkingMemory.
type factEntry struct {
	id    FactID
	key   any
	value any
	typ   reflect.Type

	// memberships is the set of alpha memory node ids this fact reached on
	// assert. Propagation does not read it: alpha retract and update rely
	// on each AlphaMemoryNode's own facts map instead of re-evaluating
	// predicates.
	memberships map[NodeID]struct{}
}

func newFactEntry(id FactID, key, value any) *factEntry {
	return &factEntry{
		id:          id,
		key:         key,
		value:       value,
		typ:         reflect.TypeOf(value),
		memberships: make(map[NodeID]struct{}),
	}
}

// WorkingMemory is the engine's registry of facts currently present: the
// key->wrapper index backing insert/update/retract idempotency checks, the
// id->wrapper index, and insertion-ordered storage for query<T>. Per-node alpha/beta memories live on the nodes themselves (see
// network.go's design-note rationale for an arena of nodes with memories
// addressed by NodeID rather than a god-object memory).
type WorkingMemory struct {
	keyFn FactKeyFunc

	byKey map[any]*factEntry
	byID  map[FactID]*factEntry

	// order preserves insertion order for Query[T]; retracted facts leave
	// a hole here that Query filters out via byID, rather than paying for
	// an O(n) slice compaction on every retract.
	order []FactID
}

func newWorkingMemory(keyFn FactKeyFunc) *WorkingMemory {
	if keyFn == nil {
		keyFn = DefaultFactKey
	}
	return &WorkingMemory{
		keyFn: keyFn,
		byKey: make(map[any]*factEntry),
		byID:  make(map[FactID]*factEntry),
	}
}

func (wm *WorkingMemory) lookup(fact any) (*factEntry, error) {
	key, err := wm.keyFn(fact)
	if err != nil {
		return nil, err
	}
	return wm.byKey[key], nil
}

func (wm *WorkingMemory) put(u *undoLog, fe *factEntry) {
	wm.byKey[fe.key] = fe
	wm.byID[fe.id] = fe
	wm.order = append(wm.order, fe.id)
	orderLen := len(wm.order)
	u.push(func() {
		delete(wm.byKey, fe.key)
		delete(wm.byID, fe.id)
		if len(wm.order) == orderLen && wm.order[orderLen-1] == fe.id {
			wm.order = wm.order[:orderLen-1]
		}
	})
}

func (wm *WorkingMemory) remove(u *undoLog, fe *factEntry) {
	delete(wm.byKey, fe.key)
	delete(wm.byID, fe.id)
	u.push(func() {
		wm.byKey[fe.key] = fe
		wm.byID[fe.id] = fe
	})
}

// Query returns facts currently in working memory whose host value is
// assignable to T (a concrete type or an interface T is implemented
// against), in insertion order. It does not touch the Rete network.
//
// This is a free function rather than a Session method because Go does
// not support generic methods; it is implemented as an eagerly
// materialized slice rather than a true lazy iterator to keep the API
// simple for callers that just want a snapshot of current facts.
func Query[T any](s *Session) []T {
	out := make([]T, 0)
	for _, id := range s.wm.order {
		fe := s.wm.byID[id]
		if fe == nil {
			continue
		}
		if v, ok := fe.value.(T); ok {
			out = append(out, v)
		}
	}
	return out
}
